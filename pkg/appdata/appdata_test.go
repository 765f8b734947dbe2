package appdata

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestLastIDRoundTrip(t *testing.T) {
	store := openStore(t)

	_, ok, err := store.LastID("uid-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.SetLastID("uid-1", "1234"))

	id, ok, err := store.LastID("uid-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1234", id)

	// Overwrite replaces.
	require.NoError(t, store.SetLastID("uid-1", "5678"))
	id, _, err = store.LastID("uid-1")
	require.NoError(t, err)
	assert.Equal(t, "5678", id)
}

func TestQueryTweets(t *testing.T) {
	store := openStore(t)

	tweets, err := store.QueryTweets("user_timeline")
	require.NoError(t, err)
	assert.Empty(t, tweets)

	require.NoError(t, store.AddQueryTweets("user_timeline", []TweetRecord{
		{ID: "30", Timestamp: 100},
		{ID: "29", Timestamp: 99},
	}))
	require.NoError(t, store.AddQueryTweets("user_timeline", []TweetRecord{
		{ID: "28", Timestamp: 98},
	}))

	tweets, err = store.QueryTweets("user_timeline")
	require.NoError(t, err)
	assert.Len(t, tweets, 3)

	ids, err := store.QueryTweetIDs("user_timeline")
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{
		"30": {}, "29": {}, "28": {},
	}, ids)

	// Tables are per query kind.
	other, err := store.QueryTweetIDs("free_search")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestConcurrentWriters(t *testing.T) {
	store := openStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				id := fmt.Sprintf("%d-%d", n, j)
				assert.NoError(t, store.AddQueryTweets("user_timeline", []TweetRecord{
					{ID: id, Timestamp: int64(j)},
				}))
				assert.NoError(t, store.SetLastID("uid", id))
			}
		}(i)
	}
	wg.Wait()

	ids, err := store.QueryTweetIDs("user_timeline")
	require.NoError(t, err)
	assert.Len(t, ids, 100)
}
