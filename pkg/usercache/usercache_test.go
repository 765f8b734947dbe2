package usercache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func user(id int, screenName string) map[string]any {
	return map[string]any{
		"id":          id,
		"id_str":      fmt.Sprint(id),
		"screen_name": screenName,
	}
}

func tweetWithMentions(ids ...int) map[string]any {
	mentions := make([]any, 0, len(ids))
	for _, id := range ids {
		mentions = append(mentions, map[string]any{
			"id":      id,
			"id_str":  fmt.Sprint(id),
			"indices": []any{0, 5},
		})
	}
	return map[string]any{
		"id_str":   "1",
		"entities": map[string]any{"user_mentions": mentions},
	}
}

func TestAddAndGet(t *testing.T) {
	cache := New(time.Minute)
	cache.Add(user(9, "alice"))

	got, ok := cache.Get("9")
	require.True(t, ok)
	assert.Equal(t, "alice", got["screen_name"])

	_, ok = cache.Get("10")
	assert.False(t, ok)
}

func TestTTLFiltersOnRead(t *testing.T) {
	cache := New(10 * time.Millisecond)
	cache.Add(user(9, "alice"))

	_, ok := cache.Get("9")
	require.True(t, ok)

	time.Sleep(20 * time.Millisecond)
	_, ok = cache.Get("9")
	assert.False(t, ok, "expired entries must be invisible")
}

func TestExpandMentionsLooksUpMissing(t *testing.T) {
	cache := New(time.Minute)
	cache.Add(user(1, "cached"))

	var lookups [][]string
	lookup := func(ctx context.Context, ids []string) ([]map[string]any, error) {
		lookups = append(lookups, ids)
		users := make([]map[string]any, 0, len(ids))
		for _, id := range ids {
			users = append(users, map[string]any{
				"id_str":          id,
				"screen_name":     "user_" + id,
				"followers_count": 42,
			})
		}
		return users, nil
	}

	tweets := []map[string]any{tweetWithMentions(1, 2), tweetWithMentions(2, 3)}
	require.NoError(t, cache.ExpandMentions(context.Background(), tweets, lookup))

	// Only the two uncached ids are fetched, once each.
	require.Len(t, lookups, 1)
	assert.ElementsMatch(t, []string{"2", "3"}, lookups[0])

	mention := tweets[0]["entities"].(map[string]any)["user_mentions"].([]any)[0].(map[string]any)
	assert.Equal(t, "cached", mention["screen_name"])
	mention = tweets[1]["entities"].(map[string]any)["user_mentions"].([]any)[1].(map[string]any)
	assert.Equal(t, "user_3", mention["screen_name"])
	assert.EqualValues(t, 42, mention["followers_count"])
	assert.NotNil(t, mention["indices"], "indices must not be overwritten")
}

func TestExpandMentionsChunks(t *testing.T) {
	cache := New(time.Minute)

	var chunkSizes []int
	lookup := func(ctx context.Context, ids []string) ([]map[string]any, error) {
		chunkSizes = append(chunkSizes, len(ids))
		return nil, nil
	}

	ids := make([]int, 0, 250)
	for i := 0; i < 250; i++ {
		ids = append(ids, 1000+i)
	}
	tweets := []map[string]any{tweetWithMentions(ids...)}
	require.NoError(t, cache.ExpandMentions(context.Background(), tweets, lookup))

	assert.Equal(t, []int{100, 100, 50}, chunkSizes)
}

func TestExpandMentionsLookupError(t *testing.T) {
	cache := New(time.Minute)
	lookup := func(ctx context.Context, ids []string) ([]map[string]any, error) {
		return nil, fmt.Errorf("wire down")
	}
	err := cache.ExpandMentions(
		context.Background(),
		[]map[string]any{tweetWithMentions(2)},
		lookup,
	)
	assert.Error(t, err)
}

func TestIDString(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]any
		want    string
	}{
		{name: "id_str wins", payload: map[string]any{"id_str": "9", "id": 10}, want: "9"},
		{name: "numeric id", payload: map[string]any{"id": float64(9)}, want: "9"},
		{name: "int id", payload: map[string]any{"id": 9}, want: "9"},
		{name: "missing", payload: map[string]any{}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IDString(tt.payload))
		})
	}
}
