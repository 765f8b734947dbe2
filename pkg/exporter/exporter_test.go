package exporter

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/twicorder/pkg/writer"
)

func tweetLine(id int, text, screenName string, mentions ...string) string {
	mentionJSON := ""
	for i, m := range mentions {
		if i > 0 {
			mentionJSON += ","
		}
		mentionJSON += fmt.Sprintf(`{"id_str":%q,"screen_name":"m%s"}`, m, m)
	}
	return fmt.Sprintf(
		`{"id":%d,"id_str":"%d","created_at":"Wed Mar 13 14:05:09 +0000 2019",`+
			`"text":%q,"lang":"en","retweet_count":2,"favorite_count":5,`+
			`"user":{"id_str":"77","screen_name":%q,"followers_count":10,"created_at":"Mon Jan 01 00:00:00 +0000 2018"},`+
			`"entities":{"user_mentions":[%s],"hashtags":[{"text":"golang"}]}}`,
		id, id, text, screenName, mentionJSON,
	)
}

func writeCapture(t *testing.T, path string, lines ...string) {
	t.Helper()
	for _, line := range lines {
		require.NoError(t, writer.Append([]byte(line+"\n"), path))
	}
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestExport(t *testing.T) {
	source := t.TempDir()
	writeCapture(t, filepath.Join(source, "alice", "2019-03-13_14-05-09_30.json"),
		tweetLine(30, "first", "alice", "9"),
		tweetLine(29, "second", "alice"),
	)
	// Compressed captures are recognised and ingested the same way.
	writeCapture(t, filepath.Join(source, "search", "2019-03-13_14-06-00_28.twzip"),
		tweetLine(28, "third", "bob"),
	)
	// Unrecognised extensions are skipped entirely.
	require.NoError(t, os.WriteFile(filepath.Join(source, "notes.txt.bak"), []byte("x\n"), 0o644))

	dest := filepath.Join(t.TempDir(), "export.db")
	stats, err := New(source, dest).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Files)
	assert.Equal(t, 3, stats.ExportedTweets)
	assert.Equal(t, 0, stats.SkippedTweets)
	assert.Equal(t, 0, stats.BadLines)

	db, err := sql.Open("sqlite", dest)
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, 3, countRows(t, db, "tweets"))
	assert.Equal(t, 1, countRows(t, db, "users"), "same author collapses to one row")
	assert.Equal(t, 1, countRows(t, db, "mentions"))
	assert.Equal(t, 3, countRows(t, db, "hashtags"))

	var text, userID string
	var createdAt int64
	require.NoError(t, db.QueryRow(
		"SELECT text, user_id, created_at FROM tweets WHERE tweet_id = ?", "30",
	).Scan(&text, &userID, &createdAt))
	assert.Equal(t, "first", text)
	assert.Equal(t, "77", userID)
	assert.NotZero(t, createdAt)
}

func TestExportIdempotent(t *testing.T) {
	source := t.TempDir()
	writeCapture(t, filepath.Join(source, "alice", "capture.json"), tweetLine(30, "only", "alice"))

	dest := filepath.Join(t.TempDir(), "export.db")
	_, err := New(source, dest).Run(context.Background())
	require.NoError(t, err)

	stats, err := New(source, dest).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.ExportedTweets)
	assert.Equal(t, 1, stats.SkippedTweets, "re-runs skip already exported tweets")
}

func TestExportSkipsBadLines(t *testing.T) {
	source := t.TempDir()
	writeCapture(t, filepath.Join(source, "capture.json"),
		"not json at all",
		tweetLine(30, "good", "alice"),
		`{"no_id": true}`,
	)

	dest := filepath.Join(t.TempDir(), "export.db")
	stats, err := New(source, dest).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.ExportedTweets)
	assert.Equal(t, 2, stats.BadLines)
}

func TestExportPrefersFullText(t *testing.T) {
	source := t.TempDir()
	writeCapture(t, filepath.Join(source, "capture.json"),
		`{"id_str":"1","text":"truncated...","full_text":"the whole tweet"}`,
	)

	dest := filepath.Join(t.TempDir(), "export.db")
	_, err := New(source, dest).Run(context.Background())
	require.NoError(t, err)

	db, err := sql.Open("sqlite", dest)
	require.NoError(t, err)
	defer db.Close()

	var text string
	require.NoError(t, db.QueryRow("SELECT text FROM tweets WHERE tweet_id = ?", "1").Scan(&text))
	assert.Equal(t, "the whole tweet", text)
}

func TestExportMissingSource(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "export.db")
	_, err := New(filepath.Join(t.TempDir(), "absent"), dest).Run(context.Background())
	assert.Error(t, err)
}
