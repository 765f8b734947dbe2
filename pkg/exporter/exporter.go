package exporter

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/cuemby/twicorder/pkg/log"
	"github.com/cuemby/twicorder/pkg/query"
	"github.com/cuemby/twicorder/pkg/usercache"
	"github.com/cuemby/twicorder/pkg/writer"
)

// Stats summarises one export run.
type Stats struct {
	Files          int
	ExportedTweets int
	SkippedTweets  int
	ExportedUsers  int
	BadLines       int
}

// Exporter ingests raw capture files into a relational SQLite database.
type Exporter struct {
	source string
	dest   string
	logger zerolog.Logger
}

// New creates an exporter reading raw files under source and writing the
// relational database at dest.
func New(source, dest string) *Exporter {
	return &Exporter{
		source: source,
		dest:   dest,
		logger: log.WithComponent("exporter"),
	}
}

// Run walks the raw data tree and ingests every recognised capture file.
func (e *Exporter) Run(ctx context.Context) (*Stats, error) {
	db, err := sql.Open("sqlite", e.dest)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := createTables(ctx, db); err != nil {
		return nil, err
	}

	paths, err := e.collectPaths()
	if err != nil {
		return nil, err
	}
	e.logger.Info().Int("files", len(paths)).Msg("export started")

	stats := &Stats{}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := e.ingestFile(ctx, db, path, stats); err != nil {
			e.logger.Error().Err(err).Str("path", path).Msg("failed to ingest file")
			continue
		}
		stats.Files++
	}

	e.logger.Info().
		Int("files", stats.Files).
		Int("tweets", stats.ExportedTweets).
		Int("skipped", stats.SkippedTweets).
		Int("users", stats.ExportedUsers).
		Msg("export finished")
	return stats, nil
}

// collectPaths lists capture files under the source tree, oldest names first.
func (e *Exporter) collectPaths() ([]string, error) {
	var paths []string
	err := filepath.WalkDir(writer.ExpandHome(e.source), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && writer.Recognised(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", e.source, err)
	}
	return paths, nil
}

// ingestFile reads one newline-delimited capture file inside a single
// transaction.
func (e *Exporter) ingestFile(ctx context.Context, db *sql.DB, path string, stats *Stats) error {
	lines, err := writer.ReadLines(path)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, line := range lines {
		decoder := json.NewDecoder(strings.NewReader(line))
		decoder.UseNumber()
		var tweet map[string]any
		if err := decoder.Decode(&tweet); err != nil {
			stats.BadLines++
			e.logger.Warn().Str("path", path).Msg("skipping unparseable line")
			continue
		}
		if err := insertTweet(ctx, tx, tweet, stats); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func insertTweet(ctx context.Context, tx *sql.Tx, tweet map[string]any, stats *Stats) error {
	id := usercache.IDString(tweet)
	if id == "" {
		stats.BadLines++
		return nil
	}

	user, _ := tweet["user"].(map[string]any)
	userID := ""
	if user != nil {
		userID = usercache.IDString(user)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO tweets (
			tweet_id, created_at, text, user_id, lang,
			retweet_count, favorite_count, is_quote_status,
			in_reply_to_status_id, in_reply_to_screen_name
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		createdAt(tweet),
		text(tweet),
		userID,
		str(tweet["lang"]),
		num(tweet["retweet_count"]),
		num(tweet["favorite_count"]),
		boolean(tweet["is_quote_status"]),
		str(tweet["in_reply_to_status_id_str"]),
		str(tweet["in_reply_to_screen_name"]),
	)
	if err != nil {
		return fmt.Errorf("failed to insert tweet %s: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		stats.SkippedTweets++
		return nil
	}
	stats.ExportedTweets++

	if user != nil && userID != "" {
		if err := insertUser(ctx, tx, userID, user, stats); err != nil {
			return err
		}
	}
	return insertEntities(ctx, tx, id, tweet)
}

func insertUser(ctx context.Context, tx *sql.Tx, userID string, user map[string]any, stats *Stats) error {
	result, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO users (
			user_id, name, screen_name, location, description,
			followers_count, friends_count, favourites_count,
			statuses_count, verified, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		userID,
		str(user["name"]),
		str(user["screen_name"]),
		str(user["location"]),
		str(user["description"]),
		num(user["followers_count"]),
		num(user["friends_count"]),
		num(user["favourites_count"]),
		num(user["statuses_count"]),
		boolean(user["verified"]),
		createdAt(user),
	)
	if err != nil {
		return fmt.Errorf("failed to insert user %s: %w", userID, err)
	}
	if n, _ := result.RowsAffected(); n > 0 {
		stats.ExportedUsers++
	}
	return nil
}

func insertEntities(ctx context.Context, tx *sql.Tx, tweetID string, tweet map[string]any) error {
	entities, ok := tweet["entities"].(map[string]any)
	if !ok {
		return nil
	}
	if raw, ok := entities["user_mentions"].([]any); ok {
		for _, item := range raw {
			mention, ok := item.(map[string]any)
			if !ok {
				continue
			}
			mentionID := usercache.IDString(mention)
			if mentionID == "" {
				continue
			}
			_, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO mentions (tweet_id, user_id) VALUES (?, ?)`,
				tweetID, mentionID,
			)
			if err != nil {
				return fmt.Errorf("failed to insert mention: %w", err)
			}
		}
	}
	if raw, ok := entities["hashtags"].([]any); ok {
		for _, item := range raw {
			hashtag, ok := item.(map[string]any)
			if !ok {
				continue
			}
			tag := str(hashtag["text"])
			if tag == "" {
				continue
			}
			_, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO hashtags (tweet_id, tag) VALUES (?, ?)`,
				tweetID, tag,
			)
			if err != nil {
				return fmt.Errorf("failed to insert hashtag: %w", err)
			}
		}
	}
	return nil
}

// text prefers full_text over the truncated text field.
func text(tweet map[string]any) string {
	if s := str(tweet["full_text"]); s != "" {
		return s
	}
	return str(tweet["text"])
}

func createdAt(payload map[string]any) int64 {
	raw := str(payload["created_at"])
	if raw == "" {
		return 0
	}
	t, err := time.Parse(query.TweetTimeFormat, raw)
	if err != nil {
		return 0
	}
	return t.Unix()
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func num(v any) int64 {
	switch n := v.(type) {
	case json.Number:
		i, _ := n.Int64()
		return i
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	}
	return 0
}

func boolean(v any) int {
	if b, ok := v.(bool); ok && b {
		return 1
	}
	return 0
}
