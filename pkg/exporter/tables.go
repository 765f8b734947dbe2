package exporter

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is the relational shape captured files are exported into. Ids are
// stored as text to avoid 64-bit precision loss in downstream tools.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS tweets (
		tweet_id TEXT PRIMARY KEY,
		created_at INTEGER,
		text TEXT,
		user_id TEXT,
		lang TEXT,
		retweet_count INTEGER,
		favorite_count INTEGER,
		is_quote_status INTEGER,
		in_reply_to_status_id TEXT,
		in_reply_to_screen_name TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tweets_created_at ON tweets (created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_tweets_user_id ON tweets (user_id)`,
	`CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		name TEXT,
		screen_name TEXT,
		location TEXT,
		description TEXT,
		followers_count INTEGER,
		friends_count INTEGER,
		favourites_count INTEGER,
		statuses_count INTEGER,
		verified INTEGER,
		created_at INTEGER
	)`,
	`CREATE INDEX IF NOT EXISTS idx_users_screen_name ON users (screen_name)`,
	`CREATE TABLE IF NOT EXISTS mentions (
		tweet_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		PRIMARY KEY (tweet_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS hashtags (
		tweet_id TEXT NOT NULL,
		tag TEXT NOT NULL,
		PRIMARY KEY (tweet_id, tag)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_hashtags_tag ON hashtags (tag)`,
}

func createTables(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}
