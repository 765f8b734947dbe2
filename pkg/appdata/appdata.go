package appdata

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketLastIDs     = []byte("queries_last_id")
	bucketQueryTweets = []byte("query_tweets")
)

// TweetRecord is one row of a per-query tweet history table.
type TweetRecord struct {
	ID        string
	Timestamp int64
}

// Store is the durable local key/value store carrying crawl state between
// sessions: per-query resume ids and per-query tweet-id history.
type Store struct {
	db *bolt.DB
}

// Open creates or opens the app-data database under the given directory.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create app-data dir: %w", err)
	}
	dbPath := filepath.Join(dataDir, "twicorder.db")

	db, err := bolt.Open(dbPath, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketLastIDs, bucketQueryTweets} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// SetLastID records the most recent item id for a query uid. Called only
// after the full paged walk for that uid has completed.
func (s *Store) SetLastID(uid, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLastIDs)
		return b.Put([]byte(uid), []byte(id))
	})
}

// LastID returns the recorded resume id for a query uid, if any.
func (s *Store) LastID(uid string) (string, bool, error) {
	var id string
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLastIDs)
		data := b.Get([]byte(uid))
		if data != nil {
			id = string(data)
			found = true
		}
		return nil
	})
	return id, found, err
}

// AddQueryTweets appends tweet history rows for a query kind. The write is a
// single transaction; partial batches are never visible.
func (s *Store) AddQueryTweets(kind string, tweets []TweetRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		parent := tx.Bucket(bucketQueryTweets)
		b, err := parent.CreateBucketIfNotExists([]byte(kind))
		if err != nil {
			return fmt.Errorf("failed to create table %s: %w", kind, err)
		}
		for _, tweet := range tweets {
			ts := strconv.FormatInt(tweet.Timestamp, 10)
			if err := b.Put([]byte(tweet.ID), []byte(ts)); err != nil {
				return err
			}
		}
		return nil
	})
}

// QueryTweets returns all recorded history rows for a query kind.
func (s *Store) QueryTweets(kind string) ([]TweetRecord, error) {
	var tweets []TweetRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketQueryTweets).Bucket([]byte(kind))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			ts, err := strconv.ParseInt(string(v), 10, 64)
			if err != nil {
				return fmt.Errorf("corrupt timestamp for tweet %s: %w", k, err)
			}
			tweets = append(tweets, TweetRecord{ID: string(k), Timestamp: ts})
			return nil
		})
	})
	return tweets, err
}

// QueryTweetIDs returns the recorded tweet ids for a query kind as a set.
// This is the dedup fast path used on every page.
func (s *Store) QueryTweetIDs(kind string) (map[string]struct{}, error) {
	ids := make(map[string]struct{})
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketQueryTweets).Bucket([]byte(kind))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			ids[string(k)] = struct{}{}
			return nil
		})
	})
	return ids, err
}
