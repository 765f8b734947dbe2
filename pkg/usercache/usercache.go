package usercache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// LookupChunkSize is the maximum number of user ids per lookup request.
const LookupChunkSize = 100

// LookupFunc fetches full profiles for a chunk of user ids. The exchange
// wires this to a users/lookup-shaped query.
type LookupFunc func(ctx context.Context, ids []string) ([]map[string]any, error)

type entry struct {
	user     map[string]any
	captured time.Time
}

// Cache is a time-bounded in-memory map of user id to profile payload.
// Entries older than the TTL are invisible to callers; staleness is filtered
// on read.
type Cache struct {
	ttl time.Duration

	mu    sync.RWMutex
	users map[string]entry

	// Serialises lookup bursts so only one mention expansion runs at a time.
	expandMu sync.Mutex
}

// New creates a cache with the given TTL. A zero or negative TTL falls back
// to the 15 minute default.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Cache{
		ttl:   ttl,
		users: make(map[string]entry),
	}
}

// Add stores a profile payload stamped with the current time.
func (c *Cache) Add(user map[string]any) {
	id := IDString(user)
	if id == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users[id] = entry{user: user, captured: time.Now()}
}

// Get returns the cached profile for an id if it is younger than the TTL.
func (c *Cache) Get(id string) (map[string]any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.users[id]
	if !ok || time.Since(e.captured) > c.ttl {
		return nil, false
	}
	return e.user, true
}

// ExpandMentions splices full user profiles into every user_mentions entry of
// the given tweets. Ids missing from the cache are fetched in chunks of up to
// LookupChunkSize through the lookup function. Only one expansion runs at a
// time across the process.
func (c *Cache) ExpandMentions(ctx context.Context, tweets []map[string]any, lookup LookupFunc) error {
	c.expandMu.Lock()
	defer c.expandMu.Unlock()

	var missing []string
	seen := make(map[string]struct{})
	for _, tweet := range tweets {
		for _, mention := range mentions(tweet) {
			id := IDString(mention)
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			if _, ok := c.Get(id); !ok {
				missing = append(missing, id)
			}
		}
	}

	for start := 0; start < len(missing); start += LookupChunkSize {
		end := start + LookupChunkSize
		if end > len(missing) {
			end = len(missing)
		}
		users, err := lookup(ctx, missing[start:end])
		if err != nil {
			return fmt.Errorf("user lookup failed: %w", err)
		}
		for _, user := range users {
			c.Add(user)
		}
	}

	for _, tweet := range tweets {
		for _, mention := range mentions(tweet) {
			id := IDString(mention)
			if id == "" {
				continue
			}
			user, ok := c.Get(id)
			if !ok {
				continue
			}
			// Splice the full profile into the mention stub, keeping the
			// mention's own display indices.
			for k, v := range user {
				if k == "indices" {
					continue
				}
				mention[k] = v
			}
		}
	}
	return nil
}

// mentions returns the user_mentions entries of a tweet, if any.
func mentions(tweet map[string]any) []map[string]any {
	entities, ok := tweet["entities"].(map[string]any)
	if !ok {
		return nil
	}
	raw, ok := entities["user_mentions"].([]any)
	if !ok {
		return nil
	}
	var result []map[string]any
	for _, item := range raw {
		if mention, ok := item.(map[string]any); ok {
			result = append(result, mention)
		}
	}
	return result
}

// IDString extracts a stable string id from a user or mention payload,
// preferring id_str over the numeric id.
func IDString(payload map[string]any) string {
	if s, ok := payload["id_str"].(string); ok && s != "" {
		return s
	}
	switch v := payload["id"].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	}
	return ""
}
