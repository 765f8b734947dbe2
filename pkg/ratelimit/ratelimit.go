package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Header names carrying the server-advertised quota window.
const (
	HeaderLimit     = "x-rate-limit-limit"
	HeaderRemaining = "x-rate-limit-remaining"
	HeaderReset     = "x-rate-limit-reset"
)

// Snapshot is the last observed rate-limit window for one endpoint.
type Snapshot struct {
	Cap       int
	Remaining int
	Reset     time.Time
}

// Exhausted reports whether the window has no requests left and the reset
// time is still in the future.
func (s Snapshot) Exhausted(now time.Time) bool {
	return s.Remaining == 0 && s.Reset.After(now)
}

// Central tracks per-endpoint rate-limit snapshots. One instance is shared by
// all exchange workers; updates replace the snapshot for an endpoint
// atomically, reads may come from any worker.
type Central struct {
	mu     sync.RWMutex
	limits map[string]Snapshot
}

// NewCentral creates an empty rate-limit tracker.
func NewCentral() *Central {
	return &Central{limits: make(map[string]Snapshot)}
}

// Update replaces the snapshot for an endpoint from response headers. Headers
// missing any of the three limit fields leave the previous snapshot intact.
func (c *Central) Update(endpoint string, header http.Header) {
	limit, err := strconv.Atoi(header.Get(HeaderLimit))
	if err != nil {
		return
	}
	remaining, err := strconv.Atoi(header.Get(HeaderRemaining))
	if err != nil {
		return
	}
	reset, err := strconv.ParseInt(header.Get(HeaderReset), 10, 64)
	if err != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.limits[endpoint] = Snapshot{
		Cap:       limit,
		Remaining: remaining,
		Reset:     time.Unix(reset, 0),
	}
}

// Get returns the current snapshot for an endpoint, if one has been observed.
func (c *Central) Get(endpoint string) (Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snapshot, ok := c.limits[endpoint]
	return snapshot, ok
}
