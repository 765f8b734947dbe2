package exchange

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeQuery is a scripted query: it completes after a fixed number of Run
// calls and can optionally block inside Run until released.
type fakeQuery struct {
	kind     string
	endpoint string
	uid      string
	pages    int
	err      error

	startedOnce sync.Once
	started     chan struct{}
	release     chan struct{}

	mu   sync.Mutex
	runs int
}

func newFakeQuery(endpoint, uid string, pages int) *fakeQuery {
	return &fakeQuery{
		kind:     "fake",
		endpoint: endpoint,
		uid:      uid,
		pages:    pages,
		started:  make(chan struct{}),
	}
}

func (q *fakeQuery) Kind() string     { return q.kind }
func (q *fakeQuery) Endpoint() string { return q.endpoint }
func (q *fakeQuery) UID() string      { return q.uid }

func (q *fakeQuery) Done() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.err == nil && q.runs >= q.pages
}

func (q *fakeQuery) Run(ctx context.Context) error {
	q.startedOnce.Do(func() { close(q.started) })
	if q.release != nil {
		select {
		case <-q.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	q.mu.Lock()
	q.runs++
	q.mu.Unlock()
	return q.err
}

func (q *fakeQuery) runCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.runs
}

func TestRunsQueryToCompletion(t *testing.T) {
	e := New()
	q := newFakeQuery("/statuses/user_timeline", "uid-a", 3)

	e.Add(q)
	e.Wait()

	assert.Equal(t, 3, q.runCount(), "one Run call per page")
	assert.True(t, q.Done())
}

func TestDuplicateQueryDropped(t *testing.T) {
	e := New()

	first := newFakeQuery("/statuses/user_timeline", "uid-a", 1)
	first.release = make(chan struct{})
	duplicate := newFakeQuery("/statuses/user_timeline", "uid-a", 1)

	e.Add(first)
	select {
	case <-first.started:
	case <-time.After(5 * time.Second):
		t.Fatal("worker never picked up the first query")
	}

	// Equivalent query while the first is still executing: dropped.
	e.Add(duplicate)
	close(first.release)
	e.Wait()

	assert.Equal(t, 1, first.runCount())
	assert.Equal(t, 0, duplicate.runCount(), "duplicate must never run")
}

func TestDistinctQueriesBothRun(t *testing.T) {
	e := New()
	a := newFakeQuery("/statuses/user_timeline", "uid-a", 1)
	b := newFakeQuery("/statuses/user_timeline", "uid-b", 1)

	e.Add(a)
	e.Add(b)
	e.Wait()

	assert.Equal(t, 1, a.runCount())
	assert.Equal(t, 1, b.runCount())
}

func TestEndpointsRunIndependently(t *testing.T) {
	e := New()

	// Same uid on different endpoints is not a duplicate.
	a := newFakeQuery("/statuses/user_timeline", "uid-a", 1)
	b := newFakeQuery("/search/tweets", "uid-a", 1)

	e.Add(a)
	e.Add(b)
	e.Wait()

	assert.Equal(t, 1, a.runCount())
	assert.Equal(t, 1, b.runCount())
}

func TestFailingQueryAbandoned(t *testing.T) {
	e := New()
	q := newFakeQuery("/statuses/user_timeline", "uid-a", 1)
	q.err = errors.New("wire down")

	e.Add(q)
	e.Wait()

	assert.Equal(t, maxConsecutiveErrors, q.runCount())
	assert.False(t, q.Done())
}

func TestAddAfterWaitDropped(t *testing.T) {
	e := New()
	e.Wait()

	q := newFakeQuery("/statuses/user_timeline", "uid-a", 1)
	require.NotPanics(t, func() { e.Add(q) })
	assert.Equal(t, 0, q.runCount())
}

func TestAbortStopsBlockedQuery(t *testing.T) {
	e := New()
	q := newFakeQuery("/statuses/user_timeline", "uid-a", 1)
	q.release = make(chan struct{})

	e.Add(q)
	select {
	case <-q.started:
	case <-time.After(5 * time.Second):
		t.Fatal("worker never picked up the query")
	}

	done := make(chan struct{})
	go func() {
		e.Abort()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("abort did not unblock the worker")
	}
	assert.Equal(t, 0, q.runCount())
}
