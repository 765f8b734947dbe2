package exchange

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cuemby/twicorder/pkg/log"
	"github.com/cuemby/twicorder/pkg/metrics"
	"github.com/cuemby/twicorder/pkg/query"
)

const (
	// queueCapacity bounds each endpoint queue. Task frequencies are chosen
	// to keep steady-state load below quota, so the queues stay short.
	queueCapacity = 512

	pauseBetweenPages   = 200 * time.Millisecond
	pauseBetweenQueries = 500 * time.Millisecond

	// maxConsecutiveErrors is how many failed Run calls in a row a worker
	// tolerates before abandoning a query.
	maxConsecutiveErrors = 5
)

// endpointQueue is one FIFO queue plus the dedup state for its endpoint.
type endpointQueue struct {
	endpoint string
	ch       chan query.Query

	mu      sync.Mutex
	pending map[string]struct{}
	running string
}

// markPending reserves a uid if no equivalent query is pending or running.
func (q *endpointQueue) markPending(uid string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.pending[uid]; ok {
		return false
	}
	if q.running == uid {
		return false
	}
	q.pending[uid] = struct{}{}
	return true
}

func (q *endpointQueue) startRunning(uid string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.pending, uid)
	q.running = uid
}

func (q *endpointQueue) stopRunning() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.running = ""
}

// Exchange owns one FIFO queue per endpoint and one worker per queue.
// Serialising all requests for an endpoint through a single worker is what
// keeps concurrent in-flight requests per rate-limit window at one.
type Exchange struct {
	mu     sync.Mutex
	queues map[string]*endpointQueue
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger zerolog.Logger
}

// New creates an exchange. Workers are spawned lazily, one per distinct
// endpoint seen.
func New() *Exchange {
	ctx, cancel := context.WithCancel(context.Background())
	return &Exchange{
		queues: make(map[string]*endpointQueue),
		ctx:    ctx,
		cancel: cancel,
		logger: log.WithComponent("exchange"),
	}
}

// Add enqueues a query on its endpoint's queue. If an equivalent query (by
// uid) is already pending or currently executing on that endpoint, the query
// is dropped silently.
func (e *Exchange) Add(q query.Query) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		e.logger.Warn().Str("endpoint", q.Endpoint()).Msg("exchange closed, dropping query")
		return
	}
	eq, ok := e.queues[q.Endpoint()]
	if !ok {
		eq = &endpointQueue{
			endpoint: q.Endpoint(),
			ch:       make(chan query.Query, queueCapacity),
			pending:  make(map[string]struct{}),
		}
		e.queues[q.Endpoint()] = eq
		e.wg.Add(1)
		go e.worker(eq)
	}
	e.mu.Unlock()

	if !eq.markPending(q.UID()) {
		metrics.QueriesDedupedTotal.WithLabelValues(q.Endpoint()).Inc()
		e.logger.Debug().
			Str("endpoint", q.Endpoint()).
			Str("uid", q.UID()).
			Msg("duplicate query dropped")
		return
	}

	eq.ch <- q
	metrics.QueriesEnqueuedTotal.WithLabelValues(q.Endpoint()).Inc()
	metrics.QueueDepth.WithLabelValues(q.Endpoint()).Set(float64(len(eq.ch)))
}

// Wait closes every queue and joins all workers. Queries already enqueued
// are drained before the workers exit.
func (e *Exchange) Wait() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		e.wg.Wait()
		return
	}
	e.closed = true
	for _, eq := range e.queues {
		close(eq.ch)
	}
	e.mu.Unlock()
	e.wg.Wait()
}

// Abort cancels in-flight work, then waits. Used on forced shutdown.
func (e *Exchange) Abort() {
	e.cancel()
	e.Wait()
}

// worker serves one endpoint queue until the queue is closed and drained.
func (e *Exchange) worker(eq *endpointQueue) {
	defer e.wg.Done()
	logger := e.logger.With().Str("worker", eq.endpoint).Logger()
	logger.Info().Msg("worker started")

	for q := range eq.ch {
		metrics.QueueDepth.WithLabelValues(eq.endpoint).Set(float64(len(eq.ch)))
		eq.startRunning(q.UID())
		e.runQuery(logger, q)
		eq.stopRunning()

		if !e.sleep(pauseBetweenQueries) {
			break
		}
	}
	logger.Info().Msg("worker stopped")
}

// runQuery drives a single query through all of its pages.
func (e *Exchange) runQuery(logger zerolog.Logger, q query.Query) {
	runID := uuid.New().String()
	qlog := logger.With().
		Str("run_id", runID).
		Str("kind", q.Kind()).
		Str("uid", q.UID()).
		Logger()
	qlog.Info().Msg("query started")

	failures := 0
	for !q.Done() {
		if err := q.Run(e.ctx); err != nil {
			if e.ctx.Err() != nil {
				qlog.Warn().Msg("query aborted")
				return
			}
			failures++
			if failures >= maxConsecutiveErrors {
				qlog.Error().Int("failures", failures).Msg("abandoning query")
				return
			}
		} else {
			failures = 0
		}
		if !e.sleep(pauseBetweenPages) {
			return
		}
	}
	qlog.Info().Msg("query completed")
}

// sleep pauses between pages or queries; false means the exchange aborted.
func (e *Exchange) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-e.ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
