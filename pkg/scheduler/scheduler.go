package scheduler

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/twicorder/pkg/log"
	"github.com/cuemby/twicorder/pkg/query"
	"github.com/cuemby/twicorder/pkg/tasks"
)

// Submitter accepts queries for execution. Satisfied by exchange.Exchange.
type Submitter interface {
	Add(q query.Query)
	Wait()
}

// Scheduler turns due tasks into concrete queries and submits them to the
// exchange. One instance owns the polling loop for the whole process.
type Scheduler struct {
	manager  *tasks.Manager
	exchange Submitter
	registry *query.Registry
	deps     query.Deps

	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
	logger   zerolog.Logger
}

// New creates a scheduler over the given task manager and exchange. All
// query collaborators arrive through deps.
func New(manager *tasks.Manager, exchange Submitter, registry *query.Registry, deps query.Deps) *Scheduler {
	return &Scheduler{
		manager:  manager,
		exchange: exchange,
		registry: registry,
		deps:     deps,
		interval: time.Second,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		logger:   log.WithComponent("scheduler"),
	}
}

// Start begins the polling loop.
func (s *Scheduler) Start() {
	go s.run()
}

// Stop halts the polling loop, then drains the exchange. Blocks until all
// workers have exited.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.exchange.Wait()
}

// run is the main scheduler loop
func (s *Scheduler) run() {
	defer close(s.doneCh)
	s.logger.Info().Int("tasks", len(s.manager.Tasks())).Msg("scheduler started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Dispatch the initial due set without waiting for the first tick.
	s.tick(time.Now())
	for {
		select {
		case now := <-ticker.C:
			s.tick(now)
		case <-s.stopCh:
			s.logger.Info().Msg("scheduler stopped")
			return
		}
	}
}

// tick dispatches every task that has come due.
func (s *Scheduler) tick(now time.Time) {
	for _, task := range s.manager.Tasks() {
		if !task.Due(now) {
			continue
		}
		q, err := s.registry.New(task.Kind, s.deps, task.Output, task.Kwargs)
		if err != nil {
			s.logger.Error().Err(err).Str("kind", task.Kind).Msg("failed to cast task")
			continue
		}
		s.logger.Debug().
			Str("kind", task.Kind).
			Str("uid", q.UID()).
			Msg("task dispatched")
		s.exchange.Add(q)
	}
}
