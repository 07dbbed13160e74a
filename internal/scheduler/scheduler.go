// Package scheduler drives periodic health checks, one goroutine per
// tracked service. Services are independent: a hanging check for one never
// delays another, and ticks for a single service are strictly sequential.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/tuptime/tuptime/internal/journal"
	"github.com/tuptime/tuptime/internal/prober"
	"github.com/tuptime/tuptime/internal/registry"
)

// Store defines the registry operations the scheduler needs.
type Store interface {
	List() []registry.Entry
	ApplyResult(name string, res registry.Result, latency time.Duration, probeErr string, at time.Time) (prev registry.Result, transition bool, err error)
}

// Journal records state transitions durably. Optional.
type Journal interface {
	Record(ctx context.Context, t journal.Transition) error
}

// ProberFactory creates a Prober for a service with the given check timeout.
type ProberFactory func(svc registry.Service, timeout time.Duration) (prober.Prober, error)

// TimeoutFunc decides the per-check timeout from a service's interval.
type TimeoutFunc func(interval time.Duration) time.Duration

type task struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Scheduler owns one check loop per tracked service. Track and Untrack may
// be called at any time after Start; interval changes are an Untrack
// followed by a Track.
type Scheduler struct {
	store      Store
	factory    ProberFactory
	timeoutFor TimeoutFunc
	journal    Journal
	logger     *slog.Logger

	mu      sync.Mutex
	ctx     context.Context
	tasks   map[string]*task
	started bool

	wg sync.WaitGroup
}

// New creates a Scheduler. Pass nil logger to use the default.
func New(store Store, factory ProberFactory, timeoutFor TimeoutFunc, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:      store,
		factory:    factory,
		timeoutFor: timeoutFor,
		logger:     logger,
		tasks:      make(map[string]*task),
	}
}

// SetJournal wires a transition journal. Must be called before Start.
func (s *Scheduler) SetJournal(j Journal) {
	s.journal = j
}

// Start begins tracking every service currently in the store. Non-blocking.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.started = true
	s.mu.Unlock()

	for _, e := range s.store.List() {
		s.Track(e.Service)
	}
}

// Track starts (or restarts) the check loop for one service.
func (s *Scheduler) Track(svc registry.Service) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	if t, ok := s.tasks[svc.Name]; ok {
		t.cancel()
		// A check may still be in flight on a detached context; wait the
		// old loop out so results for one service stay strictly sequential.
		<-t.done
	}

	timeout := s.timeoutFor(svc.IntervalDuration())
	p, err := s.factory(svc, timeout)
	if err != nil {
		s.logger.Error("creating prober", "service", svc.Name, "error", err)
		return
	}

	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan struct{})
	s.tasks[svc.Name] = &task{cancel: cancel, done: done}

	s.wg.Add(1)
	go func() {
		defer close(done)
		s.runService(ctx, svc, p)
	}()
}

// Untrack cancels the check loop for one service. No further checks for it
// will start; a check already in flight finishes against its own timeout.
func (s *Scheduler) Untrack(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[name]; ok {
		t.cancel()
		delete(s.tasks, name)
	}
}

// Wait blocks until every check loop has exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) runService(ctx context.Context, svc registry.Service, p prober.Prober) {
	defer s.wg.Done()

	// Check immediately, then on the ticker.
	s.runCheck(ctx, svc, p)

	ticker := time.NewTicker(svc.IntervalDuration())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runCheck(ctx, svc, p)
		}
	}
}

func (s *Scheduler) runCheck(ctx context.Context, svc registry.Service, p prober.Prober) {
	// The probe runs against a context detached from the loop: cancelling
	// the loop stops future ticks immediately but lets an in-flight check
	// conclude against its own timeout instead of leaking a half-open
	// protocol session.
	outcome := p.Probe(context.WithoutCancel(ctx))
	now := time.Now()

	prev, transition, err := s.store.ApplyResult(svc.Name, outcome.Result(), outcome.Latency, outcome.Failure(), now)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			// Removed while the check was in flight; drop the result.
			return
		}
		s.logger.Error("storing check result", "service", svc.Name, "error", err)
	}

	s.logger.Info("check result",
		"service", svc.Name,
		"result", outcome.Result(),
		"latency", outcome.Latency,
		"error", outcome.Failure(),
	)

	if transition {
		s.logger.Info("state transition",
			"service", svc.Name,
			"from", prev,
			"to", outcome.Result(),
			"reason", outcome.Reason,
		)
		if s.journal != nil {
			t := journal.Transition{
				Service:   svc.Name,
				From:      string(prev),
				To:        string(outcome.Result()),
				Reason:    string(outcome.Reason),
				LatencyMs: outcome.Latency.Milliseconds(),
				At:        now,
			}
			if err := s.journal.Record(context.WithoutCancel(ctx), t); err != nil {
				s.logger.Error("recording transition", "service", svc.Name, "error", err)
			}
		}
	}
}
