// Package service runs league payout cycles: it refreshes stale league data,
// resolves every finished payout in order and fans leagues out to workers.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/okian/payday/internal/adapters/mq/queue"
	workerpool "github.com/okian/payday/internal/adapters/mq/worker"
	"github.com/okian/payday/internal/adapters/repository"
	"github.com/okian/payday/internal/domain/dedupe"
	"github.com/okian/payday/internal/domain/model"
	"github.com/okian/payday/internal/domain/ranking"
	"github.com/okian/payday/pkg/logger"
)

// Refresher pulls fresh league, entrant and performance data from upstream.
type Refresher interface {
	Refresh(ctx context.Context, league model.League) error
}

// Calendar lists the season's gameweeks.
type Calendar interface {
	Gameweeks(ctx context.Context) ([]model.Gameweek, error)
}

// invalidator is implemented by ranking caches.
type invalidator interface {
	Invalidate(leagueID string)
}

// Service orchestrates payout cycles over a ledger.
type Service struct {
	mu sync.RWMutex

	// Core components
	ledger    repository.Ledger
	source    ranking.Source
	calendar  Calendar
	refresher Refresher
	guard     dedupe.Guard
	clock     clockwork.Clock

	// Worker fan-out, set up by Start
	jobs *queue.InMemoryQueue
	pool *workerpool.Pool

	// Configuration
	workerCount int
	queueSize   int
	staleAfter  time.Duration

	// State
	started bool
	reports map[string]CycleReport

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of league workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of queued league jobs.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock replaces the wall clock, for tests.
func WithClock(clock clockwork.Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithRefresher sets the upstream data source. Without one, league data is
// used as stored.
func WithRefresher(r Refresher) Option {
	return func(s *Service) { s.refresher = r }
}

// WithCalendar sets the gameweek calendar used to compute the cutoff.
func WithCalendar(c Calendar) Option {
	return func(s *Service) { s.calendar = c }
}

// WithStaleAfter sets how old league data may get before it is refreshed.
func WithStaleAfter(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.staleAfter = d
		}
	}
}

// WithGuard replaces the in-flight guard.
func WithGuard(g dedupe.Guard) Option {
	return func(s *Service) {
		if g != nil {
			s.guard = g
		}
	}
}

// New constructs a Service over ledger, ranking with source.
func New(ledger repository.Ledger, source ranking.Source, opts ...Option) *Service {
	s := &Service{
		ledger:      ledger,
		source:      source,
		clock:       clockwork.NewRealClock(),
		workerCount: runtime.NumCPU(),
		queueSize:   1024,
		staleAfter:  time.Hour,
		reports:     make(map[string]CycleReport),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.guard == nil {
		s.guard = dedupe.NewInMemoryGuard()
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("payouts")
	}
	return s
}

// Start launches the worker pool used by ProcessAll.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.jobs = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.workerCount, s.jobs,
		workerpool.ProcessorFunc(s.processLeague),
		workerpool.WithLogger(s.logger.Named("worker")),
	)
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "payout service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
	)
	return nil
}

// Stop drains queued jobs and stops the workers.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	pool := s.pool
	s.started = false
	s.jobs, s.pool = nil, nil
	s.mu.Unlock()

	// workers store reports under s.mu while draining
	s.logger.Info(ctx, "stopping payout service...")
	err := pool.Shutdown(ctx)
	s.logger.Info(ctx, "payout service stopped")
	return err
}

// processLeague is the worker entry point.
func (s *Service) processLeague(ctx context.Context, leagueID string) error {
	_, err := s.ProcessPeriodPayouts(ctx, leagueID)
	return err
}

// ProcessAll runs a cycle for every league. Once started, leagues are
// processed concurrently by the worker pool; otherwise sequentially.
// Per-league failures are joined. The returned reports are the ones this
// call produced; a league rejected as busy has none.
func (s *Service) ProcessAll(ctx context.Context) (map[string]CycleReport, error) {
	leagues, err := s.ledger.Leagues(ctx)
	if err != nil {
		return nil, fmt.Errorf("list leagues: %w", err)
	}

	s.mu.RLock()
	jobs := s.jobs
	s.mu.RUnlock()

	since := s.clock.Now()
	out := make(map[string]CycleReport, len(leagues))
	var errs []error
	if jobs == nil {
		for _, l := range leagues {
			r, err := s.ProcessPeriodPayouts(ctx, l.ID)
			if err != nil {
				errs = append(errs, err)
				if errors.Is(err, ErrLeagueBusy) {
					continue
				}
			}
			out[l.ID] = r
		}
		return out, errors.Join(errs...)
	}

	done := make(chan queue.Result, len(leagues))
	pending := 0
	for _, l := range leagues {
		if err := jobs.Enqueue(ctx, queue.Job{LeagueID: l.ID, Done: done}); err != nil {
			errs = append(errs, fmt.Errorf("enqueue league %s: %w", l.ID, err))
			continue
		}
		pending++
	}
wait:
	for pending > 0 {
		select {
		case r := <-done:
			pending--
			if r.Err != nil {
				errs = append(errs, r.Err)
				if errors.Is(r.Err, ErrLeagueBusy) {
					continue
				}
			}
			if rep, ok := s.LastReport(r.LeagueID); ok && !rep.StartedAt.Before(since) {
				out[r.LeagueID] = rep
			}
		case <-ctx.Done():
			errs = append(errs, ctx.Err())
			break wait
		}
	}
	return out, errors.Join(errs...)
}

// LastReport returns the most recent cycle report of a league.
func (s *Service) LastReport(leagueID string) (CycleReport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[leagueID]
	return r, ok
}

func (s *Service) storeReport(r CycleReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[r.LeagueID] = r
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"inFlight":    s.guard.InFlight(ctx),
		"reported":    len(s.reports),
	}
	if s.started {
		stats["queueLength"] = s.jobs.Len(ctx)
	}
	return stats
}
