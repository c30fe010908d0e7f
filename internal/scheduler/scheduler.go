package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/weather-etl/internal/weather"
)

// CycleRunner runs one ETL cycle.
type CycleRunner interface {
	RunCycle(ctx context.Context) weather.CycleResult
}

// Scheduler periodically runs ETL cycles on a cron schedule. At most one cycle
// is in flight; a tick that fires while a cycle is running is skipped.
type Scheduler struct {
	scheduler    *gocron.Scheduler
	runner       CycleRunner
	cron         string
	cycleTimeout time.Duration
	logger       *slog.Logger

	mu      sync.RWMutex
	last    weather.CycleResult
	hasLast bool
	runs    int
}

// New creates a new Scheduler. cron is a 5-field expression evaluated in UTC.
func New(cron string, cycleTimeout time.Duration, runner CycleRunner, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if cycleTimeout <= 0 {
		cycleTimeout = 30 * time.Second
	}
	return &Scheduler{
		scheduler:    gocron.NewScheduler(time.UTC),
		runner:       runner,
		cron:         cron,
		cycleTimeout: cycleTimeout,
		logger:       logger.With("component", "scheduler"),
	}
}

// Start schedules the cycle job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Cron(s.cron).SingletonMode().Do(func() {
		s.RunNow(context.Background())
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info("scheduler started", "cron", s.cron)
	return nil
}

// RunNow runs one cycle synchronously and records its result.
func (s *Scheduler) RunNow(ctx context.Context) weather.CycleResult {
	ctx, cancel := context.WithTimeout(ctx, s.cycleTimeout)
	defer cancel()

	s.logger.Debug("running etl cycle")
	res := s.runner.RunCycle(ctx)

	s.mu.Lock()
	s.last = res
	s.hasLast = true
	s.runs++
	s.mu.Unlock()

	return res
}

// LastResult returns the outcome of the most recent cycle, if any ran.
func (s *Scheduler) LastResult() (weather.CycleResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.hasLast
}

// Runs returns how many cycles have completed.
func (s *Scheduler) Runs() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runs
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
