package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const DefaultCleanupInterval = 6 * time.Hour

// RetentionScheduler runs the retention manager in the background.  It is
// safe to stop via its context or the Stop method.
//
// A policy that limits nothing disables the scheduler.
type RetentionScheduler struct {
	manager  *RetentionManager
	interval time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger
	done     chan struct{}

	mu     sync.Mutex
	cancel context.CancelFunc // nil until the loop is started
}

// SchedulerConfig holds the parameters for NewRetentionScheduler.
type SchedulerConfig struct {
	// Interval is how often cleanup runs.  Defaults to 6h.
	Interval time.Duration
	Clock    clockwork.Clock
}

// NewRetentionScheduler creates a scheduler but does not start it.
func NewRetentionScheduler(m *RetentionManager, cfg SchedulerConfig, logger *slog.Logger) *RetentionScheduler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &RetentionScheduler{
		manager:  m,
		interval: interval,
		clock:    clock,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start runs a cleanup immediately and then on every interval until ctx is
// cancelled or Stop is called.
func (s *RetentionScheduler) Start(ctx context.Context) {
	policy := s.manager.Policy()
	if !policy.Enabled() {
		s.logger.Info("retention scheduler disabled (no retention limits)")
		close(s.done)
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	go s.loop(ctx)

	s.logger.Info("retention scheduler started",
		slog.Int("retention_days", policy.RetentionDays),
		slog.Int("max_logs_per_profile", policy.MaxLogsPerProfile),
		slog.Duration("interval", s.interval))
}

// Stop signals the scheduler to exit and waits for it to finish.  It
// returns at once if the loop was never started.
func (s *RetentionScheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-s.done
}

func (s *RetentionScheduler) loop(ctx context.Context) {
	defer close(s.done)

	// Startup run clears any backlog.
	s.run(ctx)

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.run(ctx)
		}
	}
}

func (s *RetentionScheduler) run(ctx context.Context) {
	_, err := s.manager.ExecuteManualCleanup(ctx)
	if errors.Is(err, ErrCleanupRunning) {
		s.logger.Info("scheduled retention cleanup skipped, a run is already in flight")
		return
	}
	if err != nil {
		s.logger.Error("scheduled retention cleanup error", slog.Any("error", err))
	}
}
