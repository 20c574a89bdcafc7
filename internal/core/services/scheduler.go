package services

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/helpdesk-labs/concierge-core/internal/core/domain"
	"github.com/helpdesk-labs/concierge-core/internal/core/ports/driven"
	"github.com/helpdesk-labs/concierge-core/internal/core/ports/driving"
)

// FreshnessScheduler periodically checks tracked source files and
// triggers a refresh when their fingerprints changed.
//
// Runs never overlap: a check is skipped while a previous one is still
// in progress. For multi-instance deployments, configure a
// DistributedLock so only one instance refreshes per cycle.
type FreshnessScheduler struct {
	ingest driving.IngestService
	lock   driven.DistributedLock
	logger *slog.Logger

	// Internal state
	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	interval time.Duration

	// Overlap guard: non-zero while a check is in progress
	checking atomic.Bool

	lockTTL time.Duration
}

// FreshnessSchedulerConfig holds configuration for the scheduler.
type FreshnessSchedulerConfig struct {
	Ingest   driving.IngestService
	Lock     driven.DistributedLock // Optional: multi-instance coordination
	Logger   *slog.Logger
	Interval time.Duration // How often to check tracked files (default: 6h)
	LockTTL  time.Duration // TTL for the distributed lock (default: 2x interval poll)
}

// NewFreshnessScheduler creates a new scheduler.
func NewFreshnessScheduler(cfg FreshnessSchedulerConfig) *FreshnessScheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	interval := cfg.Interval
	if interval == 0 {
		interval = 6 * time.Hour
	}

	lockTTL := cfg.LockTTL
	if lockTTL == 0 {
		lockTTL = 10 * time.Minute
	}

	return &FreshnessScheduler{
		ingest:   cfg.Ingest,
		lock:     cfg.Lock,
		logger:   logger,
		interval: interval,
		lockTTL:  lockTTL,
	}
}

// Start begins the scheduler loop. Idempotent: calling Start on a
// running scheduler is a no-op, so repeat registrations never stack
// duplicate timers.
func (s *FreshnessScheduler) Start(ctx context.Context) bool {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return false
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	s.logger.Info("freshness scheduler starting", "interval", s.interval)

	go s.run(ctx)
	return true
}

// Stop gracefully stops the scheduler.
func (s *FreshnessScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	s.mu.Unlock()

	<-s.doneCh

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info("freshness scheduler stopped")
}

// Running reports whether the scheduler loop is active.
func (s *FreshnessScheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// TriggerNow runs a freshness check immediately, honoring the overlap
// guard. Returns the refresh result, nil when nothing changed, or
// ErrRefreshInProgress when a check is already running.
func (s *FreshnessScheduler) TriggerNow(ctx context.Context) (*domain.IngestResult, error) {
	if !s.checking.CompareAndSwap(false, true) {
		return nil, domain.ErrRefreshInProgress
	}
	defer s.checking.Store(false)
	return s.checkLocked(ctx)
}

// run is the main scheduler loop.
func (s *FreshnessScheduler) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("freshness scheduler context cancelled")
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.check(ctx)
		}
	}
}

// check runs one cycle, skipping if a previous cycle is still running.
func (s *FreshnessScheduler) check(ctx context.Context) {
	if !s.checking.CompareAndSwap(false, true) {
		s.logger.Warn("previous freshness check still running, skipping cycle")
		return
	}
	defer s.checking.Store(false)

	if _, err := s.checkLocked(ctx); err != nil {
		s.logger.Error("freshness check failed", "error", err)
	}
}

// checkLocked acquires the distributed lock if configured and runs the
// refresh decision. Caller holds the in-process overlap guard.
func (s *FreshnessScheduler) checkLocked(ctx context.Context) (*domain.IngestResult, error) {
	if s.lock != nil {
		acquired, err := s.lock.Acquire(ctx, "freshness", s.lockTTL)
		if err != nil {
			s.logger.Warn("failed to acquire freshness lock", "error", err)
			return nil, err
		}
		if !acquired {
			s.logger.Debug("freshness lock held by another instance, skipping cycle")
			return nil, nil
		}
		defer func() {
			if err := s.lock.Release(ctx, "freshness"); err != nil {
				s.logger.Warn("failed to release freshness lock", "error", err)
			}
		}()
	}

	result, err := s.ingest.RefreshIfChanged(ctx)
	if err != nil {
		return nil, err
	}
	if result != nil {
		s.logger.Info("index refreshed",
			"documents", result.Documents,
			"embedded", result.Embedded,
			"failed", result.Failed,
		)
	}
	return result, nil
}
