package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/triage/internal/auth/store"
)

// ExpiredPurger drops deny-list entries for tokens that have expired anyway.
type ExpiredPurger interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Sweeper drops idle rate-limit state.
type Sweeper interface {
	Sweep()
}

// HousekeepingService periodically cleans up expired records so the
// revocation list, pending reset tokens and limiter state stay bounded.
type HousekeepingService struct {
	Store       store.Store
	Revocations ExpiredPurger // optional, defaults to the store's table
	Limiter     Sweeper       // optional
	Logger      *slog.Logger
	Interval    time.Duration
	Now         func() time.Time

	// Internal channels for lifecycle management
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a new housekeeping service with the given interval.
// If interval is 0 or negative, defaults to 1 hour.
func NewHousekeepingService(store store.Store, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}

	return &HousekeepingService{
		Store:    store,
		Logger:   logger,
		Interval: interval,
		Now:      time.Now,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background worker that periodically runs cleanup.
// Call Stop() to gracefully shutdown the worker.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop gracefully shuts down the background worker.
// Blocks until the worker has finished any in-progress cleanup.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Run cleanup immediately on startup
	s.Cleanup(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Cleanup(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Cleanup runs one pass. Each step is independent; a failure in one does
// not stop the others. It returns the number of steps that succeeded.
func (s *HousekeepingService) Cleanup(ctx context.Context) int {
	now := s.Now()
	s.Logger.Debug("starting housekeeping cleanup")

	var ok int

	revocations := s.Revocations
	if revocations == nil {
		revocations = s.Store.RevokedTokens()
	}
	if n, err := revocations.DeleteExpired(ctx, now); err != nil {
		s.Logger.Error("failed to delete expired revoked tokens", "error", err)
	} else {
		s.Logger.Debug("deleted expired revoked tokens", "count", n)
		ok++
	}

	if n, err := s.Store.Users().ClearExpiredResetTokens(ctx, now); err != nil {
		s.Logger.Error("failed to clear expired reset tokens", "error", err)
	} else {
		s.Logger.Debug("cleared expired reset tokens", "count", n)
		ok++
	}

	if s.Limiter != nil {
		s.Limiter.Sweep()
		ok++
	}

	s.Logger.Info("housekeeping cleanup completed", "successful_cleanups", ok)
	return ok
}
