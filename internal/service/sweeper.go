package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// DefaultSweepInterval is how often expired pending links are purged.
const DefaultSweepInterval = time.Hour

// ExpiredLinkPurger deletes pending links whose expiry has passed.
type ExpiredLinkPurger interface {
	DeleteExpiredPendingLinks(ctx context.Context, now time.Time) (int64, error)
}

// LinkSweeper periodically purges expired pending links. Expired codes are
// already unusable; sweeping only bounds table growth.
type LinkSweeper struct {
	store    ExpiredLinkPurger
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger

	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	mu      sync.Mutex
}

// NewLinkSweeper creates a LinkSweeper. A non-positive interval uses
// DefaultSweepInterval.
func NewLinkSweeper(store ExpiredLinkPurger, interval time.Duration, logger *slog.Logger) *LinkSweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &LinkSweeper{
		store:    store,
		interval: interval,
		now:      time.Now,
		logger:   logger.With("component", "link.sweeper"),
	}
}

// Run sweeps once immediately and then every interval until ctx is
// cancelled or Shutdown is called.
func (s *LinkSweeper) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("sweeper already started")
	}
	s.started = true
	s.done = make(chan struct{})
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	defer close(s.done)

	s.logger.Info("link sweeper started", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.sweepOnce(ctx)
		select {
		case <-ctx.Done():
			s.logger.Info("link sweeper stopping")
			return nil
		case <-ticker.C:
		}
	}
}

// Shutdown stops the sweeper and waits for an in-flight sweep to finish.
// It has the server.ShutdownFunc signature.
func (s *LinkSweeper) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.logger.Warn("link sweeper shutdown timed out")
		return ctx.Err()
	}
}

func (s *LinkSweeper) sweepOnce(ctx context.Context) {
	n, err := s.store.DeleteExpiredPendingLinks(ctx, s.now())
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("sweep failed", "error", err)
		}
		return
	}
	if n > 0 {
		s.logger.Info("expired pending links purged", "count", n)
	}
}
