package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type expiredAnnouncementDeleter interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type sweepObserver interface {
	ObserveSweep(purged int64, err error)
}

// AnnouncementSweeper periodically purges announcements whose expiry has
// elapsed. Each sweep is a single bulk delete, so running it again
// immediately is a no-op. Failures are logged and swallowed; the next tick
// is the retry.
type AnnouncementSweeper struct {
	repo     expiredAnnouncementDeleter
	interval time.Duration
	logger   *zap.Logger
	metrics  sweepObserver
	now      func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewAnnouncementSweeper constructs the sweeper.
func NewAnnouncementSweeper(repo expiredAnnouncementDeleter, interval time.Duration, logger *zap.Logger) *AnnouncementSweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnnouncementSweeper{repo: repo, interval: interval, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// SetMetrics attaches an optional sweep metrics collector.
func (s *AnnouncementSweeper) SetMetrics(metrics sweepObserver) {
	s.metrics = metrics
}

// Start launches the sweep loop on its own goroutine. Calling Start on a
// running sweeper is a no-op.
func (s *AnnouncementSweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		s.logger.Info("announcement sweeper started", zap.Duration("interval", s.interval))
		for {
			select {
			case <-ctx.Done():
				s.logger.Info("announcement sweeper stopped")
				return
			case <-ticker.C:
				s.sweep(ctx)
			}
		}
	}()
}

// Stop halts the loop and waits for the in-flight sweep to finish.
func (s *AnnouncementSweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	done := s.done
	s.running = false
	s.mu.Unlock()

	cancel()
	<-done
}

// RunOnce performs a single sweep and returns the purge count. Unlike the
// loop, callers get the error back; the admin purge endpoint uses this.
func (s *AnnouncementSweeper) RunOnce(ctx context.Context) (int64, error) {
	purged, err := s.repo.DeleteExpired(ctx, s.now())
	if s.metrics != nil {
		s.metrics.ObserveSweep(purged, err)
	}
	if err != nil {
		return 0, err
	}
	if purged > 0 {
		s.logger.Info("purged expired announcements", zap.Int64("count", purged))
	}
	return purged, nil
}

func (s *AnnouncementSweeper) sweep(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error("announcement sweep failed", zap.Error(err))
	}
}
