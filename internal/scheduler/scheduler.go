// Package scheduler runs the periodic cleanup of gigs that never went live.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"ms-gigs/internal/clock"
	"ms-gigs/internal/logger"
	"ms-gigs/internal/models"
)

const DefaultCleanupInterval = time.Hour

type Cleaner interface {
	AutoCleanupExpired(ctx context.Context) (models.CleanupReport, error)
}

type CleanupScheduler struct {
	Cleaner    Cleaner
	Clock      clock.Clock
	Logger     *logger.Logger
	Interval   time.Duration
	RunOnStart bool
}

func NewCleanupScheduler(c Cleaner, clk clock.Clock, log *logger.Logger, interval time.Duration) *CleanupScheduler {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	if log == nil {
		log = logger.NewDiscard()
	}
	return &CleanupScheduler{Cleaner: c, Clock: clk, Logger: log, Interval: interval, RunOnStart: true}
}

// Run blocks until ctx is done. A failed pass is logged and retried on the
// next tick.
func (s *CleanupScheduler) Run(ctx context.Context) {
	ticker := s.Clock.NewTicker(s.Interval)
	defer ticker.Stop()
	s.Logger.LogProcess("CLEANUP_SCHEDULER", fmt.Sprintf("started, every %s", s.Interval))

	if s.RunOnStart {
		s.RunOnce(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			s.Logger.LogProcess("CLEANUP_SCHEDULER", "stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

func (s *CleanupScheduler) RunOnce(ctx context.Context) (models.CleanupReport, error) {
	report, err := s.Cleaner.AutoCleanupExpired(ctx)
	if err != nil {
		s.Logger.Error("CLEANUP", fmt.Sprintf("cleanup pass failed: %v", err))
		return report, err
	}
	s.Logger.Debug("CLEANUP", fmt.Sprintf("pass done: checked %d gigs, cancelled %d, failed %d",
		report.CheckedCount, report.CancelledCount, report.FailedCount))
	return report, nil
}
