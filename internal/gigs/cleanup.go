package gigs

import (
	"context"
	"fmt"

	"ms-gigs/internal/events"
	"ms-gigs/internal/models"
	"ms-gigs/internal/store"
	"ms-gigs/internal/timewindow"
)

// AutoCancelReason is written to gigs cancelled by AutoCleanupExpired.
const AutoCancelReason = "Auto-cancelled: Not started within 5 hours of scheduled time"

// AutoCleanupExpired cancels every upcoming or confirmed gig whose scheduled
// start is more than five hours past. A gig that fails to cancel is logged
// and counted; it never stops the rest of the batch.
func (s *Service) AutoCleanupExpired(ctx context.Context) (models.CleanupReport, error) {
	report := models.CleanupReport{CancelledGigs: []string{}}

	snaps, err := s.Store.Query(ctx, models.CollectionGigs, store.Where("status", store.OpIn, []models.GigStatus{
		models.GigStatusUpcoming, models.GigStatusConfirmed,
	}))
	if err != nil {
		return report, store.Translate(err, models.ErrGigNotFound)
	}
	report.CheckedCount = len(snaps)
	now := s.Clock.Now()

	for _, snap := range snaps {
		g, err := decode(snap)
		if err != nil {
			report.FailedCount++
			s.Logger.Error("CLEANUP", fmt.Sprintf("skipping gig %s: %v", snap.ID, err))
			continue
		}
		if !timewindow.IsExpiredUnstarted(g, now, s.location) {
			continue
		}

		cancelled := false
		updated, err := s.mutate(ctx, g.ID, func(cur *models.Gig) (store.Fields, error) {
			cancelled = false
			if !timewindow.IsExpiredUnstarted(cur, now, s.location) {
				return nil, nil
			}
			cancelled = true
			return store.Fields{
				"status":        models.GigStatusCancelled,
				"cancelReason":  AutoCancelReason,
				"cancelledAtMs": now.UnixMilli(),
			}, nil
		})
		if err != nil {
			report.FailedCount++
			s.Logger.Error("CLEANUP", fmt.Sprintf("failed to cancel gig %s: %v", g.ID, err))
			continue
		}
		if !cancelled {
			continue
		}

		report.CancelledCount++
		report.CancelledGigs = append(report.CancelledGigs, updated.VenueName)
		s.Logger.Info("CLEANUP", fmt.Sprintf("cancelled %s (%s, scheduled %s %s)", updated.ID, updated.VenueName, updated.ScheduledDate, updated.ScheduledTime))
		evt := events.New(models.EventGigCancelled, updated, now)
		evt.Reason = AutoCancelReason
		s.publish(ctx, evt)
	}

	s.Logger.Info("CLEANUP", fmt.Sprintf("checked %d gigs, cancelled %d, failed %d", report.CheckedCount, report.CancelledCount, report.FailedCount))
	return report, nil
}
