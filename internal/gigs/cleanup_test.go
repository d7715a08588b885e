package gigs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-gigs/internal/models"
	"ms-gigs/internal/store"
)

func TestAutoCleanupCancelsOnlyExpiredUnstartedGigs(t *testing.T) {
	f := newFixture(t)
	// Now is 2024-01-02 01:30 EST: 5h30m after the 20:00 start.
	f.clk.Set(time.Date(2024, 1, 2, 1, 30, 0, 0, est))

	expired := f.create(t, "a1", func(in *models.CreateGigInput) { in.VenueName = "Expired Hall" })
	f.create(t, "a1", func(in *models.CreateGigInput) { in.VenueName = "Late Show"; in.ScheduledTime = "21:00" })
	confirmed := f.create(t, "a2", func(in *models.CreateGigInput) { in.VenueName = "Old Confirmed"; in.ScheduledDate = "2023-12-30" })
	_, err := f.st.Update(f.ctx, models.CollectionGigs, confirmed.ID, store.Fields{"status": models.GigStatusConfirmed})
	require.NoError(t, err)
	undated := f.create(t, "a2", nil)
	_, err = f.st.Update(f.ctx, models.CollectionGigs, undated.ID, store.Fields{"scheduledTime": ""})
	require.NoError(t, err)

	report, err := f.svc.AutoCleanupExpired(f.ctx)
	require.NoError(t, err)

	assert.Equal(t, 4, report.CheckedCount)
	assert.Equal(t, 2, report.CancelledCount)
	assert.ElementsMatch(t, []string{"Expired Hall", "Old Confirmed"}, report.CancelledGigs)
	assert.Zero(t, report.FailedCount)

	g, err := f.svc.Get(f.ctx, expired.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GigStatusCancelled, g.Status)
	assert.Equal(t, AutoCancelReason, g.CancelReason)
	assert.Equal(t, f.clk.Now().UnixMilli(), g.CancelledAtMs)

	again, err := f.svc.AutoCleanupExpired(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, again.CancelledCount)
}

func TestAutoCleanupSkipsLiveGigs(t *testing.T) {
	f := newFixture(t)
	g := f.live(t, "a1", 20)
	f.clk.Advance(12 * time.Hour)

	report, err := f.svc.AutoCleanupExpired(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, report.CancelledCount)

	stored, err := f.svc.Get(f.ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GigStatusLive, stored.Status)
}

// flakyStore fails updates for one gig so the batch has to carry on past it.
type flakyStore struct {
	store.DocumentStore
	failID string
}

func (s flakyStore) Update(ctx context.Context, collection, id string, fields store.Fields, opts ...store.UpdateOption) (store.Snapshot, error) {
	if id == s.failID {
		return store.Snapshot{}, errors.Join(store.ErrUnavailable, errors.New("connection reset"))
	}
	return s.DocumentStore.Update(ctx, collection, id, fields, opts...)
}

func TestAutoCleanupContinuesPastFailures(t *testing.T) {
	f := newFixture(t)
	bad := f.create(t, "a1", func(in *models.CreateGigInput) { in.VenueName = "Bad" })
	f.create(t, "a1", func(in *models.CreateGigInput) { in.VenueName = "Good" })
	f.clk.Advance(24 * time.Hour)

	f.svc.Store = flakyStore{DocumentStore: f.st, failID: bad.ID}
	report, err := f.svc.AutoCleanupExpired(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.FailedCount)
	assert.Equal(t, []string{"Good"}, report.CancelledGigs)
}
