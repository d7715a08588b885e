package presence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-gigs/internal/clock"
	"ms-gigs/internal/models"
	"ms-gigs/internal/store/memory"
)

var t0 = time.Date(2024, 1, 1, 21, 0, 0, 0, time.UTC)

func TestHeartbeatCountsJoinsOnce(t *testing.T) {
	var at models.AudienceTracking

	at, first := ApplyHeartbeat(at, "u1", t0)
	assert.True(t, first)
	at, first = ApplyHeartbeat(at, "u1", t0.Add(30*time.Second))
	assert.False(t, first)
	at, _ = ApplyHeartbeat(at, "u2", t0.Add(30*time.Second))

	assert.Equal(t, 2, at.TotalJoins)
	assert.Equal(t, 2, at.CurrentlyActive)
	assert.Equal(t, t0.UnixMilli(), at.JoinedUsers["u1"].FirstJoin)
	assert.Equal(t, t0.Add(30*time.Second).UnixMilli(), at.JoinedUsers["u1"].LastActive)
}

func TestStaleUsersDropOutOfActiveCount(t *testing.T) {
	at, _ := ApplyHeartbeat(models.AudienceTracking{}, "u1", t0)
	at, _ = ApplyHeartbeat(at, "u2", t0.Add(61*time.Second))

	assert.Equal(t, 1, at.CurrentlyActive)
	assert.True(t, at.JoinedUsers["u1"].IsActive, "flag stays; the window decides")
}

func TestDeparture(t *testing.T) {
	at, _ := ApplyHeartbeat(models.AudienceTracking{}, "u1", t0)
	at, _ = ApplyHeartbeat(at, "u2", t0)

	left := ApplyDeparture(at, "u1", t0.Add(time.Second))
	assert.False(t, left.JoinedUsers["u1"].IsActive)
	assert.Equal(t, 1, left.CurrentlyActive)
	assert.Equal(t, 2, left.TotalJoins)
	assert.True(t, at.JoinedUsers["u1"].IsActive, "input untouched")

	same := ApplyDeparture(left, "ghost", t0)
	assert.Equal(t, 1, same.CurrentlyActive)
}

func TestTrackerHeartbeatAndLeave(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	g := &models.Gig{ID: "g1", Status: models.GigStatusLive, QueuedSongs: []models.Song{{ID: 1}}, Votes: map[int]int{1: 3}}
	require.NoError(t, st.Set(ctx, models.CollectionGigs, "g1", g))
	clk := clock.NewFake(t0)
	tr := NewTracker(st, clk, nil)

	_, err := tr.Heartbeat(ctx, "g1", "u1")
	require.NoError(t, err)
	clk.Advance(30 * time.Second)
	at, err := tr.Heartbeat(ctx, "g1", "u2")
	require.NoError(t, err)
	assert.Equal(t, 2, at.CurrentlyActive)

	require.NoError(t, tr.Leave(ctx, "g1", "u2"))

	snap, err := st.Get(ctx, models.CollectionGigs, "g1")
	require.NoError(t, err)
	var stored models.Gig
	require.NoError(t, snap.DataTo(&stored))
	assert.Equal(t, 2, stored.AudienceTracking.TotalJoins)
	assert.Equal(t, 1, stored.AudienceTracking.CurrentlyActive)
	assert.False(t, stored.AudienceTracking.JoinedUsers["u2"].IsActive)
	assert.Equal(t, map[int]int{1: 3}, stored.Votes, "presence never touches ranking data")
	assert.Equal(t, models.GigStatusLive, stored.Status)
}

func TestTrackerRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	require.NoError(t, st.Set(ctx, models.CollectionGigs, "g1", &models.Gig{ID: "g1", Status: models.GigStatusEnded}))
	tr := NewTracker(st, clock.NewFake(t0), nil)

	_, err := tr.Heartbeat(ctx, "g1", "a.b")
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = tr.Heartbeat(ctx, "g1", "u1")
	assert.ErrorIs(t, err, models.ErrGigNotLive)
	_, err = tr.Heartbeat(ctx, "missing", "u1")
	assert.ErrorIs(t, err, models.ErrGigNotFound)
	assert.NoError(t, tr.Leave(ctx, "g1", "never-joined"))
}
