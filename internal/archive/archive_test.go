package archive

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"ms-gigs/internal/clock"
	"ms-gigs/internal/models"
)

var t0 = time.Date(2024, 3, 9, 23, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, DriverSQLite, "file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.ResetModel(ctx, (*models.GigArchive)(nil), (*models.ArchivedSong)(nil)))
	require.NoError(t, EnsureSchema(ctx, db))
	return db
}

func endedGig() *models.Gig {
	songs := []models.Song{
		{ID: 1, Title: "One", Artist: "Band"},
		{ID: 2, Title: "Two", Artist: "Band"},
		{ID: 3, Title: "Three", Artist: "Band"},
		{ID: 4, Title: "Four", Artist: "Band"},
	}
	return &models.Gig{
		ID:                "g1",
		ArtistID:          "a1",
		VenueName:         "Cellar",
		Status:            models.GigStatusEnded,
		ActualStartTimeMs: t0.Add(-3 * time.Hour).UnixMilli(),
		EndedAtMs:         t0.UnixMilli(),
		EndReason:         "Gig time expired",
		MasterPlaylist:    songs,
		QueuedSongs:       songs[:3],
		PlayedSongs:       []int{2, 4},
		Votes:             map[int]int{1: 2, 3: 5},
		SongRequests: []models.Request{
			{ID: "r1", SongID: 1, Status: models.RequestAccepted},
			{ID: "r2", SongID: 4, Status: models.RequestRejected},
		},
		AudienceTracking: models.AudienceTracking{TotalJoins: 17},
	}
}

func TestSummarize(t *testing.T) {
	a := Summarize(endedGig(), t0.Add(time.Minute))

	assert.Equal(t, "g1", a.GigID)
	assert.Equal(t, 3, a.QueueSize)
	assert.Equal(t, 2, a.PlayedCount)
	assert.Equal(t, 7, a.TotalVotes)
	assert.Equal(t, 2, a.RequestCount)
	assert.Equal(t, 17, a.PeakAudience)
	assert.True(t, a.EndedAt.Equal(t0))

	require.Len(t, a.Songs, 4)
	var order []int
	for _, s := range a.Songs {
		order = append(order, s.SongID)
	}
	// accepted request, then voted, then unvoted; 4 was played after leaving the queue
	assert.Equal(t, []int{1, 3, 2, 4}, order)
	assert.True(t, a.Songs[0].Requested)
	assert.True(t, a.Songs[2].Played)
	assert.Equal(t, 4, a.Songs[3].Position)
}

func TestSaveAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(setupTestDB(t), clock.NewFake(t0), nil)

	require.NoError(t, repo.Save(ctx, Summarize(endedGig(), t0)))
	got, err := repo.Get(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "Cellar", got.VenueName)
	require.Len(t, got.Songs, 4)
	assert.Equal(t, 1, got.Songs[0].SongID)
	assert.Equal(t, 5, got.Songs[1].Votes)

	// Saving again replaces rather than duplicates.
	g := endedGig()
	g.EndReason = "encore"
	g.QueuedSongs = g.QueuedSongs[:1]
	g.PlayedSongs = nil
	require.NoError(t, repo.Save(ctx, Summarize(g, t0)))
	got, err = repo.Get(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "encore", got.EndReason)
	assert.Len(t, got.Songs, 1)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotArchived)
}

func TestListByArtist(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(setupTestDB(t), clock.NewFake(t0), nil)

	for i, id := range []string{"old", "new"} {
		g := endedGig()
		g.ID = id
		g.EndedAtMs = t0.Add(time.Duration(i) * 24 * time.Hour).UnixMilli()
		require.NoError(t, repo.Save(ctx, Summarize(g, t0)))
	}
	other := endedGig()
	other.ID, other.ArtistID = "x", "a2"
	require.NoError(t, repo.Save(ctx, Summarize(other, t0)))

	list, err := repo.ListByArtist(ctx, "a1", 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].GigID)

	none, err := repo.ListByArtist(ctx, "nobody", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestHandleArchivesEndedEvents(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(setupTestDB(t), clock.NewFake(t0), nil)

	require.NoError(t, repo.Handle(ctx, models.GigEvent{Type: models.EventGigLive, GigID: "g1", Gig: endedGig()}))
	_, err := repo.Get(ctx, "g1")
	assert.ErrorIs(t, err, ErrNotArchived)

	require.NoError(t, repo.Handle(ctx, models.GigEvent{Type: models.EventGigEnded, GigID: "g1"}))
	require.NoError(t, repo.Handle(ctx, models.GigEvent{Type: models.EventGigEnded, GigID: "g1", Gig: endedGig()}))
	got, err := repo.Get(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, 7, got.TotalVotes)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "")
	assert.Error(t, err)
}
