package swap

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-gigs/internal/clock"
	"ms-gigs/internal/events"
	"ms-gigs/internal/models"
	"ms-gigs/internal/store/memory"
)

func songs(from, to int) []models.Song {
	var out []models.Song
	for i := from; i <= to; i++ {
		out = append(out, models.Song{ID: i, Title: fmt.Sprintf("Song %d", i)})
	}
	return out
}

func ids(songs []models.Song) []int {
	out := make([]int, len(songs))
	for i, s := range songs {
		out[i] = s.ID
	}
	return out
}

func gig() *models.Gig {
	return &models.Gig{
		ID:             "g1",
		Status:         models.GigStatusLive,
		MasterPlaylist: songs(1, 6),
		QueuedSongs:    songs(1, 4),
		MaxQueueSize:   20,
		Votes:          map[int]int{},
	}
}

func TestSwapPromotesStrictlyBetterSong(t *testing.T) {
	g := gig()
	g.Votes = map[int]int{1: 3, 2: 1, 3: 2, 4: 1, 5: 0, 6: 2}

	res := TrySwap(g)
	require.True(t, res.Swapped)
	assert.Equal(t, 2, res.Removed.ID, "first of the tied lowest")
	assert.Equal(t, 6, res.Promoted.ID)
	assert.Equal(t, []int{1, 3, 6, 4}, ids(res.Queue))
	assert.Equal(t, []int{1, 2, 3, 4}, ids(g.QueuedSongs), "input untouched")
}

func TestSwapNeverOnEqualVotes(t *testing.T) {
	g := gig()
	g.Votes = map[int]int{1: 2, 2: 2, 3: 2, 4: 2, 5: 2, 6: 2}
	assert.False(t, TrySwap(g).Swapped)

	g.Votes = map[int]int{}
	assert.False(t, TrySwap(g).Swapped)
}

func TestSwapIgnoresPlayedSongs(t *testing.T) {
	g := gig()
	g.Votes = map[int]int{1: 5, 2: 5, 3: 5, 4: 0, 5: 1}
	g.PlayedSongs = []int{4}

	res := TrySwap(g)
	assert.False(t, res.Swapped, "played song with zero votes is not a candidate")
}

func TestSwapNoCandidates(t *testing.T) {
	g := gig()
	g.PlayedSongs = []int{1, 2, 3, 4}
	g.Votes = map[int]int{5: 10}
	assert.False(t, TrySwap(g).Swapped)

	g = gig()
	g.MasterPlaylist = songs(1, 4)
	g.Votes = map[int]int{1: 10}
	assert.False(t, TrySwap(g).Swapped)
}

func TestSwapIsStableWhenRepeated(t *testing.T) {
	g := gig()
	g.Votes = map[int]int{1: 1, 2: 1, 3: 1, 4: 1, 5: 4, 6: 3}

	first := TrySwap(g)
	require.True(t, first.Swapped)
	g.QueuedSongs = first.Queue

	second := TrySwap(g)
	require.True(t, second.Swapped, "6 still beats a 1-vote song")
	g.QueuedSongs = second.Queue

	third := TrySwap(g)
	assert.False(t, third.Swapped)
	assert.Equal(t, ids(g.QueuedSongs), ids(third.Queue))
}

func TestEngineRunPersistsAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	g := gig()
	g.Votes = map[int]int{1: 2, 2: 2, 3: 2, 4: 0, 5: 7}
	require.NoError(t, st.Set(ctx, models.CollectionGigs, g.ID, g))

	bus := events.NewLocalBus(nil)
	var swaps int
	bus.On(func(ctx context.Context, evt models.GigEvent) error {
		swaps++
		assert.Equal(t, 5, evt.SongID)
		return nil
	}, models.EventQueueSwapped)

	e := NewEngine(st, bus, clock.NewFake(time.Unix(0, 0)), nil)
	res, err := e.Run(ctx, "g1")
	require.NoError(t, err)
	assert.True(t, res.Swapped)

	res, err = e.Run(ctx, "g1")
	require.NoError(t, err)
	assert.False(t, res.Swapped)
	assert.Equal(t, 1, swaps)

	snap, err := st.Get(ctx, models.CollectionGigs, "g1")
	require.NoError(t, err)
	var stored models.Gig
	require.NoError(t, snap.DataTo(&stored))
	assert.Equal(t, []int{5, 1, 2, 3}, ids(stored.QueuedSongs))
}

func TestEngineSkipsGigsThatAreNotLive(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	g := gig()
	g.Status = models.GigStatusEnded
	g.Votes = map[int]int{5: 9}
	require.NoError(t, st.Set(ctx, models.CollectionGigs, g.ID, g))

	res, err := NewEngine(st, nil, clock.NewFake(time.Unix(0, 0)), nil).Run(ctx, "g1")
	require.NoError(t, err)
	assert.False(t, res.Swapped)
}
