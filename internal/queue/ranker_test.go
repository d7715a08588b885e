package queue

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-gigs/internal/models"
)

func songs(n int) []models.Song {
	out := make([]models.Song, n)
	for i := range out {
		out[i] = models.Song{ID: i + 1, Title: fmt.Sprintf("Song %d", i+1), Artist: "Band"}
	}
	return out
}

func ids(list []models.Song) []int {
	out := make([]int, len(list))
	for i, s := range list {
		out[i] = s.ID
	}
	return out
}

func TestRank_MoreVotesFirst(t *testing.T) {
	// A (id 1) voted twice, B (id 2) once
	got := Rank(songs(3), map[int]int{1: 2, 2: 1}, nil, nil)
	assert.Equal(t, []int{1, 2, 3}, ids(got))

	got = Rank(songs(3), map[int]int{1: 1, 2: 2}, nil, nil)
	assert.Equal(t, []int{2, 1, 3}, ids(got))
}

func TestRank_AcceptedRequestBeatsVotes(t *testing.T) {
	got := Rank(songs(3), map[int]int{2: 1000}, map[int]bool{3: true}, nil)
	assert.Equal(t, []int{3, 2, 1}, ids(got))
}

func TestRank_TieBreaksOnEarlierVote(t *testing.T) {
	votes := map[int]int{1: 3, 2: 3, 3: 3}
	times := map[int]string{
		1: "2024-01-01T20:30:00Z",
		2: "2024-01-01T20:10:00Z",
	}
	got := Rank(songs(4), votes, nil, times)
	// 2 voted earliest, 1 next, 3 has no recorded time
	assert.Equal(t, []int{2, 1, 3, 4}, ids(got))
}

func TestRank_UnvotedKeepOriginalOrder(t *testing.T) {
	in := []models.Song{{ID: 9}, {ID: 4}, {ID: 7}, {ID: 1}}
	got := Rank(in, map[int]int{7: 1}, nil, nil)
	assert.Equal(t, []int{7, 9, 4, 1}, ids(got))
}

func TestRank_Deterministic(t *testing.T) {
	in := songs(30)
	votes := map[int]int{3: 2, 5: 2, 8: 7, 12: 1, 20: 2}
	times := map[int]string{3: "2024-01-01T20:00:00Z", 5: "2024-01-01T20:00:00Z", 20: "2024-01-01T19:00:00Z"}
	accepted := map[int]bool{25: true, 12: true}

	first := Rank(in, votes, accepted, times)
	second := Rank(in, votes, accepted, times)
	assert.Equal(t, first, second)
	assert.Equal(t, []int{12, 25, 8, 20, 3, 5}, ids(first[:6]))
	assert.Len(t, first, 30)
}

func TestRank_DoesNotMutateInput(t *testing.T) {
	in := songs(5)
	_ = Rank(in, map[int]int{5: 3}, nil, nil)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, ids(in))
}

func TestRankRequestsFirst(t *testing.T) {
	in := songs(5)
	votes := map[int]int{1: 10, 4: 2, 5: 3}
	got := RankRequestsFirst(in, votes, map[int]bool{4: true, 5: true})
	assert.Equal(t, []int{5, 4, 1, 2, 3}, ids(got))
}

func TestEvictLastUnplayed(t *testing.T) {
	in := songs(5)
	out, evicted, ok := EvictLastUnplayed(in, map[int]bool{5: true})
	require.True(t, ok)
	assert.Equal(t, 4, evicted.ID)
	assert.Equal(t, []int{1, 2, 3, 5}, ids(out))
	assert.Len(t, in, 5)

	_, _, ok = EvictLastUnplayed(songs(2), map[int]bool{1: true, 2: true})
	assert.False(t, ok)
}

func TestInitial(t *testing.T) {
	master := songs(30)

	t.Run("whole library when no setlist", func(t *testing.T) {
		got := Initial(master[:20], nil, 20)
		assert.Equal(t, ids(master[:20]), ids(got))
	})

	t.Run("setlist topped up from library", func(t *testing.T) {
		setlist := []models.Song{master[29], master[28]}
		got := Initial(master, setlist, 20)
		require.Len(t, got, 20)
		assert.Equal(t, []int{30, 29, 1, 2}, ids(got[:4]))
	})

	t.Run("setlist truncated", func(t *testing.T) {
		got := Initial(master, master, 20)
		assert.Len(t, got, 20)
	})

	t.Run("small library", func(t *testing.T) {
		got := Initial(master[:7], nil, 20)
		assert.Len(t, got, 7)
	})
}

func TestRankGig(t *testing.T) {
	g := &models.Gig{
		QueuedSongs:  songs(3),
		Votes:        map[int]int{2: 1},
		SongRequests: []models.Request{{ID: "r1", SongID: 3, Status: models.RequestAccepted}, {ID: "r2", SongID: 1, Status: models.RequestRejected}},
	}
	assert.Equal(t, []int{3, 2, 1}, ids(RankGig(g)))
}
