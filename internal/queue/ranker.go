// Package queue holds the pure ordering rules for a gig's song queue.
package queue

import (
	"sort"
	"time"

	"ms-gigs/internal/models"
)

// Rank orders songs for display: accepted-request songs, then voted songs,
// then unvoted songs in their original order. Within the first two buckets
// higher votes win and equal votes go to the song voted on earliest; songs
// with no recorded vote time sort after those with one.
func Rank(songs []models.Song, votes map[int]int, accepted map[int]bool, lastVoteTime map[int]string) []models.Song {
	var requested, voted, unvoted []models.Song
	for _, s := range songs {
		switch {
		case accepted[s.ID]:
			requested = append(requested, s)
		case votes[s.ID] > 0:
			voted = append(voted, s)
		default:
			unvoted = append(unvoted, s)
		}
	}

	times := parseVoteTimes(lastVoteTime)
	byMomentum := func(bucket []models.Song) {
		sort.SliceStable(bucket, func(i, j int) bool {
			a, b := bucket[i], bucket[j]
			if votes[a.ID] != votes[b.ID] {
				return votes[a.ID] > votes[b.ID]
			}
			ta, okA := times[a.ID]
			tb, okB := times[b.ID]
			switch {
			case okA && okB:
				return ta.Before(tb)
			case okA != okB:
				return okA
			default:
				return false
			}
		})
	}
	byMomentum(requested)
	byMomentum(voted)

	out := make([]models.Song, 0, len(songs))
	out = append(out, requested...)
	out = append(out, voted...)
	return append(out, unvoted...)
}

func parseVoteTimes(raw map[int]string) map[int]time.Time {
	out := make(map[int]time.Time, len(raw))
	for id, s := range raw {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			out[id] = t
		}
	}
	return out
}

// RankRequestsFirst is the ordering applied to queuedSongs when a request is
// accepted: accepted-request songs strictly first, then everything by votes.
// Equal keys keep their relative order.
func RankRequestsFirst(songs []models.Song, votes map[int]int, accepted map[int]bool) []models.Song {
	out := append([]models.Song(nil), songs...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if accepted[a.ID] != accepted[b.ID] {
			return accepted[a.ID]
		}
		return votes[a.ID] > votes[b.ID]
	})
	return out
}

// ByVotes re-sorts a queue by votes descending, stable on ties.
func ByVotes(songs []models.Song, votes map[int]int) []models.Song {
	out := append([]models.Song(nil), songs...)
	sort.SliceStable(out, func(i, j int) bool {
		return votes[out[i].ID] > votes[out[j].ID]
	})
	return out
}

// EvictLastUnplayed removes the last unplayed song by queue position. It
// reports false when every queued song has been played.
func EvictLastUnplayed(songs []models.Song, played map[int]bool) ([]models.Song, models.Song, bool) {
	for i := len(songs) - 1; i >= 0; i-- {
		if played[songs[i].ID] {
			continue
		}
		evicted := songs[i]
		out := make([]models.Song, 0, len(songs)-1)
		out = append(out, songs[:i]...)
		out = append(out, songs[i+1:]...)
		return out, evicted, true
	}
	return songs, models.Song{}, false
}

// Initial builds the queue a gig starts its live session with: the setlist
// (or the whole library when no setlist is assigned), topped up from the rest
// of the library and truncated to maxSize.
func Initial(master, setlist []models.Song, maxSize int) []models.Song {
	base := setlist
	if len(base) == 0 {
		base = master
	}
	seen := make(map[int]bool, maxSize)
	out := make([]models.Song, 0, maxSize)
	add := func(s models.Song) {
		if len(out) >= maxSize || seen[s.ID] {
			return
		}
		seen[s.ID] = true
		out = append(out, s)
	}
	for _, s := range base {
		add(s)
	}
	for _, s := range master {
		add(s)
	}
	return out
}

// AcceptedSongIDs is the set of song ids with an accepted request.
func AcceptedSongIDs(requests []models.Request) map[int]bool {
	out := make(map[int]bool)
	for _, r := range requests {
		if r.Status == models.RequestAccepted {
			out[r.SongID] = true
		}
	}
	return out
}

func PlayedSet(ids []int) map[int]bool {
	out := make(map[int]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out
}

// RankGig applies Rank to a gig's own queue and votes.
func RankGig(g *models.Gig) []models.Song {
	return Rank(g.QueuedSongs, g.Votes, AcceptedSongIDs(g.SongRequests), g.LastVoteTime)
}
