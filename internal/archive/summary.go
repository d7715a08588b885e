package archive

import (
	"time"

	"ms-gigs/internal/models"
	"ms-gigs/internal/queue"
)

// Summarize builds the archive row for an ended gig. Songs are stored in the
// final ranked order, followed by any played song no longer queued.
func Summarize(g *models.Gig, archivedAt time.Time) *models.GigArchive {
	a := &models.GigArchive{
		GigID:        g.ID,
		ArtistID:     g.ArtistID,
		VenueName:    g.VenueName,
		EndReason:    g.EndReason,
		QueueSize:    len(g.QueuedSongs),
		PlayedCount:  len(g.PlayedSongs),
		RequestCount: len(g.SongRequests),
		PeakAudience: g.AudienceTracking.TotalJoins,
		ArchivedAt:   archivedAt.UTC(),
	}
	if g.ActualStartTimeMs > 0 {
		a.StartedAt = time.UnixMilli(g.ActualStartTimeMs).UTC()
	}
	if g.EndedAtMs > 0 {
		a.EndedAt = time.UnixMilli(g.EndedAtMs).UTC()
	} else {
		a.EndedAt = a.ArchivedAt
	}
	for _, n := range g.Votes {
		a.TotalVotes += n
	}

	played := queue.PlayedSet(g.PlayedSongs)
	requested := queue.AcceptedSongIDs(g.SongRequests)
	seen := make(map[int]bool, len(g.QueuedSongs))
	add := func(s models.Song) {
		seen[s.ID] = true
		a.Songs = append(a.Songs, models.ArchivedSong{
			GigID:     g.ID,
			SongID:    s.ID,
			Title:     s.Title,
			Artist:    s.Artist,
			Votes:     g.VotesFor(s.ID),
			Played:    played[s.ID],
			Requested: requested[s.ID],
			Position:  len(a.Songs) + 1,
		})
	}
	for _, s := range queue.RankGig(g) {
		add(s)
	}
	for _, id := range g.PlayedSongs {
		if seen[id] {
			continue
		}
		if s, ok := g.MasterSong(id); ok {
			add(s)
		}
	}
	return a
}
