// Package requests implements the song-request lifecycle: submission rules,
// accept/reject transitions and the queue mutation an accept causes.
package requests

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"ms-gigs/internal/models"
	"ms-gigs/internal/queue"
)

// ApplySubmit validates a new request against the gig and returns it with
// status pending. Queue capacity is not checked here; it is resolved when the
// request is accepted.
func ApplySubmit(g *models.Gig, songID int, requester models.Requester, message, id string, now time.Time) (models.Request, error) {
	message = strings.TrimSpace(message)
	if requester.ID == "" {
		return models.Request{}, models.NewValidationError("requesterId", "is required")
	}
	if utf8.RuneCountInString(message) > models.MaxMessageLength {
		return models.Request{}, models.NewValidationError("message", fmt.Sprintf("must be at most %d characters", models.MaxMessageLength))
	}
	if g.Status != models.GigStatusLive {
		return models.Request{}, models.ErrGigNotLive
	}
	if !g.RequestsEnabled {
		return models.Request{}, models.ErrRequestsDisabled
	}

	for _, r := range g.SongRequests {
		if r.RequesterID != requester.ID {
			continue
		}
		if r.Status == models.RequestPending {
			return models.Request{}, models.ErrDuplicatePendingRequest
		}
		if r.Status == models.RequestRejected && r.SongID == songID {
			return models.Request{}, models.ErrPreviouslyRejected
		}
	}
	if g.IsPlayed(songID) {
		return models.Request{}, models.ErrSongAlreadyPlayed
	}

	song, ok := g.MasterSong(songID)
	if !ok {
		return models.Request{}, models.ErrSongNotFound
	}

	return models.Request{
		ID:            id,
		SongID:        song.ID,
		SongTitle:     song.Title,
		SongArtist:    song.Artist,
		RequesterID:   requester.ID,
		RequesterName: requester.Name,
		Message:       message,
		Status:        models.RequestPending,
		Timestamp:     now.UTC().Format(time.RFC3339Nano),
	}, nil
}

// AcceptOutcome describes what an accept did to the queue.
type AcceptOutcome struct {
	Request models.Request
	// Changed is false when the request was already accepted.
	Changed       bool
	AlreadyQueued bool
	Evicted       *models.Song
}

// ApplyAccept returns a copy of g with the request accepted and the queue
// updated. A full queue loses its last unplayed song to make room, and the
// result is re-ranked with accepted requests first.
func ApplyAccept(g *models.Gig, requestID string) (*models.Gig, AcceptOutcome, error) {
	idx := g.RequestIndex(requestID)
	if idx < 0 {
		return nil, AcceptOutcome{}, models.ErrRequestNotFound
	}
	req := g.SongRequests[idx]
	switch req.Status {
	case models.RequestAccepted:
		return g.Clone(), AcceptOutcome{Request: req}, nil
	case models.RequestRejected:
		return nil, AcceptOutcome{}, fmt.Errorf("accept request %s: %w", requestID, models.ErrRequestFinalized)
	}

	song, ok := g.MasterSong(req.SongID)
	if !ok {
		return nil, AcceptOutcome{}, models.ErrSongNotFound
	}

	out := g.Clone()
	out.SongRequests[idx].Status = models.RequestAccepted
	outcome := AcceptOutcome{Request: out.SongRequests[idx], Changed: true}

	if out.InQueue(song.ID) {
		outcome.AlreadyQueued = true
		return out, outcome, nil
	}

	q := out.QueuedSongs
	if out.MaxQueueSize > 0 && len(q) >= out.MaxQueueSize {
		var evicted models.Song
		var ok bool
		q, evicted, ok = queue.EvictLastUnplayed(q, queue.PlayedSet(out.PlayedSongs))
		if !ok {
			// Everything queued has been played; the tail goes instead.
			evicted = q[len(q)-1]
			q = q[:len(q)-1]
		}
		outcome.Evicted = &evicted
	}
	q = append(q, song)
	out.QueuedSongs = queue.RankRequestsFirst(q, out.Votes, queue.AcceptedSongIDs(out.SongRequests))
	return out, outcome, nil
}

// ApplyReject returns a copy of g with the request rejected. The queue is
// untouched. Rejecting an already rejected request changes nothing.
func ApplyReject(g *models.Gig, requestID string) (*models.Gig, bool, error) {
	idx := g.RequestIndex(requestID)
	if idx < 0 {
		return nil, false, models.ErrRequestNotFound
	}
	switch g.SongRequests[idx].Status {
	case models.RequestRejected:
		return g.Clone(), false, nil
	case models.RequestAccepted:
		return nil, false, fmt.Errorf("reject request %s: %w", requestID, models.ErrRequestFinalized)
	}
	out := g.Clone()
	out.SongRequests[idx].Status = models.RequestRejected
	return out, true, nil
}

// SortForDisplay orders requests for the artist: pending first, then paid or
// higher amount, then newest first.
func SortForDisplay(reqs []models.Request) []models.Request {
	out := append([]models.Request(nil), reqs...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		ap, bp := a.Status == models.RequestPending, b.Status == models.RequestPending
		if ap != bp {
			return ap
		}
		if a.IsPaid != b.IsPaid {
			return a.IsPaid
		}
		if a.Amount != b.Amount {
			return a.Amount > b.Amount
		}
		return timestamp(a).After(timestamp(b))
	})
	return out
}

func timestamp(r models.Request) time.Time {
	t, err := time.Parse(time.RFC3339Nano, r.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}
