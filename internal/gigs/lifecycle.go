package gigs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"ms-gigs/internal/events"
	"ms-gigs/internal/models"
	"ms-gigs/internal/queue"
	"ms-gigs/internal/store"
	"ms-gigs/internal/timewindow"
)

// ValidateCreate checks a new gig's input before anything is written.
func ValidateCreate(in models.CreateGigInput) error {
	if strings.TrimSpace(in.ArtistID) == "" {
		return models.NewValidationError("artistId", "is required")
	}
	if strings.TrimSpace(in.VenueName) == "" {
		return models.NewValidationError("venueName", "is required")
	}
	if strings.TrimSpace(in.ScheduledDate) == "" {
		return models.NewValidationError("scheduledDate", "is required")
	}
	if _, err := time.Parse("2006-01-02", strings.TrimSpace(in.ScheduledDate)); err != nil {
		return models.NewValidationError("scheduledDate", "must be YYYY-MM-DD")
	}
	if strings.TrimSpace(in.ScheduledTime) == "" {
		return models.NewValidationError("scheduledTime", "is required")
	}
	if _, err := time.Parse("15:04", strings.TrimSpace(in.ScheduledTime)); err != nil {
		return models.NewValidationError("scheduledTime", "must be HH:MM")
	}
	if in.MaxQueueSize != 0 && (in.MaxQueueSize < models.MinQueueSize || in.MaxQueueSize > models.MaxQueueSize) {
		return models.NewValidationError("maxQueueSize", fmt.Sprintf("must be between %d and %d", models.MinQueueSize, models.MaxQueueSize))
	}
	if in.VenueLocation.Lat < -90 || in.VenueLocation.Lat > 90 || in.VenueLocation.Lng < -180 || in.VenueLocation.Lng > 180 {
		return models.NewValidationError("venueLocation", "is not a valid coordinate")
	}
	return nil
}

// Create persists a new upcoming gig. The playlist snapshot is taken at go-live.
func (s *Service) Create(ctx context.Context, in models.CreateGigInput) (*models.Gig, error) {
	if err := ValidateCreate(in); err != nil {
		return nil, err
	}
	if in.SetlistID != "" && s.Library != nil {
		lib, err := s.Library.Get(ctx, in.ArtistID)
		if err != nil {
			return nil, err
		}
		if _, ok := lib.Setlist(in.SetlistID); !ok {
			return nil, models.NewValidationError("setlistId", "no such setlist")
		}
	}

	size := in.MaxQueueSize
	if size == 0 {
		size = s.defaultQueueSize
	}
	enabled := true
	if in.RequestsEnabled != nil {
		enabled = *in.RequestsEnabled
	}

	g := &models.Gig{
		ID:              s.NewID(),
		ArtistID:        in.ArtistID,
		VenueName:       strings.TrimSpace(in.VenueName),
		VenueLocation:   in.VenueLocation,
		ScheduledDate:   strings.TrimSpace(in.ScheduledDate),
		ScheduledTime:   strings.TrimSpace(in.ScheduledTime),
		Status:          models.GigStatusUpcoming,
		SetlistID:       in.SetlistID,
		CreatedAtMs:     s.Clock.Now().UnixMilli(),
		MasterPlaylist:  []models.Song{},
		QueuedSongs:     []models.Song{},
		MaxQueueSize:    size,
		PlayedSongs:     []int{},
		Votes:           map[int]int{},
		LastVoteTime:    map[int]string{},
		SongRequests:    []models.Request{},
		Comments:        []models.Comment{},
		Donations:       []json.RawMessage{},
		RequestsEnabled: enabled,
		AudienceTracking: models.AudienceTracking{
			JoinedUsers: map[string]models.AudienceMember{},
		},
	}
	if err := s.Store.Create(ctx, models.CollectionGigs, g.ID, g); err != nil {
		return nil, store.Translate(err, models.ErrGigNotFound)
	}
	created, err := s.Get(ctx, g.ID)
	if err != nil {
		return nil, err
	}

	s.Logger.LogGig("CREATE", g.ID, fmt.Sprintf("%s on %s %s", g.VenueName, g.ScheduledDate, g.ScheduledTime))
	s.publish(ctx, events.New(models.EventGigCreated, created, s.Clock.Now()))
	return created, nil
}

// GoLive starts the gig's live session. An artist can run one live gig at a
// time; ErrAlreadyLive asks the caller to end the other one first.
func (s *Service) GoLive(ctx context.Context, gigID, artistID string) (*models.Gig, error) {
	live, err := s.liveGigs(ctx, artistID)
	if err != nil {
		return nil, err
	}
	for _, other := range live {
		if other.ID != gigID {
			return nil, fmt.Errorf("%w: %s at %s", models.ErrAlreadyLive, other.ID, other.VenueName)
		}
	}

	lib, err := s.Library.Get(ctx, artistID)
	if err != nil {
		return nil, err
	}
	if len(lib.MasterSongs) == 0 {
		return nil, models.NewValidationError("masterSongs", "the artist library is empty")
	}

	g, err := s.mutate(ctx, gigID, func(g *models.Gig) (store.Fields, error) {
		if err := requireOwner(g, artistID); err != nil {
			return nil, err
		}
		now := s.Clock.Now()
		switch g.Status {
		case models.GigStatusUpcoming, models.GigStatusConfirmed, "":
		default:
			return nil, &models.TransitionError{Op: "go live", From: g.Status}
		}
		if timewindow.IsExpiredUnstarted(g, now, s.location) {
			return nil, &models.TransitionError{Op: "go live", From: models.GigStatusCancelled}
		}

		var setlist []models.Song
		if sl, ok := lib.Setlist(g.SetlistID); ok {
			setlist = sl.Songs
		}
		size := g.MaxQueueSize
		if size == 0 {
			size = s.defaultQueueSize
		}
		start := now.UnixMilli()
		return store.Fields{
			"status":             models.GigStatusLive,
			"actualStartTimeMs":  start,
			"scheduledEndTimeMs": now.Add(timewindow.LiveWindow).UnixMilli(),
			"scheduledEndTime":   store.DeleteField(),
			"timeExtended":       false,
			"masterPlaylist":     lib.MasterSongs,
			"queuedSongs":        queue.Initial(lib.MasterSongs, setlist, size),
			"maxQueueSize":       size,
			"votes":              map[int]int{},
			"lastVoteTime":       map[int]string{},
			"comments":           []models.Comment{},
			"donations":          []json.RawMessage{},
			"playedSongs":        []int{},
		}, nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.LogGig("LIVE", gigID, fmt.Sprintf("%d songs queued of %d", len(g.QueuedSongs), len(g.MasterPlaylist)))
	s.publish(ctx, events.New(models.EventGigLive, g, s.Clock.Now()))
	return g, nil
}

// Extend pushes the live session's end time out by minutes. The new end is
// never earlier than the old one.
func (s *Service) Extend(ctx context.Context, gigID, artistID string, minutes int) (*models.Gig, error) {
	if minutes < 0 {
		return nil, models.NewValidationError("minutes", "must not be negative")
	}
	g, err := s.mutate(ctx, gigID, func(g *models.Gig) (store.Fields, error) {
		if err := requireOwner(g, artistID); err != nil {
			return nil, err
		}
		if g.Status != models.GigStatusLive {
			return nil, &models.TransitionError{Op: "extend", From: g.Status}
		}
		base := extendBase(g, s.Clock.Now())
		end := base.Add(time.Duration(minutes) * time.Minute).UnixMilli()
		if end < g.ActualStartTimeMs {
			end = g.ActualStartTimeMs
		}
		return store.Fields{
			"scheduledEndTimeMs": end,
			"timeExtended":       true,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.LogGig("EXTEND", gigID, fmt.Sprintf("+%d min, ends %s", minutes, time.UnixMilli(g.ScheduledEndTimeMs).UTC().Format(time.RFC3339)))
	s.publish(ctx, events.New(models.EventGigExtended, g, s.Clock.Now()))
	return g, nil
}

// extendBase is scheduledEndTimeMs when set. Older documents fall back to
// the legacy end field and then to now.
func extendBase(g *models.Gig, now time.Time) time.Time {
	if g.ScheduledEndTimeMs > 0 {
		return time.UnixMilli(g.ScheduledEndTimeMs)
	}
	if legacy, ok := timewindow.ParseEndTime(g.ScheduledEndTime); ok {
		return legacy
	}
	return now
}

type EndOptions struct {
	ArtistID string
	Reason   string
	// System marks ends triggered by the auto-end timer rather than the artist.
	System bool
}

// End moves a live gig to ended, keeping its queue, votes and played songs
// for post-gig display. Ending an ended gig is a no-op. Concurrent calls for
// the same gig share one in-flight write.
func (s *Service) End(ctx context.Context, gigID string, opts EndOptions) (*models.Gig, error) {
	if !opts.System {
		g, err := s.Get(ctx, gigID)
		if err != nil {
			return nil, err
		}
		if err := requireOwner(g, opts.ArtistID); err != nil {
			return nil, err
		}
	}

	// The shared write outlives any single caller's cancellation.
	shared := context.WithoutCancel(ctx)
	v, err, joined := s.ending.Do(gigID, func() (interface{}, error) {
		return s.end(shared, gigID, opts)
	})
	if err != nil {
		return nil, err
	}
	if joined {
		s.Logger.Debug("GIG", fmt.Sprintf("end of %s joined an in-flight call", gigID))
	}
	return v.(*models.Gig).Clone(), nil
}

func (s *Service) end(ctx context.Context, gigID string, opts EndOptions) (*models.Gig, error) {
	changed := false
	g, err := s.mutate(ctx, gigID, func(g *models.Gig) (store.Fields, error) {
		changed = false
		switch g.Status {
		case models.GigStatusEnded:
			return nil, nil
		case models.GigStatusLive:
		default:
			return nil, &models.TransitionError{Op: "end", From: g.Status}
		}
		changed = true
		reason := strings.TrimSpace(opts.Reason)
		if reason == "" && opts.System {
			reason = "Gig time expired"
		}
		return store.Fields{
			"status":        models.GigStatusEnded,
			"manuallyEnded": !opts.System,
			"endedAtMs":     s.Clock.Now().UnixMilli(),
			"endReason":     reason,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		return g, nil
	}

	how := "by artist"
	if opts.System {
		how = "automatically"
	}
	s.Logger.LogGig("END", gigID, fmt.Sprintf("ended %s: %s", how, g.EndReason))
	evt := events.New(models.EventGigEnded, g, s.Clock.Now())
	evt.Reason = g.EndReason
	s.publish(ctx, evt)
	return g, nil
}

// SetRequestsEnabled toggles whether the audience may submit new requests.
func (s *Service) SetRequestsEnabled(ctx context.Context, gigID, artistID string, enabled bool) (*models.Gig, error) {
	g, err := s.Get(ctx, gigID)
	if err != nil {
		return nil, err
	}
	if err := requireOwner(g, artistID); err != nil {
		return nil, err
	}
	snap, err := s.Store.Update(ctx, models.CollectionGigs, gigID, store.Fields{"requestsEnabled": enabled})
	if err != nil {
		return nil, store.Translate(err, models.ErrGigNotFound)
	}
	s.Logger.LogGig("SETTINGS", gigID, fmt.Sprintf("requestsEnabled=%t", enabled))
	return decode(snap)
}

// Delete removes a gig that is not live.
func (s *Service) Delete(ctx context.Context, gigID, artistID string) error {
	g, err := s.Get(ctx, gigID)
	if err != nil {
		return err
	}
	if err := requireOwner(g, artistID); err != nil {
		return err
	}
	if g.Status == models.GigStatusLive {
		return &models.TransitionError{Op: "delete", From: g.Status}
	}
	if err := s.Store.Delete(ctx, models.CollectionGigs, gigID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return store.Translate(err, models.ErrGigNotFound)
	}
	s.Logger.LogGig("DELETE", gigID, g.VenueName)
	return nil
}
