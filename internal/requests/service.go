package requests

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"ms-gigs/internal/clock"
	"ms-gigs/internal/events"
	"ms-gigs/internal/logger"
	"ms-gigs/internal/models"
	"ms-gigs/internal/store"
)

type Service struct {
	Store  store.DocumentStore
	Events events.Publisher
	Clock  clock.Clock
	Logger *logger.Logger
	NewID  func() string
}

func NewService(s store.DocumentStore, pub events.Publisher, clk clock.Clock, log *logger.Logger) *Service {
	if pub == nil {
		pub = events.Discard
	}
	if log == nil {
		log = logger.NewDiscard()
	}
	return &Service{Store: s, Events: pub, Clock: clk, Logger: log, NewID: uuid.NewString}
}

// Submit records a pending request from an audience member whose proximity
// to the venue has already been checked.
func (s *Service) Submit(ctx context.Context, gigID string, songID int, requester models.Requester, message string, proximityOK bool) (models.Request, error) {
	if !proximityOK {
		return models.Request{}, models.ErrOutOfRange
	}
	id := s.NewID()
	var created models.Request

	g, err := store.Mutate(ctx, s.Store, models.CollectionGigs, gigID, store.DefaultAttempts, func(g *models.Gig) (store.Fields, error) {
		req, err := ApplySubmit(g, songID, requester, message, id, s.Clock.Now())
		if err != nil {
			return nil, err
		}
		created = req
		return store.Fields{"songRequests": append(g.SongRequests, req)}, nil
	})
	if err != nil {
		return models.Request{}, store.Translate(err, models.ErrGigNotFound)
	}

	s.Logger.LogRequest("SUBMIT", gigID, created.ID)
	s.publish(ctx, models.EventRequestSubmitted, g, created.ID, created.SongID)
	return created, nil
}

// Accept approves a request on the artist's behalf. The queue and the
// request status are written in one update, guarded by the revision read.
func (s *Service) Accept(ctx context.Context, gigID, requestID, artistID string) (*models.Gig, error) {
	var outcome AcceptOutcome
	g, err := store.Mutate(ctx, s.Store, models.CollectionGigs, gigID, store.DefaultAttempts, func(g *models.Gig) (store.Fields, error) {
		if g.ArtistID != artistID {
			return nil, models.ErrNotGigOwner
		}
		if g.Status != models.GigStatusLive {
			return nil, models.ErrGigNotLive
		}
		next, o, err := ApplyAccept(g, requestID)
		if err != nil {
			return nil, err
		}
		outcome = o
		if !o.Changed {
			return nil, nil
		}
		return store.Fields{
			"songRequests": next.SongRequests,
			"queuedSongs":  next.QueuedSongs,
		}, nil
	})
	if err != nil {
		return nil, store.Translate(err, models.ErrGigNotFound)
	}
	if !outcome.Changed {
		return g, nil
	}

	msg := "accepted"
	switch {
	case outcome.AlreadyQueued:
		msg = "accepted, song already queued"
	case outcome.Evicted != nil:
		msg = fmt.Sprintf("accepted, evicted song %d", outcome.Evicted.ID)
	}
	s.Logger.Info("REQUEST", fmt.Sprintf("gig=%s request=%s %s", gigID, requestID, msg))
	s.publish(ctx, models.EventRequestAccepted, g, requestID, outcome.Request.SongID)
	return g, nil
}

func (s *Service) Reject(ctx context.Context, gigID, requestID, artistID string) (*models.Gig, error) {
	changed := false
	var songID int
	g, err := store.Mutate(ctx, s.Store, models.CollectionGigs, gigID, store.DefaultAttempts, func(g *models.Gig) (store.Fields, error) {
		if g.ArtistID != artistID {
			return nil, models.ErrNotGigOwner
		}
		next, ok, err := ApplyReject(g, requestID)
		if err != nil {
			return nil, err
		}
		changed = ok
		if !ok {
			return nil, nil
		}
		songID = next.SongRequests[next.RequestIndex(requestID)].SongID
		return store.Fields{"songRequests": next.SongRequests}, nil
	})
	if err != nil {
		return nil, store.Translate(err, models.ErrGigNotFound)
	}
	if changed {
		s.Logger.LogRequest("REJECT", gigID, requestID)
		s.publish(ctx, models.EventRequestRejected, g, requestID, songID)
	}
	return g, nil
}

func (s *Service) publish(ctx context.Context, t models.GigEventType, g *models.Gig, requestID string, songID int) {
	evt := events.New(t, g, s.Clock.Now())
	evt.RequestID = requestID
	evt.SongID = songID
	if err := s.Events.Publish(ctx, evt); err != nil {
		s.Logger.Warn("KAFKA", fmt.Sprintf("publish %s for gig %s: %v", t, g.ID, err))
	}
}
