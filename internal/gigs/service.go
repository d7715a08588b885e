// Package gigs owns the canonical gig document and its lifecycle:
// create, go live, extend, end, and the hourly cleanup of gigs that never
// started. Audience actions that touch the gig directly (votes, comments,
// played marks, interest) live here too.
package gigs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"ms-gigs/internal/clock"
	"ms-gigs/internal/events"
	"ms-gigs/internal/logger"
	"ms-gigs/internal/models"
	"ms-gigs/internal/store"
)

// LibrarySource supplies the artist catalog a gig snapshots when it goes live.
type LibrarySource interface {
	Get(ctx context.Context, artistID string) (*models.ArtistLibrary, error)
}

type Options struct {
	// Location interprets scheduledDate/scheduledTime.
	Location         *time.Location
	DefaultQueueSize int
}

type Service struct {
	Store   store.DocumentStore
	Library LibrarySource
	Events  events.Publisher
	Clock   clock.Clock
	Logger  *logger.Logger
	NewID   func() string

	location         *time.Location
	defaultQueueSize int
	ending           singleflight.Group
}

func NewService(st store.DocumentStore, lib LibrarySource, pub events.Publisher, clk clock.Clock, log *logger.Logger, opts Options) *Service {
	if pub == nil {
		pub = events.Discard
	}
	if log == nil {
		log = logger.NewDiscard()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.DefaultQueueSize == 0 {
		opts.DefaultQueueSize = models.MinQueueSize
	}
	return &Service{
		Store:            st,
		Library:          lib,
		Events:           pub,
		Clock:            clk,
		Logger:           log,
		NewID:            uuid.NewString,
		location:         opts.Location,
		defaultQueueSize: opts.DefaultQueueSize,
	}
}

func (s *Service) Location() *time.Location { return s.location }

func (s *Service) Get(ctx context.Context, gigID string) (*models.Gig, error) {
	snap, err := s.Store.Get(ctx, models.CollectionGigs, gigID)
	if err != nil {
		return nil, store.Translate(err, models.ErrGigNotFound)
	}
	return decode(snap)
}

func decode(snap store.Snapshot) (*models.Gig, error) {
	var g models.Gig
	if err := snap.DataTo(&g); err != nil {
		return nil, fmt.Errorf("decode gig %s: %w", snap.ID, err)
	}
	if g.ID == "" {
		g.ID = snap.ID
	}
	return &g, nil
}

// mutate runs a revision-guarded read-modify-write on one gig.
func (s *Service) mutate(ctx context.Context, gigID string, fn func(g *models.Gig) (store.Fields, error)) (*models.Gig, error) {
	g, err := store.Mutate(ctx, s.Store, models.CollectionGigs, gigID, store.DefaultAttempts, fn)
	if err != nil {
		return nil, store.Translate(err, models.ErrGigNotFound)
	}
	return g, nil
}

func (s *Service) publish(ctx context.Context, evt models.GigEvent) {
	if err := s.Events.Publish(ctx, evt); err != nil {
		s.Logger.Warn("KAFKA", fmt.Sprintf("publish %s for gig %s: %v", evt.Type, evt.GigID, err))
	}
}

func requireOwner(g *models.Gig, artistID string) error {
	if g.ArtistID != artistID {
		return models.ErrNotGigOwner
	}
	return nil
}
