// Package session runs the server-side timers of a live gig: the auto-end
// check, the liveness poll and the queue swap on fresh state.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ms-gigs/internal/clock"
	"ms-gigs/internal/gigs"
	"ms-gigs/internal/logger"
	"ms-gigs/internal/models"
	"ms-gigs/internal/store"
	"ms-gigs/internal/swap"
	"ms-gigs/internal/timewindow"
)

const (
	DefaultAutoEndInterval  = time.Minute
	DefaultLivenessInterval = 5 * time.Second
)

// Gigs is the slice of the gig service a session drives.
type Gigs interface {
	View(ctx context.Context, gigID string) (*models.GigView, error)
	End(ctx context.Context, gigID string, opts gigs.EndOptions) (*models.Gig, error)
}

type Swapper interface {
	Run(ctx context.Context, gigID string) (swap.Result, error)
}

// Notifier receives fresh views and notices for connected clients.
type Notifier interface {
	EmitView(v *models.GigView)
	EmitNotice(n models.Notice)
}

type Config struct {
	AutoEndInterval  time.Duration
	LivenessInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.AutoEndInterval <= 0 {
		c.AutoEndInterval = DefaultAutoEndInterval
	}
	if c.LivenessInterval <= 0 {
		c.LivenessInterval = DefaultLivenessInterval
	}
	return c
}

type Deps struct {
	Gigs     Gigs
	Swapper  Swapper
	Store    store.DocumentStore
	Notifier Notifier
	Clock    clock.Clock
	Logger   *logger.Logger
}

// Session watches one live gig until it ends or its context is cancelled.
type Session struct {
	gigID  string
	deps   Deps
	cfg    Config
	warned bool
}

func New(gigID string, deps Deps, cfg Config) *Session {
	if deps.Logger == nil {
		deps.Logger = logger.NewDiscard()
	}
	return &Session{gigID: gigID, deps: deps, cfg: cfg.withDefaults()}
}

// Run blocks until the gig is no longer live or ctx is done. Every ticker it
// starts is stopped before it returns.
func (s *Session) Run(ctx context.Context) {
	autoEnd := s.deps.Clock.NewTicker(s.cfg.AutoEndInterval)
	defer autoEnd.Stop()
	liveness := s.deps.Clock.NewTicker(s.cfg.LivenessInterval)
	defer liveness.Stop()

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	var changes <-chan store.Snapshot
	if s.deps.Store != nil {
		ch, err := s.deps.Store.Subscribe(subCtx, models.CollectionGigs, s.gigID)
		if err != nil {
			s.deps.Logger.Warn("SESSION", fmt.Sprintf("gig=%s subscribe failed, polling only: %v", s.gigID, err))
		} else {
			changes = ch
		}
	}

	s.deps.Logger.Info("SESSION", fmt.Sprintf("gig=%s session started", s.gigID))
	defer s.deps.Logger.Info("SESSION", fmt.Sprintf("gig=%s session stopped", s.gigID))

	if !s.check(ctx) {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-autoEnd.C:
			if !s.check(ctx) {
				return
			}
		case <-liveness.C:
			if !s.check(ctx) {
				return
			}
		case _, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			s.swap(ctx)
			if !s.check(ctx) {
				return
			}
		}
	}
}

// check refreshes the gig, pushes the view and applies the auto-end rule.
// It reports whether the session should keep running.
func (s *Session) check(ctx context.Context) bool {
	v, err := s.deps.Gigs.View(ctx, s.gigID)
	if errors.Is(err, models.ErrGigNotFound) {
		s.deps.Logger.Warn("SESSION", fmt.Sprintf("gig=%s no longer exists", s.gigID))
		return false
	}
	if err != nil {
		s.deps.Logger.Error("SESSION", fmt.Sprintf("gig=%s refresh failed: %v", s.gigID, err))
		return ctx.Err() == nil
	}
	s.notifyView(v)
	if v.Gig.Status != models.GigStatusLive {
		return false
	}

	d := timewindow.EvaluateAutoEnd(v.Gig, s.deps.Clock.Now(), s.warned)
	if d.Warn {
		s.warned = true
		mins := int(d.Remaining.Round(time.Minute) / time.Minute)
		s.notice(models.NoticeEndingSoon, fmt.Sprintf("Gig ends in %d minutes", mins))
	}
	if !d.End {
		return true
	}

	ended, err := s.deps.Gigs.End(ctx, s.gigID, gigs.EndOptions{System: true})
	if err != nil {
		s.deps.Logger.Error("SESSION", fmt.Sprintf("gig=%s auto-end failed: %v", s.gigID, err))
		return ctx.Err() == nil
	}
	s.notice(models.NoticeAutoEnded, "Gig time expired")
	if final, err := s.deps.Gigs.View(ctx, ended.ID); err == nil {
		s.notifyView(final)
	}
	return false
}

func (s *Session) swap(ctx context.Context) {
	if s.deps.Swapper == nil {
		return
	}
	res, err := s.deps.Swapper.Run(ctx, s.gigID)
	if err != nil {
		s.deps.Logger.Warn("SWAP", fmt.Sprintf("gig=%s swap failed: %v", s.gigID, err))
		return
	}
	if res.Swapped {
		s.notice(models.NoticeSwapped, fmt.Sprintf("%s moved into the queue, replacing %s", res.Promoted.Title, res.Removed.Title))
	}
}

func (s *Session) notifyView(v *models.GigView) {
	if s.deps.Notifier != nil {
		s.deps.Notifier.EmitView(v)
	}
}

func (s *Session) notice(kind, msg string) {
	s.deps.Logger.Info("SESSION", fmt.Sprintf("gig=%s %s: %s", s.gigID, kind, msg))
	if s.deps.Notifier != nil {
		s.deps.Notifier.EmitNotice(models.Notice{GigID: s.gigID, Kind: kind, Message: msg})
	}
}
