// Package presence tracks who is watching a live gig. The numbers are for
// display only and never feed ranking or status.
package presence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ms-gigs/internal/clock"
	"ms-gigs/internal/logger"
	"ms-gigs/internal/models"
	"ms-gigs/internal/store"
)

// ActiveWindow is how recent a heartbeat must be for a user to count as active.
const ActiveWindow = 60 * time.Second

// ApplyHeartbeat marks userID active at now. totalJoins only grows the first
// time a user is seen.
func ApplyHeartbeat(at models.AudienceTracking, userID string, now time.Time) (models.AudienceTracking, bool) {
	out := at.Clone()
	if out.JoinedUsers == nil {
		out.JoinedUsers = make(map[string]models.AudienceMember)
	}
	ms := now.UnixMilli()
	member, seen := out.JoinedUsers[userID]
	if !seen {
		member.FirstJoin = ms
		out.TotalJoins++
	}
	member.LastActive = ms
	member.IsActive = true
	out.JoinedUsers[userID] = member
	out.CurrentlyActive = CountActive(out.JoinedUsers, now)
	return out, !seen
}

// ApplyDeparture marks userID inactive. Unknown users are left alone.
func ApplyDeparture(at models.AudienceTracking, userID string, now time.Time) models.AudienceTracking {
	out := at.Clone()
	if member, ok := out.JoinedUsers[userID]; ok {
		member.IsActive = false
		out.JoinedUsers[userID] = member
	}
	out.CurrentlyActive = CountActive(out.JoinedUsers, now)
	return out
}

// CountActive counts users flagged active whose last heartbeat is within ActiveWindow.
func CountActive(users map[string]models.AudienceMember, now time.Time) int {
	cutoff := now.Add(-ActiveWindow).UnixMilli()
	n := 0
	for _, m := range users {
		if m.IsActive && m.LastActive >= cutoff {
			n++
		}
	}
	return n
}

type Tracker struct {
	Store  store.DocumentStore
	Clock  clock.Clock
	Logger *logger.Logger
}

func NewTracker(s store.DocumentStore, clk clock.Clock, log *logger.Logger) *Tracker {
	if log == nil {
		log = logger.NewDiscard()
	}
	return &Tracker{Store: s, Clock: clk, Logger: log}
}

func validUserID(userID string) error {
	if userID == "" || strings.Contains(userID, ".") {
		return models.NewValidationError("userId", "must be non-empty and contain no dots")
	}
	return nil
}

// Heartbeat records that userID is watching gigID. Only the user's own entry
// and the counters are written.
func (t *Tracker) Heartbeat(ctx context.Context, gigID, userID string) (models.AudienceTracking, error) {
	if err := validUserID(userID); err != nil {
		return models.AudienceTracking{}, err
	}
	var result models.AudienceTracking
	_, err := store.Mutate(ctx, t.Store, models.CollectionGigs, gigID, store.DefaultAttempts, func(g *models.Gig) (store.Fields, error) {
		if g.Status != models.GigStatusLive {
			return nil, models.ErrGigNotLive
		}
		next, _ := ApplyHeartbeat(g.AudienceTracking, userID, t.Clock.Now())
		result = next
		return store.Fields{
			"audienceTracking.joinedUsers." + userID: next.JoinedUsers[userID],
			"audienceTracking.totalJoins":            next.TotalJoins,
			"audienceTracking.currentlyActive":       next.CurrentlyActive,
		}, nil
	})
	if err != nil {
		err = store.Translate(err, models.ErrGigNotFound)
		t.Logger.Warn("PRESENCE", fmt.Sprintf("heartbeat gig=%s user=%s: %v", gigID, userID, err))
		return models.AudienceTracking{}, err
	}
	return result, nil
}

// Leave is best effort: failures are logged and reported, never retried.
func (t *Tracker) Leave(ctx context.Context, gigID, userID string) error {
	if err := validUserID(userID); err != nil {
		return err
	}
	_, err := store.Mutate(ctx, t.Store, models.CollectionGigs, gigID, store.DefaultAttempts, func(g *models.Gig) (store.Fields, error) {
		if _, ok := g.AudienceTracking.JoinedUsers[userID]; !ok {
			return nil, nil
		}
		next := ApplyDeparture(g.AudienceTracking, userID, t.Clock.Now())
		return store.Fields{
			"audienceTracking.joinedUsers." + userID + ".isActive": false,
			"audienceTracking.currentlyActive":                     next.CurrentlyActive,
		}, nil
	})
	if err != nil {
		err = store.Translate(err, models.ErrGigNotFound)
		t.Logger.Warn("PRESENCE", fmt.Sprintf("leave gig=%s user=%s: %v", gigID, userID, err))
		return err
	}
	return nil
}
