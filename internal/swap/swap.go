// Package swap promotes a better-voted library song into a live queue in
// place of the weakest unplayed queued song.
package swap

import (
	"context"
	"fmt"

	"ms-gigs/internal/clock"
	"ms-gigs/internal/events"
	"ms-gigs/internal/logger"
	"ms-gigs/internal/models"
	"ms-gigs/internal/queue"
	"ms-gigs/internal/store"
)

type Result struct {
	Swapped  bool
	Removed  models.Song
	Promoted models.Song
	Queue    []models.Song
}

// TrySwap replaces the lowest-voted unplayed queued song with the
// highest-voted master song not in the queue, only when the incoming song
// has strictly more votes. Ties on either side go to the first found.
func TrySwap(g *models.Gig) Result {
	played := queue.PlayedSet(g.PlayedSongs)

	lowestIdx := -1
	for i, s := range g.QueuedSongs {
		if played[s.ID] {
			continue
		}
		if lowestIdx < 0 || g.VotesFor(s.ID) < g.VotesFor(g.QueuedSongs[lowestIdx].ID) {
			lowestIdx = i
		}
	}
	if lowestIdx < 0 {
		return Result{Queue: g.QueuedSongs}
	}

	inQueue := make(map[int]bool, len(g.QueuedSongs))
	for _, s := range g.QueuedSongs {
		inQueue[s.ID] = true
	}
	highestIdx := -1
	for i, s := range g.MasterPlaylist {
		if inQueue[s.ID] {
			continue
		}
		if highestIdx < 0 || g.VotesFor(s.ID) > g.VotesFor(g.MasterPlaylist[highestIdx].ID) {
			highestIdx = i
		}
	}
	if highestIdx < 0 {
		return Result{Queue: g.QueuedSongs}
	}

	lowest := g.QueuedSongs[lowestIdx]
	highest := g.MasterPlaylist[highestIdx]
	if g.VotesFor(highest.ID) <= g.VotesFor(lowest.ID) {
		return Result{Queue: g.QueuedSongs}
	}

	next := make([]models.Song, 0, len(g.QueuedSongs))
	next = append(next, g.QueuedSongs[:lowestIdx]...)
	next = append(next, g.QueuedSongs[lowestIdx+1:]...)
	next = append(next, highest)
	return Result{
		Swapped:  true,
		Removed:  lowest,
		Promoted: highest,
		Queue:    queue.ByVotes(next, g.Votes),
	}
}

// Engine persists swaps against the stored gig.
type Engine struct {
	Store  store.DocumentStore
	Events events.Publisher
	Clock  clock.Clock
	Logger *logger.Logger
}

func NewEngine(s store.DocumentStore, pub events.Publisher, clk clock.Clock, log *logger.Logger) *Engine {
	if pub == nil {
		pub = events.Discard
	}
	if log == nil {
		log = logger.NewDiscard()
	}
	return &Engine{Store: s, Events: pub, Clock: clk, Logger: log}
}

// Run re-reads the gig and applies TrySwap to the fresh copy, writing the new
// queue only if the revision it read is still current.
func (e *Engine) Run(ctx context.Context, gigID string) (Result, error) {
	var res Result
	g, err := store.Mutate(ctx, e.Store, models.CollectionGigs, gigID, store.DefaultAttempts, func(g *models.Gig) (store.Fields, error) {
		res = Result{}
		if g.Status != models.GigStatusLive {
			return nil, nil
		}
		res = TrySwap(g)
		if !res.Swapped {
			return nil, nil
		}
		return store.Fields{"queuedSongs": res.Queue}, nil
	})
	if err != nil {
		return Result{}, store.Translate(err, models.ErrGigNotFound)
	}
	if !res.Swapped {
		return res, nil
	}

	e.Logger.Info("SWAP", fmt.Sprintf("gig=%s promoted %d (%d votes) over %d (%d votes)",
		gigID, res.Promoted.ID, g.VotesFor(res.Promoted.ID), res.Removed.ID, g.VotesFor(res.Removed.ID)))
	evt := events.New(models.EventQueueSwapped, g, e.Clock.Now())
	evt.SongID = res.Promoted.ID
	if err := e.Events.Publish(ctx, evt); err != nil {
		e.Logger.Warn("KAFKA", fmt.Sprintf("publish swap for gig %s: %v", gigID, err))
	}
	return res, nil
}
