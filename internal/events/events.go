// Package events carries gig domain events from the core to whoever consumes
// them: Kafka in a full deployment, an in-process bus otherwise.
package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"ms-gigs/internal/logger"
	"ms-gigs/internal/models"
)

type Publisher interface {
	Publish(ctx context.Context, evt models.GigEvent) error
}

type Handler func(ctx context.Context, evt models.GigEvent) error

// New stamps an event for g. Ended and cancelled events carry a snapshot of
// the gig so consumers never need a second read.
func New(t models.GigEventType, g *models.Gig, now time.Time) models.GigEvent {
	evt := models.GigEvent{
		EventID:    uuid.NewString(),
		Type:       t,
		GigID:      g.ID,
		ArtistID:   g.ArtistID,
		OccurredAt: now.UTC(),
	}
	if t == models.EventGigEnded || t == models.EventGigCancelled {
		evt.Gig = g.Clone()
	}
	return evt
}

// Discard drops every event.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(context.Context, models.GigEvent) error { return nil }

// LocalBus delivers events synchronously to in-process handlers. Handler
// failures are logged and never reach the publisher.
type LocalBus struct {
	mu       sync.RWMutex
	handlers map[models.GigEventType][]Handler
	all      []Handler
	log      *logger.Logger
}

func NewLocalBus(log *logger.Logger) *LocalBus {
	if log == nil {
		log = logger.NewDiscard()
	}
	return &LocalBus{handlers: make(map[models.GigEventType][]Handler), log: log}
}

// On registers h for the given event types, or for every event when none are given.
func (b *LocalBus) On(h Handler, types ...models.GigEventType) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(types) == 0 {
		b.all = append(b.all, h)
		return
	}
	for _, t := range types {
		b.handlers[t] = append(b.handlers[t], h)
	}
}

func (b *LocalBus) Publish(ctx context.Context, evt models.GigEvent) error {
	b.mu.RLock()
	hs := append(append([]Handler(nil), b.handlers[evt.Type]...), b.all...)
	b.mu.RUnlock()

	for _, h := range hs {
		if err := h(ctx, evt); err != nil {
			b.log.Error("EVENTS", fmt.Sprintf("handler for %s on gig %s failed: %v", evt.Type, evt.GigID, err))
		}
	}
	return nil
}

// Fanout publishes to every publisher and returns the first error.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, evt models.GigEvent) error {
	var first error
	for _, p := range f {
		if err := p.Publish(ctx, evt); err != nil && first == nil {
			first = err
		}
	}
	return first
}
