package sse

import (
	"context"
	"sync"

	"ms-gigs/internal/models"
)

// Update is one message on a gig stream: a fresh view, a notice, or both.
type Update struct {
	View   *models.GigView `json:"view,omitempty"`
	Notice *models.Notice  `json:"notice,omitempty"`
}

// GigEmitter fans gig updates out to SSE clients, keyed by gig id.
type GigEmitter struct {
	clients     map[string][]chan Update
	clientMutex sync.RWMutex
}

func NewGigEmitter() *GigEmitter {
	return &GigEmitter{clients: make(map[string][]chan Update)}
}

// Subscribe registers a client for gigID. The channel is closed once ctx is done.
func (e *GigEmitter) Subscribe(ctx context.Context, gigID string) <-chan Update {
	clientChan := make(chan Update, 10)

	e.clientMutex.Lock()
	e.clients[gigID] = append(e.clients[gigID], clientChan)
	e.clientMutex.Unlock()

	go func() {
		<-ctx.Done()
		e.removeClient(gigID, clientChan)
	}()

	return clientChan
}

func (e *GigEmitter) EmitView(v *models.GigView) {
	if v == nil || v.Gig == nil {
		return
	}
	e.emit(v.Gig.ID, Update{View: v})
}

func (e *GigEmitter) EmitNotice(n models.Notice) {
	e.emit(n.GigID, Update{Notice: &n})
}

func (e *GigEmitter) emit(gigID string, u Update) {
	// Sends happen under the read lock so removeClient cannot close a channel mid-send.
	e.clientMutex.RLock()
	defer e.clientMutex.RUnlock()
	for _, clientChan := range e.clients[gigID] {
		// Slow clients miss updates rather than stall the emitter
		select {
		case clientChan <- u:
		default:
		}
	}
}

func (e *GigEmitter) removeClient(gigID string, clientChan chan Update) {
	e.clientMutex.Lock()
	defer e.clientMutex.Unlock()

	clients := e.clients[gigID]
	for i, ch := range clients {
		if ch == clientChan {
			e.clients[gigID] = append(clients[:i], clients[i+1:]...)
			close(clientChan)
			break
		}
	}
	if len(e.clients[gigID]) == 0 {
		delete(e.clients, gigID)
	}
}

// ClientCount returns the number of clients currently watching a gig.
func (e *GigEmitter) ClientCount(gigID string) int {
	e.clientMutex.RLock()
	defer e.clientMutex.RUnlock()
	return len(e.clients[gigID])
}
