package session

import (
	"context"
	"fmt"
	"sync"

	"ms-gigs/internal/logger"
	"ms-gigs/internal/models"
)

type running struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager keeps at most one Session per live gig.
type Manager struct {
	deps Deps
	cfg  Config

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	active map[string]*running
	wg     sync.WaitGroup
}

func NewManager(deps Deps, cfg Config) *Manager {
	if deps.Logger == nil {
		deps.Logger = logger.NewDiscard()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{deps: deps, cfg: cfg, ctx: ctx, cancel: cancel, active: make(map[string]*running)}
}

// Start launches a session for gigID unless one is already running.
func (m *Manager) Start(gigID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctx.Err() != nil {
		return false
	}
	if _, ok := m.active[gigID]; ok {
		return false
	}

	ctx, cancel := context.WithCancel(m.ctx)
	r := &running{cancel: cancel, done: make(chan struct{})}
	m.active[gigID] = r
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer close(r.done)
		defer cancel()
		New(gigID, m.deps, m.cfg).Run(ctx)

		m.mu.Lock()
		if m.active[gigID] == r {
			delete(m.active, gigID)
		}
		m.mu.Unlock()
	}()
	return true
}

// Stop cancels the gig's session and waits for its timers to be released.
func (m *Manager) Stop(gigID string) {
	m.mu.Lock()
	r, ok := m.active[gigID]
	if ok {
		delete(m.active, gigID)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	r.cancel()
	<-r.done
}

func (m *Manager) Running(gigID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.active[gigID]
	return ok
}

// Resume starts sessions for gigs that were live before a restart.
func (m *Manager) Resume(live []*models.Gig) {
	for _, g := range live {
		m.Start(g.ID)
	}
}

// Handle keeps sessions in step with lifecycle events.
func (m *Manager) Handle(_ context.Context, evt models.GigEvent) error {
	switch evt.Type {
	case models.EventGigLive:
		if m.Start(evt.GigID) {
			m.deps.Logger.Debug("SESSION", fmt.Sprintf("gig=%s started from %s", evt.GigID, evt.Type))
		}
	case models.EventGigEnded, models.EventGigCancelled:
		go m.Stop(evt.GigID)
	}
	return nil
}

// Close stops every session and waits for them to exit.
func (m *Manager) Close() {
	m.mu.Lock()
	m.cancel()
	m.active = make(map[string]*running)
	m.mu.Unlock()
	m.wg.Wait()
}
