// Package memory is an in-process DocumentStore used by tests and by
// single-node deployments that run without Redis.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"ms-gigs/internal/store"
)

type Store struct {
	mu   sync.RWMutex
	docs map[string]map[string][]byte // collection -> id -> JSON

	subMu sync.RWMutex
	subs  map[string][]chan store.Snapshot // collection/id -> subscribers
}

var _ store.DocumentStore = (*Store)(nil)

func New() *Store {
	return &Store{
		docs: make(map[string]map[string][]byte),
		subs: make(map[string][]chan store.Snapshot),
	}
}

func subKey(collection, id string) string { return collection + "/" + id }

func (s *Store) Get(_ context.Context, collection, id string) (store.Snapshot, error) {
	s.mu.RLock()
	data, ok := s.docs[collection][id]
	s.mu.RUnlock()
	if !ok {
		return store.Snapshot{}, fmt.Errorf("%s/%s: %w", collection, id, store.ErrNotFound)
	}
	return snapshotOf(id, data)
}

func (s *Store) Set(_ context.Context, collection, id string, v any) error {
	doc, err := store.Encode(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	var rev int64
	if prev, ok := s.docs[collection][id]; ok {
		if old, err := store.Decode(prev); err == nil {
			rev = store.Revision(old)
		}
	}
	snap, err := s.writeLocked(collection, id, doc, rev+1)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.notify(collection, snap)
	return nil
}

func (s *Store) Create(_ context.Context, collection, id string, v any) error {
	doc, err := store.Encode(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if _, ok := s.docs[collection][id]; ok {
		s.mu.Unlock()
		return fmt.Errorf("%s/%s: %w", collection, id, store.ErrAlreadyExists)
	}
	snap, err := s.writeLocked(collection, id, doc, 1)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.notify(collection, snap)
	return nil
}

func (s *Store) Update(_ context.Context, collection, id string, fields store.Fields, opts ...store.UpdateOption) (store.Snapshot, error) {
	o := store.BuildUpdateOptions(opts)

	s.mu.Lock()
	data, ok := s.docs[collection][id]
	if !ok {
		s.mu.Unlock()
		return store.Snapshot{}, fmt.Errorf("%s/%s: %w", collection, id, store.ErrNotFound)
	}
	doc, err := store.Decode(data)
	if err != nil {
		s.mu.Unlock()
		return store.Snapshot{}, err
	}
	rev := store.Revision(doc)
	if o.CheckRevision && rev != o.IfRevision {
		s.mu.Unlock()
		return store.Snapshot{}, fmt.Errorf("%s/%s at %d, expected %d: %w", collection, id, rev, o.IfRevision, store.ErrRevisionMismatch)
	}
	if err := store.Apply(doc, fields); err != nil {
		s.mu.Unlock()
		return store.Snapshot{}, err
	}
	snap, err := s.writeLocked(collection, id, doc, rev+1)
	s.mu.Unlock()
	if err != nil {
		return store.Snapshot{}, err
	}
	s.notify(collection, snap)
	return snap, nil
}

func (s *Store) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[collection][id]; !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, store.ErrNotFound)
	}
	delete(s.docs[collection], id)
	return nil
}

func (s *Store) Query(_ context.Context, collection string, filters ...store.Filter) ([]store.Snapshot, error) {
	s.mu.RLock()
	ids := make([]string, 0, len(s.docs[collection]))
	for id := range s.docs[collection] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	raw := make([][]byte, len(ids))
	for i, id := range ids {
		raw[i] = s.docs[collection][id]
	}
	s.mu.RUnlock()

	var out []store.Snapshot
	for i, data := range raw {
		doc, err := store.Decode(data)
		if err != nil {
			return nil, err
		}
		ok, err := store.Matches(doc, filters)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		snap, err := snapshotOf(ids[i], data)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

func (s *Store) Subscribe(ctx context.Context, collection, id string) (<-chan store.Snapshot, error) {
	ch := make(chan store.Snapshot, 16)
	key := subKey(collection, id)

	// Registering under subMu orders the initial snapshot before any write
	// that lands while we subscribe.
	s.subMu.Lock()
	if snap, err := s.Get(ctx, collection, id); err == nil {
		ch <- snap
	}
	s.subs[key] = append(s.subs[key], ch)
	s.subMu.Unlock()

	go func() {
		<-ctx.Done()
		s.unsubscribe(key, ch)
	}()
	return ch, nil
}

func (s *Store) Close() error {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for key, chans := range s.subs {
		for _, ch := range chans {
			close(ch)
		}
		delete(s.subs, key)
	}
	return nil
}

// SubscriberCount reports how many change feeds are open for a document.
func (s *Store) SubscriberCount(collection, id string) int {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	return len(s.subs[subKey(collection, id)])
}

func (s *Store) writeLocked(collection, id string, doc map[string]any, rev int64) (store.Snapshot, error) {
	snap, err := store.Stamp(id, doc, rev)
	if err != nil {
		return store.Snapshot{}, err
	}
	if s.docs[collection] == nil {
		s.docs[collection] = make(map[string][]byte)
	}
	s.docs[collection][id] = snap.Data
	return snap, nil
}

func (s *Store) notify(collection string, snap store.Snapshot) {
	// Held across the sends so unsubscribe cannot close a channel mid-loop.
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	for _, ch := range s.subs[subKey(collection, snap.ID)] {
		// Slow subscribers miss intermediate snapshots; the next one carries full state.
		select {
		case ch <- snap:
		default:
		}
	}
}

func (s *Store) unsubscribe(key string, ch chan store.Snapshot) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	kept := make([]chan store.Snapshot, 0, len(s.subs[key]))
	for _, c := range s.subs[key] {
		if c == ch {
			close(ch)
			continue
		}
		kept = append(kept, c)
	}
	if len(kept) == 0 {
		delete(s.subs, key)
		return
	}
	s.subs[key] = kept
}

func snapshotOf(id string, data []byte) (store.Snapshot, error) {
	doc, err := store.Decode(data)
	if err != nil {
		return store.Snapshot{}, err
	}
	return store.Snapshot{ID: id, Revision: store.Revision(doc), Data: append([]byte(nil), data...)}, nil
}
