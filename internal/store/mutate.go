package store

import (
	"context"
	"errors"
)

// DefaultAttempts bounds refresh-and-retry loops around conditional updates.
const DefaultAttempts = 3

// Mutate re-reads a document, lets fn compute the fields to write from the
// fresh copy, and writes them guarded by the revision it read. A concurrent
// write makes it refresh and try again, up to attempts times, before failing
// with ErrRevisionMismatch. fn returning no fields ends the loop without a write.
func Mutate[T any](ctx context.Context, s DocumentStore, collection, id string, attempts int, fn func(doc *T) (Fields, error)) (*T, error) {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	for i := 0; i < attempts; i++ {
		snap, err := s.Get(ctx, collection, id)
		if err != nil {
			return nil, err
		}
		var doc T
		if err := snap.DataTo(&doc); err != nil {
			return nil, err
		}
		fields, err := fn(&doc)
		if err != nil {
			return nil, err
		}
		if len(fields) == 0 {
			return &doc, nil
		}
		updated, err := s.Update(ctx, collection, id, fields, IfRevision(snap.Revision))
		if errors.Is(err, ErrRevisionMismatch) {
			continue
		}
		if err != nil {
			return nil, err
		}
		var out T
		if err := updated.DataTo(&out); err != nil {
			return nil, err
		}
		return &out, nil
	}
	return nil, ErrRevisionMismatch
}
