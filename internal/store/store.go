// Package store defines the document store the gig core reads and writes
// through: JSON documents keyed by collection and id, field-path updates with
// atomic increments, create-if-absent, filtered queries and change feeds.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ms-gigs/internal/models"
)

var (
	ErrNotFound         = errors.New("document not found")
	ErrAlreadyExists    = errors.New("document already exists")
	ErrRevisionMismatch = errors.New("document revision changed")
	ErrUnavailable      = errors.New("store unavailable")
)

// RevisionField is maintained by every backend and bumped on each write.
const RevisionField = "revision"

type DocumentStore interface {
	Get(ctx context.Context, collection, id string) (Snapshot, error)
	Set(ctx context.Context, collection, id string, v any) error
	// Create writes v only if no document exists under id.
	Create(ctx context.Context, collection, id string, v any) error
	// Update applies every field in one atomic write and returns the result.
	Update(ctx context.Context, collection, id string, fields Fields, opts ...UpdateOption) (Snapshot, error)
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, collection string, filters ...Filter) ([]Snapshot, error)
	// Subscribe delivers the current document (if any) and then every later
	// write until ctx is done, when the channel is closed.
	Subscribe(ctx context.Context, collection, id string) (<-chan Snapshot, error)
	Close() error
}

type Snapshot struct {
	ID       string
	Revision int64
	Data     json.RawMessage
}

func (s Snapshot) DataTo(v any) error {
	return json.Unmarshal(s.Data, v)
}

type UpdateOptions struct {
	IfRevision    int64
	CheckRevision bool
}

type UpdateOption func(*UpdateOptions)

// IfRevision makes an update fail with ErrRevisionMismatch unless the stored
// document is still at rev.
func IfRevision(rev int64) UpdateOption {
	return func(o *UpdateOptions) {
		o.IfRevision = rev
		o.CheckRevision = true
	}
}

func BuildUpdateOptions(opts []UpdateOption) UpdateOptions {
	var o UpdateOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Translate maps store errors onto the gig error kinds. notFound is the kind
// reported for a missing document. Errors that did not come from the store
// are returned unchanged.
func Translate(err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return notFound
	case errors.Is(err, ErrRevisionMismatch):
		return fmt.Errorf("%w: %v", models.ErrConcurrencyConflict, err)
	case errors.Is(err, ErrUnavailable):
		return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	default:
		return err
	}
}
