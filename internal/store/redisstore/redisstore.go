// Package redisstore keeps gig documents in Redis as JSON strings. Writes run
// inside WATCH/MULTI transactions so multi-field updates and increments apply
// atomically, and every write is published on a per-document channel that
// backs Subscribe.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-gigs/internal/logger"
	"ms-gigs/internal/store"
)

// maxTxRetries bounds WATCH retries when another writer touches the key.
const maxTxRetries = 100

type Store struct {
	Client *redis.Client
	Prefix string
	Logger *logger.Logger
}

var _ store.DocumentStore = (*Store)(nil)

func New(client *redis.Client, prefix string, log *logger.Logger) *Store {
	if prefix == "" {
		prefix = "gigs"
	}
	if log == nil {
		log = logger.NewDiscard()
	}
	return &Store{Client: client, Prefix: prefix, Logger: log}
}

func (s *Store) docKey(collection, id string) string {
	return fmt.Sprintf("%s:doc:%s:%s", s.Prefix, collection, id)
}

func (s *Store) indexKey(collection string) string {
	return fmt.Sprintf("%s:index:%s", s.Prefix, collection)
}

func (s *Store) channel(collection, id string) string {
	return fmt.Sprintf("%s:changes:%s:%s", s.Prefix, collection, id)
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
}

func (s *Store) Get(ctx context.Context, collection, id string) (store.Snapshot, error) {
	data, err := s.Client.Get(ctx, s.docKey(collection, id)).Bytes()
	if err == redis.Nil {
		return store.Snapshot{}, fmt.Errorf("%s/%s: %w", collection, id, store.ErrNotFound)
	}
	if err != nil {
		return store.Snapshot{}, unavailable(err)
	}
	doc, err := store.Decode(data)
	if err != nil {
		return store.Snapshot{}, err
	}
	return store.Snapshot{ID: id, Revision: store.Revision(doc), Data: data}, nil
}

func (s *Store) Set(ctx context.Context, collection, id string, v any) error {
	doc, err := store.Encode(v)
	if err != nil {
		return err
	}
	_, err = s.write(ctx, collection, id, func(existing map[string]any) (map[string]any, error) {
		return doc, nil
	})
	return err
}

func (s *Store) Create(ctx context.Context, collection, id string, v any) error {
	doc, err := store.Encode(v)
	if err != nil {
		return err
	}
	_, err = s.write(ctx, collection, id, func(existing map[string]any) (map[string]any, error) {
		if existing != nil {
			return nil, fmt.Errorf("%s/%s: %w", collection, id, store.ErrAlreadyExists)
		}
		return doc, nil
	})
	return err
}

func (s *Store) Update(ctx context.Context, collection, id string, fields store.Fields, opts ...store.UpdateOption) (store.Snapshot, error) {
	o := store.BuildUpdateOptions(opts)
	return s.write(ctx, collection, id, func(existing map[string]any) (map[string]any, error) {
		if existing == nil {
			return nil, fmt.Errorf("%s/%s: %w", collection, id, store.ErrNotFound)
		}
		if rev := store.Revision(existing); o.CheckRevision && rev != o.IfRevision {
			return nil, fmt.Errorf("%s/%s at %d, expected %d: %w", collection, id, rev, o.IfRevision, store.ErrRevisionMismatch)
		}
		if err := store.Apply(existing, fields); err != nil {
			return nil, err
		}
		return existing, nil
	})
}

// write runs one optimistic transaction: read the current document (nil when
// absent), compute the replacement, and commit it only if nobody else wrote
// the key in between.
func (s *Store) write(ctx context.Context, collection, id string, compute func(existing map[string]any) (map[string]any, error)) (store.Snapshot, error) {
	key := s.docKey(collection, id)
	var snap store.Snapshot
	var rejected error // set when compute or decode refuses the write

	txf := func(tx *redis.Tx) error {
		var existing map[string]any
		data, err := tx.Get(ctx, key).Bytes()
		switch {
		case err == redis.Nil:
		case err != nil:
			return unavailable(err)
		default:
			if existing, err = store.Decode(data); err != nil {
				rejected = err
				return err
			}
		}
		var rev int64
		if existing != nil {
			rev = store.Revision(existing)
		}

		next, err := compute(existing)
		if err != nil {
			rejected = err
			return err
		}
		snap, err = store.Stamp(id, next, rev+1)
		if err != nil {
			rejected = err
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, []byte(snap.Data), 0)
			pipe.SAdd(ctx, s.indexKey(collection), id)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.Client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			time.Sleep(time.Duration(1+rand.Intn(3)) * time.Millisecond)
			continue
		}
		if err != nil {
			if err == rejected || errors.Is(err, store.ErrUnavailable) {
				return store.Snapshot{}, err
			}
			return store.Snapshot{}, unavailable(err)
		}
		if err := s.Client.Publish(ctx, s.channel(collection, id), []byte(snap.Data)).Err(); err != nil {
			// The write is committed; subscribers catch up on the next change.
			s.Logger.Warn("STORE", fmt.Sprintf("publish %s/%s failed: %v", collection, id, err))
		}
		return snap, nil
	}
	return store.Snapshot{}, unavailable(fmt.Errorf("%s/%s: too much write contention", collection, id))
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	var del *redis.IntCmd
	_, err := s.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, s.docKey(collection, id))
		pipe.SRem(ctx, s.indexKey(collection), id)
		return nil
	})
	if err != nil {
		return unavailable(err)
	}
	if del.Val() == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, store.ErrNotFound)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, collection string, filters ...store.Filter) ([]store.Snapshot, error) {
	ids, err := s.Client.SMembers(ctx, s.indexKey(collection)).Result()
	if err != nil {
		return nil, unavailable(err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	sort.Strings(ids)

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.docKey(collection, id)
	}
	values, err := s.Client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, unavailable(err)
	}

	var out []store.Snapshot
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Indexed but deleted underneath us.
			continue
		}
		doc, err := store.Decode([]byte(raw))
		if err != nil {
			s.Logger.Warn("STORE", fmt.Sprintf("skipping undecodable %s/%s: %v", collection, ids[i], err))
			continue
		}
		match, err := store.Matches(doc, filters)
		if err != nil {
			return nil, err
		}
		if match {
			out = append(out, store.Snapshot{ID: ids[i], Revision: store.Revision(doc), Data: []byte(raw)})
		}
	}
	return out, nil
}

func (s *Store) Subscribe(ctx context.Context, collection, id string) (<-chan store.Snapshot, error) {
	ps := s.Client.Subscribe(ctx, s.channel(collection, id))
	// Wait for the subscription to be confirmed so no publish is missed
	// between the initial read and the first message.
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, unavailable(err)
	}

	out := make(chan store.Snapshot, 16)
	go func() {
		defer close(out)
		defer ps.Close()

		if snap, err := s.Get(ctx, collection, id); err == nil {
			select {
			case out <- snap:
			case <-ctx.Done():
				return
			}
		}

		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				doc, err := store.Decode([]byte(msg.Payload))
				if err != nil {
					s.Logger.Warn("STORE", fmt.Sprintf("bad change payload on %s: %v", msg.Channel, err))
					continue
				}
				snap := store.Snapshot{ID: id, Revision: store.Revision(doc), Data: []byte(msg.Payload)}
				select {
				case out <- snap:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (s *Store) Close() error {
	return s.Client.Close()
}

// Ping reports whether Redis is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.Client.Ping(ctx).Err()
}

// Connect opens a client and pings it, retrying a few times while Redis
// comes up.
func Connect(ctx context.Context, addr string, db int, log *logger.Logger) (*redis.Client, error) {
	if log == nil {
		log = logger.NewDiscard()
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})

	const maxRetries = 5
	var err error
	for i := 0; i < maxRetries; i++ {
		log.Info("REDIS", fmt.Sprintf("Connecting to Redis at %s (attempt %d/%d)", addr, i+1, maxRetries))
		if err = client.Ping(ctx).Err(); err == nil {
			log.Info("REDIS", "Connected to Redis")
			return client, nil
		}
		log.Error("REDIS", fmt.Sprintf("Failed to connect to Redis: %v", err))
		if i < maxRetries-1 {
			select {
			case <-ctx.Done():
				_ = client.Close()
				return nil, ctx.Err()
			case <-time.After(2 * time.Second):
			}
		}
	}
	_ = client.Close()
	return nil, fmt.Errorf("redis at %s unreachable after %d attempts: %w", addr, maxRetries, err)
}
