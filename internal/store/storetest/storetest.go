// Package storetest is the behaviour every DocumentStore backend must share.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-gigs/internal/store"
)

type doc struct {
	ID       string         `json:"id"`
	Status   string         `json:"status"`
	Artist   string         `json:"artistId"`
	Votes    map[string]int `json:"votes"`
	Played   []int          `json:"playedSongs"`
	Revision int64          `json:"revision"`
}

// Run exercises a fresh store returned by newStore.
func Run(t *testing.T, newStore func(t *testing.T) store.DocumentStore) {
	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(context.Background(), "gigs", "nope")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("SetGetBumpsRevision", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Set(ctx, "gigs", "g1", doc{ID: "g1", Status: "upcoming"}))
		require.NoError(t, s.Set(ctx, "gigs", "g1", doc{ID: "g1", Status: "live"}))

		snap, err := s.Get(ctx, "gigs", "g1")
		require.NoError(t, err)
		var d doc
		require.NoError(t, snap.DataTo(&d))
		assert.Equal(t, "live", d.Status)
		assert.Equal(t, int64(2), snap.Revision)
		assert.Equal(t, int64(2), d.Revision)
	})

	t.Run("CreateIfAbsent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Create(ctx, "votes", "g1_u1_5", map[string]any{"songId": 5}))
		err := s.Create(ctx, "votes", "g1_u1_5", map[string]any{"songId": 5})
		assert.ErrorIs(t, err, store.ErrAlreadyExists)
	})

	t.Run("UpdateAppliesAllFields", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Set(ctx, "gigs", "g1", doc{ID: "g1", Status: "live"}))

		snap, err := s.Update(ctx, "gigs", "g1", store.Fields{
			"votes.12":    store.Increment(1),
			"playedSongs": store.ArrayUnion(3, 3, 4),
			"status":      "ended",
		})
		require.NoError(t, err)
		var d doc
		require.NoError(t, snap.DataTo(&d))
		assert.Equal(t, 1, d.Votes["12"])
		assert.Equal(t, []int{3, 4}, d.Played)
		assert.Equal(t, "ended", d.Status)
	})

	t.Run("UpdateMissing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Update(context.Background(), "gigs", "ghost", store.Fields{"status": "live"})
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("IfRevision", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Set(ctx, "gigs", "g1", doc{ID: "g1"}))

		_, err := s.Update(ctx, "gigs", "g1", store.Fields{"status": "live"}, store.IfRevision(7))
		assert.ErrorIs(t, err, store.ErrRevisionMismatch)

		snap, err := s.Update(ctx, "gigs", "g1", store.Fields{"status": "live"}, store.IfRevision(1))
		require.NoError(t, err)
		assert.Equal(t, int64(2), snap.Revision)
	})

	t.Run("ConcurrentIncrementsAreNotLost", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Set(ctx, "gigs", "g1", doc{ID: "g1"}))

		const voters = 10
		var wg sync.WaitGroup
		for i := 0; i < voters; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.Update(ctx, "gigs", "g1", store.Fields{"votes.7": store.Increment(1)})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		snap, err := s.Get(ctx, "gigs", "g1")
		require.NoError(t, err)
		var d doc
		require.NoError(t, snap.DataTo(&d))
		assert.Equal(t, voters, d.Votes["7"])
	})

	t.Run("QueryFilters", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Set(ctx, "gigs", "a", doc{ID: "a", Status: "live", Artist: "x"}))
		require.NoError(t, s.Set(ctx, "gigs", "b", doc{ID: "b", Status: "upcoming", Artist: "x"}))
		require.NoError(t, s.Set(ctx, "gigs", "c", doc{ID: "c", Status: "confirmed", Artist: "y"}))

		live, err := s.Query(ctx, "gigs", store.Where("artistId", store.OpEqual, "x"), store.Where("status", store.OpEqual, "live"))
		require.NoError(t, err)
		require.Len(t, live, 1)
		assert.Equal(t, "a", live[0].ID)

		pending, err := s.Query(ctx, "gigs", store.Where("status", store.OpIn, []string{"upcoming", "confirmed"}))
		require.NoError(t, err)
		var ids []string
		for _, snap := range pending {
			ids = append(ids, snap.ID)
		}
		assert.Equal(t, []string{"b", "c"}, ids)
	})

	t.Run("Delete", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Set(ctx, "gigs", "g1", doc{ID: "g1"}))
		require.NoError(t, s.Delete(ctx, "gigs", "g1"))
		_, err := s.Get(ctx, "gigs", "g1")
		assert.ErrorIs(t, err, store.ErrNotFound)
		assert.ErrorIs(t, s.Delete(ctx, "gigs", "g1"), store.ErrNotFound)

		all, err := s.Query(ctx, "gigs")
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("SubscribeDeliversCurrentThenChanges", func(t *testing.T) {
		s := newStore(t)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		require.NoError(t, s.Set(ctx, "gigs", "g1", doc{ID: "g1", Status: "upcoming"}))

		ch, err := s.Subscribe(ctx, "gigs", "g1")
		require.NoError(t, err)

		first := receive(t, ch)
		assert.Equal(t, int64(1), first.Revision)

		_, err = s.Update(ctx, "gigs", "g1", store.Fields{"status": "live"})
		require.NoError(t, err)
		second := receive(t, ch)
		var d doc
		require.NoError(t, second.DataTo(&d))
		assert.Equal(t, "live", d.Status)

		cancel()
		assert.Eventually(t, func() bool {
			select {
			case _, ok := <-ch:
				return !ok
			default:
				return false
			}
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("MutateRetriesOnConflict", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Set(ctx, "gigs", "g1", doc{ID: "g1", Status: "upcoming"}))

		calls := 0
		out, err := store.Mutate(ctx, s, "gigs", "g1", 3, func(d *doc) (store.Fields, error) {
			calls++
			if calls == 1 {
				// Another writer slips in between read and write.
				_, err := s.Update(ctx, "gigs", "g1", store.Fields{"artistId": "late"})
				require.NoError(t, err)
			}
			return store.Fields{"status": "live"}, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
		assert.Equal(t, "live", out.Status)
		assert.Equal(t, "late", out.Artist)
	})

	t.Run("MutateGivesUp", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Set(ctx, "gigs", "g1", doc{ID: "g1"}))

		_, err := store.Mutate(ctx, s, "gigs", "g1", 2, func(d *doc) (store.Fields, error) {
			_, err := s.Update(ctx, "gigs", "g1", store.Fields{"votes.1": store.Increment(1)})
			require.NoError(t, err)
			return store.Fields{"status": "live"}, nil
		})
		assert.True(t, errors.Is(err, store.ErrRevisionMismatch))
	})
}

func receive(t *testing.T, ch <-chan store.Snapshot) store.Snapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		require.True(t, ok, "subscription closed early")
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return store.Snapshot{}
}
