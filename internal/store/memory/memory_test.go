package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-gigs/internal/store"
	"ms-gigs/internal/store/storetest"
)

func TestMemoryStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.DocumentStore {
		return New()
	})
}

func TestWritesSurviveSubscribersLeaving(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "gigs", "g1", map[string]any{"n": 0}))

	stop := make(chan struct{})
	var writers sync.WaitGroup
	for i := 0; i < 4; i++ {
		writers.Add(1)
		go func() {
			defer writers.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				_, err := s.Update(ctx, "gigs", "g1", store.Fields{"n": store.Increment(1)})
				if !assert.NoError(t, err) {
					return
				}
			}
		}()
	}

	for i := 0; i < 5000; i++ {
		subCtx, cancel := context.WithCancel(ctx)
		_, err := s.Subscribe(subCtx, "gigs", "g1")
		require.NoError(t, err)
		cancel()
	}
	close(stop)
	writers.Wait()

	assert.Eventually(t, func() bool { return s.SubscriberCount("gigs", "g1") == 0 }, time.Second, time.Millisecond)
}

func TestSubscriberCountTracksFeeds(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := s.Subscribe(ctx, "gigs", "g1")
	require.NoError(t, err)
	assert.Equal(t, 1, s.SubscriberCount("gigs", "g1"))

	cancel()
	assert.Eventually(t, func() bool { return s.SubscriberCount("gigs", "g1") == 0 }, time.Second, time.Millisecond)
	_, open := <-ch
	assert.False(t, open)
}
