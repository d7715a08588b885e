package redisstore

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"ms-gigs/internal/models"
	"ms-gigs/internal/store"
	"ms-gigs/internal/store/storetest"
)

// newMiniredisClient starts an in-memory miniredis server and a client bound to it.
func newMiniredisClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	if err := client.Ping(context.Background()).Err(); err != nil {
		mr.Close()
		t.Fatalf("ping miniredis: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func TestRedisStoreWithMiniredis(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.DocumentStore {
		client, _ := newMiniredisClient(t)
		return New(client, "test", nil)
	})
}

func TestKeysAreNamespaced(t *testing.T) {
	client, mr := newMiniredisClient(t)
	s := New(client, "gigsvc", nil)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "gigs", "g1", map[string]any{"status": "live"}))

	assert.True(t, mr.Exists("gigsvc:doc:gigs:g1"))
	members, err := mr.Members("gigsvc:index:gigs")
	require.NoError(t, err)
	assert.Equal(t, []string{"g1"}, members)
}

func TestQuerySkipsDanglingIndexEntries(t *testing.T) {
	client, mr := newMiniredisClient(t)
	s := New(client, "test", nil)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "gigs", "g1", map[string]any{"status": "live"}))
	mr.Del("test:doc:gigs:g1")

	snaps, err := s.Query(ctx, "gigs")
	require.NoError(t, err)
	assert.Empty(t, snaps)
}

func TestUnavailableWhenServerDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	s := New(client, "test", nil)
	mr.Close()

	_, err = s.Get(context.Background(), "gigs", "g1")
	assert.ErrorIs(t, err, store.ErrUnavailable)
}

// TestDocumentStoreAgainstRedisContainer runs the shared store behaviour against a real Redis container.
func TestDocumentStoreAgainstRedisContainer(t *testing.T) {
	if testing.Short() {
		t.Skip("redis container test needs docker")
	}

	ctx := context.Background()
	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start redis container: %v", err)
	}
	defer redisContainer.Terminate(ctx)

	host, err := redisContainer.Host(ctx)
	require.NoError(t, err)
	port, err := redisContainer.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})
	defer client.Close()

	n := 0
	storetest.Run(t, func(t *testing.T) store.DocumentStore {
		n++
		return New(client, fmt.Sprintf("it%d", n), nil)
	})
}

func TestWriteReportsUnavailableWhenRedisDrops(t *testing.T) {
	client, mr := newMiniredisClient(t)
	s := New(client, "", nil)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "gigs", "g1", map[string]any{"n": 1}))

	mr.Close()
	_, err := s.Update(ctx, "gigs", "g1", store.Fields{"n": store.Increment(1)})
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrUnavailable)
	assert.ErrorIs(t, store.Translate(err, models.ErrGigNotFound), models.ErrStoreUnavailable)
	assert.Error(t, s.Ping(ctx))
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := Connect(context.Background(), mr.Addr(), 0, nil)
	require.NoError(t, err)
	defer client.Close()
	assert.NoError(t, New(client, "", nil).Ping(context.Background()))
}

func TestConnectGivesUpWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Connect(ctx, "127.0.0.1:1", 0, nil)
	assert.Error(t, err)
}
