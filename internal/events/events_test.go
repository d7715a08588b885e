package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-gigs/internal/models"
)

func TestNewCarriesSnapshotOnlyForTerminalEvents(t *testing.T) {
	g := &models.Gig{ID: "g1", ArtistID: "a1", PlayedSongs: []int{1}}
	now := time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC)

	ended := New(models.EventGigEnded, g, now)
	require.NotNil(t, ended.Gig)
	assert.Equal(t, "g1", ended.GigID)
	assert.Equal(t, "a1", ended.ArtistID)
	assert.NotEmpty(t, ended.EventID)

	g.PlayedSongs[0] = 99
	assert.Equal(t, 1, ended.Gig.PlayedSongs[0], "snapshot must not alias the gig")

	live := New(models.EventGigLive, g, now)
	assert.Nil(t, live.Gig)
}

func TestLocalBusRoutesByType(t *testing.T) {
	bus := NewLocalBus(nil)
	var ended, all int
	bus.On(func(ctx context.Context, evt models.GigEvent) error { ended++; return nil }, models.EventGigEnded)
	bus.On(func(ctx context.Context, evt models.GigEvent) error { all++; return errors.New("ignored") })

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, models.GigEvent{Type: models.EventGigEnded}))
	require.NoError(t, bus.Publish(ctx, models.GigEvent{Type: models.EventGigLive}))

	assert.Equal(t, 1, ended)
	assert.Equal(t, 2, all)
}

type failing struct{}

func (failing) Publish(context.Context, models.GigEvent) error { return errors.New("broker down") }

func TestFanoutReportsFirstError(t *testing.T) {
	bus := NewLocalBus(nil)
	got := 0
	bus.On(func(ctx context.Context, evt models.GigEvent) error { got++; return nil })

	err := Fanout{failing{}, bus}.Publish(context.Background(), models.GigEvent{Type: models.EventGigLive})
	assert.EqualError(t, err, "broker down")
	assert.Equal(t, 1, got)
}
