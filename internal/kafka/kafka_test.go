package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ms-gigs/internal/logger"
	"ms-gigs/internal/models"
)

var testTopics = Topics{Lifecycle: "gigs.lifecycle", Requests: "gigs.requests", Queue: "gigs.queue"}

type MockWriter struct {
	mock.Mock
}

func (m *MockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *MockWriter) Close() error {
	return m.Called().Error(0)
}

func TestTopicRouting(t *testing.T) {
	assert.Equal(t, "gigs.lifecycle", testTopics.For(models.EventGigEnded))
	assert.Equal(t, "gigs.lifecycle", testTopics.For(models.EventGigCreated))
	assert.Equal(t, "gigs.requests", testTopics.For(models.EventRequestAccepted))
	assert.Equal(t, "gigs.queue", testTopics.For(models.EventQueueSwapped))
	assert.Equal(t, "gigs.queue", testTopics.For(models.EventSongPlayed))
	assert.Len(t, testTopics.All(), 3)
}

func TestProducerPublishKeysByGig(t *testing.T) {
	w := new(MockWriter)
	w.On("WriteMessages", mock.Anything, mock.MatchedBy(func(msgs []kafka.Message) bool {
		if len(msgs) != 1 {
			return false
		}
		var evt models.GigEvent
		if err := json.Unmarshal(msgs[0].Value, &evt); err != nil {
			return false
		}
		return msgs[0].Topic == "gigs.requests" && string(msgs[0].Key) == "g1" && evt.RequestID == "r1"
	})).Return(nil).Once()

	p := &Producer{Writer: w, Topics: testTopics, Logger: logger.NewDiscard()}
	err := p.Publish(context.Background(), models.GigEvent{Type: models.EventRequestAccepted, GigID: "g1", RequestID: "r1"})
	require.NoError(t, err)
	w.AssertExpectations(t)
}

func TestProducerWrapsWriteError(t *testing.T) {
	w := new(MockWriter)
	w.On("WriteMessages", mock.Anything, mock.Anything).Return(errors.New("leader not available"))

	p := &Producer{Writer: w, Topics: testTopics, Logger: logger.NewDiscard()}
	err := p.Publish(context.Background(), models.GigEvent{Type: models.EventGigLive, GigID: "g1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gigs.lifecycle")
}

// fakeReader replays queued messages and then blocks until ctx is done.
type fakeReader struct {
	mu   sync.Mutex
	msgs []kafka.Message
	errs []error
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		r.mu.Unlock()
		return kafka.Message{}, err
	}
	if len(r.msgs) > 0 {
		m := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) Close() error { return nil }

func TestConsumerSkipsBadMessagesAndStopsOnCancel(t *testing.T) {
	good, err := json.Marshal(models.GigEvent{Type: models.EventGigEnded, GigID: "g9"})
	require.NoError(t, err)
	reader := &fakeReader{
		errs: []error{errors.New("rebalancing")},
		msgs: []kafka.Message{{Value: []byte("{not json")}, {Topic: "gigs.lifecycle", Value: good}},
	}
	c := NewConsumerFromReader(reader, nil)
	c.Backoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan models.GigEvent, 1)
	done := make(chan struct{})
	go func() {
		c.Start(ctx, func(ctx context.Context, evt models.GigEvent) error {
			got <- evt
			return nil
		})
		close(done)
	}()

	select {
	case evt := <-got:
		assert.Equal(t, "g9", evt.GigID)
	case <-time.After(2 * time.Second):
		t.Fatal("handler never called")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
}
