package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-gigs/internal/events"
	"ms-gigs/internal/logger"
	"ms-gigs/internal/models"
)

// MessageReader is the part of *kafka.Reader the consumer needs.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Consumer struct {
	reader MessageReader
	log    *logger.Logger
	// Backoff is how long Start waits after a read error.
	Backoff time.Duration
}

// NewConsumer joins groupID on topic. The reader commits offsets as it reads.
func NewConsumer(brokers []string, topic, groupID string, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	return NewConsumerFromReader(reader, log)
}

func NewConsumerFromReader(r MessageReader, log *logger.Logger) *Consumer {
	if log == nil {
		log = logger.NewDiscard()
	}
	return &Consumer{reader: r, log: log, Backoff: time.Second}
}

// Start consumes gig events until ctx is done. Undecodable messages and
// handler failures are logged and skipped.
func (c *Consumer) Start(ctx context.Context, handler events.Handler) {
	c.log.Info("KAFKA", "consumer started")

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				c.log.Info("KAFKA", "consumer stopped")
				return
			}
			c.log.Error("KAFKA", fmt.Sprintf("error reading message: %v", err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.Backoff):
			}
			continue
		}

		var evt models.GigEvent
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			c.log.Warn("KAFKA", fmt.Sprintf("failed to unmarshal message at offset %d: %v", msg.Offset, err))
			continue
		}

		c.log.LogKafka("RECEIVE", msg.Topic, fmt.Sprintf("%s gig=%s", evt.Type, evt.GigID))
		if err := handler(ctx, evt); err != nil {
			c.log.Error("KAFKA", fmt.Sprintf("handling %s for gig %s: %v", evt.Type, evt.GigID, err))
		}
	}
}

// Close leaves the consumer group and releases the reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
