package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"ms-gigs/internal/logger"
	"ms-gigs/internal/models"
)

// MessageWriter is the part of *kafka.Writer the producer needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	Writer MessageWriter
	Topics Topics
	Logger *logger.Logger
}

func NewProducer(brokers []string, topics Topics, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
	return &Producer{Writer: writer, Topics: topics, Logger: log}
}

// Publish streams a gig event to its topic, keyed by gig id so one gig's
// events stay ordered on a single partition.
func (p *Producer) Publish(ctx context.Context, evt models.GigEvent) error {
	msgBytes, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	topic := p.Topics.For(evt.Type)
	p.Logger.LogKafka("PUBLISH", topic, fmt.Sprintf("%s gig=%s", evt.Type, evt.GigID))

	err = p.Writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(evt.GigID),
		Value: msgBytes,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(evt.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish %s to %s: %w", evt.Type, topic, err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
