package kafka

import (
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-gigs/internal/logger"
	"ms-gigs/internal/models"
)

// Topics names the three streams gig events are split across.
type Topics struct {
	Lifecycle string
	Requests  string
	Queue     string
}

func (t Topics) All() []string {
	return []string{t.Lifecycle, t.Requests, t.Queue}
}

// For routes an event type to its topic.
func (t Topics) For(evt models.GigEventType) string {
	switch evt {
	case models.EventRequestSubmitted, models.EventRequestAccepted, models.EventRequestRejected:
		return t.Requests
	case models.EventQueueSwapped, models.EventSongPlayed:
		return t.Queue
	default:
		return t.Lifecycle
	}
}

// EnsureTopicsExist creates any missing gig topics through the cluster controller.
func EnsureTopicsExist(brokers []string, topics []string, log *logger.Logger) error {
	if len(brokers) == 0 {
		return fmt.Errorf("no kafka brokers configured")
	}
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return err
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return err
	}
	controllerConn, err := kafka.Dial("tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	if err != nil {
		return err
	}
	defer controllerConn.Close()

	for _, topic := range topics {
		err = controllerConn.CreateTopics(kafka.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		})
		switch {
		case err == nil:
			log.LogKafka("CREATE", topic, "topic created")
		case errors.Is(err, kafka.TopicAlreadyExists):
			log.LogKafka("CREATE", topic, "topic already exists")
		default:
			// Keep going; one bad topic should not block the rest.
			log.Error("KAFKA", fmt.Sprintf("creating topic %s: %v", topic, err))
		}
	}

	// Give the controller time to propagate metadata.
	time.Sleep(1 * time.Second)
	return nil
}
