package events

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaPublisher writes settlement events to Kafka. Hash balancing on the
// message key keeps every event for one order hash on a single partition, so
// per-order delivery order survives the broker.
type KafkaPublisher struct {
	writer *kafka.Writer
	topics map[string]string
}

func NewKafkaPublisher(brokers []string, topics map[string]string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Snappy,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &KafkaPublisher{writer: writer, topics: topics}, nil
}

// topicFor maps an event type to its configured topic. Types without an
// explicit mapping publish to a topic named after the type itself.
func (p *KafkaPublisher) topicFor(eventType string) string {
	if topic := p.topics[eventType]; topic != "" {
		return topic
	}
	return eventType
}

func (p *KafkaPublisher) Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error {
	msg := kafka.Message{
		Topic: p.topicFor(eventType),
		Key:   []byte(partitionKey),
		Value: payload,
		Time:  time.Now().UTC(),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write %s event: %w", eventType, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
