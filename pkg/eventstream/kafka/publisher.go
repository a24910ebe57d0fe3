// Package kafka publishes memory events to a Kafka topic. Events are keyed
// by memory id so every update to one memory lands in the same partition, in
// order.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	segkafka "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/chrysalislabs/chrysalis/pkg/eventstream"
)

const defaultTopic = "chrysalis.memory.events"

// Config holds configuration for the Kafka publisher.
type Config struct {
	// Brokers is the list of bootstrap broker addresses.
	Brokers []string

	// Topic is the destination topic (defaults to "chrysalis.memory.events").
	Topic string

	// Logger is the provided zap logger.
	Logger *zap.Logger
}

// Publisher implements eventstream.Publisher on a kafka-go writer.
type Publisher struct {
	writer *segkafka.Writer
	logger *zap.Logger
}

// NewPublisher creates a Kafka-backed publisher.
func NewPublisher(c Config) (*Publisher, error) {
	if len(c.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker address is required")
	}

	topic := c.Topic
	if topic == "" {
		topic = defaultTopic
	}

	writer := &segkafka.Writer{
		Addr:         segkafka.TCP(c.Brokers...),
		Topic:        topic,
		Balancer:     &segkafka.Hash{},
		RequiredAcks: segkafka.RequireOne,
	}

	c.Logger.Info("kafka publisher initialized",
		zap.Strings("brokers", c.Brokers),
		zap.String("topic", topic),
	)

	return &Publisher{
		writer: writer,
		logger: c.Logger,
	}, nil
}

// PublishMemory writes the event to the topic, keyed by memory id.
func (p *Publisher) PublishMemory(ctx context.Context, event *eventstream.MemoryPersistedEvent) error {
	if event == nil {
		return eventstream.ErrNilMemoryEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event %s: %w", event.EventID, err)
	}

	msg := segkafka.Message{
		Key:   []byte(event.Memory.ID),
		Value: payload,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("writing event %s: %w", event.EventID, err)
	}

	p.logger.Debug("published memory event",
		zap.String("event_id", event.EventID),
		zap.String("memory_id", event.Memory.ID),
	)

	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

var _ eventstream.Publisher = (*Publisher)(nil)
