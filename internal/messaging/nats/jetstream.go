// Package nats provides JetStream support for durable, at-least-once
// messaging with bounded redelivery.
package nats

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/buralog/etl-healthcare/internal/messaging"
)

// JetStreamClient extends Client with JetStream persistence capabilities.
// Its Publish goes through JetStream and waits for the stream ack, so a nil
// error means the message is durably stored.
type JetStreamClient struct {
	*Client
	js jetstream.JetStream
}

// StreamConfig defines a JetStream stream configuration.
type StreamConfig struct {
	Name     string
	Subjects []string

	// MaxAge is the maximum age of messages in the stream.
	MaxAge time.Duration

	// Retention policy (WorkQueuePolicy for stage queues, LimitsPolicy for
	// the DLQ so entries survive until inspected or aged out).
	Retention jetstream.RetentionPolicy
}

// ConsumerConfig defines a durable pull consumer.
type ConsumerConfig struct {
	Name          string
	FilterSubject string

	// AckWait is the per-delivery visibility window; an unacknowledged
	// message is redelivered after it elapses.
	AckWait time.Duration

	// MaxDeliver bounds delivery attempts before dead-letter escalation.
	MaxDeliver int

	// MaxAckPending is the maximum number of unacknowledged messages.
	MaxAckPending int
}

// RecordsStream returns the work-queue stream carrying pipeline envelopes.
func RecordsStream() StreamConfig {
	return StreamConfig{
		Name: messaging.StreamRecords,
		Subjects: []string{
			messaging.SubjectRawRecords,
			messaging.SubjectNormalizedRecords,
			messaging.SubjectPersistedRecords,
		},
		MaxAge:    24 * time.Hour,
		Retention: jetstream.WorkQueuePolicy,
	}
}

// DLQStream returns the dead-letter stream.
func DLQStream() StreamConfig {
	return StreamConfig{
		Name:      messaging.StreamDLQ,
		Subjects:  []string{messaging.SubjectDLQPrefix + ">"},
		MaxAge:    7 * 24 * time.Hour,
		Retention: jetstream.LimitsPolicy,
	}
}

// DefaultConsumerConfig returns sensible defaults for a stage consumer.
func DefaultConsumerConfig(name, filterSubject string) ConsumerConfig {
	return ConsumerConfig{
		Name:          name,
		FilterSubject: filterSubject,
		AckWait:       30 * time.Second,
		MaxDeliver:    5,
		MaxAckPending: 256,
	}
}

// NewJetStreamClient creates a JetStream-enabled client.
func NewJetStreamClient(cfg Config) (*JetStreamClient, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(client.conn)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return &JetStreamClient{Client: client, js: js}, nil
}

// Publish sends a message through JetStream and waits for the stream ack.
func (c *JetStreamClient) Publish(ctx context.Context, subject string, data []byte) error {
	if _, err := c.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("jetstream publish %s: %w", subject, err)
	}
	return nil
}

// CreateOrUpdateStream creates or updates a stream.
func (c *JetStreamClient) CreateOrUpdateStream(ctx context.Context, cfg StreamConfig) (jetstream.Stream, error) {
	stream, err := c.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      cfg.Name,
		Subjects:  cfg.Subjects,
		MaxAge:    cfg.MaxAge,
		Retention: cfg.Retention,
		Storage:   jetstream.FileStorage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create/update stream %s: %w", cfg.Name, err)
	}
	return stream, nil
}

// CreateConsumer creates or updates a durable pull consumer on the stream.
func (c *JetStreamClient) CreateConsumer(ctx context.Context, stream string, cfg ConsumerConfig) (jetstream.Consumer, error) {
	consumer, err := c.js.CreateOrUpdateConsumer(ctx, stream, jetstream.ConsumerConfig{
		Durable:       cfg.Name,
		FilterSubject: cfg.FilterSubject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       cfg.AckWait,
		MaxDeliver:    cfg.MaxDeliver,
		MaxAckPending: cfg.MaxAckPending,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer %s on %s: %w", cfg.Name, stream, err)
	}
	return consumer, nil
}
