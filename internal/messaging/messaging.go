// Package messaging provides abstractions for message broker communication.
// It defines the minimal surface the pipeline needs so services are not
// coupled to a specific broker implementation.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Message represents a message received from or sent to a message broker.
type Message struct {
	// Subject is the topic/channel the message was published to.
	Subject string

	// Data is the raw message payload.
	Data []byte

	// Metadata contains optional key-value pairs for message headers.
	Metadata map[string]string

	// Timestamp is when the message was published.
	Timestamp time.Time
}

// Publisher publishes messages to subjects.
type Publisher interface {
	// Publish sends a message to the specified subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Close releases any resources held by the publisher.
	Close() error
}

// PublishJSON marshals v to JSON and publishes it to the subject.
func PublishJSON(ctx context.Context, pub Publisher, subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return pub.Publish(ctx, subject, data)
}
