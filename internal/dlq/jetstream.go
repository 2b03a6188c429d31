// Package dlq escalates exhausted messages to the dead-letter stream for
// later inspection and administrative replay.
package dlq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/buralog/etl-healthcare/internal/messaging"
	natsmsg "github.com/buralog/etl-healthcare/internal/messaging/nats"
	"github.com/buralog/etl-healthcare/internal/metrics"
)

// FailedMessage captures a dead-lettered message with its failure context.
type FailedMessage struct {
	Timestamp time.Time `json:"timestamp"`
	Stage     string    `json:"stage"`
	Payload   []byte    `json:"payload"`
	Error     string    `json:"error"`
	Attempts  int       `json:"attempts"`
}

// Queue writes exhausted messages to the JetStream DLQ stream. Safe for use
// across multiple worker instances.
type Queue struct {
	js      *natsmsg.JetStreamClient
	written uint64
}

// NewQueue ensures the DLQ stream exists and returns a queue bound to it.
func NewQueue(ctx context.Context, js *natsmsg.JetStreamClient) (*Queue, error) {
	if js == nil {
		return nil, fmt.Errorf("jetstream client is nil")
	}

	if _, err := js.CreateOrUpdateStream(ctx, natsmsg.DLQStream()); err != nil {
		return nil, fmt.Errorf("create dlq stream: %w", err)
	}

	return &Queue{js: js}, nil
}

// Write records an exhausted message under records.dlq.<stage>.
func (q *Queue) Write(ctx context.Context, stage string, payload []byte, cause error, attempts int) error {
	if q == nil {
		return nil
	}

	failed := FailedMessage{
		Timestamp: time.Now().UTC(),
		Stage:     stage,
		Payload:   payload,
		Error:     cause.Error(),
		Attempts:  attempts,
	}

	data, err := json.Marshal(failed)
	if err != nil {
		return fmt.Errorf("marshal dlq entry: %w", err)
	}

	if err := q.js.Publish(ctx, messaging.DLQSubject(stage), data); err != nil {
		return fmt.Errorf("publish dlq entry: %w", err)
	}

	atomic.AddUint64(&q.written, 1)
	metrics.DLQWrites.WithLabelValues(stage).Inc()
	return nil
}

// Written returns the number of entries this instance has dead-lettered.
func (q *Queue) Written() uint64 {
	return atomic.LoadUint64(&q.written)
}
