package audit_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buralog/etl-healthcare/internal/audit"
	"github.com/buralog/etl-healthcare/internal/logging"
	"github.com/buralog/etl-healthcare/internal/messaging"
)

type channelPublisher struct {
	msgs chan []byte
	err  error
}

func (p *channelPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	if p.err != nil {
		return p.err
	}
	if subject != messaging.SubjectAudit {
		return errors.New("unexpected subject " + subject)
	}
	p.msgs <- append([]byte(nil), data...)
	return nil
}

func (p *channelPublisher) Close() error { return nil }

func quietLogger() *logging.Logger {
	return logging.New(slog.LevelError+4, "text")
}

func TestNotifier_DeliversEvent(t *testing.T) {
	pub := &channelPublisher{msgs: make(chan []byte, 1)}
	notifier := audit.NewNotifier(pub, quietLogger(), time.Second)

	notifier.Notify(context.Background(), audit.Event{
		Stage:      "persist",
		TenantID:   "tenant-1",
		EntityType: "observation",
		EntityID:   "hash-a",
		TraceID:    "trace-1",
	})

	select {
	case data := <-pub.msgs:
		var event audit.Event
		require.NoError(t, json.Unmarshal(data, &event))
		assert.Equal(t, "persist", event.Stage)
		assert.Equal(t, "tenant-1", event.TenantID)
		assert.NotEmpty(t, event.OccurredAt, "timestamp is stamped when absent")
	case <-time.After(2 * time.Second):
		t.Fatal("audit event never delivered")
	}
}

func TestNotifier_SurvivesCallerCancellation(t *testing.T) {
	pub := &channelPublisher{msgs: make(chan []byte, 1)}
	notifier := audit.NewNotifier(pub, quietLogger(), time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	notifier.Notify(ctx, audit.Event{Stage: "normalize", TenantID: "tenant-1"})

	select {
	case <-pub.msgs:
	case <-time.After(2 * time.Second):
		t.Fatal("notification should outlive the caller's context")
	}
}

func TestNotifier_SwallowsPublishFailure(t *testing.T) {
	pub := &channelPublisher{msgs: make(chan []byte, 1), err: errors.New("broker down")}
	notifier := audit.NewNotifier(pub, quietLogger(), 50*time.Millisecond)

	// Must not panic or block; failures are logged and counted only.
	notifier.Notify(context.Background(), audit.Event{Stage: "persist", TenantID: "tenant-1"})
	time.Sleep(100 * time.Millisecond)
}

func TestNotifier_NilReceiverAndPublisher(t *testing.T) {
	var nilNotifier *audit.Notifier
	nilNotifier.Notify(context.Background(), audit.Event{})

	notifier := audit.NewNotifier(nil, quietLogger(), 0)
	notifier.Notify(context.Background(), audit.Event{})
}
