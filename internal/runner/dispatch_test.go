package runner

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buralog/etl-healthcare/internal/logging"
)

type fakeMsg struct {
	data         []byte
	numDelivered uint64
	acked        bool
	naked        bool
}

func (m *fakeMsg) Data() []byte { return m.data }
func (m *fakeMsg) Headers() nats.Header { return nil }
func (m *fakeMsg) Subject() string { return "records.raw" }
func (m *fakeMsg) Reply() string { return "" }

func (m *fakeMsg) Metadata() (*jetstream.MsgMetadata, error) {
	return &jetstream.MsgMetadata{NumDelivered: m.numDelivered}, nil
}

func (m *fakeMsg) Ack() error { m.acked = true; return nil }
func (m *fakeMsg) DoubleAck(context.Context) error { m.acked = true; return nil }
func (m *fakeMsg) Nak() error { m.naked = true; return nil }
func (m *fakeMsg) NakWithDelay(time.Duration) error { m.naked = true; return nil }
func (m *fakeMsg) InProgress() error { return nil }
func (m *fakeMsg) Term() error { return nil }
func (m *fakeMsg) TermWithReason(string) error { return nil }

type fakeDeadLetterer struct {
	err      error
	payloads []string
}

func (d *fakeDeadLetterer) Write(ctx context.Context, stage string, payload []byte, cause error, attempts int) error {
	if d.err != nil {
		return d.err
	}
	d.payloads = append(d.payloads, string(payload))
	return nil
}

func testRunner(process BatchProcessor, dl DeadLetterer) *Runner {
	return New(nil, process, dl, Config{Stage: "normalize", MaxDeliver: 5},
		logging.New(slog.LevelError+4, "text"))
}

func constantOutcomes(errs ...error) BatchProcessor {
	return func(ctx context.Context, payloads [][]byte) []error {
		return errs
	}
}

func TestDispatch_AcksSuccesses(t *testing.T) {
	dl := &fakeDeadLetterer{}
	r := testRunner(constantOutcomes(nil, nil), dl)

	msgs := []*fakeMsg{
		{data: []byte("a"), numDelivered: 1},
		{data: []byte("b"), numDelivered: 1},
	}
	r.dispatch(context.Background(), []jetstream.Msg{msgs[0], msgs[1]})

	for _, m := range msgs {
		assert.True(t, m.acked)
		assert.False(t, m.naked)
	}
	assert.Empty(t, dl.payloads)
}

func TestDispatch_NaksFailureBelowDeliveryBound(t *testing.T) {
	dl := &fakeDeadLetterer{}
	r := testRunner(constantOutcomes(errors.New("transient")), dl)

	msg := &fakeMsg{data: []byte("a"), numDelivered: 2}
	r.dispatch(context.Background(), []jetstream.Msg{msg})

	assert.True(t, msg.naked, "failure short of the delivery bound redelivers")
	assert.False(t, msg.acked)
	assert.Empty(t, dl.payloads)
}

func TestDispatch_DeadLettersExhaustedMessage(t *testing.T) {
	dl := &fakeDeadLetterer{}
	r := testRunner(constantOutcomes(errors.New("still failing")), dl)

	msg := &fakeMsg{data: []byte("poison"), numDelivered: 5}
	r.dispatch(context.Background(), []jetstream.Msg{msg})

	require.Equal(t, []string{"poison"}, dl.payloads)
	assert.True(t, msg.acked, "dead-lettered message leaves the work queue")
	assert.False(t, msg.naked)
}

func TestDispatch_NaksWhenDeadLetterWriteFails(t *testing.T) {
	dl := &fakeDeadLetterer{err: errors.New("dlq stream unavailable")}
	r := testRunner(constantOutcomes(errors.New("still failing")), dl)

	msg := &fakeMsg{data: []byte("poison"), numDelivered: 5}
	r.dispatch(context.Background(), []jetstream.Msg{msg})

	assert.True(t, msg.naked, "message stays in flight until the escalation lands")
	assert.False(t, msg.acked)
}

func TestDispatch_MissingOutcomeRedelivers(t *testing.T) {
	dl := &fakeDeadLetterer{}
	r := testRunner(constantOutcomes(nil), dl)

	msgs := []*fakeMsg{
		{data: []byte("a"), numDelivered: 1},
		{data: []byte("b"), numDelivered: 1},
	}
	r.dispatch(context.Background(), []jetstream.Msg{msgs[0], msgs[1]})

	assert.True(t, msgs[0].acked)
	assert.True(t, msgs[1].naked, "a message with no reported outcome is redelivered")
}
