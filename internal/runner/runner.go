// Package runner drives a pipeline stage from a durable JetStream consumer:
// fetch a batch, hand it to the stage, then ack or nak each message from the
// stage's per-item report. Messages that exhaust their delivery attempts are
// escalated to the dead-letter stream and terminally acknowledged.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/buralog/etl-healthcare/internal/logging"
)

// BatchProcessor processes one fetched batch. The returned slice must have
// one entry per input message, in order: nil means the message is done
// (processed or terminally dropped), non-nil means redeliver.
type BatchProcessor func(ctx context.Context, payloads [][]byte) []error

// DeadLetterer escalates a message that exhausted its delivery attempts out
// of the work queue. Implemented by dlq.Queue.
type DeadLetterer interface {
	Write(ctx context.Context, stage string, payload []byte, cause error, attempts int) error
}

// Config holds the consume loop settings.
type Config struct {
	// Stage names the pipeline stage for logging and DLQ subjects.
	Stage string

	// BatchSize is the maximum number of messages fetched per iteration.
	BatchSize int

	// FetchWait bounds how long a fetch blocks waiting for messages.
	FetchWait time.Duration

	// BatchBudget is the wall-clock budget for one batch invocation.
	// Items still in flight at expiry fail and are redelivered.
	BatchBudget time.Duration

	// MaxDeliver mirrors the consumer's delivery bound; a failing message
	// on its final attempt is dead-lettered instead of redelivered.
	MaxDeliver int
}

// Runner consumes a stage's subject and applies the processor.
type Runner struct {
	consumer    jetstream.Consumer
	process     BatchProcessor
	deadLetters DeadLetterer
	cfg         Config
	log         *logging.Logger
}

// New constructs a consume loop for one stage.
func New(consumer jetstream.Consumer, process BatchProcessor, deadLetters DeadLetterer, cfg Config, log *logging.Logger) *Runner {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.FetchWait <= 0 {
		cfg.FetchWait = 5 * time.Second
	}
	if cfg.BatchBudget <= 0 {
		cfg.BatchBudget = 30 * time.Second
	}
	return &Runner{
		consumer:    consumer,
		process:     process,
		deadLetters: deadLetters,
		cfg:         cfg,
		log:         log,
	}
}

// Run loops until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.log.Info("stage consumer started", logging.Service(r.cfg.Stage))

	for {
		if err := ctx.Err(); err != nil {
			r.log.Info("stage consumer stopping", logging.Service(r.cfg.Stage))
			return nil
		}

		msgs, err := r.fetch(ctx)
		if err != nil {
			r.log.WarnContext(ctx, "fetch failed", logging.Error(err), logging.Service(r.cfg.Stage))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		if len(msgs) == 0 {
			continue
		}

		r.dispatch(ctx, msgs)
	}
}

func (r *Runner) fetch(ctx context.Context) ([]jetstream.Msg, error) {
	fetched, err := r.consumer.Fetch(r.cfg.BatchSize, jetstream.FetchMaxWait(r.cfg.FetchWait))
	if err != nil {
		if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return nil, nil
		}
		return nil, err
	}

	var msgs []jetstream.Msg
	for msg := range fetched.Messages() {
		msgs = append(msgs, msg)
	}
	if err := fetched.Error(); err != nil {
		return msgs, err
	}
	return msgs, nil
}

func (r *Runner) dispatch(ctx context.Context, msgs []jetstream.Msg) {
	payloads := make([][]byte, len(msgs))
	for i, msg := range msgs {
		payloads[i] = msg.Data()
	}

	batchCtx, cancel := context.WithTimeout(ctx, r.cfg.BatchBudget)
	outcomes := r.process(batchCtx, payloads)
	cancel()

	for i, msg := range msgs {
		var cause error
		if i < len(outcomes) {
			cause = outcomes[i]
		} else {
			cause = fmt.Errorf("no outcome reported for message %d", i)
		}

		if cause == nil {
			if err := msg.Ack(); err != nil {
				r.log.WarnContext(ctx, "ack failed", logging.Error(err))
			}
			continue
		}

		if r.exhausted(msg) {
			if err := r.deadLetters.Write(ctx, r.cfg.Stage, msg.Data(), cause, r.cfg.MaxDeliver); err != nil {
				// Keep the message in flight; redelivery retries the DLQ write.
				r.log.ErrorContext(ctx, "dead-letter write failed", logging.Error(err))
				_ = msg.Nak()
				continue
			}
			if err := msg.Ack(); err != nil {
				r.log.WarnContext(ctx, "ack after dead-letter failed", logging.Error(err))
			}
			r.log.WarnContext(ctx, "message dead-lettered",
				logging.Service(r.cfg.Stage), logging.Error(cause))
			continue
		}

		if err := msg.Nak(); err != nil {
			r.log.WarnContext(ctx, "nak failed", logging.Error(err))
		}
	}
}

func (r *Runner) exhausted(msg jetstream.Msg) bool {
	if r.cfg.MaxDeliver <= 0 {
		return false
	}
	meta, err := msg.Metadata()
	if err != nil {
		return false
	}
	return int(meta.NumDelivered) >= r.cfg.MaxDeliver
}
