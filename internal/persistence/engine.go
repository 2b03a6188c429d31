// Package persistence consumes normalized events and writes them into the
// keyed store through idempotent conditional upserts, emitting one persisted
// confirmation per accepted write.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/buralog/etl-healthcare/internal/audit"
	"github.com/buralog/etl-healthcare/internal/batch"
	"github.com/buralog/etl-healthcare/internal/logging"
	"github.com/buralog/etl-healthcare/internal/messaging"
	"github.com/buralog/etl-healthcare/internal/metrics"
	"github.com/buralog/etl-healthcare/internal/model"
	"github.com/buralog/etl-healthcare/internal/repository"
	"github.com/buralog/etl-healthcare/internal/validator"
)

// ErrEnvelopeInvalid marks a normalized envelope that failed schema
// validation; the item is reported for redelivery.
var ErrEnvelopeInvalid = errors.New("normalized envelope failed validation")

// Engine persists batches of normalized events. Collaborators are injected
// once at startup; the engine is safe for concurrent batches.
type Engine struct {
	repo      repository.Repository
	envelopes *validator.EnvelopeValidator
	pub       messaging.Publisher
	audit     *audit.Notifier
	log       *logging.Logger
}

// NewEngine wires the persistence stage.
func NewEngine(
	repo repository.Repository,
	envelopes *validator.EnvelopeValidator,
	pub messaging.Publisher,
	auditor *audit.Notifier,
	log *logging.Logger,
) *Engine {
	return &Engine{
		repo:      repo,
		envelopes: envelopes,
		pub:       pub,
		audit:     auditor,
		log:       log,
	}
}

// ProcessBatch persists every event independently and concurrently. A
// condition failure or transient store error is isolated to its record and
// reported for redelivery; siblings are unaffected.
func (e *Engine) ProcessBatch(ctx context.Context, events []model.NormalizedEventEnvelope) *batch.Report {
	return batch.Run(ctx, len(events), func(ctx context.Context, i int) batch.ItemResult {
		event := &events[i]
		result := batch.ItemResult{Index: i, ID: event.Metadata.IdempotencyKey}

		start := time.Now()
		result.Err = e.processItem(ctx, event)
		metrics.PersistDuration.Observe(time.Since(start).Seconds())

		if result.Err != nil {
			e.log.WarnContext(ctx, "persistence item failed",
				logging.Error(result.Err),
				logging.Tenant(event.Metadata.TenantID),
			)
		}
		return result
	})
}

func (e *Engine) processItem(ctx context.Context, event *model.NormalizedEventEnvelope) error {
	if res := e.envelopes.ValidateNormalized(event); !res.OK() {
		return fmt.Errorf("%w: %v", ErrEnvelopeInvalid, res.Error())
	}

	ctx = logging.WithTraceID(ctx, event.Metadata.TraceID)

	result, err := e.repo.Upsert(ctx, repository.WriteRequest{
		TenantID:       event.Metadata.TenantID,
		EntityType:     event.Data.EntityType,
		EntityID:       event.Data.EntityID,
		PatientID:      event.Data.PatientID,
		Modality:       event.Data.Modality,
		Attributes:     event.Data.Attributes,
		IdempotencyKey: event.Metadata.IdempotencyKey,
	})
	if err != nil {
		if errors.Is(err, repository.ErrWriteConflict) {
			metrics.WriteConflicts.Inc()
		}
		return fmt.Errorf("upsert %s/%s: %w",
			event.Data.EntityType, event.Data.EntityID, err)
	}

	if result.Replayed {
		metrics.IdempotentReplays.Inc()
		e.log.DebugContext(ctx, "identical-key redelivery resolved as no-op",
			append(logging.Entity(event.Data.EntityType, event.Data.EntityID),
				logging.Tenant(event.Metadata.TenantID))...)
	} else {
		metrics.RecordsPersisted.WithLabelValues(event.Metadata.TenantID).Inc()
	}

	// Confirmation is emitted even for replays: downstream consumers are
	// at-least-once and dedup on the idempotency key.
	if err := e.confirm(ctx, event, &result.Record); err != nil {
		return err
	}

	e.audit.Notify(ctx, audit.Event{
		Stage:      "persist",
		TenantID:   event.Metadata.TenantID,
		EntityType: event.Data.EntityType,
		EntityID:   event.Data.EntityID,
		TraceID:    event.Metadata.TraceID,
	})

	return nil
}

func (e *Engine) confirm(ctx context.Context, event *model.NormalizedEventEnvelope, record *repository.Record) error {
	confirmation := model.PersistedConfirmationEvent{
		Schema: model.SchemaPersisted,
		Metadata: model.PersistedMetadata{
			TenantID:       event.Metadata.TenantID,
			Source:         event.Metadata.Source,
			PersistedAt:    time.Now().UTC().Format(time.RFC3339),
			IdempotencyKey: event.Metadata.IdempotencyKey,
		},
		Record: model.PersistedRecord{
			EntityType: record.EntityType,
			EntityID:   record.EntityID,
			Version:    record.Version,
			UpdatedAt:  record.UpdatedAt.UTC().Format(time.RFC3339),
		},
	}

	if res := e.envelopes.ValidatePersisted(&confirmation); !res.OK() {
		return fmt.Errorf("persisted confirmation invalid: %v", res.Error())
	}

	if err := messaging.PublishJSON(ctx, e.pub, messaging.SubjectPersistedRecords, confirmation); err != nil {
		return fmt.Errorf("publish persisted confirmation: %w", err)
	}
	return nil
}
