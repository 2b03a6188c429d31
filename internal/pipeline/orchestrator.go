// Package pipeline implements the normalization orchestrator: per-envelope
// dispatch to the matching format adapter, multi-layer validation, mapping to
// the FHIR output shape, and emission of normalized events.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/buralog/etl-healthcare/internal/adapter"
	"github.com/buralog/etl-healthcare/internal/audit"
	"github.com/buralog/etl-healthcare/internal/batch"
	"github.com/buralog/etl-healthcare/internal/blobstore"
	"github.com/buralog/etl-healthcare/internal/fhir"
	"github.com/buralog/etl-healthcare/internal/logging"
	"github.com/buralog/etl-healthcare/internal/messaging"
	"github.com/buralog/etl-healthcare/internal/metrics"
	"github.com/buralog/etl-healthcare/internal/model"
	"github.com/buralog/etl-healthcare/internal/validator"
)

// EntityTypeObservation is the entity type stamped on every normalized event
// this stage emits.
const EntityTypeObservation = "observation"

// Orchestrator normalizes batches of raw envelopes. All collaborators are
// injected once at startup and never mutated; the orchestrator itself is
// safe for concurrent batches.
type Orchestrator struct {
	adapters  *adapter.Registry
	envelopes *validator.EnvelopeValidator
	resources *validator.ResourceValidator
	blobs     blobstore.Store
	pub       messaging.Publisher
	audit     *audit.Notifier
	log       *logging.Logger
}

// NewOrchestrator wires the normalization stage.
func NewOrchestrator(
	adapters *adapter.Registry,
	envelopes *validator.EnvelopeValidator,
	resources *validator.ResourceValidator,
	blobs blobstore.Store,
	pub messaging.Publisher,
	auditor *audit.Notifier,
	log *logging.Logger,
) *Orchestrator {
	return &Orchestrator{
		adapters:  adapters,
		envelopes: envelopes,
		resources: resources,
		blobs:     blobs,
		pub:       pub,
		audit:     auditor,
		log:       log,
	}
}

// ProcessBatch normalizes every envelope independently and concurrently.
// The report marks which items failed outright and must be redelivered;
// per-record drops inside an item never fail the item.
func (o *Orchestrator) ProcessBatch(ctx context.Context, envelopes []model.RawEnvelope) *batch.Report {
	return batch.Run(ctx, len(envelopes), func(ctx context.Context, i int) batch.ItemResult {
		env := &envelopes[i]
		result := batch.ItemResult{Index: i, ID: env.Metadata.IdempotencyKey}

		start := time.Now()
		result.Err = o.processItem(ctx, env)
		metrics.NormalizationDuration.Observe(time.Since(start).Seconds())

		if result.Err != nil {
			metrics.EnvelopeFailures.Inc()
			o.log.WarnContext(ctx, "normalization item failed",
				logging.Error(result.Err),
				logging.Tenant(env.Metadata.TenantID),
				logging.Source(env.Metadata.Source),
			)
		}
		return result
	})
}

func (o *Orchestrator) processItem(ctx context.Context, env *model.RawEnvelope) error {
	if res := o.envelopes.ValidateRaw(env); !res.OK() {
		return fmt.Errorf("%w: %v", ErrEnvelopeInvalid, res.Error())
	}

	payload, err := o.resolvePayload(ctx, env)
	if err != nil {
		return err
	}

	format := model.DetectFormat(env.Payload.ContentType, env.Payload.FileName)
	ad := o.adapters.Find(format)
	if ad == nil {
		return fmt.Errorf("%w: no adapter for format %s", ErrPayloadUnusable, format)
	}

	dtos, report, err := ad.Parse(payload, adapter.ParseContext{
		TenantID:     env.Metadata.TenantID,
		SourceSystem: env.Metadata.Source,
	})
	if err != nil {
		return fmt.Errorf("%w: %s parse: %v", ErrPayloadUnusable, format, err)
	}
	o.countDrops(report, "parse")

	for i := range dtos {
		if err := o.emitRecord(ctx, env, format, &dtos[i]); err != nil {
			// Already-emitted siblings stay emitted; redelivery of this item
			// re-emits them and downstream dedups on the idempotency key.
			return err
		}
	}

	return nil
}

// resolvePayload returns the inline payload or fetches the referenced blob.
func (o *Orchestrator) resolvePayload(ctx context.Context, env *model.RawEnvelope) ([]byte, error) {
	if len(env.Payload.Inline) > 0 {
		return env.Payload.Inline, nil
	}

	blob, err := o.blobs.Get(ctx, env.Payload.BlobKey)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch blob %s: %v", ErrInfrastructure, env.Payload.BlobKey, err)
	}
	return blob.Data, nil
}

// emitRecord maps one surviving DTO, re-validates the output shape, and
// publishes the normalized event. A record failing output validation is
// dropped and counted, not an item failure.
func (o *Orchestrator) emitRecord(ctx context.Context, env *model.RawEnvelope, format model.Format, dto *model.ObservationDTO) error {
	resource := fhir.MapObservation(dto)
	if res := o.resources.Validate(resource); !res.OK() {
		metrics.RecordsDropped.WithLabelValues("output_validation").Inc()
		o.log.WarnContext(ctx, "mapped resource dropped",
			logging.Error(res.Error()),
			logging.Tenant(env.Metadata.TenantID),
		)
		return nil
	}

	traceID := uuid.New().String()
	event := model.NormalizedEventEnvelope{
		Schema: model.SchemaNormalized,
		Metadata: model.NormalizedMetadata{
			TenantID:     env.Metadata.TenantID,
			Source:       env.Metadata.Source,
			NormalizedAt: time.Now().UTC().Format(time.RFC3339),
			// Stable across redeliveries of the same envelope, distinct
			// across records within it.
			IdempotencyKey: env.Metadata.IdempotencyKey + ":" + dto.IngestHash,
			TraceID:        traceID,
		},
		Data: model.NormalizedData{
			EntityType: EntityTypeObservation,
			EntityID:   dto.IngestHash,
			PatientID:  dto.PatientID,
			Modality:   dto.Code,
			Attributes: resourceAttributes(resource),
		},
	}

	if res := o.envelopes.ValidateNormalized(&event); !res.OK() {
		metrics.RecordsDropped.WithLabelValues("envelope_validation").Inc()
		o.log.WarnContext(ctx, "normalized envelope dropped", logging.Error(res.Error()))
		return nil
	}

	emitCtx := logging.WithTraceID(ctx, traceID)
	if err := messaging.PublishJSON(emitCtx, o.pub, messaging.SubjectNormalizedRecords, event); err != nil {
		return fmt.Errorf("%w: publish normalized event: %v", ErrInfrastructure, err)
	}

	metrics.RecordsNormalized.WithLabelValues(env.Metadata.TenantID, format.String()).Inc()
	o.audit.Notify(emitCtx, audit.Event{
		Stage:      "normalize",
		TenantID:   env.Metadata.TenantID,
		EntityType: EntityTypeObservation,
		EntityID:   dto.IngestHash,
		TraceID:    traceID,
	})

	return nil
}

func (o *Orchestrator) countDrops(report *adapter.ParseReport, reason string) {
	if report == nil || report.Dropped == 0 {
		return
	}
	metrics.RecordsDropped.WithLabelValues(reason).Add(float64(report.Dropped))
	for _, d := range report.Drops {
		o.log.Warn("record dropped during parse", "locator", d.Locator, "reason", d.Reason)
	}
}

// resourceAttributes flattens the mapped resource into the generic attribute
// map carried by the normalized event.
func resourceAttributes(obs *fhir.Observation) map[string]any {
	return map[string]any{
		"resourceType":      obs.ResourceType,
		"status":            obs.Status,
		"code":              map[string]any{"coding": codings(obs.Code.Coding)},
		"subject":           map[string]any{"reference": obs.Subject.Reference},
		"effectiveDateTime": obs.EffectiveDateTime,
		"valueQuantity": map[string]any{
			"value": obs.ValueQuantity.Value,
			"unit":  obs.ValueQuantity.Unit,
		},
	}
}

func codings(cs []fhir.Coding) []any {
	out := make([]any, 0, len(cs))
	for _, c := range cs {
		out = append(out, map[string]any{"system": c.System, "code": c.Code})
	}
	return out
}
