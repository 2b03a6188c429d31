package validator

import (
	"github.com/buralog/etl-healthcare/internal/model"
)

// EnvelopeValidator enforces the three event envelope schemas independently
// of DTO shape: raw, normalized, and persisted.
type EnvelopeValidator struct{}

// NewEnvelopeValidator constructs the envelope validator.
func NewEnvelopeValidator() *EnvelopeValidator {
	return &EnvelopeValidator{}
}

// ValidateRaw checks a raw ingestion envelope.
func (v *EnvelopeValidator) ValidateRaw(env *model.RawEnvelope) *Result {
	res := &Result{}
	if env == nil {
		res.add("", "envelope must not be nil")
		return res
	}

	if env.Schema != model.SchemaRaw {
		res.add("schema", "must equal "+model.SchemaRaw)
	}
	res.requireString("metadata.tenantId", env.Metadata.TenantID)
	res.requireString("metadata.source", env.Metadata.Source)
	res.requireRFC3339("metadata.ingestedAt", env.Metadata.IngestedAt)
	res.requireString("metadata.idempotencyKey", env.Metadata.IdempotencyKey)
	res.requireString("metadata.contentHash", env.Metadata.ContentHash)
	if len(env.Payload.Inline) == 0 && env.Payload.BlobKey == "" {
		res.add("payload", "must carry inline bytes or a blob reference")
	}

	return res
}

// ValidateNormalized checks a normalized event envelope.
func (v *EnvelopeValidator) ValidateNormalized(env *model.NormalizedEventEnvelope) *Result {
	res := &Result{}
	if env == nil {
		res.add("", "envelope must not be nil")
		return res
	}

	if env.Schema != model.SchemaNormalized {
		res.add("schema", "must equal "+model.SchemaNormalized)
	}
	res.requireString("metadata.tenantId", env.Metadata.TenantID)
	res.requireString("metadata.source", env.Metadata.Source)
	res.requireRFC3339("metadata.normalizedAt", env.Metadata.NormalizedAt)
	res.requireString("metadata.idempotencyKey", env.Metadata.IdempotencyKey)
	res.requireString("metadata.traceId", env.Metadata.TraceID)
	res.requireString("data.entityType", env.Data.EntityType)
	res.requireString("data.entityId", env.Data.EntityID)
	if len(env.Data.Attributes) == 0 {
		res.add("data.attributes", "must not be empty")
	}

	return res
}

// ValidatePersisted checks a persisted confirmation envelope.
func (v *EnvelopeValidator) ValidatePersisted(env *model.PersistedConfirmationEvent) *Result {
	res := &Result{}
	if env == nil {
		res.add("", "envelope must not be nil")
		return res
	}

	if env.Schema != model.SchemaPersisted {
		res.add("schema", "must equal "+model.SchemaPersisted)
	}
	res.requireString("metadata.tenantId", env.Metadata.TenantID)
	res.requireString("metadata.source", env.Metadata.Source)
	res.requireRFC3339("metadata.persistedAt", env.Metadata.PersistedAt)
	res.requireString("metadata.idempotencyKey", env.Metadata.IdempotencyKey)
	res.requireString("record.entityType", env.Record.EntityType)
	res.requireString("record.entityId", env.Record.EntityID)
	if env.Record.Version < 1 {
		res.add("record.version", "must be a positive integer")
	}
	res.requireRFC3339("record.updatedAt", env.Record.UpdatedAt)

	return res
}
