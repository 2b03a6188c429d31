package model

// Envelope schema identifiers. Every event crossing a service boundary carries
// one of these in its top-level schema field.
const (
	SchemaRaw        = "healthetl.raw.v1"
	SchemaNormalized = "healthetl.normalized.v1"
	SchemaPersisted  = "healthetl.persisted.v1"
)

// RawEnvelope is emitted by the ingest receiver and consumed by the
// normalization orchestrator. The payload is either inline or a reference to
// a staged blob.
type RawEnvelope struct {
	Schema   string      `json:"schema"`
	Metadata RawMetadata `json:"metadata"`
	Payload  RawPayload  `json:"payload"`
}

// RawMetadata carries ingestion provenance for a raw record.
type RawMetadata struct {
	TenantID       string `json:"tenantId"`
	Source         string `json:"source"`
	IngestedAt     string `json:"ingestedAt"`
	IdempotencyKey string `json:"idempotencyKey"`
	ContentHash    string `json:"contentHash"`
}

// RawPayload holds the record bytes inline or points at a staged blob.
// ContentType drives adapter dispatch; FileName is an optional hint used when
// the content type is absent or generic.
type RawPayload struct {
	ContentType string `json:"contentType"`
	FileName    string `json:"fileName,omitempty"`
	Inline      []byte `json:"inline,omitempty"`
	BlobKey     string `json:"blobKey,omitempty"`
}

// NormalizedEventEnvelope is emitted by the orchestrator, one per surviving
// record, and consumed by the persistence engine.
type NormalizedEventEnvelope struct {
	Schema   string             `json:"schema"`
	Metadata NormalizedMetadata `json:"metadata"`
	Data     NormalizedData     `json:"data"`
}

// NormalizedMetadata carries per-record normalization provenance. TraceID is
// generated fresh for every emitted record and is not a dedup key.
type NormalizedMetadata struct {
	TenantID       string `json:"tenantId"`
	Source         string `json:"source"`
	NormalizedAt   string `json:"normalizedAt"`
	IdempotencyKey string `json:"idempotencyKey"`
	TraceID        string `json:"traceId"`
}

// NormalizedData identifies the entity being written and carries its mapped
// attributes.
type NormalizedData struct {
	EntityType string         `json:"entityType"`
	EntityID   string         `json:"entityId"`
	PatientID  string         `json:"patientId,omitempty"`
	Modality   string         `json:"modality,omitempty"`
	Attributes map[string]any `json:"attributes"`
}

// PersistedConfirmationEvent is emitted once per accepted write and consumed
// by audit/indexing collaborators only.
type PersistedConfirmationEvent struct {
	Schema   string            `json:"schema"`
	Metadata PersistedMetadata `json:"metadata"`
	Record   PersistedRecord   `json:"record"`
}

// PersistedMetadata carries persistence provenance for a confirmed write.
type PersistedMetadata struct {
	TenantID       string `json:"tenantId"`
	Source         string `json:"source"`
	PersistedAt    string `json:"persistedAt"`
	IdempotencyKey string `json:"idempotencyKey"`
}

// PersistedRecord summarizes the stored row after a confirmed write.
type PersistedRecord struct {
	EntityType string `json:"entityType"`
	EntityID   string `json:"entityId"`
	Version    int    `json:"version"`
	UpdatedAt  string `json:"updatedAt"`
}
