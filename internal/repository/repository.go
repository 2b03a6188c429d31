// Package repository implements the tenant-partitioned keyed store with
// monotonic versioning. All mutation goes through a single-item conditional
// upsert; the store's conditional-write primitive is the only concurrency
// control in the pipeline.
package repository

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no record exists for the given keys.
	ErrNotFound = errors.New("record not found")

	// ErrWriteConflict is returned when the conditional write lost a race:
	// zero rows were affected and the stored idempotency key differs from
	// the incoming one. The caller reports the item for redelivery.
	ErrWriteConflict = errors.New("conditional write conflict")
)

// Record is a stored entity row. Keyed by (tenant, entityType+entityId);
// version increases monotonically and only Upsert mutates it.
type Record struct {
	TenantID       string         `json:"tenantId"`
	EntityType     string         `json:"entityType"`
	EntityID       string         `json:"entityId"`
	PatientID      string         `json:"patientId,omitempty"`
	Modality       string         `json:"modality,omitempty"`
	Attributes     map[string]any `json:"attributes"`
	Version        int            `json:"version"`
	UpdatedAt      time.Time      `json:"updatedAt"`
	IdempotencyKey string         `json:"idempotencyKey"`
}

// SortKey returns the composite sort key for an entity identity.
func SortKey(entityType, entityID string) string {
	return entityType + "#" + entityID
}

// WriteRequest describes one conditional upsert.
type WriteRequest struct {
	TenantID       string
	EntityType     string
	EntityID       string
	PatientID      string
	Modality       string
	Attributes     map[string]any
	IdempotencyKey string
}

// WriteResult reports an accepted write. Replayed is true when the incoming
// idempotency key matched the stored one: the write was resolved as a no-op
// and Record carries the unchanged row.
type WriteResult struct {
	Record   Record
	Replayed bool
}

// Repository is the keyed store contract consumed by the persistence engine.
type Repository interface {
	// Upsert performs the conditional versioned write. First write for an
	// entity creates it at version 1; a write carrying a new idempotency
	// key increments the version; an identical-key redelivery succeeds as
	// a no-op with Replayed set. Any other zero-row outcome is
	// ErrWriteConflict.
	Upsert(ctx context.Context, req WriteRequest) (*WriteResult, error)

	// Get fetches one record by its primary composite key.
	Get(ctx context.Context, tenantID, entityType, entityID string) (*Record, error)

	// ListByEntity looks an entity up across tenants via the inverse key.
	ListByEntity(ctx context.Context, entityType, entityID string) ([]Record, error)
}
