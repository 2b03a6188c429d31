package repository

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepository is an in-memory Repository with the same conditional
// write semantics as the Postgres implementation. Used in tests and local
// single-process runs.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[string]map[string]*Record // tenant -> sortKey -> record
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[string]map[string]*Record)}
}

// Upsert applies the conditional versioned write under a single lock.
func (r *MemoryRepository) Upsert(ctx context.Context, req WriteRequest) (*WriteResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tenant, ok := r.records[req.TenantID]
	if !ok {
		tenant = make(map[string]*Record)
		r.records[req.TenantID] = tenant
	}

	key := SortKey(req.EntityType, req.EntityID)
	existing, ok := tenant[key]
	if ok && existing.IdempotencyKey == req.IdempotencyKey {
		copied := cloneRecord(existing)
		return &WriteResult{Record: *copied, Replayed: true}, nil
	}

	version := 1
	if ok {
		version = existing.Version + 1
	}

	record := &Record{
		TenantID:       req.TenantID,
		EntityType:     req.EntityType,
		EntityID:       req.EntityID,
		PatientID:      req.PatientID,
		Modality:       req.Modality,
		Attributes:     cloneAttributes(req.Attributes),
		Version:        version,
		UpdatedAt:      time.Now().UTC(),
		IdempotencyKey: req.IdempotencyKey,
	}
	tenant[key] = record

	return &WriteResult{Record: *cloneRecord(record)}, nil
}

// Get fetches one record by its primary composite key.
func (r *MemoryRepository) Get(ctx context.Context, tenantID, entityType, entityID string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[tenantID][SortKey(entityType, entityID)]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRecord(record), nil
}

// ListByEntity scans for an entity across tenants, mirroring the inverse
// index of the Postgres implementation.
func (r *MemoryRepository) ListByEntity(ctx context.Context, entityType, entityID string) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	key := SortKey(entityType, entityID)
	var out []Record
	for _, tenant := range r.records {
		if record, ok := tenant[key]; ok {
			out = append(out, *cloneRecord(record))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TenantID < out[j].TenantID })
	return out, nil
}

func cloneRecord(record *Record) *Record {
	copied := *record
	copied.Attributes = cloneAttributes(record.Attributes)
	return &copied
}

func cloneAttributes(attrs map[string]any) map[string]any {
	if attrs == nil {
		return nil
	}
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}
