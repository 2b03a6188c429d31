package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRequest(tenant, entityID, key string) WriteRequest {
	return WriteRequest{
		TenantID:       tenant,
		EntityType:     "observation",
		EntityID:       entityID,
		PatientID:      "pat-1",
		Modality:       "8867-4",
		Attributes:     map[string]any{"status": "final"},
		IdempotencyKey: key,
	}
}

func TestMemoryRepository_FirstWriteStartsAtVersionOne(t *testing.T) {
	repo := NewMemoryRepository()

	result, err := repo.Upsert(context.Background(), writeRequest("tenant-1", "hash-a", "key-1"))
	require.NoError(t, err)
	assert.False(t, result.Replayed)
	assert.Equal(t, 1, result.Record.Version)
	assert.False(t, result.Record.UpdatedAt.IsZero())
}

func TestMemoryRepository_DistinctKeyBumpsVersion(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	_, err := repo.Upsert(ctx, writeRequest("tenant-1", "hash-a", "key-1"))
	require.NoError(t, err)

	result, err := repo.Upsert(ctx, writeRequest("tenant-1", "hash-a", "key-2"))
	require.NoError(t, err)
	assert.False(t, result.Replayed)
	assert.Equal(t, 2, result.Record.Version)
	assert.Equal(t, "key-2", result.Record.IdempotencyKey)
}

func TestMemoryRepository_IdenticalKeyIsReplay(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	first, err := repo.Upsert(ctx, writeRequest("tenant-1", "hash-a", "key-1"))
	require.NoError(t, err)

	replay, err := repo.Upsert(ctx, writeRequest("tenant-1", "hash-a", "key-1"))
	require.NoError(t, err)
	assert.True(t, replay.Replayed)
	assert.Equal(t, first.Record.Version, replay.Record.Version)
	assert.Equal(t, first.Record.UpdatedAt, replay.Record.UpdatedAt,
		"replay must not rewrite the record")
}

func TestMemoryRepository_TenantsAreIsolated(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	_, err := repo.Upsert(ctx, writeRequest("tenant-1", "hash-a", "key-1"))
	require.NoError(t, err)
	result, err := repo.Upsert(ctx, writeRequest("tenant-2", "hash-a", "key-1"))
	require.NoError(t, err)

	assert.False(t, result.Replayed, "same key under another tenant is a fresh write")
	assert.Equal(t, 1, result.Record.Version)
}

func TestMemoryRepository_Get(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	_, err := repo.Get(ctx, "tenant-1", "observation", "hash-a")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.Upsert(ctx, writeRequest("tenant-1", "hash-a", "key-1"))
	require.NoError(t, err)

	record, err := repo.Get(ctx, "tenant-1", "observation", "hash-a")
	require.NoError(t, err)
	assert.Equal(t, "hash-a", record.EntityID)
	assert.Equal(t, map[string]any{"status": "final"}, record.Attributes)
}

func TestMemoryRepository_GetReturnsCopy(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	_, err := repo.Upsert(ctx, writeRequest("tenant-1", "hash-a", "key-1"))
	require.NoError(t, err)

	record, err := repo.Get(ctx, "tenant-1", "observation", "hash-a")
	require.NoError(t, err)
	record.Attributes["status"] = "amended"

	fresh, err := repo.Get(ctx, "tenant-1", "observation", "hash-a")
	require.NoError(t, err)
	assert.Equal(t, "final", fresh.Attributes["status"])
}

func TestMemoryRepository_ListByEntity(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	_, err := repo.Upsert(ctx, writeRequest("tenant-b", "hash-a", "key-1"))
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, writeRequest("tenant-a", "hash-a", "key-2"))
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, writeRequest("tenant-a", "hash-other", "key-3"))
	require.NoError(t, err)

	records, err := repo.ListByEntity(ctx, "observation", "hash-a")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "tenant-a", records[0].TenantID, "sorted by tenant")
	assert.Equal(t, "tenant-b", records[1].TenantID)
}

func TestSortKey(t *testing.T) {
	assert.Equal(t, "observation#hash-a", SortKey("observation", "hash-a"))
}
