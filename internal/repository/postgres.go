package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository implements Repository using PostgreSQL. The conditional
// upsert is a single statement, so concurrent writers racing on the same
// entity resolve entirely inside the store: exactly one wins per attempt.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository.
func NewPostgresRepository(ctx context.Context, connString string) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// NewPostgresRepositoryFromPool wraps an existing pool (used by tests).
func NewPostgresRepositoryFromPool(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Upsert performs the conditional versioned write.
func (r *PostgresRepository) Upsert(ctx context.Context, req WriteRequest) (*WriteResult, error) {
	attrs, err := json.Marshal(req.Attributes)
	if err != nil {
		return nil, fmt.Errorf("marshal attributes: %w", err)
	}

	query := `
		INSERT INTO observations
			(tenant_id, entity_key, entity_type, entity_id, patient_id, modality,
			 attributes, version, updated_at, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 1, now(), $8)
		ON CONFLICT (tenant_id, entity_key) DO UPDATE SET
			patient_id      = EXCLUDED.patient_id,
			modality        = EXCLUDED.modality,
			attributes      = EXCLUDED.attributes,
			version         = observations.version + 1,
			updated_at      = now(),
			idempotency_key = EXCLUDED.idempotency_key
		WHERE observations.idempotency_key IS DISTINCT FROM EXCLUDED.idempotency_key
		RETURNING version, updated_at
	`

	record := Record{
		TenantID:       req.TenantID,
		EntityType:     req.EntityType,
		EntityID:       req.EntityID,
		PatientID:      req.PatientID,
		Modality:       req.Modality,
		Attributes:     req.Attributes,
		IdempotencyKey: req.IdempotencyKey,
	}

	err = r.pool.QueryRow(ctx, query,
		req.TenantID, SortKey(req.EntityType, req.EntityID),
		req.EntityType, req.EntityID, req.PatientID, req.Modality,
		attrs, req.IdempotencyKey,
	).Scan(&record.Version, &record.UpdatedAt)
	if err == nil {
		return &WriteResult{Record: record}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("conditional upsert: %w", err)
	}

	// Zero rows: the guard rejected the update. An identical stored key is
	// the idempotent replay case and succeeds as a no-op; anything else is
	// a lost race reported for redelivery.
	current, err := r.Get(ctx, req.TenantID, req.EntityType, req.EntityID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrWriteConflict
		}
		return nil, err
	}
	if current.IdempotencyKey != req.IdempotencyKey {
		return nil, ErrWriteConflict
	}
	return &WriteResult{Record: *current, Replayed: true}, nil
}

// Get fetches one record by its primary composite key.
func (r *PostgresRepository) Get(ctx context.Context, tenantID, entityType, entityID string) (*Record, error) {
	query := `
		SELECT tenant_id, entity_type, entity_id, patient_id, modality,
		       attributes, version, updated_at, idempotency_key
		FROM observations
		WHERE tenant_id = $1 AND entity_key = $2
	`

	record, err := scanRecord(r.pool.QueryRow(ctx, query, tenantID, SortKey(entityType, entityID)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get record: %w", err)
	}
	return record, nil
}

// ListByEntity looks an entity up across tenants via the inverse index.
func (r *PostgresRepository) ListByEntity(ctx context.Context, entityType, entityID string) ([]Record, error) {
	query := `
		SELECT tenant_id, entity_type, entity_id, patient_id, modality,
		       attributes, version, updated_at, idempotency_key
		FROM observations
		WHERE entity_key = $1
		ORDER BY tenant_id
	`

	rows, err := r.pool.Query(ctx, query, SortKey(entityType, entityID))
	if err != nil {
		return nil, fmt.Errorf("list by entity: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list by entity: %w", err)
	}
	return out, nil
}

// Close releases the connection pool.
func (r *PostgresRepository) Close() {
	r.pool.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var record Record
	var attrs []byte
	err := row.Scan(
		&record.TenantID, &record.EntityType, &record.EntityID,
		&record.PatientID, &record.Modality, &attrs,
		&record.Version, &record.UpdatedAt, &record.IdempotencyKey,
	)
	if err != nil {
		return nil, err
	}
	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &record.Attributes); err != nil {
			return nil, fmt.Errorf("decode attributes: %w", err)
		}
	}
	return &record, nil
}
