package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pagopa/interop-tracing-core-sub000/internal/domain"
)

// tracingRepository implements TracingRepository on PostgreSQL
type tracingRepository struct {
	pool *pgxpool.Pool
}

// NewTracingRepository creates a new tracing repository
func NewTracingRepository(pool *pgxpool.Pool) TracingRepository {
	return &tracingRepository{pool: pool}
}

const tracingColumns = "id, tenant_id, date, version, state, created_at"

func scanTracing(row pgx.Row) (domain.Tracing, error) {
	var t domain.Tracing
	var state string
	if err := row.Scan(&t.ID, &t.TenantID, &t.Date, &t.Version, &state, &t.CreatedAt); err != nil {
		return domain.Tracing{}, err
	}
	t.State = domain.TracingState(state)
	t.Date = t.Date.UTC()
	return t, nil
}

func (r *tracingRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Tracing, error) {
	row := r.pool.QueryRow(ctx,
		"SELECT "+tracingColumns+" FROM tracings WHERE id = $1", id)

	tracing, err := scanTracing(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Tracing{}, ErrNotFound
		}
		return domain.Tracing{}, fmt.Errorf("failed to get tracing: %w", err)
	}
	return tracing, nil
}

func (r *tracingRepository) FindByTenantAndDate(ctx context.Context, tenantID uuid.UUID, date time.Time) (domain.Tracing, bool, error) {
	row := r.pool.QueryRow(ctx,
		"SELECT "+tracingColumns+" FROM tracings WHERE tenant_id = $1 AND date = $2",
		tenantID, date.UTC())

	tracing, err := scanTracing(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Tracing{}, false, nil
		}
		return domain.Tracing{}, false, fmt.Errorf("failed to find tracing: %w", err)
	}
	return tracing, true, nil
}

func (r *tracingRepository) Create(ctx context.Context, tracing domain.Tracing) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO tracings (id, tenant_id, date, version, state, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		tracing.ID, tracing.TenantID, tracing.Date.UTC(), tracing.Version, string(tracing.State), tracing.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create tracing: %w", err)
	}
	return nil
}

func (r *tracingRepository) Reset(ctx context.Context, id uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE tracings
		 SET version = 1, state = $2, created_at = $3
		 WHERE id = $1 AND state IN ($4, $5)`,
		id, string(domain.TracingStatePending), time.Now().UTC(),
		string(domain.TracingStateMissing), string(domain.TracingStateError))
	if err != nil {
		return 0, fmt.Errorf("failed to reset tracing: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *tracingRepository) UpdateStateIf(ctx context.Context, id uuid.UUID, fromState domain.TracingState, fromVersion int, toState domain.TracingState, toVersion int) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE tracings
		 SET state = $4, version = $5
		 WHERE id = $1 AND state = $2 AND version = $3`,
		id, string(fromState), fromVersion, string(toState), toVersion)
	if err != nil {
		return 0, fmt.Errorf("failed to update tracing state: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *tracingRepository) UpdateStateAtVersion(ctx context.Context, id uuid.UUID, version int, state domain.TracingState) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		"UPDATE tracings SET state = $3 WHERE id = $1 AND version = $2",
		id, version, string(state))
	if err != nil {
		return 0, fmt.Errorf("failed to update tracing state: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *tracingRepository) HasErrorsBesides(ctx context.Context, tenantID uuid.UUID, excludeID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM tracings
		   WHERE tenant_id = $1 AND id <> $2 AND state IN ($3, $4)
		 )`,
		tenantID, excludeID,
		string(domain.TracingStateError), string(domain.TracingStateMissing)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check historical errors: %w", err)
	}
	return exists, nil
}

func (r *tracingRepository) InsertMissing(ctx context.Context, date time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO tracings (id, tenant_id, date, version, state, created_at)
		 SELECT gen_random_uuid(), t.id, $1, 1, $2, now()
		 FROM tenants t
		 WHERE t.deleted = false
		   AND NOT EXISTS (
		     SELECT 1 FROM tracings tr WHERE tr.tenant_id = t.id AND tr.date = $1
		   )`,
		date.UTC(), string(domain.TracingStateMissing))
	if err != nil {
		return 0, fmt.Errorf("failed to insert missing tracings: %w", err)
	}
	return tag.RowsAffected(), nil
}
