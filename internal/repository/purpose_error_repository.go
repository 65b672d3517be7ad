package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pagopa/interop-tracing-core-sub000/internal/domain"
)

// purposeErrorRepository implements PurposeErrorRepository on PostgreSQL
type purposeErrorRepository struct {
	pool *pgxpool.Pool
}

// NewPurposeErrorRepository creates a new purpose error repository
func NewPurposeErrorRepository(pool *pgxpool.Pool) PurposeErrorRepository {
	return &purposeErrorRepository{pool: pool}
}

// Save appends one finding. The unique index on
// (tracing_id, version, purpose_id, error_code, row_number) makes
// redelivered messages no-ops.
func (r *purposeErrorRepository) Save(ctx context.Context, entry domain.PurposeError) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO purposes_errors (id, tracing_id, version, purpose_id, error_code, message, row_number, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (tracing_id, version, purpose_id, error_code, row_number) DO NOTHING`,
		entry.ID, entry.TracingID, entry.Version, entry.PurposeID,
		string(entry.ErrorCode), entry.Message, entry.RowNumber, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save purpose error: %w", err)
	}
	return nil
}

func (r *purposeErrorRepository) ListByTracing(ctx context.Context, tracingID uuid.UUID) ([]domain.PurposeError, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, tracing_id, version, purpose_id, error_code, message, row_number, created_at
		 FROM purposes_errors
		 WHERE tracing_id = $1
		 ORDER BY version, row_number`,
		tracingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list purpose errors: %w", err)
	}
	defer rows.Close()

	var entries []domain.PurposeError
	for rows.Next() {
		var entry domain.PurposeError
		var code string
		if err := rows.Scan(&entry.ID, &entry.TracingID, &entry.Version, &entry.PurposeID,
			&code, &entry.Message, &entry.RowNumber, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan purpose error: %w", err)
		}
		entry.ErrorCode = domain.ErrorCode(code)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read purpose errors: %w", err)
	}
	return entries, nil
}

func (r *purposeErrorRepository) DeleteByTracing(ctx context.Context, tracingID uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		"DELETE FROM purposes_errors WHERE tracing_id = $1", tracingID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete purpose errors: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *purposeErrorRepository) DeleteStale(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM purposes_errors pe
		 USING tracings t
		 WHERE pe.tracing_id = t.id
		   AND (pe.version < t.version OR t.state = $1)`,
		string(domain.TracingStateCompleted))
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale purpose errors: %w", err)
	}
	return tag.RowsAffected(), nil
}
