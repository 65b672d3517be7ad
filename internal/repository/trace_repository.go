package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pagopa/interop-tracing-core-sub000/internal/db"
	"github.com/pagopa/interop-tracing-core-sub000/internal/domain"
)

// traceRepository implements TraceRepository on PostgreSQL
type traceRepository struct {
	conn *db.Connection
}

// NewTraceRepository creates a new trace repository
func NewTraceRepository(conn *db.Connection) TraceRepository {
	return &traceRepository{conn: conn}
}

var traceColumns = []string{
	"id", "tracing_id", "tenant_id", "date", "purpose_id", "purpose_name",
	"status", "requests_count",
	"consumer_origin", "consumer_external_id", "consumer_name",
	"producer_origin", "producer_external_id", "producer_name",
	"submitted_at",
}

// Replace deletes the tracing's rows and bulk-inserts the new set in one
// transaction. Delete-then-insert keeps redelivery idempotent: the same
// input always yields the same final row set.
func (r *traceRepository) Replace(ctx context.Context, tracingID uuid.UUID, rows []domain.Trace) (int64, error) {
	var inserted int64
	err := r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "DELETE FROM traces WHERE tracing_id = $1", tracingID); err != nil {
			return fmt.Errorf("failed to delete traces: %w", err)
		}

		n, err := tx.CopyFrom(ctx, pgx.Identifier{"traces"}, traceColumns,
			pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
				t := rows[i]
				return []any{
					t.ID, t.TracingID, t.TenantID, t.Date.UTC(), t.PurposeID, t.PurposeName,
					t.Status, t.RequestsCount,
					t.ConsumerOrigin, t.ConsumerExternalID, t.ConsumerName,
					t.ProducerOrigin, t.ProducerExternalID, t.ProducerName,
					t.SubmittedAt,
				}, nil
			}))
		if err != nil {
			return fmt.Errorf("failed to copy traces: %w", err)
		}
		inserted = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func (r *traceRepository) CountByTracing(ctx context.Context, tracingID uuid.UUID) (int64, error) {
	var count int64
	err := r.conn.Pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM traces WHERE tracing_id = $1", tracingID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count traces: %w", err)
	}
	return count, nil
}
