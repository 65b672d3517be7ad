package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/pagopa/interop-tracing-core-sub000/internal/domain"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// TracingRepository persists tracing rows. Conditional updates return the
// affected-row count: zero rows is the optimistic-concurrency race signal
// and is mapped to a guard failure by the ledger.
type TracingRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.Tracing, error)
	FindByTenantAndDate(ctx context.Context, tenantID uuid.UUID, date time.Time) (domain.Tracing, bool, error)
	Create(ctx context.Context, tracing domain.Tracing) error
	// Reset overwrites an existing MISSING or ERROR row back to version 1
	// PENDING. Returns the affected-row count.
	Reset(ctx context.Context, id uuid.UUID) (int64, error)
	// UpdateStateIf transitions id from exactly {fromState, fromVersion} to
	// {toState, toVersion}. Returns the affected-row count.
	UpdateStateIf(ctx context.Context, id uuid.UUID, fromState domain.TracingState, fromVersion int, toState domain.TracingState, toVersion int) (int64, error)
	// UpdateStateAtVersion writes state for the row at the given version
	// without changing the version. Returns the affected-row count.
	UpdateStateAtVersion(ctx context.Context, id uuid.UUID, version int, state domain.TracingState) (int64, error)
	// HasErrorsBesides reports whether the tenant has any tracing other than
	// excludeID currently in ERROR or MISSING.
	HasErrorsBesides(ctx context.Context, tenantID uuid.UUID, excludeID uuid.UUID) (bool, error)
	// InsertMissing creates MISSING version-1 tracings for every active
	// tenant without a tracing on date. Returns how many were created.
	InsertMissing(ctx context.Context, date time.Time) (int64, error)
}

// PurposeErrorRepository persists row-level findings.
type PurposeErrorRepository interface {
	Save(ctx context.Context, entry domain.PurposeError) error
	ListByTracing(ctx context.Context, tracingID uuid.UUID) ([]domain.PurposeError, error)
	// DeleteByTracing removes every error of one tracing. Used when a
	// MISSING/ERROR row is reset to version 1: the stale-version sweep
	// cannot reach errors whose version is above the reset row's.
	DeleteByTracing(ctx context.Context, tracingID uuid.UUID) (int64, error)
	// DeleteStale removes errors whose version is older than their tracing's
	// current version, and every error belonging to a COMPLETED tracing.
	DeleteStale(ctx context.Context) (int64, error)
}

// ReferenceRepository reads the tenant/eservice/purpose projections kept
// current by the external event-log consumers. Read-only.
type ReferenceRepository interface {
	GetTenant(ctx context.Context, id uuid.UUID) (domain.Tenant, bool, error)
	GetPurpose(ctx context.Context, id string) (domain.Purpose, bool, error)
	GetEservice(ctx context.Context, id uuid.UUID) (domain.Eservice, bool, error)
}

// TraceRepository owns the denormalized analytics table.
type TraceRepository interface {
	// Replace deletes every trace for tracingID and bulk-inserts rows in one
	// transaction, making redelivery idempotent.
	Replace(ctx context.Context, tracingID uuid.UUID, rows []domain.Trace) (int64, error)
	CountByTracing(ctx context.Context, tracingID uuid.UUID) (int64, error)
}
