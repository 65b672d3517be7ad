package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pagopa/interop-tracing-core-sub000/internal/domain"
)

// referenceRepository reads the tenant/eservice/purpose projections
type referenceRepository struct {
	pool *pgxpool.Pool
}

// NewReferenceRepository creates a new reference repository
func NewReferenceRepository(pool *pgxpool.Pool) ReferenceRepository {
	return &referenceRepository{pool: pool}
}

func (r *referenceRepository) GetTenant(ctx context.Context, id uuid.UUID) (domain.Tenant, bool, error) {
	var tenant domain.Tenant
	err := r.pool.QueryRow(ctx,
		"SELECT id, name, origin, external_id, deleted FROM tenants WHERE id = $1",
		id).Scan(&tenant.ID, &tenant.Name, &tenant.Origin, &tenant.ExternalID, &tenant.Deleted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Tenant{}, false, nil
		}
		return domain.Tenant{}, false, fmt.Errorf("failed to get tenant: %w", err)
	}
	return tenant, true, nil
}

func (r *referenceRepository) GetPurpose(ctx context.Context, id string) (domain.Purpose, bool, error) {
	var purpose domain.Purpose
	err := r.pool.QueryRow(ctx,
		"SELECT id, consumer_id, eservice_id, purpose_title FROM purposes WHERE id = $1",
		id).Scan(&purpose.ID, &purpose.ConsumerID, &purpose.EserviceID, &purpose.Title)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Purpose{}, false, nil
		}
		return domain.Purpose{}, false, fmt.Errorf("failed to get purpose: %w", err)
	}
	return purpose, true, nil
}

func (r *referenceRepository) GetEservice(ctx context.Context, id uuid.UUID) (domain.Eservice, bool, error) {
	var eservice domain.Eservice
	err := r.pool.QueryRow(ctx,
		"SELECT eservice_id, producer_id, name FROM eservices WHERE eservice_id = $1",
		id).Scan(&eservice.ID, &eservice.ProducerID, &eservice.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Eservice{}, false, nil
		}
		return domain.Eservice{}, false, fmt.Errorf("failed to get eservice: %w", err)
	}
	return eservice, true, nil
}
