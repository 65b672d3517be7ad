package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pagopa/interop-tracing-core-sub000/internal/domain"
	"github.com/pagopa/interop-tracing-core-sub000/internal/repository"
)

// Service is the single writer of tracing state and version. Every
// transition is one conditional relational write; zero rows affected is the
// race signal and maps to the relevant guard error.
type Service struct {
	tracings repository.TracingRepository
	errors   repository.PurposeErrorRepository
	logger   *zap.Logger
}

// NewService creates a new ledger service.
func NewService(tracings repository.TracingRepository, errors repository.PurposeErrorRepository, logger *zap.Logger) *Service {
	return &Service{
		tracings: tracings,
		errors:   errors,
		logger:   logger,
	}
}

// Submit creates the tracing for (tenantID, date) at version 1 PENDING, or
// overwrites an existing MISSING/ERROR row back to version 1 PENDING. An
// active tracing for the same tenant and date fails ErrTracingAlreadyExists.
func (s *Service) Submit(ctx context.Context, tenantID uuid.UUID, date time.Time) (domain.SubmitResult, error) {
	existing, found, err := s.tracings.FindByTenantAndDate(ctx, tenantID, date)
	if err != nil {
		return domain.SubmitResult{}, err
	}

	var tracing domain.Tracing
	if found {
		if existing.State != domain.TracingStateMissing && existing.State != domain.TracingStateError {
			return domain.SubmitResult{}, ErrTracingAlreadyExists
		}
		affected, err := s.tracings.Reset(ctx, existing.ID)
		if err != nil {
			return domain.SubmitResult{}, err
		}
		if affected == 0 {
			// Lost the race against a concurrent submit or transition.
			return domain.SubmitResult{}, ErrTracingAlreadyExists
		}
		// The reset drops the row to version 1, putting any recorded errors
		// above the current version where the stale sweep cannot see them.
		if _, err := s.errors.DeleteByTracing(ctx, existing.ID); err != nil {
			return domain.SubmitResult{}, err
		}
		tracing = existing
		tracing.Version = 1
		tracing.State = domain.TracingStatePending
	} else {
		tracing = domain.NewTracing(tenantID, date)
		if err := s.tracings.Create(ctx, tracing); err != nil {
			return domain.SubmitResult{}, err
		}
	}

	hasErrors, err := s.tracings.HasErrorsBesides(ctx, tenantID, tracing.ID)
	if err != nil {
		return domain.SubmitResult{}, err
	}

	s.logger.Info("tracing submitted",
		zap.String("tracingId", tracing.ID.String()),
		zap.String("tenantId", tenantID.String()),
		zap.String("date", date.Format(domain.DateFormat)))

	return domain.SubmitResult{Tracing: tracing, HasHistoricalErrors: hasErrors}, nil
}

// Recover moves a MISSING or ERROR tracing back to PENDING, bumping the
// version by one.
func (s *Service) Recover(ctx context.Context, tracingID uuid.UUID) (domain.TransitionResult, error) {
	return s.reopen(ctx, tracingID, "recover")
}

// Replace moves a COMPLETED tracing back to PENDING, bumping the version by
// one.
func (s *Service) Replace(ctx context.Context, tracingID uuid.UUID) (domain.TransitionResult, error) {
	return s.reopen(ctx, tracingID, "replace")
}

func (s *Service) reopen(ctx context.Context, tracingID uuid.UUID, op string) (domain.TransitionResult, error) {
	guardErr := ErrTracingRecoverCannotBeUpdated
	if op == "replace" {
		guardErr = ErrTracingReplaceCannotBeUpdated
	}

	current, err := s.tracings.GetByID(ctx, tracingID)
	if err != nil {
		return domain.TransitionResult{}, mapNotFound(err)
	}

	legal := current.State == domain.TracingStateMissing || current.State == domain.TracingStateError
	if op == "replace" {
		legal = current.State == domain.TracingStateCompleted
	}
	if !legal {
		return domain.TransitionResult{}, guardErr
	}

	affected, err := s.tracings.UpdateStateIf(ctx, tracingID,
		current.State, current.Version,
		domain.TracingStatePending, current.Version+1)
	if err != nil {
		return domain.TransitionResult{}, err
	}
	if affected == 0 {
		// A concurrent transition won; the guard no longer holds.
		return domain.TransitionResult{}, guardErr
	}

	s.logger.Info("tracing reopened",
		zap.String("op", op),
		zap.String("tracingId", tracingID.String()),
		zap.String("previousState", string(current.State)),
		zap.Int("version", current.Version+1))

	return domain.TransitionResult{
		TracingID:     tracingID,
		TenantID:      current.TenantID,
		Date:          current.Date,
		PreviousState: current.State,
		Version:       current.Version + 1,
	}, nil
}

// Cancel rolls a PENDING tracing back to the caller-supplied prior state and
// version. It compensates a recover/replace whose subsequent upload failed.
func (s *Service) Cancel(ctx context.Context, tracingID uuid.UUID, targetState domain.TracingState, targetVersion int) error {
	if !domain.IsValidState(targetState) {
		return fmt.Errorf("invalid target state %q", targetState)
	}

	current, err := s.tracings.GetByID(ctx, tracingID)
	if err != nil {
		return mapNotFound(err)
	}
	if current.State != domain.TracingStatePending {
		return ErrTracingCannotBeCancelled
	}

	affected, err := s.tracings.UpdateStateIf(ctx, tracingID,
		domain.TracingStatePending, current.Version,
		targetState, targetVersion)
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrTracingCannotBeCancelled
	}

	s.logger.Info("tracing cancelled",
		zap.String("tracingId", tracingID.String()),
		zap.String("state", string(targetState)),
		zap.Int("version", targetVersion))
	return nil
}

// UpdateState writes a terminal state for the row at the given version
// without changing the version. Used only by the state synchronizer.
func (s *Service) UpdateState(ctx context.Context, tracingID uuid.UUID, version int, state domain.TracingState) error {
	affected, err := s.tracings.UpdateStateAtVersion(ctx, tracingID, version, state)
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrTracingNotFound
	}

	s.logger.Info("tracing state updated",
		zap.String("tracingId", tracingID.String()),
		zap.Int("version", version),
		zap.String("state", string(state)))
	return nil
}

// SavePurposeError appends one row-level finding for a tracing version.
func (s *Service) SavePurposeError(ctx context.Context, entry domain.PurposeError) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	return s.errors.Save(ctx, entry)
}

// DeletePurposeErrors sweeps errors from superseded versions and every error
// of COMPLETED tracings. Run as scheduled maintenance.
func (s *Service) DeletePurposeErrors(ctx context.Context) (int64, error) {
	deleted, err := s.errors.DeleteStale(ctx)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.logger.Info("purged stale purpose errors", zap.Int64("deleted", deleted))
	}
	return deleted, nil
}

// FlagMissing creates MISSING tracings for every active tenant that has no
// tracing on date.
func (s *Service) FlagMissing(ctx context.Context, date time.Time) (int64, error) {
	created, err := s.tracings.InsertMissing(ctx, date)
	if err != nil {
		return 0, err
	}
	if created > 0 {
		s.logger.Info("flagged missing tracings",
			zap.String("date", date.Format(domain.DateFormat)),
			zap.Int64("created", created))
	}
	return created, nil
}

func mapNotFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrTracingNotFound
	}
	return err
}
