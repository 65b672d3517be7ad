package statesync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/pagopa/interop-tracing-core-sub000/internal/config"
	"github.com/pagopa/interop-tracing-core-sub000/internal/domain"
	"github.com/pagopa/interop-tracing-core-sub000/internal/ledger"
	"github.com/pagopa/interop-tracing-core-sub000/internal/observability"
	"github.com/pagopa/interop-tracing-core-sub000/internal/queue"
	"github.com/pagopa/interop-tracing-core-sub000/internal/storage"
)

// Synchronizer applies terminal and compensating transitions to the ledger
// from the two delivery queues. Both handlers are idempotent on redelivery:
// error inserts are deduplicated and state writes are absolute at a version.
type Synchronizer struct {
	ledger   *ledger.Service
	store    storage.BucketStore
	storageC config.StorageConfig
	logger   *zap.Logger
}

// NewSynchronizer creates a new state synchronizer.
func NewSynchronizer(ledgerService *ledger.Service, store storage.BucketStore, storageC config.StorageConfig, logger *zap.Logger) *Synchronizer {
	return &Synchronizer{
		ledger:   ledgerService,
		store:    store,
		storageC: storageC,
		logger:   logger,
	}
}

// HandlePurposeError persists one row-level finding and, on the last message
// of a run, drives the tracing to ERROR.
func (s *Synchronizer) HandlePurposeError(ctx context.Context, body []byte) error {
	timer := prometheus.NewTimer(observability.RunDuration.WithLabelValues("statesync"))
	defer timer.ObserveDuration()

	var msg domain.PurposeErrorMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("%w: %v", queue.ErrUnprocessable, err)
	}
	if msg.TracingID == uuid.Nil || msg.Version < 1 || msg.ErrorCode == "" {
		return fmt.Errorf("%w: purpose error message missing required fields", queue.ErrUnprocessable)
	}

	entry := domain.PurposeError{
		TracingID: msg.TracingID,
		Version:   msg.Version,
		PurposeID: msg.PurposeID,
		ErrorCode: msg.ErrorCode,
		Message:   msg.Message,
		RowNumber: msg.RowNumber,
	}
	if err := s.ledger.SavePurposeError(ctx, entry); err != nil {
		return err
	}

	if msg.UpdateTracingState {
		if err := s.ledger.UpdateState(ctx, msg.TracingID, msg.Version, domain.TracingStateError); err != nil {
			if errors.Is(err, ledger.ErrTracingNotFound) {
				// Superseded version: a newer submit already bumped the row.
				s.logger.Warn("skipping error transition for stale version",
					zap.String("tracingId", msg.TracingID.String()),
					zap.Int("version", msg.Version))
				return nil
			}
			return err
		}
	}
	return nil
}

// HandleUpdateState applies a terminal transition from the completion queue.
// A replace run first promotes the staged raw object to the primary bucket.
func (s *Synchronizer) HandleUpdateState(ctx context.Context, body []byte) error {
	timer := prometheus.NewTimer(observability.RunDuration.WithLabelValues("statesync"))
	defer timer.ObserveDuration()

	var msg domain.UpdateTracingStateMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("%w: %v", queue.ErrUnprocessable, err)
	}
	if msg.TracingID == uuid.Nil || msg.Version < 1 || !msg.State.IsTerminal() {
		return fmt.Errorf("%w: update state message missing required fields", queue.ErrUnprocessable)
	}

	if msg.IsReplacing && msg.State == domain.TracingStateCompleted {
		date, err := domain.ParseDate(msg.Date)
		if err != nil {
			return fmt.Errorf("%w: %v", queue.ErrUnprocessable, err)
		}
		key := storage.BuildKey(storage.TracingContext{
			TenantID:      msg.TenantID,
			Date:          date,
			TracingID:     msg.TracingID,
			Version:       msg.Version,
			CorrelationID: msg.CorrelationID,
		})
		if err := s.promoteReplacement(ctx, key); err != nil {
			return err
		}
	}

	if err := s.ledger.UpdateState(ctx, msg.TracingID, msg.Version, msg.State); err != nil {
		if errors.Is(err, ledger.ErrTracingNotFound) {
			s.logger.Warn("skipping terminal transition for stale version",
				zap.String("tracingId", msg.TracingID.String()),
				zap.Int("version", msg.Version))
			return nil
		}
		return err
	}
	return nil
}

// promoteReplacement moves the replace upload from the staging bucket to
// the primary bucket once completion is confirmed. Copy-then-remove keeps
// redelivery idempotent: an empty staging key means an earlier delivery
// already promoted.
func (s *Synchronizer) promoteReplacement(ctx context.Context, key string) error {
	exists, err := s.store.ObjectExists(ctx, s.storageC.ReplacingBucket, key)
	if err != nil {
		return err
	}
	if !exists {
		// Already promoted by an earlier delivery.
		return nil
	}
	if err := s.store.CopyObject(ctx, s.storageC.ReplacingBucket, s.storageC.RawBucket, key); err != nil {
		return err
	}
	if err := s.store.RemoveObject(ctx, s.storageC.ReplacingBucket, key); err != nil {
		return err
	}
	s.logger.Info("promoted replacement object", zap.String("key", key))
	return nil
}
