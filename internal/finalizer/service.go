package finalizer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/pagopa/interop-tracing-core-sub000/internal/config"
	"github.com/pagopa/interop-tracing-core-sub000/internal/domain"
	"github.com/pagopa/interop-tracing-core-sub000/internal/observability"
	"github.com/pagopa/interop-tracing-core-sub000/internal/queue"
	"github.com/pagopa/interop-tracing-core-sub000/internal/repository"
	"github.com/pagopa/interop-tracing-core-sub000/internal/storage"
	"github.com/pagopa/interop-tracing-core-sub000/pkg/tracingcsv"
)

// Finalizer consumes enriched-bucket notifications, replaces the analytics
// rows for the tracing and emits the completion notification that drives
// the ledger to COMPLETED.
type Finalizer struct {
	store     storage.BucketStore
	publisher queue.Publisher
	traces    repository.TraceRepository
	storageC  config.StorageConfig
	queueC    config.QueueConfig
	logger    *zap.Logger
}

// NewFinalizer creates a new ingestion finalizer.
func NewFinalizer(
	store storage.BucketStore,
	publisher queue.Publisher,
	traces repository.TraceRepository,
	storageC config.StorageConfig,
	queueC config.QueueConfig,
	logger *zap.Logger,
) *Finalizer {
	return &Finalizer{
		store:     store,
		publisher: publisher,
		traces:    traces,
		storageC:  storageC,
		queueC:    queueC,
		logger:    logger,
	}
}

// HandleEnrichedObject processes one enriched-bucket notification.
// Delete-then-insert inside one transaction makes redelivery idempotent:
// reprocessing the same tracingId always yields the same final row set.
func (f *Finalizer) HandleEnrichedObject(ctx context.Context, body []byte) error {
	timer := prometheus.NewTimer(observability.RunDuration.WithLabelValues("finalizer"))
	defer timer.ObserveDuration()

	var msg domain.ObjectCreatedMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("%w: %v", queue.ErrUnprocessable, err)
	}

	tc, err := storage.ParseKey(msg.Key)
	if err != nil {
		return fmt.Errorf("%w: %v", queue.ErrUnprocessable, err)
	}

	if msg.Bucket != f.storageC.EnrichedBucket {
		return fmt.Errorf("%w: unexpected bucket %q", queue.ErrUnprocessable, msg.Bucket)
	}

	logger := f.logger.With(
		zap.String("tracingId", tc.TracingID.String()),
		zap.Int("version", tc.Version))

	payload, err := f.store.GetObject(ctx, f.storageC.EnrichedBucket, msg.Key)
	if err != nil {
		return err
	}

	records, err := tracingcsv.DecodeEnriched(payload)
	if err != nil {
		return fmt.Errorf("tracing %s version %d: %w", tc.TracingID, tc.Version, err)
	}
	if len(records) == 0 {
		// No silent completions.
		return fmt.Errorf("tracing %s version %d: enriched file has no rows", tc.TracingID, tc.Version)
	}

	now := time.Now().UTC()
	rows := make([]domain.Trace, len(records))
	for i, record := range records {
		rows[i] = domain.Trace{
			ID:                 uuid.New(),
			TracingID:          tc.TracingID,
			TenantID:           tc.TenantID,
			Date:               record.Date,
			PurposeID:          record.PurposeID,
			PurposeName:        record.PurposeName,
			Status:             record.Status,
			RequestsCount:      record.RequestsCount,
			ConsumerOrigin:     record.ConsumerOrigin,
			ConsumerExternalID: record.ConsumerExternalID,
			ConsumerName:       record.ConsumerName,
			ProducerOrigin:     record.ProducerOrigin,
			ProducerExternalID: record.ProducerExternalID,
			ProducerName:       record.ProducerName,
			SubmittedAt:        now,
		}
	}

	inserted, err := f.traces.Replace(ctx, tc.TracingID, rows)
	if err != nil {
		return err
	}
	if inserted == 0 {
		return fmt.Errorf("tracing %s version %d: no analytics rows inserted", tc.TracingID, tc.Version)
	}
	observability.TracesWritten.Add(float64(inserted))

	isReplacing, err := f.store.ObjectExists(ctx, f.storageC.ReplacingBucket, msg.Key)
	if err != nil {
		return err
	}

	completion := domain.UpdateTracingStateMessage{
		TracingID:     tc.TracingID,
		TenantID:      tc.TenantID,
		Date:          tc.Date.Format(domain.DateFormat),
		Version:       tc.Version,
		CorrelationID: tc.CorrelationID,
		State:         domain.TracingStateCompleted,
		IsReplacing:   isReplacing,
	}
	if err := f.publisher.Publish(ctx, f.queueC.CompletionQueue, completion); err != nil {
		return err
	}

	logger.Info("finalized tracing", zap.Int64("rows", inserted), zap.Bool("isReplacing", isReplacing))
	return nil
}
