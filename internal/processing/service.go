package processing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

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

// Engine is the validation-enrichment stage. It owns no persistent state:
// it is a pure transform over object-storage content plus read-only
// reference lookups, emitting either an enriched file or per-row errors.
type Engine struct {
	store     storage.BucketStore
	publisher queue.Publisher
	refs      repository.ReferenceRepository
	storageC  config.StorageConfig
	queueC    config.QueueConfig
	logger    *zap.Logger
}

// NewEngine creates a new validation-enrichment engine.
func NewEngine(
	store storage.BucketStore,
	publisher queue.Publisher,
	refs repository.ReferenceRepository,
	storageC config.StorageConfig,
	queueC config.QueueConfig,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		store:     store,
		publisher: publisher,
		refs:      refs,
		storageC:  storageC,
		queueC:    queueC,
		logger:    logger,
	}
}

// HandleObjectCreated processes one raw-bucket notification end to end.
func (e *Engine) HandleObjectCreated(ctx context.Context, body []byte) error {
	timer := prometheus.NewTimer(observability.RunDuration.WithLabelValues("processing"))
	defer timer.ObserveDuration()

	var msg domain.ObjectCreatedMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("%w: %v", queue.ErrUnprocessable, err)
	}

	tc, err := storage.ParseKey(msg.Key)
	if err != nil {
		return fmt.Errorf("%w: %v", queue.ErrUnprocessable, err)
	}

	if msg.Bucket != e.storageC.RawBucket && msg.Bucket != e.storageC.ReplacingBucket {
		return fmt.Errorf("%w: unexpected bucket %q", queue.ErrUnprocessable, msg.Bucket)
	}

	logger := e.logger.With(
		zap.String("tracingId", tc.TracingID.String()),
		zap.String("tenantId", tc.TenantID.String()),
		zap.Int("version", tc.Version),
		zap.String("correlationId", tc.CorrelationID.String()))
	logger.Info("processing tracing file", zap.String("bucket", msg.Bucket))

	payload, err := e.store.GetObject(ctx, msg.Bucket, msg.Key)
	if err != nil {
		return err
	}

	rows, err := tracingcsv.Decode(payload)
	if err != nil {
		if errors.Is(err, tracingcsv.ErrWrongDelimiter) || errors.Is(err, tracingcsv.ErrEmptyFile) {
			// Deterministic content defect: the same bytes fail on every
			// redelivery, so requeueing would block the queue forever.
			return fmt.Errorf("%w: tracing %s version %d: %w", queue.ErrUnprocessable, tc.TracingID, tc.Version, err)
		}
		return fmt.Errorf("tracing %s version %d: %w", tc.TracingID, tc.Version, err)
	}

	records, findings := formalCheck(rows, tc.Date)

	var enriched []domain.EnrichedRecord
	if len(records) > 0 {
		var semantic []rowError
		enriched, semantic, err = e.enrich(ctx, tc.TenantID, records)
		if err != nil {
			return fmt.Errorf("tracing %s version %d: %w", tc.TracingID, tc.Version, err)
		}
		findings = append(findings, semantic...)
	}

	if len(findings) > 0 {
		observability.RowsProcessed.WithLabelValues("invalid").Add(float64(len(findings)))
		return e.publishFindings(ctx, tc, findings, logger)
	}

	observability.RowsProcessed.WithLabelValues("enriched").Add(float64(len(enriched)))
	return e.writeEnriched(ctx, tc, msg.Key, enriched, logger)
}

// publishFindings emits one message per finding, rowNumber ascending. Only
// the last message asks the synchronizer to advance the tracing, so the
// terminal transition happens once, after every row is durably recorded.
func (e *Engine) publishFindings(ctx context.Context, tc storage.TracingContext, findings []rowError, logger *zap.Logger) error {
	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].rowNumber < findings[j].rowNumber
	})

	for i, finding := range findings {
		msg := domain.PurposeErrorMessage{
			TracingID:          tc.TracingID,
			Version:            tc.Version,
			PurposeID:          finding.purposeID,
			ErrorCode:          finding.code,
			Message:            finding.message,
			RowNumber:          finding.rowNumber,
			UpdateTracingState: i == len(findings)-1,
		}
		if err := e.publisher.Publish(ctx, e.queueC.ErrorQueue, msg); err != nil {
			return err
		}
	}

	logger.Info("published row errors", zap.Int("count", len(findings)))
	return nil
}

// writeEnriched stores the enriched file at the equivalent key in the
// enriched bucket; that object-created event triggers the finalizer.
func (e *Engine) writeEnriched(ctx context.Context, tc storage.TracingContext, key string, enriched []domain.EnrichedRecord, logger *zap.Logger) error {
	body, err := tracingcsv.EncodeEnriched(enriched)
	if err != nil {
		return fmt.Errorf("tracing %s version %d: %w", tc.TracingID, tc.Version, err)
	}

	if err := e.store.PutObject(ctx, e.storageC.EnrichedBucket, key, body); err != nil {
		return err
	}

	logger.Info("wrote enriched file", zap.Int("rows", len(enriched)))
	return nil
}
