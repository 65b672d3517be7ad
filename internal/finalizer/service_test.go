package finalizer

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pagopa/interop-tracing-core-sub000/internal/config"
	"github.com/pagopa/interop-tracing-core-sub000/internal/domain"
	"github.com/pagopa/interop-tracing-core-sub000/internal/queue"
	"github.com/pagopa/interop-tracing-core-sub000/internal/storage"
	"github.com/pagopa/interop-tracing-core-sub000/pkg/tracingcsv"
)

type fakeStore struct {
	objects map[string][]byte
}

func objectKey(bucket, key string) string { return bucket + "/" + key }

func (s *fakeStore) GetObject(_ context.Context, bucket, key string) ([]byte, error) {
	body, ok := s.objects[objectKey(bucket, key)]
	if !ok {
		return nil, fmt.Errorf("object %s/%s not found", bucket, key)
	}
	return body, nil
}

func (s *fakeStore) PutObject(_ context.Context, bucket, key string, body []byte) error {
	s.objects[objectKey(bucket, key)] = body
	return nil
}

func (s *fakeStore) CopyObject(_ context.Context, srcBucket, dstBucket, key string) error {
	body, ok := s.objects[objectKey(srcBucket, key)]
	if !ok {
		return fmt.Errorf("object %s/%s not found", srcBucket, key)
	}
	s.objects[objectKey(dstBucket, key)] = body
	return nil
}

func (s *fakeStore) RemoveObject(_ context.Context, bucket, key string) error {
	delete(s.objects, objectKey(bucket, key))
	return nil
}

func (s *fakeStore) ObjectExists(_ context.Context, bucket, key string) (bool, error) {
	_, ok := s.objects[objectKey(bucket, key)]
	return ok, nil
}

type fakePublisher struct {
	messages []domain.UpdateTracingStateMessage
}

func (p *fakePublisher) Publish(_ context.Context, _ string, v any) error {
	if msg, ok := v.(domain.UpdateTracingStateMessage); ok {
		p.messages = append(p.messages, msg)
	}
	return nil
}

// memTraceRepo mirrors the replace contract: the previous rows for the
// tracing are discarded before the new set lands.
type memTraceRepo struct {
	rows map[uuid.UUID][]domain.Trace
}

func (m *memTraceRepo) Replace(_ context.Context, tracingID uuid.UUID, rows []domain.Trace) (int64, error) {
	m.rows[tracingID] = append([]domain.Trace(nil), rows...)
	return int64(len(rows)), nil
}

func (m *memTraceRepo) CountByTracing(_ context.Context, tracingID uuid.UUID) (int64, error) {
	return int64(len(m.rows[tracingID])), nil
}

var finStorageConfig = config.StorageConfig{
	RawBucket:       "tracing-raw",
	EnrichedBucket:  "tracing-enriched",
	ReplacingBucket: "tracing-replacing",
}

var finQueueConfig = config.QueueConfig{
	CompletionQueue: "tracing.completions",
}

type finFixture struct {
	store     *fakeStore
	publisher *fakePublisher
	traces    *memTraceRepo
	finalizer *Finalizer
	tc        storage.TracingContext
}

func newFinFixture() *finFixture {
	store := &fakeStore{objects: make(map[string][]byte)}
	publisher := &fakePublisher{}
	traces := &memTraceRepo{rows: make(map[uuid.UUID][]domain.Trace)}
	return &finFixture{
		store:     store,
		publisher: publisher,
		traces:    traces,
		finalizer: NewFinalizer(store, publisher, traces, finStorageConfig, finQueueConfig, zap.NewNop()),
		tc: storage.TracingContext{
			TenantID:      uuid.New(),
			Date:          time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
			TracingID:     uuid.New(),
			Version:       1,
			CorrelationID: uuid.New(),
		},
	}
}

func enrichedRecords(tc storage.TracingContext, n int) []domain.EnrichedRecord {
	records := make([]domain.EnrichedRecord, n)
	for i := range records {
		records[i] = domain.EnrichedRecord{
			Date:               tc.Date,
			PurposeID:          uuid.New().String(),
			PurposeName:        "weather lookups",
			Status:             200,
			RequestsCount:      i + 1,
			ConsumerOrigin:     "IPA",
			ConsumerExternalID: "c-001",
			ConsumerName:       "Comune di Esempio",
			ProducerOrigin:     "IPA",
			ProducerExternalID: "p-001",
			ProducerName:       "Agenzia Dati",
			RowNumber:          i + 1,
		}
	}
	return records
}

func (f *finFixture) seedEnriched(t *testing.T, records []domain.EnrichedRecord) []byte {
	t.Helper()
	payload, err := tracingcsv.EncodeEnriched(records)
	if err != nil {
		t.Fatalf("encode enriched: %v", err)
	}
	key := storage.BuildKey(f.tc)
	if err := f.store.PutObject(context.Background(), finStorageConfig.EnrichedBucket, key, payload); err != nil {
		t.Fatalf("seed enriched object: %v", err)
	}
	return []byte(fmt.Sprintf(`{"bucket":%q,"key":%q}`, finStorageConfig.EnrichedBucket, key))
}

func TestHandleEnrichedObject_WritesTracesAndPublishesCompletion(t *testing.T) {
	f := newFinFixture()
	body := f.seedEnriched(t, enrichedRecords(f.tc, 3))

	if err := f.finalizer.HandleEnrichedObject(context.Background(), body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rows := f.traces.rows[f.tc.TracingID]
	if len(rows) != 3 {
		t.Fatalf("expected 3 analytics rows, got %d", len(rows))
	}
	for i, row := range rows {
		if row.TracingID != f.tc.TracingID || row.TenantID != f.tc.TenantID {
			t.Fatalf("row %d carries wrong tracing context: %+v", i, row)
		}
		if row.ID == uuid.Nil || row.SubmittedAt.IsZero() {
			t.Fatalf("row %d missing generated fields: %+v", i, row)
		}
	}

	if len(f.publisher.messages) != 1 {
		t.Fatalf("expected one completion message, got %d", len(f.publisher.messages))
	}
	msg := f.publisher.messages[0]
	if msg.TracingID != f.tc.TracingID || msg.Version != f.tc.Version {
		t.Fatalf("completion carries wrong tracing context: %+v", msg)
	}
	if msg.State != domain.TracingStateCompleted {
		t.Fatalf("expected COMPLETED, got %s", msg.State)
	}
	if msg.CorrelationID != f.tc.CorrelationID {
		t.Fatalf("completion lost the correlation id: %+v", msg)
	}
	if msg.IsReplacing {
		t.Fatalf("plain run flagged as replacing")
	}
}

func TestHandleEnrichedObject_RedeliveryKeepsRowSetStable(t *testing.T) {
	f := newFinFixture()
	body := f.seedEnriched(t, enrichedRecords(f.tc, 2))

	for i := 0; i < 3; i++ {
		if err := f.finalizer.HandleEnrichedObject(context.Background(), body); err != nil {
			t.Fatalf("delivery %d: unexpected error: %v", i, err)
		}
	}
	if got := len(f.traces.rows[f.tc.TracingID]); got != 2 {
		t.Fatalf("expected 2 rows after redelivery, got %d", got)
	}
}

func TestHandleEnrichedObject_ReplaceRunIsFlagged(t *testing.T) {
	f := newFinFixture()
	f.tc.Version = 2
	body := f.seedEnriched(t, enrichedRecords(f.tc, 1))

	// The staged upload still sits in the replacing bucket at the same key.
	key := storage.BuildKey(f.tc)
	if err := f.store.PutObject(context.Background(), finStorageConfig.ReplacingBucket, key, []byte("raw")); err != nil {
		t.Fatalf("seed staged object: %v", err)
	}

	if err := f.finalizer.HandleEnrichedObject(context.Background(), body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.publisher.messages) != 1 || !f.publisher.messages[0].IsReplacing {
		t.Fatalf("replace run not flagged: %+v", f.publisher.messages)
	}
}

func TestHandleEnrichedObject_EmptyFileFails(t *testing.T) {
	f := newFinFixture()
	payload, err := tracingcsv.EncodeEnriched(nil)
	if err != nil {
		t.Fatalf("encode enriched: %v", err)
	}
	key := storage.BuildKey(f.tc)
	if err := f.store.PutObject(context.Background(), finStorageConfig.EnrichedBucket, key, payload); err != nil {
		t.Fatalf("seed enriched object: %v", err)
	}
	body := []byte(fmt.Sprintf(`{"bucket":%q,"key":%q}`, finStorageConfig.EnrichedBucket, key))

	if err := f.finalizer.HandleEnrichedObject(context.Background(), body); err == nil {
		t.Fatalf("expected error for enriched file with no rows")
	}
	if len(f.publisher.messages) != 0 {
		t.Fatalf("completion published for empty file")
	}
}

func TestHandleEnrichedObject_UnexpectedBucketIsDropped(t *testing.T) {
	f := newFinFixture()
	key := storage.BuildKey(f.tc)
	body := []byte(fmt.Sprintf(`{"bucket":%q,"key":%q}`, finStorageConfig.RawBucket, key))

	if err := f.finalizer.HandleEnrichedObject(context.Background(), body); !errors.Is(err, queue.ErrUnprocessable) {
		t.Fatalf("expected ErrUnprocessable, got %v", err)
	}
}

func TestHandleEnrichedObject_MalformedMessageIsDropped(t *testing.T) {
	f := newFinFixture()

	for _, body := range []string{
		"not json",
		`{"bucket":"tracing-enriched","key":"garbage"}`,
	} {
		if err := f.finalizer.HandleEnrichedObject(context.Background(), []byte(body)); !errors.Is(err, queue.ErrUnprocessable) {
			t.Fatalf("expected ErrUnprocessable for %q, got %v", body, err)
		}
	}
}
