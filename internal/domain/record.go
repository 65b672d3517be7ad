package domain

import (
	"time"

	"github.com/google/uuid"
)

// TracingRecord is one parsed CSV row of a submitted tracing file.
// Records are transient: they become either an EnrichedRecord or one or
// more purpose errors, never persisted as-is.
type TracingRecord struct {
	Date          time.Time
	PurposeID     string
	Status        int
	RequestsCount int
	RowNumber     int
}

// EnrichedRecord is a validated row augmented with identity resolved from
// the reference store.
type EnrichedRecord struct {
	Date               time.Time
	PurposeID          string
	PurposeName        string
	Status             int
	RequestsCount      int
	ConsumerOrigin     string
	ConsumerExternalID string
	ConsumerName       string
	ProducerOrigin     string
	ProducerExternalID string
	ProducerName       string
	RowNumber          int
}

// Trace is one denormalized analytics row written by the finalizer.
type Trace struct {
	ID                 uuid.UUID
	TracingID          uuid.UUID
	TenantID           uuid.UUID
	Date               time.Time
	PurposeID          string
	PurposeName        string
	Status             int
	RequestsCount      int
	ConsumerOrigin     string
	ConsumerExternalID string
	ConsumerName       string
	ProducerOrigin     string
	ProducerExternalID string
	ProducerName       string
	SubmittedAt        time.Time
}
