package domain

import "github.com/google/uuid"

// PurposeErrorMessage carries one row-level finding from the
// validation-enrichment engine to the state synchronizer. The last message
// of a run sets UpdateTracingState so the tracing is driven to ERROR exactly
// once, after all rows are durably recorded.
type PurposeErrorMessage struct {
	TracingID          uuid.UUID `json:"tracingId"`
	Version            int       `json:"version"`
	PurposeID          string    `json:"purposeId"`
	ErrorCode          ErrorCode `json:"errorCode"`
	Message            string    `json:"message"`
	RowNumber          int       `json:"rowNumber"`
	UpdateTracingState bool      `json:"updateTracingState"`
}

// UpdateTracingStateMessage asks the state synchronizer to apply a terminal
// transition. IsReplacing marks a replace run whose staged object must be
// promoted before the transition.
type UpdateTracingStateMessage struct {
	TracingID     uuid.UUID    `json:"tracingId"`
	TenantID      uuid.UUID    `json:"tenantId"`
	Date          string       `json:"date"`
	Version       int          `json:"version"`
	CorrelationID uuid.UUID    `json:"correlationId"`
	State         TracingState `json:"state"`
	IsReplacing   bool         `json:"isReplacing"`
}

// ObjectCreatedMessage is the bucket notification forwarded onto the queue
// transport by the storage event bridge. Key encodes the tracing context.
type ObjectCreatedMessage struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}
