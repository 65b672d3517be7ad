package domain

import (
	"time"

	"github.com/google/uuid"
)

// ErrorCode classifies a formal or semantic defect found in one CSV row.
type ErrorCode string

const (
	ErrorCodeInvalidStatusCode           ErrorCode = "INVALID_STATUS_CODE"
	ErrorCodeInvalidPurpose              ErrorCode = "INVALID_PURPOSE"
	ErrorCodeInvalidDate                 ErrorCode = "INVALID_DATE"
	ErrorCodeInvalidRequestCount         ErrorCode = "INVALID_REQUEST_COUNT"
	ErrorCodeInvalidRowSchema            ErrorCode = "INVALID_ROW_SCHEMA"
	ErrorCodePurposeAndStatusNotUnique   ErrorCode = "PURPOSE_AND_STATUS_NOT_UNIQUE"
	ErrorCodePurposeNotFound             ErrorCode = "PURPOSE_NOT_FOUND"
	ErrorCodeTenantNotProducerOrConsumer ErrorCode = "TENANT_IS_NOT_PRODUCER_OR_CONSUMER"
)

// PurposeError is one persisted defect for one row of one tracing version.
type PurposeError struct {
	ID        uuid.UUID `json:"id"`
	TracingID uuid.UUID `json:"tracing_id"`
	Version   int       `json:"version"`
	PurposeID string    `json:"purpose_id"`
	ErrorCode ErrorCode `json:"error_code"`
	Message   string    `json:"message"`
	RowNumber int       `json:"row_number"`
	CreatedAt time.Time `json:"created_at"`
}
