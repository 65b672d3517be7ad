package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TracingState is the lifecycle state of a tracing.
type TracingState string

const (
	TracingStatePending   TracingState = "PENDING"
	TracingStateMissing   TracingState = "MISSING"
	TracingStateError     TracingState = "ERROR"
	TracingStateCompleted TracingState = "COMPLETED"
)

// DateFormat is the calendar-day layout used for tracing dates, object keys
// and CSV content.
const DateFormat = "2006-01-02"

// ParseDate parses a calendar day and normalizes it to UTC midnight.
func ParseDate(value string) (time.Time, error) {
	t, err := time.Parse(DateFormat, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", value, err)
	}
	return t.UTC(), nil
}

// SameDay reports whether two instants fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	return a.UTC().Format(DateFormat) == b.UTC().Format(DateFormat)
}

// IsValidState reports whether s is one of the known tracing states.
func IsValidState(s TracingState) bool {
	switch s {
	case TracingStatePending, TracingStateMissing, TracingStateError, TracingStateCompleted:
		return true
	}
	return false
}

// IsTerminal reports whether s is a state the synchronizer may write.
func (s TracingState) IsTerminal() bool {
	return s == TracingStateError || s == TracingStateCompleted
}

// Tracing is the unit of work for one tenant on one calendar date.
type Tracing struct {
	ID        uuid.UUID    `json:"id"`
	TenantID  uuid.UUID    `json:"tenant_id"`
	Date      time.Time    `json:"date"`
	Version   int          `json:"version"`
	State     TracingState `json:"state"`
	CreatedAt time.Time    `json:"created_at"`
}

// NewTracing creates a fresh PENDING tracing at version 1.
func NewTracing(tenantID uuid.UUID, date time.Time) Tracing {
	return Tracing{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Date:      date.UTC(),
		Version:   1,
		State:     TracingStatePending,
		CreatedAt: time.Now().UTC(),
	}
}

// SubmitResult is what the ledger returns on submit.
type SubmitResult struct {
	Tracing             Tracing `json:"tracing"`
	HasHistoricalErrors bool    `json:"has_historical_errors"`
}

// TransitionResult reports the outcome of a recover or replace transition.
type TransitionResult struct {
	TracingID     uuid.UUID    `json:"tracing_id"`
	TenantID      uuid.UUID    `json:"tenant_id"`
	Date          time.Time    `json:"date"`
	PreviousState TracingState `json:"previous_state"`
	Version       int          `json:"version"`
}
