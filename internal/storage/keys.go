package storage

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pagopa/interop-tracing-core-sub000/internal/domain"
)

// TracingContext identifies one processing run of one tracing version. It is
// encoded into the object key so every stage can be triggered by a bucket
// notification alone.
type TracingContext struct {
	TenantID      uuid.UUID
	Date          time.Time
	TracingID     uuid.UUID
	Version       int
	CorrelationID uuid.UUID
}

// BuildKey renders the deterministic object key for a tracing run.
// Layout: tenantId={}/date={}/tracingId={}/version={}/correlationId={}/{tracingId}.csv
func BuildKey(tc TracingContext) string {
	return fmt.Sprintf(
		"tenantId=%s/date=%s/tracingId=%s/version=%d/correlationId=%s/%s.csv",
		tc.TenantID,
		tc.Date.UTC().Format(domain.DateFormat),
		tc.TracingID,
		tc.Version,
		tc.CorrelationID,
		tc.TracingID,
	)
}

// ParseKey decodes an object key back into its tracing context.
func ParseKey(key string) (TracingContext, error) {
	var tc TracingContext

	parts := strings.Split(strings.TrimPrefix(key, "/"), "/")
	if len(parts) != 6 {
		return tc, fmt.Errorf("malformed object key %q", key)
	}

	fields := make(map[string]string, 5)
	for _, part := range parts[:5] {
		name, value, found := strings.Cut(part, "=")
		if !found || value == "" {
			return tc, fmt.Errorf("malformed object key segment %q", part)
		}
		fields[name] = value
	}

	tenantID, err := uuid.Parse(fields["tenantId"])
	if err != nil {
		return tc, fmt.Errorf("object key %q: invalid tenantId: %w", key, err)
	}
	date, err := domain.ParseDate(fields["date"])
	if err != nil {
		return tc, fmt.Errorf("object key %q: %w", key, err)
	}
	tracingID, err := uuid.Parse(fields["tracingId"])
	if err != nil {
		return tc, fmt.Errorf("object key %q: invalid tracingId: %w", key, err)
	}
	version, err := strconv.Atoi(fields["version"])
	if err != nil || version < 1 {
		return tc, fmt.Errorf("object key %q: invalid version %q", key, fields["version"])
	}
	correlationID, err := uuid.Parse(fields["correlationId"])
	if err != nil {
		return tc, fmt.Errorf("object key %q: invalid correlationId: %w", key, err)
	}

	if want := tracingID.String() + ".csv"; parts[5] != want {
		return tc, fmt.Errorf("object key %q: file name %q does not match tracingId", key, parts[5])
	}

	tc = TracingContext{
		TenantID:      tenantID,
		Date:          date,
		TracingID:     tracingID,
		Version:       version,
		CorrelationID: correlationID,
	}
	return tc, nil
}
