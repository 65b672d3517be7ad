package storage

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestBuildKey_ParseKey_RoundTrip(t *testing.T) {
	tc := TracingContext{
		TenantID:      uuid.New(),
		Date:          time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		TracingID:     uuid.New(),
		Version:       3,
		CorrelationID: uuid.New(),
	}

	key := BuildKey(tc)
	parsed, err := ParseKey(key)
	if err != nil {
		t.Fatalf("unexpected parse error for %q: %v", key, err)
	}
	if parsed != tc {
		t.Fatalf("round trip mismatch: built %+v, parsed %+v", tc, parsed)
	}
}

func TestParseKey_TrimsLeadingSlash(t *testing.T) {
	tc := TracingContext{
		TenantID:      uuid.New(),
		Date:          time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		TracingID:     uuid.New(),
		Version:       1,
		CorrelationID: uuid.New(),
	}

	parsed, err := ParseKey("/" + BuildKey(tc))
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if parsed != tc {
		t.Fatalf("round trip mismatch: built %+v, parsed %+v", tc, parsed)
	}
}

func TestParseKey_Malformed(t *testing.T) {
	tenantID := uuid.New()
	tracingID := uuid.New()
	correlationID := uuid.New()

	cases := []struct {
		name string
		key  string
	}{
		{"too few segments", "tenantId=abc/date=2024-06-01"},
		{"missing value", fmt.Sprintf("tenantId=/date=2024-06-01/tracingId=%s/version=1/correlationId=%s/%s.csv", tracingID, correlationID, tracingID)},
		{"bad tenant id", fmt.Sprintf("tenantId=not-a-uuid/date=2024-06-01/tracingId=%s/version=1/correlationId=%s/%s.csv", tracingID, correlationID, tracingID)},
		{"bad date", fmt.Sprintf("tenantId=%s/date=01-06-2024/tracingId=%s/version=1/correlationId=%s/%s.csv", tenantID, tracingID, correlationID, tracingID)},
		{"zero version", fmt.Sprintf("tenantId=%s/date=2024-06-01/tracingId=%s/version=0/correlationId=%s/%s.csv", tenantID, tracingID, correlationID, tracingID)},
		{"file name mismatch", fmt.Sprintf("tenantId=%s/date=2024-06-01/tracingId=%s/version=1/correlationId=%s/%s.csv", tenantID, tracingID, correlationID, uuid.New())},
	}

	for _, tc := range cases {
		if _, err := ParseKey(tc.key); err == nil {
			t.Fatalf("%s: expected error for key %q", tc.name, tc.key)
		}
	}
}
