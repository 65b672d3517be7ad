package tracingcsv

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pagopa/interop-tracing-core-sub000/internal/domain"
)

func TestDecode_HeaderFile(t *testing.T) {
	purposeID := uuid.New().String()
	payload := []byte("date,purpose_id,status,requests_count\n" +
		"2024-06-01," + purposeID + ",200,10\n" +
		"2024-06-01," + purposeID + ",404,3\n")

	rows, err := Decode(payload)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].RowNumber != 1 || rows[1].RowNumber != 2 {
		t.Fatalf("expected 1-based row numbers, got %d and %d", rows[0].RowNumber, rows[1].RowNumber)
	}
	if rows[0].Status != "200" || rows[1].Status != "404" {
		t.Fatalf("unexpected statuses: %q, %q", rows[0].Status, rows[1].Status)
	}
	if rows[0].PurposeID != purposeID {
		t.Fatalf("expected purpose id %q, got %q", purposeID, rows[0].PurposeID)
	}
}

func TestDecode_ShuffledHeaderColumns(t *testing.T) {
	purposeID := uuid.New().String()
	payload := []byte("status,requests_count,date,purpose_id\n" +
		"200,5,2024-06-01," + purposeID + "\n")

	rows, err := Decode(payload)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if rows[0].Date != "2024-06-01" || rows[0].Status != "200" || rows[0].RequestsCount != "5" {
		t.Fatalf("columns not mapped by header: %+v", rows[0])
	}
}

func TestDecode_HeaderlessFallsBackToPositions(t *testing.T) {
	// Without a recognizable header the first line is consumed as a header
	// and columns map positionally; only subsequent lines survive as data.
	payload := []byte("2024-06-01,abc,200,10\n2024-06-02,def,500,1\n")

	rows, err := Decode(payload)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 data row, got %d", len(rows))
	}
	if rows[0].Date != "2024-06-02" || rows[0].PurposeID != "def" {
		t.Fatalf("positional mapping broken: %+v", rows[0])
	}
}

func TestDecode_StripsByteOrderMark(t *testing.T) {
	payload := append([]byte{0xEF, 0xBB, 0xBF},
		[]byte("date,purpose_id,status,requests_count\n2024-06-01,p,200,1\n")...)

	rows, err := Decode(payload)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if rows[0].Date != "2024-06-01" {
		t.Fatalf("BOM broke header detection: %+v", rows[0])
	}
}

func TestDecode_RejectsWrongDelimiter(t *testing.T) {
	for _, payload := range []string{
		"date;purpose_id;status;requests_count\n2024-06-01;p;200;1\n",
		"date\tpurpose_id\tstatus\trequests_count\n",
		"date|purpose_id|status|requests_count\n",
		"justonecolumn\n",
	} {
		if _, err := Decode([]byte(payload)); !errors.Is(err, ErrWrongDelimiter) {
			t.Fatalf("expected ErrWrongDelimiter for %q, got %v", payload, err)
		}
	}
}

func TestDecode_EmptyFile(t *testing.T) {
	if _, err := Decode([]byte("date,purpose_id,status,requests_count\n")); !errors.Is(err, ErrEmptyFile) {
		t.Fatalf("expected ErrEmptyFile for header-only file, got %v", err)
	}
}

func TestEncodeEnriched_DecodeEnriched_RoundTrip(t *testing.T) {
	records := []domain.EnrichedRecord{
		{
			Date:               time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
			PurposeID:          uuid.New().String(),
			PurposeName:        "weather lookups",
			Status:             200,
			RequestsCount:      42,
			ConsumerOrigin:     "IPA",
			ConsumerExternalID: "c-001",
			ConsumerName:       "Comune di Esempio",
			ProducerOrigin:     "IPA",
			ProducerExternalID: "p-001",
			ProducerName:       "Agenzia Dati",
			RowNumber:          1,
		},
		{
			Date:               time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
			PurposeID:          uuid.New().String(),
			PurposeName:        "name, with comma",
			Status:             503,
			RequestsCount:      0,
			ConsumerOrigin:     "IPA",
			ConsumerExternalID: "c-002",
			ConsumerName:       "Altro Comune",
			ProducerOrigin:     "IPA",
			ProducerExternalID: "p-001",
			ProducerName:       "Agenzia Dati",
			RowNumber:          2,
		},
	}

	payload, err := EncodeEnriched(records)
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}

	decoded, err := DecodeEnriched(payload)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if len(decoded) != len(records) {
		t.Fatalf("expected %d records, got %d", len(records), len(decoded))
	}
	for i := range records {
		if decoded[i] != records[i] {
			t.Fatalf("record %d mismatch:\nwant %+v\ngot  %+v", i, records[i], decoded[i])
		}
	}
}

func TestDecodeEnriched_RejectsShortHeader(t *testing.T) {
	if _, err := DecodeEnriched([]byte("date,purpose_id,status\n")); err == nil {
		t.Fatalf("expected error for truncated enriched header")
	}
}
