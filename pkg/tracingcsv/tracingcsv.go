// Package tracingcsv reads submitted tracing files and writes their enriched
// counterparts. Decoding keeps every field as the raw string so the formal
// check can classify defects per field instead of failing the whole parse.
package tracingcsv

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pagopa/interop-tracing-core-sub000/internal/domain"
)

// ErrWrongDelimiter is returned when the submitted file is not
// comma-separated. This is fatal for the whole file, not a per-row finding.
var ErrWrongDelimiter = errors.New("unexpected field delimiter")

// ErrEmptyFile is returned when no data rows parsed.
var ErrEmptyFile = errors.New("no rows parsed")

var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

// RawRow is one undecoded CSV row. RowNumber is 1-based over data rows.
type RawRow struct {
	Date          string
	PurposeID     string
	Status        string
	RequestsCount string
	RowNumber     int
}

var rawHeader = []string{"date", "purpose_id", "status", "requests_count"}

var enrichedHeader = []string{
	"date", "purpose_id", "purpose_name", "status", "requests_count",
	"consumer_origin", "consumer_external_id", "consumer_name",
	"producer_origin", "producer_external_id", "producer_name",
}

// Decode parses a submitted tracing file into raw rows.
func Decode(payload []byte) ([]RawRow, error) {
	payload = bytes.TrimPrefix(payload, byteOrderMark)

	if err := checkDelimiter(payload); err != nil {
		return nil, err
	}

	reader := csv.NewReader(bytes.NewReader(payload))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyFile
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	columns := columnIndexes(header)

	var rows []RawRow
	rowNumber := 0
	for {
		record, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		rowNumber++
		rows = append(rows, RawRow{
			Date:          field(record, columns["date"]),
			PurposeID:     field(record, columns["purpose_id"]),
			Status:        field(record, columns["status"]),
			RequestsCount: field(record, columns["requests_count"]),
			RowNumber:     rowNumber,
		})
	}

	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}
	return rows, nil
}

// checkDelimiter sniffs the header line. A file whose dominant separator is
// not the comma is rejected outright.
func checkDelimiter(payload []byte) error {
	line, _, _ := strings.Cut(string(payload), "\n")
	commas := strings.Count(line, ",")
	for _, candidate := range []string{";", "\t", "|"} {
		if strings.Count(line, candidate) > commas {
			return fmt.Errorf("%w: expected %q, detected %q", ErrWrongDelimiter, ",", candidate)
		}
	}
	if commas == 0 {
		return fmt.Errorf("%w: no %q found in header", ErrWrongDelimiter, ",")
	}
	return nil
}

func columnIndexes(header []string) map[string]int {
	columns := make(map[string]int, len(rawHeader))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	// Header-less files fall back to positional columns.
	if _, ok := columns["date"]; !ok {
		for i, name := range rawHeader {
			columns[name] = i
		}
	}
	return columns
}

func field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

// EncodeEnriched serializes enriched records, identity columns included.
func EncodeEnriched(records []domain.EnrichedRecord) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(enrichedHeader); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	for _, r := range records {
		row := []string{
			r.Date.UTC().Format(domain.DateFormat),
			r.PurposeID,
			r.PurposeName,
			strconv.Itoa(r.Status),
			strconv.Itoa(r.RequestsCount),
			r.ConsumerOrigin, r.ConsumerExternalID, r.ConsumerName,
			r.ProducerOrigin, r.ProducerExternalID, r.ProducerName,
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeEnriched parses an enriched file back into records. Used by the
// ingestion finalizer.
func DecodeEnriched(payload []byte) ([]domain.EnrichedRecord, error) {
	payload = bytes.TrimPrefix(payload, byteOrderMark)

	reader := csv.NewReader(bytes.NewReader(payload))
	reader.FieldsPerRecord = len(enrichedHeader)

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyFile
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if len(header) != len(enrichedHeader) {
		return nil, fmt.Errorf("unexpected enriched header %v", header)
	}

	var records []domain.EnrichedRecord
	rowNumber := 0
	for {
		row, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		rowNumber++

		date, err := domain.ParseDate(row[0])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", rowNumber, err)
		}
		status, err := strconv.Atoi(row[3])
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid status %q", rowNumber, row[3])
		}
		requests, err := strconv.Atoi(row[4])
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid requests_count %q", rowNumber, row[4])
		}

		records = append(records, domain.EnrichedRecord{
			Date:               date,
			PurposeID:          row[1],
			PurposeName:        row[2],
			Status:             status,
			RequestsCount:      requests,
			ConsumerOrigin:     row[5],
			ConsumerExternalID: row[6],
			ConsumerName:       row[7],
			ProducerOrigin:     row[8],
			ProducerExternalID: row[9],
			ProducerName:       row[10],
			RowNumber:          rowNumber,
		})
	}

	return records, nil
}
