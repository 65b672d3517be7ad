package processing

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pagopa/interop-tracing-core-sub000/internal/domain"
	"github.com/pagopa/interop-tracing-core-sub000/pkg/tracingcsv"
)

// rowError is one finding before it becomes a queue message.
type rowError struct {
	purposeID string
	code      domain.ErrorCode
	message   string
	rowNumber int
}

// formalCheck validates row shape without reference lookups. It returns the
// rows that passed untouched and one error per invalid field for the rest.
// Rows with any formal finding never reach enrichment.
func formalCheck(rows []tracingcsv.RawRow, tracingDate time.Time) ([]domain.TracingRecord, []rowError) {
	var records []domain.TracingRecord
	var findings []rowError

	type pairRef struct{ rows []int }
	pairs := make(map[string]*pairRef)

	for _, row := range rows {
		if row.Date == "" && row.PurposeID == "" && row.Status == "" && row.RequestsCount == "" {
			findings = append(findings, rowError{
				code:      domain.ErrorCodeInvalidRowSchema,
				message:   fmt.Sprintf("row %d is empty", row.RowNumber),
				rowNumber: row.RowNumber,
			})
			continue
		}

		rowFindings := checkRow(row, tracingDate)

		if row.PurposeID != "" && row.Status != "" {
			key := row.PurposeID + "|" + row.Status
			if pairs[key] == nil {
				pairs[key] = &pairRef{}
			}
			pairs[key].rows = append(pairs[key].rows, row.RowNumber)
		}

		if len(rowFindings) > 0 {
			findings = append(findings, rowFindings...)
			continue
		}

		date, _ := domain.ParseDate(row.Date)
		status, _ := strconv.Atoi(row.Status)
		requests := 0
		if row.RequestsCount != "" {
			requests, _ = strconv.Atoi(row.RequestsCount)
		}
		records = append(records, domain.TracingRecord{
			Date:          date,
			PurposeID:     row.PurposeID,
			Status:        status,
			RequestsCount: requests,
			RowNumber:     row.RowNumber,
		})
	}

	// A (purposeId, status) pair occurring more than once anywhere in the
	// file flags every occurrence.
	duplicated := make(map[int]string)
	for key, ref := range pairs {
		if len(ref.rows) < 2 {
			continue
		}
		purposeID, _, _ := strings.Cut(key, "|")
		rowList := formatRowList(ref.rows)
		for _, rowNumber := range ref.rows {
			duplicated[rowNumber] = purposeID
			findings = append(findings, rowError{
				purposeID: purposeID,
				code:      domain.ErrorCodePurposeAndStatusNotUnique,
				message:   fmt.Sprintf("duplicate purpose_id and status pair on rows %s", rowList),
				rowNumber: rowNumber,
			})
		}
	}
	if len(duplicated) > 0 {
		kept := records[:0]
		for _, record := range records {
			if _, dup := duplicated[record.RowNumber]; !dup {
				kept = append(kept, record)
			}
		}
		records = kept
	}

	return records, findings
}

// checkRow classifies schema violations by field name.
func checkRow(row tracingcsv.RawRow, tracingDate time.Time) []rowError {
	var findings []rowError

	if _, err := uuid.Parse(row.PurposeID); err != nil {
		findings = append(findings, rowError{
			purposeID: row.PurposeID,
			code:      domain.ErrorCodeInvalidPurpose,
			message:   fmt.Sprintf("purpose_id %q is not a well-formed identifier", row.PurposeID),
			rowNumber: row.RowNumber,
		})
	}

	if date, err := domain.ParseDate(row.Date); err != nil {
		findings = append(findings, rowError{
			purposeID: row.PurposeID,
			code:      domain.ErrorCodeInvalidDate,
			message:   fmt.Sprintf("date %q is not a valid date", row.Date),
			rowNumber: row.RowNumber,
		})
	} else if !domain.SameDay(date, tracingDate) {
		findings = append(findings, rowError{
			purposeID: row.PurposeID,
			code:      domain.ErrorCodeInvalidDate,
			message: fmt.Sprintf("date %s does not match tracing date %s",
				date.Format(domain.DateFormat), tracingDate.Format(domain.DateFormat)),
			rowNumber: row.RowNumber,
		})
	}

	if status, err := strconv.Atoi(row.Status); err != nil || status < 100 || status > 599 {
		findings = append(findings, rowError{
			purposeID: row.PurposeID,
			code:      domain.ErrorCodeInvalidStatusCode,
			message:   fmt.Sprintf("status %q is not a valid HTTP status code", row.Status),
			rowNumber: row.RowNumber,
		})
	}

	if row.RequestsCount != "" {
		if requests, err := strconv.Atoi(row.RequestsCount); err != nil || requests < 0 {
			findings = append(findings, rowError{
				purposeID: row.PurposeID,
				code:      domain.ErrorCodeInvalidRequestCount,
				message:   fmt.Sprintf("requests_count %q is not a non-negative number", row.RequestsCount),
				rowNumber: row.RowNumber,
			})
		}
	}

	return findings
}

func formatRowList(rows []int) string {
	sorted := append([]int(nil), rows...)
	sort.Ints(sorted)
	parts := make([]string, len(sorted))
	for i, n := range sorted {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ", ")
}
