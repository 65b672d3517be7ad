package processing

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/pagopa/interop-tracing-core-sub000/internal/domain"
)

// enrich resolves identity for every formally valid record. Missing
// reference rows for the submitter, an eservice, or its producer indicate a
// reference-store inconsistency and abort the run; a missing purpose or a
// tenant that is neither producer nor consumer is a per-row finding.
func (e *Engine) enrich(ctx context.Context, tenantID uuid.UUID, records []domain.TracingRecord) ([]domain.EnrichedRecord, []rowError, error) {
	submitter, found, err := e.refs.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, nil, err
	}
	if !found {
		return nil, nil, fmt.Errorf("submitting tenant %s not in reference store", tenantID)
	}

	var enriched []domain.EnrichedRecord
	var findings []rowError

	for _, record := range records {
		purpose, found, err := e.refs.GetPurpose(ctx, record.PurposeID)
		if err != nil {
			return nil, nil, err
		}
		if !found {
			findings = append(findings, rowError{
				purposeID: record.PurposeID,
				code:      domain.ErrorCodePurposeNotFound,
				message:   fmt.Sprintf("purpose %s not found", record.PurposeID),
				rowNumber: record.RowNumber,
			})
			continue
		}

		eservice, found, err := e.refs.GetEservice(ctx, purpose.EserviceID)
		if err != nil {
			return nil, nil, err
		}
		if !found {
			return nil, nil, fmt.Errorf("eservice %s for purpose %s not in reference store", purpose.EserviceID, purpose.ID)
		}

		if submitter.ID != eservice.ProducerID && submitter.ID != purpose.ConsumerID {
			findings = append(findings, rowError{
				purposeID: record.PurposeID,
				code:      domain.ErrorCodeTenantNotProducerOrConsumer,
				message:   fmt.Sprintf("tenant %s is neither producer nor consumer of purpose %s", submitter.ID, purpose.ID),
				rowNumber: record.RowNumber,
			})
			continue
		}

		producer, found, err := e.refs.GetTenant(ctx, eservice.ProducerID)
		if err != nil {
			return nil, nil, err
		}
		if !found {
			return nil, nil, fmt.Errorf("producer tenant %s not in reference store", eservice.ProducerID)
		}

		consumer := submitter
		if submitter.ID != purpose.ConsumerID {
			consumer, found, err = e.refs.GetTenant(ctx, purpose.ConsumerID)
			if err != nil {
				return nil, nil, err
			}
			if !found {
				return nil, nil, fmt.Errorf("consumer tenant %s not in reference store", purpose.ConsumerID)
			}
		}

		enriched = append(enriched, domain.EnrichedRecord{
			Date:               record.Date,
			PurposeID:          record.PurposeID,
			PurposeName:        purpose.Title,
			Status:             record.Status,
			RequestsCount:      record.RequestsCount,
			ConsumerOrigin:     consumer.Origin,
			ConsumerExternalID: consumer.ExternalID,
			ConsumerName:       consumer.Name,
			ProducerOrigin:     producer.Origin,
			ProducerExternalID: producer.ExternalID,
			ProducerName:       producer.Name,
			RowNumber:          record.RowNumber,
		})
	}

	return enriched, findings, nil
}
