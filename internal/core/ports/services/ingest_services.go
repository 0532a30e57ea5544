package services

import (
	"context"

	"github.com/TallySync/tally_sync_app/internal/dto"
)

// IngestSvcFacade is the webhook ingestion contract. Ingest never returns an
// error for malformed-but-parseable payloads (those are recorded on the event
// and acknowledged so the bank does not storm redeliveries); it returns
// apperrors.ErrValidation only when the payload fails structural validation,
// in which case nothing was persisted.
type IngestSvcFacade interface {
	// Ingest accepts one raw inbound bank notification.
	Ingest(ctx context.Context, delivery dto.WebhookDelivery) (*dto.WebhookIngestResult, error)

	// RetryUnprocessed re-runs handling for events whose processing previously
	// failed. Reports how many events were retried.
	RetryUnprocessed(ctx context.Context, limit int) (int, error)
}
