package repositories

import (
	"context"
	"time"

	"github.com/TallySync/tally_sync_app/internal/core/domain"
)

// WebhookEventReader defines read operations for webhook event audit records.
type WebhookEventReader interface {
	// FindEventByID retrieves an event by its internal id.
	FindEventByID(ctx context.Context, eventID string) (*domain.WebhookEvent, error)

	// FindEventByBankEventID retrieves an event by the bank's delivery id.
	FindEventByBankEventID(ctx context.Context, bankEventID string) (*domain.WebhookEvent, error)

	// FindUnprocessedEvents retrieves events whose handling failed and is due
	// for retry, oldest first. Events with maxRetries or more recorded
	// failures are excluded.
	FindUnprocessedEvents(ctx context.Context, limit int, maxRetries int) ([]domain.WebhookEvent, error)
}

// WebhookEventWriter defines write operations for webhook event audit records.
// The payload is immutable; only processing outcome fields are ever updated,
// and events are never deleted.
type WebhookEventWriter interface {
	// SaveEvent persists a new event. When the bank event id is already
	// recorded it returns the existing row and apperrors.ErrDuplicate so the
	// caller can acknowledge the redelivery without reprocessing.
	SaveEvent(ctx context.Context, event domain.WebhookEvent) (*domain.WebhookEvent, error)

	// MarkEventProcessed sets processed=true, the processing timestamp and the
	// transaction the event resolved to, clearing any previous error.
	MarkEventProcessed(ctx context.Context, eventID string, transactionID *string, processedAt time.Time) error

	// RecordEventError stores the handling error and bumps the event's retry
	// count, leaving processed=false so a sweep can retry the event.
	RecordEventError(ctx context.Context, eventID string, handlingErr string) error
}

// WebhookEventRepositoryFacade combines all webhook event repository interfaces.
type WebhookEventRepositoryFacade interface {
	WebhookEventReader
	WebhookEventWriter
}
