package pgsql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/TallySync/tally_sync_app/internal/apperrors"
	"github.com/TallySync/tally_sync_app/internal/core/domain"
	portsrepo "github.com/TallySync/tally_sync_app/internal/core/ports/repositories"
	"github.com/TallySync/tally_sync_app/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgxWebhookEventRepository struct {
	db *pgxpool.Pool
}

func NewWebhookEventRepository(db *pgxpool.Pool) portsrepo.WebhookEventRepositoryFacade {
	return &PgxWebhookEventRepository{db: db}
}

var _ portsrepo.WebhookEventRepositoryFacade = (*PgxWebhookEventRepository)(nil)

const webhookEventColumns = `event_id, event_type, bank_event_id, bank_transaction_id, transaction_id,
	payload, processed, received_at, processed_at, last_error, retry_count`

func toDomainWebhookEvent(m models.WebhookEvent) domain.WebhookEvent {
	return domain.WebhookEvent{
		EventID:           m.EventID,
		EventType:         domain.WebhookEventType(m.EventType),
		BankEventID:       m.BankEventID,
		BankTransactionID: m.BankTransactionID,
		TransactionID:     m.TransactionID,
		Payload:           m.Payload,
		Processed:         m.Processed,
		ReceivedAt:        m.ReceivedAt,
		ProcessedAt:       m.ProcessedAt,
		LastError:         m.LastError,
		RetryCount:        m.RetryCount,
	}
}

func scanWebhookEvent(row pgx.Row) (*domain.WebhookEvent, error) {
	var m models.WebhookEvent
	err := row.Scan(
		&m.EventID,
		&m.EventType,
		&m.BankEventID,
		&m.BankTransactionID,
		&m.TransactionID,
		&m.Payload,
		&m.Processed,
		&m.ReceivedAt,
		&m.ProcessedAt,
		&m.LastError,
		&m.RetryCount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan webhook event row: %w", err)
	}
	d := toDomainWebhookEvent(m)
	return &d, nil
}

func (r *PgxWebhookEventRepository) SaveEvent(ctx context.Context, event domain.WebhookEvent) (*domain.WebhookEvent, error) {
	query := `
        INSERT INTO webhook_events (` + webhookEventColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);
    `
	_, err := r.db.Exec(ctx, query,
		event.EventID, string(event.EventType), event.BankEventID, event.BankTransactionID, event.TransactionID,
		[]byte(event.Payload), event.Processed, event.ReceivedAt, event.ProcessedAt, event.LastError, event.RetryCount,
	)
	if err != nil {
		if isUniqueViolation(err) && event.BankEventID != nil {
			// Redelivery of a known bank event: hand back the original audit
			// row so the caller can acknowledge without reprocessing.
			existing, findErr := r.FindEventByBankEventID(ctx, *event.BankEventID)
			if findErr != nil {
				return nil, fmt.Errorf("failed to load existing webhook event after duplicate insert: %w", findErr)
			}
			return existing, apperrors.ErrDuplicate
		}
		return nil, fmt.Errorf("failed to save webhook event: %w", err)
	}
	return &event, nil
}

func (r *PgxWebhookEventRepository) FindEventByID(ctx context.Context, eventID string) (*domain.WebhookEvent, error) {
	query := `SELECT ` + webhookEventColumns + ` FROM webhook_events WHERE event_id = $1;`
	event, err := scanWebhookEvent(r.db.QueryRow(ctx, query, eventID))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find webhook event by ID %s: %w", eventID, err)
	}
	return event, nil
}

func (r *PgxWebhookEventRepository) FindEventByBankEventID(ctx context.Context, bankEventID string) (*domain.WebhookEvent, error) {
	query := `SELECT ` + webhookEventColumns + ` FROM webhook_events WHERE bank_event_id = $1;`
	event, err := scanWebhookEvent(r.db.QueryRow(ctx, query, bankEventID))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find webhook event by bank event ID %s: %w", bankEventID, err)
	}
	return event, nil
}

func (r *PgxWebhookEventRepository) FindUnprocessedEvents(ctx context.Context, limit int, maxRetries int) ([]domain.WebhookEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	// Events at the retry ceiling drop out of the sweep window so an
	// unhealable old event cannot starve newer retryable ones.
	query := `
        SELECT ` + webhookEventColumns + `
        FROM webhook_events
        WHERE NOT processed AND last_error IS NOT NULL AND retry_count < $2
        ORDER BY received_at ASC
        LIMIT $1;
    `
	rows, err := r.db.Query(ctx, query, limit, maxRetries)
	if err != nil {
		return nil, fmt.Errorf("failed to query unprocessed webhook events: %w", err)
	}
	defer rows.Close()

	events := []domain.WebhookEvent{}
	for rows.Next() {
		event, err := scanWebhookEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *event)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("error iterating webhook event rows: %w", rows.Err())
	}
	return events, nil
}

func (r *PgxWebhookEventRepository) MarkEventProcessed(ctx context.Context, eventID string, transactionID *string, processedAt time.Time) error {
	query := `
        UPDATE webhook_events
        SET processed = true, processed_at = $1, transaction_id = COALESCE($2, transaction_id), last_error = NULL
        WHERE event_id = $3;
    `
	cmdTag, err := r.db.Exec(ctx, query, processedAt, transactionID, eventID)
	if err != nil {
		return fmt.Errorf("failed to mark webhook event processed: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("webhook event not found: %w", apperrors.ErrNotFound)
	}
	return nil
}

func (r *PgxWebhookEventRepository) RecordEventError(ctx context.Context, eventID string, handlingErr string) error {
	query := `
        UPDATE webhook_events
        SET last_error = $1, retry_count = retry_count + 1
        WHERE event_id = $2;
    `
	cmdTag, err := r.db.Exec(ctx, query, handlingErr, eventID)
	if err != nil {
		return fmt.Errorf("failed to record webhook event error: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("webhook event not found: %w", apperrors.ErrNotFound)
	}
	return nil
}
