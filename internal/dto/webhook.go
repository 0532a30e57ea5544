package dto

import (
	"encoding/json"
	"time"

	"github.com/TallySync/tally_sync_app/internal/core/domain"
	"github.com/shopspring/decimal"
)

// WebhookDelivery is the inbound bank notification body. Only the event type
// is structurally required; the remaining fields depend on the event type and
// are validated during processing, not at the HTTP boundary, per the
// acknowledge-everything-parseable contract. Raw preserves the body verbatim
// for the audit trail.
type WebhookDelivery struct {
	EventType         string           `json:"type" binding:"required"`
	BankEventID       *string          `json:"eventId"`
	BankTransactionID *string          `json:"upTransactionId"`
	AccountID         string           `json:"accountId"`
	Amount            *decimal.Decimal `json:"amount"`
	Description       string           `json:"description"`
	Status            string           `json:"status"` // HELD or SETTLED
	OccurredAt        *time.Time       `json:"occurredAt"`

	Raw json.RawMessage `json:"-"`
}

// WebhookIngestResult reports what ingestion did with a delivery.
type WebhookIngestResult struct {
	EventID       string  `json:"eventID"`
	Duplicate     bool    `json:"duplicate"`
	TransactionID *string `json:"transactionID,omitempty"`
	Processed     bool    `json:"processed"`
}

// WebhookEventResponse exposes a stored event on the operator surface.
type WebhookEventResponse struct {
	EventID           string     `json:"eventID"`
	EventType         string     `json:"eventType"`
	BankEventID       *string    `json:"bankEventID"`
	BankTransactionID *string    `json:"bankTransactionID"`
	TransactionID     *string    `json:"transactionID"`
	Processed         bool       `json:"processed"`
	ReceivedAt        time.Time  `json:"receivedAt"`
	ProcessedAt       *time.Time `json:"processedAt"`
	LastError         *string    `json:"lastError"`
}

// ToWebhookEventResponse converts a domain.WebhookEvent to its DTO.
func ToWebhookEventResponse(e *domain.WebhookEvent) WebhookEventResponse {
	return WebhookEventResponse{
		EventID:           e.EventID,
		EventType:         string(e.EventType),
		BankEventID:       e.BankEventID,
		BankTransactionID: e.BankTransactionID,
		TransactionID:     e.TransactionID,
		Processed:         e.Processed,
		ReceivedAt:        e.ReceivedAt,
		ProcessedAt:       e.ProcessedAt,
		LastError:         e.LastError,
	}
}
