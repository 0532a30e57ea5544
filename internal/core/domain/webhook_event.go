package domain

import (
	"encoding/json"
	"time"
)

// WebhookEventType classifies an inbound bank notification.
type WebhookEventType string

const (
	EventCreated WebhookEventType = "created"
	EventSettled WebhookEventType = "settled"
	EventDeleted WebhookEventType = "deleted"
	EventPing    WebhookEventType = "ping"
)

// IsValid reports whether the event type is one this system understands.
func (t WebhookEventType) IsValid() bool {
	switch t {
	case EventCreated, EventSettled, EventDeleted, EventPing:
		return true
	}
	return false
}

// WebhookEvent is the audit record of one inbound notification. The payload
// is immutable after creation; only the processed flag, processed timestamp
// and last error are mutated after handling. Events are never deleted.
type WebhookEvent struct {
	EventID           string           `json:"eventID"` // Primary key (UUID)
	EventType         WebhookEventType `json:"eventType"`
	BankEventID       *string          `json:"bankEventID"`       // Delivery idempotency key, unique when present
	BankTransactionID *string          `json:"bankTransactionID"` // Nullable for ping
	TransactionID     *string          `json:"transactionID"`     // Set once the transaction row is known
	Payload           json.RawMessage  `json:"payload"`
	Processed         bool             `json:"processed"`
	ReceivedAt        time.Time        `json:"receivedAt"`
	ProcessedAt       *time.Time       `json:"processedAt"`
	LastError         *string          `json:"lastError"`
	RetryCount        int              `json:"retryCount"` // Failed replay attempts so far
}
