package models

import "time"

// WebhookEvent is the persistence model for one inbound notification record.
type WebhookEvent struct {
	EventID           string     `json:"eventID"`
	EventType         string     `json:"eventType"`
	BankEventID       *string    `json:"bankEventID"`
	BankTransactionID *string    `json:"bankTransactionID"`
	TransactionID     *string    `json:"transactionID"`
	Payload           []byte     `json:"payload"`
	Processed         bool       `json:"processed"`
	ReceivedAt        time.Time  `json:"receivedAt"`
	ProcessedAt       *time.Time `json:"processedAt"`
	LastError         *string    `json:"lastError"`
	RetryCount        int        `json:"retryCount"`
}
