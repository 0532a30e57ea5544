package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is the persistence model for one money movement.
// Tags are stored as a Postgres text[] column; RawPayload as jsonb.
type Transaction struct {
	TransactionID      string          `json:"transactionID"`
	ExternalID         *string         `json:"externalID"`
	AccountID          string          `json:"accountID"`
	Amount             decimal.Decimal `json:"amount"`
	Description        string          `json:"description"`
	OccurredAt         time.Time       `json:"occurredAt"`
	Category           *string         `json:"category"`
	Tags               []string        `json:"tags"`
	Settlement         string          `json:"settlement"`
	RawPayload         []byte          `json:"rawPayload"`
	SyncStatus         string          `json:"syncStatus"`
	Source             string          `json:"source"`
	Processed          bool            `json:"processed"`
	Tombstoned         bool            `json:"tombstoned"`
	LastPushedCategory *string         `json:"lastPushedCategory"`
	LastPushedTags     []string        `json:"lastPushedTags"`
	AuditFields
}
