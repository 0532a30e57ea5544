package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// SettlementStatus describes whether the bank considers the money movement final.
type SettlementStatus string

const (
	SettlementHeld    SettlementStatus = "HELD"
	SettlementSettled SettlementStatus = "SETTLED"
)

// SyncStatus describes whether locally-applied edits to a transaction have
// been pushed upstream successfully.
type SyncStatus string

const (
	SyncPending  SyncStatus = "pending"
	SyncSynced   SyncStatus = "synced"
	SyncFailed   SyncStatus = "failed"
	SyncConflict SyncStatus = "conflict"
)

// TransactionSource records where a transaction originated.
type TransactionSource string

const (
	SourceBank     TransactionSource = "bank"
	SourceManual   TransactionSource = "manual"
	SourceTransfer TransactionSource = "transfer"
	SourceImport   TransactionSource = "import"
)

// Transaction represents one bank-side or manually-entered money movement.
//
// ExternalID is the bank-assigned transaction id and, when present, the
// idempotency key for webhook upserts: re-delivery of the same bank event must
// resolve to the same row, never a duplicate. Amount and Settlement are owned
// by the bank and never touched by the rule engine, which may only change
// Category and Tags.
type Transaction struct {
	TransactionID      string            `json:"transactionID"` // Primary key (UUID)
	ExternalID         *string           `json:"externalID"`    // Bank transaction id, unique when present
	AccountID          string            `json:"accountID"`
	Amount             decimal.Decimal   `json:"amount"` // Signed, precise decimal
	Description        string            `json:"description"`
	OccurredAt         time.Time         `json:"occurredAt"`
	Category           *string           `json:"category"`
	Tags               []string          `json:"tags"` // Ordered set
	Settlement         SettlementStatus  `json:"settlement"`
	RawPayload         json.RawMessage   `json:"rawPayload,omitempty"` // Verbatim source payload for audit/replay
	SyncStatus         SyncStatus        `json:"syncStatus"`
	Source             TransactionSource `json:"source"`
	Processed          bool              `json:"processed"` // Rule engine has evaluated at least once
	Tombstoned         bool              `json:"tombstoned"`
	LastPushedCategory *string           `json:"lastPushedCategory,omitempty"`
	LastPushedTags     []string          `json:"lastPushedTags,omitempty"`
	AuditFields
}

// AmountMinor returns the amount in minor units (e.g. cents). Rule amount
// bounds are compared in minor units to avoid floating point rounding.
func (t *Transaction) AmountMinor() int64 {
	return t.Amount.Shift(2).IntPart()
}

// HasTag reports whether the tag is already present.
func (t *Transaction) HasTag(tag string) bool {
	for _, existing := range t.Tags {
		if existing == tag {
			return true
		}
	}
	return false
}

// AddTag appends the tag if absent, preserving order. Returns true if added.
func (t *Transaction) AddTag(tag string) bool {
	if t.HasTag(tag) {
		return false
	}
	t.Tags = append(t.Tags, tag)
	return true
}
