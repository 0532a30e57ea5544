package dto

import (
	"time"

	"github.com/TallySync/tally_sync_app/internal/core/domain"
	"github.com/shopspring/decimal"
)

// UpdateTransactionRequest defines the locally-editable transaction fields.
// Use pointers to distinguish between clearing and not-provided; Tags replaces
// the whole tag list when present.
type UpdateTransactionRequest struct {
	Category *string   `json:"category"`
	Tags     *[]string `json:"tags"`
}

// TransactionResponse defines the data returned for a transaction.
type TransactionResponse struct {
	TransactionID string          `json:"transactionID"`
	ExternalID    *string         `json:"externalID"`
	AccountID     string          `json:"accountID"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
	OccurredAt    time.Time       `json:"occurredAt"`
	Category      *string         `json:"category"`
	Tags          []string        `json:"tags"`
	Settlement    string          `json:"settlement"`
	SyncStatus    string          `json:"syncStatus"`
	Source        string          `json:"source"`
	Processed     bool            `json:"processed"`
	Tombstoned    bool            `json:"tombstoned"`
	CreatedAt     time.Time       `json:"createdAt"`
	LastUpdatedAt time.Time       `json:"lastUpdatedAt"`
}

// ToTransactionResponse converts a domain.Transaction to its DTO.
func ToTransactionResponse(t *domain.Transaction) TransactionResponse {
	return TransactionResponse{
		TransactionID: t.TransactionID,
		ExternalID:    t.ExternalID,
		AccountID:     t.AccountID,
		Amount:        t.Amount,
		Description:   t.Description,
		OccurredAt:    t.OccurredAt,
		Category:      t.Category,
		Tags:          t.Tags,
		Settlement:    string(t.Settlement),
		SyncStatus:    string(t.SyncStatus),
		Source:        string(t.Source),
		Processed:     t.Processed,
		Tombstoned:    t.Tombstoned,
		CreatedAt:     t.CreatedAt,
		LastUpdatedAt: t.LastUpdatedAt,
	}
}

// ListTransactionsParams defines query parameters for listing transactions.
type ListTransactionsParams struct {
	SyncStatus string `form:"syncStatus" binding:"omitempty,oneof=pending synced failed conflict"`
	AccountID  string `form:"accountID"`
	Settlement string `form:"settlement" binding:"omitempty,oneof=HELD SETTLED"`
	Limit      int    `form:"limit,default=20" binding:"omitempty,min=1,max=200"`
	Cursor     string `form:"cursor"`
}

// ListTransactionsResponse wraps the listing plus the cursor for the next page.
type ListTransactionsResponse struct {
	Transactions []TransactionResponse `json:"transactions"`
	NextCursor   *string               `json:"nextCursor,omitempty"`
}
