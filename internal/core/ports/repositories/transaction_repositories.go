package repositories

import (
	"context"
	"time"

	"github.com/TallySync/tally_sync_app/internal/core/domain"
)

// ListTransactionsFilter narrows transaction listing. Zero-value fields are
// not applied. Cursor fields paginate by (created_at, transaction_id).
type ListTransactionsFilter struct {
	SyncStatus     *domain.SyncStatus
	AccountID      *string
	Settlement     *domain.SettlementStatus
	Processed      *bool
	Limit          int
	AfterCreatedAt *time.Time
	AfterID        *string
}

// TransactionReader defines read operations for transaction data.
type TransactionReader interface {
	// FindTransactionByID retrieves a transaction by its internal id.
	FindTransactionByID(ctx context.Context, transactionID string) (*domain.Transaction, error)

	// FindTransactionByExternalID retrieves a transaction by the bank-assigned
	// id. Returns apperrors.ErrNotFound when no row carries that external id.
	FindTransactionByExternalID(ctx context.Context, externalID string) (*domain.Transaction, error)

	// FindTransactions retrieves transactions matching the filter, newest first.
	FindTransactions(ctx context.Context, filter ListTransactionsFilter) ([]domain.Transaction, error)

	// FindTransactionsForReconciliation retrieves bank-sourced transactions in
	// the given sync statuses that carry an external id.
	FindTransactionsForReconciliation(ctx context.Context, statuses []domain.SyncStatus, limit int) ([]domain.Transaction, error)
}

// TransactionWriter defines write operations for transaction data.
type TransactionWriter interface {
	// SaveTransaction persists a new transaction. Returns
	// apperrors.ErrDuplicate when the external id is already taken.
	SaveTransaction(ctx context.Context, txn domain.Transaction) error

	// UpdateTransaction updates an existing transaction in full.
	UpdateTransaction(ctx context.Context, txn domain.Transaction) error

	// UpdateSyncStatus transitions only the sync status of a transaction.
	UpdateSyncStatus(ctx context.Context, transactionID string, status domain.SyncStatus, updatedBy string) error

	// RecordPushedValues stores the last-pushed category/tags snapshot on
	// queue item completion. When markSynced is set the sync status flips to
	// synced in the same mutation; callers leave it unset while sibling queue
	// items for the transaction are still outstanding.
	RecordPushedValues(ctx context.Context, transactionID string, category *string, tags []string, markSynced bool, updatedBy string) error
}

// TransactionRepositoryFacade combines all transaction repository interfaces.
type TransactionRepositoryFacade interface {
	TransactionReader
	TransactionWriter
}
