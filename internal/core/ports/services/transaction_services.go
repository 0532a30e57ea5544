package services

import (
	"context"

	"github.com/TallySync/tally_sync_app/internal/core/domain"
	portsrepo "github.com/TallySync/tally_sync_app/internal/core/ports/repositories"
	"github.com/TallySync/tally_sync_app/internal/dto"
)

// TransactionReaderSvc defines the read-only sync status query surface.
type TransactionReaderSvc interface {
	// GetTransactionByID retrieves a transaction by internal id.
	GetTransactionByID(ctx context.Context, transactionID string) (*domain.Transaction, error)

	// ListTransactions retrieves transactions matching the filter, newest
	// first, for the operator surface.
	ListTransactions(ctx context.Context, filter portsrepo.ListTransactionsFilter) ([]domain.Transaction, error)
}

// TransactionWriterSvc defines locally-originated edits.
type TransactionWriterSvc interface {
	// UpdateTransactionFields applies a manual category/tags edit. Edits to a
	// bank-sourced transaction enqueue outbound sync work; manual ones have
	// nothing to push.
	UpdateTransactionFields(ctx context.Context, transactionID string, req dto.UpdateTransactionRequest, updaterUserID string) (*domain.Transaction, error)
}

// TransactionSvcFacade combines the transaction service interfaces.
type TransactionSvcFacade interface {
	TransactionReaderSvc
	TransactionWriterSvc
}

// SettingsSvcFacade exposes the opaque per-user settings store.
type SettingsSvcFacade interface {
	GetSetting(ctx context.Context, userID string, key string) (*domain.Setting, error)
	PutSetting(ctx context.Context, userID string, key string, value string, encrypted bool) (*domain.Setting, error)
}
