package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/TallySync/tally_sync_app/internal/apperrors"
	"github.com/TallySync/tally_sync_app/internal/core/domain"
	portsrepo "github.com/TallySync/tally_sync_app/internal/core/ports/repositories"
	portssvc "github.com/TallySync/tally_sync_app/internal/core/ports/services"
	"github.com/TallySync/tally_sync_app/internal/dto"
	"github.com/TallySync/tally_sync_app/internal/utils/keymutex"
)

// transactionService implements the TransactionSvcFacade interface
type transactionService struct {
	BaseService
	txnRepo  portsrepo.TransactionRepositoryFacade
	syncSvc  portssvc.SyncSvcFacade
	txnLocks *keymutex.KeyMutex
}

// NewTransactionService creates a new transaction service with the provided dependencies
func NewTransactionService(
	txnRepo portsrepo.TransactionRepositoryFacade,
	syncSvc portssvc.SyncSvcFacade,
	txnLocks *keymutex.KeyMutex,
) portssvc.TransactionSvcFacade {
	return &transactionService{
		txnRepo:  txnRepo,
		syncSvc:  syncSvc,
		txnLocks: txnLocks,
	}
}

var _ portssvc.TransactionSvcFacade = (*transactionService)(nil)

// GetTransactionByID retrieves a transaction by internal id.
func (s *transactionService) GetTransactionByID(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	return s.txnRepo.FindTransactionByID(ctx, transactionID)
}

// ListTransactions retrieves transactions matching the filter, newest first.
func (s *transactionService) ListTransactions(ctx context.Context, filter portsrepo.ListTransactionsFilter) ([]domain.Transaction, error) {
	txns, err := s.txnRepo.FindTransactions(ctx, filter)
	if err != nil {
		s.LogError(ctx, err, "Failed to list transactions")
		return nil, err
	}
	if txns == nil {
		return []domain.Transaction{}, nil
	}
	return txns, nil
}

// UpdateTransactionFields applies a user's category/tags edit. Edits to a
// bank-sourced transaction flip it to pending and enqueue an outbound push;
// manually-entered transactions have no upstream counterpart, so nothing is
// enqueued. A no-op edit persists nothing.
func (s *transactionService) UpdateTransactionFields(ctx context.Context, transactionID string, req dto.UpdateTransactionRequest, updaterUserID string) (*domain.Transaction, error) {
	if req.Category == nil && req.Tags == nil {
		return nil, fmt.Errorf("no editable fields in request: %w", apperrors.ErrValidation)
	}

	peek, err := s.txnRepo.FindTransactionByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	key := transactionLockKey(peek)
	s.txnLocks.Lock(key)
	defer s.txnLocks.Unlock(key)

	txn, err := s.txnRepo.FindTransactionByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if txn.Tombstoned {
		return nil, fmt.Errorf("transaction is tombstoned: %w", apperrors.ErrValidation)
	}

	categoryChanged := false
	tagsChanged := false
	if req.Category != nil && !equalStringPtrs(txn.Category, req.Category) {
		txn.Category = req.Category
		categoryChanged = true
	}
	if req.Tags != nil && !equalTagSets(txn.Tags, *req.Tags) {
		txn.Tags = slices.Clone(*req.Tags)
		tagsChanged = true
	}
	if !categoryChanged && !tagsChanged {
		return txn, nil
	}

	pushable := txn.Source == domain.SourceBank && txn.ExternalID != nil
	if pushable {
		txn.SyncStatus = domain.SyncPending
	}
	txn.LastUpdatedAt = time.Now().UTC()
	txn.LastUpdatedBy = updaterUserID

	if err := s.txnRepo.UpdateTransaction(ctx, *txn); err != nil {
		s.LogError(ctx, err, "Failed to update transaction fields",
			slog.String("transaction_id", transactionID))
		return nil, err
	}

	if pushable {
		field := syncFieldFor(categoryChanged, tagsChanged)
		if _, err := s.syncSvc.EnqueueFieldSync(ctx, txn, field); err != nil {
			s.LogError(ctx, err, "Failed to enqueue sync after manual edit",
				slog.String("transaction_id", transactionID),
				slog.String("field", string(field)))
		}
	}

	s.LogInfo(ctx, "Transaction fields updated",
		slog.String("transaction_id", transactionID),
		slog.Bool("category_changed", categoryChanged),
		slog.Bool("tags_changed", tagsChanged),
		slog.Bool("enqueued", pushable))
	return txn, nil
}
