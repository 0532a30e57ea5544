package services

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/TallySync/tally_sync_app/internal/apperrors"
	"github.com/TallySync/tally_sync_app/internal/core/domain"
	"github.com/TallySync/tally_sync_app/internal/core/ports"
	portsrepo "github.com/TallySync/tally_sync_app/internal/core/ports/repositories"
	portssvc "github.com/TallySync/tally_sync_app/internal/core/ports/services"
)

const defaultReconcileBatch = 100

// reconcileService implements the ReconcileSvcFacade interface
type reconcileService struct {
	BaseService
	txnRepo    portsrepo.TransactionRepositoryFacade
	bankClient ports.BankAPIClient
	batchSize  int
}

// NewReconcileService creates a new reconciler with the provided dependencies
func NewReconcileService(
	txnRepo portsrepo.TransactionRepositoryFacade,
	bankClient ports.BankAPIClient,
	batchSize int,
) portssvc.ReconcileSvcFacade {
	if batchSize <= 0 {
		batchSize = defaultReconcileBatch
	}
	return &reconcileService{
		txnRepo:    txnRepo,
		bankClient: bankClient,
		batchSize:  batchSize,
	}
}

var _ portssvc.ReconcileSvcFacade = (*reconcileService)(nil)

// ReconcileOnce sweeps bank-sourced transactions and compares the remote
// category/tags against both the current local value and the last-pushed
// snapshot. Remote state that differs from both was changed by a third party
// after our last push; the transaction is flagged conflict for a human to
// resolve, never auto-merged. Remote state that merely lags a local edit is
// the pending queue item's job, not a conflict.
func (s *reconcileService) ReconcileOnce(ctx context.Context) (int, error) {
	statuses := []domain.SyncStatus{domain.SyncSynced, domain.SyncPending}
	txns, err := s.txnRepo.FindTransactionsForReconciliation(ctx, statuses, s.batchSize)
	if err != nil {
		s.LogError(ctx, err, "Failed to list transactions for reconciliation")
		return 0, err
	}

	flagged := 0
	for i := range txns {
		txn := &txns[i]
		conflicted, err := s.reconcileTransaction(ctx, txn)
		if err != nil {
			// One bad fetch must not abort the sweep.
			s.LogWarn(ctx, "Reconciliation skipped a transaction",
				slog.String("transaction_id", txn.TransactionID),
				slog.String("error", err.Error()))
			continue
		}
		if conflicted {
			flagged++
		}
	}

	if flagged > 0 {
		s.LogInfo(ctx, "Reconciliation flagged conflicts",
			slog.Int("flagged", flagged),
			slog.Int("swept", len(txns)))
	}
	return flagged, nil
}

func (s *reconcileService) reconcileTransaction(ctx context.Context, txn *domain.Transaction) (bool, error) {
	remote, err := s.bankClient.FetchTransaction(ctx, *txn.ExternalID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			// The bank no longer knows this transaction; tombstone locally.
			return false, s.tombstoneVanished(ctx, txn)
		}
		return false, err
	}

	categoryConflict := !equalStringPtrs(remote.Category, txn.Category) &&
		!equalStringPtrs(remote.Category, txn.LastPushedCategory)
	tagsConflict := !equalTagSets(remote.Tags, txn.Tags) &&
		!equalTagSets(remote.Tags, txn.LastPushedTags)

	if !categoryConflict && !tagsConflict {
		return false, nil
	}

	if err := s.txnRepo.UpdateSyncStatus(ctx, txn.TransactionID, domain.SyncConflict, systemUserID); err != nil {
		return false, err
	}
	s.LogWarn(ctx, "Remote state diverged, transaction flagged conflict",
		slog.String("transaction_id", txn.TransactionID),
		slog.String("external_id", *txn.ExternalID),
		slog.Bool("category_conflict", categoryConflict),
		slog.Bool("tags_conflict", tagsConflict))
	return true, nil
}

func (s *reconcileService) tombstoneVanished(ctx context.Context, txn *domain.Transaction) error {
	now := time.Now().UTC()
	txn.Tombstoned = true
	txn.LastUpdatedAt = now
	txn.LastUpdatedBy = systemUserID
	if err := s.txnRepo.UpdateTransaction(ctx, *txn); err != nil {
		return err
	}
	s.LogInfo(ctx, "Transaction vanished upstream, tombstoned",
		slog.String("transaction_id", txn.TransactionID))
	return nil
}

func equalStringPtrs(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// equalTagSets compares two tag lists ignoring order.
func equalTagSets(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	sortedA := slices.Clone(a)
	sortedB := slices.Clone(b)
	slices.Sort(sortedA)
	slices.Sort(sortedB)
	return slices.Equal(sortedA, sortedB)
}
