package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/TallySync/tally_sync_app/internal/apperrors"
	"github.com/TallySync/tally_sync_app/internal/core/domain"
	"github.com/TallySync/tally_sync_app/internal/core/ports"
	portsrepo "github.com/TallySync/tally_sync_app/internal/core/ports/repositories"
	portssvc "github.com/TallySync/tally_sync_app/internal/core/ports/services"
	"github.com/TallySync/tally_sync_app/internal/utils/retry"
	"github.com/google/uuid"
)

// SyncConfig tunes the outbound queue worker.
type SyncConfig struct {
	MaxAttempts   int
	LeaseDuration time.Duration
	Backoff       retry.Policy
}

// syncService implements the SyncSvcFacade interface
type syncService struct {
	BaseService
	queueRepo  portsrepo.SyncQueueRepositoryFacade
	txnRepo    portsrepo.TransactionRepositoryFacade
	apiLogRepo portsrepo.ApiLogReader
	bankClient ports.BankAPIClient
	cfg        SyncConfig
}

// NewSyncService creates a new sync queue service with the provided dependencies
func NewSyncService(
	queueRepo portsrepo.SyncQueueRepositoryFacade,
	txnRepo portsrepo.TransactionRepositoryFacade,
	apiLogRepo portsrepo.ApiLogReader,
	bankClient ports.BankAPIClient,
	cfg SyncConfig,
) portssvc.SyncSvcFacade {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.LeaseDuration <= 0 {
		cfg.LeaseDuration = time.Minute
	}
	return &syncService{
		queueRepo:  queueRepo,
		txnRepo:    txnRepo,
		apiLogRepo: apiLogRepo,
		bankClient: bankClient,
		cfg:        cfg,
	}
}

var _ portssvc.SyncSvcFacade = (*syncService)(nil)

// EnqueueFieldSync records outbound work carrying the transaction's current
// category/tags values. The store coalesces into an unclaimed pending item
// for the same (transaction, field) key, so a burst of edits yields one push
// with the latest value.
func (s *syncService) EnqueueFieldSync(ctx context.Context, txn *domain.Transaction, field domain.SyncField) (*domain.SyncQueueItem, error) {
	if txn.ExternalID == nil || *txn.ExternalID == "" {
		return nil, fmt.Errorf("transaction %s has no bank external id to push to: %w", txn.TransactionID, apperrors.ErrValidation)
	}

	now := time.Now().UTC()
	item := domain.SyncQueueItem{
		ItemID:        uuid.NewString(),
		TransactionID: txn.TransactionID,
		Field:         field,
		Status:        domain.SyncItemPending,
		NextAttemptAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if field == domain.FieldCategory || field == domain.FieldBoth {
		item.Category = txn.Category
	}
	if field == domain.FieldTags || field == domain.FieldBoth {
		item.Tags = slices.Clone(txn.Tags)
	}

	queued, err := s.queueRepo.EnqueueOrCoalesce(ctx, item)
	if err != nil {
		s.LogError(ctx, err, "Failed to enqueue sync item",
			slog.String("transaction_id", txn.TransactionID),
			slog.String("field", string(field)))
		return nil, err
	}

	s.LogDebug(ctx, "Sync item enqueued",
		slog.String("item_id", queued.ItemID),
		slog.String("transaction_id", txn.TransactionID),
		slog.String("field", string(field)),
		slog.Bool("coalesced", queued.ItemID != item.ItemID))
	return queued, nil
}

// ProcessNext claims one due queue item and pushes it. The returned item
// reflects the post-attempt state; push failures are recorded on the item and
// never surfaced as errors. ErrNotFound means the queue had nothing
// claimable, which pollers treat as an idle tick.
func (s *syncService) ProcessNext(ctx context.Context) (*domain.SyncQueueItem, error) {
	now := time.Now().UTC()
	item, err := s.queueRepo.ClaimNextPending(ctx, now, s.cfg.LeaseDuration)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		s.LogError(ctx, err, "Failed to claim sync item")
		return nil, err
	}

	txn, err := s.txnRepo.FindTransactionByID(ctx, item.TransactionID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return s.failItem(ctx, item, fmt.Errorf("transaction vanished: %w", apperrors.ErrPermanent))
		}
		// Infrastructure failure, not a push failure. Leave the lease to
		// expire so the item is retried without burning an attempt budget
		// decision here.
		s.LogError(ctx, err, "Failed to load transaction for sync item",
			slog.String("item_id", item.ItemID))
		return nil, err
	}

	if txn.Tombstoned || txn.ExternalID == nil {
		// Nothing upstream to push to anymore; the work is moot, not failed.
		if err := s.queueRepo.MarkCompleted(ctx, item.ItemID, time.Now().UTC()); err != nil {
			return nil, err
		}
		item.Status = domain.SyncItemCompleted
		return item, nil
	}

	if txn.SyncStatus == domain.SyncConflict {
		return s.parkConflictedItem(ctx, item)
	}

	pushErr := s.bankClient.PushFieldUpdate(ctx, *txn.ExternalID, item.Field, item.Category, item.Tags)
	if pushErr == nil {
		return s.completeItem(ctx, item, txn)
	}

	if !apperrors.IsRetryable(pushErr) {
		// Permanent failures short-circuit: no retry will change a 4xx.
		return s.failItem(ctx, item, pushErr)
	}
	if item.Attempts >= s.cfg.MaxAttempts {
		return s.failItem(ctx, item, fmt.Errorf("attempt budget exhausted after %d attempts: %w", item.Attempts, pushErr))
	}

	delay := s.cfg.Backoff.Delay(item.Attempts, errors.Is(pushErr, apperrors.ErrRateLimited))
	nextAttempt := time.Now().UTC().Add(delay)
	if err := s.queueRepo.Requeue(ctx, item.ItemID, item.Attempts, pushErr.Error(), nextAttempt); err != nil {
		s.LogError(ctx, err, "Failed to requeue sync item",
			slog.String("item_id", item.ItemID))
		return nil, err
	}

	s.LogWarn(ctx, "Sync push failed, requeued",
		slog.String("item_id", item.ItemID),
		slog.String("transaction_id", item.TransactionID),
		slog.Int("attempts", item.Attempts),
		slog.Duration("delay", delay),
		slog.String("error", pushErr.Error()))

	item.Status = domain.SyncItemPending
	item.NextAttemptAt = nextAttempt
	msg := pushErr.Error()
	item.LastError = &msg
	return item, nil
}

// completeItem marks the item done and records what was pushed as the
// transaction's last-pushed snapshot, preserving the untouched field's
// previous snapshot value.
func (s *syncService) completeItem(ctx context.Context, item *domain.SyncQueueItem, txn *domain.Transaction) (*domain.SyncQueueItem, error) {
	now := time.Now().UTC()
	if err := s.queueRepo.MarkCompleted(ctx, item.ItemID, now); err != nil {
		s.LogError(ctx, err, "Failed to mark sync item completed",
			slog.String("item_id", item.ItemID))
		return nil, err
	}

	pushedCategory := txn.LastPushedCategory
	pushedTags := txn.LastPushedTags
	if item.Field == domain.FieldCategory || item.Field == domain.FieldBoth {
		pushedCategory = item.Category
	}
	if item.Field == domain.FieldTags || item.Field == domain.FieldBoth {
		pushedTags = item.Tags
	}

	// The transaction is only synced once no sibling item still carries
	// undelivered work. The claim rule serializes items per transaction, so
	// this check after MarkCompleted cannot race a sibling's completion.
	outstanding, err := s.queueRepo.HasOutstandingItems(ctx, item.TransactionID)
	if err != nil {
		s.LogError(ctx, err, "Failed to check outstanding sync items",
			slog.String("transaction_id", item.TransactionID))
		return nil, err
	}
	if err := s.txnRepo.RecordPushedValues(ctx, item.TransactionID, pushedCategory, pushedTags, !outstanding, systemUserID); err != nil {
		s.LogError(ctx, err, "Failed to record pushed values",
			slog.String("transaction_id", item.TransactionID))
		return nil, err
	}

	s.LogInfo(ctx, "Sync item completed",
		slog.String("item_id", item.ItemID),
		slog.String("transaction_id", item.TransactionID),
		slog.String("field", string(item.Field)),
		slog.Int("attempts", item.Attempts))

	item.Status = domain.SyncItemCompleted
	return item, nil
}

// parkConflictedItem sidelines a claimed item whose transaction is flagged as
// conflicted. The queued values may be built on state a third party has since
// changed, so nothing is pushed and the transaction keeps its conflict status.
// The item lands in failed, where the manual retry path is the only way it
// runs again.
func (s *syncService) parkConflictedItem(ctx context.Context, item *domain.SyncQueueItem) (*domain.SyncQueueItem, error) {
	const reason = "transaction is in conflict, push suppressed"
	if err := s.queueRepo.MarkFailed(ctx, item.ItemID, reason, time.Now().UTC()); err != nil {
		s.LogError(ctx, err, "Failed to park conflicted sync item",
			slog.String("item_id", item.ItemID))
		return nil, err
	}

	s.LogWarn(ctx, "Sync push suppressed for conflicted transaction",
		slog.String("item_id", item.ItemID),
		slog.String("transaction_id", item.TransactionID),
		slog.String("field", string(item.Field)))

	item.Status = domain.SyncItemFailed
	msg := reason
	item.LastError = &msg
	return item, nil
}

func (s *syncService) failItem(ctx context.Context, item *domain.SyncQueueItem, cause error) (*domain.SyncQueueItem, error) {
	now := time.Now().UTC()
	if err := s.queueRepo.MarkFailed(ctx, item.ItemID, cause.Error(), now); err != nil {
		s.LogError(ctx, err, "Failed to mark sync item failed",
			slog.String("item_id", item.ItemID))
		return nil, err
	}
	if err := s.txnRepo.UpdateSyncStatus(ctx, item.TransactionID, domain.SyncFailed, systemUserID); err != nil {
		s.LogError(ctx, err, "Failed to mark transaction sync failed",
			slog.String("transaction_id", item.TransactionID))
	}

	s.LogWarn(ctx, "Sync item failed terminally",
		slog.String("item_id", item.ItemID),
		slog.String("transaction_id", item.TransactionID),
		slog.Int("attempts", item.Attempts),
		slog.String("error", cause.Error()))

	item.Status = domain.SyncItemFailed
	msg := cause.Error()
	item.LastError = &msg
	return item, nil
}

// ReclaimExpiredLeases returns the claims of crashed workers to pending.
func (s *syncService) ReclaimExpiredLeases(ctx context.Context) (int, error) {
	reclaimed, err := s.queueRepo.ReclaimExpired(ctx, time.Now().UTC())
	if err != nil {
		s.LogError(ctx, err, "Failed to reclaim expired sync leases")
		return 0, err
	}
	if reclaimed > 0 {
		s.LogWarn(ctx, "Reclaimed expired sync leases", slog.Int("count", reclaimed))
	}
	return reclaimed, nil
}

// RetryFailedItem re-enqueues a terminal failed item with a fresh attempt
// budget and flips the transaction back to pending.
func (s *syncService) RetryFailedItem(ctx context.Context, itemID string) error {
	item, err := s.queueRepo.FindItemByID(ctx, itemID)
	if err != nil {
		return err
	}
	if item.Status != domain.SyncItemFailed {
		return fmt.Errorf("only failed items can be retried, item is %s: %w", item.Status, apperrors.ErrValidation)
	}

	now := time.Now().UTC()
	if err := s.queueRepo.RequeueFailed(ctx, itemID, now); err != nil {
		s.LogError(ctx, err, "Failed to requeue failed sync item",
			slog.String("item_id", itemID))
		return err
	}
	if err := s.txnRepo.UpdateSyncStatus(ctx, item.TransactionID, domain.SyncPending, systemUserID); err != nil {
		s.LogError(ctx, err, "Failed to reset transaction sync status",
			slog.String("transaction_id", item.TransactionID))
	}

	s.LogInfo(ctx, "Failed sync item requeued",
		slog.String("item_id", itemID),
		slog.String("transaction_id", item.TransactionID))
	return nil
}

// ListItems retrieves queue items for the operator surface.
func (s *syncService) ListItems(ctx context.Context, filter portsrepo.ListSyncItemsFilter) ([]domain.SyncQueueItem, error) {
	items, err := s.queueRepo.FindItems(ctx, filter)
	if err != nil {
		s.LogError(ctx, err, "Failed to list sync items")
		return nil, err
	}
	if items == nil {
		return []domain.SyncQueueItem{}, nil
	}
	return items, nil
}

// ListRecentApiLogs retrieves the latest outbound bank call records.
func (s *syncService) ListRecentApiLogs(ctx context.Context, limit int) ([]domain.ApiLog, error) {
	logs, err := s.apiLogRepo.FindRecentLogs(ctx, limit)
	if err != nil {
		s.LogError(ctx, err, "Failed to list api logs")
		return nil, err
	}
	if logs == nil {
		return []domain.ApiLog{}, nil
	}
	return logs, nil
}
