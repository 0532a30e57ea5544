package services

import (
	"context"

	"github.com/TallySync/tally_sync_app/internal/core/domain"
	portsrepo "github.com/TallySync/tally_sync_app/internal/core/ports/repositories"
)

// SyncSvcFacade operates the outbound sync queue.
type SyncSvcFacade interface {
	// EnqueueFieldSync records outbound work for a transaction's
	// category/tags edit. A pending unclaimed item for the same
	// (transaction, field) key is coalesced rather than duplicated.
	EnqueueFieldSync(ctx context.Context, txn *domain.Transaction, field domain.SyncField) (*domain.SyncQueueItem, error)

	// ProcessNext claims and pushes one due queue item. Returns
	// apperrors.ErrNotFound when the queue has nothing claimable, which
	// callers treat as an idle poll.
	ProcessNext(ctx context.Context) (*domain.SyncQueueItem, error)

	// ReclaimExpiredLeases returns crashed workers' claims to pending.
	ReclaimExpiredLeases(ctx context.Context) (int, error)

	// RetryFailedItem re-enqueues a terminal failed item with a fresh attempt
	// budget. Operator-initiated.
	RetryFailedItem(ctx context.Context, itemID string) error

	// ListItems retrieves queue items for the operator surface.
	ListItems(ctx context.Context, filter portsrepo.ListSyncItemsFilter) ([]domain.SyncQueueItem, error)

	// ListRecentApiLogs retrieves the latest outbound bank call records for
	// diagnostics.
	ListRecentApiLogs(ctx context.Context, limit int) ([]domain.ApiLog, error)
}

// ReconcileSvcFacade is the conflict reconciler contract.
type ReconcileSvcFacade interface {
	// ReconcileOnce sweeps synced/pending transactions, compares remote
	// category/tags against the last pushed and current local values, and
	// marks third-party divergence as conflict. Reports how many transactions
	// were flagged.
	ReconcileOnce(ctx context.Context) (int, error)
}
