package repositories

import (
	"context"
	"time"

	"github.com/TallySync/tally_sync_app/internal/core/domain"
)

// ListSyncItemsFilter narrows sync queue listing. Zero-value fields are not
// applied.
type ListSyncItemsFilter struct {
	Status        *domain.SyncItemStatus
	TransactionID *string
	Limit         int
	Offset        int
}

// SyncQueueReader defines read operations for the outbound sync queue.
type SyncQueueReader interface {
	// FindItemByID retrieves a queue item by id.
	FindItemByID(ctx context.Context, itemID string) (*domain.SyncQueueItem, error)

	// FindItems retrieves queue items matching the filter, newest first.
	FindItems(ctx context.Context, filter ListSyncItemsFilter) ([]domain.SyncQueueItem, error)

	// HasOutstandingItems reports whether the transaction still has pending
	// or processing queue items.
	HasOutstandingItems(ctx context.Context, transactionID string) (bool, error)
}

// SyncQueueWriter defines the durable work-queue operations. The store is the
// single arbiter of the queue invariants: at most one processing item per
// (transaction, field) key, creation-order claims per key, and lease-based
// reclaim of crashed workers.
type SyncQueueWriter interface {
	// EnqueueOrCoalesce inserts a new pending item, unless an unclaimed
	// pending item already exists for the same (transaction, field) key, in
	// which case that item's value payload is replaced instead (the earlier
	// value was never pushed; latest wins). Returns the item that will carry
	// the work.
	EnqueueOrCoalesce(ctx context.Context, item domain.SyncQueueItem) (*domain.SyncQueueItem, error)

	// ClaimNextPending atomically claims the oldest due pending item whose
	// (transaction, field) key has no processing sibling, transitions it to
	// processing, and sets its lease. Returns apperrors.ErrNotFound when
	// nothing is claimable.
	ClaimNextPending(ctx context.Context, now time.Time, lease time.Duration) (*domain.SyncQueueItem, error)

	// MarkCompleted transitions a processing item to completed.
	MarkCompleted(ctx context.Context, itemID string, at time.Time) error

	// MarkFailed transitions an item to failed, recording the final error.
	MarkFailed(ctx context.Context, itemID string, lastError string, at time.Time) error

	// Requeue returns a processing item to pending after a retryable failure,
	// recording the attempt count, error and earliest next attempt time.
	Requeue(ctx context.Context, itemID string, attempts int, lastError string, nextAttemptAt time.Time) error

	// ReclaimExpired returns processing items with lapsed leases to pending so
	// a crashed worker's claim does not wedge the key. Reports how many items
	// were reclaimed.
	ReclaimExpired(ctx context.Context, now time.Time) (int, error)

	// RequeueFailed returns a terminal failed item to pending with a fresh
	// attempt budget. Operator-initiated.
	RequeueFailed(ctx context.Context, itemID string, at time.Time) error
}

// SyncQueueRepositoryFacade combines all sync queue repository interfaces.
type SyncQueueRepositoryFacade interface {
	SyncQueueReader
	SyncQueueWriter
}
