package domain

import "time"

// SyncField identifies which locally-owned field a queue item pushes upstream.
type SyncField string

const (
	FieldCategory SyncField = "category"
	FieldTags     SyncField = "tags"
	FieldBoth     SyncField = "both"
)

// SyncItemStatus is the queue item state machine:
// pending → processing → completed, or back to pending on a retryable failure
// until the attempt budget is exhausted, or → failed. completed and failed
// are terminal.
type SyncItemStatus string

const (
	SyncItemPending    SyncItemStatus = "pending"
	SyncItemProcessing SyncItemStatus = "processing"
	SyncItemCompleted  SyncItemStatus = "completed"
	SyncItemFailed     SyncItemStatus = "failed"
)

// SyncQueueItem is one durable unit of outbound work: push the recorded
// category/tags value for a transaction to the bank. At most one item per
// (transaction, field) may be processing at a time, and items for the same
// key are processed in creation order.
type SyncQueueItem struct {
	ItemID         string         `json:"itemID"` // Primary key (UUID)
	TransactionID  string         `json:"transactionID"`
	Field          SyncField      `json:"field"`
	Category       *string        `json:"category,omitempty"` // Value payload when Field is category or both
	Tags           []string       `json:"tags,omitempty"`     // Value payload when Field is tags or both
	Attempts       int            `json:"attempts"`
	Status         SyncItemStatus `json:"status"`
	LastAttemptAt  *time.Time     `json:"lastAttemptAt"`
	NextAttemptAt  time.Time      `json:"nextAttemptAt"`  // Earliest claim time; advanced by backoff
	LeaseExpiresAt *time.Time     `json:"leaseExpiresAt"` // Claim lease; expired claims are reclaimable
	LastError      *string        `json:"lastError"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// Terminal reports whether the item has reached a terminal state.
func (i *SyncQueueItem) Terminal() bool {
	return i.Status == SyncItemCompleted || i.Status == SyncItemFailed
}
