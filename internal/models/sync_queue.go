package models

import "time"

// SyncQueueItem is the persistence model for one unit of outbound work.
type SyncQueueItem struct {
	ItemID         string     `json:"itemID"`
	TransactionID  string     `json:"transactionID"`
	Field          string     `json:"field"`
	Category       *string    `json:"category"`
	Tags           []string   `json:"tags"`
	Attempts       int        `json:"attempts"`
	Status         string     `json:"status"`
	LastAttemptAt  *time.Time `json:"lastAttemptAt"`
	NextAttemptAt  time.Time  `json:"nextAttemptAt"`
	LeaseExpiresAt *time.Time `json:"leaseExpiresAt"`
	LastError      *string    `json:"lastError"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}
