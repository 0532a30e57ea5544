package models

import "time"

// AutotagRule is the persistence model for a matching rule. Search and apply
// criteria are stored as jsonb and decoded into domain types by the
// repository; a row whose criteria no longer decodes is surfaced to the
// engine as malformed rather than dropped.
type AutotagRule struct {
	RuleID         string     `json:"ruleID"`
	OwnerID        string     `json:"ownerID"`
	Name           string     `json:"name"`
	Status         string     `json:"status"`
	SearchCriteria []byte     `json:"searchCriteria"`
	ApplyCriteria  []byte     `json:"applyCriteria"`
	MatchCount     int64      `json:"matchCount"`
	LastRunAt      *time.Time `json:"lastRunAt"`
	LastMatchedAt  *time.Time `json:"lastMatchedAt"`
	Performance    []byte     `json:"performance"`
	DeletedAt      *time.Time `json:"deletedAt"`
	AuditFields
}
