package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
)

// RuleStatus controls whether a rule participates in matching. Only active
// rules are evaluated; draft and inactive rules are retained but inert.
type RuleStatus string

const (
	RuleActive   RuleStatus = "active"
	RuleInactive RuleStatus = "inactive"
	RuleDraft    RuleStatus = "draft"
)

// FuzzyMatch matches descriptions within a bounded Levenshtein distance of a
// target phrase, so "WOOLWORTHS" still matches "W00LWORTHS" receipts.
type FuzzyMatch struct {
	Value       string `json:"value"`
	MaxDistance int    `json:"maxDistance"`
}

// RuleCriteria is the search predicate of an autotag rule. Every field is
// optional; an unset field is treated as always-true. Amount bounds are
// inclusive and expressed in minor units.
type RuleCriteria struct {
	DescriptionContains *string     `json:"descriptionContains,omitempty"`
	DescriptionNear     *FuzzyMatch `json:"descriptionNear,omitempty"`
	AmountMinorMin      *int64      `json:"amountMinorMin,omitempty"`
	AmountMinorMax      *int64      `json:"amountMinorMax,omitempty"`
	AccountID           *string     `json:"accountID,omitempty"`
	DateFrom            *time.Time  `json:"dateFrom,omitempty"`
	DateTo              *time.Time  `json:"dateTo,omitempty"`
}

// IsEmpty reports whether no criteria fields are set, i.e. the rule would
// match every transaction.
func (c RuleCriteria) IsEmpty() bool {
	return c.DescriptionContains == nil &&
		c.DescriptionNear == nil &&
		c.AmountMinorMin == nil &&
		c.AmountMinorMax == nil &&
		c.AccountID == nil &&
		c.DateFrom == nil &&
		c.DateTo == nil
}

// Matches is a pure predicate over the transaction's fields: deterministic,
// no side effects.
func (c RuleCriteria) Matches(txn *Transaction) bool {
	if c.DescriptionContains != nil {
		if !strings.Contains(strings.ToLower(txn.Description), strings.ToLower(*c.DescriptionContains)) {
			return false
		}
	}
	if c.DescriptionNear != nil {
		dist := levenshtein.ComputeDistance(
			strings.ToLower(txn.Description),
			strings.ToLower(c.DescriptionNear.Value),
		)
		if dist > c.DescriptionNear.MaxDistance {
			return false
		}
	}
	if c.AmountMinorMin != nil && txn.AmountMinor() < *c.AmountMinorMin {
		return false
	}
	if c.AmountMinorMax != nil && txn.AmountMinor() > *c.AmountMinorMax {
		return false
	}
	if c.AccountID != nil && txn.AccountID != *c.AccountID {
		return false
	}
	if c.DateFrom != nil && txn.OccurredAt.Before(*c.DateFrom) {
		return false
	}
	if c.DateTo != nil && txn.OccurredAt.After(*c.DateTo) {
		return false
	}
	return true
}

// RuleApply is the mutation an autotag rule performs on a matching
// transaction: set a category, add tags, or both.
type RuleApply struct {
	SetCategory *string  `json:"setCategory,omitempty"`
	AddTags     []string `json:"addTags,omitempty"`
}

// TagsOnly reports whether the rule only adds tags. Tag-only rules accumulate
// across multiple matches; category assignment is first-match-wins.
func (a RuleApply) TagsOnly() bool {
	return a.SetCategory == nil && len(a.AddTags) > 0
}

// AutotagRule is a user-authored matching rule. Rules are evaluated in
// insertion order per owner.
type AutotagRule struct {
	RuleID        string          `json:"ruleID"` // Primary key (UUID)
	OwnerID       string          `json:"ownerID"`
	Name          string          `json:"name"`
	Status        RuleStatus      `json:"status"`
	Search        RuleCriteria    `json:"search"`
	Apply         RuleApply       `json:"apply"`
	MatchCount    int64           `json:"matchCount"`
	LastRunAt     *time.Time      `json:"lastRunAt"`
	LastMatchedAt *time.Time      `json:"lastMatchedAt"`
	Performance   json.RawMessage `json:"performance,omitempty"` // Rolling stats snapshot, opaque
	AuditFields

	// CriteriaError is set by the repository when the stored criteria JSON
	// fails to decode. Such rules are skipped (and logged) by the engine
	// instead of aborting evaluation.
	CriteriaError *string `json:"-"`
}
