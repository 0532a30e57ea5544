package services

import (
	"context"

	"github.com/TallySync/tally_sync_app/internal/core/domain"
	"github.com/TallySync/tally_sync_app/internal/dto"
)

// RuleReaderSvc defines read operations for autotag rules.
type RuleReaderSvc interface {
	// GetRuleByID retrieves a rule by id. Rules owned by another user
	// are reported as not found.
	GetRuleByID(ctx context.Context, ruleID string, requesterUserID string) (*domain.AutotagRule, error)

	// ListRules retrieves a user's rules in insertion order.
	ListRules(ctx context.Context, ownerID string, limit, offset int) ([]domain.AutotagRule, error)
}

// RuleWriterSvc defines CRUD operations for autotag rules.
type RuleWriterSvc interface {
	// CreateRule creates a new rule. Empty search criteria (matches
	// everything) is rejected unless the request explicitly confirms it.
	CreateRule(ctx context.Context, req dto.CreateRuleRequest, creatorUserID string) (*domain.AutotagRule, error)

	// UpdateRule updates a rule's definition.
	UpdateRule(ctx context.Context, ruleID string, req dto.UpdateRuleRequest, updaterUserID string) (*domain.AutotagRule, error)

	// DeleteRule soft-deletes a rule.
	DeleteRule(ctx context.Context, ruleID string, deleterUserID string) error
}

// RuleEvaluatorSvc is the matching engine contract.
type RuleEvaluatorSvc interface {
	// EvaluateTransaction runs the owner's active rules against the
	// transaction in insertion order and applies the winning rule's mutation
	// (first-match-wins for category, additive tags for tag-only rules).
	// Changes to a bank-sourced transaction are enqueued for upstream push.
	// Returns the possibly-updated transaction.
	EvaluateTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error)
}

// RuleSvcFacade combines all rule-related service interfaces.
type RuleSvcFacade interface {
	RuleReaderSvc
	RuleWriterSvc
	RuleEvaluatorSvc
}
