package repositories

import (
	"context"
	"time"

	"github.com/TallySync/tally_sync_app/internal/core/domain"
)

// AutotagRuleReader defines read operations for autotag rules.
type AutotagRuleReader interface {
	// FindRuleByID retrieves a rule by id.
	FindRuleByID(ctx context.Context, ruleID string) (*domain.AutotagRule, error)

	// FindRulesByOwner retrieves all of a user's rules in insertion order.
	FindRulesByOwner(ctx context.Context, ownerID string, limit int, offset int) ([]domain.AutotagRule, error)

	// FindActiveRulesByOwner retrieves the owner's active rules in insertion
	// order, the order rule evaluation must follow.
	FindActiveRulesByOwner(ctx context.Context, ownerID string) ([]domain.AutotagRule, error)

	// FindActiveRules retrieves every active rule in insertion order. The
	// evaluation engine runs against all of them; ownership scopes the CRUD
	// surface, not matching.
	FindActiveRules(ctx context.Context) ([]domain.AutotagRule, error)
}

// AutotagRuleWriter defines write operations for autotag rules.
type AutotagRuleWriter interface {
	// SaveRule persists a new rule.
	SaveRule(ctx context.Context, rule domain.AutotagRule) error

	// UpdateRule updates an existing rule's definition.
	UpdateRule(ctx context.Context, rule domain.AutotagRule) error

	// RecordRuleRun stamps lastRunAt and, for rules that matched, increments
	// the match count and stamps lastMatchedAt.
	RecordRuleRun(ctx context.Context, ruleID string, matched bool, at time.Time) error

	// MarkRuleDeleted soft-deletes a rule.
	MarkRuleDeleted(ctx context.Context, ruleID string, deletedAt time.Time, deletedBy string) error
}

// AutotagRuleRepositoryFacade combines all rule repository interfaces.
type AutotagRuleRepositoryFacade interface {
	AutotagRuleReader
	AutotagRuleWriter
}
