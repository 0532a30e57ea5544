package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/TallySync/tally_sync_app/internal/apperrors"
	"github.com/TallySync/tally_sync_app/internal/core/domain"
	portsrepo "github.com/TallySync/tally_sync_app/internal/core/ports/repositories"
	portssvc "github.com/TallySync/tally_sync_app/internal/core/ports/services"
	"github.com/TallySync/tally_sync_app/internal/dto"
	"github.com/TallySync/tally_sync_app/internal/utils/keymutex"
	"github.com/google/uuid"
)

// ruleService implements the RuleSvcFacade interface
type ruleService struct {
	BaseService
	ruleRepo portsrepo.AutotagRuleRepositoryFacade
	txnRepo  portsrepo.TransactionRepositoryFacade
	syncSvc  portssvc.SyncSvcFacade
	txnLocks *keymutex.KeyMutex
}

// NewRuleService creates a new rule service with the provided dependencies
func NewRuleService(
	ruleRepo portsrepo.AutotagRuleRepositoryFacade,
	txnRepo portsrepo.TransactionRepositoryFacade,
	syncSvc portssvc.SyncSvcFacade,
	txnLocks *keymutex.KeyMutex,
) portssvc.RuleSvcFacade {
	return &ruleService{
		ruleRepo: ruleRepo,
		txnRepo:  txnRepo,
		syncSvc:  syncSvc,
		txnLocks: txnLocks,
	}
}

var _ portssvc.RuleSvcFacade = (*ruleService)(nil)

// CreateRule creates a new autotag rule. Rules whose search criteria are
// empty match every transaction; those are rejected unless the request
// explicitly confirms the intent.
func (s *ruleService) CreateRule(ctx context.Context, req dto.CreateRuleRequest, creatorUserID string) (*domain.AutotagRule, error) {
	search := req.Search.ToCriteria()
	apply := req.Apply.ToApply()

	if search.IsEmpty() && !req.ConfirmMatchAll {
		return nil, fmt.Errorf("rule matches every transaction, set confirmMatchAll to create it anyway: %w", apperrors.ErrValidation)
	}
	if apply.SetCategory == nil && len(apply.AddTags) == 0 {
		return nil, fmt.Errorf("rule applies nothing: %w", apperrors.ErrValidation)
	}

	status := domain.RuleStatus(req.Status)
	if status == "" {
		status = domain.RuleActive
	}

	now := time.Now().UTC()
	rule := domain.AutotagRule{
		RuleID:  uuid.NewString(),
		OwnerID: creatorUserID,
		Name:    req.Name,
		Status:  status,
		Search:  search,
		Apply:   apply,
		AuditFields: domain.AuditFields{
			CreatedAt:     now,
			CreatedBy:     creatorUserID,
			LastUpdatedAt: now,
			LastUpdatedBy: creatorUserID,
		},
	}

	if err := s.ruleRepo.SaveRule(ctx, rule); err != nil {
		s.LogError(ctx, err, "Failed to save autotag rule",
			slog.String("rule_id", rule.RuleID))
		return nil, err
	}

	s.LogInfo(ctx, "Autotag rule created",
		slog.String("rule_id", rule.RuleID),
		slog.String("name", rule.Name))
	return &rule, nil
}

// UpdateRule updates a rule's definition. Fields left nil in the request are
// untouched.
func (s *ruleService) UpdateRule(ctx context.Context, ruleID string, req dto.UpdateRuleRequest, updaterUserID string) (*domain.AutotagRule, error) {
	rule, err := s.findOwnedRule(ctx, ruleID, updaterUserID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		rule.Name = *req.Name
	}
	if req.Status != nil {
		rule.Status = domain.RuleStatus(*req.Status)
	}
	if req.Search != nil {
		search := req.Search.ToCriteria()
		if search.IsEmpty() && !req.ConfirmMatchAll {
			return nil, fmt.Errorf("rule matches every transaction, set confirmMatchAll to update it anyway: %w", apperrors.ErrValidation)
		}
		rule.Search = search
		rule.CriteriaError = nil
	}
	if req.Apply != nil {
		apply := req.Apply.ToApply()
		if apply.SetCategory == nil && len(apply.AddTags) == 0 {
			return nil, fmt.Errorf("rule applies nothing: %w", apperrors.ErrValidation)
		}
		rule.Apply = apply
	}

	rule.LastUpdatedAt = time.Now().UTC()
	rule.LastUpdatedBy = updaterUserID

	if err := s.ruleRepo.UpdateRule(ctx, *rule); err != nil {
		s.LogError(ctx, err, "Failed to update autotag rule",
			slog.String("rule_id", ruleID))
		return nil, err
	}
	return rule, nil
}

// DeleteRule soft-deletes a rule.
func (s *ruleService) DeleteRule(ctx context.Context, ruleID string, deleterUserID string) error {
	if _, err := s.findOwnedRule(ctx, ruleID, deleterUserID); err != nil {
		return err
	}
	if err := s.ruleRepo.MarkRuleDeleted(ctx, ruleID, time.Now().UTC(), deleterUserID); err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.LogError(ctx, err, "Failed to delete autotag rule",
				slog.String("rule_id", ruleID))
		}
		return err
	}
	return nil
}

// GetRuleByID retrieves a rule by id. Rules owned by another user are
// reported as not found.
func (s *ruleService) GetRuleByID(ctx context.Context, ruleID string, requesterUserID string) (*domain.AutotagRule, error) {
	return s.findOwnedRule(ctx, ruleID, requesterUserID)
}

// findOwnedRule loads a rule and hides it behind not-found when the
// requester is not its owner, so rule ids leak nothing across users.
func (s *ruleService) findOwnedRule(ctx context.Context, ruleID string, requesterUserID string) (*domain.AutotagRule, error) {
	rule, err := s.ruleRepo.FindRuleByID(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	if rule.OwnerID != requesterUserID {
		return nil, apperrors.ErrNotFound
	}
	return rule, nil
}

// ListRules retrieves a user's rules in insertion order.
func (s *ruleService) ListRules(ctx context.Context, ownerID string, limit, offset int) ([]domain.AutotagRule, error) {
	rules, err := s.ruleRepo.FindRulesByOwner(ctx, ownerID, limit, offset)
	if err != nil {
		s.LogError(ctx, err, "Failed to list autotag rules",
			slog.String("owner_id", ownerID))
		return nil, err
	}
	if rules == nil {
		return []domain.AutotagRule{}, nil
	}
	return rules, nil
}

// EvaluateTransaction runs every active rule against the transaction in
// insertion order. The first matching rule that sets a category wins and
// applies its whole mutation; tag additions from tag-only rules accumulate
// across matches. Amount and settlement are never touched. Changes to a bank-sourced transaction are enqueued for
// upstream push; the transaction is marked processed either way so rules run
// at most once per transaction.
func (s *ruleService) EvaluateTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	peek, err := s.txnRepo.FindTransactionByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	key := transactionLockKey(peek)
	s.txnLocks.Lock(key)
	defer s.txnLocks.Unlock(key)

	// Re-read under the lock; an ingest update may have landed in between.
	txn, err := s.txnRepo.FindTransactionByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if txn.Tombstoned || txn.Processed {
		return txn, nil
	}

	rules, err := s.ruleRepo.FindActiveRules(ctx)
	if err != nil {
		s.LogError(ctx, err, "Failed to load active rules",
			slog.String("transaction_id", transactionID))
		return nil, fmt.Errorf("failed to load active rules: %w", err)
	}

	now := time.Now().UTC()
	categorySet := txn.Category != nil
	categoryChanged := false
	tagsChanged := false

	for i := range rules {
		rule := &rules[i]
		if rule.CriteriaError != nil {
			// A malformed rule is skipped, never allowed to abort the run.
			s.LogWarn(ctx, "Skipping malformed autotag rule",
				slog.String("rule_id", rule.RuleID),
				slog.String("criteria_error", *rule.CriteriaError))
			continue
		}

		matched := rule.Search.Matches(txn)
		if matched {
			wonCategory := rule.Apply.SetCategory != nil && !categorySet
			if wonCategory {
				txn.Category = rule.Apply.SetCategory
				categorySet = true
				categoryChanged = true
			}
			// Only tag-only rules stack. A category rule contributes its
			// tags when it is the category winner; once it loses, it loses
			// wholesale.
			if wonCategory || rule.Apply.TagsOnly() {
				for _, tag := range rule.Apply.AddTags {
					if txn.AddTag(tag) {
						tagsChanged = true
					}
				}
			}
		}

		if err := s.ruleRepo.RecordRuleRun(ctx, rule.RuleID, matched, now); err != nil {
			s.LogError(ctx, err, "Failed to record rule run",
				slog.String("rule_id", rule.RuleID))
		}
	}

	txn.Processed = true
	changed := categoryChanged || tagsChanged
	pushable := changed && txn.Source == domain.SourceBank && txn.ExternalID != nil
	if pushable {
		txn.SyncStatus = domain.SyncPending
	}
	txn.LastUpdatedAt = now
	txn.LastUpdatedBy = systemUserID

	if err := s.txnRepo.UpdateTransaction(ctx, *txn); err != nil {
		return nil, fmt.Errorf("failed to persist rule evaluation for %s: %w", transactionID, err)
	}

	if pushable {
		field := syncFieldFor(categoryChanged, tagsChanged)
		if _, err := s.syncSvc.EnqueueFieldSync(ctx, txn, field); err != nil {
			s.LogError(ctx, err, "Failed to enqueue sync after rule evaluation",
				slog.String("transaction_id", transactionID),
				slog.String("field", string(field)))
		}
	}

	s.LogDebug(ctx, "Rule evaluation complete",
		slog.String("transaction_id", transactionID),
		slog.Bool("changed", changed),
		slog.Int("rules", len(rules)))
	return txn, nil
}

// transactionLockKey is the serialization key for one transaction: the bank
// external id when present (the same key ingestion locks), otherwise the
// internal id.
func transactionLockKey(txn *domain.Transaction) string {
	if txn.ExternalID != nil && *txn.ExternalID != "" {
		return *txn.ExternalID
	}
	return txn.TransactionID
}

func syncFieldFor(categoryChanged, tagsChanged bool) domain.SyncField {
	switch {
	case categoryChanged && tagsChanged:
		return domain.FieldBoth
	case categoryChanged:
		return domain.FieldCategory
	default:
		return domain.FieldTags
	}
}
