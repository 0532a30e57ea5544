package pgsql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/TallySync/tally_sync_app/internal/apperrors"
	"github.com/TallySync/tally_sync_app/internal/core/domain"
	portsrepo "github.com/TallySync/tally_sync_app/internal/core/ports/repositories"
	"github.com/TallySync/tally_sync_app/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgxAutotagRuleRepository struct {
	db *pgxpool.Pool
}

func NewAutotagRuleRepository(db *pgxpool.Pool) portsrepo.AutotagRuleRepositoryFacade {
	return &PgxAutotagRuleRepository{db: db}
}

var _ portsrepo.AutotagRuleRepositoryFacade = (*PgxAutotagRuleRepository)(nil)

const autotagRuleColumns = `rule_id, owner_id, name, status, search_criteria, apply_criteria,
	match_count, last_run_at, last_matched_at, performance,
	created_at, created_by, last_updated_at, last_updated_by`

func ruleToModel(rule domain.AutotagRule) (models.AutotagRule, error) {
	search, err := json.Marshal(rule.Search)
	if err != nil {
		return models.AutotagRule{}, fmt.Errorf("failed to encode rule search criteria: %w", err)
	}
	apply, err := json.Marshal(rule.Apply)
	if err != nil {
		return models.AutotagRule{}, fmt.Errorf("failed to encode rule apply criteria: %w", err)
	}
	return models.AutotagRule{
		RuleID:         rule.RuleID,
		OwnerID:        rule.OwnerID,
		Name:           rule.Name,
		Status:         string(rule.Status),
		SearchCriteria: search,
		ApplyCriteria:  apply,
		MatchCount:     rule.MatchCount,
		LastRunAt:      rule.LastRunAt,
		LastMatchedAt:  rule.LastMatchedAt,
		Performance:    rule.Performance,
		AuditFields: models.AuditFields{
			CreatedAt:     rule.CreatedAt,
			CreatedBy:     rule.CreatedBy,
			LastUpdatedAt: rule.LastUpdatedAt,
			LastUpdatedBy: rule.LastUpdatedBy,
		},
	}, nil
}

// ruleToDomain decodes the stored criteria. A row whose criteria jsonb no
// longer decodes into the domain types is returned with CriteriaError set so
// the engine can log and skip it instead of losing the whole rule set.
func ruleToDomain(m models.AutotagRule) domain.AutotagRule {
	rule := domain.AutotagRule{
		RuleID:        m.RuleID,
		OwnerID:       m.OwnerID,
		Name:          m.Name,
		Status:        domain.RuleStatus(m.Status),
		MatchCount:    m.MatchCount,
		LastRunAt:     m.LastRunAt,
		LastMatchedAt: m.LastMatchedAt,
		Performance:   m.Performance,
		AuditFields: domain.AuditFields{
			CreatedAt:     m.CreatedAt,
			CreatedBy:     m.CreatedBy,
			LastUpdatedAt: m.LastUpdatedAt,
			LastUpdatedBy: m.LastUpdatedBy,
		},
	}
	if err := json.Unmarshal(m.SearchCriteria, &rule.Search); err != nil {
		msg := fmt.Sprintf("malformed search criteria: %v", err)
		rule.CriteriaError = &msg
		return rule
	}
	if err := json.Unmarshal(m.ApplyCriteria, &rule.Apply); err != nil {
		msg := fmt.Sprintf("malformed apply criteria: %v", err)
		rule.CriteriaError = &msg
	}
	return rule
}

func scanAutotagRule(row pgx.Row) (*domain.AutotagRule, error) {
	var m models.AutotagRule
	err := row.Scan(
		&m.RuleID,
		&m.OwnerID,
		&m.Name,
		&m.Status,
		&m.SearchCriteria,
		&m.ApplyCriteria,
		&m.MatchCount,
		&m.LastRunAt,
		&m.LastMatchedAt,
		&m.Performance,
		&m.CreatedAt,
		&m.CreatedBy,
		&m.LastUpdatedAt,
		&m.LastUpdatedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan autotag rule row: %w", err)
	}
	rule := ruleToDomain(m)
	return &rule, nil
}

func (r *PgxAutotagRuleRepository) SaveRule(ctx context.Context, rule domain.AutotagRule) error {
	m, err := ruleToModel(rule)
	if err != nil {
		return err
	}
	query := `
        INSERT INTO autotag_rules (` + autotagRuleColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14);
    `
	_, err = r.db.Exec(ctx, query,
		m.RuleID, m.OwnerID, m.Name, m.Status, m.SearchCriteria, m.ApplyCriteria,
		m.MatchCount, m.LastRunAt, m.LastMatchedAt, m.Performance,
		m.CreatedAt, m.CreatedBy, m.LastUpdatedAt, m.LastUpdatedBy,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("rule already exists: %w", apperrors.ErrDuplicate)
		}
		return fmt.Errorf("failed to save autotag rule: %w", err)
	}
	return nil
}

func (r *PgxAutotagRuleRepository) UpdateRule(ctx context.Context, rule domain.AutotagRule) error {
	m, err := ruleToModel(rule)
	if err != nil {
		return err
	}
	query := `
        UPDATE autotag_rules
        SET name = $1, status = $2, search_criteria = $3, apply_criteria = $4,
            last_updated_at = $5, last_updated_by = $6
        WHERE rule_id = $7 AND deleted_at IS NULL;
    `
	cmdTag, err := r.db.Exec(ctx, query,
		m.Name, m.Status, m.SearchCriteria, m.ApplyCriteria,
		m.LastUpdatedAt, m.LastUpdatedBy, m.RuleID,
	)
	if err != nil {
		return fmt.Errorf("failed to update autotag rule: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("autotag rule not found: %w", apperrors.ErrNotFound)
	}
	return nil
}

func (r *PgxAutotagRuleRepository) FindRuleByID(ctx context.Context, ruleID string) (*domain.AutotagRule, error) {
	query := `SELECT ` + autotagRuleColumns + ` FROM autotag_rules WHERE rule_id = $1 AND deleted_at IS NULL;`
	rule, err := scanAutotagRule(r.db.QueryRow(ctx, query, ruleID))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find autotag rule by ID %s: %w", ruleID, err)
	}
	return rule, nil
}

func (r *PgxAutotagRuleRepository) FindRulesByOwner(ctx context.Context, ownerID string, limit int, offset int) ([]domain.AutotagRule, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
        SELECT ` + autotagRuleColumns + `
        FROM autotag_rules
        WHERE owner_id = $1 AND deleted_at IS NULL
        ORDER BY created_at ASC, rule_id ASC
        LIMIT $2 OFFSET $3;
    `
	return r.collectRules(ctx, query, ownerID, limit, offset)
}

func (r *PgxAutotagRuleRepository) FindActiveRulesByOwner(ctx context.Context, ownerID string) ([]domain.AutotagRule, error) {
	query := `
        SELECT ` + autotagRuleColumns + `
        FROM autotag_rules
        WHERE owner_id = $1 AND status = $2 AND deleted_at IS NULL
        ORDER BY created_at ASC, rule_id ASC;
    `
	return r.collectRules(ctx, query, ownerID, string(domain.RuleActive))
}

func (r *PgxAutotagRuleRepository) FindActiveRules(ctx context.Context) ([]domain.AutotagRule, error) {
	query := `
        SELECT ` + autotagRuleColumns + `
        FROM autotag_rules
        WHERE status = $1 AND deleted_at IS NULL
        ORDER BY created_at ASC, rule_id ASC;
    `
	return r.collectRules(ctx, query, string(domain.RuleActive))
}

func (r *PgxAutotagRuleRepository) collectRules(ctx context.Context, query string, args ...any) ([]domain.AutotagRule, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query autotag rules: %w", err)
	}
	defer rows.Close()

	rules := []domain.AutotagRule{}
	for rows.Next() {
		rule, err := scanAutotagRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *rule)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("error iterating autotag rule rows: %w", rows.Err())
	}
	return rules, nil
}

func (r *PgxAutotagRuleRepository) RecordRuleRun(ctx context.Context, ruleID string, matched bool, at time.Time) error {
	query := `
        UPDATE autotag_rules
        SET last_run_at = $1,
            match_count = match_count + CASE WHEN $2 THEN 1 ELSE 0 END,
            last_matched_at = CASE WHEN $2 THEN $1 ELSE last_matched_at END
        WHERE rule_id = $3;
    `
	cmdTag, err := r.db.Exec(ctx, query, at, matched, ruleID)
	if err != nil {
		return fmt.Errorf("failed to record autotag rule run: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("autotag rule not found: %w", apperrors.ErrNotFound)
	}
	return nil
}

func (r *PgxAutotagRuleRepository) MarkRuleDeleted(ctx context.Context, ruleID string, deletedAt time.Time, deletedBy string) error {
	query := `
        UPDATE autotag_rules
        SET deleted_at = $1, last_updated_at = $1, last_updated_by = $2
        WHERE rule_id = $3 AND deleted_at IS NULL;
    `
	cmdTag, err := r.db.Exec(ctx, query, deletedAt, deletedBy, ruleID)
	if err != nil {
		return fmt.Errorf("failed to mark autotag rule deleted: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("autotag rule not found: %w", apperrors.ErrNotFound)
	}
	return nil
}
