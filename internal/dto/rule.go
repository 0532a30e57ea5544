package dto

import (
	"time"

	"github.com/TallySync/tally_sync_app/internal/core/domain"
)

// RuleCriteriaDTO mirrors domain.RuleCriteria for requests and responses.
type RuleCriteriaDTO struct {
	DescriptionContains *string    `json:"descriptionContains"`
	DescriptionNear     *FuzzyDTO  `json:"descriptionNear"`
	AmountMinorMin      *int64     `json:"amountMinorMin"`
	AmountMinorMax      *int64     `json:"amountMinorMax"`
	AccountID           *string    `json:"accountID"`
	DateFrom            *time.Time `json:"dateFrom"`
	DateTo              *time.Time `json:"dateTo"`
}

// FuzzyDTO mirrors domain.FuzzyMatch.
type FuzzyDTO struct {
	Value       string `json:"value" binding:"required"`
	MaxDistance int    `json:"maxDistance" binding:"min=0"`
}

// RuleApplyDTO mirrors domain.RuleApply.
type RuleApplyDTO struct {
	SetCategory *string  `json:"setCategory"`
	AddTags     []string `json:"addTags"`
}

// CreateRuleRequest defines the data needed to create an autotag rule.
// A rule with empty search criteria matches every transaction; such rules are
// rejected unless ConfirmMatchAll is set.
type CreateRuleRequest struct {
	Name            string          `json:"name" binding:"required"`
	Status          string          `json:"status" binding:"omitempty,oneof=active inactive draft"`
	Search          RuleCriteriaDTO `json:"search"`
	Apply           RuleApplyDTO    `json:"apply" binding:"required"`
	ConfirmMatchAll bool            `json:"confirmMatchAll"`
}

// UpdateRuleRequest defines the data allowed for updating a rule.
// Use pointers to distinguish between zero-value updates and fields not provided.
type UpdateRuleRequest struct {
	Name            *string          `json:"name"`
	Status          *string          `json:"status" binding:"omitempty,oneof=active inactive draft"`
	Search          *RuleCriteriaDTO `json:"search"`
	Apply           *RuleApplyDTO    `json:"apply"`
	ConfirmMatchAll bool             `json:"confirmMatchAll"`
}

// RuleResponse defines the data returned for a rule.
type RuleResponse struct {
	RuleID        string          `json:"ruleID"`
	OwnerID       string          `json:"ownerID"`
	Name          string          `json:"name"`
	Status        string          `json:"status"`
	Search        RuleCriteriaDTO `json:"search"`
	Apply         RuleApplyDTO    `json:"apply"`
	MatchCount    int64           `json:"matchCount"`
	LastRunAt     *time.Time      `json:"lastRunAt"`
	LastMatchedAt *time.Time      `json:"lastMatchedAt"`
	CreatedAt     time.Time       `json:"createdAt"`
	LastUpdatedAt time.Time       `json:"lastUpdatedAt"`
}

// ToCriteria converts the DTO to domain criteria.
func (d RuleCriteriaDTO) ToCriteria() domain.RuleCriteria {
	c := domain.RuleCriteria{
		DescriptionContains: d.DescriptionContains,
		AmountMinorMin:      d.AmountMinorMin,
		AmountMinorMax:      d.AmountMinorMax,
		AccountID:           d.AccountID,
		DateFrom:            d.DateFrom,
		DateTo:              d.DateTo,
	}
	if d.DescriptionNear != nil {
		c.DescriptionNear = &domain.FuzzyMatch{Value: d.DescriptionNear.Value, MaxDistance: d.DescriptionNear.MaxDistance}
	}
	return c
}

// ToApply converts the DTO to a domain apply mutation.
func (d RuleApplyDTO) ToApply() domain.RuleApply {
	return domain.RuleApply{SetCategory: d.SetCategory, AddTags: d.AddTags}
}

func toCriteriaDTO(c domain.RuleCriteria) RuleCriteriaDTO {
	d := RuleCriteriaDTO{
		DescriptionContains: c.DescriptionContains,
		AmountMinorMin:      c.AmountMinorMin,
		AmountMinorMax:      c.AmountMinorMax,
		AccountID:           c.AccountID,
		DateFrom:            c.DateFrom,
		DateTo:              c.DateTo,
	}
	if c.DescriptionNear != nil {
		d.DescriptionNear = &FuzzyDTO{Value: c.DescriptionNear.Value, MaxDistance: c.DescriptionNear.MaxDistance}
	}
	return d
}

// ToRuleResponse converts a domain.AutotagRule to RuleResponse DTO.
func ToRuleResponse(r *domain.AutotagRule) RuleResponse {
	return RuleResponse{
		RuleID:        r.RuleID,
		OwnerID:       r.OwnerID,
		Name:          r.Name,
		Status:        string(r.Status),
		Search:        toCriteriaDTO(r.Search),
		Apply:         RuleApplyDTO{SetCategory: r.Apply.SetCategory, AddTags: r.Apply.AddTags},
		MatchCount:    r.MatchCount,
		LastRunAt:     r.LastRunAt,
		LastMatchedAt: r.LastMatchedAt,
		CreatedAt:     r.CreatedAt,
		LastUpdatedAt: r.LastUpdatedAt,
	}
}

// ToListRuleResponse converts a slice of rules to response DTOs.
func ToListRuleResponse(rules []domain.AutotagRule) []RuleResponse {
	res := make([]RuleResponse, len(rules))
	for i := range rules {
		res[i] = ToRuleResponse(&rules[i])
	}
	return res
}
