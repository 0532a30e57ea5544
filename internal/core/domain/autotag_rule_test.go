package domain_test

import (
	"testing"
	"time"

	"github.com/TallySync/tally_sync_app/internal/core/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func baseTxn() *domain.Transaction {
	return &domain.Transaction{
		TransactionID: "txn_1",
		AccountID:     "acc_1",
		Amount:        decimal.NewFromFloat(-65.99),
		Description:   "NBN Internet Monthly",
		OccurredAt:    time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC),
	}
}

func TestRuleCriteria_Matches(t *testing.T) {
	tests := []struct {
		name     string
		criteria domain.RuleCriteria
		mutate   func(*domain.Transaction)
		want     bool
	}{
		{
			name:     "empty criteria matches everything",
			criteria: domain.RuleCriteria{},
			want:     true,
		},
		{
			name:     "description substring is case-insensitive",
			criteria: domain.RuleCriteria{DescriptionContains: stringPtr("nbn")},
			want:     true,
		},
		{
			name:     "description substring miss",
			criteria: domain.RuleCriteria{DescriptionContains: stringPtr("Netflix")},
			want:     false,
		},
		{
			name: "fuzzy description within distance",
			criteria: domain.RuleCriteria{
				DescriptionNear: &domain.FuzzyMatch{Value: "NBN Internet Monthli", MaxDistance: 2},
			},
			want: true,
		},
		{
			name: "fuzzy description beyond distance",
			criteria: domain.RuleCriteria{
				DescriptionNear: &domain.FuzzyMatch{Value: "Completely Different", MaxDistance: 3},
			},
			want: false,
		},
		{
			name:     "amount lower bound is inclusive",
			criteria: domain.RuleCriteria{AmountMinorMin: int64Ptr(-6599)},
			want:     true,
		},
		{
			name:     "amount upper bound is inclusive",
			criteria: domain.RuleCriteria{AmountMinorMax: int64Ptr(-6599)},
			want:     true,
		},
		{
			name:     "amount below lower bound",
			criteria: domain.RuleCriteria{AmountMinorMin: int64Ptr(-6598)},
			want:     false,
		},
		{
			name:     "amount above upper bound",
			criteria: domain.RuleCriteria{AmountMinorMax: int64Ptr(-6600)},
			want:     false,
		},
		{
			name:     "account id equality",
			criteria: domain.RuleCriteria{AccountID: stringPtr("acc_1")},
			want:     true,
		},
		{
			name:     "account id mismatch",
			criteria: domain.RuleCriteria{AccountID: stringPtr("acc_2")},
			want:     false,
		},
		{
			name: "date range containing the transaction",
			criteria: domain.RuleCriteria{
				DateFrom: timePtr(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)),
				DateTo:   timePtr(time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)),
			},
			want: true,
		},
		{
			name: "date range before the transaction",
			criteria: domain.RuleCriteria{
				DateTo: timePtr(time.Date(2025, 5, 31, 0, 0, 0, 0, time.UTC)),
			},
			want: false,
		},
		{
			name: "all criteria set and satisfied",
			criteria: domain.RuleCriteria{
				DescriptionContains: stringPtr("NBN"),
				AmountMinorMin:      int64Ptr(-10000),
				AmountMinorMax:      int64Ptr(0),
				AccountID:           stringPtr("acc_1"),
				DateFrom:            timePtr(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)),
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn := baseTxn()
			if tt.mutate != nil {
				tt.mutate(txn)
			}
			assert.Equal(t, tt.want, tt.criteria.Matches(txn))
		})
	}
}

func TestRuleCriteria_IsEmpty(t *testing.T) {
	assert.True(t, domain.RuleCriteria{}.IsEmpty())
	assert.False(t, domain.RuleCriteria{AccountID: stringPtr("acc_1")}.IsEmpty())
}

func TestRuleApply_TagsOnly(t *testing.T) {
	assert.True(t, domain.RuleApply{AddTags: []string{"recurring"}}.TagsOnly())
	assert.False(t, domain.RuleApply{SetCategory: stringPtr("Utilities")}.TagsOnly())
	assert.False(t, domain.RuleApply{}.TagsOnly())
}

func TestTransaction_AddTag(t *testing.T) {
	txn := baseTxn()
	assert.True(t, txn.AddTag("recurring"))
	assert.False(t, txn.AddTag("recurring"), "duplicate tag must not be added twice")
	assert.True(t, txn.AddTag("internet"))
	assert.Equal(t, []string{"recurring", "internet"}, txn.Tags, "tag order must be preserved")
}

func TestTransaction_AmountMinor(t *testing.T) {
	tests := []struct {
		amount string
		want   int64
	}{
		{"-65.99", -6599},
		{"0", 0},
		{"12.3", 1230},
		{"0.01", 1},
	}
	for _, tt := range tests {
		txn := &domain.Transaction{Amount: decimal.RequireFromString(tt.amount)}
		assert.Equal(t, tt.want, txn.AmountMinor(), "amount %s", tt.amount)
	}
}

// Helper functions
func stringPtr(s string) *string       { return &s }
func int64Ptr(i int64) *int64          { return &i }
func timePtr(t time.Time) *time.Time   { return &t }
