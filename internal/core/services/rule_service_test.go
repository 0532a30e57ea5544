package services_test

import (
	"context"
	"testing"

	"github.com/TallySync/tally_sync_app/internal/apperrors"
	"github.com/TallySync/tally_sync_app/internal/core/domain"
	portssvc "github.com/TallySync/tally_sync_app/internal/core/ports/services"
	"github.com/TallySync/tally_sync_app/internal/core/services"
	"github.com/TallySync/tally_sync_app/internal/dto"
	"github.com/TallySync/tally_sync_app/internal/utils/keymutex"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type RuleServiceTestSuite struct {
	suite.Suite
	mockRuleRepo *MockAutotagRuleRepository
	mockTxnRepo  *MockTransactionRepository
	mockSyncSvc  *MockSyncSvc
	service      portssvc.RuleSvcFacade
}

func (suite *RuleServiceTestSuite) SetupTest() {
	suite.mockRuleRepo = new(MockAutotagRuleRepository)
	suite.mockTxnRepo = new(MockTransactionRepository)
	suite.mockSyncSvc = new(MockSyncSvc)
	suite.service = services.NewRuleService(suite.mockRuleRepo, suite.mockTxnRepo, suite.mockSyncSvc, keymutex.New(0))
}

func strPtr(s string) *string { return &s }

func categoryRule(name, contains, category string) domain.AutotagRule {
	return domain.AutotagRule{
		RuleID: uuid.NewString(),
		Name:   name,
		Status: domain.RuleActive,
		Search: domain.RuleCriteria{DescriptionContains: strPtr(contains)},
		Apply:  domain.RuleApply{SetCategory: strPtr(category)},
	}
}

func tagRule(name, contains string, tags ...string) domain.AutotagRule {
	return domain.AutotagRule{
		RuleID: uuid.NewString(),
		Name:   name,
		Status: domain.RuleActive,
		Search: domain.RuleCriteria{DescriptionContains: strPtr(contains)},
		Apply:  domain.RuleApply{AddTags: tags},
	}
}

func bankTransaction(description string) *domain.Transaction {
	externalID := uuid.NewString()
	return &domain.Transaction{
		TransactionID: uuid.NewString(),
		ExternalID:    &externalID,
		AccountID:     "acct-1",
		Amount:        decimal.RequireFromString("-65.99"),
		Description:   description,
		Source:        domain.SourceBank,
		SyncStatus:    domain.SyncSynced,
		Settlement:    domain.SettlementHeld,
	}
}

// --- CRUD ---

func (suite *RuleServiceTestSuite) TestCreateRule_Success() {
	ctx := context.Background()
	creator := uuid.NewString()
	req := dto.CreateRuleRequest{
		Name:   "NBN bills",
		Search: dto.RuleCriteriaDTO{DescriptionContains: strPtr("NBN")},
		Apply:  dto.RuleApplyDTO{SetCategory: strPtr("internet")},
	}

	suite.mockRuleRepo.On("SaveRule", ctx, mock.MatchedBy(func(r domain.AutotagRule) bool {
		return r.Name == "NBN bills" &&
			r.Status == domain.RuleActive &&
			r.OwnerID == creator &&
			r.Search.DescriptionContains != nil && *r.Search.DescriptionContains == "NBN"
	})).Return(nil).Once()

	rule, err := suite.service.CreateRule(ctx, req, creator)

	suite.Require().NoError(err)
	suite.Require().NotNil(rule)
	suite.NotEmpty(rule.RuleID)
	suite.Equal(creator, rule.CreatedBy)
	suite.mockRuleRepo.AssertExpectations(suite.T())
}

func (suite *RuleServiceTestSuite) TestCreateRule_EmptyCriteriaRejected() {
	ctx := context.Background()
	req := dto.CreateRuleRequest{
		Name:  "match all",
		Apply: dto.RuleApplyDTO{AddTags: []string{"everything"}},
	}

	rule, err := suite.service.CreateRule(ctx, req, uuid.NewString())

	suite.Require().Error(err)
	suite.Nil(rule)
	suite.ErrorIs(err, apperrors.ErrValidation)
	suite.mockRuleRepo.AssertNotCalled(suite.T(), "SaveRule", mock.Anything, mock.Anything)
}

func (suite *RuleServiceTestSuite) TestCreateRule_EmptyCriteriaConfirmed() {
	ctx := context.Background()
	req := dto.CreateRuleRequest{
		Name:            "match all",
		Apply:           dto.RuleApplyDTO{AddTags: []string{"everything"}},
		ConfirmMatchAll: true,
	}

	suite.mockRuleRepo.On("SaveRule", ctx, mock.AnythingOfType("domain.AutotagRule")).Return(nil).Once()

	rule, err := suite.service.CreateRule(ctx, req, uuid.NewString())

	suite.Require().NoError(err)
	suite.Require().NotNil(rule)
	suite.mockRuleRepo.AssertExpectations(suite.T())
}

func (suite *RuleServiceTestSuite) TestCreateRule_AppliesNothingRejected() {
	ctx := context.Background()
	req := dto.CreateRuleRequest{
		Name:   "no-op",
		Search: dto.RuleCriteriaDTO{DescriptionContains: strPtr("NBN")},
	}

	rule, err := suite.service.CreateRule(ctx, req, uuid.NewString())

	suite.Require().Error(err)
	suite.Nil(rule)
	suite.ErrorIs(err, apperrors.ErrValidation)
}

func (suite *RuleServiceTestSuite) TestUpdateRule_NotFound() {
	ctx := context.Background()
	suite.mockRuleRepo.On("FindRuleByID", ctx, "missing").Return(nil, apperrors.ErrNotFound).Once()

	rule, err := suite.service.UpdateRule(ctx, "missing", dto.UpdateRuleRequest{Name: strPtr("x")}, uuid.NewString())

	suite.Require().Error(err)
	suite.Nil(rule)
	suite.ErrorIs(err, apperrors.ErrNotFound)
}

func (suite *RuleServiceTestSuite) TestGetRuleByID_OtherOwnerHiddenAsNotFound() {
	ctx := context.Background()
	owner := uuid.NewString()
	stored := categoryRule("NBN bills", "NBN", "internet")
	stored.OwnerID = owner

	suite.mockRuleRepo.On("FindRuleByID", ctx, stored.RuleID).Return(&stored, nil).Once()

	rule, err := suite.service.GetRuleByID(ctx, stored.RuleID, uuid.NewString())

	suite.Require().Error(err)
	suite.Nil(rule)
	suite.ErrorIs(err, apperrors.ErrNotFound)
}

func (suite *RuleServiceTestSuite) TestUpdateRule_OtherOwnerRejected() {
	ctx := context.Background()
	stored := categoryRule("NBN bills", "NBN", "internet")
	stored.OwnerID = uuid.NewString()

	suite.mockRuleRepo.On("FindRuleByID", ctx, stored.RuleID).Return(&stored, nil).Once()

	rule, err := suite.service.UpdateRule(ctx, stored.RuleID, dto.UpdateRuleRequest{Name: strPtr("hijacked")}, uuid.NewString())

	suite.Require().Error(err)
	suite.Nil(rule)
	suite.ErrorIs(err, apperrors.ErrNotFound)
	suite.mockRuleRepo.AssertNotCalled(suite.T(), "UpdateRule", mock.Anything, mock.Anything)
}

func (suite *RuleServiceTestSuite) TestDeleteRule_OtherOwnerRejected() {
	ctx := context.Background()
	stored := categoryRule("NBN bills", "NBN", "internet")
	stored.OwnerID = uuid.NewString()

	suite.mockRuleRepo.On("FindRuleByID", ctx, stored.RuleID).Return(&stored, nil).Once()

	err := suite.service.DeleteRule(ctx, stored.RuleID, uuid.NewString())

	suite.Require().Error(err)
	suite.ErrorIs(err, apperrors.ErrNotFound)
	suite.mockRuleRepo.AssertNotCalled(suite.T(), "MarkRuleDeleted", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (suite *RuleServiceTestSuite) TestDeleteRule_OwnerSucceeds() {
	ctx := context.Background()
	owner := uuid.NewString()
	stored := categoryRule("NBN bills", "NBN", "internet")
	stored.OwnerID = owner

	suite.mockRuleRepo.On("FindRuleByID", ctx, stored.RuleID).Return(&stored, nil).Once()
	suite.mockRuleRepo.On("MarkRuleDeleted", ctx, stored.RuleID, mock.AnythingOfType("time.Time"), owner).Return(nil).Once()

	err := suite.service.DeleteRule(ctx, stored.RuleID, owner)

	suite.Require().NoError(err)
	suite.mockRuleRepo.AssertExpectations(suite.T())
}

// --- Evaluation ---

func (suite *RuleServiceTestSuite) TestEvaluate_FirstMatchWinsCategory() {
	ctx := context.Background()
	txn := bankTransaction("NBN CO monthly")
	first := categoryRule("first", "NBN", "internet")
	second := categoryRule("second", "NBN CO", "utilities")

	suite.mockTxnRepo.On("FindTransactionByID", ctx, txn.TransactionID).Return(txn, nil).Twice()
	suite.mockRuleRepo.On("FindActiveRules", ctx).Return([]domain.AutotagRule{first, second}, nil).Once()
	suite.mockRuleRepo.On("RecordRuleRun", ctx, first.RuleID, true, mock.AnythingOfType("time.Time")).Return(nil).Once()
	suite.mockRuleRepo.On("RecordRuleRun", ctx, second.RuleID, true, mock.AnythingOfType("time.Time")).Return(nil).Once()
	suite.mockTxnRepo.On("UpdateTransaction", ctx, mock.MatchedBy(func(t domain.Transaction) bool {
		return t.Category != nil && *t.Category == "internet" &&
			t.Processed &&
			t.SyncStatus == domain.SyncPending
	})).Return(nil).Once()
	suite.mockSyncSvc.On("EnqueueFieldSync", ctx, mock.AnythingOfType("*domain.Transaction"), domain.FieldCategory).Return(&domain.SyncQueueItem{}, nil).Once()

	result, err := suite.service.EvaluateTransaction(ctx, txn.TransactionID)

	suite.Require().NoError(err)
	// The earlier rule's category stands; the later one still counts a match.
	suite.Equal("internet", *result.Category)
	suite.True(result.Processed)
	suite.mockRuleRepo.AssertExpectations(suite.T())
	suite.mockSyncSvc.AssertExpectations(suite.T())
}

func (suite *RuleServiceTestSuite) TestEvaluate_TagsAccumulateAcrossRules() {
	ctx := context.Background()
	txn := bankTransaction("NBN CO monthly")
	a := tagRule("a", "NBN", "home", "recurring")
	b := tagRule("b", "monthly", "recurring", "bills")

	suite.mockTxnRepo.On("FindTransactionByID", ctx, txn.TransactionID).Return(txn, nil).Twice()
	suite.mockRuleRepo.On("FindActiveRules", ctx).Return([]domain.AutotagRule{a, b}, nil).Once()
	suite.mockRuleRepo.On("RecordRuleRun", ctx, mock.AnythingOfType("string"), true, mock.AnythingOfType("time.Time")).Return(nil).Twice()
	suite.mockTxnRepo.On("UpdateTransaction", ctx, mock.MatchedBy(func(t domain.Transaction) bool {
		return len(t.Tags) == 3 &&
			t.Tags[0] == "home" && t.Tags[1] == "recurring" && t.Tags[2] == "bills"
	})).Return(nil).Once()
	suite.mockSyncSvc.On("EnqueueFieldSync", ctx, mock.AnythingOfType("*domain.Transaction"), domain.FieldTags).Return(&domain.SyncQueueItem{}, nil).Once()

	result, err := suite.service.EvaluateTransaction(ctx, txn.TransactionID)

	suite.Require().NoError(err)
	suite.Equal([]string{"home", "recurring", "bills"}, result.Tags)
	suite.mockSyncSvc.AssertExpectations(suite.T())
}

func (suite *RuleServiceTestSuite) TestEvaluate_LosingCategoryRuleContributesNothing() {
	ctx := context.Background()
	txn := bankTransaction("NBN CO monthly")
	winner := categoryRule("winner", "NBN", "utilities")
	loser := domain.AutotagRule{
		RuleID: uuid.NewString(),
		Name:   "loser",
		Status: domain.RuleActive,
		Search: domain.RuleCriteria{DescriptionContains: strPtr("NBN")},
		Apply:  domain.RuleApply{SetCategory: strPtr("subscriptions"), AddTags: []string{"stacked"}},
	}

	suite.mockTxnRepo.On("FindTransactionByID", ctx, txn.TransactionID).Return(txn, nil).Twice()
	suite.mockRuleRepo.On("FindActiveRules", ctx).Return([]domain.AutotagRule{winner, loser}, nil).Once()
	suite.mockRuleRepo.On("RecordRuleRun", ctx, mock.AnythingOfType("string"), true, mock.AnythingOfType("time.Time")).Return(nil).Twice()
	suite.mockTxnRepo.On("UpdateTransaction", ctx, mock.MatchedBy(func(t domain.Transaction) bool {
		// The losing category rule must not stack its tags either.
		return t.Category != nil && *t.Category == "utilities" && len(t.Tags) == 0
	})).Return(nil).Once()
	suite.mockSyncSvc.On("EnqueueFieldSync", ctx, mock.AnythingOfType("*domain.Transaction"), domain.FieldCategory).Return(&domain.SyncQueueItem{}, nil).Once()

	result, err := suite.service.EvaluateTransaction(ctx, txn.TransactionID)

	suite.Require().NoError(err)
	suite.Equal("utilities", *result.Category)
	suite.NotContains(result.Tags, "stacked")
	suite.mockSyncSvc.AssertExpectations(suite.T())
}

func (suite *RuleServiceTestSuite) TestEvaluate_WinningCategoryRuleKeepsItsTags() {
	ctx := context.Background()
	txn := bankTransaction("NBN CO monthly")
	winner := domain.AutotagRule{
		RuleID: uuid.NewString(),
		Name:   "winner",
		Status: domain.RuleActive,
		Search: domain.RuleCriteria{DescriptionContains: strPtr("NBN")},
		Apply:  domain.RuleApply{SetCategory: strPtr("internet"), AddTags: []string{"home"}},
	}
	tagOnly := tagRule("tag-only", "monthly", "recurring")

	suite.mockTxnRepo.On("FindTransactionByID", ctx, txn.TransactionID).Return(txn, nil).Twice()
	suite.mockRuleRepo.On("FindActiveRules", ctx).Return([]domain.AutotagRule{winner, tagOnly}, nil).Once()
	suite.mockRuleRepo.On("RecordRuleRun", ctx, mock.AnythingOfType("string"), true, mock.AnythingOfType("time.Time")).Return(nil).Twice()
	suite.mockTxnRepo.On("UpdateTransaction", ctx, mock.MatchedBy(func(t domain.Transaction) bool {
		return t.Category != nil && *t.Category == "internet" &&
			len(t.Tags) == 2 && t.Tags[0] == "home" && t.Tags[1] == "recurring"
	})).Return(nil).Once()
	suite.mockSyncSvc.On("EnqueueFieldSync", ctx, mock.AnythingOfType("*domain.Transaction"), domain.FieldBoth).Return(&domain.SyncQueueItem{}, nil).Once()

	result, err := suite.service.EvaluateTransaction(ctx, txn.TransactionID)

	suite.Require().NoError(err)
	suite.Equal([]string{"home", "recurring"}, result.Tags)
	suite.mockSyncSvc.AssertExpectations(suite.T())
}

func (suite *RuleServiceTestSuite) TestEvaluate_MalformedRuleSkipped() {
	ctx := context.Background()
	txn := bankTransaction("NBN CO monthly")
	criteriaErr := "malformed search criteria: unexpected end of JSON input"
	broken := domain.AutotagRule{RuleID: uuid.NewString(), Status: domain.RuleActive, CriteriaError: &criteriaErr}
	good := categoryRule("good", "NBN", "internet")

	suite.mockTxnRepo.On("FindTransactionByID", ctx, txn.TransactionID).Return(txn, nil).Twice()
	suite.mockRuleRepo.On("FindActiveRules", ctx).Return([]domain.AutotagRule{broken, good}, nil).Once()
	// Only the healthy rule records a run.
	suite.mockRuleRepo.On("RecordRuleRun", ctx, good.RuleID, true, mock.AnythingOfType("time.Time")).Return(nil).Once()
	suite.mockTxnRepo.On("UpdateTransaction", ctx, mock.AnythingOfType("domain.Transaction")).Return(nil).Once()
	suite.mockSyncSvc.On("EnqueueFieldSync", ctx, mock.AnythingOfType("*domain.Transaction"), domain.FieldCategory).Return(&domain.SyncQueueItem{}, nil).Once()

	result, err := suite.service.EvaluateTransaction(ctx, txn.TransactionID)

	suite.Require().NoError(err)
	suite.Equal("internet", *result.Category)
	suite.mockRuleRepo.AssertExpectations(suite.T())
}

func (suite *RuleServiceTestSuite) TestEvaluate_NoMatchStillMarksProcessed() {
	ctx := context.Background()
	txn := bankTransaction("GROCERIES")
	rule := categoryRule("nbn", "NBN", "internet")

	suite.mockTxnRepo.On("FindTransactionByID", ctx, txn.TransactionID).Return(txn, nil).Twice()
	suite.mockRuleRepo.On("FindActiveRules", ctx).Return([]domain.AutotagRule{rule}, nil).Once()
	suite.mockRuleRepo.On("RecordRuleRun", ctx, rule.RuleID, false, mock.AnythingOfType("time.Time")).Return(nil).Once()
	suite.mockTxnRepo.On("UpdateTransaction", ctx, mock.MatchedBy(func(t domain.Transaction) bool {
		return t.Processed && t.Category == nil && t.SyncStatus == domain.SyncSynced
	})).Return(nil).Once()

	result, err := suite.service.EvaluateTransaction(ctx, txn.TransactionID)

	suite.Require().NoError(err)
	suite.True(result.Processed)
	// Nothing changed, nothing to push.
	suite.mockSyncSvc.AssertNotCalled(suite.T(), "EnqueueFieldSync", mock.Anything, mock.Anything, mock.Anything)
}

func (suite *RuleServiceTestSuite) TestEvaluate_ManualTransactionNotEnqueued() {
	ctx := context.Background()
	txn := &domain.Transaction{
		TransactionID: uuid.NewString(),
		Description:   "NBN CO monthly",
		Amount:        decimal.RequireFromString("-65.99"),
		Source:        domain.SourceManual,
		SyncStatus:    domain.SyncSynced,
	}
	rule := categoryRule("nbn", "NBN", "internet")

	suite.mockTxnRepo.On("FindTransactionByID", ctx, txn.TransactionID).Return(txn, nil).Twice()
	suite.mockRuleRepo.On("FindActiveRules", ctx).Return([]domain.AutotagRule{rule}, nil).Once()
	suite.mockRuleRepo.On("RecordRuleRun", ctx, rule.RuleID, true, mock.AnythingOfType("time.Time")).Return(nil).Once()
	suite.mockTxnRepo.On("UpdateTransaction", ctx, mock.MatchedBy(func(t domain.Transaction) bool {
		return t.Category != nil && *t.Category == "internet" && t.SyncStatus == domain.SyncSynced
	})).Return(nil).Once()

	result, err := suite.service.EvaluateTransaction(ctx, txn.TransactionID)

	suite.Require().NoError(err)
	suite.Equal("internet", *result.Category)
	suite.mockSyncSvc.AssertNotCalled(suite.T(), "EnqueueFieldSync", mock.Anything, mock.Anything, mock.Anything)
}

func (suite *RuleServiceTestSuite) TestEvaluate_AlreadyProcessedShortCircuits() {
	ctx := context.Background()
	txn := bankTransaction("NBN CO monthly")
	txn.Processed = true

	suite.mockTxnRepo.On("FindTransactionByID", ctx, txn.TransactionID).Return(txn, nil).Twice()

	result, err := suite.service.EvaluateTransaction(ctx, txn.TransactionID)

	suite.Require().NoError(err)
	suite.True(result.Processed)
	suite.mockRuleRepo.AssertNotCalled(suite.T(), "FindActiveRules", mock.Anything)
}

func (suite *RuleServiceTestSuite) TestEvaluate_CategoryAndTagsEnqueuedAsBoth() {
	ctx := context.Background()
	txn := bankTransaction("NBN CO monthly")
	rule := domain.AutotagRule{
		RuleID: uuid.NewString(),
		Status: domain.RuleActive,
		Search: domain.RuleCriteria{DescriptionContains: strPtr("NBN")},
		Apply:  domain.RuleApply{SetCategory: strPtr("internet"), AddTags: []string{"home"}},
	}

	suite.mockTxnRepo.On("FindTransactionByID", ctx, txn.TransactionID).Return(txn, nil).Twice()
	suite.mockRuleRepo.On("FindActiveRules", ctx).Return([]domain.AutotagRule{rule}, nil).Once()
	suite.mockRuleRepo.On("RecordRuleRun", ctx, rule.RuleID, true, mock.AnythingOfType("time.Time")).Return(nil).Once()
	suite.mockTxnRepo.On("UpdateTransaction", ctx, mock.AnythingOfType("domain.Transaction")).Return(nil).Once()
	suite.mockSyncSvc.On("EnqueueFieldSync", ctx, mock.AnythingOfType("*domain.Transaction"), domain.FieldBoth).Return(&domain.SyncQueueItem{}, nil).Once()

	_, err := suite.service.EvaluateTransaction(ctx, txn.TransactionID)

	suite.Require().NoError(err)
	suite.mockSyncSvc.AssertExpectations(suite.T())
}

func TestRuleServiceTestSuite(t *testing.T) {
	suite.Run(t, new(RuleServiceTestSuite))
}
