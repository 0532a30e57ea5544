package services_test

import (
	"context"
	"testing"

	"github.com/TallySync/tally_sync_app/internal/apperrors"
	"github.com/TallySync/tally_sync_app/internal/core/domain"
	"github.com/TallySync/tally_sync_app/internal/core/ports"
	portssvc "github.com/TallySync/tally_sync_app/internal/core/ports/services"
	"github.com/TallySync/tally_sync_app/internal/core/services"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type ReconcileServiceTestSuite struct {
	suite.Suite
	mockTxnRepo *MockTransactionRepository
	mockBank    *MockBankAPIClient
	service     portssvc.ReconcileSvcFacade
}

func (suite *ReconcileServiceTestSuite) SetupTest() {
	suite.mockTxnRepo = new(MockTransactionRepository)
	suite.mockBank = new(MockBankAPIClient)
	suite.service = services.NewReconcileService(suite.mockTxnRepo, suite.mockBank, 50)
}

func reconciledTransaction(category string, tags []string) domain.Transaction {
	externalID := uuid.NewString()
	return domain.Transaction{
		TransactionID:      uuid.NewString(),
		ExternalID:         &externalID,
		Category:           &category,
		Tags:               tags,
		LastPushedCategory: &category,
		LastPushedTags:     tags,
		Source:             domain.SourceBank,
		SyncStatus:         domain.SyncSynced,
	}
}

func (suite *ReconcileServiceTestSuite) expectSweep(txns []domain.Transaction) {
	suite.mockTxnRepo.On("FindTransactionsForReconciliation", mock.Anything,
		[]domain.SyncStatus{domain.SyncSynced, domain.SyncPending}, 50).Return(txns, nil).Once()
}

func (suite *ReconcileServiceTestSuite) TestReconcile_NoDivergence() {
	ctx := context.Background()
	txn := reconciledTransaction("internet", []string{"home"})
	suite.expectSweep([]domain.Transaction{txn})

	category := "internet"
	suite.mockBank.On("FetchTransaction", ctx, *txn.ExternalID).Return(&ports.BankTransactionSnapshot{
		ExternalID: *txn.ExternalID,
		Category:   &category,
		Tags:       []string{"home"},
	}, nil).Once()

	flagged, err := suite.service.ReconcileOnce(ctx)

	suite.Require().NoError(err)
	suite.Zero(flagged)
	suite.mockTxnRepo.AssertNotCalled(suite.T(), "UpdateSyncStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (suite *ReconcileServiceTestSuite) TestReconcile_ThirdPartyCategoryChangeFlagged() {
	ctx := context.Background()
	txn := reconciledTransaction("internet", []string{"home"})
	suite.expectSweep([]domain.Transaction{txn})

	remoteCategory := "entertainment" // differs from local and last-pushed
	suite.mockBank.On("FetchTransaction", ctx, *txn.ExternalID).Return(&ports.BankTransactionSnapshot{
		ExternalID: *txn.ExternalID,
		Category:   &remoteCategory,
		Tags:       []string{"home"},
	}, nil).Once()
	suite.mockTxnRepo.On("UpdateSyncStatus", ctx, txn.TransactionID, domain.SyncConflict, mock.AnythingOfType("string")).Return(nil).Once()

	flagged, err := suite.service.ReconcileOnce(ctx)

	suite.Require().NoError(err)
	suite.Equal(1, flagged)
	suite.mockTxnRepo.AssertExpectations(suite.T())
}

func (suite *ReconcileServiceTestSuite) TestReconcile_LaggingRemoteNotAConflict() {
	ctx := context.Background()
	// Local edit moved category ahead of what was last pushed; remote still
	// shows the pushed value. The pending queue item will catch it up.
	pushed := "internet"
	local := "utilities"
	externalID := uuid.NewString()
	txn := domain.Transaction{
		TransactionID:      uuid.NewString(),
		ExternalID:         &externalID,
		Category:           &local,
		LastPushedCategory: &pushed,
		Source:             domain.SourceBank,
		SyncStatus:         domain.SyncPending,
	}
	suite.expectSweep([]domain.Transaction{txn})

	suite.mockBank.On("FetchTransaction", ctx, externalID).Return(&ports.BankTransactionSnapshot{
		ExternalID: externalID,
		Category:   &pushed,
	}, nil).Once()

	flagged, err := suite.service.ReconcileOnce(ctx)

	suite.Require().NoError(err)
	suite.Zero(flagged)
	suite.mockTxnRepo.AssertNotCalled(suite.T(), "UpdateSyncStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (suite *ReconcileServiceTestSuite) TestReconcile_TagDivergenceFlagged() {
	ctx := context.Background()
	txn := reconciledTransaction("internet", []string{"home", "recurring"})
	suite.expectSweep([]domain.Transaction{txn})

	category := "internet"
	suite.mockBank.On("FetchTransaction", ctx, *txn.ExternalID).Return(&ports.BankTransactionSnapshot{
		ExternalID: *txn.ExternalID,
		Category:   &category,
		Tags:       []string{"somebody-elses-tag"},
	}, nil).Once()
	suite.mockTxnRepo.On("UpdateSyncStatus", ctx, txn.TransactionID, domain.SyncConflict, mock.AnythingOfType("string")).Return(nil).Once()

	flagged, err := suite.service.ReconcileOnce(ctx)

	suite.Require().NoError(err)
	suite.Equal(1, flagged)
}

func (suite *ReconcileServiceTestSuite) TestReconcile_TagOrderIgnored() {
	ctx := context.Background()
	txn := reconciledTransaction("internet", []string{"home", "recurring"})
	suite.expectSweep([]domain.Transaction{txn})

	category := "internet"
	suite.mockBank.On("FetchTransaction", ctx, *txn.ExternalID).Return(&ports.BankTransactionSnapshot{
		ExternalID: *txn.ExternalID,
		Category:   &category,
		Tags:       []string{"recurring", "home"},
	}, nil).Once()

	flagged, err := suite.service.ReconcileOnce(ctx)

	suite.Require().NoError(err)
	suite.Zero(flagged)
}

func (suite *ReconcileServiceTestSuite) TestReconcile_VanishedRemoteTombstones() {
	ctx := context.Background()
	txn := reconciledTransaction("internet", []string{"home"})
	suite.expectSweep([]domain.Transaction{txn})

	suite.mockBank.On("FetchTransaction", ctx, *txn.ExternalID).Return(nil, apperrors.ErrNotFound).Once()
	suite.mockTxnRepo.On("UpdateTransaction", ctx, mock.MatchedBy(func(t domain.Transaction) bool {
		return t.Tombstoned
	})).Return(nil).Once()

	flagged, err := suite.service.ReconcileOnce(ctx)

	suite.Require().NoError(err)
	suite.Zero(flagged)
	suite.mockTxnRepo.AssertExpectations(suite.T())
}

func (suite *ReconcileServiceTestSuite) TestReconcile_FetchFailureSkipsTransaction() {
	ctx := context.Background()
	bad := reconciledTransaction("internet", []string{"home"})
	good := reconciledTransaction("groceries", nil)
	suite.expectSweep([]domain.Transaction{bad, good})

	remoteCategory := "entertainment"
	suite.mockBank.On("FetchTransaction", ctx, *bad.ExternalID).Return(nil, apperrors.ErrTransient).Once()
	suite.mockBank.On("FetchTransaction", ctx, *good.ExternalID).Return(&ports.BankTransactionSnapshot{
		ExternalID: *good.ExternalID,
		Category:   &remoteCategory,
	}, nil).Once()
	suite.mockTxnRepo.On("UpdateSyncStatus", ctx, good.TransactionID, domain.SyncConflict, mock.AnythingOfType("string")).Return(nil).Once()

	flagged, err := suite.service.ReconcileOnce(ctx)

	// One bad fetch does not abort the sweep.
	suite.Require().NoError(err)
	suite.Equal(1, flagged)
	suite.mockBank.AssertExpectations(suite.T())
}

func TestReconcileServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ReconcileServiceTestSuite))
}
