package services_test

import (
	"context"
	"time"

	"github.com/TallySync/tally_sync_app/internal/core/domain"
	"github.com/TallySync/tally_sync_app/internal/core/ports"
	portsrepo "github.com/TallySync/tally_sync_app/internal/core/ports/repositories"
	"github.com/stretchr/testify/mock"
)

// --- Mock TransactionRepository ---
type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) FindTransactionByID(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) FindTransactionByExternalID(ctx context.Context, externalID string) (*domain.Transaction, error) {
	args := m.Called(ctx, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) FindTransactions(ctx context.Context, filter portsrepo.ListTransactionsFilter) ([]domain.Transaction, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) FindTransactionsForReconciliation(ctx context.Context, statuses []domain.SyncStatus, limit int) ([]domain.Transaction, error) {
	args := m.Called(ctx, statuses, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) SaveTransaction(ctx context.Context, txn domain.Transaction) error {
	args := m.Called(ctx, txn)
	return args.Error(0)
}

func (m *MockTransactionRepository) UpdateTransaction(ctx context.Context, txn domain.Transaction) error {
	args := m.Called(ctx, txn)
	return args.Error(0)
}

func (m *MockTransactionRepository) UpdateSyncStatus(ctx context.Context, transactionID string, status domain.SyncStatus, updatedBy string) error {
	args := m.Called(ctx, transactionID, status, updatedBy)
	return args.Error(0)
}

func (m *MockTransactionRepository) RecordPushedValues(ctx context.Context, transactionID string, category *string, tags []string, markSynced bool, updatedBy string) error {
	args := m.Called(ctx, transactionID, category, tags, markSynced, updatedBy)
	return args.Error(0)
}

// --- Mock WebhookEventRepository ---
type MockWebhookEventRepository struct {
	mock.Mock
}

func (m *MockWebhookEventRepository) FindEventByID(ctx context.Context, eventID string) (*domain.WebhookEvent, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WebhookEvent), args.Error(1)
}

func (m *MockWebhookEventRepository) FindEventByBankEventID(ctx context.Context, bankEventID string) (*domain.WebhookEvent, error) {
	args := m.Called(ctx, bankEventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WebhookEvent), args.Error(1)
}

func (m *MockWebhookEventRepository) FindUnprocessedEvents(ctx context.Context, limit int, maxRetries int) ([]domain.WebhookEvent, error) {
	args := m.Called(ctx, limit, maxRetries)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.WebhookEvent), args.Error(1)
}

func (m *MockWebhookEventRepository) SaveEvent(ctx context.Context, event domain.WebhookEvent) (*domain.WebhookEvent, error) {
	args := m.Called(ctx, event)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WebhookEvent), args.Error(1)
}

func (m *MockWebhookEventRepository) MarkEventProcessed(ctx context.Context, eventID string, transactionID *string, processedAt time.Time) error {
	args := m.Called(ctx, eventID, transactionID, processedAt)
	return args.Error(0)
}

func (m *MockWebhookEventRepository) RecordEventError(ctx context.Context, eventID string, handlingErr string) error {
	args := m.Called(ctx, eventID, handlingErr)
	return args.Error(0)
}

// --- Mock AutotagRuleRepository ---
type MockAutotagRuleRepository struct {
	mock.Mock
}

func (m *MockAutotagRuleRepository) FindRuleByID(ctx context.Context, ruleID string) (*domain.AutotagRule, error) {
	args := m.Called(ctx, ruleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AutotagRule), args.Error(1)
}

func (m *MockAutotagRuleRepository) FindRulesByOwner(ctx context.Context, ownerID string, limit int, offset int) ([]domain.AutotagRule, error) {
	args := m.Called(ctx, ownerID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.AutotagRule), args.Error(1)
}

func (m *MockAutotagRuleRepository) FindActiveRulesByOwner(ctx context.Context, ownerID string) ([]domain.AutotagRule, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.AutotagRule), args.Error(1)
}

func (m *MockAutotagRuleRepository) FindActiveRules(ctx context.Context) ([]domain.AutotagRule, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.AutotagRule), args.Error(1)
}

func (m *MockAutotagRuleRepository) SaveRule(ctx context.Context, rule domain.AutotagRule) error {
	args := m.Called(ctx, rule)
	return args.Error(0)
}

func (m *MockAutotagRuleRepository) UpdateRule(ctx context.Context, rule domain.AutotagRule) error {
	args := m.Called(ctx, rule)
	return args.Error(0)
}

func (m *MockAutotagRuleRepository) RecordRuleRun(ctx context.Context, ruleID string, matched bool, at time.Time) error {
	args := m.Called(ctx, ruleID, matched, at)
	return args.Error(0)
}

func (m *MockAutotagRuleRepository) MarkRuleDeleted(ctx context.Context, ruleID string, deletedAt time.Time, deletedBy string) error {
	args := m.Called(ctx, ruleID, deletedAt, deletedBy)
	return args.Error(0)
}

// --- Mock SyncQueueRepository ---
type MockSyncQueueRepository struct {
	mock.Mock
}

func (m *MockSyncQueueRepository) FindItemByID(ctx context.Context, itemID string) (*domain.SyncQueueItem, error) {
	args := m.Called(ctx, itemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SyncQueueItem), args.Error(1)
}

func (m *MockSyncQueueRepository) FindItems(ctx context.Context, filter portsrepo.ListSyncItemsFilter) ([]domain.SyncQueueItem, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SyncQueueItem), args.Error(1)
}

func (m *MockSyncQueueRepository) HasOutstandingItems(ctx context.Context, transactionID string) (bool, error) {
	args := m.Called(ctx, transactionID)
	return args.Bool(0), args.Error(1)
}

func (m *MockSyncQueueRepository) EnqueueOrCoalesce(ctx context.Context, item domain.SyncQueueItem) (*domain.SyncQueueItem, error) {
	args := m.Called(ctx, item)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SyncQueueItem), args.Error(1)
}

func (m *MockSyncQueueRepository) ClaimNextPending(ctx context.Context, now time.Time, lease time.Duration) (*domain.SyncQueueItem, error) {
	args := m.Called(ctx, now, lease)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SyncQueueItem), args.Error(1)
}

func (m *MockSyncQueueRepository) MarkCompleted(ctx context.Context, itemID string, at time.Time) error {
	args := m.Called(ctx, itemID, at)
	return args.Error(0)
}

func (m *MockSyncQueueRepository) MarkFailed(ctx context.Context, itemID string, lastError string, at time.Time) error {
	args := m.Called(ctx, itemID, lastError, at)
	return args.Error(0)
}

func (m *MockSyncQueueRepository) Requeue(ctx context.Context, itemID string, attempts int, lastError string, nextAttemptAt time.Time) error {
	args := m.Called(ctx, itemID, attempts, lastError, nextAttemptAt)
	return args.Error(0)
}

func (m *MockSyncQueueRepository) ReclaimExpired(ctx context.Context, now time.Time) (int, error) {
	args := m.Called(ctx, now)
	return args.Int(0), args.Error(1)
}

func (m *MockSyncQueueRepository) RequeueFailed(ctx context.Context, itemID string, at time.Time) error {
	args := m.Called(ctx, itemID, at)
	return args.Error(0)
}

// --- Mock SettingsRepository ---
type MockSettingsRepository struct {
	mock.Mock
}

func (m *MockSettingsRepository) GetSetting(ctx context.Context, userID string, key string) (*domain.Setting, error) {
	args := m.Called(ctx, userID, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Setting), args.Error(1)
}

func (m *MockSettingsRepository) PutSetting(ctx context.Context, setting domain.Setting) error {
	args := m.Called(ctx, setting)
	return args.Error(0)
}

// --- Mock BankAPIClient ---
type MockBankAPIClient struct {
	mock.Mock
}

func (m *MockBankAPIClient) PushFieldUpdate(ctx context.Context, externalID string, field domain.SyncField, category *string, tags []string) error {
	args := m.Called(ctx, externalID, field, category, tags)
	return args.Error(0)
}

func (m *MockBankAPIClient) FetchTransaction(ctx context.Context, externalID string) (*ports.BankTransactionSnapshot, error) {
	args := m.Called(ctx, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.BankTransactionSnapshot), args.Error(1)
}

// --- Mock SyncSvc ---
type MockSyncSvc struct {
	mock.Mock
}

func (m *MockSyncSvc) EnqueueFieldSync(ctx context.Context, txn *domain.Transaction, field domain.SyncField) (*domain.SyncQueueItem, error) {
	args := m.Called(ctx, txn, field)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SyncQueueItem), args.Error(1)
}

func (m *MockSyncSvc) ProcessNext(ctx context.Context) (*domain.SyncQueueItem, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SyncQueueItem), args.Error(1)
}

func (m *MockSyncSvc) ReclaimExpiredLeases(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockSyncSvc) RetryFailedItem(ctx context.Context, itemID string) error {
	args := m.Called(ctx, itemID)
	return args.Error(0)
}

func (m *MockSyncSvc) ListItems(ctx context.Context, filter portsrepo.ListSyncItemsFilter) ([]domain.SyncQueueItem, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SyncQueueItem), args.Error(1)
}

func (m *MockSyncSvc) ListRecentApiLogs(ctx context.Context, limit int) ([]domain.ApiLog, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ApiLog), args.Error(1)
}

// --- Mock ApiLogRepository ---
type MockApiLogRepository struct {
	mock.Mock
}

func (m *MockApiLogRepository) AppendLog(ctx context.Context, log domain.ApiLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *MockApiLogRepository) FindRecentLogs(ctx context.Context, limit int) ([]domain.ApiLog, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ApiLog), args.Error(1)
}

// --- Mock RuleEvaluatorSvc ---
type MockRuleEvaluator struct {
	mock.Mock
}

func (m *MockRuleEvaluator) EvaluateTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}
