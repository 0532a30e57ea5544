package pgsql

import (
	portsrepo "github.com/TallySync/tally_sync_app/internal/core/ports/repositories"
	"github.com/jackc/pgx/v5/pgxpool"
)

func NewRepositoryProvider(dbPool *pgxpool.Pool) portsrepo.RepositoryProvider {
	return portsrepo.RepositoryProvider{
		TransactionRepo:  NewTransactionRepository(dbPool),
		WebhookEventRepo: NewWebhookEventRepository(dbPool),
		RuleRepo:         NewAutotagRuleRepository(dbPool),
		SyncQueueRepo:    NewSyncQueueRepository(dbPool),
		ApiLogRepo:       NewApiLogRepository(dbPool),
		SettingsRepo:     NewSettingsRepository(dbPool),
	}
}
