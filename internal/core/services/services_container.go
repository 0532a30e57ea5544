package services

import (
	"github.com/TallySync/tally_sync_app/internal/core/ports"
	portsrepo "github.com/TallySync/tally_sync_app/internal/core/ports/repositories"
	portssvc "github.com/TallySync/tally_sync_app/internal/core/ports/services"
	"github.com/TallySync/tally_sync_app/internal/platform/config"
	"github.com/TallySync/tally_sync_app/internal/utils/keymutex"
	"github.com/TallySync/tally_sync_app/internal/utils/retry"
)

// NewServiceContainer creates a new service container with properly initialized dependencies
func NewServiceContainer(cfg *config.Config, repos portsrepo.RepositoryProvider, bankClient ports.BankAPIClient) *portssvc.ServiceContainer {
	container := &portssvc.ServiceContainer{}

	// One stripe set shared by every path that mutates a transaction, so
	// ingestion, rule evaluation and manual edits for the same transaction
	// serialize against each other.
	txnLocks := keymutex.New(0)

	container.Sync = NewSyncService(repos.SyncQueueRepo, repos.TransactionRepo, repos.ApiLogRepo, bankClient, SyncConfig{
		MaxAttempts:   cfg.SyncMaxAttempts,
		LeaseDuration: cfg.SyncLeaseDuration,
		Backoff: retry.Policy{
			BaseDelay:      cfg.SyncBaseDelay,
			MaxDelay:       cfg.SyncMaxDelay,
			RateLimitFloor: cfg.SyncRateLimitFloor,
			JitterFraction: 0.2,
		},
	})

	container.Rule = NewRuleService(repos.RuleRepo, repos.TransactionRepo, container.Sync, txnLocks)
	container.Ingest = NewIngestService(repos.WebhookEventRepo, repos.TransactionRepo, container.Rule, txnLocks)
	container.Reconcile = NewReconcileService(repos.TransactionRepo, bankClient, 0)
	container.Transaction = NewTransactionService(repos.TransactionRepo, container.Sync, txnLocks)
	container.Settings = NewSettingsService(repos.SettingsRepo)

	return container
}

// Helper to check interface implementations at compile time
var (
	_ portssvc.IngestSvcFacade      = (*ingestService)(nil)
	_ portssvc.RuleSvcFacade        = (*ruleService)(nil)
	_ portssvc.SyncSvcFacade        = (*syncService)(nil)
	_ portssvc.ReconcileSvcFacade   = (*reconcileService)(nil)
	_ portssvc.TransactionSvcFacade = (*transactionService)(nil)
	_ portssvc.SettingsSvcFacade    = (*settingsService)(nil)
)
