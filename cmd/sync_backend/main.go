package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/TallySync/tally_sync_app/internal/adapters/bank"
	"github.com/TallySync/tally_sync_app/internal/apperrors"
	portssvc "github.com/TallySync/tally_sync_app/internal/core/ports/services"
	"github.com/TallySync/tally_sync_app/internal/core/services"
	"github.com/TallySync/tally_sync_app/internal/handlers"
	"github.com/TallySync/tally_sync_app/internal/middleware"
	"github.com/TallySync/tally_sync_app/internal/platform/config"
	"github.com/TallySync/tally_sync_app/internal/repositories/database/pgsql"
	"github.com/TallySync/tally_sync_app/pkg/database"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	migrate "github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// webhookSweepLimit caps how many failed events one sweep replays.
const webhookSweepLimit = 100

// @title TallySync Backend API
// @version 1.0
// @description Transaction synchronization and auto-tagging backend.

// @host localhost:8080
// @BasePath /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @security BearerAuth
func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize database connection pool (for application use)
	dbPool, err := database.NewPgxPool(context.Background(), cfg.DatabaseURL, cfg.EnableDBCheck)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer dbPool.Close()
	logger.Info("Database connection pool established.")

	if err := runMigrations(cfg, logger); err != nil {
		logger.Error("Failed to run migrations", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Wire repositories, the bank API adapter and services
	repos := pgsql.NewRepositoryProvider(dbPool)
	bankClient := bank.NewClient(cfg.BankAPIBaseURL, cfg.BankAPIToken, repos.ApiLogRepo)
	serviceContainer := services.NewServiceContainer(cfg, repos, bankClient)

	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware (logging, recovery, CORS)
	r.Use(middleware.StructuredLoggingMiddleware(logger), gin.Recovery())
	r.Use(cors.Default())

	if err := r.SetTrustedProxies(nil); err != nil {
		logger.Error("Failed to set trusted proxies", slog.String("error", err.Error()))
		os.Exit(1)
	}

	handlers.RegisterRoutes(r, cfg, serviceContainer)

	// Background workers share one cancellation context with the HTTP server
	// so SIGINT/SIGTERM drains everything together.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	startWorkers(ctx, &wg, cfg, serviceContainer, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		logger.Info("Server starting", slog.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed to run", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received, draining...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", slog.String("error", err.Error()))
	}

	wg.Wait()
	logger.Info("All workers stopped.")
}

// runMigrations applies all pending "up" migrations using a temporary
// database/sql connection via the pgx stdlib driver, compatible with the
// main pool.
func runMigrations(cfg *config.Config, logger *slog.Logger) error {
	logger.Info("Running database migrations...")

	migrationDB, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return err
	}
	if err := migrationDB.Ping(); err != nil {
		migrationDB.Close()
		return err
	}
	defer func() {
		if cerr := migrationDB.Close(); cerr != nil {
			logger.Error("Error closing migration DB connection", slog.String("error", cerr.Error()))
		}
	}()

	driver, err := postgres.WithInstance(migrationDB, &postgres.Config{})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithDatabaseInstance("file://migrations", "postgres", driver)
	if err != nil {
		return err
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return err
	}

	sourceErr, dbErr := m.Close()
	if sourceErr != nil {
		return sourceErr
	}
	if dbErr != nil {
		return dbErr
	}

	if err == migrate.ErrNoChange {
		logger.Info("No new migrations to apply.")
	} else {
		logger.Info("Database migrations applied successfully.")
	}
	return nil
}

// startWorkers launches the sync queue pollers and the periodic sweeps. Each
// worker exits when ctx is cancelled.
func startWorkers(ctx context.Context, wg *sync.WaitGroup, cfg *config.Config, svcs *portssvc.ServiceContainer, logger *slog.Logger) {
	for i := 0; i < cfg.SyncWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			runSyncPoller(ctx, cfg, svcs.Sync, logger.With(slog.Int("sync_worker", workerID)))
		}(i)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		runPeriodic(ctx, cfg.SyncLeaseDuration, func(tickCtx context.Context) {
			reclaimed, err := svcs.Sync.ReclaimExpiredLeases(tickCtx)
			if err != nil {
				logger.Error("Lease reclaim failed", slog.String("error", err.Error()))
				return
			}
			if reclaimed > 0 {
				logger.Info("Reclaimed expired sync leases", slog.Int("count", reclaimed))
			}
		})
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		runPeriodic(ctx, cfg.ReconcileInterval, func(tickCtx context.Context) {
			flagged, err := svcs.Reconcile.ReconcileOnce(tickCtx)
			if err != nil {
				logger.Error("Reconciliation sweep failed", slog.String("error", err.Error()))
				return
			}
			if flagged > 0 {
				logger.Info("Reconciliation flagged conflicts", slog.Int("count", flagged))
			}
		})
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		runPeriodic(ctx, cfg.WebhookSweepInterval, func(tickCtx context.Context) {
			retried, err := svcs.Ingest.RetryUnprocessed(tickCtx, webhookSweepLimit)
			if err != nil {
				logger.Error("Webhook replay sweep failed", slog.String("error", err.Error()))
				return
			}
			if retried > 0 {
				logger.Info("Replayed failed webhook events", slog.Int("count", retried))
			}
		})
	}()
}

// runSyncPoller drains the outbound queue, sleeping only when a poll finds
// nothing claimable.
func runSyncPoller(ctx context.Context, cfg *config.Config, syncSvc portssvc.SyncSvcFacade, logger *slog.Logger) {
	logger.Info("Sync worker started")
	for {
		select {
		case <-ctx.Done():
			logger.Info("Sync worker stopping")
			return
		default:
		}

		item, err := syncSvc.ProcessNext(ctx)
		if err != nil {
			if !errors.Is(err, apperrors.ErrNotFound) {
				logger.Error("Sync queue processing error", slog.String("error", err.Error()))
			}
			// Idle or transient infrastructure trouble, back off to the poll
			// interval either way.
			select {
			case <-ctx.Done():
				logger.Info("Sync worker stopping")
				return
			case <-time.After(cfg.SyncPollInterval):
			}
			continue
		}
		logger.Debug("Processed sync queue item", slog.String("item_id", item.ItemID), slog.String("status", string(item.Status)))
	}
}

// runPeriodic invokes fn on the given interval until ctx is cancelled.
func runPeriodic(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}
