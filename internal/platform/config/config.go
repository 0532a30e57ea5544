package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	DatabaseURL   string
	Port          string
	IsProduction  bool
	EnableDBCheck bool
	JWTSecret     string

	// Bank API client
	BankAPIBaseURL string
	BankAPIToken   string
	WebhookSecret  string // HMAC key for inbound webhook signatures

	// Outbound sync queue
	SyncWorkers        int
	SyncPollInterval   time.Duration
	SyncMaxAttempts    int
	SyncBaseDelay      time.Duration
	SyncMaxDelay       time.Duration
	SyncRateLimitFloor time.Duration
	SyncLeaseDuration  time.Duration

	// Background sweeps
	ReconcileInterval    time.Duration
	WebhookSweepInterval time.Duration

	// Webhook endpoint rate limit, e.g. "120-M" (ulule/limiter format)
	WebhookRateLimit string
}

// LoadConfig loads configuration from environment variables and .env file if present.
func LoadConfig() (*Config, error) {
	// Attempt to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	viper.SetDefault("PGSQL_URL", "")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("IS_PRODUCTION", false)
	viper.SetDefault("ENABLE_DB_CHECK", false)
	viper.SetDefault("JWT_SECRET", "a-very-secret-key-should-be-longer-and-random")
	viper.SetDefault("BANK_API_BASE_URL", "https://api.up.com.au/api/v1")
	viper.SetDefault("BANK_API_TOKEN", "")
	viper.SetDefault("WEBHOOK_SECRET", "")
	viper.SetDefault("SYNC_WORKERS", 2)
	viper.SetDefault("SYNC_POLL_INTERVAL", "2s")
	viper.SetDefault("SYNC_MAX_ATTEMPTS", 5)
	viper.SetDefault("SYNC_BASE_DELAY", "1s")
	viper.SetDefault("SYNC_MAX_DELAY", "5m")
	viper.SetDefault("SYNC_RATE_LIMIT_FLOOR", "30s")
	viper.SetDefault("SYNC_LEASE_DURATION", "1m")
	viper.SetDefault("RECONCILE_INTERVAL", "10m")
	viper.SetDefault("WEBHOOK_SWEEP_INTERVAL", "5m")
	viper.SetDefault("WEBHOOK_RATE_LIMIT", "120-M")

	viper.AutomaticEnv()

	cfg := &Config{}

	cfg.DatabaseURL = viper.GetString("PGSQL_URL")
	if cfg.DatabaseURL == "" {
		log.Println("Warning: PGSQL_URL environment variable not set.")
	}

	cfg.Port = viper.GetString("PORT")
	cfg.IsProduction = viper.GetBool("IS_PRODUCTION")
	cfg.EnableDBCheck = viper.GetBool("ENABLE_DB_CHECK")

	cfg.JWTSecret = viper.GetString("JWT_SECRET")
	if cfg.JWTSecret == "a-very-secret-key-should-be-longer-and-random" {
		log.Println("Warning: JWT_SECRET environment variable not set. Using default insecure key.")
	}

	cfg.BankAPIBaseURL = viper.GetString("BANK_API_BASE_URL")
	cfg.BankAPIToken = viper.GetString("BANK_API_TOKEN")
	if cfg.BankAPIToken == "" {
		log.Println("Warning: BANK_API_TOKEN not set. Outbound pushes will be rejected upstream.")
	}
	cfg.WebhookSecret = viper.GetString("WEBHOOK_SECRET")
	if cfg.WebhookSecret == "" {
		log.Println("Warning: WEBHOOK_SECRET not set. Inbound webhook signatures will not be verified.")
	}

	cfg.SyncWorkers = viper.GetInt("SYNC_WORKERS")
	if cfg.SyncWorkers < 1 {
		cfg.SyncWorkers = 1
		log.Println("Warning: SYNC_WORKERS must be at least 1. Defaulting to 1.")
	}
	cfg.SyncMaxAttempts = viper.GetInt("SYNC_MAX_ATTEMPTS")
	if cfg.SyncMaxAttempts < 1 {
		cfg.SyncMaxAttempts = 1
		log.Println("Warning: SYNC_MAX_ATTEMPTS must be at least 1. Defaulting to 1.")
	}

	cfg.SyncPollInterval = durationSetting("SYNC_POLL_INTERVAL", 2*time.Second)
	cfg.SyncBaseDelay = durationSetting("SYNC_BASE_DELAY", time.Second)
	cfg.SyncMaxDelay = durationSetting("SYNC_MAX_DELAY", 5*time.Minute)
	cfg.SyncRateLimitFloor = durationSetting("SYNC_RATE_LIMIT_FLOOR", 30*time.Second)
	cfg.SyncLeaseDuration = durationSetting("SYNC_LEASE_DURATION", time.Minute)
	cfg.ReconcileInterval = durationSetting("RECONCILE_INTERVAL", 10*time.Minute)
	cfg.WebhookSweepInterval = durationSetting("WEBHOOK_SWEEP_INTERVAL", 5*time.Minute)

	cfg.WebhookRateLimit = viper.GetString("WEBHOOK_RATE_LIMIT")

	return cfg, nil
}

// durationSetting parses a viper duration value, falling back with a warning
// on bad input.
func durationSetting(key string, fallback time.Duration) time.Duration {
	raw := viper.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("Warning: Invalid value for %s ('%s'). Defaulting to %s.\n", key, raw, fallback)
		return fallback
	}
	return d
}
