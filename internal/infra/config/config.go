package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the notifier.
type AppConfig struct {
	DatabaseURL     string
	LedgerGraphURL  string
	HTTPListenAddr  string
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubject    string
	LogLevel        string
	Environment     string

	PollIntervalSeconds int
	CronSpecDailySweep  string // daily deadline sweep
	CronSpecSweepRetry  string // more frequent fallback sweep
	CronSpecWeeklyReset string // dedup registry reset
	PushTTLSeconds      int
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.LedgerGraphURL = os.Getenv("LEDGER_GRAPH_URL")
	if cfg.LedgerGraphURL == "" {
		return nil, fmt.Errorf("LEDGER_GRAPH_URL is not set")
	}

	cfg.VAPIDPublicKey = os.Getenv("VAPID_PUBLIC_KEY")
	if cfg.VAPIDPublicKey == "" {
		return nil, fmt.Errorf("VAPID_PUBLIC_KEY is not set")
	}
	cfg.VAPIDPrivateKey = os.Getenv("VAPID_PRIVATE_KEY")
	if cfg.VAPIDPrivateKey == "" {
		return nil, fmt.Errorf("VAPID_PRIVATE_KEY is not set")
	}
	cfg.VAPIDSubject = os.Getenv("VAPID_SUBJECT")
	if cfg.VAPIDSubject == "" {
		cfg.VAPIDSubject = "mailto:support@example.com"
	}

	cfg.HTTPListenAddr = os.Getenv("HTTP_LISTEN_ADDR")
	if cfg.HTTPListenAddr == "" {
		cfg.HTTPListenAddr = ":8080"
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info" // Default log level
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development" // Default environment
	}

	pollStr := os.Getenv("POLL_INTERVAL_SECONDS")
	if pollStr == "" {
		cfg.PollIntervalSeconds = 30
	} else {
		n, err := strconv.Atoi(pollStr)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid POLL_INTERVAL_SECONDS: %q", pollStr)
		}
		cfg.PollIntervalSeconds = n
	}

	cfg.CronSpecDailySweep = os.Getenv("CRON_SPEC_DAILY_SWEEP")
	if cfg.CronSpecDailySweep == "" {
		cfg.CronSpecDailySweep = "0 9 * * *" // Default: 9:00 AM daily
	}
	cfg.CronSpecSweepRetry = os.Getenv("CRON_SPEC_SWEEP_RETRY")
	if cfg.CronSpecSweepRetry == "" {
		cfg.CronSpecSweepRetry = "0 * * * *" // Default: hourly
	}
	cfg.CronSpecWeeklyReset = os.Getenv("CRON_SPEC_WEEKLY_RESET")
	if cfg.CronSpecWeeklyReset == "" {
		cfg.CronSpecWeeklyReset = "0 0 * * 1" // Default: Monday midnight
	}

	ttlStr := os.Getenv("PUSH_TTL_SECONDS")
	if ttlStr == "" {
		cfg.PushTTLSeconds = 3600
	} else {
		n, err := strconv.Atoi(ttlStr)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid PUSH_TTL_SECONDS: %q", ttlStr)
		}
		cfg.PushTTLSeconds = n
	}

	return cfg, nil
}
