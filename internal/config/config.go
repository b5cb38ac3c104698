package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds the application configuration.
type Config struct {
	// Database configuration. Driver is "postgres" for deployments and
	// "sqlite3" for a single-file local mode.
	DatabaseDriver string
	DatabaseURL    string

	Port string

	// LoanPeriodDays is the default loan length applied when an issue
	// request carries no due date.
	LoanPeriodDays int

	// AuthRatePerMinute bounds registration and login attempts.
	AuthRatePerMinute int

	// Tracing configuration. When TracingEnabled is false the service
	// runs with a no-op tracer provider.
	TracingEnabled bool
	OTLPEndpoint   string
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{}

	cfg.DatabaseDriver = os.Getenv("DATABASE_DRIVER")
	if cfg.DatabaseDriver == "" {
		cfg.DatabaseDriver = "postgres"
	}
	if cfg.DatabaseDriver != "postgres" && cfg.DatabaseDriver != "sqlite3" {
		return nil, fmt.Errorf("unsupported DATABASE_DRIVER %q (want postgres or sqlite3)", cfg.DatabaseDriver)
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		if cfg.DatabaseDriver == "sqlite3" {
			cfg.DatabaseURL = "bookledger.db"
		} else {
			return nil, fmt.Errorf("DATABASE_URL is required when DATABASE_DRIVER is postgres")
		}
	}

	cfg.Port = os.Getenv("PORT")
	if cfg.Port == "" {
		cfg.Port = "8080"
	}

	var err error
	cfg.LoanPeriodDays, err = intFromEnv("LOAN_PERIOD_DAYS", 14)
	if err != nil {
		return nil, err
	}
	if cfg.LoanPeriodDays <= 0 {
		return nil, fmt.Errorf("LOAN_PERIOD_DAYS must be positive, got %d", cfg.LoanPeriodDays)
	}

	cfg.AuthRatePerMinute, err = intFromEnv("AUTH_RATE_PER_MINUTE", 5)
	if err != nil {
		return nil, err
	}

	cfg.TracingEnabled = os.Getenv("TRACING_ENABLED") == "true"
	if cfg.TracingEnabled {
		cfg.OTLPEndpoint = os.Getenv("OTLP_ENDPOINT")
		if cfg.OTLPEndpoint == "" {
			cfg.OTLPEndpoint = "localhost:4318"
		}
	}

	return cfg, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
