package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "sqlite3")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PORT", "")
	t.Setenv("LOAN_PERIOD_DAYS", "")
	t.Setenv("AUTH_RATE_PER_MINUTE", "")
	t.Setenv("TRACING_ENABLED", "")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "sqlite3", cfg.DatabaseDriver)
	assert.Equal(t, "bookledger.db", cfg.DatabaseURL)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 14, cfg.LoanPeriodDays)
	assert.Equal(t, 5, cfg.AuthRatePerMinute)
	assert.False(t, cfg.TracingEnabled)
}

func TestLoadFromEnvPostgresRequiresURL(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")

	_, err := LoadFromEnv()
	require.Error(t, err)
}

func TestLoadFromEnvRejectsUnknownDriver(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "oracle")

	_, err := LoadFromEnv()
	require.Error(t, err)
}

func TestLoadFromEnvRejectsBadLoanPeriod(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "sqlite3")
	t.Setenv("LOAN_PERIOD_DAYS", "0")

	_, err := LoadFromEnv()
	require.Error(t, err)

	t.Setenv("LOAN_PERIOD_DAYS", "fourteen")
	_, err = LoadFromEnv()
	require.Error(t, err)
}

func TestLoadFromEnvTracing(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "sqlite3")
	t.Setenv("TRACING_ENABLED", "true")
	t.Setenv("OTLP_ENDPOINT", "")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.TracingEnabled)
	assert.Equal(t, "localhost:4318", cfg.OTLPEndpoint)
}
