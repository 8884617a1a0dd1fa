package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var managed = []string{
	"PORT", "STORE_DRIVER", "DATABASE_URL", "SQLITE_PATH", "SEED_PATH", "REDIS_ADDR",
	"CUSTOMER_CACHE_TTL", "PLACEMENT_LOG_PATH", "REQUEST_TIMEOUT", "SHUTDOWN_TIMEOUT",
	"LOG_LEVEL", "OTEL_SERVICE_NAME", "OTEL_ENABLED", "OTEL_EXPORTER_OTLP_ENDPOINT",
	"OTEL_SAMPLE_RATIO", "OTEL_RESOURCE_ATTRIBUTES_ENV",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range managed {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.Equal(t, 5*time.Minute, cfg.CustomerCacheTTL)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 15*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, "order-service", cfg.ServiceName)
	assert.False(t, cfg.OTelEnabled)
	assert.Equal(t, 1.0, cfg.OTelSampleRatio)
	assert.Empty(t, cfg.RedisAddr)
	assert.Empty(t, cfg.PlacementLogPath)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("STORE_DRIVER", "Postgres")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("CUSTOMER_CACHE_TTL", "30s")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_SAMPLE_RATIO", "0.25")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr())
	assert.Equal(t, DriverPostgres, cfg.StoreDriver)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, 30*time.Second, cfg.CustomerCacheTTL)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.True(t, cfg.OTelEnabled)
	assert.Equal(t, 0.25, cfg.OTelSampleRatio)
}

func TestLoad_ReportsEveryInvalidVariable(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_DRIVER", "mongo")
	t.Setenv("REQUEST_TIMEOUT", "soon")
	t.Setenv("OTEL_ENABLED", "maybe")
	t.Setenv("LOG_LEVEL", "loud")
	t.Setenv("PORT", "http")

	_, err := Load()
	require.Error(t, err)
	for _, name := range []string{"STORE_DRIVER", "REQUEST_TIMEOUT", "OTEL_ENABLED", "LOG_LEVEL", "PORT"} {
		assert.Contains(t, err.Error(), name)
	}
}
