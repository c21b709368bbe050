package bootstrap

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"vihadmin/internal/platform/config"
	"vihadmin/internal/platform/db"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sqliteConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		ServiceName:        "vihadmin-lifecycle-test",
		HTTPPort:           "0",
		DatabaseDriver:     db.DriverSQLite,
		SQLitePath:         filepath.Join(t.TempDir(), "bootstrap.db"),
		SequenceBackend:    config.SequenceBackendDatabase,
		LogLevel:           "error",
		LogFormat:          "text",
		OutboxPollInterval: time.Second,
		OutboxBatchSize:    10,
		IdempotencyTTL:     time.Hour,
	}
}

func TestBuildRuntimeWiresLifecycleOnSQLite(t *testing.T) {
	ctx := context.Background()
	cfg := sqliteConfig(t)
	require.NoError(t, cfg.Validate())

	runtime, err := BuildRuntime(ctx, cfg, "test", true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = runtime.Close() })

	require.NoError(t, runtime.Ping(ctx))

	document, err := runtime.Module.Create(ctx, "CONTRACT", 2025, nil)
	require.NoError(t, err)
	assert.Equal(t, "VIH-CON-2025-0001", document.SequenceID)

	families, err := runtime.Registry.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, family := range families {
		names = append(names, family.GetName())
	}
	assert.Contains(t, names, "document_sequence_allocations_total")
}

func TestMigrateIsRepeatable(t *testing.T) {
	cfg := sqliteConfig(t)
	require.NoError(t, Migrate(context.Background(), cfg))
	require.NoError(t, Migrate(context.Background(), cfg))
}

func TestWorkerRelaysThroughInProcessBus(t *testing.T) {
	ctx := context.Background()
	cfg := sqliteConfig(t)
	require.NoError(t, Migrate(ctx, cfg))

	worker, err := BuildWorker(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = worker.Close() })

	_, err = worker.runtime.Module.Create(ctx, "ADM-PUR", 2025, nil)
	require.NoError(t, err)

	report, err := worker.outboxRelay.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Published)
}

func TestNormalizeAddr(t *testing.T) {
	assert.Equal(t, ":8080", normalizeAddr(""))
	assert.Equal(t, ":9000", normalizeAddr("9000"))
	assert.Equal(t, ":9000", normalizeAddr(" :9000 "))
}
