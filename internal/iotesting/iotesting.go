// Package iotesting provides shared test utilities for storage-backed
// tests. This is an internal package for test infrastructure only.
package iotesting

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/clasier/catdb/internal/iostore"
	"github.com/clasier/catdb/pkg/config"
	"github.com/clasier/catdb/pkg/store"
	"github.com/stretchr/testify/require"
)

const (
	// TestDatabaseName is the database name used for all PostgreSQL
	// integration tests. Tests never run against a production database.
	TestDatabaseName = "catdb_test"
)

// NewSQLite opens a gateway on a fresh SQLite file inside t.TempDir().
// The gateway is closed when the test ends.
func NewSQLite(t *testing.T, batchSize int) store.Gateway {
	t.Helper()
	path := filepath.Join(t.TempDir(), config.DatabaseFile)
	gw, err := iostore.OpenSQLite(context.Background(), path, batchSize)
	require.NoError(t, err)
	t.Cleanup(func() { _ = gw.Close() })
	return gw
}

// PostgresConfig returns database settings for integration tests. Values
// come from CATDB_DATABASE_* environment variables or defaults; the
// database name is always TestDatabaseName.
func PostgresConfig() *config.DatabaseConfig {
	cfg := config.New()
	opts := []config.Option{config.OptDatabaseBackend("postgres")}
	if v := os.Getenv("CATDB_DATABASE_HOST"); v != "" {
		opts = append(opts, config.OptDatabaseHost(v))
	}
	if v, err := strconv.Atoi(os.Getenv("CATDB_DATABASE_PORT")); err == nil {
		opts = append(opts, config.OptDatabasePort(v))
	}
	if v := os.Getenv("CATDB_DATABASE_USER"); v != "" {
		opts = append(opts, config.OptDatabaseUser(v))
	}
	if v := os.Getenv("CATDB_DATABASE_PASSWORD"); v != "" {
		opts = append(opts, config.OptDatabasePassword(v))
	}
	opts = append(opts, config.OptDatabaseDatabase(TestDatabaseName))
	cfg.Update(opts)
	return &cfg.Database
}

// NewPostgres connects to the integration test database. The test is
// skipped in short mode or when the server is unreachable.
func NewPostgres(t *testing.T) store.Gateway {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	gw, err := iostore.OpenPostgres(context.Background(), PostgresConfig())
	if err != nil {
		t.Skipf("PostgreSQL is not available: %v", err)
	}
	t.Cleanup(func() { _ = gw.Close() })
	return gw
}
