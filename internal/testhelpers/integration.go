// Package testhelpers provides shared infrastructure for integration tests.
package testhelpers

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	pg "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	postgresImage    = "postgres:16-alpine"
	postgresUser     = "testuser"
	postgresPassword = "testpass"
	postgresDatabase = "testdb"
)

// TestContainer wraps the PostgreSQL testcontainer with helper methods.
type TestContainer struct {
	container *pg.PostgresContainer
	connStr   string
	pool      *pgxpool.Pool
}

// NewTestContainer creates a new PostgreSQL test container with migrations applied.
// The container is cleaned up when the test completes.
func NewTestContainer(ctx context.Context, t *testing.T) *TestContainer {
	t.Helper()

	container, err := pg.Run(
		ctx,
		postgresImage,
		pg.WithDatabase(postgresDatabase),
		pg.WithUsername(postgresUser),
		pg.WithPassword(postgresPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start PostgreSQL container")

	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	tc := &TestContainer{
		container: container,
		connStr:   connStr,
	}

	tc.runMigrations(t)
	tc.pool = tc.createPool(ctx, t)

	return tc
}

func (tc *TestContainer) runMigrations(t *testing.T) {
	t.Helper()

	sqlDB, err := sql.Open("pgx", tc.connStr)
	require.NoError(t, err, "failed to open database connection")

	defer sqlDB.Close()

	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
	require.NoError(t, err, "failed to create migration driver")

	migrationsPath, err := findMigrationsDir()
	require.NoError(t, err, "failed to get migrations path")

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"postgres",
		driver,
	)
	require.NoError(t, err, "failed to create migrate instance")

	defer m.Close()

	err = m.Up()
	require.NoError(t, err, "failed to run migrations")

	version, dirty, err := m.Version()
	require.NoError(t, err, "failed to get migration version")
	require.False(t, dirty, "database is in dirty state at version %d", version)
}

func (tc *TestContainer) createPool(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()

	config, err := pgxpool.ParseConfig(tc.connStr)
	require.NoError(t, err, "failed to parse connection string")

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute
	config.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	require.NoError(t, err, "failed to create connection pool")

	require.NoError(t, pool.Ping(ctx), "failed to ping database")

	t.Cleanup(func() {
		pool.Close()
	})

	return pool
}

// Pool returns the pgxpool connection pool.
func (tc *TestContainer) Pool() *pgxpool.Pool {
	return tc.pool
}

// ConnectionString returns the database connection string.
func (tc *TestContainer) ConnectionString() string {
	return tc.connStr
}

// Truncate truncates the given tables for test isolation.
func (tc *TestContainer) Truncate(ctx context.Context, t *testing.T, tables ...string) {
	t.Helper()

	for _, table := range tables {
		_, err := tc.pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
		require.NoError(t, err, "failed to truncate table %s", table)
	}
}

// findMigrationsDir walks up from the working directory looking for a
// migrations folder containing .sql files.
func findMigrationsDir() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}

	for {
		migrationsPath := filepath.Join(dir, "migrations")

		if info, err := os.Stat(migrationsPath); err == nil && info.IsDir() {
			entries, err := os.ReadDir(migrationsPath)
			if err == nil {
				for _, entry := range entries {
					if filepath.Ext(entry.Name()) == ".sql" {
						return migrationsPath, nil
					}
				}
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("migrations directory not found")
		}

		dir = parent
	}
}
