// Package dbtest starts a throwaway Postgres for integration tests.
package dbtest

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"movie-auth/backend/internal/db"
	"movie-auth/backend/internal/db/migrate"
)

// StartPostgres runs postgres:15-alpine, applies every migration and returns an open pool.
// The test is skipped under -short or when no container runtime is available.
func StartPostgres(t *testing.T) *sql.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping Postgres integration test in -short mode")
	}
	ctx := context.Background()

	var container *postgres.PostgresContainer
	var err error
	func() {
		// testcontainers panics when Docker is missing on some platforms.
		defer func() {
			if r := recover(); r != nil {
				t.Skipf("container runtime unavailable: %v", r)
			}
		}()
		container, err = postgres.Run(ctx, "postgres:15-alpine",
			postgres.WithDatabase("movieauth"),
			postgres.WithUsername("movieauth"),
			postgres.WithPassword("movieauth"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second),
			),
		)
	}()
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}
	if err := migrate.Run(dsn, migrate.DirectionUp); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	conn, err := db.Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// Truncate empties the given tables.
func Truncate(t *testing.T, conn *sql.DB, tables ...string) {
	t.Helper()
	for _, table := range tables {
		if _, err := conn.Exec("TRUNCATE TABLE " + table); err != nil {
			t.Fatalf("truncate %s: %v", table, err)
		}
	}
}
