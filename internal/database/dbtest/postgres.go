// Package dbtest starts a throwaway migrated Postgres for integration tests.
package dbtest

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/stwalsh4118/dealdesk/internal/database"
)

// Image is the Postgres image used for integration tests.
const Image = "postgres:16-alpine"

// Start runs a Postgres container, applies the migrations, and returns a
// connected Database. The test is skipped in short mode. Cleanup closes the
// pool and terminates the container.
func Start(t *testing.T) *database.Database {
	t.Helper()
	return StartInSchema(t, "")
}

// StartInSchema is Start with every connection's search_path set to dbSchema,
// the way the server opens its pool for a non-default DB_SCHEMA.
func StartInSchema(t *testing.T, dbSchema string) *database.Database {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := postgres.Run(ctx, Image,
		postgres.WithDatabase("dealdesk"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("Failed to terminate postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		t.Fatalf("Failed to parse connection string: %v", err)
	}
	database.SetSearchPath(poolConfig, dbSchema)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		t.Fatalf("Failed to create connection pool: %v", err)
	}
	db := database.FromPool(pool)
	db.Schema = dbSchema
	t.Cleanup(db.Close)

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}
