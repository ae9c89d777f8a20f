package database

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/stwalsh4118/dealdesk/internal/config"
)

// Database wraps the pgx connection pool and a database/sql view of the
// same pool for code written against sqlx.
type Database struct {
	Pool *pgxpool.Pool
	SQL  *sqlx.DB
	// Schema is the search_path the pool was opened with; empty means the
	// server default.
	Schema string
}

// DSN builds the connection string for cfg.
func DSN(cfg config.DatabaseConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     cfg.Host + ":" + cfg.Port,
		Path:     "/" + cfg.Name,
		RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
	}
	return u.String()
}

// NewPostgresPool creates a new PostgreSQL connection pool using pgx.
// It configures the pool based on the provided database configuration,
// tests the connection, and returns a Database instance.
func NewPostgresPool(ctx context.Context, cfg config.DatabaseConfig) (*Database, error) {
	// Parse connection string and create pool config
	poolConfig, err := pgxpool.ParseConfig(DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	// Configure connection pool settings
	poolConfig.MinConns = int32(cfg.PoolMin)
	poolConfig.MaxConns = int32(cfg.PoolMax)

	// Set connection timeouts
	poolConfig.ConnConfig.ConnectTimeout = 5 * time.Second
	poolConfig.MaxConnIdleTime = 30 * time.Second
	poolConfig.MaxConnLifetime = 1 * time.Hour

	// Health check period (how often to check idle connections)
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	SetSearchPath(poolConfig, cfg.Schema)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test the connection immediately
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := FromPool(pool)
	db.Schema = cfg.Schema
	return db, nil
}

// SetSearchPath makes dbSchema the only schema on the search_path of every
// connection the pool opens. An empty name keeps the server default.
func SetSearchPath(cfg *pgxpool.Config, dbSchema string) {
	if dbSchema == "" {
		return
	}
	cfg.ConnConfig.RuntimeParams["search_path"] = pgx.Identifier{dbSchema}.Sanitize()
}

// FromPool wraps an existing pool. The sqlx handle borrows connections from
// the pool, so both views share limits and lifetime.
func FromPool(pool *pgxpool.Pool) *Database {
	return &Database{
		Pool: pool,
		SQL:  sqlx.NewDb(stdlib.OpenDBFromPool(pool), "pgx"),
	}
}

// Ping checks if the database connection is alive.
// It returns an error if the connection is not available.
func (db *Database) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// Migrate applies pending schema migrations.
func (db *Database) Migrate(ctx context.Context) error {
	return RunMigrations(ctx, db.SQL.DB, db.Schema)
}

// Close gracefully closes the database/sql handle and the connection pool.
func (db *Database) Close() {
	if db.SQL != nil {
		_ = db.SQL.Close()
	}
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// Stats returns statistics about the connection pool.
// This is useful for monitoring and debugging.
func (db *Database) Stats() *pgxpool.Stat {
	if db.Pool == nil {
		return nil
	}
	return db.Pool.Stat()
}
