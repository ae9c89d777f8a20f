package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pressly/goose/v3"
)

const migrationsDir = "migrations"

func setupGoose() error {
	goose.SetBaseFS(EmbedMigrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose set dialect: %w", err)
	}
	return nil
}

// RunMigrations executes all pending goose migrations against the deal schema.
// Migrations are unqualified and land in the connection's search_path, so a
// dbSchema other than public is created first and must be that search_path.
func RunMigrations(ctx context.Context, db *sql.DB, dbSchema string) error {
	if err := setupGoose(); err != nil {
		return err
	}
	if dbSchema != "" && dbSchema != "public" {
		if _, err := db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{dbSchema}.Sanitize()); err != nil {
			return fmt.Errorf("create schema %s: %w", dbSchema, err)
		}
	}
	if err := goose.UpContext(ctx, db, migrationsDir); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// MigrationVersion returns the currently applied migration version.
func MigrationVersion(ctx context.Context, db *sql.DB) (int64, error) {
	if err := setupGoose(); err != nil {
		return 0, err
	}
	version, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return 0, fmt.Errorf("goose version: %w", err)
	}
	return version, nil
}
