// Package app assembles the engine from configuration. The ops server and
// dealctl share it so both run the same catalog, retry, and telemetry setup.
package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/stwalsh4118/dealdesk/internal/config"
	"github.com/stwalsh4118/dealdesk/internal/database"
	apperrors "github.com/stwalsh4118/dealdesk/internal/errors"
	"github.com/stwalsh4118/dealdesk/internal/logger"
	"github.com/stwalsh4118/dealdesk/internal/schema"
	"github.com/stwalsh4118/dealdesk/internal/services"
	"github.com/stwalsh4118/dealdesk/internal/telemetry"
)

// Runtime is a connected engine and everything it was built from.
type Runtime struct {
	Config   *config.Config
	Log      *logger.Logger
	DB       *database.Database
	Metrics  *prometheus.Registry
	Recorder *telemetry.Recorder
	// Catalog is the catalog the repositories resolve columns through.
	Catalog schema.Catalog
	// Pinned is the struct-tag layout, used for compatibility checks in
	// either schema mode.
	Pinned *schema.Registry
	Deals  services.DealService
}

// Open connects to the database, optionally migrates it, and wires the
// services. The caller must Close the runtime.
func Open(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Runtime, error) {
	db, err := database.NewPostgresPool(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	log.Info("Database connection established", map[string]interface{}{
		"host":     cfg.Database.Host,
		"port":     cfg.Database.Port,
		"database": cfg.Database.Name,
		"pool_min": cfg.Database.PoolMin,
		"pool_max": cfg.Database.PoolMax,
	})

	rt, err := New(db, cfg, log)
	if err != nil {
		db.Close()
		return nil, err
	}

	if cfg.Database.MigrateOnStart {
		if _, err := rt.Migrate(ctx); err != nil {
			rt.Close()
			return nil, err
		}
	}
	return rt, nil
}

// New wires the services over an existing connection.
func New(db *database.Database, cfg *config.Config, log *logger.Logger) (*Runtime, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(db.SQL.DB, cfg.Database.Name),
	)
	rec := telemetry.New(reg)

	catalog, err := schema.Open(db.SQL, schema.Options{
		Mode:      cfg.Engine.SchemaMode,
		Schema:    cfg.Engine.Schema,
		CacheSize: cfg.Engine.SchemaCacheSize,
		CacheTTL:  cfg.Engine.SchemaCacheTTL,
		Recorder:  rec,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open schema catalog: %w", err)
	}

	return &Runtime{
		Config:   cfg,
		Log:      log,
		DB:       db,
		Metrics:  reg,
		Recorder: rec,
		Catalog:  catalog,
		Pinned:   schema.NewRegistry(cfg.Engine.Schema),
		Deals:    services.New(db.SQL, catalog, cfg.Engine, rec, log),
	}, nil
}

// Migrate applies pending migrations, drops cached table layouts, and
// returns the resulting schema version.
func (r *Runtime) Migrate(ctx context.Context) (int64, error) {
	if err := r.DB.Migrate(ctx); err != nil {
		return 0, err
	}
	r.Catalog.Invalidate()

	version, err := database.MigrationVersion(ctx, r.DB.SQL.DB)
	if err != nil {
		return 0, err
	}
	r.Log.Info("Migrations applied", map[string]interface{}{"version": version})
	return version, nil
}

// CheckSchema reports whether the live database has the pinned layout.
func (r *Runtime) CheckSchema(ctx context.Context) (schema.CompatibilityReport, error) {
	live := schema.NewIntrospector(r.DB.SQL, r.Config.Engine.Schema)
	return r.Pinned.CheckCompatibility(ctx, live)
}

// VerifyPinned fails when the catalog runs in registry mode and the live
// database lacks part of the pinned layout. Introspection needs no check.
func (r *Runtime) VerifyPinned(ctx context.Context) error {
	if r.Config.Engine.SchemaMode != schema.ModeRegistry {
		return nil
	}
	report, err := r.CheckSchema(ctx)
	if err != nil {
		return err
	}
	if !report.OK() {
		return &apperrors.SchemaResolutionError{Table: r.Config.Engine.Schema, Reason: report.String()}
	}
	r.Log.Info("Pinned schema verified", map[string]interface{}{"tables": report.CheckedTables})
	return nil
}

// Close releases the database connections.
func (r *Runtime) Close() {
	r.DB.Close()
}
