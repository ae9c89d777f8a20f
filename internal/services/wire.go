package services

import (
	"github.com/jmoiron/sqlx"

	"github.com/stwalsh4118/dealdesk/internal/config"
	"github.com/stwalsh4118/dealdesk/internal/logger"
	"github.com/stwalsh4118/dealdesk/internal/numeric"
	"github.com/stwalsh4118/dealdesk/internal/schema"
	"github.com/stwalsh4118/dealdesk/internal/telemetry"
)

// New wires the engine, aggregator, and facade over one database handle.
func New(db *sqlx.DB, catalog schema.Catalog, cfg config.EngineConfig, rec *telemetry.Recorder, log *logger.Logger) DealService {
	repos := NewRepositories(catalog)
	policy := numeric.NewPolicy(cfg.NumericMax)

	engine := NewUpsertEngine(db, repos, policy, log.With(map[string]interface{}{"component": "upsert"}), EngineOptions{
		TxTimeout: cfg.TxTimeout,
		Recorder:  rec,
	})
	aggregator := NewAggregator(db, repos, log.With(map[string]interface{}{"component": "aggregator"}), AggregatorOptions{
		Concurrency: cfg.AggregateConcurrency,
		Recorder:    rec,
	})
	return NewDealService(engine, aggregator, repos.Deals, db, policy, log, ServiceOptions{
		MaxRetries: cfg.MaxRetries,
		Recorder:   rec,
	})
}
