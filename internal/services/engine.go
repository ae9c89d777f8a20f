package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	apperrors "github.com/stwalsh4118/dealdesk/internal/errors"
	"github.com/stwalsh4118/dealdesk/internal/logger"
	"github.com/stwalsh4118/dealdesk/internal/models"
	"github.com/stwalsh4118/dealdesk/internal/numeric"
	"github.com/stwalsh4118/dealdesk/internal/repository"
	"github.com/stwalsh4118/dealdesk/internal/schema"
	"github.com/stwalsh4118/dealdesk/internal/telemetry"
)

// Repositories groups the star-schema repositories.
type Repositories struct {
	Deals      repository.DealRepository
	Facts      repository.FactRepository
	Dimensions repository.DimensionRepository

	catalog schema.Catalog
}

// NewRepositories builds all repositories over one catalog.
func NewRepositories(catalog schema.Catalog) Repositories {
	return Repositories{
		Deals:      repository.NewDealRepository(catalog),
		Facts:      repository.NewFactRepository(catalog),
		Dimensions: repository.NewDimensionRepository(catalog),
		catalog:    catalog,
	}
}

// Prefetch describes tables now and returns repositories that resolve them
// from that snapshot. Repositories assembled by hand are returned unchanged.
func (r Repositories) Prefetch(ctx context.Context, tables ...string) (Repositories, error) {
	if r.catalog == nil {
		return r, nil
	}
	snap, err := schema.Prefetch(ctx, r.catalog, tables...)
	if err != nil {
		return Repositories{}, err
	}
	return NewRepositories(snap), nil
}

// TabWriter saves one tab of a deal.
type TabWriter interface {
	SaveTab(ctx context.Context, tab string, dealID int64, fields map[string]any) (int64, error)
}

// EngineOptions tunes the UpsertEngine.
type EngineOptions struct {
	// TxTimeout bounds each save transaction. Zero means no deadline.
	TxTimeout time.Duration
	Recorder  *telemetry.Recorder
}

// UpsertEngine writes tab submissions into the star schema. Each save runs
// in its own transaction: the deal row is locked, the fact row is loaded or
// created, and the tab's dimension record is updated in place or inserted
// and linked from the fact row.
type UpsertEngine struct {
	db     *sqlx.DB
	repos  Repositories
	policy *numeric.Policy
	log    *logger.Logger
	opts   EngineOptions
}

// NewUpsertEngine creates an UpsertEngine.
func NewUpsertEngine(db *sqlx.DB, repos Repositories, policy *numeric.Policy, log *logger.Logger, opts EngineOptions) *UpsertEngine {
	if policy == nil {
		policy = numeric.NewPolicy(0)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &UpsertEngine{db: db, repos: repos, policy: policy, log: log, opts: opts}
}

// SaveTab writes the supplied fields of one tab and returns the id of the
// record written: the dimension record id, or the deal id for the property tab.
// Fields that were not supplied keep their stored values. Nothing is written
// unless the whole save succeeds.
func (e *UpsertEngine) SaveTab(ctx context.Context, tabName string, dealID int64, fields map[string]any) (int64, error) {
	tab, ok := models.ParseTab(tabName)
	if !ok {
		return 0, &apperrors.ValidationError{
			Field:  "tab",
			Reason: fmt.Sprintf("unknown tab %q, expected one of %s", tabName, strings.Join(models.TabNames(), ", ")),
		}
	}

	values, err := e.policy.Apply(tab, fields)
	if err != nil {
		return 0, err
	}

	if e.opts.TxTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.TxTimeout)
		defer cancel()
	}

	start := time.Now()
	id, err := e.save(ctx, tab, dealID, values)

	outcome := telemetry.OutcomeOK
	if err != nil {
		outcome = telemetry.OutcomeError
		e.log.Warn("Tab save failed", map[string]interface{}{
			"tab":     tab.Kind,
			"deal_id": dealID,
			"code":    apperrors.Code(err),
			"error":   err.Error(),
		})
	} else {
		e.log.Info("Tab saved", map[string]interface{}{
			"tab":         tab.Kind,
			"deal_id":     dealID,
			"record_id":   id,
			"fields":      len(values),
			"duration_ms": time.Since(start).Milliseconds(),
		})
	}
	e.opts.Recorder.TabSave(string(tab.Kind), outcome, time.Since(start))
	return id, err
}

// save describes every table the tab touches, then writes inside one
// transaction. Descriptors are read before BeginTxx so the transaction holds
// the only connection the save uses.
func (e *UpsertEngine) save(ctx context.Context, tab models.Tab, dealID int64, values []numeric.Value) (int64, error) {
	tables := []string{models.DealsTable}
	if !tab.IsHeader() {
		tables = append(tables, models.FactTable, tab.Table)
	}
	repos, err := e.repos.Prefetch(ctx, tables...)
	if err != nil {
		return 0, apperrors.Classify("describe tables", err)
	}

	return e.inTx(ctx, func(tx *sqlx.Tx) (int64, error) {
		if tab.IsHeader() {
			return e.saveHeader(ctx, tx, repos, dealID, values)
		}
		return e.saveDimension(ctx, tx, repos, tab, dealID, values)
	})
}

// inTx runs fn in a transaction, rolling back on any error.
func (e *UpsertEngine) inTx(ctx context.Context, fn func(tx *sqlx.Tx) (int64, error)) (int64, error) {
	tx, err := e.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, apperrors.Classify("begin transaction", err)
	}

	id, err := fn(tx)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			e.log.Error("Failed to roll back transaction", rbErr, nil)
		}
		return 0, apperrors.Classify("save tab", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, apperrors.Classify("commit transaction", err)
	}
	return id, nil
}

func lockDeal(ctx context.Context, tx *sqlx.Tx, repos Repositories, dealID int64) error {
	found, err := repos.Deals.Lock(ctx, tx, dealID)
	if err != nil {
		return err
	}
	if !found {
		return apperrors.DealNotFound(dealID)
	}
	return nil
}

func (e *UpsertEngine) saveHeader(ctx context.Context, tx *sqlx.Tx, repos Repositories, dealID int64, values []numeric.Value) (int64, error) {
	if err := lockDeal(ctx, tx, repos, dealID); err != nil {
		return 0, err
	}
	res, err := repos.Deals.Update(ctx, tx, dealID, values)
	if err != nil {
		return 0, err
	}
	if !res.Found {
		return 0, apperrors.DealNotFound(dealID)
	}
	e.logOmitted(models.TabProperty, res.Omitted)
	return dealID, nil
}

func (e *UpsertEngine) saveDimension(ctx context.Context, tx *sqlx.Tx, repos Repositories, tab models.Tab, dealID int64, values []numeric.Value) (int64, error) {
	if err := lockDeal(ctx, tx, repos, dealID); err != nil {
		return 0, err
	}
	actor := ActorFrom(ctx)

	fact, err := repos.Facts.FindByDeal(ctx, tx, dealID, true)
	if err != nil {
		return 0, err
	}
	if fact == nil {
		if err := repos.Facts.Create(ctx, tx, dealID, actor); err != nil {
			return 0, err
		}
		fact = &models.AssumptionFact{DealID: dealID}
	}

	if current, ok := fact.Pointer(tab.Kind); ok {
		res, err := repos.Dimensions.Update(ctx, tx, tab, current, values)
		if err != nil {
			return 0, err
		}
		if res.Found {
			e.logOmitted(tab.Kind, res.Omitted)
			return current, nil
		}
		e.log.Warn("Dimension record missing, inserting a new one", map[string]interface{}{
			"tab":       tab.Kind,
			"deal_id":   dealID,
			"record_id": current,
		})
	}

	res, err := repos.Dimensions.Insert(ctx, tx, tab, dealID, values)
	if err != nil {
		return 0, err
	}
	if err := repos.Facts.SetPointer(ctx, tx, dealID, tab, res.ID, actor); err != nil {
		return 0, err
	}
	e.logOmitted(tab.Kind, res.Omitted)
	return res.ID, nil
}

func (e *UpsertEngine) logOmitted(kind models.TabKind, omitted []string) {
	if len(omitted) == 0 {
		return
	}
	e.log.Debug("Skipped fields without a column", map[string]interface{}{
		"tab":    kind,
		"fields": omitted,
	})
}
