package services

import (
	"context"

	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/stwalsh4118/dealdesk/internal/errors"
	"github.com/stwalsh4118/dealdesk/internal/logger"
	"github.com/stwalsh4118/dealdesk/internal/models"
	"github.com/stwalsh4118/dealdesk/internal/telemetry"
)

// AssumptionReader loads the flattened assumptions of a deal.
type AssumptionReader interface {
	LoadDealAssumptions(ctx context.Context, dealID int64) (map[string]any, error)
}

// AggregatorOptions tunes the Aggregator.
type AggregatorOptions struct {
	// Concurrency bounds parallel dimension reads per deal. Values below 1 mean 1.
	Concurrency int
	Recorder    *telemetry.Recorder
}

// Aggregator assembles a deal's header and current dimension records into
// one record keyed by field name. It reads without a transaction.
type Aggregator struct {
	db    sqlx.QueryerContext
	repos Repositories
	log   *logger.Logger
	opts  AggregatorOptions
}

// NewAggregator creates an Aggregator reading through db.
func NewAggregator(db sqlx.QueryerContext, repos Repositories, log *logger.Logger, opts AggregatorOptions) *Aggregator {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Aggregator{db: db, repos: repos, log: log, opts: opts}
}

// LoadDealAssumptions returns the deal header merged with every dimension
// record the deal's fact row points at, in canonical tab order.
//
// Only a missing deal or a failed header read is an error. A missing fact
// table or row yields the header alone, and a dimension that cannot be read
// is left out of the record.
func (a *Aggregator) LoadDealAssumptions(ctx context.Context, dealID int64) (map[string]any, error) {
	header, err := a.repos.Deals.FindByID(ctx, a.db, dealID)
	if err != nil {
		return nil, err
	}
	if header == nil {
		return nil, apperrors.DealNotFound(dealID)
	}

	record := make(map[string]any, len(header))
	for k, v := range header {
		record[k] = v
	}

	fact, err := a.repos.Facts.FindByDeal(ctx, a.db, dealID, false)
	if err != nil {
		if err := ctxErr(ctx); err != nil {
			return nil, err
		}
		a.degrade(models.FactTable, dealID, err)
		return record, nil
	}
	if fact == nil {
		return record, nil
	}

	tabs := models.DimensionTabs()
	parts := make([]map[string]any, len(tabs))

	var g errgroup.Group
	g.SetLimit(a.opts.Concurrency)
	for i, tab := range tabs {
		id, ok := fact.Pointer(tab.Kind)
		if !ok {
			continue
		}
		g.Go(func() error {
			part, err := a.repos.Dimensions.FindByID(ctx, a.db, tab, id)
			switch {
			case err != nil:
				a.degrade(tab.Table, dealID, err)
			case part == nil:
				a.log.Warn("Dimension record referenced by fact row not found", map[string]interface{}{
					"table":     tab.Table,
					"deal_id":   dealID,
					"record_id": id,
				})
				a.opts.Recorder.DegradedRead(tab.Table)
			default:
				parts[i] = part
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctxErr(ctx); err != nil {
		return nil, err
	}

	// Field names are unique across tabs; on a collision the later tab wins.
	for _, part := range parts {
		for k, v := range part {
			record[k] = v
		}
	}
	return record, nil
}

func (a *Aggregator) degrade(table string, dealID int64, err error) {
	a.log.Warn("Skipping unreadable assumptions", map[string]interface{}{
		"table":   table,
		"deal_id": dealID,
		"code":    apperrors.Code(err),
		"error":   err.Error(),
	})
	a.opts.Recorder.DegradedRead(table)
}

// ctxErr reports a cancelled or expired context as a storage error.
func ctxErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Classify("load deal assumptions", err)
	}
	return nil
}
