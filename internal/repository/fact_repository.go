package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	apperrors "github.com/stwalsh4118/dealdesk/internal/errors"
	"github.com/stwalsh4118/dealdesk/internal/models"
	"github.com/stwalsh4118/dealdesk/internal/schema"
	"github.com/stwalsh4118/dealdesk/internal/sqlbuild"
)

// FactRepository defines data access for the per-deal assumption fact row.
// The row is addressed by its deal column; there is at most one per deal.
type FactRepository interface {
	// FindByDeal returns the deal's fact row. With lock set the row is
	// locked for the rest of the transaction.
	// Returns nil, nil if the deal has no fact row yet.
	FindByDeal(ctx context.Context, q sqlx.QueryerContext, dealID int64, lock bool) (*models.AssumptionFact, error)

	// Create inserts an empty fact row for the deal.
	Create(ctx context.Context, q sqlx.ExecerContext, dealID int64, actor string) error

	// SetPointer points the deal's fact row at a dimension record.
	SetPointer(ctx context.Context, q sqlx.ExecerContext, dealID int64, tab models.Tab, dimensionID int64, actor string) error
}

const uniqueViolation = "23505"

type factRepository struct {
	catalog schema.Catalog
}

// NewFactRepository creates a FactRepository resolving columns through catalog.
func NewFactRepository(catalog schema.Catalog) FactRepository {
	return &factRepository{catalog: catalog}
}

func (r *factRepository) describe(ctx context.Context) (schema.TableDescriptor, string, error) {
	desc, err := r.catalog.DescribeTable(ctx, models.FactTable)
	if err != nil {
		return schema.TableDescriptor{}, "", err
	}
	if !desc.Exists {
		return schema.TableDescriptor{}, "", &apperrors.SchemaResolutionError{Table: models.FactTable, Reason: "table does not exist"}
	}
	dealCol, ok := desc.FirstOf(models.FactDealColumns...)
	if !ok {
		return schema.TableDescriptor{}, "", &apperrors.SchemaResolutionError{Table: desc.Name, Column: "deal_id", Reason: "no deal reference column"}
	}
	return desc, dealCol, nil
}

func (r *factRepository) FindByDeal(ctx context.Context, q sqlx.QueryerContext, dealID int64, lock bool) (*models.AssumptionFact, error) {
	desc, dealCol, err := r.describe(ctx)
	if err != nil {
		return nil, err
	}

	pointers := make(map[models.TabKind]string)
	columns := []string{dealCol}
	for _, tab := range models.DimensionTabs() {
		if col, ok := desc.FirstOf(tab.PointerColumns()...); ok {
			pointers[tab.Kind] = col
			columns = append(columns, col)
		}
	}

	stmt, err := sqlbuild.Select(desc, columns, []sqlbuild.Condition{sqlbuild.Eq(dealCol, dealID)}, sqlbuild.SelectOptions{ForUpdate: lock})
	if err != nil {
		return nil, err
	}

	row := make(map[string]any)
	if err := q.QueryRowxContext(ctx, stmt.SQL, stmt.Args...).MapScan(row); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.Classify(fmt.Sprintf("find fact for deal %d", dealID), err)
	}

	fact := &models.AssumptionFact{DealID: dealID}
	for kind, col := range pointers {
		if id, ok := toInt64(row[col]); ok {
			fact.SetPointer(kind, id)
		}
	}
	return fact, nil
}

func (r *factRepository) Create(ctx context.Context, q sqlx.ExecerContext, dealID int64, actor string) error {
	desc, dealCol, err := r.describe(ctx)
	if err != nil {
		return err
	}

	sets := []sqlbuild.Assignment{sqlbuild.Set(dealCol, dealID)}
	if actor != "" {
		sets = setIfPresent(desc, sets, models.ColumnCreatedBy, actor)
		sets = setIfPresent(desc, sets, models.ColumnUpdatedBy, actor)
	}

	stmt, err := sqlbuild.Insert(desc, sets, "")
	if err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx, stmt.SQL, stmt.Args...); err != nil {
		// Another transaction created the row first; retrying finds it.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return &apperrors.TransientStorageError{Op: "create fact", Err: err}
		}
		return apperrors.Classify(fmt.Sprintf("create fact for deal %d", dealID), err)
	}
	return nil
}

func (r *factRepository) SetPointer(ctx context.Context, q sqlx.ExecerContext, dealID int64, tab models.Tab, dimensionID int64, actor string) error {
	desc, dealCol, err := r.describe(ctx)
	if err != nil {
		return err
	}

	pointer, ok := desc.FirstOf(tab.PointerColumns()...)
	if !ok {
		return &apperrors.SchemaResolutionError{Table: desc.Name, Column: tab.FactColumn, Reason: "no pointer column for " + string(tab.Kind)}
	}

	sets := []sqlbuild.Assignment{sqlbuild.Set(pointer, dimensionID)}
	if actor != "" {
		sets = setIfPresent(desc, sets, models.ColumnUpdatedBy, actor)
	}
	sets = touchIfPresent(desc, sets, models.ColumnUpdatedAt)

	stmt, err := sqlbuild.Update(desc, sets, []sqlbuild.Condition{sqlbuild.Eq(dealCol, dealID)})
	if err != nil {
		return err
	}

	res, err := q.ExecContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return apperrors.Classify(fmt.Sprintf("set %s pointer for deal %d", tab.Kind, dealID), err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return apperrors.Classify(fmt.Sprintf("set %s pointer for deal %d", tab.Kind, dealID), err)
	}
	if affected == 0 {
		return fmt.Errorf("set %s pointer: no fact row for deal %d", tab.Kind, dealID)
	}
	return nil
}
