package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	apperrors "github.com/stwalsh4118/dealdesk/internal/errors"
	"github.com/stwalsh4118/dealdesk/internal/models"
	"github.com/stwalsh4118/dealdesk/internal/numeric"
	"github.com/stwalsh4118/dealdesk/internal/schema"
	"github.com/stwalsh4118/dealdesk/internal/sqlbuild"
)

// DimensionRepository defines data access for the 13 dim_* tables.
type DimensionRepository interface {
	// Insert creates a dimension record holding only the supplied fields and
	// returns its id. The record is linked to dealID when the table has a
	// deal column.
	Insert(ctx context.Context, q sqlx.QueryerContext, tab models.Tab, dealID int64, values []numeric.Value) (WriteResult, error)

	// Update writes the supplied fields onto an existing record. Fields that
	// were not supplied keep their stored values. Found is false if the
	// record no longer exists.
	Update(ctx context.Context, q sqlx.ExecerContext, tab models.Tab, dimensionID int64, values []numeric.Value) (WriteResult, error)

	// FindByID returns the record's fields keyed by logical name.
	// Returns nil, nil if the record does not exist.
	FindByID(ctx context.Context, q sqlx.QueryerContext, tab models.Tab, dimensionID int64) (map[string]any, error)
}

type dimensionRepository struct {
	catalog schema.Catalog
}

// NewDimensionRepository creates a DimensionRepository resolving columns through catalog.
func NewDimensionRepository(catalog schema.Catalog) DimensionRepository {
	return &dimensionRepository{catalog: catalog}
}

func (r *dimensionRepository) describe(ctx context.Context, tab models.Tab) (schema.TableDescriptor, string, error) {
	if tab.IsHeader() {
		return schema.TableDescriptor{}, "", fmt.Errorf("tab %s has no dimension table", tab.Kind)
	}
	desc, err := r.catalog.DescribeTable(ctx, tab.Table)
	if err != nil {
		return schema.TableDescriptor{}, "", err
	}
	idCol, err := schema.ResolveIDColumn(desc, tab.IDColumns()...)
	if err != nil {
		return schema.TableDescriptor{}, "", err
	}
	return desc, idCol, nil
}

func (r *dimensionRepository) Insert(ctx context.Context, q sqlx.QueryerContext, tab models.Tab, dealID int64, values []numeric.Value) (WriteResult, error) {
	desc, idCol, err := r.describe(ctx, tab)
	if err != nil {
		return WriteResult{}, err
	}

	sets, omitted := assignments(desc, values)
	sets = setIfPresent(desc, sets, models.DimensionDealLink, dealID)

	stmt, err := sqlbuild.Insert(desc, sets, idCol)
	if err != nil {
		return WriteResult{}, err
	}

	var raw any
	if err := q.QueryRowxContext(ctx, stmt.SQL, stmt.Args...).Scan(&raw); err != nil {
		return WriteResult{}, apperrors.Classify(fmt.Sprintf("insert %s", desc.Name), err)
	}
	id, ok := toInt64(raw)
	if !ok {
		return WriteResult{}, &apperrors.SchemaResolutionError{Table: desc.Name, Column: idCol, Reason: "identifier is not an integer"}
	}
	return WriteResult{ID: id, Found: true, Omitted: omitted}, nil
}

func (r *dimensionRepository) Update(ctx context.Context, q sqlx.ExecerContext, tab models.Tab, dimensionID int64, values []numeric.Value) (WriteResult, error) {
	desc, idCol, err := r.describe(ctx, tab)
	if err != nil {
		return WriteResult{}, err
	}

	sets, omitted := assignments(desc, values)
	sets = touchIfPresent(desc, sets, models.ColumnUpdatedAt)

	stmt, err := sqlbuild.Update(desc, sets, []sqlbuild.Condition{sqlbuild.Eq(idCol, dimensionID)})
	if err != nil {
		return WriteResult{}, err
	}
	result := WriteResult{ID: dimensionID, Found: true, Omitted: omitted}
	if stmt.Empty() {
		return result, nil
	}

	res, err := q.ExecContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return WriteResult{}, apperrors.Classify(fmt.Sprintf("update %s %d", desc.Name, dimensionID), err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return WriteResult{}, apperrors.Classify(fmt.Sprintf("update %s %d", desc.Name, dimensionID), err)
	}
	result.Found = affected > 0
	return result, nil
}

func (r *dimensionRepository) FindByID(ctx context.Context, q sqlx.QueryerContext, tab models.Tab, dimensionID int64) (map[string]any, error) {
	desc, idCol, err := r.describe(ctx, tab)
	if err != nil {
		return nil, err
	}

	stmt, err := sqlbuild.Select(desc, nil, []sqlbuild.Condition{sqlbuild.Eq(idCol, dimensionID)}, sqlbuild.SelectOptions{})
	if err != nil {
		return nil, err
	}

	row := make(map[string]any)
	if err := q.QueryRowxContext(ctx, stmt.SQL, stmt.Args...).MapScan(row); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.Classify(fmt.Sprintf("find %s %d", desc.Name, dimensionID), err)
	}
	return logical(desc, tab.Fields, row), nil
}
