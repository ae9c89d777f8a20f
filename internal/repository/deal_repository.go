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

// DealRepository defines data access for the deal header table.
type DealRepository interface {
	// FindByID returns the deal header keyed by logical field name, plus
	// "id" and the audit columns the table has.
	// Returns nil, nil if the deal does not exist.
	FindByID(ctx context.Context, q sqlx.QueryerContext, dealID int64) (map[string]any, error)

	// Lock takes a row lock on the deal for the rest of the transaction.
	// It reports false if the deal does not exist.
	Lock(ctx context.Context, q sqlx.QueryerContext, dealID int64) (bool, error)

	// Create inserts a deal header and returns its id.
	Create(ctx context.Context, q sqlx.QueryerContext, values []numeric.Value, actor string) (int64, error)

	// Update writes the supplied header fields in place.
	Update(ctx context.Context, q sqlx.ExecerContext, dealID int64, values []numeric.Value) (WriteResult, error)

	// List returns up to limit deal headers, most recently updated first.
	List(ctx context.Context, q sqlx.QueryerContext, limit int) ([]map[string]any, error)
}

type dealRepository struct {
	catalog schema.Catalog
	header  models.Tab
}

// NewDealRepository creates a DealRepository resolving columns through catalog.
func NewDealRepository(catalog schema.Catalog) DealRepository {
	return &dealRepository{
		catalog: catalog,
		header:  models.MustTab(models.TabProperty),
	}
}

func (r *dealRepository) describe(ctx context.Context) (schema.TableDescriptor, string, error) {
	desc, err := r.catalog.DescribeTable(ctx, models.DealsTable)
	if err != nil {
		return schema.TableDescriptor{}, "", err
	}
	idCol, err := schema.ResolveIDColumn(desc, models.DealIDColumns...)
	if err != nil {
		return schema.TableDescriptor{}, "", err
	}
	return desc, idCol, nil
}

func (r *dealRepository) FindByID(ctx context.Context, q sqlx.QueryerContext, dealID int64) (map[string]any, error) {
	desc, idCol, err := r.describe(ctx)
	if err != nil {
		return nil, err
	}

	stmt, err := sqlbuild.Select(desc, nil, []sqlbuild.Condition{sqlbuild.Eq(idCol, dealID)}, sqlbuild.SelectOptions{})
	if err != nil {
		return nil, err
	}

	row := make(map[string]any)
	if err := q.QueryRowxContext(ctx, stmt.SQL, stmt.Args...).MapScan(row); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.Classify(fmt.Sprintf("find deal %d", dealID), err)
	}
	return r.record(desc, idCol, row), nil
}

func (r *dealRepository) Lock(ctx context.Context, q sqlx.QueryerContext, dealID int64) (bool, error) {
	desc, idCol, err := r.describe(ctx)
	if err != nil {
		return false, err
	}

	stmt, err := sqlbuild.Select(desc, []string{idCol}, []sqlbuild.Condition{sqlbuild.Eq(idCol, dealID)}, sqlbuild.SelectOptions{ForUpdate: true})
	if err != nil {
		return false, err
	}

	var id any
	if err := q.QueryRowxContext(ctx, stmt.SQL, stmt.Args...).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, apperrors.Classify(fmt.Sprintf("lock deal %d", dealID), err)
	}
	return true, nil
}

func (r *dealRepository) Create(ctx context.Context, q sqlx.QueryerContext, values []numeric.Value, actor string) (int64, error) {
	desc, idCol, err := r.describe(ctx)
	if err != nil {
		return 0, err
	}

	sets, _ := assignments(desc, values)
	if actor != "" {
		sets = setIfPresent(desc, sets, models.ColumnCreatedBy, actor)
	}

	stmt, err := sqlbuild.Insert(desc, sets, idCol)
	if err != nil {
		return 0, err
	}

	var raw any
	if err := q.QueryRowxContext(ctx, stmt.SQL, stmt.Args...).Scan(&raw); err != nil {
		return 0, apperrors.Classify("create deal", err)
	}
	id, ok := toInt64(raw)
	if !ok {
		return 0, &apperrors.SchemaResolutionError{Table: desc.Name, Column: idCol, Reason: "identifier is not an integer"}
	}
	return id, nil
}

func (r *dealRepository) Update(ctx context.Context, q sqlx.ExecerContext, dealID int64, values []numeric.Value) (WriteResult, error) {
	desc, idCol, err := r.describe(ctx)
	if err != nil {
		return WriteResult{}, err
	}

	sets, omitted := assignments(desc, values)
	sets = touchIfPresent(desc, sets, models.ColumnUpdatedAt)

	stmt, err := sqlbuild.Update(desc, sets, []sqlbuild.Condition{sqlbuild.Eq(idCol, dealID)})
	if err != nil {
		return WriteResult{}, err
	}
	result := WriteResult{ID: dealID, Found: true, Omitted: omitted}
	if stmt.Empty() {
		return result, nil
	}

	res, err := q.ExecContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return WriteResult{}, apperrors.Classify(fmt.Sprintf("update deal %d", dealID), err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return WriteResult{}, apperrors.Classify(fmt.Sprintf("update deal %d", dealID), err)
	}
	result.Found = affected > 0
	return result, nil
}

func (r *dealRepository) List(ctx context.Context, q sqlx.QueryerContext, limit int) ([]map[string]any, error) {
	desc, idCol, err := r.describe(ctx)
	if err != nil {
		return nil, err
	}

	order := idCol
	if desc.HasColumn(models.ColumnUpdatedAt) {
		order = models.ColumnUpdatedAt
	}
	stmt, err := sqlbuild.Select(desc, nil, nil, sqlbuild.SelectOptions{Limit: limit, OrderBy: order, OrderDesc: true})
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryxContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, apperrors.Classify("list deals", err)
	}
	defer rows.Close()

	deals := []map[string]any{}
	for rows.Next() {
		row := make(map[string]any)
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("failed to scan deal row: %w", err)
		}
		deals = append(deals, r.record(desc, idCol, row))
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Classify("list deals", err)
	}
	return deals, nil
}

// record converts a scanned deal row. When no deal_name column exists the
// display name is taken from whatever the table uses as a name column.
func (r *dealRepository) record(desc schema.TableDescriptor, idCol string, row map[string]any) map[string]any {
	record := logical(desc, r.header.Fields, row)
	if id, ok := toInt64(row[idCol]); ok {
		record["id"] = id
	}
	if _, ok := record["deal_name"]; !ok {
		if col, err := schema.ResolveNameColumn(desc, models.DealNameColumns...); err == nil {
			if v, ok := row[col]; ok {
				record["deal_name"] = Normalize(models.FieldText, v)
			}
		}
	}
	for _, col := range []string{models.ColumnCreatedBy, models.ColumnCreatedAt, models.ColumnUpdatedAt} {
		if v, ok := row[col]; ok {
			record[col] = plain(v)
		}
	}
	return record
}
