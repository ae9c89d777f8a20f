package services

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/stwalsh4118/dealdesk/internal/models"
	"github.com/stwalsh4118/dealdesk/internal/schema"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err, "failed to create sqlmock")
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "pgx"), mock
}

// stubCatalog serves hand-written layouts for tests of schema drift.
type stubCatalog map[string][]string

func (c stubCatalog) DescribeTable(ctx context.Context, table string) (schema.TableDescriptor, error) {
	cols, ok := c[table]
	desc := schema.TableDescriptor{Schema: "public", Name: table, Exists: ok}
	for _, name := range cols {
		desc.Columns = append(desc.Columns, schema.Column{Name: name})
	}
	return desc, nil
}

func (c stubCatalog) ListTables(ctx context.Context) ([]string, error) { return nil, nil }

func (c stubCatalog) Invalidate(tables ...string) {}

func exact(sql string) string {
	return "^" + regexp.QuoteMeta(sql) + "$"
}

const lockDealSQL = `SELECT "id" FROM "public"."deals" WHERE "id" = $1 FOR UPDATE`

var (
	findFactForUpdate = `^SELECT "deal_id", "acquisition_id", .* FROM "public"\."fact_deal_assumptions" WHERE "deal_id" = \$1 FOR UPDATE$`
	findFact          = `^SELECT "deal_id", "acquisition_id", .* FROM "public"\."fact_deal_assumptions" WHERE "deal_id" = \$1$`
	findDeal          = `^SELECT "id", "deal_name", .* FROM "public"\."deals" WHERE "id" = \$1$`
)

func factColumns() []string {
	cols := []string{"deal_id"}
	for _, tab := range models.DimensionTabs() {
		cols = append(cols, tab.FactColumn)
	}
	return cols
}

// factRows returns a single fact row for dealID holding the given pointers.
func factRows(dealID int64, pointers map[models.TabKind]int64) *sqlmock.Rows {
	values := []driver.Value{dealID}
	for _, tab := range models.DimensionTabs() {
		if id, ok := pointers[tab.Kind]; ok {
			values = append(values, id)
		} else {
			values = append(values, nil)
		}
	}
	return sqlmock.NewRows(factColumns()).AddRow(values...)
}

func lockRows(dealID int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id"}).AddRow(dealID)
}
