package services

import (
	"context"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/stwalsh4118/dealdesk/internal/errors"
	"github.com/stwalsh4118/dealdesk/internal/logger"
	"github.com/stwalsh4118/dealdesk/internal/models"
	"github.com/stwalsh4118/dealdesk/internal/schema"
	"github.com/stwalsh4118/dealdesk/internal/telemetry"
)

func newTestEngine(t *testing.T, catalog schema.Catalog) (*UpsertEngine, sqlmock.Sqlmock, *prometheus.Registry) {
	t.Helper()
	db, mock := newMockDB(t)
	reg := prometheus.NewRegistry()
	engine := NewUpsertEngine(db, NewRepositories(catalog), nil, logger.New("test"), EngineOptions{
		TxTimeout: 5 * time.Second,
		Recorder:  telemetry.New(reg),
	})
	return engine, mock, reg
}

func TestSaveTab_FirstSaveCreatesFactAndDimension(t *testing.T) {
	engine, mock, reg := newTestEngine(t, schema.NewRegistry("public"))

	mock.ExpectBegin()
	mock.ExpectQuery(exact(lockDealSQL)).WithArgs(int64(7)).WillReturnRows(lockRows(7))
	mock.ExpectQuery(findFactForUpdate).WithArgs(int64(7)).WillReturnRows(sqlmock.NewRows(factColumns()))
	mock.ExpectExec(exact(`INSERT INTO "public"."fact_deal_assumptions" ("deal_id") VALUES ($1)`)).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(exact(`INSERT INTO "public"."dim_acquisition" ("purchase_price", "hold_period", "deal_id") VALUES ($1, $2, $3) RETURNING "id"`)).
		WithArgs(2000000.0, int64(7), int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(31)))
	mock.ExpectExec(exact(`UPDATE "public"."fact_deal_assumptions" SET "acquisition_id" = $1, "updated_at" = NOW() WHERE "deal_id" = $2`)).
		WithArgs(int64(31), int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	id, err := engine.SaveTab(context.Background(), "acquisition", 7, map[string]any{
		"purchase_price": "$2,000,000",
		"hold_period":    "7",
		"unknown_field":  "ignored",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(31), id)
	assert.NoError(t, mock.ExpectationsWereMet())

	expected := `
# HELP dealdesk_tab_saves_total Tab save attempts by tab and outcome.
# TYPE dealdesk_tab_saves_total counter
dealdesk_tab_saves_total{outcome="ok",tab="acquisition"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "dealdesk_tab_saves_total"))
}

func TestSaveTab_SecondSaveUpdatesSuppliedFieldsOnly(t *testing.T) {
	engine, mock, _ := newTestEngine(t, schema.NewRegistry("public"))

	mock.ExpectBegin()
	mock.ExpectQuery(exact(lockDealSQL)).WithArgs(int64(7)).WillReturnRows(lockRows(7))
	mock.ExpectQuery(findFactForUpdate).
		WithArgs(int64(7)).
		WillReturnRows(factRows(7, map[models.TabKind]int64{models.TabAcquisition: 31}))
	// Only cap_rate_going_in is written; purchase_price keeps its stored value.
	mock.ExpectExec(exact(`UPDATE "public"."dim_acquisition" SET "cap_rate_going_in" = $1, "updated_at" = NOW() WHERE "id" = $2`)).
		WithArgs(9.0, int64(31)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	id, err := engine.SaveTab(context.Background(), "acquisition", 7, map[string]any{"cap_rate_going_in": 9})
	require.NoError(t, err)
	assert.Equal(t, int64(31), id, "the existing dimension record is reused")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveTab_ActorIsRecorded(t *testing.T) {
	engine, mock, _ := newTestEngine(t, schema.NewRegistry("public"))
	ctx := WithActor(context.Background(), "analyst@example.com")

	mock.ExpectBegin()
	mock.ExpectQuery(exact(lockDealSQL)).WithArgs(int64(3)).WillReturnRows(lockRows(3))
	mock.ExpectQuery(findFactForUpdate).WithArgs(int64(3)).WillReturnRows(sqlmock.NewRows(factColumns()))
	mock.ExpectExec(exact(`INSERT INTO "public"."fact_deal_assumptions" ("deal_id", "created_by", "updated_by") VALUES ($1, $2, $3)`)).
		WithArgs(int64(3), "analyst@example.com", "analyst@example.com").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(exact(`INSERT INTO "public"."dim_ffe_reserve" ("ffe_reserve_pct", "deal_id") VALUES ($1, $2) RETURNING "id"`)).
		WithArgs(4.0, int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(2)))
	mock.ExpectExec(exact(`UPDATE "public"."fact_deal_assumptions" SET "ffe_reserve_id" = $1, "updated_by" = $2, "updated_at" = NOW() WHERE "deal_id" = $3`)).
		WithArgs(int64(2), "analyst@example.com", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	id, err := engine.SaveTab(ctx, "ffe-reserve", 3, map[string]any{"ffe_reserve_pct": "4%"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveTab_FailureRollsBackEverything(t *testing.T) {
	engine, mock, reg := newTestEngine(t, schema.NewRegistry("public"))

	mock.ExpectBegin()
	mock.ExpectQuery(exact(lockDealSQL)).WithArgs(int64(7)).WillReturnRows(lockRows(7))
	mock.ExpectQuery(findFactForUpdate).WithArgs(int64(7)).WillReturnRows(sqlmock.NewRows(factColumns()))
	mock.ExpectExec(`INSERT INTO "public"\."fact_deal_assumptions"`).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(`INSERT INTO "public"\."dim_revenue"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(5)))
	mock.ExpectExec(`UPDATE "public"\."fact_deal_assumptions" SET "revenue_id"`).
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "fact_deal_assumptions_revenue_id_fkey"})
	mock.ExpectRollback()

	_, err := engine.SaveTab(context.Background(), "revenue", 7, map[string]any{"adr_base": 180})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConstraintViolation)
	// ExpectationsWereMet fails if Commit was called instead of Rollback.
	assert.NoError(t, mock.ExpectationsWereMet())

	expected := `
# HELP dealdesk_tab_saves_total Tab save attempts by tab and outcome.
# TYPE dealdesk_tab_saves_total counter
dealdesk_tab_saves_total{outcome="error",tab="revenue"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "dealdesk_tab_saves_total"))
}

func TestSaveTab_DealNotFound(t *testing.T) {
	engine, mock, _ := newTestEngine(t, schema.NewRegistry("public"))

	mock.ExpectBegin()
	mock.ExpectQuery(exact(lockDealSQL)).WithArgs(int64(404)).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	_, err := engine.SaveTab(context.Background(), "financing", 404, map[string]any{"loan_amount": 1000})
	assert.ErrorIs(t, err, apperrors.ErrDealNotFound)
	assert.Equal(t, apperrors.CodeDealNotFound, apperrors.Code(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveTab_ValidationHappensBeforeAnyWrite(t *testing.T) {
	engine, mock, _ := newTestEngine(t, schema.NewRegistry("public"))

	_, err := engine.SaveTab(context.Background(), "financing", 7, map[string]any{"loan_amount": "lots"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = engine.SaveTab(context.Background(), "valuation", 7, map[string]any{})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = engine.SaveTab(context.Background(), "property", 7, map[string]any{"status": "Sold"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	// No transaction was started.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveTab_PropertyUpdatesHeaderInPlace(t *testing.T) {
	engine, mock, _ := newTestEngine(t, schema.NewRegistry("public"))

	mock.ExpectBegin()
	mock.ExpectQuery(exact(lockDealSQL)).WithArgs(int64(7)).WillReturnRows(lockRows(7))
	mock.ExpectExec(exact(`UPDATE "public"."deals" SET "city" = $1, "number_of_rooms" = $2, "status" = $3, "updated_at" = NOW() WHERE "id" = $4`)).
		WithArgs("Portland", int64(120), "Active", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	id, err := engine.SaveTab(context.Background(), "property", 7, map[string]any{
		"city":   " Portland ",
		"rooms":  "120.9",
		"status": "Active",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveTab_VanishedDimensionIsReinserted(t *testing.T) {
	engine, mock, _ := newTestEngine(t, schema.NewRegistry("public"))

	mock.ExpectBegin()
	mock.ExpectQuery(exact(lockDealSQL)).WithArgs(int64(7)).WillReturnRows(lockRows(7))
	mock.ExpectQuery(findFactForUpdate).
		WithArgs(int64(7)).
		WillReturnRows(factRows(7, map[models.TabKind]int64{models.TabInflation: 8}))
	mock.ExpectExec(`UPDATE "public"\."dim_inflation"`).
		WithArgs(3.0, int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(exact(`INSERT INTO "public"."dim_inflation" ("inflation_rate_general", "deal_id") VALUES ($1, $2) RETURNING "id"`)).
		WithArgs(3.0, int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(9)))
	mock.ExpectExec(`UPDATE "public"\."fact_deal_assumptions" SET "inflation_id" = \$1`).
		WithArgs(int64(9), int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	id, err := engine.SaveTab(context.Background(), "inflation", 7, map[string]any{"inflation_rate_general": 3})
	require.NoError(t, err)
	assert.Equal(t, int64(9), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveTab_DriftedSchemaWritesOnlyExistingColumns(t *testing.T) {
	engine, mock, _ := newTestEngine(t, stubCatalog{
		models.DealsTable: {"property_key", "name"},
		models.FactTable:  {"property_key", "financing_key"},
		"dim_financing":   {"financing_key", "loan_amount"},
	})

	mock.ExpectBegin()
	mock.ExpectQuery(exact(`SELECT "property_key" FROM "public"."deals" WHERE "property_key" = $1 FOR UPDATE`)).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"property_key"}).AddRow(int64(7)))
	mock.ExpectQuery(exact(`SELECT "property_key", "financing_key" FROM "public"."fact_deal_assumptions" WHERE "property_key" = $1 FOR UPDATE`)).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"property_key", "financing_key"}))
	mock.ExpectExec(exact(`INSERT INTO "public"."fact_deal_assumptions" ("property_key") VALUES ($1)`)).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(exact(`INSERT INTO "public"."dim_financing" ("loan_amount") VALUES ($1) RETURNING "financing_key"`)).
		WithArgs(1500000.0).
		WillReturnRows(sqlmock.NewRows([]string{"financing_key"}).AddRow(int64(4)))
	mock.ExpectExec(exact(`UPDATE "public"."fact_deal_assumptions" SET "financing_key" = $1 WHERE "property_key" = $2`)).
		WithArgs(int64(4), int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	id, err := engine.SaveTab(context.Background(), "financing", 7, map[string]any{
		"loan_amount":   1500000,
		"interest_rate": 6.5,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveTab_BeginFailureIsTransient(t *testing.T) {
	engine, mock, _ := newTestEngine(t, schema.NewRegistry("public"))

	mock.ExpectBegin().WillReturnError(&pgconn.PgError{Code: "08006"})

	_, err := engine.SaveTab(context.Background(), "revenue", 7, map[string]any{"adr_base": 200})
	assert.ErrorIs(t, err, apperrors.ErrTransientStorage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func describeRows(columns ...string) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable"})
	for _, c := range columns {
		rows.AddRow(c, "bigint", "YES")
	}
	return rows
}

func TestSaveTab_SingleConnectionPool(t *testing.T) {
	db, mock := newMockDB(t)
	db.SetMaxOpenConns(1)
	engine := NewUpsertEngine(db, NewRepositories(schema.NewIntrospector(db, "public")), nil, logger.New("test"), EngineOptions{
		TxTimeout: 2 * time.Second,
	})

	describe := `information_schema\.columns`
	mock.ExpectQuery(describe).WithArgs("public", models.DealsTable).WillReturnRows(describeRows("id", "deal_name"))
	mock.ExpectQuery(describe).WithArgs("public", models.FactTable).WillReturnRows(describeRows(factColumns()...))
	mock.ExpectQuery(describe).WithArgs("public", "dim_financing").WillReturnRows(describeRows("id", "loan_amount", "deal_id"))
	mock.ExpectBegin()
	mock.ExpectQuery(exact(lockDealSQL)).WithArgs(int64(7)).WillReturnRows(lockRows(7))
	mock.ExpectQuery(findFactForUpdate).WithArgs(int64(7)).WillReturnRows(factRows(7, nil))
	mock.ExpectQuery(exact(`INSERT INTO "public"."dim_financing" ("loan_amount", "deal_id") VALUES ($1, $2) RETURNING "id"`)).
		WithArgs(sqlmock.AnyArg(), int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(12)))
	mock.ExpectExec(exact(`UPDATE "public"."fact_deal_assumptions" SET "financing_id" = $1 WHERE "deal_id" = $2`)).
		WithArgs(int64(12), int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	id, err := engine.SaveTab(context.Background(), "financing", 7, map[string]any{"loan_amount": 1})
	require.NoError(t, err)
	assert.Equal(t, int64(12), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveTab_DescribeFailureStartsNoTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	engine := NewUpsertEngine(db, NewRepositories(schema.NewIntrospector(db, "public")), nil, logger.New("test"), EngineOptions{})

	mock.ExpectQuery(`information_schema\.columns`).WithArgs("public", models.DealsTable).
		WillReturnError(&pgconn.PgError{Code: "57P01"})

	_, err := engine.SaveTab(context.Background(), "property", 7, map[string]any{"city": "Austin"})
	assert.ErrorIs(t, err, apperrors.ErrTransientStorage)
	assert.NoError(t, mock.ExpectationsWereMet())
}
