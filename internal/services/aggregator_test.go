package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
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

func newTestAggregator(t *testing.T, catalog schema.Catalog) (*Aggregator, sqlmock.Sqlmock, *prometheus.Registry) {
	t.Helper()
	db, mock := newMockDB(t)
	reg := prometheus.NewRegistry()
	agg := NewAggregator(db, NewRepositories(catalog), logger.New("test"), AggregatorOptions{
		Concurrency: 1,
		Recorder:    telemetry.New(reg),
	})
	return agg, mock, reg
}

func dealRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "deal_name", "city", "number_of_rooms", "status"}).
		AddRow(int64(7), "Harbor Inn", "Portland", int64(97), "Active")
}

func TestLoadDealAssumptions_HeaderOnlyWithoutFactRow(t *testing.T) {
	agg, mock, _ := newTestAggregator(t, schema.NewRegistry("public"))

	mock.ExpectQuery(findDeal).WithArgs(int64(7)).WillReturnRows(dealRows())
	mock.ExpectQuery(findFact).WithArgs(int64(7)).WillReturnRows(sqlmock.NewRows(factColumns()))

	record, err := agg.LoadDealAssumptions(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), record["id"])
	assert.Equal(t, "Harbor Inn", record["deal_name"])
	assert.Equal(t, int64(97), record["number_of_rooms"])
	assert.NotContains(t, record, "purchase_price")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadDealAssumptions_HeaderOnlyWithoutFactTable(t *testing.T) {
	agg, mock, _ := newTestAggregator(t, stubCatalog{
		models.DealsTable: {"id", "deal_name"},
	})

	mock.ExpectQuery(exact(`SELECT "id", "deal_name" FROM "public"."deals" WHERE "id" = $1`)).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "deal_name"}).AddRow(int64(7), "Harbor Inn"))

	record, err := agg.LoadDealAssumptions(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": int64(7), "deal_name": "Harbor Inn"}, record)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadDealAssumptions_MergesDimensionsInTabOrder(t *testing.T) {
	agg, mock, _ := newTestAggregator(t, schema.NewRegistry("public"))

	mock.ExpectQuery(findDeal).WithArgs(int64(7)).WillReturnRows(dealRows())
	mock.ExpectQuery(findFact).WithArgs(int64(7)).WillReturnRows(factRows(7, map[models.TabKind]int64{
		models.TabAcquisition: 31,
		models.TabRevenue:     12,
	}))
	mock.ExpectQuery(`FROM "public"\."dim_acquisition" WHERE "id" = \$1$`).
		WithArgs(int64(31)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "deal_id", "purchase_price", "hold_period"}).
			AddRow(int64(31), int64(7), "12345678.0000", int64(7)))
	mock.ExpectQuery(`FROM "public"\."dim_revenue" WHERE "id" = \$1$`).
		WithArgs(int64(12)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "deal_id", "adr_base"}).
			AddRow(int64(12), int64(7), []byte("185.5000")))

	record, err := agg.LoadDealAssumptions(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 12345678.0, record["purchase_price"])
	assert.Equal(t, int64(7), record["hold_period"])
	assert.Equal(t, 185.5, record["adr_base"])
	assert.Equal(t, "Harbor Inn", record["deal_name"])
	// Dimension ids never leak over the deal id.
	assert.Equal(t, int64(7), record["id"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadDealAssumptions_UnreadableDimensionIsSkipped(t *testing.T) {
	agg, mock, reg := newTestAggregator(t, schema.NewRegistry("public"))

	mock.ExpectQuery(findDeal).WithArgs(int64(7)).WillReturnRows(dealRows())
	mock.ExpectQuery(findFact).WithArgs(int64(7)).WillReturnRows(factRows(7, map[models.TabKind]int64{
		models.TabAcquisition: 31,
		models.TabRevenue:     12,
	}))
	mock.ExpectQuery(`FROM "public"\."dim_acquisition"`).
		WithArgs(int64(31)).
		WillReturnError(errors.New("relation is being rebuilt"))
	mock.ExpectQuery(`FROM "public"\."dim_revenue"`).
		WithArgs(int64(12)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "adr_base"}))

	record, err := agg.LoadDealAssumptions(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "Harbor Inn", record["deal_name"])
	assert.NotContains(t, record, "purchase_price")
	assert.NotContains(t, record, "adr_base")
	assert.NoError(t, mock.ExpectationsWereMet())

	expected := `
# HELP dealdesk_aggregate_degraded_reads_total Dimension reads skipped while assembling deal assumptions.
# TYPE dealdesk_aggregate_degraded_reads_total counter
dealdesk_aggregate_degraded_reads_total{table="dim_acquisition"} 1
dealdesk_aggregate_degraded_reads_total{table="dim_revenue"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "dealdesk_aggregate_degraded_reads_total"))
}

func TestLoadDealAssumptions_FactReadFailureFallsBackToHeader(t *testing.T) {
	agg, mock, _ := newTestAggregator(t, schema.NewRegistry("public"))

	mock.ExpectQuery(findDeal).WithArgs(int64(7)).WillReturnRows(dealRows())
	mock.ExpectQuery(findFact).WithArgs(int64(7)).WillReturnError(errors.New("permission denied"))

	record, err := agg.LoadDealAssumptions(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "Harbor Inn", record["deal_name"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadDealAssumptions_DealNotFound(t *testing.T) {
	agg, mock, _ := newTestAggregator(t, schema.NewRegistry("public"))

	mock.ExpectQuery(findDeal).WithArgs(int64(404)).WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := agg.LoadDealAssumptions(context.Background(), 404)
	assert.ErrorIs(t, err, apperrors.ErrDealNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadDealAssumptions_HeaderReadFailureIsReturned(t *testing.T) {
	agg, mock, _ := newTestAggregator(t, schema.NewRegistry("public"))

	mock.ExpectQuery(findDeal).WithArgs(int64(7)).WillReturnError(errors.New("boom"))

	_, err := agg.LoadDealAssumptions(context.Background(), 7)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestLoadDealAssumptions_CancelledContext(t *testing.T) {
	agg, _, _ := newTestAggregator(t, schema.NewRegistry("public"))
	ctx, cancel := context.WithCancel(context.Background())

	cancel()

	_, err := agg.LoadDealAssumptions(ctx, 7)
	assert.Error(t, err)
}
