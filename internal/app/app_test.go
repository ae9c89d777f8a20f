package app

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stwalsh4118/dealdesk/internal/config"
	"github.com/stwalsh4118/dealdesk/internal/database"
	"github.com/stwalsh4118/dealdesk/internal/database/dbtest"
	"github.com/stwalsh4118/dealdesk/internal/logger"
	"github.com/stwalsh4118/dealdesk/internal/models"
	"github.com/stwalsh4118/dealdesk/internal/schema"
)

func testConfig(mode string) *config.Config {
	return &config.Config{
		Database: config.DatabaseConfig{Name: "dealdesk"},
		Engine: config.EngineConfig{
			Schema:               "public",
			SchemaMode:           mode,
			SchemaCacheTTL:       time.Minute,
			SchemaCacheSize:      16,
			TxTimeout:            5 * time.Second,
			MaxRetries:           1,
			NumericMax:           9999999999999.99,
			AggregateConcurrency: 2,
		},
	}
}

func mockDatabase(t *testing.T) (*database.Database, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return &database.Database{SQL: sqlx.NewDb(db, "pgx")}, mock
}

func TestNew_SchemaModes(t *testing.T) {
	t.Run("registry mode uses pinned layouts", func(t *testing.T) {
		db, _ := mockDatabase(t)
		defer db.Close()

		rt, err := New(db, testConfig(schema.ModeRegistry), logger.Nop())
		require.NoError(t, err)

		_, ok := rt.Catalog.(*schema.Registry)
		assert.True(t, ok)
		assert.NotNil(t, rt.Deals)
		assert.NotNil(t, rt.Pinned)
	})

	t.Run("introspect mode caches descriptors", func(t *testing.T) {
		db, _ := mockDatabase(t)
		defer db.Close()

		rt, err := New(db, testConfig(schema.ModeIntrospect), logger.Nop())
		require.NoError(t, err)

		_, ok := rt.Catalog.(*schema.CachedCatalog)
		assert.True(t, ok)
		assert.NoError(t, rt.VerifyPinned(context.Background()), "introspection needs no pinned check")
	})

	t.Run("unknown mode fails", func(t *testing.T) {
		db, _ := mockDatabase(t)
		defer db.Close()

		_, err := New(db, testConfig("guess"), logger.Nop())
		assert.Error(t, err)
	})
}

func TestNew_RegistersCollectors(t *testing.T) {
	db, _ := mockDatabase(t)
	defer db.Close()

	rt, err := New(db, testConfig(schema.ModeRegistry), logger.Nop())
	require.NoError(t, err)

	families, err := rt.Metrics.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["go_goroutines"])
	assert.True(t, names["go_sql_open_connections"])
}

func TestRuntime_MigrateAndVerify(t *testing.T) {
	db := dbtest.Start(t)
	ctx := context.Background()

	rt, err := New(db, testConfig(schema.ModeRegistry), logger.Nop())
	require.NoError(t, err)

	version, err := rt.Migrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	require.NoError(t, rt.VerifyPinned(ctx))

	_, err = db.SQL.ExecContext(ctx, `ALTER TABLE dim_ffe_reserve DROP COLUMN ffe_reserve_start_year`)
	require.NoError(t, err)

	report, err := rt.CheckSchema(ctx)
	require.NoError(t, err)
	assert.False(t, report.OK())
	assert.Equal(t, []string{"ffe_reserve_start_year"}, report.MissingColumns[models.MustTab(models.TabFFE).Table])
	assert.Error(t, rt.VerifyPinned(ctx))
}
