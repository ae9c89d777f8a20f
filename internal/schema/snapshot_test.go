package schema

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/stwalsh4118/dealdesk/internal/errors"
)

func TestPrefetch_ServesDescriptorsWithoutTheCatalog(t *testing.T) {
	live := stubCatalog{
		"deals":         {Schema: "public", Name: "deals", Exists: true, Columns: []Column{{Name: "id"}}},
		"dim_financing": {Schema: "public", Name: "dim_financing", Exists: true, Columns: []Column{{Name: "id"}, {Name: "loan_amount"}}},
	}

	snap, err := Prefetch(context.Background(), live, "deals", "dim_financing", "deals", "dim_ghost")
	require.NoError(t, err)

	// Changes to the live catalog after the prefetch are not seen.
	delete(live, "deals")

	desc, err := snap.DescribeTable(context.Background(), "deals")
	require.NoError(t, err)
	assert.True(t, desc.Exists)

	ghost, err := snap.DescribeTable(context.Background(), "dim_ghost")
	require.NoError(t, err)
	assert.False(t, ghost.Exists)

	tables, err := snap.ListTables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"deals", "dim_financing"}, tables)
}

func TestPrefetch_UnknownTableIsSchemaResolutionError(t *testing.T) {
	snap, err := Prefetch(context.Background(), stubCatalog{}, "deals")
	require.NoError(t, err)

	_, err = snap.DescribeTable(context.Background(), "fact_deal_assumptions")
	assert.ErrorIs(t, err, apperrors.ErrSchemaResolution)
}
