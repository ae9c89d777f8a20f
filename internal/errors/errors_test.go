package errors

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDealNotFound(t *testing.T) {
	err := DealNotFound(42)

	assert.ErrorIs(t, err, ErrDealNotFound)
	assert.Contains(t, err.Error(), "id 42")
	assert.Equal(t, CodeDealNotFound, Code(err))
	assert.False(t, IsRetryable(err))
}

func TestTypedErrors_MatchSentinels(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		sentinel error
		code     string
	}{
		{"schema", &SchemaResolutionError{Table: "deals", Column: "id", Reason: "no identifier column"}, ErrSchemaResolution, CodeSchemaResolution},
		{"validation", &ValidationError{Field: "purchase_price", Reason: "not a number"}, ErrValidation, CodeValidation},
		{"constraint", &ConstraintViolation{Field: "deal_id", Constraint: "fact_deal_unique"}, ErrConstraintViolation, CodeConstraint},
		{"transient", &TransientStorageError{Op: "commit", Err: driver.ErrBadConn}, ErrTransientStorage, CodeTransient},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			wrapped := fmt.Errorf("save tab: %w", tc.err)
			assert.ErrorIs(t, wrapped, tc.sentinel)
			assert.Equal(t, tc.code, Code(wrapped))
		})
	}
}

func TestClassify_PgErrors(t *testing.T) {
	testCases := []struct {
		name     string
		pgErr    *pgconn.PgError
		sentinel error
	}{
		{"unique violation", &pgconn.PgError{Code: "23505", ConstraintName: "fact_deal_assumptions_deal_id_key", Detail: "Key (deal_id)=(7) already exists."}, ErrConstraintViolation},
		{"foreign key", &pgconn.PgError{Code: "23503", ConstraintName: "fk_deal"}, ErrConstraintViolation},
		{"numeric overflow", &pgconn.PgError{Code: "22003", ColumnName: "purchase_price"}, ErrConstraintViolation},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, ErrTransientStorage},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, ErrTransientStorage},
		{"connection failure", &pgconn.PgError{Code: "08006"}, ErrTransientStorage},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, ErrTransientStorage},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := Classify("insert dimension", tc.pgErr)
			assert.ErrorIs(t, err, tc.sentinel)
		})
	}
}

func TestClassify_ConstraintField(t *testing.T) {
	err := Classify("insert fact", &pgconn.PgError{Code: "23505", Detail: "Key (deal_id)=(7) already exists."})

	var cv *ConstraintViolation
	require.True(t, stderrors.As(err, &cv))
	assert.Equal(t, "deal_id", cv.Field)
	assert.Equal(t, "23505", cv.Code)

	err = Classify("update dimension", &pgconn.PgError{Code: "22003", ColumnName: "loan_amount"})
	require.True(t, stderrors.As(err, &cv))
	assert.Equal(t, "loan_amount", cv.Field)
}

func TestClassify_DriverErrors(t *testing.T) {
	assert.ErrorIs(t, Classify("begin", driver.ErrBadConn), ErrTransientStorage)
	assert.ErrorIs(t, Classify("commit", context.DeadlineExceeded), ErrTransientStorage)

	other := Classify("select", stderrors.New("syntax error"))
	assert.Equal(t, CodeInternal, Code(other))
	assert.Contains(t, other.Error(), "select")
}

func TestClassify_LeavesTaxonomyUntouched(t *testing.T) {
	original := &ValidationError{Field: "status", Reason: "bad"}
	assert.Same(t, original, Classify("save", original))
	assert.Nil(t, Classify("save", nil))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&TransientStorageError{Op: "commit", Err: driver.ErrBadConn}))
	assert.False(t, IsRetryable(&ConstraintViolation{Code: "23505"}))
	assert.False(t, IsRetryable(stderrors.New("boom")))
}

func TestNewErrorResponse(t *testing.T) {
	resp := NewErrorResponse(&ValidationError{Field: "hold_period", Reason: "must be numeric"})
	assert.Equal(t, CodeValidation, resp.Error.Code)
	assert.Equal(t, "must be numeric", resp.Error.Details["hold_period"])

	resp = NewErrorResponse(&SchemaResolutionError{Table: "dim_revenue", Column: "id", Reason: "missing"})
	assert.Equal(t, "dim_revenue", resp.Error.Details["table"])
	assert.Equal(t, "id", resp.Error.Details["column"])

	resp = NewErrorResponse(stderrors.New("pool exhausted at 10.0.0.3"))
	assert.Equal(t, CodeInternal, resp.Error.Code)
	assert.NotContains(t, resp.Error.Message, "10.0.0.3")

	body, err := json.Marshal(NewErrorResponse(DealNotFound(9)))
	require.NoError(t, err)
	assert.Contains(t, string(body), `"code":"DEAL_NOT_FOUND"`)
	assert.NotContains(t, string(body), "details")
}
