package errors

import (
	"context"
	"database/sql"
	"database/sql/driver"
	stderrors "errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// Error code constants for standardized error responses
const (
	CodeDealNotFound     = "DEAL_NOT_FOUND"
	CodeSchemaResolution = "SCHEMA_RESOLUTION_ERROR"
	CodeValidation       = "VALIDATION_ERROR"
	CodeConstraint       = "CONSTRAINT_VIOLATION"
	CodeTransient        = "TRANSIENT_STORAGE_ERROR"
	CodeInternal         = "INTERNAL_ERROR"
)

// Sentinel errors. Every error produced by the persistence core wraps exactly
// one of these, so callers can branch with errors.Is.
var (
	ErrDealNotFound        = stderrors.New("deal not found")
	ErrSchemaResolution    = stderrors.New("schema resolution failed")
	ErrValidation          = stderrors.New("validation failed")
	ErrConstraintViolation = stderrors.New("constraint violation")
	ErrTransientStorage    = stderrors.New("transient storage error")
)

// ErrorResponse is the top-level error response structure.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error information.
type ErrorDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// DealNotFound returns an error reporting that no deal exists with the given id.
func DealNotFound(dealID int64) error {
	return fmt.Errorf("%w: id %d", ErrDealNotFound, dealID)
}

// SchemaResolutionError reports a table or column the catalog could not identify.
type SchemaResolutionError struct {
	Table  string
	Column string
	Reason string
}

func (e *SchemaResolutionError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("schema resolution failed for %s.%s: %s", e.Table, e.Column, e.Reason)
	}
	return fmt.Sprintf("schema resolution failed for %s: %s", e.Table, e.Reason)
}

func (e *SchemaResolutionError) Is(target error) bool { return target == ErrSchemaResolution }

// ValidationError reports malformed input for a single field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ConstraintViolation reports a storage-layer rejection of the written data.
type ConstraintViolation struct {
	Field      string
	Constraint string
	Code       string
	Err        error
}

func (e *ConstraintViolation) Error() string {
	msg := "constraint violation"
	if e.Constraint != "" {
		msg += " on " + e.Constraint
	}
	if e.Field != "" {
		msg += " (field " + e.Field + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConstraintViolation) Is(target error) bool { return target == ErrConstraintViolation }

func (e *ConstraintViolation) Unwrap() error { return e.Err }

// TransientStorageError reports a connection or transaction failure that is
// not attributable to the input. The whole operation may be retried.
type TransientStorageError struct {
	Op  string
	Err error
}

func (e *TransientStorageError) Error() string {
	return fmt.Sprintf("transient storage error during %s: %v", e.Op, e.Err)
}

func (e *TransientStorageError) Is(target error) bool { return target == ErrTransientStorage }

func (e *TransientStorageError) Unwrap() error { return e.Err }

// keyColumnPattern extracts the column list from a Postgres unique violation
// detail such as `Key (deal_id)=(42) already exists.`
var keyColumnPattern = regexp.MustCompile(`Key \(([^)]+)\)=`)

// Classify maps a raw storage error onto the taxonomy. Errors that already
// belong to the taxonomy are returned unchanged; unknown errors are returned
// as-is and surface as INTERNAL_ERROR.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if isClassified(err) {
		return err
	}

	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "23"), pgErr.Code == "22003", pgErr.Code == "22001":
			return &ConstraintViolation{
				Field:      constraintField(pgErr),
				Constraint: pgErr.ConstraintName,
				Code:       pgErr.Code,
				Err:        err,
			}
		case strings.HasPrefix(pgErr.Code, "08"),
			pgErr.Code == "40001", pgErr.Code == "40P01",
			strings.HasPrefix(pgErr.Code, "57P"):
			return &TransientStorageError{Op: op, Err: err}
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	if stderrors.Is(err, driver.ErrBadConn) ||
		stderrors.Is(err, sql.ErrConnDone) ||
		stderrors.Is(err, context.DeadlineExceeded) ||
		pgconn.Timeout(err) ||
		pgconn.SafeToRetry(err) {
		return &TransientStorageError{Op: op, Err: err}
	}

	return fmt.Errorf("%s: %w", op, err)
}

func isClassified(err error) bool {
	return stderrors.Is(err, ErrDealNotFound) ||
		stderrors.Is(err, ErrSchemaResolution) ||
		stderrors.Is(err, ErrValidation) ||
		stderrors.Is(err, ErrConstraintViolation) ||
		stderrors.Is(err, ErrTransientStorage)
}

func constraintField(pgErr *pgconn.PgError) string {
	if pgErr.ColumnName != "" {
		return pgErr.ColumnName
	}
	if m := keyColumnPattern.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
		return m[1]
	}
	return ""
}

// IsRetryable reports whether the whole operation may be safely retried.
func IsRetryable(err error) bool {
	return stderrors.Is(err, ErrTransientStorage)
}

// Code returns the stable error code for err.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case stderrors.Is(err, ErrDealNotFound):
		return CodeDealNotFound
	case stderrors.Is(err, ErrSchemaResolution):
		return CodeSchemaResolution
	case stderrors.Is(err, ErrValidation):
		return CodeValidation
	case stderrors.Is(err, ErrConstraintViolation):
		return CodeConstraint
	case stderrors.Is(err, ErrTransientStorage):
		return CodeTransient
	default:
		return CodeInternal
	}
}

// NewErrorResponse converts err into the JSON error envelope.
// Internal errors get a generic message; the cause is not exposed.
func NewErrorResponse(err error) ErrorResponse {
	code := Code(err)
	detail := ErrorDetail{Code: code, Message: err.Error()}

	var ve *ValidationError
	var cv *ConstraintViolation
	var se *SchemaResolutionError
	switch {
	case stderrors.As(err, &ve) && ve.Field != "":
		detail.Details = map[string]interface{}{ve.Field: ve.Reason}
	case stderrors.As(err, &cv) && cv.Field != "":
		detail.Details = map[string]interface{}{"field": cv.Field, "constraint": cv.Constraint}
	case stderrors.As(err, &se):
		detail.Details = map[string]interface{}{"table": se.Table}
		if se.Column != "" {
			detail.Details["column"] = se.Column
		}
	case code == CodeInternal:
		detail.Message = "An unexpected error occurred"
	}
	return ErrorResponse{Error: detail}
}
