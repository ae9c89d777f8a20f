// Package repository reads and writes the deal star schema. Every statement
// is built against the catalog's view of the live table, so repositories
// work on databases that predate some columns. Methods take the querier to
// run on, which lets the engine pass its transaction and readers pass the pool.
package repository

import (
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stwalsh4118/dealdesk/internal/models"
	"github.com/stwalsh4118/dealdesk/internal/numeric"
	"github.com/stwalsh4118/dealdesk/internal/schema"
	"github.com/stwalsh4118/dealdesk/internal/sqlbuild"
)

// WriteResult describes a completed write.
type WriteResult struct {
	// ID is the identifier of the inserted row.
	ID int64
	// Found is false when an UPDATE matched no row.
	Found bool
	// Omitted lists supplied fields the table has no column for.
	Omitted []string
}

// assignments maps cleaned values onto the columns the table actually has.
func assignments(desc schema.TableDescriptor, values []numeric.Value) ([]sqlbuild.Assignment, []string) {
	var (
		out     []sqlbuild.Assignment
		omitted []string
	)
	for _, v := range values {
		col, ok := desc.FirstOf(v.Field.Candidates()...)
		if !ok {
			omitted = append(omitted, v.Field.Name)
			continue
		}
		out = append(out, sqlbuild.Set(col, v.Value))
	}
	return out, omitted
}

// setIfPresent appends an assignment when the table has the column.
func setIfPresent(desc schema.TableDescriptor, list []sqlbuild.Assignment, column string, value any) []sqlbuild.Assignment {
	if desc.HasColumn(column) {
		return append(list, sqlbuild.Set(column, value))
	}
	return list
}

func touchIfPresent(desc schema.TableDescriptor, list []sqlbuild.Assignment, column string) []sqlbuild.Assignment {
	if desc.HasColumn(column) {
		return append(list, sqlbuild.Touch(column))
	}
	return list
}

// logical renames a scanned row to logical field names, normalizing values.
// Columns that back no field are dropped.
func logical(desc schema.TableDescriptor, fields []models.Field, row map[string]any) map[string]any {
	record := make(map[string]any, len(fields))
	for _, f := range fields {
		col, ok := desc.FirstOf(f.Candidates()...)
		if !ok {
			continue
		}
		raw, ok := row[col]
		if !ok {
			continue
		}
		record[f.Name] = Normalize(f.Kind, raw)
	}
	return record
}

// Normalize converts a driver value into the Go type of its field kind:
// float64 for numeric, int64 for integer, string for text. NUMERIC columns
// arrive as strings through database/sql and are parsed here.
func Normalize(kind models.FieldKind, raw any) any {
	if b, ok := raw.([]byte); ok {
		raw = string(b)
	}
	if raw == nil {
		return nil
	}

	switch kind {
	case models.FieldNumeric:
		if f, ok := toFloat(raw); ok {
			return f
		}
	case models.FieldInteger:
		if f, ok := toFloat(raw); ok {
			return int64(math.Floor(f))
		}
	case models.FieldText:
		switch v := raw.(type) {
		case string:
			return v
		case int64:
			return strconv.FormatInt(v, 10)
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case time.Time:
			return v.Format(time.RFC3339)
		}
	}
	return raw
}

func toFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case int:
		return float64(v), true
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return 0, false
		}
		return d.InexactFloat64(), true
	default:
		return 0, false
	}
}

// toInt64 reads an identifier column value.
func toInt64(raw any) (int64, bool) {
	switch v := raw.(type) {
	case int64:
		return v, true
	case int32:
		return int64(v), true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	case []byte:
		n, err := strconv.ParseInt(string(v), 10, 64)
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// plain converts byte slices to strings and leaves other values alone.
func plain(raw any) any {
	if b, ok := raw.([]byte); ok {
		return string(b)
	}
	return raw
}
