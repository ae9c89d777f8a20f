// Package schema discovers which tables and columns exist in the live
// database. Everything that builds SQL asks the catalog first, so a column
// missing from an older database is skipped instead of failing the statement.
package schema

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	apperrors "github.com/stwalsh4118/dealdesk/internal/errors"
)

// Column is one column of a described table.
type Column struct {
	Name     string `db:"column_name" json:"name"`
	DataType string `db:"data_type" json:"data_type"`
	Nullable bool   `db:"-" json:"nullable"`
}

// TableDescriptor is the discovered shape of a table.
// A missing table is described with Exists=false, never with an error.
type TableDescriptor struct {
	Schema  string   `json:"schema"`
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
	Exists  bool     `json:"exists"`
}

// HasColumn reports whether the table has the named column.
func (d TableDescriptor) HasColumn(name string) bool {
	_, ok := d.Column(name)
	return ok
}

// Column returns the named column.
func (d TableDescriptor) Column(name string) (Column, bool) {
	for _, c := range d.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnNames returns the column names in ordinal order.
func (d TableDescriptor) ColumnNames() []string {
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	return names
}

// FirstOf returns the first candidate present in the table.
func (d TableDescriptor) FirstOf(candidates ...string) (string, bool) {
	for _, c := range candidates {
		if d.HasColumn(c) {
			return c, true
		}
	}
	return "", false
}

// Catalog describes tables of the deal schema.
type Catalog interface {
	// DescribeTable returns the table's columns. A missing table is not an
	// error; callers branch on Exists.
	DescribeTable(ctx context.Context, table string) (TableDescriptor, error)

	// ListTables returns the base tables of the schema, sorted by name.
	ListTables(ctx context.Context) ([]string, error)

	// Invalidate drops cached descriptors for the given tables, or all
	// descriptors when called without arguments.
	Invalidate(tables ...string)
}

// Introspector reads table metadata from information_schema on every call.
type Introspector struct {
	db     sqlx.QueryerContext
	schema string
}

// NewIntrospector creates a Catalog backed by information_schema for dbSchema.
func NewIntrospector(db sqlx.QueryerContext, dbSchema string) *Introspector {
	if dbSchema == "" {
		dbSchema = "public"
	}
	return &Introspector{db: db, schema: dbSchema}
}

// Schema returns the database schema being introspected.
func (i *Introspector) Schema() string {
	return i.schema
}

// DescribeTable queries information_schema.columns for the table.
func (i *Introspector) DescribeTable(ctx context.Context, table string) (TableDescriptor, error) {
	query := `
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position
	`

	rows, err := i.db.QueryxContext(ctx, query, i.schema, table)
	if err != nil {
		return TableDescriptor{}, apperrors.Classify(fmt.Sprintf("describe table %s", table), err)
	}
	defer rows.Close()

	desc := TableDescriptor{Schema: i.schema, Name: table}
	for rows.Next() {
		var col Column
		var nullable string
		if err := rows.Scan(&col.Name, &col.DataType, &nullable); err != nil {
			return TableDescriptor{}, fmt.Errorf("failed to scan column of %s: %w", table, err)
		}
		col.Nullable = nullable == "YES"
		desc.Columns = append(desc.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return TableDescriptor{}, apperrors.Classify(fmt.Sprintf("describe table %s", table), err)
	}

	desc.Exists = len(desc.Columns) > 0
	return desc, nil
}

// ListTables queries information_schema.tables for base tables.
func (i *Introspector) ListTables(ctx context.Context) ([]string, error) {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1
		AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`

	var tables []string
	if err := sqlx.SelectContext(ctx, i.db, &tables, query, i.schema); err != nil {
		return nil, apperrors.Classify("list tables", err)
	}
	if tables == nil {
		tables = []string{}
	}
	return tables, nil
}

// Invalidate is a no-op; the introspector holds no state.
func (i *Introspector) Invalidate(tables ...string) {}
