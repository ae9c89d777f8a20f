package schema

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/stwalsh4118/dealdesk/internal/models"
)

// Registry is a Catalog of pinned table layouts derived from the model
// structs. It never touches the database; CheckCompatibility compares it
// against a live catalog once at startup.
type Registry struct {
	schema string
	tables map[string]TableDescriptor
}

// NewRegistry builds the pinned layout of the deal star schema.
func NewRegistry(dbSchema string) *Registry {
	if dbSchema == "" {
		dbSchema = "public"
	}
	r := &Registry{schema: dbSchema, tables: make(map[string]TableDescriptor)}

	header := models.MustTab(models.TabProperty)
	deals := []Column{{Name: "id", DataType: "bigint"}}
	deals = append(deals, fieldColumns(header.Fields)...)
	deals = append(deals,
		Column{Name: models.ColumnCreatedBy, DataType: "text", Nullable: true},
		Column{Name: models.ColumnCreatedAt, DataType: "timestamp with time zone"},
		Column{Name: models.ColumnUpdatedAt, DataType: "timestamp with time zone"},
	)
	r.add(models.DealsTable, deals)

	fact := []Column{
		{Name: "id", DataType: "bigint"},
		{Name: "deal_id", DataType: "bigint"},
	}
	for _, tab := range models.DimensionTabs() {
		fact = append(fact, Column{Name: tab.FactColumn, DataType: "bigint", Nullable: true})
	}
	fact = append(fact,
		Column{Name: models.ColumnCreatedBy, DataType: "text", Nullable: true},
		Column{Name: models.ColumnUpdatedBy, DataType: "text", Nullable: true},
		Column{Name: models.ColumnCreatedAt, DataType: "timestamp with time zone"},
		Column{Name: models.ColumnUpdatedAt, DataType: "timestamp with time zone"},
	)
	r.add(models.FactTable, fact)

	for _, tab := range models.DimensionTabs() {
		cols := []Column{
			{Name: "id", DataType: "bigint"},
			{Name: models.DimensionDealLink, DataType: "bigint", Nullable: true},
		}
		cols = append(cols, fieldColumns(tab.Fields)...)
		cols = append(cols,
			Column{Name: models.ColumnCreatedAt, DataType: "timestamp with time zone"},
			Column{Name: models.ColumnUpdatedAt, DataType: "timestamp with time zone"},
		)
		r.add(tab.Table, cols)
	}
	return r
}

func (r *Registry) add(name string, cols []Column) {
	r.tables[name] = TableDescriptor{Schema: r.schema, Name: name, Columns: cols, Exists: true}
}

func fieldColumns(fields []models.Field) []Column {
	cols := make([]Column, 0, len(fields))
	for _, f := range fields {
		cols = append(cols, Column{Name: f.Name, DataType: dataTypeOf(f.Kind), Nullable: true})
	}
	return cols
}

func dataTypeOf(kind models.FieldKind) string {
	switch kind {
	case models.FieldInteger:
		return "integer"
	case models.FieldNumeric:
		return "numeric"
	default:
		return "text"
	}
}

// DescribeTable returns the pinned layout, or Exists=false for unknown tables.
func (r *Registry) DescribeTable(ctx context.Context, table string) (TableDescriptor, error) {
	if desc, ok := r.tables[table]; ok {
		return desc, nil
	}
	return TableDescriptor{Schema: r.schema, Name: table}, nil
}

// ListTables returns the pinned table names.
func (r *Registry) ListTables(ctx context.Context) ([]string, error) {
	names := make([]string, 0, len(r.tables))
	for name := range r.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Invalidate is a no-op; pinned layouts do not change at runtime.
func (r *Registry) Invalidate(tables ...string) {}

// CompatibilityReport lists the pinned tables and columns the live database lacks.
type CompatibilityReport struct {
	MissingTables  []string            `json:"missing_tables,omitempty"`
	MissingColumns map[string][]string `json:"missing_columns,omitempty"`
	CheckedTables  int                 `json:"checked_tables"`
}

// OK reports whether the live database has every pinned table and column.
func (c CompatibilityReport) OK() bool {
	return len(c.MissingTables) == 0 && len(c.MissingColumns) == 0
}

func (c CompatibilityReport) String() string {
	if c.OK() {
		return fmt.Sprintf("schema compatible (%d tables)", c.CheckedTables)
	}
	var parts []string
	if len(c.MissingTables) > 0 {
		parts = append(parts, "missing tables: "+strings.Join(c.MissingTables, ", "))
	}
	tables := make([]string, 0, len(c.MissingColumns))
	for t := range c.MissingColumns {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	for _, t := range tables {
		parts = append(parts, fmt.Sprintf("%s missing columns: %s", t, strings.Join(c.MissingColumns[t], ", ")))
	}
	return strings.Join(parts, "; ")
}

// CheckCompatibility describes every pinned table through live and reports
// what is missing. Extra live columns are fine.
func (r *Registry) CheckCompatibility(ctx context.Context, live Catalog) (CompatibilityReport, error) {
	names, _ := r.ListTables(ctx)
	report := CompatibilityReport{MissingColumns: map[string][]string{}}

	for _, name := range names {
		desc, err := live.DescribeTable(ctx, name)
		if err != nil {
			return CompatibilityReport{}, fmt.Errorf("failed to describe %s: %w", name, err)
		}
		report.CheckedTables++
		if !desc.Exists {
			report.MissingTables = append(report.MissingTables, name)
			continue
		}
		for _, col := range r.tables[name].Columns {
			if !desc.HasColumn(col.Name) {
				report.MissingColumns[name] = append(report.MissingColumns[name], col.Name)
			}
		}
	}
	if len(report.MissingColumns) == 0 {
		report.MissingColumns = nil
	}
	return report, nil
}
