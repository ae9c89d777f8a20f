// Package sqlbuild emits parameterized SELECT/INSERT/UPDATE statements
// against a table descriptor. Identifiers come only from the descriptor and
// are quoted; every value is a bind parameter.
package sqlbuild

import (
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	apperrors "github.com/stwalsh4118/dealdesk/internal/errors"
	"github.com/stwalsh4118/dealdesk/internal/schema"
)

// Statement is a built query with its bind arguments.
type Statement struct {
	SQL  string
	Args []any
	// Omitted lists requested columns the table does not have.
	Omitted []string
	// Columns lists the columns actually selected or written, in order.
	Columns []string
}

// Empty reports whether the statement has nothing to write.
func (s Statement) Empty() bool {
	return s.SQL == ""
}

// Assignment writes Value to Column.
type Assignment struct {
	Column string
	Value  any
	// Expr, when set, is written verbatim instead of a bind parameter.
	// It is only used for fixed server-side expressions such as NOW().
	Expr string
}

// Set assigns a bound value.
func Set(column string, value any) Assignment {
	return Assignment{Column: column, Value: value}
}

// Touch assigns NOW() to a timestamp column.
func Touch(column string) Assignment {
	return Assignment{Column: column, Expr: "NOW()"}
}

// Condition is an equality filter on a column.
type Condition struct {
	Column string
	Value  any
}

// Eq builds an equality condition.
func Eq(column string, value any) Condition {
	return Condition{Column: column, Value: value}
}

type params struct {
	args []any
}

func (p *params) add(v any) string {
	p.args = append(p.args, v)
	return "$" + strconv.Itoa(len(p.args))
}

// Table returns the quoted, schema-qualified table name.
func Table(desc schema.TableDescriptor) string {
	if desc.Schema == "" {
		return pgx.Identifier{desc.Name}.Sanitize()
	}
	return pgx.Identifier{desc.Schema, desc.Name}.Sanitize()
}

// Ident quotes a single column name.
func Ident(column string) string {
	return pgx.Identifier{column}.Sanitize()
}

func requireColumn(desc schema.TableDescriptor, column, role string) error {
	if !desc.Exists {
		return &apperrors.SchemaResolutionError{Table: desc.Name, Reason: "table does not exist"}
	}
	if !desc.HasColumn(column) {
		return &apperrors.SchemaResolutionError{Table: desc.Name, Column: column, Reason: role + " column not found"}
	}
	return nil
}

func where(desc schema.TableDescriptor, p *params, conds []Condition) (string, error) {
	if len(conds) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(conds))
	for _, c := range conds {
		if err := requireColumn(desc, c.Column, "filter"); err != nil {
			return "", err
		}
		parts = append(parts, Ident(c.Column)+" = "+p.add(c.Value))
	}
	return " WHERE " + strings.Join(parts, " AND "), nil
}

// SelectOptions tunes Select.
type SelectOptions struct {
	Limit     int
	OrderBy   string
	OrderDesc bool
	ForUpdate bool
}

// Select projects the requested columns that exist. An empty request selects
// every column of the table. Filter columns must exist.
func Select(desc schema.TableDescriptor, columns []string, conds []Condition, opts SelectOptions) (Statement, error) {
	if !desc.Exists {
		return Statement{}, &apperrors.SchemaResolutionError{Table: desc.Name, Reason: "table does not exist"}
	}
	if len(columns) == 0 {
		columns = desc.ColumnNames()
	}

	var stmt Statement
	for _, c := range columns {
		if desc.HasColumn(c) {
			stmt.Columns = append(stmt.Columns, c)
		} else {
			stmt.Omitted = append(stmt.Omitted, c)
		}
	}
	if len(stmt.Columns) == 0 {
		return Statement{}, &apperrors.SchemaResolutionError{
			Table:  desc.Name,
			Column: strings.Join(columns, "|"),
			Reason: "none of the requested columns exist",
		}
	}

	quoted := make([]string, len(stmt.Columns))
	for i, c := range stmt.Columns {
		quoted[i] = Ident(c)
	}

	p := &params{}
	filter, err := where(desc, p, conds)
	if err != nil {
		return Statement{}, err
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(quoted, ", "))
	b.WriteString(" FROM ")
	b.WriteString(Table(desc))
	b.WriteString(filter)
	if opts.OrderBy != "" {
		if err := requireColumn(desc, opts.OrderBy, "order"); err != nil {
			return Statement{}, err
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(Ident(opts.OrderBy))
		if opts.OrderDesc {
			b.WriteString(" DESC")
		}
	}
	if opts.Limit > 0 {
		b.WriteString(" LIMIT ")
		b.WriteString(p.add(opts.Limit))
	}
	if opts.ForUpdate {
		b.WriteString(" FOR UPDATE")
	}

	stmt.SQL = b.String()
	stmt.Args = p.args
	return stmt, nil
}

// split separates assignments into those the table can take and those it cannot.
func split(desc schema.TableDescriptor, assignments []Assignment) (kept []Assignment, omitted []string) {
	seen := make(map[string]bool, len(assignments))
	for _, a := range assignments {
		if seen[a.Column] {
			continue
		}
		if desc.HasColumn(a.Column) {
			kept = append(kept, a)
			seen[a.Column] = true
		} else {
			omitted = append(omitted, a.Column)
		}
	}
	return kept, omitted
}

// Insert writes the assignments whose columns exist and returns the
// resolved identifier column. Absent columns are left to their defaults.
func Insert(desc schema.TableDescriptor, assignments []Assignment, returning string) (Statement, error) {
	if !desc.Exists {
		return Statement{}, &apperrors.SchemaResolutionError{Table: desc.Name, Reason: "table does not exist"}
	}
	if returning != "" {
		if err := requireColumn(desc, returning, "returning"); err != nil {
			return Statement{}, err
		}
	}

	kept, omitted := split(desc, assignments)
	stmt := Statement{Omitted: omitted}
	p := &params{}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(Table(desc))
	if len(kept) == 0 {
		b.WriteString(" DEFAULT VALUES")
	} else {
		cols := make([]string, len(kept))
		vals := make([]string, len(kept))
		for i, a := range kept {
			cols[i] = Ident(a.Column)
			if a.Expr != "" {
				vals[i] = a.Expr
			} else {
				vals[i] = p.add(a.Value)
			}
			stmt.Columns = append(stmt.Columns, a.Column)
		}
		b.WriteString(" (")
		b.WriteString(strings.Join(cols, ", "))
		b.WriteString(") VALUES (")
		b.WriteString(strings.Join(vals, ", "))
		b.WriteString(")")
	}
	if returning != "" {
		b.WriteString(" RETURNING ")
		b.WriteString(Ident(returning))
	}

	stmt.SQL = b.String()
	stmt.Args = p.args
	return stmt, nil
}

// Update writes only the assignments whose columns exist. When nothing but
// Touch assignments remain the statement is Empty and must be skipped.
// At least one condition is required.
func Update(desc schema.TableDescriptor, assignments []Assignment, conds []Condition) (Statement, error) {
	if !desc.Exists {
		return Statement{}, &apperrors.SchemaResolutionError{Table: desc.Name, Reason: "table does not exist"}
	}
	if len(conds) == 0 {
		return Statement{}, &apperrors.SchemaResolutionError{Table: desc.Name, Reason: "update without identifier condition"}
	}

	kept, omitted := split(desc, assignments)
	stmt := Statement{Omitted: omitted}

	valued := 0
	for _, a := range kept {
		if a.Expr == "" {
			valued++
		}
	}
	if valued == 0 {
		for _, c := range conds {
			if err := requireColumn(desc, c.Column, "filter"); err != nil {
				return Statement{}, err
			}
		}
		return stmt, nil
	}

	p := &params{}
	sets := make([]string, len(kept))
	for i, a := range kept {
		if a.Expr != "" {
			sets[i] = Ident(a.Column) + " = " + a.Expr
		} else {
			sets[i] = Ident(a.Column) + " = " + p.add(a.Value)
		}
		stmt.Columns = append(stmt.Columns, a.Column)
	}
	filter, err := where(desc, p, conds)
	if err != nil {
		return Statement{}, err
	}

	stmt.SQL = "UPDATE " + Table(desc) + " SET " + strings.Join(sets, ", ") + filter
	stmt.Args = p.args
	return stmt, nil
}
