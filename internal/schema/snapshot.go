package schema

import (
	"context"
	"sort"

	apperrors "github.com/stwalsh4118/dealdesk/internal/errors"
)

// Snapshot is a Catalog fixed to descriptors read once, before a
// transaction starts. Lookups never touch the database, so statements built
// inside the transaction need no connection beyond the transaction's own.
type Snapshot struct {
	tables map[string]TableDescriptor
}

// Prefetch describes tables through c and returns them as a Snapshot.
func Prefetch(ctx context.Context, c Catalog, tables ...string) (*Snapshot, error) {
	s := &Snapshot{tables: make(map[string]TableDescriptor, len(tables))}
	for _, table := range tables {
		if _, ok := s.tables[table]; ok {
			continue
		}
		desc, err := c.DescribeTable(ctx, table)
		if err != nil {
			return nil, err
		}
		s.tables[table] = desc
	}
	return s, nil
}

// DescribeTable returns the prefetched descriptor. Asking for a table that
// was not prefetched is a SchemaResolutionError.
func (s *Snapshot) DescribeTable(_ context.Context, table string) (TableDescriptor, error) {
	desc, ok := s.tables[table]
	if !ok {
		return TableDescriptor{}, &apperrors.SchemaResolutionError{Table: table, Reason: "table was not described before the transaction"}
	}
	return desc, nil
}

// ListTables returns the prefetched tables that exist.
func (s *Snapshot) ListTables(context.Context) ([]string, error) {
	tables := []string{}
	for name, desc := range s.tables {
		if desc.Exists {
			tables = append(tables, name)
		}
	}
	sort.Strings(tables)
	return tables, nil
}

// Invalidate is a no-op; a snapshot lives for one transaction.
func (s *Snapshot) Invalidate(tables ...string) {}
