package schema

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	apperrors "github.com/stwalsh4118/dealdesk/internal/errors"
	"github.com/stwalsh4118/dealdesk/internal/telemetry"
)

const tablesKey = "\x00tables"

// sharedLookupTimeout bounds a describe shared by several callers, since it
// no longer follows any single caller's context.
const sharedLookupTimeout = 30 * time.Second

// CachedCatalog memoizes another Catalog's descriptors for a bounded time.
// Concurrent misses for the same table share one introspection query.
type CachedCatalog struct {
	inner  Catalog
	tables *expirable.LRU[string, TableDescriptor]
	lists  *expirable.LRU[string, []string]
	group  singleflight.Group
	rec    *telemetry.Recorder
}

// NewCachedCatalog wraps inner with an LRU of the given size and TTL.
// rec may be nil.
func NewCachedCatalog(inner Catalog, size int, ttl time.Duration, rec *telemetry.Recorder) *CachedCatalog {
	if size <= 0 {
		size = 64
	}
	return &CachedCatalog{
		inner:  inner,
		tables: expirable.NewLRU[string, TableDescriptor](size, nil, ttl),
		lists:  expirable.NewLRU[string, []string](1, nil, ttl),
		rec:    rec,
	}
}

// DescribeTable returns the cached descriptor or describes the table once.
// Failed lookups are not cached. A caller whose context ends stops waiting
// without failing the others sharing the lookup.
func (c *CachedCatalog) DescribeTable(ctx context.Context, table string) (TableDescriptor, error) {
	if desc, ok := c.tables.Get(table); ok {
		c.rec.CatalogLookup(true)
		return desc, nil
	}
	c.rec.CatalogLookup(false)

	ch := c.group.DoChan(table, func() (interface{}, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedLookupTimeout)
		defer cancel()
		desc, err := c.inner.DescribeTable(lookupCtx, table)
		if err != nil {
			return TableDescriptor{}, err
		}
		c.tables.Add(table, desc)
		return desc, nil
	})

	select {
	case <-ctx.Done():
		return TableDescriptor{}, apperrors.Classify(fmt.Sprintf("describe table %s", table), ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return TableDescriptor{}, res.Err
		}
		return res.Val.(TableDescriptor), nil
	}
}

// ListTables returns the cached table list or lists tables once.
func (c *CachedCatalog) ListTables(ctx context.Context) ([]string, error) {
	if tables, ok := c.lists.Get(tablesKey); ok {
		return append([]string(nil), tables...), nil
	}
	tables, err := c.inner.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	c.lists.Add(tablesKey, tables)
	return append([]string(nil), tables...), nil
}

// Invalidate drops the named descriptors, or everything when no names are given.
// The table list is always dropped.
func (c *CachedCatalog) Invalidate(tables ...string) {
	c.lists.Purge()
	if len(tables) == 0 {
		c.tables.Purge()
	} else {
		for _, t := range tables {
			c.tables.Remove(t)
		}
	}
	c.inner.Invalidate(tables...)
}
