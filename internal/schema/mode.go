package schema

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/stwalsh4118/dealdesk/internal/telemetry"
)

// Catalog modes selectable through configuration.
const (
	ModeIntrospect = "introspect"
	ModeRegistry   = "registry"
)

// Options configures Open.
type Options struct {
	Mode      string
	Schema    string
	CacheSize int
	CacheTTL  time.Duration
	Recorder  *telemetry.Recorder
}

// Open returns the catalog for the configured mode. In introspect mode a
// zero CacheTTL disables caching and information_schema is read per call.
func Open(db sqlx.QueryerContext, opts Options) (Catalog, error) {
	switch opts.Mode {
	case ModeRegistry:
		return NewRegistry(opts.Schema), nil
	case ModeIntrospect, "":
		intro := NewIntrospector(db, opts.Schema)
		if opts.CacheTTL <= 0 {
			return intro, nil
		}
		return NewCachedCatalog(intro, opts.CacheSize, opts.CacheTTL, opts.Recorder), nil
	default:
		return nil, fmt.Errorf("unknown schema mode %q", opts.Mode)
	}
}
