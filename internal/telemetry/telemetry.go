// Package telemetry exposes Prometheus instrumentation for the persistence core.
// A nil *Recorder is valid and records nothing.
package telemetry

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dealdesk"

// Outcome labels for tab saves.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
	OutcomeRetry = "retry"
)

// Recorder holds the collectors used by the catalog, engine, and aggregator.
type Recorder struct {
	tabSaves        *prometheus.CounterVec
	tabSaveDuration *prometheus.HistogramVec
	catalogLookups  *prometheus.CounterVec
	degradedReads   *prometheus.CounterVec
	httpRequests    *prometheus.HistogramVec
}

// New creates a Recorder and registers its collectors with reg.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		tabSaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tab_saves_total",
			Help:      "Tab save attempts by tab and outcome.",
		}, []string{"tab", "outcome"}),
		tabSaveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tab_save_duration_seconds",
			Help:      "Duration of tab save transactions.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tab"}),
		catalogLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schema_catalog_lookups_total",
			Help:      "Schema catalog descriptor lookups by cache result.",
		}, []string{"result"}),
		degradedReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregate_degraded_reads_total",
			Help:      "Dimension reads skipped while assembling deal assumptions.",
		}, []string{"table"}),
		httpRequests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of ops server requests by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(r.tabSaves, r.tabSaveDuration, r.catalogLookups, r.degradedReads, r.httpRequests)
	return r
}

// TabSave records one save attempt.
func (r *Recorder) TabSave(tab, outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.tabSaves.WithLabelValues(tab, outcome).Inc()
	if outcome != OutcomeRetry {
		r.tabSaveDuration.WithLabelValues(tab).Observe(elapsed.Seconds())
	}
}

// CatalogLookup records a catalog cache hit or miss.
func (r *Recorder) CatalogLookup(hit bool) {
	if r == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	r.catalogLookups.WithLabelValues(result).Inc()
}

// DegradedRead records a dimension that could not be merged into a deal record.
func (r *Recorder) DegradedRead(table string) {
	if r == nil {
		return
	}
	r.degradedReads.WithLabelValues(table).Inc()
}

// HTTPRequest records one served request. Unmatched routes should be passed
// as an empty string so arbitrary paths do not become label values.
func (r *Recorder) HTTPRequest(method, route string, status int, elapsed time.Duration) {
	if r == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
