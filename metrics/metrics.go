// Package metrics holds the Prometheus collectors for ingestion runs and the
// HTTP API. Collectors live on their own registry so several instances can
// coexist in one process (tests, embedded servers).
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector.
type Metrics struct {
	registry *prometheus.Registry

	// Ingestion
	IngestRunsTotal   *prometheus.CounterVec
	IngestDuration    prometheus.Histogram
	RowsTotal         *prometheus.CounterVec
	SnapshotsTotal    prometheus.Counter
	SourceDeleteFails prometheus.Counter

	// HTTP API
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	SearchResults   prometheus.Histogram
}

// New creates and registers all collectors on a fresh registry, along with
// the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		IngestRunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "taxonav_ingest_runs_total",
			Help: "Ingestion runs by outcome (ok, failed, idle).",
		}, []string{"outcome"}),

		IngestDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "taxonav_ingest_duration_seconds",
			Help:    "Duration of ingestion runs that processed a source.",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),

		RowsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "taxonav_rows_total",
			Help: "Data rows seen by the sheet transforms, by category and result (kept, dropped).",
		}, []string{"category", "result"}),

		SnapshotsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "taxonav_snapshots_written_total",
			Help: "Snapshots persisted.",
		}),

		SourceDeleteFails: f.NewCounter(prometheus.CounterOpts{
			Name: "taxonav_source_delete_failures_total",
			Help: "Consumed sources that could not be removed after their snapshot was written.",
		}),

		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "taxonav_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"route", "code"}),

		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "taxonav_http_request_duration_seconds",
			Help:    "HTTP request duration by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),

		SearchResults: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "taxonav_search_results",
			Help:    "Records returned per search.",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
		}),
	}
}

// Registry exposes the registry for tests and custom exporters.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordRun records one ingestion run. A nil Metrics is a no-op.
func (m *Metrics) RecordRun(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.IngestRunsTotal.WithLabelValues(outcome).Inc()
	if outcome != OutcomeIdle {
		m.IngestDuration.Observe(d.Seconds())
	}
}

// RecordRows records kept and dropped row counts for a category.
func (m *Metrics) RecordRows(category string, kept, dropped int) {
	if m == nil {
		return
	}
	m.RowsTotal.WithLabelValues(category, "kept").Add(float64(kept))
	m.RowsTotal.WithLabelValues(category, "dropped").Add(float64(dropped))
}

// RecordSnapshot counts a persisted snapshot.
func (m *Metrics) RecordSnapshot() {
	if m == nil {
		return
	}
	m.SnapshotsTotal.Inc()
}

// RecordDeleteFailure counts a source that outlived its snapshot.
func (m *Metrics) RecordDeleteFailure() {
	if m == nil {
		return
	}
	m.SourceDeleteFails.Inc()
}

// RecordRequest records one HTTP request.
func (m *Metrics) RecordRequest(route string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(route, codeLabel(code)).Inc()
	m.RequestDuration.WithLabelValues(route).Observe(d.Seconds())
}

// RecordSearch records the size of a search result.
func (m *Metrics) RecordSearch(n int) {
	if m == nil {
		return
	}
	m.SearchResults.Observe(float64(n))
}

// Run outcomes.
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
	OutcomeIdle   = "idle"
)

func codeLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
