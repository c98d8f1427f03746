// Package metrics defines the Prometheus metric collectors used by the movie
// index and its services and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the platform.
type Metrics struct {
	HTTPRequestsTotal      *prometheus.CounterVec
	HTTPRequestDuration    *prometheus.HistogramVec
	HTTPRequestsInFlight   prometheus.Gauge
	RecordsIndexedTotal    *prometheus.CounterVec
	IndexFailuresTotal     *prometheus.CounterVec
	DuplicatesIgnoredTotal *prometheus.CounterVec
	BucketsCreatedTotal    *prometheus.CounterVec
	KeyCollisionsTotal     *prometheus.CounterVec
	LookupsTotal           *prometheus.CounterVec
	RowsConsumedTotal      *prometheus.CounterVec
	StoredRecords          prometheus.Gauge
	CacheHitsTotal         prometheus.Counter
	CacheMissesTotal       prometheus.Counter
	CacheBreakerState      prometheus.Gauge
	RateLimitedTotal       prometheus.Counter
}

// New creates all collectors and registers them with reg. A nil reg uses the
// default Prometheus registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		RecordsIndexedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "movieindex_records_indexed_total",
				Help: "Records successfully indexed, by index.",
			},
			[]string{"index"},
		),
		IndexFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "movieindex_index_failures_total",
				Help: "Failed indexing operations by index and reason.",
			},
			[]string{"index", "reason"},
		),
		DuplicatesIgnoredTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "movieindex_duplicates_ignored_total",
				Help: "Insertions absorbed because the record was already in the set.",
			},
			[]string{"index"},
		),
		BucketsCreatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "movieindex_buckets_created_total",
				Help: "Buckets created, by index.",
			},
			[]string{"index"},
		),
		KeyCollisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "movieindex_key_collisions_total",
				Help: "Distinct field values that hashed to an occupied key.",
			},
			[]string{"index"},
		),
		LookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "movieindex_lookups_total",
				Help: "Lookups by index and result (hit, miss).",
			},
			[]string{"index", "result"},
		),
		RowsConsumedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "movieindex_rows_consumed_total",
				Help: "Raw rows consumed by source and status (indexed, parse_error, index_error).",
			},
			[]string{"source", "status"},
		),
		StoredRecords: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "movieindex_stored_records",
				Help: "Distinct records held by the engine's record store.",
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses.",
			},
		),
		CacheBreakerState: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "cache_breaker_state",
				Help: "Redis cache circuit breaker state (0 closed, 1 open, 2 half-open).",
			},
		),
		RateLimitedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "http_rate_limited_total",
				Help: "Requests rejected by the per-client rate limiter.",
			},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.RecordsIndexedTotal,
		m.IndexFailuresTotal,
		m.DuplicatesIgnoredTotal,
		m.BucketsCreatedTotal,
		m.KeyCollisionsTotal,
		m.LookupsTotal,
		m.RowsConsumedTotal,
		m.StoredRecords,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheBreakerState,
		m.RateLimitedTotal,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
