package internal

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for HTTP requests and imports
type Metrics struct {
	reqTotal      *prometheus.CounterVec
	reqLatency    *prometheus.HistogramVec
	importRecords *prometheus.CounterVec
	importBatches *prometheus.CounterVec
	registry      *prometheus.Registry
}

// NewMetrics creates a new Metrics instance with a private Prometheus registry
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	reqTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	reqLatency := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	importRecords := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registry_import_records_total",
			Help: "Records seen by batch imports, by outcome",
		},
		[]string{"kind", "outcome"},
	)

	importBatches := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registry_import_batches_total",
			Help: "Batch import requests, by result",
		},
		[]string{"kind", "result"},
	)

	registry.MustRegister(reqTotal, reqLatency, importRecords, importBatches)

	return &Metrics{
		reqTotal:      reqTotal,
		reqLatency:    reqLatency,
		importRecords: importRecords,
		importBatches: importBatches,
		registry:      registry,
	}
}

// ObserveImport records the outcome of one import request.
func (m *Metrics) ObserveImport(kind, result string, submitted, skipped int) {
	m.importBatches.WithLabelValues(kind, result).Inc()
	m.importRecords.WithLabelValues(kind, "submitted").Add(float64(submitted))
	m.importRecords.WithLabelValues(kind, "skipped").Add(float64(skipped))
}

// RegisterPool exposes connection pool statistics.
func (m *Metrics) RegisterPool(pool *pgxpool.Pool) {
	gauge := func(name, help string, fn func(*pgxpool.Stat) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, func() float64 {
			return fn(pool.Stat())
		})
	}
	m.registry.MustRegister(
		gauge("db_pool_total_conns", "Connections currently in the pool",
			func(s *pgxpool.Stat) float64 { return float64(s.TotalConns()) }),
		gauge("db_pool_acquired_conns", "Connections currently checked out",
			func(s *pgxpool.Stat) float64 { return float64(s.AcquiredConns()) }),
		gauge("db_pool_idle_conns", "Idle connections in the pool",
			func(s *pgxpool.Stat) float64 { return float64(s.IdleConns()) }),
	)
}

// Middleware returns a Chi middleware that collects metrics
func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
			next.ServeHTTP(rw, r)

			// Route pattern keeps label cardinality bounded.
			path := r.URL.Path
			if chiCtx := chi.RouteContext(r.Context()); chiCtx != nil {
				if p := chiCtx.RoutePattern(); p != "" {
					path = p
				}
			}

			status := strconv.Itoa(rw.code)
			m.reqTotal.WithLabelValues(r.Method, path, status).Inc()
			m.reqLatency.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
		})
	}
}

// Handler returns an http.Handler that serves Prometheus metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// statusRecorder captures the HTTP status code for metrics
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.code = code
	sr.ResponseWriter.WriteHeader(code)
}
