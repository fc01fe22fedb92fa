package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the dashboard service.
type Metrics struct {
	// Request metrics
	DashboardQueries *prometheus.CounterVec
	QueryLatency     *prometheus.HistogramVec
	RowsReturned     *prometheus.HistogramVec

	// Store metrics
	StoreQueries   *prometheus.CounterVec
	StoreLatency   *prometheus.HistogramVec
	StoreErrors    *prometheus.CounterVec

	// Cache metrics
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec

	// Comparison metrics
	Comparisons       *prometheus.CounterVec
	UnboundedChanges  prometheus.Counter

	// Anomaly metrics
	AnomaliesDetected *prometheus.CounterVec
	ScanDuration      prometheus.Histogram

	// System metrics
	DBConnections *prometheus.GaugeVec
	RedisLatency  *prometheus.HistogramVec

	// Rate limiting metrics
	RateLimitHits *prometheus.CounterVec
}

var (
	// DefaultMetrics is the global metrics instance
	DefaultMetrics *Metrics
)

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		DashboardQueries: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dashboard_queries_total",
				Help:      "Total dashboard queries served",
			},
			[]string{"entity", "marketplace"},
		),
		QueryLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "query_latency_seconds",
				Help:      "End-to-end query processing latency in seconds",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"endpoint"},
		),
		RowsReturned: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "rows_returned",
				Help:      "Rows returned per dashboard query",
				Buckets:   []float64{1, 10, 25, 100, 500, 1000, 5000},
			},
			[]string{"entity"},
		),

		StoreQueries: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_queries_total",
				Help:      "Metric store queries by backend",
			},
			[]string{"backend", "operation"},
		),
		StoreLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_latency_seconds",
				Help:      "Metric store query latency in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"backend", "operation"},
		),
		StoreErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_errors_total",
				Help:      "Metric store query failures",
			},
			[]string{"backend", "operation"},
		),

		CacheHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Result cache hits",
			},
			[]string{"operation"},
		),
		CacheMisses: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_misses_total",
				Help:      "Result cache misses",
			},
			[]string{"operation"},
		),

		Comparisons: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "comparisons_total",
				Help:      "Period comparisons computed",
			},
			[]string{"entity"},
		),
		UnboundedChanges: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "unbounded_changes_total",
				Help:      "Comparison rows with a zero previous baseline",
			},
		),

		AnomaliesDetected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "anomalies_detected_total",
				Help:      "Anomalies detected by severity",
			},
			[]string{"severity", "metric"},
		),
		ScanDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "anomaly_scan_duration_seconds",
				Help:      "Anomaly scan duration in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60},
			},
		),

		DBConnections: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connections",
				Help:      "Database connection pool stats",
			},
			[]string{"state"}, // idle, in_use, total
		),
		RedisLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "redis_latency_seconds",
				Help:      "Redis operation latency",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
			},
			[]string{"operation"},
		),

		RateLimitHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_hits_total",
				Help:      "Rate limit rejections",
			},
			[]string{"endpoint", "ip"},
		),
	}

	DefaultMetrics = m
	return m
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordDashboardQuery records a served dashboard query.
func (m *Metrics) RecordDashboardQuery(entity, marketplace string, rows int, latency time.Duration) {
	m.DashboardQueries.WithLabelValues(entity, marketplace).Inc()
	m.RowsReturned.WithLabelValues(entity).Observe(float64(rows))
	m.QueryLatency.WithLabelValues("dashboard").Observe(latency.Seconds())
}

// RecordStoreQuery records a metric store round trip.
func (m *Metrics) RecordStoreQuery(backend, operation string, latency time.Duration, err error) {
	m.StoreQueries.WithLabelValues(backend, operation).Inc()
	m.StoreLatency.WithLabelValues(backend, operation).Observe(latency.Seconds())
	if err != nil {
		m.StoreErrors.WithLabelValues(backend, operation).Inc()
	}
}

// RecordCacheHit records a result cache hit.
func (m *Metrics) RecordCacheHit(operation string) {
	m.CacheHits.WithLabelValues(operation).Inc()
}

// RecordCacheMiss records a result cache miss.
func (m *Metrics) RecordCacheMiss(operation string) {
	m.CacheMisses.WithLabelValues(operation).Inc()
}

// RecordComparison records a period comparison and how many of its
// rows had no previous-period baseline.
func (m *Metrics) RecordComparison(entity string, unbounded int) {
	m.Comparisons.WithLabelValues(entity).Inc()
	if unbounded > 0 {
		m.UnboundedChanges.Add(float64(unbounded))
	}
}

// RecordAnomaly records a detected anomaly.
func (m *Metrics) RecordAnomaly(severity, metric string) {
	m.AnomaliesDetected.WithLabelValues(severity, metric).Inc()
}

// RecordScan records an anomaly scan duration.
func (m *Metrics) RecordScan(d time.Duration) {
	m.ScanDuration.Observe(d.Seconds())
}

// UpdateDBStats updates database connection metrics.
func (m *Metrics) UpdateDBStats(idle, inUse, total int) {
	m.DBConnections.WithLabelValues("idle").Set(float64(idle))
	m.DBConnections.WithLabelValues("in_use").Set(float64(inUse))
	m.DBConnections.WithLabelValues("total").Set(float64(total))
}

// RecordRateLimitHit records a rate limit hit.
func (m *Metrics) RecordRateLimitHit(endpoint, ip string) {
	m.RateLimitHits.WithLabelValues(endpoint, ip).Inc()
}
