// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Backtest metrics
	BacktestsRun     *prometheus.CounterVec
	BacktestDuration *prometheus.HistogramVec

	// Oracle metrics
	OracleCalls    prometheus.Counter
	OracleFailures *prometheus.CounterVec
	OracleLatency  prometheus.Histogram

	// Ingestion metrics
	BarsIngested   prometheus.Counter
	BarsSkipped    prometheus.Counter
	TicksProcessed prometheus.Counter

	// HTTP metrics
	HTTPRequestDuration *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulIngestion prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "viklyst"
	}

	return &Metrics{
		BacktestsRun: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "runs_total",
			Help:      "Total number of backtest runs by strategy and status",
		}, []string{"strategy", "status"}),
		BacktestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "duration_seconds",
			Help:      "Backtest run duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"strategy"}),

		OracleCalls: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "calls_total",
			Help:      "Total number of oracle predict calls",
		}),
		OracleFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "failures_total",
			Help:      "Total number of failed oracle calls by reason",
		}, []string{"reason"}),
		OracleLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "call_latency_seconds",
			Help:      "Oracle predict call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		BarsIngested: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "bars_ingested_total",
			Help:      "Total number of daily bars stored",
		}),
		BarsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "bars_skipped_total",
			Help:      "Total number of daily bars skipped as duplicates",
		}),
		TicksProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "ticks_processed_total",
			Help:      "Total number of trade ticks processed",
		}),

		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		LastSuccessfulIngestion: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_ingestion_timestamp",
			Help:      "Unix timestamp of last successful ingestion",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordBacktest records one backtest run.
func RecordBacktest(strategy, status string, durationSeconds float64) {
	DefaultMetrics.BacktestsRun.WithLabelValues(strategy, status).Inc()
	DefaultMetrics.BacktestDuration.WithLabelValues(strategy).Observe(durationSeconds)
}

// RecordOracleCall records one oracle predict call. A non-empty failureReason
// marks the call failed.
func RecordOracleCall(seconds float64, failureReason string) {
	DefaultMetrics.OracleCalls.Inc()
	DefaultMetrics.OracleLatency.Observe(seconds)
	if failureReason != "" {
		DefaultMetrics.OracleFailures.WithLabelValues(failureReason).Inc()
	}
}

// RecordBarIngested increments the bars ingested counter.
func RecordBarIngested() {
	DefaultMetrics.BarsIngested.Inc()
}

// RecordBarSkipped increments the bars skipped counter.
func RecordBarSkipped() {
	DefaultMetrics.BarsSkipped.Inc()
}

// RecordTickProcessed increments the ticks processed counter.
func RecordTickProcessed() {
	DefaultMetrics.TicksProcessed.Inc()
}

// RecordIngestionSuccess stamps the last successful ingestion time.
func RecordIngestionSuccess() {
	DefaultMetrics.LastSuccessfulIngestion.SetToCurrentTime()
}

// RecordHTTPRequest records one HTTP request.
func RecordHTTPRequest(route, method, status string, seconds float64) {
	DefaultMetrics.HTTPRequestDuration.WithLabelValues(route, method, status).Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
