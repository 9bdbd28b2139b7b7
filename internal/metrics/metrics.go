// Package metrics provides Prometheus metrics for the iron-studio server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ironstudio_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ironstudio_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Store primitive metrics, labelled by driver
	storeOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ironstudio_store_operation_duration_seconds",
			Help:    "Object store primitive duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"driver", "operation"},
	)

	storeOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ironstudio_store_operations_total",
			Help: "Total object store primitive calls",
		},
		[]string{"driver", "operation", "status"},
	)

	storeBytesWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ironstudio_store_bytes_written_total",
			Help: "Total bytes written to object stores",
		},
	)

	// Composite file operations
	fileOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ironstudio_file_operations_total",
			Help: "Total composite file operations by outcome",
		},
		[]string{"operation", "state"},
	)

	fileOperationSteps = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ironstudio_file_operation_steps",
			Help:    "Number of store calls attempted per composite operation",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 1000},
		},
		[]string{"operation"},
	)

	// Listing cache
	listingsDiscardedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ironstudio_listings_discarded_total",
			Help: "Listing results dropped because a newer request was dispatched",
		},
	)

	// Sessions
	sessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ironstudio_sessions_active",
			Help: "Number of sessions holding an open store handle",
		},
	)

	profileTestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ironstudio_profile_connection_tests_total",
			Help: "Total profile connection tests",
		},
		[]string{"result"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, path string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(code)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordStoreOperation records one store primitive call.
func RecordStoreOperation(driver, operation string, duration time.Duration, success bool) {
	storeOperationDuration.WithLabelValues(driver, operation).Observe(duration.Seconds())
	storeOperationsTotal.WithLabelValues(driver, operation, status(success)).Inc()
}

// RecordBytesWritten adds n to the written bytes counter.
func RecordBytesWritten(n int) {
	storeBytesWritten.Add(float64(n))
}

// RecordFileOperation records the outcome of a composite operation.
func RecordFileOperation(operation, state string, steps int) {
	fileOperationsTotal.WithLabelValues(operation, state).Inc()
	fileOperationSteps.WithLabelValues(operation).Observe(float64(steps))
}

// RecordListingDiscarded counts a stale listing result.
func RecordListingDiscarded() {
	listingsDiscardedTotal.Inc()
}

// SetActiveSessions sets the number of open sessions.
func SetActiveSessions(n int) {
	sessionsActive.Set(float64(n))
}

// RecordProfileTest records a connection test.
func RecordProfileTest(success bool) {
	profileTestsTotal.WithLabelValues(status(success)).Inc()
}
