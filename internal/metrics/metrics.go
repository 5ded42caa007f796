// Package metrics provides Prometheus metrics for the metro sync core.
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
	// Worker metrics
	commandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metro_commands_total",
			Help: "Total number of commands processed by the worker",
		},
		[]string{"command", "outcome"},
	)

	commandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "metro_command_duration_seconds",
			Help:    "Time spent executing a single command",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)

	workerBusy = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "metro_worker_busy",
			Help: "1 while the worker is executing a command",
		},
	)

	// API client metrics
	apiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metro_api_requests_total",
			Help: "Total number of XRPC requests by outcome",
		},
		[]string{"operation", "status"},
	)

	tokenRefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metro_token_refreshes_total",
			Help: "Total number of session refresh attempts",
		},
		[]string{"result"},
	)

	// Cache metrics
	postCacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "metro_post_cache_entries",
			Help: "Number of canonical posts held in the post cache",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordCommand records one processed command.
func RecordCommand(command string, success bool, duration time.Duration) {
	outcome := "ok"
	if !success {
		outcome = "error"
	}
	commandsTotal.WithLabelValues(command, outcome).Inc()
	commandDuration.WithLabelValues(command).Observe(duration.Seconds())
}

// SetWorkerBusy mirrors the worker's busy flag.
func SetWorkerBusy(busy bool) {
	if busy {
		workerBusy.Set(1)
		return
	}
	workerBusy.Set(0)
}

// RecordAPIRequest records one XRPC call. A zero status means the request
// never got a response.
func RecordAPIRequest(operation string, status int) {
	label := "network_error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	apiRequestsTotal.WithLabelValues(operation, label).Inc()
}

// RecordTokenRefresh records a session refresh attempt.
func RecordTokenRefresh(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	tokenRefreshesTotal.WithLabelValues(result).Inc()
}

// SetPostCacheEntries sets the post cache size gauge.
func SetPostCacheEntries(n int) {
	postCacheEntries.Set(float64(n))
}
