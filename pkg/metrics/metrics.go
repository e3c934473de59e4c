// Package metrics owns the run-level Prometheus metrics and the HTTP handler
// exposing every fssp_* metric. Component metrics are defined in their own
// packages (client, ratelimit, cache, submit, store, poll, collect) and
// registered through promauto on the default registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry is the registry all fssp metrics are registered with.
	Registry = prometheus.DefaultRegisterer

	// Gatherer is what Handler exposes.
	Gatherer = prometheus.DefaultGatherer
)

// Run outcomes.
const (
	OutcomeComplete   = "complete"
	OutcomeIncomplete = "incomplete"
	OutcomeFailed     = "failed"
	OutcomeEmpty      = "empty"
)

var (
	// RunsTotal counts pipeline runs by outcome.
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fssp_runs_total",
		Help: "Pipeline runs by outcome",
	}, []string{"outcome"})

	// RunDuration observes the wall time of a pipeline run.
	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fssp_run_duration_seconds",
		Help:    "Pipeline run duration",
		Buckets: []float64{1, 10, 30, 60, 300, 600, 1800, 3600},
	})
)

// ObserveRun records a finished run.
func ObserveRun(outcome string, seconds float64) {
	RunsTotal.WithLabelValues(outcome).Inc()
	RunDuration.Observe(seconds)
}

// Handler serves Gatherer in the Prometheus text format. Scrapes of the
// handler itself are counted on Registry.
func Handler() http.Handler {
	return promhttp.InstrumentMetricHandler(Registry, promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{}))
}

// Metrics Documentation
//
// Run Metrics (pkg/metrics):
//   - fssp_runs_total{outcome} (Counter): Runs by outcome (complete, incomplete, failed, empty)
//   - fssp_run_duration_seconds (Histogram): Run wall time
//
// Request Metrics (pkg/client):
//   - fssp_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status
//   - fssp_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - fssp_errors_total{class} (Counter): Errors by class (rate_limited, client, server, network, protocol)
//
// Pacing Metrics (pkg/ratelimit):
//   - fssp_pacer_wait_seconds (Histogram): Time waited for submission spacing
//   - fssp_pacer_store_errors_total{operation} (Counter): Shared pacing state errors
//
// Submission Metrics (pkg/submit):
//   - fssp_submit_attempts_total (Counter): Submission attempts
//   - fssp_submit_retries_total{reason} (Counter): Retries by reason
//   - fssp_batches_dropped_total (Counter): Batches abandoned without a task id
//
// Journal Metrics (pkg/cache):
//   - fssp_journal_hits_total (Counter): Batches served from the journal
//   - fssp_journal_misses_total (Counter): Journal lookups without entry
//   - fssp_journal_errors_total{operation} (Counter): Journal operation errors
//
// Task Metrics (pkg/store, pkg/poll, pkg/collect):
//   - fssp_pending_tasks (Gauge): Tasks awaiting a status check
//   - fssp_tasks_total{state} (Counter): Polled tasks by outcome (ready, incomplete, status_error, result_error, cancelled)
//   - fssp_records_total (Counter): Records collected
//
// Example Prometheus Queries:
//
//   # Share of attempts rejected by backpressure
//   rate(fssp_submit_retries_total{reason="rate_limited"}[15m]) /
//   rate(fssp_submit_attempts_total[15m])
//
//   # Tasks lost to incomplete processing
//   increase(fssp_tasks_total{state="incomplete"}[1d])
//
//   # P95 status check latency
//   histogram_quantile(0.95, rate(fssp_request_duration_seconds_bucket{endpoint="status"}[5m]))
