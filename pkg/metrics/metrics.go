// Package metrics provides the Prometheus registry reference for the Open Exchange client.
// All metrics are defined in their respective packages (client, batch, data, ratelimit)
// to maintain modularity and avoid circular dependencies.
//
// This package provides documentation, an inventory and an HTTP handler for all metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler serves every registered metric in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Inventory lists the names of all metrics exported by the client packages.
var Inventory = []string{
	// pkg/client
	"ox_http_requests_total",
	"ox_http_request_duration_seconds",
	"ox_http_errors_total",
	"ox_http_retries_total",
	"ox_http_retry_backoff_seconds",
	"ox_http_retry_exhausted_total",

	// pkg/batch
	"ox_batch_chunks_total",
	"ox_batch_chunk_duration_seconds",
	"ox_batch_inflight",
	"ox_batch_slot_wait_seconds",

	// pkg/data
	"ox_results_total",
	"ox_parse_errors_total",
	"ox_rental_comps_outcomes_total",
	"ox_rental_comps_selective_retries_total",
	"ox_rental_comps_selective_retry_addresses_total",

	// pkg/ratelimit
	"ox_rate_limit_waits_total",
	"ox_rate_limit_wait_seconds",
	"ox_rate_limit_window_requests",
	"ox_rate_limit_errors_total",
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - ox_http_requests_total{endpoint, status} (Counter): HTTP attempts by endpoint and status
//   - ox_http_request_duration_seconds{endpoint} (Histogram): Logical call duration, retries included
//   - ox_http_errors_total{class} (Counter): Failed attempts by class (client, server, rate_limit, network)
//
// Retry Metrics (pkg/client):
//   - ox_http_retries_total{error_class} (Counter): Retry attempts by error class
//   - ox_http_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - ox_http_retry_exhausted_total{error_class} (Counter): Calls that exhausted max retries
//
// Batch Metrics (pkg/batch):
//   - ox_batch_chunks_total{endpoint, result} (Counter): Chunks dispatched (ok, error)
//   - ox_batch_chunk_duration_seconds{endpoint} (Histogram): Chunk call duration, selective retry included
//   - ox_batch_inflight{pool} (Gauge): Busy worker pool slots
//   - ox_batch_slot_wait_seconds{pool} (Histogram): Time waiting for a free slot
//
// Result Metrics (pkg/data):
//   - ox_results_total{endpoint} (Counter): Per-address results yielded
//   - ox_parse_errors_total{endpoint} (Counter): Responses rejected by schema validation
//   - ox_rental_comps_outcomes_total{outcome} (Counter): Final rental comps classifications
//   - ox_rental_comps_selective_retries_total (Counter): Follow-up requests for unavailable addresses
//   - ox_rental_comps_selective_retry_addresses_total{result} (Counter): Retried addresses (recovered, failed)
//
// Rate Limit Metrics (pkg/ratelimit):
//   - ox_rate_limit_waits_total{layer} (Counter): Requests delayed (local, shared)
//   - ox_rate_limit_wait_seconds{layer} (Histogram): Delay per layer
//   - ox_rate_limit_window_requests (Gauge): Requests admitted in the shared window
//   - ox_rate_limit_errors_total (Counter): Shared quota lookups that failed open
//
// Example Prometheus Queries:
//
//   # Selective retry recovery rate
//   rate(ox_rental_comps_selective_retry_addresses_total{result="recovered"}[5m]) /
//   rate(ox_rental_comps_selective_retry_addresses_total[5m])
//
//   # Failed chunk rate
//   rate(ox_batch_chunks_total{result="error"}[5m])
//
//   # Worker saturation
//   ox_batch_inflight
//
//   # P95 call latency
//   histogram_quantile(0.95, rate(ox_http_request_duration_seconds_bucket[5m]))
