package metrics

import (
	"time"

	"github.com/noveum/gatebench/internal/observability"
)

// Benchmark metrics following Prometheus conventions
var (
	RequestsTotal       = "gatebench_requests_total"
	AttemptsTotal       = "gatebench_attempts_total"
	RequestLatency      = "gatebench_request_latency_ms"
	RoundOverheadMillis = "gatebench_round_overhead_ms"
	RoundsTotal         = "gatebench_rounds_total"
)

// RecordRequest records the final outcome of a logical request.
func RecordRequest(endpoint string, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			RequestsTotal,
			1,
			map[string]string{
				"endpoint": endpoint,
				"status":   status,
			},
		)
	}
}

// RecordAttempt records one HTTP attempt; class is empty for a success.
func RecordAttempt(endpoint string, class string) {
	if class == "" {
		class = "ok"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			AttemptsTotal,
			1,
			map[string]string{
				"endpoint": endpoint,
				"class":    class,
			},
		)
	}
}

// RecordLatency records the latency of a successful request.
func RecordLatency(endpoint string, latency time.Duration) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Histogram(
			RequestLatency,
			latency,
			map[string]string{
				"endpoint": endpoint,
			},
		)
	}
}

// RecordRound records a finished round and its overhead.
func RecordRound(overhead time.Duration) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(RoundsTotal, 1, nil)
		_ = observability.TelemetrySystem.Gauge(
			RoundOverheadMillis,
			float64(overhead)/float64(time.Millisecond),
			nil,
		)
	}
}
