// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcomes recorded for auth operations.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

var (
	AuthOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "movieauth", Name: "auth_operations_total", Help: "Session operations by operation and outcome."},
		[]string{"operation", "outcome"},
	)
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "movieauth", Name: "http_requests_total", Help: "HTTP requests by method, route pattern and status."},
		[]string{"method", "route", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: "movieauth", Name: "http_request_duration_seconds", Help: "HTTP request latency by method and route pattern.", Buckets: prometheus.DefBuckets},
		[]string{"method", "route"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(AuthOperations)
	reg.MustRegister(HTTPRequests)
	reg.MustRegister(HTTPRequestDuration)
}

// Recorder counts session operations. The zero value records to the package collectors.
type Recorder struct{}

// AuthOperation increments the counter for operation with the given outcome.
func (Recorder) AuthOperation(operation, outcome string) {
	AuthOperations.WithLabelValues(operation, outcome).Inc()
}

// ObserveHTTPRequest records one served request.
func ObserveHTTPRequest(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
