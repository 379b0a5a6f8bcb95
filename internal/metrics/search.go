package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Search backend and submission metrics.
var (
	BackendRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vibematch",
			Name:      "backend_requests_total",
			Help:      "Total number of search backend requests",
		},
		[]string{"endpoint", "status"}, // status: "success" | "error" | "malformed" | "rate_limited"
	)

	BackendRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vibematch",
			Name:      "backend_request_duration_seconds",
			Help:      "Search backend request duration in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint"},
	)

	SubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vibematch",
			Name:      "submissions_total",
			Help:      "View submissions by outcome",
		},
		[]string{"outcome"}, // "success" | "failure" | "empty" | "in_flight"
	)
)

var registerSearchOnce sync.Once

// RegisterSearchMetrics registers backend and submission metrics. Safe to call more than once.
func RegisterSearchMetrics() {
	registerSearchOnce.Do(func() {
		prometheus.MustRegister(BackendRequestsTotal)
		prometheus.MustRegister(BackendRequestDuration)
		prometheus.MustRegister(SubmissionsTotal)
	})
}
