package metrics

import "github.com/prometheus/client_golang/prometheus"

// Chat model Prometheus metrics. operation is complete or stream.
var (
	LLMRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reportlens",
			Name:      "llm_requests_total",
			Help:      "Total number of chat model requests",
		},
		[]string{"model", "operation", "status"},
	)

	LLMRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "reportlens",
			Name:      "llm_request_duration_seconds",
			Help:      "Chat model request duration in seconds (time to first byte for streams)",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"model", "operation"},
	)

	LLMTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reportlens",
			Name:      "llm_tokens_total",
			Help:      "Total chat model tokens consumed",
		},
		[]string{"model", "type"}, // prompt / completion
	)

	LLMRateLimitWaitSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "reportlens",
			Name:      "llm_rate_limit_wait_seconds",
			Help:      "Time spent waiting on the local chat model rate limiter",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5},
		},
	)
)
