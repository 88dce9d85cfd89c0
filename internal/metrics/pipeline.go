package metrics

import "github.com/prometheus/client_golang/prometheus"

// Pipeline Prometheus metrics.
var (
	IngestionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reportlens",
			Name:      "ingestions_total",
			Help:      "Ingestion runs by outcome",
		},
		[]string{"outcome"}, // success / failed / quota_exceeded / skipped
	)

	IngestionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "reportlens",
			Name:      "ingestion_duration_seconds",
			Help:      "Ingestion duration in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	IngestionPages = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "reportlens",
			Name:      "ingestion_pages",
			Help:      "Pages per ingested document",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 11),
		},
	)

	ExtractionCellsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reportlens",
			Name:      "extraction_cells_total",
			Help:      "Component extractions by outcome",
		},
		[]string{"outcome"}, // found / absent / failed
	)

	RetrievalAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reportlens",
			Name:      "retrieval_attempts_total",
			Help:      "Namespace search attempts by result",
		},
		[]string{"result"}, // ok / retry / not_found / error
	)

	ChatTurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reportlens",
			Name:      "chat_turns_total",
			Help:      "Chat turns by terminal state",
		},
		[]string{"state"}, // persisted / failed
	)
)

var registered bool

// Register registers embedding, chat model and pipeline metrics. Must be called once from main.
func Register() {
	if registered {
		return
	}
	prometheus.MustRegister(
		EmbeddingRequestsTotal,
		EmbeddingRequestDuration,
		EmbeddingTokensTotal,
		EmbeddingErrorsTotal,
		EmbeddingCacheTotal,
		LLMRequestsTotal,
		LLMRequestDuration,
		LLMTokensTotal,
		LLMRateLimitWaitSeconds,
		IngestionsTotal,
		IngestionDuration,
		IngestionPages,
		ExtractionCellsTotal,
		RetrievalAttemptsTotal,
		ChatTurnsTotal,
	)
	registered = true
}
