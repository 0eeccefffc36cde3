package metrics

import "github.com/prometheus/client_golang/prometheus"

// Ingestion, index and retrieval metrics.
var (
	ChunksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_total",
			Help:      "Chunks produced by the splitter",
		},
	)

	DocumentsIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_ingested_total",
			Help:      "Documents processed by the ingestion pipeline",
		},
		[]string{"status"}, // "ok" or the failed stage
	)

	UpsertBatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upsert_batches_total",
			Help:      "Upsert batches sent to the vector index",
		},
		[]string{"status"},
	)

	UpsertBatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upsert_batch_duration_seconds",
			Help:      "Duration of a single upsert batch",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	IndexEnsureTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_ensure_total",
			Help:      "Index lifecycle outcomes",
		},
		[]string{"outcome"}, // existing, created, recreated, timeout, error
	)

	RetrievalTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_total",
			Help:      "Questions answered by the retrieval orchestrator",
		},
		[]string{"outcome"}, // answered, no_context, error
	)

	LLMRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of completion requests",
		},
		[]string{"model", "status"},
	)

	LLMRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Completion request duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"model"},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers ingestion and retrieval metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(
		ChunksTotal,
		DocumentsIngestedTotal,
		UpsertBatchesTotal,
		UpsertBatchDuration,
		IndexEnsureTotal,
		RetrievalTotal,
		LLMRequestsTotal,
		LLMRequestDuration,
	)
	pipelineMetricsRegistered = true
}
