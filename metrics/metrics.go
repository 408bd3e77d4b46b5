// Package metrics registers the valuation engine's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Evaluations counts completed evaluations by method and retrieval path.
	Evaluations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "casevalue_evaluations_total",
			Help: "Completed case evaluations.",
		},
		[]string{"method", "retrieval_path"},
	)

	// EvaluationDuration observes end-to-end evaluation latency.
	EvaluationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "casevalue_evaluation_duration_seconds",
			Help:    "Duration of case evaluations.",
			Buckets: prometheus.DefBuckets,
		},
	)

	// RetrievalFallbacks counts switches to structured-only retrieval by reason.
	RetrievalFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "casevalue_retrieval_fallbacks_total",
			Help: "Retrievals that fell back to structured similarity.",
		},
		[]string{"reason"},
	)

	// EmbeddingRequests counts embedding calls by provider and status.
	EmbeddingRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "casevalue_embedding_requests_total",
			Help: "Embedding service requests.",
		},
		[]string{"provider", "status"},
	)

	// WeightsRefreshes counts weights cache recomputations by status.
	WeightsRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "casevalue_weights_refreshes_total",
			Help: "Weights snapshot recomputations.",
		},
		[]string{"status"},
	)

	// NovelCases counts evaluations flagged as novel.
	NovelCases = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "casevalue_novel_cases_total",
			Help: "Evaluations flagged as novel cases.",
		},
	)

	// DeductionsTriggered counts triggered deductions by name.
	DeductionsTriggered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "casevalue_deductions_triggered_total",
			Help: "Narrative deductions applied to evaluations.",
		},
		[]string{"deduction"},
	)
)
