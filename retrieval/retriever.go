// Package retrieval finds the historical cases most similar to a query case,
// by hybrid vector search when embeddings are available and by structured
// field similarity otherwise.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"casevalue-backend/embedding"
	"casevalue-backend/features"
	"casevalue-backend/metrics"
	"casevalue-backend/models"
)

const (
	// DefaultLimit is the neighborhood size requested from the corpus
	DefaultLimit = 25

	exactInjuryBoost    = 1.3
	categoryInjuryBoost = 1.15
)

var ErrCorpusUnavailable = errors.New("historical corpus unavailable")

// Fallback reasons recorded in metrics and logs
const (
	reasonNoEmbedder     = "no_embedder"
	reasonEmbeddingError = "embedding_error"
	reasonSearchError    = "search_error"
	reasonEmptyResults   = "empty_results"
)

// Corpus is the historical case store. SearchSimilar runs the hybrid
// vector query; ScanSettled reads every case with a positive settlement.
type Corpus interface {
	SearchSimilar(ctx context.Context, embedding []float32, filters models.SimilarityFilters, limit int) ([]models.HistoricalCase, error)
	ScanSettled(ctx context.Context) ([]models.HistoricalCase, error)
}

// Result carries the neighbors and which path produced them
type Result struct {
	Cases []models.HistoricalCase
	Path  models.RetrievalPath
	// FallbackReason is set when the structured path was used
	FallbackReason string
}

// Retriever implements primary and fallback similarity retrieval
type Retriever struct {
	corpus    Corpus
	embedder  embedding.Embedder
	extractor *features.Extractor
	logger    *zap.Logger
	limit     int
}

// Option is a functional option for Retriever
type Option func(*Retriever)

// WithEmbedder enables the vector search path
func WithEmbedder(e embedding.Embedder) Option {
	return func(r *Retriever) {
		r.embedder = e
	}
}

// WithExtractor sets the extractor used to featurize corpus cases
func WithExtractor(e *features.Extractor) Option {
	return func(r *Retriever) {
		r.extractor = e
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(r *Retriever) {
		r.logger = logger
	}
}

// WithLimit sets the default neighborhood size
func WithLimit(limit int) Option {
	return func(r *Retriever) {
		if limit > 0 {
			r.limit = limit
		}
	}
}

// NewRetriever creates a retriever over corpus
func NewRetriever(corpus Corpus, opts ...Option) *Retriever {
	r := &Retriever{
		corpus:    corpus,
		extractor: features.NewExtractor(),
		logger:    zap.NewNop(),
		limit:     DefaultLimit,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve returns up to limit settled cases ordered by descending
// similarity. Embedding or search failures fall back to structured scoring;
// an error is returned only when the corpus itself cannot be read.
func (r *Retriever) Retrieve(ctx context.Context, q models.SimilarityQuery, limit int) (*Result, error) {
	ctx, span := otel.Tracer("retrieval").Start(ctx, "retrieval.Retrieve")
	defer span.End()

	if limit <= 0 {
		limit = r.limit
	}

	cases, reason := r.primary(ctx, q, limit)
	if reason == "" {
		span.SetAttributes(attribute.String("path", string(models.PathEmbedding)), attribute.Int("neighbors", len(cases)))
		return &Result{Cases: cases, Path: models.PathEmbedding}, nil
	}

	metrics.RetrievalFallbacks.WithLabelValues(reason).Inc()
	r.logger.Info("falling back to structured retrieval", zap.String("reason", reason))

	cases, err := r.fallback(ctx, q, limit)
	span.SetAttributes(attribute.String("fallback_reason", reason), attribute.Int("neighbors", len(cases)))
	if err != nil {
		span.RecordError(err)
		return &Result{Path: models.PathNone, FallbackReason: reason}, err
	}
	if len(cases) == 0 {
		return &Result{Path: models.PathNone, FallbackReason: reason}, nil
	}
	return &Result{Cases: cases, Path: models.PathStructured, FallbackReason: reason}, nil
}

// primary runs the embedding path. A non-empty reason means it produced
// nothing usable.
func (r *Retriever) primary(ctx context.Context, q models.SimilarityQuery, limit int) ([]models.HistoricalCase, string) {
	if r.embedder == nil && len(q.Embedding) == 0 {
		return nil, reasonNoEmbedder
	}

	vector := q.Embedding
	if len(vector) == 0 {
		var err error
		vector, err = r.embedder.Embed(ctx, Describe(q.Case, q.Narrative))
		if err != nil {
			r.logger.Warn("embedding failed", zap.Error(err))
			trace.SpanFromContext(ctx).AddEvent("embedding failed", trace.WithAttributes(attribute.String("error", err.Error())))
			return nil, reasonEmbeddingError
		}
	}

	found, err := r.corpus.SearchSimilar(ctx, vector, q.Filters, limit)
	if err != nil {
		r.logger.Warn("similarity search failed", zap.Error(err))
		trace.SpanFromContext(ctx).AddEvent("similarity search failed", trace.WithAttributes(attribute.String("error", err.Error())))
		return nil, reasonSearchError
	}

	settled := make([]models.HistoricalCase, 0, len(found))
	for _, hc := range found {
		if hc.Settlement <= 0 {
			continue
		}
		hc.Similarity *= InjuryBoost(q.Case, hc.Record)
		settled = append(settled, r.featurize(hc))
	}
	if len(settled) == 0 {
		return nil, reasonEmptyResults
	}

	sort.SliceStable(settled, func(i, j int) bool {
		return settled[i].Similarity > settled[j].Similarity
	})
	if len(settled) > limit {
		settled = settled[:limit]
	}
	return settled, ""
}

func (r *Retriever) fallback(ctx context.Context, q models.SimilarityQuery, limit int) ([]models.HistoricalCase, error) {
	all, err := r.corpus.ScanSettled(ctx)
	if err != nil {
		r.logger.Warn("corpus scan failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrCorpusUnavailable, err)
	}
	ranked := rankStructured(q.Case, all, limit)
	for i := range ranked {
		ranked[i] = r.featurize(ranked[i])
	}
	return ranked, nil
}

// featurize fills Features for a corpus case loaded without them
func (r *Retriever) featurize(hc models.HistoricalCase) models.HistoricalCase {
	if hc.Features == (models.CaseFeatures{}) {
		hc.Features = r.extractor.ExtractHistorical(hc.Record, hc.Narrative, hc.Settlement)
	}
	return hc
}

// InjuryBoost is the similarity multiplier for a retrieved case: 1.3 for an
// exact primary-injury match, 1.15 for an overlapping injury category, else 1
func InjuryBoost(query, candidate models.CaseInput) float64 {
	qp := normalizeLabel(query.PrimaryInjury)
	if qp != "" && qp == normalizeLabel(candidate.PrimaryInjury) {
		return exactInjuryBoost
	}
	candidateCategories := features.InjuryCategories(injuryText(candidate))
	for _, cat := range features.InjuryCategories(injuryText(query)) {
		for _, other := range candidateCategories {
			if cat == other {
				return categoryInjuryBoost
			}
		}
	}
	return 1
}
