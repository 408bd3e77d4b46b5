// Package service orchestrates a case evaluation: feature extraction,
// retrieval, regression, weights boost, deductions and the mediator proposal.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"casevalue-backend/deductions"
	"casevalue-backend/digest"
	"casevalue-backend/features"
	"casevalue-backend/mediator"
	"casevalue-backend/metrics"
	"casevalue-backend/models"
	"casevalue-backend/money"
	"casevalue-backend/regression"
	"casevalue-backend/retrieval"
	"casevalue-backend/weights"
)

// Retriever finds comparable settled cases
type Retriever interface {
	Retrieve(ctx context.Context, q models.SimilarityQuery, limit int) (*retrieval.Result, error)
}

// WeightsProvider serves the cached corpus weights
type WeightsProvider interface {
	Get(ctx context.Context) (*models.WeightsSnapshot, error)
}

// Config holds the orchestrator's tunables
type Config struct {
	// IgnoreWeights skips the supplementary weights boost
	IgnoreWeights          bool
	IncludeEarlyResolution bool
	NeighborLimit          int
	PrimaryAlpha           float64
	FallbackAlpha          float64
	// A result is novel below either threshold
	NovelMinNeighbors  int
	NovelMinConfidence float64
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		IncludeEarlyResolution: true,
		NeighborLimit:          retrieval.DefaultLimit,
		PrimaryAlpha:           regression.PrimaryAlpha,
		FallbackAlpha:          regression.FallbackAlpha,
		NovelMinNeighbors:      10,
		NovelMinConfidence:     70,
	}
}

// EvaluationService is the engine's single public entry point
type EvaluationService struct {
	retriever Retriever
	weights   WeightsProvider
	extractor *features.Extractor
	logger    *zap.Logger
	now       func() time.Time
	config    Config
	validate  *validator.Validate
}

// EvaluationServiceOption is a functional option for EvaluationService
type EvaluationServiceOption func(*EvaluationService)

// WithRetriever sets the similarity retriever
func WithRetriever(r Retriever) EvaluationServiceOption {
	return func(s *EvaluationService) {
		s.retriever = r
	}
}

// WithWeights sets the weights cache
func WithWeights(w WeightsProvider) EvaluationServiceOption {
	return func(s *EvaluationService) {
		s.weights = w
	}
}

// WithExtractor sets the feature extractor
func WithExtractor(e *features.Extractor) EvaluationServiceOption {
	return func(s *EvaluationService) {
		s.extractor = e
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) EvaluationServiceOption {
	return func(s *EvaluationService) {
		s.logger = logger
	}
}

// WithClock sets the time source for evaluation and expiry timestamps
func WithClock(now func() time.Time) EvaluationServiceOption {
	return func(s *EvaluationService) {
		s.now = now
	}
}

// WithConfig replaces the default configuration
func WithConfig(cfg Config) EvaluationServiceOption {
	return func(s *EvaluationService) {
		s.config = cfg
	}
}

// NewEvaluationService creates a new evaluation service
func NewEvaluationService(opts ...EvaluationServiceOption) *EvaluationService {
	s := &EvaluationService{
		extractor: features.NewExtractor(),
		logger:    zap.NewNop(),
		now:       time.Now,
		config:    DefaultConfig(),
		validate:  validator.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EvaluateRequest represents a request to evaluate a case
type EvaluateRequest struct {
	Case      models.CaseInput
	Narrative string
	Strategy  *models.StrategyHints
	// IgnoreWeights overrides the configured weights toggle when set
	IgnoreWeights *bool
}

// EvaluateResult represents the result of evaluating a case
type EvaluateResult struct {
	Evaluation *models.EvaluationResult
}

var ErrRetrieverNotSet = errors.New("retriever not set")

// Evaluate values the case. Upstream failures degrade to fallback paths; an
// error is returned only for a misconfigured service.
func (s *EvaluationService) Evaluate(ctx context.Context, req EvaluateRequest) (*EvaluateResult, error) {
	if s.retriever == nil {
		return nil, ErrRetrieverNotSet
	}

	started := time.Now()
	ctx, span := otel.Tracer("service").Start(ctx, "service.Evaluate")
	defer span.End()

	evaluatedAt := s.now()
	cfg := s.config
	ignoreWeights := cfg.IgnoreWeights
	if req.IgnoreWeights != nil {
		ignoreWeights = *req.IgnoreWeights
	}

	f := s.extractor.Extract(req.Case, req.Narrative)
	hints := s.validHints(req.Strategy)
	query := models.SimilarityQuery{
		Case:      req.Case,
		Narrative: req.Narrative,
		Features:  f,
		Filters:   retrieval.BuildFilters(req.Case),
	}

	// Weights and retrieval are independent I/O; the heuristic is pure
	var (
		snapshot  *models.WeightsSnapshot
		retrieved *retrieval.Result
		heuristic int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if ignoreWeights || s.weights == nil {
			return nil
		}
		snap, err := s.weights.Get(gctx)
		if err != nil {
			s.logger.Warn("weights unavailable, skipping boost", zap.Error(err))
			return nil
		}
		snapshot = snap
		return nil
	})
	g.Go(func() error {
		res, err := s.retriever.Retrieve(gctx, query, cfg.NeighborLimit)
		if err != nil {
			s.logger.Warn("retrieval failed", zap.Error(err))
		}
		retrieved = res
		return nil
	})
	g.Go(func() error {
		heuristic = HeuristicValue(req.Case, f)
		return nil
	})
	_ = g.Wait()

	var neighbors []models.HistoricalCase
	path := models.PathNone
	if retrieved != nil {
		neighbors = retrieved.Cases
		if len(neighbors) > 0 {
			path = retrieved.Path
		}
	}

	result := &models.EvaluationResult{
		Method:        models.MethodRuleBasedFallback,
		RetrievalPath: path,
		Features:      f,
		EvaluatedAt:   evaluatedAt,
		NeighborIDs:   []string{},
	}

	var (
		gross int64
		alpha float64
		boost *boostApplied
	)
	if len(neighbors) > 0 {
		alpha = cfg.PrimaryAlpha
		if path != models.PathEmbedding {
			alpha = cfg.FallbackAlpha
		}
		fit, err := regression.Fit(ctx, f, neighbors, alpha)
		if err != nil {
			s.logger.Warn("regression failed, using rule-based valuation", zap.Error(err))
		} else {
			result.Method = models.MethodRegression
			result.Confidence = fit.Confidence
			result.NeighborIDs = fit.NeighborIDs
			gross = fit.Prediction
		}
	}

	if result.Method == models.MethodRegression {
		if snapshot != nil {
			b := weights.ApplyBoost(snapshot, req.Case, f, float64(gross))
			gross = money.Round(b.Adjusted)
			result.WeightsBoost = money.Round(b.Boost)
			boost = &boostApplied{amount: result.WeightsBoost, venueWeight: b.VenueWeight, tbiWeight: b.TBIWeight}
		}
	} else {
		gross = heuristic
	}
	result.GrossAmount = gross

	result.NovelCase = len(neighbors) < cfg.NovelMinNeighbors || result.Confidence < cfg.NovelMinConfidence
	if result.NovelCase {
		metrics.NovelCases.Inc()
		if result.Method == models.MethodRegression {
			h := heuristic
			result.HeuristicAmount = &h
		}
	}

	engine := deductions.New(deductions.WithEarlyResolution(cfg.IncludeEarlyResolution))
	ded := engine.Apply(gross, req.Case, req.Narrative)
	result.Deductions = ded.Deductions
	result.DeductionTotal = ded.TotalPercent
	result.NetAmount = ded.NetAmount
	for _, d := range ded.Deductions {
		if d.Triggered {
			metrics.DeductionsTriggered.WithLabelValues(d.Name).Inc()
		}
	}

	proposal := mediator.Propose(ded.NetAmount, req.Case.PolicyLimits, hints, evaluatedAt)
	result.ProposalAmount = proposal.Amount
	result.RangeLow = proposal.RangeLow
	result.RangeHigh = proposal.RangeHigh
	result.ExpiresAt = proposal.ExpiresAt

	result.Alignment = mediator.Align(proposal, hints)
	result.Confidence = mediator.AdjustConfidence(result.Confidence, result.Alignment)

	if fp, err := Fingerprint(req.Case, req.Narrative); err != nil {
		s.logger.Warn("failed to fingerprint case input", zap.Error(err))
	} else {
		result.Fingerprint = fp
	}

	result.Rationale = buildRationale(rationaleInput{
		method:      result.Method,
		path:        path,
		neighbors:   len(neighbors),
		alpha:       alpha,
		confidence:  result.Confidence,
		gross:       gross,
		boost:       boost,
		deductions:  ded,
		proposal:    proposal,
		neighborIDs: result.NeighborIDs,
		novel:       result.NovelCase,
		heuristic:   result.HeuristicAmount,
		alignment:   result.Alignment,
	})

	metrics.Evaluations.WithLabelValues(string(result.Method), string(path)).Inc()
	metrics.EvaluationDuration.Observe(time.Since(started).Seconds())
	span.SetAttributes(
		attribute.String("method", string(result.Method)),
		attribute.String("retrieval_path", string(path)),
		attribute.Int("neighbors", len(neighbors)),
		attribute.Bool("novel_case", result.NovelCase),
	)
	s.logger.Info("case evaluated",
		zap.String("case_id", req.Case.CaseID),
		zap.String("method", string(result.Method)),
		zap.String("retrieval_path", string(path)),
		zap.Int("neighbors", len(neighbors)),
		zap.Int64("gross", result.GrossAmount),
		zap.Int64("proposal", result.ProposalAmount),
	)

	return &EvaluateResult{Evaluation: result}, nil
}

// validHints drops strategy hints that fail validation
func (s *EvaluationService) validHints(h *models.StrategyHints) *models.StrategyHints {
	if h == nil {
		return nil
	}
	if err := s.validate.Struct(h); err != nil {
		s.logger.Warn("ignoring invalid strategy hints", zap.Error(err))
		return nil
	}
	return h
}

// Fingerprint is a stable digest of the evaluation input
func Fingerprint(c models.CaseInput, narrative string) (string, error) {
	return digest.Of(struct {
		Case      models.CaseInput `json:"case"`
		Narrative string           `json:"narrative"`
	}{c, narrative})
}
