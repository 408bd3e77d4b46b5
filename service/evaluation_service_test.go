package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casevalue-backend/models"
	"casevalue-backend/money"
	"casevalue-backend/retrieval"
)

func ptr[T any](v T) *T { return &v }

var fixedNow = time.Date(2026, 5, 4, 15, 30, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

type fakeRetriever struct {
	result *retrieval.Result
	err    error
	limit  int
}

func (f *fakeRetriever) Retrieve(ctx context.Context, q models.SimilarityQuery, limit int) (*retrieval.Result, error) {
	f.limit = limit
	return f.result, f.err
}

type fakeWeights struct {
	snap  *models.WeightsSnapshot
	err   error
	calls int
}

func (f *fakeWeights) Get(ctx context.Context) (*models.WeightsSnapshot, error) {
	f.calls++
	return f.snap, f.err
}

// neighbors whose settlement is 3x economic damages plus $20,000
func neighbors(n int) []models.HistoricalCase {
	out := make([]models.HistoricalCase, n)
	for i := 0; i < n; i++ {
		econ := 20000.0 + float64(i)*(180000.0/float64(n-1))
		out[i] = models.HistoricalCase{
			ID:         fmt.Sprintf("hc-%02d", i),
			Settlement: 3*econ + 20000,
			Features: models.CaseFeatures{
				EconomicDamages:       econ,
				LiabilityPercent:      100,
				TreatmentDurationDays: 365,
				VenueCostIndex:        1.0,
			},
		}
	}
	return out
}

func baseCase() models.CaseInput {
	return models.CaseInput{
		CaseID:           "case-1",
		EconomicDamages:  ptr(100000.0),
		SurgeryCount:     ptr(0),
		LiabilityPercent: ptr(100.0),
	}
}

func newService(r Retriever, opts ...EvaluationServiceOption) *EvaluationService {
	opts = append([]EvaluationServiceOption{WithRetriever(r), WithClock(clock)}, opts...)
	return NewEvaluationService(opts...)
}

func TestEvaluate_RequiresRetriever(t *testing.T) {
	_, err := NewEvaluationService().Evaluate(context.Background(), EvaluateRequest{})
	assert.ErrorIs(t, err, ErrRetrieverNotSet)
}

func TestEvaluate_ZeroNeighborsUsesRuleBasedFallback(t *testing.T) {
	tests := []struct {
		name      string
		retriever *fakeRetriever
	}{
		{name: "empty result", retriever: &fakeRetriever{result: &retrieval.Result{Path: models.PathNone}}},
		{name: "corpus unavailable", retriever: &fakeRetriever{
			result: &retrieval.Result{Path: models.PathNone},
			err:    retrieval.ErrCorpusUnavailable,
		}},
		{name: "nil result", retriever: &fakeRetriever{err: errors.New("boom")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := baseCase()
			c.EconomicDamages = ptr(50000.0)

			res, err := newService(tt.retriever).Evaluate(context.Background(), EvaluateRequest{Case: c})
			require.NoError(t, err)
			ev := res.Evaluation

			assert.Equal(t, models.MethodRuleBasedFallback, ev.Method)
			assert.Equal(t, models.PathNone, ev.RetrievalPath)
			assert.Equal(t, int64(150000), ev.GrossAmount)
			assert.Equal(t, int64(120000), ev.NetAmount)
			assert.Equal(t, int64(114000), ev.ProposalAmount)
			assert.Equal(t, int64(108500), ev.RangeLow)
			assert.Equal(t, int64(119500), ev.RangeHigh)
			assert.Equal(t, fixedNow.AddDate(0, 0, 7), ev.ExpiresAt)
			assert.True(t, ev.NovelCase)
			assert.Nil(t, ev.HeuristicAmount)
			assert.Empty(t, ev.NeighborIDs)
			assert.Zero(t, ev.Confidence)
			assert.Contains(t, ev.Rationale, "rule-based valuation")
		})
	}
}

func TestEvaluate_RegressionPath(t *testing.T) {
	r := &fakeRetriever{result: &retrieval.Result{Cases: neighbors(20), Path: models.PathEmbedding}}

	res, err := newService(r).Evaluate(context.Background(), EvaluateRequest{Case: baseCase()})
	require.NoError(t, err)
	ev := res.Evaluation

	assert.Equal(t, models.MethodRegression, ev.Method)
	assert.Equal(t, models.PathEmbedding, ev.RetrievalPath)
	assert.InEpsilon(t, 320000.0, float64(ev.GrossAmount), 0.1)
	assert.Len(t, ev.NeighborIDs, 20)
	assert.False(t, ev.NovelCase)
	assert.Nil(t, ev.HeuristicAmount)
	assert.GreaterOrEqual(t, ev.Confidence, 70.0)
	assert.LessOrEqual(t, ev.Confidence, 100.0)
	assert.Equal(t, DefaultConfig().NeighborLimit, r.limit)
	assert.Contains(t, ev.Rationale, "alpha 0.3")
	assert.NotEmpty(t, ev.Fingerprint)
	assert.Equal(t, fixedNow, ev.EvaluatedAt)

	for _, v := range []int64{ev.GrossAmount, ev.NetAmount, ev.ProposalAmount, ev.RangeLow, ev.RangeHigh} {
		formatted := money.Format(v)
		parsed, err := money.Parse(formatted)
		require.NoError(t, err)
		assert.Zero(t, parsed%500, formatted)
	}
}

func TestEvaluate_StructuredPathUsesFallbackAlpha(t *testing.T) {
	r := &fakeRetriever{result: &retrieval.Result{Cases: neighbors(12), Path: models.PathStructured}}

	res, err := newService(r).Evaluate(context.Background(), EvaluateRequest{Case: baseCase()})
	require.NoError(t, err)

	assert.Equal(t, models.PathStructured, res.Evaluation.RetrievalPath)
	assert.Contains(t, res.Evaluation.Rationale, "alpha 0.8")
}

func TestEvaluate_FewNeighborsIsNovelWithHeuristic(t *testing.T) {
	r := &fakeRetriever{result: &retrieval.Result{Cases: neighbors(3), Path: models.PathEmbedding}}

	res, err := newService(r).Evaluate(context.Background(), EvaluateRequest{Case: baseCase()})
	require.NoError(t, err)
	ev := res.Evaluation

	assert.Equal(t, models.MethodRegression, ev.Method)
	assert.True(t, ev.NovelCase)
	require.NotNil(t, ev.HeuristicAmount)
	assert.Equal(t, int64(300000), *ev.HeuristicAmount)
	assert.Contains(t, ev.Rationale, "Novel case")
}

func TestEvaluate_WeightsBoost(t *testing.T) {
	c := baseCase()
	c.Venue = "Los Angeles"
	snap := &models.WeightsSnapshot{
		VenueWeights: map[string]float64{"los angeles": 1.03},
		TBIWeights:   map[string]float64{"none": 1.0},
	}
	cases := neighbors(20)

	plain, err := newService(&fakeRetriever{result: &retrieval.Result{Cases: cases, Path: models.PathEmbedding}}).
		Evaluate(context.Background(), EvaluateRequest{Case: c})
	require.NoError(t, err)

	w := &fakeWeights{snap: snap}
	boosted, err := newService(&fakeRetriever{result: &retrieval.Result{Cases: cases, Path: models.PathEmbedding}}, WithWeights(w)).
		Evaluate(context.Background(), EvaluateRequest{Case: c})
	require.NoError(t, err)

	assert.Equal(t, 1, w.calls)
	assert.Equal(t, money.Round(float64(plain.Evaluation.GrossAmount)*1.03), boosted.Evaluation.GrossAmount)
	assert.Contains(t, boosted.Evaluation.Rationale, "Corpus weights added")

	// Per-request override skips the cache entirely
	skipped, err := newService(&fakeRetriever{result: &retrieval.Result{Cases: cases, Path: models.PathEmbedding}}, WithWeights(w)).
		Evaluate(context.Background(), EvaluateRequest{Case: c, IgnoreWeights: ptr(true)})
	require.NoError(t, err)
	assert.Equal(t, 1, w.calls)
	assert.Equal(t, plain.Evaluation.GrossAmount, skipped.Evaluation.GrossAmount)
}

func TestEvaluate_WeightsUnavailableSkipsBoost(t *testing.T) {
	r := &fakeRetriever{result: &retrieval.Result{Cases: neighbors(20), Path: models.PathEmbedding}}
	w := &fakeWeights{err: errors.New("historical corpus unavailable for weights")}

	res, err := newService(r, WithWeights(w)).Evaluate(context.Background(), EvaluateRequest{Case: baseCase()})
	require.NoError(t, err)

	assert.Equal(t, models.MethodRegression, res.Evaluation.Method)
	assert.Zero(t, res.Evaluation.WeightsBoost)
}

func TestEvaluate_ProposalBoundedByPolicyAndAuthority(t *testing.T) {
	c := baseCase()
	c.PolicyLimits = ptr(100000.0)
	r := &fakeRetriever{result: &retrieval.Result{Cases: neighbors(20), Path: models.PathEmbedding}}

	res, err := newService(r).Evaluate(context.Background(), EvaluateRequest{
		Case:     c,
		Strategy: &models.StrategyHints{DefenseAuthority: ptr(80000.0), PlaintiffBottomLine: ptr(75000.0)},
	})
	require.NoError(t, err)
	ev := res.Evaluation

	assert.LessOrEqual(t, ev.ProposalAmount, int64(80000))
	assert.LessOrEqual(t, ev.RangeHigh, int64(80000))
	require.NotNil(t, ev.Alignment)
	assert.Equal(t, models.BandGreen, ev.Alignment.Plaintiff)
}

func TestEvaluate_InvalidHintsDropped(t *testing.T) {
	r := &fakeRetriever{result: &retrieval.Result{Path: models.PathNone}}

	res, err := newService(r).Evaluate(context.Background(), EvaluateRequest{
		Case:     baseCase(),
		Strategy: &models.StrategyHints{DefenseAuthority: ptr(-5.0)},
	})
	require.NoError(t, err)

	assert.Nil(t, res.Evaluation.Alignment)
	assert.Greater(t, res.Evaluation.ProposalAmount, int64(0))
}

func TestEvaluate_SubsequentAccidentScenario(t *testing.T) {
	c := models.CaseInput{
		EconomicDamages:  ptr(50000.0),
		SurgeryCount:     ptr(0),
		LiabilityPercent: ptr(100.0),
	}
	r := &fakeRetriever{result: &retrieval.Result{Path: models.PathNone}}

	res, err := newService(r).Evaluate(context.Background(), EvaluateRequest{
		Case:      c,
		Narrative: "Plaintiff was in a subsequent accident during treatment.",
	})
	require.NoError(t, err)

	var found bool
	for _, d := range res.Evaluation.Deductions {
		if d.Name == "Subsequent accident during treatment" {
			found = true
			assert.True(t, d.Triggered)
			assert.Equal(t, -30.0, d.Percent)
		}
	}
	assert.True(t, found)
	assert.LessOrEqual(t, res.Evaluation.DeductionTotal, 50.0)
}

func TestEvaluate_EarlyResolutionConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IncludeEarlyResolution = false
	r := &fakeRetriever{result: &retrieval.Result{Path: models.PathNone}}

	res, err := newService(r, WithConfig(cfg)).Evaluate(context.Background(), EvaluateRequest{Case: baseCase()})
	require.NoError(t, err)

	assert.Equal(t, res.Evaluation.GrossAmount, res.Evaluation.NetAmount)
}

func TestFingerprint(t *testing.T) {
	a, err := Fingerprint(baseCase(), "narrative")
	require.NoError(t, err)
	b, err := Fingerprint(baseCase(), "narrative")
	require.NoError(t, err)
	c, err := Fingerprint(baseCase(), "other narrative")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestHeuristicValue(t *testing.T) {
	tests := []struct {
		name     string
		f        models.CaseFeatures
		venue    string
		expected int64
	}{
		{
			name:     "base multiplier",
			f:        models.CaseFeatures{EconomicDamages: 50000, LiabilityPercent: 100},
			expected: 150000,
		},
		{
			name:     "surgeries capped at three",
			f:        models.CaseFeatures{EconomicDamages: 50000, SurgeryCount: 5, LiabilityPercent: 100},
			expected: 300000,
		},
		{
			name:     "injections and tbi",
			f:        models.CaseFeatures{EconomicDamages: 40000, InjectionCount: 2, TBISeverity: 2, LiabilityPercent: 100},
			expected: 180000,
		},
		{
			name:     "liability scales",
			f:        models.CaseFeatures{EconomicDamages: 100000, LiabilityPercent: 50},
			expected: 150000,
		},
		{
			name:     "absurd damages saturate instead of wrapping",
			f:        models.CaseFeatures{EconomicDamages: 5e18, LiabilityPercent: 100},
			expected: int64(money.MaxAmount),
		},
		{
			name:     "floored",
			f:        models.CaseFeatures{EconomicDamages: 2000, LiabilityPercent: 100},
			expected: 25000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, HeuristicValue(models.CaseInput{Venue: tt.venue}, tt.f))
		})
	}
}

func TestRenderReport(t *testing.T) {
	at := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	heuristic := int64(300000)
	ev := &models.EvaluationResult{
		GrossAmount: 150000,
		Deductions: []models.Deduction{
			{Name: "Subsequent accident", Percent: -30, Triggered: true},
			{Name: "Treatment gap", Percent: -12, Triggered: false},
		},
		DeductionTotal:  30,
		NetAmount:       105000,
		ProposalAmount:  99500,
		RangeLow:        94500,
		RangeHigh:       104500,
		ExpiresAt:       at.Add(7 * 24 * time.Hour),
		Confidence:      62,
		NeighborIDs:     []string{"h1", "h2"},
		Rationale:       "Valued by regression.",
		Method:          models.MethodRegression,
		RetrievalPath:   models.PathEmbedding,
		NovelCase:       true,
		HeuristicAmount: &heuristic,
		EvaluatedAt:     at,
		Fingerprint:     "abc123",
	}

	report := RenderReport("CASE-7", ev)

	assert.Contains(t, report, "Case: CASE-7")
	assert.Contains(t, report, "Gross value:     $150,000")
	assert.Contains(t, report, "  heuristic:     $300,000")
	assert.Contains(t, report, "  -30% Subsequent accident")
	assert.NotContains(t, report, "Treatment gap")
	assert.Contains(t, report, "Proposal:        $99,500 ($94,500 - $104,500)")
	assert.Contains(t, report, "Valid until:     2026-03-09")
	assert.Contains(t, report, "Novel case")
	assert.Contains(t, report, "Valued by regression.")
	assert.Contains(t, report, "Input fingerprint: abc123")
}
