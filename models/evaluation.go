package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EvaluationMethod tags how the gross figure was produced
type EvaluationMethod string

const (
	MethodRegression        EvaluationMethod = "regression"
	MethodRuleBasedFallback EvaluationMethod = "rule-based-fallback"
)

// RetrievalPath records which retrieval strategy produced the neighbors
type RetrievalPath string

const (
	PathEmbedding  RetrievalPath = "embedding"
	PathStructured RetrievalPath = "structured"
	PathNone       RetrievalPath = "none"
)

// RegressionResult is the output of a local ridge fit
type RegressionResult struct {
	Prediction   int64     `json:"prediction"`
	Confidence   float64   `json:"confidence"` // 0-100
	NeighborIDs  []string  `json:"neighbor_ids"`
	Coefficients []float64 `json:"coefficients,omitempty"`
	Alpha        float64   `json:"alpha"`
}

// Deduction is a single narrative-driven value reduction
type Deduction struct {
	Name      string  `json:"name"`
	Percent   float64 `json:"percent"` // signed, e.g. -30
	Triggered bool    `json:"triggered"`
	Reason    string  `json:"reason"`
}

// DeductionResult is the itemized outcome of the deduction engine
type DeductionResult struct {
	Deductions   []Deduction `json:"deductions"`
	TotalPercent float64     `json:"total_percent"` // applied magnitude, at most 50
	Capped       bool        `json:"capped"`
	NetAmount    int64       `json:"net_amount"`
}

// WeightsSnapshot holds corpus-derived multipliers. A snapshot is never
// mutated after construction; refreshes replace it wholesale.
type WeightsSnapshot struct {
	SurgeryWeights   map[string]float64 `json:"surgery_weights"`
	InjectionWeights map[string]float64 `json:"injection_weights"`
	VenueWeights     map[string]float64 `json:"venue_weights"`
	TBIWeights       map[string]float64 `json:"tbi_weights"`
	SurgerySlope     float64            `json:"surgery_slope"`
	InjectionSlope   float64            `json:"injection_slope"`
	CorpusMean       float64            `json:"corpus_mean"`
	CaseCount        int                `json:"case_count"`
	ComputedAt       time.Time          `json:"computed_at"`
}

// StrategyHints are optional negotiating positions supplied by the caller
type StrategyHints struct {
	PlaintiffBottomLine *float64 `json:"plaintiff_bottom_line,omitempty" validate:"omitempty,gte=0"`
	DefenseAuthority    *float64 `json:"defense_authority,omitempty" validate:"omitempty,gte=0"`
	DefenseRangeLow     *float64 `json:"defense_range_low,omitempty" validate:"omitempty,gte=0"`
	DefenseRangeHigh    *float64 `json:"defense_range_high,omitempty" validate:"omitempty,gte=0"`
}

// Proposal is the bounded mediator figure
type Proposal struct {
	Amount    int64     `json:"amount"`
	RangeLow  int64     `json:"range_low"`
	RangeHigh int64     `json:"range_high"`
	ExpiresAt time.Time `json:"expires_at"`
	CappedBy  string    `json:"capped_by,omitempty"` // "policy_limits", "defense_authority"
}

// AlignmentBand classifies a negotiating position against the proposal range
type AlignmentBand string

const (
	BandGreen  AlignmentBand = "green"
	BandYellow AlignmentBand = "yellow"
	BandRed    AlignmentBand = "red"
)

// Alignment is the auxiliary plaintiff/defense position assessment
type Alignment struct {
	Plaintiff        AlignmentBand `json:"plaintiff,omitempty"`
	DefenseAuthority AlignmentBand `json:"defense_authority,omitempty"`
	DefenseRange     AlignmentBand `json:"defense_range,omitempty"`
	Overall          AlignmentBand `json:"overall"`
	ConfidenceDelta  float64       `json:"confidence_delta"`
}

// EvaluationResult is the final, immutable output of one evaluation
type EvaluationResult struct {
	GrossAmount     int64            `json:"gross_amount"`
	Deductions      []Deduction      `json:"deductions"`
	DeductionTotal  float64          `json:"deduction_total"`
	NetAmount       int64            `json:"net_amount"`
	ProposalAmount  int64            `json:"proposal_amount"`
	RangeLow        int64            `json:"range_low"`
	RangeHigh       int64            `json:"range_high"`
	ExpiresAt       time.Time        `json:"expires_at"`
	Confidence      float64          `json:"confidence"`
	NeighborIDs     []string         `json:"neighbor_ids"`
	Rationale       string           `json:"rationale"`
	Method          EvaluationMethod `json:"method"`
	RetrievalPath   RetrievalPath    `json:"retrieval_path"`
	NovelCase       bool             `json:"novel_case"`
	HeuristicAmount *int64           `json:"heuristic_amount,omitempty"`
	WeightsBoost    int64            `json:"weights_boost"`
	Alignment       *Alignment       `json:"alignment,omitempty"`
	Features        CaseFeatures     `json:"features"`
	Fingerprint     string           `json:"fingerprint,omitempty"`
	EvaluatedAt     time.Time        `json:"evaluated_at"`
}

// Value implements driver.Valuer for JSONB
func (e EvaluationResult) Value() (driver.Value, error) {
	return json.Marshal(e)
}

// Scan implements sql.Scanner for JSONB
func (e *EvaluationResult) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	// Handle different types that pgx might return for JSONB
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}

	if len(bytes) == 0 {
		return nil
	}

	return json.Unmarshal(bytes, e)
}

// StoredEvaluation is an evaluation persisted by the HTTP layer
type StoredEvaluation struct {
	ID         uuid.UUID        `json:"id"`
	CaseID     *string          `json:"case_id,omitempty"`
	Result     EvaluationResult `json:"result"`
	ReportPath *string          `json:"report_path,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}
