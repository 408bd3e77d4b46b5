package models

import (
	"strings"
	"time"
)

// TBISeverity is the traumatic brain injury ordinal (0 none – 3 severe)
type TBISeverity int

const (
	TBINone     TBISeverity = 0
	TBIMild     TBISeverity = 1
	TBIModerate TBISeverity = 2
	TBISevere   TBISeverity = 3
)

// ParseTBISeverity maps a free-form severity label such as "Mild TBI" or
// " severe " to its ordinal. The most severe keyword present wins; unknown or
// empty labels map to TBINone.
func ParseTBISeverity(label string) TBISeverity {
	l := strings.ToLower(strings.TrimSpace(label))
	switch l {
	case "1":
		return TBIMild
	case "2":
		return TBIModerate
	case "3":
		return TBISevere
	}
	switch {
	case strings.Contains(l, "severe"):
		return TBISevere
	case strings.Contains(l, "moderate"):
		return TBIModerate
	case strings.Contains(l, "mild"):
		return TBIMild
	}
	return TBINone
}

// String returns the label stored in the corpus for the severity
func (t TBISeverity) String() string {
	switch t {
	case TBIMild:
		return "mild"
	case TBIModerate:
		return "moderate"
	case TBISevere:
		return "severe"
	default:
		return "none"
	}
}

// CaseInput is a partially-specified personal-injury case as entered by intake.
// Pointer fields are optional; the feature extractor supplies defaults.
type CaseInput struct {
	CaseID string `json:"case_id,omitempty"`

	// Damages
	EconomicDamages *float64 `json:"economic_damages,omitempty"` // Howell medical specials
	DemandAmount    *float64 `json:"demand_amount,omitempty"`
	PolicyLimits    *float64 `json:"policy_limits,omitempty"`

	// Treatment
	SurgeryTypes          []string `json:"surgery_types,omitempty"`
	SurgeryCount          *int     `json:"surgery_count,omitempty"`
	InjectionTypes        []string `json:"injection_types,omitempty"`
	InjectionCount        *int     `json:"injection_count,omitempty"`
	TBISeverity           string   `json:"tbi_severity,omitempty"` // "none", "mild", "moderate", "severe"
	TreatmentGapDays      *int     `json:"treatment_gap_days,omitempty"`
	TreatmentDurationDays *int     `json:"treatment_duration_days,omitempty"`
	PendingSurgery        bool     `json:"pending_surgery,omitempty"`

	// Liability and venue
	LiabilityPercent *float64 `json:"liability_percent,omitempty"`
	Venue            string   `json:"venue,omitempty"`

	// Incident
	AccidentType      string     `json:"accident_type,omitempty"`
	PrimaryInjury     string     `json:"primary_injury,omitempty"`
	InjuryDescription string     `json:"injury_description,omitempty"`
	IncidentDate      *time.Time `json:"incident_date,omitempty"`
	PlaintiffAge      *int       `json:"plaintiff_age,omitempty"`
}

// FeatureCount is the dimensionality of every feature vector
const FeatureCount = 16

// CaseFeatures is the fixed-order numeric description of a case.
// Every field is always populated; defaults replace missing input.
type CaseFeatures struct {
	EconomicDamages         float64 `json:"economic_damages"`
	SurgeryCount            float64 `json:"surgery_count"`
	SurgeryComplexity       float64 `json:"surgery_complexity"`
	InjectionCount          float64 `json:"injection_count"`
	TBISeverity             float64 `json:"tbi_severity"`
	MaxTreatmentGapDays     float64 `json:"max_treatment_gap_days"`
	TreatmentDurationDays   float64 `json:"treatment_duration_days"`
	LiabilityPercent        float64 `json:"liability_percent"`
	PolicyLimitRatio        float64 `json:"policy_limit_ratio"`
	VenueCostIndex          float64 `json:"venue_cost_index"`
	CaseAgeYears            float64 `json:"case_age_years"`
	PriorAccident           float64 `json:"prior_accident"`
	SubsequentAccident      float64 `json:"subsequent_accident"`
	PreExistingCondition    float64 `json:"pre_existing_condition"`
	NonCompliance           float64 `json:"non_compliance"`
	ConflictingMedicalViews float64 `json:"conflicting_medical_opinion"`
}

// Vector returns the raw features in their canonical order
func (f CaseFeatures) Vector() [FeatureCount]float64 {
	return [FeatureCount]float64{
		f.EconomicDamages,
		f.SurgeryCount,
		f.SurgeryComplexity,
		f.InjectionCount,
		f.TBISeverity,
		f.MaxTreatmentGapDays,
		f.TreatmentDurationDays,
		f.LiabilityPercent,
		f.PolicyLimitRatio,
		f.VenueCostIndex,
		f.CaseAgeYears,
		f.PriorAccident,
		f.SubsequentAccident,
		f.PreExistingCondition,
		f.NonCompliance,
		f.ConflictingMedicalViews,
	}
}

// Scaled returns the vector used by regression and similarity:
// money / 100,000, day counts / 365, percentages / 100.
func (f CaseFeatures) Scaled() [FeatureCount]float64 {
	v := f.Vector()
	v[0] /= 100000
	v[5] /= 365
	v[6] /= 365
	v[7] /= 100
	return v
}

// HistoricalCase is a comparable case with a known settlement.
// It is read-only once loaded from the corpus.
type HistoricalCase struct {
	ID         string       `json:"id"`
	Record     CaseInput    `json:"record"`
	Narrative  string       `json:"narrative,omitempty"`
	Settlement float64      `json:"settlement"`
	Features   CaseFeatures `json:"features"`
	Similarity float64      `json:"similarity"`
}

// SimilarityFilters are the structured hints sent alongside the embedding
type SimilarityFilters struct {
	LiabilityBucket string `json:"liability_bucket"`
	PolicyBucket    string `json:"policy_bucket"`
	TBILevel        int    `json:"tbi_level"`
	HasSurgery      bool   `json:"has_surgery"`
	InjuryCategory  string `json:"injury_category"`
}

// SimilarityQuery is the outbound request to the retriever
type SimilarityQuery struct {
	Case      CaseInput         `json:"case"`
	Narrative string            `json:"narrative,omitempty"`
	Features  CaseFeatures      `json:"features"`
	Embedding []float32         `json:"-"`
	Filters   SimilarityFilters `json:"filters"`
}
