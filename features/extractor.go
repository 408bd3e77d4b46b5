// Package features turns a case record and its narrative into the fixed-order
// feature vector consumed by retrieval and regression.
package features

import (
	"math"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"casevalue-backend/models"
)

const (
	defaultLiabilityPercent = 100.0
	maxPolicyLimitRatio     = 2.0
	// specialsMultiplier estimates a case's value from economic damages when
	// no demand is on file, for the policy-limit ratio only
	specialsMultiplier = 3.0
)

// Extractor computes CaseFeatures. It is pure apart from the clock used for case age.
type Extractor struct {
	now func() time.Time
}

// ExtractorOption is a functional option for Extractor
type ExtractorOption func(*Extractor)

// WithClock sets the time source used for case age
func WithClock(now func() time.Time) ExtractorOption {
	return func(e *Extractor) {
		e.now = now
	}
}

// NewExtractor creates a new feature extractor
func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract builds the feature vector for a query case. It never fails.
func (e *Extractor) Extract(c models.CaseInput, narrative string) models.CaseFeatures {
	return e.extract(c, narrative, 0)
}

// ExtractHistorical builds features for a corpus case whose settlement is known
func (e *Extractor) ExtractHistorical(c models.CaseInput, narrative string, settlement float64) models.CaseFeatures {
	return e.extract(c, narrative, settlement)
}

func (e *Extractor) extract(c models.CaseInput, narrative string, settlement float64) models.CaseFeatures {
	text := fold(narrative)
	flags := Flags(text)

	f := models.CaseFeatures{
		EconomicDamages:       nonNegative(deref(c.EconomicDamages, 0)),
		SurgeryCount:          float64(CountSurgeries(c)),
		SurgeryComplexity:     surgeryComplexityScore(c),
		InjectionCount:        float64(CountInjections(c)),
		TBISeverity:           float64(models.ParseTBISeverity(c.TBISeverity)),
		MaxTreatmentGapDays:   TreatmentGap(c, text),
		TreatmentDurationDays: treatmentDuration(c, text),
		LiabilityPercent:      clamp(deref(c.LiabilityPercent, defaultLiabilityPercent), 0, 100),
		PolicyLimitRatio:      policyLimitRatio(c, settlement),
		VenueCostIndex:        VenueCostIndex(c.Venue),
		CaseAgeYears:          e.caseAgeYears(c),
	}

	f.PriorAccident = boolFeature(flags[FlagPriorAccident])
	f.SubsequentAccident = boolFeature(flags[FlagSubsequentAccident])
	f.PreExistingCondition = boolFeature(flags[FlagPreExisting])
	f.NonCompliance = boolFeature(flags[FlagNonCompliance])
	f.ConflictingMedicalViews = boolFeature(flags[FlagConflictingOpinions])

	return f
}

// Flags evaluates every flag pattern against an already case-folded narrative
func Flags(folded string) map[Flag]bool {
	out := make(map[Flag]bool, len(FlagOrder))
	for _, flag := range FlagOrder {
		out[flag] = MatchFlag(flag, folded)
	}
	return out
}

// MatchFlag reports whether any pattern of flag matches the folded narrative
func MatchFlag(flag Flag, folded string) bool {
	for _, re := range FlagPatterns[flag] {
		if re.MatchString(folded) {
			return true
		}
	}
	return false
}

// Fold normalizes narrative text for pattern matching
func Fold(text string) string {
	return fold(text)
}

func fold(text string) string {
	// Caser instances are stateful; one per call
	folded := cases.Fold().String(text)
	return strings.Join(strings.Fields(folded), " ")
}

// CountSurgeries prefers the explicit count over the number of described procedures
func CountSurgeries(c models.CaseInput) int {
	if c.SurgeryCount != nil && *c.SurgeryCount >= 0 {
		return *c.SurgeryCount
	}
	return len(nonEmpty(c.SurgeryTypes))
}

// CountInjections prefers the explicit count over the number of described injections
func CountInjections(c models.CaseInput) int {
	if c.InjectionCount != nil && *c.InjectionCount >= 0 {
		return *c.InjectionCount
	}
	return len(nonEmpty(c.InjectionTypes))
}

// surgeryComplexityScore sums per-procedure scores; surgeries counted but not
// described score the default complexity
func surgeryComplexityScore(c models.CaseInput) float64 {
	types := nonEmpty(c.SurgeryTypes)
	score := 0.0
	for _, s := range types {
		score += SurgeryComplexity(s)
	}
	if extra := CountSurgeries(c) - len(types); extra > 0 {
		score += float64(extra) * defaultSurgeryComplexity
	}
	return score
}

// TreatmentGap is the larger of the structured gap and the longest gap phrase
// in the folded narrative
func TreatmentGap(c models.CaseInput, folded string) float64 {
	gap := MaxTreatmentGapDays(folded)
	if c.TreatmentGapDays != nil && float64(*c.TreatmentGapDays) > gap {
		gap = float64(*c.TreatmentGapDays)
	}
	return gap
}

func treatmentDuration(c models.CaseInput, folded string) float64 {
	if c.TreatmentDurationDays != nil && *c.TreatmentDurationDays > 0 {
		return float64(*c.TreatmentDurationDays)
	}
	return TreatmentDurationDays(folded)
}

// policyLimitRatio is settlement/policy for corpus cases, demand/policy (or an
// estimate from economic damages) for the query case, and 0 when limits are unknown
func policyLimitRatio(c models.CaseInput, settlement float64) float64 {
	limits := deref(c.PolicyLimits, 0)
	if limits <= 0 {
		return 0
	}
	reference := settlement
	if reference <= 0 {
		if demand := deref(c.DemandAmount, 0); demand > 0 {
			reference = demand
		} else {
			reference = deref(c.EconomicDamages, 0) * specialsMultiplier
		}
	}
	return clamp(reference/limits, 0, maxPolicyLimitRatio)
}

func (e *Extractor) caseAgeYears(c models.CaseInput) float64 {
	if c.IncidentDate == nil || c.IncidentDate.IsZero() {
		return 0
	}
	years := e.now().Sub(*c.IncidentDate).Hours() / (24 * 365.25)
	return math.Round(nonNegative(years)*100) / 100
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}

func deref(v *float64, def float64) float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return def
	}
	return *v
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
