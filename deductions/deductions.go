// Package deductions scans a case narrative for risk patterns and applies an
// itemized, capped percentage reduction to the gross evaluator figure.
package deductions

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"casevalue-backend/features"
	"casevalue-backend/models"
	"casevalue-backend/money"
)

const (
	// MaxTotalPercent caps the sum of triggered deduction magnitudes
	MaxTotalPercent = 50.0

	gapThresholdDays            = 90
	nonComplianceGapDays        = 120
	earlyResolutionBase         = 20.0
	earlyResolutionMin          = 15.0
	earlyResolutionMax          = 25.0
	highPolicyLimitsForDiscount = 1_000_000
)

// Deduction names, in evaluation order
const (
	NameSubsequentAccident  = "Subsequent accident during treatment"
	NameTreatmentGap        = "Treatment gap"
	NamePreExisting         = "Pre-existing condition"
	NameNonCompliance       = "Non-compliance"
	NameConflictingOpinions = "Conflicting medical opinions"
	NameInjuryMismatch      = "Injury/accident mismatch"
	NameEarlyResolution     = "Early resolution discount"
)

// Engine evaluates the ordered deduction table
type Engine struct {
	includeEarlyResolution bool
}

// Option is a functional option for Engine
type Option func(*Engine)

// WithEarlyResolution toggles the early-resolution discount (on by default)
func WithEarlyResolution(include bool) Option {
	return func(e *Engine) {
		e.includeEarlyResolution = include
	}
}

// New creates a deduction engine
func New(opts ...Option) *Engine {
	e := &Engine{includeEarlyResolution: true}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// subject is the per-call view every rule reads
type subject struct {
	c      models.CaseInput
	text   string // case-folded narrative
	flags  map[features.Flag]bool
	gap    float64
	engine *Engine
}

// rule reports its signed percentage, whether it fired, and why
type rule struct {
	name     string
	evaluate func(s *subject) (percent float64, triggered bool, reason string)
}

var rules = []rule{
	{name: NameSubsequentAccident, evaluate: subsequentAccident},
	{name: NameTreatmentGap, evaluate: treatmentGap},
	{name: NamePreExisting, evaluate: preExisting},
	{name: NameNonCompliance, evaluate: nonCompliance},
	{name: NameConflictingOpinions, evaluate: conflictingOpinions},
	{name: NameInjuryMismatch, evaluate: injuryMismatch},
	{name: NameEarlyResolution, evaluate: earlyResolution},
}

// Apply evaluates every rule against the case and narrative and applies the
// capped total to gross. Every rule is listed in the result, triggered or not.
func (e *Engine) Apply(gross int64, c models.CaseInput, narrative string) models.DeductionResult {
	text := features.Fold(narrative)
	s := &subject{
		c:      c,
		text:   text,
		flags:  features.Flags(text),
		gap:    features.TreatmentGap(c, text),
		engine: e,
	}

	result := models.DeductionResult{Deductions: make([]models.Deduction, 0, len(rules))}
	total := 0.0
	for _, r := range rules {
		percent, triggered, reason := r.evaluate(s)
		result.Deductions = append(result.Deductions, models.Deduction{
			Name:      r.name,
			Percent:   percent,
			Triggered: triggered,
			Reason:    reason,
		})
		if triggered {
			total += math.Abs(percent)
		}
	}

	if total > MaxTotalPercent {
		total = MaxTotalPercent
		result.Capped = true
	}
	result.TotalPercent = total
	result.NetAmount = money.Round(float64(gross) * (1 - total/100))
	return result
}

// Apply runs the default engine
func Apply(gross int64, c models.CaseInput, narrative string) models.DeductionResult {
	return New().Apply(gross, c, narrative)
}

var beforeSurgeryPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(?:before|prior to|preceding|ahead of) (?:(?:his|her|their|the|a|any) )?(?:scheduled |planned |recommended )?surger(?:y|ies)\b`),
	regexp.MustCompile(`\bpre-?(?:surgery|surgical|operative)\b`),
	regexp.MustCompile(`\bsurgery (?:had not yet|had yet to) (?:occurred|happened|been performed)\b`),
}

func subsequentAccident(s *subject) (float64, bool, string) {
	if !s.flags[features.FlagSubsequentAccident] {
		return -30, false, "No subsequent accident described"
	}
	if matchAny(beforeSurgeryPatterns, s.text) {
		return -35, true, "Subsequent accident occurred before surgery; apportionment of the surgical damages is disputed"
	}
	return -30, true, "Subsequent accident during treatment breaks the causal chain for later care"
}

func treatmentGap(s *subject) (float64, bool, string) {
	if s.gap > gapThresholdDays {
		return -12, true, fmt.Sprintf("Treatment gap of %d days exceeds %d days", int(s.gap), gapThresholdDays)
	}
	return -12, false, fmt.Sprintf("No treatment gap over %d days", gapThresholdDays)
}

func preExisting(s *subject) (float64, bool, string) {
	if s.flags[features.FlagPreExisting] {
		return -10, true, "Narrative references a pre-existing condition"
	}
	return -10, false, "No pre-existing condition language"
}

func nonCompliance(s *subject) (float64, bool, string) {
	switch {
	case s.flags[features.FlagNonCompliance]:
		return -12, true, "Narrative documents treatment non-compliance"
	case s.gap > nonComplianceGapDays:
		return -12, true, fmt.Sprintf("Documented gap of %d days exceeds %d days", int(s.gap), nonComplianceGapDays)
	}
	return -12, false, "No non-compliance indicated"
}

func conflictingOpinions(s *subject) (float64, bool, string) {
	if s.flags[features.FlagConflictingOpinions] {
		return -7, true, "Medical opinions conflict on diagnosis or causation"
	}
	return -7, false, "No conflicting medical opinions"
}

// injuryExpectations lists, per accident-type keyword, the injury words at
// least one of which a consistent injury description must contain
var injuryExpectations = []struct {
	accident string
	injuries []string
}{
	{"dog bite", []string{"bite", "laceration", "puncture", "scar"}},
	{"animal attack", []string{"bite", "laceration", "puncture", "scar", "scratch"}},
	{"burn", []string{"burn", "scar", "graft", "blister"}},
	{"electrocution", []string{"burn", "shock", "electr", "cardiac", "nerve"}},
}

func injuryMismatch(s *subject) (float64, bool, string) {
	accident := strings.ToLower(s.c.AccidentType)
	injuries := strings.ToLower(strings.TrimSpace(s.c.InjuryDescription + " " + s.c.PrimaryInjury))
	if accident == "" || injuries == "" {
		return -15, false, "Accident type or injury description not provided"
	}
	for _, exp := range injuryExpectations {
		if !strings.Contains(accident, exp.accident) {
			continue
		}
		for _, word := range exp.injuries {
			if strings.Contains(injuries, word) {
				return -15, false, "Injuries are consistent with the accident type"
			}
		}
		return -15, true, fmt.Sprintf("%q accident but injuries mention none of: %s",
			s.c.AccidentType, strings.Join(exp.injuries, ", "))
	}
	return -15, false, "Injuries are consistent with the accident type"
}

func earlyResolution(s *subject) (float64, bool, string) {
	discount, factors := EarlyResolutionPercent(s.c)
	if !s.engine.includeEarlyResolution {
		return -discount, false, "Early-resolution discount disabled"
	}
	reason := fmt.Sprintf("Early-resolution discount of %.0f%%", discount)
	if len(factors) > 0 {
		reason += " (" + strings.Join(factors, "; ") + ")"
	}
	return -discount, true, reason
}

// EarlyResolutionPercent is the positive early-resolution discount, starting
// from 20 points and clamped to [15, 25], with the adjustments that moved it
func EarlyResolutionPercent(c models.CaseInput) (float64, []string) {
	discount := earlyResolutionBase
	var factors []string
	adjust := func(points float64, why string) {
		discount += points
		factors = append(factors, fmt.Sprintf("%+.0f %s", points, why))
	}

	if c.PlaintiffAge != nil {
		switch age := *c.PlaintiffAge; {
		case age > 0 && age < 35:
			adjust(-2, "young plaintiff")
		case age >= 65:
			adjust(2, "older plaintiff")
		}
	}
	if c.PendingSurgery {
		adjust(-3, "surgery pending")
	}
	switch surgeries := features.CountSurgeries(c); {
	case surgeries >= 2:
		adjust(-2, "multiple surgeries")
	case surgeries == 1:
		adjust(-1, "surgery performed")
	}
	if features.CountInjections(c) >= 3 {
		adjust(-1, "repeated injections")
	}
	if models.ParseTBISeverity(c.TBISeverity) > models.TBINone {
		adjust(-2, "brain injury")
	}
	if c.PolicyLimits != nil && *c.PolicyLimits >= highPolicyLimitsForDiscount {
		adjust(-1, "high policy limits")
	}

	return math.Max(earlyResolutionMin, math.Min(earlyResolutionMax, discount)), factors
}

func matchAny(patterns []*regexp.Regexp, text string) bool {
	for _, re := range patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
