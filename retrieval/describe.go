package retrieval

import (
	"fmt"
	"strings"

	"casevalue-backend/features"
	"casevalue-backend/models"
	"casevalue-backend/money"
)

// Describe serializes a case into the single text embedded for similarity
// search. Query cases and corpus cases go through the same builder so their
// vectors are comparable.
func Describe(c models.CaseInput, narrative string) string {
	var parts []string
	add := func(label, value string) {
		if strings.TrimSpace(value) != "" {
			parts = append(parts, label+": "+strings.TrimSpace(value))
		}
	}

	add("Accident type", c.AccidentType)
	add("Venue", c.Venue)
	add("Primary injury", c.PrimaryInjury)
	add("Injuries", c.InjuryDescription)

	if n := features.CountSurgeries(c); n > 0 || len(c.SurgeryTypes) > 0 {
		add("Surgeries", fmt.Sprintf("%d (%s)", n, strings.Join(c.SurgeryTypes, ", ")))
	}
	if n := features.CountInjections(c); n > 0 || len(c.InjectionTypes) > 0 {
		add("Injections", fmt.Sprintf("%d (%s)", n, strings.Join(c.InjectionTypes, ", ")))
	}
	if tbi := models.ParseTBISeverity(c.TBISeverity); tbi > models.TBINone {
		add("TBI", tbi.String())
	}
	if c.PendingSurgery {
		add("Pending surgery", "yes")
	}
	if c.LiabilityPercent != nil {
		add("Liability", fmt.Sprintf("%.0f%%", *c.LiabilityPercent))
	}
	if c.EconomicDamages != nil {
		add("Economic damages", money.Format(money.Round(*c.EconomicDamages)))
	}
	if c.PolicyLimits != nil {
		add("Policy limits", money.Format(money.Round(*c.PolicyLimits)))
	}
	if c.TreatmentGapDays != nil {
		add("Treatment gap", fmt.Sprintf("%d days", *c.TreatmentGapDays))
	}
	if c.TreatmentDurationDays != nil {
		add("Treatment duration", fmt.Sprintf("%d days", *c.TreatmentDurationDays))
	}
	add("Narrative", strings.Join(strings.Fields(narrative), " "))

	return strings.Join(parts, ". ")
}

// Liability and policy-size buckets sent as filter hints
const (
	LiabilityFull    = "full"
	LiabilityHigh    = "high"
	LiabilityPartial = "partial"
	LiabilityLow     = "low"

	PolicyUnknown  = "unknown"
	PolicyLow      = "low"
	PolicyMid      = "mid"
	PolicyHigh     = "high"
	PolicyVeryHigh = "very_high"
)

// BuildFilters derives the structured hints for the hybrid query
func BuildFilters(c models.CaseInput) models.SimilarityFilters {
	return models.SimilarityFilters{
		LiabilityBucket: LiabilityBucket(c.LiabilityPercent),
		PolicyBucket:    PolicyBucket(c.PolicyLimits),
		TBILevel:        int(models.ParseTBISeverity(c.TBISeverity)),
		HasSurgery:      features.CountSurgeries(c) > 0,
		InjuryCategory:  features.PrimaryCategory(injuryText(c)),
	}
}

// LiabilityBucket groups a liability percentage; missing means full
func LiabilityBucket(percent *float64) string {
	p := 100.0
	if percent != nil {
		p = *percent
	}
	switch {
	case p >= 100:
		return LiabilityFull
	case p >= 75:
		return LiabilityHigh
	case p >= 50:
		return LiabilityPartial
	}
	return LiabilityLow
}

// PolicyBucket groups policy limits by size
func PolicyBucket(limits *float64) string {
	if limits == nil || *limits <= 0 {
		return PolicyUnknown
	}
	switch l := *limits; {
	case l <= 50_000:
		return PolicyLow
	case l <= 250_000:
		return PolicyMid
	case l <= 1_000_000:
		return PolicyHigh
	}
	return PolicyVeryHigh
}

func injuryText(c models.CaseInput) string {
	return strings.TrimSpace(c.PrimaryInjury + " " + c.InjuryDescription)
}
