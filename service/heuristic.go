package service

import (
	"math"

	"casevalue-backend/models"
	"casevalue-backend/money"
	"casevalue-backend/regression"
	"casevalue-backend/weights"
)

// Multiplier schedule for the rule-based valuation
const (
	heuristicBaseMultiplier = 3.0
	perSurgeryMultiplier    = 1.0
	maxSurgeryMultiplier    = 3.0
	perInjectionMultiplier  = 0.25
	maxInjectionMultiplier  = 1.0
)

var tbiMultiplier = map[models.TBISeverity]float64{
	models.TBIMild:     0.5,
	models.TBIModerate: 1.0,
	models.TBISevere:   2.0,
}

// HeuristicValue is the regression-independent valuation: economic damages
// times a severity multiplier, scaled by liability and venue, floored at the
// minimum case value.
func HeuristicValue(c models.CaseInput, f models.CaseFeatures) int64 {
	multiplier := heuristicBaseMultiplier +
		math.Min(f.SurgeryCount*perSurgeryMultiplier, maxSurgeryMultiplier) +
		math.Min(f.InjectionCount*perInjectionMultiplier, maxInjectionMultiplier) +
		tbiMultiplier[models.TBISeverity(int(f.TBISeverity))]

	value := f.EconomicDamages * multiplier * (f.LiabilityPercent / 100) * weights.VenueWeight(c.Venue)

	rounded := money.Round(value)
	if float64(rounded) < regression.MinimumCaseValue {
		return int64(regression.MinimumCaseValue)
	}
	return rounded
}
