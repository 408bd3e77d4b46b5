package mediator

import (
	"math"

	"casevalue-backend/models"
)

const (
	plaintiffYellowRatio = 1.15
	authorityYellowRatio = 0.85
	rangeGapYellowRatio  = 0.15
	confidenceNudge      = 10.0
)

// Align grades each supplied position against the proposal range. It returns
// nil when no position was supplied.
func Align(p models.Proposal, hints *models.StrategyHints) *models.Alignment {
	if hints == nil {
		return nil
	}
	a := &models.Alignment{}
	var bands []models.AlignmentBand

	if hints.PlaintiffBottomLine != nil {
		a.Plaintiff = plaintiffBand(*hints.PlaintiffBottomLine, p)
		bands = append(bands, a.Plaintiff)
	}
	if hints.DefenseAuthority != nil {
		a.DefenseAuthority = authorityBand(*hints.DefenseAuthority, p)
		bands = append(bands, a.DefenseAuthority)
	}
	if hints.DefenseRangeLow != nil || hints.DefenseRangeHigh != nil {
		a.DefenseRange = rangeBand(hints.DefenseRangeLow, hints.DefenseRangeHigh, p)
		bands = append(bands, a.DefenseRange)
	}
	if len(bands) == 0 {
		return nil
	}

	a.Overall = models.BandGreen
	for _, b := range bands {
		a.Overall = worse(a.Overall, b)
	}
	switch a.Overall {
	case models.BandGreen:
		a.ConfidenceDelta = confidenceNudge
	case models.BandRed:
		a.ConfidenceDelta = -confidenceNudge
	}
	return a
}

// AdjustConfidence applies an alignment nudge, keeping the score in [0, 100]
func AdjustConfidence(confidence float64, a *models.Alignment) float64 {
	if a == nil {
		return confidence
	}
	return math.Max(0, math.Min(100, confidence+a.ConfidenceDelta))
}

// plaintiffBand: a bottom line inside the range settles; modestly above it may
func plaintiffBand(bottomLine float64, p models.Proposal) models.AlignmentBand {
	high := float64(p.RangeHigh)
	switch {
	case bottomLine <= high:
		return models.BandGreen
	case bottomLine <= high*plaintiffYellowRatio:
		return models.BandYellow
	}
	return models.BandRed
}

func authorityBand(authority float64, p models.Proposal) models.AlignmentBand {
	low := float64(p.RangeLow)
	switch {
	case authority >= low:
		return models.BandGreen
	case authority >= low*authorityYellowRatio:
		return models.BandYellow
	}
	return models.BandRed
}

// rangeBand treats a one-sided defense range as a point
func rangeBand(lowHint, highHint *float64, p models.Proposal) models.AlignmentBand {
	var low, high float64
	switch {
	case lowHint != nil && highHint != nil:
		low, high = *lowHint, *highHint
	case lowHint != nil:
		low, high = *lowHint, *lowHint
	default:
		low, high = *highHint, *highHint
	}
	if low > high {
		low, high = high, low
	}

	rangeLow := float64(p.RangeLow)
	if high >= rangeLow {
		// Overlapping, or a defense range entirely above the proposal
		return models.BandGreen
	}
	if rangeLow-high <= rangeLow*rangeGapYellowRatio {
		return models.BandYellow
	}
	return models.BandRed
}

func worse(a, b models.AlignmentBand) models.AlignmentBand {
	rank := map[models.AlignmentBand]int{models.BandGreen: 0, models.BandYellow: 1, models.BandRed: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
