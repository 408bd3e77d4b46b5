package weights

import (
	"fmt"
	"time"

	"casevalue-backend/features"
	"casevalue-backend/models"
)

const (
	liberalVenueWeight      = 1.03
	conservativeVenueWeight = 0.97
	// boostScale damps the rule-based boost; the regression already sees counts
	boostScale = 0.25
)

// TBIWeights are fixed defense-perspective multipliers, not derived from data
var TBIWeights = map[string]float64{
	models.TBINone.String():     1.0,
	models.TBIMild.String():     0.85,
	models.TBIModerate.String(): 1.15,
	models.TBISevere.String():   1.45,
}

// Compute aggregates a snapshot from every settled corpus case
func Compute(cases []models.HistoricalCase, now time.Time) (*models.WeightsSnapshot, error) {
	var total float64
	var n int
	for _, c := range cases {
		if c.Settlement > 0 {
			total += c.Settlement
			n++
		}
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: no settled cases", ErrDataUnavailable)
	}
	mean := total / float64(n)

	surgeryGroups := make(map[string][]float64)
	injectionGroups := make(map[string][]float64)
	venues := make(map[string]struct{})
	var surgeryCounts, injectionCounts, settlements []float64

	for _, c := range cases {
		if c.Settlement <= 0 {
			continue
		}
		for _, key := range procedureKeys(c.Record.SurgeryTypes) {
			surgeryGroups[key] = append(surgeryGroups[key], c.Settlement)
		}
		for _, key := range procedureKeys(c.Record.InjectionTypes) {
			injectionGroups[key] = append(injectionGroups[key], c.Settlement)
		}
		if v := features.NormalizeVenue(c.Record.Venue); v != "" {
			venues[v] = struct{}{}
		}
		surgeryCounts = append(surgeryCounts, float64(features.CountSurgeries(c.Record)))
		injectionCounts = append(injectionCounts, float64(features.CountInjections(c.Record)))
		settlements = append(settlements, c.Settlement)
	}

	for _, v := range features.KnownVenues() {
		venues[v] = struct{}{}
	}
	venueWeights := make(map[string]float64, len(venues))
	for v := range venues {
		venueWeights[v] = VenueWeight(v)
	}

	tbi := make(map[string]float64, len(TBIWeights))
	for k, w := range TBIWeights {
		tbi[k] = w
	}

	return &models.WeightsSnapshot{
		SurgeryWeights:   groupWeights(surgeryGroups, mean),
		InjectionWeights: groupWeights(injectionGroups, mean),
		VenueWeights:     venueWeights,
		TBIWeights:       tbi,
		SurgerySlope:     nonNegativeSlope(surgeryCounts, settlements),
		InjectionSlope:   nonNegativeSlope(injectionCounts, settlements),
		CorpusMean:       mean,
		CaseCount:        n,
		ComputedAt:       now,
	}, nil
}

// VenueWeight uses the fixed classification rather than raw venue means,
// which swing on small samples
func VenueWeight(venue string) float64 {
	switch features.Lean(venue) {
	case features.VenueLiberal:
		return liberalVenueWeight
	case features.VenueConservative:
		return conservativeVenueWeight
	default:
		return 1.0
	}
}

// procedureKeys returns the distinct group keys for one case's procedures
func procedureKeys(procedures []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range procedures {
		key := features.CanonicalProcedure(p)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, key)
	}
	return out
}

func groupWeights(groups map[string][]float64, corpusMean float64) map[string]float64 {
	out := make(map[string]float64, len(groups))
	for key, values := range groups {
		sum := 0.0
		for _, v := range values {
			sum += v
		}
		out[key] = (sum / float64(len(values))) / corpusMean
	}
	return out
}

// nonNegativeSlope is the ordinary least squares slope of y on x, floored at 0
func nonNegativeSlope(x, y []float64) float64 {
	if len(x) < 2 || len(x) != len(y) {
		return 0
	}
	var mx, my float64
	for i := range x {
		mx += x[i]
		my += y[i]
	}
	mx /= float64(len(x))
	my /= float64(len(y))

	var cov, variance float64
	for i := range x {
		dx := x[i] - mx
		cov += dx * (y[i] - my)
		variance += dx * dx
	}
	if variance == 0 {
		return 0
	}
	slope := cov / variance
	if slope < 0 {
		return 0
	}
	return slope
}

// BoostResult describes how the snapshot adjusted a regression prediction
type BoostResult struct {
	Adjusted        float64
	Boost           float64
	VenueWeight     float64
	TBIWeight       float64
	SurgeryWeight   float64
	InjectionWeight float64
}

// ApplyBoost adds the supplementary rule-based boost to prediction:
// (prediction + count-driven boost) x venue weight x TBI weight
func ApplyBoost(snap *models.WeightsSnapshot, c models.CaseInput, f models.CaseFeatures, prediction float64) BoostResult {
	res := BoostResult{
		Adjusted:        prediction,
		VenueWeight:     1.0,
		TBIWeight:       1.0,
		SurgeryWeight:   meanWeight(snap.SurgeryWeights, c.SurgeryTypes),
		InjectionWeight: meanWeight(snap.InjectionWeights, c.InjectionTypes),
	}

	if w, ok := snap.VenueWeights[features.NormalizeVenue(c.Venue)]; ok {
		res.VenueWeight = w
	}
	if w, ok := snap.TBIWeights[models.TBISeverity(int(f.TBISeverity)).String()]; ok {
		res.TBIWeight = w
	}

	res.Boost = f.SurgeryCount*snap.SurgerySlope*res.SurgeryWeight*boostScale +
		f.InjectionCount*snap.InjectionSlope*res.InjectionWeight*boostScale
	res.Adjusted = (prediction + res.Boost) * res.VenueWeight * res.TBIWeight
	return res
}

// meanWeight averages the weights of the described procedures, 1.0 when none are known
func meanWeight(table map[string]float64, procedures []string) float64 {
	sum := 0.0
	n := 0
	for _, key := range procedureKeys(procedures) {
		if w, ok := table[key]; ok {
			sum += w
			n++
		}
	}
	if n == 0 {
		return 1.0
	}
	return sum / float64(n)
}
