package retrieval

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"

	"casevalue-backend/features"
	"casevalue-backend/models"
)

// Structured similarity weights for the fallback path
const (
	venueMatchScore       = 20.0
	surgeryMatchScore     = 10.0
	injuryOverlapMaxScore = 10.0
	liabilityMaxScore     = 4.0
	accidentMatchScore    = 3.0

	// fuzzyMinLength is the shortest word allowed a one-edit fuzzy match
	fuzzyMinLength = 5
)

var stopWords = map[string]bool{
	"the": true, "and": true, "with": true, "for": true, "from": true,
	"left": true, "right": true, "of": true, "to": true, "in": true,
}

// StructuredScore rates a corpus case against the query using structured
// fields only. The maximum is 47.
func StructuredScore(query, candidate models.CaseInput) float64 {
	score := 0.0

	if v := features.NormalizeVenue(query.Venue); v != "" && v == features.NormalizeVenue(candidate.Venue) {
		score += venueMatchScore
	}
	if surgeryMatch(query.SurgeryTypes, candidate.SurgeryTypes) {
		score += surgeryMatchScore
	}
	score += injuryOverlap(injuryText(query), injuryText(candidate)) * injuryOverlapMaxScore
	score += liabilityProximity(query.LiabilityPercent, candidate.LiabilityPercent) * liabilityMaxScore
	if a := normalizeLabel(query.AccidentType); a != "" && a == normalizeLabel(candidate.AccidentType) {
		score += accidentMatchScore
	}

	return score
}

// rankStructured scores every settled case and returns the best limit,
// highest score first. Ties keep corpus order.
func rankStructured(query models.CaseInput, corpus []models.HistoricalCase, limit int) []models.HistoricalCase {
	ranked := make([]models.HistoricalCase, 0, len(corpus))
	for _, hc := range corpus {
		if hc.Settlement <= 0 {
			continue
		}
		hc.Similarity = StructuredScore(query, hc.Record)
		ranked = append(ranked, hc)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Similarity > ranked[j].Similarity
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// surgeryMatch reports whether any described procedure contains another
func surgeryMatch(a, b []string) bool {
	for _, x := range a {
		x = strings.ToLower(strings.TrimSpace(x))
		if x == "" {
			continue
		}
		for _, y := range b {
			y = strings.ToLower(strings.TrimSpace(y))
			if y == "" {
				continue
			}
			if strings.Contains(x, y) || strings.Contains(y, x) {
				return true
			}
		}
	}
	return false
}

// injuryOverlap is the share of query injury words found in the
// candidate's description. Longer words tolerate a single typo.
func injuryOverlap(query, candidate string) float64 {
	q := words(query)
	c := words(candidate)
	if len(q) == 0 || len(c) == 0 {
		return 0
	}
	matched := 0
	for _, w := range q {
		for _, other := range c {
			if w == other || (len(w) >= fuzzyMinLength && len(other) >= fuzzyMinLength &&
				levenshtein.ComputeDistance(w, other) <= 1) {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(q))
}

// words splits text into distinct lowercase words of three or more letters
func words(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 3 || stopWords[f] || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// liabilityProximity falls off linearly over a 100-point spread
func liabilityProximity(a, b *float64) float64 {
	la, lb := 100.0, 100.0
	if a != nil {
		la = *a
	}
	if b != nil {
		lb = *b
	}
	return math.Max(0, 1-math.Abs(la-lb)/100)
}

func normalizeLabel(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
