package features

import (
	"regexp"
	"strconv"
)

// defaultTreatmentDurationDays applies when the narrative states no duration
const defaultTreatmentDurationDays = 365

const numberPattern = `\b(\d+(?:\.\d+)?|one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve|eighteen|twenty-four)`
const unitPattern = `(days?|weeks?|months?|years?)`

var wordNumbers = map[string]float64{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6,
	"seven": 7, "eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12,
	"eighteen": 18, "twenty-four": 24,
}

var gapPatterns = compile(
	numberPattern+`[\s-]*`+unitPattern+`\s+(?:treatment\s+|medical\s+|care\s+)?gap\b`,
	`\bgap\s+(?:in\s+(?:medical\s+)?(?:treatment|care)\s+)?of\s+(?:approximately\s+|about\s+|over\s+|nearly\s+)?`+numberPattern+`\s*`+unitPattern,
	numberPattern+`\s*`+unitPattern+`\s+(?:without|with no)\s+(?:any\s+)?(?:medical\s+)?(?:treatment|care)\b`,
)

var durationPatterns = compile(
	`\b(?:treated|treatment|therapy|treating)\s+(?:for\s+)?(?:approximately\s+|about\s+|over\s+|nearly\s+)?`+numberPattern+`\s*`+unitPattern,
	numberPattern+`\s*`+unitPattern+`\s+of\s+(?:physical\s+|chiropractic\s+|conservative\s+)?(?:treatment|therapy|care)\b`,
)

// toDays converts a number+unit pair. Months count as 30 days.
func toDays(number, unit string) (float64, bool) {
	n, ok := wordNumbers[number]
	if !ok {
		parsed, err := strconv.ParseFloat(number, 64)
		if err != nil {
			return 0, false
		}
		n = parsed
	}
	switch unit[0] {
	case 'd':
		return n, true
	case 'w':
		return n * 7, true
	case 'm':
		return n * 30, true
	case 'y':
		return n * 365, true
	}
	return 0, false
}

// scanAll applies every pattern and converts each number+unit match to days.
// A number matched by more than one pattern is counted once.
func scanAll(patterns []*regexp.Regexp, text string) []float64 {
	var out []float64
	seen := make(map[int]bool)
	for _, re := range patterns {
		for _, idx := range re.FindAllStringSubmatchIndex(text, -1) {
			if len(idx) < 6 || idx[2] < 0 || idx[4] < 0 {
				continue
			}
			if seen[idx[2]] {
				continue
			}
			seen[idx[2]] = true
			if days, ok := toDays(text[idx[2]:idx[3]], text[idx[4]:idx[5]]); ok {
				out = append(out, days)
			}
		}
	}
	return out
}

// MaxTreatmentGapDays returns the largest treatment gap stated in the narrative, or 0
func MaxTreatmentGapDays(text string) float64 {
	maxGap := 0.0
	for _, d := range scanAll(gapPatterns, fold(text)) {
		if d > maxGap {
			maxGap = d
		}
	}
	return maxGap
}

// TreatmentDurationDays sums every duration phrase, defaulting to 365
func TreatmentDurationDays(text string) float64 {
	found := scanAll(durationPatterns, fold(text))
	if len(found) == 0 {
		return defaultTreatmentDurationDays
	}
	total := 0.0
	for _, d := range found {
		total += d
	}
	return total
}
