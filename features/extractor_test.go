package features

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casevalue-backend/models"
)

func fixedClock() func() time.Time {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time { return now }
}

func ptr[T any](v T) *T { return &v }

func TestExtract_DefaultsForEmptyCase(t *testing.T) {
	e := NewExtractor(WithClock(fixedClock()))

	f := e.Extract(models.CaseInput{}, "")

	assert.Equal(t, 0.0, f.EconomicDamages)
	assert.Equal(t, 0.0, f.SurgeryCount)
	assert.Equal(t, 0.0, f.InjectionCount)
	assert.Equal(t, 0.0, f.TBISeverity)
	assert.Equal(t, 100.0, f.LiabilityPercent)
	assert.Equal(t, 365.0, f.TreatmentDurationDays)
	assert.Equal(t, 0.0, f.MaxTreatmentGapDays)
	assert.Equal(t, 0.0, f.PolicyLimitRatio)
	assert.Equal(t, 1.0, f.VenueCostIndex)
	assert.Equal(t, 0.0, f.CaseAgeYears)
	assert.Len(t, f.Vector(), models.FeatureCount)
}

func TestExtract_StructuredFields(t *testing.T) {
	e := NewExtractor(WithClock(fixedClock()))
	c := models.CaseInput{
		EconomicDamages:  ptr(80000.0),
		PolicyLimits:     ptr(100000.0),
		SurgeryTypes:     []string{"L4-L5 fusion", "arthroscopic knee surgery"},
		InjectionTypes:   []string{"lumbar epidural", "facet injection", "trigger point"},
		TBISeverity:      "moderate",
		LiabilityPercent: ptr(75.0),
		Venue:            "Los Angeles County Superior Court",
		IncidentDate:     ptr(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)),
	}

	f := e.Extract(c, "")

	assert.Equal(t, 80000.0, f.EconomicDamages)
	assert.Equal(t, 2.0, f.SurgeryCount)
	assert.Equal(t, 4.0, f.SurgeryComplexity) // fusion 3 + arthroscopy 1
	assert.Equal(t, 3.0, f.InjectionCount)
	assert.Equal(t, 2.0, f.TBISeverity)
	assert.Equal(t, 75.0, f.LiabilityPercent)
	assert.InDelta(t, 2.0, f.PolicyLimitRatio, 1e-9) // 3 x 80k / 100k clamps at 2
	assert.Equal(t, 1.12, f.VenueCostIndex)
	assert.InDelta(t, 2.0, f.CaseAgeYears, 0.01)
}

func TestExtract_SurgeryCountBeyondDescribedTypes(t *testing.T) {
	e := NewExtractor()
	c := models.CaseInput{SurgeryCount: ptr(3), SurgeryTypes: []string{"discectomy"}}

	f := e.Extract(c, "")

	assert.Equal(t, 3.0, f.SurgeryCount)
	assert.Equal(t, 2.0+2*1.5, f.SurgeryComplexity)
}

func TestExtract_HistoricalPolicyRatioUsesSettlement(t *testing.T) {
	e := NewExtractor()
	c := models.CaseInput{EconomicDamages: ptr(10000.0), PolicyLimits: ptr(100000.0)}

	f := e.ExtractHistorical(c, "", 50000)

	assert.InDelta(t, 0.5, f.PolicyLimitRatio, 1e-9)
}

func TestExtract_IsDeterministic(t *testing.T) {
	e := NewExtractor(WithClock(fixedClock()))
	c := models.CaseInput{
		EconomicDamages: ptr(42000.0),
		SurgeryTypes:    []string{"rotator cuff repair"},
		Venue:           "Kern",
	}
	narrative := "Plaintiff had a prior accident in 2015. There was a 95 day gap in treatment."

	first := e.Extract(c, narrative)
	second := e.Extract(c, narrative)

	assert.Equal(t, first, second)
}

func TestFlagPatterns(t *testing.T) {
	tests := []struct {
		name      string
		flag      Flag
		narrative string
		expected  bool
	}{
		{"subsequent accident phrase", FlagSubsequentAccident, "She was involved in a subsequent accident during treatment.", true},
		{"later accident phrase", FlagSubsequentAccident, "A later accident aggravated the neck.", true},
		{"additional accident during treatment", FlagSubsequentAccident, "He had an additional accident in March during treatment with Dr. Lee.", true},
		{"additional accident without treatment context", FlagSubsequentAccident, "No additional accident was reported.", false},
		{"prior accident", FlagPriorAccident, "Plaintiff had a prior motor vehicle accident in 2012.", true},
		{"pre-existing hyphenated", FlagPreExisting, "Records show a pre-existing lumbar condition.", true},
		{"preexisting unhyphenated", FlagPreExisting, "Records show preexisting arthritis.", true},
		{"degenerative disc", FlagPreExisting, "MRI shows degenerative disc disease.", true},
		{"non-compliance", FlagNonCompliance, "Therapist noted non-compliance with home exercises.", true},
		{"missed appointments", FlagNonCompliance, "Client missed 4 appointments in the spring.", true},
		{"against medical advice", FlagNonCompliance, "Left the hospital against medical advice.", true},
		{"conflicting opinions", FlagConflictingOpinions, "There are conflicting medical opinions on causation.", true},
		{"ime disputed", FlagConflictingOpinions, "The IME disputed the need for surgery.", true},
		{"clean narrative", FlagConflictingOpinions, "Rear-ended at a stop light; treated with PT.", false},
		{"case insensitive", FlagSubsequentAccident, "SUBSEQUENT ACCIDENT occurred.", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, MatchFlag(tt.flag, Fold(tt.narrative)))
		})
	}
}

func TestExtract_NarrativeFlagsPopulateVector(t *testing.T) {
	e := NewExtractor()
	f := e.Extract(models.CaseInput{}, "Subsequent accident during treatment. Pre-existing back pain. Conflicting opinions from experts.")

	assert.Equal(t, 1.0, f.SubsequentAccident)
	assert.Equal(t, 1.0, f.PreExistingCondition)
	assert.Equal(t, 1.0, f.ConflictingMedicalViews)
	assert.Equal(t, 0.0, f.PriorAccident)
	assert.Equal(t, 0.0, f.NonCompliance)
}

func TestTreatmentScans(t *testing.T) {
	tests := []struct {
		name             string
		narrative        string
		expectedGap      float64
		expectedDuration float64
	}{
		{
			name:             "no phrases uses defaults",
			narrative:        "Rear-end collision.",
			expectedGap:      0,
			expectedDuration: 365,
		},
		{
			name:             "largest gap wins",
			narrative:        "There was a 30 day gap and later a gap in treatment of 4 months.",
			expectedGap:      120,
			expectedDuration: 365,
		},
		{
			name:             "weeks without treatment",
			narrative:        "She went 14 weeks without treatment.",
			expectedGap:      98,
			expectedDuration: 365,
		},
		{
			name:             "durations sum with months as 30 days",
			narrative:        "Treated for 6 months with chiropractic, then 8 weeks of physical therapy.",
			expectedGap:      0,
			expectedDuration: 180 + 56,
		},
		{
			name:             "overlapping patterns count once",
			narrative:        "Plaintiff was in treatment for 3 months of therapy.",
			expectedGap:      0,
			expectedDuration: 90,
		},
		{
			name:             "word numbers",
			narrative:        "A six month gap preceded surgery.",
			expectedGap:      180,
			expectedDuration: 365,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expectedGap, MaxTreatmentGapDays(tt.narrative))
			assert.Equal(t, tt.expectedDuration, TreatmentDurationDays(tt.narrative))
		})
	}
}

func TestStructuredGapOverridesSmallerNarrativeGap(t *testing.T) {
	e := NewExtractor()
	f := e.Extract(models.CaseInput{TreatmentGapDays: ptr(150)}, "There was a 20 day gap.")
	assert.Equal(t, 150.0, f.MaxTreatmentGapDays)
}

func TestScaledVector(t *testing.T) {
	f := models.CaseFeatures{
		EconomicDamages:       250000,
		MaxTreatmentGapDays:   73,
		TreatmentDurationDays: 730,
		LiabilityPercent:      80,
	}

	v := f.Scaled()

	require.Len(t, v, models.FeatureCount)
	assert.InDelta(t, 2.5, v[0], 1e-9)
	assert.InDelta(t, 0.2, v[5], 1e-9)
	assert.InDelta(t, 2.0, v[6], 1e-9)
	assert.InDelta(t, 0.8, v[7], 1e-9)
}

func TestInjuryCategories(t *testing.T) {
	assert.Equal(t, []string{CategorySpinal, CategoryNeurological}, InjuryCategories("Lumbar disc herniation with radiculopathy"))
	assert.Equal(t, CategoryOrthopedic, PrimaryCategory("Tibial plateau fracture"))
	assert.Equal(t, "", PrimaryCategory("emotional distress"))
}

func TestNormalizeVenue(t *testing.T) {
	assert.Equal(t, "los angeles", NormalizeVenue("Los Angeles County Superior Court"))
	assert.Equal(t, "orange", NormalizeVenue("County of Orange"))
	assert.Equal(t, VenueConservative, Lean("Orange County"))
	assert.Equal(t, VenueNeutral, Lean("Nowhere"))
}
