package features

import (
	"regexp"
	"strings"
)

// Flag names a boolean narrative feature
type Flag string

const (
	FlagPriorAccident       Flag = "prior_accident"
	FlagSubsequentAccident  Flag = "subsequent_accident"
	FlagPreExisting         Flag = "pre_existing_condition"
	FlagNonCompliance       Flag = "non_compliance"
	FlagConflictingOpinions Flag = "conflicting_medical_opinion"
)

// FlagOrder is the order flags appear in the feature vector
var FlagOrder = []Flag{
	FlagPriorAccident,
	FlagSubsequentAccident,
	FlagPreExisting,
	FlagNonCompliance,
	FlagConflictingOpinions,
}

// FlagPatterns maps each flag to the phrases that trip it. A flag is set when
// any one of its patterns matches the case-folded narrative.
var FlagPatterns = map[Flag][]*regexp.Regexp{
	FlagPriorAccident: compile(
		`\bprior (?:motor vehicle |car |auto |work )?accidents?\b`,
		`\bprevious (?:motor vehicle |car |auto |work )?accidents?\b`,
		`\bearlier accidents?\b`,
		`\bhistory of (?:a |prior )?(?:motor vehicle )?accidents\b`,
	),
	FlagSubsequentAccident: compile(
		`\bsubsequent (?:motor vehicle |car |auto )?accidents?\b`,
		`\blater (?:motor vehicle |car |auto )?accidents?\b`,
		`\bsecond (?:motor vehicle |car |auto )?accident\b`,
		`\badditional accident\b.{0,80}\bduring (?:the course of |his |her |their )?treatment\b`,
		`\banother accident\b.{0,80}\b(?:during|while in|while undergoing) (?:the course of |his |her |their )?treatment\b`,
		`\bintervening accident\b`,
	),
	FlagPreExisting: compile(
		`\bpre-?existing\b`,
		`\bdegenerative (?:disc|joint|changes|condition|disease)\b`,
		`\bprior (?:injury|injuries|condition|complaints?|treatment) to (?:the )?(?:same|neck|back|knee|shoulder)\b`,
		`\bhistory of (?:chronic )?(?:back|neck|knee|shoulder|hip) (?:pain|problems|injury|injuries)\b`,
	),
	FlagNonCompliance: compile(
		`\bnon-?complian(?:t|ce)\b`,
		`\bmissed (?:\d+ |several |multiple |many )?(?:appointments?|sessions?|visits?)\b`,
		`\bfailed to (?:attend|follow|complete|return)\b`,
		`\bdid not (?:follow|comply|complete|attend)\b`,
		`\bagainst medical advice\b`,
		`\bdiscontinued (?:treatment|therapy|care) (?:early|prematurely|on (?:his|her|their) own)\b`,
	),
	FlagConflictingOpinions: compile(
		`\bconflicting (?:medical )?(?:opinions?|diagnos[ie]s|reports)\b`,
		`\bdisputed (?:diagnosis|causation|need for surgery)\b`,
		`\b(?:ime|independent medical (?:exam|examination|examiner)) (?:found|concluded|disputed|disagreed|opined)\b`,
		`\b(?:doctors|physicians|experts) disagree\b`,
		`\bcontradict(?:s|ed|ing|ory)? (?:the )?(?:treating|medical)\b`,
	),
}

// compile builds a pattern list; a bad literal is a programming error
func compile(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(p))
	}
	return out
}

// surgeryComplexity scores surgery keywords. The first matching keyword wins.
var surgeryComplexity = []struct {
	keyword string
	score   float64
}{
	{"fusion", 3},
	{"acdf", 3},
	{"disc replacement", 3},
	{"knee replacement", 3},
	{"hip replacement", 3},
	{"arthroplasty", 3},
	{"craniotomy", 3},
	{"laminectomy", 2},
	{"microdiscectomy", 2},
	{"discectomy", 2},
	{"rotator cuff", 2},
	{"acl", 2},
	{"orif", 2},
	{"labral", 2},
	{"arthroscop", 1},
	{"carpal tunnel", 1},
	{"meniscectomy", 1},
}

// defaultSurgeryComplexity applies to surgeries with no recognized keyword
const defaultSurgeryComplexity = 1.5

// SurgeryComplexity scores one surgery description
func SurgeryComplexity(surgery string) float64 {
	s := strings.ToLower(surgery)
	for _, entry := range surgeryComplexity {
		if strings.Contains(s, entry.keyword) {
			return entry.score
		}
	}
	return defaultSurgeryComplexity
}

// canonicalProcedures groups free-text procedure names for weight aggregation
var canonicalProcedures = []struct {
	keyword string
	name    string
}{
	{"acdf", "fusion"},
	{"fusion", "fusion"},
	{"microdiscectomy", "discectomy"},
	{"discectomy", "discectomy"},
	{"laminectomy", "laminectomy"},
	{"disc replacement", "disc_replacement"},
	{"knee replacement", "joint_replacement"},
	{"hip replacement", "joint_replacement"},
	{"arthroplasty", "joint_replacement"},
	{"rotator cuff", "rotator_cuff_repair"},
	{"acl", "acl_reconstruction"},
	{"arthroscop", "arthroscopy"},
	{"craniotomy", "craniotomy"},
	{"epidural", "epidural_steroid"},
	{"facet", "facet_injection"},
	{"medial branch", "medial_branch_block"},
	{"radiofrequency", "radiofrequency_ablation"},
	{"rfa", "radiofrequency_ablation"},
	{"trigger point", "trigger_point"},
	{"prp", "prp"},
}

// CanonicalProcedure maps a surgery or injection description to its group key
func CanonicalProcedure(procedure string) string {
	s := strings.ToLower(strings.TrimSpace(procedure))
	if s == "" {
		return ""
	}
	for _, entry := range canonicalProcedures {
		if strings.Contains(s, entry.keyword) {
			return entry.name
		}
	}
	return strings.Join(strings.Fields(s), "_")
}

// venueCostIndex is the cost-of-living index per normalized venue
var venueCostIndex = map[string]float64{
	"san francisco":  1.25,
	"new york":       1.30,
	"alameda":        1.18,
	"kings":          1.15,
	"orange":         1.14,
	"los angeles":    1.12,
	"san diego":      1.10,
	"bronx":          1.08,
	"miami-dade":     1.06,
	"cook":           1.05,
	"philadelphia":   1.04,
	"sacramento":     1.02,
	"maricopa":       0.99,
	"dallas":         0.98,
	"riverside":      0.98,
	"harris":         0.97,
	"san bernardino": 0.96,
	"fresno":         0.92,
	"kern":           0.90,
}

// VenueCostIndex returns the venue's cost-of-living index, 1.0 when unknown
func VenueCostIndex(venue string) float64 {
	if idx, ok := venueCostIndex[NormalizeVenue(venue)]; ok {
		return idx
	}
	return 1.0
}

// VenueLean classifies venues for the weights table
type VenueLean int

const (
	VenueNeutral VenueLean = iota
	VenueLiberal
	VenueConservative
)

var venueLean = map[string]VenueLean{
	"los angeles":    VenueLiberal,
	"san francisco":  VenueLiberal,
	"alameda":        VenueLiberal,
	"cook":           VenueLiberal,
	"philadelphia":   VenueLiberal,
	"bronx":          VenueLiberal,
	"kings":          VenueLiberal,
	"new york":       VenueLiberal,
	"orange":         VenueConservative,
	"riverside":      VenueConservative,
	"san bernardino": VenueConservative,
	"kern":           VenueConservative,
	"fresno":         VenueConservative,
	"collin":         VenueConservative,
	"maricopa":       VenueConservative,
}

// Lean returns the classification of a venue
func Lean(venue string) VenueLean {
	return venueLean[NormalizeVenue(venue)]
}

// KnownVenues lists every venue with a fixed classification
func KnownVenues() []string {
	out := make([]string, 0, len(venueLean))
	for v := range venueLean {
		out = append(out, v)
	}
	return out
}

// NormalizeVenue lowercases and strips court/county decoration
func NormalizeVenue(venue string) string {
	v := strings.ToLower(strings.TrimSpace(venue))
	for _, affix := range []string{"superior court", "county of ", " county", "court of "} {
		v = strings.ReplaceAll(v, affix, "")
	}
	return strings.Join(strings.Fields(v), " ")
}

// Injury categories used for filter hints and category-overlap scoring
const (
	CategorySpinal       = "spinal"
	CategoryNeurological = "neurological"
	CategoryOrthopedic   = "orthopedic"
	CategorySoftTissue   = "soft-tissue"
)

var injuryCategoryKeywords = []struct {
	category string
	keywords []string
}{
	{CategorySpinal, []string{"spine", "spinal", "disc", "herniat", "lumbar", "cervical", "thoracic", "vertebra", "fusion", "back", "neck"}},
	{CategoryNeurological, []string{"tbi", "brain", "concussion", "nerve", "radiculopathy", "neuro", "cognitive"}},
	{CategoryOrthopedic, []string{"fracture", "knee", "shoulder", "hip", "rotator", "acl", "meniscus", "wrist", "ankle", "bone", "elbow"}},
	{CategorySoftTissue, []string{"soft tissue", "soft-tissue", "sprain", "strain", "whiplash", "contusion", "bruis", "laceration"}},
}

// InjuryCategories returns every category whose keywords appear in text, in table order
func InjuryCategories(text string) []string {
	s := strings.ToLower(text)
	var out []string
	for _, entry := range injuryCategoryKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(s, kw) {
				out = append(out, entry.category)
				break
			}
		}
	}
	return out
}

// PrimaryCategory returns the first category for text, or "" when none match
func PrimaryCategory(text string) string {
	cats := InjuryCategories(text)
	if len(cats) == 0 {
		return ""
	}
	return cats[0]
}
