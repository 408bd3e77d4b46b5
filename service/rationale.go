package service

import (
	"fmt"
	"strings"

	"casevalue-backend/models"
	"casevalue-backend/money"
)

const citedNeighbors = 5

// rationaleInput gathers what the explanation reports
type rationaleInput struct {
	method      models.EvaluationMethod
	path        models.RetrievalPath
	neighbors   int
	alpha       float64
	confidence  float64
	gross       int64
	boost       *boostApplied
	deductions  models.DeductionResult
	proposal    models.Proposal
	neighborIDs []string
	novel       bool
	heuristic   *int64
	alignment   *models.Alignment
}

type boostApplied struct {
	amount      int64
	venueWeight float64
	tbiWeight   float64
}

// buildRationale renders the human-readable explanation attached to a result
func buildRationale(in rationaleInput) string {
	var b strings.Builder

	switch in.method {
	case models.MethodRegression:
		fmt.Fprintf(&b, "Gross evaluator value %s from a ridge regression (alpha %.1f) over %d comparable cases found by %s retrieval. ",
			money.Format(in.gross), in.alpha, in.neighbors, in.path)
	default:
		fmt.Fprintf(&b, "No comparable settled cases were available; gross evaluator value %s comes from the rule-based valuation. ",
			money.Format(in.gross))
	}
	fmt.Fprintf(&b, "Confidence %.0f/100.\n", in.confidence)

	if in.boost != nil {
		fmt.Fprintf(&b, "Corpus weights added %s before venue (x%.2f) and TBI (x%.2f) adjustment.\n",
			money.Format(in.boost.amount), in.boost.venueWeight, in.boost.tbiWeight)
	}

	var applied []string
	for _, d := range in.deductions.Deductions {
		if d.Triggered {
			applied = append(applied, fmt.Sprintf("%s %.0f%% (%s)", d.Name, d.Percent, d.Reason))
		}
	}
	if len(applied) == 0 {
		b.WriteString("No deductions applied.\n")
	} else {
		fmt.Fprintf(&b, "Deductions: %s.", strings.Join(applied, "; "))
		if in.deductions.Capped {
			fmt.Fprintf(&b, " Total capped at %.0f%%.", in.deductions.TotalPercent)
		} else {
			fmt.Fprintf(&b, " Total %.0f%%.", in.deductions.TotalPercent)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Net evaluator value %s.\n", money.Format(in.deductions.NetAmount))

	fmt.Fprintf(&b, "Mediator proposal %s, range %s to %s",
		money.Format(in.proposal.Amount), money.Format(in.proposal.RangeLow), money.Format(in.proposal.RangeHigh))
	if in.proposal.CappedBy != "" {
		fmt.Fprintf(&b, ", bounded by %s", strings.ReplaceAll(in.proposal.CappedBy, "_", " "))
	}
	fmt.Fprintf(&b, ". Valid until %s.\n", in.proposal.ExpiresAt.Format("January 2, 2006"))

	if len(in.neighborIDs) > 0 {
		ids := in.neighborIDs
		if len(ids) > citedNeighbors {
			ids = ids[:citedNeighbors]
		}
		fmt.Fprintf(&b, "Most similar cases: %s.\n", strings.Join(ids, ", "))
	}

	if in.novel {
		b.WriteString("Novel case: few close comparables.")
		if in.heuristic != nil {
			fmt.Fprintf(&b, " Rule-based cross-check %s.", money.Format(*in.heuristic))
		}
		b.WriteString("\n")
	}

	if in.alignment != nil {
		fmt.Fprintf(&b, "Strategy alignment: %s.\n", in.alignment.Overall)
	}

	return strings.TrimRight(b.String(), "\n")
}
