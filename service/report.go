package service

import (
	"fmt"
	"strings"

	"casevalue-backend/models"
	"casevalue-backend/money"
)

// RenderReport formats an evaluation as the plain-text report archived with it
func RenderReport(caseID string, ev *models.EvaluationResult) string {
	var b strings.Builder

	b.WriteString("CASE VALUATION REPORT\n")
	if caseID != "" {
		fmt.Fprintf(&b, "Case: %s\n", caseID)
	}
	fmt.Fprintf(&b, "Evaluated: %s\n", ev.EvaluatedAt.UTC().Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(&b, "Method: %s (%s retrieval, %d comparables)\n", ev.Method, ev.RetrievalPath, len(ev.NeighborIDs))
	fmt.Fprintf(&b, "Confidence: %.0f/100\n", ev.Confidence)
	if ev.NovelCase {
		b.WriteString("Novel case: limited comparable history\n")
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "Gross value:     %s\n", money.Format(ev.GrossAmount))
	if ev.WeightsBoost != 0 {
		fmt.Fprintf(&b, "  weights boost: %s\n", money.Format(ev.WeightsBoost))
	}
	if ev.HeuristicAmount != nil {
		fmt.Fprintf(&b, "  heuristic:     %s\n", money.Format(*ev.HeuristicAmount))
	}
	for _, d := range ev.Deductions {
		if !d.Triggered {
			continue
		}
		fmt.Fprintf(&b, "  %.0f%% %s\n", d.Percent, d.Name)
	}
	fmt.Fprintf(&b, "Total deduction: %.0f%%\n", ev.DeductionTotal)
	fmt.Fprintf(&b, "Net value:       %s\n", money.Format(ev.NetAmount))
	fmt.Fprintf(&b, "Proposal:        %s (%s - %s)\n",
		money.Format(ev.ProposalAmount), money.Format(ev.RangeLow), money.Format(ev.RangeHigh))
	fmt.Fprintf(&b, "Valid until:     %s\n", ev.ExpiresAt.UTC().Format("2006-01-02"))

	if ev.Alignment != nil {
		fmt.Fprintf(&b, "Alignment:       %s\n", ev.Alignment.Overall)
	}

	b.WriteString("\n")
	b.WriteString(ev.Rationale)
	b.WriteString("\n")
	if ev.Fingerprint != "" {
		fmt.Fprintf(&b, "\nInput fingerprint: %s\n", ev.Fingerprint)
	}

	return b.String()
}
