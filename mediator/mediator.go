// Package mediator turns the post-deduction evaluator figure into a bounded
// settlement proposal and grades negotiating positions against it.
package mediator

import (
	"time"

	"casevalue-backend/models"
	"casevalue-backend/money"
)

const (
	// PolicyTriggerRatio is the share of policy limits at which the proposal
	// switches from a net-based figure to a policy-based cap
	PolicyTriggerRatio = 0.90
	// NetShare is the proposal's share of the net evaluator figure
	NetShare = 0.95
	// RangeSpread is the half-width of the settlement range
	RangeSpread = 0.05
	// ValidityWindow is how long a proposal stays open
	ValidityWindow = 7 * 24 * time.Hour

	CappedByPolicyLimits     = "policy_limits"
	CappedByDefenseAuthority = "defense_authority"
)

// Propose computes the mediator figure and its range. Policy limits and
// defense authority, when known, bound every figure. Policy limits of zero or
// less are unknown; a supplied defense authority of zero bounds everything to zero.
func Propose(net int64, policyLimits *float64, hints *models.StrategyHints, evaluatedAt time.Time) models.Proposal {
	policy := positive(policyLimits)

	p := models.Proposal{ExpiresAt: evaluatedAt.Add(ValidityWindow)}
	if policy > 0 && float64(net) >= PolicyTriggerRatio*policy {
		p.Amount = money.Floor(PolicyTriggerRatio * policy)
		p.CappedBy = CappedByPolicyLimits
	} else {
		p.Amount = money.Round(NetShare * float64(net))
	}
	p.RangeLow = money.Round(float64(p.Amount) * (1 - RangeSpread))
	p.RangeHigh = money.Round(float64(p.Amount) * (1 + RangeSpread))

	if policy > 0 {
		clamp(&p, policy, CappedByPolicyLimits)
	}
	if hints != nil {
		if a := hints.DefenseAuthority; a != nil && *a >= 0 {
			clamp(&p, *a, CappedByDefenseAuthority)
		}
	}
	return p
}

// clamp bounds all three figures by ceiling and records the tighter bound
func clamp(p *models.Proposal, ceiling float64, reason string) {
	capped := money.Cap(p.Amount, ceiling)
	if capped < p.Amount {
		p.CappedBy = reason
	}
	p.Amount = capped
	p.RangeLow = money.Cap(p.RangeLow, ceiling)
	p.RangeHigh = money.Cap(p.RangeHigh, ceiling)
}

func positive(v *float64) float64 {
	if v == nil || *v <= 0 {
		return 0
	}
	return *v
}
