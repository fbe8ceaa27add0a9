package billing

import "strings"

// Tier is the internal subscription tier label stored on a billing profile.
type Tier string

const (
	TierBasic        Tier = "tier 1"
	TierIntermediate Tier = "tier 1.5"
	TierHosted       Tier = "tier 2"
	TierSelfHosted   Tier = "tier 3"
)

func normalizeTier(t Tier) Tier {
	switch Tier(strings.ToLower(strings.TrimSpace(string(t)))) {
	case TierBasic:
		return TierBasic
	case TierIntermediate:
		return TierIntermediate
	case TierHosted:
		return TierHosted
	case TierSelfHosted:
		return TierSelfHosted
	default:
		return ""
	}
}

// tierRank orders the tiers that participate in reconciliation:
// tier 2 > tier 1.5 > tier 1. Labels outside that set rank equal (0).
func tierRank(t Tier) int {
	switch normalizeTier(t) {
	case TierHosted:
		return 3
	case TierIntermediate:
		return 2
	case TierBasic:
		return 1
	default:
		return 0
	}
}

// CompareTiers returns a negative value if a ranks below b, a positive value
// if a ranks above b and zero when both rank equal.
func CompareTiers(a, b Tier) int {
	return tierRank(a) - tierRank(b)
}

// MaxTier returns the highest-ranked entry of the given resolved plans, or
// nil when the slice is empty.
func MaxTier(plans []PlanInfo) *PlanInfo {
	var best *PlanInfo
	for i := range plans {
		if best == nil || CompareTiers(plans[i].Tier, best.Tier) > 0 {
			best = &plans[i]
		}
	}
	return best
}
