package billing

import "time"

const (
	// defaultBillingDays is assumed when the subscription period end is
	// missing or unusable.
	defaultBillingDays = 30

	secondsPerDay = 24 * 60 * 60
)

// AllowanceInput is the full input of the monthly allowance policy.
type AllowanceInput struct {
	Tier             Tier
	BasePriceID      string
	DaysUntilBilling int64
	ActiveDigests    int
	PhoneCountry     string
	HasDigitalDetox  bool
}

// ComputeAllowance evaluates the allowance decision table and returns the
// monthly message credit balance together with the effective tier. The
// effective tier differs from in.Tier only for the self-hosting price,
// which forces tier 3.
//
// The subtraction term pre-pays digest sends out of the monthly quota: each
// active digest slot reduces the allowance by one unit per remaining
// billing day, so digests enabled mid-cycle are not charged for elapsed
// days. Evaluation order is policy-significant; do not reorder.
func (c *PriceCatalog) ComputeAllowance(in AllowanceInput) (float64, Tier) {
	digestBurn := float64(in.DaysUntilBilling * int64(in.ActiveDigests))

	switch {
	case in.HasDigitalDetox:
		return 100.0, in.Tier
	case c.sentinelUSID != "" && in.BasePriceID == c.sentinelUSID:
		return 400.0 - digestBurn, in.Tier
	case c.IsSentinelOrHosted(in.BasePriceID):
		if in.PhoneCountry == "US" || in.PhoneCountry == "CA" {
			return 200.0 - digestBurn, in.Tier
		}
		return 0.0, in.Tier
	case c.selfHostingID != "" && in.BasePriceID == c.selfHostingID:
		return 0.0, TierSelfHosted
	case normalizeTier(in.Tier) == TierHosted:
		// Legacy hosted-tier subscriptions not sold anymore.
		return 120.0 - digestBurn, in.Tier
	default:
		return 40.0, in.Tier
	}
}

// DaysUntilBilling computes whole days between now and the subscription's
// period end, truncating toward zero. A zero period end yields the 30-day
// default.
func DaysUntilBilling(currentPeriodEnd int64, now time.Time) int64 {
	if currentPeriodEnd == 0 {
		return defaultBillingDays
	}
	return (currentPeriodEnd - now.Unix()) / secondsPerDay
}
