package billing

import (
	"testing"
	"time"
)

func TestComputeAllowance(t *testing.T) {
	c := testCatalog()

	tests := []struct {
		name     string
		in       AllowanceInput
		credits  float64
		tier     Tier
	}{
		{
			name:    "digital detox wins over everything",
			in:      AllowanceInput{Tier: TierHosted, BasePriceID: "price_sentinel_us", DaysUntilBilling: 10, ActiveDigests: 3, HasDigitalDetox: true},
			credits: 100,
			tier:    TierHosted,
		},
		{
			name:    "US sentinel with digest burn",
			in:      AllowanceInput{Tier: TierHosted, BasePriceID: "price_sentinel_us", DaysUntilBilling: 10, ActiveDigests: 2},
			credits: 380,
			tier:    TierHosted,
		},
		{
			name:    "regional sentinel with US phone",
			in:      AllowanceInput{Tier: TierHosted, BasePriceID: "price_sentinel_fi", DaysUntilBilling: 5, ActiveDigests: 1, PhoneCountry: "US"},
			credits: 195,
			tier:    TierHosted,
		},
		{
			name:    "regional sentinel with CA phone",
			in:      AllowanceInput{Tier: TierHosted, BasePriceID: "price_hosted_us", DaysUntilBilling: 0, ActiveDigests: 0, PhoneCountry: "CA"},
			credits: 200,
			tier:    TierHosted,
		},
		{
			name:    "regional sentinel outside US/CA gets nothing",
			in:      AllowanceInput{Tier: TierHosted, BasePriceID: "price_sentinel_fi", DaysUntilBilling: 20, ActiveDigests: 2, PhoneCountry: "FI"},
			credits: 0,
			tier:    TierHosted,
		},
		{
			name:    "self-hosting forces tier 3",
			in:      AllowanceInput{Tier: TierHosted, BasePriceID: "price_self_hosting", DaysUntilBilling: 30, ActiveDigests: 1},
			credits: 0,
			tier:    TierSelfHosted,
		},
		{
			name:    "legacy tier 2 price",
			in:      AllowanceInput{Tier: TierHosted, BasePriceID: "price_legacy", DaysUntilBilling: 30, ActiveDigests: 1},
			credits: 90,
			tier:    TierHosted,
		},
		{
			name:    "tier 1 flat allowance",
			in:      AllowanceInput{Tier: TierBasic, BasePriceID: "price_basic_fi", DaysUntilBilling: 30, ActiveDigests: 5},
			credits: 40,
			tier:    TierBasic,
		},
		{
			name:    "tier 1.5 flat allowance",
			in:      AllowanceInput{Tier: TierIntermediate, BasePriceID: "price_mid", DaysUntilBilling: 30, ActiveDigests: 5},
			credits: 40,
			tier:    TierIntermediate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			credits, tier := c.ComputeAllowance(tt.in)
			if credits != tt.credits || tier != tt.tier {
				t.Fatalf("ComputeAllowance(%+v) = (%v, %q), want (%v, %q)", tt.in, credits, tier, tt.credits, tt.tier)
			}
		})
	}
}

func TestComputeAllowanceIdempotent(t *testing.T) {
	c := testCatalog()
	in := AllowanceInput{Tier: TierHosted, BasePriceID: "price_sentinel_us", DaysUntilBilling: 12, ActiveDigests: 3, PhoneCountry: "US"}

	first, firstTier := c.ComputeAllowance(in)
	for i := 0; i < 5; i++ {
		credits, tier := c.ComputeAllowance(in)
		if credits != first || tier != firstTier {
			t.Fatalf("run %d: ComputeAllowance diverged: (%v, %q) != (%v, %q)", i, credits, tier, first, firstTier)
		}
	}
}

func TestDaysUntilBilling(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	tests := []struct {
		periodEnd int64
		want      int64
	}{
		{0, 30},
		{now.Unix() + 10*secondsPerDay, 10},
		// Partial days truncate toward zero.
		{now.Unix() + 10*secondsPerDay + 3600, 10},
		{now.Unix() + secondsPerDay - 1, 0},
		{now.Unix() - secondsPerDay, -1},
	}
	for _, tt := range tests {
		if got := DaysUntilBilling(tt.periodEnd, now); got != tt.want {
			t.Fatalf("DaysUntilBilling(%d) = %d, want %d", tt.periodEnd, got, tt.want)
		}
	}
}
