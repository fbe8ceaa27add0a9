package billing

import "testing"

func TestCompareTiers(t *testing.T) {
	tests := []struct {
		a, b Tier
		want int // sign only
	}{
		{TierHosted, TierIntermediate, 1},
		{TierHosted, TierBasic, 1},
		{TierIntermediate, TierBasic, 1},
		{TierBasic, TierHosted, -1},
		{TierBasic, TierIntermediate, -1},
		{TierIntermediate, TierHosted, -1},
		{TierHosted, TierHosted, 0},
		{TierBasic, TierBasic, 0},
		{"tier 99", "bogus", 0},
	}

	for _, tt := range tests {
		got := CompareTiers(tt.a, tt.b)
		switch {
		case tt.want > 0 && got <= 0:
			t.Fatalf("CompareTiers(%q, %q) = %d, want > 0", tt.a, tt.b, got)
		case tt.want < 0 && got >= 0:
			t.Fatalf("CompareTiers(%q, %q) = %d, want < 0", tt.a, tt.b, got)
		case tt.want == 0 && got != 0:
			t.Fatalf("CompareTiers(%q, %q) = %d, want 0", tt.a, tt.b, got)
		}
	}
}

func TestCompareTiersTotalOrder(t *testing.T) {
	ordered := []Tier{TierBasic, TierIntermediate, TierHosted}
	for i, lo := range ordered {
		for _, hi := range ordered[i+1:] {
			if CompareTiers(hi, lo) <= 0 {
				t.Fatalf("expected %q to outrank %q", hi, lo)
			}
			if CompareTiers(lo, hi) >= 0 {
				t.Fatalf("expected %q to rank below %q", lo, hi)
			}
		}
	}
}

func TestMaxTier(t *testing.T) {
	if got := MaxTier(nil); got != nil {
		t.Fatalf("MaxTier(nil) = %v, want nil", got)
	}

	plans := []PlanInfo{
		{Country: "FI", Tier: TierBasic},
		{Country: "US", Tier: TierHosted},
		{Country: "UK", Tier: TierIntermediate},
	}
	best := MaxTier(plans)
	if best == nil || best.Tier != TierHosted || best.Country != "US" {
		t.Fatalf("MaxTier = %+v, want US/tier 2", best)
	}
}
