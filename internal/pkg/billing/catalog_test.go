package billing

import "testing"

func testCatalog() *PriceCatalog {
	return NewPriceCatalog(CatalogConfig{
		PriceIDs: map[string]string{
			"STRIPE_SUBSCRIPTION_HARD_MODE_PRICE_ID_US":   "price_hard_us",
			"STRIPE_SUBSCRIPTION_BASIC_DAILY_PRICE_ID_FI": "price_basic_daily_fi",
			"STRIPE_SUBSCRIPTION_BASIC_PRICE_ID_FI":       "price_basic_fi",
			"STRIPE_SUBSCRIPTION_WORLD_PRICE_ID_UK":       "price_world_uk",
			"STRIPE_SUBSCRIPTION_SENTINEL_PRICE_ID_US":    "price_sentinel_us",
			"STRIPE_SUBSCRIPTION_SENTINEL_PRICE_ID_FI":    "price_sentinel_fi",
			"STRIPE_SUBSCRIPTION_SENTINEL_PRICE_ID_NL":    "price_sentinel_nl",
			"STRIPE_SUBSCRIPTION_SENTINEL_PRICE_ID_UK":    "price_sentinel_uk",
			"STRIPE_SUBSCRIPTION_SENTINEL_PRICE_ID_AU":    "price_sentinel_au",
			"STRIPE_SUBSCRIPTION_SENTINEL_PRICE_ID_OTHER": "price_sentinel_other",
			"STRIPE_SUBSCRIPTION_HOSTED_PLAN_PRICE_ID_US": "price_hosted_us",
		},
		SelfHostingPriceID:     "price_self_hosting",
		TopupPriceID:           "price_topup",
		DigitalDetoxFeeIDUS:    "price_detox_us",
		DigitalDetoxFeeIDOther: "price_detox_other",
		CreditsProductID:       "prod_credits",
		HardwarePriceID:        "price_device",
	})
}

func TestCatalogHardwarePriceID(t *testing.T) {
	if got := testCatalog().HardwarePriceID(); got != "price_device" {
		t.Errorf("HardwarePriceID() = %q, want %q", got, "price_device")
	}
	if got := NewPriceCatalog(CatalogConfig{}).HardwarePriceID(); got != "" {
		t.Errorf("HardwarePriceID() on empty catalog = %q, want empty", got)
	}
}

func TestCatalogResolve(t *testing.T) {
	c := testCatalog()

	tests := []struct {
		priceID string
		country string
		tier    Tier
	}{
		{"price_hard_us", "US", TierHosted},
		{"price_basic_daily_fi", "FI", TierBasic},
		{"price_basic_fi", "FI", TierBasic},
		{"price_world_uk", "UK", TierHosted},
		{"price_sentinel_fi", "FI", TierHosted},
		{"price_hosted_us", "US", TierHosted},
	}
	for _, tt := range tests {
		got := c.Resolve(tt.priceID)
		if got.Country != tt.country || got.Tier != tt.tier {
			t.Fatalf("Resolve(%q) = %+v, want {%s %s}", tt.priceID, got, tt.country, tt.tier)
		}
	}
}

func TestCatalogResolveUnconfigured(t *testing.T) {
	c := testCatalog()

	// Legacy price IDs that were never configured still resolve; tier 2 with
	// no country attribution is the documented default.
	got := c.Resolve("price_legacy_unknown")
	if got.Country != "" || got.Tier != TierHosted {
		t.Fatalf("Resolve(unknown) = %+v, want {\"\" tier 2}", got)
	}
}

func TestCatalogFirstMatchWins(t *testing.T) {
	// The same price ID configured under a first-pass key and a second-pass
	// key keeps its first-pass classification.
	c := NewPriceCatalog(CatalogConfig{
		PriceIDs: map[string]string{
			"STRIPE_SUBSCRIPTION_BASIC_PRICE_ID_FI":    "price_shared",
			"STRIPE_SUBSCRIPTION_SENTINEL_PRICE_ID_US": "price_shared",
		},
	})
	got := c.Resolve("price_shared")
	if got.Country != "FI" || got.Tier != TierBasic {
		t.Fatalf("Resolve(shared) = %+v, want first-pass {FI tier 1}", got)
	}
}

func TestCatalogIsSentinelOrHosted(t *testing.T) {
	c := testCatalog()

	if !c.IsSentinelOrHosted("price_sentinel_fi") {
		t.Fatal("expected sentinel FI price to be sentinel-or-hosted")
	}
	if !c.IsSentinelOrHosted("price_hosted_us") {
		t.Fatal("expected hosted US price to be sentinel-or-hosted")
	}
	if c.IsSentinelOrHosted("price_world_uk") {
		t.Fatal("world plan must not count as sentinel-or-hosted")
	}
	if c.IsSentinelOrHosted("price_self_hosting") {
		t.Fatal("self-hosting must not count as sentinel-or-hosted")
	}
}

func TestCatalogCheckoutPriceID(t *testing.T) {
	c := testCatalog()

	tests := []struct {
		country string
		want    string
	}{
		{"US", "price_hosted_us"},
		{"CA", "price_hosted_us"},
		{"FI", "price_sentinel_fi"},
		{"UK", "price_sentinel_uk"},
		{"AU", "price_sentinel_au"},
		{"NL", "price_sentinel_nl"},
		{"DE", "price_sentinel_other"},
		{"", "price_sentinel_other"},
	}
	for _, tt := range tests {
		if got := c.CheckoutPriceID(tt.country); got != tt.want {
			t.Fatalf("CheckoutPriceID(%q) = %q, want %q", tt.country, got, tt.want)
		}
	}
}

func TestCatalogBasePriceID(t *testing.T) {
	c := testCatalog()

	items := []SubscriptionItem{
		{Price: &Price{ID: "price_topup"}},
		{Price: &Price{ID: "price_sentinel_us"}},
	}
	if got := c.BasePriceID(items); got != "price_sentinel_us" {
		t.Fatalf("BasePriceID = %q, want the non-topup price", got)
	}

	onlyTopup := []SubscriptionItem{{Price: &Price{ID: "price_topup"}}}
	if got := c.BasePriceID(onlyTopup); got != "" {
		t.Fatalf("BasePriceID(topup only) = %q, want empty", got)
	}

	if got := c.BasePriceID(nil); got != "" {
		t.Fatalf("BasePriceID(nil) = %q, want empty", got)
	}
}

func TestCatalogDigitalDetox(t *testing.T) {
	c := testCatalog()

	if !c.IsDigitalDetoxFee("price_detox_us") || !c.IsDigitalDetoxFee("price_detox_other") {
		t.Fatal("expected both detox fee IDs to be recognized")
	}
	if c.IsDigitalDetoxFee("") || c.IsDigitalDetoxFee("price_sentinel_us") {
		t.Fatal("non-detox price recognized as detox fee")
	}

	items := []SubscriptionItem{
		{Price: &Price{ID: "price_sentinel_us"}},
		{Price: &Price{ID: "price_detox_us"}},
	}
	if !c.HasDigitalDetoxFee(items) {
		t.Fatal("expected detox fee to be found among line items")
	}
	if c.HasDigitalDetoxFee(items[:1]) {
		t.Fatal("detox fee reported for items without one")
	}
}
