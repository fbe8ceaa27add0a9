package billing

import (
	"strings"

	"github.com/lightline-app/lightline/internal/pkg/env"
)

// catalogCountries is the fixed country resolution order used when building
// the catalog from configuration. The order matters: when the same price ID
// is configured under several keys the first one wins.
var catalogCountries = []string{"US", "FI", "NL", "UK", "AU", "OTHER"}

// PlanInfo is the semantic classification of a provider price ID.
// Country is empty when the price could not be attributed to a country.
type PlanInfo struct {
	Country string
	Tier    Tier
}

// PriceCatalog maps provider price IDs to internal plan semantics. It is
// built once at startup from configuration and is immutable afterwards, so
// resolution is a single map lookup and never depends on ambient process
// state. Price IDs that are not configured resolve to tier 2 with no
// country; legacy subscriptions reference price IDs that were never
// migrated into configuration and must not fail resolution.
type PriceCatalog struct {
	plans map[string]PlanInfo

	sentinelOrHosted  map[string]struct{}
	sentinelByCountry map[string]string

	sentinelUSID   string
	selfHostingID  string
	topupID        string
	digitalDetoxUS string
	digitalDetoxOther string

	hostedPlanUSID string
	creditsProductID string
	hardwareID       string
}

// catalogEntry pairs an environment key pattern with the tier it maps to.
// Entries are evaluated per country, in order, mirroring the historical
// priority of the sequential checks this table replaces.
type catalogEntry struct {
	envPattern string
	tier       Tier
}

var catalogEntries = [][]catalogEntry{
	{
		{"STRIPE_SUBSCRIPTION_HARD_MODE_PRICE_ID_%s", TierHosted},
		{"STRIPE_SUBSCRIPTION_BASIC_DAILY_PRICE_ID_%s", TierBasic},
		{"STRIPE_SUBSCRIPTION_BASIC_PRICE_ID_%s", TierBasic},
	},
	{
		{"STRIPE_SUBSCRIPTION_WORLD_PRICE_ID_%s", TierHosted},
		{"STRIPE_SUBSCRIPTION_ESCAPE_DAILY_PRICE_ID_%s", TierHosted},
		{"STRIPE_SUBSCRIPTION_MONITORING_PRICE_ID_%s", TierHosted},
		{"STRIPE_SUBSCRIPTION_SENTINEL_PRICE_ID_%s", TierHosted},
		{"STRIPE_SUBSCRIPTION_HOSTED_PLAN_PRICE_ID_%s", TierHosted},
	},
}

// CatalogConfig carries every configured price ID the catalog is built from.
// Keys follow the environment variable names; empty values are skipped.
type CatalogConfig struct {
	// PriceIDs maps full environment-style keys (for example
	// STRIPE_SUBSCRIPTION_SENTINEL_PRICE_ID_FI) to configured price IDs.
	PriceIDs map[string]string

	SelfHostingPriceID    string
	TopupPriceID          string
	DigitalDetoxFeeIDUS    string
	DigitalDetoxFeeIDOther string
	CreditsProductID      string
	HardwarePriceID       string
}

// NewPriceCatalog builds the immutable catalog from an explicit config value.
func NewPriceCatalog(cfg CatalogConfig) *PriceCatalog {
	c := &PriceCatalog{
		plans:             make(map[string]PlanInfo),
		sentinelOrHosted:  make(map[string]struct{}),
		sentinelByCountry: make(map[string]string),
		selfHostingID:     strings.TrimSpace(cfg.SelfHostingPriceID),
		topupID:           strings.TrimSpace(cfg.TopupPriceID),
		digitalDetoxUS:    strings.TrimSpace(cfg.DigitalDetoxFeeIDUS),
		digitalDetoxOther: strings.TrimSpace(cfg.DigitalDetoxFeeIDOther),
		creditsProductID:  strings.TrimSpace(cfg.CreditsProductID),
		hardwareID:        strings.TrimSpace(cfg.HardwarePriceID),
	}

	lookup := func(pattern, country string) string {
		key := strings.Replace(pattern, "%s", country, 1)
		return strings.TrimSpace(cfg.PriceIDs[key])
	}

	for _, pass := range catalogEntries {
		for _, country := range catalogCountries {
			for _, entry := range pass {
				priceID := lookup(entry.envPattern, country)
				if priceID == "" {
					continue
				}
				// First configured match wins; later passes never override.
				if _, exists := c.plans[priceID]; !exists {
					c.plans[priceID] = PlanInfo{Country: country, Tier: entry.tier}
				}
			}
		}
	}

	for _, country := range catalogCountries {
		for _, pattern := range []string{
			"STRIPE_SUBSCRIPTION_SENTINEL_PRICE_ID_%s",
			"STRIPE_SUBSCRIPTION_HOSTED_PLAN_PRICE_ID_%s",
		} {
			if priceID := lookup(pattern, country); priceID != "" {
				c.sentinelOrHosted[priceID] = struct{}{}
			}
		}
		if priceID := lookup("STRIPE_SUBSCRIPTION_SENTINEL_PRICE_ID_%s", country); priceID != "" {
			c.sentinelByCountry[country] = priceID
		}
	}

	c.sentinelUSID = lookup("STRIPE_SUBSCRIPTION_SENTINEL_PRICE_ID_%s", "US")
	c.hostedPlanUSID = lookup("STRIPE_SUBSCRIPTION_HOSTED_PLAN_PRICE_ID_%s", "US")

	return c
}

// CatalogConfigFromEnv snapshots all catalog-relevant environment variables.
// Called once at startup so the resolver never reads the environment again.
func CatalogConfigFromEnv() CatalogConfig {
	cfg := CatalogConfig{
		PriceIDs:               make(map[string]string),
		SelfHostingPriceID:     env.GetEnv("STRIPE_SUBSCRIPTION_SELF_HOSTING_PRICE_ID", ""),
		TopupPriceID:           env.GetEnv("STRIPE_TOPUP_PRICE_ID", ""),
		DigitalDetoxFeeIDUS:    env.GetEnv("STRIPE_DIGITALDETOX_ONETIME_FEE_ID_US", ""),
		DigitalDetoxFeeIDOther: env.GetEnv("STRIPE_DIGITALDETOX_ONETIME_FEE_ID_OTHER", ""),
		CreditsProductID:       env.GetEnv("STRIPE_CREDITS_PRODUCT_ID", ""),
		HardwarePriceID:        env.GetEnv("STRIPE_HARDWARE_PRICE_ID", ""),
	}
	for _, pass := range catalogEntries {
		for _, country := range catalogCountries {
			for _, entry := range pass {
				key := strings.Replace(entry.envPattern, "%s", country, 1)
				if v := env.GetEnv(key, ""); v != "" {
					cfg.PriceIDs[key] = v
				}
			}
		}
	}
	return cfg
}

// NewPriceCatalogFromEnv is the startup-path constructor.
func NewPriceCatalogFromEnv() *PriceCatalog {
	return NewPriceCatalog(CatalogConfigFromEnv())
}

// Resolve classifies a price ID. Unconfigured price IDs resolve to
// PlanInfo{Country: "", Tier: TierHosted}: defaulting unknowns to the
// hosted tier is intentional policy, not an error path.
func (c *PriceCatalog) Resolve(priceID string) PlanInfo {
	if info, ok := c.plans[strings.TrimSpace(priceID)]; ok {
		return info
	}
	return PlanInfo{Tier: TierHosted}
}

// IsSentinelOrHosted reports whether the price ID belongs to any
// country-parameterized sentinel or hosted-plan price.
func (c *PriceCatalog) IsSentinelOrHosted(priceID string) bool {
	_, ok := c.sentinelOrHosted[strings.TrimSpace(priceID)]
	return ok
}

// SentinelUSPriceID returns the configured US sentinel price ID ("" if unset).
func (c *PriceCatalog) SentinelUSPriceID() string { return c.sentinelUSID }

// SelfHostingPriceID returns the configured self-hosting price ID.
func (c *PriceCatalog) SelfHostingPriceID() string { return c.selfHostingID }

// TopupPriceID returns the metered top-up price ID skipped during base-price
// selection.
func (c *PriceCatalog) TopupPriceID() string { return c.topupID }

// CreditsProductID returns the one-time credit purchase product.
func (c *PriceCatalog) CreditsProductID() string { return c.creditsProductID }

// HardwarePriceID returns the optional device add-on price ("" if unset).
func (c *PriceCatalog) HardwarePriceID() string { return c.hardwareID }

// CheckoutPriceID selects the price used when creating a hosted-plan
// checkout session for a user in the given phone-number country. US and CA
// use the dedicated US hosted plan; other supported countries use their
// regional sentinel price; everything else falls back to the OTHER price.
func (c *PriceCatalog) CheckoutPriceID(country string) string {
	switch country {
	case "US", "CA":
		if c.hostedPlanUSID != "" {
			return c.hostedPlanUSID
		}
		return c.sentinelByCountry["US"]
	case "FI", "UK", "AU", "NL":
		if id := c.sentinelByCountry[country]; id != "" {
			return id
		}
	}
	return c.sentinelByCountry["OTHER"]
}

// IsDigitalDetoxFee reports whether the price ID is one of the digital detox
// one-time fee prices.
func (c *PriceCatalog) IsDigitalDetoxFee(priceID string) bool {
	id := strings.TrimSpace(priceID)
	if id == "" {
		return false
	}
	return (c.digitalDetoxUS != "" && id == c.digitalDetoxUS) ||
		(c.digitalDetoxOther != "" && id == c.digitalDetoxOther)
}

// HasDigitalDetoxFee reports whether any line item carries a digital detox
// one-time fee.
func (c *PriceCatalog) HasDigitalDetoxFee(items []SubscriptionItem) bool {
	for _, item := range items {
		if item.Price != nil && c.IsDigitalDetoxFee(item.Price.ID) {
			return true
		}
	}
	return false
}

// BasePriceID picks the subscription's classifying price: the first line
// item whose price is not the metered top-up price. Returns "" when no such
// item exists.
func (c *PriceCatalog) BasePriceID(items []SubscriptionItem) string {
	for _, item := range items {
		if item.Price == nil {
			continue
		}
		if c.topupID != "" && item.Price.ID == c.topupID {
			continue
		}
		return item.Price.ID
	}
	return ""
}
