package entitlements

import "github.com/lightline-app/lightline/internal/pkg/billing"

// Feature names gated by subscription tier.
const (
	FeatureMessaging    = "messaging"
	FeatureVoiceCalls   = "voice_calls"
	FeatureDigests      = "digests"
	FeatureMonitoring   = "monitoring"
	FeatureAutoTopup    = "auto_topup"
	FeaturePrioritySend = "priority_send"
)

// AllowedFeatures returns which features a tier unlocks. Tier "" means no
// active subscription: messaging still works against purchased credits, the
// proactive features do not.
func AllowedFeatures(tier billing.Tier) map[string]bool {
	base := map[string]bool{
		FeatureMessaging: true,
	}
	switch tier {
	case billing.TierHosted, billing.TierSelfHosted:
		base[FeatureVoiceCalls] = true
		base[FeatureDigests] = true
		base[FeatureMonitoring] = true
		base[FeatureAutoTopup] = true
		base[FeaturePrioritySend] = true
	case billing.TierIntermediate:
		base[FeatureVoiceCalls] = true
		base[FeatureDigests] = true
		base[FeatureAutoTopup] = true
	case billing.TierBasic:
		base[FeatureAutoTopup] = true
	}
	return base
}

// HasFeature reports whether the given tier unlocks a feature.
func HasFeature(tier billing.Tier, feature string) bool {
	return AllowedFeatures(tier)[feature]
}
