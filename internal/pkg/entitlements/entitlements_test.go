package entitlements

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lightline-app/lightline/internal/pkg/billing"
)

func TestAllowedFeaturesByTier(t *testing.T) {
	tests := []struct {
		name    string
		tier    billing.Tier
		want    []string
		wantNot []string
	}{
		{
			name:    "no subscription only gets messaging",
			tier:    "",
			want:    []string{FeatureMessaging},
			wantNot: []string{FeatureVoiceCalls, FeatureDigests, FeatureMonitoring, FeatureAutoTopup, FeaturePrioritySend},
		},
		{
			name:    "basic adds auto top-up",
			tier:    billing.TierBasic,
			want:    []string{FeatureMessaging, FeatureAutoTopup},
			wantNot: []string{FeatureVoiceCalls, FeatureDigests, FeatureMonitoring},
		},
		{
			name:    "intermediate adds calls and digests",
			tier:    billing.TierIntermediate,
			want:    []string{FeatureMessaging, FeatureVoiceCalls, FeatureDigests, FeatureAutoTopup},
			wantNot: []string{FeatureMonitoring, FeaturePrioritySend},
		},
		{
			name: "hosted unlocks everything",
			tier: billing.TierHosted,
			want: []string{FeatureMessaging, FeatureVoiceCalls, FeatureDigests, FeatureMonitoring, FeatureAutoTopup, FeaturePrioritySend},
		},
		{
			name: "self-hosted matches hosted",
			tier: billing.TierSelfHosted,
			want: []string{FeatureMessaging, FeatureVoiceCalls, FeatureDigests, FeatureMonitoring, FeatureAutoTopup, FeaturePrioritySend},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			features := AllowedFeatures(tt.tier)
			for _, f := range tt.want {
				assert.True(t, features[f], "expected %q", f)
			}
			for _, f := range tt.wantNot {
				assert.False(t, features[f], "did not expect %q", f)
			}
		})
	}
}

func TestHasFeature(t *testing.T) {
	assert.True(t, HasFeature(billing.TierHosted, FeatureDigests))
	assert.False(t, HasFeature(billing.TierBasic, FeatureDigests))
	assert.False(t, HasFeature("", FeatureVoiceCalls))
	assert.False(t, HasFeature(billing.TierHosted, "unknown_feature"))
}
