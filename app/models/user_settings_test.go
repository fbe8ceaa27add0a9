package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActiveDigestCount(t *testing.T) {
	morning := "07:30"
	evening := "21:00"

	tests := []struct {
		name     string
		settings UserSettings
		want     int
	}{
		{"no slots", UserSettings{}, 0},
		{"one slot", UserSettings{MorningDigest: &morning}, 1},
		{"two slots", UserSettings{MorningDigest: &morning, EveningDigest: &evening}, 2},
		{"all slots", UserSettings{MorningDigest: &morning, DayDigest: &morning, EveningDigest: &evening}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.settings.ActiveDigestCount())
		})
	}
}

func TestIsKnownConnectionService(t *testing.T) {
	assert.True(t, IsKnownConnectionService(ConnectionWhatsApp))
	assert.True(t, IsKnownConnectionService(ConnectionCalendar))
	assert.False(t, IsKnownConnectionService("carrier-pigeon"))
	assert.False(t, IsKnownConnectionService(""))
}
