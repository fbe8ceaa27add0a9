package models

import (
	"time"

	"gorm.io/gorm"
)

// UserSettings stores per-user preferences: digest schedule slots, the
// subscription country resolved from billing, notification and auto top-up
// settings.
type UserSettings struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	UserID uint `gorm:"uniqueIndex" json:"user_id"`

	// SubCountry is the country resolved from the active subscription's
	// price; NULL when no subscription is active or the price could not be
	// classified.
	SubCountry *string `gorm:"type:varchar(8);default:null" json:"sub_country"`

	// Digest slots hold a local time of day ("HH:MM") or NULL when the slot
	// is disabled. Each active slot draws down the monthly message
	// allowance.
	MorningDigest *string `gorm:"type:varchar(5);default:null" json:"morning_digest"`
	DayDigest     *string `gorm:"type:varchar(5);default:null" json:"day_digest"`
	EveningDigest *string `gorm:"type:varchar(5);default:null" json:"evening_digest"`

	Timezone      string `gorm:"type:varchar(64);default:''" json:"timezone"`
	NotifyEnabled bool   `gorm:"default:true" json:"notify_enabled"`

	AutoTopupActive bool     `gorm:"default:false" json:"auto_topup_active"`
	AutoTopupAmount *float64 `gorm:"type:float;default:null" json:"auto_topup_amount"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// GetOrCreateUserSettings returns existing settings or creates defaults
func GetOrCreateUserSettings(db *gorm.DB, userID uint) (*UserSettings, error) {
	var us UserSettings
	if err := db.Where("user_id = ?", userID).First(&us).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			us = UserSettings{UserID: userID, NotifyEnabled: true}
			if err := db.Create(&us).Error; err != nil {
				return nil, err
			}
			return &us, nil
		}
		return nil, err
	}
	return &us, nil
}

// ActiveDigestCount returns how many digest slots are configured (0-3).
func (us *UserSettings) ActiveDigestCount() int {
	count := 0
	for _, slot := range []*string{us.MorningDigest, us.DayDigest, us.EveningDigest} {
		if slot != nil {
			count++
		}
	}
	return count
}
