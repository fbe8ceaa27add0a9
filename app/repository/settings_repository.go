package repository

import (
	"github.com/lightline-app/lightline/app/models"
	"gorm.io/gorm"
)

// settingsRepository implements the SettingsRepository interface
type settingsRepository struct {
	db *gorm.DB
}

// NewSettingsRepository creates a new settings repository instance
func NewSettingsRepository(db *gorm.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

// Get retrieves a user's settings, creating defaults on first use
func (r *settingsRepository) Get(userID uint) (*models.UserSettings, error) {
	return models.GetOrCreateUserSettings(r.db, userID)
}

// Update saves a full settings record
func (r *settingsRepository) Update(settings *models.UserSettings) error {
	return r.db.Save(settings).Error
}

func (r *settingsRepository) update(userID uint, updates map[string]interface{}) error {
	if _, err := models.GetOrCreateUserSettings(r.db, userID); err != nil {
		return err
	}
	return r.db.Model(&models.UserSettings{}).Where("user_id = ?", userID).Updates(updates).Error
}

// SetSubCountry stores the subscription country; nil clears it
func (r *settingsRepository) SetSubCountry(userID uint, country *string) error {
	return r.update(userID, map[string]interface{}{"sub_country": country})
}

// SetDigests stores the three digest slots; nil disables a slot
func (r *settingsRepository) SetDigests(userID uint, morning, day, evening *string) error {
	return r.update(userID, map[string]interface{}{
		"morning_digest": morning,
		"day_digest":     day,
		"evening_digest": evening,
	})
}

// SetTimezone stores the user's IANA timezone name
func (r *settingsRepository) SetTimezone(userID uint, timezone string) error {
	return r.update(userID, map[string]interface{}{"timezone": timezone})
}

// SetNotifyEnabled toggles proactive notifications
func (r *settingsRepository) SetNotifyEnabled(userID uint, enabled bool) error {
	return r.update(userID, map[string]interface{}{"notify_enabled": enabled})
}

// SetAutoTopup configures automatic credit purchases when the balance runs
// low; amount is ignored when active is false
func (r *settingsRepository) SetAutoTopup(userID uint, active bool, amount *float64) error {
	updates := map[string]interface{}{"auto_topup_active": active}
	if active {
		updates["auto_topup_amount"] = amount
	}
	return r.update(userID, updates)
}

// ActiveDigestCount returns how many digest slots are configured (0-3)
func (r *settingsRepository) ActiveDigestCount(userID uint) (int, error) {
	settings, err := models.GetOrCreateUserSettings(r.db, userID)
	if err != nil {
		return 0, err
	}
	return settings.ActiveDigestCount(), nil
}
