package models

import (
	"time"

	"gorm.io/gorm"
)

// BillingProfile stores a user's payment provider linkage and the
// subscription state derived by webhook reconciliation. SubscriptionTier is
// NULL exactly when the user has no active subscription; Credits survive
// subscription deletion and are only overwritten by a later lifecycle
// event.
type BillingProfile struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	UserID uint `gorm:"uniqueIndex" json:"user_id"`

	StripeCustomerID        string `gorm:"type:varchar(191);index;default:''" json:"-"`
	StripePaymentMethodID   string `gorm:"type:varchar(191);default:''" json:"-"`
	StripeCheckoutSessionID string `gorm:"type:varchar(191);default:''" json:"-"`

	SubscriptionTier *string `gorm:"type:varchar(16);default:null" json:"subscription_tier"`

	// Credits is the remaining monthly message allowance plus purchased
	// top-up balance.
	Credits float64 `gorm:"type:float;default:0" json:"credits"`

	// NextBillingDate is the epoch-second end of the current billing
	// period, zero when unknown.
	NextBillingDate int64 `gorm:"default:0" json:"next_billing_date"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// GetOrCreateBillingProfile returns the existing profile or creates an
// empty one.
func GetOrCreateBillingProfile(db *gorm.DB, userID uint) (*BillingProfile, error) {
	var bp BillingProfile
	if err := db.Where("user_id = ?", userID).First(&bp).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			bp = BillingProfile{UserID: userID}
			if err := db.Create(&bp).Error; err != nil {
				return nil, err
			}
			return &bp, nil
		}
		return nil, err
	}
	return &bp, nil
}
