package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lightline-app/lightline/app/models"
	"gorm.io/gorm"
)

// billingRepository implements the BillingRepository interface
type billingRepository struct {
	db *gorm.DB
}

// NewBillingRepository creates a new billing repository instance
func NewBillingRepository(db *gorm.DB) BillingRepository {
	return &billingRepository{db: db}
}

// GetProfile retrieves a user's billing profile
func (r *billingRepository) GetProfile(userID uint) (*models.BillingProfile, error) {
	var bp models.BillingProfile
	if err := r.db.Where("user_id = ?", userID).First(&bp).Error; err != nil {
		return nil, err
	}
	return &bp, nil
}

// GetOrCreateProfile retrieves a user's billing profile, creating an empty
// one on first use
func (r *billingRepository) GetOrCreateProfile(userID uint) (*models.BillingProfile, error) {
	return models.GetOrCreateBillingProfile(r.db, userID)
}

// GetByCustomerID resolves a provider customer ID to the local profile, or
// (nil, nil) when no profile references it
func (r *billingRepository) GetByCustomerID(customerID string) (*models.BillingProfile, error) {
	trimmed := strings.TrimSpace(customerID)
	if trimmed == "" {
		return nil, nil
	}
	var bp models.BillingProfile
	err := r.db.Where("stripe_customer_id = ?", trimmed).First(&bp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &bp, nil
}

func (r *billingRepository) updateProfile(userID uint, updates map[string]interface{}) error {
	result := r.db.Model(&models.BillingProfile{}).Where("user_id = ?", userID).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("no billing profile for user %d", userID)
	}
	return nil
}

// SetCustomerID stores the provider customer reference
func (r *billingRepository) SetCustomerID(userID uint, customerID string) error {
	return r.updateProfile(userID, map[string]interface{}{"stripe_customer_id": strings.TrimSpace(customerID)})
}

// SetPaymentMethodID stores the default payment method captured at checkout
func (r *billingRepository) SetPaymentMethodID(userID uint, paymentMethodID string) error {
	return r.updateProfile(userID, map[string]interface{}{"stripe_payment_method_id": strings.TrimSpace(paymentMethodID)})
}

// SetCheckoutSessionID remembers the most recent checkout session so the
// completion webhook can be correlated
func (r *billingRepository) SetCheckoutSessionID(userID uint, sessionID string) error {
	return r.updateProfile(userID, map[string]interface{}{"stripe_checkout_session_id": strings.TrimSpace(sessionID)})
}

// SetTier overwrites the subscription tier; nil clears it
func (r *billingRepository) SetTier(userID uint, tier *string) error {
	return r.updateProfile(userID, map[string]interface{}{"subscription_tier": tier})
}

// SetCredits overwrites the credit balance
func (r *billingRepository) SetCredits(userID uint, credits float64) error {
	return r.updateProfile(userID, map[string]interface{}{"credits": credits})
}

// IncreaseCredits atomically adds to the credit balance
func (r *billingRepository) IncreaseCredits(userID uint, amount float64) error {
	return r.updateProfile(userID, map[string]interface{}{"credits": gorm.Expr("credits + ?", amount)})
}

// DecreaseCredits atomically subtracts from the credit balance, clamping at
// zero
func (r *billingRepository) DecreaseCredits(userID uint, amount float64) error {
	return r.updateProfile(userID, map[string]interface{}{"credits": gorm.Expr("GREATEST(credits - ?, 0)", amount)})
}

// SetNextBillingDate stores the epoch-second end of the billing period
func (r *billingRepository) SetNextBillingDate(userID uint, epoch int64) error {
	return r.updateProfile(userID, map[string]interface{}{"next_billing_date": epoch})
}

// HasActiveTier reports whether the user currently holds any subscription
// tier
func (r *billingRepository) HasActiveTier(userID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.BillingProfile{}).
		Where("user_id = ? AND subscription_tier IS NOT NULL", userID).
		Count(&count).Error
	return count > 0, err
}
