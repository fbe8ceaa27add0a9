package billing

import (
	"strings"
	"time"

	"github.com/lightline-app/lightline/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides the DB operations used by the webhook flow: account
// lookup and reconciliation writes for the Reconciler, plus idempotent
// webhook event persistence.
type Repository interface {
	AccountStore

	CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error)
	MarkWebhookProcessed(id uint, processingError string) error

	SetPaymentMethodID(userID uint, paymentMethodID string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) FindAccountByCustomerID(customerID string) (*Account, error) {
	// Payment-mode checkout sessions can arrive without a customer. A blank
	// ID must not match profiles still holding the empty column default.
	if strings.TrimSpace(customerID) == "" {
		return nil, nil
	}

	var profile models.BillingProfile
	err := r.db.Where("stripe_customer_id = ?", customerID).First(&profile).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}

	var user models.User
	if err := r.db.First(&user, profile.UserID).Error; err != nil {
		return nil, err
	}

	account := &Account{
		UserID:       user.ID,
		PhoneCountry: user.PhoneNumberCountry,
	}
	if profile.SubscriptionTier != nil {
		account.Tier = Tier(*profile.SubscriptionTier)
	}
	return account, nil
}

func (r *gormRepository) CountActiveDigests(userID uint) (int, error) {
	us, err := models.GetOrCreateUserSettings(r.db, userID)
	if err != nil {
		return 0, err
	}
	return us.ActiveDigestCount(), nil
}

// ApplyReconciliation writes a reconciliation result atomically. Tier and
// country are always written (nil clears); credits and billing date only
// when the result carries them.
func (r *gormRepository) ApplyReconciliation(userID uint, res ReconciliationResult) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		profileUpdates := map[string]interface{}{
			"subscription_tier": (*string)(res.Tier),
		}
		if res.Credits != nil {
			profileUpdates["credits"] = *res.Credits
		}
		if res.NextBillingDate != nil {
			profileUpdates["next_billing_date"] = *res.NextBillingDate
		}
		if err := tx.Model(&models.BillingProfile{}).
			Where("user_id = ?", userID).
			Updates(profileUpdates).Error; err != nil {
			return err
		}

		return tx.Model(&models.UserSettings{}).
			Where("user_id = ?", userID).
			Update("sub_country", res.Country).Error
	})
}

func (r *gormRepository) AddCredits(userID uint, amount float64) error {
	return r.db.Model(&models.BillingProfile{}).
		Where("user_id = ?", userID).
		Update("credits", gorm.Expr("credits + ?", amount)).Error
}

func (r *gormRepository) SetPaymentMethodID(userID uint, paymentMethodID string) error {
	return r.db.Model(&models.BillingProfile{}).
		Where("user_id = ?", userID).
		Update("stripe_payment_method_id", paymentMethodID).Error
}

func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "stripe_event_id"}},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.BillingWebhookEvent
	if err := r.db.Where("stripe_event_id = ?", event.StripeEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.Model(&models.BillingWebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}
