package repository

import (
	"time"

	"github.com/lightline-app/lightline/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByActivationToken(token string) (*models.User, error)
	GetByPhoneNumber(phone string) (*models.User, error)
	Update(user *models.User) error
	UpdatePhoneNumber(userID uint, phone, country string) error
	Delete(id uint) error
	List(offset, limit int) ([]models.User, error)
	Count() (int64, error)
	Search(query string) ([]models.User, error)
}

// BillingRepository defines the interface for billing profile operations.
// Customer/payment identifiers and the credit balance live here; the tier
// reconciliation writes go through the billing package's own store.
type BillingRepository interface {
	GetProfile(userID uint) (*models.BillingProfile, error)
	GetOrCreateProfile(userID uint) (*models.BillingProfile, error)
	GetByCustomerID(customerID string) (*models.BillingProfile, error)
	SetCustomerID(userID uint, customerID string) error
	SetPaymentMethodID(userID uint, paymentMethodID string) error
	SetCheckoutSessionID(userID uint, sessionID string) error
	SetTier(userID uint, tier *string) error
	SetCredits(userID uint, credits float64) error
	IncreaseCredits(userID uint, amount float64) error
	DecreaseCredits(userID uint, amount float64) error
	SetNextBillingDate(userID uint, epoch int64) error
	HasActiveTier(userID uint) (bool, error)
}

// SettingsRepository defines the interface for user preference operations
type SettingsRepository interface {
	Get(userID uint) (*models.UserSettings, error)
	Update(settings *models.UserSettings) error
	SetSubCountry(userID uint, country *string) error
	SetDigests(userID uint, morning, day, evening *string) error
	SetTimezone(userID uint, timezone string) error
	SetNotifyEnabled(userID uint, enabled bool) error
	SetAutoTopup(userID uint, active bool, amount *float64) error
	ActiveDigestCount(userID uint) (int, error)
}

// ConnectionRepository defines the interface for messaging service
// connections (WhatsApp, Telegram, email, calendar...)
type ConnectionRepository interface {
	Upsert(conn *models.MessagingConnection) error
	GetByUserAndService(userID uint, service string) (*models.MessagingConnection, error)
	ListByUser(userID uint) ([]models.MessagingConnection, error)
	Delete(userID uint, service string) error
}

// UsageRepository defines the interface for usage log operations
type UsageRepository interface {
	Log(entry *models.UsageLog) error
	ListByUser(userID uint, offset, limit int) ([]models.UsageLog, error)
	SeriesByUser(userID uint, from, to time.Time) ([]models.UsageDataPoint, error)
	TotalCreditsUsed(userID uint, from, to time.Time) (float64, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	User       UserRepository
	Billing    BillingRepository
	Settings   SettingsRepository
	Connection ConnectionRepository
	Usage      UsageRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:       NewUserRepository(db),
		Billing:    NewBillingRepository(db),
		Settings:   NewSettingsRepository(db),
		Connection: NewConnectionRepository(db),
		Usage:      NewUsageRepository(db),
	}
}
