package models

import (
	"time"

	"gorm.io/gorm"
)

// ProviderAccount links a user to an external OAuth identity (Google login,
// calendar/email access). Tokens are stored for the connection flows that
// need offline access.
type ProviderAccount struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	UserID         uint       `gorm:"not null;index:ux_provider_accounts,unique,priority:1" json:"user_id"`
	Provider       string     `gorm:"type:varchar(32);not null;index:ux_provider_accounts,unique,priority:2" json:"provider"`
	ProviderUserID string     `gorm:"type:varchar(191);not null;index" json:"provider_user_id"`
	AccessToken    string     `gorm:"type:text" json:"-"`
	RefreshToken   string     `gorm:"type:text" json:"-"`
	ExpiresAt      *time.Time `gorm:"type:timestamp;default:null" json:"-"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
