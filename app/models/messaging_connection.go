package models

import (
	"time"

	"gorm.io/gorm"
)

// Supported messaging connection services.
const (
	ConnectionWhatsApp  = "whatsapp"
	ConnectionTelegram  = "telegram"
	ConnectionSignal    = "signal"
	ConnectionMessenger = "messenger"
	ConnectionEmail     = "email"
	ConnectionCalendar  = "calendar"
	ConnectionTasks     = "tasks"
)

const (
	ConnectionStatusConnected    = "connected"
	ConnectionStatusPending      = "pending"
	ConnectionStatusDisconnected = "disconnected"
)

// MessagingConnection links a user to one of the external messaging or
// calendar services the assistant bridges to.
type MessagingConnection struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	UserID    uint           `gorm:"not null;index:ux_connections_user_service,unique,priority:1" json:"user_id"`
	Service   string         `gorm:"type:varchar(32);not null;index:ux_connections_user_service,unique,priority:2" json:"service"`
	Status    string         `gorm:"type:varchar(16);not null;default:'pending'" json:"status"`
	Handle    string         `gorm:"type:varchar(200);default:''" json:"handle"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// IsKnownConnectionService reports whether the service name is supported.
func IsKnownConnectionService(service string) bool {
	switch service {
	case ConnectionWhatsApp, ConnectionTelegram, ConnectionSignal,
		ConnectionMessenger, ConnectionEmail, ConnectionCalendar, ConnectionTasks:
		return true
	default:
		return false
	}
}
