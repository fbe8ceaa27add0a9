package models

import "time"

// Usage activity types recorded against the credit balance.
const (
	UsageActivityMessage = "message"
	UsageActivityDigest  = "digest"
	UsageActivityCall    = "call"
)

// UsageLog records a single credit-consuming activity.
type UsageLog struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"not null;index:idx_usage_logs_user_created,priority:1" json:"user_id"`
	ActivityType string    `gorm:"type:varchar(32);not null" json:"activity_type"`
	Credits      float64   `gorm:"type:float;default:0" json:"credits"`
	Success      bool      `gorm:"default:true" json:"success"`
	Reason       string    `gorm:"type:varchar(200);default:''" json:"reason"`
	CreatedAt    time.Time `gorm:"autoCreateTime;index:idx_usage_logs_user_created,priority:2" json:"created_at"`
}

// UsageDataPoint is the aggregated shape returned by the usage endpoint.
type UsageDataPoint struct {
	Timestamp int64   `json:"timestamp"`
	Credits   float64 `json:"credits"`
}
