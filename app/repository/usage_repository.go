package repository

import (
	"time"

	"github.com/lightline-app/lightline/app/models"
	"gorm.io/gorm"
)

// usageRepository implements the UsageRepository interface
type usageRepository struct {
	db *gorm.DB
}

// NewUsageRepository creates a new usage repository instance
func NewUsageRepository(db *gorm.DB) UsageRepository {
	return &usageRepository{db: db}
}

// Log records a billable activity
func (r *usageRepository) Log(entry *models.UsageLog) error {
	return r.db.Create(entry).Error
}

// ListByUser retrieves a user's usage entries, newest first
func (r *usageRepository) ListByUser(userID uint, offset, limit int) ([]models.UsageLog, error) {
	var entries []models.UsageLog
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&entries).Error
	return entries, err
}

// SeriesByUser returns per-entry (timestamp, credits) points within a time
// range, oldest first, for the usage graph
func (r *usageRepository) SeriesByUser(userID uint, from, to time.Time) ([]models.UsageDataPoint, error) {
	var entries []models.UsageLog
	err := r.db.Where("user_id = ? AND created_at BETWEEN ? AND ?", userID, from, to).
		Order("created_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}

	points := make([]models.UsageDataPoint, len(entries))
	for i, e := range entries {
		points[i] = models.UsageDataPoint{
			Timestamp: e.CreatedAt.Unix(),
			Credits:   e.Credits,
		}
	}
	return points, nil
}

// TotalCreditsUsed sums credits spent within a time range
func (r *usageRepository) TotalCreditsUsed(userID uint, from, to time.Time) (float64, error) {
	var total float64
	err := r.db.Model(&models.UsageLog{}).
		Where("user_id = ? AND success = ? AND created_at BETWEEN ? AND ?", userID, true, from, to).
		Select("COALESCE(SUM(credits), 0)").
		Row().Scan(&total)
	return total, err
}
