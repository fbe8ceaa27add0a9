package statistics

import (
	"log"
	"strconv"
	"time"

	"github.com/lightline-app/lightline/app/models"
	"github.com/lightline-app/lightline/internal/pkg/cache"
	"github.com/lightline-app/lightline/internal/pkg/database"
)

const (
	cacheKeyUserCount       = "stats:user_count"
	cacheKeySubscriberCount = "stats:subscriber_count"
	cacheKeyMessageCount    = "stats:message_count"

	cacheTTL = 15 * time.Minute
)

// Totals carries the aggregate counts shown on the landing and admin pages.
type Totals struct {
	Users       int64
	Subscribers int64
	Messages    int64
}

// UpdateStatisticsCache recomputes the aggregate counts and stores them in
// Redis. Called in the background after registrations and subscription
// changes.
func UpdateStatisticsCache() {
	db := database.GetDB()
	if db == nil {
		return
	}

	var users, subscribers, messages int64
	if err := db.Model(&models.User{}).Count(&users).Error; err != nil {
		log.Printf("statistics: failed to count users: %v", err)
		return
	}
	if err := db.Model(&models.BillingProfile{}).Where("subscription_tier IS NOT NULL").Count(&subscribers).Error; err != nil {
		log.Printf("statistics: failed to count subscribers: %v", err)
		return
	}
	if err := db.Model(&models.UsageLog{}).Count(&messages).Error; err != nil {
		log.Printf("statistics: failed to count usage entries: %v", err)
		return
	}

	_ = cache.Set(cacheKeyUserCount, users, cacheTTL)
	_ = cache.Set(cacheKeySubscriberCount, subscribers, cacheTTL)
	_ = cache.Set(cacheKeyMessageCount, messages, cacheTTL)
}

// GetTotals returns the cached aggregate counts, recomputing on a cache
// miss.
func GetTotals() Totals {
	users, err := cache.GetInt(cacheKeyUserCount)
	if err != nil {
		UpdateStatisticsCache()
		users, _ = cache.GetInt(cacheKeyUserCount)
	}
	subscribers, _ := cache.GetInt(cacheKeySubscriberCount)
	messages, _ := cache.GetInt(cacheKeyMessageCount)

	return Totals{
		Users:       int64(users),
		Subscribers: int64(subscribers),
		Messages:    int64(messages),
	}
}

// FormatCount renders a count for display, e.g. 12400 -> "12.4k".
func FormatCount(n int64) string {
	if n >= 1000 {
		return strconv.FormatFloat(float64(n)/1000.0, 'f', 1, 64) + "k"
	}
	return strconv.FormatInt(n, 10)
}
