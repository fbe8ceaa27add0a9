package jobqueue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/lightline-app/lightline/app/models"
	"github.com/lightline-app/lightline/internal/pkg/cache"
	"github.com/lightline-app/lightline/internal/pkg/database"
	metrics "github.com/lightline-app/lightline/internal/pkg/metrics/counter"
	"github.com/lightline-app/lightline/internal/pkg/statistics"
)

// Manager manages the global job queue and background tasks
type Manager struct {
	queue              *Queue
	digestTicker       *time.Ticker
	topupTicker        *time.Ticker
	counterFlushTicker *time.Ticker
	statsTicker        *time.Ticker
	stopCh             chan struct{}
	wg                 sync.WaitGroup
	mu                 sync.Mutex
	running            bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the global job queue manager (singleton)
func GetManager() *Manager {
	managerOnce.Do(func() {
		globalManager = &Manager{
			queue:  NewQueue(5),
			stopCh: make(chan struct{}),
		}
	})
	return globalManager
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// Start starts the job queue and background tasks
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue and background tasks")

	m.queue.Start()

	// Digest scheduling runs on minute boundaries against each user's local time
	m.digestTicker = time.NewTicker(time.Minute)
	m.wg.Add(1)
	go m.digestScheduleWorker()

	// Auto top-up sweep
	m.topupTicker = time.NewTicker(10 * time.Minute)
	m.wg.Add(1)
	go m.topupSweepWorker()

	// Counter flush worker (Redis -> DB) every 5 seconds
	m.counterFlushTicker = time.NewTicker(5 * time.Second)
	m.wg.Add(1)
	go m.counterFlushWorker()

	// Homepage statistics cache refresh
	m.statsTicker = time.NewTicker(15 * time.Minute)
	m.wg.Add(1)
	go m.statsWorker()

	log.Info("[JobQueue Manager] Started successfully")
}

// Stop stops the job queue and background tasks
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue and background tasks...")

	for _, t := range []*time.Ticker{m.digestTicker, m.topupTicker, m.counterFlushTicker, m.statsTicker} {
		if t != nil {
			t.Stop()
		}
	}

	close(m.stopCh)
	m.running = false
	m.queue.Stop()
	m.wg.Wait()

	log.Info("[JobQueue Manager] Stopped")
}

// digestScheduleWorker enqueues digest delivery jobs for every user whose
// configured slot matches the current minute in their timezone.
func (m *Manager) digestScheduleWorker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			return
		case <-m.digestTicker.C:
			m.enqueueDueDigests(time.Now())
		}
	}
}

func (m *Manager) enqueueDueDigests(now time.Time) {
	db := database.GetDB()

	var settings []models.UserSettings
	if err := db.Where("morning_digest IS NOT NULL OR day_digest IS NOT NULL OR evening_digest IS NOT NULL").
		Find(&settings).Error; err != nil {
		log.Errorf("[JobQueue] Digest schedule query failed: %v", err)
		return
	}

	ctx := context.Background()
	for _, us := range settings {
		loc := time.UTC
		if us.Timezone != "" {
			if l, err := time.LoadLocation(us.Timezone); err == nil {
				loc = l
			}
		}
		local := now.In(loc)
		current := local.Format("15:04")

		slots := map[string]*string{
			"morning": us.MorningDigest,
			"day":     us.DayDigest,
			"evening": us.EveningDigest,
		}
		for slot, at := range slots {
			if at == nil || *at != current {
				continue
			}
			// One delivery per slot per local day, even across restarts
			dedupKey := fmt.Sprintf("digest:sent:%d:%s:%s", us.UserID, slot, local.Format("2006-01-02"))
			ok, err := cache.GetClient().SetNX(ctx, dedupKey, "1", 24*time.Hour).Result()
			if err != nil {
				log.Errorf("[JobQueue] Digest dedup check failed for user %d: %v", us.UserID, err)
				continue
			}
			if !ok {
				continue
			}
			payload := DigestDeliveryJobPayload{UserID: us.UserID, Slot: slot}
			if _, err := m.queue.EnqueueJob(JobTypeDigestDelivery, payload.ToMap()); err != nil {
				log.Errorf("[JobQueue] Failed to enqueue digest for user %d: %v", us.UserID, err)
			}
		}
	}
}

// topupSweepWorker enqueues auto top-up jobs for users with the feature
// enabled whose balance has dropped below the threshold.
func (m *Manager) topupSweepWorker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			return
		case <-m.topupTicker.C:
			m.enqueueDueTopups()
		}
	}
}

func (m *Manager) enqueueDueTopups() {
	db := database.GetDB()

	var userIDs []uint
	err := db.Model(&models.UserSettings{}).
		Joins("JOIN billing_profiles ON billing_profiles.user_id = user_settings.user_id").
		Where("user_settings.auto_topup_active = ? AND billing_profiles.credits < ?", true, autoTopupThreshold).
		Where("billing_profiles.stripe_payment_method_id <> ''").
		Pluck("user_settings.user_id", &userIDs).Error
	if err != nil {
		log.Errorf("[JobQueue] Auto top-up sweep query failed: %v", err)
		return
	}

	for _, userID := range userIDs {
		payload := AutoTopupJobPayload{UserID: userID}
		if _, err := m.queue.EnqueueJob(JobTypeAutoTopup, payload.ToMap()); err != nil {
			log.Errorf("[JobQueue] Failed to enqueue auto top-up for user %d: %v", userID, err)
		}
	}
}

// counterFlushWorker settles batched credit spend against the database.
func (m *Manager) counterFlushWorker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			// Final flush so buffered spend is not lost on shutdown
			if err := metrics.FlushAll(); err != nil {
				log.Errorf("[JobQueue] Final counter flush failed: %v", err)
			}
			return
		case <-m.counterFlushTicker.C:
			if err := metrics.FlushAll(); err != nil {
				log.Errorf("[JobQueue] Counter flush failed: %v", err)
			}
		}
	}
}

// statsWorker refreshes the cached homepage totals.
func (m *Manager) statsWorker() {
	defer m.wg.Done()

	// Warm the cache right away
	statistics.UpdateStatisticsCache()

	for {
		select {
		case <-m.stopCh:
			return
		case <-m.statsTicker.C:
			statistics.UpdateStatisticsCache()
		}
	}
}
