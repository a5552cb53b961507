package jobqueue

import (
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/activitysync/ActivitySync/app/models"
	"github.com/activitysync/ActivitySync/app/repository"
	"github.com/activitysync/ActivitySync/internal/pkg/credentials"
	"github.com/activitysync/ActivitySync/internal/pkg/env"
	"github.com/activitysync/ActivitySync/internal/pkg/gcal"
	"github.com/activitysync/ActivitySync/internal/pkg/strava"
	"github.com/activitysync/ActivitySync/internal/pkg/syncengine"
)

// Manager manages the global sync queue and the periodic pull scheduler
type Manager struct {
	queue           *Queue
	schedulerTicker *time.Ticker
	stopCh          chan struct{}
	wg              sync.WaitGroup
	mu              sync.Mutex
	running         bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the global sync queue manager (singleton)
func GetManager() *Manager {
	managerOnce.Do(func() {
		workerCount := 3
		if v, err := strconv.Atoi(env.GetEnv("SYNC_WORKERS", "3")); err == nil && v > 0 {
			workerCount = v
		}

		globalManager = &Manager{
			queue:  NewQueue(workerCount, buildOrchestrator()),
			stopCh: make(chan struct{}),
		}
	})
	return globalManager
}

// buildOrchestrator wires the sync engine from the global repositories and
// the configured provider clients.
func buildOrchestrator() *syncengine.Orchestrator {
	repos := repository.GetGlobalRepositories()

	refresher := credentials.NewRefresher(repos.ProviderAccount)
	stravaClient := strava.NewClient(strava.Config{
		BaseURL: env.GetEnv("STRAVA_API_URL", strava.DefaultBaseURL),
	})
	calendarClient := gcal.NewClient(gcal.Config{
		CalendarName:     env.GetEnv("CALENDAR_NAME", "Strava"),
		CalendarTimezone: env.GetEnv("CALENDAR_TIMEZONE", "America/Chicago"),
	})

	return syncengine.NewOrchestrator(repos.User, repos.ProviderAccount, refresher, stravaClient, calendarClient)
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// Start starts the job queue and the periodic pull scheduler
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[SyncQueue Manager] Starting job queue and scheduler")

	m.queue.Start()

	// Periodic pull: webhooks can be missed, the scheduler catches up.
	interval := 60 * time.Minute
	if v, err := strconv.Atoi(env.GetEnv("SYNC_INTERVAL_MINUTES", "60")); err == nil && v > 0 {
		interval = time.Duration(v) * time.Minute
	}
	m.schedulerTicker = time.NewTicker(interval)
	m.wg.Add(1)
	go m.schedulerWorker()

	log.Info("[SyncQueue Manager] Started successfully")
}

// Stop stops the job queue and background tasks
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[SyncQueue Manager] Stopping...")

	if m.schedulerTicker != nil {
		m.schedulerTicker.Stop()
	}
	close(m.stopCh)
	m.wg.Wait()
	m.queue.Stop()
	m.running = false

	log.Info("[SyncQueue Manager] Stopped")
}

// schedulerWorker enqueues an incremental sync for every connected Strava
// account on each tick.
func (m *Manager) schedulerWorker() {
	defer m.wg.Done()

	for {
		select {
		case <-m.stopCh:
			log.Info("[SyncQueue Manager] Scheduler stopping")
			return
		case <-m.schedulerTicker.C:
			m.enqueueScheduledSyncs()
		}
	}
}

func (m *Manager) enqueueScheduledSyncs() {
	accounts, err := repository.GetGlobalRepositories().ProviderAccount.ListConnected(models.PROVIDER_STRAVA)
	if err != nil {
		log.Errorf("[SyncQueue Manager] Listing connected accounts failed: %v", err)
		return
	}

	for _, account := range accounts {
		payload := SyncJobPayload{UserID: account.UserID, AccountID: account.ID}
		if _, err := m.queue.EnqueueJob(JobTypeSyncActivities, payload.ToMap()); err != nil {
			log.Errorf("[SyncQueue Manager] Enqueue scheduled sync for account %d failed: %v", account.ID, err)
		}
	}

	if len(accounts) > 0 {
		log.Infof("[SyncQueue Manager] Scheduled sync for %d accounts", len(accounts))
	}
}
