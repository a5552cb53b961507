package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/activitysync/ActivitySync/app/models"
	"github.com/activitysync/ActivitySync/app/repository"
	"github.com/activitysync/ActivitySync/internal/pkg/jobqueue"
	"github.com/activitysync/ActivitySync/internal/pkg/session"
)

// HandleSyncNow enqueues an incremental sync for the logged-in user
func HandleSyncNow(c *fiber.Ctx) error {
	userID := session.GetUserID(c)
	if userID == 0 {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "not logged in"})
	}

	repos := repository.GetGlobalRepositories()
	account, err := repos.ProviderAccount.GetByUserAndProvider(userID, models.PROVIDER_STRAVA)
	if err != nil || !account.Connected {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "strava not connected"})
	}
	if _, err := repos.ProviderAccount.GetByUserAndProvider(userID, models.PROVIDER_GOOGLE); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "google calendar not connected"})
	}

	payload := jobqueue.SyncJobPayload{UserID: userID, AccountID: account.ID}
	job, err := jobqueue.GetManager().GetQueue().EnqueueJob(jobqueue.JobTypeSyncActivities, payload.ToMap())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "enqueue failed"})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "queued", "job_id": job.ID})
}

// HandleSyncStatus reports the user's link state and sync watermark
func HandleSyncStatus(c *fiber.Ctx) error {
	userID := session.GetUserID(c)
	if userID == 0 {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "not logged in"})
	}

	repos := repository.GetGlobalRepositories()

	status := fiber.Map{
		"strava_connected": false,
		"google_connected": false,
		"last_synced_at":   nil,
	}

	if account, err := repos.ProviderAccount.GetByUserAndProvider(userID, models.PROVIDER_STRAVA); err == nil {
		status["strava_connected"] = account.Connected
		if account.LastSyncedAt != nil {
			status["last_synced_at"] = account.LastSyncedAt.UTC().Format(time.RFC3339)
		}
	}
	if account, err := repos.ProviderAccount.GetByUserAndProvider(userID, models.PROVIDER_GOOGLE); err == nil {
		status["google_connected"] = account.Connected
	}

	return c.Status(fiber.StatusOK).JSON(status)
}
