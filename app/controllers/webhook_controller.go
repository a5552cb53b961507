package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/activitysync/ActivitySync/internal/pkg/env"
	"github.com/activitysync/ActivitySync/internal/pkg/jobqueue"
	"github.com/activitysync/ActivitySync/internal/pkg/syncengine"
	"github.com/activitysync/ActivitySync/internal/pkg/syncerr"
)

var webhookClassifier *syncengine.Classifier

// InitializeWebhookController wires the webhook classifier
func InitializeWebhookController(classifier *syncengine.Classifier) {
	webhookClassifier = classifier
}

// HandleWebhookVerify answers Strava's subscription validation request: the
// challenge is echoed back iff the verify token matches. The response is
// HTTP 200 either way; a non-200 would make Strava consider the endpoint
// unavailable and drop the subscription.
func HandleWebhookVerify(c *fiber.Ctx) error {
	hubMode := c.Query("hub.mode")
	hubChallenge := c.Query("hub.challenge")
	verifyToken := c.Query("hub.verify_token")

	if hubMode == "subscribe" && hubChallenge != "" && verifyToken == env.GetEnv("STRAVA_VERIFY_TOKEN", "") {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"hub.challenge": hubChallenge})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{})
}

// HandleWebhookEvent classifies an inbound activity-change notification and
// enqueues the matching sync job. Classification happens inline so invalid
// payloads surface as a 400 (Strava retries delivery); the sync work itself
// runs asynchronously so Strava always gets a fast response.
func HandleWebhookEvent(c *fiber.Ctx) error {
	var event syncengine.WebhookEvent
	if err := c.BodyParser(&event); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed webhook payload"})
	}

	action, err := webhookClassifier.Classify(c.Context(), event)
	if err != nil {
		switch syncerr.KindOf(err) {
		case syncerr.KindIgnore:
			return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ignored", "reason": syncerr.Reason(err)})
		case syncerr.KindInvalid:
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": syncerr.Reason(err)})
		case syncerr.KindUnauthorized:
			// Will never succeed without re-consent; do not invite retries.
			log.Warnf("[Webhook] Unauthorized account for event: %v", err)
			return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "unauthorized"})
		default:
			log.Errorf("[Webhook] Classification failed: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "classification failed"})
		}
	}

	var jobType jobqueue.JobType
	switch action.Type {
	case syncengine.ActionSyncActivities:
		jobType = jobqueue.JobTypeSyncActivities
	case syncengine.ActionUpdateActivity:
		jobType = jobqueue.JobTypeUpdateActivity
	case syncengine.ActionDeleteActivity:
		jobType = jobqueue.JobTypeDeleteActivity
	}

	payload := jobqueue.SyncJobPayload{
		UserID:     action.Account.UserID,
		AccountID:  action.Account.ID,
		ActivityID: action.ActivityID,
	}

	job, err := jobqueue.GetManager().GetQueue().EnqueueJob(jobType, payload.ToMap())
	if err != nil {
		log.Errorf("[Webhook] Enqueue failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "enqueue failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "queued", "job_id": job.ID})
}
