package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/activitysync/ActivitySync/internal/pkg/cache"
	"github.com/activitysync/ActivitySync/internal/pkg/database"
	"github.com/activitysync/ActivitySync/internal/pkg/jobqueue"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	app.Get("/health", handleHealth)

	api := app.Group("/api", limiter.New())
	api.Get("/queue/stats", handleQueueStats)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}

func handleHealth(c *fiber.Ctx) error {
	status := fiber.StatusOK
	checks := fiber.Map{"database": "ok", "cache": "ok"}

	if db, err := database.GetDB().DB(); err != nil || db.Ping() != nil {
		checks["database"] = "unreachable"
		status = fiber.StatusServiceUnavailable
	}
	if err := cache.GetClient().Ping(c.Context()).Err(); err != nil {
		checks["cache"] = "unreachable"
		status = fiber.StatusServiceUnavailable
	}

	return c.Status(status).JSON(checks)
}

func handleQueueStats(c *fiber.Ctx) error {
	stats, err := jobqueue.GetManager().GetQueue().GetStats()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "stats unavailable"})
	}
	return c.Status(fiber.StatusOK).JSON(stats)
}
