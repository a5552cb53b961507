package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/activitysync/ActivitySync/app/repository"
	"github.com/activitysync/ActivitySync/internal/pkg/cache"
	"github.com/activitysync/ActivitySync/internal/pkg/database"
	"github.com/activitysync/ActivitySync/internal/pkg/env"
	"github.com/activitysync/ActivitySync/internal/pkg/jobqueue"
	"github.com/activitysync/ActivitySync/internal/pkg/router"
)

func main() {
	app := NewApplication()

	// start job queue and pull scheduler
	jobqueue.GetManager().Start()

	// graceful shutdown on SIGINT/SIGTERM so in-flight sync jobs can finish
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		jobqueue.GetManager().Stop()
		_ = app.Shutdown()
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	repository.InitializeFactory(database.GetDB())

	app := fiber.New(fiber.Config{
		AppName: "ActivitySync",
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// ROUTER
	router.InstallRouter(app)

	return app
}
