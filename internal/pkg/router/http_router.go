package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/activitysync/ActivitySync/app/controllers"
	"github.com/activitysync/ActivitySync/app/repository"
	"github.com/activitysync/ActivitySync/internal/pkg/credentials"
	"github.com/activitysync/ActivitySync/internal/pkg/oauth"
	"github.com/activitysync/ActivitySync/internal/pkg/session"
	"github.com/activitysync/ActivitySync/internal/pkg/syncengine"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// init session
	session.NewSessionStore()

	// init oauth providers
	oauth.Setup()

	// Initialize webhook controller with the classifier
	repos := repository.GetGlobalRepositories()
	refresher := credentials.NewRefresher(repos.ProviderAccount)
	controllers.InitializeWebhookController(syncengine.NewClassifier(repos.ProviderAccount, refresher))

	h.registerAuthRoutes(app)
	h.registerWebhookRoutes(app)
	h.registerSyncRoutes(app)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}

func (h HttpRouter) registerAuthRoutes(app *fiber.App) {
	app.Get("/auth/:provider", controllers.HandleOAuthLogin)
	app.Get("/auth/:provider/callback", controllers.HandleOAuthCallback)
	app.Post("/auth/:provider/disconnect", controllers.HandleDisconnect)
}

func (h HttpRouter) registerWebhookRoutes(app *fiber.App) {
	// Strava validates the subscription with a GET before pushing events
	app.Get("/strava/webhook", controllers.HandleWebhookVerify)
	app.Post("/strava/webhook", controllers.HandleWebhookEvent)
}

func (h HttpRouter) registerSyncRoutes(app *fiber.App) {
	app.Post("/strava/sync", controllers.HandleSyncNow)
	app.Get("/strava/status", controllers.HandleSyncStatus)
}
