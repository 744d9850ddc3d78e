package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/handlers"
	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/service"
)

// SetupRoutes configures all application routes with dependencies.
func SetupRoutes(app *fiber.App, svc *service.Service) {
	healthHandler := handlers.NewHealthHandler(svc)
	webhookHandler := handlers.NewWebhookHandler(svc)
	syncHandler := handlers.NewSyncHandler(svc)
	eventsHandler := handlers.NewEventsHandler(svc.DB, svc.Logger)

	app.Get("/health", healthHandler.HealthCheck)

	webhooks := app.Group("/webhooks")
	{
		webhooks.Post("/onspring", webhookHandler.OnspringWebhook)
		webhooks.Post("/arrms", webhookHandler.ARRMSWebhook)
	}

	api := app.Group("/api/v1")
	{
		api.Post("/sync", syncHandler.Sync)
		api.Post("/writeback", syncHandler.WriteBack)
		api.Get("/events", eventsHandler.GetEvents)
	}
}
