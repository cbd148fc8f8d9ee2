package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mathewdenison/employees-timesheet-list/internal/handlers"
)

// SetupRoutes configures all application routes with dependencies
func SetupRoutes(
	app *fiber.App,
	healthHandler *handlers.HealthHandler,
	pubsubHandler *handlers.PubSubHandler,
	timelogsHandler *handlers.TimelogsHandler,
) {
	app.Get("/health", healthHandler.HealthCheck)

	api := app.Group("/api/v1")
	{
		api.Get("/", func(c *fiber.Ctx) error {
			return c.JSON(fiber.Map{
				"message": "Employee Timelog List API v1",
				"status":  "running",
			})
		})
		api.Post("/pubsub/push", pubsubHandler.Push)
		api.Get("/timelogs", timelogsHandler.GetTimelogs)
	}
}
