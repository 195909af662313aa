package routes

import (
	"github.com/Ananth-NQI/soko-ussd/internal/handlers"
	"github.com/Ananth-NQI/soko-ussd/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all routes. When signingSecret is empty the USSD
// callback is accepted unsigned, which is how sandbox gateways call us.
func SetupRoutes(app *fiber.App, ussdHandler *handlers.USSDHandler, healthHandler *handlers.HealthHandler, signingSecret string) {
	// Root endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Soko la Mwenge USSD service",
			"version": healthHandler.Version,
			"endpoints": fiber.Map{
				"health":  "/health",
				"metrics": "/metrics",
				"ussd":    "/ussd",
			},
		})
	})

	app.Get("/health", healthHandler.Check)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// ========== GATEWAY CALLBACK ==========
	if signingSecret == "" {
		app.Post("/ussd", ussdHandler.Handle)
	} else {
		app.Post("/ussd", middleware.ValidateGatewaySignature(signingSecret), ussdHandler.Handle)
	}
}
