package router

import (
	"github.com/lightline-app/lightline/app/controllers"
	"github.com/lightline-app/lightline/internal/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	gothfiber "github.com/shareed2k/goth_fiber"
)

func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	// Static pages
	app.Get("/about", loggedInMiddleware, controllers.HandleAbout)
	app.Get("/pricing", loggedInMiddleware, controllers.HandlePricing)

	// Auth
	app.Post("/logout", middleware.RequireAuth, controllers.HandleAuthLogout)

	// Social OAuth
	app.Get("/auth/:provider", gothfiber.BeginAuthHandler)
	app.Get("/auth/:provider/callback", controllers.HandleOAuthCallback)

	// Messaging bridge callback (no CSRF, token-verified in controller)
	app.Post("/connections/callback", controllers.HandleConnectionCallback)

	// Billing provider webhooks (no CSRF, signature-verified in controller)
	app.Post("/api/stripe/webhook", controllers.HandleStripeWebhook)
}
