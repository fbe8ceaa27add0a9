package router

import (
	"strings"
	"time"

	"github.com/lightline-app/lightline/app/controllers"
	"github.com/lightline-app/lightline/internal/pkg/env"
	"github.com/lightline-app/lightline/internal/pkg/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/csrf"
)

func (h HttpRouter) registerCSRFProtectedRoutes(app *fiber.App) {
	csrfConf := csrf.Config{
		KeyLookup:      "form:_csrf",
		ContextKey:     "csrf",
		CookieName:     "csrf_",
		CookieSameSite: "Lax",
		Expiration:     1 * time.Hour,
		CookieSecure:   !env.IsDev(),
		Next: func(c *fiber.Ctx) bool {
			return strings.HasPrefix(c.Path(), "/api/")
		},
	}

	group := app.Group("", cors.New(), csrf.New(csrfConf))
	group.Get("/", loggedInMiddleware, controllers.HandleStart)
	group.Get("/login", loggedInMiddleware, controllers.HandleAuthLogin)
	group.Post("/login", loggedInMiddleware, controllers.HandleAuthLogin)
	group.Get("/register", loggedInMiddleware, controllers.HandleAuthRegister)
	group.Post("/register", loggedInMiddleware, controllers.HandleAuthRegister)
	group.Get("/activate", loggedInMiddleware, controllers.HandleAuthActivate)
	group.Post("/activate", loggedInMiddleware, controllers.HandleAuthActivate)

	// User pages
	group.Get("/user/dashboard", middleware.RequireAuth, controllers.HandleUserDashboard)
	group.Get("/user/profile", middleware.RequireAuth, controllers.HandleUserProfile)
	group.Post("/user/profile", middleware.RequireAuth, controllers.HandleUserProfile)
	group.Get("/user/settings", middleware.RequireAuth, controllers.HandleUserSettings)
	group.Post("/user/settings", middleware.RequireAuth, controllers.HandleUserSettings)

	// Billing
	group.Get("/user/billing", middleware.RequireAuth, controllers.HandleUserBilling)
	group.Post("/user/billing/subscribe", middleware.RequireAuth, controllers.HandleSubscriptionCheckout)
	group.Post("/user/billing/topup", middleware.RequireAuth, controllers.HandleTopupCheckout)
	group.Get("/user/billing/portal", middleware.RequireAuth, controllers.HandleCustomerPortal)
	group.Get("/user/billing/success", middleware.RequireAuth, controllers.HandleCheckoutSuccess)
	group.Get("/user/billing/cancelled", middleware.RequireAuth, controllers.HandleCheckoutCancelled)

	// Messaging connections
	group.Get("/user/connections", middleware.RequireAuth, controllers.HandleUserConnections)
	group.Post("/user/connections/:service", middleware.RequireAuth, controllers.HandleConnectionStart)
	group.Post("/user/connections/:service/delete", middleware.RequireAuth, controllers.HandleConnectionDelete)
}
