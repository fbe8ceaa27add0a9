package apiv1

import (
	"github.com/gofiber/fiber/v2"

	// Delegate to existing controllers to keep behavior consistent
	"github.com/lightline-app/lightline/app/controllers"
)

// Pong is the ping endpoint response body.
type Pong struct {
	Ping string `json:"ping"`
}

// APIServer implements the public v1 API surface
type APIServer struct{}

// NewAPIServer creates a new API server instance
func NewAPIServer() *APIServer {
	return &APIServer{}
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	response := Pong{
		Ping: "pong",
	}

	return c.Status(fiber.StatusOK).JSON(response)
}

// GetUsage returns the authenticated user's credit spend series.
// Security is enforced via session middleware attached in the router.
func (s *APIServer) GetUsage(c *fiber.Ctx) error {
	return controllers.HandleAPIUserUsage(c)
}

// PostAutoTopup updates the authenticated user's auto top-up settings.
func (s *APIServer) PostAutoTopup(c *fiber.Ctx) error {
	return controllers.HandleAPIAutoTopupSettings(c)
}

// RegisterHandlers mounts the v1 routes. Ping stays open; the caller
// attaches session auth to the protected group.
func RegisterHandlers(public, protected fiber.Router, s *APIServer) {
	public.Get("/ping", s.GetPing)
	protected.Get("/usage", s.GetUsage)
	protected.Post("/auto-topup", s.PostAutoTopup)
}

// RegisterInternalHandlers mounts the server-to-server routes used by the
// messaging bridge and the scheduler. The caller attaches the server key
// middleware to the group.
func RegisterInternalHandlers(router fiber.Router) {
	router.Get("/users/:id/billing", controllers.HandleAPIBillingStatus)
	router.Post("/users/:id/reset-credits", controllers.HandleAPIResetCredits)
	router.Post("/users/:id/refresh-billing-date", controllers.HandleAPIRefreshBillingDate)
	router.Post("/users/:id/increase-credits", controllers.HandleAPIIncreaseCredits)
	router.Post("/users/:id/charge", controllers.HandleAPIAutomaticCharge)
	router.Post("/usage", controllers.HandleAPIRecordUsage)
}
