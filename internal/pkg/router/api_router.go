package router

import (
	apiv1 "github.com/lightline-app/lightline/internal/api/v1"
	"github.com/lightline-app/lightline/internal/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// API v1 routes; usage and settings require a session
	v1 := api.Group("/v1")
	v1Protected := api.Group("/v1", middleware.RequireAPISessionAuth)
	apiServer := apiv1.NewAPIServer()
	apiv1.RegisterHandlers(v1, v1Protected, apiServer)

	// Internal server-to-server routes
	internal := api.Group("/internal", middleware.ServerKeyAuthMiddleware())
	apiv1.RegisterInternalHandlers(internal)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
