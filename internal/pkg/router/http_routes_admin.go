package router

import (
	"github.com/lightline-app/lightline/app/controllers"
	"github.com/lightline-app/lightline/internal/pkg/middleware"
	"github.com/gofiber/fiber/v2"
)

func (h HttpRouter) registerAdminRoutes(app *fiber.App) {
	adminGroup := app.Group("/admin", middleware.RequireAdmin)
	adminGroup.Get("/", controllers.HandleAdminUsers)
	adminGroup.Get("/users", controllers.HandleAdminUsers)
	adminGroup.Get("/users/:id", controllers.HandleAdminUserDetail)
	adminGroup.Post("/users/:id/credits", controllers.HandleAdminAdjustCredits)
}
