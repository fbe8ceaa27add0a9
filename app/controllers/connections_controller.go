package controllers

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	"github.com/lightline-app/lightline/app/models"
	"github.com/lightline-app/lightline/app/repository"
	"github.com/lightline-app/lightline/internal/pkg/env"
	"github.com/lightline-app/lightline/internal/pkg/security"
	"github.com/lightline-app/lightline/internal/pkg/usercontext"
	"github.com/lightline-app/lightline/internal/pkg/viewmodel"
)

const connectTokenTTL = 15 * time.Minute

func connectTokenSecret() string {
	return env.GetEnv("CONNECT_TOKEN_SECRET", env.GetEnv("APP_SECRET", ""))
}

// HandleUserConnections lists the user's messaging connections.
func HandleUserConnections(c *fiber.Ctx) error {
	uc := usercontext.GetUserContext(c)
	repos := repository.GetGlobalRepositories()

	conns, err := repos.Connection.ListByUser(uc.UserID)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load connections")
	}

	views := make([]viewmodel.ConnectionView, 0, len(conns))
	for _, conn := range conns {
		views = append(views, viewmodel.ConnectionView{
			Service: conn.Service,
			Status:  conn.Status,
			Handle:  conn.Handle,
		})
	}

	data := layoutMap(c, " | Connections")
	data["Connections"] = views
	return c.Render("user/connections", data, "layouts/main")
}

// HandleConnectionStart creates a pending connection and hands out a signed
// token the messaging bridge presents on its callback.
func HandleConnectionStart(c *fiber.Ctx) error {
	uc := usercontext.GetUserContext(c)
	repos := repository.GetGlobalRepositories()

	service := strings.ToLower(strings.TrimSpace(c.Params("service")))
	if !models.IsKnownConnectionService(service) {
		fm := fiber.Map{
			"type":    "error",
			"message": fmt.Sprintf("Unknown service %q", service),
		}
		return flash.WithError(c, fm).Redirect("/user/connections")
	}

	if err := repos.Connection.Upsert(&models.MessagingConnection{
		UserID:  uc.UserID,
		Service: service,
		Status:  models.ConnectionStatusPending,
	}); err != nil {
		fm := fiber.Map{
			"type":    "error",
			"message": fmt.Sprintf("something went wrong: %s", err),
		}
		return flash.WithError(c, fm).Redirect("/user/connections")
	}

	token, err := security.GenerateConnectToken(uc.UserID, service, connectTokenTTL, connectTokenSecret())
	if err != nil {
		fm := fiber.Map{
			"type":    "error",
			"message": fmt.Sprintf("something went wrong: %s", err),
		}
		return flash.WithError(c, fm).Redirect("/user/connections")
	}

	data := layoutMap(c, " | Connect "+service)
	data["Service"] = service
	data["ConnectToken"] = token
	return c.Render("user/connect", data, "layouts/main")
}

// HandleConnectionCallback is called by the messaging bridge once the
// external account is linked. The signed token authenticates the request.
func HandleConnectionCallback(c *fiber.Ctx) error {
	repos := repository.GetGlobalRepositories()

	token := c.FormValue("token", c.Query("token"))
	claims, err := security.VerifyConnectToken(token, connectTokenSecret())
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token"})
	}

	if err := repos.Connection.Upsert(&models.MessagingConnection{
		UserID:  claims.UserID,
		Service: claims.Service,
		Status:  models.ConnectionStatusConnected,
		Handle:  strings.TrimSpace(c.FormValue("handle")),
	}); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "storage error"})
	}

	return c.JSON(fiber.Map{"status": "connected"})
}

// HandleConnectionDelete disconnects a messaging service.
func HandleConnectionDelete(c *fiber.Ctx) error {
	uc := usercontext.GetUserContext(c)
	repos := repository.GetGlobalRepositories()

	service := strings.ToLower(strings.TrimSpace(c.Params("service")))
	if err := repos.Connection.Delete(uc.UserID, service); err != nil {
		fm := fiber.Map{
			"type":    "error",
			"message": fmt.Sprintf("something went wrong: %s", err),
		}
		return flash.WithError(c, fm).Redirect("/user/connections")
	}

	fm := fiber.Map{
		"type":    "success",
		"message": fmt.Sprintf("%s disconnected", service),
	}
	return flash.WithSuccess(c, fm).Redirect("/user/connections")
}
