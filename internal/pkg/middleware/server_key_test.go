package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServerKeyApp() *fiber.App {
	app := fiber.New()
	app.Get("/internal", ServerKeyAuthMiddleware(), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	return app
}

func TestServerKeyAuthAcceptsHeaderKey(t *testing.T) {
	t.Setenv("SERVER_API_KEY", "sk-test-123")
	app := newServerKeyApp()

	req := httptest.NewRequest("GET", "/internal", nil)
	req.Header.Set("X-API-Key", "sk-test-123")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestServerKeyAuthAcceptsBearerToken(t *testing.T) {
	t.Setenv("SERVER_API_KEY", "sk-test-123")
	app := newServerKeyApp()

	req := httptest.NewRequest("GET", "/internal", nil)
	req.Header.Set("Authorization", "Bearer sk-test-123")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestServerKeyAuthRejectsWrongKey(t *testing.T) {
	t.Setenv("SERVER_API_KEY", "sk-test-123")
	app := newServerKeyApp()

	req := httptest.NewRequest("GET", "/internal", nil)
	req.Header.Set("X-API-Key", "sk-wrong")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestServerKeyAuthRejectsMissingKey(t *testing.T) {
	t.Setenv("SERVER_API_KEY", "sk-test-123")
	app := newServerKeyApp()

	resp, err := app.Test(httptest.NewRequest("GET", "/internal", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestServerKeyAuthFailsClosedWithoutConfig(t *testing.T) {
	t.Setenv("SERVER_API_KEY", "")
	app := newServerKeyApp()

	req := httptest.NewRequest("GET", "/internal", nil)
	req.Header.Set("X-API-Key", "anything")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}
