package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	"github.com/lightline-app/lightline/internal/pkg/usercontext"
)

// Session/Locals keys shared with the middleware layer.
const (
	AUTH_KEY       string = usercontext.AuthKey
	USER_ID        string = usercontext.KeyUserID
	USER_NAME      string = usercontext.KeyUsername
	USER_IS_ADMIN  string = usercontext.KeyIsAdmin
	FROM_PROTECTED string = usercontext.KeyFromProtected
)

func isLoggedIn(c *fiber.Ctx) bool {
	var fromProtected bool
	if protectedValue := c.Locals(FROM_PROTECTED); protectedValue != nil {
		fromProtected = protectedValue.(bool)
	}

	return fromProtected
}

// csrfToken returns the token set by the CSRF middleware, or "" on
// unprotected routes.
func csrfToken(c *fiber.Ctx) string {
	if v := c.Locals("csrf"); v != nil {
		if token, ok := v.(string); ok {
			return token
		}
	}
	return ""
}

// layoutMap builds the template data every page needs: user context, CSRF
// token and any pending flash message.
func layoutMap(c *fiber.Ctx, title string) fiber.Map {
	userCtx := usercontext.GetUserContext(c)
	return fiber.Map{
		"Title":      title,
		"IsLoggedIn": userCtx.IsLoggedIn,
		"Username":   userCtx.Username,
		"IsAdmin":    userCtx.IsAdmin,
		"Tier":       userCtx.Tier,
		"CSRFToken":  csrfToken(c),
		"Flash":      flash.Get(c),
	}
}

// GetClientIP determines the actual client IP address considering proxies.
func GetClientIP(c *fiber.Ctx) string {
	if cfIP := strings.TrimSpace(c.Get("CF-Connecting-IP")); cfIP != "" {
		return cfIP
	}
	if xff := c.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	return c.IP()
}
