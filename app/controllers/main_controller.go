package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/lightline-app/lightline/internal/pkg/statistics"
	"github.com/lightline-app/lightline/internal/pkg/usercontext"
)

// HandleStart renders the landing page.
func HandleStart(c *fiber.Ctx) error {
	if usercontext.IsLoggedIn(c) {
		return c.Redirect("/user/dashboard")
	}

	totals := statistics.GetTotals()

	data := layoutMap(c, "")
	data["UserCount"] = statistics.FormatCount(totals.Users)
	data["SubscriberCount"] = statistics.FormatCount(totals.Subscribers)
	data["MessageCount"] = statistics.FormatCount(totals.Messages)
	return c.Render("start", data, "layouts/main")
}

// HandlePricing renders the plans page.
func HandlePricing(c *fiber.Ctx) error {
	return c.Render("pricing", layoutMap(c, " | Pricing"), "layouts/main")
}

// HandleAbout renders the about page.
func HandleAbout(c *fiber.Ctx) error {
	return c.Render("about", layoutMap(c, " | About"), "layouts/main")
}
