package controllers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	"github.com/lightline-app/lightline/app/repository"
)

const adminPageSize = 25

// HandleAdminUsers lists users with pagination and search.
func HandleAdminUsers(c *fiber.Ctx) error {
	repos := repository.GetGlobalRepositories()

	query := strings.TrimSpace(c.Query("q"))
	page, _ := strconv.Atoi(c.Query("page", "1"))
	if page < 1 {
		page = 1
	}

	data := layoutMap(c, " | Admin / Users")
	data["Query"] = query
	data["Page"] = page

	if query != "" {
		users, err := repos.User.Search(query)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "search failed")
		}
		data["Users"] = users
		data["Total"] = int64(len(users))
		return c.Render("admin/users", data, "layouts/main")
	}

	users, err := repos.User.List((page-1)*adminPageSize, adminPageSize)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load users")
	}
	total, _ := repos.User.Count()
	data["Users"] = users
	data["Total"] = total
	data["HasMore"] = int64(page*adminPageSize) < total
	data["NextPage"] = page + 1
	return c.Render("admin/users", data, "layouts/main")
}

// HandleAdminUserDetail shows one user's billing state.
func HandleAdminUserDetail(c *fiber.Ctx) error {
	repos := repository.GetGlobalRepositories()

	userID, err := apiUserID(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	user, err := repos.User.GetByID(userID)
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, "user not found")
	}
	profile, err := repos.Billing.GetOrCreateProfile(userID)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load billing profile")
	}
	usage, _ := repos.Usage.ListByUser(userID, 0, 20)

	data := layoutMap(c, " | Admin / User")
	data["User"] = user
	data["Profile"] = profile
	data["SubscriptionTier"] = tierLabel(profile.SubscriptionTier)
	data["RecentUsage"] = usage
	return c.Render("admin/user_detail", data, "layouts/main")
}

// HandleAdminAdjustCredits applies a manual credit correction.
func HandleAdminAdjustCredits(c *fiber.Ctx) error {
	repos := repository.GetGlobalRepositories()

	userID, err := apiUserID(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	amount, err := strconv.ParseFloat(strings.TrimSpace(c.FormValue("amount")), 64)
	if err != nil || amount == 0 {
		fm := fiber.Map{
			"type":    "error",
			"message": "Amount must be a non-zero number",
		}
		return flash.WithError(c, fm).Redirect(fmt.Sprintf("/admin/users/%d", userID))
	}

	if amount > 0 {
		err = repos.Billing.IncreaseCredits(userID, amount)
	} else {
		err = repos.Billing.DecreaseCredits(userID, -amount)
	}
	if err != nil {
		fm := fiber.Map{
			"type":    "error",
			"message": fmt.Sprintf("something went wrong: %s", err),
		}
		return flash.WithError(c, fm).Redirect(fmt.Sprintf("/admin/users/%d", userID))
	}

	fm := fiber.Map{
		"type":    "success",
		"message": fmt.Sprintf("Adjusted credits by %+.2f", amount),
	}
	return flash.WithSuccess(c, fm).Redirect(fmt.Sprintf("/admin/users/%d", userID))
}
