package controllers

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	"github.com/lightline-app/lightline/app/repository"
	"github.com/lightline-app/lightline/internal/pkg/billing"
	"github.com/lightline-app/lightline/internal/pkg/entitlements"
	"github.com/lightline-app/lightline/internal/pkg/usercontext"
	"github.com/lightline-app/lightline/internal/pkg/utils"
)

var (
	digestSlotRe  = regexp.MustCompile(`^([01]?\d|2[0-3]):[0-5]\d$`)
	phoneNumberRe = regexp.MustCompile(`^\+\d{6,20}$`)
)

// phoneCountries maps E.164 prefixes to the countries the service
// distinguishes for billing.
var phoneCountries = map[string]string{
	"+1":   "US",
	"+358": "FI",
	"+31":  "NL",
	"+44":  "UK",
	"+61":  "AU",
}

func phoneCountry(number string) string {
	for prefix, country := range phoneCountries {
		if strings.HasPrefix(number, prefix) {
			return country
		}
	}
	return "OTHER"
}

// HandleUserDashboard renders the logged-in landing page with the credit
// balance, digest schedule and recent usage.
func HandleUserDashboard(c *fiber.Ctx) error {
	uc := usercontext.GetUserContext(c)
	repos := repository.GetGlobalRepositories()

	profile, err := repos.Billing.GetOrCreateProfile(uc.UserID)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load billing profile")
	}
	settings, err := repos.Settings.Get(uc.UserID)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load settings")
	}

	monthAgo := time.Now().AddDate(0, -1, 0)
	used, _ := repos.Usage.TotalCreditsUsed(uc.UserID, monthAgo, time.Now())
	connections, _ := repos.Connection.ListByUser(uc.UserID)

	data := layoutMap(c, " | Dashboard")
	data["Credits"] = profile.Credits
	data["Tier"] = tierLabel(profile.SubscriptionTier)
	data["CreditsUsedMonth"] = used
	data["DigestCount"] = settings.ActiveDigestCount()
	data["Connections"] = len(connections)
	data["Features"] = entitlements.AllowedFeatures(billing.Tier(uc.Tier))
	return c.Render("user/dashboard", data, "layouts/main")
}

// HandleUserProfile shows the profile page; POST updates the phone number.
func HandleUserProfile(c *fiber.Ctx) error {
	uc := usercontext.GetUserContext(c)
	repos := repository.GetGlobalRepositories()

	if c.Method() == fiber.MethodPost {
		phone := strings.TrimSpace(c.FormValue("phone_number"))
		if phone != "" && !phoneNumberRe.MatchString(phone) {
			fm := fiber.Map{
				"type":    "error",
				"message": "Phone number must be in international format, e.g. +14155550100",
			}
			return flash.WithError(c, fm).Redirect("/user/profile")
		}

		country := ""
		if phone != "" {
			country = phoneCountry(phone)
		}
		if err := repos.User.UpdatePhoneNumber(uc.UserID, phone, country); err != nil {
			fm := fiber.Map{
				"type":    "error",
				"message": fmt.Sprintf("something went wrong: %s", err),
			}
			return flash.WithError(c, fm).Redirect("/user/profile")
		}

		fm := fiber.Map{
			"type":    "success",
			"message": "Phone number updated",
		}
		return flash.WithSuccess(c, fm).Redirect("/user/profile")
	}

	user, err := repos.User.GetByID(uc.UserID)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load user")
	}

	data := layoutMap(c, " | Profile")
	data["Email"] = user.Email
	data["AvatarURL"] = utils.GetGravatarURL(user.Email, 128)
	data["PhoneNumber"] = user.PhoneNumber
	data["PhoneNumberCountry"] = user.PhoneNumberCountry
	return c.Render("user/profile", data, "layouts/main")
}

// HandleUserSettings shows the preferences page; POST updates digest slots,
// timezone and notification settings.
func HandleUserSettings(c *fiber.Ctx) error {
	uc := usercontext.GetUserContext(c)
	repos := repository.GetGlobalRepositories()

	if c.Method() == fiber.MethodPost {
		morning, err1 := parseDigestSlot(c.FormValue("morning_digest"))
		day, err2 := parseDigestSlot(c.FormValue("day_digest"))
		evening, err3 := parseDigestSlot(c.FormValue("evening_digest"))
		if err1 != nil || err2 != nil || err3 != nil {
			fm := fiber.Map{
				"type":    "error",
				"message": "Digest times must be HH:MM or empty",
			}
			return flash.WithError(c, fm).Redirect("/user/settings")
		}

		timezone := strings.TrimSpace(c.FormValue("timezone"))
		if timezone != "" {
			if _, err := time.LoadLocation(timezone); err != nil {
				fm := fiber.Map{
					"type":    "error",
					"message": fmt.Sprintf("unknown timezone %q", timezone),
				}
				return flash.WithError(c, fm).Redirect("/user/settings")
			}
		}

		if err := repos.Settings.SetDigests(uc.UserID, morning, day, evening); err != nil {
			fm := fiber.Map{
				"type":    "error",
				"message": fmt.Sprintf("something went wrong: %s", err),
			}
			return flash.WithError(c, fm).Redirect("/user/settings")
		}
		if err := repos.Settings.SetTimezone(uc.UserID, timezone); err != nil {
			fm := fiber.Map{
				"type":    "error",
				"message": fmt.Sprintf("something went wrong: %s", err),
			}
			return flash.WithError(c, fm).Redirect("/user/settings")
		}
		if err := repos.Settings.SetNotifyEnabled(uc.UserID, c.FormValue("notify_enabled") == "on"); err != nil {
			fm := fiber.Map{
				"type":    "error",
				"message": fmt.Sprintf("something went wrong: %s", err),
			}
			return flash.WithError(c, fm).Redirect("/user/settings")
		}

		fm := fiber.Map{
			"type":    "success",
			"message": "Settings saved",
		}
		return flash.WithSuccess(c, fm).Redirect("/user/settings")
	}

	settings, err := repos.Settings.Get(uc.UserID)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load settings")
	}

	data := layoutMap(c, " | Settings")
	data["MorningDigest"] = derefString(settings.MorningDigest)
	data["DayDigest"] = derefString(settings.DayDigest)
	data["EveningDigest"] = derefString(settings.EveningDigest)
	data["Timezone"] = settings.Timezone
	data["NotifyEnabled"] = settings.NotifyEnabled
	data["HasDigests"] = entitlements.HasFeature(billing.Tier(uc.Tier), entitlements.FeatureDigests)
	return c.Render("user/settings", data, "layouts/main")
}

func parseDigestSlot(v string) (*string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	if !digestSlotRe.MatchString(v) {
		return nil, fmt.Errorf("invalid time %q", v)
	}
	return &v, nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func tierLabel(tier *string) string {
	if tier == nil || *tier == "" {
		return "None"
	}
	return *tier
}
