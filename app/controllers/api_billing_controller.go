package controllers

import (
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/lightline-app/lightline/app/models"
	"github.com/lightline-app/lightline/app/repository"
	"github.com/lightline-app/lightline/internal/pkg/billing"
	"github.com/lightline-app/lightline/internal/pkg/metrics/counter"
	"github.com/lightline-app/lightline/internal/pkg/usercontext"
)

// Auto top-up triggers when the balance drops below this many credits.
const autoTopupThreshold = 2.0

func apiUserID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid user id %q", c.Params("id"))
	}
	return uint(id), nil
}

// HandleAPIBillingStatus returns tier, credits and the next billing date
// for internal services.
func HandleAPIBillingStatus(c *fiber.Ctx) error {
	userID, err := apiUserID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	repos := repository.GetGlobalRepositories()

	profile, err := repos.Billing.GetOrCreateProfile(userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "storage error"})
	}

	tier := ""
	if profile.SubscriptionTier != nil {
		tier = *profile.SubscriptionTier
	}
	return c.JSON(fiber.Map{
		"user_id":           userID,
		"tier":              tier,
		"credits":           profile.Credits,
		"next_billing_date": profile.NextBillingDate,
	})
}

// HandleAPIResetCredits re-derives the monthly allowance from the user's
// current active subscription. Used by the scheduler at period rollover
// when a webhook was missed.
func HandleAPIResetCredits(c *fiber.Ctx) error {
	userID, err := apiUserID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	catalog, client, _, reconciler := billingDeps()
	repos := repository.GetGlobalRepositories()

	profile, err := repos.Billing.GetProfile(userID)
	if err != nil || profile == nil || profile.StripeCustomerID == "" {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no billing account"})
	}

	subs, err := client.ListActiveSubscriptions(c.Context(), profile.StripeCustomerID)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "provider error"})
	}
	if len(subs) == 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "no active subscription"})
	}

	// With several active subscriptions the highest tier wins, same as the
	// webhook deletion path.
	best := subs[0]
	bestRank := catalog.Resolve(catalog.BasePriceID(best.Items.Data)).Tier
	for _, sub := range subs[1:] {
		tier := catalog.Resolve(catalog.BasePriceID(sub.Items.Data)).Tier
		if billing.CompareTiers(tier, bestRank) > 0 {
			best, bestRank = sub, tier
		}
	}

	if err := reconciler.HandleSubscriptionEvent(c.Context(), billing.EventSubscriptionUpdated, &best); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "reconciliation failed"})
	}

	updated, err := repos.Billing.GetProfile(userID)
	if err != nil || updated == nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "storage error"})
	}
	return c.JSON(fiber.Map{"user_id": userID, "credits": updated.Credits})
}

// HandleAPIRefreshBillingDate re-reads the billing period end from the
// provider and stores it. The latest period end across all active
// subscriptions wins.
func HandleAPIRefreshBillingDate(c *fiber.Ctx) error {
	userID, err := apiUserID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	_, client, _, _ := billingDeps()
	repos := repository.GetGlobalRepositories()

	profile, err := repos.Billing.GetProfile(userID)
	if err != nil || profile == nil || profile.StripeCustomerID == "" {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no billing account"})
	}

	subs, err := client.ListActiveSubscriptions(c.Context(), profile.StripeCustomerID)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "provider error"})
	}

	var latest int64
	for _, sub := range subs {
		if sub.CurrentPeriodEnd > latest {
			latest = sub.CurrentPeriodEnd
		}
	}
	if latest == 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "no active subscription"})
	}

	if err := repos.Billing.SetNextBillingDate(userID, latest); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "storage error"})
	}
	return c.JSON(fiber.Map{"user_id": userID, "next_billing_date": latest})
}

// HandleAPIIncreaseCredits adds credits to a user's balance.
func HandleAPIIncreaseCredits(c *fiber.Ctx) error {
	userID, err := apiUserID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var body struct {
		Amount float64 `json:"amount"`
	}
	if err := c.BodyParser(&body); err != nil || body.Amount <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "amount must be positive"})
	}

	repos := repository.GetGlobalRepositories()
	if err := repos.Billing.IncreaseCredits(userID, body.Amount); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "storage error"})
	}
	return c.JSON(fiber.Map{"user_id": userID, "added": body.Amount})
}

// HandleAPIRecordUsage logs a credit-consuming activity reported by the
// messaging bridge. The spend itself is batched through the counter and
// settled against the balance by the flush job.
func HandleAPIRecordUsage(c *fiber.Ctx) error {
	var body struct {
		UserID       uint    `json:"user_id"`
		ActivityType string  `json:"activity_type"`
		Credits      float64 `json:"credits"`
		Success      bool    `json:"success"`
		Reason       string  `json:"reason"`
	}
	if err := c.BodyParser(&body); err != nil || body.UserID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid payload"})
	}
	switch body.ActivityType {
	case models.UsageActivityMessage, models.UsageActivityDigest, models.UsageActivityCall:
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": fmt.Sprintf("unknown activity type %q", body.ActivityType)})
	}

	repos := repository.GetGlobalRepositories()
	if err := repos.Usage.Log(&models.UsageLog{
		UserID:       body.UserID,
		ActivityType: body.ActivityType,
		Credits:      body.Credits,
		Success:      body.Success,
		Reason:       body.Reason,
	}); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "storage error"})
	}

	if body.Success && body.Credits > 0 {
		if err := counter.AddCreditSpend(body.UserID, body.Credits); err != nil {
			log.Printf("billing: failed to record credit spend for user %d: %v", body.UserID, err)
		}
	}
	if body.ActivityType == models.UsageActivityMessage {
		_ = counter.AddMessage(body.UserID)
	}

	return c.JSON(fiber.Map{"status": "recorded"})
}

// HandleAPIAutomaticCharge runs the auto top-up check for a user: when the
// balance is below the threshold and a saved card exists, it charges the
// configured amount off-session and credits the balance.
func HandleAPIAutomaticCharge(c *fiber.Ctx) error {
	userID, err := apiUserID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	_, client, _, _ := billingDeps()
	repos := repository.GetGlobalRepositories()

	settings, err := repos.Settings.Get(userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "storage error"})
	}
	if !settings.AutoTopupActive || settings.AutoTopupAmount == nil || *settings.AutoTopupAmount <= 0 {
		return c.JSON(fiber.Map{"status": "auto top-up disabled"})
	}

	profile, err := repos.Billing.GetProfile(userID)
	if err != nil || profile == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no billing account"})
	}
	if profile.Credits >= autoTopupThreshold {
		return c.JSON(fiber.Map{"status": "balance sufficient", "credits": profile.Credits})
	}
	if profile.StripeCustomerID == "" || profile.StripePaymentMethodID == "" {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "no saved payment method"})
	}

	amount := *settings.AutoTopupAmount
	intent, err := client.CreateOffSessionPaymentIntent(c.Context(), profile.StripeCustomerID, profile.StripePaymentMethodID, "usd", int64(amount*100))
	if err != nil {
		log.Printf("billing: off-session charge failed for user %d: %v", userID, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "charge failed"})
	}
	if intent.Status != "succeeded" {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": fmt.Sprintf("payment intent status %q", intent.Status)})
	}

	if err := repos.Billing.IncreaseCredits(userID, amount); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "storage error"})
	}
	return c.JSON(fiber.Map{"status": "charged", "added": amount, "payment_intent": intent.ID})
}

// HandleAPIUserUsage returns the logged-in user's credit spend series for
// the dashboard graph.
func HandleAPIUserUsage(c *fiber.Ctx) error {
	uc := usercontext.GetUserID(c)
	if uc == 0 {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "authentication required"})
	}

	days, _ := strconv.Atoi(c.Query("days", "30"))
	if days <= 0 || days > 365 {
		days = 30
	}
	from := time.Now().AddDate(0, 0, -days)

	repos := repository.GetGlobalRepositories()
	series, err := repos.Usage.SeriesByUser(uc, from, time.Now())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "storage error"})
	}
	return c.JSON(fiber.Map{"user_id": uc, "days": days, "series": series})
}

// HandleAPIAutoTopupSettings lets the logged-in user toggle auto top-up.
func HandleAPIAutoTopupSettings(c *fiber.Ctx) error {
	uc := usercontext.GetUserID(c)
	if uc == 0 {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "authentication required"})
	}

	var body struct {
		Active bool     `json:"active"`
		Amount *float64 `json:"amount"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid payload"})
	}
	if body.Active && (body.Amount == nil || *body.Amount < minTopupAmount || *body.Amount > maxTopupAmount) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("amount must be between %d and %d", minTopupAmount, maxTopupAmount),
		})
	}

	repos := repository.GetGlobalRepositories()
	if err := repos.Settings.SetAutoTopup(uc, body.Active, body.Amount); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "storage error"})
	}
	return c.JSON(fiber.Map{"status": "saved", "active": body.Active})
}
