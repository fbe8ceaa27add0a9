package controllers

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	"github.com/lightline-app/lightline/app/models"
	"github.com/lightline-app/lightline/app/repository"
	"github.com/lightline-app/lightline/internal/pkg/billing"
	"github.com/lightline-app/lightline/internal/pkg/constants"
	"github.com/lightline-app/lightline/internal/pkg/database"
	"github.com/lightline-app/lightline/internal/pkg/env"
	"github.com/lightline-app/lightline/internal/pkg/session"
	"github.com/lightline-app/lightline/internal/pkg/usercontext"
	"github.com/lightline-app/lightline/internal/pkg/viewmodel"
)

// Top-up bounds in whole currency units. One unit buys one credit.
const (
	minTopupAmount = 5
	maxTopupAmount = 100
)

// subscriptionTrialDays applies to new US/CA hosted subscriptions only.
const subscriptionTrialDays = 7

var (
	billingOnce    sync.Once
	priceCatalog   *billing.PriceCatalog
	stripeClient   *billing.StripeClient
	billingRepoVar billing.Repository
	reconcilerVar  *billing.Reconciler
)

func billingDeps() (*billing.PriceCatalog, *billing.StripeClient, billing.Repository, *billing.Reconciler) {
	billingOnce.Do(func() {
		priceCatalog = billing.NewPriceCatalogFromEnv()
		stripeClient = billing.NewStripeClientFromEnv()
		billingRepoVar = billing.NewRepository(database.GetDB())
		reconcilerVar = billing.NewReconciler(priceCatalog, stripeClient, billingRepoVar)
	})
	return priceCatalog, stripeClient, billingRepoVar, reconcilerVar
}

// setBillingDeps installs pre-built billing dependencies and disables the
// lazy environment-based construction. Handler tests use it to swap in
// fakes.
func setBillingDeps(catalog *billing.PriceCatalog, client *billing.StripeClient, repo billing.Repository, rec *billing.Reconciler) {
	billingOnce.Do(func() {})
	priceCatalog = catalog
	stripeClient = client
	billingRepoVar = repo
	reconcilerVar = rec
}

func publicBaseURL() string {
	base := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/")
	if base == "" {
		base = "http://localhost:" + env.GetEnv("APP_PORT", "4000")
	}
	return base
}

// ensureStripeCustomer returns the user's provider customer ID, creating
// the customer on first use.
func ensureStripeCustomer(c *fiber.Ctx, userID uint) (string, error) {
	_, client, _, _ := billingDeps()
	repos := repository.GetGlobalRepositories()

	profile, err := repos.Billing.GetOrCreateProfile(userID)
	if err != nil {
		return "", err
	}
	if profile.StripeCustomerID != "" {
		return profile.StripeCustomerID, nil
	}

	user, err := repos.User.GetByID(userID)
	if err != nil {
		return "", err
	}
	customer, err := client.CreateCustomer(c.Context(), user.Email, user.Name)
	if err != nil {
		return "", err
	}
	if err := repos.Billing.SetCustomerID(userID, customer.ID); err != nil {
		return "", err
	}
	return customer.ID, nil
}

// HandleUserBilling renders the subscription and credits overview.
func HandleUserBilling(c *fiber.Ctx) error {
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

	overview := viewmodel.BillingOverview{
		Tier:            tierLabel(profile.SubscriptionTier),
		Country:         derefString(settings.SubCountry),
		Credits:         profile.Credits,
		AutoTopupActive: settings.AutoTopupActive,
		HasPaymentCard:  profile.StripePaymentMethodID != "",
	}
	if settings.AutoTopupAmount != nil {
		overview.AutoTopupAmount = *settings.AutoTopupAmount
	}
	if profile.NextBillingDate > 0 {
		overview.NextBillingDate = time.Unix(profile.NextBillingDate, 0).Format("January 2, 2006")
	}

	monthAgo := time.Now().AddDate(0, -1, 0)
	series, _ := repos.Usage.SeriesByUser(uc.UserID, monthAgo, time.Now())
	points := make([]viewmodel.UsagePoint, 0, len(series))
	for _, p := range series {
		points = append(points, viewmodel.UsagePoint{Timestamp: p.Timestamp, Credits: p.Credits})
	}

	data := layoutMap(c, " | Billing")
	data["Overview"] = overview
	data["Usage"] = points
	data["HasSubscription"] = profile.SubscriptionTier != nil
	return c.Render("user/billing", data, "layouts/main")
}

// HandleSubscriptionCheckout starts a hosted checkout for the plan that
// matches the user's phone number country. When the user already has a
// subscription the new one is tagged as a plan change so the webhook flow
// replaces instead of stacking.
func HandleSubscriptionCheckout(c *fiber.Ctx) error {
	uc := usercontext.GetUserContext(c)
	catalog, client, _, _ := billingDeps()
	repos := repository.GetGlobalRepositories()

	user, err := repos.User.GetByID(uc.UserID)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load user")
	}
	if user.PhoneNumber == "" {
		fm := fiber.Map{
			"type":    "error",
			"message": "Add your phone number before subscribing",
		}
		return flash.WithError(c, fm).Redirect("/user/profile")
	}

	country := user.PhoneNumberCountry
	if country == "" {
		country = "OTHER"
	}
	priceID := catalog.CheckoutPriceID(country)
	if priceID == "" {
		fm := fiber.Map{
			"type":    "error",
			"message": "No plan is configured for your region yet",
		}
		return flash.WithError(c, fm).Redirect(constants.BillingRoute)
	}

	customerID, err := ensureStripeCustomer(c, uc.UserID)
	if err != nil {
		log.Printf("billing: customer setup failed for user %d: %v", uc.UserID, err)
		fm := fiber.Map{
			"type":    "error",
			"message": "Could not start checkout, please try again",
		}
		return flash.WithError(c, fm).Redirect(constants.BillingRoute)
	}

	hasTier, err := repos.Billing.HasActiveTier(uc.UserID)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load billing profile")
	}

	params := billing.CheckoutSessionParams{
		Mode:       "subscription",
		CustomerID: customerID,
		SuccessURL: publicBaseURL() + "/user/billing/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  publicBaseURL() + "/user/billing/cancelled",
		LineItems: []billing.CheckoutLineItem{
			{PriceID: priceID, Quantity: 1},
		},
		SubscriptionMetadata:  map[string]string{"user_id": strconv.FormatUint(uint64(uc.UserID), 10)},
		AllowPromotionCodes:   true,
		CollectBillingAddress: true,
	}
	if c.FormValue("include_device") != "" && catalog.HardwarePriceID() != "" {
		params.LineItems = append(params.LineItems, billing.CheckoutLineItem{
			PriceID: catalog.HardwarePriceID(), Quantity: 1,
		})
	}
	if hasTier {
		params.SubscriptionMetadata["plan_change"] = "true"
	}
	// New US/CA customers get a trial; plan changers keep their cycle.
	if !hasTier && (country == "US" || country == "CA") {
		params.TrialPeriodDays = subscriptionTrialDays
	}

	sessn, err := client.CreateCheckoutSession(c.Context(), params)
	if err != nil {
		log.Printf("billing: checkout session failed for user %d: %v", uc.UserID, err)
		fm := fiber.Map{
			"type":    "error",
			"message": "Could not start checkout, please try again",
		}
		return flash.WithError(c, fm).Redirect(constants.BillingRoute)
	}

	if err := repos.Billing.SetCheckoutSessionID(uc.UserID, sessn.ID); err != nil {
		log.Printf("billing: failed to store checkout session for user %d: %v", uc.UserID, err)
	}

	return c.Redirect(sessn.URL, fiber.StatusSeeOther)
}

// HandleTopupCheckout starts a one-time payment for message credits. The
// card is saved for off-session use so auto top-up can charge it later.
func HandleTopupCheckout(c *fiber.Ctx) error {
	uc := usercontext.GetUserContext(c)
	catalog, client, _, _ := billingDeps()
	repos := repository.GetGlobalRepositories()

	amount, err := strconv.Atoi(strings.TrimSpace(c.FormValue("amount")))
	if err != nil || amount < minTopupAmount || amount > maxTopupAmount {
		fm := fiber.Map{
			"type":    "error",
			"message": fmt.Sprintf("Top-up amount must be between %d and %d", minTopupAmount, maxTopupAmount),
		}
		return flash.WithError(c, fm).Redirect(constants.BillingRoute)
	}

	if catalog.CreditsProductID() == "" {
		fm := fiber.Map{
			"type":    "error",
			"message": "Credit top-ups are not available right now",
		}
		return flash.WithError(c, fm).Redirect(constants.BillingRoute)
	}

	customerID, err := ensureStripeCustomer(c, uc.UserID)
	if err != nil {
		log.Printf("billing: customer setup failed for user %d: %v", uc.UserID, err)
		fm := fiber.Map{
			"type":    "error",
			"message": "Could not start checkout, please try again",
		}
		return flash.WithError(c, fm).Redirect(constants.BillingRoute)
	}

	sessn, err := client.CreateCheckoutSession(c.Context(), billing.CheckoutSessionParams{
		Mode:                        "payment",
		CustomerID:                  customerID,
		SuccessURL:                  publicBaseURL() + "/user/billing/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:                   publicBaseURL() + "/user/billing/cancelled",
		PriceDataCurrency:           "usd",
		PriceDataProductID:          catalog.CreditsProductID(),
		PriceDataUnitAmount:         int64(amount) * 100,
		SavePaymentMethodOffSession: true,
	})
	if err != nil {
		log.Printf("billing: top-up session failed for user %d: %v", uc.UserID, err)
		fm := fiber.Map{
			"type":    "error",
			"message": "Could not start checkout, please try again",
		}
		return flash.WithError(c, fm).Redirect(constants.BillingRoute)
	}

	if err := repos.Billing.SetCheckoutSessionID(uc.UserID, sessn.ID); err != nil {
		log.Printf("billing: failed to store checkout session for user %d: %v", uc.UserID, err)
	}

	return c.Redirect(sessn.URL, fiber.StatusSeeOther)
}

// HandleCustomerPortal redirects to the provider's self-service portal.
func HandleCustomerPortal(c *fiber.Ctx) error {
	uc := usercontext.GetUserContext(c)
	_, client, _, _ := billingDeps()
	repos := repository.GetGlobalRepositories()

	profile, err := repos.Billing.GetProfile(uc.UserID)
	if err != nil || profile == nil || profile.StripeCustomerID == "" {
		fm := fiber.Map{
			"type":    "error",
			"message": "No billing account yet",
		}
		return flash.WithError(c, fm).Redirect(constants.BillingRoute)
	}

	portal, err := client.CreateBillingPortalSession(c.Context(), profile.StripeCustomerID, publicBaseURL()+constants.BillingRoute)
	if err != nil {
		log.Printf("billing: portal session failed for user %d: %v", uc.UserID, err)
		fm := fiber.Map{
			"type":    "error",
			"message": "Could not open the billing portal, please try again",
		}
		return flash.WithError(c, fm).Redirect(constants.BillingRoute)
	}

	return c.Redirect(portal.URL, fiber.StatusSeeOther)
}

// HandleCheckoutSuccess lands the user after a completed checkout. The
// actual state change arrives via webhook; this only refreshes the cached
// tier and confirms.
func HandleCheckoutSuccess(c *fiber.Ctx) error {
	_ = session.DeleteSessionValue(c, "user_tier")

	fm := fiber.Map{
		"type":    "success",
		"message": "Payment received. Your account updates within a few seconds.",
	}
	return flash.WithSuccess(c, fm).Redirect(constants.BillingRoute)
}

// HandleCheckoutCancelled lands the user after an abandoned checkout.
func HandleCheckoutCancelled(c *fiber.Ctx) error {
	fm := fiber.Map{
		"type":    "error",
		"message": "Checkout cancelled",
	}
	return flash.WithError(c, fm).Redirect(constants.BillingRoute)
}

// HandleStripeWebhook receives provider events. The signature is verified
// against the raw body, the event is stored idempotently, and only the
// first delivery of an event ID is processed.
func HandleStripeWebhook(c *fiber.Ctx) error {
	_, client, repo, reconciler := billingDeps()

	payload := c.Body()
	secret := env.GetEnv("STRIPE_WEBHOOK_SECRET", "")
	sigHeader := c.Get("Stripe-Signature")
	if secret == "" || !billing.VerifyStripeWebhookSignature(payload, sigHeader, secret, time.Now()) {
		log.Printf("billing: webhook signature verification failed")
		return c.Status(fiber.StatusBadRequest).SendString("invalid signature")
	}

	event, err := billing.ParseEvent(payload)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("invalid payload")
	}

	created, stored, err := repo.CreateWebhookEventIfNotExists(&models.BillingWebhookEvent{
		StripeEventID:  event.ID,
		EventType:      event.Type,
		PayloadJSON:    string(payload),
		SignatureValid: true,
	})
	if err != nil {
		log.Printf("billing: failed to record webhook event %s: %v", event.ID, err)
		return c.Status(fiber.StatusInternalServerError).SendString("storage error")
	}
	if !created {
		// Redeliveries of successfully processed events are acknowledged
		// without reprocessing; failed ones get another attempt.
		if stored.ProcessedAt != nil && stored.ProcessingError == "" {
			return c.SendString("duplicate")
		}
	}

	processingErr := dispatchWebhookEvent(c, event, client, reconciler)
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
		log.Printf("billing: webhook event %s (%s) failed: %v", event.ID, event.Type, processingErr)
	}
	if err := repo.MarkWebhookProcessed(stored.ID, errMsg); err != nil {
		log.Printf("billing: failed to mark webhook event %s processed: %v", event.ID, err)
	}

	if processingErr != nil {
		// Non-OK response makes the provider redeliver; the stored error
		// keeps the retry eligible for reprocessing.
		return c.Status(fiber.StatusInternalServerError).SendString("processing error")
	}
	return c.SendString("ok")
}

func dispatchWebhookEvent(c *fiber.Ctx, event *billing.Event, client *billing.StripeClient, reconciler *billing.Reconciler) error {
	switch event.Type {
	case billing.EventSubscriptionCreated, billing.EventSubscriptionUpdated, billing.EventSubscriptionDeleted:
		sub, err := event.Subscription()
		if err != nil {
			return err
		}
		return reconciler.HandleSubscriptionEvent(c.Context(), event.Type, sub)
	case billing.EventCheckoutSessionCompleted:
		return handleCheckoutCompleted(c, event, client)
	default:
		return nil
	}
}

// handleCheckoutCompleted credits one-time top-up payments and stores the
// card for off-session auto top-up charges.
func handleCheckoutCompleted(c *fiber.Ctx, event *billing.Event, client *billing.StripeClient) error {
	_, _, repo, _ := billingDeps()

	sessn, err := event.CheckoutSession()
	if err != nil {
		return err
	}
	if sessn.Mode != "payment" {
		// Subscription checkouts are fully handled by the subscription
		// lifecycle events.
		return nil
	}

	account, err := repo.FindAccountByCustomerID(sessn.Customer.String())
	if err != nil {
		return err
	}
	if account == nil {
		log.Printf("billing: checkout session %s for unknown customer %s", sessn.ID, sessn.Customer)
		return nil
	}

	credits := float64(sessn.AmountSubtotal) / 100.0
	if credits > 0 {
		if err := repo.AddCredits(account.UserID, credits); err != nil {
			return err
		}
	}

	if sessn.PaymentIntent != "" {
		intent, err := client.RetrievePaymentIntent(c.Context(), sessn.PaymentIntent.String())
		if err != nil {
			log.Printf("billing: failed to retrieve payment intent %s: %v", sessn.PaymentIntent, err)
		} else if intent.PaymentMethod != "" {
			if err := repo.SetPaymentMethodID(account.UserID, intent.PaymentMethod.String()); err != nil {
				log.Printf("billing: failed to store payment method for user %d: %v", account.UserID, err)
			}
		}
	}

	if addr := event.ShippingAddress(); addr != nil {
		if err := client.UpdateCustomerAddress(c.Context(), sessn.Customer.String(), *addr); err != nil {
			log.Printf("billing: failed to sync customer address for %s: %v", sessn.Customer, err)
		}
	}

	return nil
}
