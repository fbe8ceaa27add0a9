package controllers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lightline-app/lightline/app/models"
	"github.com/lightline-app/lightline/internal/pkg/billing"
)

// fakeBillingRepo implements billing.Repository in memory and records the
// calls the webhook handler makes.
type fakeBillingRepo struct {
	accounts map[string]*billing.Account
	existing *models.BillingWebhookEvent

	findCalls    []string
	creditsAdded map[uint]float64
	markedIDs    []uint
	markErrors   []string
}

func (f *fakeBillingRepo) FindAccountByCustomerID(customerID string) (*billing.Account, error) {
	f.findCalls = append(f.findCalls, customerID)
	if strings.TrimSpace(customerID) == "" {
		return nil, nil
	}
	return f.accounts[customerID], nil
}

func (f *fakeBillingRepo) CountActiveDigests(userID uint) (int, error) { return 0, nil }

func (f *fakeBillingRepo) ApplyReconciliation(userID uint, res billing.ReconciliationResult) error {
	return nil
}

func (f *fakeBillingRepo) AddCredits(userID uint, amount float64) error {
	if f.creditsAdded == nil {
		f.creditsAdded = make(map[uint]float64)
	}
	f.creditsAdded[userID] += amount
	return nil
}

func (f *fakeBillingRepo) CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	if f.existing != nil && f.existing.StripeEventID == event.StripeEventID {
		return false, f.existing, nil
	}
	stored := *event
	stored.ID = 42
	return true, &stored, nil
}

func (f *fakeBillingRepo) MarkWebhookProcessed(id uint, processingError string) error {
	f.markedIDs = append(f.markedIDs, id)
	f.markErrors = append(f.markErrors, processingError)
	return nil
}

func (f *fakeBillingRepo) SetPaymentMethodID(userID uint, paymentMethodID string) error { return nil }

func newWebhookTestApp(t *testing.T, repo *fakeBillingRepo) *fiber.App {
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_test")

	catalog := billing.NewPriceCatalog(billing.CatalogConfig{})
	client := &billing.StripeClient{}
	setBillingDeps(catalog, client, repo, billing.NewReconciler(catalog, client, repo))

	app := fiber.New()
	app.Post("/api/stripe/webhook", HandleStripeWebhook)
	return app
}

func signedWebhookRequest(payload string) *http.Request {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte("whsec_test"))
	fmt.Fprintf(mac, "%d.%s", ts, payload)

	req := httptest.NewRequest(http.MethodPost, "/api/stripe/webhook", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil))))
	return req
}

const subscriptionUpdatedPayload = `{"id":"evt_dup","type":"customer.subscription.updated",` +
	`"data":{"object":{"id":"sub_1","customer":"cus_1","items":{"data":[]}}}}`

func TestWebhookDuplicateProcessedEventNotReprocessed(t *testing.T) {
	processedAt := time.Now().Add(-time.Hour)
	repo := &fakeBillingRepo{
		existing: &models.BillingWebhookEvent{
			ID:            7,
			StripeEventID: "evt_dup",
			ProcessedAt:   &processedAt,
		},
	}
	app := newWebhookTestApp(t, repo)

	resp, err := app.Test(signedWebhookRequest(subscriptionUpdatedPayload))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "duplicate", string(body))
	assert.Empty(t, repo.findCalls, "redelivered processed event must not reach the reconciler")
	assert.Empty(t, repo.markedIDs, "redelivered processed event must not be re-marked")
}

func TestWebhookFailedEventReprocessedOnRedelivery(t *testing.T) {
	// ProcessedAt nil marks an event whose first delivery never finished.
	repo := &fakeBillingRepo{
		existing: &models.BillingWebhookEvent{
			ID:            7,
			StripeEventID: "evt_dup",
		},
	}
	app := newWebhookTestApp(t, repo)

	resp, err := app.Test(signedWebhookRequest(subscriptionUpdatedPayload))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, []string{"cus_1"}, repo.findCalls, "failed event must be dispatched again")
	assert.Equal(t, []uint{7}, repo.markedIDs)
	assert.Equal(t, []string{""}, repo.markErrors)
}

func TestWebhookPaymentSessionWithoutCustomerNotCredited(t *testing.T) {
	repo := &fakeBillingRepo{
		accounts: map[string]*billing.Account{"cus_1": {UserID: 1}},
	}
	app := newWebhookTestApp(t, repo)

	payload := `{"id":"evt_pay_nocus","type":"checkout.session.completed",` +
		`"data":{"object":{"id":"cs_1","mode":"payment","amount_subtotal":1000}}}`
	resp, err := app.Test(signedWebhookRequest(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))
	assert.Empty(t, repo.creditsAdded, "session without a customer must credit nobody")
}

func TestWebhookPaymentSessionCreditsCustomer(t *testing.T) {
	repo := &fakeBillingRepo{
		accounts: map[string]*billing.Account{"cus_9": {UserID: 9}},
	}
	app := newWebhookTestApp(t, repo)

	payload := `{"id":"evt_pay","type":"checkout.session.completed",` +
		`"data":{"object":{"id":"cs_2","mode":"payment","customer":"cus_9","amount_subtotal":2500}}}`
	resp, err := app.Test(signedWebhookRequest(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 25.0, repo.creditsAdded[9])
	assert.Equal(t, []uint{42}, repo.markedIDs)
}
