package jobqueue

import (
	"context"
	"fmt"
	"sync"

	"github.com/gofiber/fiber/v2/log"

	"github.com/lightline-app/lightline/app/repository"
	"github.com/lightline-app/lightline/internal/pkg/billing"
)

// autoTopupThreshold mirrors the balance floor used by the internal charge
// endpoint.
const autoTopupThreshold = 2.0

var (
	stripeOnce   sync.Once
	stripeClient *billing.StripeClient
)

func getStripeClient() *billing.StripeClient {
	stripeOnce.Do(func() {
		stripeClient = billing.NewStripeClientFromEnv()
	})
	return stripeClient
}

// processAutoTopupJob charges the user's saved card off-session when the
// balance is below the threshold and auto top-up is enabled.
func (q *Queue) processAutoTopupJob(ctx context.Context, job *Job) error {
	payload, err := AutoTopupJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid auto top-up payload: %w", err)
	}

	repos := repository.GetGlobalRepositories()

	settings, err := repos.Settings.Get(payload.UserID)
	if err != nil {
		return err
	}
	if !settings.AutoTopupActive || settings.AutoTopupAmount == nil || *settings.AutoTopupAmount <= 0 {
		return nil
	}

	profile, err := repos.Billing.GetProfile(payload.UserID)
	if err != nil {
		return err
	}
	if profile == nil || profile.Credits >= autoTopupThreshold {
		return nil
	}
	if profile.StripeCustomerID == "" || profile.StripePaymentMethodID == "" {
		log.Warnf("[JobQueue] Auto top-up for user %d skipped: no saved payment method", payload.UserID)
		return nil
	}

	amount := *settings.AutoTopupAmount
	intent, err := getStripeClient().CreateOffSessionPaymentIntent(ctx, profile.StripeCustomerID, profile.StripePaymentMethodID, "usd", int64(amount*100))
	if err != nil {
		return fmt.Errorf("off-session charge for user %d: %w", payload.UserID, err)
	}
	if intent.Status != "succeeded" {
		return fmt.Errorf("payment intent %s for user %d has status %q", intent.ID, payload.UserID, intent.Status)
	}

	if err := repos.Billing.IncreaseCredits(payload.UserID, amount); err != nil {
		return err
	}
	log.Infof("[JobQueue] Auto top-up charged %.2f for user %d (intent %s)", amount, payload.UserID, intent.ID)
	return nil
}
