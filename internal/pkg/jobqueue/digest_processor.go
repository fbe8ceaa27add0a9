package jobqueue

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/lightline-app/lightline/app/models"
	"github.com/lightline-app/lightline/app/repository"
	"github.com/lightline-app/lightline/internal/pkg/billing"
	"github.com/lightline-app/lightline/internal/pkg/entitlements"
	"github.com/lightline-app/lightline/internal/pkg/mail"
	"github.com/lightline-app/lightline/internal/pkg/metrics/counter"
)

// digestCreditCost is charged per delivered digest.
const digestCreditCost = 1.0

// processDigestDeliveryJob delivers one scheduled digest slot. Users without
// the digest entitlement or without balance get a failed usage entry instead
// of a delivery.
func (q *Queue) processDigestDeliveryJob(ctx context.Context, job *Job) error {
	payload, err := DigestDeliveryJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid digest payload: %w", err)
	}

	repos := repository.GetGlobalRepositories()

	profile, err := repos.Billing.GetOrCreateProfile(payload.UserID)
	if err != nil {
		return err
	}

	tier := billing.Tier("")
	if profile.SubscriptionTier != nil {
		tier = billing.Tier(*profile.SubscriptionTier)
	}
	if !entitlements.HasFeature(tier, entitlements.FeatureDigests) {
		return repos.Usage.Log(&models.UsageLog{
			UserID:       payload.UserID,
			ActivityType: models.UsageActivityDigest,
			Success:      false,
			Reason:       "tier has no digest access",
		})
	}
	if profile.Credits < digestCreditCost {
		return repos.Usage.Log(&models.UsageLog{
			UserID:       payload.UserID,
			ActivityType: models.UsageActivityDigest,
			Success:      false,
			Reason:       "insufficient credits",
		})
	}

	if err := q.deliverDigest(payload.UserID, payload.Slot); err != nil {
		return err
	}

	if err := repos.Usage.Log(&models.UsageLog{
		UserID:       payload.UserID,
		ActivityType: models.UsageActivityDigest,
		Credits:      digestCreditCost,
		Success:      true,
	}); err != nil {
		log.Errorf("[JobQueue] Failed to log digest usage for user %d: %v", payload.UserID, err)
	}
	if err := counter.AddCreditSpend(payload.UserID, digestCreditCost); err != nil {
		log.Errorf("[JobQueue] Failed to record digest spend for user %d: %v", payload.UserID, err)
	}
	return nil
}

// deliverDigest sends the digest over the user's notification channel.
// Email is the fallback channel when no messaging bridge connection exists.
func (q *Queue) deliverDigest(userID uint, slot string) error {
	repos := repository.GetGlobalRepositories()

	user, err := repos.User.GetByID(userID)
	if err != nil {
		return err
	}

	conns, err := repos.Connection.ListByUser(userID)
	if err != nil {
		return err
	}
	for _, conn := range conns {
		if conn.Status == models.ConnectionStatusConnected {
			// A connected bridge picks digests up through the internal API;
			// enqueueing the usage entry is all that is needed here.
			return nil
		}
	}

	subject := fmt.Sprintf("Your %s digest", slot)
	body := fmt.Sprintf("<p>Hi %s,</p><p>your %s digest is ready in the app.</p>", user.Name, slot)
	return mail.SendMail(user.Email, subject, body)
}
