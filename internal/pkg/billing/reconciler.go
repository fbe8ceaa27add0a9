package billing

import (
	"context"
	"errors"
	"log"
	"time"
)

// metadataPlanChange tags subscriptions that replace another one during an
// upgrade/downgrade. Update and delete events carrying it are driven
// entirely by the created/deleted events of the counterpart subscription
// and must not be processed again here.
const metadataPlanChange = "plan_change"

// signupBonusCredits is granted once per subscription-created event to
// customers in the eligible launch countries.
const signupBonusCredits = 10.0

// signupBonusCountries are the phone-number countries eligible for the
// hosted-plan signup credit bonus.
var signupBonusCountries = map[string]struct{}{
	"FI": {}, "UK": {}, "AU": {}, "NL": {},
}

// SubscriptionAPI is the provider surface the reconciler calls back into.
type SubscriptionAPI interface {
	ListActiveSubscriptions(ctx context.Context, customerID string) ([]Subscription, error)
	CancelSubscriptionAtPeriodEnd(ctx context.Context, subscriptionID string) error
}

// Account is the local billing state the reconciler reads before deciding.
type Account struct {
	UserID       uint
	PhoneCountry string
	Tier         Tier // "" when the account has no subscription tier
}

// AccountStore provides the persistence the reconciler needs. Implemented
// by the GORM-backed repository in this package.
type AccountStore interface {
	// FindAccountByCustomerID resolves a provider customer reference to a
	// local account, or (nil, nil) when no such account exists. Blank
	// customer IDs resolve to no account.
	FindAccountByCustomerID(customerID string) (*Account, error)
	// CountActiveDigests returns how many of the morning/day/evening digest
	// slots are configured for the user (0–3).
	CountActiveDigests(userID uint) (int, error)
	// ApplyReconciliation writes a reconciliation result in one transaction.
	ApplyReconciliation(userID uint, res ReconciliationResult) error
	// AddCredits increments the credit balance (signup bonus).
	AddCredits(userID uint, amount float64) error
}

// ReconciliationResult is the single output shape of every subscription
// lifecycle event. Tier and Country are always applied (nil clears the
// column); Credits and NextBillingDate are applied only when set, since the
// delete path never touches them.
type ReconciliationResult struct {
	Tier            *Tier
	Country         *string
	Credits         *float64
	NextBillingDate *int64
}

// Reconciler derives an account's subscription tier, country and credit
// allowance from provider lifecycle events.
type Reconciler struct {
	catalog  *PriceCatalog
	provider SubscriptionAPI
	store    AccountStore

	// now is swappable in tests.
	now func() time.Time
}

// NewReconciler wires the reconciler from its three collaborators.
func NewReconciler(catalog *PriceCatalog, provider SubscriptionAPI, store AccountStore) *Reconciler {
	return &Reconciler{
		catalog:  catalog,
		provider: provider,
		store:    store,
		now:      time.Now,
	}
}

// HandleSubscriptionEvent dispatches a verified subscription lifecycle
// event. Returned errors are infrastructure failures (store/provider); a
// subscription that merely does not warrant changes is not an error.
func (r *Reconciler) HandleSubscriptionEvent(ctx context.Context, eventType string, sub *Subscription) error {
	if sub == nil {
		return errors.New("nil subscription")
	}

	switch eventType {
	case EventSubscriptionCreated:
		if err := r.handleCreated(ctx, sub); err != nil {
			return err
		}
		return r.applyActiveSubscription(ctx, sub)
	case EventSubscriptionUpdated:
		if sub.Metadata[metadataPlanChange] == "true" {
			log.Printf("billing: skipping update for subscription %s (plan change in progress)", sub.ID)
			return nil
		}
		return r.applyActiveSubscription(ctx, sub)
	case EventSubscriptionDeleted:
		if sub.Metadata[metadataPlanChange] == "true" {
			log.Printf("billing: skipping deletion of subscription %s (plan change in progress)", sub.ID)
			return nil
		}
		return r.handleDeleted(ctx, sub)
	default:
		return nil
	}
}

// handleCreated schedules cancellation of every other active subscription
// for the customer and grants the signup bonus where eligible. Cancellation
// failures are logged and do not abort the event.
func (r *Reconciler) handleCreated(ctx context.Context, sub *Subscription) error {
	customerID := sub.Customer.String()

	existing, err := r.provider.ListActiveSubscriptions(ctx, customerID)
	if err != nil {
		return err
	}
	for _, other := range existing {
		if other.ID == sub.ID {
			continue
		}
		if err := r.provider.CancelSubscriptionAtPeriodEnd(ctx, other.ID); err != nil {
			log.Printf("billing: failed to schedule cancellation of subscription %s: %v", other.ID, err)
		}
	}

	account, err := r.store.FindAccountByCustomerID(customerID)
	if err != nil || account == nil {
		return err
	}

	basePrice := r.catalog.BasePriceID(sub.Items.Data)
	info := r.catalog.Resolve(basePrice)
	_, eligible := signupBonusCountries[account.PhoneCountry]
	isHosted := normalizeTier(info.Tier) == TierHosted && !r.catalog.HasDigitalDetoxFee(sub.Items.Data)
	if eligible && isHosted {
		if err := r.store.AddCredits(account.UserID, signupBonusCredits); err != nil {
			log.Printf("billing: failed to grant signup credits for user %d: %v", account.UserID, err)
		}
	}
	return nil
}

// applyActiveSubscription resolves the subscription's plan, computes the
// monthly allowance and persists the full reconciliation result.
func (r *Reconciler) applyActiveSubscription(ctx context.Context, sub *Subscription) error {
	account, err := r.store.FindAccountByCustomerID(sub.Customer.String())
	if err != nil || account == nil {
		return err
	}

	basePrice := r.catalog.BasePriceID(sub.Items.Data)
	if basePrice == "" {
		log.Printf("billing: subscription %s has no base price, skipping", sub.ID)
		return nil
	}

	digests, err := r.store.CountActiveDigests(account.UserID)
	if err != nil {
		log.Printf("billing: failed to count digests for user %d: %v", account.UserID, err)
		digests = 0
	}

	res := r.resultForActiveSubscription(sub, account, basePrice, digests)
	return r.store.ApplyReconciliation(account.UserID, res)
}

func (r *Reconciler) resultForActiveSubscription(sub *Subscription, account *Account, basePrice string, digests int) ReconciliationResult {
	info := r.catalog.Resolve(basePrice)

	credits, tier := r.catalog.ComputeAllowance(AllowanceInput{
		Tier:             info.Tier,
		BasePriceID:      basePrice,
		DaysUntilBilling: DaysUntilBilling(sub.CurrentPeriodEnd, r.now()),
		ActiveDigests:    digests,
		PhoneCountry:     account.PhoneCountry,
		HasDigitalDetox:  r.catalog.HasDigitalDetoxFee(sub.Items.Data),
	})

	res := ReconciliationResult{
		Tier:            &tier,
		Credits:         &credits,
		NextBillingDate: &sub.CurrentPeriodEnd,
	}
	if info.Country != "" {
		country := info.Country
		res.Country = &country
	}
	return res
}

// handleDeleted updates tier/country after a subscription ends. The stored
// tier is only touched when it matches the deleted subscription's tier, so
// a stale deletion event cannot clobber a newer subscription's state.
// Credits are never cleared here; they persist until exhausted or
// overwritten by a later event.
func (r *Reconciler) handleDeleted(ctx context.Context, sub *Subscription) error {
	customerID := sub.Customer.String()
	account, err := r.store.FindAccountByCustomerID(customerID)
	if err != nil || account == nil {
		return err
	}

	remaining, err := r.provider.ListActiveSubscriptions(ctx, customerID)
	if err != nil {
		return err
	}

	deletedTier := r.catalog.Resolve(r.catalog.BasePriceID(sub.Items.Data)).Tier
	res := r.resultForDeletion(deletedTier, account.Tier, remaining)
	if res == nil {
		log.Printf("billing: deleted subscription tier %q does not match stored tier %q for user %d, skipping", deletedTier, account.Tier, account.UserID)
		return nil
	}
	return r.store.ApplyReconciliation(account.UserID, *res)
}

func (r *Reconciler) resultForDeletion(deletedTier, currentTier Tier, remaining []Subscription) *ReconciliationResult {
	if deletedTier != currentTier {
		return nil
	}

	if len(remaining) == 0 {
		// Last subscription gone: clear tier and country, keep credits.
		return &ReconciliationResult{}
	}

	plans := make([]PlanInfo, 0, len(remaining))
	for i := range remaining {
		if basePrice := r.catalog.BasePriceID(remaining[i].Items.Data); basePrice != "" {
			plans = append(plans, r.catalog.Resolve(basePrice))
		}
	}
	best := MaxTier(plans)
	if best == nil {
		return &ReconciliationResult{}
	}

	res := &ReconciliationResult{Tier: &best.Tier}
	if best.Country != "" {
		country := best.Country
		res.Country = &country
	}
	return res
}
