package billing

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeProvider struct {
	active    []Subscription
	listErr   error
	cancelled []string
	cancelErr error
}

func (f *fakeProvider) ListActiveSubscriptions(ctx context.Context, customerID string) ([]Subscription, error) {
	return f.active, f.listErr
}

func (f *fakeProvider) CancelSubscriptionAtPeriodEnd(ctx context.Context, subscriptionID string) error {
	f.cancelled = append(f.cancelled, subscriptionID)
	return f.cancelErr
}

type fakeStore struct {
	account *Account
	digests int

	applied      []ReconciliationResult
	creditsAdded float64
	findErr      error
	applyErr     error
}

func (f *fakeStore) FindAccountByCustomerID(customerID string) (*Account, error) {
	return f.account, f.findErr
}

func (f *fakeStore) CountActiveDigests(userID uint) (int, error) {
	return f.digests, nil
}

func (f *fakeStore) ApplyReconciliation(userID uint, res ReconciliationResult) error {
	f.applied = append(f.applied, res)
	return f.applyErr
}

func (f *fakeStore) AddCredits(userID uint, amount float64) error {
	f.creditsAdded += amount
	return nil
}

func newTestReconciler(provider *fakeProvider, store *fakeStore) *Reconciler {
	r := NewReconciler(testCatalog(), provider, store)
	r.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	return r
}

func subWithPrice(id, customerID, priceID string) *Subscription {
	sub := &Subscription{ID: id, Customer: ExpandableID(customerID)}
	sub.Items.Data = []SubscriptionItem{{Price: &Price{ID: priceID}}}
	return sub
}

func TestHandleCreatedCancelsCompetingSubscriptions(t *testing.T) {
	sub := subWithPrice("sub_new", "cus_1", "price_sentinel_us")
	provider := &fakeProvider{active: []Subscription{
		*subWithPrice("sub_old", "cus_1", "price_basic_fi"),
		*sub,
	}}
	store := &fakeStore{account: &Account{UserID: 7, PhoneCountry: "US"}}

	r := newTestReconciler(provider, store)
	if err := r.HandleSubscriptionEvent(context.Background(), EventSubscriptionCreated, sub); err != nil {
		t.Fatalf("HandleSubscriptionEvent: %v", err)
	}

	if len(provider.cancelled) != 1 || provider.cancelled[0] != "sub_old" {
		t.Fatalf("cancelled = %v, want only sub_old", provider.cancelled)
	}
	if len(store.applied) != 1 {
		t.Fatalf("applied %d results, want 1", len(store.applied))
	}
}

func TestHandleCreatedCancellationFailureIsNonFatal(t *testing.T) {
	sub := subWithPrice("sub_new", "cus_1", "price_sentinel_us")
	provider := &fakeProvider{
		active:    []Subscription{*subWithPrice("sub_old", "cus_1", "price_basic_fi")},
		cancelErr: errors.New("provider down"),
	}
	store := &fakeStore{account: &Account{UserID: 7, PhoneCountry: "US"}}

	r := newTestReconciler(provider, store)
	if err := r.HandleSubscriptionEvent(context.Background(), EventSubscriptionCreated, sub); err != nil {
		t.Fatalf("cancellation failure must not abort the event: %v", err)
	}
	if len(store.applied) != 1 {
		t.Fatalf("applied %d results, want 1", len(store.applied))
	}
}

func TestHandleCreatedSignupBonus(t *testing.T) {
	tests := []struct {
		name    string
		country string
		priceID string
		detox   bool
		want    float64
	}{
		{"eligible FI hosted", "FI", "price_sentinel_fi", false, 10},
		{"eligible UK hosted", "UK", "price_sentinel_uk", false, 10},
		{"US not eligible", "US", "price_sentinel_us", false, 0},
		{"basic tier not eligible", "FI", "price_basic_fi", false, 0},
		{"detox suppresses bonus", "FI", "price_sentinel_fi", true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := subWithPrice("sub_1", "cus_1", tt.priceID)
			if tt.detox {
				sub.Items.Data = append(sub.Items.Data, SubscriptionItem{Price: &Price{ID: "price_detox_other"}})
			}
			provider := &fakeProvider{}
			store := &fakeStore{account: &Account{UserID: 1, PhoneCountry: tt.country}}

			r := newTestReconciler(provider, store)
			if err := r.HandleSubscriptionEvent(context.Background(), EventSubscriptionCreated, sub); err != nil {
				t.Fatalf("HandleSubscriptionEvent: %v", err)
			}
			if store.creditsAdded != tt.want {
				t.Fatalf("credits added = %v, want %v", store.creditsAdded, tt.want)
			}
		})
	}
}

func TestApplyActiveSubscriptionResult(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	sub := subWithPrice("sub_1", "cus_1", "price_sentinel_us")
	sub.CurrentPeriodEnd = now.Unix() + 10*secondsPerDay

	provider := &fakeProvider{}
	store := &fakeStore{account: &Account{UserID: 3, PhoneCountry: "US"}, digests: 2}

	r := newTestReconciler(provider, store)
	if err := r.HandleSubscriptionEvent(context.Background(), EventSubscriptionUpdated, sub); err != nil {
		t.Fatalf("HandleSubscriptionEvent: %v", err)
	}

	if len(store.applied) != 1 {
		t.Fatalf("applied %d results, want 1", len(store.applied))
	}
	res := store.applied[0]
	if res.Tier == nil || *res.Tier != TierHosted {
		t.Fatalf("tier = %v, want tier 2", res.Tier)
	}
	if res.Country == nil || *res.Country != "US" {
		t.Fatalf("country = %v, want US", res.Country)
	}
	if res.Credits == nil || *res.Credits != 380 {
		t.Fatalf("credits = %v, want 380", res.Credits)
	}
	if res.NextBillingDate == nil || *res.NextBillingDate != sub.CurrentPeriodEnd {
		t.Fatalf("next billing date = %v, want %d", res.NextBillingDate, sub.CurrentPeriodEnd)
	}
}

func TestUpdatedSkipsPlanChange(t *testing.T) {
	sub := subWithPrice("sub_1", "cus_1", "price_sentinel_us")
	sub.Metadata = map[string]string{"plan_change": "true"}

	store := &fakeStore{account: &Account{UserID: 3}}
	r := newTestReconciler(&fakeProvider{}, store)

	if err := r.HandleSubscriptionEvent(context.Background(), EventSubscriptionUpdated, sub); err != nil {
		t.Fatalf("HandleSubscriptionEvent: %v", err)
	}
	if len(store.applied) != 0 {
		t.Fatalf("plan-change update must not write, applied %d results", len(store.applied))
	}
}

func TestDeletedSkipsPlanChange(t *testing.T) {
	sub := subWithPrice("sub_1", "cus_1", "price_sentinel_us")
	sub.Metadata = map[string]string{"plan_change": "true"}

	store := &fakeStore{account: &Account{UserID: 3, Tier: TierHosted}}
	r := newTestReconciler(&fakeProvider{}, store)

	if err := r.HandleSubscriptionEvent(context.Background(), EventSubscriptionDeleted, sub); err != nil {
		t.Fatalf("HandleSubscriptionEvent: %v", err)
	}
	if len(store.applied) != 0 {
		t.Fatalf("plan-change deletion must not write, applied %d results", len(store.applied))
	}
}

func TestDeletedTierMismatchIsNoOp(t *testing.T) {
	// A stale deletion for a tier 1 subscription must not clobber the
	// account's current tier 2 state.
	sub := subWithPrice("sub_old", "cus_1", "price_basic_fi")
	store := &fakeStore{account: &Account{UserID: 3, Tier: TierHosted}}

	r := newTestReconciler(&fakeProvider{}, store)
	if err := r.HandleSubscriptionEvent(context.Background(), EventSubscriptionDeleted, sub); err != nil {
		t.Fatalf("HandleSubscriptionEvent: %v", err)
	}
	if len(store.applied) != 0 {
		t.Fatalf("mismatching deletion must not write, applied %d results", len(store.applied))
	}
}

func TestDeletedLastSubscriptionClearsTierKeepsCredits(t *testing.T) {
	sub := subWithPrice("sub_1", "cus_1", "price_sentinel_fi")
	store := &fakeStore{account: &Account{UserID: 3, Tier: TierHosted}}

	r := newTestReconciler(&fakeProvider{}, store)
	if err := r.HandleSubscriptionEvent(context.Background(), EventSubscriptionDeleted, sub); err != nil {
		t.Fatalf("HandleSubscriptionEvent: %v", err)
	}

	if len(store.applied) != 1 {
		t.Fatalf("applied %d results, want 1", len(store.applied))
	}
	res := store.applied[0]
	if res.Tier != nil || res.Country != nil {
		t.Fatalf("tier/country must be cleared, got %+v", res)
	}
	if res.Credits != nil || res.NextBillingDate != nil {
		t.Fatalf("credits and billing date must stay untouched, got %+v", res)
	}
}

func TestDeletedFallsBackToHighestRemainingTier(t *testing.T) {
	sub := subWithPrice("sub_gone", "cus_1", "price_hard_us")
	provider := &fakeProvider{active: []Subscription{
		*subWithPrice("sub_a", "cus_1", "price_basic_fi"),
		*subWithPrice("sub_b", "cus_1", "price_world_uk"),
	}}
	store := &fakeStore{account: &Account{UserID: 3, Tier: TierHosted}}

	r := newTestReconciler(provider, store)
	if err := r.HandleSubscriptionEvent(context.Background(), EventSubscriptionDeleted, sub); err != nil {
		t.Fatalf("HandleSubscriptionEvent: %v", err)
	}

	if len(store.applied) != 1 {
		t.Fatalf("applied %d results, want 1", len(store.applied))
	}
	res := store.applied[0]
	if res.Tier == nil || *res.Tier != TierHosted {
		t.Fatalf("tier = %v, want remaining tier 2", res.Tier)
	}
	if res.Country == nil || *res.Country != "UK" {
		t.Fatalf("country = %v, want UK", res.Country)
	}
	if res.Credits != nil {
		t.Fatalf("credits must stay untouched on deletion, got %v", *res.Credits)
	}
}

func TestUnknownCustomerIsIgnored(t *testing.T) {
	sub := subWithPrice("sub_1", "cus_unknown", "price_sentinel_us")
	store := &fakeStore{account: nil}

	r := newTestReconciler(&fakeProvider{}, store)
	if err := r.HandleSubscriptionEvent(context.Background(), EventSubscriptionUpdated, sub); err != nil {
		t.Fatalf("unknown customer must not error: %v", err)
	}
	if len(store.applied) != 0 {
		t.Fatalf("applied %d results for unknown customer", len(store.applied))
	}
}

func TestUnknownEventTypeIsIgnored(t *testing.T) {
	sub := subWithPrice("sub_1", "cus_1", "price_sentinel_us")
	store := &fakeStore{account: &Account{UserID: 3}}

	r := newTestReconciler(&fakeProvider{}, store)
	if err := r.HandleSubscriptionEvent(context.Background(), "invoice.paid", sub); err != nil {
		t.Fatalf("HandleSubscriptionEvent: %v", err)
	}
	if len(store.applied) != 0 {
		t.Fatalf("applied %d results for unhandled event type", len(store.applied))
	}
}
