package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lightline-app/lightline/internal/pkg/env"
)

const defaultStripeAPIBaseURL = "https://api.stripe.com/v1"

// StripeClient is a minimal REST client for the parts of the Stripe API this
// application uses. Requests are form-encoded, responses JSON, as per the
// Stripe wire protocol.
type StripeClient struct {
	SecretKey  string
	APIBaseURL string

	HTTPClient *http.Client
}

// NewStripeClientFromEnv builds the client from STRIPE_SECRET_KEY. The base
// URL can be overridden for tests.
func NewStripeClientFromEnv() *StripeClient {
	return &StripeClient{
		SecretKey:  strings.TrimSpace(env.GetEnv("STRIPE_SECRET_KEY", "")),
		APIBaseURL: strings.TrimSpace(env.GetEnv("STRIPE_API_BASE_URL", defaultStripeAPIBaseURL)),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Price is a subscription line item price reference.
type Price struct {
	ID string `json:"id"`
}

// SubscriptionItem is one line item on a subscription.
type SubscriptionItem struct {
	ID       string `json:"id"`
	Price    *Price `json:"price"`
	Quantity int64  `json:"quantity"`
}

// Subscription mirrors the provider subscription object fields this
// application reads.
type Subscription struct {
	ID                string            `json:"id"`
	Customer          ExpandableID      `json:"customer"`
	Status            string            `json:"status"`
	CurrentPeriodEnd  int64             `json:"current_period_end"`
	CancelAtPeriodEnd bool              `json:"cancel_at_period_end"`
	Metadata          map[string]string `json:"metadata"`
	Items             struct {
		Data []SubscriptionItem `json:"data"`
	} `json:"items"`
}

// Customer is a provider customer record.
type Customer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// CheckoutSession is a provider checkout session.
type CheckoutSession struct {
	ID             string       `json:"id"`
	URL            string       `json:"url"`
	Mode           string       `json:"mode"`
	Customer       ExpandableID `json:"customer"`
	PaymentIntent  ExpandableID `json:"payment_intent"`
	AmountSubtotal int64        `json:"amount_subtotal"`
}

// PortalSession is a provider billing portal session.
type PortalSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// PaymentIntent mirrors the provider payment intent fields used for the
// top-up and automatic charge flows.
type PaymentIntent struct {
	ID            string       `json:"id"`
	Status        string       `json:"status"`
	PaymentMethod ExpandableID `json:"payment_method"`
}

// ExpandableID decodes provider fields that are delivered either as a plain
// ID string or as an expanded object with an "id" key.
type ExpandableID string

func (e *ExpandableID) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*e = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*e = ExpandableID(s)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*e = ExpandableID(obj.ID)
	return nil
}

func (e ExpandableID) String() string { return string(e) }

// stripeError is the provider error envelope.
type stripeError struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// APIError is returned for non-2xx provider responses.
type APIError struct {
	StatusCode int
	Type       string
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("stripe: status=%d type=%s code=%s message=%s", e.StatusCode, e.Type, e.Code, e.Message)
}

// IsMissingResource reports whether the error is a provider "no such
// resource" response, used to detect stale stored customer IDs.
func IsMissingResource(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusNotFound ||
			strings.HasPrefix(apiErr.Code, "resource_missing")
	}
	return false
}

func (c *StripeClient) do(ctx context.Context, method, path string, form url.Values, out interface{}) error {
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("STRIPE_SECRET_KEY is not configured")
	}

	endpoint := strings.TrimRight(c.APIBaseURL, "/") + path
	var body io.Reader
	if method == http.MethodPost && form != nil {
		body = strings.NewReader(form.Encode())
	} else if form != nil {
		endpoint += "?" + form.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.SecretKey, "")
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var envlp stripeError
		_ = json.Unmarshal(raw, &envlp)
		return &APIError{
			StatusCode: resp.StatusCode,
			Type:       envlp.Error.Type,
			Code:       envlp.Error.Code,
			Message:    envlp.Error.Message,
		}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

// CreateCustomer registers a new provider customer.
func (c *StripeClient) CreateCustomer(ctx context.Context, email, name string) (*Customer, error) {
	form := url.Values{}
	form.Set("email", strings.TrimSpace(email))
	form.Set("name", strings.TrimSpace(name))

	var out Customer
	if err := c.do(ctx, http.MethodPost, "/customers", form, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RetrieveCustomer fetches a customer by ID.
func (c *StripeClient) RetrieveCustomer(ctx context.Context, customerID string) (*Customer, error) {
	var out Customer
	if err := c.do(ctx, http.MethodGet, "/customers/"+url.PathEscape(customerID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CustomerAddress is a postal address synced back after checkout.
type CustomerAddress struct {
	Line1      string
	City       string
	State      string
	PostalCode string
	Country    string
}

// UpdateCustomerAddress stores the billing address collected at checkout on
// the customer record.
func (c *StripeClient) UpdateCustomerAddress(ctx context.Context, customerID string, addr CustomerAddress) error {
	form := url.Values{}
	form.Set("address[line1]", addr.Line1)
	form.Set("address[city]", addr.City)
	form.Set("address[state]", addr.State)
	form.Set("address[postal_code]", addr.PostalCode)
	form.Set("address[country]", addr.Country)
	return c.do(ctx, http.MethodPost, "/customers/"+url.PathEscape(customerID), form, nil)
}

// ListActiveSubscriptions returns all active subscriptions for a customer.
func (c *StripeClient) ListActiveSubscriptions(ctx context.Context, customerID string) ([]Subscription, error) {
	form := url.Values{}
	form.Set("customer", customerID)
	form.Set("status", "active")
	form.Set("limit", "100")

	var out struct {
		Data []Subscription `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/subscriptions", form, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// CancelSubscriptionAtPeriodEnd schedules a cancellation so the current
// billing period runs out instead of terminating immediately.
func (c *StripeClient) CancelSubscriptionAtPeriodEnd(ctx context.Context, subscriptionID string) error {
	form := url.Values{}
	form.Set("cancel_at_period_end", "true")
	return c.do(ctx, http.MethodPost, "/subscriptions/"+url.PathEscape(subscriptionID), form, nil)
}

// CheckoutLineItem is one priced line on a checkout session.
type CheckoutLineItem struct {
	PriceID  string
	Quantity int64
}

// CheckoutSessionParams collects everything the two checkout flows need.
type CheckoutSessionParams struct {
	Mode       string // "subscription" or "payment"
	CustomerID string
	SuccessURL string
	CancelURL  string

	LineItems []CheckoutLineItem

	// One-time payment via ad-hoc price data (credit top-up).
	PriceDataCurrency   string
	PriceDataProductID  string
	PriceDataUnitAmount int64

	SubscriptionMetadata map[string]string
	TrialPeriodDays      int64

	AllowPromotionCodes       bool
	CollectBillingAddress     bool
	CollectShippingCountries  []string
	SavePaymentMethodOffSession bool
}

// CreateCheckoutSession creates a hosted checkout session.
func (c *StripeClient) CreateCheckoutSession(ctx context.Context, p CheckoutSessionParams) (*CheckoutSession, error) {
	form := url.Values{}
	form.Set("mode", p.Mode)
	form.Set("customer", p.CustomerID)
	form.Set("success_url", p.SuccessURL)
	form.Set("cancel_url", p.CancelURL)
	form.Set("automatic_tax[enabled]", "true")
	form.Set("customer_update[address]", "auto")

	for i, li := range p.LineItems {
		prefix := fmt.Sprintf("line_items[%d]", i)
		form.Set(prefix+"[price]", li.PriceID)
		form.Set(prefix+"[quantity]", strconv.FormatInt(li.Quantity, 10))
	}
	if p.PriceDataProductID != "" {
		form.Set("line_items[0][price_data][currency]", p.PriceDataCurrency)
		form.Set("line_items[0][price_data][product]", p.PriceDataProductID)
		form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(p.PriceDataUnitAmount, 10))
		form.Set("line_items[0][quantity]", "1")
	}

	for k, v := range p.SubscriptionMetadata {
		form.Set("subscription_data[metadata]["+k+"]", v)
	}
	if p.TrialPeriodDays > 0 {
		form.Set("subscription_data[trial_period_days]", strconv.FormatInt(p.TrialPeriodDays, 10))
	}
	if p.AllowPromotionCodes {
		form.Set("allow_promotion_codes", "true")
	}
	if p.CollectBillingAddress {
		form.Set("billing_address_collection", "required")
	}
	for i, country := range p.CollectShippingCountries {
		form.Set(fmt.Sprintf("shipping_address_collection[allowed_countries][%d]", i), country)
	}
	if p.SavePaymentMethodOffSession {
		form.Set("payment_intent_data[setup_future_usage]", "off_session")
	}

	var out CheckoutSession
	if err := c.do(ctx, http.MethodPost, "/checkout/sessions", form, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateBillingPortalSession creates a customer self-service portal session.
func (c *StripeClient) CreateBillingPortalSession(ctx context.Context, customerID, returnURL string) (*PortalSession, error) {
	form := url.Values{}
	form.Set("customer", customerID)
	form.Set("return_url", returnURL)

	var out PortalSession
	if err := c.do(ctx, http.MethodPost, "/billing_portal/sessions", form, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RetrievePaymentIntent fetches a payment intent by ID.
func (c *StripeClient) RetrievePaymentIntent(ctx context.Context, paymentIntentID string) (*PaymentIntent, error) {
	var out PaymentIntent
	if err := c.do(ctx, http.MethodGet, "/payment_intents/"+url.PathEscape(paymentIntentID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateOffSessionPaymentIntent charges a stored payment method without user
// interaction (auto top-up).
func (c *StripeClient) CreateOffSessionPaymentIntent(ctx context.Context, customerID, paymentMethodID, currency string, amountMinorUnits int64) (*PaymentIntent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amountMinorUnits, 10))
	form.Set("currency", currency)
	form.Set("customer", customerID)
	form.Set("payment_method", paymentMethodID)
	form.Set("confirm", "true")
	form.Set("off_session", "true")
	form.Set("payment_method_types[0]", "card")

	var out PaymentIntent
	if err := c.do(ctx, http.MethodPost, "/payment_intents", form, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
