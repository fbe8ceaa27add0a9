package billing

import (
	"encoding/json"
	"errors"
)

// Webhook event types the application dispatches on. All other event types
// are acknowledged and ignored.
const (
	EventSubscriptionCreated     = "customer.subscription.created"
	EventSubscriptionUpdated     = "customer.subscription.updated"
	EventSubscriptionDeleted     = "customer.subscription.deleted"
	EventCheckoutSessionCompleted = "checkout.session.completed"
)

// Event is a verified provider webhook event.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// ParseEvent decodes a webhook payload. The signature must already have been
// verified against the raw payload bytes.
func ParseEvent(payload []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, err
	}
	if ev.Type == "" {
		return nil, errors.New("webhook event missing type")
	}
	return &ev, nil
}

// Subscription decodes the event object as a subscription.
func (e *Event) Subscription() (*Subscription, error) {
	var sub Subscription
	if err := json.Unmarshal(e.Data.Object, &sub); err != nil {
		return nil, err
	}
	if sub.ID == "" {
		return nil, errors.New("webhook event object is not a subscription")
	}
	return &sub, nil
}

// CheckoutSession decodes the event object as a checkout session.
func (e *Event) CheckoutSession() (*CheckoutSession, error) {
	var session checkoutSessionPayload
	if err := json.Unmarshal(e.Data.Object, &session); err != nil {
		return nil, err
	}
	if session.ID == "" {
		return nil, errors.New("webhook event object is not a checkout session")
	}
	return &CheckoutSession{
		ID:             session.ID,
		URL:            session.URL,
		Mode:           session.Mode,
		Customer:       session.Customer,
		PaymentIntent:  session.PaymentIntent,
		AmountSubtotal: session.AmountSubtotal,
	}, nil
}

// ShippingAddress extracts the collected shipping/billing address from a
// checkout session payload, if present.
func (e *Event) ShippingAddress() *CustomerAddress {
	var session checkoutSessionPayload
	if err := json.Unmarshal(e.Data.Object, &session); err != nil {
		return nil
	}
	addr := session.ShippingDetails.Address
	if addr.Line1 == "" && addr.City == "" && addr.Country == "" {
		return nil
	}
	return &CustomerAddress{
		Line1:      addr.Line1,
		City:       addr.City,
		State:      addr.State,
		PostalCode: addr.PostalCode,
		Country:    addr.Country,
	}
}

type checkoutSessionPayload struct {
	ID              string       `json:"id"`
	URL             string       `json:"url"`
	Mode            string       `json:"mode"`
	Customer        ExpandableID `json:"customer"`
	PaymentIntent   ExpandableID `json:"payment_intent"`
	AmountSubtotal  int64        `json:"amount_subtotal"`
	ShippingDetails struct {
		Address struct {
			Line1      string `json:"line1"`
			City       string `json:"city"`
			State      string `json:"state"`
			PostalCode string `json:"postal_code"`
			Country    string `json:"country"`
		} `json:"address"`
	} `json:"shipping_details"`
}
