package billing

import "testing"

func TestParseEventSubscription(t *testing.T) {
	payload := []byte(`{
		"id": "evt_1",
		"type": "customer.subscription.updated",
		"data": {
			"object": {
				"id": "sub_1",
				"customer": "cus_1",
				"status": "active",
				"current_period_end": 1700864000,
				"metadata": {"plan_change": "true"},
				"items": {"data": [{"id": "si_1", "price": {"id": "price_sentinel_us"}, "quantity": 1}]}
			}
		}
	}`)

	ev, err := ParseEvent(payload)
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	if ev.ID != "evt_1" || ev.Type != EventSubscriptionUpdated {
		t.Fatalf("event = %+v", ev)
	}

	sub, err := ev.Subscription()
	if err != nil {
		t.Fatalf("Subscription: %v", err)
	}
	if sub.ID != "sub_1" || sub.Customer.String() != "cus_1" {
		t.Fatalf("subscription = %+v", sub)
	}
	if sub.CurrentPeriodEnd != 1700864000 || sub.Metadata["plan_change"] != "true" {
		t.Fatalf("subscription fields = %+v", sub)
	}
	if len(sub.Items.Data) != 1 || sub.Items.Data[0].Price.ID != "price_sentinel_us" {
		t.Fatalf("items = %+v", sub.Items.Data)
	}
}

func TestParseEventExpandedCustomer(t *testing.T) {
	// Customer delivered as an expanded object instead of a bare ID string.
	payload := []byte(`{
		"id": "evt_2",
		"type": "customer.subscription.created",
		"data": {"object": {"id": "sub_2", "customer": {"id": "cus_2", "email": "a@b.c"}}}
	}`)

	ev, err := ParseEvent(payload)
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	sub, err := ev.Subscription()
	if err != nil {
		t.Fatalf("Subscription: %v", err)
	}
	if sub.Customer.String() != "cus_2" {
		t.Fatalf("customer = %q, want cus_2", sub.Customer)
	}
}

func TestParseEventCheckoutSession(t *testing.T) {
	payload := []byte(`{
		"id": "evt_3",
		"type": "checkout.session.completed",
		"data": {
			"object": {
				"id": "cs_1",
				"mode": "payment",
				"customer": "cus_3",
				"payment_intent": "pi_1",
				"amount_subtotal": 500,
				"shipping_details": {"address": {"line1": "1 Main St", "city": "Helsinki", "postal_code": "00100", "country": "FI"}}
			}
		}
	}`)

	ev, err := ParseEvent(payload)
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	session, err := ev.CheckoutSession()
	if err != nil {
		t.Fatalf("CheckoutSession: %v", err)
	}
	if session.ID != "cs_1" || session.Mode != "payment" || session.PaymentIntent.String() != "pi_1" {
		t.Fatalf("session = %+v", session)
	}
	if session.AmountSubtotal != 500 {
		t.Fatalf("amount_subtotal = %d, want 500", session.AmountSubtotal)
	}

	addr := ev.ShippingAddress()
	if addr == nil || addr.Country != "FI" || addr.City != "Helsinki" {
		t.Fatalf("address = %+v", addr)
	}
}

func TestParseEventErrors(t *testing.T) {
	if _, err := ParseEvent([]byte(`not json`)); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
	if _, err := ParseEvent([]byte(`{"id":"evt_x"}`)); err == nil {
		t.Fatal("expected error for missing type")
	}

	ev, err := ParseEvent([]byte(`{"id":"evt_y","type":"customer.subscription.created","data":{"object":{}}}`))
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	if _, err := ev.Subscription(); err == nil {
		t.Fatal("expected error for object without subscription id")
	}
	if addr := ev.ShippingAddress(); addr != nil {
		t.Fatalf("expected nil address, got %+v", addr)
	}
}
