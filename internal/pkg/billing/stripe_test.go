package billing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestStripeClient(handler http.HandlerFunc) (*StripeClient, *httptest.Server) {
	srv := httptest.NewServer(handler)
	client := &StripeClient{
		SecretKey:  "sk_test_123",
		APIBaseURL: srv.URL,
		HTTPClient: srv.Client(),
	}
	return client, srv
}

func TestListActiveSubscriptions(t *testing.T) {
	client, srv := newTestStripeClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/subscriptions" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if user, _, _ := r.BasicAuth(); user != "sk_test_123" {
			t.Fatalf("unexpected basic auth user %q", user)
		}
		q := r.URL.Query()
		if q.Get("customer") != "cus_1" || q.Get("status") != "active" {
			t.Fatalf("unexpected query %v", q)
		}
		w.Write([]byte(`{"data":[{"id":"sub_1","customer":"cus_1","status":"active","items":{"data":[{"price":{"id":"price_x"}}]}}]}`))
	})
	defer srv.Close()

	subs, err := client.ListActiveSubscriptions(context.Background(), "cus_1")
	if err != nil {
		t.Fatalf("ListActiveSubscriptions: %v", err)
	}
	if len(subs) != 1 || subs[0].ID != "sub_1" || subs[0].Items.Data[0].Price.ID != "price_x" {
		t.Fatalf("subs = %+v", subs)
	}
}

func TestCancelSubscriptionAtPeriodEnd(t *testing.T) {
	var gotForm string
	client, srv := newTestStripeClient(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/subscriptions/sub_1" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		r.ParseForm()
		gotForm = r.PostForm.Get("cancel_at_period_end")
		w.Write([]byte(`{"id":"sub_1","cancel_at_period_end":true}`))
	})
	defer srv.Close()

	if err := client.CancelSubscriptionAtPeriodEnd(context.Background(), "sub_1"); err != nil {
		t.Fatalf("CancelSubscriptionAtPeriodEnd: %v", err)
	}
	if gotForm != "true" {
		t.Fatalf("cancel_at_period_end = %q, want true", gotForm)
	}
}

func TestCreateCheckoutSessionForm(t *testing.T) {
	client, srv := newTestStripeClient(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		f := r.PostForm
		if f.Get("mode") != "subscription" || f.Get("customer") != "cus_1" {
			t.Fatalf("form = %v", f)
		}
		if f.Get("line_items[0][price]") != "price_hosted_us" || f.Get("line_items[0][quantity]") != "1" {
			t.Fatalf("line items = %v", f)
		}
		if f.Get("subscription_data[metadata][user_id]") != "42" {
			t.Fatalf("metadata = %v", f)
		}
		if f.Get("subscription_data[trial_period_days]") != "7" {
			t.Fatalf("trial = %v", f)
		}
		w.Write([]byte(`{"id":"cs_1","url":"https://checkout.example/cs_1"}`))
	})
	defer srv.Close()

	session, err := client.CreateCheckoutSession(context.Background(), CheckoutSessionParams{
		Mode:       "subscription",
		CustomerID: "cus_1",
		SuccessURL: "https://app.example/success",
		CancelURL:  "https://app.example/cancel",
		LineItems:  []CheckoutLineItem{{PriceID: "price_hosted_us", Quantity: 1}},
		SubscriptionMetadata: map[string]string{"user_id": "42"},
		TrialPeriodDays:      7,
	})
	if err != nil {
		t.Fatalf("CreateCheckoutSession: %v", err)
	}
	if session.ID != "cs_1" || session.URL != "https://checkout.example/cs_1" {
		t.Fatalf("session = %+v", session)
	}
}

func TestAPIErrorAndMissingResource(t *testing.T) {
	client, srv := newTestStripeClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"type":"invalid_request_error","code":"resource_missing","message":"No such customer"}}`))
	})
	defer srv.Close()

	_, err := client.RetrieveCustomer(context.Background(), "cus_gone")
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsMissingResource(err) {
		t.Fatalf("IsMissingResource(%v) = false", err)
	}

	apiErr, ok := err.(*APIError)
	if !ok || apiErr.StatusCode != http.StatusNotFound || apiErr.Code != "resource_missing" {
		t.Fatalf("err = %#v", err)
	}
}

func TestMissingSecretKey(t *testing.T) {
	client := &StripeClient{HTTPClient: http.DefaultClient}
	if _, err := client.RetrieveCustomer(context.Background(), "cus_1"); err == nil {
		t.Fatal("expected error for missing secret key")
	}
}
