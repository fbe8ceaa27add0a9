package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"
)

func signWebhook(payload []byte, secret string, timestamp int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", timestamp, payload)
	return fmt.Sprintf("t=%d,v1=%s", timestamp, hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifyStripeWebhookSignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"customer.subscription.created"}`)
	secret := "whsec_test"
	now := time.Unix(1_700_000_000, 0)

	valid := signWebhook(payload, secret, now.Unix())
	if !VerifyStripeWebhookSignature(payload, valid, secret, now) {
		t.Fatal("valid signature rejected")
	}

	// Multiple v1 entries: one valid is enough.
	multi := signWebhook(payload, secret, now.Unix()) + ",v1=" + hex.EncodeToString(make([]byte, 32))
	if !VerifyStripeWebhookSignature(payload, multi, secret, now) {
		t.Fatal("header with one valid v1 among several rejected")
	}
}

func TestVerifyStripeWebhookSignatureRejects(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	secret := "whsec_test"
	now := time.Unix(1_700_000_000, 0)

	tests := []struct {
		name    string
		payload []byte
		header  string
		secret  string
		now     time.Time
	}{
		{"empty header", payload, "", secret, now},
		{"empty secret", payload, signWebhook(payload, secret, now.Unix()), "", now},
		{"wrong secret", payload, signWebhook(payload, "whsec_other", now.Unix()), secret, now},
		{"tampered payload", []byte(`{"id":"evt_2"}`), signWebhook(payload, secret, now.Unix()), secret, now},
		{"stale timestamp", payload, signWebhook(payload, secret, now.Add(-6*time.Minute).Unix()), secret, now},
		{"future timestamp", payload, signWebhook(payload, secret, now.Add(6*time.Minute).Unix()), secret, now},
		{"missing timestamp", payload, "v1=deadbeef", secret, now},
		{"garbage timestamp", payload, "t=abc,v1=deadbeef", secret, now},
		{"no signatures", payload, fmt.Sprintf("t=%d", now.Unix()), secret, now},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if VerifyStripeWebhookSignature(tt.payload, tt.header, tt.secret, tt.now) {
				t.Fatal("expected verification to fail")
			}
		})
	}
}
