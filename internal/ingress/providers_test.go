package ingress

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"trustgate/internal/platform/config"
	"trustgate/pkg/requestcontext"
)

const (
	stripeSecret = "whsec_stripe_test"
	retellSecret = "whsec_retell_test"
	ghlSecret    = "whsec_ghl_test"
)

var testNow = time.Unix(1_700_000_000, 0)

func testVerifier() *Verifier {
	return NewVerifier(config.WebhookConfig{
		StripeSecret: stripeSecret,
		RetellSecret: retellSecret,
		TwilioSecret: "whsec_twilio_test",
		GHLSecret:    ghlSecret,
	})
}

func pinnedCtx() context.Context {
	return requestcontext.WithTime(context.Background(), testNow)
}

func hmacHex(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func stripeHeader(secret string, ts int64, body []byte) string {
	signed := fmt.Sprintf("%d.%s", ts, body)
	return fmt.Sprintf("t=%d,v1=%s", ts, hmacHex(secret, []byte(signed)))
}

func headers(kv ...string) http.Header {
	h := http.Header{}
	for i := 0; i+1 < len(kv); i += 2 {
		h.Set(kv[i], kv[i+1])
	}
	return h
}

func TestStripeVerify(t *testing.T) {
	v := testVerifier()
	body := []byte(`{"type":"invoice.paid"}`)

	tests := []struct {
		name    string
		headers http.Header
		body    []byte
		want    Reason
		ok      bool
	}{
		{
			name:    "valid signature",
			headers: headers("stripe-signature", stripeHeader(stripeSecret, testNow.Unix(), body)),
			body:    body,
			ok:      true,
		},
		{
			name:    "uppercase hex accepted",
			headers: headers("stripe-signature", fmt.Sprintf("t=%d,v1=%s", testNow.Unix(), strings.ToUpper(hmacHex(stripeSecret, fmt.Appendf(nil, "%d.%s", testNow.Unix(), body))))),
			body:    body,
			ok:      true,
		},
		{
			name:    "missing header",
			headers: headers(),
			body:    body,
			want:    ReasonMissingSignature,
		},
		{
			name:    "missing v1 element",
			headers: headers("stripe-signature", fmt.Sprintf("t=%d", testNow.Unix())),
			body:    body,
			want:    ReasonInvalidFormat,
		},
		{
			name:    "non-numeric timestamp",
			headers: headers("stripe-signature", "t=yesterday,v1=abc"),
			body:    body,
			want:    ReasonInvalidFormat,
		},
		{
			name:    "stale timestamp",
			headers: headers("stripe-signature", stripeHeader(stripeSecret, testNow.Add(-6*time.Minute).Unix(), body)),
			body:    body,
			want:    ReasonTimestampSkew,
		},
		{
			name:    "future timestamp",
			headers: headers("stripe-signature", stripeHeader(stripeSecret, testNow.Add(6*time.Minute).Unix(), body)),
			body:    body,
			want:    ReasonTimestampSkew,
		},
		{
			name:    "wrong secret",
			headers: headers("stripe-signature", stripeHeader("wrong", testNow.Unix(), body)),
			body:    body,
			want:    ReasonSignatureMismatch,
		},
		{
			name:    "tampered body",
			headers: headers("stripe-signature", stripeHeader(stripeSecret, testNow.Unix(), body)),
			body:    []byte(`{"type":"invoice.paid","amount":0}`),
			want:    ReasonSignatureMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := v.Verify(pinnedCtx(), ProviderStripe, tt.headers, tt.body)
			assert.Equal(t, tt.ok, result.OK)
			assert.Equal(t, tt.want, result.Reason)
		})
	}
}

func TestStripeSecretNotConfigured(t *testing.T) {
	v := NewVerifier(config.WebhookConfig{})
	body := []byte(`{}`)
	result := v.Verify(pinnedCtx(), ProviderStripe,
		headers("stripe-signature", stripeHeader(stripeSecret, testNow.Unix(), body)), body)
	assert.False(t, result.OK)
	assert.Equal(t, ReasonSecretNotConfigured, result.Reason)

	// Missing header is reported before the missing secret.
	result = v.Verify(pinnedCtx(), ProviderStripe, headers(), body)
	assert.Equal(t, ReasonMissingSignature, result.Reason)
}

func TestRetellVerify(t *testing.T) {
	v := testVerifier()
	body := []byte(`{"event":"call_ended"}`)

	t.Run("valid signature", func(t *testing.T) {
		result := v.Verify(pinnedCtx(), ProviderRetell,
			headers("x-retell-signature", hmacHex(retellSecret, body)), body)
		assert.True(t, result.OK)
	})

	t.Run("missing header", func(t *testing.T) {
		result := v.Verify(pinnedCtx(), ProviderRetell, headers(), body)
		assert.Equal(t, ReasonMissingSignature, result.Reason)
	})

	t.Run("wrong signature", func(t *testing.T) {
		result := v.Verify(pinnedCtx(), ProviderRetell,
			headers("x-retell-signature", hmacHex("wrong", body)), body)
		assert.Equal(t, ReasonSignatureMismatch, result.Reason)
	})
}

func TestTwilioVerify(t *testing.T) {
	v := testVerifier()
	body := []byte(`CallSid=CA123`)

	t.Run("missing header", func(t *testing.T) {
		result := v.Verify(pinnedCtx(), ProviderTwilio, headers(), body)
		assert.Equal(t, ReasonMissingSignature, result.Reason)
	})

	t.Run("present header is still rejected as not implemented", func(t *testing.T) {
		result := v.Verify(pinnedCtx(), ProviderTwilio,
			headers("x-twilio-signature", "sig"), body)
		assert.False(t, result.OK)
		assert.Equal(t, ReasonNotImplemented, result.Reason)
	})
}

func TestGHLVerify(t *testing.T) {
	v := testVerifier()

	sign := func(body []byte) http.Header {
		return headers("x-ghl-signature", hmacHex(ghlSecret, body))
	}

	t.Run("valid without timestamp", func(t *testing.T) {
		body := []byte(`{"contact_id":"c-1"}`)
		result := v.Verify(pinnedCtx(), ProviderGHL, sign(body), body)
		assert.True(t, result.OK)
	})

	t.Run("valid with fresh timestamp", func(t *testing.T) {
		body := fmt.Appendf(nil, `{"contact_id":"c-1","timestamp":%d}`, testNow.UnixMilli())
		result := v.Verify(pinnedCtx(), ProviderGHL, sign(body), body)
		assert.True(t, result.OK)
	})

	t.Run("missing header", func(t *testing.T) {
		result := v.Verify(pinnedCtx(), ProviderGHL, headers(), []byte(`{}`))
		assert.Equal(t, ReasonMissingSignature, result.Reason)
	})

	t.Run("non-json body", func(t *testing.T) {
		body := []byte(`not json`)
		result := v.Verify(pinnedCtx(), ProviderGHL, sign(body), body)
		assert.Equal(t, ReasonInvalidPayload, result.Reason)
	})

	t.Run("non-numeric timestamp", func(t *testing.T) {
		body := []byte(`{"timestamp":"noon"}`)
		result := v.Verify(pinnedCtx(), ProviderGHL, sign(body), body)
		assert.Equal(t, ReasonInvalidPayload, result.Reason)
	})

	t.Run("stale timestamp beats signature mismatch", func(t *testing.T) {
		body := fmt.Appendf(nil, `{"timestamp":%d}`, testNow.Add(-10*time.Minute).UnixMilli())
		// Deliberately wrong signature: the skew check still fires first.
		result := v.Verify(pinnedCtx(), ProviderGHL,
			headers("x-ghl-signature", "deadbeef"), body)
		assert.Equal(t, ReasonTimestampSkew, result.Reason)
	})

	t.Run("wrong signature", func(t *testing.T) {
		body := []byte(`{"contact_id":"c-1"}`)
		result := v.Verify(pinnedCtx(), ProviderGHL,
			headers("x-ghl-signature", hmacHex("wrong", body)), body)
		assert.Equal(t, ReasonSignatureMismatch, result.Reason)
	})
}

func TestUnsupportedProvider(t *testing.T) {
	result := testVerifier().Verify(pinnedCtx(), "hubspot", headers(), []byte(`{}`))
	assert.False(t, result.OK)
	assert.Equal(t, ReasonUnsupportedProvider, result.Reason)
}
