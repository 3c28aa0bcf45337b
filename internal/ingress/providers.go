package ingress

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// maxTimestampSkew bounds how stale a signed timestamp may be before the
// delivery is rejected as a possible replay.
const maxTimestampSkew = 5 * time.Minute

// providerVerifier is one provider variant. Each implementation is a pure
// function of headers, body, its configured secret, and the injected clock.
// Adding a provider means adding a variant, not editing a central
// conditional.
type providerVerifier interface {
	Verify(headers http.Header, rawBody []byte, now time.Time) Result
}

// signHex computes the lowercase hex HMAC-SHA256 of payload under secret.
func signHex(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// equalSignatures compares two hex signatures in constant time. A length
// mismatch is an ordinary mismatch, never a panic.
func equalSignatures(expected, provided string) bool {
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(provided)))
}

// ----------------------------------------------------------------------------
// Stripe-style: stripe-signature: t=<unixTs>,v1=<hexHmacSha256>
// Signed payload is "{t}.{rawBody}".
// ----------------------------------------------------------------------------

type stripeVerifier struct {
	secret string
}

func (v stripeVerifier) Verify(headers http.Header, rawBody []byte, now time.Time) Result {
	header := headers.Get("stripe-signature")
	if header == "" {
		return failed(ReasonMissingSignature)
	}
	if v.secret == "" {
		return failed(ReasonSecretNotConfigured)
	}

	var tsPart, sigPart string
	for _, element := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(element), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			tsPart = value
		case "v1":
			sigPart = value
		}
	}
	if tsPart == "" || sigPart == "" {
		return failed(ReasonInvalidFormat)
	}
	ts, err := strconv.ParseInt(tsPart, 10, 64)
	if err != nil {
		return failed(ReasonInvalidFormat)
	}

	if skew := now.Unix() - ts; skew > int64(maxTimestampSkew.Seconds()) || skew < -int64(maxTimestampSkew.Seconds()) {
		return failed(ReasonTimestampSkew)
	}

	signed := append([]byte(tsPart+"."), rawBody...)
	if !equalSignatures(signHex(v.secret, signed), sigPart) {
		return failed(ReasonSignatureMismatch)
	}
	return ok()
}

// ----------------------------------------------------------------------------
// Retell-style: x-retell-signature: <hexHmacSha256(rawBody)>, no timestamp.
// ----------------------------------------------------------------------------

type retellVerifier struct {
	secret string
}

func (v retellVerifier) Verify(headers http.Header, rawBody []byte, _ time.Time) Result {
	signature := headers.Get("x-retell-signature")
	if signature == "" {
		return failed(ReasonMissingSignature)
	}
	if v.secret == "" {
		return failed(ReasonSecretNotConfigured)
	}
	if !equalSignatures(signHex(v.secret, rawBody), signature) {
		return failed(ReasonSignatureMismatch)
	}
	return ok()
}

// ----------------------------------------------------------------------------
// Twilio-style: x-twilio-signature. The algorithm (URL reconstruction plus
// sorted form-parameter signing) needs the authoritative provider spec to get
// the bytes-to-sign right; until that is confirmed the variant rejects
// everything rather than guessing.
// ----------------------------------------------------------------------------

type twilioVerifier struct {
	secret string
}

func (v twilioVerifier) Verify(headers http.Header, _ []byte, _ time.Time) Result {
	if headers.Get("x-twilio-signature") == "" {
		return failed(ReasonMissingSignature)
	}
	return failed(ReasonNotImplemented)
}

// ----------------------------------------------------------------------------
// GHL-style: x-ghl-signature: <hexHmacSha256(rawBody)>; the JSON body may
// carry a millisecond `timestamp` field that is replay-checked when present.
// Check order is fixed: missing-signature, secret-not-configured,
// invalid-payload, timestamp-skew, signature compare.
// ----------------------------------------------------------------------------

type ghlVerifier struct {
	secret string
}

func (v ghlVerifier) Verify(headers http.Header, rawBody []byte, now time.Time) Result {
	signature := headers.Get("x-ghl-signature")
	if signature == "" {
		return failed(ReasonMissingSignature)
	}
	if v.secret == "" {
		return failed(ReasonSecretNotConfigured)
	}

	var payload map[string]any
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return failed(ReasonInvalidPayload)
	}

	if raw, present := payload["timestamp"]; present {
		ms, isNumber := raw.(float64)
		if !isNumber {
			return failed(ReasonInvalidPayload)
		}
		skew := now.UnixMilli() - int64(ms)
		if skew > maxTimestampSkew.Milliseconds() || skew < -maxTimestampSkew.Milliseconds() {
			return failed(ReasonTimestampSkew)
		}
	}

	if !equalSignatures(signHex(v.secret, rawBody), signature) {
		return failed(ReasonSignatureMismatch)
	}
	return ok()
}
