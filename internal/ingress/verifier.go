package ingress

import (
	"context"
	"net/http"

	"trustgate/internal/platform/config"
	"trustgate/pkg/requestcontext"
)

// Provider names accepted on the ingress surface.
const (
	ProviderStripe = "stripe"
	ProviderRetell = "retell"
	ProviderTwilio = "twilio"
	ProviderGHL    = "ghl"
)

// Verifier dispatches a delivery to the matching provider variant. It holds
// one verifier per configured provider; an unknown name is its own reason,
// distinct from a known provider without a secret.
type Verifier struct {
	providers map[string]providerVerifier
}

// NewVerifier builds the provider table from configuration. Secrets come
// from process configuration only; they are never read from payloads.
func NewVerifier(cfg config.WebhookConfig) *Verifier {
	return &Verifier{
		providers: map[string]providerVerifier{
			ProviderStripe: stripeVerifier{secret: cfg.StripeSecret},
			ProviderRetell: retellVerifier{secret: cfg.RetellSecret},
			ProviderTwilio: twilioVerifier{secret: cfg.TwilioSecret},
			ProviderGHL:    ghlVerifier{secret: cfg.GHLSecret},
		},
	}
}

// Verify checks the authenticity of one delivery. It is a pure function of
// headers, body and configuration; the clock is taken from the request
// context so tests can pin it.
func (v *Verifier) Verify(ctx context.Context, provider string, headers http.Header, rawBody []byte) Result {
	variant, supported := v.providers[provider]
	if !supported {
		return failed(ReasonUnsupportedProvider)
	}
	return variant.Verify(headers, rawBody, requestcontext.Now(ctx))
}
