package token

import (
	"context"
	"time"

	"trustgate/pkg/requestcontext"
)

// Extractor decodes and structurally validates a compact token without
// proving its signature. It applies the same format, required-claim and
// expiry checks as the Verifier and raises the same error codes.
//
// Extractor is NOT a substitute for Verifier anywhere authenticity matters:
// it trusts that the token's provenance was established elsewhere (for
// example by an upstream gateway that already verified the signature).
type Extractor struct {
	tolerance time.Duration
}

// NewExtractor builds an extractor with the given clock tolerance.
func NewExtractor(tolerance time.Duration) *Extractor {
	return &Extractor{tolerance: tolerance}
}

// Extract decodes the raw compact token (no Bearer prefix) into Claims.
func (e *Extractor) Extract(ctx context.Context, raw string) (*Claims, *AuthError) {
	segments, ok := splitCompact(raw)
	if !ok {
		return nil, newAuthError(CodeInvalidTokenFormat, "token must have three non-empty segments")
	}

	var payload map[string]any
	if err := decodeSegment(segments[1], &payload); err != nil {
		return nil, newAuthError(CodeInvalidTokenFormat, "token payload is not valid base64url JSON")
	}
	claims, authErr := parseClaims(payload)
	if authErr != nil {
		return nil, authErr
	}

	now := requestcontext.Now(ctx)
	if claims.ExpiresAt.Before(now.Add(-e.tolerance)) {
		return nil, newAuthError(CodeTokenExpired, "token has expired")
	}
	return claims, nil
}
