package token

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"trustgate/pkg/requestcontext"
)

// tracerName is the OpenTelemetry instrumentation scope for token spans.
const tracerName = "trustgate/internal/token"

// allowedSigningMethods restricts verification to asymmetric algorithms; the
// issuer publishes public keys, so HMAC tokens are rejected outright.
var allowedSigningMethods = []string{"RS256", "RS384", "RS512", "ES256", "ES384", "ES512"}

// Verifier validates bearer tokens against the issuer's rotating key set and
// builds a SubjectContext from the verified claims. Every failure is a
// structured AuthError; nothing panics across this boundary.
type Verifier struct {
	issuer    string
	audience  string
	tolerance time.Duration
	keys      *KeySet
	tracer    trace.Tracer
	logger    *slog.Logger
}

// NewVerifier constructs a verifier. The key set is shared process-wide and
// owned by the caller.
func NewVerifier(issuer, audience string, tolerance time.Duration, keys *KeySet, logger *slog.Logger) *Verifier {
	return &Verifier{
		issuer:    issuer,
		audience:  audience,
		tolerance: tolerance,
		keys:      keys,
		tracer:    otel.Tracer(tracerName),
		logger:    logger,
	}
}

// compactHeader is the decoded first segment of a compact token.
type compactHeader struct {
	Alg string `json:"alg"`
	Kid string `json:"kid"`
}

// VerifyToken runs the full verification chain over an Authorization header
// value. The checks short-circuit in a fixed order so a given bad token
// always produces the same error code.
func (v *Verifier) VerifyToken(ctx context.Context, authorizationHeader string) (*SubjectContext, *AuthError) {
	ctx, span := v.tracer.Start(ctx, "token.VerifyToken")
	defer span.End()

	subject, authErr := v.verify(ctx, authorizationHeader)
	if authErr != nil {
		span.SetAttributes(attribute.String("auth.error_code", string(authErr.Code)))
		span.SetStatus(codes.Error, string(authErr.Code))
		return nil, authErr
	}
	span.SetAttributes(attribute.String("auth.tenant", subject.TenantID))
	return subject, nil
}

func (v *Verifier) verify(ctx context.Context, authorizationHeader string) (*SubjectContext, *AuthError) {
	raw, ok := strings.CutPrefix(authorizationHeader, "Bearer ")
	if !ok || raw == "" {
		return nil, newAuthError(CodeMissingToken, "missing or malformed Authorization header")
	}

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
	if claims.ExpiresAt.Before(now.Add(-v.tolerance)) {
		return nil, newAuthError(CodeTokenExpired, "token has expired")
	}
	if claims.NotBefore != nil && claims.NotBefore.After(now.Add(v.tolerance)) {
		return nil, newAuthError(CodeTokenNotYetValid, "token is not yet valid")
	}

	var header compactHeader
	if err := decodeSegment(segments[0], &header); err != nil {
		return nil, newAuthError(CodeInvalidTokenFormat, "token header is not valid base64url JSON")
	}

	key, authErr := v.keys.Key(ctx, header.Kid)
	if authErr != nil {
		v.logger.WarnContext(ctx, "signing key resolution failed",
			"error_code", string(authErr.Code),
			"kid", header.Kid,
		)
		return nil, authErr
	}

	if _, err := jwt.Parse(raw,
		func(t *jwt.Token) (any, error) { return key, nil },
		jwt.WithValidMethods(allowedSigningMethods),
		jwt.WithoutClaimsValidation(),
	); err != nil {
		return nil, newAuthError(CodeInvalidSignature, "token signature verification failed")
	}

	if claims.Issuer != v.issuer {
		return nil, newAuthError(CodeInvalidIssuer, "token issuer is not trusted")
	}
	if !claims.HasAudience(v.audience) {
		return nil, newAuthError(CodeInvalidAudience, "token audience does not include this service")
	}

	return buildSubject(claims), nil
}
