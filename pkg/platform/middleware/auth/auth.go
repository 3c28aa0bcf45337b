// Package auth provides the bearer-token gate for protected routes. It
// delegates verification to the token verifier and publishes the verified
// subject through the request context.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"trustgate/internal/audit"
	"trustgate/internal/token"
	"trustgate/pkg/requestcontext"
)

// TokenVerifier is the slice of the token verifier this middleware needs.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, authorizationHeader string) (*token.SubjectContext, *token.AuthError)
}

// Context key for the verified subject.
type contextKeySubject struct{}

// ContextKeySubject is exported for tests that build contexts directly.
var ContextKeySubject = contextKeySubject{}

// Subject retrieves the verified subject from the context. It is nil on
// routes that do not run RequireAuth.
func Subject(ctx context.Context) *token.SubjectContext {
	subject, ok := ctx.Value(ContextKeySubject).(*token.SubjectContext)
	if !ok {
		return nil
	}
	return subject
}

// WithSubject injects a verified subject into a context. Useful for handler
// tests that skip the middleware chain.
func WithSubject(ctx context.Context, subject *token.SubjectContext) context.Context {
	return context.WithValue(ctx, ContextKeySubject, subject)
}

// writeJSONError writes a JSON error response with the given status code and
// error details.
func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// RequireAuth verifies the Authorization header on every request and rejects
// anything that does not carry a valid token. Each outcome produces exactly
// one audit event; the rejection response carries the stable error code but
// never any token material.
func RequireAuth(verifier TokenVerifier, auditor *audit.Writer, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			subject, authErr := verifier.VerifyToken(ctx, r.Header.Get("Authorization"))
			if authErr != nil {
				logger.WarnContext(ctx, "unauthorized access - token rejected",
					"error_code", string(authErr.Code),
					"correlation_id", requestcontext.CorrelationID(ctx),
				)
				auditor.Write(audit.Event{
					ID:            uuid.NewString(),
					Type:          audit.EventTokenRejected,
					Timestamp:     requestcontext.Now(ctx),
					CorrelationID: requestcontext.CorrelationID(ctx),
					Resource:      r.URL.Path,
					Action:        "authenticate",
					Result:        audit.ResultRejected,
					Reason:        string(authErr.Code),
				})
				writeJSONError(w, http.StatusUnauthorized, string(authErr.Code), authErr.Message)
				return
			}

			auditor.Write(audit.Event{
				ID:            uuid.NewString(),
				Type:          audit.EventTokenVerified,
				Timestamp:     requestcontext.Now(ctx),
				CorrelationID: requestcontext.CorrelationID(ctx),
				SubjectID:     subject.ID,
				TenantID:      subject.TenantID,
				Resource:      r.URL.Path,
				Action:        "authenticate",
				Result:        audit.ResultOK,
			})

			next.ServeHTTP(w, r.WithContext(WithSubject(ctx, subject)))
		})
	}
}
