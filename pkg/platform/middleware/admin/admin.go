package admin

import (
	"log/slog"
	"net/http"

	"trustgate/internal/platform/secrets"
	"trustgate/pkg/requestcontext"
)

// RequireAdminKey guards operational endpoints with a pre-shared key. Only
// the bcrypt hash of the key is configured; the plaintext never touches disk
// or logs.
func RequireAdminKey(keyHash string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-Admin-Key")
			if key == "" || keyHash == "" || secrets.Verify(key, keyHash) != nil {
				ctx := r.Context()
				logger.WarnContext(ctx, "admin key mismatch",
					"correlation_id", requestcontext.CorrelationID(ctx),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"admin key required"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
