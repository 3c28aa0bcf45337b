// Package correlation assigns every request a correlation ID. Inbound IDs
// from trusted proxies are honored so traces line up across services; when
// none is present a fresh UUID is minted. The ID is echoed on the response
// so callers can quote it in support requests.
package correlation

import (
	"net/http"

	"github.com/google/uuid"

	"trustgate/pkg/requestcontext"
)

// Header is the canonical correlation header.
const Header = "X-Correlation-ID"

// Middleware reads or mints the correlation ID and stores it in the context.
// It must run before any middleware that logs or audits.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.Header.Get(Header)
		if correlationID == "" {
			correlationID = uuid.NewString()
		}

		w.Header().Set(Header, correlationID)
		ctx := requestcontext.WithCorrelationID(r.Context(), correlationID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
