// Package httptransport assembles the HTTP surface: public webhook intake,
// token-protected authorization endpoints, the admin surface, and the
// operational probes. Handlers stay in their feature packages; this package
// only decides which middleware chain guards which group.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"trustgate/internal/audit"
	ingresshandler "trustgate/internal/ingress/handler"
	policyhandler "trustgate/internal/policy/handler"
	"trustgate/pkg/platform/middleware/admin"
	"trustgate/pkg/platform/middleware/auth"
	"trustgate/pkg/platform/middleware/correlation"
	"trustgate/pkg/platform/middleware/metadata"
	"trustgate/pkg/platform/middleware/requesttime"
)

// Deps collects everything the router needs. All fields are required except
// AdminKeyHash; with no hash configured the admin surface rejects every
// request rather than opening up.
type Deps struct {
	Logger      *slog.Logger
	Verifier    auth.TokenVerifier
	Auditor     *audit.Writer
	Ingress     *ingresshandler.Handler
	Policy      *policyhandler.Handler
	PolicyAdmin *policyhandler.AdminHandler
	Health      *HealthHandler

	AdminKeyHash string
}

// NewRouter wires the middleware chains and mounts all endpoint groups.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	// Every request gets a pinned timestamp, a correlation ID, and client
	// metadata before anything else observes it.
	r.Use(requesttime.Middleware)
	r.Use(correlation.Middleware)
	r.Use(metadata.ClientMetadata)

	d.Health.Register(r)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Webhooks authenticate by signature, not bearer token.
	d.Ingress.Register(r)

	r.Group(func(protected chi.Router) {
		protected.Use(auth.RequireAuth(d.Verifier, d.Auditor, d.Logger))
		d.Policy.Register(protected)
	})

	r.Group(func(ops chi.Router) {
		ops.Use(admin.RequireAdminKey(d.AdminKeyHash, d.Logger))
		d.PolicyAdmin.Register(ops)
	})

	return r
}
