package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustgate/internal/audit"
	"trustgate/internal/policy"
	"trustgate/internal/token"
	"trustgate/pkg/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRouter(t *testing.T, rules []policy.Rule) chi.Router {
	t.Helper()
	auditor := audit.NewWriter(64, discardLogger())
	engine := policy.NewEngine(policy.NewInMemoryStore(rules), auditor, nil, discardLogger())
	router := chi.NewRouter()
	New(engine, discardLogger()).Register(router)
	return router
}

func subject(tenant string, roles ...string) *token.SubjectContext {
	if roles == nil {
		roles = []string{}
	}
	return &token.SubjectContext{
		ID: "user-1", TenantID: tenant,
		Roles: roles, Groups: []string{}, Scopes: []string{},
	}
}

func TestHandleCheck(t *testing.T) {
	rules := []policy.Rule{{
		ID: "contacts-read", Effect: policy.EffectAllow,
		ResourceType: "contact", ResourceID: "*", Action: "read",
		Roles: []string{"agent"},
	}}

	t.Run("allow decision", func(t *testing.T) {
		router := newRouter(t, rules)
		req := testutil.NewJSONRequest(t, http.MethodPost, "/v1/authz/check", CheckRequest{
			Resource: policy.Resource{Type: "contact", ID: "c-1", OwnerTenant: "tenant-a"},
			Action:   "read",
		})
		req = testutil.WithSubject(req, subject("tenant-a", "agent"))

		rec := testutil.DoRequest(router, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var res policy.CheckResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.Equal(t, policy.DecisionAllow, res.Decision)
		assert.Equal(t, "contacts-read", res.RuleID)
	})

	t.Run("deny is a 200, not an error", func(t *testing.T) {
		router := newRouter(t, rules)
		req := testutil.NewJSONRequest(t, http.MethodPost, "/v1/authz/check", CheckRequest{
			Resource: policy.Resource{Type: "contact", ID: "c-1", OwnerTenant: "tenant-b"},
			Action:   "read",
		})
		req = testutil.WithSubject(req, subject("tenant-a", "agent"))

		rec := testutil.DoRequest(router, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var res policy.CheckResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.Equal(t, policy.DecisionDeny, res.Decision)
		assert.Equal(t, policy.ReasonTenantMismatch, res.Reason)
	})

	t.Run("no subject means 401", func(t *testing.T) {
		router := newRouter(t, rules)
		req := testutil.NewJSONRequest(t, http.MethodPost, "/v1/authz/check", CheckRequest{
			Resource: policy.Resource{Type: "contact", OwnerTenant: "tenant-a"},
			Action:   "read",
		})
		rec := testutil.DoRequest(router, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed body means 400", func(t *testing.T) {
		router := newRouter(t, rules)
		req := testutil.NewRequest(t, http.MethodPost, "/v1/authz/check")
		req = testutil.WithSubject(req, subject("tenant-a"))
		rec := testutil.DoRequest(router, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing resource type means 400", func(t *testing.T) {
		router := newRouter(t, rules)
		req := testutil.NewJSONRequest(t, http.MethodPost, "/v1/authz/check", CheckRequest{Action: "read"})
		req = testutil.WithSubject(req, subject("tenant-a"))
		rec := testutil.DoRequest(router, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleMe(t *testing.T) {
	router := newRouter(t, nil)

	t.Run("reflects verified subject", func(t *testing.T) {
		req := testutil.NewRequest(t, http.MethodGet, "/v1/me")
		req = testutil.WithSubject(req, subject("tenant-a", "agent"))
		rec := testutil.DoRequest(router, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var res token.SubjectContext
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.Equal(t, "user-1", res.ID)
		assert.Equal(t, "tenant-a", res.TenantID)
	})

	t.Run("unauthenticated means 401", func(t *testing.T) {
		rec := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/v1/me"))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
