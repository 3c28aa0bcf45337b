package token

import "strings"

// serviceAccountPrefix marks subjects that are machine identities rather than
// end users.
const serviceAccountPrefix = "svc:"

// SubjectContext is the verified, request-scoped identity derived from a
// token's claims. It is built once per request and treated as immutable for
// the request's lifetime; it is never persisted.
type SubjectContext struct {
	ID               string            `json:"id"`
	TenantID         string            `json:"tenant_id"`
	Roles            []string          `json:"roles"`
	Groups           []string          `json:"groups"`
	Scopes           []string          `json:"scopes"`
	IsServiceAccount bool              `json:"is_service_account"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

// HasRole reports whether the subject carries the given role.
func (s *SubjectContext) HasRole(role string) bool {
	for _, r := range s.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasScope reports whether the subject carries the given scope.
func (s *SubjectContext) HasScope(scope string) bool {
	for _, sc := range s.Scopes {
		if sc == scope {
			return true
		}
	}
	return false
}

// buildSubject derives a SubjectContext from verified claims. Roles, groups
// and scopes default to empty slices so downstream checks never see nil.
// A subject is a service account when its identity claim carries the svc:
// prefix or the token says so explicitly via the act_as_service extension —
// i.e. when no end-user identity is present.
func buildSubject(claims *Claims) *SubjectContext {
	subject := &SubjectContext{
		ID:       claims.Subject,
		TenantID: claims.Tenant,
		Roles:    emptyIfNil(claims.Roles),
		Groups:   emptyIfNil(claims.Groups),
		Scopes:   emptyIfNil(claims.Scopes()),
	}

	if strings.HasPrefix(claims.Subject, serviceAccountPrefix) {
		subject.IsServiceAccount = true
	}
	if v, ok := claims.Extensions["act_as_service"].(bool); ok && v {
		subject.IsServiceAccount = true
	}

	for key, value := range claims.Extensions {
		if s, ok := value.(string); ok {
			if subject.Metadata == nil {
				subject.Metadata = make(map[string]string)
			}
			subject.Metadata[key] = s
		}
	}
	return subject
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
