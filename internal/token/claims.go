package token

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"
)

// Claims is the closed set of typed fields trustgate understands, plus a
// strictly separate extension map for forward compatibility. Known fields are
// validated strictly; unknown keys are tolerated and preserved in Extensions.
type Claims struct {
	Issuer    string
	Subject   string
	Audience  []string
	ExpiresAt time.Time
	IssuedAt  time.Time
	NotBefore *time.Time
	JTI       string
	Tenant    string
	Scope     string
	Roles     []string
	Groups    []string
	// Extensions holds claims outside the known set, untouched.
	Extensions map[string]any
}

// knownClaimKeys are lifted into typed fields; everything else lands in
// Extensions.
var knownClaimKeys = map[string]struct{}{
	"iss": {}, "sub": {}, "aud": {}, "exp": {}, "iat": {}, "nbf": {},
	"jti": {}, "tenant": {}, "scope": {}, "roles": {}, "groups": {},
}

// Scopes splits the space-delimited scope claim.
func (c *Claims) Scopes() []string {
	if c.Scope == "" {
		return nil
	}
	return strings.Fields(c.Scope)
}

// HasAudience reports whether the configured audience appears in the claim,
// which may have been a bare string or an array on the wire.
func (c *Claims) HasAudience(audience string) bool {
	for _, aud := range c.Audience {
		if aud == audience {
			return true
		}
	}
	return false
}

// splitCompact splits a compact token into its three segments. Every segment
// must be non-empty.
func splitCompact(token string) ([3]string, bool) {
	var segments [3]string
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return segments, false
	}
	for i, p := range parts {
		if p == "" {
			return segments, false
		}
		segments[i] = p
	}
	return segments, true
}

// decodeSegment base64url-decodes one compact-token segment into dst.
func decodeSegment(segment string, dst any) error {
	raw, err := base64.RawURLEncoding.DecodeString(segment)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

// parseClaims maps a decoded payload into typed Claims. It returns an
// AuthError when a required claim is absent or a known claim has the wrong
// shape; unknown keys never cause failure.
func parseClaims(payload map[string]any) (*Claims, *AuthError) {
	claims := &Claims{}

	for _, required := range []string{"iss", "sub", "aud", "exp", "iat", "tenant"} {
		if _, ok := payload[required]; !ok {
			return nil, newAuthError(CodeMissingRequiredClaims, "missing required claim: "+required)
		}
	}

	var ok bool
	if claims.Issuer, ok = payload["iss"].(string); !ok || claims.Issuer == "" {
		return nil, newAuthError(CodeMissingRequiredClaims, "claim iss must be a non-empty string")
	}
	if claims.Subject, ok = payload["sub"].(string); !ok || claims.Subject == "" {
		return nil, newAuthError(CodeMissingRequiredClaims, "claim sub must be a non-empty string")
	}
	if claims.Tenant, ok = payload["tenant"].(string); !ok || claims.Tenant == "" {
		return nil, newAuthError(CodeMissingRequiredClaims, "claim tenant must be a non-empty string")
	}

	audience, ok := stringOrList(payload["aud"])
	if !ok || len(audience) == 0 {
		return nil, newAuthError(CodeMissingRequiredClaims, "claim aud must be a string or string array")
	}
	claims.Audience = audience

	exp, ok := numericDate(payload["exp"])
	if !ok {
		return nil, newAuthError(CodeMissingRequiredClaims, "claim exp must be a numeric date")
	}
	claims.ExpiresAt = exp

	iat, ok := numericDate(payload["iat"])
	if !ok {
		return nil, newAuthError(CodeMissingRequiredClaims, "claim iat must be a numeric date")
	}
	claims.IssuedAt = iat

	if !claims.ExpiresAt.After(claims.IssuedAt) {
		return nil, newAuthError(CodeMissingRequiredClaims, "claim exp must be later than iat")
	}

	if raw, present := payload["nbf"]; present {
		nbf, ok := numericDate(raw)
		if !ok {
			return nil, newAuthError(CodeMissingRequiredClaims, "claim nbf must be a numeric date")
		}
		claims.NotBefore = &nbf
	}

	if raw, present := payload["jti"]; present {
		claims.JTI, _ = raw.(string)
	}
	if raw, present := payload["scope"]; present {
		claims.Scope, _ = raw.(string)
	}
	if raw, present := payload["roles"]; present {
		claims.Roles, _ = stringOrList(raw)
	}
	if raw, present := payload["groups"]; present {
		claims.Groups, _ = stringOrList(raw)
	}

	for key, value := range payload {
		if _, known := knownClaimKeys[key]; known {
			continue
		}
		if claims.Extensions == nil {
			claims.Extensions = make(map[string]any)
		}
		claims.Extensions[key] = value
	}

	return claims, nil
}

// stringOrList normalizes a claim that may be a bare string or an array of
// strings.
func stringOrList(v any) ([]string, bool) {
	switch val := v.(type) {
	case string:
		return []string{val}, true
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

// numericDate converts a JSON number (seconds since epoch) into a time.
func numericDate(v any) (time.Time, bool) {
	f, ok := v.(float64)
	if !ok {
		return time.Time{}, false
	}
	sec := int64(f)
	nsec := int64((f - float64(sec)) * 1e9)
	return time.Unix(sec, nsec), true
}
