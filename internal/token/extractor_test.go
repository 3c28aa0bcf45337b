package token

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustgate/pkg/requestcontext"
)

// compactToken assembles a structurally valid compact token with a garbage
// signature. The extractor must not care: it never proves authenticity.
func compactToken(t *testing.T, payload map[string]any) string {
	t.Helper()
	header, err := json.Marshal(map[string]string{"alg": "RS256", "typ": "JWT"})
	require.NoError(t, err)
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return base64.RawURLEncoding.EncodeToString(header) + "." +
		base64.RawURLEncoding.EncodeToString(body) + "." +
		base64.RawURLEncoding.EncodeToString([]byte("unverified"))
}

func TestExtract(t *testing.T) {
	e := NewExtractor(time.Minute)
	ctx := context.Background()

	t.Run("valid token yields claims despite bogus signature", func(t *testing.T) {
		claims, authErr := e.Extract(ctx, compactToken(t, validPayload()))
		require.Nil(t, authErr)
		assert.Equal(t, "user-1", claims.Subject)
		assert.Equal(t, "tenant-a", claims.Tenant)
	})

	t.Run("malformed token", func(t *testing.T) {
		_, authErr := e.Extract(ctx, "not-a-token")
		require.NotNil(t, authErr)
		assert.Equal(t, CodeInvalidTokenFormat, authErr.Code)
	})

	t.Run("missing required claim", func(t *testing.T) {
		payload := validPayload()
		delete(payload, "tenant")
		_, authErr := e.Extract(ctx, compactToken(t, payload))
		require.NotNil(t, authErr)
		assert.Equal(t, CodeMissingRequiredClaims, authErr.Code)
	})

	t.Run("expired token", func(t *testing.T) {
		payload := validPayload()
		now := time.Now()
		payload["iat"] = float64(now.Add(-2 * time.Hour).Unix())
		payload["exp"] = float64(now.Add(-time.Hour).Unix())
		_, authErr := e.Extract(requestcontext.WithTime(ctx, now), compactToken(t, payload))
		require.NotNil(t, authErr)
		assert.Equal(t, CodeTokenExpired, authErr.Code)
	})
}
