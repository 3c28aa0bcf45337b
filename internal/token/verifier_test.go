package token

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"trustgate/pkg/requestcontext"
)

const testAudience = "trustgate"

// testIssuer fakes an identity provider: it serves the well-known discovery
// document and a JWKS endpoint, and signs tokens with keys it can rotate.
type testIssuer struct {
	t   *testing.T
	srv *httptest.Server

	mu            sync.Mutex
	keys          map[string]*rsa.PrivateKey
	jwksRequests  int
	failDiscovery bool
}

func newTestIssuer(t *testing.T) *testIssuer {
	t.Helper()
	iss := &testIssuer{t: t, keys: map[string]*rsa.PrivateKey{}}
	iss.addKey("key-1")

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		iss.mu.Lock()
		fail := iss.failDiscovery
		iss.mu.Unlock()
		if fail {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"issuer":   iss.srv.URL,
			"jwks_uri": iss.srv.URL + "/jwks",
		})
	})
	mux.HandleFunc("/jwks", func(w http.ResponseWriter, r *http.Request) {
		iss.mu.Lock()
		defer iss.mu.Unlock()
		iss.jwksRequests++
		type jwk struct {
			Kty string `json:"kty"`
			Kid string `json:"kid"`
			N   string `json:"n"`
			E   string `json:"e"`
		}
		var keys []jwk
		for kid, key := range iss.keys {
			pub := key.Public().(*rsa.PublicKey)
			keys = append(keys, jwk{
				Kty: "RSA",
				Kid: kid,
				N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"keys": keys})
	})

	iss.srv = httptest.NewServer(mux)
	t.Cleanup(iss.srv.Close)
	return iss
}

func (iss *testIssuer) addKey(kid string) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(iss.t, err)
	iss.mu.Lock()
	iss.keys[kid] = key
	iss.mu.Unlock()
}

func (iss *testIssuer) removeKey(kid string) {
	iss.mu.Lock()
	delete(iss.keys, kid)
	iss.mu.Unlock()
}

// sign produces a compact RS256 token with the given kid and claim overrides
// on top of a fully valid claim set.
func (iss *testIssuer) sign(kid string, overrides map[string]any) string {
	iss.t.Helper()
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":    iss.srv.URL,
		"sub":    "user-42",
		"aud":    testAudience,
		"exp":    now.Add(time.Hour).Unix(),
		"iat":    now.Unix(),
		"tenant": "tenant-a",
	}
	for k, v := range overrides {
		if v == nil {
			delete(claims, k)
			continue
		}
		claims[k] = v
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = kid

	iss.mu.Lock()
	key := iss.keys[kid]
	iss.mu.Unlock()
	if key == nil {
		// Token claims a kid the issuer no longer publishes; sign with any
		// fresh key so the signature bytes are well-formed.
		var err error
		key, err = rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(iss.t, err)
	}

	signed, err := tok.SignedString(key)
	require.NoError(iss.t, err)
	return signed
}

func newTestVerifier(t *testing.T, iss *testIssuer, tolerance time.Duration) *Verifier {
	t.Helper()
	keys := NewKeySet(iss.srv.URL, time.Hour, iss.srv.Client())
	return NewVerifier(iss.srv.URL, testAudience, tolerance, keys, discardLogger())
}

func TestVerifyTokenSuccess(t *testing.T) {
	iss := newTestIssuer(t)
	v := newTestVerifier(t, iss, time.Minute)

	raw := iss.sign("key-1", map[string]any{
		"roles":  []string{"agent"},
		"groups": []string{"sales"},
		"scope":  "contacts:read contacts:write",
		"plan":   "pro",
	})

	subject, authErr := v.VerifyToken(context.Background(), "Bearer "+raw)
	require.Nil(t, authErr)
	require.Equal(t, "user-42", subject.ID)
	require.Equal(t, "tenant-a", subject.TenantID)
	require.Equal(t, []string{"agent"}, subject.Roles)
	require.Equal(t, []string{"sales"}, subject.Groups)
	require.Equal(t, []string{"contacts:read", "contacts:write"}, subject.Scopes)
	require.False(t, subject.IsServiceAccount)
	require.Equal(t, "pro", subject.Metadata["plan"])
}

func TestVerifyTokenServiceAccount(t *testing.T) {
	iss := newTestIssuer(t)
	v := newTestVerifier(t, iss, time.Minute)

	t.Run("svc prefix", func(t *testing.T) {
		raw := iss.sign("key-1", map[string]any{"sub": "svc:billing"})
		subject, authErr := v.VerifyToken(context.Background(), "Bearer "+raw)
		require.Nil(t, authErr)
		require.True(t, subject.IsServiceAccount)
	})

	t.Run("act_as_service extension", func(t *testing.T) {
		raw := iss.sign("key-1", map[string]any{"act_as_service": true})
		subject, authErr := v.VerifyToken(context.Background(), "Bearer "+raw)
		require.Nil(t, authErr)
		require.True(t, subject.IsServiceAccount)
	})
}

func TestVerifyTokenErrorCodes(t *testing.T) {
	iss := newTestIssuer(t)
	v := newTestVerifier(t, iss, time.Minute)
	now := time.Now()

	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	forged := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss": iss.srv.URL, "sub": "user-42", "aud": testAudience,
		"exp": now.Add(time.Hour).Unix(), "iat": now.Unix(), "tenant": "tenant-a",
	})
	forged.Header["kid"] = "key-1"
	forgedRaw, err := forged.SignedString(otherKey)
	require.NoError(t, err)

	hmacTok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": iss.srv.URL, "sub": "user-42", "aud": testAudience,
		"exp": now.Add(time.Hour).Unix(), "iat": now.Unix(), "tenant": "tenant-a",
	})
	hmacTok.Header["kid"] = "key-1"
	hmacRaw, err := hmacTok.SignedString([]byte("not-a-secret-anyone-trusts"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   Code
	}{
		{"empty header", "", CodeMissingToken},
		{"wrong scheme", "Token abc.def.ghi", CodeMissingToken},
		{"bare bearer", "Bearer ", CodeMissingToken},
		{"one segment", "Bearer abc", CodeInvalidTokenFormat},
		{"empty segment", "Bearer abc..ghi", CodeInvalidTokenFormat},
		{"payload not base64 json", "Bearer aGVhZGVy.!!!.c2ln", CodeInvalidTokenFormat},
		{
			"missing tenant claim",
			"Bearer " + iss.sign("key-1", map[string]any{"tenant": nil}),
			CodeMissingRequiredClaims,
		},
		{
			"exp not after iat",
			"Bearer " + iss.sign("key-1", map[string]any{"exp": now.Unix(), "iat": now.Unix()}),
			CodeMissingRequiredClaims,
		},
		{
			"expired beyond tolerance",
			"Bearer " + iss.sign("key-1", map[string]any{"exp": now.Add(-2 * time.Minute).Unix(), "iat": now.Add(-time.Hour).Unix()}),
			CodeTokenExpired,
		},
		{
			"nbf in the future",
			"Bearer " + iss.sign("key-1", map[string]any{"nbf": now.Add(time.Hour).Unix()}),
			CodeTokenNotYetValid,
		},
		{"forged signature", "Bearer " + forgedRaw, CodeInvalidSignature},
		{"hmac signing method", "Bearer " + hmacRaw, CodeInvalidSignature},
		{
			"untrusted issuer",
			"Bearer " + iss.sign("key-1", map[string]any{"iss": "https://evil.example.com"}),
			CodeInvalidIssuer,
		},
		{
			"wrong audience",
			"Bearer " + iss.sign("key-1", map[string]any{"aud": "some-other-service"}),
			CodeInvalidAudience,
		},
		{
			"unknown kid after forced refresh",
			"Bearer " + iss.sign("key-404", nil),
			CodeJWKSFetchFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subject, authErr := v.VerifyToken(context.Background(), tt.header)
			require.NotNil(t, authErr, "expected verification to fail")
			require.Equal(t, tt.want, authErr.Code)
			require.Nil(t, subject)
		})
	}
}

func TestVerifyTokenExpiryWithinTolerance(t *testing.T) {
	iss := newTestIssuer(t)
	v := newTestVerifier(t, iss, time.Minute)

	now := time.Now()
	raw := iss.sign("key-1", map[string]any{
		"exp": now.Add(-30 * time.Second).Unix(),
		"iat": now.Add(-time.Hour).Unix(),
	})

	ctx := requestcontext.WithTime(context.Background(), now)
	subject, authErr := v.VerifyToken(ctx, "Bearer "+raw)
	require.Nil(t, authErr)
	require.Equal(t, "user-42", subject.ID)
}

func TestVerifyTokenKeyRotation(t *testing.T) {
	iss := newTestIssuer(t)
	v := newTestVerifier(t, iss, time.Minute)

	// Warm the cache with the original key.
	_, authErr := v.VerifyToken(context.Background(), "Bearer "+iss.sign("key-1", nil))
	require.Nil(t, authErr)

	// Rotate: new key published, old one withdrawn.
	iss.addKey("key-2")
	raw := iss.sign("key-2", nil)
	iss.removeKey("key-1")

	// The unknown kid forces exactly one refresh even though the cache TTL
	// has not elapsed.
	subject, authErr := v.VerifyToken(context.Background(), "Bearer "+raw)
	require.Nil(t, authErr)
	require.Equal(t, "user-42", subject.ID)
}

func TestVerifyTokenDiscoveryFailure(t *testing.T) {
	iss := newTestIssuer(t)
	iss.failDiscovery = true
	v := newTestVerifier(t, iss, time.Minute)

	_, authErr := v.VerifyToken(context.Background(), "Bearer "+iss.sign("key-1", nil))
	require.NotNil(t, authErr)
	require.Equal(t, CodeDiscoveryFailed, authErr.Code)
}

func TestKeySetCachesWithinTTL(t *testing.T) {
	iss := newTestIssuer(t)
	v := newTestVerifier(t, iss, time.Minute)

	for range 5 {
		_, authErr := v.VerifyToken(context.Background(), "Bearer "+iss.sign("key-1", nil))
		require.Nil(t, authErr)
	}

	iss.mu.Lock()
	defer iss.mu.Unlock()
	require.Equal(t, 1, iss.jwksRequests, "fresh cache must not refetch")
}
