package token

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// jwksMaxBody bounds the key-set response to keep a misbehaving issuer from
// exhausting memory.
const jwksMaxBody = 1 << 20

// KeySet caches the issuer's public verification keys, keyed by kid. It is a
// process-wide singleton: reads are lock-free in the common case, refreshes
// collapse into a single in-flight fetch, and an unknown kid forces at most
// one refresh per verification call to absorb key rotation.
type KeySet struct {
	issuer string
	ttl    time.Duration
	client *http.Client

	group singleflight.Group

	mu        sync.RWMutex
	keys      map[string]crypto.PublicKey
	fetchedAt time.Time

	discoveryMu sync.Mutex
	jwksURL     string
}

// NewKeySet builds an empty cache for the given issuer. No network work
// happens until the first verification needs a key.
func NewKeySet(issuer string, ttl time.Duration, client *http.Client) *KeySet {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &KeySet{
		issuer: issuer,
		ttl:    ttl,
		client: client,
	}
}

// Key resolves the public key for kid. On a cache miss it refreshes the key
// set once and retries; a kid still unknown after that refresh fails closed.
func (s *KeySet) Key(ctx context.Context, kid string) (crypto.PublicKey, *AuthError) {
	s.mu.RLock()
	fresh := time.Since(s.fetchedAt) < s.ttl
	key, ok := s.keys[kid]
	s.mu.RUnlock()

	if fresh && ok {
		return key, nil
	}

	// Stale cache, or a kid we have never seen: refresh once. Concurrent
	// callers share a single fetch.
	if authErr := s.refresh(ctx); authErr != nil {
		return nil, authErr
	}

	s.mu.RLock()
	key, ok = s.keys[kid]
	s.mu.RUnlock()
	if !ok {
		return nil, newAuthError(CodeJWKSFetchFailed, "signing key not present in issuer key set")
	}
	return key, nil
}

// refresh re-fetches the key set, collapsing concurrent refreshes into one
// request. Refreshing is idempotent so a wasted duplicate is harmless.
func (s *KeySet) refresh(ctx context.Context) *AuthError {
	result, err, _ := s.group.Do("jwks", func() (any, error) {
		jwksURL, authErr := s.discoverJWKSURL(ctx)
		if authErr != nil {
			return nil, authErr
		}
		keys, authErr := s.fetchKeys(ctx, jwksURL)
		if authErr != nil {
			return nil, authErr
		}
		s.mu.Lock()
		s.keys = keys
		s.fetchedAt = time.Now()
		s.mu.Unlock()
		return nil, nil
	})
	_ = result
	if err != nil {
		if authErr, ok := err.(*AuthError); ok {
			return authErr
		}
		return newAuthError(CodeJWKSFetchFailed, "key set refresh failed")
	}
	return nil
}

// discoveryDocument is the subset of the well-known configuration we need.
type discoveryDocument struct {
	JWKSURI string `json:"jwks_uri"`
}

// discoverJWKSURL resolves and memoizes the issuer's jwks_uri.
func (s *KeySet) discoverJWKSURL(ctx context.Context) (string, *AuthError) {
	s.discoveryMu.Lock()
	defer s.discoveryMu.Unlock()
	if s.jwksURL != "" {
		return s.jwksURL, nil
	}

	url := s.issuer + "/.well-known/openid-configuration"
	body, err := s.get(ctx, url)
	if err != nil {
		return "", newAuthError(CodeDiscoveryFailed, "could not fetch issuer discovery document")
	}

	var doc discoveryDocument
	if err := json.Unmarshal(body, &doc); err != nil || doc.JWKSURI == "" {
		return "", newAuthError(CodeDiscoveryFailed, "discovery document missing jwks_uri")
	}
	s.jwksURL = doc.JWKSURI
	return s.jwksURL, nil
}

// jwksResponse mirrors the JSON structure of a JWKS endpoint.
type jwksResponse struct {
	Keys []jwkKey `json:"keys"`
}

// jwkKey carries only the fields needed for RSA and EC key reconstruction.
type jwkKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	// RSA fields
	N string `json:"n"`
	E string `json:"e"`
	// EC fields
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y"`
}

func (s *KeySet) fetchKeys(ctx context.Context, jwksURL string) (map[string]crypto.PublicKey, *AuthError) {
	body, err := s.get(ctx, jwksURL)
	if err != nil {
		return nil, newAuthError(CodeJWKSFetchFailed, "could not fetch issuer key set")
	}

	var jwks jwksResponse
	if err := json.Unmarshal(body, &jwks); err != nil {
		return nil, newAuthError(CodeJWKSFetchFailed, "malformed key set document")
	}

	keys := make(map[string]crypto.PublicKey, len(jwks.Keys))
	for _, k := range jwks.Keys {
		if k.Kid == "" {
			continue
		}
		switch k.Kty {
		case "RSA":
			pub, err := parseRSAPublicKey(k.N, k.E)
			if err != nil {
				continue // skip malformed keys
			}
			keys[k.Kid] = pub
		case "EC":
			pub, err := parseECPublicKey(k.Crv, k.X, k.Y)
			if err != nil {
				continue
			}
			keys[k.Kid] = pub
		}
	}
	return keys, nil
}

// get performs a bounded GET; the client timeout keeps verification from
// hanging on a slow issuer.
func (s *KeySet) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, jwksMaxBody))
}

// parseRSAPublicKey constructs an *rsa.PublicKey from base64url-encoded
// modulus (n) and exponent (e) values.
func parseRSAPublicKey(nBase64, eBase64 string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(nBase64)
	if err != nil {
		return nil, fmt.Errorf("decode RSA modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(eBase64)
	if err != nil {
		return nil, fmt.Errorf("decode RSA exponent: %w", err)
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}

// parseECPublicKey constructs an *ecdsa.PublicKey from a curve name and
// base64url-encoded coordinates.
func parseECPublicKey(crv, xBase64, yBase64 string) (*ecdsa.PublicKey, error) {
	var curve elliptic.Curve
	switch crv {
	case "P-256":
		curve = elliptic.P256()
	case "P-384":
		curve = elliptic.P384()
	case "P-521":
		curve = elliptic.P521()
	default:
		return nil, fmt.Errorf("unsupported EC curve %q", crv)
	}

	xBytes, err := base64.RawURLEncoding.DecodeString(xBase64)
	if err != nil {
		return nil, fmt.Errorf("decode EC x coordinate: %w", err)
	}
	yBytes, err := base64.RawURLEncoding.DecodeString(yBase64)
	if err != nil {
		return nil, fmt.Errorf("decode EC y coordinate: %w", err)
	}
	return &ecdsa.PublicKey{
		Curve: curve,
		X:     new(big.Int).SetBytes(xBytes),
		Y:     new(big.Int).SetBytes(yBytes),
	}, nil
}
