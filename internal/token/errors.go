package token

import dErrors "trustgate/pkg/domainerrors"

// Code enumerates every way bearer-token verification can fail. Verification
// returns these as values, never panics: callers map them deterministically
// to a 401 response.
type Code string

const (
	CodeMissingToken          Code = "MISSING_TOKEN"
	CodeInvalidTokenFormat    Code = "INVALID_TOKEN_FORMAT"
	CodeTokenExpired          Code = "TOKEN_EXPIRED"
	CodeTokenNotYetValid      Code = "TOKEN_NOT_YET_VALID"
	CodeInvalidSignature      Code = "INVALID_SIGNATURE"
	CodeInvalidIssuer         Code = "INVALID_ISSUER"
	CodeInvalidAudience       Code = "INVALID_AUDIENCE"
	CodeMissingRequiredClaims Code = "MISSING_REQUIRED_CLAIMS"
	CodeJWKSFetchFailed       Code = "JWKS_FETCH_FAILED"
	CodeDiscoveryFailed       Code = "DISCOVERY_FAILED"
	CodeUnknown               Code = "UNKNOWN_ERROR"
)

// AuthError is the structured failure result of token verification. Message
// is safe for logs and responses; it never carries token material.
type AuthError struct {
	Code    Code
	Message string
}

func (e *AuthError) Error() string {
	return string(e.Code) + ": " + e.Message
}

func newAuthError(code Code, message string) *AuthError {
	return &AuthError{Code: code, Message: message}
}

// Domain translates an auth error into the transport-facing error vocabulary.
func (e *AuthError) Domain() dErrors.Error {
	return dErrors.New(dErrors.CodeUnauthorized, e.Message)
}
