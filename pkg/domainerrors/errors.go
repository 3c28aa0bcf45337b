// Package domainerrors defines the typed error vocabulary used across
// trustgate's service boundaries. Handlers translate these codes into HTTP
// statuses via pkg/platform/httputil; services never leak raw infrastructure
// errors or secret material into messages.
package domainerrors

import "fmt"

// Code classifies a domain error for transport mapping and logging.
type Code string

const (
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeBadRequest   Code = "bad_request"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeInternal     Code = "internal_error"
	CodeUnavailable  Code = "unavailable"
)

// Error is a comparable value type so callers can use errors.Is against a
// freshly constructed expectation in tests.
type Error struct {
	Code    Code
	Message string
}

func (e Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New constructs a domain error with the given code and message.
func New(code Code, message string) Error {
	return Error{Code: code, Message: message}
}

// CodeOf extracts the domain code from an error, defaulting to internal.
func CodeOf(err error) Code {
	if de, ok := err.(Error); ok {
		return de.Code
	}
	return CodeInternal
}
