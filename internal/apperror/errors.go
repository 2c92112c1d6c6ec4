// Package apperror provides the domain error types for Gatekeeper.
// Every failure a client can act on is one of the kinds below; each carries
// an HTTP status code, a machine-readable kind, and a client-safe message.
// The Echo error handler maps them to JSON responses automatically.
//
// NEVER return raw database, Redis, or JWT library errors to the client.
// Always wrap them in an apperror type or return a generic internal error.
package apperror

import (
	"fmt"
	"net/http"
)

// Kind values. The boundary layer switches on these, never on message text.
const (
	KindInvalidCredentials = "invalid_credentials"
	KindAccountBlocked     = "account_blocked"
	KindChallengeExpired   = "challenge_expired"
	KindCodeInvalid        = "code_invalid"
	KindInvalidToken       = "invalid_token"
	KindAlreadyExists      = "already_exists"
	KindValidation         = "validation_error"
	KindInternal           = "internal_error"
)

// AppError is the base error type for all domain errors. Side-channel fields
// (RemainingAttempts, RetryAfterSeconds, Field) are only meaningful for the
// kinds that set them and are omitted from JSON otherwise.
type AppError struct {
	// Code is the HTTP status code (e.g., 401, 429, 500).
	Code int `json:"-"`

	// Kind is a machine-readable error classifier (e.g., "code_invalid").
	Kind string `json:"kind"`

	// Message is a human-readable description safe for the client.
	Message string `json:"message"`

	// RemainingAttempts is how many MFA guesses remain. CodeInvalid only.
	RemainingAttempts int `json:"remaining_attempts,omitempty"`

	// RetryAfterSeconds is how long the account stays blocked. AccountBlocked only.
	RetryAfterSeconds int64 `json:"retry_after_seconds,omitempty"`

	// Field names the offending input field. AlreadyExists and Validation only.
	Field string `json:"field,omitempty"`

	// Internal holds the underlying error for logging. Never exposed to client.
	Internal error `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (internal: %v)", e.Kind, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *AppError) Unwrap() error {
	return e.Internal
}

// --- Constructors, one per error kind ---

// NewInvalidCredentials creates the 401 returned for a bad username or
// password. Deliberately vague: never reveals which of the two was wrong.
func NewInvalidCredentials() *AppError {
	return &AppError{
		Code:    http.StatusUnauthorized,
		Kind:    KindInvalidCredentials,
		Message: "invalid username or password",
	}
}

// NewAccountBlocked creates the 429 returned while the block flag is live.
// retryAfter is the flag's remaining TTL in seconds.
func NewAccountBlocked(retryAfter int64) *AppError {
	return &AppError{
		Code:              http.StatusTooManyRequests,
		Kind:              KindAccountBlocked,
		Message:           "too many failed attempts, account temporarily blocked",
		RetryAfterSeconds: retryAfter,
	}
}

// NewChallengeExpired creates the 410 returned when no MFA code is stored
// for the user (never issued, already consumed, or TTL elapsed).
func NewChallengeExpired() *AppError {
	return &AppError{
		Code:    http.StatusGone,
		Kind:    KindChallengeExpired,
		Message: "verification code expired, please log in again",
	}
}

// NewCodeInvalid creates the 422 returned for a wrong MFA code while the
// user is still under the attempt threshold.
func NewCodeInvalid(remaining int) *AppError {
	return &AppError{
		Code:              http.StatusUnprocessableEntity,
		Kind:              KindCodeInvalid,
		Message:           "invalid verification code",
		RemainingAttempts: remaining,
	}
}

// NewInvalidToken creates the 401 returned for any bearer token failure:
// bad signature, wrong type, expired, revoked, or missing from the
// refresh whitelist. The reason is client-safe.
func NewInvalidToken(reason string) *AppError {
	return &AppError{
		Code:    http.StatusUnauthorized,
		Kind:    KindInvalidToken,
		Message: reason,
	}
}

// NewAlreadyExists creates the 409 returned for a registration collision.
// field is "username" or "email".
func NewAlreadyExists(field string) *AppError {
	return &AppError{
		Code:    http.StatusConflict,
		Kind:    KindAlreadyExists,
		Message: fmt.Sprintf("%s is already taken", field),
		Field:   field,
	}
}

// NewValidation creates the 400 returned for malformed input.
func NewValidation(field, message string) *AppError {
	return &AppError{
		Code:    http.StatusBadRequest,
		Kind:    KindValidation,
		Message: message,
		Field:   field,
	}
}

// NewInternal creates a 500 Internal Server Error. The real error is stored
// in Internal for logging but the client only sees a generic message.
func NewInternal(err error) *AppError {
	return &AppError{
		Code:     http.StatusInternalServerError,
		Kind:     KindInternal,
		Message:  "an unexpected error occurred, please try again",
		Internal: err,
	}
}

// IsKind reports whether err is an AppError of the given kind.
func IsKind(err error, kind string) bool {
	appErr, ok := err.(*AppError)
	return ok && appErr.Kind == kind
}
