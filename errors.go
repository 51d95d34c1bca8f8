package auth

import (
	"fmt"
	"math"
	"net/http"
	"time"
)

// Error codes as constants
const (
	ErrorCodeValidation      = "validation_error"
	ErrorCodeAuthentication  = "authentication_error"
	ErrorCodeSecurity        = "security_error"
	ErrorCodeRateLimited     = "rate_limit_exceeded"
	ErrorCodeServer          = "server_error"
	ErrorCodeExternalService = "external_service_error"
)

// Public messages. Login failures always use a generic message so callers
// cannot learn whether an email is registered.
const (
	MsgInvalidCredentials   = "Invalid email or password"
	MsgInvalidFormat        = "Invalid email or password format"
	MsgRegistrationRejected = "Registration request was rejected"
	MsgServiceUnavailable   = "Authentication service is temporarily unavailable. Please try again later."
)

// AuthError is a typed failure returned by the auth service. Message is
// always safe to show to the end user; the detailed cause goes only to the
// audit log.
type AuthError struct {
	Code       string        // Error code (e.g., "validation_error", "rate_limit_exceeded")
	Message    string        // User-facing error message
	Status     int           // HTTP status code
	RetryAfter time.Duration // Set for rate-limit errors; zero otherwise
}

// Error implements the error interface
func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewAuthError creates a new auth error
func NewAuthError(code, message string, status int) *AuthError {
	return &AuthError{
		Code:    code,
		Message: message,
		Status:  status,
	}
}

// Common auth errors as reusable constructors
var (
	// ErrValidation indicates malformed input
	ErrValidation = func(msg string) *AuthError {
		return NewAuthError(ErrorCodeValidation, msg, http.StatusBadRequest)
	}

	// ErrAuthentication indicates rejected credentials. Never distinguishes
	// an unknown account from a wrong password.
	ErrAuthentication = func(msg string) *AuthError {
		return NewAuthError(ErrorCodeAuthentication, msg, http.StatusUnauthorized)
	}

	// ErrSecurity indicates a detected injection or abuse attempt
	ErrSecurity = func(msg string) *AuthError {
		return NewAuthError(ErrorCodeSecurity, msg, http.StatusBadRequest)
	}

	// ErrServer indicates an unexpected internal error
	ErrServer = func(msg string) *AuthError {
		return NewAuthError(ErrorCodeServer, msg, http.StatusInternalServerError)
	}

	// ErrExternalService indicates the account store is unreachable or erroring
	ErrExternalService = func(msg string) *AuthError {
		return NewAuthError(ErrorCodeExternalService, msg, http.StatusBadGateway)
	}
)

// ErrRateLimited indicates the caller is locked out by the failed-attempt
// limiter. The message tells the user when to retry, rounded up to whole
// minutes.
func ErrRateLimited(retryAfter time.Duration) *AuthError {
	minutes := int(math.Ceil(retryAfter.Minutes()))
	if minutes < 1 {
		minutes = 1
	}

	unit := "minutes"
	if minutes == 1 {
		unit = "minute"
	}

	return &AuthError{
		Code:       ErrorCodeRateLimited,
		Message:    fmt.Sprintf("Too many failed attempts. Please try again in %d %s.", minutes, unit),
		Status:     http.StatusTooManyRequests,
		RetryAfter: retryAfter,
	}
}
