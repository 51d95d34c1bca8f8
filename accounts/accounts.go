// Package accounts defines the interface to the external account store that
// owns credential verification and account creation. The auth library never
// stores or compares passwords itself; it delegates both operations to a
// Store implementation and works with the Subject it returns.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidCredentials is returned by Store.Login when the account store
// rejects the credentials. Implementations must return this same error for
// unknown accounts and for wrong passwords so that callers cannot
// distinguish the two cases.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Subject is an authenticated storefront account as returned by the account
// store. It intentionally has no password field: credentials are consumed
// during Login/Register and never travel back to callers.
type Subject struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// Credentials is a single-use login attempt. It is passed by value and must
// never be persisted or logged.
type Credentials struct {
	Email    string
	Password string
}

// Registration holds the fields for a new account request.
type Registration struct {
	Username string
	Email    string
	Password string
}

// StoreError is a non-2xx response from the account store that carried a
// message. The message is considered safe to surface to callers when
// present (e.g. "Email already registered").
type StoreError struct {
	Status  int
	Message string
}

func (e *StoreError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("account store returned status %d", e.Status)
	}
	return fmt.Sprintf("account store returned status %d: %s", e.Status, e.Message)
}

// Store is the external account store.
//
// Login verifies credentials and returns the subject plus the opaque token
// the store issued for it. It returns ErrInvalidCredentials on rejection and
// any other error when the store is unreachable or misbehaving.
//
// Register creates a new account and returns the subject the store created.
// Validation failures reported by the store surface as *StoreError.
type Store interface {
	// Name identifies the store implementation (e.g. "rest", "mock").
	Name() string

	// Login verifies credentials against the account store.
	Login(ctx context.Context, creds Credentials) (*Subject, string, error)

	// Register creates a new account.
	Register(ctx context.Context, reg Registration) (*Subject, string, error)

	// HealthCheck verifies the store is reachable. Useful for readiness
	// probes and startup validation.
	HealthCheck(ctx context.Context) error
}
