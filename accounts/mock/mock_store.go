// Package mock provides a mock implementation of the accounts.Store
// interface for testing.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/storefront-kit/auth/accounts"
)

// Compile-time check that Store implements the accounts.Store interface.
var _ accounts.Store = (*Store)(nil)

// Store is a mock account store. Each method delegates to the corresponding
// func field, so tests can override exactly the behavior they need.
type Store struct {
	// NameFunc is called when Name() is invoked
	NameFunc func() string

	// LoginFunc is called when Login() is invoked
	LoginFunc func(ctx context.Context, creds accounts.Credentials) (*accounts.Subject, string, error)

	// RegisterFunc is called when Register() is invoked
	RegisterFunc func(ctx context.Context, reg accounts.Registration) (*accounts.Subject, string, error)

	// HealthCheckFunc is called when HealthCheck() is invoked
	HealthCheckFunc func(ctx context.Context) error

	// CallCounts tracks how many times each method was called
	CallCounts map[string]int

	// mu protects CallCounts from concurrent access
	mu sync.RWMutex
}

// New creates a mock store with permissive default implementations: any
// credentials log in as a fixed test subject.
func New() *Store {
	return &Store{
		CallCounts: make(map[string]int),
		NameFunc: func() string {
			return "mock"
		},
		LoginFunc: func(ctx context.Context, creds accounts.Credentials) (*accounts.Subject, string, error) {
			return DefaultSubject(creds.Email), "mock-store-token", nil
		},
		RegisterFunc: func(ctx context.Context, reg accounts.Registration) (*accounts.Subject, string, error) {
			subject := DefaultSubject(reg.Email)
			subject.Username = reg.Username
			return subject, "mock-store-token", nil
		},
		HealthCheckFunc: func(ctx context.Context) error {
			return nil
		},
	}
}

// DefaultSubject returns the canonical mock subject for an email.
func DefaultSubject(email string) *accounts.Subject {
	return &accounts.Subject{
		ID:        "mock-subject-123",
		Username:  "mockuser",
		Email:     email,
		Role:      "customer",
		CreatedAt: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
	}
}

// Name implements accounts.Store.
func (s *Store) Name() string {
	s.recordCall("Name")
	return s.NameFunc()
}

// Login implements accounts.Store.
func (s *Store) Login(ctx context.Context, creds accounts.Credentials) (*accounts.Subject, string, error) {
	s.recordCall("Login")
	return s.LoginFunc(ctx, creds)
}

// Register implements accounts.Store.
func (s *Store) Register(ctx context.Context, reg accounts.Registration) (*accounts.Subject, string, error) {
	s.recordCall("Register")
	return s.RegisterFunc(ctx, reg)
}

// HealthCheck implements accounts.Store.
func (s *Store) HealthCheck(ctx context.Context) error {
	s.recordCall("HealthCheck")
	return s.HealthCheckFunc(ctx)
}

// Calls returns how many times the given method was invoked.
func (s *Store) Calls(method string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.CallCounts[method]
}

func (s *Store) recordCall(method string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCounts[method]++
}
