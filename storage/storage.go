package storage

import (
	"context"
	"errors"
	"time"

	"golang.org/x/oauth2"

	"github.com/storefront-kit/auth/accounts"
)

// Sentinel errors returned by store implementations. Callers must compare
// with errors.Is: backends wrap these with their own context.
var (
	// ErrTokenNotFound is returned when no token record exists for a subject.
	ErrTokenNotFound = errors.New("token not found")

	// ErrSubjectNotFound is returned when no cached subject exists.
	ErrSubjectNotFound = errors.New("subject not found")

	// ErrAttemptsNotFound is returned when no attempt entry exists for a key.
	ErrAttemptsNotFound = errors.New("attempt entry not found")
)

// TokenStore persists one live session token record per subject.
//
// SaveToken overwrites any existing record for the subject: the session
// model is single-active-session, so a re-login transparently invalidates
// the previous token. The overwrite is last-writer-wins by design; a logout
// racing a fresh login resolves to whichever write lands last, which is the
// documented behavior rather than an accident.
//
// All methods accept context.Context for tracing and cancellation.
type TokenStore interface {
	// SaveToken saves the session token for a subject, replacing any
	// previous record.
	SaveToken(ctx context.Context, subjectID string, token *oauth2.Token) error

	// GetToken retrieves the session token for a subject.
	// Returns ErrTokenNotFound if no record exists.
	GetToken(ctx context.Context, subjectID string) (*oauth2.Token, error)

	// DeleteToken removes the session token for a subject.
	// Deleting an absent record is not an error.
	DeleteToken(ctx context.Context, subjectID string) error

	// SaveSubject caches the subject profile alongside its session.
	SaveSubject(ctx context.Context, subjectID string, subject *accounts.Subject) error

	// GetSubject retrieves a cached subject profile.
	// Returns ErrSubjectNotFound if no record exists.
	GetSubject(ctx context.Context, subjectID string) (*accounts.Subject, error)
}

// AttemptEntry is the per-identifier login attempt counter. One entry exists
// per distinct identifier (caller address); it is created on first attempt,
// mutated on each attempt, and forgiven after the lockout window elapses.
type AttemptEntry struct {
	Count       int       `json:"count"`
	LastAttempt time.Time `json:"lastAttempt"`
}

// AttemptStore persists login attempt counters.
//
// The read-modify-write cycle is performed by the limiter, not the store, so
// a remote backend makes the counter approximate under concurrent writes.
// That matches the limiter's contract: it is advisory throttling, not an
// exact quota.
type AttemptStore interface {
	// GetAttempts retrieves the attempt entry for a key.
	// Returns ErrAttemptsNotFound if no entry exists.
	GetAttempts(ctx context.Context, key string) (*AttemptEntry, error)

	// PutAttempts stores the attempt entry for a key, replacing any
	// previous entry.
	PutAttempts(ctx context.Context, key string, entry *AttemptEntry) error

	// DeleteAttempts removes the attempt entry for a key.
	// Deleting an absent entry is not an error.
	DeleteAttempts(ctx context.Context, key string) error
}
