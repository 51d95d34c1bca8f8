package security

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/storefront-kit/auth/storage"
)

const (
	// DefaultMaxAttempts is the number of login attempts allowed per
	// identifier before the lockout engages.
	DefaultMaxAttempts = 5

	// DefaultLockoutWindow is how long an over-threshold identifier is
	// refused further attempts.
	DefaultLockoutWindow = 15 * time.Minute
)

// AttemptDecision is the outcome of a limiter check. When Allowed is false,
// Remaining is how long until the lockout window expires.
type AttemptDecision struct {
	Allowed   bool
	Remaining time.Duration
}

// FailedAttemptLimiter throttles login attempts per identifier (typically
// the caller address). Each identifier moves through Fresh -> Counting ->
// Locked and back to Fresh when the lockout window expires without a reset.
//
// The limiter is advisory: it reads and writes its counters through an
// injected storage.AttemptStore, and with a remote store the
// read-modify-write cycle is not atomic. A small overshoot under concurrent
// attempts is acceptable; the limiter's job is to make brute force slow, not
// to enforce an exact quota. Store failures fail open for the same reason:
// an unreachable counter store must not lock every user out.
type FailedAttemptLimiter struct {
	store       storage.AttemptStore
	maxAttempts int
	window      time.Duration
	logger      *slog.Logger

	mu sync.Mutex

	// Statistics
	totalBlocked int64
	totalAllowed int64
}

// NewFailedAttemptLimiter creates a limiter with the default threshold
// (5 attempts) and lockout window (15 minutes).
func NewFailedAttemptLimiter(store storage.AttemptStore, logger *slog.Logger) *FailedAttemptLimiter {
	return NewFailedAttemptLimiterWithConfig(store, DefaultMaxAttempts, DefaultLockoutWindow, logger)
}

// NewFailedAttemptLimiterWithConfig creates a limiter with a custom
// threshold and lockout window.
func NewFailedAttemptLimiterWithConfig(store storage.AttemptStore, maxAttempts int, window time.Duration, logger *slog.Logger) *FailedAttemptLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
		logger.Warn("Invalid maxAttempts, using default", "maxAttempts", maxAttempts)
	}
	if window <= 0 {
		window = DefaultLockoutWindow
		logger.Warn("Invalid lockout window, using default", "window", window)
	}

	return &FailedAttemptLimiter{
		store:       store,
		maxAttempts: maxAttempts,
		window:      window,
		logger:      logger,
	}
}

// Check records an attempt for key and decides whether it may proceed.
//
// The rules, in order:
//   - no entry: create {count:1, lastAttempt:now}, allow
//   - count at threshold but window elapsed: the stale lock is forgiven,
//     not escalated; reset to {count:1, lastAttempt:now}, allow
//   - count at threshold within window: block with the remaining time;
//     the count is NOT incremented further
//   - otherwise: increment, update lastAttempt, allow
func (l *FailedAttemptLimiter) Check(ctx context.Context, key string) (AttemptDecision, error) {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, err := l.store.GetAttempts(ctx, key)
	if err != nil {
		if !errors.Is(err, storage.ErrAttemptsNotFound) {
			l.logger.Warn("Attempt store read failed, failing open",
				"key", key,
				"error", err)
			l.totalAllowed++
			return AttemptDecision{Allowed: true}, fmt.Errorf("failed to read attempts: %w", err)
		}
		entry = nil
	}

	switch {
	case entry == nil:
		entry = &storage.AttemptEntry{Count: 1, LastAttempt: now}

	case entry.Count >= l.maxAttempts:
		since := now.Sub(entry.LastAttempt)
		if since <= l.window {
			l.totalBlocked++
			l.logger.Warn("Login attempts blocked",
				"key", key,
				"count", entry.Count,
				"remaining", l.window-since,
				"total_blocked", l.totalBlocked)
			return AttemptDecision{Allowed: false, Remaining: l.window - since}, nil
		}
		// Window expired with no reset: forgive and start over.
		entry = &storage.AttemptEntry{Count: 1, LastAttempt: now}

	default:
		entry.Count++
		entry.LastAttempt = now
	}

	if err := l.store.PutAttempts(ctx, key, entry); err != nil {
		l.logger.Warn("Attempt store write failed, failing open",
			"key", key,
			"error", err)
		l.totalAllowed++
		return AttemptDecision{Allowed: true}, fmt.Errorf("failed to write attempts: %w", err)
	}

	l.totalAllowed++
	return AttemptDecision{Allowed: true}, nil
}

// Reset clears the attempt counter for key. Call after a verified
// successful authentication so prior failures are forgiven immediately.
func (l *FailedAttemptLimiter) Reset(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.store.DeleteAttempts(ctx, key); err != nil && !errors.Is(err, storage.ErrAttemptsNotFound) {
		return fmt.Errorf("failed to reset attempts: %w", err)
	}
	return nil
}

// AttemptStats holds limiter counters for monitoring.
type AttemptStats struct {
	TotalBlocked int64
	TotalAllowed int64
	MaxAttempts  int
	Window       string
}

// GetStats returns current limiter statistics.
func (l *FailedAttemptLimiter) GetStats() AttemptStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	return AttemptStats{
		TotalBlocked: l.totalBlocked,
		TotalAllowed: l.totalAllowed,
		MaxAttempts:  l.maxAttempts,
		Window:       l.window.String(),
	}
}
