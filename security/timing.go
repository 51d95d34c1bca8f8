package security

import (
	"context"
	"math/rand/v2"
	"time"
)

const (
	// DefaultFailureDelayMin and DefaultFailureDelayMax bound the randomized
	// delay inserted before a failed login returns. The jitter blurs the
	// timing difference between "unknown account" and "wrong password",
	// reducing timing-based user enumeration.
	DefaultFailureDelayMin = 200 * time.Millisecond
	DefaultFailureDelayMax = 1200 * time.Millisecond
)

// FailureDelay sleeps for a random duration in the default failure window,
// returning early if ctx is canceled.
func FailureDelay(ctx context.Context) {
	FailureDelayBetween(ctx, DefaultFailureDelayMin, DefaultFailureDelayMax)
}

// FailureDelayBetween sleeps for a random duration in [min, max), returning
// early if ctx is canceled. A non-positive window sleeps for min.
func FailureDelayBetween(ctx context.Context, min, max time.Duration) {
	delay := min
	if window := max - min; window > 0 {
		delay += rand.N(window)
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// IsTokenExpired reports whether a token with the given expiry is no longer
// valid. Expiry is absolute: the instant now reaches expiresAt the token is
// invalid, with no grace period and no sliding renewal. A zero expiresAt
// means the token never expires.
func IsTokenExpired(expiresAt time.Time) bool {
	if expiresAt.IsZero() {
		return false
	}
	return !time.Now().Before(expiresAt)
}

// IsTokenExpiringSoon reports whether a token will expire within threshold.
// Useful for prompting re-authentication before a session lapses.
func IsTokenExpiringSoon(expiresAt time.Time, threshold time.Duration) bool {
	if expiresAt.IsZero() {
		return false
	}
	return time.Now().Add(threshold).After(expiresAt)
}
