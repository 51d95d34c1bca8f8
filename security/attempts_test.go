package security

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/storefront-kit/auth/storage"
)

// fakeAttemptStore is an in-memory AttemptStore with injectable failures.
type fakeAttemptStore struct {
	entries map[string]*storage.AttemptEntry
	getErr  error
	putErr  error
	delErr  error
}

func newFakeAttemptStore() *fakeAttemptStore {
	return &fakeAttemptStore{entries: make(map[string]*storage.AttemptEntry)}
}

func (s *fakeAttemptStore) GetAttempts(ctx context.Context, key string) (*storage.AttemptEntry, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	entry, ok := s.entries[key]
	if !ok {
		return nil, storage.ErrAttemptsNotFound
	}
	copied := *entry
	return &copied, nil
}

func (s *fakeAttemptStore) PutAttempts(ctx context.Context, key string, entry *storage.AttemptEntry) error {
	if s.putErr != nil {
		return s.putErr
	}
	copied := *entry
	s.entries[key] = &copied
	return nil
}

func (s *fakeAttemptStore) DeleteAttempts(ctx context.Context, key string) error {
	if s.delErr != nil {
		return s.delErr
	}
	if _, ok := s.entries[key]; !ok {
		return storage.ErrAttemptsNotFound
	}
	delete(s.entries, key)
	return nil
}

func TestFailedAttemptLimiterThreshold(t *testing.T) {
	ctx := context.Background()
	store := newFakeAttemptStore()
	limiter := NewFailedAttemptLimiter(store, discardLogger())

	for i := 1; i <= DefaultMaxAttempts; i++ {
		decision, err := limiter.Check(ctx, "ip1")
		if err != nil {
			t.Fatalf("Check() #%d error = %v", i, err)
		}
		if !decision.Allowed {
			t.Fatalf("Check() #%d Allowed = false, want true", i)
		}
	}

	decision, err := limiter.Check(ctx, "ip1")
	if err != nil {
		t.Fatalf("Check() #6 error = %v", err)
	}
	if decision.Allowed {
		t.Fatal("Check() #6 Allowed = true, want blocked")
	}
	if decision.Remaining <= 0 {
		t.Errorf("blocked decision Remaining = %v, want > 0", decision.Remaining)
	}

	// Blocked calls do not escalate the counter.
	if count := store.entries["ip1"].Count; count != DefaultMaxAttempts {
		t.Errorf("stored count after block = %d, want %d", count, DefaultMaxAttempts)
	}
}

func TestFailedAttemptLimiterIsolatesKeys(t *testing.T) {
	ctx := context.Background()
	store := newFakeAttemptStore()
	limiter := NewFailedAttemptLimiterWithConfig(store, 2, time.Minute, discardLogger())

	for i := 0; i < 2; i++ {
		if _, err := limiter.Check(ctx, "ip1"); err != nil {
			t.Fatalf("Check(ip1) error = %v", err)
		}
	}
	if decision, _ := limiter.Check(ctx, "ip1"); decision.Allowed {
		t.Fatal("ip1 not blocked at threshold")
	}

	decision, err := limiter.Check(ctx, "ip2")
	if err != nil {
		t.Fatalf("Check(ip2) error = %v", err)
	}
	if !decision.Allowed {
		t.Error("ip2 blocked by ip1's counter")
	}
}

func TestFailedAttemptLimiterForgivesStaleLock(t *testing.T) {
	ctx := context.Background()
	store := newFakeAttemptStore()
	limiter := NewFailedAttemptLimiterWithConfig(store, 3, 15*time.Minute, discardLogger())

	store.entries["ip1"] = &storage.AttemptEntry{
		Count:       3,
		LastAttempt: time.Now().Add(-16 * time.Minute),
	}

	decision, err := limiter.Check(ctx, "ip1")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !decision.Allowed {
		t.Fatal("stale lock not forgiven")
	}
	if count := store.entries["ip1"].Count; count != 1 {
		t.Errorf("count after forgiveness = %d, want 1", count)
	}
}

func TestFailedAttemptLimiterReset(t *testing.T) {
	ctx := context.Background()
	store := newFakeAttemptStore()
	limiter := NewFailedAttemptLimiterWithConfig(store, 2, time.Minute, discardLogger())

	for i := 0; i < 2; i++ {
		if _, err := limiter.Check(ctx, "ip1"); err != nil {
			t.Fatalf("Check() error = %v", err)
		}
	}
	if decision, _ := limiter.Check(ctx, "ip1"); decision.Allowed {
		t.Fatal("not blocked before reset")
	}

	if err := limiter.Reset(ctx, "ip1"); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}

	decision, err := limiter.Check(ctx, "ip1")
	if err != nil {
		t.Fatalf("Check() after reset error = %v", err)
	}
	if !decision.Allowed {
		t.Error("blocked immediately after reset")
	}
}

func TestFailedAttemptLimiterResetUnknownKey(t *testing.T) {
	store := newFakeAttemptStore()
	limiter := NewFailedAttemptLimiter(store, discardLogger())

	if err := limiter.Reset(context.Background(), "never-seen"); err != nil {
		t.Errorf("Reset() on unknown key error = %v, want nil", err)
	}
}

func TestFailedAttemptLimiterFailsOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("read failure", func(t *testing.T) {
		store := newFakeAttemptStore()
		store.getErr = errors.New("store unreachable")
		limiter := NewFailedAttemptLimiter(store, discardLogger())

		decision, err := limiter.Check(ctx, "ip1")
		if err == nil {
			t.Error("Check() error = nil, want store error surfaced")
		}
		if !decision.Allowed {
			t.Error("Allowed = false on store read failure, want fail open")
		}
	})

	t.Run("write failure", func(t *testing.T) {
		store := newFakeAttemptStore()
		store.putErr = errors.New("store unreachable")
		limiter := NewFailedAttemptLimiter(store, discardLogger())

		decision, err := limiter.Check(ctx, "ip1")
		if err == nil {
			t.Error("Check() error = nil, want store error surfaced")
		}
		if !decision.Allowed {
			t.Error("Allowed = false on store write failure, want fail open")
		}
	})
}

func TestFailedAttemptLimiterStats(t *testing.T) {
	ctx := context.Background()
	store := newFakeAttemptStore()
	limiter := NewFailedAttemptLimiterWithConfig(store, 1, time.Minute, discardLogger())

	_, _ = limiter.Check(ctx, "ip1")
	_, _ = limiter.Check(ctx, "ip1")
	_, _ = limiter.Check(ctx, "ip1")

	stats := limiter.GetStats()
	if stats.TotalAllowed != 1 {
		t.Errorf("TotalAllowed = %d, want 1", stats.TotalAllowed)
	}
	if stats.TotalBlocked != 2 {
		t.Errorf("TotalBlocked = %d, want 2", stats.TotalBlocked)
	}
	if stats.MaxAttempts != 1 {
		t.Errorf("MaxAttempts = %d, want 1", stats.MaxAttempts)
	}
}

func TestNewFailedAttemptLimiterWithConfigDefaults(t *testing.T) {
	limiter := NewFailedAttemptLimiterWithConfig(newFakeAttemptStore(), 0, 0, discardLogger())
	stats := limiter.GetStats()
	if stats.MaxAttempts != DefaultMaxAttempts {
		t.Errorf("MaxAttempts = %d, want default %d", stats.MaxAttempts, DefaultMaxAttempts)
	}
	if stats.Window != DefaultLockoutWindow.String() {
		t.Errorf("Window = %s, want %s", stats.Window, DefaultLockoutWindow)
	}
}
