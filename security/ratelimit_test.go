package security

import (
	"fmt"
	"testing"
	"time"
)

func TestRequestLimiterAllow(t *testing.T) {
	rl := NewRequestLimiter(1, 2, discardLogger())
	defer rl.Stop()

	if !rl.Allow("client1") {
		t.Error("first request denied")
	}
	if !rl.Allow("client1") {
		t.Error("second request denied within burst")
	}
	if rl.Allow("client1") {
		t.Error("third request allowed beyond burst")
	}
}

func TestRequestLimiterPerIdentifier(t *testing.T) {
	rl := NewRequestLimiter(1, 1, discardLogger())
	defer rl.Stop()

	if !rl.Allow("client1") {
		t.Fatal("client1 first request denied")
	}
	if rl.Allow("client1") {
		t.Fatal("client1 second request allowed beyond burst")
	}
	if !rl.Allow("client2") {
		t.Error("client2 throttled by client1's bucket")
	}
}

func TestRequestLimiterLRUEviction(t *testing.T) {
	rl := NewRequestLimiter(1, 1, discardLogger())
	defer rl.Stop()
	rl.maxEntries = 3

	for i := 0; i < 3; i++ {
		rl.Allow(fmt.Sprintf("client%d", i))
	}
	if rl.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", rl.Len())
	}

	// client0 is now least recently used; a fourth identifier evicts it.
	rl.Allow("client3")
	if rl.Len() != 3 {
		t.Errorf("Len() after eviction = %d, want 3", rl.Len())
	}

	// client0 returns with a fresh bucket, so its request is allowed again.
	if !rl.Allow("client0") {
		t.Error("evicted identifier did not get a fresh bucket")
	}
}

func TestRequestLimiterCleanup(t *testing.T) {
	rl := NewRequestLimiter(10, 10, discardLogger())
	defer rl.Stop()

	rl.Allow("stale")
	time.Sleep(20 * time.Millisecond)
	rl.Allow("fresh")

	rl.Cleanup(10 * time.Millisecond)

	if rl.Len() != 1 {
		t.Errorf("Len() after cleanup = %d, want 1", rl.Len())
	}
	if !rl.Allow("fresh") {
		t.Error("fresh identifier removed by cleanup")
	}
}

func TestRequestLimiterStopIdempotent(t *testing.T) {
	rl := NewRequestLimiter(1, 1, discardLogger())
	rl.Stop()
	rl.Stop()
}
