package security

import (
	"container/list"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultMaxLimiterEntries bounds how many distinct client identifiers the
// request limiter tracks before evicting the least recently used.
const DefaultMaxLimiterEntries = 10000

// requestLimiterEntry pairs a token bucket with its LRU bookkeeping.
type requestLimiterEntry struct {
	identifier string
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RequestLimiter throttles requests per client identifier using a token
// bucket, with LRU eviction so tracked state cannot grow without bound.
// It sits in front of the HTTP surface; the FailedAttemptLimiter handles
// the login-specific lockout separately.
type RequestLimiter struct {
	entries         map[string]*list.Element
	lruList         *list.List
	mu              sync.Mutex
	rate            int
	burst           int
	maxEntries      int
	logger          *slog.Logger
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once

	totalEvictions int64
}

// NewRequestLimiter creates a request limiter allowing requestsPerSecond
// sustained with the given burst, per identifier.
func NewRequestLimiter(requestsPerSecond, burst int, logger *slog.Logger) *RequestLimiter {
	if logger == nil {
		logger = slog.Default()
	}

	rl := &RequestLimiter{
		entries:         make(map[string]*list.Element),
		lruList:         list.New(),
		rate:            requestsPerSecond,
		burst:           burst,
		maxEntries:      DefaultMaxLimiterEntries,
		logger:          logger,
		cleanupInterval: 5 * time.Minute,
		stopCleanup:     make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Allow reports whether a request from the given identifier may proceed.
func (rl *RequestLimiter) Allow(identifier string) bool {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if elem, exists := rl.entries[identifier]; exists {
		rl.lruList.MoveToFront(elem)
		entry := elem.Value.(*requestLimiterEntry)
		entry.lastAccess = now
		return entry.limiter.Allow()
	}

	if rl.maxEntries > 0 && len(rl.entries) >= rl.maxEntries {
		rl.evictLRU()
	}

	entry := &requestLimiterEntry{
		identifier: identifier,
		limiter:    rate.NewLimiter(rate.Limit(rl.rate), rl.burst),
		lastAccess: now,
	}
	rl.entries[identifier] = rl.lruList.PushFront(entry)

	return entry.limiter.Allow()
}

// evictLRU removes the least recently used entry. Caller holds the mutex.
func (rl *RequestLimiter) evictLRU() {
	elem := rl.lruList.Back()
	if elem == nil {
		return
	}

	entry := elem.Value.(*requestLimiterEntry)
	delete(rl.entries, entry.identifier)
	rl.lruList.Remove(elem)
	rl.totalEvictions++

	rl.logger.Debug("Request limiter LRU eviction",
		"identifier", entry.identifier,
		"total_evictions", rl.totalEvictions)
}

func (rl *RequestLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.Cleanup(30 * time.Minute)
		case <-rl.stopCleanup:
			return
		}
	}
}

// Cleanup removes limiters that have been idle longer than maxIdleTime.
func (rl *RequestLimiter) Cleanup(maxIdleTime time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	removed := 0

	var next *list.Element
	for elem := rl.lruList.Front(); elem != nil; elem = next {
		next = elem.Next()
		entry := elem.Value.(*requestLimiterEntry)

		if now.Sub(entry.lastAccess) > maxIdleTime {
			delete(rl.entries, entry.identifier)
			rl.lruList.Remove(elem)
			removed++
		}
	}

	if removed > 0 {
		rl.logger.Debug("Request limiter cleanup completed",
			"removed", removed,
			"remaining", len(rl.entries))
	}
}

// Stop stops the cleanup goroutine. Safe to call more than once.
func (rl *RequestLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

// Len returns the number of tracked identifiers.
func (rl *RequestLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.entries)
}
