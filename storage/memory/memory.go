package memory

import (
	"container/list"
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"

	"github.com/storefront-kit/auth/accounts"
	"github.com/storefront-kit/auth/instrumentation"
	"github.com/storefront-kit/auth/storage"
)

const (
	// DefaultCleanupInterval is how often expired tokens and stale attempt
	// entries are swept.
	DefaultCleanupInterval = time.Minute

	// DefaultMaxAttemptEntries bounds how many attempt counters are kept
	// before the least recently touched one is evicted.
	DefaultMaxAttemptEntries = 10000

	// attemptIdleTTL is how long an untouched attempt entry survives a
	// cleanup sweep. Anything idle this long is past any lockout window.
	attemptIdleTTL = time.Hour
)

// attemptElem pairs an attempt entry with its key for LRU bookkeeping.
type attemptElem struct {
	key   string
	entry storage.AttemptEntry
}

// Store is an in-memory implementation of storage.TokenStore and
// storage.AttemptStore.
type Store struct {
	mu sync.RWMutex

	tokens   map[string]*oauth2.Token
	subjects map[string]*accounts.Subject

	attempts   map[string]*list.Element
	attemptLRU *list.List
	maxAttempt int

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
	logger          *slog.Logger

	inst   *instrumentation.Instrumentation
	tracer trace.Tracer
}

// Compile-time interface checks.
var (
	_ storage.TokenStore   = (*Store)(nil)
	_ storage.AttemptStore = (*Store)(nil)
)

// New creates an in-memory store with default cleanup interval (1 minute).
func New() *Store {
	return NewWithConfig(DefaultCleanupInterval, DefaultMaxAttemptEntries, nil)
}

// NewWithConfig creates an in-memory store with a custom cleanup interval
// and attempt-entry bound. Non-positive values fall back to the defaults.
func NewWithConfig(cleanupInterval time.Duration, maxAttemptEntries int, logger *slog.Logger) *Store {
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}
	if maxAttemptEntries <= 0 {
		maxAttemptEntries = DefaultMaxAttemptEntries
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		tokens:          make(map[string]*oauth2.Token),
		subjects:        make(map[string]*accounts.Subject),
		attempts:        make(map[string]*list.Element),
		attemptLRU:      list.New(),
		maxAttempt:      maxAttemptEntries,
		cleanupInterval: cleanupInterval,
		stopCleanup:     make(chan struct{}),
		logger:          logger,
	}

	go s.cleanupLoop()

	return s
}

// SaveToken saves the session token for a subject, replacing any previous
// record. Last writer wins; see storage.TokenStore.
func (s *Store) SaveToken(ctx context.Context, subjectID string, token *oauth2.Token) (err error) {
	ctx, span, start := s.startStorageSpan(ctx, "save_token")
	defer func() { s.recordStorageOperation(ctx, span, "save_token", err, start) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy so callers cannot mutate the record afterwards.
	cp := *token
	s.tokens[subjectID] = &cp
	return nil
}

// GetToken retrieves the session token for a subject.
func (s *Store) GetToken(ctx context.Context, subjectID string) (_ *oauth2.Token, err error) {
	ctx, span, start := s.startStorageSpan(ctx, "get_token")
	defer func() { s.recordStorageOperation(ctx, span, "get_token", err, start) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	token, ok := s.tokens[subjectID]
	if !ok {
		return nil, storage.ErrTokenNotFound
	}
	cp := *token
	return &cp, nil
}

// DeleteToken removes the session token and cached subject for a subject.
// Idempotent.
func (s *Store) DeleteToken(ctx context.Context, subjectID string) (err error) {
	ctx, span, start := s.startStorageSpan(ctx, "delete_token")
	defer func() { s.recordStorageOperation(ctx, span, "delete_token", err, start) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tokens, subjectID)
	delete(s.subjects, subjectID)
	return nil
}

// SaveSubject caches the subject profile.
func (s *Store) SaveSubject(ctx context.Context, subjectID string, subject *accounts.Subject) (err error) {
	ctx, span, start := s.startStorageSpan(ctx, "save_subject")
	defer func() { s.recordStorageOperation(ctx, span, "save_subject", err, start) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *subject
	s.subjects[subjectID] = &cp
	return nil
}

// GetSubject retrieves a cached subject profile.
func (s *Store) GetSubject(ctx context.Context, subjectID string) (_ *accounts.Subject, err error) {
	ctx, span, start := s.startStorageSpan(ctx, "get_subject")
	defer func() { s.recordStorageOperation(ctx, span, "get_subject", err, start) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	subject, ok := s.subjects[subjectID]
	if !ok {
		return nil, storage.ErrSubjectNotFound
	}
	cp := *subject
	return &cp, nil
}

// GetAttempts retrieves the attempt entry for a key.
func (s *Store) GetAttempts(ctx context.Context, key string) (_ *storage.AttemptEntry, err error) {
	ctx, span, start := s.startStorageSpan(ctx, "get_attempts")
	defer func() { s.recordStorageOperation(ctx, span, "get_attempts", err, start) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.attempts[key]
	if !ok {
		return nil, storage.ErrAttemptsNotFound
	}

	s.attemptLRU.MoveToFront(elem)
	entry := elem.Value.(*attemptElem).entry
	return &entry, nil
}

// PutAttempts stores the attempt entry for a key, evicting the least
// recently used entry when the bound is reached.
func (s *Store) PutAttempts(ctx context.Context, key string, entry *storage.AttemptEntry) (err error) {
	ctx, span, start := s.startStorageSpan(ctx, "put_attempts")
	defer func() { s.recordStorageOperation(ctx, span, "put_attempts", err, start) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.attempts[key]; ok {
		s.attemptLRU.MoveToFront(elem)
		elem.Value.(*attemptElem).entry = *entry
		return nil
	}

	if s.maxAttempt > 0 && len(s.attempts) >= s.maxAttempt {
		s.evictOldestAttempt()
	}

	s.attempts[key] = s.attemptLRU.PushFront(&attemptElem{key: key, entry: *entry})
	return nil
}

// DeleteAttempts removes the attempt entry for a key. Idempotent.
func (s *Store) DeleteAttempts(ctx context.Context, key string) (err error) {
	ctx, span, start := s.startStorageSpan(ctx, "delete_attempts")
	defer func() { s.recordStorageOperation(ctx, span, "delete_attempts", err, start) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.attempts[key]; ok {
		s.attemptLRU.Remove(elem)
		delete(s.attempts, key)
	}
	return nil
}

// SetInstrumentation enables tracing and metrics for storage operations and
// registers the storage size gauges. Call once, before the store is shared.
func (s *Store) SetInstrumentation(inst *instrumentation.Instrumentation) {
	if inst == nil {
		return
	}
	s.inst = inst
	s.tracer = inst.Tracer("storage")

	err := inst.RegisterStorageSizeCallbacks(
		func() int64 { return int64(s.TokenCount()) },
		func() int64 { return int64(s.AttemptCount()) },
	)
	if err != nil {
		s.logger.Warn("Failed to register storage size gauges",
			"error", err)
	}
}

// startStorageSpan opens a span for one storage operation. Returns a nil
// span when instrumentation is not set.
func (s *Store) startStorageSpan(ctx context.Context, operation string) (context.Context, trace.Span, time.Time) {
	start := time.Now()
	if s.tracer == nil {
		return ctx, nil, start
	}
	ctx, span := s.tracer.Start(ctx, "storage."+operation)
	instrumentation.AddStorageAttributes(span, operation, "memory")
	return ctx, span, start
}

// recordStorageOperation closes the span and records the operation metric.
// Safe to call when instrumentation is not set.
func (s *Store) recordStorageOperation(ctx context.Context, span trace.Span, operation string, err error, start time.Time) {
	result := "success"
	if err != nil {
		result = "error"
	}

	if span != nil {
		instrumentation.SetSpanAttributes(span,
			attribute.String(instrumentation.AttrStorageResult, result))
		if err != nil {
			instrumentation.RecordError(span, err)
		} else {
			instrumentation.SetSpanSuccess(span)
		}
		span.End()
	}

	if s.inst == nil {
		return
	}
	s.inst.Metrics().RecordStorageOperation(ctx, operation, result,
		float64(time.Since(start).Milliseconds()))
}

// TokenCount returns the number of live token records, for monitoring.
func (s *Store) TokenCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}

// AttemptCount returns the number of tracked attempt entries.
func (s *Store) AttemptCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.attempts)
}

// Stop stops the cleanup goroutine. Safe to call more than once.
func (s *Store) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCleanup)
	})
}

// evictOldestAttempt removes the least recently used attempt entry.
// Caller holds the mutex.
func (s *Store) evictOldestAttempt() {
	elem := s.attemptLRU.Back()
	if elem == nil {
		return
	}
	ae := elem.Value.(*attemptElem)
	delete(s.attempts, ae.key)
	s.attemptLRU.Remove(elem)

	s.logger.Debug("Attempt entry evicted",
		"key", ae.key,
		"remaining", len(s.attempts))
}

func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCleanup:
			return
		}
	}
}

// cleanup removes expired token records and long-idle attempt entries.
func (s *Store) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removedTokens := 0
	for id, token := range s.tokens {
		if !token.Expiry.IsZero() && !now.Before(token.Expiry) {
			delete(s.tokens, id)
			delete(s.subjects, id)
			removedTokens++
		}
	}

	removedAttempts := 0
	var next *list.Element
	for elem := s.attemptLRU.Front(); elem != nil; elem = next {
		next = elem.Next()
		ae := elem.Value.(*attemptElem)
		if now.Sub(ae.entry.LastAttempt) > attemptIdleTTL {
			delete(s.attempts, ae.key)
			s.attemptLRU.Remove(elem)
			removedAttempts++
		}
	}

	if removedTokens > 0 || removedAttempts > 0 {
		s.logger.Debug("Storage cleanup completed",
			"expired_tokens", removedTokens,
			"stale_attempts", removedAttempts)
	}
}
