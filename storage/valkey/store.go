package valkey

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"sync"
	"time"

	valkeygo "github.com/valkey-io/valkey-go"

	"github.com/storefront-kit/auth/security"
	"github.com/storefront-kit/auth/storage"
)

const (
	// DefaultKeyPrefix is the default prefix for all Valkey keys.
	DefaultKeyPrefix = "auth:"

	// DefaultAttemptTTL is how long an attempt entry lives in Valkey with
	// no further writes. It must exceed the lockout window so a lock is
	// never silently dropped mid-window.
	DefaultAttemptTTL = time.Hour

	// tokenTTLSlack keeps an expired token record around briefly so
	// verification can still observe "expired" rather than "absent".
	tokenTTLSlack = time.Minute

	// connectionVerifyTimeout is the timeout for the initial PING.
	connectionVerifyTimeout = 5 * time.Second
)

// Config holds configuration for the Valkey storage backend.
type Config struct {
	// Address is the Valkey server address (required), e.g. "localhost:6379".
	Address string

	// Password is the optional password for Valkey authentication.
	Password string

	// DB selects the Valkey logical database.
	DB int

	// TLS enables TLS when non-nil.
	TLS *tls.Config

	// KeyPrefix namespaces all keys (default "auth:").
	KeyPrefix string

	// AttemptTTL overrides the attempt entry TTL (default 1 hour).
	AttemptTTL time.Duration

	// Logger for structured logging (optional).
	Logger *slog.Logger
}

// Store is a Valkey-backed implementation of storage.TokenStore and
// storage.AttemptStore.
type Store struct {
	client     valkeygo.Client
	prefix     string
	attemptTTL time.Duration
	logger     *slog.Logger

	encryptorMu sync.RWMutex
	encryptor   *security.Encryptor
}

// Compile-time interface checks.
var (
	_ storage.TokenStore   = (*Store)(nil)
	_ storage.AttemptStore = (*Store)(nil)
)

// New creates a Valkey-backed store and verifies the connection.
func New(cfg Config) (*Store, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("valkey address is required")
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}

	attemptTTL := cfg.AttemptTTL
	if attemptTTL <= 0 {
		attemptTTL = DefaultAttemptTTL
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	opts := valkeygo.ClientOption{
		InitAddress: []string{cfg.Address},
		SelectDB:    cfg.DB,
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.TLS != nil {
		opts.TLSConfig = cfg.TLS
	}

	client, err := valkeygo.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create valkey client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectionVerifyTimeout)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to valkey: %w", err)
	}

	logger.Info("Connected to Valkey storage",
		"address", cfg.Address,
		"db", cfg.DB,
		"prefix", prefix)

	return &Store{
		client:     client,
		prefix:     prefix,
		attemptTTL: attemptTTL,
		logger:     logger,
	}, nil
}

// Close closes the Valkey client connection.
func (s *Store) Close() {
	s.client.Close()
	s.logger.Info("Valkey storage connection closed")
}

// SetEncryptor enables refresh-token encryption at rest. Safe to call
// before serving traffic; not intended for mid-flight rotation.
func (s *Store) SetEncryptor(enc *security.Encryptor) {
	s.encryptorMu.Lock()
	defer s.encryptorMu.Unlock()
	s.encryptor = enc
	if enc != nil && enc.IsEnabled() {
		s.logger.Info("Refresh token encryption at rest enabled for Valkey storage")
	}
}

func (s *Store) getEncryptor() *security.Encryptor {
	s.encryptorMu.RLock()
	defer s.encryptorMu.RUnlock()
	return s.encryptor
}

func (s *Store) tokenKey(subjectID string) string {
	return s.prefix + "token:" + subjectID
}

func (s *Store) subjectKey(subjectID string) string {
	return s.prefix + "subject:" + subjectID
}

func (s *Store) attemptsKey(key string) string {
	return s.prefix + "attempts:" + key
}

// isNilError reports whether err is the Valkey nil reply (key absent).
func isNilError(err error) bool {
	return valkeygo.IsValkeyNil(err)
}
