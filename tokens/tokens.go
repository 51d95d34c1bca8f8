package tokens

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"

	"github.com/storefront-kit/auth/accounts"
	"github.com/storefront-kit/auth/internal/util"
	"github.com/storefront-kit/auth/security"
	"github.com/storefront-kit/auth/storage"
)

const (
	// DefaultTTL is the session token lifetime. Expiry is absolute from
	// issuance: there is no sliding renewal.
	DefaultTTL = 30 * time.Minute

	// refreshTokenBytes is the entropy of a generated refresh token.
	refreshTokenBytes = 32

	// tokenLogLength is how many characters of a token may appear in logs.
	tokenLogLength = 8
)

// Service manages session token records through an injected TokenStore.
type Service struct {
	store  storage.TokenStore
	ttl    time.Duration
	logger *slog.Logger
}

// NewService creates a token service with the default 30 minute TTL.
func NewService(store storage.TokenStore, logger *slog.Logger) *Service {
	return NewServiceWithTTL(store, DefaultTTL, logger)
}

// NewServiceWithTTL creates a token service with a custom TTL.
func NewServiceWithTTL(store storage.TokenStore, ttl time.Duration, logger *slog.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		ttl:    ttl,
		logger: logger,
	}
}

// TTL returns the configured token lifetime.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Issue stores a session token record for a subject: the store-issued
// access token, a freshly generated opaque refresh token, and an expiry of
// now plus the TTL. Any prior record for the subject is overwritten, so a
// concurrent login invalidates the previous session transparently.
func (s *Service) Issue(ctx context.Context, subjectID, accessToken string) (*oauth2.Token, error) {
	if subjectID == "" {
		return nil, fmt.Errorf("subject ID is required")
	}
	if accessToken == "" {
		return nil, fmt.Errorf("access token is required")
	}

	refreshToken, err := generateOpaqueToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	token := &oauth2.Token{
		AccessToken:  accessToken,
		TokenType:    "Bearer",
		RefreshToken: refreshToken,
		Expiry:       time.Now().Add(s.ttl),
	}

	if err := s.store.SaveToken(ctx, subjectID, token); err != nil {
		return nil, fmt.Errorf("failed to store token: %w", err)
	}

	s.logger.Debug("Session token issued",
		"subject_id", subjectID,
		"token_prefix", util.SafeTruncate(accessToken, tokenLogLength),
		"expires_at", token.Expiry)

	return token, nil
}

// Verify reports whether token is the live session token for subjectID.
// It is false when no record exists, when the value differs (compared in
// constant time), and when the record has expired. Expiry is checked even
// on an exact value match. Verify never errors: absence and mismatch are
// both simply false.
func (s *Service) Verify(ctx context.Context, subjectID, token string) bool {
	if subjectID == "" || token == "" {
		return false
	}

	record, err := s.store.GetToken(ctx, subjectID)
	if err != nil {
		if !errors.Is(err, storage.ErrTokenNotFound) {
			s.logger.Warn("Token store read failed during verification",
				"subject_id", subjectID,
				"error", err)
		}
		return false
	}

	if subtle.ConstantTimeCompare([]byte(record.AccessToken), []byte(token)) != 1 {
		return false
	}

	return !security.IsTokenExpired(record.Expiry)
}

// Remove deletes the session token record for a subject. Removing an
// absent record is a no-op, so Remove is safe to call unconditionally on
// logout.
func (s *Service) Remove(ctx context.Context, subjectID string) error {
	if subjectID == "" {
		return nil
	}
	if err := s.store.DeleteToken(ctx, subjectID); err != nil && !errors.Is(err, storage.ErrTokenNotFound) {
		return fmt.Errorf("failed to remove tokens: %w", err)
	}
	return nil
}

// SaveSubject caches the subject profile alongside its session record.
func (s *Service) SaveSubject(ctx context.Context, subjectID string, subject *accounts.Subject) error {
	return s.store.SaveSubject(ctx, subjectID, subject)
}

// Subject retrieves the cached subject profile for a session.
func (s *Service) Subject(ctx context.Context, subjectID string) (*accounts.Subject, error) {
	return s.store.GetSubject(ctx, subjectID)
}

// generateOpaqueToken returns a cryptographically random URL-safe token.
func generateOpaqueToken() (string, error) {
	b := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
