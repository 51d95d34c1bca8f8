package valkey

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/oauth2"

	"github.com/storefront-kit/auth/accounts"
	"github.com/storefront-kit/auth/storage"
)

// tokenJSON is the storage shape of a session token record. The refresh
// token is the only field encrypted at rest: the access token must be
// compared on every verification and is already opaque and short-lived.
type tokenJSON struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
}

// SaveToken saves the session token for a subject. The key expires shortly
// after the token does, so Valkey garbage-collects dead sessions on its own.
func (s *Store) SaveToken(ctx context.Context, subjectID string, token *oauth2.Token) error {
	if subjectID == "" || token == nil {
		return fmt.Errorf("invalid token record")
	}

	record := tokenJSON{
		AccessToken:  token.AccessToken,
		TokenType:    token.TokenType,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
	}

	if enc := s.getEncryptor(); enc != nil && record.RefreshToken != "" {
		encrypted, err := enc.Encrypt(record.RefreshToken)
		if err != nil {
			return fmt.Errorf("failed to encrypt refresh token: %w", err)
		}
		record.RefreshToken = encrypted
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	key := s.tokenKey(subjectID)
	cmd := s.client.B().Set().Key(key).Value(string(data))

	if ttl := tokenKeyTTL(token.Expiry, time.Now()); ttl > 0 {
		if err := s.client.Do(ctx, cmd.Ex(ttl).Build()).Error(); err != nil {
			return fmt.Errorf("failed to save token: %w", err)
		}
	} else {
		if err := s.client.Do(ctx, cmd.Build()).Error(); err != nil {
			return fmt.Errorf("failed to save token: %w", err)
		}
	}

	s.logger.Debug("Saved session token", "subject_id", subjectID)
	return nil
}

// GetToken retrieves the session token for a subject.
func (s *Store) GetToken(ctx context.Context, subjectID string) (*oauth2.Token, error) {
	data, err := s.client.Do(ctx, s.client.B().Get().Key(s.tokenKey(subjectID)).Build()).ToString()
	if err != nil {
		if isNilError(err) {
			return nil, storage.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	var record tokenJSON
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token: %w", err)
	}

	if enc := s.getEncryptor(); enc != nil && record.RefreshToken != "" {
		decrypted, err := enc.Decrypt(record.RefreshToken)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt refresh token: %w", err)
		}
		record.RefreshToken = decrypted
	}

	return &oauth2.Token{
		AccessToken:  record.AccessToken,
		TokenType:    record.TokenType,
		RefreshToken: record.RefreshToken,
		Expiry:       record.Expiry,
	}, nil
}

// DeleteToken removes the session token and cached subject. Idempotent.
func (s *Store) DeleteToken(ctx context.Context, subjectID string) error {
	if err := s.client.Do(ctx, s.client.B().Del().Key(s.tokenKey(subjectID)).Build()).Error(); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	if err := s.client.Do(ctx, s.client.B().Del().Key(s.subjectKey(subjectID)).Build()).Error(); err != nil {
		return fmt.Errorf("failed to delete subject: %w", err)
	}
	return nil
}

// SaveSubject caches the subject profile alongside its session.
func (s *Store) SaveSubject(ctx context.Context, subjectID string, subject *accounts.Subject) error {
	if subjectID == "" || subject == nil {
		return fmt.Errorf("invalid subject record")
	}

	data, err := json.Marshal(subject)
	if err != nil {
		return fmt.Errorf("failed to marshal subject: %w", err)
	}

	if err := s.client.Do(ctx, s.client.B().Set().Key(s.subjectKey(subjectID)).Value(string(data)).Build()).Error(); err != nil {
		return fmt.Errorf("failed to save subject: %w", err)
	}
	return nil
}

// GetSubject retrieves a cached subject profile.
func (s *Store) GetSubject(ctx context.Context, subjectID string) (*accounts.Subject, error) {
	data, err := s.client.Do(ctx, s.client.B().Get().Key(s.subjectKey(subjectID)).Build()).ToString()
	if err != nil {
		if isNilError(err) {
			return nil, storage.ErrSubjectNotFound
		}
		return nil, fmt.Errorf("failed to get subject: %w", err)
	}

	var subject accounts.Subject
	if err := json.Unmarshal([]byte(data), &subject); err != nil {
		return nil, fmt.Errorf("failed to unmarshal subject: %w", err)
	}
	return &subject, nil
}

// GetAttempts retrieves the attempt entry for a key.
func (s *Store) GetAttempts(ctx context.Context, key string) (*storage.AttemptEntry, error) {
	data, err := s.client.Do(ctx, s.client.B().Get().Key(s.attemptsKey(key)).Build()).ToString()
	if err != nil {
		if isNilError(err) {
			return nil, storage.ErrAttemptsNotFound
		}
		return nil, fmt.Errorf("failed to get attempts: %w", err)
	}

	var entry storage.AttemptEntry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal attempts: %w", err)
	}
	return &entry, nil
}

// PutAttempts stores the attempt entry for a key with the configured TTL,
// so abandoned counters age out of the cache on their own.
func (s *Store) PutAttempts(ctx context.Context, key string, entry *storage.AttemptEntry) error {
	if entry == nil {
		return fmt.Errorf("invalid attempt entry")
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal attempts: %w", err)
	}

	cmd := s.client.B().Set().Key(s.attemptsKey(key)).Value(string(data)).Ex(s.attemptTTL).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to save attempts: %w", err)
	}
	return nil
}

// DeleteAttempts removes the attempt entry for a key. Idempotent.
func (s *Store) DeleteAttempts(ctx context.Context, key string) error {
	if err := s.client.Do(ctx, s.client.B().Del().Key(s.attemptsKey(key)).Build()).Error(); err != nil {
		return fmt.Errorf("failed to delete attempts: %w", err)
	}
	return nil
}

// tokenKeyTTL computes how long a token key should live: until expiry plus
// a small slack. Zero expiry means no TTL.
func tokenKeyTTL(expiry, now time.Time) time.Duration {
	if expiry.IsZero() {
		return 0
	}
	ttl := expiry.Sub(now) + tokenTTLSlack
	if ttl <= 0 {
		// Already expired: keep it just long enough for one last read.
		return tokenTTLSlack
	}
	return ttl
}
