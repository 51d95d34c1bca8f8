package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/storefront-kit/auth/accounts"
	"github.com/storefront-kit/auth/instrumentation"
	"github.com/storefront-kit/auth/security"
	"github.com/storefront-kit/auth/storage"
	"github.com/storefront-kit/auth/tokens"
)

// Service orchestrates login, registration, and logout flows over an
// external account store. It gates every login behind the failed-attempt
// limiter, screens inputs for shape and injection signatures, delegates
// credential verification to the store, and issues session tokens on
// success.
type Service struct {
	store    accounts.Store
	tokens   *tokens.Service
	attempts *security.FailedAttemptLimiter
	auditor  *security.Auditor
	logger   *slog.Logger
	config   *Config
	inst     *instrumentation.Instrumentation

	// delayFn inserts the randomized failure delay. Overridable in tests.
	delayFn func(ctx context.Context)
}

// LoginResult is a successful authentication outcome: the subject as
// returned by the account store (no password field exists on it) and the
// issued session token.
type LoginResult struct {
	Subject *accounts.Subject
	Token   *oauth2.Token
}

// NewService creates the auth service. store, tokenStore, and attemptStore
// are required; cfg may be nil for defaults.
func NewService(store accounts.Store, tokenStore storage.TokenStore, attemptStore storage.AttemptStore, cfg *Config) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("account store is required")
	}
	if tokenStore == nil {
		return nil, fmt.Errorf("token store is required")
	}
	if attemptStore == nil {
		return nil, fmt.Errorf("attempt store is required")
	}

	cfg = cfg.withDefaults()
	logger := cfg.Logger

	auditor := security.NewAuditor(logger, cfg.EnableAuditLogging)
	auditor.SetInstrumentation(cfg.Instrumentation)

	return &Service{
		store:    store,
		tokens:   tokens.NewServiceWithTTL(tokenStore, cfg.TokenTTL, logger),
		attempts: security.NewFailedAttemptLimiterWithConfig(attemptStore, cfg.MaxLoginAttempts, cfg.LockoutWindow, logger),
		auditor:  auditor,
		logger:   logger,
		config:   cfg,
		inst:     cfg.Instrumentation,
		delayFn: func(ctx context.Context) {
			security.FailureDelay(ctx)
		},
	}, nil
}

// Login authenticates the credentials for the caller at callerAddress.
//
// The flow, in order: the failed-attempt limiter is consulted first, before
// any network call; the email shape and both inputs are screened for
// injection signatures; the raw credentials go to the account store (the
// password is intentionally never sanitized, it must match the stored value
// byte for byte); on success the limiter is reset and a session token is
// issued; on rejection or store failure a randomized delay is inserted
// before returning so response timing does not reveal which step failed.
//
// Every failure returns a *AuthError with a generic public message. The
// audit trail records the caller address and the internal reason, never the
// credential value.
func (s *Service) Login(ctx context.Context, email, password, callerAddress string) (*LoginResult, error) {
	decision, err := s.attempts.Check(ctx, callerAddress)
	if err != nil {
		// Fail open: the limiter is advisory and already logged the store
		// failure.
		s.logger.Warn("Attempt limiter unavailable, continuing", "error", err)
	}
	if !decision.Allowed {
		s.auditor.LogLoginRateLimited(callerAddress, decision.Remaining)
		if s.inst != nil {
			s.inst.Metrics().RecordRateLimitExceeded(ctx, "login")
			s.inst.Metrics().RecordLockout(ctx)
		}
		return nil, ErrRateLimited(decision.Remaining)
	}

	if !security.ValidateEmail(email) {
		s.auditor.LogValidationRejected(callerAddress, "login", "email shape")
		if s.inst != nil {
			s.inst.Metrics().RecordValidationRejected(ctx, "login")
		}
		return nil, ErrValidation(MsgInvalidFormat)
	}

	if field := s.screenInjection(ctx, "login", callerAddress,
		inputField{"email", email},
		inputField{"password", password},
	); field != "" {
		return nil, ErrSecurity(MsgInvalidFormat)
	}

	subject, storeToken, err := s.store.Login(ctx, accounts.Credentials{
		Email:    email,
		Password: password,
	})
	if err != nil {
		s.recordLoginOutcome(ctx, false)
		defer s.delayFn(ctx)

		if errors.Is(err, accounts.ErrInvalidCredentials) {
			s.auditor.LogLoginFailure(email, callerAddress, "account store rejected credentials")
			return nil, ErrAuthentication(MsgInvalidCredentials)
		}

		s.logger.Error("Account store login call failed",
			"store", s.store.Name(),
			"error", err)
		s.auditor.LogAccountStoreUnavailable("login", err)
		return nil, ErrExternalService(MsgServiceUnavailable)
	}

	if err := s.attempts.Reset(ctx, callerAddress); err != nil {
		s.logger.Warn("Failed to reset login attempts",
			"error", err)
	}

	token, err := s.tokens.Issue(ctx, subject.ID, storeToken)
	if err != nil {
		s.logger.Error("Failed to issue session token",
			"subject_id", subject.ID,
			"error", err)
		s.recordLoginOutcome(ctx, false)
		return nil, ErrServer(MsgServiceUnavailable)
	}

	if err := s.tokens.SaveSubject(ctx, subject.ID, subject); err != nil {
		s.logger.Warn("Failed to cache subject profile",
			"subject_id", subject.ID,
			"error", err)
	}

	s.auditor.LogLoginSuccess(subject.ID, email, callerAddress)
	s.auditor.LogTokenIssued(subject.ID, callerAddress, token.Expiry)
	s.recordLoginOutcome(ctx, true)
	if s.inst != nil {
		s.inst.Metrics().RecordTokenIssued(ctx)
	}

	return &LoginResult{Subject: subject, Token: token}, nil
}

// Register creates a new account through the account store. The username is
// sanitized for display; the email and password are sent raw. Password
// strength feedback names the specific unmet rule, which is acceptable to
// leak on registration, unlike login failures.
func (s *Service) Register(ctx context.Context, username, email, password, callerAddress string) (*accounts.Subject, error) {
	if !security.ValidateEmail(email) {
		s.auditor.LogValidationRejected(callerAddress, "register", "email shape")
		if s.inst != nil {
			s.inst.Metrics().RecordValidationRejected(ctx, "register")
		}
		return nil, ErrValidation("Please provide a valid email address.")
	}

	if check := security.ValidatePasswordStrength(password); !check.Valid {
		s.auditor.LogValidationRejected(callerAddress, "register", "password strength")
		if s.inst != nil {
			s.inst.Metrics().RecordValidationRejected(ctx, "register")
		}
		return nil, ErrValidation(check.Message)
	}

	if field := s.screenInjection(ctx, "register", callerAddress,
		inputField{"username", username},
		inputField{"email", email},
		inputField{"password", password},
	); field != "" {
		return nil, ErrSecurity(MsgRegistrationRejected)
	}

	// Sanitize only after screening. The escaped entities contain
	// characters the injection patterns would flag, so screening the
	// sanitized form would reject any username with markup characters.
	username = security.Sanitize(username)

	subject, _, err := s.store.Register(ctx, accounts.Registration{
		Username: username,
		Email:    email,
		Password: password,
	})
	if err != nil {
		if s.inst != nil {
			s.inst.Metrics().RecordRegistration(ctx, false)
		}

		// The store's own message is safe to surface when present
		// (e.g. "Email already registered").
		var storeErr *accounts.StoreError
		if errors.As(err, &storeErr) && storeErr.Message != "" {
			status := storeErr.Status
			if status < http.StatusBadRequest {
				status = http.StatusBadGateway
			}
			return nil, NewAuthError(ErrorCodeExternalService, storeErr.Message, status)
		}

		s.logger.Error("Account store register call failed",
			"store", s.store.Name(),
			"error", err)
		s.auditor.LogAccountStoreUnavailable("register", err)
		return nil, ErrExternalService(MsgServiceUnavailable)
	}

	s.auditor.LogRegistration(subject.ID, email)
	if s.inst != nil {
		s.inst.Metrics().RecordRegistration(ctx, true)
	}

	return subject, nil
}

// Logout removes the subject's session tokens and records the event. It
// never fails: storage errors are logged and swallowed, and logging out an
// absent session is a no-op.
func (s *Service) Logout(ctx context.Context, subjectID, callerAddress string) {
	if err := s.tokens.Remove(ctx, subjectID); err != nil {
		s.logger.Warn("Failed to remove session tokens",
			"subject_id", subjectID,
			"error", err)
	}

	s.auditor.LogLogout(subjectID, callerAddress)
	if s.inst != nil {
		s.inst.Metrics().RecordLogout(ctx)
	}
}

// VerifySession reports whether token is the live session token for
// subjectID. Absence, mismatch, and expiry are all simply false.
func (s *Service) VerifySession(ctx context.Context, subjectID, token string) bool {
	valid := s.tokens.Verify(ctx, subjectID, token)
	if s.inst != nil {
		s.inst.Metrics().RecordTokenVerified(ctx, valid)
	}
	return valid
}

// Subject returns the cached profile for an authenticated subject.
func (s *Service) Subject(ctx context.Context, subjectID string) (*accounts.Subject, error) {
	return s.tokens.Subject(ctx, subjectID)
}

// HealthCheck verifies the account store is reachable.
func (s *Service) HealthCheck(ctx context.Context) error {
	return s.store.HealthCheck(ctx)
}

// AttemptStats returns failed-attempt limiter counters for monitoring.
func (s *Service) AttemptStats() security.AttemptStats {
	return s.attempts.GetStats()
}

type inputField struct {
	name  string
	value string
}

// screenInjection checks the fields in order and returns the name of the
// first one matching an injection signature, or "" when all are clean. The
// audit event records the field name and caller address, never the value.
func (s *Service) screenInjection(ctx context.Context, flow, callerAddress string, fields ...inputField) string {
	for _, f := range fields {
		if security.DetectInjection(f.value) {
			s.auditor.LogInjectionBlocked(callerAddress, flow, f.name)
			if s.inst != nil {
				s.inst.Metrics().RecordInjectionDetected(ctx, flow, f.name)
			}
			return f.name
		}
	}
	return ""
}

// recordLoginOutcome records the login attempt metric.
func (s *Service) recordLoginOutcome(ctx context.Context, success bool) {
	if s.inst != nil {
		s.inst.Metrics().RecordLoginAttempt(ctx, success)
	}
}
