package auth

import (
	"log/slog"
	"time"

	"github.com/storefront-kit/auth/instrumentation"
	"github.com/storefront-kit/auth/security"
	"github.com/storefront-kit/auth/tokens"
)

// Config holds the auth service configuration
type Config struct {
	// BaseURL is the public base URL this service is reachable at.
	// Used for security response headers (HSTS is only sent for https).
	BaseURL string

	// TokenTTL is the session token lifetime.
	// Default: 30 minutes. Expiry is absolute from issuance.
	TokenTTL time.Duration

	// MaxLoginAttempts is how many login attempts an identifier may make
	// before the lockout engages. Default: 5.
	MaxLoginAttempts int

	// LockoutWindow is the lockout duration after MaxLoginAttempts failures.
	// Default: 15 minutes.
	LockoutWindow time.Duration

	// RateLimit configures the per-IP request throttle on the HTTP surface.
	// Independent of the failed-attempt lockout above.
	RateLimit RateLimitConfig

	// TrustProxy enables trusting X-Forwarded-For and X-Real-IP headers.
	// Only enable behind a trusted reverse proxy.
	TrustProxy bool

	// TrustedProxyCount is how many trailing proxies in X-Forwarded-For are
	// trusted. Only used when TrustProxy is true. Default: 1.
	TrustedProxyCount int

	// EnableAuditLogging enables the security audit trail.
	// Events carry hashed emails, never credential values.
	EnableAuditLogging bool

	// Logger for structured logging (optional, uses default if not provided)
	Logger *slog.Logger

	// Instrumentation provides OpenTelemetry metrics and tracing (optional)
	Instrumentation *instrumentation.Instrumentation
}

// RateLimitConfig holds HTTP request throttle configuration
type RateLimitConfig struct {
	// Rate is requests per second allowed per IP. Zero disables limiting.
	Rate int

	// Burst is the maximum burst size allowed per IP.
	Burst int
}

// withDefaults returns a copy of the config with defaults applied.
func (c *Config) withDefaults() *Config {
	cfg := Config{}
	if c != nil {
		cfg = *c
	}

	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = tokens.DefaultTTL
	}
	if cfg.MaxLoginAttempts <= 0 {
		cfg.MaxLoginAttempts = security.DefaultMaxAttempts
	}
	if cfg.LockoutWindow <= 0 {
		cfg.LockoutWindow = security.DefaultLockoutWindow
	}
	if cfg.TrustedProxyCount <= 0 {
		cfg.TrustedProxyCount = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &cfg
}
