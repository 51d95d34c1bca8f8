package security

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/storefront-kit/auth/instrumentation"
)

// Auditor writes the security audit trail through an injected slog logger.
// Writes are synchronous and best-effort: delivery and durability are
// properties of the configured slog handler, not of the auditor.
//
// Email addresses are hashed before logging so the audit trail can correlate
// events per account without storing PII. Credential values never reach the
// auditor at all.
type Auditor struct {
	logger  *slog.Logger
	enabled bool
	inst    *instrumentation.Instrumentation
}

// NewAuditor creates a new security auditor.
func NewAuditor(logger *slog.Logger, enabled bool) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{
		logger:  logger,
		enabled: enabled,
	}
}

// SetInstrumentation enables the per-event-type audit counter. Call once,
// before the auditor is shared.
func (a *Auditor) SetInstrumentation(inst *instrumentation.Instrumentation) {
	a.inst = inst
}

// Event is a single security audit record.
type Event struct {
	ID        string
	Type      string
	Level     slog.Level
	SubjectID string
	Email     string
	IPAddress string
	Details   map[string]any
	Timestamp time.Time
}

// LogEvent writes an audit event. The event ID and timestamp are assigned
// here; the email is replaced with a hash in the emitted record.
func (a *Auditor) LogEvent(event Event) {
	if !a.enabled {
		return
	}

	event.ID = uuid.NewString()
	event.Timestamp = time.Now()

	a.logger.Log(context.Background(), event.Level, "security_audit",
		"event_id", event.ID,
		"event_type", event.Type,
		"subject_id", event.SubjectID,
		"email_hash", hashForLogging(event.Email),
		"ip_address", event.IPAddress,
		"details", event.Details,
		"timestamp", event.Timestamp,
	)

	if a.inst != nil {
		a.inst.Metrics().RecordAuditEvent(context.Background(), event.Type)
	}
}

// LogLoginSuccess records a completed login.
func (a *Auditor) LogLoginSuccess(subjectID, email, ipAddress string) {
	a.LogEvent(Event{
		Type:      EventLoginSuccess,
		Level:     slog.LevelInfo,
		SubjectID: subjectID,
		Email:     email,
		IPAddress: ipAddress,
	})
}

// LogLoginFailure records a rejected login. The reason describes the
// internal cause; the caller only ever sees a generic message.
func (a *Auditor) LogLoginFailure(email, ipAddress, reason string) {
	a.LogEvent(Event{
		Type:      EventLoginFailure,
		Level:     slog.LevelWarn,
		Email:     email,
		IPAddress: ipAddress,
		Details: map[string]any{
			"reason": reason,
		},
	})
}

// LogLoginRateLimited records a login blocked by the failed-attempt limiter.
func (a *Auditor) LogLoginRateLimited(ipAddress string, remaining time.Duration) {
	a.LogEvent(Event{
		Type:      EventLoginRateLimited,
		Level:     slog.LevelWarn,
		IPAddress: ipAddress,
		Details: map[string]any{
			"retry_after_ms": remaining.Milliseconds(),
		},
	})
}

// LogInjectionBlocked records input that matched an injection signature.
// Only the offending address and field name are recorded, never the value.
func (a *Auditor) LogInjectionBlocked(ipAddress, flow, field string) {
	a.LogEvent(Event{
		Type:      EventInjectionBlocked,
		Level:     slog.LevelWarn,
		IPAddress: ipAddress,
		Details: map[string]any{
			"flow":  flow,
			"field": field,
		},
	})
}

// LogValidationRejected records input that failed shape validation.
func (a *Auditor) LogValidationRejected(ipAddress, flow, reason string) {
	eventType := EventLoginRejectedFormat
	if flow == "register" {
		eventType = EventRegistrationRejected
	}
	a.LogEvent(Event{
		Type:      eventType,
		Level:     slog.LevelWarn,
		IPAddress: ipAddress,
		Details: map[string]any{
			"flow":   flow,
			"reason": reason,
		},
	})
}

// LogTokenVerificationFailed records a presented token that did not verify.
func (a *Auditor) LogTokenVerificationFailed(ipAddress string) {
	a.LogEvent(Event{
		Type:      EventTokenVerificationFailed,
		Level:     slog.LevelWarn,
		IPAddress: ipAddress,
	})
}

// LogRegistration records a completed account creation.
func (a *Auditor) LogRegistration(subjectID, email string) {
	a.LogEvent(Event{
		Type:      EventRegistrationSuccess,
		Level:     slog.LevelInfo,
		SubjectID: subjectID,
		Email:     email,
	})
}

// LogLogout records a session teardown.
func (a *Auditor) LogLogout(subjectID, ipAddress string) {
	a.LogEvent(Event{
		Type:      EventLogout,
		Level:     slog.LevelInfo,
		SubjectID: subjectID,
		IPAddress: ipAddress,
	})
}

// LogTokenIssued records a session token being stored for a subject.
func (a *Auditor) LogTokenIssued(subjectID, ipAddress string, expiresAt time.Time) {
	a.LogEvent(Event{
		Type:      EventTokenIssued,
		Level:     slog.LevelInfo,
		SubjectID: subjectID,
		IPAddress: ipAddress,
		Details: map[string]any{
			"expires_at": expiresAt,
		},
	})
}

// LogAccountStoreUnavailable records an account store outage. The original
// error stays in the audit trail and is never shown to the caller.
func (a *Auditor) LogAccountStoreUnavailable(flow string, err error) {
	a.LogEvent(Event{
		Type:  EventAccountStoreUnavailable,
		Level: slog.LevelError,
		Details: map[string]any{
			"flow":  flow,
			"error": err.Error(),
		},
	})
}

// hashForLogging creates a SHA256 hash of sensitive data for logging.
// Sixteen hex characters are enough to correlate without being reversible
// by table lookup at log-reader scale.
func hashForLogging(sensitive string) string {
	if sensitive == "" {
		return "<empty>"
	}
	hash := sha256.Sum256([]byte(sensitive))
	return hex.EncodeToString(hash[:])[:16]
}
