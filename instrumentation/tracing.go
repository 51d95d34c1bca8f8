package instrumentation

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Common span attribute keys
//
// SECURITY WARNING: Never log actual sensitive values (session tokens,
// passwords, raw credentials) in traces or metrics. Only log metadata such
// as subject IDs, flow names, expiry times, and validation results. Traces
// are often persisted for extended periods, replicated across monitoring
// infrastructure, and accessible to wider audiences than production
// systems.
const (
	// Auth flow attributes - SAFE to use for metadata only
	AttrSubjectID = "auth.subject_id" // Subject identifier (non-secret)
	AttrFlow      = "auth.flow"       // Flow name (login, register, logout)
	AttrTokenType = "auth.token_type" //nolint:gosec // Token type (Bearer), NOT the actual token
	AttrExpiresIn = "auth.expires_in" // Token expiry duration
	AttrError     = "auth.error"      // Error code
	AttrRateLimit = "auth.rate_limit" // Whether the request was rate limited (boolean)
	AttrLockedOut = "auth.locked_out" // Whether the identifier is in lockout (boolean)

	// Storage attributes
	AttrStorageOperation = "storage.operation"
	AttrStorageResult    = "storage.result"
	AttrStorageType      = "storage.type"

	// Account store attributes
	AttrStoreName      = "accounts.store"
	AttrStoreOperation = "accounts.operation"
	AttrStoreStatus    = "accounts.status"

	// Security attributes
	AttrRateLimiterType = "security.rate_limiter.type"
	AttrClientIP        = "security.client_ip"

	// HTTP attributes (in addition to standard semantic conventions)
	AttrHTTPEndpoint   = "http.endpoint"
	AttrHTTPMethod     = "http.method"
	AttrHTTPStatusCode = "http.status_code"
)

// RecordError records an error on a span with proper status codes (nil-safe)
func RecordError(span trace.Span, err error) {
	if span != nil && err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanSuccess marks a span as successful (nil-safe)
func SetSpanSuccess(span trace.Span) {
	if span != nil {
		span.SetStatus(codes.Ok, "")
	}
}

// SetSpanError sets an error status on a span (nil-safe)
func SetSpanError(span trace.Span, message string) {
	if span != nil {
		span.SetStatus(codes.Error, message)
	}
}

// SetSpanAttributes sets attributes on a span (nil-safe)
func SetSpanAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	if span != nil {
		span.SetAttributes(attrs...)
	}
}

// AddAuthFlowAttributes adds common auth flow attributes to a span (nil-safe)
func AddAuthFlowAttributes(span trace.Span, flow, subjectID string) {
	if flow != "" {
		SetSpanAttributes(span, attribute.String(AttrFlow, flow))
	}
	if subjectID != "" {
		SetSpanAttributes(span, attribute.String(AttrSubjectID, subjectID))
	}
}

// AddStorageAttributes adds storage operation attributes to a span (nil-safe)
func AddStorageAttributes(span trace.Span, operation, storageType string) {
	SetSpanAttributes(span,
		attribute.String(AttrStorageOperation, operation),
		attribute.String(AttrStorageType, storageType),
	)
}

// AddStoreAttributes adds account store attributes to a span (nil-safe)
func AddStoreAttributes(span trace.Span, storeName, operation string) {
	SetSpanAttributes(span,
		attribute.String(AttrStoreName, storeName),
		attribute.String(AttrStoreOperation, operation),
	)
}

// AddHTTPAttributes adds HTTP request attributes to a span (nil-safe)
func AddHTTPAttributes(span trace.Span, method, endpoint string, statusCode int) {
	SetSpanAttributes(span,
		attribute.String(AttrHTTPMethod, method),
		attribute.String(AttrHTTPEndpoint, endpoint),
		attribute.Int(AttrHTTPStatusCode, statusCode),
	)
}

// AddSecurityAttributes adds security-related attributes to a span (nil-safe)
//
// PRIVACY NOTE: Client IP addresses may be considered PII. Check
// instrumentation.ShouldLogClientIPs() before calling this function.
func AddSecurityAttributes(span trace.Span, clientIP string) {
	if clientIP != "" {
		SetSpanAttributes(span, attribute.String(AttrClientIP, clientIP))
	}
}
