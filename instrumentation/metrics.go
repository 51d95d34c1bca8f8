package instrumentation

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all metric instruments for the auth library
type Metrics struct {
	// HTTP Layer Metrics
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram

	// Auth Flow Metrics
	LoginAttempts  metric.Int64Counter
	LoginFailures  metric.Int64Counter
	Registrations  metric.Int64Counter
	Logouts        metric.Int64Counter
	TokensIssued   metric.Int64Counter
	TokensVerified metric.Int64Counter

	// Security Metrics
	RateLimitExceeded  metric.Int64Counter
	AccountsLockedOut  metric.Int64Counter
	InjectionDetected  metric.Int64Counter
	ValidationRejected metric.Int64Counter

	// Storage Metrics
	StorageOperationTotal    metric.Int64Counter
	StorageOperationDuration metric.Float64Histogram
	StorageSizeTokens        metric.Int64ObservableGauge
	StorageSizeAttempts      metric.Int64ObservableGauge

	// Account Store Metrics
	AccountStoreCallsTotal metric.Int64Counter
	AccountStoreDuration   metric.Float64Histogram
	AccountStoreErrors     metric.Int64Counter

	// Audit Metrics
	AuditEventsTotal metric.Int64Counter
}

// newMetrics creates and registers all metric instruments
func newMetrics(inst *Instrumentation) (*Metrics, error) {
	m := &Metrics{}

	// HTTP Layer Metrics
	var err error
	m.HTTPRequestsTotal, err = inst.httpMeter.Int64Counter(
		"auth.http.requests.total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http.requests.total counter: %w", err)
	}

	m.HTTPRequestDuration, err = inst.httpMeter.Float64Histogram(
		"auth.http.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http.request.duration histogram: %w", err)
	}

	// Auth Flow Metrics
	m.LoginAttempts, err = inst.authMeter.Int64Counter(
		"auth.login.attempts",
		metric.WithDescription("Number of login attempts processed"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create login.attempts counter: %w", err)
	}

	m.LoginFailures, err = inst.authMeter.Int64Counter(
		"auth.login.failures",
		metric.WithDescription("Number of failed login attempts"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create login.failures counter: %w", err)
	}

	m.Registrations, err = inst.authMeter.Int64Counter(
		"auth.registrations",
		metric.WithDescription("Number of account registrations processed"),
		metric.WithUnit("{registration}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create registrations counter: %w", err)
	}

	m.Logouts, err = inst.authMeter.Int64Counter(
		"auth.logouts",
		metric.WithDescription("Number of logout operations"),
		metric.WithUnit("{logout}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create logouts counter: %w", err)
	}

	m.TokensIssued, err = inst.authMeter.Int64Counter(
		"auth.token.issued",
		metric.WithDescription("Number of session tokens issued"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token.issued counter: %w", err)
	}

	m.TokensVerified, err = inst.authMeter.Int64Counter(
		"auth.token.verified",
		metric.WithDescription("Number of session token verifications"),
		metric.WithUnit("{verification}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token.verified counter: %w", err)
	}

	// Security Metrics
	m.RateLimitExceeded, err = inst.securityMeter.Int64Counter(
		"auth.rate_limit.exceeded",
		metric.WithDescription("Number of rate limit violations"),
		metric.WithUnit("{violation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate_limit.exceeded counter: %w", err)
	}

	m.AccountsLockedOut, err = inst.securityMeter.Int64Counter(
		"auth.lockout.triggered",
		metric.WithDescription("Number of failed-attempt lockouts triggered"),
		metric.WithUnit("{lockout}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create lockout.triggered counter: %w", err)
	}

	m.InjectionDetected, err = inst.securityMeter.Int64Counter(
		"auth.injection.detected",
		metric.WithDescription("Number of injection attempts detected"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create injection.detected counter: %w", err)
	}

	m.ValidationRejected, err = inst.securityMeter.Int64Counter(
		"auth.validation.rejected",
		metric.WithDescription("Number of requests rejected by input validation"),
		metric.WithUnit("{rejection}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create validation.rejected counter: %w", err)
	}

	// Storage Metrics
	m.StorageOperationTotal, err = inst.storageMeter.Int64Counter(
		"storage.operation.total",
		metric.WithDescription("Total number of storage operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage.operation.total counter: %w", err)
	}

	m.StorageOperationDuration, err = inst.storageMeter.Float64Histogram(
		"storage.operation.duration",
		metric.WithDescription("Storage operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage.operation.duration histogram: %w", err)
	}

	m.StorageSizeTokens, err = inst.storageMeter.Int64ObservableGauge(
		"storage.size.tokens",
		metric.WithDescription("Number of session token records currently stored"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage.size.tokens gauge: %w", err)
	}

	m.StorageSizeAttempts, err = inst.storageMeter.Int64ObservableGauge(
		"storage.size.attempts",
		metric.WithDescription("Number of failed-attempt records currently stored"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage.size.attempts gauge: %w", err)
	}

	// Account Store Metrics
	m.AccountStoreCallsTotal, err = inst.accountsMeter.Int64Counter(
		"accounts.api.calls.total",
		metric.WithDescription("Total number of account store API calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create accounts.api.calls.total counter: %w", err)
	}

	m.AccountStoreDuration, err = inst.accountsMeter.Float64Histogram(
		"accounts.api.duration",
		metric.WithDescription("Account store API call duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create accounts.api.duration histogram: %w", err)
	}

	m.AccountStoreErrors, err = inst.accountsMeter.Int64Counter(
		"accounts.api.errors.total",
		metric.WithDescription("Total number of account store API errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create accounts.api.errors.total counter: %w", err)
	}

	// Audit Metrics
	m.AuditEventsTotal, err = inst.securityMeter.Int64Counter(
		"auth.audit.events.total",
		metric.WithDescription("Total number of audit events"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit.events.total counter: %w", err)
	}

	return m, nil
}

// Helper methods for common metric recording patterns

// RecordHTTPRequest records an HTTP request metric
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, endpoint string, statusCode int, durationMs float64) {
	attrs := []attribute.KeyValue{
		attribute.String("method", method),
		attribute.String("endpoint", endpoint),
		attribute.Int("status", statusCode),
	}

	m.HTTPRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.HTTPRequestDuration.Record(ctx, durationMs, metric.WithAttributes(attribute.String("endpoint", endpoint)))
}

// RecordLoginAttempt records a processed login attempt
func (m *Metrics) RecordLoginAttempt(ctx context.Context, success bool) {
	m.LoginAttempts.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("success", success),
	))
	if !success {
		m.LoginFailures.Add(ctx, 1)
	}
}

// RecordRegistration records a registration attempt
func (m *Metrics) RecordRegistration(ctx context.Context, success bool) {
	m.Registrations.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("success", success),
	))
}

// RecordLogout records a logout operation
func (m *Metrics) RecordLogout(ctx context.Context) {
	m.Logouts.Add(ctx, 1)
}

// RecordTokenIssued records a session token issuance
func (m *Metrics) RecordTokenIssued(ctx context.Context) {
	m.TokensIssued.Add(ctx, 1)
}

// RecordTokenVerified records a session token verification
func (m *Metrics) RecordTokenVerified(ctx context.Context, valid bool) {
	m.TokensVerified.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("valid", valid),
	))
}

// RecordRateLimitExceeded records a rate limit violation
func (m *Metrics) RecordRateLimitExceeded(ctx context.Context, limiterType string) {
	m.RateLimitExceeded.Add(ctx, 1, metric.WithAttributes(
		attribute.String("limiter_type", limiterType),
	))
}

// RecordLockout records a failed-attempt lockout
func (m *Metrics) RecordLockout(ctx context.Context) {
	m.AccountsLockedOut.Add(ctx, 1)
}

// RecordInjectionDetected records a detected injection attempt
func (m *Metrics) RecordInjectionDetected(ctx context.Context, flow, field string) {
	m.InjectionDetected.Add(ctx, 1, metric.WithAttributes(
		attribute.String("flow", flow),
		attribute.String("field", field),
	))
}

// RecordValidationRejected records an input validation rejection
func (m *Metrics) RecordValidationRejected(ctx context.Context, flow string) {
	m.ValidationRejected.Add(ctx, 1, metric.WithAttributes(
		attribute.String("flow", flow),
	))
}

// RecordStorageOperation records a storage operation
func (m *Metrics) RecordStorageOperation(ctx context.Context, operation, result string, durationMs float64) {
	attrs := []attribute.KeyValue{
		attribute.String("operation", operation),
		attribute.String("result", result),
	}

	m.StorageOperationTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.StorageOperationDuration.Record(ctx, durationMs, metric.WithAttributes(
		attribute.String("operation", operation),
	))
}

// RecordAccountStoreCall records an account store API call
func (m *Metrics) RecordAccountStoreCall(ctx context.Context, store, operation string, statusCode int, durationMs float64, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("store", store),
		attribute.String("operation", operation),
		attribute.Int("status", statusCode),
	}

	m.AccountStoreCallsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.AccountStoreDuration.Record(ctx, durationMs, metric.WithAttributes(
		attribute.String("store", store),
		attribute.String("operation", operation),
	))

	if err != nil {
		errorType := "unknown"
		if statusCode >= 400 && statusCode < 500 {
			errorType = "client_error"
		} else if statusCode >= 500 {
			errorType = "server_error"
		}

		m.AccountStoreErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("store", store),
			attribute.String("operation", operation),
			attribute.String("error_type", errorType),
		))
	}
}

// RecordAuditEvent records an audit event
func (m *Metrics) RecordAuditEvent(ctx context.Context, eventType string) {
	m.AuditEventsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", eventType),
	))
}
