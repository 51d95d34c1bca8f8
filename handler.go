package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/storefront-kit/auth/instrumentation"
	"github.com/storefront-kit/auth/security"
	"github.com/storefront-kit/auth/storage"
)

const (
	// HeaderSubjectID carries the subject ID alongside the bearer token.
	// Session tokens are keyed per subject, so verification needs both.
	HeaderSubjectID = "X-Subject-ID"

	// maxRequestBody caps request bodies to keep malformed payloads cheap.
	maxRequestBody = 1 << 20 // 1 MiB
)

// subjectContextKey is the context key for the authenticated subject ID.
type subjectContextKey struct{}

// ContextWithSubjectID adds an authenticated subject ID to the context.
func ContextWithSubjectID(ctx context.Context, subjectID string) context.Context {
	return context.WithValue(ctx, subjectContextKey{}, subjectID)
}

// SubjectIDFromContext retrieves the authenticated subject ID set by
// RequireAuth, or "" if the request did not pass through it.
func SubjectIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(subjectContextKey{}).(string); ok {
		return id
	}
	return ""
}

// Handler is a thin HTTP adapter for the auth Service.
// It handles HTTP requests and delegates to the Service for business logic.
type Handler struct {
	service *Service
	limiter *security.RequestLimiter
	logger  *slog.Logger
	tracer  trace.Tracer // OpenTelemetry tracer for HTTP layer
}

// NewHandler creates a new HTTP handler around the service. A per-IP
// request limiter is started when the service config enables one.
func NewHandler(service *Service) *Handler {
	h := &Handler{
		service: service,
		logger:  service.logger,
	}

	if rl := service.config.RateLimit; rl.Rate > 0 {
		h.limiter = security.NewRequestLimiter(rl.Rate, rl.Burst, service.logger)
	}

	if service.inst != nil {
		h.tracer = service.inst.Tracer("http")
	}

	return h
}

// Close stops the handler's background request limiter. Safe to call more
// than once.
func (h *Handler) Close() {
	if h.limiter != nil {
		h.limiter.Stop()
	}
}

// RegisterRoutes registers the auth endpoints on the given mux:
//
//	POST /auth/login
//	POST /auth/register
//	POST /auth/logout
//	GET  /auth/session
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/auth/login", h.ServeLogin)
	mux.HandleFunc("/auth/register", h.ServeRegister)
	mux.HandleFunc("/auth/logout", h.ServeLogout)
	mux.HandleFunc("/auth/session", h.ServeSession)
}

// ServeLogin handles POST /auth/login.
func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	var span trace.Span
	ctx := r.Context()
	if h.tracer != nil {
		ctx, span = h.tracer.Start(ctx, "auth.http.login")
		defer span.End()
		r = r.WithContext(ctx)
	}

	clientIP, ok := h.beginRequest(w, r, http.MethodPost, "login", startTime, span)
	if !ok {
		return
	}

	var req loginRequest
	if !h.decodeBody(w, r, &req, "login", startTime, span) {
		return
	}

	result, err := h.service.Login(ctx, req.Email, req.Password, clientIP)
	if err != nil {
		h.writeAuthError(w, r, err, "login", startTime, span)
		return
	}

	instrumentation.AddAuthFlowAttributes(span, "login", result.Subject.ID)
	instrumentation.SetSpanAttributes(span,
		attribute.String(instrumentation.AttrTokenType, "Bearer"),
		attribute.Int64(instrumentation.AttrExpiresIn, int64(time.Until(result.Token.Expiry).Seconds())),
	)
	instrumentation.SetSpanSuccess(span)
	h.recordHTTPMetrics(ctx, "login", http.MethodPost, http.StatusOK, startTime)

	h.writeJSON(w, http.StatusOK, authResponse{
		User:      result.Subject,
		Token:     result.Token.AccessToken,
		ExpiresAt: &result.Token.Expiry,
	})
}

// ServeRegister handles POST /auth/register.
func (h *Handler) ServeRegister(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	var span trace.Span
	ctx := r.Context()
	if h.tracer != nil {
		ctx, span = h.tracer.Start(ctx, "auth.http.register")
		defer span.End()
		r = r.WithContext(ctx)
	}

	clientIP, ok := h.beginRequest(w, r, http.MethodPost, "register", startTime, span)
	if !ok {
		return
	}

	var req registerRequest
	if !h.decodeBody(w, r, &req, "register", startTime, span) {
		return
	}

	subject, err := h.service.Register(ctx, req.Username, req.Email, req.Password, clientIP)
	if err != nil {
		h.writeAuthError(w, r, err, "register", startTime, span)
		return
	}

	instrumentation.AddAuthFlowAttributes(span, "register", subject.ID)
	instrumentation.SetSpanSuccess(span)
	h.recordHTTPMetrics(ctx, "register", http.MethodPost, http.StatusCreated, startTime)

	h.writeJSON(w, http.StatusCreated, authResponse{User: subject})
}

// ServeLogout handles POST /auth/logout. The caller presents its bearer
// token; an invalid session is rejected rather than letting anyone log out
// an arbitrary subject by ID.
func (h *Handler) ServeLogout(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	var span trace.Span
	ctx := r.Context()
	if h.tracer != nil {
		ctx, span = h.tracer.Start(ctx, "auth.http.logout")
		defer span.End()
		r = r.WithContext(ctx)
	}

	clientIP, ok := h.beginRequest(w, r, http.MethodPost, "logout", startTime, span)
	if !ok {
		return
	}

	subjectID, ok := h.authenticate(w, r, "logout", startTime, span)
	if !ok {
		return
	}

	h.service.Logout(ctx, subjectID, clientIP)

	instrumentation.AddAuthFlowAttributes(span, "logout", subjectID)
	instrumentation.SetSpanSuccess(span)
	h.recordHTTPMetrics(ctx, "logout", http.MethodPost, http.StatusNoContent, startTime)

	w.WriteHeader(http.StatusNoContent)
}

// ServeSession handles GET /auth/session: it verifies the presented bearer
// token and returns the cached subject profile.
func (h *Handler) ServeSession(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	var span trace.Span
	ctx := r.Context()
	if h.tracer != nil {
		ctx, span = h.tracer.Start(ctx, "auth.http.session")
		defer span.End()
		r = r.WithContext(ctx)
	}

	_, ok := h.beginRequest(w, r, http.MethodGet, "session", startTime, span)
	if !ok {
		return
	}

	subjectID, ok := h.authenticate(w, r, "session", startTime, span)
	if !ok {
		return
	}

	subject, err := h.service.Subject(ctx, subjectID)
	if err != nil {
		if !errors.Is(err, storage.ErrSubjectNotFound) {
			h.logger.Warn("Subject lookup failed", "subject_id", subjectID, "error", err)
		}
		// The session is valid even when the profile cache has no entry.
		h.recordHTTPMetrics(ctx, "session", http.MethodGet, http.StatusNotFound, startTime)
		h.writeError(w, ErrorCodeServer, "Session profile unavailable", http.StatusNotFound)
		return
	}

	instrumentation.AddAuthFlowAttributes(span, "session", subjectID)
	instrumentation.SetSpanSuccess(span)
	h.recordHTTPMetrics(ctx, "session", http.MethodGet, http.StatusOK, startTime)

	h.writeJSON(w, http.StatusOK, authResponse{User: subject})
}

// RequireAuth is middleware that verifies the bearer token and subject ID
// header, stores the subject ID in the request context, and passes the
// request on. Rejected requests get a 401 with a generic message.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := h.clientIP(r)

		if h.checkRequestRateLimit(w, r, clientIP) {
			return
		}

		subjectID, token, ok := h.bearerCredentials(r)
		if !ok {
			h.writeError(w, ErrorCodeAuthentication, "Missing or malformed credentials", http.StatusUnauthorized)
			return
		}

		if !h.service.VerifySession(r.Context(), subjectID, token) {
			h.logger.Warn("Session verification failed", "ip", clientIP)
			h.service.auditor.LogTokenVerificationFailed(clientIP)
			h.writeError(w, ErrorCodeAuthentication, "Invalid or expired session", http.StatusUnauthorized)
			return
		}

		ctx := ContextWithSubjectID(r.Context(), subjectID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// beginRequest applies the shared per-request plumbing: method check,
// security headers, request ID, and the per-IP request throttle. It returns
// the client IP and whether the request may proceed.
func (h *Handler) beginRequest(w http.ResponseWriter, r *http.Request, method, endpoint string, startTime time.Time, span trace.Span) (string, bool) {
	security.SetSecurityHeaders(w, h.service.config.BaseURL)

	requestID := security.EnsureRequestID(r)
	w.Header().Set(security.RequestIDHeader, requestID)

	if r.Method != method {
		h.recordHTTPMetrics(r.Context(), endpoint, r.Method, http.StatusMethodNotAllowed, startTime)
		instrumentation.SetSpanError(span, "method not allowed")
		h.writeError(w, ErrorCodeValidation, "Method not allowed", http.StatusMethodNotAllowed)
		return "", false
	}

	clientIP := h.clientIP(r)
	instrumentation.AddHTTPAttributes(span, method, endpoint, 0)
	if h.service.inst != nil && h.service.inst.ShouldLogClientIPs() {
		instrumentation.AddSecurityAttributes(span, clientIP)
	}

	if h.checkRequestRateLimit(w, r, clientIP) {
		h.recordHTTPMetrics(r.Context(), endpoint, method, http.StatusTooManyRequests, startTime)
		instrumentation.SetSpanAttributes(span,
			attribute.Bool(instrumentation.AttrRateLimit, true),
			attribute.String(instrumentation.AttrRateLimiterType, "ip"),
		)
		instrumentation.SetSpanError(span, "rate limited")
		return "", false
	}

	return clientIP, true
}

// checkRequestRateLimit checks the per-IP request throttle. Returns true if
// the request was rejected and a response written.
func (h *Handler) checkRequestRateLimit(w http.ResponseWriter, r *http.Request, clientIP string) bool {
	if h.limiter == nil || h.limiter.Allow(clientIP) {
		return false
	}

	h.logger.Warn("Request rate limit exceeded", "ip", clientIP, "path", r.URL.Path)
	h.service.auditor.LogEvent(security.Event{
		Type:      security.EventRequestRateLimited,
		Level:     slog.LevelWarn,
		IPAddress: clientIP,
		Details:   map[string]any{"endpoint": r.URL.Path},
	})
	if h.service.inst != nil {
		h.service.inst.Metrics().RecordRateLimitExceeded(r.Context(), "ip")
	}

	w.Header().Set("Retry-After", "60")
	h.writeError(w, ErrorCodeRateLimited, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
	return true
}

// authenticate extracts and verifies the caller's session credentials.
func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request, endpoint string, startTime time.Time, span trace.Span) (string, bool) {
	subjectID, token, ok := h.bearerCredentials(r)
	if !ok {
		h.recordHTTPMetrics(r.Context(), endpoint, r.Method, http.StatusUnauthorized, startTime)
		instrumentation.SetSpanError(span, "missing credentials")
		h.writeError(w, ErrorCodeAuthentication, "Missing or malformed credentials", http.StatusUnauthorized)
		return "", false
	}

	if !h.service.VerifySession(r.Context(), subjectID, token) {
		h.logger.Warn("Session verification failed", "ip", h.clientIP(r))
		h.service.auditor.LogTokenVerificationFailed(h.clientIP(r))
		h.recordHTTPMetrics(r.Context(), endpoint, r.Method, http.StatusUnauthorized, startTime)
		instrumentation.SetSpanError(span, "invalid session")
		h.writeError(w, ErrorCodeAuthentication, "Invalid or expired session", http.StatusUnauthorized)
		return "", false
	}

	return subjectID, true
}

// bearerCredentials extracts the subject ID header and bearer token.
func (h *Handler) bearerCredentials(r *http.Request) (subjectID, token string, ok bool) {
	subjectID = r.Header.Get(HeaderSubjectID)
	if subjectID == "" {
		return "", "", false
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", "", false
	}

	return subjectID, parts[1], true
}

// decodeBody decodes a JSON request body. Returns false after writing an
// error response when the body is malformed.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, dst any, endpoint string, startTime time.Time, span trace.Span) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		h.recordHTTPMetrics(r.Context(), endpoint, r.Method, http.StatusBadRequest, startTime)
		instrumentation.SetSpanError(span, "malformed body")
		h.writeError(w, ErrorCodeValidation, "Invalid request body", http.StatusBadRequest)
		return false
	}

	return true
}

// clientIP resolves the caller address per the proxy trust configuration.
func (h *Handler) clientIP(r *http.Request) string {
	return security.GetClientIP(r, h.service.config.TrustProxy, h.service.config.TrustedProxyCount)
}

// writeAuthError maps a service error onto the HTTP response. Unknown error
// types collapse to a generic 500 so nothing internal leaks.
func (h *Handler) writeAuthError(w http.ResponseWriter, r *http.Request, err error, endpoint string, startTime time.Time, span trace.Span) {
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		h.logger.Error("Unexpected error from auth service", "endpoint", endpoint, "error", err)
		authErr = ErrServer(MsgServiceUnavailable)
	}

	if authErr.RetryAfter > 0 {
		seconds := int(authErr.RetryAfter.Seconds())
		if seconds < 1 {
			seconds = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
	}

	h.recordHTTPMetrics(r.Context(), endpoint, r.Method, authErr.Status, startTime)
	instrumentation.SetSpanAttributes(span, attribute.String(instrumentation.AttrError, authErr.Code))
	if authErr.Code == ErrorCodeRateLimited {
		instrumentation.SetSpanAttributes(span, attribute.Bool(instrumentation.AttrLockedOut, true))
	}
	instrumentation.SetSpanError(span, authErr.Code)

	h.writeError(w, authErr.Code, authErr.Message, authErr.Status)
}

// writeError writes a JSON error response.
func (h *Handler) writeError(w http.ResponseWriter, code, message string, status int) {
	h.writeJSON(w, status, errorResponse{
		Error:   code,
		Message: message,
	})
}

// writeJSON writes a JSON response with the given status.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}

// recordHTTPMetrics records HTTP layer metrics when instrumentation is on.
func (h *Handler) recordHTTPMetrics(ctx context.Context, endpoint, method string, status int, startTime time.Time) {
	if h.service.inst == nil {
		return
	}
	durationMs := float64(time.Since(startTime).Microseconds()) / 1000.0
	h.service.inst.Metrics().RecordHTTPRequest(ctx, method, endpoint, status, durationMs)
}
