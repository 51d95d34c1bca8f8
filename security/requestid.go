package security

import (
	"context"
	"net/http"
	"regexp"

	"github.com/google/uuid"
)

// RequestIDHeader is the HTTP header carrying the request ID.
const RequestIDHeader = "X-Request-ID"

// requestIDPattern accepts the request ID formats common upstream proxies
// emit while rejecting anything usable for header or log injection.
var requestIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,128}$`)

// requestIDContextKey is the context key for storing request IDs.
type requestIDContextKey struct{}

// GenerateRequestID returns a new random request ID for audit correlation.
func GenerateRequestID() string {
	return uuid.NewString()
}

// EnsureRequestID returns the inbound request's ID when it is present and
// well-formed, otherwise a freshly generated one.
func EnsureRequestID(r *http.Request) string {
	if id := r.Header.Get(RequestIDHeader); requestIDPattern.MatchString(id) {
		return id
	}
	return GenerateRequestID()
}

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, requestID)
}

// GetRequestID retrieves the request ID from the context, or "" if absent.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDContextKey{}).(string); ok {
		return requestID
	}
	return ""
}
