package security

import (
	"net/http"
	"net/url"
)

// SetSecurityHeaders sets hardening headers on auth API responses.
// HSTS is only emitted when the configured base URL is HTTPS, since the
// header is meaningless (and sticky) over plain HTTP.
func SetSecurityHeaders(w http.ResponseWriter, baseURL string) {
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
	w.Header().Set("Referrer-Policy", "no-referrer")

	// Responses carry credentials and session tokens: never cache them.
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
	w.Header().Set("Pragma", "no-cache")

	if parsed, err := url.Parse(baseURL); err == nil && parsed.Scheme == "https" {
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
	}
}
