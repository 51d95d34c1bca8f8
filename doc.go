// Package auth is the authentication and security-policy layer for a
// storefront backend. It orchestrates input sanitization, validation,
// injection screening, login throttling, session token issuance, and
// security audit logging around an external account store that owns the
// actual credentials.
//
// The package is a library, not a server: construct a Service with an
// accounts.Store and the storage backends of your choice, and either call
// it directly or mount the bundled HTTP handler on your own mux. See the
// examples directory for complete wiring.
package auth
