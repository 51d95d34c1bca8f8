// Package security provides the input hygiene and abuse controls for the
// auth library: markup sanitization, structural validation, injection
// pattern screening, failed-attempt lockout, per-client request throttling,
// audit logging, token encryption at rest, and HTTP hardening helpers.
//
// The injection screening in this package is a heuristic blacklist and is
// defense-in-depth only. It must never be the sole protection: the account
// store and any other data-access layer are expected to use parameterized
// queries independently of anything this package rejects.
package security
