// Package tokens issues, verifies, and removes the short-lived opaque
// bearer credentials that represent an authenticated session. One record is
// live per subject; a re-login overwrites the previous record, which is how
// single-active-session is enforced.
package tokens
