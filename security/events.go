package security

// Event type constants for security audit logging. Using constants keeps
// event names consistent across the codebase and greppable in log storage.
const (
	// Login flow events

	// EventLoginSuccess is logged when credentials verify and a session token is issued
	EventLoginSuccess = "login_success"

	// EventLoginFailure is logged when the account store rejects credentials
	EventLoginFailure = "login_failure"

	// EventLoginRateLimited is logged when a caller is blocked by the failed-attempt limiter
	EventLoginRateLimited = "login_rate_limited"

	// EventLoginRejectedFormat is logged when login input fails shape validation or injection screening
	EventLoginRejectedFormat = "login_rejected_format"

	// Registration events

	// EventRegistrationSuccess is logged when an account is created
	EventRegistrationSuccess = "registration_success"

	// EventRegistrationRejected is logged when registration input is rejected by injection screening
	EventRegistrationRejected = "registration_rejected"

	// Session events

	// EventLogout is logged when a subject's session tokens are removed
	EventLogout = "logout"

	// EventTokenIssued is logged when a session token is stored for a subject
	EventTokenIssued = "token_issued"

	// EventTokenVerificationFailed is logged when a presented token fails verification
	EventTokenVerificationFailed = "token_verification_failed"

	// Abuse events

	// EventInjectionBlocked is logged when input matches an injection signature
	EventInjectionBlocked = "injection_attempt_blocked"

	// EventRequestRateLimited is logged when the per-client request throttle rejects a request
	EventRequestRateLimited = "request_rate_limited"

	// EventAccountStoreUnavailable is logged when the external account store errors or is unreachable
	EventAccountStoreUnavailable = "account_store_unavailable"
)
