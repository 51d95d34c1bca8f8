package auth

import (
	"time"

	"github.com/storefront-kit/auth/accounts"
)

// loginRequest is the JSON body for POST /auth/login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// registerRequest is the JSON body for POST /auth/register.
type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// authResponse is the JSON body for successful login, register, and session
// lookups. Token and ExpiresAt are only set when a session token was
// issued.
type authResponse struct {
	User      *accounts.Subject `json:"user"`
	Token     string            `json:"token,omitempty"`
	ExpiresAt *time.Time        `json:"expiresAt,omitempty"`
}

// errorResponse is the JSON body for every failure.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
