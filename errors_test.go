package auth

import (
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AuthError
		wantCode   string
		wantStatus int
	}{
		{"validation", ErrValidation("bad input"), ErrorCodeValidation, http.StatusBadRequest},
		{"authentication", ErrAuthentication("bad creds"), ErrorCodeAuthentication, http.StatusUnauthorized},
		{"security", ErrSecurity("rejected"), ErrorCodeSecurity, http.StatusBadRequest},
		{"server", ErrServer("boom"), ErrorCodeServer, http.StatusInternalServerError},
		{"external service", ErrExternalService("upstream down"), ErrorCodeExternalService, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", tt.err.Code, tt.wantCode)
			}
			if tt.err.Status != tt.wantStatus {
				t.Errorf("Status = %d, want %d", tt.err.Status, tt.wantStatus)
			}
			if !strings.Contains(tt.err.Error(), tt.wantCode) {
				t.Errorf("Error() = %q, want it to contain %q", tt.err.Error(), tt.wantCode)
			}
		})
	}
}

func TestErrRateLimited(t *testing.T) {
	tests := []struct {
		name        string
		retryAfter  time.Duration
		wantMessage string
	}{
		{"fifteen minutes", 15 * time.Minute, "try again in 15 minutes"},
		{"rounds partial minute up", 14*time.Minute + time.Second, "try again in 15 minutes"},
		{"single minute", time.Minute, "try again in 1 minute"},
		{"sub-minute floors to one", 10 * time.Second, "try again in 1 minute"},
		{"zero floors to one", 0, "try again in 1 minute"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ErrRateLimited(tt.retryAfter)
			if err.Code != ErrorCodeRateLimited {
				t.Errorf("Code = %q, want %q", err.Code, ErrorCodeRateLimited)
			}
			if err.Status != http.StatusTooManyRequests {
				t.Errorf("Status = %d, want 429", err.Status)
			}
			if err.RetryAfter != tt.retryAfter {
				t.Errorf("RetryAfter = %v, want %v", err.RetryAfter, tt.retryAfter)
			}
			if !strings.Contains(err.Message, tt.wantMessage) {
				t.Errorf("Message = %q, want it to contain %q", err.Message, tt.wantMessage)
			}
		})
	}
}

func TestAuthErrorMessage(t *testing.T) {
	err := NewAuthError(ErrorCodeValidation, "field is required", http.StatusBadRequest)
	want := "validation_error: field is required"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
