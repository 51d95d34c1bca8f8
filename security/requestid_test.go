package security

import (
	"context"
	"net/http"
	"strings"
	"testing"
)

func TestEnsureRequestID(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		wantKept bool
	}{
		{"well-formed id kept", "req-abc_123", true},
		{"uuid kept", "550e8400-e29b-41d4-a716-446655440000", true},
		{"absent generates", "", false},
		{"injection rejected", "abc\r\nSet-Cookie: x", false},
		{"spaces rejected", "has spaces", false},
		{"overlong rejected", strings.Repeat("a", 200), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := http.NewRequest(http.MethodGet, "/", nil)
			if err != nil {
				t.Fatalf("NewRequest: %v", err)
			}
			if tt.header != "" {
				r.Header.Set(RequestIDHeader, tt.header)
			}

			got := EnsureRequestID(r)
			if got == "" {
				t.Fatal("EnsureRequestID() returned empty")
			}
			if tt.wantKept && got != tt.header {
				t.Errorf("EnsureRequestID() = %q, want inbound %q kept", got, tt.header)
			}
			if !tt.wantKept && got == tt.header {
				t.Errorf("EnsureRequestID() kept malformed inbound id %q", got)
			}
		})
	}
}

func TestRequestIDContext(t *testing.T) {
	ctx := context.Background()
	if got := GetRequestID(ctx); got != "" {
		t.Errorf("GetRequestID(empty ctx) = %q, want empty", got)
	}

	ctx = WithRequestID(ctx, "req-1")
	if got := GetRequestID(ctx); got != "req-1" {
		t.Errorf("GetRequestID() = %q, want req-1", got)
	}
}
