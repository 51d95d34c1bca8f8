package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/storefront-kit/auth/accounts"
	"github.com/storefront-kit/auth/accounts/mock"
	"github.com/storefront-kit/auth/internal/testutil"
	"github.com/storefront-kit/auth/storage/memory"
)

type handlerFixture struct {
	handler *Handler
	service *Service
	store   *mock.Store
	server  *httptest.Server
}

func newHandlerFixture(t *testing.T, cfg *Config) *handlerFixture {
	t.Helper()

	mem := memory.New()
	t.Cleanup(mem.Stop)

	store := mock.New()
	logs := testutil.NewLogCapture()

	if cfg == nil {
		cfg = &Config{}
	}
	cfg.Logger = logs.Logger()
	cfg.EnableAuditLogging = true

	svc, err := NewService(store, mem, mem, cfg)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	svc.delayFn = func(context.Context) {}

	handler := NewHandler(svc)
	t.Cleanup(handler.Close)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &handlerFixture{
		handler: handler,
		service: svc,
		store:   store,
		server:  server,
	}
}

func (f *handlerFixture) postJSON(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(f.server.URL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func (f *handlerFixture) login(t *testing.T) (subjectID, token string) {
	t.Helper()
	resp := f.postJSON(t, "/auth/login", loginRequest{Email: "shopper@example.com", Password: "Valid1Pass!"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	body := decodeJSON[authResponse](t, resp)
	return body.User.ID, body.Token
}

func TestHandlerLoginSuccess(t *testing.T) {
	f := newHandlerFixture(t, nil)

	resp := f.postJSON(t, "/auth/login", loginRequest{Email: "shopper@example.com", Password: "Valid1Pass!"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	if resp.Header.Get("X-Frame-Options") != "DENY" {
		t.Error("security headers missing from response")
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("X-Request-ID missing from response")
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	body := decodeJSON[authResponse](t, resp)
	if body.User == nil || body.User.ID == "" {
		t.Fatalf("response user = %+v", body.User)
	}
	if body.Token == "" {
		t.Error("response token is empty")
	}
	if body.ExpiresAt == nil || body.ExpiresAt.Before(time.Now()) {
		t.Errorf("response expiresAt = %v", body.ExpiresAt)
	}
}

func TestHandlerLoginMethodNotAllowed(t *testing.T) {
	f := newHandlerFixture(t, nil)

	resp, err := http.Get(f.server.URL + "/auth/login")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestHandlerLoginMalformedBody(t *testing.T) {
	f := newHandlerFixture(t, nil)

	resp, err := http.Post(f.server.URL+"/auth/login", "application/json", bytes.NewReader([]byte("{not json")))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	body := decodeJSON[errorResponse](t, resp)
	if body.Error != ErrorCodeValidation {
		t.Errorf("error code = %q, want %q", body.Error, ErrorCodeValidation)
	}
}

func TestHandlerLoginFailure(t *testing.T) {
	f := newHandlerFixture(t, nil)
	f.store.LoginFunc = func(context.Context, accounts.Credentials) (*accounts.Subject, string, error) {
		return nil, "", accounts.ErrInvalidCredentials
	}

	resp := f.postJSON(t, "/auth/login", loginRequest{Email: "shopper@example.com", Password: "WrongPass1!"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}

	body := decodeJSON[errorResponse](t, resp)
	if body.Error != ErrorCodeAuthentication {
		t.Errorf("error code = %q, want %q", body.Error, ErrorCodeAuthentication)
	}
	if body.Message != MsgInvalidCredentials {
		t.Errorf("message = %q, want the generic %q", body.Message, MsgInvalidCredentials)
	}
}

func TestHandlerLoginLockoutSetsRetryAfter(t *testing.T) {
	f := newHandlerFixture(t, &Config{
		MaxLoginAttempts: 1,
		LockoutWindow:    15 * time.Minute,
	})
	f.store.LoginFunc = func(context.Context, accounts.Credentials) (*accounts.Subject, string, error) {
		return nil, "", accounts.ErrInvalidCredentials
	}

	req := loginRequest{Email: "shopper@example.com", Password: "WrongPass1!"}

	resp := f.postJSON(t, "/auth/login", req)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("first attempt status = %d, want 401", resp.StatusCode)
	}

	resp = f.postJSON(t, "/auth/login", req)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("locked-out status = %d, want 429", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Error("Retry-After header missing on lockout response")
	}

	body := decodeJSON[errorResponse](t, resp)
	if body.Error != ErrorCodeRateLimited {
		t.Errorf("error code = %q, want %q", body.Error, ErrorCodeRateLimited)
	}
}

func TestHandlerRegister(t *testing.T) {
	f := newHandlerFixture(t, nil)

	resp := f.postJSON(t, "/auth/register", registerRequest{
		Username: "shopper",
		Email:    "new@example.com",
		Password: "Valid1Pass!",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}

	body := decodeJSON[authResponse](t, resp)
	if body.User == nil || body.User.Email != "new@example.com" {
		t.Errorf("response user = %+v", body.User)
	}
	if body.Token != "" {
		t.Error("register response carries a session token")
	}
}

func TestHandlerRegisterWeakPassword(t *testing.T) {
	f := newHandlerFixture(t, nil)

	resp := f.postJSON(t, "/auth/register", registerRequest{
		Username: "shopper",
		Email:    "new@example.com",
		Password: "weak",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}

	body := decodeJSON[errorResponse](t, resp)
	if body.Error != ErrorCodeValidation {
		t.Errorf("error code = %q, want %q", body.Error, ErrorCodeValidation)
	}
}

func TestHandlerSessionLifecycle(t *testing.T) {
	f := newHandlerFixture(t, nil)
	subjectID, token := f.login(t)

	get := func() *http.Response {
		req, err := http.NewRequest(http.MethodGet, f.server.URL+"/auth/session", nil)
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set(HeaderSubjectID, subjectID)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("GET session: %v", err)
		}
		return resp
	}

	resp := get()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("session status = %d, want 200", resp.StatusCode)
	}
	body := decodeJSON[authResponse](t, resp)
	if body.User == nil || body.User.ID != subjectID {
		t.Errorf("session user = %+v", body.User)
	}

	logoutReq, err := http.NewRequest(http.MethodPost, f.server.URL+"/auth/logout", nil)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	logoutReq.Header.Set("Authorization", "Bearer "+token)
	logoutReq.Header.Set(HeaderSubjectID, subjectID)
	logoutResp, err := http.DefaultClient.Do(logoutReq)
	if err != nil {
		t.Fatalf("POST logout: %v", err)
	}
	_ = logoutResp.Body.Close()
	if logoutResp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout status = %d, want 204", logoutResp.StatusCode)
	}

	resp = get()
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("session after logout status = %d, want 401", resp.StatusCode)
	}
}

func TestHandlerSessionRejectsBadCredentials(t *testing.T) {
	f := newHandlerFixture(t, nil)
	subjectID, token := f.login(t)

	tests := []struct {
		name      string
		subject   string
		authValue string
	}{
		{"missing authorization", subjectID, ""},
		{"missing subject header", "", "Bearer " + token},
		{"wrong token", subjectID, "Bearer not-the-token"},
		{"wrong scheme", subjectID, "Basic " + token},
		{"other subject", "someone-else", "Bearer " + token},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, f.server.URL+"/auth/session", nil)
			if err != nil {
				t.Fatalf("request: %v", err)
			}
			if tt.authValue != "" {
				req.Header.Set("Authorization", tt.authValue)
			}
			if tt.subject != "" {
				req.Header.Set(HeaderSubjectID, tt.subject)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("GET session: %v", err)
			}
			defer func() { _ = resp.Body.Close() }()
			if resp.StatusCode != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", resp.StatusCode)
			}
		})
	}
}

func TestRequireAuthMiddleware(t *testing.T) {
	f := newHandlerFixture(t, nil)
	subjectID, token := f.login(t)

	var gotSubject string
	protected := f.handler.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSubject = SubjectIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(HeaderSubjectID, subjectID)
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("authorized request status = %d, want 200", rec.Code)
	}
	if gotSubject != subjectID {
		t.Errorf("SubjectIDFromContext() = %q, want %q", gotSubject, subjectID)
	}

	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/protected", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous request status = %d, want 401", rec.Code)
	}
}

func TestHandlerRequestThrottle(t *testing.T) {
	f := newHandlerFixture(t, &Config{
		RateLimit: RateLimitConfig{Rate: 1, Burst: 1},
	})

	req := loginRequest{Email: "shopper@example.com", Password: "Valid1Pass!"}

	resp := f.postJSON(t, "/auth/login", req)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", resp.StatusCode)
	}

	resp = f.postJSON(t, "/auth/login", req)
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("burst-exceeding status = %d, want 429", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Error("Retry-After header missing")
	}
}

func TestSubjectIDFromContextAbsent(t *testing.T) {
	if got := SubjectIDFromContext(context.Background()); got != "" {
		t.Errorf("SubjectIDFromContext() = %q, want empty", got)
	}
}
