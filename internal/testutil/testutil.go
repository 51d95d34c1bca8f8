// Package testutil provides shared test helpers: a slog capture handler for
// asserting on log output, and an in-process HTTP account store with
// bcrypt-hashed users that speaks the same wire protocol as the real one.
package testutil

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// CapturedRecord is a single captured log record.
type CapturedRecord struct {
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

// LogCapture collects slog records for assertions.
type LogCapture struct {
	mu      sync.Mutex
	records []CapturedRecord
}

// NewLogCapture creates an empty log capture.
func NewLogCapture() *LogCapture {
	return &LogCapture{}
}

// Logger returns a slog.Logger writing into the capture.
func (c *LogCapture) Logger() *slog.Logger {
	return slog.New(&captureHandler{capture: c})
}

// Records returns a copy of everything captured so far.
func (c *LogCapture) Records() []CapturedRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]CapturedRecord, len(c.records))
	copy(out, c.records)
	return out
}

// Find returns all captured records with the given message.
func (c *LogCapture) Find(message string) []CapturedRecord {
	var out []CapturedRecord
	for _, rec := range c.Records() {
		if rec.Message == message {
			out = append(out, rec)
		}
	}
	return out
}

// FindAttr returns all captured records where the named attribute equals
// want (compared as strings via fmt-style %v is avoided; exact match on the
// resolved value's string form).
func (c *LogCapture) FindAttr(key, want string) []CapturedRecord {
	var out []CapturedRecord
	for _, rec := range c.Records() {
		if v, ok := rec.Attrs[key]; ok {
			if s, ok := v.(string); ok && s == want {
				out = append(out, rec)
			}
		}
	}
	return out
}

func (c *LogCapture) add(rec CapturedRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, rec)
}

// captureHandler is the slog.Handler feeding a LogCapture.
type captureHandler struct {
	capture *LogCapture
	attrs   []slog.Attr
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	rec := CapturedRecord{
		Level:   r.Level,
		Message: r.Message,
		Attrs:   make(map[string]any),
	}
	for _, a := range h.attrs {
		rec.Attrs[a.Key] = a.Value.Resolve().Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		rec.Attrs[a.Key] = a.Value.Resolve().Any()
		return true
	})
	h.capture.add(rec)
	return nil
}

func (h *captureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &captureHandler{capture: h.capture, attrs: merged}
}

func (h *captureHandler) WithGroup(string) slog.Handler { return h }

// SeedUser is an account to preload into the stub account store.
type SeedUser struct {
	Username string
	Email    string
	Password string
	Role     string
}

// stubAccount is a stored account with its bcrypt hash.
type stubAccount struct {
	id           string
	username     string
	email        string
	role         string
	passwordHash []byte
	createdAt    time.Time
}

// StubAccountStore is an in-process HTTP account store speaking the same
// wire protocol as the production one: POST /login and POST /register with
// JSON bodies. Passwords are bcrypt-hashed; login compares against a dummy
// hash when the email is unknown so unknown and wrong-password take the
// same time.
type StubAccountStore struct {
	mu        sync.Mutex
	accounts  map[string]*stubAccount // keyed by email
	dummyHash []byte
	server    *httptest.Server
}

// NewStubAccountStore starts a stub account store with the given seed
// users. Callers must Close it when done.
func NewStubAccountStore(seeds ...SeedUser) (*StubAccountStore, error) {
	dummy, err := bcrypt.GenerateFromPassword([]byte("dummy-comparison-password"), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}

	s := &StubAccountStore{
		accounts:  make(map[string]*stubAccount),
		dummyHash: dummy,
	}

	for _, seed := range seeds {
		if err := s.addAccount(seed); err != nil {
			return nil, err
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/login", s.handleLogin)
	mux.HandleFunc("/register", s.handleRegister)
	s.server = httptest.NewServer(mux)

	return s, nil
}

// URL returns the stub store's base URL.
func (s *StubAccountStore) URL() string {
	return s.server.URL
}

// Close shuts down the stub store's HTTP server.
func (s *StubAccountStore) Close() {
	s.server.Close()
}

func (s *StubAccountStore) addAccount(seed SeedUser) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(seed.Password), bcrypt.MinCost)
	if err != nil {
		return err
	}

	role := seed.Role
	if role == "" {
		role = "customer"
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[seed.Email] = &stubAccount{
		id:           uuid.NewString(),
		username:     seed.Username,
		email:        seed.Email,
		role:         role,
		passwordHash: hash,
		createdAt:    time.Now().UTC(),
	}
	return nil
}

type stubCredentials struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *StubAccountStore) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds stubCredentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeStubJSON(w, http.StatusBadRequest, map[string]string{"message": "Malformed request"})
		return
	}

	s.mu.Lock()
	account := s.accounts[creds.Email]
	s.mu.Unlock()

	hash := s.dummyHash
	if account != nil {
		hash = account.passwordHash
	}

	// Always run the comparison, even for unknown emails.
	err := bcrypt.CompareHashAndPassword(hash, []byte(creds.Password))
	if account == nil || err != nil {
		writeStubJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid credentials"})
		return
	}

	writeStubJSON(w, http.StatusOK, authPayload(account))
}

func (s *StubAccountStore) handleRegister(w http.ResponseWriter, r *http.Request) {
	var creds stubCredentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeStubJSON(w, http.StatusBadRequest, map[string]string{"message": "Malformed request"})
		return
	}

	s.mu.Lock()
	_, exists := s.accounts[creds.Email]
	s.mu.Unlock()
	if exists {
		writeStubJSON(w, http.StatusConflict, map[string]string{"message": "Email already registered"})
		return
	}

	if err := s.addAccount(SeedUser{
		Username: creds.Username,
		Email:    creds.Email,
		Password: creds.Password,
	}); err != nil {
		writeStubJSON(w, http.StatusInternalServerError, map[string]string{"message": "Registration failed"})
		return
	}

	s.mu.Lock()
	account := s.accounts[creds.Email]
	s.mu.Unlock()

	writeStubJSON(w, http.StatusCreated, authPayload(account))
}

func authPayload(account *stubAccount) map[string]any {
	return map[string]any{
		"user": map[string]any{
			"id":        account.id,
			"username":  account.username,
			"email":     account.email,
			"role":      account.role,
			"createdAt": account.createdAt.Format(time.RFC3339),
		},
		"token": uuid.NewString(),
	}
}

func writeStubJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
