// Package rest implements the accounts.Store interface over the account
// store's REST API: POST {baseURL}/login and POST {baseURL}/register, both
// taking and returning JSON.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/storefront-kit/auth/accounts"
	"github.com/storefront-kit/auth/instrumentation"
	"github.com/storefront-kit/auth/internal/util"
)

// Compile-time check that Client implements the accounts.Store interface.
var _ accounts.Store = (*Client)(nil)

const storeName = "rest"

// maxResponseBody bounds how much of an account store response is read.
// Protects against a misbehaving upstream streaming an unbounded body.
const maxResponseBody = 1 << 20 // 1 MiB

// Config holds REST account store configuration.
type Config struct {
	// BaseURL is the account store base URL (required), e.g.
	// "https://accounts.internal:8443/api/users".
	BaseURL string

	// HTTPClient is an optional custom HTTP client.
	HTTPClient *http.Client

	// RequestTimeout is the timeout applied when no custom client is
	// provided (default: 15s).
	RequestTimeout time.Duration
}

// Client talks to the external account store over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client

	inst   *instrumentation.Instrumentation
	tracer trace.Tracer
}

// authResponse is the wire shape of a successful login/register response.
type authResponse struct {
	User  *accounts.Subject `json:"user"`
	Token string            `json:"token"`
}

// errorResponse is the wire shape of a non-2xx response body.
type errorResponse struct {
	Message string `json:"message"`
}

// NewClient creates a new REST account store client.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil || cfg.BaseURL == "" {
		return nil, fmt.Errorf("account store base URL is required")
	}

	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:    util.NormalizeBaseURL(cfg.BaseURL),
		httpClient: httpClient,
	}, nil
}

// Name returns the store implementation name.
func (c *Client) Name() string {
	return storeName
}

// SetInstrumentation enables tracing and metrics for account store calls.
// Call once, before the client is shared.
func (c *Client) SetInstrumentation(inst *instrumentation.Instrumentation) {
	if inst == nil {
		return
	}
	c.inst = inst
	c.tracer = inst.Tracer("accounts")
}

// Login verifies credentials with POST {baseURL}/login.
// The password travels verbatim: it must match the stored credential
// byte-for-byte, so no sanitization is applied to it here or anywhere else.
func (c *Client) Login(ctx context.Context, creds accounts.Credentials) (_ *accounts.Subject, _ string, err error) {
	var status int
	ctx, span, start := c.startStoreSpan(ctx, "login")
	defer func() { c.recordStoreCall(ctx, span, "login", status, err, start) }()

	payload := map[string]string{
		"email":    creds.Email,
		"password": creds.Password,
	}

	resp, err := c.post(ctx, "/login", payload)
	if err != nil {
		return nil, "", err
	}
	status = resp.status

	switch {
	case resp.status == http.StatusUnauthorized || resp.status == http.StatusForbidden:
		return nil, "", accounts.ErrInvalidCredentials
	case resp.status < 200 || resp.status >= 300:
		return nil, "", &accounts.StoreError{Status: resp.status, Message: resp.message}
	}

	result, err := decodeAuthResponse(resp.body)
	if err != nil {
		return nil, "", fmt.Errorf("login: %w", err)
	}
	return result.User, result.Token, nil
}

// Register creates an account with POST {baseURL}/register.
func (c *Client) Register(ctx context.Context, reg accounts.Registration) (_ *accounts.Subject, _ string, err error) {
	var status int
	ctx, span, start := c.startStoreSpan(ctx, "register")
	defer func() { c.recordStoreCall(ctx, span, "register", status, err, start) }()

	payload := map[string]string{
		"username": reg.Username,
		"email":    reg.Email,
		"password": reg.Password,
	}

	resp, err := c.post(ctx, "/register", payload)
	if err != nil {
		return nil, "", err
	}
	status = resp.status

	if resp.status < 200 || resp.status >= 300 {
		return nil, "", &accounts.StoreError{Status: resp.status, Message: resp.message}
	}

	result, err := decodeAuthResponse(resp.body)
	if err != nil {
		return nil, "", fmt.Errorf("register: %w", err)
	}
	return result.User, result.Token, nil
}

// HealthCheck issues a GET against the base URL. Any HTTP response counts as
// reachable; only transport errors are reported.
func (c *Client) HealthCheck(ctx context.Context) (err error) {
	var status int
	ctx, span, start := c.startStoreSpan(ctx, "health_check")
	defer func() { c.recordStoreCall(ctx, span, "health_check", status, err, start) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("account store unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	status = resp.StatusCode
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))
	return nil
}

// startStoreSpan opens a span for one account store call. Returns a nil
// span when instrumentation is not set.
func (c *Client) startStoreSpan(ctx context.Context, operation string) (context.Context, trace.Span, time.Time) {
	start := time.Now()
	if c.tracer == nil {
		return ctx, nil, start
	}
	ctx, span := c.tracer.Start(ctx, "accounts."+operation)
	instrumentation.AddStoreAttributes(span, storeName, operation)
	return ctx, span, start
}

// recordStoreCall closes the span and records the API call metric. Safe to
// call when instrumentation is not set. A zero status means the request
// never produced an HTTP response.
func (c *Client) recordStoreCall(ctx context.Context, span trace.Span, operation string, status int, err error, start time.Time) {
	if span != nil {
		instrumentation.SetSpanAttributes(span, attribute.Int(instrumentation.AttrStoreStatus, status))
		if err != nil {
			instrumentation.RecordError(span, err)
		} else {
			instrumentation.SetSpanSuccess(span)
		}
		span.End()
	}

	if c.inst == nil {
		return
	}
	c.inst.Metrics().RecordAccountStoreCall(ctx, storeName, operation, status,
		float64(time.Since(start).Milliseconds()), err)
}

// storeResponse is a fully-read account store response.
type storeResponse struct {
	status  int
	body    []byte
	message string
}

func (c *Client) post(ctx context.Context, path string, payload any) (*storeResponse, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("account store request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read account store response: %w", err)
	}

	sr := &storeResponse{status: resp.StatusCode, body: body}
	if sr.status < 200 || sr.status >= 300 {
		var e errorResponse
		// Best effort: a missing or malformed body just means no message.
		if jsonErr := json.Unmarshal(body, &e); jsonErr == nil {
			sr.message = e.Message
		}
	}
	return sr, nil
}

func decodeAuthResponse(body []byte) (*authResponse, error) {
	var result authResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode account store response: %w", err)
	}
	if result.User == nil || result.User.ID == "" {
		return nil, fmt.Errorf("account store response missing user")
	}
	if result.Token == "" {
		return nil, fmt.Errorf("account store response missing token")
	}
	return &result, nil
}
