// Package upstream issues authenticated requests against a vendor resource
// API on behalf of one agent session. It owns the core failure-handling
// contract of the broker: at most one refresh-and-retry per logical call,
// never two.
package upstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/giantswarm/mcp-backoffice/instrumentation"
	"github.com/giantswarm/mcp-backoffice/session"
)

// APIError is a terminal non-2xx response from the resource API, after any
// permitted refresh-retry. It is never retried.
type APIError struct {
	Status     int
	StatusText string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("upstream API error: %d %s", e.Status, e.StatusText)
}

// Request is a replayable upstream request. The body is held as bytes so the
// executor can reissue the identical request after a token refresh.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// maxResponseBodySize bounds how much of an upstream payload is read.
const maxResponseBodySize = 16 << 20

// Executor issues HTTP calls using a held session credential.
//
// On a 401 it refreshes the credential exactly once, then retries the
// original request exactly once with the new token. A second 401 is terminal.
// Any other non-2xx response is a terminal APIError and is not retried.
// Transport failures (including timeouts) fail immediately; a timeout is not
// evidence of token expiry.
type Executor struct {
	vendor     string
	httpClient *http.Client
	refresher  session.Refresher
	limiter    *rate.Limiter
	logger     *slog.Logger
	instr      *instrumentation.Instrumentation
}

// Config holds executor configuration.
type Config struct {
	// Vendor names the upstream for logs and metrics.
	Vendor string

	// Refresher performs the refresh-token grant on a 401.
	Refresher session.Refresher

	// HTTPClient is an optional custom HTTP client (default: 30s timeout).
	HTTPClient *http.Client

	// RequestsPerSecond throttles outbound calls to the vendor API. Zero
	// disables throttling.
	RequestsPerSecond float64

	// Burst is the limiter burst size (default: 1 when throttling is on).
	Burst int

	// Logger for structured logging (optional).
	Logger *slog.Logger

	// Instrumentation records upstream metrics (optional).
	Instrumentation *instrumentation.Instrumentation
}

// New creates an executor bound to one vendor API.
func New(cfg Config) (*Executor, error) {
	if cfg.Vendor == "" {
		return nil, fmt.Errorf("vendor is required")
	}
	if cfg.Refresher == nil {
		return nil, fmt.Errorf("refresher is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Executor{
		vendor:     cfg.Vendor,
		httpClient: httpClient,
		refresher:  cfg.Refresher,
		limiter:    limiter,
		logger:     logger,
		instr:      cfg.Instrumentation,
	}, nil
}

// Do executes the request with the session's bearer token and returns the
// response body on a 2xx status.
func (e *Executor) Do(ctx context.Context, req *Request, cred *session.Credential) ([]byte, error) {
	start := time.Now()

	token := cred.AccessToken()
	resp, err := e.send(ctx, req, token)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)

		e.logger.Debug("Access token rejected, refreshing",
			"vendor", e.vendor, "method", req.Method, "url", req.URL)
		if err := cred.RefreshWith(ctx, e.refresher, token); err != nil {
			return nil, err
		}
		e.recordRefreshRetry(ctx)

		resp, err = e.send(ctx, req, cred.AccessToken())
		if err != nil {
			return nil, err
		}
	}

	defer drain(resp)
	e.recordRequest(ctx, req.Method, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{
			Status:     resp.StatusCode,
			StatusText: http.StatusText(resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read upstream response: %w", err)
	}
	return body, nil
}

// Get is a convenience wrapper for bodyless GET requests.
func (e *Executor) Get(ctx context.Context, url string, cred *session.Credential) ([]byte, error) {
	return e.Do(ctx, &Request{Method: http.MethodGet, URL: url}, cred)
}

// send issues one attempt of the request with the given bearer token.
func (e *Executor) send(ctx context.Context, req *Request, accessToken string) (*http.Response, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream request: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+accessToken)
	httpReq.Header.Set("Accept", "application/json")
	if len(req.Body) > 0 {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}
	return resp, nil
}

func (e *Executor) recordRequest(ctx context.Context, method string, status int, elapsed time.Duration) {
	if e.instr != nil {
		e.instr.Metrics().RecordUpstreamRequest(ctx, e.vendor, method, status, elapsed)
	}
}

func (e *Executor) recordRefreshRetry(ctx context.Context) {
	if e.instr != nil {
		e.instr.Metrics().RecordRefreshRetry(ctx, e.vendor)
	}
}

// drain discards and closes a response body so the connection can be reused.
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}
