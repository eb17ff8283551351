// Package api handles communication with the KodesCruxx backend: the
// streaming assistant endpoints, their non-streaming siblings, quota status
// and remote code execution.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// DefaultBaseURL is used when no backend URL is configured.
	DefaultBaseURL = "http://localhost:8000"

	quotaStatusPath = "/quota/status"
	healthPath      = "/health"
	executePath     = "/execute_code"
)

// TokenSource supplies an optional bearer token. An empty token means the
// request is sent unauthenticated.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenFunc adapts a function to a TokenSource.
type TokenFunc func(ctx context.Context) (string, error)

func (f TokenFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

// Client talks to the backend. It holds no per-call state, so one Client
// can serve concurrent calls.
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
	logger     zerolog.Logger
	requestID  func() string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client. Its Timeout applies to whole
// streams, so leave it zero unless a hard cap is wanted.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the diagnostics logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithRequestIDs overrides the X-Request-ID generator.
func WithRequestIDs(gen func() string) Option {
	return func(c *Client) { c.requestID = gen }
}

// New creates a Client for baseURL. tokens may be nil.
func New(baseURL string, tokens TokenSource, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
		httpClient: &http.Client{},
		logger:     zerolog.Nop(),
		requestID:  uuid.NewString,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BaseURL returns the backend URL requests are sent to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// token resolves the bearer token. Failures mean "no token".
func (c *Client) token(ctx context.Context) string {
	if c.tokens == nil {
		return ""
	}
	tok, err := c.tokens.Token(ctx)
	if err != nil {
		c.logger.Debug().Err(err).Msg("token source failed, sending unauthenticated request")
		return ""
	}
	return tok
}

// do sends a request and returns the response only for 2xx statuses. Every
// other outcome is turned into one of the typed errors and the body is
// closed. The caller must close the returned body.
func (c *Client) do(ctx context.Context, method, path string, payload any, requireAuth bool) (*http.Response, error) {
	if path == "" {
		return nil, ErrEmptyEndpoint
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	reqID := c.requestID()
	req.Header.Set("X-Request-ID", reqID)

	tok := c.token(ctx)
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	} else if requireAuth {
		return nil, ErrNotAuthenticated
	}

	log := c.logger.With().Str("request_id", reqID).Str("method", method).Str("path", path).Logger()
	log.Debug().Bool("auth", tok != "").Msg("sending request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Debug().Err(err).Msg("transport failure")
		return nil, &ConnectionError{BaseURL: c.baseURL, Err: err}
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		defer resp.Body.Close()
		log.Debug().Msg("quota exhausted")
		return nil, decodeQuotaError(resp.Body)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &ConnectionError{BaseURL: c.baseURL, Err: fmt.Errorf("failed to read error response: %w", err)}
		}
		log.Debug().Int("status", resp.StatusCode).Msg("request failed")
		return nil, &ProtocolError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(respBody)),
		}
	}

	return resp, nil
}

func decodeQuotaError(body io.Reader) *QuotaExhaustedError {
	var info QuotaInfo
	if err := json.NewDecoder(body).Decode(&info); err != nil {
		// The status alone is authoritative.
		return &QuotaExhaustedError{Info: QuotaInfo{IsExhausted: true}}
	}
	if info.Remaining == 0 {
		info.IsExhausted = true
	}
	return &QuotaExhaustedError{Info: info}
}

func (c *Client) getJSON(ctx context.Context, method, path string, payload any, requireAuth bool, out any) error {
	resp, err := c.do(ctx, method, path, payload, requireAuth)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ConnectionError{BaseURL: c.baseURL, Err: fmt.Errorf("failed to read response: %w", err)}
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// Complete calls a non-streaming assistant endpoint and returns its text.
func (c *Client) Complete(ctx context.Context, endpoint string, params Params) (string, error) {
	var out completeResponse
	if err := c.getJSON(ctx, http.MethodPost, endpoint, params, false, &out); err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Response), nil
}

// QuotaStatus fetches the caller's current quota.
func (c *Client) QuotaStatus(ctx context.Context) (*QuotaInfo, error) {
	var info QuotaInfo
	if err := c.getJSON(ctx, http.MethodGet, quotaStatusPath, nil, true, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Health calls the backend's fast health check.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var hs HealthStatus
	if err := c.getJSON(ctx, http.MethodGet, healthPath, nil, false, &hs); err != nil {
		return nil, err
	}
	return &hs, nil
}

// ExecuteCode runs code remotely. An empty Version means "latest".
func (c *Client) ExecuteCode(ctx context.Context, req ExecuteRequest) (*ExecuteResult, error) {
	if req.Version == "" {
		req.Version = "*"
	}
	var res ExecuteResult
	if err := c.getJSON(ctx, http.MethodPost, executePath, req, false, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
