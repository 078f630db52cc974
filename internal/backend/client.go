// Package backend is the typed REST client of the risk-control backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"risk-console/pkg/httpmiddleware"
)

// DefaultTimeout is the fixed per-request timeout.
const DefaultTimeout = 10 * time.Second

// Client wraps REST access to the risk backend. One method per backend
// operation; no retries.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type options struct {
	timeout     time.Duration
	base        http.RoundTripper
	logger      *slog.Logger
	logBodySize int
	recorder    httpmiddleware.DurationRecorder
}

// Option customizes the client.
type Option func(*options)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithTransport replaces the innermost transport (tests use httptest's).
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.base = rt }
}

// WithLogger logs every exchange; bodySize follows httpmiddleware.Logger.
func WithLogger(logger *slog.Logger, bodySize int) Option {
	return func(o *options) {
		o.logger = logger
		o.logBodySize = bodySize
	}
}

// WithRecorder reports call latency and outcome.
func WithRecorder(rec httpmiddleware.DurationRecorder) Option {
	return func(o *options) { o.recorder = rec }
}

// New builds a client for baseURL authenticating with apiKey.
func New(baseURL, apiKey string, opts ...Option) *Client {
	o := options{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.base == nil {
		o.base = httpmiddleware.DefaultTransport()
	}
	transport := httpmiddleware.Wrap(o.base,
		httpmiddleware.APIKey(apiKey),
		httpmiddleware.JSON(),
		httpmiddleware.Metrics(o.recorder),
		httpmiddleware.Logger(o.logger, o.logBodySize),
	)
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: o.timeout, Transport: transport},
	}
}

// BaseURL returns the configured backend URL.
func (c *Client) BaseURL() string { return c.baseURL }

// HTTPError is returned for non-2xx responses.
type HTTPError struct {
	Method  string
	Path    string
	Status  int
	Message string
	Body    string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend %s %s: status %d: %s", e.Method, e.Path, e.Status, e.Message)
	}
	return fmt.Sprintf("backend %s %s: status %d", e.Method, e.Path, e.Status)
}

// IsNotFound reports whether err is a backend 404.
func IsNotFound(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.Status == http.StatusNotFound
}

// StatusCode extracts the HTTP status from err, or 0.
func StatusCode(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Status
	}
	return 0
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("backend %s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("read %s %s: %w", method, path, err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return newHTTPError(method, path, res.StatusCode, data)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func newHTTPError(method, path string, status int, body []byte) *HTTPError {
	he := &HTTPError{Method: method, Path: path, Status: status, Body: string(body)}
	var msg struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &msg) == nil {
		he.Message = msg.Message
		if he.Message == "" {
			he.Message = msg.Error
		}
	}
	return he
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, nil, body, out)
}

// isEmptyObject reports whether a decoded JSON body carried nothing useful.
func isEmptyObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte("{}"))
}

// unwrapData accepts either a bare object or a {"data": {...}} envelope.
func unwrapData(raw json.RawMessage) json.RawMessage {
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if json.Unmarshal(raw, &env) == nil && !isEmptyObject(env.Data) && bytes.HasPrefix(bytes.TrimSpace(env.Data), []byte("{")) {
		return env.Data
	}
	return raw
}
