package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultTimeout  = 15 * time.Second
	maxResponseBody = 4 << 20

	// RequestIDHeader carries a per-call correlation id to the backend.
	RequestIDHeader = "X-Request-ID"
)

type requestIDKey struct{}

// ContextWithRequestID makes calls issued with ctx send id as their request id
// instead of a fresh one.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the id stored by ContextWithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// TokenSource supplies the bearer token for authenticated calls. An empty
// token means no Authorization header is sent.
type TokenSource interface {
	Token() string
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func() string

func (f TokenFunc) Token() string { return f() }

// Request describes one backend call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	// Body is JSON-encoded unless it is already json.RawMessage or []byte.
	Body any
	// Auth attaches the bearer token when one is available.
	Auth bool
}

// Client issues requests against the backend's REST API.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	timeout time.Duration
	logger  zerolog.Logger

	mu       sync.RWMutex
	tokens   TokenSource
	onUnauth []func(context.Context, string)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout bounds every request. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// New creates a Client for the backend at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("base url %q has no host", baseURL)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawPath, u.RawQuery, u.Fragment = "", "", ""

	c := &Client{
		baseURL: u,
		http:    &http.Client{},
		timeout: defaultTimeout,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the backend origin the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// SetTokenSource replaces the source of bearer tokens.
func (c *Client) SetTokenSource(ts TokenSource) {
	c.mu.Lock()
	c.tokens = ts
	c.mu.Unlock()
}

// OnUnauthenticated registers fn to run when an authenticated call that carried
// a token is rejected with 401. fn receives the rejected token.
func (c *Client) OnUnauthenticated(fn func(ctx context.Context, token string)) {
	c.mu.Lock()
	c.onUnauth = append(c.onUnauth, fn)
	c.mu.Unlock()
}

func (c *Client) token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.tokens == nil {
		return ""
	}
	return strings.TrimSpace(c.tokens.Token())
}

// Do sends req and returns the raw JSON body of a 2xx response. An empty body
// is returned as JSON null.
func (c *Client) Do(ctx context.Context, req Request) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	fail := func(kind Kind, status int, err error) *Error {
		return &Error{Kind: kind, Status: status, Method: req.Method, Path: req.Path, Err: err}
	}

	body, err := encodeBody(req.Body)
	if err != nil {
		return nil, fail(KindUnknown, 0, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.resolve(req.Path, req.Query), body)
	if err != nil {
		return nil, fail(KindUnknown, 0, fmt.Errorf("build request: %w", err))
	}
	requestID := RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(RequestIDHeader, requestID)

	var token string
	if req.Auth {
		token = c.token()
		if token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.Debug().Err(err).
			Str("request_id", requestID).
			Str("method", req.Method).
			Str("path", req.Path).
			Dur("latency", time.Since(start)).
			Msg("backend call failed")
		return nil, fail(NetworkError, 0, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody+1))
	c.logger.Debug().
		Str("request_id", requestID).
		Str("method", req.Method).
		Str("path", req.Path).
		Int("status", resp.StatusCode).
		Bool("authenticated", token != "").
		Dur("latency", time.Since(start)).
		Msg("backend call")
	if err != nil {
		return nil, fail(NetworkError, resp.StatusCode, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		gwErr := decodeError(resp.StatusCode, raw)
		gwErr.Method, gwErr.Path = req.Method, req.Path
		gwErr.Err = errors.New(http.StatusText(resp.StatusCode))
		if gwErr.Kind == Unauthenticated && token != "" {
			c.notifyUnauthenticated(context.WithoutCancel(ctx), token)
		}
		return nil, gwErr
	}

	if len(raw) > maxResponseBody {
		gwErr := fail(MalformedResponse, resp.StatusCode, fmt.Errorf("response exceeds %d bytes", maxResponseBody))
		gwErr.Detail = "response too large"
		return nil, gwErr
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return json.RawMessage("null"), nil
	}
	if !json.Valid(raw) {
		return nil, fail(MalformedResponse, resp.StatusCode, errors.New("response body is not JSON"))
	}
	return json.RawMessage(raw), nil
}

func (c *Client) notifyUnauthenticated(ctx context.Context, token string) {
	c.mu.RLock()
	hooks := append([]func(context.Context, string){}, c.onUnauth...)
	c.mu.RUnlock()
	for _, fn := range hooks {
		fn(ctx, token)
	}
}

func (c *Client) resolve(path string, query url.Values) string {
	target := c.baseURL.String() + "/" + strings.TrimPrefix(path, "/")
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	return target
}

func encodeBody(body any) (io.Reader, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return bytes.NewReader(b), nil
	case []byte:
		return bytes.NewReader(b), nil
	default:
		encoded, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		return bytes.NewReader(encoded), nil
	}
}
