package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/publicsuffix"
)

// ErrUnauthorized marks responses rejected with HTTP 401. The client clears
// the stored token and fires the unauthorized hook before returning it.
var ErrUnauthorized = errors.New("unauthorized")

// Error is a backend-reported failure: either a non-2xx status or an
// envelope with success=false.
type Error struct {
	StatusCode int
	Reason     string
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return fmt.Sprintf("server returned %d", e.StatusCode)
}

func (e *Error) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

// TokenStore supplies the bearer token for outgoing requests and is cleared
// when the backend rejects it.
type TokenStore interface {
	Token() string
	Clear() error
}

// Client is the single configured sender for all backend requests. It injects
// the bearer token, tags each request with an X-Request-Id, and handles 401
// globally.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenStore
	logger     *slog.Logger

	mu             sync.Mutex
	onUnauthorized func()

	Auth      *AuthService
	Chats     *ChatService
	Documents *DocumentService
}

// Options configures a Client.
type Options struct {
	BaseURL string
	Tokens  TokenStore
	Timeout time.Duration
	// HTTPClient overrides the default client (tests). When nil a client
	// with a publicsuffix-aware cookie jar is built so backend-set cookies
	// persist across requests within the process.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// New builds a Client and its typed service wrappers.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("api: base URL is required")
	}
	if opts.Tokens == nil {
		return nil, errors.New("api: token store is required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("building cookie jar: %w", err)
		}
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Jar: jar, Timeout: timeout}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: httpClient,
		tokens:     opts.Tokens,
		logger:     logger,
	}
	c.Auth = &AuthService{c: c}
	c.Chats = &ChatService{c: c}
	c.Documents = &DocumentService{c: c}
	return c, nil
}

// OnUnauthorized registers the hook fired when any request comes back 401
// while a token is held. The hook runs at most once per expiry: a 401
// received when no token is stored does not fire it again.
func (c *Client) OnUnauthorized(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = fn
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshalling request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req)
}

// send finishes and executes a prepared request: bearer injection, request
// id, transport error wrapping, global 401 handling.
func (c *Client) send(req *http.Request) (*http.Response, error) {
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("X-Request-Id", uuid.New().String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend not reachable (%w)", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.handleUnauthorized()
	}
	return resp, nil
}

// handleUnauthorized clears the token and fires the hook, but only when a
// token was actually held — repeat 401s while already anonymous are ignored
// so the hook fires exactly once per session expiry.
func (c *Client) handleUnauthorized() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tokens.Token() == "" {
		return
	}
	if err := c.tokens.Clear(); err != nil {
		c.logger.Warn("clearing token after 401", "error", err)
	}
	c.logger.Debug("session expired, token cleared")
	if c.onUnauthorized != nil {
		c.onUnauthorized()
	}
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *Client) post(ctx context.Context, path string, body any) (*http.Response, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

func (c *Client) put(ctx context.Context, path string, body any) (*http.Response, error) {
	return c.do(ctx, http.MethodPut, path, body)
}

func (c *Client) delete(ctx context.Context, path string) (*http.Response, error) {
	return c.do(ctx, http.MethodDelete, path, nil)
}

// envelope is the uniform response wrapper the backend uses.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
}

// decode unwraps the response envelope into v. Any non-2xx status or
// success=false becomes an *Error carrying the backend message. v may be nil
// for calls that only care about success.
func decode(resp *http.Response, v any) error {
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response (status %d): %w", resp.StatusCode, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= 400 {
			return &Error{StatusCode: resp.StatusCode, Reason: strings.TrimSpace(string(raw))}
		}
		return fmt.Errorf("decoding response: %w", err)
	}

	if resp.StatusCode >= 400 || !env.Success {
		reason := env.Error
		if reason == "" {
			reason = env.Message
		}
		return &Error{StatusCode: resp.StatusCode, Reason: reason}
	}

	if v == nil || env.Data == nil {
		return nil
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("decoding response data: %w", err)
	}
	return nil
}
