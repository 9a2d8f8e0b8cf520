// Package apiclient talks to the café REST API on behalf of the visitor. Every call goes through
// a transport that attaches the visitor's bearer token and refreshes it once on a 401.
package apiclient

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
	"time"
)

const defaultTimeout = 8 * time.Second

// ErrMissingBaseURL is returned by NewClient when no API address is configured.
var ErrMissingBaseURL = errors.New("apiclient: missing base url")

// Client issues JSON requests against the café API.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option customises the client.
type Option func(*clientOptions)

type clientOptions struct {
	timeout   time.Duration
	transport http.RoundTripper
	tokens    TokenStore
	logger    func(context.Context, string, map[string]any)
}

// WithTimeout bounds every request, retries included.
func WithTimeout(timeout time.Duration) Option {
	return func(o *clientOptions) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// WithTransport replaces the underlying round tripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *clientOptions) {
		if rt != nil {
			o.transport = rt
		}
	}
}

// WithTokenStore enables bearer authentication and refresh-on-401 backed by the session store.
func WithTokenStore(store TokenStore) Option {
	return func(o *clientOptions) {
		o.tokens = store
	}
}

// WithLogger records session refresh and expiry events.
func WithLogger(logger func(context.Context, string, map[string]any)) Option {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

// NewClient constructs an API client rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, ErrMissingBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("apiclient: invalid base url: %w", err)
	}
	options := clientOptions{timeout: defaultTimeout, transport: http.DefaultTransport}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	c := &Client{baseURL: baseURL}
	transport := options.transport
	if options.tokens != nil {
		transport = &refreshTransport{
			base:    options.transport,
			tokens:  options.tokens,
			refresh: c.RefreshToken,
			logger:  options.logger,
		}
	}
	c.http = &http.Client{Timeout: options.timeout, Transport: transport}
	return c, nil
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string { return c.baseURL }

// Ping reports whether the API answers at all. Any status below 500 counts as reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	closeBody(resp)
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("apiclient: ping status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	endpoint := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	return endpoint
}

// do sends body as JSON (when non-nil) and decodes a 2xx response into out (when non-nil).
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("apiclient: encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, ErrSessionExpired) {
			return ErrSessionExpired
		}
		return fmt.Errorf("apiclient: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return readAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		closeBody(resp)
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("apiclient: read %s %s: %w", method, path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("apiclient: decode %s %s: %w", method, path, err)
	}
	return nil
}

// list fetches a collection that the API renders either as a bare array or as {results: [...]}.
func list[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, path, query, nil, &raw); err != nil {
		return nil, err
	}
	return decodeList[T](raw)
}

func decodeList[T any](raw json.RawMessage) ([]T, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []T{}, nil
	}
	if raw[0] == '{' {
		var page struct {
			Results json.RawMessage `json:"results"`
		}
		if err := json.Unmarshal(raw, &page); err != nil {
			return nil, fmt.Errorf("apiclient: decode page: %w", err)
		}
		return decodeList[T](page.Results)
	}
	items := []T{}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("apiclient: decode list: %w", err)
	}
	return items, nil
}
