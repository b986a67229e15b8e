// Package apiclient is the single HTTP adapter every resource call goes through.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"runtime/debug"
	"strings"
	"time"

	"github.com/and161185/agora/internal/errs"
	"go.uber.org/zap"
)

// TokenSource supplies the bearer token for outgoing requests.
type TokenSource interface {
	Token() (string, bool)
}

// Client issues JSON requests against the backend base URL.
type Client struct {
	base    *url.URL
	tokens  TokenSource
	http    *http.Client
	log     *zap.Logger
	timeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client. Its transport is still
// wrapped with logging and panic recovery.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the request logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithTimeout sets the transport-level timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// New builds a Client for baseURL. tokens may be nil for anonymous use.
func New(baseURL string, tokens TokenSource, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url: unsupported scheme %q", u.Scheme)
	}

	c := &Client{
		base:    u,
		tokens:  tokens,
		log:     zap.NewNop(),
		timeout: 30 * time.Second,
	}
	for _, o := range opts {
		o(c)
	}

	hc := &http.Client{}
	if c.http != nil {
		cp := *c.http
		hc = &cp
	}
	next := hc.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	hc.Transport = RecoverTransport(LoggingTransport(next, c.log), c.log)
	if hc.Timeout == 0 {
		hc.Timeout = c.timeout
	}
	c.http = hc
	return c, nil
}

// BaseURL returns the configured backend root.
func (c *Client) BaseURL() string { return c.base.String() }

// Do sends exactly one request. body is JSON-encoded when non-nil; a 2xx
// response body is decoded into out when out is non-nil. Any other outcome
// is returned as *errs.APIError. The token is never cleared here.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), rdr)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if tok, ok := c.tokens.Token(); ok {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errs.Transport(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.Transport(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errs.FromResponse(resp.StatusCode, data)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	return c.decode(method, path, resp.StatusCode, data, out)
}

func (c *Client) decode(method, path string, status int, data []byte, out any) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			c.log.Error("panic",
				zap.Any("reason", rec),
				zap.ByteString("stack", debug.Stack()),
				zap.String("method", method),
				zap.String("path", path),
			)
			err = fmt.Errorf("internal: decode %s %s: %v", method, path, rec)
		}
	}()
	if err := json.Unmarshal(data, out); err != nil {
		c.log.Warn("undecodable response",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Error(err),
		)
		return errs.BadBody(status, err)
	}
	return nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = c.base.Path + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, nil, body, out)
}

func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPut, path, nil, body, out)
}

func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodDelete, path, nil, nil, out)
}
