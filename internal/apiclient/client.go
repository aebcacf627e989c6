// Package apiclient is the authenticated HTTP client for the Taskdeck API.
//
// Every call goes through Client.Do, which attaches the stored access token as
// a bearer credential. When the server answers 401 the client exchanges the
// refresh token for a new access token and resends the request once. If the
// exchange fails the stored tokens are cleared and the refresh failure is
// returned to the caller.
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

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/taskdeck-dev/taskdeck/internal/tokenstore"
)

const (
	// DefaultRefreshPath is the token refresh endpoint relative to the base URL
	DefaultRefreshPath = "/accounts/auth/refresh/"

	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "taskdeck-cli"
	requestIDHeader  = "X-Request-ID"
)

// Client represents an authenticated HTTP client for the Taskdeck API
type Client struct {
	baseURL     string
	httpClient  *http.Client
	store       tokenstore.Store
	refreshPath string
	userAgent   string
	logger      zerolog.Logger

	onRefreshFailure func(error)
	refreshGroup     singleflight.Group
}

// Option configures a Client
type Option func(*Client)

// WithTimeout sets the per-request timeout of the default HTTP client
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithLogger sets the logger used for request tracing
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRefreshPath overrides the token refresh endpoint
func WithRefreshPath(path string) Option {
	return func(c *Client) {
		c.refreshPath = path
	}
}

// WithUserAgent sets the User-Agent header sent with every request
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// New creates a new API client bound to a token store
func New(baseURL string, store tokenstore.Store, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: defaultTimeout},
		store:       store,
		refreshPath: DefaultRefreshPath,
		userAgent:   defaultUserAgent,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetHTTPClient sets a custom HTTP client
func (c *Client) SetHTTPClient(httpClient *http.Client) {
	c.httpClient = httpClient
}

// SetOnRefreshFailure registers a callback invoked after a failed refresh has
// cleared the stored tokens. It must be set before the client is shared.
func (c *Client) SetOnRefreshFailure(fn func(error)) {
	c.onRefreshFailure = fn
}

// BaseURL returns the API base URL without a trailing slash
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do sends req with the stored access token and recovers once from an expired token.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	access, err := c.store.AccessToken()
	if err != nil {
		return nil, fmt.Errorf("failed to load access token: %w", err)
	}

	resp, err := c.roundTrip(ctx, req, access)
	if err == nil {
		return resp, nil
	}

	if StatusCode(err) != http.StatusUnauthorized || req.Retry {
		return nil, err
	}
	req.Retry = true

	refreshToken, storeErr := c.store.RefreshToken()
	if storeErr != nil {
		return nil, c.failRefresh(fmt.Errorf("failed to load refresh token: %w", storeErr))
	}
	if refreshToken == "" {
		return nil, c.failRefresh(ErrNoRefreshToken)
	}

	newAccess, err := c.refresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	return c.roundTrip(ctx, req, newAccess)
}

// refresh exchanges refreshToken for a new access token. Concurrent callers
// holding the same refresh token share a single exchange.
func (c *Client) refresh(ctx context.Context, refreshToken string) (string, error) {
	ch := c.refreshGroup.DoChan(refreshToken, func() (any, error) {
		// Detached so one caller giving up does not fail the others
		access, err := c.exchange(context.WithoutCancel(ctx), refreshToken)
		if err != nil {
			return "", c.failRefresh(err)
		}
		if err := c.store.SetAccessToken(access); err != nil {
			return "", c.failRefresh(fmt.Errorf("failed to store access token: %w", err))
		}
		return access, nil
	})

	select {
	case <-ctx.Done():
		return "", &NetworkError{Method: http.MethodPost, URL: c.baseURL + c.refreshPath, Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type refreshResponse struct {
	Access string `json:"access"`
}

// exchange calls the refresh endpoint directly, without bearer header or 401 handling
func (c *Client) exchange(ctx context.Context, refreshToken string) (string, error) {
	resp, err := c.roundTrip(ctx, &Request{
		Method: http.MethodPost,
		Path:   c.refreshPath,
		Body:   refreshRequest{Refresh: refreshToken},
	}, "")
	if err != nil {
		return "", err
	}

	var out refreshResponse
	if err := resp.Decode(&out); err != nil {
		return "", err
	}
	if out.Access == "" {
		return "", ErrEmptyAccessToken
	}
	return out.Access, nil
}

func (c *Client) failRefresh(cause error) error {
	c.logger.Warn().Err(cause).Msg("Token refresh failed, clearing session")
	refreshErr := &RefreshError{Err: cause}
	c.clearTokens(refreshErr)
	return refreshErr
}

func (c *Client) clearTokens(cause error) {
	if err := c.store.Clear(); err != nil {
		c.logger.Error().Err(err).Msg("Failed to clear stored tokens")
	}
	if c.onRefreshFailure != nil {
		c.onRefreshFailure(cause)
	}
}

// roundTrip performs one attempt of req. An empty access token sends no
// Authorization header.
func (c *Client) roundTrip(ctx context.Context, req *Request, access string) (*Response, error) {
	target := c.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		jsonData, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(jsonData)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	if httpReq.Header.Get(requestIDHeader) == "" {
		httpReq.Header.Set(requestIDHeader, uuid.NewString())
	}
	if access != "" {
		httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", access))
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &NetworkError{Method: req.Method, URL: target, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Method: req.Method, URL: target, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	c.logger.Debug().
		Str("method", req.Method).
		Str("path", req.Path).
		Int("status", resp.StatusCode).
		Bool("retry", req.Retry).
		Dur("duration", time.Since(start)).
		Str("request_id", httpReq.Header.Get(requestIDHeader)).
		Msg("API request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: data}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

// call is the shared body of the verb helpers
func (c *Client) call(ctx context.Context, method, path string, query url.Values, body, out any) error {
	resp, err := c.Do(ctx, &Request{
		Method: method,
		Path:   path,
		Query:  query,
		Body:   body,
	})
	if err != nil {
		return err
	}
	return resp.Decode(out)
}

// Get fetches path and decodes the JSON response into out
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.call(ctx, http.MethodGet, path, query, nil, out)
}

// Post sends body to path and decodes the JSON response into out (if non-nil)
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.call(ctx, http.MethodPost, path, nil, body, out)
}

// Put replaces the resource at path
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.call(ctx, http.MethodPut, path, nil, body, out)
}

// Patch partially updates the resource at path
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.call(ctx, http.MethodPatch, path, nil, body, out)
}

// Delete removes the resource at path
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.call(ctx, http.MethodDelete, path, nil, nil, nil)
}

// IsUnauthorized reports whether err is a 401 from the API
func IsUnauthorized(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusUnauthorized
}
