// Package client is the portal's session-aware HTTP client. It owns the auth
// cookies, transparently coordinates token refresh behind a single-flight
// queue, and tracks the client-side session record (soft expiry, hard cap,
// activity timers) alongside the authenticated principal.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	identitydomain "postgrad-portal/backend/internal/identity/domain"
)

// retriedKey marks a request that already went through one refresh-and-replay
// cycle so a second 401 is returned to the caller instead of looping.
type retriedKey struct{}

// APIError is a non-2xx response with the server's machine-readable code.
type APIError struct {
	Status int
	Code   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status %d code %q", e.Status, e.Code)
}

// Client wraps an *http.Client with cookie-based auth against one portal origin.
type Client struct {
	base    *url.URL
	http    *http.Client
	refresh *refreshCoordinator
	// onRefreshFailure is installed by the IdentityContext so a terminal
	// refresh failure tears the session down instead of just erroring.
	onRefreshFailure func(error)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. A cookie jar is
// installed if the given client has none.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New returns a Client for the portal at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("client: invalid base URL %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("client: base URL %q must be absolute", baseURL)
	}
	c := &Client{
		base:    u,
		http:    &http.Client{},
		refresh: newRefreshCoordinator(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		c.http.Jar = jar
	}
	return c, nil
}

// Origin returns the scheme://host the client is bound to. Client-side state
// is keyed by this value so two portals on different ports never share state.
func (c *Client) Origin() string {
	return c.base.Scheme + "://" + c.base.Host
}

// Do performs the request. On a 401 it queues behind the single-flight
// refresh, then replays the request exactly once. The refresh path itself and
// already-replayed requests are never intercepted. Requests whose body cannot
// be rebuilt (no GetBody) are returned as-is on 401.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusUnauthorized {
		return res, nil
	}
	if req.Context().Value(retriedKey{}) != nil || strings.HasPrefix(req.URL.Path, "/refresh") {
		return res, nil
	}
	if req.Body != nil && req.GetBody == nil {
		return res, nil
	}
	drain(res)

	if err := c.refresh.await(req.Context(), c.doRefresh); err != nil {
		// Refresh failure is fatal to the session. Every queued caller gets
		// the same rejection; the identity layer handles the forced logout.
		// A caller's own cancellation is not a refresh verdict and must not
		// tear the session down.
		if c.onRefreshFailure != nil && !errors.Is(err, ErrSessionTerminated) &&
			!errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			c.onRefreshFailure(err)
		}
		return nil, err
	}

	retry := req.Clone(context.WithValue(req.Context(), retriedKey{}, true))
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry.Body = body
	}
	return c.http.Do(retry)
}

// doRefresh performs the actual POST /refresh call. Any non-2xx status is a
// terminal refresh failure.
func (c *Client) doRefresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base.JoinPath("/refresh").String(), nil)
	if err != nil {
		return err
	}
	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer drain(res)
	if res.StatusCode >= 300 {
		return &APIError{Status: res.StatusCode, Code: decodeErrorCode(res)}
	}
	return nil
}

// Login authenticates against the role's identity store. On success the auth
// cookies land in the jar and the principal is returned.
func (c *Client) Login(ctx context.Context, role identitydomain.Role, email, password string) (*identitydomain.Principal, error) {
	// A fresh login re-arms the refresh queue after a logout.
	c.refresh.reset()
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.base.JoinPath("/login", string(role)).String(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer drain(res)
	if res.StatusCode != http.StatusOK {
		return nil, &APIError{Status: res.StatusCode, Code: decodeErrorCode(res)}
	}
	return decodePrincipal(res)
}

// Logout revokes the session server-side. The caller must clear local state
// regardless of the returned error; cookie clearing arrives via Set-Cookie.
func (c *Client) Logout(ctx context.Context) error {
	c.refresh.logout()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base.JoinPath("/logout").String(), nil)
	if err != nil {
		return err
	}
	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer drain(res)
	if res.StatusCode != http.StatusOK {
		return &APIError{Status: res.StatusCode, Code: decodeErrorCode(res)}
	}
	return nil
}

// Me returns the authenticated principal, going through the 401-intercepting
// Do so an expired access token is refreshed transparently.
func (c *Client) Me(ctx context.Context) (*identitydomain.Principal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base.JoinPath("/me").String(), nil)
	if err != nil {
		return nil, err
	}
	res, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer drain(res)
	if res.StatusCode != http.StatusOK {
		return nil, &APIError{Status: res.StatusCode, Code: decodeErrorCode(res)}
	}
	return decodePrincipal(res)
}

// ChangePassword replaces the caller's password.
func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	body, err := json.Marshal(map[string]string{"currentPassword": current, "newPassword": next})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.base.JoinPath("/password").String(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := c.Do(req)
	if err != nil {
		return err
	}
	defer drain(res)
	if res.StatusCode != http.StatusOK {
		return &APIError{Status: res.StatusCode, Code: decodeErrorCode(res)}
	}
	return nil
}

func decodePrincipal(res *http.Response) (*identitydomain.Principal, error) {
	var body struct {
		Principal *identitydomain.Principal `json:"principal"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, err
	}
	if body.Principal == nil {
		return nil, fmt.Errorf("client: response carried no principal")
	}
	return body.Principal, nil
}

func decodeErrorCode(res *http.Response) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return ""
	}
	return body.Error
}

func drain(res *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 4096))
	_ = res.Body.Close()
}
