package streamsdk

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// Auth endpoint paths.
const (
	PathExchangeToken = "/auth/exchange-token"
	PathRefresh       = "/auth/refresh"
	PathLogout        = "/auth/logout"
)

// LoginURL is where a user starts the provider login. The provider sends
// the browser back to the frontend callback with ?code=.
func (c *Client) LoginURL() string {
	provider := c.LoginProvider
	if provider == "" {
		provider = DefaultLoginProvider
	}
	return c.BaseURL + "/oauth2/authorization/" + url.PathEscape(provider)
}

// ParseAuthCallback extracts the authorization code from the URL the
// provider redirected to. A bare code is accepted as is.
func ParseAuthCallback(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("failed to parse callback url: %w", err)
	}

	q := u.Query()
	if e := q.Get("error"); e != "" {
		return "", fmt.Errorf("login failed: %s", e)
	}
	if code := q.Get("code"); code != "" {
		return code, nil
	}
	if u.Scheme == "" && u.RawQuery == "" && u.Path == raw && raw != "" {
		return raw, nil
	}
	return "", ErrMissingCode
}

// ExchangeToken trades an authorization code for a bearer token. The
// response also sets the session cookie used by Refresh.
func (c *Client) ExchangeToken(ctx context.Context, code string) (string, error) {
	if code == "" {
		return "", ErrMissingCode
	}
	return c.requestToken(ctx, PathExchangeToken, exchangeRequest{Code: code})
}

// Refresh obtains a new bearer token using the session cookie.
func (c *Client) Refresh(ctx context.Context) (string, error) {
	return c.requestToken(ctx, PathRefresh, nil)
}

// Logout ends the server-side session.
func (c *Client) Logout(ctx context.Context) error {
	return c.call(ctx, http.MethodPost, PathLogout, nil, nil, nil)
}

func (c *Client) requestToken(ctx context.Context, path string, body any) (string, error) {
	var tokenResp TokenResponse
	if err := c.call(ctx, http.MethodPost, path, nil, body, &tokenResp); err != nil {
		return "", err
	}
	if tokenResp.Token == "" {
		return "", ErrMissingToken
	}
	return tokenResp.Token, nil
}
