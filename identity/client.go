// Package identity performs the network calls against the identity endpoints:
// login, token refresh and server-side logout. It holds no session state; the
// refresh credential lives in the HTTP cookie jar of the underlying client.
package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/jrsteele09/kaizen-client/httpclient"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultLoginPath   = "/api/access/token/"
	DefaultRefreshPath = "/api/access/token/refresh/"
	DefaultLogoutPath  = "/api/access/logout/"
)

// Client talks to the identity endpoints. It must be built on an
// httpclient.Client without the auth interceptor, otherwise a 401 from the
// refresh endpoint would recurse into another refresh.
type Client struct {
	http        *httpclient.Client
	jar         *Jar
	loginPath   string
	refreshPath string
	logoutPath  string
	logger      zerolog.Logger
}

// ClientOption defines a function type to modify the Client instance.
type ClientOption func(*Client)

// WithPaths overrides the endpoint paths. Empty values keep the defaults.
func WithPaths(login, refresh, logout string) ClientOption {
	return func(c *Client) {
		if login != "" {
			c.loginPath = httpclient.EnsureTrailingSlash(login)
		}
		if refresh != "" {
			c.refreshPath = httpclient.EnsureTrailingSlash(refresh)
		}
		if logout != "" {
			c.logoutPath = httpclient.EnsureTrailingSlash(logout)
		}
	}
}

// WithJar persists the refresh cookie after every identity call.
func WithJar(jar *Jar) ClientOption {
	return func(c *Client) {
		c.jar = jar
	}
}

// WithLogger sets the logger used for identity diagnostics.
func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a Client on top of an un-intercepted http client.
func New(http *httpclient.Client, options ...ClientOption) (*Client, error) {
	if http == nil {
		return nil, errors.New("[identity.New] http client is required")
	}
	c := &Client{
		http:        http,
		loginPath:   DefaultLoginPath,
		refreshPath: DefaultRefreshPath,
		logoutPath:  DefaultLogoutPath,
		logger:      log.Logger,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// RefreshPath is the path the interceptor must never retry.
func (c *Client) RefreshPath() string {
	return c.refreshPath
}

// Login exchanges a username and password for an access token. The server
// sets the refresh cookie on the same response.
func (c *Client) Login(ctx context.Context, username, password string) (*TokenResponse, error) {
	data, err := c.http.Post(ctx, c.loginPath, LoginRequest{Username: username, Password: password})
	if err != nil {
		return nil, err
	}
	c.saveJar(ctx)
	return parseTokenResponse(data), nil
}

// Refresh mints a new access token from the refresh cookie. The request has
// no body.
func (c *Client) Refresh(ctx context.Context) (*TokenResponse, error) {
	data, err := c.http.Post(ctx, c.refreshPath, nil)
	if err != nil {
		return nil, err
	}
	c.saveJar(ctx)
	return parseTokenResponse(data), nil
}

// Logout asks the server to revoke the refresh credential and forgets the
// local copy of it. The local copy is dropped even when the call fails.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.http.Post(ctx, c.logoutPath, nil)
	if c.jar != nil {
		if clearErr := c.jar.Clear(ctx); clearErr != nil {
			c.logger.Warn().Err(clearErr).Msg("failed to clear cookie jar")
		}
	}
	if err != nil {
		return fmt.Errorf("[identity.Logout] %w", err)
	}
	return nil
}

func (c *Client) saveJar(ctx context.Context) {
	if c.jar == nil {
		return
	}
	if err := c.jar.Save(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("failed to persist cookie jar")
	}
}
