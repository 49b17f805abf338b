package config

import (
	"strings"
	"time"
)

const (
	apiBaseURLVar     = "KAIZEN_API_BASE_URL"
	tokenSkewVar      = "KAIZEN_TOKEN_SKEW"
	refreshTimeoutVar = "KAIZEN_REFRESH_TIMEOUT"
	requestTimeoutVar = "KAIZEN_REQUEST_TIMEOUT"
	jwksURLVar        = "KAIZEN_JWKS_URL"
)

type Client struct{}

var _ ClientConfig = Client{}

// GetAPIBaseURL returns the backend origin, e.g. "http://localhost:8000"
func (Client) GetAPIBaseURL() string {
	return strings.TrimRight(GetEnv(apiBaseURLVar, "http://localhost:8000"), "/")
}

func (Client) GetLoginPath() string {
	return "/api/access/token/"
}

func (Client) GetRefreshPath() string {
	return "/api/access/token/refresh/"
}

func (Client) GetLogoutPath() string {
	return "/api/access/logout/"
}

// GetTokenSkew is subtracted from the token's exp claim so the client treats
// the token as expired before the server does.
func (Client) GetTokenSkew() time.Duration {
	return GetEnvDuration(tokenSkewVar, 60*time.Second)
}

func (Client) GetRefreshTimeout() time.Duration {
	return GetEnvDuration(refreshTimeoutVar, 30*time.Second)
}

func (Client) GetRequestTimeout() time.Duration {
	return GetEnvDuration(requestTimeoutVar, 60*time.Second)
}

// GetJWKSURL enables signature verification of access tokens when set.
func (Client) GetJWKSURL() string {
	return GetEnv(jwksURLVar, "")
}
