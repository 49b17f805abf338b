package config

import "time"

type Config interface {
	EnvConfig
	ClientConfig
	StorageConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetMockIdentityPort() string
}

type ClientConfig interface {
	GetAPIBaseURL() string
	GetLoginPath() string
	GetRefreshPath() string
	GetLogoutPath() string
	GetTokenSkew() time.Duration
	GetRefreshTimeout() time.Duration
	GetRequestTimeout() time.Duration
	GetJWKSURL() string
}

type StorageConfig interface {
	GetStorageDriver() string
	GetStoragePath() string
	GetStorageKey() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetRedisPrefix() string
}

type mainConfig struct {
	EnvVars
	Client
	Storage
}

// New returns a Config backed by environment variables only.
func New() Config {
	return mainConfig{}
}

// Load returns a Config backed by environment variables, falling back to the
// values in the YAML file at path. An empty path behaves like New.
func Load(path string) (Config, error) {
	if path == "" {
		return New(), nil
	}
	values, err := readFileValues(path)
	if err != nil {
		return nil, err
	}
	setFileValues(values)
	return mainConfig{}, nil
}
