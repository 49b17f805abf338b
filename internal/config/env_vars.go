package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

const (
	appNameVar          = "APP_NAME"
	envVar              = "ENV"
	logLevelVar         = "LOG_LEVEL"
	mockIdentityPortVar = "MOCK_IDENTITY_PORT"
)

var (
	fileValuesLock sync.RWMutex
	fileValues     = map[string]string{}
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Kaizen")
}

func (EnvVars) GetEnv() string {
	return strings.ToUpper(GetEnv(envVar, "DEV"))
}

func (EnvVars) GetLogLevel() string {
	return GetEnv(logLevelVar, "info")
}

func (EnvVars) GetMockIdentityPort() string {
	port := GetEnv(mockIdentityPortVar, "8000")
	if port != "" && port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

// LoadDotEnv loads variables from the given .env files (default ".env") into
// the process environment. Missing files are not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("[config.LoadDotEnv] %w", err)
	}
	return nil
}

// GetEnv reads envVar from the environment, then from the loaded config file,
// and finally falls back to defaultValue.
func GetEnv(envVar, defaultValue string) string {
	if value := os.Getenv(envVar); value != "" {
		return value
	}
	fileValuesLock.RLock()
	value, ok := fileValues[envVar]
	fileValuesLock.RUnlock()
	if ok && value != "" {
		return value
	}
	return defaultValue
}

// GetEnvDuration parses values such as "60s" or "1m". Bare integers are milliseconds.
func GetEnvDuration(envVar string, defaultValue time.Duration) time.Duration {
	raw := GetEnv(envVar, "")
	if raw == "" {
		return defaultValue
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return defaultValue
	}
	return d
}

func GetEnvInt(envVar string, defaultValue int) int {
	raw := GetEnv(envVar, "")
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return v
}
