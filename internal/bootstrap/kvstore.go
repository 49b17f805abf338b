package bootstrap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	apperrors "github.com/jrsteele09/kaizen-client/internal/errors"
	"github.com/jrsteele09/kaizen-client/internal/config"
	"github.com/jrsteele09/kaizen-client/kv"
	"github.com/jrsteele09/kaizen-client/kv/boltkv"
	"github.com/jrsteele09/kaizen-client/kv/rediskv"
	"go.etcd.io/bbolt"
)

// KV driver identifiers.
const (
	DriverMemory = "memory"
	DriverBolt   = "bolt"
	DriverRedis  = "redis"
)

// NewKVStore creates the session KV store selected by cfg.
func NewKVStore(ctx context.Context, cfg config.StorageConfig) (kv.Store, error) {
	driver := cfg.GetStorageDriver()
	if driver == "" {
		driver = DriverMemory
	}

	switch driver {
	case DriverMemory:
		return kv.NewInMemoryStore(), nil
	case DriverBolt:
		path := cfg.GetStoragePath()
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, fmt.Errorf("[bootstrap.NewKVStore] %w", err)
			}
		}
		store, err := boltkv.NewFromFile(path, &bbolt.Options{Timeout: time.Second})
		if err != nil {
			return nil, err
		}
		return store, nil
	case DriverRedis:
		store, err := rediskv.New(ctx, rediskv.Config{
			Addr:     cfg.GetRedisAddr(),
			Password: cfg.GetRedisPassword(),
			DB:       cfg.GetRedisDB(),
			Prefix:   cfg.GetRedisPrefix(),
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, apperrors.Wrapf(apperrors.ErrUnsupported, "[bootstrap.NewKVStore] storage driver %q", driver)
	}
}
