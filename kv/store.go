// Package kv defines the key-value contract the session layer persists into.
//
// Values are opaque bytes; GetJSON and SetJSON cover the common case of a
// JSON document stored under a fixed key. A missing key is reported as
// ErrNotFound by Get and ignored by Remove.
package kv

import (
	"context"
	"encoding/json"
	"fmt"

	apperrors "github.com/jrsteele09/kaizen-client/internal/errors"
)

// ErrNotFound is returned by Get when the key holds no value.
var ErrNotFound = apperrors.ErrNotFound

// Store is a process-wide key-value store.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

// Closer is implemented by stores holding external resources.
type Closer interface {
	Close() error
}

// GetJSON decodes the value under key into out. It reports false with a nil
// error when the key is absent.
func GetJSON(ctx context.Context, s Store, key string, out any) (bool, error) {
	data, err := s.Get(ctx, key)
	if err != nil {
		if apperrors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("[kv.GetJSON] %s: %w", key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("[kv.GetJSON] decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("[kv.SetJSON] encode %s: %w", key, err)
	}
	if err := s.Set(ctx, key, data); err != nil {
		return fmt.Errorf("[kv.SetJSON] %s: %w", key, err)
	}
	return nil
}
