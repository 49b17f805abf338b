// Package rediskv provides a Redis-backed kv.Store.
package rediskv

import (
	"context"
	"errors"
	"fmt"

	"github.com/jrsteele09/kaizen-client/kv"
	"github.com/redis/go-redis/v9"
)

// Config describes how to reach Redis.
type Config struct {
	Addr     string
	Username string
	Password string
	DB       int
	Prefix   string
}

// Store implements kv.Store on top of Redis strings. Keys never expire; the
// session layer decides when a record is stale.
type Store struct {
	client *redis.Client
	prefix string
}

var _ kv.Store = (*Store)(nil)
var _ kv.Closer = (*Store)(nil)

// New connects to Redis and verifies the connection with PING.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("[rediskv.New] redis address required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("[rediskv.New] redis ping failed: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "kaizen:"
	}
	return &Store{client: client, prefix: prefix}, nil
}

func (s *Store) key(k string) string {
	return s.prefix + k
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%s: %w", key, kv.ErrNotFound)
		}
		return nil, err
	}
	return raw, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	return s.client.Set(ctx, s.key(key), value, 0).Err()
}

func (s *Store) Remove(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}
