package kv

import (
	"context"
	"fmt"
	"sync"
)

// InMemoryStore is a thread-safe in-memory implementation of Store. It is the
// fallback when no persistent driver is configured.
type InMemoryStore struct {
	mu     sync.RWMutex
	values map[string][]byte
}

var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore creates an empty in-memory store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		values: make(map[string][]byte),
	}
}

func (s *InMemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, fmt.Errorf("key is required")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	// Return a copy to prevent external modifications
	return append([]byte(nil), value...), nil
}

func (s *InMemoryStore) Set(_ context.Context, key string, value []byte) error {
	if key == "" {
		return fmt.Errorf("key is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = append([]byte(nil), value...)
	return nil
}

func (s *InMemoryStore) Remove(_ context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("key is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, key) // Already doesn't exist, no error
	return nil
}
