// Package boltkv provides a BBolt-backed kv.Store.
package boltkv

import (
	"context"
	"fmt"

	"github.com/jrsteele09/kaizen-client/kv"
	"go.etcd.io/bbolt"
)

// DefaultBucket holds every key when no bucket is given.
const DefaultBucket = "kaizen"

// Store implements kv.Store backed by a single bucket of a BBolt database.
type Store struct {
	db     *bbolt.DB
	bucket []byte
}

var _ kv.Store = (*Store)(nil)
var _ kv.Closer = (*Store)(nil)

// New returns a Store using the given bucket of db, creating it if needed.
func New(db *bbolt.DB, bucket string) (*Store, error) {
	if bucket == "" {
		bucket = DefaultBucket
	}
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("[boltkv.New] create bucket %s: %w", bucket, err)
	}
	return &Store{db: db, bucket: []byte(bucket)}, nil
}

// NewFromFile opens a BBolt database at path and returns a Store on DefaultBucket.
func NewFromFile(path string, options *bbolt.Options) (*Store, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("[boltkv.NewFromFile] opening bbolt db: %w", err)
	}
	s, err := New(db, DefaultBucket)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying BBolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(s.bucket).Get([]byte(key))
		if data == nil {
			return fmt.Errorf("%s: %w", key, kv.ErrNotFound)
		}
		// bbolt memory is only valid inside the transaction
		value = append([]byte(nil), data...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(key), value)
	})
}

func (s *Store) Remove(_ context.Context, key string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(s.bucket).Delete([]byte(key))
	})
}
