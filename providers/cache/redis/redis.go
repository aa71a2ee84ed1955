// Package redis implements [cache.Provider] on top of go-redis, so several
// server processes can share cached fundamentals.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/leofalp/agentflow/providers/cache"
)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "agentflow:"

// Options configure the connection.
type Options struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// Store is a cache backed by a Redis server.
type Store struct {
	client goredis.UniversalClient
	prefix string
}

// Ensure Store implements cache.Provider at compile time.
var _ cache.Provider = (*Store)(nil)

// Connect opens a client and verifies it with PING.
func Connect(ctx context.Context, options Options) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     options.Addr,
		Password: options.Password,
		DB:       options.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis %s: %w", options.Addr, err)
	}
	return New(client, options.Prefix), nil
}

// New wraps an existing client. An empty prefix selects DefaultPrefix.
func New(client goredis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, prefix: prefix}
}

// Get returns the value under key. A missing key is not an error.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Set stores value with the given expiry. A non-positive ttl keeps the key
// until it is deleted.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return s.client.Set(ctx, s.prefix+key, value, ttl).Err()
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}
