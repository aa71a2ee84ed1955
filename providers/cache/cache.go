// Package cache defines the key/value store used to memoize slow data-source
// lookups such as company fundamentals. Values are opaque bytes with a TTL;
// [GetJSON], [SetJSON] and [Remember] add JSON encoding on top.
package cache

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
)

// DefaultTTL is the lifetime of cached fundamentals.
const DefaultTTL = 5 * time.Minute

// Provider stores values with an expiry. Implementations must be safe for
// concurrent use.
type Provider interface {
	// Get returns the value under key and whether it was present and fresh.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key. A non-positive ttl stores it without expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// GetJSON decodes the value under key into T.
func GetJSON[T any](ctx context.Context, provider Provider, key string) (T, bool, error) {
	var value T
	raw, found, err := provider.Get(ctx, key)
	if err != nil || !found {
		return value, false, err
	}
	if err := sonic.ConfigStd.Unmarshal(raw, &value); err != nil {
		return value, false, err
	}
	return value, true, nil
}

// SetJSON encodes value and stores it under key.
func SetJSON[T any](ctx context.Context, provider Provider, key string, value T, ttl time.Duration) error {
	raw, err := sonic.ConfigStd.Marshal(value)
	if err != nil {
		return err
	}
	return provider.Set(ctx, key, raw, ttl)
}

// Remember returns the cached value under key, or calls load and caches its
// result. The boolean reports a cache hit. Cache read and write failures fall
// back to load; only load errors are returned.
func Remember[T any](ctx context.Context, provider Provider, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, bool, error) {
	if provider != nil {
		if value, found, err := GetJSON[T](ctx, provider, key); err == nil && found {
			return value, true, nil
		}
	}

	value, err := load(ctx)
	if err != nil {
		return value, false, err
	}
	if provider != nil {
		_ = SetJSON(ctx, provider, key, value, ttl)
	}
	return value, false, nil
}
