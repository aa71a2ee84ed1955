// Package inmemory provides a concurrency-safe, map-backed implementation of
// [cache.Provider] for single-process deployments. Expired entries are
// dropped lazily on read and by [Store.Purge].
package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/leofalp/agentflow/providers/cache"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Store is an in-process TTL cache.
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

// Ensure Store implements cache.Provider at compile time.
var _ cache.Provider = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{entries: make(map[string]entry), now: time.Now}
}

// WithClock replaces the time source. Intended for tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Get returns a copy of the value under key when it has not expired.
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	stored, found := s.entries[key]
	s.mu.RUnlock()

	if !found {
		return nil, false, nil
	}
	if s.expired(stored) {
		s.mu.Lock()
		if current, still := s.entries[key]; still && s.expired(current) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, false, nil
	}

	out := make([]byte, len(stored.value))
	copy(out, stored.value)
	return out, true, nil
}

// Set stores a copy of value under key.
func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	stored := entry{value: make([]byte, len(value))}
	copy(stored.value, value)
	if ttl > 0 {
		stored.expiresAt = s.now().Add(ttl)
	}

	s.mu.Lock()
	s.entries[key] = stored
	s.mu.Unlock()
	return nil
}

// Delete removes key.
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// Purge removes every expired entry and returns how many were dropped.
func (s *Store) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0
	for key, stored := range s.entries {
		if s.expired(stored) {
			delete(s.entries, key)
			dropped++
		}
	}
	return dropped
}

// Len returns the number of stored entries, including expired ones not yet purged.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) expired(stored entry) bool {
	return !stored.expiresAt.IsZero() && !s.now().Before(stored.expiresAt)
}
