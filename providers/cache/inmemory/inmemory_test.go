package inmemory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leofalp/agentflow/providers/cache"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestStore_ExpiresAfterTTL(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	store := New().WithClock(clock.Now)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "AAPL", []byte("fundamentals"), 5*time.Minute))

	value, found, err := store.Get(ctx, "AAPL")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("fundamentals"), value)

	clock.Advance(5 * time.Minute)
	_, found, err = store.Get(ctx, "AAPL")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Zero(t, store.Len())
}

func TestStore_ZeroTTLNeverExpires(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	store := New().WithClock(clock.Now)
	require.NoError(t, store.Set(context.Background(), "k", []byte("v"), 0))

	clock.Advance(24 * time.Hour)
	_, found, _ := store.Get(context.Background(), "k")
	assert.True(t, found)
}

func TestStore_ValuesAreCopied(t *testing.T) {
	store := New()
	original := []byte("abc")
	require.NoError(t, store.Set(context.Background(), "k", original, time.Minute))
	original[0] = 'x'

	value, _, _ := store.Get(context.Background(), "k")
	value[1] = 'y'

	again, _, _ := store.Get(context.Background(), "k")
	assert.Equal(t, []byte("abc"), again)
}

func TestStore_PurgeAndDelete(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	store := New().WithClock(clock.Now)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "short", []byte("1"), time.Second))
	require.NoError(t, store.Set(ctx, "long", []byte("2"), time.Hour))
	require.NoError(t, store.Set(ctx, "gone", []byte("3"), time.Hour))

	require.NoError(t, store.Delete(ctx, "gone"))
	clock.Advance(time.Minute)

	assert.Equal(t, 1, store.Purge())
	assert.Equal(t, 1, store.Len())
}

func TestRemember_LoadsOnceWithinTTL(t *testing.T) {
	store := New()
	loads := 0
	load := func(context.Context) (map[string]float64, error) {
		loads++
		return map[string]float64{"pe": 28.5}, nil
	}

	first, hit, err := cache.Remember(context.Background(), store, "fundamentals:AAPL", cache.DefaultTTL, load)
	require.NoError(t, err)
	assert.False(t, hit)

	second, hit, err := cache.Remember(context.Background(), store, "fundamentals:AAPL", cache.DefaultTTL, load)
	require.NoError(t, err)
	assert.True(t, hit)

	assert.Equal(t, 1, loads)
	assert.Equal(t, first, second)
}

func TestRemember_LoadErrorIsNotCached(t *testing.T) {
	store := New()
	_, _, err := cache.Remember(context.Background(), store, "k", time.Minute, func(context.Context) (int, error) {
		return 0, errors.New("upstream down")
	})
	require.Error(t, err)
	assert.Zero(t, store.Len())
}

func TestRemember_NilProviderAlwaysLoads(t *testing.T) {
	value, hit, err := cache.Remember(context.Background(), nil, "k", time.Minute, func(context.Context) (string, error) {
		return "fresh", nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "fresh", value)
}
