//go:build integration

package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leofalp/agentflow/providers/cache"
)

// TestStore_Integration needs a reachable server in REDIS_ADDR.
func TestStore_Integration(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := Connect(ctx, Options{Addr: addr, Prefix: "agentflow-test:"})
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, cache.SetJSON(ctx, store, "fundamentals:MSFT", map[string]float64{"pe": 31.2}, time.Minute))

	value, found, err := cache.GetJSON[map[string]float64](ctx, store, "fundamentals:MSFT")
	require.NoError(t, err)
	assert.True(t, found)
	assert.InDelta(t, 31.2, value["pe"], 1e-9)

	require.NoError(t, store.Delete(ctx, "fundamentals:MSFT"))
	_, found, err = store.Get(ctx, "fundamentals:MSFT")
	require.NoError(t, err)
	assert.False(t, found)
}
