package market

import (
	"context"
	"time"

	"github.com/leofalp/agentflow/providers/cache"
)

// Cached decorates a DataSource so that fundamentals are served from a cache
// for ttl. History and news always reach the underlying source.
type Cached struct {
	DataSource
	store cache.Provider
	ttl   time.Duration
}

// NewCached wraps source. A non-positive ttl selects cache.DefaultTTL.
func NewCached(source DataSource, store cache.Provider, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	return &Cached{DataSource: source, store: store, ttl: ttl}
}

// Fundamentals returns cached metrics when fresh.
func (c *Cached) Fundamentals(ctx context.Context, symbol string) (Fundamentals, error) {
	fundamentals, _, err := cache.Remember(ctx, c.store, "fundamentals:"+symbol, c.ttl, func(ctx context.Context) (Fundamentals, error) {
		return c.DataSource.Fundamentals(ctx, symbol)
	})
	return fundamentals, err
}
