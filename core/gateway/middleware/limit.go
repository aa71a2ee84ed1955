package middleware

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/leofalp/agentflow/core/gateway"
	"github.com/leofalp/agentflow/providers/ai"
)

// Limiter bounds the number of simultaneous provider calls across every run
// in the process.
type Limiter struct {
	slots *semaphore.Weighted
	size  int64
}

// NewLimiter returns a limiter with size slots. A non-positive size means 1.
func NewLimiter(size int) *Limiter {
	if size <= 0 {
		size = 1
	}
	return &Limiter{slots: semaphore.NewWeighted(int64(size)), size: int64(size)}
}

// Size returns the number of slots.
func (limiter *Limiter) Size() int { return int(limiter.size) }

// Middleware holds a slot for the duration of each attempt. Waiting for a
// slot respects context cancellation.
func (limiter *Limiter) Middleware() gateway.Middleware {
	return func(next gateway.SendFunc) gateway.SendFunc {
		return func(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
			if err := limiter.slots.Acquire(ctx, 1); err != nil {
				return nil, err
			}
			defer limiter.slots.Release(1)

			return next(ctx, request)
		}
	}
}
