package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/leofalp/agentflow/core/gateway"
	"github.com/leofalp/agentflow/providers/ai"
)

// NewTimeout bounds each attempt with its own deadline. An attempt that runs
// out of time fails with a transient ErrorTimeout so the retry middleware can
// try again. A shorter deadline already on the caller's context still wins,
// and is reported the same way. A non-positive timeout disables the
// middleware.
func NewTimeout(timeout time.Duration) gateway.Middleware {
	return func(next gateway.SendFunc) gateway.SendFunc {
		if timeout <= 0 {
			return next
		}
		return func(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
			attemptCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			response, err := next(attemptCtx, request)
			if err != nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
				return nil, &ai.ProviderError{Kind: ai.ErrorTimeout, Message: "attempt timed out after " + timeout.String(), Err: err}
			}
			return response, err
		}
	}
}
