package middleware

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/leofalp/agentflow/core/gateway"
	"github.com/leofalp/agentflow/providers/ai"
	"github.com/leofalp/agentflow/providers/observability"
)

// RetryConfig holds the tuning parameters for the retry middleware. Zero
// values are replaced with defaults by NewRetry.
type RetryConfig struct {
	// MaxAttempts bounds the total number of calls, first attempt included.
	// Default: 3.
	MaxAttempts int

	// InitialBackoff is the wait before the second attempt. Default: 1s.
	InitialBackoff time.Duration

	// MaxBackoff caps the computed backoff. Default: 30s.
	MaxBackoff time.Duration

	// JitterFraction adds up to JitterFraction*backoff of random delay.
	// Default: 0.1.
	JitterFraction float64

	// RetryableFunc decides whether an error is worth another attempt.
	// Default: ai.IsTransient.
	RetryableFunc func(error) bool
}

func applyRetryDefaults(config *RetryConfig) {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = time.Second
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = 30 * time.Second
	}
	if config.JitterFraction <= 0 {
		config.JitterFraction = 0.1
	}
	if config.RetryableFunc == nil {
		config.RetryableFunc = ai.IsTransient
	}
}

// computeBackoff returns the wait before retry n (n >= 1):
// min(InitialBackoff * 2^(n-1), MaxBackoff) plus jitter.
func computeBackoff(config RetryConfig, retry int) time.Duration {
	base := float64(config.InitialBackoff) * math.Pow(2, float64(retry-1))
	if base > float64(config.MaxBackoff) {
		base = float64(config.MaxBackoff)
	}

	jitter := base * config.JitterFraction * rand.Float64() //nolint:gosec // non-cryptographic jitter
	return time.Duration(base + jitter)
}

// NewRetry retries transient failures up to MaxAttempts. Permanent failures
// and context cancellation return immediately. On exhaustion the error wraps
// both ErrRetryExhausted and the last provider error.
func NewRetry(config RetryConfig) gateway.Middleware {
	applyRetryDefaults(&config)

	return func(next gateway.SendFunc) gateway.SendFunc {
		return func(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
			var lastErr error

			for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
				if attempt > 1 {
					backoff := computeBackoff(config, attempt-1)
					if span := observability.SpanFromContext(ctx); span != nil {
						span.AddEvent(observability.EventLLMRetry,
							observability.Int(observability.AttrLLMAttempt, attempt),
							observability.Duration("backoff", backoff),
							observability.Error(lastErr),
						)
					}
					if observer := observability.ObserverFromContext(ctx); observer != nil {
						observer.Counter(observability.MetricLLMRetries).Add(ctx, 1)
					}

					timer := time.NewTimer(backoff)
					select {
					case <-ctx.Done():
						timer.Stop()
						return nil, fmt.Errorf("retry aborted after %d attempts: %w: %w", attempt-1, ctx.Err(), lastErr)
					case <-timer.C:
					}
				}

				response, err := next(ctx, request)
				if err == nil {
					return response, nil
				}
				lastErr = err

				if ctx.Err() != nil || !config.RetryableFunc(err) {
					return nil, err
				}
			}

			return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, config.MaxAttempts, lastErr)
		}
	}
}
