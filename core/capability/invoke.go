package capability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
)

type outcome struct {
	payload Payload
	err     error
}

// Invoke runs handler under timeout and returns its normalized payload.
// Panics become execution errors. Invoke returns once the timeout expires or
// ctx is done even if the handler ignores its context; the late result of
// such a handler is discarded.
func Invoke(ctx context.Context, handler Handler, config Config, upstream []Payload, timeout time.Duration) (Payload, error) {
	if config == nil {
		config = Config{}
	}
	invokeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if recovered := recover(); recovered != nil {
				done <- outcome{err: &Error{Kind: KindExecution, Message: fmt.Sprintf("handler panicked: %v", recovered)}}
			}
		}()
		payload, err := handler.Execute(invokeCtx, config, upstream)
		done <- outcome{payload: payload, err: err}
	}()

	select {
	case finished := <-done:
		if finished.err != nil {
			if errors.Is(invokeCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
				return nil, timeoutError(timeout)
			}
			return nil, finished.err
		}
		return Normalize(finished.payload)
	case <-invokeCtx.Done():
		if ctx.Err() != nil {
			return nil, &Error{Kind: KindCanceled, Message: "execution canceled", Err: ctx.Err()}
		}
		return nil, timeoutError(timeout)
	}
}

func timeoutError(timeout time.Duration) error {
	return &Error{
		Kind:    KindTimeout,
		Message: fmt.Sprintf("exceeded the %s timeout", timeout),
		Err:     context.DeadlineExceeded,
	}
}

// Normalize round-trips the payload through JSON so that stored results are
// plain decoded JSON, independent of the handler's own types. A nil payload
// becomes an empty object.
func Normalize(payload Payload) (Payload, error) {
	if payload == nil {
		return Payload{}, nil
	}
	raw, err := sonic.ConfigStd.Marshal(payload)
	if err != nil {
		return nil, Failed(err, "payload is not JSON serializable")
	}
	normalized := Payload{}
	if err := sonic.ConfigStd.Unmarshal(raw, &normalized); err != nil {
		return nil, Failed(err, "payload is not a JSON object")
	}
	return normalized, nil
}

// Clone returns a deep copy of payload, so that a consumer can mutate nested
// maps and slices without touching the stored result.
func Clone(payload Payload) Payload {
	if payload == nil {
		return nil
	}
	return cloneValue(payload).(Payload)
}

// cloneValue copies the shapes Normalize produces. Scalars are immutable and
// returned as is.
func cloneValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		copied := make(map[string]any, len(typed))
		for key, nested := range typed {
			copied[key] = cloneValue(nested)
		}
		return copied
	case []any:
		copied := make([]any, len(typed))
		for index, nested := range typed {
			copied[index] = cloneValue(nested)
		}
		return copied
	default:
		return value
	}
}
