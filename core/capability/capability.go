package capability

import (
	"context"
	"errors"
	"fmt"

	"github.com/leofalp/agentflow/providers/ai"
)

// Payload is the JSON object produced by a successful handler execution.
type Payload = map[string]any

// Handler executes one node. upstream holds the payloads of the node's direct
// dependencies in edge order and is empty for source nodes.
type Handler interface {
	Execute(ctx context.Context, config Config, upstream []Payload) (Payload, error)
}

// HandlerFunc adapts an ordinary function to the Handler interface.
type HandlerFunc func(ctx context.Context, config Config, upstream []Payload) (Payload, error)

// Execute calls the underlying function.
func (handlerFunc HandlerFunc) Execute(ctx context.Context, config Config, upstream []Payload) (Payload, error) {
	return handlerFunc(ctx, config, upstream)
}

// ErrorKind classifies a handler failure as reported in run summaries.
type ErrorKind string

const (
	KindExecution     ErrorKind = "execution_error"
	KindInvalidConfig ErrorKind = "invalid_config"
	KindProvider      ErrorKind = "provider_error"
	KindTimeout       ErrorKind = "timeout"
	KindUpstream      ErrorKind = "upstream_failed"
	KindCanceled      ErrorKind = "canceled"
)

// Error is a handler failure with an explicit kind.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (capabilityError *Error) Error() string {
	if capabilityError.Err != nil && capabilityError.Message == "" {
		return capabilityError.Err.Error()
	}
	return capabilityError.Message
}

func (capabilityError *Error) Unwrap() error { return capabilityError.Err }

// InvalidConfig reports a configuration problem detected by a handler.
func InvalidConfig(format string, args ...any) error {
	return &Error{Kind: KindInvalidConfig, Message: fmt.Sprintf(format, args...)}
}

// Failed wraps err as an execution failure with a message prefix.
func Failed(err error, format string, args ...any) error {
	return &Error{Kind: KindExecution, Message: fmt.Sprintf(format, args...) + ": " + err.Error(), Err: err}
}

// KindOf returns the kind of a capability error, or KindExecution.
func KindOf(err error) ErrorKind {
	var capabilityError *Error
	if errors.As(err, &capabilityError) {
		return capabilityError.Kind
	}
	return KindExecution
}

// Classify maps a handler error to the kind reported for the node and, for
// provider failures, whether the failure was transient. A provider timeout
// reports as KindTimeout even when it arrives wrapped by the retry layer.
func Classify(err error) (kind ErrorKind, transient bool) {
	var capabilityError *Error
	if errors.As(err, &capabilityError) && capabilityError.Kind != KindProvider {
		return capabilityError.Kind, false
	}

	var providerError *ai.ProviderError
	switch {
	case errors.As(err, &providerError) && providerError.Kind == ai.ErrorTimeout:
		return KindTimeout, true
	case errors.As(err, &providerError):
		return KindProvider, ai.IsTransient(err)
	case capabilityError != nil:
		return KindProvider, false
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout, false
	case errors.Is(err, context.Canceled):
		return KindCanceled, false
	default:
		return KindExecution, false
	}
}
