package gateway

import (
	"context"
	"errors"
	"strings"

	"github.com/leofalp/agentflow/core/overview"
	"github.com/leofalp/agentflow/providers/ai"
	"github.com/leofalp/agentflow/providers/observability"
)

// ErrEmptyPrompt is returned when Complete is called without a prompt.
var ErrEmptyPrompt = errors.New("prompt must not be empty")

// Defaults are the generation settings used when a call leaves them unset.
type Defaults struct {
	Model       string
	Temperature float32
	MaxTokens   int
}

// DefaultSettings returns gpt-3.5-turbo, temperature 0.7, 1000 tokens.
func DefaultSettings() Defaults {
	return Defaults{Model: "gpt-3.5-turbo", Temperature: 0.7, MaxTokens: 1000}
}

// Options override Defaults for a single call.
type Options struct {
	Model        string
	SystemPrompt string
	MaxTokens    int
	Temperature  *float32
}

// Gateway sends prompts through the configured middleware chain.
type Gateway struct {
	providerName string
	defaults     Defaults
	send         SendFunc
}

// New builds a Gateway. Middlewares run outermost first.
func New(provider ai.Provider, defaults Defaults, middlewares ...Middleware) *Gateway {
	return &Gateway{
		providerName: provider.Name(),
		defaults:     defaults,
		send:         buildSendChain(provider, middlewares),
	}
}

// Provider returns the name of the wrapped provider.
func (gateway *Gateway) Provider() string { return gateway.providerName }

// Complete sends a single user prompt and returns the reply text.
func (gateway *Gateway) Complete(ctx context.Context, prompt string, options Options) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", &ai.ProviderError{Provider: gateway.providerName, Kind: ai.ErrorInvalidRequest, Message: ErrEmptyPrompt.Error(), Err: ErrEmptyPrompt}
	}

	response, err := gateway.Send(ctx, ai.UserPrompt(options.Model, options.SystemPrompt, prompt, &ai.GenerationConfig{
		MaxTokens:   options.MaxTokens,
		Temperature: options.Temperature,
	}))
	if err != nil {
		return "", err
	}
	return response.Content, nil
}

// Send applies defaults, runs the chain and records usage. Errors are always
// returned as (or wrapping) *ai.ProviderError.
func (gateway *Gateway) Send(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
	request = gateway.withDefaults(request)

	observer := observability.ObserverFromContext(ctx)
	if observer == nil {
		observer = observability.Nop{}
	}
	ctx, span := observer.StartSpan(ctx, observability.SpanLLMRequest,
		observability.String(observability.AttrLLMProvider, gateway.providerName),
		observability.String(observability.AttrLLMModel, request.Model),
	)
	defer span.End()

	usage := overview.FromContext(ctx)

	response, err := gateway.send(ctx, request)
	if err != nil {
		var providerError *ai.ProviderError
		if !errors.As(err, &providerError) {
			err = ai.Classify(gateway.providerName, err)
		}
		span.RecordError(err)
		span.SetStatus(observability.StatusError, err.Error())
		if usage != nil {
			usage.IncludeFailure()
		}
		return nil, err
	}

	if response.Usage != nil {
		span.SetAttributes(observability.Int(observability.AttrLLMTokensTotal, response.Usage.TotalTokens))
		observer.Counter(observability.MetricLLMTokensTotal).Add(ctx, int64(response.Usage.TotalTokens))
	}
	span.SetStatus(observability.StatusOK, "")
	if usage != nil {
		usage.IncludeUsage(request.Model, response.Usage)
	}
	return response, nil
}

func (gateway *Gateway) withDefaults(request ai.ChatRequest) ai.ChatRequest {
	if request.Model == "" {
		request.Model = gateway.defaults.Model
	}

	generation := ai.GenerationConfig{}
	if request.GenerationConfig != nil {
		generation = *request.GenerationConfig
	}
	if generation.MaxTokens <= 0 {
		generation.MaxTokens = gateway.defaults.MaxTokens
	}
	if generation.Temperature == nil {
		temperature := gateway.defaults.Temperature
		generation.Temperature = &temperature
	}
	request.GenerationConfig = &generation
	return request
}
