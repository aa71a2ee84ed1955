package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/tidwall/gjson"

	"github.com/leofalp/agentflow/internal/utils"
	"github.com/leofalp/agentflow/providers/ai"
	"github.com/leofalp/agentflow/providers/observability"
)

const (
	providerName            = "openai"
	defaultBaseURL          = "https://api.openai.com/v1"
	defaultModel            = "gpt-3.5-turbo"
	chatCompletionsEndpoint = "/chat/completions"
)

// OpenAIProvider implements ai.Provider for the chat completions API.
type OpenAIProvider struct {
	apiKey       string
	baseURL      string
	defaultModel string
	client       *http.Client
}

var _ ai.Provider = (*OpenAIProvider)(nil)

// New creates a provider from OPENAI_API_KEY and OPENAI_API_BASE_URL.
func New() *OpenAIProvider {
	baseURL := os.Getenv("OPENAI_API_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &OpenAIProvider{
		apiKey:       os.Getenv("OPENAI_API_KEY"),
		baseURL:      baseURL,
		defaultModel: defaultModel,
		client:       &http.Client{},
	}
}

// WithAPIKey sets the API key for the provider
func (p *OpenAIProvider) WithAPIKey(apiKey string) *OpenAIProvider {
	p.apiKey = apiKey
	return p
}

// WithBaseURL sets the base URL for the API
func (p *OpenAIProvider) WithBaseURL(baseURL string) *OpenAIProvider {
	if baseURL != "" {
		p.baseURL = baseURL
	}
	return p
}

// WithDefaultModel sets the model used when a request names none.
func (p *OpenAIProvider) WithDefaultModel(model string) *OpenAIProvider {
	if model != "" {
		p.defaultModel = model
	}
	return p
}

// WithHttpClient sets a custom HTTP client
func (p *OpenAIProvider) WithHttpClient(httpClient *http.Client) *OpenAIProvider {
	p.client = httpClient
	return p
}

func (p *OpenAIProvider) Name() string { return providerName }

// SendMessage implements ai.Provider. Failures are returned as
// *ai.ProviderError so the gateway can decide whether to retry.
func (p *OpenAIProvider) SendMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
	body := requestFromGeneric(request, p.defaultModel)

	if span := observability.SpanFromContext(ctx); span != nil {
		span.SetAttributes(
			observability.String(observability.AttrLLMProvider, providerName),
			observability.String(observability.AttrLLMEndpoint, p.baseURL),
			observability.String(observability.AttrLLMModel, body.Model),
		)
	}

	if p.apiKey == "" {
		return nil, &ai.ProviderError{Provider: providerName, Kind: ai.ErrorAuthentication, Message: "OPENAI_API_KEY is not set"}
	}

	httpResponse, resp, err := utils.DoPostSync[chatCompletionResponse](ctx, p.client, p.baseURL+chatCompletionsEndpoint, p.apiKey, body)
	if err != nil {
		return nil, classify(err)
	}
	if resp == nil {
		return nil, &ai.ProviderError{Provider: providerName, Kind: ai.ErrorUnknown, Message: fmt.Sprintf("empty response: %s", httpResponse.Status)}
	}
	if len(resp.Choices) == 0 {
		return nil, &ai.ProviderError{Provider: providerName, Kind: ai.ErrorServer, Message: "response has no choices"}
	}
	if resp.Choices[0].FinishReason == "content_filter" {
		return nil, &ai.ProviderError{Provider: providerName, Kind: ai.ErrorContentFilter, Message: "response blocked by content filter"}
	}

	return responseToGeneric(*resp), nil
}

// classify maps transport and status failures onto the provider taxonomy,
// preferring the message from OpenAI's error envelope when one is present.
func classify(err error) error {
	var statusError *utils.StatusError
	if errors.As(err, &statusError) {
		message := gjson.Get(statusError.Body, "error.message").String()
		if message == "" {
			message = utils.TruncateString(statusError.Body, 200)
		}
		providerError := ai.NewStatusError(providerName, statusError.StatusCode, message, err)
		if gjson.Get(statusError.Body, "error.code").String() == "content_filter" {
			providerError.Kind = ai.ErrorContentFilter
		}
		return providerError
	}
	return ai.Classify(providerName, err)
}
