package anthropic

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/leofalp/agentflow/internal/utils"
	"github.com/leofalp/agentflow/providers/ai"
	"github.com/leofalp/agentflow/providers/observability"
)

const (
	providerName     = "anthropic"
	defaultModel     = "claude-3-5-haiku-latest"
	defaultMaxTokens = 1000
)

// AnthropicProvider implements ai.Provider for the Messages API.
type AnthropicProvider struct {
	apiKey       string
	baseURL      string
	defaultModel string
	httpClient   *http.Client
}

var _ ai.Provider = (*AnthropicProvider)(nil)

// New returns a provider configured from ANTHROPIC_API_KEY and
// ANTHROPIC_API_BASE_URL.
func New() *AnthropicProvider {
	return &AnthropicProvider{
		apiKey:       os.Getenv("ANTHROPIC_API_KEY"),
		baseURL:      os.Getenv("ANTHROPIC_API_BASE_URL"),
		defaultModel: defaultModel,
	}
}

func (p *AnthropicProvider) WithAPIKey(apiKey string) *AnthropicProvider {
	p.apiKey = apiKey
	return p
}

func (p *AnthropicProvider) WithBaseURL(baseURL string) *AnthropicProvider {
	p.baseURL = baseURL
	return p
}

func (p *AnthropicProvider) WithDefaultModel(model string) *AnthropicProvider {
	if model != "" {
		p.defaultModel = model
	}
	return p
}

func (p *AnthropicProvider) WithHttpClient(httpClient *http.Client) *AnthropicProvider {
	p.httpClient = httpClient
	return p
}

func (p *AnthropicProvider) Name() string { return providerName }

func (p *AnthropicProvider) client() sdk.Client {
	options := []option.RequestOption{
		option.WithAPIKey(p.apiKey),
		option.WithMaxRetries(0),
	}
	if p.baseURL != "" {
		options = append(options, option.WithBaseURL(p.baseURL))
	}
	if p.httpClient != nil {
		options = append(options, option.WithHTTPClient(p.httpClient))
	}
	return sdk.NewClient(options...)
}

// SendMessage implements ai.Provider.
func (p *AnthropicProvider) SendMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
	model := request.Model
	if model == "" || strings.HasPrefix(model, "gpt-") {
		model = p.defaultModel
	}

	if span := observability.SpanFromContext(ctx); span != nil {
		span.SetAttributes(
			observability.String(observability.AttrLLMProvider, providerName),
			observability.String(observability.AttrLLMModel, model),
		)
	}

	if p.apiKey == "" {
		return nil, &ai.ProviderError{Provider: providerName, Kind: ai.ErrorAuthentication, Message: "ANTHROPIC_API_KEY is not set"}
	}

	resp, err := p.client().Messages.New(ctx, buildParams(request, model))
	if err != nil {
		return nil, classify(err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	if resp.StopReason == "refusal" {
		return nil, &ai.ProviderError{Provider: providerName, Kind: ai.ErrorContentFilter, Message: "model refused the request"}
	}

	return &ai.ChatResponse{
		Id:           resp.ID,
		Model:        string(resp.Model),
		Content:      text.String(),
		FinishReason: string(resp.StopReason),
		Usage: &ai.Usage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	}, nil
}

func buildParams(request ai.ChatRequest, model string) sdk.MessageNewParams {
	maxTokens := defaultMaxTokens
	if request.GenerationConfig != nil && request.GenerationConfig.MaxTokens > 0 {
		maxTokens = request.GenerationConfig.MaxTokens
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(model),
		MaxTokens: int64(maxTokens),
	}
	if request.SystemPrompt != "" {
		params.System = []sdk.TextBlockParam{{Text: request.SystemPrompt}}
	}
	if generation := request.GenerationConfig; generation != nil {
		if generation.Temperature != nil {
			// Anthropic accepts [0, 1]
			params.Temperature = sdk.Float(min(float64(*generation.Temperature), 1))
		}
		if generation.TopP != nil {
			params.TopP = sdk.Float(float64(*generation.TopP))
		}
	}

	for _, message := range request.Messages {
		switch message.Role {
		case ai.RoleAssistant:
			params.Messages = append(params.Messages, sdk.NewAssistantMessage(sdk.NewTextBlock(message.Content)))
		case ai.RoleSystem:
			params.System = append(params.System, sdk.TextBlockParam{Text: message.Content})
		default:
			params.Messages = append(params.Messages, sdk.NewUserMessage(sdk.NewTextBlock(message.Content)))
		}
	}
	return params
}

func classify(err error) error {
	var apiError *sdk.Error
	if errors.As(err, &apiError) {
		return ai.NewStatusError(providerName, apiError.StatusCode, utils.TruncateString(apiError.Error(), 300), err)
	}
	return ai.Classify(providerName, err)
}
