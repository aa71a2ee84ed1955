// Package eino adapts any eino ChatModel to ai.Provider. New builds one on the
// eino-ext OpenAI component, which also speaks to DeepSeek and other OpenAI
// compatible endpoints.
package eino

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	einoopenai "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/leofalp/agentflow/providers/ai"
	"github.com/leofalp/agentflow/providers/observability"
)

const providerName = "eino"

// Config configures the OpenAI compatible eino chat model.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Provider wraps an eino model.BaseChatModel.
type Provider struct {
	chatModel model.BaseChatModel
	model     string
}

var _ ai.Provider = (*Provider)(nil)

// New builds the eino-ext OpenAI chat model.
func New(ctx context.Context, config Config) (*Provider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("eino provider: api key is required")
	}
	chatConfig := &einoopenai.ChatModelConfig{
		Model:  config.Model,
		APIKey: config.APIKey,
	}
	if config.BaseURL != "" {
		chatConfig.BaseURL = config.BaseURL
	}

	chatModel, err := einoopenai.NewChatModel(ctx, chatConfig)
	if err != nil {
		return nil, fmt.Errorf("eino provider: create chat model: %w", err)
	}
	return &Provider{chatModel: chatModel, model: config.Model}, nil
}

// Wrap adapts an existing chat model.
func Wrap(chatModel model.BaseChatModel, defaultModel string) *Provider {
	return &Provider{chatModel: chatModel, model: defaultModel}
}

func (p *Provider) Name() string { return providerName }

// SendMessage implements ai.Provider.
func (p *Provider) SendMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
	modelName := request.Model
	if modelName == "" {
		modelName = p.model
	}

	if span := observability.SpanFromContext(ctx); span != nil {
		span.SetAttributes(
			observability.String(observability.AttrLLMProvider, providerName),
			observability.String(observability.AttrLLMModel, modelName),
		)
	}

	resp, err := p.chatModel.Generate(ctx, buildMessages(request), buildOptions(request, modelName)...)
	if err != nil {
		return nil, classify(err)
	}
	if resp == nil {
		return nil, &ai.ProviderError{Provider: providerName, Kind: ai.ErrorServer, Message: "empty response"}
	}

	result := &ai.ChatResponse{Model: modelName, Content: resp.Content}
	if resp.ResponseMeta != nil {
		result.FinishReason = resp.ResponseMeta.FinishReason
		if usage := resp.ResponseMeta.Usage; usage != nil {
			result.Usage = &ai.Usage{
				PromptTokens:     usage.PromptTokens,
				CompletionTokens: usage.CompletionTokens,
				TotalTokens:      usage.TotalTokens,
			}
		}
	}
	if result.FinishReason == "content_filter" {
		return nil, &ai.ProviderError{Provider: providerName, Kind: ai.ErrorContentFilter, Message: "response blocked by content filter"}
	}
	return result, nil
}

func buildMessages(request ai.ChatRequest) []*schema.Message {
	messages := make([]*schema.Message, 0, len(request.Messages)+1)
	if request.SystemPrompt != "" {
		messages = append(messages, schema.SystemMessage(request.SystemPrompt))
	}
	for _, message := range request.Messages {
		switch message.Role {
		case ai.RoleSystem:
			messages = append(messages, schema.SystemMessage(message.Content))
		case ai.RoleAssistant:
			messages = append(messages, schema.AssistantMessage(message.Content, nil))
		default:
			messages = append(messages, schema.UserMessage(message.Content))
		}
	}
	return messages
}

func buildOptions(request ai.ChatRequest, modelName string) []model.Option {
	var options []model.Option
	if modelName != "" {
		options = append(options, model.WithModel(modelName))
	}
	if generation := request.GenerationConfig; generation != nil {
		if generation.Temperature != nil {
			options = append(options, model.WithTemperature(*generation.Temperature))
		}
		if generation.TopP != nil {
			options = append(options, model.WithTopP(*generation.TopP))
		}
		if generation.MaxTokens > 0 {
			options = append(options, model.WithMaxTokens(generation.MaxTokens))
		}
	}
	return options
}

var statusPattern = regexp.MustCompile(`status code: (\d{3})`)

// classify recovers the HTTP status from the OpenAI client error text, since
// the eino component does not expose a typed error.
func classify(err error) error {
	if match := statusPattern.FindStringSubmatch(err.Error()); match != nil {
		statusCode, _ := strconv.Atoi(match[1])
		return ai.NewStatusError(providerName, statusCode, err.Error(), err)
	}
	return ai.Classify(providerName, err)
}
