package eino

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leofalp/agentflow/internal/utils"
	"github.com/leofalp/agentflow/providers/ai"
)

type fakeChatModel struct {
	received []*schema.Message
	options  *model.Options
	reply    *schema.Message
	err      error
}

func (fake *fakeChatModel) Generate(_ context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	fake.received = input
	fake.options = model.GetCommonOptions(&model.Options{}, opts...)
	return fake.reply, fake.err
}

func (fake *fakeChatModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not supported")
}

func TestSendMessage_MapsRequestAndUsage(t *testing.T) {
	fake := &fakeChatModel{reply: &schema.Message{
		Role:    schema.Assistant,
		Content: "done",
		ResponseMeta: &schema.ResponseMeta{
			FinishReason: "stop",
			Usage:        &schema.TokenUsage{PromptTokens: 4, CompletionTokens: 6, TotalTokens: 10},
		},
	}}
	provider := Wrap(fake, "deepseek-chat")

	response, err := provider.SendMessage(context.Background(),
		ai.UserPrompt("", "system rules", "question", &ai.GenerationConfig{MaxTokens: 200, Temperature: utils.Ptr(float32(0.2))}))
	require.NoError(t, err)

	assert.Equal(t, "done", response.Content)
	assert.Equal(t, 10, response.Usage.TotalTokens)

	require.Len(t, fake.received, 2)
	assert.Equal(t, schema.System, fake.received[0].Role)
	assert.Equal(t, "question", fake.received[1].Content)
	require.NotNil(t, fake.options.Model)
	assert.Equal(t, "deepseek-chat", *fake.options.Model)
	require.NotNil(t, fake.options.MaxTokens)
	assert.Equal(t, 200, *fake.options.MaxTokens)
}

func TestSendMessage_ClassifiesStatusFromError(t *testing.T) {
	fake := &fakeChatModel{err: fmt.Errorf("error, status code: 503, status: 503 Service Unavailable, message: overloaded")}

	_, err := Wrap(fake, "m").SendMessage(context.Background(), ai.UserPrompt("", "", "q", nil))

	var providerError *ai.ProviderError
	require.ErrorAs(t, err, &providerError)
	assert.Equal(t, ai.ErrorUnavailable, providerError.Kind)
	assert.True(t, ai.IsTransient(err))
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(context.Background(), Config{Model: "gpt-4o-mini"})
	assert.Error(t, err)
}
