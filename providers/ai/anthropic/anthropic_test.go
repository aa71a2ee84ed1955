package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leofalp/agentflow/internal/utils"
	"github.com/leofalp/agentflow/providers/ai"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *AnthropicProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New().WithAPIKey("test-key").WithBaseURL(server.URL).WithHttpClient(server.Client())
}

func TestSendMessage_Success(t *testing.T) {
	var capturedBody map[string]any
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&capturedBody))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-5-haiku-latest",
			"content":[{"type":"text","text":"hello "},{"type":"text","text":"there"}],
			"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":2}}`)
	})

	request := ai.UserPrompt("gpt-3.5-turbo", "be brief", "hi", &ai.GenerationConfig{MaxTokens: 50, Temperature: utils.Ptr(float32(1.5))})
	response, err := provider.SendMessage(context.Background(), request)
	require.NoError(t, err)

	assert.Equal(t, "hello there", response.Content)
	assert.Equal(t, "end_turn", response.FinishReason)
	assert.Equal(t, 5, response.Usage.TotalTokens)

	assert.Equal(t, defaultModel, capturedBody["model"])
	assert.EqualValues(t, 50, capturedBody["max_tokens"])
	assert.EqualValues(t, 1, capturedBody["temperature"])
}

func TestSendMessage_RateLimitIsTransient(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`)
	})

	_, err := provider.SendMessage(context.Background(), ai.UserPrompt("", "", "hi", nil))

	var providerError *ai.ProviderError
	require.ErrorAs(t, err, &providerError)
	assert.Equal(t, ai.ErrorRateLimited, providerError.Kind)
	assert.True(t, ai.IsTransient(err))
}

func TestSendMessage_MissingKey(t *testing.T) {
	_, err := New().WithAPIKey("").SendMessage(context.Background(), ai.UserPrompt("", "", "hi", nil))
	assert.False(t, ai.IsTransient(err))
}

func TestBuildParams_MapsRoles(t *testing.T) {
	request := ai.ChatRequest{Messages: []ai.Message{
		{Role: ai.RoleUser, Content: "q"},
		{Role: ai.RoleAssistant, Content: "a"},
		{Role: ai.RoleSystem, Content: "extra rules"},
	}}

	params := buildParams(request, defaultModel)

	assert.Len(t, params.Messages, 2)
	require.Len(t, params.System, 1)
	assert.Equal(t, "extra rules", params.System[0].Text)
	assert.EqualValues(t, defaultMaxTokens, params.MaxTokens)
}
