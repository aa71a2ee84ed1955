package openai

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

func newTestProvider(t *testing.T, handler http.HandlerFunc) *OpenAIProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New().WithAPIKey("test-key").WithBaseURL(server.URL).WithHttpClient(server.Client())
}

func TestSendMessage_Success(t *testing.T) {
	var capturedRequest chatCompletionRequest
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, chatCompletionsEndpoint, r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&capturedRequest))

		fmt.Fprint(w, `{"id":"chatcmpl-1","model":"gpt-3.5-turbo","choices":[{"index":0,"message":{"role":"assistant","content":"hello"},"finish_reason":"stop"}],"usage":{"prompt_tokens":5,"completion_tokens":2,"total_tokens":7}}`)
	})

	request := ai.UserPrompt("", "be brief", "say hello", &ai.GenerationConfig{MaxTokens: 100, Temperature: utils.Ptr(float32(0.7))})
	response, err := provider.SendMessage(context.Background(), request)
	require.NoError(t, err)

	assert.Equal(t, "hello", response.Content)
	assert.Equal(t, "stop", response.FinishReason)
	assert.Equal(t, 7, response.Usage.TotalTokens)

	assert.Equal(t, defaultModel, capturedRequest.Model)
	require.Len(t, capturedRequest.Messages, 2)
	assert.Equal(t, "system", capturedRequest.Messages[0].Role)
	assert.Equal(t, "say hello", capturedRequest.Messages[1].Content)
	require.NotNil(t, capturedRequest.MaxTokens)
	assert.Equal(t, 100, *capturedRequest.MaxTokens)
	assert.InDelta(t, 0.7, *capturedRequest.Temperature, 0.0001)
}

func TestSendMessage_StatusMapping(t *testing.T) {
	testCases := []struct {
		name      string
		status    int
		body      string
		kind      ai.ErrorKind
		transient bool
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"Rate limit reached"}}`, ai.ErrorRateLimited, true},
		{"server error", http.StatusInternalServerError, `oops`, ai.ErrorServer, true},
		{"bad key", http.StatusUnauthorized, `{"error":{"message":"Incorrect API key"}}`, ai.ErrorAuthentication, false},
		{"filtered", http.StatusBadRequest, `{"error":{"message":"flagged","code":"content_filter"}}`, ai.ErrorContentFilter, false},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(testCase.status)
				fmt.Fprint(w, testCase.body)
			})

			_, err := provider.SendMessage(context.Background(), ai.UserPrompt("", "", "hi", nil))

			var providerError *ai.ProviderError
			require.ErrorAs(t, err, &providerError)
			assert.Equal(t, testCase.kind, providerError.Kind)
			assert.Equal(t, testCase.transient, ai.IsTransient(err))
		})
	}
}

func TestSendMessage_MissingAPIKey(t *testing.T) {
	provider := New().WithAPIKey("")

	_, err := provider.SendMessage(context.Background(), ai.UserPrompt("", "", "hi", nil))

	var providerError *ai.ProviderError
	require.ErrorAs(t, err, &providerError)
	assert.Equal(t, ai.ErrorAuthentication, providerError.Kind)
}

func TestSendMessage_NoChoices(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"x","choices":[]}`)
	})

	_, err := provider.SendMessage(context.Background(), ai.UserPrompt("", "", "hi", nil))
	assert.True(t, ai.IsTransient(err))
}
