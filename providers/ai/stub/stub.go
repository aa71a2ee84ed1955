// Package stub provides a deterministic ai.Provider for offline runs and
// tests. Replies are derived from the prompt, and failures can be scripted.
package stub

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/leofalp/agentflow/providers/ai"
)

const providerName = "stub"

// Responder produces the reply text for a request.
type Responder func(request ai.ChatRequest) string

// Provider is a scripted, deterministic provider.
type Provider struct {
	mu        sync.Mutex
	responder Responder
	failures  []error
	delay     time.Duration
	calls     int
	requests  []ai.ChatRequest
}

var _ ai.Provider = (*Provider)(nil)

// New returns a provider that echoes a summary of the prompt.
func New() *Provider {
	return &Provider{responder: Echo}
}

// WithResponder replaces the reply function.
func (p *Provider) WithResponder(responder Responder) *Provider {
	p.responder = responder
	return p
}

// WithReply makes every call return text.
func (p *Provider) WithReply(text string) *Provider {
	return p.WithResponder(func(ai.ChatRequest) string { return text })
}

// WithFailures makes the next len(errs) calls fail in order. A nil entry
// lets that call succeed.
func (p *Provider) WithFailures(errs ...error) *Provider {
	p.failures = append(p.failures, errs...)
	return p
}

// WithDelay makes every call block for d or until the context is done.
func (p *Provider) WithDelay(d time.Duration) *Provider {
	p.delay = d
	return p
}

// Calls returns how many times SendMessage ran.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// Requests returns a copy of every request received.
func (p *Provider) Requests() []ai.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ai.ChatRequest(nil), p.requests...)
}

func (p *Provider) Name() string { return providerName }

func (p *Provider) SendMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
	p.mu.Lock()
	p.calls++
	call := p.calls
	p.requests = append(p.requests, request)
	var scripted error
	if len(p.failures) > 0 {
		scripted = p.failures[0]
		p.failures = p.failures[1:]
	}
	responder, delay := p.responder, p.delay
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ai.Classify(providerName, ctx.Err())
		}
	}
	if scripted != nil {
		return nil, scripted
	}

	content := responder(request)
	promptTokens := countWords(request)
	completionTokens := len(strings.Fields(content))
	return &ai.ChatResponse{
		Id:           fmt.Sprintf("stub-%d", call),
		Model:        request.Model,
		Content:      content,
		FinishReason: "stop",
		Usage: &ai.Usage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		},
	}, nil
}

// Echo is the default responder. It is stable for a given prompt.
func Echo(request ai.ChatRequest) string {
	prompt := lastUserMessage(request)
	hasher := fnv.New32a()
	_, _ = hasher.Write([]byte(prompt))

	firstLine, _, _ := strings.Cut(strings.TrimSpace(prompt), "\n")
	if len(firstLine) > 120 {
		firstLine = firstLine[:120]
	}
	return fmt.Sprintf("[stub:%08x] %s", hasher.Sum32(), firstLine)
}

func lastUserMessage(request ai.ChatRequest) string {
	for index := len(request.Messages) - 1; index >= 0; index-- {
		if request.Messages[index].Role == ai.RoleUser {
			return request.Messages[index].Content
		}
	}
	return ""
}

func countWords(request ai.ChatRequest) int {
	total := len(strings.Fields(request.SystemPrompt))
	for _, message := range request.Messages {
		total += len(strings.Fields(message.Content))
	}
	return total
}

// Transient returns a retryable provider error.
func Transient(message string) error {
	return &ai.ProviderError{Provider: providerName, Kind: ai.ErrorUnavailable, StatusCode: 503, Message: message}
}

// Permanent returns a non-retryable provider error.
func Permanent(message string) error {
	return &ai.ProviderError{Provider: providerName, Kind: ai.ErrorInvalidRequest, StatusCode: 400, Message: message}
}
