package ai

import "context"

// Provider is the interface every LLM backend implements. It covers a single
// request: message dispatch and response interpretation.
type Provider interface {
	// Name identifies the backend in logs and errors (e.g. "openai").
	Name() string

	// SendMessage sends a chat request and returns the completed response.
	// Failures should be returned as *ProviderError so the gateway can tell
	// transient from permanent errors.
	SendMessage(ctx context.Context, request ChatRequest) (*ChatResponse, error)
}
