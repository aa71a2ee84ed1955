// Package ai defines the provider-agnostic request, response and error types
// shared by every LLM backend (OpenAI, Anthropic, eino-compatible endpoints
// and the deterministic stub). Each backend maps these types to its own wire
// format, keeping the gateway and the capabilities decoupled from provider
// specifics.
//
// Failures are reported as [ProviderError]. Whether a failure is worth
// retrying is a property of its [ErrorKind], never of the call site; see
// [IsTransient].
package ai
