// Package anthropic implements ai.Provider on the official Anthropic Go SDK.
// SDK level retries are disabled; the gateway owns the retry policy.
package anthropic
