// Package openai implements ai.Provider against the OpenAI chat completions
// endpoint over plain HTTP. Any OpenAI compatible server works by setting the
// base URL.
package openai
