// Package llm implements the llmQuery capability, which sends a prompt
// straight to the model and returns its reply.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/leofalp/agentflow/agents/internal/shared"
	"github.com/leofalp/agentflow/core/capability"
	"github.com/leofalp/agentflow/core/gateway"
)

// Type is the node type of the capability.
const Type = "llmQuery"

// TaskName is the task alias of the capability.
const TaskName = "llm_query"

// Template is the catalog entry shown in the editor.
var Template = capability.Template{
	Type:        Type,
	Label:       "大模型问答",
	Description: "直接向大模型发送提示词",
	Category:    "通用",
	ConfigFields: []capability.ConfigField{
		{Name: "prompt", Type: "textarea", Label: "提示词"},
		{Name: "systemPrompt", Type: "textarea", Label: "系统提示词"},
		{Name: "model", Type: "text", Label: "模型"},
	},
}

// Query answers prompts through a model.
type Query struct {
	model shared.Completer
}

// New returns a Query.
func New(model shared.Completer) *Query {
	return &Query{model: model}
}

// Execute implements capability.Handler. Upstream results are appended to
// the prompt as context.
func (q *Query) Execute(ctx context.Context, config capability.Config, upstream []capability.Payload) (capability.Payload, error) {
	prompt := strings.TrimSpace(config.String("prompt", ""))
	sources := shared.RenderUpstream(upstream)
	if prompt == "" && sources == "" {
		return nil, capability.InvalidConfig("llmQuery needs a prompt or upstream input")
	}

	content, err := q.model.Complete(ctx, buildPrompt(prompt, sources), gateway.Options{
		Model:        config.String("model", ""),
		SystemPrompt: config.String("systemPrompt", config.String("system_prompt", "")),
	})
	if err != nil {
		return nil, fmt.Errorf("llm query: %w", err)
	}
	return capability.Payload{"content": content}, nil
}

func buildPrompt(prompt, sources string) string {
	if sources == "" {
		return prompt
	}
	var builder strings.Builder
	if prompt != "" {
		builder.WriteString(prompt)
		builder.WriteString("\n\n")
	}
	builder.WriteString("Context from earlier steps:\n")
	builder.WriteString(sources)
	return builder.String()
}
