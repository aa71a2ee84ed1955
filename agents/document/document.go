// Package document implements the documentGenerator capability: it asks the
// model for a document and optionally persists it as a text artifact.
package document

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/leofalp/agentflow/agents/internal/shared"
	"github.com/leofalp/agentflow/core/capability"
	"github.com/leofalp/agentflow/core/gateway"
	"github.com/leofalp/agentflow/providers/artifact"
)

// Type is the node type of the capability.
const Type = "documentGenerator"

// TaskName is the task alias of the capability.
const TaskName = "create_document"

// Defaults applied when the node config leaves a field unset.
const (
	DefaultDocType   = "报告"
	DefaultWordCount = 1000
	DefaultLanguage  = "en"
)

var languageNames = map[string]string{
	"en": "English",
	"zh": "Chinese",
}

// Template is the catalog entry shown in the editor.
var Template = capability.Template{
	Type:        Type,
	Label:       "文档生成器",
	Description: "生成指定类型的文档",
	Category:    "输出",
	ConfigFields: []capability.ConfigField{
		{Name: "prompt", Type: "textarea", Label: "提示词"},
		{Name: "docType", Type: "select", Label: "文档类型", Options: []string{"报告", "分析", "总结"}},
		{Name: "wordCount", Type: "number", Label: "字数"},
		{Name: "language", Type: "select", Label: "语言", Options: []string{"zh", "en"}},
	},
}

// Generator produces documents through a model.
type Generator struct {
	model shared.Completer
	store *artifact.Store
}

// New returns a Generator. A nil store disables persistence.
func New(model shared.Completer, store *artifact.Store) *Generator {
	return &Generator{model: model, store: store}
}

type request struct {
	prompt    string
	docType   string
	wordCount int
	language  string
	model     string
	filename  string
}

func parseRequest(config capability.Config) request {
	language := strings.ToLower(config.String("language", config.String("lang", DefaultLanguage)))
	if _, known := languageNames[language]; !known {
		language = DefaultLanguage
	}
	wordCount := config.Int("wordCount", config.Int("word_count", DefaultWordCount))
	if wordCount <= 0 {
		wordCount = DefaultWordCount
	}
	return request{
		prompt:    config.String("prompt", ""),
		docType:   config.String("docType", config.String("doc_type", DefaultDocType)),
		wordCount: wordCount,
		language:  language,
		model:     config.String("model", ""),
		filename:  config.String("filename", ""),
	}
}

// Execute implements capability.Handler.
func (g *Generator) Execute(ctx context.Context, config capability.Config, upstream []capability.Payload) (capability.Payload, error) {
	req := parseRequest(config)
	if req.prompt == "" && len(upstream) == 0 {
		return nil, capability.InvalidConfig("documentGenerator needs a prompt or upstream input")
	}

	content, err := g.model.Complete(ctx, buildPrompt(req, upstream), gateway.Options{Model: req.model})
	if err != nil {
		return nil, fmt.Errorf("generate document: %w", err)
	}

	payload := capability.Payload{
		"content":   content,
		"docType":   req.docType,
		"language":  req.language,
		"wordCount": req.wordCount,
	}

	if g.store != nil && req.filename != "" {
		saved, err := g.store.SaveText(ctx, req.filename, content)
		if errors.Is(err, artifact.ErrInvalidName) {
			return nil, capability.InvalidConfig("filename %q is not usable", req.filename)
		}
		if err != nil {
			return nil, capability.Failed(err, "save document")
		}
		payload["artifact"] = saved
	}
	return payload, nil
}

func buildPrompt(req request, upstream []capability.Payload) string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "Please create a %s document based on the following requirements:\n\n", req.docType)
	if req.prompt != "" {
		builder.WriteString(req.prompt)
		builder.WriteString("\n\n")
	}
	if sources := shared.RenderUpstream(upstream); sources != "" {
		builder.WriteString("Use the following results from earlier steps as source material:\n")
		builder.WriteString(sources)
		builder.WriteString("\n\n")
	}
	fmt.Fprintf(&builder, "Target length: about %d words. Write in %s.\n", req.wordCount, languageNames[req.language])
	builder.WriteString("Please provide the content directly without any additional formatting or explanations.")
	return builder.String()
}
