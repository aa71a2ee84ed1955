// Package research implements the researchAgent capability. It optionally
// searches the web and fetches source pages, then asks the model for a
// structured brief on a topic.
package research

import (
	"context"
	"fmt"
	"strings"

	"github.com/duke-git/lancet/v2/slice"

	"github.com/leofalp/agentflow/agents/internal/shared"
	"github.com/leofalp/agentflow/core/capability"
	"github.com/leofalp/agentflow/core/gateway"
	"github.com/leofalp/agentflow/core/parse"
	"github.com/leofalp/agentflow/internal/utils"
	"github.com/leofalp/agentflow/providers/tool/duckduckgo"
	"github.com/leofalp/agentflow/providers/tool/webfetch"
)

const (
	Type     = "researchAgent"
	TaskName = "research_topic"
)

// DefaultDepth is used when the node config names no depth.
const DefaultDepth = "基础"

// MaxSources bounds how many URLs one node fetches.
const MaxSources = 5

// maxSourceChars bounds each page excerpt placed in the prompt.
const maxSourceChars = 4000

var depthInstructions = map[string]string{
	"基础": "Give a concise overview suitable for a newcomer.",
	"深入": "Go into detail: mechanisms, trade-offs and current debates.",
	"专业": "Write for domain experts: cite specifics, figures and open research problems.",
}

var Template = capability.Template{
	Type:        Type,
	Label:       "研究智能体",
	Description: "收集和分析特定主题的信息",
	Category:    "收集",
	ConfigFields: []capability.ConfigField{
		{Name: "topic", Type: "text", Label: "研究主题"},
		{Name: "depth", Type: "select", Label: "研究深度", Options: []string{"基础", "深入", "专业"}},
		{Name: "sources", Type: "textarea", Label: "参考链接"},
		{Name: "webSearch", Type: "checkbox", Label: "联网搜索"},
	},
}

// PageFetcher fetches source pages. *webfetch.Fetcher satisfies it.
type PageFetcher interface {
	FetchAll(ctx context.Context, urls []string) []webfetch.Result
}

// Searcher looks a topic up on the web. *duckduckgo.Client satisfies it.
type Searcher interface {
	Search(ctx context.Context, query string) (duckduckgo.Answer, error)
}

// Agent researches topics.
type Agent struct {
	model    shared.Completer
	fetcher  PageFetcher
	searcher Searcher
}

// New returns an Agent. A nil fetcher ignores configured sources.
func New(model shared.Completer, fetcher PageFetcher) *Agent {
	return &Agent{model: model, fetcher: fetcher}
}

// WithSearcher enables the webSearch option.
func (a *Agent) WithSearcher(searcher Searcher) *Agent {
	a.searcher = searcher
	return a
}

// Findings is the brief the model is asked to return.
type Findings struct {
	Summary       string   `json:"summary"`
	KeyPoints     []string `json:"keyPoints"`
	OpenQuestions []string `json:"openQuestions"`
}

// Source reports the outcome of fetching one configured URL.
type Source struct {
	URL   string `json:"url"`
	Chars int    `json:"chars,omitempty"`
	Error string `json:"error,omitempty"`
}

// Execute implements capability.Handler.
func (a *Agent) Execute(ctx context.Context, config capability.Config, upstream []capability.Payload) (capability.Payload, error) {
	topic := config.String("topic", "")
	if topic == "" {
		return nil, capability.InvalidConfig("researchAgent needs a topic")
	}
	depth := config.String("depth", DefaultDepth)
	if _, known := depthInstructions[depth]; !known {
		depth = DefaultDepth
	}

	urls := config.Strings("sources")
	payload := capability.Payload{"topic": topic, "depth": depth}

	var search *duckduckgo.Answer
	if config.Bool("webSearch", false) && a.searcher != nil {
		// A failed search degrades to a brief without web context.
		answer, err := a.searcher.Search(ctx, topic)
		if err != nil {
			payload["searchError"] = err.Error()
		} else {
			search = &answer
			payload["webSearch"] = answer
			urls = append(urls, answer.URLs(MaxSources)...)
		}
	}

	urls = slice.Unique(urls)
	if len(urls) > MaxSources {
		urls = urls[:MaxSources]
	}
	sources, pages := a.fetch(ctx, urls)

	reply, err := a.model.Complete(ctx, buildPrompt(topic, depth, search, pages, upstream), gateway.Options{Model: config.String("model", "")})
	if err != nil {
		return nil, fmt.Errorf("research %q: %w", topic, err)
	}

	findings := parseFindings(reply)
	payload["summary"] = findings.Summary
	payload["keyPoints"] = findings.KeyPoints
	payload["openQuestions"] = findings.OpenQuestions
	payload["sources"] = sources
	return payload, nil
}

func (a *Agent) fetch(ctx context.Context, urls []string) ([]Source, []webfetch.Page) {
	sources := make([]Source, 0, len(urls))
	if a.fetcher == nil || len(urls) == 0 {
		return sources, nil
	}

	var pages []webfetch.Page
	for _, result := range a.fetcher.FetchAll(ctx, urls) {
		if result.Err != nil {
			sources = append(sources, Source{URL: result.Source, Error: result.Err.Error()})
			continue
		}
		sources = append(sources, Source{URL: result.Page.URL, Chars: len(result.Page.Markdown)})
		pages = append(pages, result.Page)
	}
	return sources, pages
}

func buildPrompt(topic, depth string, search *duckduckgo.Answer, pages []webfetch.Page, upstream []capability.Payload) string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "Research the following topic: %s\n%s\n\n", topic, depthInstructions[depth])

	if search != nil && !search.Empty() {
		builder.WriteString("Web search findings:\n")
		builder.WriteString(search.Summary())
		builder.WriteString("\n\n")
	}

	for index, page := range pages {
		fmt.Fprintf(&builder, "[source %d: %s]\n%s\n\n", index+1, page.URL, utils.TruncateString(page.Markdown, maxSourceChars))
	}
	if earlier := shared.RenderUpstream(upstream); earlier != "" {
		builder.WriteString("Results from earlier steps:\n")
		builder.WriteString(earlier)
		builder.WriteString("\n\n")
	}

	builder.WriteString(`Reply with a JSON object only: {"summary": string, "keyPoints": [string], "openQuestions": [string]}`)
	return builder.String()
}

// parseFindings decodes the model reply. Replies that hold no usable JSON
// become a summary-only brief.
func parseFindings(reply string) Findings {
	findings, err := parse.JSONAs[Findings](reply)
	if err != nil || strings.TrimSpace(findings.Summary) == "" {
		findings = Findings{Summary: strings.TrimSpace(reply)}
	}
	if findings.KeyPoints == nil {
		findings.KeyPoints = []string{}
	}
	if findings.OpenQuestions == nil {
		findings.OpenQuestions = []string{}
	}
	return findings
}
