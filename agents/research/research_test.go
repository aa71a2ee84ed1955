package research

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leofalp/agentflow/core/capability"
	"github.com/leofalp/agentflow/core/gateway"
	"github.com/leofalp/agentflow/providers/tool/duckduckgo"
	"github.com/leofalp/agentflow/providers/tool/webfetch"
)

type fakeModel struct {
	mu      sync.Mutex
	reply   string
	prompts []string
}

func (model *fakeModel) Complete(_ context.Context, prompt string, _ gateway.Options) (string, error) {
	model.mu.Lock()
	defer model.mu.Unlock()
	model.prompts = append(model.prompts, prompt)
	return model.reply, nil
}

func TestAgent_ParsesStructuredReply(t *testing.T) {
	model := &fakeModel{reply: `{"summary":"Batteries are improving","keyPoints":["density","cost"],"openQuestions":["recycling?"]}`}

	payload, err := New(model, nil).Execute(context.Background(), capability.Config{
		"topic": "solid-state batteries",
		"depth": "深入",
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "solid-state batteries", payload["topic"])
	assert.Equal(t, "深入", payload["depth"])
	assert.Equal(t, "Batteries are improving", payload["summary"])
	assert.Equal(t, []string{"density", "cost"}, payload["keyPoints"])
	assert.Equal(t, []string{"recycling?"}, payload["openQuestions"])

	require.Len(t, model.prompts, 1)
	assert.Contains(t, model.prompts[0], "solid-state batteries")
	assert.Contains(t, model.prompts[0], depthInstructions["深入"])
}

func TestAgent_RepairsFencedJSON(t *testing.T) {
	model := &fakeModel{reply: "Here you go:\n```json\n{\"summary\": \"Repaired\", \"keyPoints\": [\"one\",],}\n```"}

	payload, err := New(model, nil).Execute(context.Background(), capability.Config{"topic": "x"}, nil)
	require.NoError(t, err)

	assert.Equal(t, "Repaired", payload["summary"])
	assert.Equal(t, []string{"one"}, payload["keyPoints"])
	assert.Equal(t, []string{}, payload["openQuestions"])
}

func TestAgent_PlainTextBecomesSummary(t *testing.T) {
	model := &fakeModel{reply: "  Just prose, no structure.  "}

	payload, err := New(model, nil).Execute(context.Background(), capability.Config{"topic": "x"}, nil)
	require.NoError(t, err)

	assert.Equal(t, "Just prose, no structure.", payload["summary"])
	assert.Equal(t, []string{}, payload["keyPoints"])
}

func TestAgent_RequiresTopic(t *testing.T) {
	model := &fakeModel{reply: "{}"}

	_, err := New(model, nil).Execute(context.Background(), capability.Config{"depth": "基础"}, nil)

	assert.Equal(t, capability.KindInvalidConfig, capability.KindOf(err))
	assert.Empty(t, model.prompts)
}

func TestAgent_UnknownDepthFallsBack(t *testing.T) {
	payload, err := New(&fakeModel{reply: "x"}, nil).Execute(context.Background(), capability.Config{
		"topic": "x",
		"depth": "extreme",
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultDepth, payload["depth"])
}

func TestAgent_FetchesSources(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body><h1>Cathodes</h1><p>Nickel-rich cathodes dominate.</p></body></html>"))
	}))
	defer server.Close()

	model := &fakeModel{reply: `{"summary":"ok"}`}
	agent := New(model, webfetch.New())

	payload, err := agent.Execute(context.Background(), capability.Config{
		"topic":   "cathodes",
		"sources": []any{server.URL + "/page", server.URL + "/missing"},
	}, nil)
	require.NoError(t, err)

	sources, ok := payload["sources"].([]Source)
	require.True(t, ok)
	require.Len(t, sources, 2)
	assert.Empty(t, sources[0].Error)
	assert.Positive(t, sources[0].Chars)
	assert.NotEmpty(t, sources[1].Error)

	require.Len(t, model.prompts, 1)
	assert.Contains(t, model.prompts[0], "Nickel-rich cathodes dominate.")
	assert.Contains(t, model.prompts[0], "[source 1: "+server.URL+"/page]")
}

func TestAgent_IncludesUpstreamResults(t *testing.T) {
	model := &fakeModel{reply: "x"}

	_, err := New(model, nil).Execute(context.Background(), capability.Config{"topic": "x"}, []capability.Payload{
		{"content": "earlier draft"},
	})
	require.NoError(t, err)

	assert.Contains(t, model.prompts[0], "earlier draft")
}

type fakeSearcher struct {
	answer  duckduckgo.Answer
	err     error
	queries []string
}

func (searcher *fakeSearcher) Search(_ context.Context, query string) (duckduckgo.Answer, error) {
	searcher.queries = append(searcher.queries, query)
	return searcher.answer, searcher.err
}

type fakeFetcher struct {
	urls []string
}

func (fetcher *fakeFetcher) FetchAll(_ context.Context, urls []string) []webfetch.Result {
	fetcher.urls = append(fetcher.urls, urls...)
	results := make([]webfetch.Result, len(urls))
	for index, link := range urls {
		results[index] = webfetch.Result{Source: link, Page: webfetch.Page{URL: link, Markdown: "page " + link}}
	}
	return results
}

func TestAgent_WebSearchAddsContextAndSources(t *testing.T) {
	model := &fakeModel{reply: `{"summary":"ok"}`}
	searcher := &fakeSearcher{answer: duckduckgo.Answer{
		Query:       "graphene",
		Abstract:    "Graphene is a single layer of carbon atoms.",
		AbstractURL: "https://wiki.example/graphene",
		Related:     []duckduckgo.Topic{{Text: "Carbon", URL: "https://wiki.example/carbon"}},
	}}
	fetcher := &fakeFetcher{}

	payload, err := New(model, fetcher).WithSearcher(searcher).Execute(context.Background(), capability.Config{
		"topic":     "graphene",
		"webSearch": true,
		"sources":   "https://wiki.example/graphene",
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"graphene"}, searcher.queries)
	assert.Equal(t, []string{"https://wiki.example/graphene", "https://wiki.example/carbon"}, fetcher.urls)
	assert.Equal(t, searcher.answer, payload["webSearch"])
	assert.Contains(t, model.prompts[0], "Web search findings:")
	assert.Contains(t, model.prompts[0], "single layer of carbon atoms")
}

func TestAgent_WebSearchIsOptIn(t *testing.T) {
	searcher := &fakeSearcher{}

	payload, err := New(&fakeModel{reply: "x"}, nil).WithSearcher(searcher).Execute(context.Background(), capability.Config{"topic": "x"}, nil)
	require.NoError(t, err)

	assert.Empty(t, searcher.queries)
	assert.NotContains(t, payload, "webSearch")
}

func TestAgent_WebSearchFailureDegrades(t *testing.T) {
	model := &fakeModel{reply: "brief"}
	searcher := &fakeSearcher{err: errors.New("offline")}

	payload, err := New(model, nil).WithSearcher(searcher).Execute(context.Background(), capability.Config{
		"topic":     "x",
		"webSearch": "true",
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "offline", payload["searchError"])
	assert.Equal(t, "brief", payload["summary"])
	assert.NotContains(t, model.prompts[0], "Web search findings:")
}
