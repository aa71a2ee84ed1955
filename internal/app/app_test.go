package app

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leofalp/agentflow/core/gateway"
	"github.com/leofalp/agentflow/core/scheduler"
	"github.com/leofalp/agentflow/core/stream"
	"github.com/leofalp/agentflow/core/task"
	"github.com/leofalp/agentflow/core/workflow"
	"github.com/leofalp/agentflow/internal/config"
	"github.com/leofalp/agentflow/providers/ai/stub"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.LLM.Provider = config.ProviderStub
	cfg.Artifacts.Dir = t.TempDir()
	cfg.Market.ReferenceDate = "2024-06-14"
	require.NoError(t, cfg.Validate())
	return cfg
}

func newApp(t *testing.T, opts ...Option) *App {
	t.Helper()
	application, err := New(context.Background(), testConfig(t), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })
	return application
}

func TestNew_RegistersCatalog(t *testing.T) {
	application := newApp(t)

	assert.Equal(t, "stub", application.Gateway.Provider())
	assert.Len(t, application.Registry.Templates(), 7)
	assert.True(t, application.Registry.Has("analyze_market"))
	assert.DirExists(t, application.Artifacts.Dir())
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(context.Background(), nil)
	require.Error(t, err)
}

func TestNew_UnreachableRedisFails(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.Driver = config.CacheRedis
	cfg.Cache.Redis.Addr = "127.0.0.1:1"

	_, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect cache")
}

func TestNewProvider(t *testing.T) {
	for _, name := range []string{config.ProviderOpenAI, config.ProviderAnthropic, config.ProviderStub} {
		provider, err := NewProvider(context.Background(), config.LLMConfig{Provider: name, Model: "m", APIKey: "k"})
		require.NoError(t, err, name)
		assert.Equal(t, name, provider.Name())
	}

	_, err := NewProvider(context.Background(), config.LLMConfig{Provider: config.ProviderEino})
	require.Error(t, err, "eino needs an api key")

	_, err = NewProvider(context.Background(), config.LLMConfig{Provider: "gemini"})
	require.Error(t, err)
}

func TestMiddlewares_RetryTransientFailures(t *testing.T) {
	provider := stub.New().WithReply("ok").WithFailures(stub.Transient("busy"))
	cfg := testConfig(t)
	cfg.Gateway.InitialBackoff = 1
	cfg.Gateway.MaxBackoff = 1
	application, err := New(context.Background(), cfg, WithProvider(provider))
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })

	reply, err := application.Gateway.Complete(context.Background(), "hello", gateway.Options{})
	require.NoError(t, err)
	assert.Equal(t, "ok", reply)
	assert.Equal(t, 2, provider.Calls())
}

func TestApp_RunsWorkflowEndToEnd(t *testing.T) {
	application := newApp(t)
	graph := workflow.Graph{
		Nodes: []workflow.Node{
			{ID: "doc", Type: "documentGenerator", Config: map[string]any{"prompt": "Quarterly review"}},
			{ID: "chart", Type: "dataAnalyzer", Config: map[string]any{"analysisType": "trend", "timeRange": 7}},
		},
		Edges: []workflow.Edge{{Source: "doc", Target: "chart"}},
	}

	var buffer bytes.Buffer
	summary, err := application.Scheduler.Run(context.Background(), graph, stream.NewEmitter(&buffer))
	require.NoError(t, err)

	assert.Equal(t, scheduler.RunCompleted, summary.Status)
	assert.Equal(t, scheduler.NodeSucceeded, summary.NodeResults["doc"].Status)
	assert.Equal(t, "line", summary.NodeResults["chart"].Payload["type"])

	frames, err := stream.ReadAll(&buffer)
	require.NoError(t, err)
	require.Len(t, frames, 3)
	assert.Equal(t, "summary", frames[2].Get("type").String())
}

func TestApp_RunsTaskWithProgress(t *testing.T) {
	application := newApp(t)

	var buffer bytes.Buffer
	final, err := application.Tasks.Run(context.Background(), task.Request{
		TaskType: "analyze_market",
		Kwargs:   map[string]any{"universe": "AAPL,MSFT"},
	}, stream.NewEmitter(&buffer))
	require.NoError(t, err)
	assert.Equal(t, task.StatusSuccess, final.Status)

	frames, err := stream.ReadAll(&buffer)
	require.NoError(t, err)
	require.Greater(t, len(frames), 1)
	assert.False(t, frames[0].Get("done").Bool())
	assert.True(t, frames[len(frames)-1].Get("done").Bool())
	assert.True(t, frames[len(frames)-1].Get("data.analysis_report").Exists())
}
