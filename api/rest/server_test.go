package rest

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leofalp/agentflow/core/capability"
	"github.com/leofalp/agentflow/core/scheduler"
	"github.com/leofalp/agentflow/core/stream"
	"github.com/leofalp/agentflow/core/task"
	"github.com/leofalp/agentflow/internal/config"
	"github.com/leofalp/agentflow/providers/observability/zapobs"
)

func echo(_ context.Context, config capability.Config, upstream []capability.Payload) (capability.Payload, error) {
	return capability.Payload{"text": config.String("text", "hello"), "inputs": len(upstream)}, nil
}

func failing(context.Context, capability.Config, []capability.Payload) (capability.Payload, error) {
	return nil, errors.New("boom")
}

func sections(ctx context.Context, _ capability.Config, _ []capability.Payload) (capability.Payload, error) {
	capability.ReportProgress(ctx, capability.Payload{"section": "market_overview"})
	return capability.Payload{"analysis_report": "done"}, nil
}

func newTestServer(t *testing.T) (*Server, *zapobs.Observer) {
	t.Helper()
	registry := capability.NewRegistry()
	require.NoError(t, registry.Register("echo", capability.HandlerFunc(echo), capability.WithTemplate(capability.Template{
		Type: "echo", Label: "Echo", Description: "Repeats text", Category: "test",
	})))
	require.NoError(t, registry.Register("failing", capability.HandlerFunc(failing)))
	require.NoError(t, registry.Register("marketAnalyzer", capability.HandlerFunc(sections)))
	require.NoError(t, registry.RegisterAlias("analyze_market", "marketAnalyzer"))

	observer := zapobs.New(nil)
	server := NewServer(Dependencies{
		Workflows: scheduler.New(registry, scheduler.Options{}, observer),
		Tasks:     task.NewRunner(registry, observer, 0),
		Catalog:   registry,
		Metrics:   observer,
	}, config.Default().Server)
	return server, observer
}

func do(t *testing.T, server *Server, method, path, body string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	request := httptest.NewRequest(method, path, reader)
	if body != "" {
		request.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	response, err := server.App().Test(request, -1)
	require.NoError(t, err)
	return response
}

func decode[T any](t *testing.T, response *http.Response) T {
	t.Helper()
	body, err := io.ReadAll(response.Body)
	require.NoError(t, err)
	var value T
	require.NoError(t, sonic.Unmarshal(body, &value))
	return value
}

func TestHealth(t *testing.T) {
	server, _ := newTestServer(t)
	response := do(t, server, http.MethodGet, "/health", "")
	assert.Equal(t, fiber.StatusOK, response.StatusCode)
	assert.Equal(t, "ok", decode[HealthResponse](t, response).Status)
}

func TestTemplates_RegistrationOrder(t *testing.T) {
	server, _ := newTestServer(t)
	response := do(t, server, http.MethodGet, "/api/nodes/templates", "")
	require.Equal(t, fiber.StatusOK, response.StatusCode)

	templates := decode[TemplatesResponse](t, response)
	require.Len(t, templates.Nodes, 3)
	assert.Equal(t, "echo", templates.Nodes[0].Type)
	assert.Equal(t, "Echo", templates.Nodes[0].Label)
}

func TestExecuteWorkflow_StreamsNodesThenSummary(t *testing.T) {
	server, observer := newTestServer(t)
	body := `{
		"nodes": [
			{"id": "a", "type": "echo", "data": {"text": "first"}},
			{"id": "b", "type": "echo"}
		],
		"edges": [{"id": "e1", "source": "a", "target": "b"}]
	}`

	response := do(t, server, http.MethodPost, "/api/workflow/execute", body)
	require.Equal(t, fiber.StatusOK, response.StatusCode)
	assert.Equal(t, stream.ContentType, response.Header.Get(fiber.HeaderContentType))

	frames, err := stream.ReadAll(response.Body)
	require.NoError(t, err)
	require.Len(t, frames, 3)

	assert.Equal(t, "node", frames[0].Get("type").String())
	assert.Equal(t, "a", frames[0].Get("nodeId").String())
	assert.Equal(t, "first", frames[0].Get("node.payload.text").String())
	assert.Equal(t, int64(1), frames[1].Get("node.payload.inputs").Int())

	summary := frames[2]
	assert.Equal(t, "summary", summary.Get("type").String())
	assert.Equal(t, string(scheduler.RunCompleted), summary.Get("status").String())
	assert.Equal(t, int64(2), summary.Get("completed").Int())

	assert.NotEmpty(t, observer.Snapshot().Counters)
}

func TestExecuteWorkflow_FailuresStayInStream(t *testing.T) {
	server, _ := newTestServer(t)
	body := `{
		"nodes": [{"id": "a", "type": "failing"}, {"id": "b", "type": "echo"}, {"id": "c", "type": "echo"}],
		"edges": [{"source": "a", "target": "c"}, {"source": "b", "target": "c"}]
	}`

	response := do(t, server, http.MethodPost, "/api/workflow/execute", body)
	require.Equal(t, fiber.StatusOK, response.StatusCode)

	frames, err := stream.ReadAll(response.Body)
	require.NoError(t, err)
	summary := frames[len(frames)-1]
	assert.Equal(t, string(scheduler.RunCompletedWithErrors), summary.Get("status").String())
	assert.Equal(t, "execution_error", summary.Get("nodeResults.a.error.kind").String())
	assert.Equal(t, "upstream_failed", summary.Get("nodeResults.c.error.kind").String())
	assert.Equal(t, "succeeded", summary.Get("nodeResults.b.status").String())
}

func TestExecuteWorkflow_ValidationFailures(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantKind string
		wantNode string
	}{
		{
			name:     "cycle",
			body:     `{"nodes":[{"id":"a","type":"echo"},{"id":"b","type":"echo"}],"edges":[{"source":"a","target":"b"},{"source":"b","target":"a"}]}`,
			wantKind: "cycle_detected",
		},
		{
			name:     "dangling edge",
			body:     `{"nodes":[{"id":"a","type":"echo"}],"edges":[{"source":"a","target":"ghost"}]}`,
			wantKind: "dangling_edge",
		},
		{
			name:     "unknown capability",
			body:     `{"nodes":[{"id":"a","type":"teleporter"}],"edges":[]}`,
			wantKind: "unknown_capability",
			wantNode: "a",
		},
		{
			name:     "empty graph",
			body:     `{"nodes":[],"edges":[]}`,
			wantKind: "empty_graph",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := newTestServer(t)
			response := do(t, server, http.MethodPost, "/api/workflow/execute", tt.body)
			require.Equal(t, fiber.StatusBadRequest, response.StatusCode)

			errorResponse := decode[ErrorResponse](t, response)
			assert.Equal(t, ErrInvalidWorkflow, errorResponse.Error)
			assert.Equal(t, tt.wantKind, errorResponse.Kind)
			assert.NotEmpty(t, errorResponse.Message)
			if tt.wantNode != "" {
				assert.Equal(t, tt.wantNode, errorResponse.NodeID)
			}
		})
	}
}

func TestExecuteWorkflow_MalformedBody(t *testing.T) {
	server, _ := newTestServer(t)
	response := do(t, server, http.MethodPost, "/api/workflow/execute", `{"nodes": [`)
	require.Equal(t, fiber.StatusBadRequest, response.StatusCode)
	assert.Equal(t, ErrInvalidRequest, decode[ErrorResponse](t, response).Error)
}

func TestExecuteTask_ProgressThenFinal(t *testing.T) {
	server, _ := newTestServer(t)
	response := do(t, server, http.MethodPost, "/api/tasks", `{"task_type":"analyze_market","kwargs":{}}`)
	require.Equal(t, fiber.StatusOK, response.StatusCode)

	frames, err := stream.ReadAll(response.Body)
	require.NoError(t, err)
	require.Len(t, frames, 2)

	assert.Equal(t, "success", frames[0].Get("status").String())
	assert.False(t, frames[0].Get("done").Bool())
	assert.Equal(t, "market_overview", frames[0].Get("data.section").String())

	assert.True(t, frames[1].Get("done").Bool())
	assert.Equal(t, "done", frames[1].Get("data.analysis_report").String())
}

func TestExecuteTask_UnknownType(t *testing.T) {
	server, _ := newTestServer(t)
	response := do(t, server, http.MethodPost, "/api/tasks", `{"task_type":"launch_rocket"}`)
	require.Equal(t, fiber.StatusBadRequest, response.StatusCode)
	assert.Equal(t, ErrUnknownTask, decode[ErrorResponse](t, response).Error)
}

func TestExecuteTask_FailureIsFinalFrame(t *testing.T) {
	server, _ := newTestServer(t)
	response := do(t, server, http.MethodPost, "/api/tasks", `{"task_type":"failing"}`)
	require.Equal(t, fiber.StatusOK, response.StatusCode)

	frames, err := stream.ReadAll(response.Body)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, "error", frames[0].Get("status").String())
	assert.Equal(t, "boom", frames[0].Get("error").String())
	assert.True(t, frames[0].Get("done").Bool())
}

func TestMetrics(t *testing.T) {
	server, _ := newTestServer(t)
	do(t, server, http.MethodPost, "/api/tasks", `{"task_type":"analyze_market"}`)

	response := do(t, server, http.MethodGet, "/api/metrics", "")
	require.Equal(t, fiber.StatusOK, response.StatusCode)
	snapshot := decode[zapobs.Snapshot](t, response)
	assert.NotNil(t, snapshot.Counters)
	assert.NotNil(t, snapshot.Histograms)
}
