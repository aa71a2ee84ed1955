package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/leofalp/agentflow/core/stream"
	"github.com/leofalp/agentflow/core/task"
	"github.com/leofalp/agentflow/core/workflow"
)

const reportWorkflow = `
nodes:
  - id: doc
    type: documentGenerator
    data:
      prompt: Quarterly review of the sales pipeline
      wordCount: 200
  - id: chart
    type: dataAnalyzer
    config:
      analysisType: trend
      timeRange: 7
edges:
  - source: doc
    target: chart
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// execute runs the CLI offline with a config rooted in a temp directory.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	configPath := writeFile(t, dir, "config.yaml", "artifacts:\n  dir: "+filepath.Join(dir, "out")+"\nmarket:\n  reference_date: \"2024-06-14\"\ncache:\n  driver: memory\n")

	root := NewRootCommand()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--config", configPath, "--provider", "stub"}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "agentflow "+Version+"\n", out)
}

func TestTemplates_PrintsCatalog(t *testing.T) {
	out, err := execute(t, "templates")
	require.NoError(t, err)

	nodes := gjson.Get(out, "nodes")
	require.True(t, nodes.IsArray())
	assert.Len(t, nodes.Array(), 7)
	assert.Equal(t, "documentGenerator", nodes.Get("0.type").String())
	assert.Equal(t, "marketAnalyzer", nodes.Get("5.type").String())
	assert.Equal(t, "llmQuery", nodes.Get("6.type").String())
}

func TestRun_PrintsProgressAndSummary(t *testing.T) {
	path := writeFile(t, t.TempDir(), "report.yaml", reportWorkflow)

	out, err := execute(t, "run", path)
	require.NoError(t, err)
	assert.Contains(t, out, "[1/2]")
	assert.Contains(t, out, "doc")
	assert.Contains(t, out, "chart")
	assert.Contains(t, out, "completed")
}

func TestRun_NDJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "report.yaml", reportWorkflow)

	out, err := execute(t, "run", "--ndjson", path)
	require.NoError(t, err)

	frames, err := stream.ReadAll(bytes.NewBufferString(out))
	require.NoError(t, err)
	require.Len(t, frames, 3)
	assert.Equal(t, "doc", frames[0].Get("nodeId").String())
	assert.Equal(t, "summary", frames[2].Get("type").String())
	assert.Equal(t, "completed", frames[2].Get("status").String())
	assert.Equal(t, "line", frames[2].Get("nodeResults.chart.payload.type").String())
}

func TestRun_JSONWorkflow(t *testing.T) {
	path := writeFile(t, t.TempDir(), "single.json",
		`{"nodes":[{"id":"a","type":"dataAnalyzer","data":{"analysisType":"forecast"}}],"edges":[]}`)

	out, err := execute(t, "run", "--ndjson", path)
	require.NoError(t, err)
	assert.Contains(t, out, `"预测分析"`)
}

func TestRun_ValidationErrorFails(t *testing.T) {
	path := writeFile(t, t.TempDir(), "cycle.yaml", `
nodes:
  - {id: a, type: dataAnalyzer}
  - {id: b, type: dataAnalyzer}
edges:
  - {source: a, target: b}
  - {source: b, target: a}
`)

	out, err := execute(t, "run", path)
	require.Error(t, err)
	assert.ErrorIs(t, err, workflow.ErrCycleDetected)
	assert.Empty(t, out, "nothing runs for an invalid graph")
}

func TestRun_UnsupportedExtension(t *testing.T) {
	path := writeFile(t, t.TempDir(), "workflow.txt", "nodes: []")
	_, err := execute(t, "run", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported extension")
}

func TestTask_StreamsFinalFrame(t *testing.T) {
	out, err := execute(t, "task", "analyze_data", "--kwargs", `{"analysisType":"statistical","dataSource":"sales"}`)
	require.NoError(t, err)

	frames, err := stream.ReadAll(bytes.NewBufferString(out))
	require.NoError(t, err)
	require.NotEmpty(t, frames)
	final := frames[len(frames)-1]
	assert.True(t, final.Get("done").Bool())
	assert.Equal(t, "success", final.Get("status").String())
	assert.Equal(t, "sales", final.Get("data.dataSource").String())
}

func TestTask_UnknownType(t *testing.T) {
	_, err := execute(t, "task", "launch_rocket")
	require.ErrorIs(t, err, task.ErrUnknownTask)
}

func TestTask_InvalidKwargs(t *testing.T) {
	_, err := execute(t, "task", "analyze_data", "--kwargs", "{not json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--kwargs")
}

func TestTask_FailureReturnsError(t *testing.T) {
	out, err := execute(t, "task", "create_document")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_config")
	assert.Contains(t, out, `"done":true`)
}

func TestProviderFlagIsValidated(t *testing.T) {
	_, err := execute(t, "--provider", "gemini", "templates")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm.provider")
}
