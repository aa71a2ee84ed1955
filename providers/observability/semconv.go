package observability

// Attribute keys, span names and metric names shared by the scheduler, the
// model gateway and the HTTP layer.

// --- General ---

const (
	AttrError      = "error"
	AttrErrorKind  = "error.kind"
	AttrDurationMs = "duration_ms"
)

// --- Workflow runs ---

const (
	AttrRunID          = "workflow.run.id"
	AttrRunStatus      = "workflow.run.status"
	AttrRunNodes       = "workflow.run.nodes"
	AttrRunSucceeded   = "workflow.run.succeeded"
	AttrRunFailed      = "workflow.run.failed"
	AttrRunConcurrency = "workflow.run.concurrency"

	AttrNodeID       = "workflow.node.id"
	AttrNodeType     = "workflow.node.type"
	AttrNodeStatus   = "workflow.node.status"
	AttrNodeUpstream = "workflow.node.upstream"
)

// --- Model gateway ---

const (
	AttrLLMProvider         = "llm.provider"
	AttrLLMModel            = "llm.model"
	AttrLLMEndpoint         = "llm.endpoint"
	AttrLLMFinishReason     = "llm.finish_reason"
	AttrLLMTemperature      = "llm.temperature"
	AttrLLMMaxTokens        = "llm.max_tokens" // #nosec G101 -- not a credential
	AttrLLMTokensPrompt     = "llm.tokens.prompt"
	AttrLLMTokensCompletion = "llm.tokens.completion"
	AttrLLMTokensTotal      = "llm.tokens.total"
	AttrLLMAttempt          = "llm.attempt"
	AttrLLMPromptPreview    = "llm.prompt.preview"
	AttrLLMResponsePreview  = "llm.response.preview"
)

// --- HTTP ---

const (
	AttrHTTPMethod           = "http.method"
	AttrHTTPURL              = "http.url"
	AttrHTTPStatusCode       = "http.status_code"
	AttrHTTPRequestBodySize  = "http.request.body_size"
	AttrHTTPResponseBodySize = "http.response.body_size"
)

// --- Span names ---

const (
	SpanWorkflowRun = "workflow.run"
	SpanNodeExecute = "workflow.node"
	SpanTaskRun     = "task.run"
	SpanLLMRequest  = "llm.request"
)

// --- Events ---

const (
	EventNodeDispatched = "node.dispatched"
	EventNodeCompleted  = "node.completed"
	EventLLMRetry       = "llm.retry"
)

// --- Metrics ---

const (
	MetricRunCount       = "workflow.run.count"
	MetricRunDuration    = "workflow.run.duration"
	MetricNodeCount      = "workflow.node.count"
	MetricNodeDuration   = "workflow.node.duration"
	MetricLLMRequests    = "llm.request.count"
	MetricLLMDuration    = "llm.request.duration"
	MetricLLMTokensTotal = "llm.tokens.total"
	MetricLLMRetries     = "llm.retry.count"
)
