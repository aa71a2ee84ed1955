package overview

import (
	"context"
	"sync"
	"time"

	"github.com/leofalp/agentflow/providers/ai"
)

type contextKey struct{}

var overviewContextKey = contextKey{}

// Overview aggregates model usage for one execution: a workflow run or a
// task. Nodes of a run share one Overview, so it is safe for concurrent use.
type Overview struct {
	mu       sync.Mutex
	requests int
	failures int
	usage    ai.Usage
	byModel  map[string]ai.Usage

	startTime time.Time
	endTime   time.Time
}

// Summary is the serializable view of an Overview.
type Summary struct {
	Requests         int                 `json:"requests"`
	Failures         int                 `json:"failures,omitempty"`
	PromptTokens     int                 `json:"promptTokens"`
	CompletionTokens int                 `json:"completionTokens"`
	TotalTokens      int                 `json:"totalTokens"`
	ByModel          map[string]ai.Usage `json:"byModel,omitempty"`
}

// New returns an empty Overview.
func New() *Overview {
	return &Overview{byModel: make(map[string]ai.Usage)}
}

// FromContext returns the Overview stored in ctx, or nil.
func FromContext(ctx context.Context) *Overview {
	if ctx == nil {
		return nil
	}
	overview, _ := ctx.Value(overviewContextKey).(*Overview)
	return overview
}

// ToContext stores the Overview in the given context and returns the enriched context.
func (overview *Overview) ToContext(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, overviewContextKey, overview)
}

// IncludeUsage records one successful model call.
func (overview *Overview) IncludeUsage(model string, usage *ai.Usage) {
	overview.mu.Lock()
	defer overview.mu.Unlock()

	overview.requests++
	if usage == nil {
		return
	}
	overview.usage.PromptTokens += usage.PromptTokens
	overview.usage.CompletionTokens += usage.CompletionTokens
	overview.usage.TotalTokens += usage.TotalTokens

	perModel := overview.byModel[model]
	perModel.PromptTokens += usage.PromptTokens
	perModel.CompletionTokens += usage.CompletionTokens
	perModel.TotalTokens += usage.TotalTokens
	overview.byModel[model] = perModel
}

// IncludeFailure records a model call that ended in an error.
func (overview *Overview) IncludeFailure() {
	overview.mu.Lock()
	defer overview.mu.Unlock()
	overview.failures++
}

// StartExecution marks the start of the execution.
func (overview *Overview) StartExecution() {
	overview.mu.Lock()
	defer overview.mu.Unlock()
	overview.startTime = time.Now()
}

// EndExecution marks the end of the execution.
func (overview *Overview) EndExecution() {
	overview.mu.Lock()
	defer overview.mu.Unlock()
	overview.endTime = time.Now()
}

// ExecutionDuration returns the time between StartExecution and
// EndExecution, or zero if either is missing.
func (overview *Overview) ExecutionDuration() time.Duration {
	overview.mu.Lock()
	defer overview.mu.Unlock()
	if overview.startTime.IsZero() || overview.endTime.IsZero() {
		return 0
	}
	return overview.endTime.Sub(overview.startTime)
}

// Summary returns a copy of the aggregated counters.
func (overview *Overview) Summary() Summary {
	overview.mu.Lock()
	defer overview.mu.Unlock()

	summary := Summary{
		Requests:         overview.requests,
		Failures:         overview.failures,
		PromptTokens:     overview.usage.PromptTokens,
		CompletionTokens: overview.usage.CompletionTokens,
		TotalTokens:      overview.usage.TotalTokens,
	}
	if len(overview.byModel) > 0 {
		summary.ByModel = make(map[string]ai.Usage, len(overview.byModel))
		for model, usage := range overview.byModel {
			summary.ByModel[model] = usage
		}
	}
	return summary
}
