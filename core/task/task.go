// Package task runs a single capability outside of a workflow graph. A task is
// a degenerate one-node run: it resolves its handler from the same registry
// as the scheduler and streams progress and the final result through an
// Emitter.
package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"github.com/leofalp/agentflow/core/capability"
	"github.com/leofalp/agentflow/core/overview"
	"github.com/leofalp/agentflow/providers/observability"
)

// ErrUnknownTask is returned when the task type resolves to no capability.
var ErrUnknownTask = errors.New("unknown task type")

// DefaultTimeout applies to capabilities registered without a timeout.
const DefaultTimeout = 5 * time.Minute

// Frame statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Request is a task submission.
type Request struct {
	TaskType string            `json:"task_type" yaml:"task_type"`
	Kwargs   capability.Config `json:"kwargs,omitempty" yaml:"kwargs,omitempty"`
	State    capability.State  `json:"state,omitempty" yaml:"state,omitempty"`
}

// Frame is one emission of a task stream. Progress frames carry partial data
// with Done false; the final frame has Done true.
type Frame struct {
	Status string               `json:"status"`
	Data   capability.Payload   `json:"data,omitempty"`
	Error  string               `json:"error,omitempty"`
	Kind   capability.ErrorKind `json:"kind,omitempty"`
	Done   bool                 `json:"done"`
}

type successFrame struct {
	Status string             `json:"status"`
	Data   capability.Payload `json:"data"`
	Done   bool               `json:"done"`
}

// MarshalJSON always writes data on success frames, as {} when the
// capability produced nothing. Error frames omit it.
func (frame Frame) MarshalJSON() ([]byte, error) {
	type plain Frame
	if frame.Status != StatusSuccess {
		return sonic.ConfigStd.Marshal(plain(frame))
	}
	data := frame.Data
	if data == nil {
		data = capability.Payload{}
	}
	return sonic.ConfigStd.Marshal(successFrame{Status: frame.Status, Data: data, Done: frame.Done})
}

// Emitter receives task frames. *stream.Emitter satisfies it.
type Emitter interface {
	Emit(value any) error
}

// Runner executes tasks against a capability registry.
type Runner struct {
	registry       *capability.Registry
	observer       observability.Provider
	defaultTimeout time.Duration
}

// NewRunner returns a Runner. A nil observer disables observability and a
// non-positive timeout selects DefaultTimeout.
func NewRunner(registry *capability.Registry, observer observability.Provider, defaultTimeout time.Duration) *Runner {
	if observer == nil {
		observer = observability.Nop{}
	}
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultTimeout
	}
	return &Runner{registry: registry, observer: observer, defaultTimeout: defaultTimeout}
}

// Validate reports ErrUnknownTask for a task type without a capability.
func (runner *Runner) Validate(request Request) error {
	if request.TaskType == "" {
		return fmt.Errorf("%w: task_type is required", ErrUnknownTask)
	}
	if !runner.registry.Has(request.TaskType) {
		return fmt.Errorf("%w: %q", ErrUnknownTask, request.TaskType)
	}
	return nil
}

// Run executes the task and emits its frames. Validation errors are returned
// before anything is emitted; execution failures are reported in the final
// frame, which is also returned. An emission failure cancels the task.
func (runner *Runner) Run(ctx context.Context, request Request, emitter Emitter) (*Frame, error) {
	if err := runner.Validate(request); err != nil {
		return nil, err
	}
	registration, err := runner.registry.Resolve(request.TaskType)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnknownTask, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	usage := overview.New()
	usage.StartExecution()
	ctx = usage.ToContext(ctx)
	ctx = observability.ContextWithObserver(ctx, runner.observer)
	if request.State != nil {
		ctx = capability.WithState(ctx, request.State)
	}

	taskID := uuid.NewString()
	ctx, span := runner.observer.StartSpan(ctx, observability.SpanTaskRun,
		observability.String(observability.AttrRunID, taskID),
		observability.String(observability.AttrNodeType, registration.Type),
	)
	defer span.End()

	progress := &progressSink{emitter: emitter, cancel: cancel}
	ctx = capability.WithProgress(ctx, progress.report)

	timeout := registration.Timeout
	if timeout <= 0 {
		timeout = runner.defaultTimeout
	}
	start := time.Now()
	payload, err := capability.Invoke(ctx, registration.Handler, request.Kwargs, nil, timeout)
	usage.EndExecution()

	final := &Frame{Status: StatusSuccess, Data: payload, Done: true}
	if err != nil {
		kind, _ := capability.Classify(err)
		final = &Frame{Status: StatusError, Error: err.Error(), Kind: kind, Done: true}
		span.SetStatus(observability.StatusError, err.Error())
		runner.observer.Warn(ctx, "task failed",
			observability.String(observability.AttrRunID, taskID),
			observability.String(observability.AttrNodeType, registration.Type),
			observability.String(observability.AttrErrorKind, string(kind)),
			observability.Error(err),
		)
	} else {
		span.SetStatus(observability.StatusOK, "")
	}

	summary := usage.Summary()
	span.SetAttributes(
		observability.Int64(observability.AttrDurationMs, time.Since(start).Milliseconds()),
		observability.Int(observability.AttrLLMTokensTotal, summary.TotalTokens),
	)
	runner.observer.Counter(observability.MetricNodeCount).Add(ctx, 1,
		observability.String(observability.AttrNodeType, registration.Type),
		observability.String(observability.AttrNodeStatus, final.Status),
	)

	progress.finish(final)
	return final, nil
}

// progressSink forwards partial payloads until the final frame is written,
// so a late report from a timed-out handler never follows the final frame.
type progressSink struct {
	mu      sync.Mutex
	emitter Emitter
	cancel  context.CancelFunc
	closed  bool
}

func (sink *progressSink) report(partial capability.Payload) {
	normalized, err := capability.Normalize(partial)
	if err != nil {
		return
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.closed {
		return
	}
	if err := sink.emitter.Emit(Frame{Status: StatusSuccess, Data: normalized}); err != nil {
		sink.closed = true
		sink.cancel()
	}
}

func (sink *progressSink) finish(final *Frame) {
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.closed {
		return
	}
	sink.closed = true
	_ = sink.emitter.Emit(final)
}
