package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/leofalp/agentflow/core/capability"
	"github.com/leofalp/agentflow/core/overview"
	"github.com/leofalp/agentflow/core/workflow"
	"github.com/leofalp/agentflow/providers/observability"
)

const (
	// DefaultMaxConcurrency bounds how many nodes of one run execute at once.
	DefaultMaxConcurrency = 4

	// DefaultNodeTimeout applies to capabilities registered without a timeout.
	DefaultNodeTimeout = 2 * time.Minute
)

// Emitter receives node and summary emissions. *stream.Emitter satisfies it.
type Emitter interface {
	Emit(value any) error
}

// Options configure a Scheduler. Zero values select the defaults.
type Options struct {
	MaxConcurrency int
	DefaultTimeout time.Duration
}

// Scheduler runs workflow graphs against a capability registry. One
// Scheduler serves any number of concurrent runs.
type Scheduler struct {
	registry *capability.Registry
	options  Options
	observer observability.Provider
}

// New returns a Scheduler. A nil observer disables observability.
func New(registry *capability.Registry, options Options, observer observability.Provider) *Scheduler {
	if options.MaxConcurrency <= 0 {
		options.MaxConcurrency = DefaultMaxConcurrency
	}
	if options.DefaultTimeout <= 0 {
		options.DefaultTimeout = DefaultNodeTimeout
	}
	if observer == nil {
		observer = observability.Nop{}
	}
	return &Scheduler{registry: registry, options: options, observer: observer}
}

// RunOption customizes a single run.
type RunOption func(*runConfig)

type runConfig struct {
	runID string
	state capability.State
}

// WithRunID sets the run id instead of generating one.
func WithRunID(runID string) RunOption {
	return func(config *runConfig) { config.runID = runID }
}

// WithState passes caller-owned state to every capability of the run.
func WithState(state capability.State) RunOption {
	return func(config *runConfig) { config.state = state }
}

// Validate checks the graph structure and that every node type is registered.
func (scheduler *Scheduler) Validate(graph workflow.Graph) error {
	return workflow.ValidateWith(graph, scheduler.registry)
}

// Run validates graph and executes it. A validation error is returned before
// anything is emitted. Otherwise Run always returns the summary, which is also
// the last emission; emission failures cancel the run but are not errors.
func (scheduler *Scheduler) Run(ctx context.Context, graph workflow.Graph, emitter Emitter, options ...RunOption) (*Summary, error) {
	graph = graph.Clone()
	if err := scheduler.Validate(graph); err != nil {
		return nil, err
	}
	plan, err := workflow.NewPlan(graph)
	if err != nil {
		return nil, err
	}

	config := runConfig{runID: uuid.NewString()}
	for _, option := range options {
		option(&config)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	usage := overview.New()
	usage.StartExecution()
	runCtx = usage.ToContext(runCtx)
	runCtx = observability.ContextWithObserver(runCtx, scheduler.observer)
	if config.state != nil {
		runCtx = capability.WithState(runCtx, config.state)
	}

	execution := &run{
		scheduler: scheduler,
		plan:      plan,
		runID:     config.runID,
		emitter:   emitter,
		cancel:    cancel,
		usage:     usage,
	}
	runCtx = execution.observeRunStart(runCtx)
	summary := execution.execute(runCtx)
	execution.observeRunEnd(runCtx, summary)

	return summary, nil
}

// completion carries a finished dispatch back to the coordinating goroutine.
type completion struct {
	index  int
	result NodeResult
}

// run is the state of one execution. Only the coordinating goroutine touches
// it; node goroutines communicate through the completions channel.
type run struct {
	scheduler *Scheduler
	plan      *workflow.Plan
	runID     string
	emitter   Emitter
	cancel    context.CancelFunc
	usage     *overview.Overview
	span      observability.Span

	start          time.Time
	statuses       []NodeStatus
	results        []NodeResult
	remaining      []int
	upstreamFailed []bool
	ready          readyQueue

	completed int
	succeeded int
	failed    int
	canceled  bool
}

func (execution *run) execute(ctx context.Context) *Summary {
	nodeCount := len(execution.plan.Graph.Nodes)
	execution.start = time.Now()
	execution.statuses = make([]NodeStatus, nodeCount)
	execution.results = make([]NodeResult, nodeCount)
	execution.remaining = append([]int(nil), execution.plan.InDegree...)
	execution.upstreamFailed = make([]bool, nodeCount)
	for index := range execution.statuses {
		execution.statuses[index] = NodePending
	}
	for _, root := range execution.plan.Roots() {
		execution.markReady(root)
	}

	// Buffered to the node count so abandoned dispatches never block.
	completions := make(chan completion, nodeCount)
	running := 0

	for execution.completed < nodeCount {
		for !execution.canceled && running < execution.scheduler.options.MaxConcurrency && execution.ready.Len() > 0 {
			index := execution.ready.pop()
			execution.dispatch(ctx, index, completions)
			running++
		}

		if running == 0 || execution.canceled {
			break
		}

		select {
		case finished := <-completions:
			running--
			execution.settle(ctx, finished.index, finished.result)
		case <-ctx.Done():
			execution.canceled = true
		}
	}

	if execution.completed < nodeCount {
		execution.settleCanceled()
	}
	return execution.finish(ctx)
}

func (execution *run) markReady(index int) {
	execution.statuses[index] = NodeReady
	execution.ready.push(index)
}

func (execution *run) dispatch(ctx context.Context, index int, completions chan<- completion) {
	execution.statuses[index] = NodeRunning
	node := execution.plan.Graph.Nodes[index]

	// Consumers run concurrently with the encoder, so each gets its own copy.
	predecessors := execution.plan.Predecessors[index]
	upstream := make([]capability.Payload, 0, len(predecessors))
	for _, predecessor := range predecessors {
		upstream = append(upstream, capability.Clone(execution.results[predecessor].Payload))
	}

	go func() {
		completions <- completion{index: index, result: execution.scheduler.executeNode(ctx, node, upstream)}
	}()
}

// settle records a terminal result and cascades through successors. Nodes
// whose last predecessor settled become ready, or settle immediately as
// upstream_failed if any predecessor failed.
func (execution *run) settle(ctx context.Context, index int, result NodeResult) {
	pending := []completion{{index: index, result: result}}

	for len(pending) > 0 {
		current := pending[0]
		pending = pending[1:]

		execution.record(current.index, current.result)
		execution.emitNode(ctx, current.index)

		for _, successor := range execution.plan.Successors[current.index] {
			if current.result.Status == NodeFailed {
				execution.upstreamFailed[successor] = true
			}
			execution.remaining[successor]--
			if execution.remaining[successor] > 0 {
				continue
			}
			if execution.upstreamFailed[successor] {
				pending = append(pending, completion{index: successor, result: NodeResult{
					Status: NodeFailed,
					Type:   execution.plan.Graph.Nodes[successor].Type,
					Error: &NodeFailure{
						Kind:    capability.KindUpstream,
						Message: fmt.Sprintf("upstream node %q failed", execution.firstFailedPredecessor(successor)),
					},
				}})
				continue
			}
			execution.markReady(successor)
		}
	}
}

// firstFailedPredecessor names the failed dependency that comes first in
// edge order, so the message does not depend on completion timing.
func (execution *run) firstFailedPredecessor(index int) string {
	for _, predecessor := range execution.plan.Predecessors[index] {
		if execution.statuses[predecessor] == NodeFailed {
			return execution.plan.Graph.Nodes[predecessor].ID
		}
	}
	return ""
}

func (execution *run) record(index int, result NodeResult) {
	execution.statuses[index] = result.Status
	execution.results[index] = result
	execution.completed++
	if result.Status == NodeSucceeded {
		execution.succeeded++
	} else {
		execution.failed++
	}
	execution.observeNode(index, result)
}

// settleCanceled fails every node that has not settled. Results of nodes
// still running are discarded when they arrive.
func (execution *run) settleCanceled() {
	execution.canceled = true
	for index, status := range execution.statuses {
		if status.Terminal() {
			continue
		}
		execution.record(index, NodeResult{
			Status: NodeFailed,
			Type:   execution.plan.Graph.Nodes[index].Type,
			Error:  &NodeFailure{Kind: capability.KindCanceled, Message: "run canceled before the node finished"},
		})
	}
}

func (execution *run) emitNode(ctx context.Context, index int) {
	if execution.canceled {
		return
	}
	node := execution.plan.Graph.Nodes[index]
	err := execution.emitter.Emit(NodeEmission{
		Type:        EmissionNode,
		RunID:       execution.runID,
		NodeID:      node.ID,
		Node:        execution.results[index],
		Completed:   execution.completed,
		Total:       len(execution.plan.Graph.Nodes),
		Status:      RunRunning,
		NodeResults: execution.settledResults(),
	})
	if err != nil {
		execution.canceled = true
		execution.cancel()
		execution.scheduler.observer.Warn(ctx, "stream closed, cancelling run",
			observability.String(observability.AttrRunID, execution.runID),
			observability.Error(err),
		)
	}
}

func (execution *run) settledResults() map[string]NodeResult {
	settled := make(map[string]NodeResult, execution.completed)
	for index, status := range execution.statuses {
		if status.Terminal() {
			settled[execution.plan.Graph.Nodes[index].ID] = execution.results[index]
		}
	}
	return settled
}

func (execution *run) finish(ctx context.Context) *Summary {
	execution.usage.EndExecution()
	summary := &Summary{
		Type:        EmissionSummary,
		RunID:       execution.runID,
		Status:      runStatus(execution.succeeded, execution.failed),
		Completed:   execution.completed,
		Total:       len(execution.plan.Graph.Nodes),
		Succeeded:   execution.succeeded,
		Failed:      execution.failed,
		Canceled:    execution.canceled,
		NodeResults: execution.settledResults(),
		Usage:       execution.usage.Summary(),
		DurationMs:  time.Since(execution.start).Milliseconds(),
	}
	if err := execution.emitter.Emit(summary); err != nil {
		execution.scheduler.observer.Debug(ctx, "summary emission failed",
			observability.String(observability.AttrRunID, execution.runID),
			observability.Error(err),
		)
	}
	return summary
}
