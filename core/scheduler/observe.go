package scheduler

import (
	"context"

	"github.com/leofalp/agentflow/providers/observability"
)

func (execution *run) observeRunStart(ctx context.Context) context.Context {
	ctx, execution.span = execution.scheduler.observer.StartSpan(ctx, observability.SpanWorkflowRun,
		observability.String(observability.AttrRunID, execution.runID),
		observability.Int(observability.AttrRunNodes, len(execution.plan.Graph.Nodes)),
		observability.Int(observability.AttrRunConcurrency, execution.scheduler.options.MaxConcurrency),
	)
	execution.scheduler.observer.Info(ctx, "workflow run started",
		observability.String(observability.AttrRunID, execution.runID),
		observability.Int(observability.AttrRunNodes, len(execution.plan.Graph.Nodes)),
	)
	return ctx
}

func (execution *run) observeNode(index int, result NodeResult) {
	node := execution.plan.Graph.Nodes[index]
	attrs := []observability.Attribute{
		observability.String(observability.AttrNodeType, node.Type),
		observability.String(observability.AttrNodeStatus, string(result.Status)),
	}
	ctx := context.Background()
	execution.scheduler.observer.Counter(observability.MetricNodeCount).Add(ctx, 1, attrs...)
	execution.scheduler.observer.Histogram(observability.MetricNodeDuration).Record(ctx, float64(result.DurationMs), attrs...)

	eventAttrs := []observability.Attribute{
		observability.String(observability.AttrNodeID, node.ID),
		observability.String(observability.AttrNodeStatus, string(result.Status)),
	}
	if result.Error != nil {
		eventAttrs = append(eventAttrs, observability.String(observability.AttrErrorKind, string(result.Error.Kind)))
		execution.scheduler.observer.Warn(ctx, "node failed",
			observability.String(observability.AttrRunID, execution.runID),
			observability.String(observability.AttrNodeID, node.ID),
			observability.String(observability.AttrErrorKind, string(result.Error.Kind)),
			observability.String(observability.AttrError, result.Error.Message),
		)
	}
	execution.span.AddEvent(observability.EventNodeCompleted, eventAttrs...)
}

func (execution *run) observeRunEnd(ctx context.Context, summary *Summary) {
	attrs := []observability.Attribute{
		observability.String(observability.AttrRunStatus, string(summary.Status)),
		observability.Int(observability.AttrRunSucceeded, summary.Succeeded),
		observability.Int(observability.AttrRunFailed, summary.Failed),
		observability.Int64(observability.AttrDurationMs, summary.DurationMs),
	}
	execution.span.SetAttributes(attrs...)
	if summary.Status == RunCompleted {
		execution.span.SetStatus(observability.StatusOK, "")
	} else {
		execution.span.SetStatus(observability.StatusError, string(summary.Status))
	}
	execution.span.End()

	status := observability.String(observability.AttrRunStatus, string(summary.Status))
	execution.scheduler.observer.Counter(observability.MetricRunCount).Add(ctx, 1, status)
	execution.scheduler.observer.Histogram(observability.MetricRunDuration).Record(ctx, float64(summary.DurationMs), status)
	execution.scheduler.observer.Info(ctx, "workflow run finished",
		append(attrs, observability.String(observability.AttrRunID, execution.runID))...,
	)
}
