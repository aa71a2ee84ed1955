package scheduler

import (
	"context"
	"time"

	"github.com/ohler55/ojg/jp"

	"github.com/leofalp/agentflow/core/capability"
	"github.com/leofalp/agentflow/core/workflow"
	"github.com/leofalp/agentflow/providers/observability"
)

// ConfigInputPath names the optional node option holding a JSONPath
// expression applied to every upstream payload before the handler sees it.
const ConfigInputPath = "inputPath"

// executeNode runs one handler under its timeout and converts the outcome
// into a terminal NodeResult. It never panics and never blocks past the
// timeout, even when the handler ignores its context.
func (scheduler *Scheduler) executeNode(ctx context.Context, node workflow.Node, upstream []capability.Payload) NodeResult {
	start := time.Now()
	result := NodeResult{Type: node.Type}

	ctx, span := scheduler.observer.StartSpan(ctx, observability.SpanNodeExecute,
		observability.String(observability.AttrNodeID, node.ID),
		observability.String(observability.AttrNodeType, node.Type),
		observability.Int(observability.AttrNodeUpstream, len(upstream)),
	)
	defer func() {
		result.DurationMs = time.Since(start).Milliseconds()
		span.SetAttributes(
			observability.String(observability.AttrNodeStatus, string(result.Status)),
			observability.Int64(observability.AttrDurationMs, result.DurationMs),
		)
		if result.Error != nil {
			span.SetAttributes(observability.String(observability.AttrErrorKind, string(result.Error.Kind)))
			span.SetStatus(observability.StatusError, result.Error.Message)
		} else {
			span.SetStatus(observability.StatusOK, "")
		}
		span.End()
	}()

	payload, err := scheduler.invoke(ctx, node, upstream)
	if err != nil {
		kind, transient := capability.Classify(err)
		result.Status = NodeFailed
		result.Error = &NodeFailure{Kind: kind, Message: err.Error(), Transient: transient}
		return result
	}

	result.Status = NodeSucceeded
	result.Payload = payload
	return result
}

func (scheduler *Scheduler) invoke(ctx context.Context, node workflow.Node, upstream []capability.Payload) (capability.Payload, error) {
	registration, err := scheduler.registry.Resolve(node.Type)
	if err != nil {
		return nil, capability.InvalidConfig("%v", err)
	}

	config := capability.Config(node.Config)
	if config == nil {
		config = capability.Config{}
	}
	if expression := config.String(ConfigInputPath, ""); expression != "" {
		upstream, err = selectInputs(expression, upstream)
		if err != nil {
			return nil, err
		}
	}

	timeout := registration.Timeout
	if timeout <= 0 {
		timeout = scheduler.options.DefaultTimeout
	}
	return capability.Invoke(ctx, registration.Handler, config, upstream, timeout)
}

// selectInputs narrows each upstream payload to the first match of the
// JSONPath expression. Object matches are passed as is; other values are
// wrapped as {"value": match}. Payloads without a match become empty.
func selectInputs(expression string, upstream []capability.Payload) ([]capability.Payload, error) {
	path, err := jp.ParseString(expression)
	if err != nil {
		return nil, capability.InvalidConfig("invalid %s %q: %v", ConfigInputPath, expression, err)
	}

	selected := make([]capability.Payload, len(upstream))
	for index, payload := range upstream {
		matches := path.Get(map[string]any(payload))
		switch {
		case len(matches) == 0:
			selected[index] = capability.Payload{}
		default:
			if object, isObject := matches[0].(map[string]any); isObject {
				selected[index] = object
			} else {
				selected[index] = capability.Payload{"value": matches[0]}
			}
		}
	}
	return selected, nil
}
