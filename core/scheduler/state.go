package scheduler

import (
	"github.com/leofalp/agentflow/core/capability"
	"github.com/leofalp/agentflow/core/overview"
)

// NodeStatus is the lifecycle state of one node in a run.
type NodeStatus string

const (
	NodePending   NodeStatus = "pending"
	NodeReady     NodeStatus = "ready"
	NodeRunning   NodeStatus = "running"
	NodeSucceeded NodeStatus = "succeeded"
	NodeFailed    NodeStatus = "failed"
)

// Terminal reports whether the status is final.
func (status NodeStatus) Terminal() bool {
	return status == NodeSucceeded || status == NodeFailed
}

// RunStatus is the status of a whole run.
type RunStatus string

const (
	RunRunning             RunStatus = "running"
	RunCompleted           RunStatus = "completed"
	RunCompletedWithErrors RunStatus = "completed-with-errors"
	RunFailed              RunStatus = "failed"
)

// NodeFailure describes why a node failed.
type NodeFailure struct {
	Kind      capability.ErrorKind `json:"kind"`
	Message   string               `json:"message"`
	Transient bool                 `json:"transient,omitempty"`
}

// NodeResult is the recorded outcome of one node.
type NodeResult struct {
	Status     NodeStatus         `json:"status"`
	Type       string             `json:"type"`
	Payload    capability.Payload `json:"payload,omitempty"`
	Error      *NodeFailure       `json:"error,omitempty"`
	DurationMs int64              `json:"durationMs"`
}

// Emission types.
const (
	EmissionNode    = "node"
	EmissionSummary = "summary"
)

// NodeEmission is written once per settled node. NodeResults holds every node
// settled so far, including this one.
type NodeEmission struct {
	Type        string                `json:"type"`
	RunID       string                `json:"runId"`
	NodeID      string                `json:"nodeId"`
	Node        NodeResult            `json:"node"`
	Completed   int                   `json:"completed"`
	Total       int                   `json:"total"`
	Status      RunStatus             `json:"status"`
	NodeResults map[string]NodeResult `json:"nodeResults"`
}

// Summary is the final emission of a run and the return value of Run.
type Summary struct {
	Type        string                `json:"type"`
	RunID       string                `json:"runId"`
	Status      RunStatus             `json:"status"`
	Completed   int                   `json:"completed"`
	Total       int                   `json:"total"`
	Succeeded   int                   `json:"succeeded"`
	Failed      int                   `json:"failed"`
	Canceled    bool                  `json:"canceled,omitempty"`
	NodeResults map[string]NodeResult `json:"nodeResults"`
	Usage       overview.Summary      `json:"usage"`
	DurationMs  int64                 `json:"durationMs"`
}

// runStatus derives the overall status from the succeeded and failed counts.
func runStatus(succeeded, failed int) RunStatus {
	switch {
	case failed == 0 && succeeded > 0:
		return RunCompleted
	case succeeded == 0:
		return RunFailed
	default:
		return RunCompletedWithErrors
	}
}
