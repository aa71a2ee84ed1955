package rest

import (
	"github.com/leofalp/agentflow/core/capability"
	"github.com/leofalp/agentflow/core/workflow"
)

// Error codes of ErrorResponse.
const (
	ErrInvalidRequest  = "invalid_request"
	ErrInvalidWorkflow = "invalid_workflow"
	ErrUnknownTask     = "unknown_task"
)

// ErrorResponse is returned with a non-2xx status before any execution.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
	NodeID  string `json:"nodeId,omitempty"`
}

// HealthResponse answers GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// TemplatesResponse answers GET /api/nodes/templates.
type TemplatesResponse struct {
	Nodes []capability.Template `json:"nodes"`
}

// ExecuteRequest is the body of POST /api/workflow/execute.
type ExecuteRequest struct {
	Nodes []workflow.Node  `json:"nodes"`
	Edges []workflow.Edge  `json:"edges"`
	State capability.State `json:"state,omitempty"`
	RunID string           `json:"runId,omitempty"`
}

// Graph returns the workflow part of the request.
func (r ExecuteRequest) Graph() workflow.Graph {
	return workflow.Graph{Nodes: r.Nodes, Edges: r.Edges}
}

// StreamError is emitted in-stream when execution cannot produce its own
// final frame.
type StreamError struct {
	Type    string `json:"type"`
	Status  string `json:"status"`
	Message string `json:"message"`
}
