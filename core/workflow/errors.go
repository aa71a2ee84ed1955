package workflow

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidGraph is matched by every ValidationError.
	ErrInvalidGraph = errors.New("invalid workflow graph")

	// ErrCycleDetected is matched by validation errors of kind KindCycleDetected.
	ErrCycleDetected = errors.New("cycle detected")

	// ErrDanglingEdge is matched by validation errors of kind KindDanglingEdge.
	ErrDanglingEdge = errors.New("dangling edge")

	// ErrUnknownCapability is matched by validation errors of kind KindUnknownCapability.
	ErrUnknownCapability = errors.New("unknown capability")
)

// ValidationKind classifies why a graph was rejected.
type ValidationKind string

const (
	KindEmptyGraph        ValidationKind = "empty_graph"
	KindInvalidNode       ValidationKind = "invalid_node"
	KindDuplicateNode     ValidationKind = "duplicate_node"
	KindDuplicateEdge     ValidationKind = "duplicate_edge"
	KindDanglingEdge      ValidationKind = "dangling_edge"
	KindCycleDetected     ValidationKind = "cycle_detected"
	KindUnknownCapability ValidationKind = "unknown_capability"
)

// ValidationError reports a graph that must not be executed. It is always
// detected before scheduling starts, so no node of the graph has run.
type ValidationError struct {
	Kind    ValidationKind `json:"kind"`
	NodeID  string         `json:"nodeId,omitempty"`
	Message string         `json:"message"`
}

func (validationError *ValidationError) Error() string {
	if validationError.NodeID == "" {
		return fmt.Sprintf("%s: %s", validationError.Kind, validationError.Message)
	}
	return fmt.Sprintf("%s (node %q): %s", validationError.Kind, validationError.NodeID, validationError.Message)
}

// Is lets callers match validation failures with errors.Is against the
// package sentinels.
func (validationError *ValidationError) Is(target error) bool {
	switch target {
	case ErrInvalidGraph:
		return true
	case ErrCycleDetected:
		return validationError.Kind == KindCycleDetected
	case ErrDanglingEdge:
		return validationError.Kind == KindDanglingEdge
	case ErrUnknownCapability:
		return validationError.Kind == KindUnknownCapability
	default:
		return false
	}
}

func invalidf(kind ValidationKind, nodeID string, format string, args ...any) *ValidationError {
	return &ValidationError{Kind: kind, NodeID: nodeID, Message: fmt.Sprintf(format, args...)}
}

func cycleError(path []string) *ValidationError {
	nodeID := ""
	if len(path) > 0 {
		nodeID = path[0]
	}
	return &ValidationError{
		Kind:    KindCycleDetected,
		NodeID:  nodeID,
		Message: "cycle: " + strings.Join(path, " -> "),
	}
}
