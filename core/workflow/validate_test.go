package workflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type staticResolver map[string]bool

func (resolver staticResolver) Has(typeTag string) bool { return resolver[typeTag] }

func chain(nodeIDs ...string) Graph {
	graph := Graph{}
	for index, nodeID := range nodeIDs {
		graph.Nodes = append(graph.Nodes, Node{ID: nodeID, Type: "documentGenerator"})
		if index > 0 {
			graph.Edges = append(graph.Edges, Edge{Source: nodeIDs[index-1], Target: nodeID})
		}
	}
	return graph
}

func TestValidate_AcceptsChain(t *testing.T) {
	require.NoError(t, Validate(chain("a", "b", "c")))
}

func TestValidate_RejectsEmptyGraph(t *testing.T) {
	err := Validate(Graph{})

	var validationError *ValidationError
	require.ErrorAs(t, err, &validationError)
	assert.Equal(t, KindEmptyGraph, validationError.Kind)
	assert.ErrorIs(t, err, ErrInvalidGraph)
}

func TestValidate_RejectsDuplicateNode(t *testing.T) {
	graph := Graph{Nodes: []Node{{ID: "a", Type: "x"}, {ID: "a", Type: "y"}}}

	var validationError *ValidationError
	require.ErrorAs(t, Validate(graph), &validationError)
	assert.Equal(t, KindDuplicateNode, validationError.Kind)
	assert.Equal(t, "a", validationError.NodeID)
}

func TestValidate_RejectsNodeWithoutType(t *testing.T) {
	graph := Graph{Nodes: []Node{{ID: "a"}}}

	var validationError *ValidationError
	require.ErrorAs(t, Validate(graph), &validationError)
	assert.Equal(t, KindInvalidNode, validationError.Kind)
}

func TestValidate_RejectsDanglingEdge(t *testing.T) {
	graph := chain("a", "b")
	graph.Edges = append(graph.Edges, Edge{Source: "b", Target: "ghost"})

	err := Validate(graph)
	require.ErrorIs(t, err, ErrDanglingEdge)
	assert.NotErrorIs(t, err, ErrCycleDetected)
}

func TestValidate_DanglingEdgeReportedBeforeCycle(t *testing.T) {
	graph := chain("a", "b")
	graph.Edges = append(graph.Edges,
		Edge{Source: "b", Target: "a"},
		Edge{Source: "a", Target: "missing"},
	)

	assert.ErrorIs(t, Validate(graph), ErrDanglingEdge)
}

func TestValidate_RejectsDuplicateEdge(t *testing.T) {
	graph := chain("a", "b")
	graph.Edges = append(graph.Edges, Edge{Source: "a", Target: "b"})

	var validationError *ValidationError
	require.ErrorAs(t, Validate(graph), &validationError)
	assert.Equal(t, KindDuplicateEdge, validationError.Kind)
}

func TestValidate_RejectsSelfLoop(t *testing.T) {
	graph := Graph{
		Nodes: []Node{{ID: "a", Type: "x"}},
		Edges: []Edge{{Source: "a", Target: "a"}},
	}

	err := Validate(graph)
	require.ErrorIs(t, err, ErrCycleDetected)
	assert.Contains(t, err.Error(), "a -> a")
}

func TestValidate_ReportsCyclePath(t *testing.T) {
	graph := chain("a", "b", "c")
	graph.Edges = append(graph.Edges, Edge{Source: "c", Target: "b"})

	var validationError *ValidationError
	require.ErrorAs(t, Validate(graph), &validationError)
	assert.Equal(t, KindCycleDetected, validationError.Kind)
	assert.Equal(t, "cycle: b -> c -> b", validationError.Message)
}

func TestValidateWith_RejectsUnknownCapability(t *testing.T) {
	graph := Graph{Nodes: []Node{
		{ID: "a", Type: "documentGenerator"},
		{ID: "b", Type: "teleporter"},
	}}

	err := ValidateWith(graph, staticResolver{"documentGenerator": true})
	require.ErrorIs(t, err, ErrUnknownCapability)

	var validationError *ValidationError
	require.ErrorAs(t, err, &validationError)
	assert.Equal(t, "b", validationError.NodeID)
}

func TestNewPlan_BuildsTables(t *testing.T) {
	graph := Graph{
		Nodes: []Node{{ID: "a", Type: "x"}, {ID: "b", Type: "x"}, {ID: "c", Type: "x"}},
		Edges: []Edge{{Source: "a", Target: "c"}, {Source: "b", Target: "c"}},
	}

	plan, err := NewPlan(graph)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 0, 2}, plan.InDegree)
	assert.Equal(t, []int{0, 1}, plan.Predecessors[2])
	assert.Equal(t, []int{2}, plan.Successors[0])
	assert.Equal(t, []int{0, 1}, plan.Roots())
	assert.Equal(t, []string{"a", "b", "c"}, plan.TopologicalOrder())
}

func TestNode_UnmarshalAcceptsEditorData(t *testing.T) {
	var node Node
	require.NoError(t, json.Unmarshal([]byte(`{"id":"n1","type":"researchAgent","data":{"topic":"batteries"}}`), &node))

	assert.Equal(t, "n1", node.ID)
	assert.Equal(t, "batteries", node.Config["topic"])
}

func TestGraph_CloneIsIndependent(t *testing.T) {
	original := Graph{Nodes: []Node{{ID: "a", Type: "x", Config: map[string]any{
		"nested": map[string]any{"k": "v"},
	}}}}

	cloned := original.Clone()
	cloned.Nodes[0].Config["nested"].(map[string]any)["k"] = "changed"

	assert.Equal(t, "v", original.Nodes[0].Config["nested"].(map[string]any)["k"])
}

// randomDAG draws a graph whose edges always point from a lower to a higher
// insertion index, which makes it acyclic by construction.
func randomDAG(t *rapid.T) Graph {
	nodeCount := rapid.IntRange(1, 12).Draw(t, "nodes")
	graph := Graph{}
	for index := 0; index < nodeCount; index++ {
		graph.Nodes = append(graph.Nodes, Node{ID: fmt.Sprintf("n%d", index), Type: "x"})
	}
	for target := 1; target < nodeCount; target++ {
		for source := 0; source < target; source++ {
			if rapid.Bool().Draw(t, fmt.Sprintf("edge_%d_%d", source, target)) {
				graph.Edges = append(graph.Edges, Edge{Source: graph.Nodes[source].ID, Target: graph.Nodes[target].ID})
			}
		}
	}
	return graph
}

func TestValidate_PropertyAcyclicGraphsAccepted(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		graph := randomDAG(t)

		plan, err := NewPlan(graph)
		if err != nil {
			t.Fatalf("valid DAG rejected: %v", err)
		}
		if got := len(plan.TopologicalOrder()); got != len(graph.Nodes) {
			t.Fatalf("topological order has %d nodes, want %d", got, len(graph.Nodes))
		}
	})
}

func TestValidate_PropertyBackEdgeRejected(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		nodeCount := rapid.IntRange(2, 10).Draw(t, "nodes")
		graph := chain(func() []string {
			ids := make([]string, nodeCount)
			for index := range ids {
				ids[index] = fmt.Sprintf("n%d", index)
			}
			return ids
		}()...)

		from := rapid.IntRange(1, nodeCount-1).Draw(t, "from")
		to := rapid.IntRange(0, from-1).Draw(t, "to")
		graph.Edges = append(graph.Edges, Edge{Source: graph.Nodes[from].ID, Target: graph.Nodes[to].ID})

		err := Validate(graph)
		if !errors.Is(err, ErrCycleDetected) {
			t.Fatalf("expected cycle error, got %v", err)
		}
	})
}
