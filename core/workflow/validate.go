package workflow

// CapabilityResolver reports whether a capability type is registered.
// The capability registry satisfies it.
type CapabilityResolver interface {
	Has(typeTag string) bool
}

// Validate checks the structural invariants of a graph: at least one node,
// unique non-empty node ids and types, no duplicate edges, every edge endpoint
// present, and no cycles. Dangling edges are rejected before cycle detection
// runs. Validate has no side effects.
func Validate(graph Graph) error {
	_, err := NewPlan(graph)
	return err
}

// ValidateWith runs Validate and then checks that every node type resolves
// in the given registry, so unknown capabilities surface before execution.
func ValidateWith(graph Graph, resolver CapabilityResolver) error {
	if err := Validate(graph); err != nil {
		return err
	}
	for _, node := range graph.Nodes {
		if !resolver.Has(node.Type) {
			return invalidf(KindUnknownCapability, node.ID, "no capability registered for type %q", node.Type)
		}
	}
	return nil
}

// Plan is the index-addressed form of a validated graph. It is computed once
// per run and is read-only afterwards.
type Plan struct {
	// Graph is the validated graph the plan was computed from.
	Graph Graph

	// Index maps a node id to its position in Graph.Nodes.
	Index map[string]int

	// InDegree holds the number of incoming edges of each node.
	InDegree []int

	// Successors lists, per node, the nodes that depend on it in edge order.
	Successors [][]int

	// Predecessors lists, per node, the nodes it depends on in edge order.
	Predecessors [][]int
}

// NewPlan validates the graph and builds its execution tables.
func NewPlan(graph Graph) (*Plan, error) {
	if len(graph.Nodes) == 0 {
		return nil, invalidf(KindEmptyGraph, "", "graph must contain at least one node")
	}

	index := make(map[string]int, len(graph.Nodes))
	for position, node := range graph.Nodes {
		if node.ID == "" {
			return nil, invalidf(KindInvalidNode, "", "node at position %d has an empty id", position)
		}
		if node.Type == "" {
			return nil, invalidf(KindInvalidNode, node.ID, "node has an empty type")
		}
		if _, exists := index[node.ID]; exists {
			return nil, invalidf(KindDuplicateNode, node.ID, "node id is used more than once")
		}
		index[node.ID] = position
	}

	if err := validateEdges(graph.Edges, index); err != nil {
		return nil, err
	}

	plan := &Plan{
		Graph:        graph,
		Index:        index,
		InDegree:     make([]int, len(graph.Nodes)),
		Successors:   make([][]int, len(graph.Nodes)),
		Predecessors: make([][]int, len(graph.Nodes)),
	}
	for _, graphEdge := range graph.Edges {
		source, target := index[graphEdge.Source], index[graphEdge.Target]
		plan.Successors[source] = append(plan.Successors[source], target)
		plan.Predecessors[target] = append(plan.Predecessors[target], source)
		plan.InDegree[target]++
	}

	if cyclePath := plan.findCycle(); cyclePath != nil {
		return nil, cycleError(cyclePath)
	}

	return plan, nil
}

// validateEdges rejects edges whose endpoints are missing and repeated edges.
func validateEdges(edges []Edge, index map[string]int) error {
	seen := make(map[[2]string]bool, len(edges))
	for _, graphEdge := range edges {
		if _, exists := index[graphEdge.Source]; !exists {
			return invalidf(KindDanglingEdge, graphEdge.Source, "edge %s -> %s references a missing source node", graphEdge.Source, graphEdge.Target)
		}
		if _, exists := index[graphEdge.Target]; !exists {
			return invalidf(KindDanglingEdge, graphEdge.Target, "edge %s -> %s references a missing target node", graphEdge.Source, graphEdge.Target)
		}

		key := [2]string{graphEdge.Source, graphEdge.Target}
		if seen[key] {
			return invalidf(KindDuplicateEdge, graphEdge.Target, "edge %s -> %s is declared more than once", graphEdge.Source, graphEdge.Target)
		}
		seen[key] = true
	}
	return nil
}

// findCycle walks the graph depth-first in node insertion order. A node met
// again while it is still being visited closes a cycle; the returned path
// starts and ends with that node. It returns nil for acyclic graphs.
func (plan *Plan) findCycle() []string {
	const (
		unvisited = iota
		visiting
		visited
	)

	marks := make([]int, len(plan.Graph.Nodes))
	stack := make([]int, 0, len(plan.Graph.Nodes))

	var visit func(nodeIndex int) []string
	visit = func(nodeIndex int) []string {
		marks[nodeIndex] = visiting
		stack = append(stack, nodeIndex)

		for _, successor := range plan.Successors[nodeIndex] {
			switch marks[successor] {
			case visiting:
				return plan.cyclePath(stack, successor)
			case unvisited:
				if path := visit(successor); path != nil {
					return path
				}
			}
		}

		stack = stack[:len(stack)-1]
		marks[nodeIndex] = visited
		return nil
	}

	for nodeIndex := range plan.Graph.Nodes {
		if marks[nodeIndex] != unvisited {
			continue
		}
		if path := visit(nodeIndex); path != nil {
			return path
		}
	}
	return nil
}

func (plan *Plan) cyclePath(stack []int, start int) []string {
	path := make([]string, 0, len(stack)+1)
	inCycle := false
	for _, nodeIndex := range stack {
		if nodeIndex == start {
			inCycle = true
		}
		if inCycle {
			path = append(path, plan.Graph.Nodes[nodeIndex].ID)
		}
	}
	return append(path, plan.Graph.Nodes[start].ID)
}

// Roots returns the indices of nodes without incoming edges in insertion order.
func (plan *Plan) Roots() []int {
	roots := make([]int, 0)
	for nodeIndex, degree := range plan.InDegree {
		if degree == 0 {
			roots = append(roots, nodeIndex)
		}
	}
	return roots
}

// TopologicalOrder returns one deterministic topological order of node ids,
// preferring lower insertion positions when several nodes are available.
func (plan *Plan) TopologicalOrder() []string {
	inDegree := make([]int, len(plan.InDegree))
	copy(inDegree, plan.InDegree)

	order := make([]string, 0, len(inDegree))
	available := plan.Roots()
	for len(available) > 0 {
		next := available[0]
		available = available[1:]
		order = append(order, plan.Graph.Nodes[next].ID)

		for _, successor := range plan.Successors[next] {
			inDegree[successor]--
			if inDegree[successor] == 0 {
				available = insertSorted(available, successor)
			}
		}
	}
	return order
}

func insertSorted(sorted []int, value int) []int {
	position := len(sorted)
	for index, existing := range sorted {
		if existing > value {
			position = index
			break
		}
	}
	sorted = append(sorted, 0)
	copy(sorted[position+1:], sorted[position:])
	sorted[position] = value
	return sorted
}
