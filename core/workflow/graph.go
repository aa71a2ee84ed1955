package workflow

import (
	"maps"

	"github.com/bytedance/sonic"
)

// Node is a unit of work in a workflow graph.
type Node struct {
	// ID uniquely identifies the node within its graph.
	ID string `json:"id" yaml:"id"`

	// Type is the capability identifier resolved through the capability registry.
	Type string `json:"type" yaml:"type"`

	// Config holds the user-supplied options for the capability, such as prompt
	// text, target word count, output language or model identifier.
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
}

// UnmarshalJSON accepts the node configuration either under "config" or under
// "data", the field used by the visual editor.
func (node *Node) UnmarshalJSON(raw []byte) error {
	var wire struct {
		ID     string         `json:"id"`
		Type   string         `json:"type"`
		Config map[string]any `json:"config"`
		Data   map[string]any `json:"data"`
	}
	if err := sonic.ConfigStd.Unmarshal(raw, &wire); err != nil {
		return err
	}

	node.ID = wire.ID
	node.Type = wire.Type
	node.Config = wire.Config
	if node.Config == nil {
		node.Config = wire.Data
	}
	return nil
}

// Edge states that Target depends on the output of Source.
type Edge struct {
	ID     string `json:"id,omitempty" yaml:"id,omitempty"`
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
}

// Graph is a set of nodes and edges. Node order is significant: it is the
// insertion order used to break scheduling ties deterministically.
type Graph struct {
	Nodes []Node `json:"nodes" yaml:"nodes"`
	Edges []Edge `json:"edges" yaml:"edges"`
}

// Clone returns an independent deep copy of the graph, so that concurrent runs
// never share node configuration maps.
func (graph Graph) Clone() Graph {
	cloned := Graph{
		Nodes: make([]Node, len(graph.Nodes)),
		Edges: make([]Edge, len(graph.Edges)),
	}
	for index, node := range graph.Nodes {
		cloned.Nodes[index] = Node{
			ID:     node.ID,
			Type:   node.Type,
			Config: cloneConfig(node.Config),
		}
	}
	copy(cloned.Edges, graph.Edges)
	return cloned
}

// NodeByID returns the node with the given id.
func (graph Graph) NodeByID(nodeID string) (Node, bool) {
	for _, node := range graph.Nodes {
		if node.ID == nodeID {
			return node, true
		}
	}
	return Node{}, false
}

func cloneConfig(config map[string]any) map[string]any {
	if config == nil {
		return nil
	}
	cloned := make(map[string]any, len(config))
	for key, value := range config {
		cloned[key] = cloneValue(value)
	}
	return cloned
}

func cloneValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return cloneConfig(typed)
	case []any:
		cloned := make([]any, len(typed))
		for index, item := range typed {
			cloned[index] = cloneValue(item)
		}
		return cloned
	case []string:
		cloned := make([]string, len(typed))
		copy(cloned, typed)
		return cloned
	case map[string]string:
		return maps.Clone(typed)
	default:
		return value
	}
}
