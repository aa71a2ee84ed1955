package capability

// ConfigField describes one configurable option of a capability for the editor.
type ConfigField struct {
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Label   string   `json:"label"`
	Options []string `json:"options,omitempty"`
}

// Template is the public catalog entry of a capability.
type Template struct {
	Type         string        `json:"type"`
	Label        string        `json:"label"`
	Description  string        `json:"description"`
	Category     string        `json:"category"`
	ConfigFields []ConfigField `json:"configFields"`
}
