package depgraph

// Node represents a node in the dependency graph
type Node struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Kind     NodeKind          `json:"kind"`    // package, source, markup, library, resource
	Package  string            `json:"package"` // owning package, "" for the default package
	Path     string            `json:"path,omitempty"`
	Emitted  bool              `json:"emitted,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// NodeKind classifies graph nodes
type NodeKind string

const (
	NodePackage  NodeKind = "package"
	NodeSource   NodeKind = "source"
	NodeMarkup   NodeKind = "markup"
	NodeLibrary  NodeKind = "library"
	NodeResource NodeKind = "resource"
)

// Edge represents a directed edge between two nodes
type Edge struct {
	From  string   `json:"from"`
	To    string   `json:"to"`
	Kind  EdgeKind `json:"kind"`
	Label string   `json:"label,omitempty"`
}

// EdgeKind classifies relationships
type EdgeKind string

const (
	EdgeContains  EdgeKind = "contains"   // package contains unit
	EdgeImports   EdgeKind = "imports"    // unit depends on unit
	EdgeDependsOn EdgeKind = "depends_on" // package depends on package
)

// Graph is the unit graph of one build plan
type Graph struct {
	Root  string     `json:"root"`
	Nodes []Node     `json:"nodes"`
	Edges []Edge     `json:"edges"`
	Stats GraphStats `json:"stats"`
}

// GraphStats holds computed metrics about the graph
type GraphStats struct {
	TotalNodes          int            `json:"total_nodes"`
	TotalEdges          int            `json:"total_edges"`
	PackageCount        int            `json:"package_count"`
	UnitCount           int            `json:"unit_count"`
	LibraryCount        int            `json:"library_count"`
	ResourceCount       int            `json:"resource_count"`
	EmittedCount        int            `json:"emitted_count"`
	MaxFanOut           int            `json:"max_fan_out"`  // most imports
	MaxFanIn            int            `json:"max_fan_in"`   // most importers
	HotspotNode         string         `json:"hotspot_node"` // unit with most imports
	ConnectedComponents int            `json:"connected_components"`
	Cycles              [][]string     `json:"cycles,omitempty"`
	PackageFanOut       map[string]int `json:"package_fan_out"` // per-package outgoing dependency count
}
