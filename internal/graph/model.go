package graph

import (
	"fmt"
	"strings"
)

// NodeType enumerates the entity kinds in the dependency graph.
type NodeType string

const (
	NodeFolder         NodeType = "folder"
	NodeApplication    NodeType = "application"
	NodeSubApplication NodeType = "sub_application"
	NodeJob            NodeType = "controlm_job"
	NodeCondition      NodeType = "condition"
	NodeJCL            NodeType = "jcl"
	NodeProgram        NodeType = "pl1_program"
	NodeInclude        NodeType = "include_file"
	NodeTable          NodeType = "db_table"
)

// EdgeType enumerates the relationship kinds.
type EdgeType string

const (
	EdgeContains EdgeType = "contains"
	EdgeProduces EdgeType = "produces"
	EdgeRequires EdgeType = "requires"
	EdgeExecutes EdgeType = "executes"
	EdgeCalls    EdgeType = "calls"
	EdgeIncludes EdgeType = "includes"
	EdgeDBAccess EdgeType = "db_access"
)

var nodeTags = map[NodeType]string{
	NodeFolder:         "FOLDER",
	NodeApplication:    "APP",
	NodeSubApplication: "SUBAPP",
	NodeJob:            "CONTROLM",
	NodeCondition:      "COND",
	NodeJCL:            "JCL",
	NodeProgram:        "PL1",
	NodeInclude:        "INCLUDE",
	NodeTable:          "DB",
}

// NodeID derives the stable identifier for an entity: "<TAG>::<name>". IDs
// are a pure function of type and natural name so rebuilds produce identical
// node identities.
func NodeID(t NodeType, name string) string {
	return nodeTags[t] + "::" + name
}

// Node is a tagged-variant entity record. Only the fields belonging to the
// node's type are populated; everything else stays at its zero value and is
// omitted from serialized output.
type Node struct {
	ID   string   `json:"id"`
	Type NodeType `json:"type"`
	Name string   `json:"name"`

	// folder
	Datacenter string `json:"datacenter,omitempty"`
	Platform   string `json:"platform,omitempty"`

	// job
	Folder         string `json:"folder,omitempty"`
	Application    string `json:"application,omitempty"`
	SubApplication string `json:"sub_application,omitempty"`
	MemName        string `json:"memname,omitempty"`
	MemLib         string `json:"memlib,omitempty"`
	TaskType       string `json:"tasktype,omitempty"`
	Description    string `json:"description,omitempty"`

	// condition: unions of all producing/consuming job names, deduplicated
	Producers []string `json:"producer_jobs,omitempty"`
	Consumers []string `json:"consuming_jobs,omitempty"`

	// program / include / jcl
	SourcePath string              `json:"source_path,omitempty"`
	Procedures []string            `json:"procedures,omitempty"`
	Calls      []string            `json:"calls,omitempty"`
	Includes   []string            `json:"includes,omitempty"`
	Tables     map[string][]string `json:"sql_operations,omitempty"`
	Procs      []string            `json:"procs,omitempty"`
	Datasets   []string            `json:"datasets,omitempty"`
	Steps      []string            `json:"steps,omitempty"`

	// Missing marks a node created to satisfy a reference whose source file
	// was not found under the scanned roots.
	Missing bool `json:"missing,omitempty"`
}

// Edge is a directed, typed relationship. Ops carries the operation kinds of
// a db_access edge; Attrs carries scalar properties such as condition sign,
// join marker and odate.
type Edge struct {
	Type  EdgeType          `json:"type"`
	From  string            `json:"from"`
	To    string            `json:"to"`
	Attrs map[string]string `json:"attrs,omitempty"`
	Ops   []string          `json:"ops,omitempty"`
}

// Key returns a stable identifier for the edge within its graph.
func (e *Edge) Key() string {
	return fmt.Sprintf("%s::%s->%s", e.Type, e.From, e.To)
}

// Issue is a non-fatal problem accumulated during a build: unreadable files,
// malformed records, name collisions, ambiguous or missing resolutions.
type Issue struct {
	Kind    string `json:"kind"`
	Subject string `json:"subject"`
	Detail  string `json:"detail,omitempty"`
}

// Meta summarizes an assembled graph for reporting and persistence.
type Meta struct {
	TotalNodes      int            `json:"total_nodes"`
	TotalEdges      int            `json:"total_edges"`
	NodeTypes       map[string]int `json:"node_types"`
	EdgeTypes       map[string]int `json:"edge_types"`
	MissingPrograms []string       `json:"missing_programs,omitempty"`
	MissingIncludes []string       `json:"missing_includes,omitempty"`
	Issues          []Issue        `json:"issues,omitempty"`
}

// Graph is the assembled dependency graph. It is immutable after the builder
// finishes; query operations only read it. The adjacency indexes are rebuilt
// on load and excluded from serialization.
type Graph struct {
	Nodes map[string]*Node `json:"nodes"`
	Edges []*Edge          `json:"edges"`
	Meta  Meta             `json:"metadata"`

	edgesFrom map[string][]*Edge
	edgesTo   map[string][]*Edge
}

// Reindex rebuilds the adjacency indexes from the edge list. Callers that
// construct or deserialize a Graph by hand must invoke it before querying.
func (g *Graph) Reindex() {
	g.edgesFrom = make(map[string][]*Edge, len(g.Nodes))
	g.edgesTo = make(map[string][]*Edge, len(g.Nodes))
	for _, e := range g.Edges {
		g.edgesFrom[e.From] = append(g.edgesFrom[e.From], e)
		g.edgesTo[e.To] = append(g.edgesTo[e.To], e)
	}
}

// EdgesFrom returns the outgoing edges of a node.
func (g *Graph) EdgesFrom(id string) []*Edge { return g.edgesFrom[id] }

// EdgesTo returns the incoming edges of a node.
func (g *Graph) EdgesTo(id string) []*Edge { return g.edgesTo[id] }

// Node returns the node with the given identifier, or nil.
func (g *Graph) Node(id string) *Node { return g.Nodes[id] }

// FindByName returns the first node of the given type whose name matches
// case-insensitively.
func (g *Graph) FindByName(t NodeType, name string) *Node {
	if n := g.Nodes[NodeID(t, name)]; n != nil {
		return n
	}
	upper := strings.ToUpper(strings.TrimSpace(name))
	for _, n := range g.Nodes {
		if n.Type == t && strings.ToUpper(n.Name) == upper {
			return n
		}
	}
	return nil
}
