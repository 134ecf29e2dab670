package models

import "time"

// EdgeType is the kind of relation an edge models.
type EdgeType string

// Edge types.
const (
	EdgeLink         EdgeType = "LINK"
	EdgeParentOf     EdgeType = "PARENT_OF"
	EdgeChildOf      EdgeType = "CHILD_OF"
	EdgeSibling      EdgeType = "SIBLING"
	EdgeRelationship EdgeType = "RELATIONSHIP"
)

// KnowledgeEdge is a directed, weighted edge. Symmetric relations are stored
// as two opposite edges.
type KnowledgeEdge struct {
	From   NodeID   `json:"from"`
	To     NodeID   `json:"to"`
	Type   EdgeType `json:"type"`
	Weight float64  `json:"weight"`
	// CrossDomain marks the weak LINK ties between nodes sharing a domain.
	CrossDomain bool `json:"cross_domain,omitempty"`
}

// KnowledgeGraph is an immutable-by-convention snapshot of the vault graph.
// Every edge endpoint is present in Nodes.
type KnowledgeGraph struct {
	Nodes     map[NodeID]*KnowledgeNode `json:"-"`
	Edges     []KnowledgeEdge           `json:"-"`
	BuiltAt   time.Time                 `json:"built_at"`
	NodeCount int                       `json:"node_count"`
	EdgeCount int                       `json:"edge_count"`
}

// Node returns the node with the given id, or nil.
func (g *KnowledgeGraph) Node(id NodeID) *KnowledgeNode {
	if g == nil {
		return nil
	}
	return g.Nodes[id]
}

// Outgoing returns the edges leaving id, in graph order.
func (g *KnowledgeGraph) Outgoing(id NodeID) []KnowledgeEdge {
	var out []KnowledgeEdge
	for _, e := range g.Edges {
		if e.From == id {
			out = append(out, e)
		}
	}
	return out
}

// Incoming returns the edges arriving at id, in graph order.
func (g *KnowledgeGraph) Incoming(id NodeID) []KnowledgeEdge {
	var out []KnowledgeEdge
	for _, e := range g.Edges {
		if e.To == id {
			out = append(out, e)
		}
	}
	return out
}

// ActivationResult is one node reached by spreading activation.
type ActivationResult struct {
	NodeID NodeID   `json:"node_id"`
	Score  float64  `json:"score"`
	Hops   int      `json:"hops"`
	Path   []NodeID `json:"path"`
}

// StaleNodes is the ledger of documents invalidated since the last full rebuild.
type StaleNodes struct {
	Paths     []string  `json:"paths"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FileState is the on-disk state of one vault file at snapshot time.
type FileState struct {
	MTime    time.Time `json:"mtime"`
	Size     int64     `json:"size"`
	Checksum string    `json:"checksum"`
}

// FileSnapshot records the vault files seen by the last build.
type FileSnapshot struct {
	Files   map[string]FileState `json:"files"`
	TakenAt time.Time            `json:"taken_at"`
}

// FileMetadata is a lightweight representation returned by vault listings.
type FileMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}
