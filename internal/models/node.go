// Package models defines the domain types for the vault knowledge graph.
package models

import (
	"path"
	"strings"
	"time"
)

// NodeID identifies a node by its normalized vault-relative path.
// Construct it with NewNodeID so every id goes through the same normalization.
type NodeID string

// NewNodeID normalizes p into a NodeID: forward slashes, no "." or ".."
// segments, no leading or trailing slash.
func NewNodeID(p string) NodeID {
	p = strings.ReplaceAll(strings.TrimSpace(p), `\`, "/")
	if p == "" {
		return ""
	}
	p = path.Clean("/" + p)
	return NodeID(strings.Trim(p, "/"))
}

// String returns the normalized path.
func (id NodeID) String() string { return string(id) }

// Dir returns the directory part of the id ("" for the vault root).
func (id NodeID) Dir() string {
	d := path.Dir(string(id))
	if d == "." {
		return ""
	}
	return d
}

// Segments splits the id into its path segments.
func (id NodeID) Segments() []string {
	if id == "" {
		return nil
	}
	return strings.Split(string(id), "/")
}

// Layer classifies a document by derivation distance from core identity.
type Layer int

// Layers, ordered from identity outward.
const (
	LayerCore     Layer = 1
	LayerDerived  Layer = 2
	LayerExternal Layer = 3
	LayerAction   Layer = 4
	LayerContext  Layer = 5
)

var layerNames = map[Layer]string{
	LayerCore:     "Core",
	LayerDerived:  "Derived",
	LayerExternal: "External",
	LayerAction:   "Action",
	LayerContext:  "Context",
}

// Valid reports whether l is within 1..5.
func (l Layer) Valid() bool {
	return l >= LayerCore && l <= LayerContext
}

// String returns the layer name, or "Unknown".
func (l Layer) String() string {
	if n, ok := layerNames[l]; ok {
		return n
	}
	return "Unknown"
}

// Person is the relationship record carried by person documents.
type Person struct {
	RelationshipType string `json:"relationship_type"`
	IntimacyLevel    int    `json:"intimacy_level"`
}

// Frontmatter is the validated metadata block of a document.
type Frontmatter struct {
	Created       string   `json:"created"`
	Updated       string   `json:"updated"`
	Tags          []string `json:"tags"`
	Layer         Layer    `json:"layer"`
	Title         string   `json:"title,omitempty"`
	Confidence    *float64 `json:"confidence,omitempty"`
	AccessedCount int      `json:"accessed_count,omitempty"`
	Source        string   `json:"source,omitempty"`
	Expires       string   `json:"expires,omitempty"`
	Domain        string   `json:"domain,omitempty"`
	Person        *Person  `json:"person,omitempty"`
}

// KnowledgeNode is one document in the graph.
type KnowledgeNode struct {
	ID            NodeID    `json:"id"`
	Path          string    `json:"path"`
	Title         string    `json:"title"`
	Layer         Layer     `json:"layer"`
	Tags          []string  `json:"tags"`
	Created       string    `json:"created"`
	Updated       string    `json:"updated"`
	MTime         time.Time `json:"mtime"`
	AccessedCount int       `json:"accessed_count"`
	Domain        string    `json:"domain,omitempty"`
	Person        *Person   `json:"person,omitempty"`
	// Links are the normalized targets of the document's relative links,
	// whether or not they resolve to a node.
	Links []NodeID `json:"links,omitempty"`
}

// IsIndex reports whether the node is its directory's index document.
func (n *KnowledgeNode) IsIndex() bool {
	segs := n.ID.Segments()
	if len(segs) == 0 {
		return false
	}
	base := segs[len(segs)-1]
	return strings.TrimSuffix(base, path.Ext(base)) == "index"
}
