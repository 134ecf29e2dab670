package graph

import (
	"path"
	"sort"
	"time"

	"github.com/starford/vaultgraph/internal/models"
)

// CrossDomainWeight is the fixed weight of the weak ties between nodes that
// share a domain.
const CrossDomainWeight = 0.3

// symmetricRelationships produce two opposite RELATIONSHIP edges; any other
// relationship type produces a single directed edge.
var symmetricRelationships = map[string]bool{
	"friend":       true,
	"family":       true,
	"colleague":    true,
	"acquaintance": true,
	"partner":      true,
	"sibling":      true,
}

// BuildOptions controls graph construction.
type BuildOptions struct {
	// IncludeOrphans keeps nodes that no edge touches.
	IncludeOrphans bool
	// Now stamps BuiltAt; defaults to time.Now.
	Now func() time.Time
}

// Build derives the full typed edge set from nodes. Output depends only on
// the input set: nodes are processed in id order. Edge weights are left at
// zero except for cross-domain ties; call AssignWeights afterwards.
// It returns the graph and the orphan ids, sorted.
func Build(nodes []*models.KnowledgeNode, opts BuildOptions) (*models.KnowledgeGraph, []models.NodeID) {
	byID := make(map[models.NodeID]*models.KnowledgeNode, len(nodes))
	for _, n := range nodes {
		if n == nil || n.ID == "" {
			continue
		}
		byID[n.ID] = n
	}

	ids := make([]models.NodeID, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var edges []models.KnowledgeEdge
	edges = append(edges, linkEdges(ids, byID)...)
	edges = append(edges, hierarchyEdges(ids, byID)...)
	edges = append(edges, siblingEdges(ids)...)
	edges = append(edges, relationshipEdges(ids, byID)...)
	edges = append(edges, domainEdges(ids, byID)...)

	touched := make(map[models.NodeID]struct{}, len(ids))
	for _, e := range edges {
		touched[e.From] = struct{}{}
		touched[e.To] = struct{}{}
	}
	var orphans []models.NodeID
	for _, id := range ids {
		if _, ok := touched[id]; !ok {
			orphans = append(orphans, id)
		}
	}

	if !opts.IncludeOrphans {
		for _, id := range orphans {
			delete(byID, id)
		}
	}

	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	return &models.KnowledgeGraph{
		Nodes:     byID,
		Edges:     edges,
		BuiltAt:   now(),
		NodeCount: len(byID),
		EdgeCount: len(edges),
	}, orphans
}

// linkEdges keeps document links whose target exists; broken links are dropped.
func linkEdges(ids []models.NodeID, byID map[models.NodeID]*models.KnowledgeNode) []models.KnowledgeEdge {
	var out []models.KnowledgeEdge
	for _, id := range ids {
		for _, target := range byID[id].Links {
			if target == id {
				continue
			}
			if _, ok := byID[target]; !ok {
				continue
			}
			out = append(out, models.KnowledgeEdge{From: id, To: target, Type: models.EdgeLink})
		}
	}
	return out
}

// hierarchyEdges connects each node to the index of its directory, or of the
// parent directory when the node is itself an index. No index, no edge.
func hierarchyEdges(ids []models.NodeID, byID map[models.NodeID]*models.KnowledgeNode) []models.KnowledgeEdge {
	indexOf := make(map[string]models.NodeID)
	for _, id := range ids {
		if !byID[id].IsIndex() {
			continue
		}
		dir := id.Dir()
		if _, ok := indexOf[dir]; !ok {
			indexOf[dir] = id
		}
	}

	var out []models.KnowledgeEdge
	for _, id := range ids {
		dir := id.Dir()
		if byID[id].IsIndex() {
			if dir == "" {
				continue
			}
			dir = parentDir(dir)
		}
		parent, ok := indexOf[dir]
		if !ok || parent == id {
			continue
		}
		out = append(out,
			models.KnowledgeEdge{From: parent, To: id, Type: models.EdgeParentOf},
			models.KnowledgeEdge{From: id, To: parent, Type: models.EdgeChildOf},
		)
	}
	return out
}

func parentDir(dir string) string {
	p := path.Dir(dir)
	if p == "." || p == "/" {
		return ""
	}
	return p
}

// siblingEdges links every pair of nodes in the same directory, both ways.
func siblingEdges(ids []models.NodeID) []models.KnowledgeEdge {
	groups := make(map[string][]models.NodeID)
	var dirs []string
	for _, id := range ids {
		d := id.Dir()
		if _, ok := groups[d]; !ok {
			dirs = append(dirs, d)
		}
		groups[d] = append(groups[d], id)
	}
	sort.Strings(dirs)

	var out []models.KnowledgeEdge
	for _, d := range dirs {
		out = append(out, pairEdges(groups[d], models.EdgeSibling, false)...)
	}
	return out
}

// relationshipEdges connects person nodes pairwise. A pair is symmetric only
// when both people carry a symmetric relationship type; otherwise a single
// edge runs in id order.
func relationshipEdges(ids []models.NodeID, byID map[models.NodeID]*models.KnowledgeNode) []models.KnowledgeEdge {
	var people []*models.KnowledgeNode
	for _, id := range ids {
		if byID[id].Person != nil {
			people = append(people, byID[id])
		}
	}

	var out []models.KnowledgeEdge
	for i := 0; i < len(people); i++ {
		for j := i + 1; j < len(people); j++ {
			a, b := people[i], people[j]
			out = append(out, models.KnowledgeEdge{From: a.ID, To: b.ID, Type: models.EdgeRelationship})
			if symmetricRelationships[a.Person.RelationshipType] && symmetricRelationships[b.Person.RelationshipType] {
				out = append(out, models.KnowledgeEdge{From: b.ID, To: a.ID, Type: models.EdgeRelationship})
			}
		}
	}
	return out
}

// domainEdges adds the weak cross-domain LINK ties, both ways.
func domainEdges(ids []models.NodeID, byID map[models.NodeID]*models.KnowledgeNode) []models.KnowledgeEdge {
	groups := make(map[string][]models.NodeID)
	var domains []string
	for _, id := range ids {
		d := byID[id].Domain
		if d == "" {
			continue
		}
		if _, ok := groups[d]; !ok {
			domains = append(domains, d)
		}
		groups[d] = append(groups[d], id)
	}
	sort.Strings(domains)

	var out []models.KnowledgeEdge
	for _, d := range domains {
		out = append(out, pairEdges(groups[d], models.EdgeLink, true)...)
	}
	return out
}

func pairEdges(members []models.NodeID, typ models.EdgeType, crossDomain bool) []models.KnowledgeEdge {
	if len(members) < 2 {
		return nil
	}
	weight := 0.0
	if crossDomain {
		weight = CrossDomainWeight
	}
	var out []models.KnowledgeEdge
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			out = append(out,
				models.KnowledgeEdge{From: members[i], To: members[j], Type: typ, Weight: weight, CrossDomain: crossDomain},
				models.KnowledgeEdge{From: members[j], To: members[i], Type: typ, Weight: weight, CrossDomain: crossDomain},
			)
		}
	}
	return out
}
