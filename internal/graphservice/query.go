package graphservice

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/starford/vaultgraph/internal/activation"
	"github.com/starford/vaultgraph/internal/apperr"
	"github.com/starford/vaultgraph/internal/graph"
	"github.com/starford/vaultgraph/internal/models"
	"github.com/starford/vaultgraph/internal/suggest"
)

// keywordSeedLimit caps the index hits taken per keyword seed.
const keywordSeedLimit = 10

// SearchRequest parameterizes a spreading-activation search. Zero values use
// the service defaults.
type SearchRequest struct {
	// Seeds are node paths or free-text keywords.
	Seeds          []string       `json:"seeds"`
	Layers         []models.Layer `json:"layers,omitempty"`
	Threshold      float64        `json:"threshold,omitempty"`
	MaxHops        int            `json:"max_hops,omitempty"`
	MaxActiveNodes int            `json:"max_active_nodes,omitempty"`
	Decay          *float64       `json:"decay,omitempty"`
	Limit          int            `json:"limit,omitempty"`
}

// SearchHit is one ranked search result.
type SearchHit struct {
	NodeID   models.NodeID   `json:"node_id"`
	Title    string          `json:"title"`
	Layer    models.Layer    `json:"layer"`
	Score    float64         `json:"score"`
	Hops     int             `json:"hops"`
	Path     []models.NodeID `json:"path"`
	PageRank float64         `json:"pagerank"`
}

// Search resolves seeds and ranks nodes by spreading activation.
//
// A seed is taken as a node path first (with or without the .md suffix),
// then as a keyword looked up in the SQLite index, then matched against tags
// and titles. It fails with apperr.ErrNotFound when no seed resolves.
func (s *Service) Search(ctx context.Context, req SearchRequest) ([]SearchHit, error) {
	snap, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	seeds := s.resolveSeeds(snap.Graph, req.Seeds)
	if len(seeds) == 0 {
		return nil, fmt.Errorf("graphservice: no node matches seeds %q: %w", req.Seeds, apperr.ErrNotFound)
	}

	p := s.opts.Activation
	if req.Threshold > 0 {
		p.Threshold = req.Threshold
	}
	if req.MaxHops > 0 {
		p.MaxHops = req.MaxHops
	}
	if req.MaxActiveNodes > 0 {
		p.MaxActiveNodes = req.MaxActiveNodes
	}
	if req.Decay != nil {
		p.DecayOverride = req.Decay
	}

	results := activation.SpreadIndexed(snap.Graph, snap.adj, seeds, p)
	hits := make([]SearchHit, 0, len(results))
	for _, r := range results {
		n := snap.Graph.Node(r.NodeID)
		if len(req.Layers) > 0 && !slices.Contains(req.Layers, n.Layer) {
			continue
		}
		hits = append(hits, SearchHit{
			NodeID:   r.NodeID,
			Title:    n.Title,
			Layer:    n.Layer,
			Score:    r.Score,
			Hops:     r.Hops,
			Path:     r.Path,
			PageRank: snap.PageRanks[r.NodeID],
		})
		if req.Limit > 0 && len(hits) == req.Limit {
			break
		}
	}
	return hits, nil
}

func (s *Service) resolveSeeds(g *models.KnowledgeGraph, raw []string) []models.NodeID {
	var out []models.NodeID
	seen := make(map[models.NodeID]struct{})
	add := func(id models.NodeID) bool {
		if g.Node(id) == nil {
			return false
		}
		if _, dup := seen[id]; !dup {
			seen[id] = struct{}{}
			out = append(out, id)
		}
		return true
	}

	for _, seed := range raw {
		seed = strings.TrimSpace(seed)
		if seed == "" {
			continue
		}
		id := models.NewNodeID(seed)
		if add(id) || add(id+".md") {
			continue
		}

		found := false
		if s.db != nil {
			hits, err := s.db.Search(seed, keywordSeedLimit)
			if err != nil {
				s.logger.Warn("graphservice: keyword lookup failed", slog.String("seed", seed), slog.String("error", err.Error()))
			}
			for _, h := range hits {
				if add(models.NewNodeID(h.Path)) {
					found = true
				}
			}
		}
		if found {
			continue
		}

		tag := graph.NormalizeTag(seed)
		lower := strings.ToLower(seed)
		for _, id := range sortedNodeIDs(g) {
			n := g.Nodes[id]
			if slices.Contains(n.Tags, tag) || strings.Contains(strings.ToLower(n.Title), lower) {
				add(id)
			}
		}
	}
	return out
}

// NodeRef is a neighbor in a Navigation.
type NodeRef struct {
	NodeID      models.NodeID   `json:"node_id"`
	Title       string          `json:"title"`
	Layer       models.Layer    `json:"layer"`
	Type        models.EdgeType `json:"type"`
	Weight      float64         `json:"weight"`
	CrossDomain bool            `json:"cross_domain,omitempty"`
}

// Navigation is the immediate neighborhood of one node.
type Navigation struct {
	Node          *models.KnowledgeNode `json:"node"`
	PageRank      float64               `json:"pagerank"`
	Outbound      []NodeRef             `json:"outbound"`
	Inbound       []NodeRef             `json:"inbound"`
	Parent        *NodeRef              `json:"parent,omitempty"`
	Children      []NodeRef             `json:"children"`
	Siblings      []NodeRef             `json:"siblings"`
	Relationships []NodeRef             `json:"relationships"`
}

// Navigate returns the links, hierarchy and relationships around p from a
// single scan of the edge list.
func (s *Service) Navigate(ctx context.Context, p string) (*Navigation, error) {
	snap, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	g := snap.Graph
	id := models.NewNodeID(p)
	n := g.Node(id)
	if n == nil {
		return nil, fmt.Errorf("graphservice: node %q: %w", p, apperr.ErrNotFound)
	}

	nav := &Navigation{
		Node:          n,
		PageRank:      snap.PageRanks[id],
		Outbound:      []NodeRef{},
		Inbound:       []NodeRef{},
		Children:      []NodeRef{},
		Siblings:      []NodeRef{},
		Relationships: []NodeRef{},
	}
	related := make(map[models.NodeID]struct{})
	ref := func(other models.NodeID, e models.KnowledgeEdge) NodeRef {
		o := g.Node(other)
		return NodeRef{NodeID: other, Title: o.Title, Layer: o.Layer, Type: e.Type, Weight: e.Weight, CrossDomain: e.CrossDomain}
	}

	for _, e := range g.Edges {
		switch {
		case e.From == id:
			switch e.Type {
			case models.EdgeLink:
				nav.Outbound = append(nav.Outbound, ref(e.To, e))
			case models.EdgeChildOf:
				r := ref(e.To, e)
				nav.Parent = &r
			case models.EdgeParentOf:
				nav.Children = append(nav.Children, ref(e.To, e))
			case models.EdgeSibling:
				nav.Siblings = append(nav.Siblings, ref(e.To, e))
			case models.EdgeRelationship:
				if _, ok := related[e.To]; !ok {
					related[e.To] = struct{}{}
					nav.Relationships = append(nav.Relationships, ref(e.To, e))
				}
			}
		case e.To == id:
			switch e.Type {
			case models.EdgeLink:
				nav.Inbound = append(nav.Inbound, ref(e.From, e))
			case models.EdgeRelationship:
				if _, ok := related[e.From]; !ok {
					related[e.From] = struct{}{}
					nav.Relationships = append(nav.Relationships, ref(e.From, e))
				}
			}
		}
	}
	return nav, nil
}

// SuggestLinks recommends link targets for an existing or planned note.
func (s *Service) SuggestLinks(ctx context.Context, req suggest.Request) ([]suggest.Suggestion, error) {
	snap, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	if req.MinScore <= 0 {
		req.MinScore = s.opts.MinScore
	}
	if req.MaxSuggestions <= 0 {
		req.MaxSuggestions = s.opts.MaxSuggestions
	}
	return suggest.Suggest(snap.Graph, req)
}

// RankedNode pairs a node with its PageRank.
type RankedNode struct {
	NodeID   models.NodeID `json:"node_id"`
	Title    string        `json:"title"`
	PageRank float64       `json:"pagerank"`
}

// Stats describes the loaded graph.
type Stats struct {
	BuildID      string                  `json:"build_id,omitempty"`
	BuiltAt      time.Time               `json:"built_at"`
	NodeCount    int                     `json:"node_count"`
	EdgeCount    int                     `json:"edge_count"`
	EdgesByType  map[models.EdgeType]int `json:"edges_by_type"`
	NodesByLayer map[string]int          `json:"nodes_by_layer"`
	TopRanked    []RankedNode            `json:"top_ranked"`
	Stale        StaleReport             `json:"stale"`
}

// StaleReport is the state of the stale ledger against the loaded graph.
type StaleReport struct {
	Paths        []string  `json:"paths"`
	UpdatedAt    time.Time `json:"updated_at"`
	Ratio        float64   `json:"ratio"`
	NeedsRebuild bool      `json:"needs_rebuild"`
}

const topRanked = 5

// Stats summarizes the loaded graph.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	snap, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	g := snap.Graph
	st := &Stats{
		BuildID:      snap.BuildID,
		BuiltAt:      g.BuiltAt,
		NodeCount:    g.NodeCount,
		EdgeCount:    g.EdgeCount,
		EdgesByType:  map[models.EdgeType]int{},
		NodesByLayer: map[string]int{},
		Stale:        s.staleReport(g.NodeCount),
	}
	for _, e := range g.Edges {
		st.EdgesByType[e.Type]++
	}
	for _, n := range g.Nodes {
		st.NodesByLayer[n.Layer.String()]++
	}

	ranked := make([]RankedNode, 0, len(g.Nodes))
	for _, id := range sortedNodeIDs(g) {
		ranked = append(ranked, RankedNode{NodeID: id, Title: g.Nodes[id].Title, PageRank: snap.PageRanks[id]})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].PageRank > ranked[j].PageRank })
	st.TopRanked = ranked[:min(topRanked, len(ranked))]
	return st, nil
}

// Stale reports the stale ledger. Without a loaded graph the ratio is 0.
func (s *Service) Stale(ctx context.Context) StaleReport {
	total := 0
	if snap, err := s.Current(ctx); err == nil {
		total = snap.Graph.NodeCount
	}
	return s.staleReport(total)
}

func (s *Service) staleReport(total int) StaleReport {
	sn := s.meta.LoadStaleNodes()
	return StaleReport{
		Paths:        sn.Paths,
		UpdatedAt:    sn.UpdatedAt,
		Ratio:        s.meta.StaleRatio(total),
		NeedsRebuild: s.meta.NeedsRebuild(total),
	}
}

func sortedNodeIDs(g *models.KnowledgeGraph) []models.NodeID {
	ids := make([]models.NodeID, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
