// Package activation retrieves relevant nodes by decayed spreading activation
// from a set of seed nodes.
//
// Traversal is breadth-first over a FIFO queue. Cycle avoidance is per path:
// a node already on the current path is skipped, but the same node may be
// reached again through another path, and the map keeps the best score seen
// for each node rather than summing incoming activation.
package activation

import (
	"slices"
	"sort"

	"github.com/starford/vaultgraph/internal/models"
)

// Default traversal parameters.
const (
	DefaultThreshold      = 0.1
	DefaultMaxHops        = 5
	DefaultMaxActiveNodes = 100
)

// decayByLayer is the per-hop multiplier applied at the node being expanded.
// It grows with layer distance from identity and covers all five layers.
var decayByLayer = map[models.Layer]float64{
	models.LayerCore:     0.5,
	models.LayerDerived:  0.7,
	models.LayerExternal: 0.8,
	models.LayerAction:   0.9,
	models.LayerContext:  0.95,
}

// Decay returns the decay factor for layer l; unknown layers get the Core value.
func Decay(l models.Layer) float64 {
	if d, ok := decayByLayer[l]; ok {
		return d
	}
	return decayByLayer[models.LayerCore]
}

// Params bounds a traversal.
type Params struct {
	Threshold      float64
	MaxHops        int
	MaxActiveNodes int
	// DecayOverride, when set, replaces the per-layer table for every hop.
	DecayOverride *float64
}

// DefaultParams returns threshold 0.1, 5 hops, 100 active nodes.
func DefaultParams() Params {
	return Params{
		Threshold:      DefaultThreshold,
		MaxHops:        DefaultMaxHops,
		MaxActiveNodes: DefaultMaxActiveNodes,
	}
}

func (p Params) withDefaults() Params {
	if p.Threshold <= 0 {
		p.Threshold = DefaultThreshold
	}
	if p.MaxHops <= 0 {
		p.MaxHops = DefaultMaxHops
	}
	if p.MaxActiveNodes <= 0 {
		p.MaxActiveNodes = DefaultMaxActiveNodes
	}
	return p
}

// Adjacency indexes outgoing edges per node, preserving graph edge order so
// the first of several duplicate (from, to) edges still wins ties.
type Adjacency map[models.NodeID][]models.KnowledgeEdge

// NewAdjacency builds the outgoing-edge index of g.
func NewAdjacency(g *models.KnowledgeGraph) Adjacency {
	adj := make(Adjacency, len(g.Nodes))
	for _, e := range g.Edges {
		adj[e.From] = append(adj[e.From], e)
	}
	return adj
}

type queued struct {
	id    models.NodeID
	score float64
	hops  int
	path  []models.NodeID
}

// Spread runs spreading activation over g from seeds. Seeds missing from the
// graph are ignored. See SpreadIndexed.
func Spread(g *models.KnowledgeGraph, seeds []models.NodeID, p Params) []models.ActivationResult {
	return SpreadIndexed(g, NewAdjacency(g), seeds, p)
}

// SpreadIndexed is Spread with a prebuilt adjacency index.
//
// Each seed starts at 1.0 on hop 0. Reaching a target costs
// score * edge weight * decay(layer of the expanding node). Scores under the
// threshold are dropped and the rest are capped at 1.0. A recorded result is
// replaced only by a strictly higher score, and the replaced node is queued
// again while it has hops left.
//
// The active-node cap is checked once per dequeued node, so a single
// expansion may push the result count past MaxActiveNodes.
//
// Results are sorted by descending score; ties keep discovery order.
func SpreadIndexed(g *models.KnowledgeGraph, adj Adjacency, seeds []models.NodeID, p Params) []models.ActivationResult {
	p = p.withDefaults()

	best := make(map[models.NodeID]*models.ActivationResult)
	var order []models.NodeID
	var queue []queued

	for _, seed := range seeds {
		if g.Node(seed) == nil {
			continue
		}
		if _, dup := best[seed]; dup {
			continue
		}
		path := []models.NodeID{seed}
		best[seed] = &models.ActivationResult{NodeID: seed, Score: 1.0, Hops: 0, Path: path}
		order = append(order, seed)
		queue = append(queue, queued{id: seed, score: 1.0, hops: 0, path: path})
	}

	for len(queue) > 0 {
		if len(best) >= p.MaxActiveNodes {
			break
		}

		cur := queue[0]
		queue = queue[1:]

		if cur.hops >= p.MaxHops {
			continue
		}

		decay := Decay(g.Node(cur.id).Layer)
		if p.DecayOverride != nil {
			decay = *p.DecayOverride
		}

		for _, e := range adj[cur.id] {
			if slices.Contains(cur.path, e.To) {
				continue
			}
			if g.Node(e.To) == nil {
				continue
			}

			score := cur.score * e.Weight * decay
			if score < p.Threshold {
				continue
			}
			score = min(score, 1.0)

			prev, seen := best[e.To]
			if seen && score <= prev.Score {
				continue
			}

			path := make([]models.NodeID, len(cur.path)+1)
			copy(path, cur.path)
			path[len(cur.path)] = e.To

			hops := cur.hops + 1
			if seen {
				prev.Score, prev.Hops, prev.Path = score, hops, path
			} else {
				best[e.To] = &models.ActivationResult{NodeID: e.To, Score: score, Hops: hops, Path: path}
				order = append(order, e.To)
			}

			if hops < p.MaxHops {
				queue = append(queue, queued{id: e.To, score: score, hops: hops, path: path})
			}
		}
	}

	results := make([]models.ActivationResult, 0, len(order))
	for _, id := range order {
		results = append(results, *best[id])
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results
}
