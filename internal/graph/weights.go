package graph

import "github.com/starford/vaultgraph/internal/models"

// intimacyStep maps intimacy levels 1..5 onto weights 0.2..1.0.
const intimacyStep = 0.2

// AssignWeights sets the weight of every edge in g by edge type.
func AssignWeights(g *models.KnowledgeGraph) {
	for i := range g.Edges {
		g.Edges[i].Weight = EdgeWeight(g, g.Edges[i])
	}
}

// EdgeWeight returns the [0,1] weight for e:
//   - LINK: path-prefix overlap, an approximation of content similarity;
//     cross-domain ties keep CrossDomainWeight.
//   - PARENT_OF, CHILD_OF, SIBLING: Wu-Palmer style depth score.
//   - RELATIONSHIP: the target's intimacy level times 0.2.
//   - anything unresolvable: 1.0.
func EdgeWeight(g *models.KnowledgeGraph, e models.KnowledgeEdge) float64 {
	switch e.Type {
	case models.EdgeLink:
		if e.CrossDomain {
			return CrossDomainWeight
		}
		return PathOverlap(e.From, e.To)
	case models.EdgeParentOf, models.EdgeChildOf, models.EdgeSibling:
		return WuPalmer(e.From, e.To)
	case models.EdgeRelationship:
		if to := g.Node(e.To); to != nil && to.Person != nil {
			if lvl := to.Person.IntimacyLevel; lvl >= 1 && lvl <= 5 {
				return IntimacyWeight(lvl)
			}
		}
	}
	return 1.0
}

// IntimacyWeight is linear in the intimacy level.
func IntimacyWeight(level int) float64 {
	return float64(level) * intimacyStep
}

// PathOverlap divides the number of common leading path segments by the
// segment count of the longer path, capped at 1.
func PathOverlap(a, b models.NodeID) float64 {
	sa, sb := a.Segments(), b.Segments()
	longer := max(len(sa), len(sb))
	if longer == 0 {
		return 1.0
	}
	return min(float64(commonPrefix(sa, sb))/float64(longer), 1.0)
}

// WuPalmer approximates Wu-Palmer similarity on the path tree:
// 2 * common prefix depth / (depth a + depth b).
func WuPalmer(a, b models.NodeID) float64 {
	sa, sb := a.Segments(), b.Segments()
	denom := len(sa) + len(sb)
	if denom == 0 {
		return 1.0
	}
	return 2 * float64(commonPrefix(sa, sb)) / float64(denom)
}

func commonPrefix(a, b []string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}

// NormalizeWeights rescales ws so the maximum becomes 1.0, keeping ratios.
// All-zero input is returned unchanged.
func NormalizeWeights(ws []float64) []float64 {
	out := make([]float64, len(ws))
	copy(out, ws)

	maxW := 0.0
	for _, w := range ws {
		maxW = max(maxW, w)
	}
	if maxW <= 0 {
		return out
	}
	for i := range out {
		out[i] /= maxW
	}
	return out
}

// NormalizeEdgeWeights applies NormalizeWeights to a batch of edges in place.
func NormalizeEdgeWeights(edges []models.KnowledgeEdge) {
	ws := make([]float64, len(edges))
	for i, e := range edges {
		ws[i] = e.Weight
	}
	for i, w := range NormalizeWeights(ws) {
		edges[i].Weight = w
	}
}
