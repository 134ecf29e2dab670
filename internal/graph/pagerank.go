package graph

import (
	"math"
	"sort"

	"github.com/starford/vaultgraph/internal/models"
)

// PageRankOptions tunes the power iteration.
type PageRankOptions struct {
	Damping       float64
	MaxIterations int
	Tolerance     float64
}

// DefaultPageRankOptions returns damping 0.85, 100 iterations, tolerance 1e-6.
func DefaultPageRankOptions() PageRankOptions {
	return PageRankOptions{
		Damping:       0.85,
		MaxIterations: 100,
		Tolerance:     1e-6,
	}
}

// countsForRank reports whether an edge type feeds the transition matrix.
// Hierarchy is modeled in one direction only: CHILD_OF and SIBLING carry no mass.
func countsForRank(t models.EdgeType) bool {
	return t == models.EdgeLink || t == models.EdgeParentOf || t == models.EdgeRelationship
}

// PageRank computes a global importance score per node by power iteration.
// Rank of dangling nodes is redistributed uniformly on every iteration.
func PageRank(g *models.KnowledgeGraph, opts PageRankOptions) map[models.NodeID]float64 {
	ranks := make(map[models.NodeID]float64, len(g.Nodes))
	n := len(g.Nodes)
	if n == 0 {
		return ranks
	}

	ids := make([]models.NodeID, 0, n)
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	index := make(map[models.NodeID]int, n)
	for i, id := range ids {
		index[id] = i
	}

	outDegree := make([]int, n)
	inbound := make([][]int, n)
	for _, e := range g.Edges {
		if !countsForRank(e.Type) {
			continue
		}
		src, okSrc := index[e.From]
		dst, okDst := index[e.To]
		if !okSrc || !okDst {
			continue
		}
		outDegree[src]++
		inbound[dst] = append(inbound[dst], src)
	}

	d := opts.Damping
	size := float64(n)
	rank := make([]float64, n)
	for i := range rank {
		rank[i] = 1.0 / size
	}

	next := make([]float64, n)
	for iter := 0; iter < opts.MaxIterations; iter++ {
		dangling := 0.0
		for i, deg := range outDegree {
			if deg == 0 {
				dangling += rank[i]
			}
		}

		base := (1-d)/size + d*dangling/size
		delta := 0.0
		for i := range next {
			sum := 0.0
			for _, src := range inbound[i] {
				sum += rank[src] / float64(outDegree[src])
			}
			next[i] = base + d*sum
			delta = math.Max(delta, math.Abs(next[i]-rank[i]))
		}
		rank, next = next, rank

		if delta < opts.Tolerance {
			break
		}
	}

	for i, id := range ids {
		ranks[id] = rank[i]
	}
	return ranks
}
