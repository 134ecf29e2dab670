package activation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/vaultgraph/internal/models"
)

type edgeSpec struct {
	from, to string
	weight   float64
}

func testGraph(layers map[string]models.Layer, edges ...edgeSpec) *models.KnowledgeGraph {
	g := &models.KnowledgeGraph{Nodes: map[models.NodeID]*models.KnowledgeNode{}}
	for id, l := range layers {
		g.Nodes[models.NodeID(id)] = &models.KnowledgeNode{ID: models.NodeID(id), Layer: l}
	}
	for _, e := range edges {
		g.Edges = append(g.Edges, models.KnowledgeEdge{
			From: models.NodeID(e.from), To: models.NodeID(e.to), Type: models.EdgeLink, Weight: e.weight,
		})
	}
	g.NodeCount, g.EdgeCount = len(g.Nodes), len(g.Edges)
	return g
}

func scoreOf(results []models.ActivationResult, id string) (models.ActivationResult, bool) {
	for _, r := range results {
		if r.NodeID == models.NodeID(id) {
			return r, true
		}
	}
	return models.ActivationResult{}, false
}

func TestDecayTable(t *testing.T) {
	prev := 0.0
	for l := models.LayerCore; l <= models.LayerContext; l++ {
		d, ok := decayByLayer[l]
		require.True(t, ok, "layer %d missing from decay table", l)
		assert.Greater(t, d, prev, "decay must increase with layer")
		assert.Less(t, d, 1.0)
		prev = d
	}
	assert.Equal(t, 0.5, Decay(models.LayerCore))
	assert.Equal(t, 0.95, Decay(models.LayerContext))
}

func TestSpread_ChainScores(t *testing.T) {
	g := testGraph(
		map[string]models.Layer{"A": models.LayerCore, "B": models.LayerDerived, "C": models.LayerExternal},
		edgeSpec{"A", "B", 0.8},
		edgeSpec{"B", "C", 0.8},
	)
	results := Spread(g, []models.NodeID{"A"}, DefaultParams())

	a, ok := scoreOf(results, "A")
	require.True(t, ok)
	assert.Equal(t, 1.0, a.Score)
	assert.Equal(t, 0, a.Hops)

	b, ok := scoreOf(results, "B")
	require.True(t, ok)
	assert.InDelta(t, 0.4, b.Score, 1e-5)
	assert.Equal(t, 1, b.Hops)

	c, ok := scoreOf(results, "C")
	require.True(t, ok)
	assert.InDelta(t, 0.224, c.Score, 1e-5)
	assert.Equal(t, 2, c.Hops)
	assert.Equal(t, []models.NodeID{"A", "B", "C"}, c.Path)
}

func TestSpread_SortedAndAboveThreshold(t *testing.T) {
	g := testGraph(
		map[string]models.Layer{"s": 5, "a": 5, "b": 4, "c": 3, "d": 2, "e": 1},
		edgeSpec{"s", "a", 0.9},
		edgeSpec{"s", "b", 0.3},
		edgeSpec{"a", "c", 1.0},
		edgeSpec{"b", "d", 1.0},
		edgeSpec{"c", "e", 0.5},
		edgeSpec{"d", "e", 0.2},
	)
	p := DefaultParams()
	p.Threshold = 0.2
	results := Spread(g, []models.NodeID{"s"}, p)

	for i, r := range results {
		assert.GreaterOrEqual(t, r.Score, p.Threshold, "%s below threshold", r.NodeID)
		if i > 0 {
			assert.LessOrEqual(t, r.Score, results[i-1].Score, "results not sorted")
		}
	}
	_, found := scoreOf(results, "e")
	assert.True(t, found)
}

func TestSpread_MaxHopsOne(t *testing.T) {
	g := testGraph(
		map[string]models.Layer{"A": 5, "B": 5, "C": 5},
		edgeSpec{"A", "B", 1.0},
		edgeSpec{"B", "C", 1.0},
	)
	p := DefaultParams()
	p.MaxHops = 1
	results := Spread(g, []models.NodeID{"A"}, p)

	_, hasB := scoreOf(results, "B")
	_, hasC := scoreOf(results, "C")
	assert.True(t, hasB)
	assert.False(t, hasC, "C is only reachable at hop 2")
}

func TestSpread_BestScoreReplacesAndReexpands(t *testing.T) {
	// X is first reached weakly on the direct edge, then strongly through W;
	// the longer path must win and X must be expanded again.
	g := testGraph(
		map[string]models.Layer{"S": 5, "W": 5, "X": 5, "Y": 5},
		edgeSpec{"S", "X", 0.2},
		edgeSpec{"S", "W", 1.0},
		edgeSpec{"W", "X", 1.0},
		edgeSpec{"X", "Y", 1.0},
	)
	results := Spread(g, []models.NodeID{"S"}, DefaultParams())

	x, ok := scoreOf(results, "X")
	require.True(t, ok)
	assert.InDelta(t, 0.95*0.95, x.Score, 1e-9)
	assert.Equal(t, 2, x.Hops)
	assert.Equal(t, []models.NodeID{"S", "W", "X"}, x.Path)

	y, ok := scoreOf(results, "Y")
	require.True(t, ok)
	assert.InDelta(t, 0.95*0.95*0.95, y.Score, 1e-9)
	assert.Equal(t, 3, y.Hops)
}

func TestSpread_CycleSafe(t *testing.T) {
	g := testGraph(
		map[string]models.Layer{"A": 5, "B": 5},
		edgeSpec{"A", "B", 1.0},
		edgeSpec{"B", "A", 1.0},
	)
	results := Spread(g, []models.NodeID{"A"}, DefaultParams())
	require.Len(t, results, 2)
	a, _ := scoreOf(results, "A")
	assert.Equal(t, 1.0, a.Score, "seed is never lowered by a cycle back to it")
}

func TestSpread_FirstDuplicateEdgeWinsTies(t *testing.T) {
	g := testGraph(
		map[string]models.Layer{"A": 5, "B": 5},
		edgeSpec{"A", "B", 0.5},
		edgeSpec{"A", "B", 0.5},
	)
	results := Spread(g, []models.NodeID{"A"}, DefaultParams())
	require.Len(t, results, 2)
}

func TestSpread_ActiveNodeCapCheckedPerIteration(t *testing.T) {
	layers := map[string]models.Layer{"hub": 5}
	var edges []edgeSpec
	for _, leaf := range []string{"l1", "l2", "l3", "l4", "l5"} {
		layers[leaf] = 5
		edges = append(edges, edgeSpec{"hub", leaf, 1.0})
	}
	g := testGraph(layers, edges...)

	p := DefaultParams()
	p.MaxActiveNodes = 2
	results := Spread(g, []models.NodeID{"hub"}, p)

	assert.Len(t, results, 6, "a single expansion burst may exceed the cap")
}

func TestSpread_DecayOverrideAndCap(t *testing.T) {
	g := testGraph(
		map[string]models.Layer{"A": 1, "B": 1},
		edgeSpec{"A", "B", 3.0},
	)
	one := 1.0
	p := DefaultParams()
	p.DecayOverride = &one
	results := Spread(g, []models.NodeID{"A"}, p)

	b, ok := scoreOf(results, "B")
	require.True(t, ok)
	assert.Equal(t, 1.0, b.Score, "scores are capped at 1.0")
}

func TestSpread_UnknownSeedsIgnored(t *testing.T) {
	g := testGraph(map[string]models.Layer{"A": 1})
	assert.Empty(t, Spread(g, []models.NodeID{"missing"}, DefaultParams()))
}

func TestSpread_TiesKeepDiscoveryOrder(t *testing.T) {
	g := testGraph(
		map[string]models.Layer{"S": 5, "z": 5, "a": 5},
		edgeSpec{"S", "z", 0.5},
		edgeSpec{"S", "a", 0.5},
	)
	results := Spread(g, []models.NodeID{"S"}, DefaultParams())
	require.Len(t, results, 3)
	assert.Equal(t, models.NodeID("z"), results[1].NodeID)
	assert.Equal(t, models.NodeID("a"), results[2].NodeID)
}
