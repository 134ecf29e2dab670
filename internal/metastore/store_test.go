package metastore

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/vaultgraph/internal/models"
	"github.com/starford/vaultgraph/internal/storage"
)

var fixedNow = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }

func newStore(t *testing.T) (*Store, *storage.FS) {
	t.Helper()
	fs, err := storage.NewFS(t.TempDir())
	require.NoError(t, err)
	return New(fs, Options{Now: fixedNow}), fs
}

func sampleGraph() *models.KnowledgeGraph {
	a := &models.KnowledgeNode{
		ID: "notes/a.md", Path: "notes/a.md", Title: "A", Layer: models.LayerCore,
		Tags: []string{"go"}, Created: "2025-01-01", Updated: "2025-01-02",
		MTime: fixedNow(), Links: []models.NodeID{"notes/b.md", "missing.md"},
	}
	b := &models.KnowledgeNode{
		ID: "notes/b.md", Path: "notes/b.md", Title: "B", Layer: models.LayerContext,
		Tags: []string{"go", "infra"}, MTime: fixedNow(), Domain: "work",
		Person: &models.Person{RelationshipType: "friend", IntimacyLevel: 4},
	}
	edges := []models.KnowledgeEdge{
		{From: a.ID, To: b.ID, Type: models.EdgeLink, Weight: 0.5},
		{From: a.ID, To: b.ID, Type: models.EdgeSibling, Weight: 0.5},
		{From: b.ID, To: a.ID, Type: models.EdgeLink, Weight: 0.3, CrossDomain: true},
	}
	return &models.KnowledgeGraph{
		Nodes:     map[models.NodeID]*models.KnowledgeNode{a.ID: a, b.ID: b},
		Edges:     edges,
		BuiltAt:   fixedNow(),
		NodeCount: 2,
		EdgeCount: len(edges),
	}
}

func TestSerializeGraph_RoundTrip(t *testing.T) {
	g := sampleGraph()

	data, err := SerializeGraph(g)
	require.NoError(t, err)
	got, err := DeserializeGraph(data)
	require.NoError(t, err)

	assert.Equal(t, g.Nodes, got.Nodes)
	assert.Equal(t, g.Edges, got.Edges)
	assert.True(t, g.BuiltAt.Equal(got.BuiltAt))
	assert.Equal(t, g.NodeCount, got.NodeCount)
	assert.Equal(t, g.EdgeCount, got.EdgeCount)
}

func TestDeserializeGraph_RejectsDanglingEdges(t *testing.T) {
	_, err := DeserializeGraph([]byte(`{"nodes":[{"id":"a.md"}],"edges":[{"from":"a.md","to":"b.md","type":"LINK","weight":1}]}`))
	assert.Error(t, err)
}

func TestLoadGraph_MissingAndCorrupt(t *testing.T) {
	s, fs := newStore(t)
	assert.Nil(t, s.LoadGraph(), "missing cache")

	require.NoError(t, fs.Write(".vaultgraph/graph-index.json", []byte("{not json")))
	assert.Nil(t, s.LoadGraph(), "corrupt cache degrades to absent")

	require.NoError(t, s.SaveGraph(sampleGraph()))
	g := s.LoadGraph()
	require.NotNil(t, g)
	assert.Len(t, g.Nodes, 2)
}

func TestWeights(t *testing.T) {
	s, _ := newStore(t)
	assert.Nil(t, s.LoadWeights())

	g := sampleGraph()
	ranks := map[models.NodeID]float64{"notes/a.md": 0.4, "notes/b.md": 0.6}
	require.NoError(t, s.SaveWeights(NewWeights(g, ranks, fixedNow())))

	w := s.LoadWeights()
	require.NotNil(t, w)
	require.Len(t, w.Edges, 3)
	assert.Equal(t, models.EdgeSibling, w.Edges[1].Type)
	assert.Equal(t, 0.3, w.Edges[2].Weight)
	assert.Equal(t, ranks, w.PageRanks)
}

func TestSnapshot(t *testing.T) {
	s, _ := newStore(t)
	empty := s.LoadSnapshot()
	require.NotNil(t, empty.Files)
	assert.Empty(t, empty.Files)

	snap := &models.FileSnapshot{
		Files:   map[string]models.FileState{"a.md": {MTime: fixedNow(), Size: 12, Checksum: "abc"}},
		TakenAt: fixedNow(),
	}
	require.NoError(t, s.SaveSnapshot(snap))
	got := s.LoadSnapshot()
	assert.Equal(t, int64(12), got.Files["a.md"].Size)
	assert.Equal(t, "abc", got.Files["a.md"].Checksum)
}

func TestAppendStaleNodes_Dedup(t *testing.T) {
	s, _ := newStore(t)

	require.NoError(t, s.AppendStaleNodes("notes/a.md"))
	require.NoError(t, s.AppendStaleNodes("notes/a.md"))
	require.NoError(t, s.AppendStaleNodes("./notes/a.md", "notes\\b.md"))

	sn := s.LoadStaleNodes()
	assert.Equal(t, []string{"notes/a.md", "notes/b.md"}, sn.Paths)
	assert.True(t, sn.UpdatedAt.Equal(fixedNow()))

	require.NoError(t, s.RemoveStaleNodes("notes/a.md", "notes/b.md"))
	assert.Empty(t, s.LoadStaleNodes().Paths)
}

func TestRemoveStaleNodes_KeepsUnlisted(t *testing.T) {
	s, _ := newStore(t)

	require.NoError(t, s.AppendStaleNodes("a.md", "b.md", "c.md"))
	require.NoError(t, s.RemoveStaleNodes("./a.md", "c.md", "unknown.md"))
	assert.Equal(t, []string{"b.md"}, s.LoadStaleNodes().Paths)
}

func TestAppendStaleNodes_Concurrent(t *testing.T) {
	s, _ := newStore(t)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.AppendStaleNodes(fmt.Sprintf("n%02d.md", i)))
		}(i)
	}
	wg.Wait()

	assert.Len(t, s.LoadStaleNodes().Paths, n)
}

func TestLoadStaleNodes_Corrupt(t *testing.T) {
	s, fs := newStore(t)
	require.NoError(t, fs.Write(".vaultgraph/stale-nodes.json", []byte("[")))
	sn := s.LoadStaleNodes()
	assert.NotNil(t, sn.Paths)
	assert.Empty(t, sn.Paths)
}

func TestStaleRatio(t *testing.T) {
	s, _ := newStore(t)
	require.NoError(t, s.AppendStaleNodes("a.md", "b.md"))

	assert.Equal(t, 0.2, s.StaleRatio(10))
	assert.True(t, s.NeedsRebuild(10))
	assert.False(t, s.NeedsRebuild(20), "0.1 is not above the threshold")
	assert.Equal(t, 0.0, s.StaleRatio(0))
}

func TestStaleRatio_CustomThreshold(t *testing.T) {
	fs, err := storage.NewFS(t.TempDir())
	require.NoError(t, err)
	s := New(fs, Options{StaleRatio: 0.5})
	require.NoError(t, s.AppendStaleNodes("a.md", "b.md"))
	assert.False(t, s.NeedsRebuild(10))
}

func TestReset(t *testing.T) {
	s, _ := newStore(t)
	require.NoError(t, s.Reset(), "reset of an empty cache")

	require.NoError(t, s.SaveGraph(sampleGraph()))
	require.NoError(t, s.AppendStaleNodes("a.md"))
	require.NoError(t, s.Reset())

	assert.Nil(t, s.LoadGraph())
	assert.Empty(t, s.LoadStaleNodes().Paths)
}
