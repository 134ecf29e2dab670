// Package metastore persists the derived graph, its weights, the file
// snapshot and the stale-node ledger as JSON under a vault-local cache
// directory. Everything here can be rebuilt from the vault, so load failures
// degrade to "absent" instead of surfacing as errors.
package metastore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/starford/vaultgraph/internal/models"
	"github.com/starford/vaultgraph/internal/storage"
)

// DefaultDir is the cache directory relative to the vault root.
const DefaultDir = ".vaultgraph"

// DefaultStaleRatio is the stale fraction above which a full rebuild is recommended.
const DefaultStaleRatio = 0.1

// Cache file names.
const (
	GraphFile    = "graph-index.json"
	WeightsFile  = "weights.json"
	SnapshotFile = "file-snapshot.json"
	StaleFile    = "stale-nodes.json"
)

// Options configures a Store.
type Options struct {
	// Dir is the cache directory relative to the vault root.
	Dir string
	// StaleRatio overrides DefaultStaleRatio when positive.
	StaleRatio float64
	Logger     *slog.Logger
	Now        func() time.Time
}

// Store reads and writes cache files through the vault storage provider.
type Store struct {
	fs         storage.Provider
	dir        string
	staleRatio float64
	logger     *slog.Logger
	now        func() time.Time

	// staleMu guards the read-modify-write of the stale ledger.
	staleMu sync.Mutex
}

// New creates a Store writing under opts.Dir of the vault.
func New(vault storage.Provider, opts Options) *Store {
	s := &Store{
		fs:         vault,
		dir:        opts.Dir,
		staleRatio: opts.StaleRatio,
		logger:     opts.Logger,
		now:        opts.Now,
	}
	if s.dir == "" {
		s.dir = DefaultDir
	}
	if s.staleRatio <= 0 {
		s.staleRatio = DefaultStaleRatio
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Dir returns the cache directory relative to the vault root.
func (s *Store) Dir() string { return s.dir }

func (s *Store) file(name string) string { return path.Join(s.dir, name) }

func (s *Store) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("metastore: encode %s: %w", name, err)
	}
	if err := s.fs.Write(s.file(name), data); err != nil {
		return fmt.Errorf("metastore: write %s: %w", name, err)
	}
	return nil
}

// readJSON decodes a cache file into v. It reports false when the file is
// missing or unreadable; corruption is logged.
func (s *Store) readJSON(name string, v any) bool {
	data, err := s.fs.Read(s.file(name))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("metastore: read failed", slog.String("file", name), slog.String("error", err.Error()))
		}
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		s.logger.Warn("metastore: corrupt cache file", slog.String("file", name), slog.String("error", err.Error()))
		return false
	}
	return true
}

// graphFile is the on-disk shape of the graph index.
type graphFile struct {
	Nodes     []*models.KnowledgeNode `json:"nodes"`
	Edges     []models.KnowledgeEdge  `json:"edges"`
	BuiltAt   time.Time               `json:"built_at"`
	NodeCount int                     `json:"node_count"`
	EdgeCount int                     `json:"edge_count"`
}

// SerializeGraph encodes g with its nodes ordered by id and its edges in graph order.
func SerializeGraph(g *models.KnowledgeGraph) ([]byte, error) {
	gf := graphFile{
		Nodes:     make([]*models.KnowledgeNode, 0, len(g.Nodes)),
		Edges:     g.Edges,
		BuiltAt:   g.BuiltAt,
		NodeCount: g.NodeCount,
		EdgeCount: g.EdgeCount,
	}
	for _, n := range g.Nodes {
		gf.Nodes = append(gf.Nodes, n)
	}
	sort.Slice(gf.Nodes, func(i, j int) bool { return gf.Nodes[i].ID < gf.Nodes[j].ID })
	if gf.Edges == nil {
		gf.Edges = []models.KnowledgeEdge{}
	}
	return json.MarshalIndent(gf, "", "  ")
}

// DeserializeGraph decodes data produced by SerializeGraph.
func DeserializeGraph(data []byte) (*models.KnowledgeGraph, error) {
	var gf graphFile
	if err := json.Unmarshal(data, &gf); err != nil {
		return nil, fmt.Errorf("metastore: decode graph: %w", err)
	}
	g := &models.KnowledgeGraph{
		Nodes:     make(map[models.NodeID]*models.KnowledgeNode, len(gf.Nodes)),
		Edges:     gf.Edges,
		BuiltAt:   gf.BuiltAt,
		NodeCount: gf.NodeCount,
		EdgeCount: gf.EdgeCount,
	}
	for _, n := range gf.Nodes {
		if n == nil || n.ID == "" {
			return nil, errors.New("metastore: decode graph: node without id")
		}
		g.Nodes[n.ID] = n
	}
	for _, e := range g.Edges {
		if g.Nodes[e.From] == nil || g.Nodes[e.To] == nil {
			return nil, fmt.Errorf("metastore: decode graph: dangling edge %s -> %s", e.From, e.To)
		}
	}
	return g, nil
}

// SaveGraph persists g.
func (s *Store) SaveGraph(g *models.KnowledgeGraph) error {
	data, err := SerializeGraph(g)
	if err != nil {
		return fmt.Errorf("metastore: encode graph: %w", err)
	}
	if err := s.fs.Write(s.file(GraphFile), data); err != nil {
		return fmt.Errorf("metastore: write graph: %w", err)
	}
	return nil
}

// LoadGraph returns the cached graph, or nil when it is missing or corrupt.
func (s *Store) LoadGraph() *models.KnowledgeGraph {
	data, err := s.fs.Read(s.file(GraphFile))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("metastore: read failed", slog.String("file", GraphFile), slog.String("error", err.Error()))
		}
		return nil
	}
	g, err := DeserializeGraph(data)
	if err != nil {
		s.logger.Warn("metastore: corrupt cache file", slog.String("file", GraphFile), slog.String("error", err.Error()))
		return nil
	}
	return g
}

// WeightEntry is one weighted edge in the weights file.
type WeightEntry struct {
	From   models.NodeID   `json:"from"`
	To     models.NodeID   `json:"to"`
	Type   models.EdgeType `json:"type"`
	Weight float64         `json:"weight"`
}

// Weights are the computed edge weights and PageRank scores of a build.
type Weights struct {
	Edges      []WeightEntry             `json:"edges"`
	PageRanks  map[models.NodeID]float64 `json:"pageranks"`
	ComputedAt time.Time                 `json:"computed_at"`
}

// NewWeights captures the edge weights of g alongside ranks.
func NewWeights(g *models.KnowledgeGraph, ranks map[models.NodeID]float64, at time.Time) *Weights {
	w := &Weights{
		Edges:      make([]WeightEntry, len(g.Edges)),
		PageRanks:  ranks,
		ComputedAt: at,
	}
	for i, e := range g.Edges {
		w.Edges[i] = WeightEntry{From: e.From, To: e.To, Type: e.Type, Weight: e.Weight}
	}
	return w
}

// SaveWeights persists w.
func (s *Store) SaveWeights(w *Weights) error { return s.writeJSON(WeightsFile, w) }

// LoadWeights returns the cached weights, or nil when missing or corrupt.
func (s *Store) LoadWeights() *Weights {
	var w Weights
	if !s.readJSON(WeightsFile, &w) {
		return nil
	}
	return &w
}

// SaveSnapshot persists the file snapshot of the last build.
func (s *Store) SaveSnapshot(snap *models.FileSnapshot) error {
	return s.writeJSON(SnapshotFile, snap)
}

// LoadSnapshot returns the cached snapshot; missing or corrupt files yield an empty one.
func (s *Store) LoadSnapshot() *models.FileSnapshot {
	snap := &models.FileSnapshot{}
	if !s.readJSON(SnapshotFile, snap) || snap.Files == nil {
		snap.Files = map[string]models.FileState{}
	}
	return snap
}

// LoadStaleNodes returns the stale ledger; missing or corrupt files yield an empty ledger.
func (s *Store) LoadStaleNodes() models.StaleNodes {
	var sn models.StaleNodes
	if !s.readJSON(StaleFile, &sn) {
		return models.StaleNodes{Paths: []string{}}
	}
	if sn.Paths == nil {
		sn.Paths = []string{}
	}
	return sn
}

// AppendStaleNodes adds paths to the ledger. Paths already present are
// ignored, and nothing is written when no path is new.
func (s *Store) AppendStaleNodes(paths ...string) error {
	s.staleMu.Lock()
	defer s.staleMu.Unlock()

	sn := s.LoadStaleNodes()
	set := make(map[string]struct{}, len(sn.Paths)+len(paths))
	for _, p := range sn.Paths {
		set[p] = struct{}{}
	}

	added := false
	for _, p := range paths {
		p = models.NewNodeID(p).String()
		if p == "" {
			continue
		}
		if _, ok := set[p]; ok {
			continue
		}
		set[p] = struct{}{}
		sn.Paths = append(sn.Paths, p)
		added = true
	}
	if !added {
		return nil
	}

	sort.Strings(sn.Paths)
	sn.UpdatedAt = s.now()
	return s.writeJSON(StaleFile, sn)
}

// RemoveStaleNodes drops paths from the ledger. A full rebuild passes the
// ledger it started from, so paths marked while it ran survive.
func (s *Store) RemoveStaleNodes(paths ...string) error {
	s.staleMu.Lock()
	defer s.staleMu.Unlock()

	drop := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		drop[models.NewNodeID(p).String()] = struct{}{}
	}
	sn := s.LoadStaleNodes()
	kept := make([]string, 0, len(sn.Paths))
	for _, p := range sn.Paths {
		if _, ok := drop[p]; !ok {
			kept = append(kept, p)
		}
	}
	return s.writeJSON(StaleFile, models.StaleNodes{Paths: kept, UpdatedAt: s.now()})
}

// StaleRatio is the number of stale paths divided by totalNodes, or 0 for an empty graph.
func (s *Store) StaleRatio(totalNodes int) float64 {
	if totalNodes <= 0 {
		return 0
	}
	return float64(len(s.LoadStaleNodes().Paths)) / float64(totalNodes)
}

// NeedsRebuild reports whether the stale ratio exceeds the configured threshold.
func (s *Store) NeedsRebuild(totalNodes int) bool {
	return s.StaleRatio(totalNodes) > s.staleRatio
}

// Reset removes every cache file. Missing files are not an error.
func (s *Store) Reset() error {
	s.staleMu.Lock()
	defer s.staleMu.Unlock()

	for _, name := range []string{GraphFile, WeightsFile, SnapshotFile, StaleFile} {
		if err := s.fs.Delete(s.file(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("metastore: reset %s: %w", name, err)
		}
	}
	return nil
}
