package graphservice

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/starford/vaultgraph/internal/graph"
	"github.com/starford/vaultgraph/internal/index"
	"github.com/starford/vaultgraph/internal/metastore"
	"github.com/starford/vaultgraph/internal/models"
	"github.com/starford/vaultgraph/internal/parser"
)

// Mode is how a build treated unchanged files.
type Mode string

// Build modes.
const (
	ModeFull        Mode = "full"
	ModeIncremental Mode = "incremental"
)

// BuildRequest controls a build.
type BuildRequest struct {
	// Full reparses every file even when the cache is usable.
	Full           bool `json:"full"`
	IncludeOrphans bool `json:"include_orphans"`
}

// Diagnostic reports a document left out of the graph.
type Diagnostic struct {
	Path   string   `json:"path"`
	Errors []string `json:"errors"`
}

// BuildResult summarizes a build.
type BuildResult struct {
	BuildID     string             `json:"build_id"`
	Mode        Mode               `json:"mode"`
	NodeCount   int                `json:"node_count"`
	EdgeCount   int                `json:"edge_count"`
	Orphans     []models.NodeID    `json:"orphans"`
	Invalid     []Diagnostic       `json:"invalid"`
	BrokenLinks []index.BrokenLink `json:"broken_links,omitempty"`
	Reparsed    int                `json:"reparsed"`
	Duration    time.Duration      `json:"duration"`
	BuiltAt     time.Time          `json:"built_at"`
}

// Build rebuilds the graph from the vault and swaps in the new snapshot.
//
// Unless Full is set, files whose mtime, size and checksum match the last
// snapshot reuse their cached node. A full rebuild is forced when there is
// no cached graph or the stale ratio exceeds the threshold; only a full
// rebuild clears the stale ledger.
func (s *Service) Build(ctx context.Context, req BuildRequest) (*BuildResult, error) {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	start := s.now()
	res := &BuildResult{
		BuildID: uuid.NewString(),
		Mode:    ModeIncremental,
		Orphans: []models.NodeID{},
		Invalid: []Diagnostic{},
	}

	metas, err := s.store.List("")
	if err != nil {
		return nil, fmt.Errorf("graphservice: build: %w", err)
	}

	var prev *models.KnowledgeGraph
	if snap, err := s.Current(ctx); err == nil {
		prev = snap.Graph
	}
	prevFiles := s.meta.LoadSnapshot().Files
	if req.Full || prev == nil || s.meta.NeedsRebuild(prev.NodeCount) {
		res.Mode = ModeFull
	}
	// Only the paths stale before the scan are settled by this build.
	settled := s.meta.LoadStaleNodes().Paths

	files := make(map[string]models.FileState, len(metas))
	nodes := make([]*models.KnowledgeNode, 0, len(metas))
	for _, m := range metas {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		state := models.FileState{MTime: m.UpdatedAt, Size: m.Size, Checksum: m.Checksum}
		files[m.Path] = state
		id := models.NewNodeID(m.Path)

		if res.Mode == ModeIncremental {
			if old, ok := prevFiles[m.Path]; ok && sameFile(old, state) {
				if n := prev.Node(id); n != nil {
					nodes = append(nodes, n)
					continue
				}
			}
		}

		data, err := s.store.Read(m.Path)
		if err != nil {
			s.logger.Warn("graphservice: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		res.Reparsed++

		parsed := parser.Parse(data)
		if !parsed.HasFrontmatter() {
			res.Invalid = append(res.Invalid, Diagnostic{Path: m.Path, Errors: []string{parsed.Reason}})
			continue
		}
		fm, errs := parser.Validate(parsed.Frontmatter)
		if len(errs) > 0 {
			res.Invalid = append(res.Invalid, Diagnostic{Path: m.Path, Errors: errs.Strings()})
			continue
		}
		nodes = append(nodes, graph.NewNode(m.Path, m.UpdatedAt, parsed, fm))
	}

	g, orphans := graph.Build(nodes, graph.BuildOptions{IncludeOrphans: req.IncludeOrphans, Now: s.now})
	graph.AssignWeights(g)
	ranks := graph.PageRank(g, graph.DefaultPageRankOptions())
	if orphans != nil {
		res.Orphans = orphans
	}
	sort.Slice(res.Invalid, func(i, j int) bool { return res.Invalid[i].Path < res.Invalid[j].Path })

	s.persist(g, ranks, files, res.Mode, settled)

	if s.db != nil {
		if err := index.Sync(s.db, s.store, s.logger); err != nil {
			s.logger.Warn("graphservice: index sync failed", slog.String("error", err.Error()))
		} else if broken, err := s.db.BrokenLinks(); err == nil {
			res.BrokenLinks = broken
		}
	}

	s.snap.Store(newSnapshot(g, ranks, res.BuildID))

	res.NodeCount, res.EdgeCount = g.NodeCount, g.EdgeCount
	res.BuiltAt = g.BuiltAt
	res.Duration = s.now().Sub(start)

	s.logger.Info("graphservice: build finished",
		slog.String("build_id", res.BuildID),
		slog.String("mode", string(res.Mode)),
		slog.Int("nodes", res.NodeCount),
		slog.Int("edges", res.EdgeCount),
		slog.Int("reparsed", res.Reparsed),
		slog.Int("invalid", len(res.Invalid)),
		slog.Duration("duration", res.Duration))
	s.emit(EventGraph, map[string]any{
		"build_id":   res.BuildID,
		"mode":       res.Mode,
		"node_count": res.NodeCount,
		"edge_count": res.EdgeCount,
	})
	return res, nil
}

// persist writes the build to the cache. Failures only cost the next
// process a rebuild, so they are logged rather than returned.
func (s *Service) persist(g *models.KnowledgeGraph, ranks map[models.NodeID]float64, files map[string]models.FileState, mode Mode, settled []string) {
	warn := func(what string, err error) {
		s.logger.Warn("graphservice: persist "+what+" failed", slog.String("error", err.Error()))
	}
	if err := s.meta.SaveGraph(g); err != nil {
		warn("graph", err)
	}
	if err := s.meta.SaveWeights(metastore.NewWeights(g, ranks, g.BuiltAt)); err != nil {
		warn("weights", err)
	}
	if err := s.meta.SaveSnapshot(&models.FileSnapshot{Files: files, TakenAt: g.BuiltAt}); err != nil {
		warn("snapshot", err)
	}
	if mode == ModeFull && len(settled) > 0 {
		if err := s.meta.RemoveStaleNodes(settled...); err != nil {
			warn("stale ledger", err)
		}
	}
}

func sameFile(a, b models.FileState) bool {
	return a.Size == b.Size && a.Checksum == b.Checksum && a.MTime.Equal(b.MTime)
}
