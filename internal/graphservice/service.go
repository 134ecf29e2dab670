// Package graphservice owns the loaded knowledge graph and exposes the build,
// search, navigate and suggest-links operations to the transports.
//
// The graph is held as an immutable Snapshot behind an atomic pointer.
// Builds produce a new snapshot and swap it in; vault mutations drop the
// pointer so the next query reloads from the cache instead of observing a
// graph mid-update.
package graphservice

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sync"
	"sync/atomic"
	"time"

	"github.com/starford/vaultgraph/internal/activation"
	"github.com/starford/vaultgraph/internal/apperr"
	"github.com/starford/vaultgraph/internal/graph"
	"github.com/starford/vaultgraph/internal/index"
	"github.com/starford/vaultgraph/internal/metastore"
	"github.com/starford/vaultgraph/internal/models"
	"github.com/starford/vaultgraph/internal/parser"
	"github.com/starford/vaultgraph/internal/storage"
	"github.com/starford/vaultgraph/internal/suggest"
)

// Event types emitted through Options.OnEvent.
const (
	EventStale = "stale"
	EventGraph = "graph"
)

// Options configures a Service. Zero values fall back to package defaults.
type Options struct {
	CacheDir   string
	Activation activation.Params
	// MinScore and MaxSuggestions are the suggest-links defaults.
	MinScore       float64
	MaxSuggestions int
	// StaleRatio is the stale fraction above which a full rebuild is forced.
	StaleRatio float64
	// AutoRebuild rebuilds the graph from MarkStale once the stale ratio is exceeded.
	AutoRebuild bool
	// OnEvent receives stale and graph notifications.
	OnEvent func(eventType string, data any)
	Logger  *slog.Logger
	Now     func() time.Time
}

// Snapshot is one immutable build of the graph with its derived indexes.
type Snapshot struct {
	Graph     *models.KnowledgeGraph
	PageRanks map[models.NodeID]float64
	BuildID   string
	adj       activation.Adjacency
}

func newSnapshot(g *models.KnowledgeGraph, ranks map[models.NodeID]float64, buildID string) *Snapshot {
	return &Snapshot{Graph: g, PageRanks: ranks, BuildID: buildID, adj: activation.NewAdjacency(g)}
}

// Service coordinates storage, the keyword index, the metadata cache and the
// graph algorithms.
type Service struct {
	store  storage.Provider
	db     index.NoteIndex
	meta   *metastore.Store
	opts   Options
	logger *slog.Logger
	now    func() time.Time

	snap    atomic.Pointer[Snapshot]
	buildMu sync.Mutex
}

// NewService creates a graph service. db may be nil, in which case keyword
// seeds fall back to tag and title matching.
func NewService(store storage.Provider, db index.NoteIndex, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MinScore <= 0 {
		opts.MinScore = suggest.DefaultMinScore
	}
	if opts.MaxSuggestions <= 0 {
		opts.MaxSuggestions = suggest.DefaultMaxSuggestions
	}
	if opts.Activation == (activation.Params{}) {
		opts.Activation = activation.DefaultParams()
	}
	return &Service{
		store: store,
		db:    db,
		meta: metastore.New(store, metastore.Options{
			Dir:        opts.CacheDir,
			StaleRatio: opts.StaleRatio,
			Logger:     opts.Logger,
			Now:        opts.Now,
		}),
		opts:   opts,
		logger: opts.Logger,
		now:    opts.Now,
	}
}

// ResetCache deletes every cache file and drops the loaded snapshot. Queries
// fail with apperr.ErrIndexNotBuilt until the next build.
func (s *Service) ResetCache() error {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	if err := s.meta.Reset(); err != nil {
		return fmt.Errorf("graphservice: reset cache: %w", err)
	}
	s.Invalidate()
	return nil
}

// Current returns the loaded snapshot, reloading it from the cache after an
// invalidation. It fails with apperr.ErrIndexNotBuilt when no graph exists.
func (s *Service) Current(_ context.Context) (*Snapshot, error) {
	if snap := s.snap.Load(); snap != nil {
		return snap, nil
	}

	g := s.meta.LoadGraph()
	if g == nil {
		return nil, apperr.ErrIndexNotBuilt
	}
	var ranks map[models.NodeID]float64
	if w := s.meta.LoadWeights(); w != nil && len(w.PageRanks) == len(g.Nodes) {
		ranks = w.PageRanks
	} else {
		ranks = graph.PageRank(g, graph.DefaultPageRankOptions())
	}

	snap := newSnapshot(g, ranks, "")
	if s.snap.CompareAndSwap(nil, snap) {
		s.logger.Debug("graphservice: snapshot loaded from cache", slog.Int("nodes", g.NodeCount))
		return snap, nil
	}
	return s.snap.Load(), nil
}

// Invalidate drops the loaded snapshot.
func (s *Service) Invalidate() {
	s.snap.Store(nil)
}

// MarkStale records path in the stale ledger and, with AutoRebuild enabled,
// rebuilds once the stale ratio crosses the threshold.
func (s *Service) MarkStale(ctx context.Context, paths ...string) error {
	if err := s.meta.AppendStaleNodes(paths...); err != nil {
		return fmt.Errorf("graphservice: mark stale: %w", err)
	}
	for _, p := range paths {
		s.emit(EventStale, map[string]string{"path": models.NewNodeID(p).String()})
	}

	if !s.opts.AutoRebuild {
		return nil
	}
	snap, err := s.Current(ctx)
	if err != nil || !s.meta.NeedsRebuild(snap.Graph.NodeCount) {
		return nil
	}
	s.logger.Info("graphservice: stale ratio exceeded, rebuilding",
		slog.Float64("ratio", s.meta.StaleRatio(snap.Graph.NodeCount)))
	_, err = s.Build(ctx, BuildRequest{})
	return err
}

// NoteResult describes a note written through the service.
type NoteResult struct {
	Path     models.NodeID `json:"path"`
	Checksum string        `json:"checksum"`
	// Invalid lists frontmatter violations; such notes are left out of the graph.
	Invalid []string `json:"invalid,omitempty"`
}

// CreateNote writes a new markdown note into the vault.
func (s *Service) CreateNote(ctx context.Context, p string, content []byte) (*NoteResult, error) {
	id, err := notePath(p)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Read(id.String()); err == nil {
		return nil, apperr.ErrAlreadyExists
	}
	if err := s.store.Write(id.String(), content); err != nil {
		return nil, fmt.Errorf("graphservice: create note: %w", err)
	}
	s.reindex(id.String(), content)
	s.Invalidate()
	if err := s.MarkStale(ctx, id.String()); err != nil {
		return nil, err
	}

	res := &NoteResult{Path: id, Checksum: storage.Checksum(content)}
	parsed := parser.Parse(content)
	if !parsed.HasFrontmatter() {
		res.Invalid = []string{parsed.Reason}
	} else if _, errs := parser.Validate(parsed.Frontmatter); len(errs) > 0 {
		res.Invalid = errs.Strings()
	}
	return res, nil
}

// DeleteNote removes a note and marks it and every note linking to it stale.
func (s *Service) DeleteNote(ctx context.Context, p string) error {
	id, err := notePath(p)
	if err != nil {
		return err
	}
	if err := s.store.Delete(id.String()); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return apperr.ErrNotFound
		}
		return fmt.Errorf("graphservice: delete note: %w", err)
	}

	stale := append([]string{id.String()}, s.backlinks(id.String())...)
	if s.db != nil {
		if err := s.db.DeleteNote(id.String()); err != nil {
			s.logger.Warn("graphservice: index delete failed", slog.String("path", id.String()), slog.String("error", err.Error()))
		}
	}
	s.Invalidate()
	return s.MarkStale(ctx, stale...)
}

// MoveNote renames a note. Links pointing at the old path are not rewritten;
// their sources are marked stale.
func (s *Service) MoveNote(ctx context.Context, from, to string) (*NoteResult, error) {
	oldID, err := notePath(from)
	if err != nil {
		return nil, err
	}
	newID, err := notePath(to)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Read(oldID.String()); err != nil {
		return nil, apperr.ErrNotFound
	}
	if _, err := s.store.Read(newID.String()); err == nil {
		return nil, apperr.ErrAlreadyExists
	}

	stale := append([]string{oldID.String(), newID.String()}, s.backlinks(oldID.String())...)
	if err := s.store.Move(oldID.String(), newID.String()); err != nil {
		return nil, fmt.Errorf("graphservice: move note: %w", err)
	}

	data, err := s.store.Read(newID.String())
	if err != nil {
		return nil, fmt.Errorf("graphservice: move note: %w", err)
	}
	if s.db != nil {
		if err := s.db.DeleteNote(oldID.String()); err != nil {
			s.logger.Warn("graphservice: index delete failed", slog.String("path", oldID.String()), slog.String("error", err.Error()))
		}
	}
	s.reindex(newID.String(), data)
	s.Invalidate()
	if err := s.MarkStale(ctx, stale...); err != nil {
		return nil, err
	}
	return &NoteResult{Path: newID, Checksum: storage.Checksum(data)}, nil
}

func (s *Service) reindex(p string, data []byte) {
	if s.db == nil {
		return
	}
	if err := index.IndexFile(s.db, p, data, s.now()); err != nil {
		s.logger.Warn("graphservice: index failed", slog.String("path", p), slog.String("error", err.Error()))
	}
}

func (s *Service) backlinks(p string) []string {
	if s.db == nil {
		return nil
	}
	bl, err := s.db.Backlinks(p)
	if err != nil {
		s.logger.Warn("graphservice: backlinks failed", slog.String("path", p), slog.String("error", err.Error()))
		return nil
	}
	return bl
}

func (s *Service) emit(eventType string, data any) {
	if s.opts.OnEvent != nil {
		s.opts.OnEvent(eventType, data)
	}
}

// notePath normalizes p and requires a markdown file name.
func notePath(p string) (models.NodeID, error) {
	id := models.NewNodeID(p)
	if id == "" || path.Ext(id.String()) != ".md" {
		return "", fmt.Errorf("graphservice: %q is not a markdown path: %w", p, apperr.ErrInvalidInput)
	}
	return id, nil
}
