// Package suggest recommends new links for a document by combining tag
// overlap with a spreading-activation bonus.
package suggest

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/starford/vaultgraph/internal/activation"
	"github.com/starford/vaultgraph/internal/apperr"
	"github.com/starford/vaultgraph/internal/graph"
	"github.com/starford/vaultgraph/internal/models"
)

const (
	DefaultMinScore       = 0.3
	DefaultMaxSuggestions = 5

	// activationBonus scales the activation score added to the tag score.
	activationBonus = 0.3
	// activationHops keeps the second stage shallow.
	activationHops = 2
	// maxTagSeeds bounds the seeds used when the source is not in the graph.
	maxTagSeeds = 3
	// minKeywordLen is the shortest content word kept as a keyword, in runes.
	minKeywordLen = 4
)

var stopWords = map[string]struct{}{
	"about": {}, "after": {}, "also": {}, "been": {}, "before": {}, "being": {},
	"could": {}, "does": {}, "each": {}, "from": {}, "have": {}, "here": {},
	"into": {}, "just": {}, "like": {}, "more": {}, "most": {}, "much": {},
	"only": {}, "other": {}, "over": {}, "same": {}, "should": {}, "some": {},
	"such": {}, "than": {}, "that": {}, "their": {}, "them": {}, "then": {},
	"there": {}, "these": {}, "they": {}, "this": {}, "those": {}, "very": {},
	"what": {}, "when": {}, "where": {}, "which": {}, "while": {}, "will": {},
	"with": {}, "would": {}, "your": {},
}

// Request describes the document to find links for. Path names an existing
// node; Tags and ContentHint describe a document that may not exist yet.
type Request struct {
	Path           string   `json:"path,omitempty"`
	Tags           []string `json:"tags,omitempty"`
	ContentHint    string   `json:"content_hint,omitempty"`
	MinScore       float64  `json:"min_score,omitempty"`
	MaxSuggestions int      `json:"max_suggestions,omitempty"`
}

// Suggestion is one recommended link target.
type Suggestion struct {
	Target     models.NodeID `json:"target"`
	Title      string        `json:"title"`
	Score      float64       `json:"score"`
	TagScore   float64       `json:"tag_score"`
	SAScore    float64       `json:"sa_score"`
	SharedTags []string      `json:"shared_tags"`
	Layer      models.Layer  `json:"layer"`
	Reason     string        `json:"reason"`
}

type candidate struct {
	node     *models.KnowledgeNode
	tagScore float64
	shared   []string
}

// Suggest ranks nodes of g that the source document should link to.
//
// Stage one keeps every unlinked node whose Jaccard tag similarity reaches
// half of MinScore. Stage two spreads activation from the source node, or
// from its best tag matches when the source is not in the graph, and adds
// 0.3 times the activation score. Results under MinScore are dropped.
func Suggest(g *models.KnowledgeGraph, req Request) ([]Suggestion, error) {
	if g == nil {
		return nil, apperr.ErrIndexNotBuilt
	}
	if req.MinScore <= 0 {
		req.MinScore = DefaultMinScore
	}
	if req.MaxSuggestions <= 0 {
		req.MaxSuggestions = DefaultMaxSuggestions
	}

	var source *models.KnowledgeNode
	var sourceID models.NodeID
	if req.Path != "" {
		sourceID = models.NewNodeID(req.Path)
		source = g.Node(sourceID)
	}

	tags := SourceTags(source, req.Tags, req.ContentHint)
	if len(tags) == 0 && source == nil {
		return nil, fmt.Errorf("suggest: need an existing path, tags or content hint: %w", apperr.ErrInvalidInput)
	}

	linked := make(map[models.NodeID]struct{})
	if source != nil {
		for _, e := range g.Outgoing(sourceID) {
			if e.Type == models.EdgeLink && !e.CrossDomain {
				linked[e.To] = struct{}{}
			}
		}
	}

	candidates := make(map[models.NodeID]candidate)
	var all []candidate
	for _, id := range sortedIDs(g) {
		if id == sourceID {
			continue
		}
		n := g.Nodes[id]
		score, shared := Jaccard(tags, n.Tags)
		if len(shared) > 0 {
			all = append(all, candidate{node: n, tagScore: score, shared: shared})
		}
		if _, ok := linked[id]; ok {
			continue
		}
		if score >= req.MinScore/2 {
			candidates[id] = candidate{node: n, tagScore: score, shared: shared}
		}
	}

	var seeds []models.NodeID
	if source != nil {
		seeds = []models.NodeID{sourceID}
	} else {
		sort.SliceStable(all, func(i, j int) bool { return all[i].tagScore > all[j].tagScore })
		for i := 0; i < len(all) && i < maxTagSeeds; i++ {
			seeds = append(seeds, all[i].node.ID)
		}
	}

	sa := make(map[models.NodeID]float64)
	if len(seeds) > 0 {
		p := activation.DefaultParams()
		p.MaxHops = activationHops
		for _, r := range activation.Spread(g, seeds, p) {
			sa[r.NodeID] = r.Score
		}
	}

	out := make([]Suggestion, 0, len(candidates))
	for id, c := range candidates {
		saScore := sa[id]
		score := c.tagScore + saScore*activationBonus
		if score < req.MinScore {
			continue
		}
		out = append(out, Suggestion{
			Target:     id,
			Title:      c.node.Title,
			Score:      score,
			TagScore:   c.tagScore,
			SAScore:    saScore,
			SharedTags: c.shared,
			Layer:      c.node.Layer,
			Reason:     reason(c.shared, saScore, c.node.Layer),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Target < out[j].Target
	})
	if len(out) > req.MaxSuggestions {
		out = out[:req.MaxSuggestions]
	}
	return out, nil
}

// SourceTags merges the node's tags, explicit tags and content keywords into
// one normalized, order-preserving set.
func SourceTags(source *models.KnowledgeNode, tags []string, contentHint string) []string {
	var merged []string
	if source != nil {
		merged = append(merged, source.Tags...)
	}
	merged = append(merged, tags...)
	merged = append(merged, Keywords(contentHint)...)

	out := make([]string, 0, len(merged))
	seen := make(map[string]struct{}, len(merged))
	for _, t := range merged {
		t = graph.NormalizeTag(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Keywords extracts lowercase alphanumeric words of at least four runes,
// skipping common stop words.
func Keywords(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make([]string, 0, len(words))
	seen := make(map[string]struct{}, len(words))
	for _, w := range words {
		if utf8.RuneCountInString(w) < minKeywordLen {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

// Jaccard returns |a∩b| / |a∪b| and the shared tags in a's order.
// Two empty sets score 0.
func Jaccard(a, b []string) (float64, []string) {
	setB := make(map[string]struct{}, len(b))
	for _, t := range b {
		setB[t] = struct{}{}
	}
	union := make(map[string]struct{}, len(a)+len(b))
	for t := range setB {
		union[t] = struct{}{}
	}

	var shared []string
	seenA := make(map[string]struct{}, len(a))
	for _, t := range a {
		if _, dup := seenA[t]; dup {
			continue
		}
		seenA[t] = struct{}{}
		union[t] = struct{}{}
		if _, ok := setB[t]; ok {
			shared = append(shared, t)
		}
	}
	if len(union) == 0 {
		return 0, nil
	}
	return float64(len(shared)) / float64(len(union)), shared
}

func reason(shared []string, saScore float64, layer models.Layer) string {
	parts := make([]string, 0, 3)
	if len(shared) > 0 {
		parts = append(parts, "shared tags: "+strings.Join(shared, ", "))
	}
	if saScore > 0 {
		parts = append(parts, fmt.Sprintf("activation bonus +%.2f", saScore*activationBonus))
	}
	parts = append(parts, "layer "+layer.String())
	return strings.Join(parts, "; ")
}

func sortedIDs(g *models.KnowledgeGraph) []models.NodeID {
	ids := make([]models.NodeID, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
