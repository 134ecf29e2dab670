// Package graph derives the typed, weighted knowledge graph from parsed vault documents.
package graph

import (
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/starford/vaultgraph/internal/models"
	"github.com/starford/vaultgraph/internal/parser"
)

// NewNode combines a parsed, validated document with its file metadata.
func NewNode(relPath string, mtime time.Time, res *parser.Result, fm *models.Frontmatter) *models.KnowledgeNode {
	id := models.NewNodeID(relPath)

	title := res.Title
	if title == "" {
		title = id.String()
	}

	n := &models.KnowledgeNode{
		ID:            id,
		Path:          id.String(),
		Title:         title,
		Layer:         fm.Layer,
		Tags:          normalizeTags(fm.Tags),
		Created:       fm.Created,
		Updated:       fm.Updated,
		MTime:         mtime,
		AccessedCount: fm.AccessedCount,
		Domain:        fm.Domain,
		Person:        fm.Person,
	}

	seen := make(map[models.NodeID]struct{})
	for _, l := range res.Links {
		target, ok := ResolveLink(id, l.Href)
		if !ok || target == id {
			continue
		}
		if _, dup := seen[target]; dup {
			continue
		}
		seen[target] = struct{}{}
		n.Links = append(n.Links, target)
	}
	return n
}

// ResolveLink turns an href written in document from into the id it points
// at. Web links and in-page anchors do not resolve; "/x" is vault-rooted.
func ResolveLink(from models.NodeID, href string) (models.NodeID, bool) {
	href = strings.TrimSpace(href)
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") || strings.HasPrefix(href, "#") {
		return "", false
	}
	if i := strings.IndexAny(href, "#?"); i >= 0 {
		href = href[:i]
	}
	if unescaped, err := url.PathUnescape(href); err == nil {
		href = unescaped
	}
	if href == "" {
		return "", false
	}

	target := href
	if !strings.HasPrefix(href, "/") {
		target = path.Join(from.Dir(), href)
	}
	if path.Ext(target) == "" {
		target += ".md"
	}
	id := models.NewNodeID(target)
	return id, id != ""
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = NormalizeTag(t)
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

// NormalizeTag lowercases a tag and strips a leading '#'.
func NormalizeTag(t string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(t), "#"))
}
