package parser

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var markdown = goldmark.New()

// Link is one [text](href) pair found in a document body.
type Link struct {
	Text string `json:"text"`
	Href string `json:"href"`
	// Absolute is true for http(s)://, vault-rooted "/" and "#" anchors.
	Absolute bool `json:"absolute"`
}

// IsAbsolute classifies an href.
func IsAbsolute(href string) bool {
	return strings.HasPrefix(href, "http://") ||
		strings.HasPrefix(href, "https://") ||
		strings.HasPrefix(href, "/") ||
		strings.HasPrefix(href, "#")
}

// scanBody walks the Markdown AST once, collecting inline links and the first
// level-1 heading. Code spans and fenced blocks never contain link nodes, so
// links written inside code are not followed.
func scanBody(src []byte) ([]Link, string) {
	doc := markdown.Parser().Parse(text.NewReader(src))

	var (
		links []Link
		title string
	)
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := n.(type) {
		case *ast.Heading:
			if v.Level == 1 && title == "" {
				title = strings.TrimSpace(plainText(v, src))
			}
		case *ast.Link:
			href := strings.TrimSpace(string(v.Destination))
			if href == "" {
				return ast.WalkContinue, nil
			}
			links = append(links, Link{
				Text:     plainText(v, src),
				Href:     href,
				Absolute: IsAbsolute(href),
			})
		}
		return ast.WalkContinue, nil
	})

	return links, title
}

// plainText concatenates the text segments below n.
func plainText(n ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}
