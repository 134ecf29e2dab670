// Package parser extracts frontmatter, outbound links, and titles from Markdown content.
package parser

import (
	"strconv"
	"strings"
)

// Frontmatter reasons reported when no block can be split off.
const (
	ReasonNoFrontmatter = "no frontmatter block"
	ReasonUnterminated  = "frontmatter block not terminated"
)

// Result holds the output of parsing a Markdown file.
type Result struct {
	// Frontmatter is the scanned key/value map, nil when Reason is set.
	Frontmatter map[string]any
	Body        string
	// Reason explains why no frontmatter was found; empty on success.
	Reason string
	Links  []Link
	// Title is the frontmatter title, else the first level-1 heading, else "".
	Title string
}

// HasFrontmatter reports whether a frontmatter block was found.
func (r *Result) HasFrontmatter() bool {
	return r.Reason == ""
}

// Parse splits frontmatter from body and extracts links and title. It never
// fails: a document without frontmatter yields a Reason and the whole input
// as body, and the caller decides whether to exclude it.
func Parse(data []byte) *Result {
	fm, body, reason := splitFrontmatter(string(data))

	links, heading := scanBody([]byte(body))

	title := scalarString(fm["title"])
	if title == "" {
		title = heading
	}

	return &Result{
		Frontmatter: fm,
		Body:        body,
		Reason:      reason,
		Links:       links,
		Title:       title,
	}
}

// splitFrontmatter separates the block between a leading pair of --- lines
// from the body.
func splitFrontmatter(content string) (map[string]any, string, string) {
	const delim = "---"
	normalized := strings.ReplaceAll(content, "\r\n", "\n")
	trimmed := strings.TrimLeft(normalized, "\n")

	lines := strings.Split(trimmed, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != delim {
		return nil, content, ReasonNoFrontmatter
	}

	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) != delim {
			continue
		}
		block := strings.Join(lines[1:i], "\n")
		body := strings.TrimLeft(strings.Join(lines[i+1:], "\n"), "\n")
		return scanFrontmatter(block), body, ""
	}
	return nil, content, ReasonUnterminated
}

// scanFrontmatter is a permissive line scanner for the YAML subset used in
// vault documents: scalars, inline arrays, block arrays, and one level of
// nested maps. Lines without a colon are skipped.
func scanFrontmatter(block string) map[string]any {
	out := make(map[string]any)

	var (
		pendingKey  string
		pendingList []any
		pendingMap  map[string]any
	)
	flush := func() {
		if pendingKey == "" {
			return
		}
		switch {
		case pendingList != nil:
			out[pendingKey] = pendingList
		case pendingMap != nil:
			out[pendingKey] = pendingMap
		default:
			out[pendingKey] = nil
		}
		pendingKey, pendingList, pendingMap = "", nil, nil
	}

	for _, raw := range strings.Split(block, "\n") {
		line := strings.TrimRight(raw, " \t\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		if pendingKey != "" {
			if trimmed == "-" || strings.HasPrefix(trimmed, "- ") {
				if pendingMap == nil {
					item := strings.TrimSpace(strings.TrimPrefix(trimmed, "-"))
					pendingList = append(pendingList, coerce(item))
				}
				continue
			}
			indented := len(line) > len(strings.TrimLeft(line, " \t"))
			if indented {
				if k, v, ok := splitKeyValue(trimmed); ok && pendingList == nil {
					if pendingMap == nil {
						pendingMap = make(map[string]any)
					}
					pendingMap[k] = parseValue(v)
				}
				continue
			}
		}

		flush()
		k, v, ok := splitKeyValue(trimmed)
		if !ok {
			continue
		}
		if v == "" {
			pendingKey = k
			continue
		}
		out[k] = parseValue(v)
	}
	flush()

	return out
}

func splitKeyValue(line string) (string, string, bool) {
	idx := strings.Index(line, ":")
	if idx <= 0 {
		return "", "", false
	}
	key := strings.TrimSpace(line[:idx])
	if key == "" {
		return "", "", false
	}
	return key, strings.TrimSpace(line[idx+1:]), true
}

func parseValue(v string) any {
	if strings.HasPrefix(v, "[") && strings.HasSuffix(v, "]") {
		inner := strings.TrimSpace(v[1 : len(v)-1])
		items := []any{}
		if inner == "" {
			return items
		}
		for _, part := range strings.Split(inner, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			items = append(items, coerce(part))
		}
		return items
	}
	return coerce(v)
}

// coerce converts a scalar: quoted strings lose their quotes, booleans and
// null are recognized, numbers become int or float64, anything else stays a string.
func coerce(v string) any {
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return v[1 : len(v)-1]
		}
	}
	switch v {
	case "true":
		return true
	case "false":
		return false
	case "null", "~":
		return nil
	}
	if !looksNumeric(v) {
		return v
	}
	if i, err := strconv.Atoi(v); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return v
}

// looksNumeric rejects words ParseFloat would accept, such as "Inf" or "NaN".
func looksNumeric(v string) bool {
	if v == "" {
		return false
	}
	c := v[0]
	return (c >= '0' && c <= '9') || c == '-' || c == '+' || c == '.'
}
