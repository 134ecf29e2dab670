package parser

import (
	"strings"
	"testing"

	"github.com/starford/vaultgraph/internal/models"
)

const fullDoc = `---
title: "Deep Work"
created: 2024-01-15
updated: '2024-02-01'
tags: [focus, productivity]
layer: 2
confidence: 0.75
accessed_count: 12
source: book
expires: ~
pinned: true
domain: craft
---
# Heading Ignored
Body with a [link](other.md) and [site](https://example.com).
`

func TestParse_FrontmatterAndBody(t *testing.T) {
	r := Parse([]byte(fullDoc))
	if !r.HasFrontmatter() {
		t.Fatalf("expected frontmatter, reason = %q", r.Reason)
	}
	if r.Title != "Deep Work" {
		t.Errorf("title = %q, want %q", r.Title, "Deep Work")
	}
	if !strings.HasPrefix(r.Body, "# Heading Ignored") {
		t.Errorf("body = %q", r.Body)
	}

	fm := r.Frontmatter
	if fm["layer"] != 2 {
		t.Errorf("layer = %#v, want int 2", fm["layer"])
	}
	if fm["confidence"] != 0.75 {
		t.Errorf("confidence = %#v", fm["confidence"])
	}
	if fm["pinned"] != true {
		t.Errorf("pinned = %#v", fm["pinned"])
	}
	if v, ok := fm["expires"]; !ok || v != nil {
		t.Errorf("expires = %#v, want nil", v)
	}
	if fm["updated"] != "2024-02-01" {
		t.Errorf("updated = %#v", fm["updated"])
	}
	tags, ok := fm["tags"].([]any)
	if !ok || len(tags) != 2 || tags[0] != "focus" || tags[1] != "productivity" {
		t.Errorf("tags = %#v", fm["tags"])
	}
}

func TestParse_NoFrontmatter(t *testing.T) {
	input := "# Just a heading\nSome text.\n"
	r := Parse([]byte(input))
	if r.HasFrontmatter() {
		t.Fatal("expected missing frontmatter")
	}
	if r.Reason != ReasonNoFrontmatter {
		t.Errorf("reason = %q", r.Reason)
	}
	if r.Body != input {
		t.Errorf("body should be whole input, got %q", r.Body)
	}
	if r.Title != "Just a heading" {
		t.Errorf("title = %q, want %q", r.Title, "Just a heading")
	}
}

func TestParse_UnterminatedBlock(t *testing.T) {
	input := "---\ntitle: x\nno closing line\n"
	r := Parse([]byte(input))
	if r.Reason != ReasonUnterminated {
		t.Errorf("reason = %q", r.Reason)
	}
	if r.Body != input {
		t.Errorf("body = %q", r.Body)
	}
}

func TestScanFrontmatter_BlockArraysAndNestedMap(t *testing.T) {
	block := "tags:\n  - alpha\n  - \"beta\"\nperson:\n  relationship_type: mentor\n  intimacy_level: 4\nno colon here\nlayer: 5"
	fm := scanFrontmatter(block)

	tags, ok := fm["tags"].([]any)
	if !ok || len(tags) != 2 || tags[1] != "beta" {
		t.Errorf("tags = %#v", fm["tags"])
	}
	person, ok := fm["person"].(map[string]any)
	if !ok {
		t.Fatalf("person = %#v", fm["person"])
	}
	if person["relationship_type"] != "mentor" || person["intimacy_level"] != 4 {
		t.Errorf("person = %#v", person)
	}
	if fm["layer"] != 5 {
		t.Errorf("layer = %#v", fm["layer"])
	}
	if _, ok := fm["no colon here"]; ok {
		t.Error("line without colon should be skipped")
	}
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"42", 42},
		{"-3", -3},
		{"0.5", 0.5},
		{"true", true},
		{"false", false},
		{"null", nil},
		{"~", nil},
		{`"7"`, "7"},
		{"'quoted'", "quoted"},
		{"2024-01-01", "2024-01-01"},
		{"Inf", "Inf"},
		{"plain text", "plain text"},
	}
	for _, tt := range tests {
		if got := coerce(tt.in); got != tt.want {
			t.Errorf("coerce(%q) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}

func TestParseValue_InlineArray(t *testing.T) {
	got, ok := parseValue("[a, 2, true, ]").([]any)
	if !ok || len(got) != 3 || got[0] != "a" || got[1] != 2 || got[2] != true {
		t.Errorf("parseValue = %#v", got)
	}
	empty, ok := parseValue("[]").([]any)
	if !ok || len(empty) != 0 {
		t.Errorf("empty array = %#v", empty)
	}
}

func TestLinks_SkipCodeAndClassify(t *testing.T) {
	body := "See [a](notes/a.md) and [web](https://x.io) and [top](#top).\n\n" +
		"`[inline](code.md)`\n\n" +
		"```\n[fenced](fenced.md)\n```\n\n" +
		"Also [root](/abs/b.md).\n"
	r := Parse([]byte(body))

	var hrefs []string
	for _, l := range r.Links {
		hrefs = append(hrefs, l.Href)
	}
	want := []string{"notes/a.md", "https://x.io", "#top", "/abs/b.md"}
	if strings.Join(hrefs, ",") != strings.Join(want, ",") {
		t.Fatalf("hrefs = %v, want %v", hrefs, want)
	}
	if r.Links[0].Absolute {
		t.Error("notes/a.md should be relative")
	}
	for _, l := range r.Links[1:] {
		if !l.Absolute {
			t.Errorf("%s should be absolute", l.Href)
		}
	}
	if r.Links[0].Text != "a" {
		t.Errorf("text = %q", r.Links[0].Text)
	}
}

func TestTitle_FirstH1Only(t *testing.T) {
	r := Parse([]byte("## Second level\n\n# First *Level* One\n\n# Another\n"))
	if r.Title != "First Level One" {
		t.Errorf("title = %q", r.Title)
	}
}

func TestTitle_NumericFrontmatter(t *testing.T) {
	r := Parse([]byte("---\ntitle: 2024\ncreated: 2024-01-01\nupdated: 2024-01-02\nlayer: 3\ntags: [review]\n---\n# Heading\n"))
	fm, errs := Validate(r.Frontmatter)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if r.Title != "2024" || fm.Title != r.Title {
		t.Errorf("parsed title = %q, validated title = %q", r.Title, fm.Title)
	}
}

func TestValidate_RoundTripsAllFields(t *testing.T) {
	input := "---\ntitle: Ana\ncreated: 2024-01-01\nupdated: 2024-03-01\ntags:\n  - people\nlayer: 5\n" +
		"confidence: 1\naccessed_count: 3\nsource: meetup\nexpires: 2030-01-01\ndomain: social\n" +
		"person:\n  relationship_type: Friend\n  intimacy_level: 3\n---\nbody\n"
	r := Parse([]byte(input))
	fm, errs := Validate(r.Frontmatter)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	if fm.Title != "Ana" || fm.Created != "2024-01-01" || fm.Updated != "2024-03-01" {
		t.Errorf("scalars = %+v", fm)
	}
	if fm.Layer != models.LayerContext {
		t.Errorf("layer = %v", fm.Layer)
	}
	if fm.Confidence == nil || *fm.Confidence != 1.0 {
		t.Errorf("confidence = %v", fm.Confidence)
	}
	if fm.AccessedCount != 3 || fm.Source != "meetup" || fm.Expires != "2030-01-01" || fm.Domain != "social" {
		t.Errorf("optional fields = %+v", fm)
	}
	if len(fm.Tags) != 1 || fm.Tags[0] != "people" {
		t.Errorf("tags = %v", fm.Tags)
	}
	if fm.Person == nil || fm.Person.RelationshipType != "friend" || fm.Person.IntimacyLevel != 3 {
		t.Errorf("person = %+v", fm.Person)
	}
}

func TestValidate_EnumeratesEveryViolation(t *testing.T) {
	fm := map[string]any{
		"tags":       []any{},
		"layer":      9,
		"confidence": 1.5,
		"person":     map[string]any{"intimacy_level": 7},
	}
	_, errs := Validate(fm)

	got := map[string]bool{}
	for _, e := range errs {
		got[e.Field] = true
	}
	for _, field := range []string{"created", "updated", "tags", "layer", "confidence", "person.relationship_type", "person.intimacy_level"} {
		if !got[field] {
			t.Errorf("missing violation for %q in %v", field, errs)
		}
	}
}

func TestValidate_MissingVersusEmptyTags(t *testing.T) {
	base := map[string]any{"created": "a", "updated": "b", "layer": 1}

	_, errs := Validate(base)
	if len(errs) != 1 || errs[0].Message != "is required" {
		t.Errorf("missing tags errs = %v", errs)
	}

	withEmpty := map[string]any{"created": "a", "updated": "b", "layer": 1, "tags": []any{}}
	_, errs = Validate(withEmpty)
	if len(errs) != 1 || errs[0].Message != "must not be empty" {
		t.Errorf("empty tags errs = %v", errs)
	}
}

func TestValidate_TypeErrors(t *testing.T) {
	fm := map[string]any{"created": "a", "updated": "b", "tags": []any{"x"}, "layer": "two"}
	_, errs := Validate(fm)
	if len(errs) != 1 || errs[0].Field != "layer" || !strings.Contains(errs[0].Message, "integer") {
		t.Errorf("errs = %v", errs)
	}
	if !strings.Contains(errs.Error(), "layer") {
		t.Errorf("Error() = %q", errs.Error())
	}
}
