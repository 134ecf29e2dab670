//go:build sqlite_fts5

package index

import (
	"testing"
	"time"
)

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM files_fts`).Scan(&count); err != nil {
		t.Fatalf("files_fts table missing: %v", err)
	}
}

func TestFTS5_SearchWithSnippet(t *testing.T) {
	db := testDB(t)
	row := NoteRow{
		Path:      "fts.md",
		Title:     "FTS Note",
		Checksum:  "f1",
		Tags:      []string{"search"},
		UpdatedAt: time.Now(),
	}
	if err := db.UpsertNote(row, "The vault provides powerful full-text search capabilities.", nil); err != nil {
		t.Fatalf("UpsertNote: %v", err)
	}

	results, err := db.Search("powerful", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Path != "fts.md" {
		t.Errorf("path = %q", results[0].Path)
	}
	// FTS5 snippet should contain bold markers.
	if results[0].Snippet == "" {
		t.Error("expected non-empty snippet")
	}
}

func TestFTS5_DeleteRemovesFromFTS(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertNote(NoteRow{Path: "gone.md", Checksum: "g", Tags: []string{}, UpdatedAt: time.Now()}, "vanishing content", nil)
	_ = db.DeleteNote("gone.md")

	results, _ := db.Search("vanishing", 10)
	for _, r := range results {
		if r.Path == "gone.md" {
			t.Error("deleted note still in FTS index")
		}
	}
}

func TestFTS5_UpsertReplacesContent(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	_ = db.UpsertNote(NoteRow{Path: "evo.md", Title: "Old", Checksum: "1", Tags: []string{}, UpdatedAt: now}, "original text", nil)
	_ = db.UpsertNote(NoteRow{Path: "evo.md", Title: "New", Checksum: "2", Tags: []string{}, UpdatedAt: now}, "replacement text", nil)

	results, _ := db.Search("original", 10)
	if len(results) != 0 {
		t.Error("old FTS content should be gone")
	}
	results, _ = db.Search("replacement", 10)
	if len(results) != 1 || results[0].Title != "New" {
		t.Errorf("FTS not updated: %+v", results)
	}
}

func TestFTSQuery(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"go", `"go"`},
		{"go  channels", `"go" OR "channels"`},
		{`say "hi`, `"say" OR """hi"`},
		{"a* NEAR(b)", `"a*" OR "NEAR(b)"`},
	}
	for _, tt := range tests {
		if got := ftsQuery(tt.in); got != tt.want {
			t.Errorf("ftsQuery(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFTS5_SearchAnyKeyword(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	_ = db.UpsertNote(NoteRow{Path: "go.md", Title: "Go", Checksum: "1", Tags: []string{}, UpdatedAt: now}, "goroutines and channels", nil)
	_ = db.UpsertNote(NoteRow{Path: "k8s.md", Title: "Cluster", Checksum: "2", Tags: []string{}, UpdatedAt: now}, "kubernetes rollout", nil)
	_ = db.UpsertNote(NoteRow{Path: "misc.md", Title: "Misc", Checksum: "3", Tags: []string{}, UpdatedAt: now}, "unrelated text", nil)

	results, err := db.Search("channels kubernetes", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	got := map[string]bool{}
	for _, r := range results {
		got[r.Path] = true
	}
	if len(results) != 2 || !got["go.md"] || !got["k8s.md"] {
		t.Errorf("expected go.md and k8s.md, got %+v", results)
	}
}

func TestFTS5_SearchEscapesSyntax(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertNote(NoteRow{Path: "q.md", Title: "Quotes", Checksum: "q", Tags: []string{}, UpdatedAt: time.Now()}, `they said "hello" to kubernetes`, nil)

	for _, q := range []string{`kubernetes"`, `"hello`, `AND`, `kubernetes NOT`, `title:x*`} {
		if _, err := db.Search(q, 10); err != nil {
			t.Errorf("Search(%q): %v", q, err)
		}
	}

	results, err := db.Search(`kubernetes" OR`, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Path != "q.md" {
		t.Errorf("quoted keyword should still match, got %+v", results)
	}
}
