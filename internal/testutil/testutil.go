// Package testutil provides shared test helpers for setting up vaults, notes and databases.
package testutil

import (
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/starford/vaultgraph/internal/index"
	"github.com/starford/vaultgraph/internal/storage"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "vaultgraph-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary vault directory with a storage.Provider.
func TestVault(t *testing.T) (string, storage.Provider) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

// WriteFiles writes each path/content pair into the vault directory.
func WriteFiles(t *testing.T, store storage.Provider, files map[string]string) {
	t.Helper()
	for p, content := range files {
		if err := store.Write(p, []byte(content)); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
}

// Note renders a markdown document with valid frontmatter. extra lines are
// appended to the frontmatter block verbatim.
func Note(layer int, tags string, body string, extra ...string) string {
	var b strings.Builder
	b.WriteString("---\ncreated: 2025-01-01\nupdated: 2025-01-02\n")
	fmt.Fprintf(&b, "tags: [%s]\nlayer: %d\n", tags, layer)
	for _, line := range extra {
		b.WriteString(line + "\n")
	}
	b.WriteString("---\n")
	b.WriteString(body)
	return b.String()
}
