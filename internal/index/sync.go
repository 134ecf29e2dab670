package index

import (
	"log/slog"
	"time"

	"github.com/starford/vaultgraph/internal/graph"
	"github.com/starford/vaultgraph/internal/models"
	"github.com/starford/vaultgraph/internal/parser"
	"github.com/starford/vaultgraph/internal/storage"
)

// Sync walks the vault and brings the index up to date:
//   - new/changed files are parsed and upserted
//   - files removed from disk are deleted from the index
func Sync(db NoteIndex, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := IndexFile(db, m.Path, data, m.UpdatedAt); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", m.Path))
		}
	}

	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.DeleteNote(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// IndexFile parses data and upserts it into the index. Documents whose
// frontmatter does not validate are still indexed by title and body so
// keyword lookups can find them, but without tags.
func IndexFile(db NoteIndex, path string, data []byte, mtime time.Time) error {
	id := models.NewNodeID(path)
	res := parser.Parse(data)

	row := NoteRow{
		Path:      id.String(),
		Title:     res.Title,
		Checksum:  storage.Checksum(data),
		Tags:      []string{},
		UpdatedAt: mtime,
	}
	if res.HasFrontmatter() {
		if fm, errs := parser.Validate(res.Frontmatter); len(errs) == 0 {
			row.Tags = fm.Tags
		}
	}

	var links []string
	for _, l := range res.Links {
		if target, ok := graph.ResolveLink(id, l.Href); ok && target != id {
			links = append(links, target.String())
		}
	}
	return db.UpsertNote(row, res.Body, links)
}
