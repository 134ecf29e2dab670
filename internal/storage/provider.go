// Package storage is the vault file-system abstraction shared by the graph
// builder, the metadata cache and the note mutations.
package storage

import "github.com/starford/vaultgraph/internal/models"

// Provider is the interface for vault file operations. Paths are relative to
// the vault root and may not escape it.
type Provider interface {
	// List returns metadata for every .md file under dir, skipping hidden directories.
	List(dir string) ([]models.FileMetadata, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent directories.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Move renames oldPath to newPath.
	Move(oldPath, newPath string) error
}
