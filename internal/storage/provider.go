// Package storage is the file-system layer under the draft store and the index.
package storage

import "github.com/skyboj/obsidian-ai-blogger/internal/models"

// Provider is the interface for content-directory file operations. All paths
// are relative to the content root.
type Provider interface {
	// List returns metadata for .md files in dir; recursive descends into subdirectories.
	List(dir string, recursive bool) ([]models.FileInfo, error)
	Read(path string) ([]byte, error)
	// Write atomically writes content, creating parent directories.
	Write(path string, content []byte) error
	// Create writes content only if path does not exist yet.
	Create(path string, content []byte) error
	Exists(path string) (bool, error)
	// Copy duplicates src at dst, failing with FILE_EXISTS unless overwrite is set.
	Copy(src, dst string, overwrite bool) error
	Delete(path string) error
	Move(oldPath, newPath string) error
	// Abs resolves path to an absolute location inside the root.
	Abs(path string) (string, error)
}
