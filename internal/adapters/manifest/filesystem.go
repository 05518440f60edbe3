package manifest

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileSystem abstracts the reads the loader performs, for testability.
type FileSystem interface {
	// ReadFile reads the entire file at path.
	ReadFile(path string) ([]byte, error)
	// ReadDir lists the entries of a directory sorted by name.
	ReadDir(path string) ([]fs.DirEntry, error)
}

// OSFS implements FileSystem using the standard library.
type OSFS struct{}

// NewOSFS creates a new OSFS instance.
func NewOSFS() *OSFS {
	return &OSFS{}
}

// ReadFile reads the entire file at path.
func (o *OSFS) ReadFile(path string) ([]byte, error) {
	// #nosec G304 -- path comes from the configured requirements directory
	return os.ReadFile(path)
}

// ReadDir lists the entries of a directory sorted by name.
func (o *OSFS) ReadDir(path string) ([]fs.DirEntry, error) {
	return os.ReadDir(path)
}

// MapFSAdapter adapts an fs.FS (typically fstest.MapFS) mounted at Root.
type MapFSAdapter struct {
	FS   fs.FS
	Root string
}

// NewMapFSAdapter creates a new MapFSAdapter with the given root path and filesystem.
func NewMapFSAdapter(root string, fsys fs.FS) *MapFSAdapter {
	return &MapFSAdapter{FS: fsys, Root: root}
}

// ReadFile reads the entire file at path.
func (m *MapFSAdapter) ReadFile(path string) ([]byte, error) {
	return fs.ReadFile(m.FS, m.toRelPath(path))
}

// ReadDir lists the entries of a directory sorted by name.
func (m *MapFSAdapter) ReadDir(path string) ([]fs.DirEntry, error) {
	return fs.ReadDir(m.FS, m.toRelPath(path))
}

// toRelPath maps a path under Root into the fs.FS namespace.
// Paths outside Root are returned unchanged so lookups fail with not found.
func (m *MapFSAdapter) toRelPath(p string) string {
	if !filepath.IsAbs(p) {
		return filepath.ToSlash(filepath.Clean(p))
	}
	if m.Root != "/" && p != m.Root && !strings.HasPrefix(p, m.Root+string(filepath.Separator)) {
		return p
	}
	rel := strings.TrimPrefix(strings.TrimPrefix(p, m.Root), string(filepath.Separator))
	if rel == "" {
		return "."
	}
	return filepath.ToSlash(rel)
}
