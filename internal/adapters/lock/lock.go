// Package lock serializes runs against one target root.
package lock

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"go.trai.ch/haul/internal/core/domain"
	"go.trai.ch/haul/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.RootLocker = (*FileLocker)(nil)

// FileLocker takes an advisory lock on <root>/.haul.lock.
type FileLocker struct{}

// NewFileLocker creates a new FileLocker.
func NewFileLocker() *FileLocker {
	return &FileLocker{}
}

// Lock acquires the root lock without waiting. A held lock fails with domain.ErrRootLocked.
func (l *FileLocker) Lock(root string) (func() error, error) {
	if err := os.MkdirAll(root, domain.DirPerm); err != nil {
		return nil, errors.Join(domain.ErrFileWriteFailed, zerr.With(zerr.Wrap(err, "create target root"), "root", root))
	}

	path := filepath.Join(root, domain.LockFileName)
	fl := flock.New(path, flock.SetPermissions(domain.FilePerm))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, errors.Join(domain.ErrRootLocked, zerr.With(zerr.Wrap(err, "lock failed"), "path", path))
	}
	if !ok {
		return nil, zerr.With(zerr.Wrap(domain.ErrRootLocked, "another run holds the lock"), "path", path)
	}

	return fl.Unlock, nil
}
