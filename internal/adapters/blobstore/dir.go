package blobstore

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"go.trai.ch/haul/internal/core/domain"
	"go.trai.ch/haul/internal/core/ports"
	"go.trai.ch/zerr"
)

// DirStore reads objects from a local mirror laid out as <path>/<bucket dir>/<key>.
// Digests are computed locally with the configured algorithm.
type DirStore struct {
	catalog   domain.Catalog
	verifier  ports.Verifier
	root      string
	algorithm domain.Algorithm
}

// NewDirStore creates a DirStore.
func NewDirStore(catalog domain.Catalog, verifier ports.Verifier, root string, alg domain.Algorithm) *DirStore {
	return &DirStore{catalog: catalog, verifier: verifier, root: root, algorithm: alg}
}

// Locate returns the mirror file path.
func (s *DirStore) Locate(req domain.Requirement) (string, error) {
	bucket, key, err := objectKey(s.catalog, req)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, bucket.DirName(), filepath.FromSlash(key)), nil
}

// ContentHash hashes the mirror file.
func (s *DirStore) ContentHash(ctx context.Context, req domain.Requirement) (domain.Digest, error) {
	if err := ctx.Err(); err != nil {
		return domain.Digest{}, err
	}
	p, err := s.Locate(req)
	if err != nil {
		return domain.Digest{}, err
	}
	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.Digest{}, errors.Join(domain.ErrMetadataNotFound,
				zerr.With(zerr.Wrap(err, "object is not mirrored"), "locator", p))
		}
		return domain.Digest{}, transport(err, "mirror unreadable", p)
	}
	if info.IsDir() {
		return domain.Digest{}, zerr.With(zerr.Wrap(domain.ErrMetadataNotFound, "object is a directory"), "locator", p)
	}
	return s.verifier.Hash(p, s.algorithm)
}

// Fetch copies the mirror file into w.
func (s *DirStore) Fetch(ctx context.Context, req domain.Requirement, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.Locate(req)
	if err != nil {
		return err
	}
	f, err := os.Open(p) //nolint:gosec // path is built from the catalog and the mirror root
	if err != nil {
		return transport(err, "mirror unreadable", p)
	}
	defer func() { _ = f.Close() }()

	if _, err := io.Copy(w, f); err != nil {
		return transport(err, "copy failed", p)
	}
	return nil
}
