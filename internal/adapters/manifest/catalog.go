package manifest

import (
	"strings"

	"go.trai.ch/haul/internal/core/domain"
	"go.trai.ch/zerr"
)

// LoadCatalog returns the built-in catalog for the given versions, overlaid with
// the buckets declared in path. An empty path keeps the built-in catalog.
func (l *Loader) LoadCatalog(path string, versions domain.Versions) (domain.Catalog, error) {
	catalog := domain.DefaultCatalog(versions)
	if path == "" {
		return catalog, nil
	}

	var dto CatalogDTO
	if err := l.read(path, &dto); err != nil {
		return nil, err
	}

	for name, b := range dto.Buckets {
		entry, ok := catalog[name]
		if !ok {
			entry = domain.Bucket{Name: name}
		}
		if b.URL != "" {
			entry.URL = strings.TrimSuffix(b.URL, "/")
		}
		if b.S3Bucket != "" {
			entry.S3Bucket = b.S3Bucket
		}
		if b.Dir != "" {
			entry.Dir = b.Dir
		}
		if b.Prefix != nil {
			entry.Prefix = *b.Prefix
		}
		if b.Architectures != nil {
			entry.Architectures = b.Architectures
		}
		if entry.URL == "" && entry.S3Bucket == "" && entry.Dir == "" {
			return nil, zerr.With(zerr.With(zerr.Wrap(domain.ErrManifestParse, "bucket has no location"), "bucket", name), "path", path)
		}
		catalog[name] = entry
	}
	return catalog, nil
}
