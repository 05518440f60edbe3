package domain

import (
	"path"
	"slices"

	"go.trai.ch/zerr"
)

// Built-in bucket names.
const (
	BucketTappas   = "tappas"
	BucketModelZoo = "model_zoo"
)

// Bucket describes where a family of artifacts lives remotely.
type Bucket struct {
	Name string
	// URL is the HTTP endpoint serving the bucket.
	URL string
	// S3Bucket is the object store bucket name.
	S3Bucket string
	// Dir is the bucket directory used by the ssh and dir stores. Defaults to Name.
	Dir string
	// Prefix is the version prefix prepended to every key.
	Prefix string
	// Architectures maps a target architecture to its key prefix.
	// A bucket with architectures is per-architecture.
	Architectures map[string]string
}

// PerArch reports whether requirements of this bucket are expanded per architecture.
func (b Bucket) PerArch() bool {
	return len(b.Architectures) > 0
}

// DirName returns the directory used by filesystem-like stores.
func (b Bucket) DirName() string {
	if b.Dir != "" {
		return b.Dir
	}
	return b.Name
}

// Key returns the remote object key for a source, optionally for one architecture.
func (b Bucket) Key(source, arch string) (string, error) {
	parts := []string{b.Prefix}
	if arch != "" {
		archPrefix, ok := b.Architectures[arch]
		if !ok {
			return "", zerr.With(zerr.With(zerr.Wrap(ErrUnknownArchitecture, "bucket has no prefix for architecture"),
				"bucket", b.Name), "arch", arch)
		}
		parts = append(parts, archPrefix)
	}
	parts = append(parts, source)
	return path.Join(parts...), nil
}

// Catalog indexes buckets by name.
type Catalog map[string]Bucket

// Lookup returns the named bucket.
func (c Catalog) Lookup(name string) (Bucket, error) {
	b, ok := c[name]
	if !ok {
		return Bucket{}, zerr.With(zerr.Wrap(ErrUnknownBucket, "bucket is not in the catalog"), "bucket", name)
	}
	return b, nil
}

// Names returns the sorted bucket names.
func (c Catalog) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Versions pins the remote release prefixes used by the default catalog.
type Versions struct {
	Tappas  string
	Hailo8  string
	Hailo10 string
}

// DefaultVersions are the releases the default catalog points at.
var DefaultVersions = Versions{
	Tappas:  "v5.0",
	Hailo8:  "v2.16.0",
	Hailo10: "v5.0.0",
}

// DefaultCatalog returns the built-in tappas and model zoo buckets.
func DefaultCatalog(v Versions) Catalog {
	return Catalog{
		BucketTappas: {
			Name:     BucketTappas,
			URL:      "https://hailo-tappas.s3.amazonaws.com",
			S3Bucket: "hailo-tappas",
			Prefix:   v.Tappas,
		},
		BucketModelZoo: {
			Name:     BucketModelZoo,
			URL:      "https://hailo-model-zoo.s3.eu-west-2.amazonaws.com",
			S3Bucket: "hailo-model-zoo",
			Prefix:   "ModelZoo/Compiled",
			Architectures: map[string]string{
				"h8":  path.Join(v.Hailo8, "hailo8"),
				"h10": path.Join(v.Hailo10, "hailo15h"),
			},
		},
	}
}
