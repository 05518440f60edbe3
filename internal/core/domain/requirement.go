package domain

import (
	"path"
	"strings"

	"go.trai.ch/zerr"
)

// Requirement is one artifact request: a remote object in a bucket and its local destination.
type Requirement struct {
	// Bucket names an entry of the bucket catalog.
	Bucket string
	// Source is the object key relative to the bucket's version prefix.
	Source string
	// Destination is the local path relative to the owning group's path.
	Destination string
	// ShouldExtract marks archives that are unpacked next to Destination and then removed.
	ShouldExtract bool
	// Arch is set on requirements expanded from a per-architecture bucket.
	Arch string
	// RemoteKey is the fully qualified object key, filled in by the resolver.
	RemoteKey string
}

// Key is the identity of a requirement while processing manifests.
func (r Requirement) Key() string {
	return r.Source
}

// Validate reports the first structural problem of the requirement.
func (r Requirement) Validate() error {
	switch {
	case strings.TrimSpace(r.Bucket) == "":
		return zerr.Wrap(ErrManifestParse, "requirement has no bucket")
	case strings.TrimSpace(r.Source) == "":
		return zerr.With(zerr.Wrap(ErrManifestParse, "requirement has no source"), "bucket", r.Bucket)
	case strings.TrimSpace(r.Destination) == "":
		return zerr.With(zerr.Wrap(ErrManifestParse, "requirement has no destination"), "source", r.Source)
	case escapes(r.Destination):
		return zerr.With(zerr.Wrap(ErrManifestParse, "destination escapes its group folder"), "destination", r.Destination)
	}
	return nil
}

// RequirementGroup is the declared set of artifacts for one destination folder.
type RequirementGroup struct {
	// Name is the group file stem, used by the apps filter.
	Name string
	// Path is the destination folder relative to the target root.
	Path string
	// Platforms lists where the group applies. Empty means general.
	Platforms []Platform
	// Requirements keeps manifest order for deterministic logging.
	Requirements []Requirement
}

// Validate checks the group folder and every requirement.
func (g RequirementGroup) Validate() error {
	if strings.TrimSpace(g.Path) == "" {
		return zerr.With(zerr.Wrap(ErrManifestParse, "group has no path"), "group", g.Name)
	}
	if escapes(g.Path) {
		return zerr.With(zerr.Wrap(ErrManifestParse, "group path escapes the target root"), "path", g.Path)
	}
	for _, req := range g.Requirements {
		if err := req.Validate(); err != nil {
			return zerr.With(err, "group", g.Name)
		}
	}
	return nil
}

func escapes(p string) bool {
	p = strings.ReplaceAll(p, "\\", "/")
	if path.IsAbs(p) {
		return true
	}
	clean := path.Clean(p)
	return clean == ".." || strings.HasPrefix(clean, "../")
}
