// Package manifest reads requirement group files and bucket catalogs.
package manifest

import (
	"errors"
	"path/filepath"
	"strings"

	"go.trai.ch/haul/internal/core/domain"
	"go.trai.ch/haul/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.ManifestLoader = (*Loader)(nil)

// Loader implements ports.ManifestLoader over a FileSystem.
type Loader struct {
	fs     FileSystem
	tokens domain.Tokens
}

// New creates a Loader that expands the given reserved placeholders.
func New(fsys FileSystem, tokens domain.Tokens) *Loader {
	return &Loader{fs: fsys, tokens: tokens}
}

// Load parses one group file. Placeholders in source and destination are
// expanded before the requirement is validated.
func (l *Loader) Load(path string) (domain.RequirementGroup, error) {
	var dto GroupDTO
	if err := l.read(path, &dto); err != nil {
		return domain.RequirementGroup{}, err
	}

	group := domain.RequirementGroup{
		Name:         stem(path),
		Path:         filepath.FromSlash(dto.Path),
		Requirements: make([]domain.Requirement, 0, len(dto.Requirements)),
	}

	for _, p := range dto.Platforms {
		platform, err := domain.ParsePlatform(p)
		if err != nil {
			return domain.RequirementGroup{}, zerr.With(err, "path", path)
		}
		group.Platforms = append(group.Platforms, platform)
	}

	for _, r := range dto.Requirements {
		source, err := l.tokens.Expand(r.Source)
		if err != nil {
			return domain.RequirementGroup{}, zerr.With(err, "path", path)
		}
		dest, err := l.tokens.Expand(r.Destination)
		if err != nil {
			return domain.RequirementGroup{}, zerr.With(err, "path", path)
		}
		group.Requirements = append(group.Requirements, domain.Requirement{
			Bucket:        strings.TrimSpace(r.Bucket),
			Source:        source,
			Destination:   filepath.FromSlash(dest),
			ShouldExtract: r.ShouldExtract,
		})
	}

	if err := group.Validate(); err != nil {
		return domain.RequirementGroup{}, zerr.With(err, "path", path)
	}
	return group, nil
}

// Discover lists the group files directly under dir in name order.
// When apps is not empty only files whose stem names one of the apps are kept,
// and every app must match at least one file.
func (l *Loader) Discover(dir string, apps []string) ([]string, error) {
	entries, err := l.fs.ReadDir(dir)
	if err != nil {
		return nil, errors.Join(domain.ErrManifestRead,
			zerr.With(zerr.Wrap(err, "failed to list requirement groups"), "dir", dir))
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !Supported(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}

	if len(apps) == 0 {
		return files, nil
	}

	wanted := make(map[string]bool, len(apps))
	for _, app := range apps {
		wanted[app] = false
	}

	var selected []string
	for _, f := range files {
		name := stem(f)
		if _, ok := wanted[name]; ok {
			wanted[name] = true
			selected = append(selected, f)
		}
	}

	for _, app := range apps {
		if !wanted[app] {
			return nil, zerr.With(zerr.With(zerr.Wrap(domain.ErrUnknownApp, "no requirement group for app"), "app", app), "dir", dir)
		}
	}
	return selected, nil
}

func (l *Loader) read(path string, v any) error {
	data, err := l.fs.ReadFile(path)
	if err != nil {
		return errors.Join(domain.ErrManifestRead, zerr.With(zerr.Wrap(err, "failed to read file"), "path", path))
	}
	if err := decode(path, data, v); err != nil {
		return errors.Join(domain.ErrManifestParse, zerr.With(zerr.Wrap(err, "failed to decode file"), "path", path))
	}
	return nil
}
