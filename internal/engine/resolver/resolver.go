// Package resolver turns requirement group files into the concrete requirements of one run.
package resolver

import (
	"fmt"
	"path/filepath"

	"go.trai.ch/haul/internal/core/domain"
	"go.trai.ch/haul/internal/core/ports"
	"go.trai.ch/zerr"
)

// CommonGroupName names the synthetic group that mirrors every artifact into the common directory.
const CommonGroupName = "common"

var _ ports.RequirementResolver = (*Resolver)(nil)

// Options configures a Resolver.
type Options struct {
	// Architectures lists the targets per-architecture buckets expand into, in order.
	Architectures []string
	// CommonDir, when set, receives a flattened copy of every resolved requirement.
	CommonDir string
}

// Resolver implements ports.RequirementResolver.
type Resolver struct {
	loader  ports.ManifestLoader
	catalog domain.Catalog
	logger  ports.Logger
	opts    Options
}

// New creates a Resolver. Duplicate architectures are dropped, keeping the first occurrence.
func New(loader ports.ManifestLoader, catalog domain.Catalog, logger ports.Logger, opts Options) *Resolver {
	archs := make([]string, 0, len(opts.Architectures))
	seen := make(map[string]bool, len(opts.Architectures))
	for _, a := range opts.Architectures {
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		archs = append(archs, a)
	}
	opts.Architectures = archs

	return &Resolver{
		loader:  loader,
		catalog: catalog,
		logger:  logger,
		opts:    opts,
	}
}

// Resolve loads files in order, keeps the groups selected by platform and resolves
// every requirement against the bucket catalog. All parse and catalog errors surface
// here, before any network activity.
func (r *Resolver) Resolve(platform domain.Platform, files []string) ([]domain.RequirementGroup, error) {
	platform, err := domain.ParsePlatform(string(platform))
	if err != nil {
		return nil, err
	}

	groups := make([]domain.RequirementGroup, 0, len(files))
	for _, f := range files {
		group, err := r.loader.Load(f)
		if err != nil {
			return nil, err
		}
		if !platform.Selects(group.Platforms) {
			continue
		}
		resolved, err := r.expand(group)
		if err != nil {
			return nil, zerr.With(err, "group", group.Name)
		}
		groups = append(groups, resolved)
	}

	if r.opts.CommonDir != "" && len(groups) > 0 {
		groups = append([]domain.RequirementGroup{r.commonGroup(groups)}, groups...)
	}
	return groups, nil
}

// expand fills remote keys and multiplies per-architecture requirements.
func (r *Resolver) expand(group domain.RequirementGroup) (domain.RequirementGroup, error) {
	out := group
	out.Requirements = make([]domain.Requirement, 0, len(group.Requirements))
	seen := make(map[string]bool, len(group.Requirements))

	for _, req := range group.Requirements {
		bucket, err := r.catalog.Lookup(req.Bucket)
		if err != nil {
			return domain.RequirementGroup{}, zerr.With(err, "source", req.Source)
		}

		archs := []string{""}
		if bucket.PerArch() {
			if len(r.opts.Architectures) == 0 {
				return domain.RequirementGroup{}, zerr.With(zerr.Wrap(domain.ErrUnknownArchitecture,
					"no supported architectures configured"), "bucket", bucket.Name)
			}
			archs = r.opts.Architectures
		}

		for _, arch := range archs {
			concrete := req
			concrete.Arch = arch
			if arch != "" {
				concrete.Destination = filepath.Join(arch, req.Destination)
			}
			concrete.RemoteKey, err = bucket.Key(req.Source, arch)
			if err != nil {
				return domain.RequirementGroup{}, err
			}

			id := concrete.Key() + "\x00" + concrete.Destination
			if seen[id] {
				r.logger.Warn(fmt.Sprintf("duplicate requirement %s -> %s in %s ignored",
					concrete.Source, concrete.Destination, group.Name))
				continue
			}
			seen[id] = true
			out.Requirements = append(out.Requirements, concrete)
		}
	}
	return out, nil
}

// commonGroup mirrors every resolved requirement into the common directory under its base name.
// Architecture-qualified requirements keep their architecture folder.
func (r *Resolver) commonGroup(groups []domain.RequirementGroup) domain.RequirementGroup {
	common := domain.RequirementGroup{
		Name: CommonGroupName,
		Path: r.opts.CommonDir,
	}
	seen := make(map[string]string)

	for _, g := range groups {
		for _, req := range g.Requirements {
			mirrored := req
			mirrored.Destination = filepath.Base(req.Destination)
			if req.Arch != "" {
				mirrored.Destination = filepath.Join(req.Arch, mirrored.Destination)
			}
			if key, ok := seen[mirrored.Destination]; ok {
				if key != mirrored.RemoteKey {
					r.logger.Warn(fmt.Sprintf("%s already mirrors %s, skipping %s",
						mirrored.Destination, key, mirrored.RemoteKey))
				}
				continue
			}
			seen[mirrored.Destination] = mirrored.RemoteKey
			common.Requirements = append(common.Requirements, mirrored)
		}
	}
	return common
}
