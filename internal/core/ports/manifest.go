package ports

import "go.trai.ch/haul/internal/core/domain"

// ManifestLoader reads requirement group files.
//
//go:generate mockgen -source=manifest.go -destination=mocks/mock_manifest.go -package=mocks
type ManifestLoader interface {
	// Load parses one group file, expanding reserved placeholders.
	Load(path string) (domain.RequirementGroup, error)

	// Discover lists the group files under dir, narrowed to apps when it is not empty.
	Discover(dir string, apps []string) ([]string, error)
}

// RequirementResolver turns group files into the concrete requirements of a run.
type RequirementResolver interface {
	// Resolve loads the files, keeps the groups selected by platform and expands
	// per-architecture requirements.
	Resolve(platform domain.Platform, files []string) ([]domain.RequirementGroup, error)
}
