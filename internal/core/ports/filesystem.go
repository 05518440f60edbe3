package ports

import "context"

// Extractor unpacks archives.
//
//go:generate mockgen -source=filesystem.go -destination=mocks/mock_filesystem.go -package=mocks
type Extractor interface {
	// Extract unpacks archive into dir.
	Extract(ctx context.Context, archive, dir string) error
}

// Linker points a destination at content that already exists on disk.
type Linker interface {
	// Link makes link resolve to target. An existing file at link is replaced.
	Link(target, link string) error
}

// RootLocker guards a target root against concurrent runs on the same machine.
type RootLocker interface {
	// Lock acquires the root or fails with domain.ErrRootLocked.
	Lock(root string) (unlock func() error, err error)
}
