// Package ports defines the core interfaces for the application.
package ports

import (
	"context"
	"io"

	"go.trai.ch/haul/internal/core/domain"
)

// BlobStore is the remote artifact transport.
//
//go:generate mockgen -source=blobstore.go -destination=mocks/mock_blobstore.go -package=mocks
type BlobStore interface {
	// ContentHash returns the expected digest of the requirement's remote object.
	// It fails with domain.ErrMetadataNotFound when the object does not exist.
	ContentHash(ctx context.Context, req domain.Requirement) (domain.Digest, error)

	// Fetch streams the object bytes into w.
	// Failures are transport errors, never digest mismatches.
	Fetch(ctx context.Context, req domain.Requirement, w io.Writer) error

	// Locate returns a human readable locator for the object without any I/O.
	Locate(req domain.Requirement) (string, error)
}
