package blobstore

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/haul/internal/adapters/config"
	"go.trai.ch/haul/internal/adapters/fs"
	"go.trai.ch/haul/internal/adapters/manifest"
	"go.trai.ch/haul/internal/core/domain"
	"go.trai.ch/haul/internal/core/ports"
)

// NodeID is the unique identifier for the blob store Graft node.
const NodeID graft.ID = "adapter.blobstore"

func init() {
	graft.Register(graft.Node[ports.BlobStore]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{config.NodeID, manifest.CatalogNodeID, fs.VerifierNodeID},
		Run: func(ctx context.Context) (ports.BlobStore, error) {
			settings, err := graft.Dep[*config.Settings](ctx)
			if err != nil {
				return nil, err
			}
			catalog, err := graft.Dep[domain.Catalog](ctx)
			if err != nil {
				return nil, err
			}
			verifier, err := graft.Dep[ports.Verifier](ctx)
			if err != nil {
				return nil, err
			}
			return New(ctx, settings, catalog, verifier)
		},
	})
}
