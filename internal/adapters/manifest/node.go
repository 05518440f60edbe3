package manifest

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/haul/internal/adapters/config"
	"go.trai.ch/haul/internal/core/domain"
	"go.trai.ch/haul/internal/core/ports"
)

const (
	// NodeID is the unique identifier for the manifest loader Graft node.
	NodeID graft.ID = "adapter.manifest"
	// CatalogNodeID is the unique identifier for the bucket catalog Graft node.
	CatalogNodeID graft.ID = "adapter.manifest.catalog"
)

func init() {
	graft.Register(graft.Node[ports.ManifestLoader]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.ManifestLoader, error) {
			return New(NewOSFS(), domain.DefaultTokens()), nil
		},
	})

	graft.Register(graft.Node[domain.Catalog]{
		ID:        CatalogNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{config.NodeID},
		Run: func(ctx context.Context) (domain.Catalog, error) {
			settings, err := graft.Dep[*config.Settings](ctx)
			if err != nil {
				return nil, err
			}
			return New(NewOSFS(), domain.DefaultTokens()).LoadCatalog(settings.Buckets, settings.VersionPins())
		},
	})
}
