package resolver

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/haul/internal/adapters/config"   //nolint:depguard // Wired in engine layer
	"go.trai.ch/haul/internal/adapters/logger"   //nolint:depguard // Wired in engine layer
	"go.trai.ch/haul/internal/adapters/manifest" //nolint:depguard // Wired in engine layer
	"go.trai.ch/haul/internal/core/domain"
	"go.trai.ch/haul/internal/core/ports"
)

// NodeID is the unique identifier for the resolver Graft node.
const NodeID graft.ID = "engine.resolver"

func init() {
	graft.Register(graft.Node[ports.RequirementResolver]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			manifest.NodeID,
			manifest.CatalogNodeID,
			logger.NodeID,
		},
		Run: func(ctx context.Context) (ports.RequirementResolver, error) {
			settings, err := graft.Dep[*config.Settings](ctx)
			if err != nil {
				return nil, err
			}
			loader, err := graft.Dep[ports.ManifestLoader](ctx)
			if err != nil {
				return nil, err
			}
			catalog, err := graft.Dep[domain.Catalog](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return New(loader, catalog, log, Options{
				Architectures: settings.Architectures,
				CommonDir:     settings.CommonDir,
			}), nil
		},
	})
}
