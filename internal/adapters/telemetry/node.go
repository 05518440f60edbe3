package telemetry

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/haul/internal/adapters/config"
	"go.trai.ch/haul/internal/build"
	"go.trai.ch/haul/internal/core/ports"
)

// TracerNodeID is the unique identifier for the tracer Graft node.
const TracerNodeID graft.ID = "adapter.telemetry"

func init() {
	graft.Register(graft.Node[ports.Tracer]{
		ID:        TracerNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{config.NodeID},
		Run: func(ctx context.Context) (ports.Tracer, error) {
			settings, err := graft.Dep[*config.Settings](ctx)
			if err != nil {
				return nil, err
			}
			if settings.OTel.Endpoint == "" {
				return NewNoOpTracer(), nil
			}
			return NewOTLPTracer(ctx, settings.OTel.Endpoint, build.Version)
		},
	})
}
