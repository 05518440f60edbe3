package syncer

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/haul/internal/adapters/archive"   //nolint:depguard // Wired in engine layer
	"go.trai.ch/haul/internal/adapters/blobstore" //nolint:depguard // Wired in engine layer
	"go.trai.ch/haul/internal/adapters/fs"        //nolint:depguard // Wired in engine layer
	"go.trai.ch/haul/internal/adapters/logger"    //nolint:depguard // Wired in engine layer
	"go.trai.ch/haul/internal/adapters/progress"  //nolint:depguard // Wired in engine layer
	"go.trai.ch/haul/internal/adapters/telemetry" //nolint:depguard // Wired in engine layer
	"go.trai.ch/haul/internal/core/ports"
)

// NodeID is the unique identifier for the sync engine Graft node.
const NodeID graft.ID = "engine.syncer"

func init() {
	graft.Register(graft.Node[*Engine]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			blobstore.NodeID,
			fs.VerifierNodeID,
			fs.LinkerNodeID,
			archive.NodeID,
			logger.NodeID,
			telemetry.TracerNodeID,
			progress.NodeID,
		},
		Run: func(ctx context.Context) (*Engine, error) {
			store, err := graft.Dep[ports.BlobStore](ctx)
			if err != nil {
				return nil, err
			}
			verifier, err := graft.Dep[ports.Verifier](ctx)
			if err != nil {
				return nil, err
			}
			linker, err := graft.Dep[ports.Linker](ctx)
			if err != nil {
				return nil, err
			}
			extractor, err := graft.Dep[ports.Extractor](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			tracer, err := graft.Dep[ports.Tracer](ctx)
			if err != nil {
				return nil, err
			}
			sink, err := graft.Dep[ports.Progress](ctx)
			if err != nil {
				return nil, err
			}
			return New(store, verifier, linker, extractor, log, tracer).WithProgress(sink), nil
		},
	})
}
