package fs

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/haul/internal/adapters/config"
	"go.trai.ch/haul/internal/core/ports"
)

const (
	// VerifierNodeID is the unique identifier for the verifier Graft node.
	VerifierNodeID graft.ID = "adapter.fs.verifier"
	// LinkerNodeID is the unique identifier for the linker Graft node.
	LinkerNodeID graft.ID = "adapter.fs.linker"
)

func init() {
	graft.Register(graft.Node[ports.Verifier]{
		ID:        VerifierNodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.Verifier, error) {
			return NewVerifier(), nil
		},
	})

	graft.Register(graft.Node[ports.Linker]{
		ID:        LinkerNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{config.NodeID},
		Run: func(ctx context.Context) (ports.Linker, error) {
			settings, err := graft.Dep[*config.Settings](ctx)
			if err != nil {
				return nil, err
			}
			return NewLinker(LinkMode(settings.LinkMode)), nil
		},
	})
}
