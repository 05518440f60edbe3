package lock

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/haul/internal/core/ports"
)

// NodeID is the unique identifier for the root locker Graft node.
const NodeID graft.ID = "adapter.lock"

func init() {
	graft.Register(graft.Node[ports.RootLocker]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.RootLocker, error) {
			return NewFileLocker(), nil
		},
	})
}
