package progress

import (
	"context"
	"os"

	"github.com/grindlemire/graft"
	"github.com/mattn/go-isatty"
	"go.trai.ch/haul/internal/adapters/config"
	"go.trai.ch/haul/internal/core/ports"
)

// NodeID is the unique identifier for the progress Graft node.
const NodeID graft.ID = "adapter.progress"

func init() {
	graft.Register(graft.Node[ports.Progress]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{config.NodeID},
		Run: func(ctx context.Context) (ports.Progress, error) {
			settings, err := graft.Dep[*config.Settings](ctx)
			if err != nil {
				return nil, err
			}
			return ForTerminal(os.Stderr, settings.Log.JSON), nil
		},
	})
}

// ForTerminal returns a Recorder printing to f when f is an interactive terminal
// and output is not JSON, and Discard otherwise.
func ForTerminal(f *os.File, json bool) ports.Progress {
	if json || !(isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return Discard{}
	}
	return NewRecorder(NewPrinter(f, DefaultStep))
}
