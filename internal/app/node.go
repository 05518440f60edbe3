package app

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/haul/internal/adapters/config"    //nolint:depguard // Wired in app layer
	"go.trai.ch/haul/internal/adapters/lock"      //nolint:depguard // Wired in app layer
	"go.trai.ch/haul/internal/adapters/logger"    //nolint:depguard // Wired in app layer
	"go.trai.ch/haul/internal/adapters/manifest"  //nolint:depguard // Wired in app layer
	"go.trai.ch/haul/internal/adapters/telemetry" //nolint:depguard // Wired in app layer
	"go.trai.ch/haul/internal/core/domain"
	"go.trai.ch/haul/internal/core/ports"
	"go.trai.ch/haul/internal/engine/resolver"
	"go.trai.ch/haul/internal/engine/syncer"
)

const (
	// AppNodeID is the unique identifier for the main App Graft node.
	AppNodeID graft.ID = "app.main"
	// ComponentsNodeID is the unique identifier for the App components Graft node.
	ComponentsNodeID graft.ID = "app.components"
)

func init() {
	graft.Register(graft.Node[*App]{
		ID:        AppNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			manifest.NodeID,
			resolver.NodeID,
			syncer.NodeID,
			lock.NodeID,
			logger.NodeID,
		},
		Run: runAppNode,
	})

	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			AppNodeID,
			logger.NodeID,
			telemetry.TracerNodeID,
		},
		Run: func(ctx context.Context) (*Components, error) {
			app, err := graft.Dep[*App](ctx)
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
			return NewComponents(app, log, tracer), nil
		},
	})
}

func runAppNode(ctx context.Context) (*App, error) {
	settings, err := graft.Dep[*config.Settings](ctx)
	if err != nil {
		return nil, err
	}
	loader, err := graft.Dep[ports.ManifestLoader](ctx)
	if err != nil {
		return nil, err
	}
	res, err := graft.Dep[ports.RequirementResolver](ctx)
	if err != nil {
		return nil, err
	}
	engine, err := graft.Dep[*syncer.Engine](ctx)
	if err != nil {
		return nil, err
	}
	locker, err := graft.Dep[ports.RootLocker](ctx)
	if err != nil {
		return nil, err
	}
	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}

	return New(loader, res, engine, locker, log).WithDefaults(RunOptions{
		Platform:  domain.PlatformGeneral,
		Root:      settings.Root,
		Manifests: settings.Manifests,
		Workers:   settings.Workers,
		DumpFile:  settings.DumpFile,
	}), nil
}
