// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.trai.ch/haul/internal/adapters/archive"
	_ "go.trai.ch/haul/internal/adapters/blobstore"
	_ "go.trai.ch/haul/internal/adapters/config"
	_ "go.trai.ch/haul/internal/adapters/fs"
	_ "go.trai.ch/haul/internal/adapters/lock"
	_ "go.trai.ch/haul/internal/adapters/logger"
	_ "go.trai.ch/haul/internal/adapters/manifest"
	_ "go.trai.ch/haul/internal/adapters/progress"
	_ "go.trai.ch/haul/internal/adapters/telemetry"
	// Register app and engine nodes.
	_ "go.trai.ch/haul/internal/app"
	_ "go.trai.ch/haul/internal/engine/resolver"
	_ "go.trai.ch/haul/internal/engine/syncer"
)
