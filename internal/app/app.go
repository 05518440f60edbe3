// Package app implements the application layer for haul.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.trai.ch/haul/internal/core/domain"
	"go.trai.ch/haul/internal/core/ports"
	"go.trai.ch/haul/internal/engine/syncer"
	"go.trai.ch/zerr"
)

// App runs the sync, check and dump use cases.
type App struct {
	loader   ports.ManifestLoader
	resolver ports.RequirementResolver
	engine   *syncer.Engine
	locker   ports.RootLocker
	logger   ports.Logger
	defaults RunOptions
}

// New creates a new App instance.
func New(
	loader ports.ManifestLoader,
	resolver ports.RequirementResolver,
	engine *syncer.Engine,
	locker ports.RootLocker,
	log ports.Logger,
) *App {
	return &App{
		loader:   loader,
		resolver: resolver,
		engine:   engine,
		locker:   locker,
		logger:   log,
		defaults: RunOptions{
			Platform:  domain.PlatformGeneral,
			Root:      ".",
			Manifests: "requirements",
			Workers:   1,
			DumpFile:  domain.DumpFileName,
		},
	}
}

// WithDefaults replaces the values used for options left empty by the caller.
func (a *App) WithDefaults(d RunOptions) *App {
	a.defaults = d.merge(a.defaults)
	return a
}

// RunOptions configures one invocation. Zero fields fall back to the App defaults.
type RunOptions struct {
	Platform domain.Platform
	// Root is the target directory.
	Root string
	// Manifests is the directory holding requirement group files. Relative paths
	// are resolved against Root.
	Manifests string
	// Apps narrows the run to the group files with these names.
	Apps     []string
	Workers  int
	DumpFile string
}

func (o RunOptions) merge(d RunOptions) RunOptions {
	if o.Platform == "" {
		o.Platform = d.Platform
	}
	if o.Root == "" {
		o.Root = d.Root
	}
	if o.Manifests == "" {
		o.Manifests = d.Manifests
	}
	if len(o.Apps) == 0 {
		o.Apps = d.Apps
	}
	if o.Workers < 1 {
		o.Workers = d.Workers
	}
	if o.DumpFile == "" {
		o.DumpFile = d.DumpFile
	}
	return o
}

// Sync resolves the requirement groups and brings the target root up to date.
func (a *App) Sync(ctx context.Context, opts RunOptions) error {
	opts = opts.merge(a.defaults)

	groups, err := a.resolve(opts)
	if err != nil {
		return err
	}

	unlock, err := a.locker.Lock(opts.Root)
	if err != nil {
		return err
	}
	defer func() {
		if err := unlock(); err != nil {
			a.logger.Warn(fmt.Sprintf("failed to release lock on %s: %v", opts.Root, err))
		}
	}()

	report, err := a.engine.Sync(ctx, groups, syncer.Options{Root: opts.Root, Workers: opts.Workers})
	a.logger.Info(summary(report))
	if err != nil {
		return errors.Join(domain.ErrSyncFailed, err)
	}
	return nil
}

// Check reports whether every destination holds its expected content. It returns
// domain.ErrNotFresh when anything is stale or missing.
func (a *App) Check(ctx context.Context, opts RunOptions) error {
	opts = opts.merge(a.defaults)

	groups, err := a.resolve(opts)
	if err != nil {
		return err
	}

	statuses, err := a.engine.Check(ctx, groups, syncer.Options{Root: opts.Root})
	if err != nil {
		return err
	}

	var outdated int
	for _, s := range statuses {
		if s.Freshness != domain.Fresh {
			outdated++
		}
	}
	if outdated > 0 {
		return zerr.With(zerr.With(zerr.Wrap(domain.ErrNotFresh, "check found outdated artifacts"),
			"outdated", outdated), "total", len(statuses))
	}
	a.logger.Info(fmt.Sprintf("%d artifacts up to date", len(statuses)))
	return nil
}

// Dump writes the intended locator to destination mapping to the dump file.
// It never contacts the store.
func (a *App) Dump(_ context.Context, opts RunOptions) error {
	opts = opts.merge(a.defaults)

	groups, err := a.resolve(opts)
	if err != nil {
		return err
	}

	f, err := os.Create(opts.DumpFile)
	if err != nil {
		return errors.Join(domain.ErrFileWriteFailed, zerr.With(zerr.Wrap(err, "create dump file"), "path", opts.DumpFile))
	}
	if err := a.engine.Dump(groups, f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.Join(domain.ErrFileWriteFailed, zerr.With(zerr.Wrap(err, "close dump file"), "path", opts.DumpFile))
	}
	a.logger.Info(fmt.Sprintf("requirements written to %s", opts.DumpFile))
	return nil
}

func (a *App) resolve(opts RunOptions) ([]domain.RequirementGroup, error) {
	platform, err := domain.ParsePlatform(string(opts.Platform))
	if err != nil {
		return nil, err
	}

	dir := opts.Manifests
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(opts.Root, dir)
	}

	files, err := a.loader.Discover(dir, opts.Apps)
	if err != nil {
		return nil, err
	}
	return a.resolver.Resolve(platform, files)
}

func summary(r domain.Report) string {
	parts := []string{fmt.Sprintf("%d requirements", len(r.Results))}
	for _, action := range []domain.Action{
		domain.ActionFetched,
		domain.ActionExtracted,
		domain.ActionLinked,
		domain.ActionSkipped,
		domain.ActionDuplicate,
	} {
		if n := r.Count(action); n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, action))
		}
	}
	return strings.Join(parts, ", ")
}
