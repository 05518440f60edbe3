// Package syncer materializes resolved requirements under a target root.
//
// Each requirement goes through the same decision chain: ask the store for the
// expected digest, trust a local file only when its digest matches, link content
// already materialized during this run, otherwise download and verify with a
// bounded number of attempts, and finally unpack archives in place.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"go.trai.ch/haul/internal/core/domain"
	"go.trai.ch/haul/internal/core/ports"
	"go.trai.ch/haul/internal/engine/dedup"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// Options configures one run.
type Options struct {
	// Root is the target directory every group path is relative to.
	Root string
	// Workers bounds parallel requirement processing. Values below 2 process in manifest order.
	Workers int
}

// Engine orchestrates the skip, link, fetch and extract decisions.
type Engine struct {
	store     ports.BlobStore
	verifier  ports.Verifier
	linker    ports.Linker
	extractor ports.Extractor
	logger    ports.Logger
	tracer    ports.Tracer
	progress  ports.Progress
}

// New creates an Engine.
func New(
	store ports.BlobStore,
	verifier ports.Verifier,
	linker ports.Linker,
	extractor ports.Extractor,
	logger ports.Logger,
	tracer ports.Tracer,
) *Engine {
	return &Engine{
		store:     store,
		verifier:  verifier,
		linker:    linker,
		extractor: extractor,
		logger:    logger,
		tracer:    tracer,
	}
}

// WithProgress reports every download attempt to p.
func (e *Engine) WithProgress(p ports.Progress) *Engine {
	e.progress = p
	return e
}

// job is one requirement bound to its location under the root.
type job struct {
	req domain.Requirement
	// dest is the absolute destination path.
	dest string
	// rel is the slash separated destination relative to the root, used in logs and reports.
	rel string
	// duplicate is set when an earlier requirement already owns dest.
	duplicate bool
}

func plan(root string, groups []domain.RequirementGroup) []job {
	var jobs []job
	seen := make(map[string]bool)
	for _, g := range groups {
		for _, req := range g.Requirements {
			rel := filepath.Join(g.Path, filepath.FromSlash(req.Destination))
			dest := filepath.Join(root, rel)
			jobs = append(jobs, job{
				req:       req,
				dest:      dest,
				rel:       filepath.ToSlash(rel),
				duplicate: seen[dest],
			})
			seen[dest] = true
		}
	}
	return jobs
}

// Sync brings every destination up to date and reports what happened to each requirement.
// The first unrecoverable error aborts the run; the report then holds the requirements
// settled so far.
func (e *Engine) Sync(ctx context.Context, groups []domain.RequirementGroup, opts Options) (domain.Report, error) {
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return domain.Report{}, zerr.With(zerr.Wrap(err, "invalid target root"), "root", opts.Root)
	}

	jobs := plan(root, groups)

	ctx, span := e.tracer.Start(ctx, "sync")
	defer span.End()
	span.SetAttribute("root", root)
	span.SetAttribute("requirements", len(jobs))
	span.SetAttribute("workers", max(opts.Workers, 1))

	r := &run{
		Engine:   e,
		cache:    dedup.New(),
		archives: dedup.New(),
		borrowed: make(map[string]*borrow),
	}
	results := make([]domain.Result, len(jobs))
	if opts.Workers > 1 {
		err = r.parallel(ctx, jobs, results, opts.Workers)
	} else {
		err = r.sequential(ctx, jobs, results)
	}
	r.dropArchives()

	var report domain.Report
	for _, res := range results {
		if res.Action != "" {
			report.Add(res)
		}
	}
	if err != nil {
		span.RecordError(err)
		return report, err
	}
	return report, nil
}

// run holds the state of one Sync call.
type run struct {
	*Engine
	cache *dedup.Cache
	// archives holds downloaded archives kept for other extract requirements until the run ends.
	archives *dedup.Cache

	// mu orders accepting links to another destination against replacing that destination.
	mu       sync.Mutex
	borrowed map[string]*borrow
	retained []string
}

// borrow records the links accepted through a real file that another requirement owns.
type borrow struct {
	digest domain.Digest
	links  []job
}

func (r *run) sequential(ctx context.Context, jobs []job, results []domain.Result) error {
	for i, j := range jobs {
		res, err := r.process(ctx, j)
		results[i] = res
		if err != nil {
			return failed(err, j)
		}
	}
	return nil
}

// parallel processes distinct destinations concurrently. The first failure cancels
// the remaining work.
func (r *run) parallel(ctx context.Context, jobs []job, results []domain.Result, workers int) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, j := range jobs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res, err := r.process(gctx, j)
			results[i] = res
			if err != nil {
				return failed(err, j)
			}
			return nil
		})
	}
	return g.Wait()
}

func failed(err error, j job) error {
	return zerr.With(zerr.Wrap(err, "requirement failed"), "destination", j.rel)
}

// Check compares every destination with the store without changing anything on disk.
func (e *Engine) Check(ctx context.Context, groups []domain.RequirementGroup, opts Options) ([]domain.Status, error) {
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "invalid target root"), "root", opts.Root)
	}

	ctx, span := e.tracer.Start(ctx, "check")
	defer span.End()

	var statuses []domain.Status
	for _, j := range plan(root, groups) {
		if j.duplicate {
			continue
		}
		expected, err := e.store.ContentHash(ctx, j.req)
		if err != nil {
			span.RecordError(err)
			return statuses, failed(err, j)
		}

		state, err := e.freshness(j, expected)
		if err != nil {
			span.RecordError(err)
			return statuses, failed(err, j)
		}
		e.logger.Info(fmt.Sprintf("%s %s", state, j.rel))
		statuses = append(statuses, domain.Status{Destination: j.rel, Freshness: state, Digest: expected})
	}
	span.SetAttribute("requirements", len(statuses))
	return statuses, nil
}

// Dump writes one "<locator> -> <destination>" line per requirement. It performs no I/O
// against the store.
func (e *Engine) Dump(groups []domain.RequirementGroup, w io.Writer) error {
	for _, j := range plan("", groups) {
		if j.duplicate {
			continue
		}
		loc, err := e.store.Locate(j.req)
		if err != nil {
			return failed(err, j)
		}
		if _, err := fmt.Fprintf(w, "%s -> %s\n", loc, j.rel); err != nil {
			return errors.Join(domain.ErrFileWriteFailed, zerr.Wrap(err, "write dump line"))
		}
	}
	return nil
}
