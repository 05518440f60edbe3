package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.trai.ch/haul/internal/core/domain"
	"go.trai.ch/haul/internal/core/ports"
	"go.trai.ch/zerr"
)

func (r *run) process(ctx context.Context, j job) (res domain.Result, err error) {
	ctx, span := r.tracer.Start(ctx, "requirement")
	defer func() {
		span.SetAttribute("destination", j.rel)
		span.SetAttribute("action", string(res.Action))
		span.SetAttribute("attempts", res.Attempts)
		span.RecordError(err)
		span.End()
	}()

	res = domain.Result{Destination: j.rel}
	if j.duplicate {
		r.logger.Warn(fmt.Sprintf("duplicate destination %s, keeping the first requirement", j.rel))
		res.Action = domain.ActionDuplicate
		return res, nil
	}

	expected, err := r.store.ContentHash(ctx, j.req)
	if err != nil {
		return res, err
	}
	res.Digest = expected
	span.SetAttribute("digest", expected)

	if j.req.ShouldExtract {
		return r.unpack(ctx, j, res)
	}

	fresh, err := r.refresh(j, expected)
	if err != nil {
		return res, err
	}
	if fresh {
		res.Action = domain.ActionSkipped
		r.logger.Info(fmt.Sprintf("up to date %s", j.rel))
		return res, nil
	}
	return r.materialize(ctx, j, res)
}

// materialize links content this run already holds, or downloads it.
// Claiming the digest before downloading keeps concurrent workers from fetching the same content.
func (r *run) materialize(ctx context.Context, j job, res domain.Result) (domain.Result, error) {
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		won, wait := r.cache.Claim(res.Digest)
		if !won {
			src, ok := wait()
			if !ok {
				continue
			}
			if err := r.link(res.Digest, src, j); err != nil {
				return res, err
			}
			res.Action = domain.ActionLinked
			r.logger.Info(fmt.Sprintf("linked %s", j.rel))
			return res, nil
		}

		attempts, err := r.fetch(ctx, j, res.Digest)
		res.Attempts = attempts
		if err != nil {
			r.cache.Abandon(res.Digest)
			return res, err
		}
		r.cache.Register(res.Digest, j.dest)
		res.Action = domain.ActionFetched
		r.logger.Info(fmt.Sprintf("fetched %s", j.rel))
		return res, nil
	}
}

// unpack handles archives. Their destination file is removed once the run ends, so
// a marker next to it records which digest was extracted.
func (r *run) unpack(ctx context.Context, j job, res domain.Result) (domain.Result, error) {
	if r.markerMatches(j.dest, res.Digest) {
		res.Action = domain.ActionSkipped
		r.logger.Info(fmt.Sprintf("up to date %s", j.rel))
		return res, nil
	}

	fresh, err := r.refresh(j, res.Digest)
	if err != nil {
		return res, err
	}

	archive, attempts, err := r.obtain(ctx, j, res.Digest, fresh)
	res.Attempts = attempts
	if err != nil {
		return res, err
	}

	if err := r.extractor.Extract(ctx, archive, filepath.Dir(j.dest)); err != nil {
		return res, err
	}
	marker := domain.MarkerPath(j.dest)
	if err := os.WriteFile(marker, []byte(res.Digest.String()+"\n"), domain.FilePerm); err != nil {
		return res, errors.Join(domain.ErrFileWriteFailed, zerr.With(zerr.Wrap(err, "write extraction marker"), "path", marker))
	}

	res.Action = domain.ActionExtracted
	r.logger.Info(fmt.Sprintf("extracted %s", j.rel))
	return res, nil
}

// obtain returns a local copy of the archive: content this run already holds, an
// identical archive another requirement downloaded, or a fresh download. Archives
// at their own destination stay on disk until the run ends.
func (r *run) obtain(ctx context.Context, j job, d domain.Digest, fresh bool) (string, int, error) {
	if fresh {
		r.archives.Register(d, j.dest)
		r.retain(j.dest)
		return j.dest, 0, nil
	}
	if src, ok := r.cache.Lookup(d); ok {
		return src, 0, nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return "", 0, err
		}

		won, wait := r.archives.Claim(d)
		if !won {
			if src, ok := wait(); ok {
				return src, 0, nil
			}
			continue
		}

		attempts, err := r.fetch(ctx, j, d)
		if err != nil {
			r.archives.Abandon(d)
			return "", attempts, err
		}
		r.retain(j.dest)
		r.archives.Register(d, j.dest)
		return j.dest, attempts, nil
	}
}

func (r *run) retain(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retained = append(r.retained, path)
}

// dropArchives removes the archives kept for sharing.
func (r *run) dropArchives() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.retained {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			r.logger.Warn(fmt.Sprintf("failed to remove archive %s: %v", p, err))
		}
	}
	r.retained = nil
}

// fetch downloads into a sibling part file and renames it over the destination once
// its digest matches. A failed attempt always deletes the part file.
func (r *run) fetch(ctx context.Context, j job, expected domain.Digest) (int, error) {
	dir := filepath.Dir(j.dest)
	if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
		return 0, errors.Join(domain.ErrFileWriteFailed, zerr.With(zerr.Wrap(err, "create destination folder"), "path", dir))
	}

	part := domain.PartPath(j.dest)
	var lastErr error
	for attempt := 1; attempt <= domain.MaxFetchAttempts; attempt++ {
		got, err := r.download(ctx, j, part, expected.Algorithm)
		if err == nil && got == expected {
			if err := os.Rename(part, j.dest); err != nil {
				_ = os.Remove(part)
				return attempt, errors.Join(domain.ErrFileWriteFailed,
					zerr.With(zerr.Wrap(err, "move download into place"), "path", j.dest))
			}
			return attempt, nil
		}
		_ = os.Remove(part)

		if err != nil {
			if ctx.Err() != nil || !errors.Is(err, domain.ErrTransport) {
				return attempt, err
			}
			lastErr = err
			r.logger.Warn(fmt.Sprintf("transport failure on %s (attempt %d/%d)", j.rel, attempt, domain.MaxFetchAttempts))
			continue
		}

		lastErr = zerr.With(zerr.With(zerr.With(
			zerr.Wrap(domain.ErrCorruptedDownload, "digest mismatch on every attempt"),
			"expected", expected.String()),
			"actual", got.String()),
			"attempts", domain.MaxFetchAttempts)
		r.logger.Warn(fmt.Sprintf("digest mismatch on %s (attempt %d/%d)", j.rel, attempt, domain.MaxFetchAttempts))
	}
	return domain.MaxFetchAttempts, lastErr
}

func (r *run) download(ctx context.Context, j job, part string, alg domain.Algorithm) (domain.Digest, error) {
	f, err := os.OpenFile(part, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, domain.FilePerm) //nolint:gosec // part path derives from the destination
	if err != nil {
		return domain.Digest{}, errors.Join(domain.ErrFileWriteFailed, zerr.With(zerr.Wrap(err, "create part file"), "path", part))
	}
	tr := r.track(j.rel)
	fetchErr := r.store.Fetch(ctx, j.req, io.MultiWriter(f, tr))
	closeErr := f.Close()
	if fetchErr != nil {
		tr.Done(fetchErr)
		return domain.Digest{}, fetchErr
	}
	if closeErr != nil {
		tr.Done(closeErr)
		return domain.Digest{}, errors.Join(domain.ErrFileWriteFailed, zerr.With(zerr.Wrap(closeErr, "flush part file"), "path", part))
	}
	tr.Done(nil)
	return r.verifier.Hash(part, alg)
}

func (e *Engine) track(name string) ports.Transfer {
	if e.progress == nil {
		return quiet{}
	}
	return e.progress.Track(name)
}

type quiet struct{}

func (quiet) Write(p []byte) (int, error) { return len(p), nil }

func (quiet) Done(error) {}

// refresh reports whether the destination already holds expected. A stale file or a
// dangling link is removed. A fresh destination becomes a link source for the rest of the run.
func (r *run) refresh(j job, expected domain.Digest) (bool, error) {
	linked := isSymlink(j.dest)
	if linked {
		r.mu.Lock()
		defer r.mu.Unlock()
	}

	state, err := r.freshness(j, expected)
	if err != nil {
		return false, err
	}
	switch state {
	case domain.Fresh:
		if !j.req.ShouldExtract {
			r.remember(expected, j, linked)
		}
		return true, nil
	case domain.Stale:
		r.logger.Info(fmt.Sprintf("stale %s, replacing", j.rel))
		if !linked {
			r.mu.Lock()
			defer r.mu.Unlock()
			if err := r.handOver(j.dest); err != nil {
				return false, err
			}
		}
		if err := os.Remove(j.dest); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return false, errors.Join(domain.ErrFileWriteFailed, zerr.With(zerr.Wrap(err, "remove stale file"), "path", j.dest))
		}
	}
	return false, nil
}

// freshness classifies the destination against expected without side effects.
// For archives a matching extraction marker counts as fresh.
func (e *Engine) freshness(j job, expected domain.Digest) (domain.Freshness, error) {
	if j.req.ShouldExtract && e.markerMatches(j.dest, expected) {
		return domain.Fresh, nil
	}

	info, err := os.Lstat(j.dest)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.Missing, nil
	}
	if err != nil {
		return "", errors.Join(domain.ErrFileWriteFailed, zerr.With(zerr.Wrap(err, "stat destination"), "path", j.dest))
	}
	if info.IsDir() {
		return "", zerr.With(zerr.Wrap(domain.ErrFileWriteFailed, "destination is a directory"), "path", j.dest)
	}

	got, err := e.verifier.Hash(j.dest, expected.Algorithm)
	switch {
	case err == nil && got == expected:
		return domain.Fresh, nil
	case err == nil, errors.Is(err, fs.ErrNotExist):
		return domain.Stale, nil
	default:
		return "", err
	}
}

func (e *Engine) markerMatches(dest string, expected domain.Digest) bool {
	data, err := os.ReadFile(domain.MarkerPath(dest)) //nolint:gosec // marker path derives from the destination
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(data)) == expected.String()
}

// remember registers the real file behind a fresh destination so later links never
// chain through a link. A link accepted through a file another requirement owns is
// recorded as a borrow. The caller holds mu when linked is set.
func (r *run) remember(d domain.Digest, j job, linked bool) {
	if !linked {
		r.cache.Register(d, j.dest)
		return
	}
	target := realPath(j.dest)
	r.cache.Register(d, target)
	r.lend(target, d, j)
}

// link points j at src. It resolves the digest again under mu because a borrowed
// source may have been handed over since the caller looked it up.
func (r *run) link(d domain.Digest, src string, j job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.cache.Lookup(d); ok {
		src = cur
	}
	if err := r.linker.Link(src, j.dest); err != nil {
		return err
	}
	if _, ok := r.borrowed[realPath(src)]; ok && isSymlink(j.dest) {
		r.lend(realPath(src), d, j)
	}
	return nil
}

func (r *run) lend(target string, d domain.Digest, j job) {
	b, ok := r.borrowed[target]
	if !ok {
		b = &borrow{digest: d}
		r.borrowed[target] = b
	}
	b.links = append(b.links, j)
}

// handOver runs before a stale file is replaced. When links accepted earlier in the
// run resolve to it, the old content moves to the first of them and the others are
// repointed there, so every link keeps the digest it was trusted for. The caller holds mu.
func (r *run) handOver(dest string) error {
	key := realPath(dest)
	b, ok := r.borrowed[key]
	if !ok {
		return nil
	}
	delete(r.borrowed, key)

	heir := b.links[0]
	if err := os.Rename(dest, heir.dest); err != nil {
		return errors.Join(domain.ErrFileWriteFailed,
			zerr.With(zerr.With(zerr.Wrap(err, "keep content for linked destination"), "from", dest), "to", heir.dest))
	}
	for _, l := range b.links[1:] {
		if err := r.linker.Link(heir.dest, l.dest); err != nil {
			return err
		}
	}

	owner := realPath(heir.dest)
	r.cache.Rebind(b.digest, key, owner)
	if len(b.links) > 1 {
		r.borrowed[owner] = &borrow{digest: b.digest, links: b.links[1:]}
	}
	r.logger.Info(fmt.Sprintf("kept previous content for %s", heir.rel))
	return nil
}

func isSymlink(path string) bool {
	info, err := os.Lstat(path)
	return err == nil && info.Mode()&os.ModeSymlink != 0
}

// realPath resolves every link in path. Unresolvable paths are returned unchanged.
func realPath(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	return path
}
