package syncer_test

import (
	"archive/tar"
	"bytes"
	"context"
	"crypto/md5" //nolint:gosec // md5 is the store digest
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"testing/synctest"

	"github.com/klauspost/compress/gzip"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/haul/internal/adapters/archive"
	"go.trai.ch/haul/internal/adapters/fs"
	"go.trai.ch/haul/internal/adapters/telemetry"
	"go.trai.ch/haul/internal/core/domain"
	"go.trai.ch/haul/internal/core/ports/mocks"
	"go.trai.ch/haul/internal/engine/syncer"
	"go.trai.ch/zerr"
	"go.uber.org/mock/gomock"
)

func md5Of(data []byte) domain.Digest {
	sum := md5.Sum(data) //nolint:gosec // see import
	return domain.Digest{Algorithm: domain.MD5, Hex: hex.EncodeToString(sum[:])}
}

func serve(data []byte) func(context.Context, domain.Requirement, io.Writer) error {
	return func(_ context.Context, _ domain.Requirement, w io.Writer) error {
		_, err := w.Write(data)
		return err
	}
}

type fixture struct {
	store  *mocks.MockBlobStore
	engine *syncer.Engine
	root   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	store := mocks.NewMockBlobStore(ctrl)
	log := mocks.NewMockLogger(ctrl)
	log.EXPECT().Info(gomock.Any()).AnyTimes()
	log.EXPECT().Warn(gomock.Any()).AnyTimes()

	engine := syncer.New(
		store,
		fs.NewVerifier(),
		fs.NewLinker(fs.Symlink),
		archive.New(),
		log,
		telemetry.NewNoOpTracer(),
	)
	return &fixture{store: store, engine: engine, root: t.TempDir()}
}

func (f *fixture) sync(t *testing.T, workers int, groups ...domain.RequirementGroup) (domain.Report, error) {
	t.Helper()
	return f.engine.Sync(t.Context(), groups, syncer.Options{Root: f.root, Workers: workers})
}

func group(path string, reqs ...domain.Requirement) domain.RequirementGroup {
	return domain.RequirementGroup{Name: filepath.Base(path), Path: path, Requirements: reqs}
}

func req(source, dest string) domain.Requirement {
	return domain.Requirement{Bucket: "store", Source: source, Destination: dest}
}

func TestSync_FetchThenIdempotentRerun(t *testing.T) {
	f := newFixture(t)
	data := []byte("net weights")
	r := req("net.hef", "net.hef")

	f.store.EXPECT().ContentHash(gomock.Any(), r).Return(md5Of(data), nil).Times(2)
	f.store.EXPECT().Fetch(gomock.Any(), r, gomock.Any()).DoAndReturn(serve(data)).Times(1)

	report, err := f.sync(t, 1, group("models", r))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Count(domain.ActionFetched))
	assert.Equal(t, 1, report.Fetches())

	got, err := os.ReadFile(filepath.Join(f.root, "models", "net.hef"))
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.NoFileExists(t, filepath.Join(f.root, "models", ".net.hef.part"))

	report, err = f.sync(t, 1, group("models", r))
	require.NoError(t, err)
	assert.Equal(t, 0, report.Fetches())
	assert.Equal(t, []domain.Result{{
		Destination: "models/net.hef",
		Action:      domain.ActionSkipped,
		Digest:      md5Of(data),
	}}, report.Results)
}

func TestSync_DedupLinksSharedContent(t *testing.T) {
	f := newFixture(t)
	data := []byte("shared")
	a := req("a/x.hef", "x.hef")
	b := req("b/x.hef", "x.hef")

	f.store.EXPECT().ContentHash(gomock.Any(), gomock.Any()).Return(md5Of(data), nil).Times(2)
	f.store.EXPECT().Fetch(gomock.Any(), a, gomock.Any()).DoAndReturn(serve(data)).Times(1)

	report, err := f.sync(t, 1, group("a", a), group("b", b))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Count(domain.ActionFetched))
	assert.Equal(t, 1, report.Count(domain.ActionLinked))

	first := filepath.Join(f.root, "a", "x.hef")
	second := filepath.Join(f.root, "b", "x.hef")

	info, err := os.Lstat(first)
	require.NoError(t, err)
	assert.True(t, info.Mode().IsRegular())

	info, err = os.Lstat(second)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&os.ModeSymlink)

	resolved, err := filepath.EvalSymlinks(second)
	require.NoError(t, err)
	want, err := filepath.EvalSymlinks(first)
	require.NoError(t, err)
	assert.Equal(t, want, resolved)
}

func TestSync_BoundedRetrySucceeds(t *testing.T) {
	f := newFixture(t)
	good := []byte("good bytes")
	r := req("net.hef", "net.hef")

	f.store.EXPECT().ContentHash(gomock.Any(), r).Return(md5Of(good), nil)
	gomock.InOrder(
		f.store.EXPECT().Fetch(gomock.Any(), r, gomock.Any()).DoAndReturn(serve([]byte("bad 1"))),
		f.store.EXPECT().Fetch(gomock.Any(), r, gomock.Any()).DoAndReturn(serve([]byte("bad 2"))),
		f.store.EXPECT().Fetch(gomock.Any(), r, gomock.Any()).DoAndReturn(serve(good)),
	)

	report, err := f.sync(t, 1, group("models", r))
	require.NoError(t, err)
	assert.Equal(t, 3, report.Fetches())

	got, err := os.ReadFile(filepath.Join(f.root, "models", "net.hef"))
	require.NoError(t, err)
	assert.Equal(t, good, got)
}

func TestSync_RetryExhaustion(t *testing.T) {
	f := newFixture(t)
	r := req("net.hef", "net.hef")

	f.store.EXPECT().ContentHash(gomock.Any(), r).Return(md5Of([]byte("expected")), nil)
	f.store.EXPECT().Fetch(gomock.Any(), r, gomock.Any()).DoAndReturn(serve([]byte("corrupt"))).Times(domain.MaxFetchAttempts)

	report, err := f.sync(t, 1, group("models", r))
	require.ErrorIs(t, err, domain.ErrCorruptedDownload)
	assert.Empty(t, report.Results)

	dir := filepath.Join(f.root, "models")
	assert.NoFileExists(t, filepath.Join(dir, "net.hef"))
	assert.NoFileExists(t, filepath.Join(dir, ".net.hef.part"))
}

func TestSync_TransportFailureIsRetried(t *testing.T) {
	f := newFixture(t)
	data := []byte("payload")
	r := req("net.hef", "net.hef")

	f.store.EXPECT().ContentHash(gomock.Any(), r).Return(md5Of(data), nil)
	gomock.InOrder(
		f.store.EXPECT().Fetch(gomock.Any(), r, gomock.Any()).DoAndReturn(
			func(_ context.Context, _ domain.Requirement, w io.Writer) error {
				_, _ = w.Write([]byte("pay"))
				return zerr.Wrap(domain.ErrTransport, "connection reset")
			}),
		f.store.EXPECT().Fetch(gomock.Any(), r, gomock.Any()).DoAndReturn(serve(data)),
	)

	report, err := f.sync(t, 1, group("models", r))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Fetches())

	got, err := os.ReadFile(filepath.Join(f.root, "models", "net.hef"))
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestSync_StaleFileIsReplaced(t *testing.T) {
	f := newFixture(t)
	data := []byte("fresh")
	r := req("net.hef", "net.hef")

	dest := filepath.Join(f.root, "models", "net.hef")
	require.NoError(t, os.MkdirAll(filepath.Dir(dest), domain.DirPerm))
	require.NoError(t, os.WriteFile(dest, []byte("stale, and longer than the new content"), domain.FilePerm))

	f.store.EXPECT().ContentHash(gomock.Any(), r).Return(md5Of(data), nil)
	f.store.EXPECT().Fetch(gomock.Any(), r, gomock.Any()).DoAndReturn(serve(data))

	_, err := f.sync(t, 1, group("models", r))
	require.NoError(t, err)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestSync_MetadataNotFoundAbortsRun(t *testing.T) {
	f := newFixture(t)
	missing := req("missing.hef", "missing.hef")
	next := req("next.hef", "next.hef")

	f.store.EXPECT().ContentHash(gomock.Any(), missing).
		Return(domain.Digest{}, zerr.Wrap(domain.ErrMetadataNotFound, "object is not served"))

	report, err := f.sync(t, 1, group("models", missing, next))
	require.ErrorIs(t, err, domain.ErrMetadataNotFound)
	assert.Empty(t, report.Results)
	assert.NoDirExists(t, filepath.Join(f.root, "models"))
}

func TestSync_DuplicateDestinationIsSkipped(t *testing.T) {
	f := newFixture(t)
	data := []byte("one")
	first := req("one.hef", "net.hef")
	second := req("two.hef", "net.hef")

	f.store.EXPECT().ContentHash(gomock.Any(), first).Return(md5Of(data), nil)
	f.store.EXPECT().Fetch(gomock.Any(), first, gomock.Any()).DoAndReturn(serve(data))

	report, err := f.sync(t, 1, group("models", first, second))
	require.NoError(t, err)
	require.Len(t, report.Results, 2)
	assert.Equal(t, domain.ActionFetched, report.Results[0].Action)
	assert.Equal(t, domain.ActionDuplicate, report.Results[1].Action)
}

func TestSync_LinkKeepsTrustedContentWhenTargetIsReplaced(t *testing.T) {
	old := []byte("old weights")
	updated := []byte("new weights")
	a := req("a/x.hef", "x.hef")
	b := req("b/x.hef", "x.hef")
	c := req("c/x.hef", "x.hef")

	for _, tc := range []struct {
		name    string
		order   []string
		workers int
	}{
		{"links first", []string{"c", "b", "a"}, 1},
		{"owner first", []string{"a", "b", "c"}, 1},
		{"links first in parallel", []string{"c", "b", "a"}, 3},
		{"owner first in parallel", []string{"a", "b", "c"}, 3},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			reqs := map[string]domain.Requirement{"a": a, "b": b, "c": c}

			f.store.EXPECT().ContentHash(gomock.Any(), gomock.Any()).Return(md5Of(old), nil).Times(3)
			f.store.EXPECT().Fetch(gomock.Any(), a, gomock.Any()).DoAndReturn(serve(old)).Times(1)
			_, err := f.sync(t, 1, group("a", a), group("b", b), group("c", c))
			require.NoError(t, err)

			f.store.EXPECT().ContentHash(gomock.Any(), a).Return(md5Of(updated), nil)
			f.store.EXPECT().ContentHash(gomock.Any(), gomock.Not(a)).Return(md5Of(old), nil).Times(2)
			f.store.EXPECT().Fetch(gomock.Any(), a, gomock.Any()).DoAndReturn(serve(updated)).Times(1)
			f.store.EXPECT().Fetch(gomock.Any(), gomock.Not(a), gomock.Any()).DoAndReturn(serve(old)).MaxTimes(1)

			var groups []domain.RequirementGroup
			for _, name := range tc.order {
				groups = append(groups, group(name, reqs[name]))
			}
			report, err := f.sync(t, tc.workers, groups...)
			require.NoError(t, err)
			require.Len(t, report.Results, 3)

			for name, want := range map[string][]byte{"a": updated, "b": old, "c": old} {
				got, err := os.ReadFile(filepath.Join(f.root, name, "x.hef"))
				require.NoError(t, err)
				assert.Equal(t, string(want), string(got), name)
			}
		})
	}
}

func TestSync_ReplacedTargetHandsContentToFirstLink(t *testing.T) {
	f := newFixture(t)
	old := []byte("old weights")
	updated := []byte("new weights")
	a := req("a/x.hef", "x.hef")
	b := req("b/x.hef", "x.hef")

	f.store.EXPECT().ContentHash(gomock.Any(), gomock.Any()).Return(md5Of(old), nil).Times(2)
	f.store.EXPECT().Fetch(gomock.Any(), a, gomock.Any()).DoAndReturn(serve(old))
	_, err := f.sync(t, 1, group("a", a), group("b", b))
	require.NoError(t, err)

	f.store.EXPECT().ContentHash(gomock.Any(), b).Return(md5Of(old), nil)
	f.store.EXPECT().ContentHash(gomock.Any(), a).Return(md5Of(updated), nil)
	f.store.EXPECT().Fetch(gomock.Any(), a, gomock.Any()).DoAndReturn(serve(updated))

	report, err := f.sync(t, 1, group("b", b), group("a", a))
	require.NoError(t, err)
	assert.Equal(t, []domain.Action{domain.ActionSkipped, domain.ActionFetched},
		[]domain.Action{report.Results[0].Action, report.Results[1].Action})
	assert.Equal(t, 1, report.Fetches())

	info, err := os.Lstat(filepath.Join(f.root, "b", "x.hef"))
	require.NoError(t, err)
	assert.True(t, info.Mode().IsRegular())
}

func TestSync_ReportsDownloadProgress(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newFixture(t)
	data := []byte("compiled network weights")
	r := req("net.hef", "net.hef")

	progress := mocks.NewMockProgress(ctrl)
	transfer := mocks.NewMockTransfer(ctrl)
	f.engine.WithProgress(progress)

	var seen int
	progress.EXPECT().Track("models/net.hef").Return(transfer)
	transfer.EXPECT().Write(gomock.Any()).DoAndReturn(func(p []byte) (int, error) {
		seen += len(p)
		return len(p), nil
	}).AnyTimes()
	transfer.EXPECT().Done(nil)

	f.store.EXPECT().ContentHash(gomock.Any(), r).Return(md5Of(data), nil)
	f.store.EXPECT().Fetch(gomock.Any(), r, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ domain.Requirement, w io.Writer) error {
			for chunk := range slices.Chunk(data, 5) {
				if _, err := w.Write(chunk); err != nil {
					return err
				}
			}
			return nil
		})

	_, err := f.sync(t, 1, group("models", r))
	require.NoError(t, err)
	assert.Equal(t, len(data), seen)
}

func TestSync_ProgressSeesFailedAttempts(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newFixture(t)
	r := req("net.hef", "net.hef")

	progress := mocks.NewMockProgress(ctrl)
	transfer := mocks.NewMockTransfer(ctrl)
	f.engine.WithProgress(progress)

	progress.EXPECT().Track("models/net.hef").Return(transfer).Times(domain.MaxFetchAttempts)
	transfer.EXPECT().Write(gomock.Any()).Return(0, nil).AnyTimes()
	transfer.EXPECT().Done(gomock.Not(nil)).Times(domain.MaxFetchAttempts)

	f.store.EXPECT().ContentHash(gomock.Any(), r).Return(md5Of([]byte("net")), nil)
	f.store.EXPECT().Fetch(gomock.Any(), r, gomock.Any()).
		Return(zerr.Wrap(domain.ErrTransport, "connection reset")).Times(domain.MaxFetchAttempts)

	_, err := f.sync(t, 1, group("models", r))
	require.ErrorIs(t, err, domain.ErrTransport)
}

func tarGz(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, body := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Mode:     0o644,
			Size:     int64(len(body)),
			Typeflag: tar.TypeReg,
		}))
		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func TestSync_ExtractsArchive(t *testing.T) {
	f := newFixture(t)
	data := tarGz(t, map[string]string{"libs/libyolo.so": "elf"})
	r := domain.Requirement{Bucket: "store", Source: "libs.tar.gz", Destination: "libs.tar.gz", ShouldExtract: true}

	f.store.EXPECT().ContentHash(gomock.Any(), r).Return(md5Of(data), nil).Times(2)
	f.store.EXPECT().Fetch(gomock.Any(), r, gomock.Any()).DoAndReturn(serve(data)).Times(1)

	report, err := f.sync(t, 1, group("apps/detection", r))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Count(domain.ActionExtracted))

	dir := filepath.Join(f.root, "apps", "detection")
	got, err := os.ReadFile(filepath.Join(dir, "libs", "libyolo.so"))
	require.NoError(t, err)
	assert.Equal(t, "elf", string(got))
	assert.NoFileExists(t, filepath.Join(dir, "libs.tar.gz"))
	assert.FileExists(t, filepath.Join(dir, ".libs.tar.gz.haul"))

	report, err = f.sync(t, 1, group("apps/detection", r))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Count(domain.ActionSkipped))
	assert.Equal(t, 0, report.Fetches())
}

func TestSync_CorruptArchiveFails(t *testing.T) {
	f := newFixture(t)
	data := []byte("not an archive at all")
	r := domain.Requirement{Bucket: "store", Source: "libs.tar.gz", Destination: "libs.tar.gz", ShouldExtract: true}

	f.store.EXPECT().ContentHash(gomock.Any(), r).Return(md5Of(data), nil)
	f.store.EXPECT().Fetch(gomock.Any(), r, gomock.Any()).DoAndReturn(serve(data))

	_, err := f.sync(t, 1, group("apps", r))
	require.ErrorIs(t, err, domain.ErrExtraction)
	assert.NoFileExists(t, filepath.Join(f.root, "apps", ".libs.tar.gz.haul"))
}

func TestSync_SharedArchiveIsFetchedOnce(t *testing.T) {
	for _, workers := range []int{1, 2} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			synctest.Test(t, func(t *testing.T) {
				f := newFixture(t)
				data := tarGz(t, map[string]string{"libs/libyolo.so": "elf"})
				archiveReq := func(source string) domain.Requirement {
					return domain.Requirement{Bucket: "store", Source: source, Destination: "libs.tar.gz", ShouldExtract: true}
				}

				f.store.EXPECT().ContentHash(gomock.Any(), gomock.Any()).Return(md5Of(data), nil).Times(2)
				f.store.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(serve(data)).Times(1)

				report, err := f.sync(t, workers,
					group("apps/detection", archiveReq("detection/libs.tar.gz")),
					group("common", archiveReq("common/libs.tar.gz")),
				)
				require.NoError(t, err)
				assert.Equal(t, 2, report.Count(domain.ActionExtracted))
				assert.Equal(t, 1, report.Fetches())

				for _, dir := range []string{"apps/detection", "common"} {
					got, err := os.ReadFile(filepath.Join(f.root, dir, "libs", "libyolo.so"))
					require.NoError(t, err)
					assert.Equal(t, "elf", string(got))
					assert.NoFileExists(t, filepath.Join(f.root, dir, "libs.tar.gz"))
					assert.FileExists(t, filepath.Join(f.root, dir, ".libs.tar.gz.haul"))
				}
			})
		})
	}
}

func TestSync_ParallelFetchesSharedContentOnce(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		f := newFixture(t)
		data := []byte("shared weights")

		var groups []domain.RequirementGroup
		for _, app := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
			groups = append(groups, group(app, req("yolov5m.hef", "yolov5m.hef")))
		}

		f.store.EXPECT().ContentHash(gomock.Any(), gomock.Any()).Return(md5Of(data), nil).Times(len(groups))
		f.store.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(serve(data)).Times(1)

		report, err := f.sync(t, 4, groups...)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Count(domain.ActionFetched))
		assert.Equal(t, len(groups)-1, report.Count(domain.ActionLinked))

		regular := 0
		for _, g := range groups {
			info, err := os.Lstat(filepath.Join(f.root, g.Path, "yolov5m.hef"))
			require.NoError(t, err)
			if info.Mode().IsRegular() {
				regular++
			}
		}
		assert.Equal(t, 1, regular)
	})
}

func TestSync_ParallelFailFast(t *testing.T) {
	f := newFixture(t)
	bad := req("bad.hef", "bad.hef")

	f.store.EXPECT().ContentHash(gomock.Any(), bad).
		Return(domain.Digest{}, zerr.Wrap(domain.ErrMetadataNotFound, "object is not served"))
	f.store.EXPECT().ContentHash(gomock.Any(), gomock.Not(bad)).Return(md5Of([]byte("x")), nil).AnyTimes()
	f.store.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(serve([]byte("x"))).AnyTimes()

	_, err := f.sync(t, 2, group("models", bad, req("ok.hef", "ok.hef")))
	require.ErrorIs(t, err, domain.ErrMetadataNotFound)
}

func TestCheck(t *testing.T) {
	f := newFixture(t)
	fresh := []byte("fresh")
	dir := filepath.Join(f.root, "models")
	require.NoError(t, os.MkdirAll(dir, domain.DirPerm))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fresh.hef"), fresh, domain.FilePerm))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stale.hef"), []byte("old"), domain.FilePerm))

	f.store.EXPECT().ContentHash(gomock.Any(), gomock.Any()).Return(md5Of(fresh), nil).Times(3)

	statuses, err := f.engine.Check(t.Context(), []domain.RequirementGroup{group("models",
		req("fresh.hef", "fresh.hef"),
		req("stale.hef", "stale.hef"),
		req("missing.hef", "missing.hef"),
	)}, syncer.Options{Root: f.root})
	require.NoError(t, err)

	require.Len(t, statuses, 3)
	assert.Equal(t, domain.Fresh, statuses[0].Freshness)
	assert.Equal(t, domain.Stale, statuses[1].Freshness)
	assert.Equal(t, domain.Missing, statuses[2].Freshness)

	old, err := os.ReadFile(filepath.Join(dir, "stale.hef"))
	require.NoError(t, err)
	assert.Equal(t, "old", string(old))
}

func TestDump(t *testing.T) {
	f := newFixture(t)
	f.store.EXPECT().Locate(gomock.Any()).DoAndReturn(func(r domain.Requirement) (string, error) {
		return "https://hailo-tappas.s3.amazonaws.com/v5.0/" + r.Source, nil
	}).Times(3)

	var buf bytes.Buffer
	err := f.engine.Dump([]domain.RequirementGroup{
		group("apps/detection/resources",
			req("detection/detection.mp4", "detection.mp4"),
			req("detection/yolov5m.hef", "h8/yolov5m.hef"),
			req("detection/duplicate.hef", "h8/yolov5m.hef"),
		),
		group("apps/pose/resources", req("pose/pose.mp4", "pose.mp4")),
	}, &buf)
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "dump", buf.Bytes())
}
