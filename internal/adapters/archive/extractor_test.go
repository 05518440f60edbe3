package archive_test

import (
	"archive/tar"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/haul/internal/adapters/archive"
	"go.trai.ch/haul/internal/core/domain"
)

type entry struct {
	name     string
	body     string
	typeflag byte
	linkname string
}

var sample = []entry{
	{name: "resources/", typeflag: tar.TypeDir},
	{name: "resources/net.hef", body: "weights"},
	{name: "resources/labels.json", body: `{"0":"person"}`},
	{name: "resources/current.hef", typeflag: tar.TypeSymlink, linkname: "net.hef"},
}

func tarBytes(t *testing.T, entries []entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Mode: 0o644, Typeflag: e.typeflag, Linkname: e.linkname}
		if hdr.Typeflag == 0 {
			hdr.Typeflag = tar.TypeReg
			hdr.Size = int64(len(e.body))
		}
		if hdr.Typeflag == tar.TypeDir {
			hdr.Mode = 0o755
		}
		require.NoError(t, tw.WriteHeader(hdr))
		if hdr.Typeflag == tar.TypeReg {
			_, err := tw.Write([]byte(e.body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	return buf.Bytes()
}

func compress(t *testing.T, format archive.Format, raw []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	var w io.WriteCloser
	switch format {
	case archive.FormatTarGzip:
		w = gzip.NewWriter(&buf)
	case archive.FormatTarZstd:
		zw, err := zstd.NewWriter(&buf)
		require.NoError(t, err)
		w = zw
	case archive.FormatTarLZ4:
		w = lz4.NewWriter(&buf)
	default:
		return raw
	}
	_, err := w.Write(raw)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func writeArchive(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, data, domain.FilePerm))
	return p
}

func assertSample(t *testing.T, dir string) {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "resources", "net.hef"))
	require.NoError(t, err)
	assert.Equal(t, "weights", string(data))

	data, err = os.ReadFile(filepath.Join(dir, "resources", "labels.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"0":"person"}`, string(data))
}

func TestExtract_TarFormats(t *testing.T) {
	for _, format := range []archive.Format{
		archive.FormatTar,
		archive.FormatTarGzip,
		archive.FormatTarZstd,
		archive.FormatTarLZ4,
	} {
		t.Run(string(format), func(t *testing.T) {
			src := writeArchive(t, "bundle.tar", compress(t, format, tarBytes(t, sample)))
			dir := t.TempDir()

			require.NoError(t, archive.New().Extract(context.Background(), src, dir))
			assertSample(t, dir)

			link, err := os.Readlink(filepath.Join(dir, "resources", "current.hef"))
			require.NoError(t, err)
			assert.Equal(t, "net.hef", link)
		})
	}
}

func TestExtract_Zip(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, err := zw.Create("resources/")
	require.NoError(t, err)
	for _, e := range sample[1:3] {
		w, err := zw.Create(e.name)
		require.NoError(t, err)
		_, err = w.Write([]byte(e.body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	src := writeArchive(t, "bundle.zip", buf.Bytes())
	dir := t.TempDir()
	require.NoError(t, archive.New().Extract(context.Background(), src, dir))
	assertSample(t, dir)
}

func TestExtract_RejectsTraversal(t *testing.T) {
	tests := map[string][]entry{
		"dot dot":          {{name: "../evil.txt", body: "x"}},
		"absolute":         {{name: "/tmp/evil.txt", body: "x"}},
		"escaping symlink": {{name: "link", typeflag: tar.TypeSymlink, linkname: "../../etc/passwd"}},
	}
	for name, entries := range tests {
		t.Run(name, func(t *testing.T) {
			parent := t.TempDir()
			dir := filepath.Join(parent, "out")
			src := writeArchive(t, "evil.tar.gz", compress(t, archive.FormatTarGzip, tarBytes(t, entries)))

			err := archive.New().Extract(context.Background(), src, dir)
			require.ErrorIs(t, err, domain.ErrExtraction)

			_, statErr := os.Stat(filepath.Join(parent, "evil.txt"))
			assert.True(t, os.IsNotExist(statErr))
		})
	}
}

func TestExtract_Corrupt(t *testing.T) {
	good := compress(t, archive.FormatTarGzip, tarBytes(t, sample))
	truncated := good[:len(good)/2]

	src := writeArchive(t, "broken.tar.gz", truncated)
	err := archive.New().Extract(context.Background(), src, t.TempDir())
	require.ErrorIs(t, err, domain.ErrExtraction)

	src = writeArchive(t, "plain.bin", []byte("definitely not an archive"))
	err = archive.New().Extract(context.Background(), src, t.TempDir())
	require.ErrorIs(t, err, domain.ErrExtraction)
	require.ErrorIs(t, err, domain.ErrUnsupportedArchive)
}

func TestExtract_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := writeArchive(t, "bundle.tar.gz", compress(t, archive.FormatTarGzip, tarBytes(t, sample)))
	err := archive.New().Extract(ctx, src, t.TempDir())
	require.ErrorIs(t, err, context.Canceled)
}

func TestDetect(t *testing.T) {
	_, err := archive.Detect([]byte{0x00})
	require.ErrorIs(t, err, domain.ErrUnsupportedArchive)

	f, err := archive.Detect([]byte{0x1f, 0x8b, 0x08})
	require.NoError(t, err)
	assert.Equal(t, archive.FormatTarGzip, f)
}
