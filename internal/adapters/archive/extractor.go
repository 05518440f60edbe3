// Package archive unpacks downloaded archives into their destination folder.
package archive

import (
	"archive/tar"
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"go.trai.ch/haul/internal/core/domain"
	"go.trai.ch/haul/internal/core/ports"
	"go.trai.ch/zerr"
)

// Format is a detected archive container.
type Format string

// Supported formats.
const (
	FormatTar     Format = "tar"
	FormatTarGzip Format = "tar+gzip"
	FormatTarZstd Format = "tar+zstd"
	FormatTarLZ4  Format = "tar+lz4"
	FormatZip     Format = "zip"
)

var (
	magicGzip = []byte{0x1f, 0x8b}
	magicZstd = []byte{0x28, 0xb5, 0x2f, 0xfd}
	magicLZ4  = []byte{0x04, 0x22, 0x4d, 0x18}
	magicZip  = []byte{0x50, 0x4b, 0x03, 0x04}
)

const tarMagicOffset = 257

var _ ports.Extractor = (*Extractor)(nil)

// Extractor implements ports.Extractor for tar (plain, gzip, zstd, lz4) and zip archives.
// Entries are written through an os.Root so nothing escapes the target directory.
type Extractor struct{}

// New creates a new Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Detect sniffs the archive format from the leading bytes.
func Detect(header []byte) (Format, error) {
	switch {
	case bytes.HasPrefix(header, magicGzip):
		return FormatTarGzip, nil
	case bytes.HasPrefix(header, magicZstd):
		return FormatTarZstd, nil
	case bytes.HasPrefix(header, magicLZ4):
		return FormatTarLZ4, nil
	case bytes.HasPrefix(header, magicZip):
		return FormatZip, nil
	case len(header) >= tarMagicOffset+5 && string(header[tarMagicOffset:tarMagicOffset+5]) == "ustar":
		return FormatTar, nil
	default:
		return "", zerr.Wrap(domain.ErrUnsupportedArchive, "unrecognized archive header")
	}
}

// Extract unpacks archive into dir.
func (e *Extractor) Extract(ctx context.Context, archive, dir string) error {
	if err := e.extract(ctx, archive, dir); err != nil {
		return errors.Join(domain.ErrExtraction, zerr.With(zerr.With(err, "archive", archive), "dir", dir))
	}
	return nil
}

func (e *Extractor) extract(ctx context.Context, archive, dir string) error {
	f, err := os.Open(archive) //nolint:gosec // Path is controlled by caller
	if err != nil {
		return zerr.Wrap(err, "failed to open archive")
	}
	defer f.Close() //nolint:errcheck // Best effort close in defer

	br := bufio.NewReaderSize(f, 1<<16)
	header, err := br.Peek(tarMagicOffset + 8)
	if err != nil && !errors.Is(err, io.EOF) {
		return zerr.Wrap(err, "failed to read archive header")
	}

	format, err := Detect(header)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
		return zerr.Wrap(err, "failed to create extraction directory")
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return zerr.Wrap(err, "failed to open extraction directory")
	}
	defer root.Close() //nolint:errcheck // Best effort close in defer

	switch format {
	case FormatZip:
		return extractZip(ctx, f, root)
	case FormatTarGzip:
		zr, err := gzip.NewReader(br)
		if err != nil {
			return zerr.Wrap(err, "invalid gzip stream")
		}
		defer zr.Close() //nolint:errcheck // Best effort close in defer
		return extractTar(ctx, zr, root)
	case FormatTarZstd:
		zr, err := zstd.NewReader(br)
		if err != nil {
			return zerr.Wrap(err, "invalid zstd stream")
		}
		defer zr.Close()
		return extractTar(ctx, zr, root)
	case FormatTarLZ4:
		return extractTar(ctx, lz4.NewReader(br), root)
	default:
		return extractTar(ctx, br, root)
	}
}

func extractTar(ctx context.Context, r io.Reader, root *os.Root) error {
	tr := tar.NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return zerr.Wrap(err, "corrupt tar stream")
		}

		name, err := entryName(hdr.Name)
		if err != nil {
			return err
		}
		if name == "." {
			continue
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := root.MkdirAll(name, domain.DirPerm); err != nil {
				return zerr.With(zerr.Wrap(err, "failed to create directory"), "entry", name)
			}
		case tar.TypeReg:
			if err := writeEntry(root, name, os.FileMode(hdr.Mode).Perm(), tr); err != nil { //nolint:gosec // Mode bits are masked
				return err
			}
		case tar.TypeSymlink:
			if err := symlinkEntry(root, name, hdr.Linkname); err != nil {
				return err
			}
		case tar.TypeLink:
			target, err := entryName(hdr.Linkname)
			if err != nil {
				return err
			}
			if err := prepareParent(root, name); err != nil {
				return err
			}
			_ = root.Remove(name)
			if err := root.Link(target, name); err != nil {
				return zerr.With(zerr.Wrap(err, "failed to create hard link"), "entry", name)
			}
		default:
			// Devices, fifos and extended headers carry nothing to materialize.
		}
	}
}

func extractZip(ctx context.Context, f *os.File, root *os.Root) error {
	info, err := f.Stat()
	if err != nil {
		return zerr.Wrap(err, "failed to stat archive")
	}
	zr, err := zip.NewReader(f, info.Size())
	if err != nil {
		return zerr.Wrap(err, "corrupt zip archive")
	}

	for _, zf := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}

		name, err := entryName(zf.Name)
		if err != nil {
			return err
		}
		if name == "." {
			continue
		}

		if zf.FileInfo().IsDir() {
			if err := root.MkdirAll(name, domain.DirPerm); err != nil {
				return zerr.With(zerr.Wrap(err, "failed to create directory"), "entry", name)
			}
			continue
		}

		rc, err := zf.Open()
		if err != nil {
			return zerr.With(zerr.Wrap(err, "corrupt zip entry"), "entry", name)
		}
		err = writeEntry(root, name, zf.Mode().Perm(), rc)
		_ = rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func writeEntry(root *os.Root, name string, perm os.FileMode, r io.Reader) error {
	if err := prepareParent(root, name); err != nil {
		return err
	}
	if perm == 0 {
		perm = domain.FilePerm
	}
	out, err := root.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm|0o200)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create file"), "entry", name)
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		return zerr.With(zerr.Wrap(err, "failed to write file"), "entry", name)
	}
	if err := out.Close(); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to close file"), "entry", name)
	}
	return nil
}

func symlinkEntry(root *os.Root, name, target string) error {
	if path.IsAbs(target) {
		return zerr.With(zerr.Wrap(errors.New("absolute symlink target"), "unsafe archive entry"), "entry", name)
	}
	if _, err := entryName(path.Join(path.Dir(name), target)); err != nil {
		return err
	}
	if err := prepareParent(root, name); err != nil {
		return err
	}
	_ = root.Remove(name)
	if err := root.Symlink(target, name); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create symlink"), "entry", name)
	}
	return nil
}

func prepareParent(root *os.Root, name string) error {
	parent := path.Dir(name)
	if parent == "." {
		return nil
	}
	if err := root.MkdirAll(parent, domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create directory"), "entry", name)
	}
	return nil
}

// entryName cleans an archive member name and rejects names leaving the extraction root.
func entryName(name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	clean := path.Clean(name)
	if path.IsAbs(name) || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", zerr.With(zerr.Wrap(errors.New("path escapes extraction directory"), "unsafe archive entry"), "entry", name)
	}
	return clean, nil
}
