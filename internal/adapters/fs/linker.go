package fs

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"

	"go.trai.ch/haul/internal/core/domain"
	"go.trai.ch/haul/internal/core/ports"
	"go.trai.ch/zerr"
)

// LinkMode selects how deduplicated destinations point at their content.
type LinkMode string

const (
	// Symlink creates relative symbolic links.
	Symlink LinkMode = "symlink"
	// Hardlink creates hard links. Target and link must share a filesystem.
	Hardlink LinkMode = "hardlink"
)

var _ ports.Linker = (*Linker)(nil)

var linkSeq atomic.Uint64

// Linker creates links at a temporary name and renames them into place,
// so an interrupted run never leaves a half-made link at the destination.
type Linker struct {
	mode LinkMode
}

// NewLinker creates a Linker. An empty mode means Symlink.
func NewLinker(mode LinkMode) *Linker {
	if mode == "" {
		mode = Symlink
	}
	return &Linker{mode: mode}
}

// Link makes link resolve to target, replacing whatever is at link.
func (l *Linker) Link(target, link string) error {
	dir := filepath.Dir(link)
	if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
		return linkErr(err, target, link)
	}

	tmp := filepath.Join(dir, "."+filepath.Base(link)+".link-"+
		strconv.Itoa(os.Getpid())+"-"+strconv.FormatUint(linkSeq.Add(1), 10))

	var err error
	switch l.mode {
	case Hardlink:
		err = os.Link(target, tmp)
	default:
		err = os.Symlink(relativeTarget(target, dir), tmp)
	}
	if err != nil {
		return linkErr(err, target, link)
	}

	if err := os.Rename(tmp, link); err != nil {
		_ = os.Remove(tmp)
		return linkErr(err, target, link)
	}
	return nil
}

func relativeTarget(target, dir string) string {
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return target
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return absTarget
	}
	rel, err := filepath.Rel(absDir, absTarget)
	if err != nil {
		return absTarget
	}
	return rel
}

func linkErr(err error, target, link string) error {
	return errors.Join(domain.ErrLinkCreation,
		zerr.With(zerr.With(zerr.Wrap(err, "link not created"), "target", target), "link", link))
}
