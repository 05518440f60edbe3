// Package fs implements local file hashing and linking.
package fs

import (
	"crypto/md5" //nolint:gosec // md5 is the remote store's integrity digest
	_ "crypto/sha256"
	"encoding/hex"
	"errors"
	"hash"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/opencontainers/go-digest"
	"github.com/zeebo/blake3"
	"go.trai.ch/haul/internal/core/domain"
	"go.trai.ch/haul/internal/core/ports"
	"go.trai.ch/zerr"
)

// ChunkSize is the read block used when streaming a file through a hash.
const ChunkSize = 1 << 20

var _ ports.Verifier = (*Verifier)(nil)

// Verifier computes file digests with bounded memory.
type Verifier struct{}

// NewVerifier creates a new Verifier.
func NewVerifier() *Verifier {
	return &Verifier{}
}

// Hash streams the file at path through alg in ChunkSize blocks.
func (v *Verifier) Hash(path string, alg domain.Algorithm) (domain.Digest, error) {
	h, err := newHash(alg)
	if err != nil {
		return domain.Digest{}, err
	}

	f, err := os.Open(path) //nolint:gosec // Path is controlled by caller
	if err != nil {
		return domain.Digest{}, errors.Join(domain.ErrHashFailed, zerr.With(zerr.Wrap(err, "open failed"), "path", path))
	}
	defer f.Close() //nolint:errcheck // Best effort close in defer

	buf := make([]byte, ChunkSize)
	for {
		n, rerr := f.Read(buf)
		if n > 0 {
			_, _ = h.Write(buf[:n])
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return domain.Digest{}, errors.Join(domain.ErrHashFailed, zerr.With(zerr.Wrap(rerr, "read failed"), "path", path))
		}
	}

	return domain.Digest{Algorithm: alg, Hex: hex.EncodeToString(h.Sum(nil))}, nil
}

// HashReader digests an in-memory or streamed source.
func HashReader(r io.Reader, alg domain.Algorithm) (domain.Digest, error) {
	h, err := newHash(alg)
	if err != nil {
		return domain.Digest{}, err
	}
	if _, err := io.CopyBuffer(h, r, make([]byte, ChunkSize)); err != nil {
		return domain.Digest{}, errors.Join(domain.ErrHashFailed, zerr.Wrap(err, "read failed"))
	}
	return domain.Digest{Algorithm: alg, Hex: hex.EncodeToString(h.Sum(nil))}, nil
}

func newHash(alg domain.Algorithm) (hash.Hash, error) {
	switch alg {
	case domain.MD5:
		return md5.New(), nil //nolint:gosec // See import
	case domain.SHA256:
		return digest.SHA256.Hash(), nil
	case domain.XXH64:
		return xxhash.New(), nil
	case domain.BLAKE3:
		return blake3.New(), nil
	default:
		return nil, zerr.With(zerr.Wrap(domain.ErrUnknownAlgorithm, "cannot hash"), "algorithm", string(alg))
	}
}
