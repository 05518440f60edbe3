package domain

import (
	"encoding/hex"
	"strings"

	"go.trai.ch/zerr"
)

// Algorithm names a content hash function.
type Algorithm string

// Supported digest algorithms.
const (
	MD5    Algorithm = "md5"
	SHA256 Algorithm = "sha256"
	XXH64  Algorithm = "xxh64"
	BLAKE3 Algorithm = "blake3"
)

// hexLen is the encoded length of each algorithm's sum.
var hexLen = map[Algorithm]int{
	MD5:    32,
	SHA256: 64,
	XXH64:  16,
	BLAKE3: 64,
}

// ParseAlgorithm validates an algorithm name.
func ParseAlgorithm(s string) (Algorithm, error) {
	alg := Algorithm(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := hexLen[alg]; !ok {
		return "", zerr.With(zerr.Wrap(ErrUnknownAlgorithm, "unsupported digest algorithm"), "algorithm", s)
	}
	return alg, nil
}

// Digest is a content hash tagged with the algorithm that produced it.
// It is the deduplication key and the remote integrity check.
type Digest struct {
	Algorithm Algorithm
	Hex       string
}

// NewDigest builds a Digest from a lowercase or uppercase hex sum.
func NewDigest(alg Algorithm, sum string) (Digest, error) {
	want, ok := hexLen[alg]
	if !ok {
		return Digest{}, zerr.With(zerr.Wrap(ErrUnknownAlgorithm, "unsupported digest algorithm"), "algorithm", string(alg))
	}
	sum = strings.ToLower(strings.TrimSpace(sum))
	if len(sum) != want {
		return Digest{}, zerr.With(zerr.Wrap(ErrInvalidDigest, "unexpected digest length"), "digest", sum)
	}
	if _, err := hex.DecodeString(sum); err != nil {
		return Digest{}, zerr.With(zerr.Wrap(ErrInvalidDigest, "digest is not hex encoded"), "digest", sum)
	}
	return Digest{Algorithm: alg, Hex: sum}, nil
}

// ParseDigest parses the "algorithm:hex" form produced by String.
func ParseDigest(s string) (Digest, error) {
	alg, sum, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return Digest{}, zerr.With(zerr.Wrap(ErrInvalidDigest, "missing algorithm prefix"), "digest", s)
	}
	parsed, err := ParseAlgorithm(alg)
	if err != nil {
		return Digest{}, err
	}
	return NewDigest(parsed, sum)
}

// IsZero reports whether the digest is unset.
func (d Digest) IsZero() bool {
	return d.Hex == ""
}

// String returns the "algorithm:hex" form.
func (d Digest) String() string {
	return string(d.Algorithm) + ":" + d.Hex
}
