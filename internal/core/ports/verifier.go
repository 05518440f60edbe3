package ports

import "go.trai.ch/haul/internal/core/domain"

// Verifier computes digests of local files.
//
//go:generate mockgen -source=verifier.go -destination=mocks/mock_verifier.go -package=mocks
type Verifier interface {
	// Hash streams the file at path through the given algorithm.
	Hash(path string, alg domain.Algorithm) (domain.Digest, error)
}
