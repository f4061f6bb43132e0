package ports

import "go.trai.ch/udpbd-vexfat/internal/core/domain"

// Hasher defines the interface for computing content hashes.
//
//go:generate go run go.uber.org/mock/mockgen -source=hasher.go -destination=mocks/mock_hasher.go -package=mocks
type Hasher interface {
	// ComputeFileHash computes the 64-bit content hash of a file.
	ComputeFileHash(path string) (uint64, error)

	// ComputeCacheKey derives the dependency-cache key for the given
	// platform from the lockfile's content hash.
	ComputeCacheKey(platform, lockfilePath string) (domain.CacheKey, error)
}
