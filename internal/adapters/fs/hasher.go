// Package fs provides file system adapters for hashing, walking and
// verifying files.
package fs

import (
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/udpbd-vexfat/internal/core/domain"
	"go.trai.ch/udpbd-vexfat/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Hasher = (*Hasher)(nil)

// Hasher provides content hashing for cache keys.
type Hasher struct{}

// NewHasher creates a new Hasher.
func NewHasher() *Hasher {
	return &Hasher{}
}

// ComputeFileHash computes the XXHash of a file's content.
func (h *Hasher) ComputeFileHash(path string) (uint64, error) {
	f, err := os.Open(path) //nolint:gosec // Path is controlled by caller
	if err != nil {
		return 0, zerr.With(zerr.Wrap(err, "failed to open file"), "path", path)
	}
	defer f.Close() //nolint:errcheck // Best effort close in defer

	hasher := xxhash.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return 0, zerr.With(zerr.Wrap(err, "failed to hash file content"), "path", path)
	}

	return hasher.Sum64(), nil
}

// ComputeCacheKey derives the dependency-cache key from the lockfile's
// content hash. The key changes exactly when the lockfile changes.
func (h *Hasher) ComputeCacheKey(platform, lockfilePath string) (domain.CacheKey, error) {
	sum, err := h.ComputeFileHash(lockfilePath)
	if err != nil {
		return domain.CacheKey{}, zerr.Wrap(err, "failed to hash lockfile")
	}

	return domain.CacheKey{
		Platform:     platform,
		LockfileHash: fmt.Sprintf("%016x", sum),
	}, nil
}
