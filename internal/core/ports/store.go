package ports

import (
	"context"

	"go.trai.ch/udpbd-vexfat/internal/core/domain"
)

// CacheStore defines the interface for the dependency cache.
//
// Entries are keyed by (platform, lockfile hash) and hold the
// accumulated dependency directories. An entry is created on the first
// miss and reused as long as the key matches; writes are
// last-writer-wins with no locking discipline beyond the filesystem's.
//
//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks
type CacheStore interface {
	// Restore copies the cached trees for key back to their original
	// paths. It returns false with a nil error on a cache miss.
	Restore(ctx context.Context, key domain.CacheKey, paths []string) (bool, error)

	// Save captures the given paths into the cache under key,
	// replacing any existing entry.
	Save(ctx context.Context, key domain.CacheKey, paths []string) error
}

// ResultStore defines the interface for persisting stage results.
type ResultStore interface {
	// Get retrieves the recorded result for a stage.
	// Returns nil, nil if not found.
	Get(stage string) (*domain.StageResult, error)

	// Put stores the stage result.
	Put(result domain.StageResult) error
}
