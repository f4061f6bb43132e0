package cache

import (
	"context"
	"os"
	"path/filepath"

	"github.com/grindlemire/graft"
	"go.trai.ch/udpbd-vexfat/internal/core/ports"
	"go.trai.ch/zerr"
)

const (
	StoreNodeID       graft.ID = "adapter.cache_store"
	ResultStoreNodeID graft.ID = "adapter.result_store"
)

// stateDir returns the per-user state directory for cache entries and
// stage results.
func stateDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", zerr.Wrap(err, "failed to resolve user cache directory")
	}
	return filepath.Join(base, "udpbd-vexfat"), nil
}

func init() {
	graft.Register(graft.Node[ports.CacheStore]{
		ID:        StoreNodeID,
		Cacheable: true,
		Run: func(ctx context.Context) (ports.CacheStore, error) {
			dir, err := stateDir()
			if err != nil {
				return nil, err
			}
			return NewDirStore(filepath.Join(dir, "deps"))
		},
	})

	graft.Register(graft.Node[ports.ResultStore]{
		ID:        ResultStoreNodeID,
		Cacheable: true,
		Run: func(ctx context.Context) (ports.ResultStore, error) {
			dir, err := stateDir()
			if err != nil {
				return nil, err
			}
			return NewResultStore(filepath.Join(dir, "results.json"))
		},
	})
}
