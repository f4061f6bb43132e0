package cache_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/udpbd-vexfat/internal/adapters/cache"
	"go.trai.ch/udpbd-vexfat/internal/core/domain"
)

func testKey() domain.CacheKey {
	return domain.CacheKey{Platform: "ubuntu-latest", LockfileHash: "0123456789abcdef"}
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
}

func TestDirStore_MissReturnsFalse(t *testing.T) {
	store, err := cache.NewDirStore(t.TempDir())
	require.NoError(t, err)

	hit, err := store.Restore(t.Context(), testKey(), []string{filepath.Join(t.TempDir(), "registry")})
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestDirStore_SaveThenRestore(t *testing.T) {
	store, err := cache.NewDirStore(t.TempDir())
	require.NoError(t, err)

	work := t.TempDir()
	registry := filepath.Join(work, "registry")
	target := filepath.Join(work, "target")
	writeTree(t, registry, map[string]string{
		"index/config.json":         `{"dl":"https://example.invalid"}`,
		"cache/serde-1.0.200.crate": "crate bytes",
	})
	writeTree(t, target, map[string]string{
		"release/deps/libserde.rlib": "rlib bytes",
	})

	paths := []string{registry, target}
	require.NoError(t, store.Save(t.Context(), testKey(), paths))

	// Wipe the originals and restore them from the cache
	require.NoError(t, os.RemoveAll(registry))
	require.NoError(t, os.RemoveAll(target))

	hit, err := store.Restore(t.Context(), testKey(), paths)
	require.NoError(t, err)
	require.True(t, hit)

	data, err := os.ReadFile(filepath.Join(registry, "cache", "serde-1.0.200.crate"))
	require.NoError(t, err)
	assert.Equal(t, "crate bytes", string(data))

	data, err = os.ReadFile(filepath.Join(target, "release", "deps", "libserde.rlib"))
	require.NoError(t, err)
	assert.Equal(t, "rlib bytes", string(data))
}

func TestDirStore_SaveReplacesEntry(t *testing.T) {
	store, err := cache.NewDirStore(t.TempDir())
	require.NoError(t, err)

	work := t.TempDir()
	registry := filepath.Join(work, "registry")
	writeTree(t, registry, map[string]string{"old.crate": "old"})

	paths := []string{registry}
	require.NoError(t, store.Save(t.Context(), testKey(), paths))

	require.NoError(t, os.Remove(filepath.Join(registry, "old.crate")))
	writeTree(t, registry, map[string]string{"new.crate": "new"})
	require.NoError(t, store.Save(t.Context(), testKey(), paths))

	require.NoError(t, os.RemoveAll(registry))
	hit, err := store.Restore(t.Context(), testKey(), paths)
	require.NoError(t, err)
	require.True(t, hit)

	_, err = os.Stat(filepath.Join(registry, "old.crate"))
	assert.True(t, os.IsNotExist(err))
	data, err := os.ReadFile(filepath.Join(registry, "new.crate"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestDirStore_KeysAreIndependent(t *testing.T) {
	store, err := cache.NewDirStore(t.TempDir())
	require.NoError(t, err)

	work := t.TempDir()
	registry := filepath.Join(work, "registry")
	writeTree(t, registry, map[string]string{"a.crate": "a"})
	require.NoError(t, store.Save(t.Context(), testKey(), []string{registry}))

	other := domain.CacheKey{Platform: "ubuntu-latest", LockfileHash: "fedcba9876543210"}
	hit, err := store.Restore(t.Context(), other, []string{registry})
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestDirStore_SaveSkipsMissingPath(t *testing.T) {
	store, err := cache.NewDirStore(t.TempDir())
	require.NoError(t, err)

	work := t.TempDir()
	registry := filepath.Join(work, "registry")
	writeTree(t, registry, map[string]string{"a.crate": "a"})
	missing := filepath.Join(work, "never-created")

	paths := []string{registry, missing}
	require.NoError(t, store.Save(t.Context(), testKey(), paths))

	require.NoError(t, os.RemoveAll(registry))
	hit, err := store.Restore(t.Context(), testKey(), paths)
	require.NoError(t, err)
	require.True(t, hit)

	_, err = os.Stat(filepath.Join(registry, "a.crate"))
	assert.NoError(t, err)
	_, err = os.Stat(missing)
	assert.True(t, os.IsNotExist(err))
}

func TestResultStore_GetMissingReturnsNil(t *testing.T) {
	store, err := cache.NewResultStore(filepath.Join(t.TempDir(), "results.json"))
	require.NoError(t, err)

	result, err := store.Get(domain.StageBuild.String())
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestResultStore_PutPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")

	store, err := cache.NewResultStore(path)
	require.NoError(t, err)

	result := domain.StageResult{
		Stage:     domain.StageProvision.String(),
		CacheKey:  testKey().String(),
		Status:    string(domain.StageStatusCompleted),
		Timestamp: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Put(result))

	reopened, err := cache.NewResultStore(path)
	require.NoError(t, err)

	got, err := reopened.Get(domain.StageProvision.String())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, result, *got)
}

func TestResultStore_PutOverwrites(t *testing.T) {
	store, err := cache.NewResultStore(filepath.Join(t.TempDir(), "results.json"))
	require.NoError(t, err)

	require.NoError(t, store.Put(domain.StageResult{Stage: domain.StageBuild.String(), Status: string(domain.StageStatusRunning)}))
	require.NoError(t, store.Put(domain.StageResult{Stage: domain.StageBuild.String(), Status: string(domain.StageStatusFailed)}))

	got, err := store.Get(domain.StageBuild.String())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, string(domain.StageStatusFailed), got.Status)
}
