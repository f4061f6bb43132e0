package fs_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/udpbd-vexfat/internal/adapters/fs"
	"go.trai.ch/udpbd-vexfat/internal/core/domain"
)

func TestHasher_ComputeFileHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Cargo.lock")
	require.NoError(t, os.WriteFile(path, []byte("[[package]]\nname = \"udpbd-vexfat\"\n"), 0o600))

	hasher := fs.NewHasher()

	hash1, err := hasher.ComputeFileHash(path)
	require.NoError(t, err)
	assert.NotZero(t, hash1)

	// Verify determinism
	hash2, err := hasher.ComputeFileHash(path)
	require.NoError(t, err)
	assert.Equal(t, hash1, hash2)
}

func TestHasher_ComputeFileHash_ContentSensitive(t *testing.T) {
	dir := t.TempDir()
	pathA := filepath.Join(dir, "a.lock")
	pathB := filepath.Join(dir, "b.lock")
	require.NoError(t, os.WriteFile(pathA, []byte("version = 1"), 0o600))
	require.NoError(t, os.WriteFile(pathB, []byte("version = 2"), 0o600))

	hasher := fs.NewHasher()

	hashA, err := hasher.ComputeFileHash(pathA)
	require.NoError(t, err)
	hashB, err := hasher.ComputeFileHash(pathB)
	require.NoError(t, err)

	assert.NotEqual(t, hashA, hashB)
}

func TestHasher_ComputeFileHash_Missing(t *testing.T) {
	hasher := fs.NewHasher()

	_, err := hasher.ComputeFileHash(filepath.Join(t.TempDir(), "missing.lock"))
	require.Error(t, err)
}

func TestHasher_ComputeCacheKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Cargo.lock")
	require.NoError(t, os.WriteFile(path, []byte("[[package]]\n"), 0o600))

	hasher := fs.NewHasher()

	key, err := hasher.ComputeCacheKey("ubuntu-latest", path)
	require.NoError(t, err)

	assert.Equal(t, "ubuntu-latest", key.Platform)
	assert.Len(t, key.LockfileHash, 16)
	assert.Regexp(t, `^ubuntu-latest-cargo-[0-9a-f]{16}$`, key.String())

	// Same content yields the same key, changed content a different one
	key2, err := hasher.ComputeCacheKey("ubuntu-latest", path)
	require.NoError(t, err)
	assert.Equal(t, key, key2)

	require.NoError(t, os.WriteFile(path, []byte("[[package]]\nname = \"x\"\n"), 0o600))
	key3, err := hasher.ComputeCacheKey("ubuntu-latest", path)
	require.NoError(t, err)
	assert.NotEqual(t, key.LockfileHash, key3.LockfileHash)
}

func TestVerifier_VerifyArtifact(t *testing.T) {
	dir := t.TempDir()
	verifier := fs.NewVerifier()

	t.Run("valid artifact", func(t *testing.T) {
		path := filepath.Join(dir, "udpbd-vexfat.exe")
		require.NoError(t, os.WriteFile(path, []byte("MZ"), 0o600))
		assert.NoError(t, verifier.VerifyArtifact(path))
	})

	t.Run("missing artifact", func(t *testing.T) {
		err := verifier.VerifyArtifact(filepath.Join(dir, "nope.exe"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrArtifactMissing))
	})

	t.Run("empty artifact", func(t *testing.T) {
		path := filepath.Join(dir, "empty.exe")
		require.NoError(t, os.WriteFile(path, nil, 0o600))
		err := verifier.VerifyArtifact(path)
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrArtifactMissing))
	})

	t.Run("directory is not an artifact", func(t *testing.T) {
		path := filepath.Join(dir, "out")
		require.NoError(t, os.MkdirAll(path, 0o750))
		err := verifier.VerifyArtifact(path)
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrArtifactMissing))
	})
}
