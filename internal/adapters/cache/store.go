// Package cache implements the on-disk dependency cache and the stage
// result store.
package cache

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/sync/errgroup"

	"go.trai.ch/udpbd-vexfat/internal/core/domain"
	"go.trai.ch/udpbd-vexfat/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.CacheStore = (*DirStore)(nil)

// DirStore implements ports.CacheStore as a directory tree under a root.
//
// Each entry lives at <root>/<key>/, holding one subtree per cached path,
// indexed by position. Save writes into a scratch directory first and
// renames it into place, so a partially written entry is never visible.
type DirStore struct {
	root string
}

// NewDirStore creates a cache store rooted at the given directory.
func NewDirStore(root string) (*DirStore, error) {
	root = filepath.Clean(root)
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, zerr.Wrap(err, "failed to create cache root")
	}
	return &DirStore{root: root}, nil
}

// Restore copies the cached trees for key back to their original paths.
// It returns false with a nil error on a cache miss.
func (s *DirStore) Restore(ctx context.Context, key domain.CacheKey, paths []string) (bool, error) {
	entry := filepath.Join(s.root, key.String())
	if _, err := os.Stat(entry); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, zerr.Wrap(err, "failed to stat cache entry")
	}

	eg, ctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		src := filepath.Join(entry, strconv.Itoa(i))
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, err := os.Stat(src); errors.Is(err, fs.ErrNotExist) {
				// Entry saved with fewer paths, treat as absent subtree
				return nil
			}
			if err := os.RemoveAll(path); err != nil {
				return zerr.With(zerr.Wrap(err, "failed to clear restore target"), "path", path)
			}
			return copyTree(src, path)
		})
	}

	if err := eg.Wait(); err != nil {
		return false, zerr.With(zerr.Wrap(err, "failed to restore cache entry"), "key", key.String())
	}

	return true, nil
}

// Save captures the given paths into the cache under key, replacing any
// existing entry.
func (s *DirStore) Save(ctx context.Context, key domain.CacheKey, paths []string) error {
	scratch, err := os.MkdirTemp(s.root, "save-*")
	if err != nil {
		return zerr.Wrap(err, "failed to create cache scratch directory")
	}
	defer os.RemoveAll(scratch) //nolint:errcheck // Best effort cleanup

	eg, ctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		dst := filepath.Join(scratch, strconv.Itoa(i))
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
				// Nothing produced at this path, skip it
				return nil
			}
			return copyTree(path, dst)
		})
	}

	if err := eg.Wait(); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to capture cache entry"), "key", key.String())
	}

	entry := filepath.Join(s.root, key.String())
	if err := os.RemoveAll(entry); err != nil {
		return zerr.Wrap(err, "failed to replace cache entry")
	}
	if err := os.Rename(scratch, entry); err != nil {
		return zerr.Wrap(err, "failed to commit cache entry")
	}

	return nil
}

// copyTree copies the file or directory tree at src to dst, preserving
// file modes and symlinks.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		switch {
		case d.IsDir():
			info, err := d.Info()
			if err != nil {
				return err
			}
			return os.MkdirAll(target, info.Mode().Perm())
		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		case d.Type().IsRegular():
			return copyFile(path, target)
		default:
			// Sockets, devices and the like have no place in a cache
			return nil
		}
	})
}

func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}

	in, err := os.Open(src) //nolint:gosec // Path comes from a walked tree
	if err != nil {
		return err
	}
	defer in.Close() //nolint:errcheck // Read-only file

	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm()) //nolint:gosec // Path comes from a walked tree
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}

	return out.Close()
}
