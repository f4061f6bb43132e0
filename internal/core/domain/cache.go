package domain

import "fmt"

// CacheKey identifies one dependency-cache entry. An entry is reused
// only when the key matches exactly; a changed lockfile changes the
// hash and implicitly invalidates earlier entries.
type CacheKey struct {
	// Platform is the build host platform (e.g. "linux").
	Platform string
	// LockfileHash is the 64-bit content hash of the lockfile,
	// formatted as 16 hex digits.
	LockfileHash string
}

// String renders the key in its canonical "{platform}-cargo-{hash}" form.
func (k CacheKey) String() string {
	return fmt.Sprintf("%s-cargo-%s", k.Platform, k.LockfileHash)
}
