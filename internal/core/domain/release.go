// Package domain contains the core domain models for the udpbd-vexfat
// server and its release pipeline.
package domain

import (
	"path"
	"time"

	"go.trai.ch/zerr"
)

// TagPattern is the glob a pushed tag must match for the release
// pipeline to run.
const TagPattern = "v*.*.*"

// Tag is a version-control tag naming a release (e.g. "v1.2.3").
type Tag string

// String returns the tag as a plain string.
func (t Tag) String() string {
	return string(t)
}

// Matches reports whether the tag matches the given glob pattern.
func (t Tag) Matches(pattern string) bool {
	ok, err := path.Match(pattern, string(t))
	return err == nil && ok
}

// Validate checks the tag against TagPattern and returns
// ErrTagMismatch with metadata if it does not match.
func (t Tag) Validate() error {
	if t == "" {
		return zerr.With(ErrTagMismatch, "tag", "")
	}
	if !t.Matches(TagPattern) {
		err := zerr.With(ErrTagMismatch, "tag", string(t))
		return zerr.With(err, "pattern", TagPattern)
	}
	return nil
}

// ReleaseSpec identifies the repository a release asset is published to.
type ReleaseSpec struct {
	// Owner is the repository owner (e.g. a GitHub user or org).
	Owner string
	// Repo is the repository name.
	Repo string
}

// Release is a published version marker an asset can be attached to.
type Release struct {
	ID      int64
	Tag     Tag
	Created time.Time
}

// Asset is a single file attached to a release, downloadable by end
// users. Exactly one asset is produced per tag.
type Asset struct {
	ID   int64
	Name string
	Size int64
	URL  string
}
