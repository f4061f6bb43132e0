package domain

import "go.trai.ch/zerr"

var (
	// ErrTagMismatch is returned when a tag does not match the release
	// tag pattern and the pipeline therefore must not run.
	ErrTagMismatch = zerr.New("tag does not match release pattern")

	// ErrArtifactMissing is returned when the build stage completed but
	// the expected artifact does not exist at the configured path.
	ErrArtifactMissing = zerr.New("build artifact missing")

	// ErrStageFailed is returned by the pipeline when a stage fails and
	// the remaining stages are aborted.
	ErrStageFailed = zerr.New("pipeline stage failed")

	// ErrAssetConflict is returned when the release for a tag already
	// carries an asset with the artifact's name.
	ErrAssetConflict = zerr.New("release asset already exists")

	// ErrMissingToken is returned when publishing is attempted without
	// an authentication token.
	ErrMissingToken = zerr.New("GITHUB_TOKEN is not set")

	// ErrInvalidConfig is returned when release.yaml fails validation.
	ErrInvalidConfig = zerr.New("invalid release configuration")
)
