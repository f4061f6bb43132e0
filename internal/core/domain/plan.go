package domain

// Plan is the fully validated release-pipeline configuration, loaded
// from release.yaml. It is immutable once loaded.
type Plan struct {
	// TagPattern is the glob a tag must match to trigger the pipeline.
	TagPattern string

	// Lockfile is the path to the dependency lockfile whose content
	// hash keys the dependency cache.
	Lockfile string

	// CachePaths is the fixed set of directories covered by the
	// dependency cache.
	CachePaths []string

	// Toolchain pins the compiler used for the release build.
	Toolchain ToolchainSpec

	// Build is the cross-compiling release build invocation.
	Build Command

	// Artifact is the relative path of the single binary the build
	// stage must produce.
	Artifact string

	// Release identifies the repository the artifact is published to.
	Release ReleaseSpec
}
