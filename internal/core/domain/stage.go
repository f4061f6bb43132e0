package domain

// StageName identifies one of the fixed pipeline stages.
type StageName string

const (
	// StageProvision restores the dependency cache for the current
	// lockfile before anything is built.
	StageProvision StageName = "provision"
	// StageToolchain installs the pinned compiler toolchain and the
	// foreign build target.
	StageToolchain StageName = "toolchain"
	// StageBuild cross-compiles the release binary.
	StageBuild StageName = "build"
	// StagePublish uploads the built artifact to the release for the tag.
	StagePublish StageName = "publish"
)

// StageOrder is the fixed execution order of the pipeline. Stages run
// strictly sequentially; the first failure aborts the remainder.
var StageOrder = []StageName{
	StageProvision,
	StageToolchain,
	StageBuild,
	StagePublish,
}

// String returns the stage name as a plain string.
func (s StageName) String() string {
	return string(s)
}

// Command is a single external tool invocation performed by a stage.
type Command struct {
	// Argv is the command line; Argv[0] is the executable.
	Argv []string
	// Dir is the working directory, or "" for the current one.
	Dir string
	// Environment holds stage-specific variable overrides applied on
	// top of the process environment.
	Environment map[string]string
}

// ToolchainSpec pins the compiler toolchain a release build uses.
type ToolchainSpec struct {
	// Channel is the exact toolchain version (e.g. "1.77.2"). Installing
	// it overrides any locally configured default.
	Channel string
	// Target is the foreign target triple the toolchain must be able to
	// produce code for (e.g. "x86_64-pc-windows-gnu").
	Target string
}
