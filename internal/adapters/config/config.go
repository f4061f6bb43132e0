// Package config provides the release.yaml configuration loader.
package config

import (
	"os"
	"path/filepath"
	"slices"

	"go.trai.ch/udpbd-vexfat/internal/core/domain"
	"go.trai.ch/udpbd-vexfat/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// DefaultFilename is the configuration file looked up when no explicit
// path is given.
const DefaultFilename = "release.yaml"

var _ ports.ConfigLoader = (*Loader)(nil)

// Loader implements ports.ConfigLoader using a YAML file.
type Loader struct{}

// NewLoader creates a new Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// releaseFile represents the structure of the release.yaml file.
type releaseFile struct {
	TagPattern string       `yaml:"tagPattern"`
	Lockfile   string       `yaml:"lockfile"`
	CachePaths []string     `yaml:"cachePaths"`
	Toolchain  toolchainDTO `yaml:"toolchain"`
	Build      commandDTO   `yaml:"build"`
	Artifact   string       `yaml:"artifact"`
	Release    releaseDTO   `yaml:"release"`
}

type toolchainDTO struct {
	Channel string `yaml:"channel"`
	Target  string `yaml:"target"`
}

type commandDTO struct {
	Cmd         []string          `yaml:"cmd"`
	Dir         string            `yaml:"dir"`
	Environment map[string]string `yaml:"environment"`
}

type releaseDTO struct {
	Owner string `yaml:"owner"`
	Repo  string `yaml:"repo"`
}

// Load reads and validates the release configuration at path.
func (l *Loader) Load(path string) (*domain.Plan, error) {
	path = filepath.Clean(path)

	data, err := os.ReadFile(path) //nolint:gosec // path is provided by user
	if err != nil {
		return nil, zerr.Wrap(err, "failed to read release config")
	}

	var file releaseFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, zerr.Wrap(err, "failed to parse release config")
	}

	plan := &domain.Plan{
		TagPattern: file.TagPattern,
		Lockfile:   file.Lockfile,
		CachePaths: canonicalizePaths(file.CachePaths),
		Toolchain: domain.ToolchainSpec{
			Channel: file.Toolchain.Channel,
			Target:  file.Toolchain.Target,
		},
		Build: domain.Command{
			Argv:        file.Build.Cmd,
			Dir:         file.Build.Dir,
			Environment: file.Build.Environment,
		},
		Artifact: file.Artifact,
		Release: domain.ReleaseSpec{
			Owner: file.Release.Owner,
			Repo:  file.Release.Repo,
		},
	}

	applyDefaults(plan)

	if err := validate(plan); err != nil {
		return nil, zerr.With(err, "path", path)
	}

	return plan, nil
}

func applyDefaults(plan *domain.Plan) {
	if plan.TagPattern == "" {
		plan.TagPattern = domain.TagPattern
	}
	if plan.Lockfile == "" {
		plan.Lockfile = "Cargo.lock"
	}
	if len(plan.CachePaths) == 0 {
		plan.CachePaths = defaultCachePaths()
	}
}

// defaultCachePaths covers the dependency registry and the incremental
// build output.
func defaultCachePaths() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return []string{
		filepath.Join(home, ".cargo", "registry"),
		filepath.Join(home, ".cargo", "git"),
		"target",
	}
}

func validate(plan *domain.Plan) error {
	switch {
	case plan.Toolchain.Channel == "":
		return zerr.Wrap(domain.ErrInvalidConfig, "toolchain.channel is required")
	case plan.Toolchain.Target == "":
		return zerr.Wrap(domain.ErrInvalidConfig, "toolchain.target is required")
	case len(plan.Build.Argv) == 0:
		return zerr.Wrap(domain.ErrInvalidConfig, "build.cmd is required")
	case plan.Artifact == "":
		return zerr.Wrap(domain.ErrInvalidConfig, "artifact is required")
	case plan.Release.Owner == "":
		return zerr.Wrap(domain.ErrInvalidConfig, "release.owner is required")
	case plan.Release.Repo == "":
		return zerr.Wrap(domain.ErrInvalidConfig, "release.repo is required")
	}

	if _, err := filepath.Match(plan.TagPattern, ""); err != nil {
		return zerr.With(zerr.Wrap(domain.ErrInvalidConfig, "invalid tag pattern"), "pattern", plan.TagPattern)
	}

	return nil
}

func canonicalizePaths(paths []string) []string {
	if len(paths) == 0 {
		return nil
	}

	cleaned := make([]string, len(paths))
	for i, p := range paths {
		cleaned[i] = filepath.Clean(p)
	}
	slices.Sort(cleaned)
	return slices.Compact(cleaned)
}
