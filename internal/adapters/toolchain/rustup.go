// Package toolchain implements the pinned Rust toolchain installer on
// top of rustup.
package toolchain

import (
	"context"
	"fmt"

	"go.trai.ch/udpbd-vexfat/internal/core/domain"
	"go.trai.ch/udpbd-vexfat/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.ToolchainInstaller = (*Rustup)(nil)

// Rustup implements ports.ToolchainInstaller by driving the rustup CLI.
type Rustup struct {
	executor ports.Executor
	logger   ports.Logger
}

// NewRustup creates a new Rustup installer.
func NewRustup(executor ports.Executor, logger ports.Logger) *Rustup {
	return &Rustup{executor: executor, logger: logger}
}

// Install ensures the pinned toolchain and the foreign target are
// present and selected as the default.
//
// The steps mirror a fresh CI host: install the exact channel with the
// target preloaded, then force it as the default so cargo picks it up
// regardless of any rust-toolchain file or prior override.
func (r *Rustup) Install(ctx context.Context, spec domain.ToolchainSpec) error {
	r.logger.Info(fmt.Sprintf("installing toolchain %s for %s", spec.Channel, spec.Target))

	steps := []*domain.Command{
		{Argv: []string{
			"rustup", "toolchain", "install", spec.Channel,
			"--profile", "minimal",
			"--target", spec.Target,
			"--no-self-update",
		}},
		{Argv: []string{"rustup", "default", spec.Channel}},
	}

	for _, step := range steps {
		if err := r.executor.Execute(ctx, step, nil); err != nil {
			wrapped := zerr.With(zerr.Wrap(err, "toolchain install failed"), "channel", spec.Channel)
			return zerr.With(wrapped, "target", spec.Target)
		}
	}

	return nil
}
