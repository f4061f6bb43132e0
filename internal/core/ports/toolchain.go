package ports

import (
	"context"

	"go.trai.ch/udpbd-vexfat/internal/core/domain"
)

// ToolchainInstaller prepares the pinned compiler toolchain for a
// cross-compiling release build.
//
// Implementations are responsible for:
//   - Installing the exact channel the ToolchainSpec names
//   - Adding the foreign target (e.g. "x86_64-pc-windows-gnu")
//   - Overriding any locally configured default toolchain
//
//go:generate go run go.uber.org/mock/mockgen -source=toolchain.go -destination=mocks/mock_toolchain.go -package=mocks
type ToolchainInstaller interface {
	// Install ensures the toolchain described by spec is present and
	// selected. Returns an error if any installer command fails.
	Install(ctx context.Context, spec domain.ToolchainSpec) error
}
