// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.trai.ch/udpbd-vexfat/internal/adapters/cache"
	_ "go.trai.ch/udpbd-vexfat/internal/adapters/config"
	_ "go.trai.ch/udpbd-vexfat/internal/adapters/fs"
	_ "go.trai.ch/udpbd-vexfat/internal/adapters/github"
	_ "go.trai.ch/udpbd-vexfat/internal/adapters/logger"
	_ "go.trai.ch/udpbd-vexfat/internal/adapters/shell"
	_ "go.trai.ch/udpbd-vexfat/internal/adapters/telemetry/progrock"
	_ "go.trai.ch/udpbd-vexfat/internal/adapters/toolchain"
	// Register app nodes.
	_ "go.trai.ch/udpbd-vexfat/internal/app"
)
