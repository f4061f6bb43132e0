package ports

import (
	"context"

	"go.trai.ch/udpbd-vexfat/internal/core/domain"
)

// Executor defines the interface for running external tool invocations.
//
//go:generate go run go.uber.org/mock/mockgen -source=executor.go -destination=mocks/mock_executor.go -package=mocks
type Executor interface {
	// Execute runs the given command with the specified extra environment.
	//
	// The env parameter contains environment variables in "KEY=VALUE"
	// format, applied on top of the process environment. Command output
	// is streamed to the logger.
	//
	// It returns an error if the command exits non-zero.
	Execute(ctx context.Context, cmd *domain.Command, env []string) error
}
