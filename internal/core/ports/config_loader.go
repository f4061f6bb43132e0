package ports

import "go.trai.ch/udpbd-vexfat/internal/core/domain"

// ConfigLoader defines the interface for loading the release plan.
//
//go:generate go run go.uber.org/mock/mockgen -source=config_loader.go -destination=mocks/mock_config_loader.go -package=mocks
type ConfigLoader interface {
	// Load reads and validates the release configuration at path.
	Load(path string) (*domain.Plan, error)
}
