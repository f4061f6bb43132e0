package ports

import (
	"context"

	"go.trai.ch/udpbd-vexfat/internal/core/domain"
)

// Publisher uploads a release asset to the release matching a tag.
//
//go:generate go run go.uber.org/mock/mockgen -source=publisher.go -destination=mocks/mock_publisher.go -package=mocks
type Publisher interface {
	// Publish attaches the file at artifactPath to the release for tag,
	// creating the release if it does not exist yet. Exactly one asset
	// is attached per tag; an existing asset with the same name is a
	// conflict, not an overwrite.
	Publish(ctx context.Context, spec domain.ReleaseSpec, tag domain.Tag, artifactPath string) (*domain.Asset, error)
}
