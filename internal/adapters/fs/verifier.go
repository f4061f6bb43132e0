package fs

import (
	"os"

	"go.trai.ch/udpbd-vexfat/internal/core/domain"
	"go.trai.ch/udpbd-vexfat/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Verifier = (*Verifier)(nil)

// Verifier checks that a build produced a usable artifact.
type Verifier struct{}

// NewVerifier creates a new Verifier.
func NewVerifier() *Verifier {
	return &Verifier{}
}

// VerifyArtifact returns an error unless path names a regular, non-empty
// file.
func (v *Verifier) VerifyArtifact(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return zerr.With(domain.ErrArtifactMissing, "path", path)
		}
		return zerr.With(zerr.Wrap(err, "failed to stat artifact"), "path", path)
	}

	if !info.Mode().IsRegular() {
		return zerr.With(zerr.Wrap(domain.ErrArtifactMissing, "artifact is not a regular file"), "path", path)
	}
	if info.Size() == 0 {
		return zerr.With(zerr.Wrap(domain.ErrArtifactMissing, "artifact is empty"), "path", path)
	}

	return nil
}
