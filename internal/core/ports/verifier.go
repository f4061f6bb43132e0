package ports

// Verifier defines the interface for verifying build artifacts.
//
//go:generate go run go.uber.org/mock/mockgen -source=verifier.go -destination=mocks/mock_verifier.go -package=mocks
type Verifier interface {
	// VerifyArtifact checks that exactly one regular, non-empty file
	// exists at the given path.
	VerifyArtifact(path string) error
}
