package wiring_test

import (
	"testing"

	"github.com/grindlemire/graft"
	"github.com/stretchr/testify/require"
	"go.trai.ch/udpbd-vexfat/internal/app"
	_ "go.trai.ch/udpbd-vexfat/internal/wiring"
)

// TestComponentsResolve executes the full dependency graph and checks
// that every registered node can be constructed.
func TestComponentsResolve(t *testing.T) {
	components, _, err := graft.ExecuteFor[*app.Components](t.Context())
	require.NoError(t, err)
	require.NotNil(t, components)
	require.NotNil(t, components.App)
	require.NotNil(t, components.Logger)
}
