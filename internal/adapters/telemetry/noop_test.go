package telemetry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/udpbd-vexfat/internal/adapters/telemetry"
	"go.trai.ch/zerr"
)

func TestNoOpTracer(t *testing.T) {
	tracer := telemetry.NewNoOpTracer()

	ctx, span := tracer.Start(t.Context(), "anything")
	assert.NotNil(t, ctx)
	require.NotNil(t, span)

	n, err := span.Write([]byte("output"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	span.SetAttribute("key", "value")
	span.RecordError(zerr.New("ignored"))
	span.End()

	tracer.EmitPlan(ctx, []string{"provision"})
}
