package frame

import (
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-cull/engine/camera"
	"github.com/stretchr/testify/require"
)

func TestContextOptions(t *testing.T) {
	start := time.Unix(100, 0)
	c := New(7, camera.View{}, WithOcclusion(true), WithBudget(2*time.Millisecond),
		WithDebug(DebugValidate|DebugNoRebuild), WithStarted(start))

	require.Equal(t, uint64(7), c.Number)
	require.True(t, c.Occlusion)
	require.Equal(t, 2*time.Millisecond, c.Budget)
	require.Equal(t, start, c.Started)
	require.True(t, c.Debug.Has(DebugValidate))
	require.False(t, c.Debug.Has(DebugFreezeCulling))
	require.Equal(t, "validate|no_rebuild", c.Debug.String())
	require.Equal(t, "none", DebugFlags(0).String())
}
