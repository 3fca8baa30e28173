package common

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPartitionKindsByPriority(t *testing.T) {
	kinds := PartitionKindsByPriority()
	require.Len(t, kinds, int(NumPartitionKinds))
	require.Equal(t, PartitionTerrain, kinds[0])
	require.Equal(t, PartitionHUD, kinds[len(kinds)-1])

	seen := map[PartitionKind]bool{}
	for i, k := range kinds {
		require.Equal(t, i, k.Priority())
		seen[k] = true
	}
	require.Len(t, seen, int(NumPartitionKinds))
}

func TestPartitionKindTraits(t *testing.T) {
	require.False(t, PartitionHUD.Shifts())
	require.False(t, PartitionHUDParticle.Shifts())
	require.True(t, PartitionVolume.Shifts())
	require.True(t, PartitionTerrain.InfiniteFar())
	require.False(t, PartitionVolume.InfiniteFar())
	require.Equal(t, GeometryVolume, PartitionVolume.Geometry())
	require.Equal(t, GeometryNone, PartitionWater.Geometry())
	require.False(t, PartitionTree.RenderByGroup())
}

func TestPartitionKindText(t *testing.T) {
	text, err := PartitionVoidWater.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "void_water", string(text))

	var k PartitionKind
	require.NoError(t, k.UnmarshalText([]byte(" HUD ")))
	require.Equal(t, PartitionHUD, k)
	require.Error(t, k.UnmarshalText([]byte("lava")))

	_, err = PartitionKind(99).MarshalText()
	require.Error(t, err)
	require.Equal(t, "PartitionKind(99)", PartitionKind(99).String())
}

func TestRenderPassText(t *testing.T) {
	text, err := RenderPassAlpha.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "alpha", string(text))

	var p RenderPass
	require.NoError(t, p.UnmarshalText([]byte("terrain")))
	require.Equal(t, RenderPassTerrain, p)
	require.Error(t, p.UnmarshalText([]byte("nope")))
	require.True(t, RenderPassAlpha.Blended())
	require.False(t, RenderPassSimple.Blended())
}
