package common

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"
)

func lookDownNegZ(far float32) Frustum {
	proj := PerspectiveZO(math32.Pi/2, 1, 1, far)
	view := mgl32.LookAtV(mgl32.Vec3{}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0})
	return ExtractFrustum(proj.Mul4(view))
}

func unitBox(x, y, z float32) Bounds {
	return Bounds{Center: mgl32.Vec3{x, y, z}, HalfExtents: mgl32.Vec3{0.5, 0.5, 0.5}}
}

func TestExtractFrustumClassifies(t *testing.T) {
	f := lookDownNegZ(100)

	require.Equal(t, Inside, f.TestBounds(unitBox(0, 0, -10)))
	require.Equal(t, Outside, f.TestBounds(unitBox(0, 0, 10)))
	require.Equal(t, Outside, f.TestBounds(unitBox(0, 0, -200)))
	require.Equal(t, Intersects, f.TestBounds(unitBox(0, 0, -100)))
	// 90 degree fov: the side planes run along x = -z
	require.Equal(t, Outside, f.TestBounds(unitBox(20, 0, -10)))
	require.Equal(t, Intersects, f.TestBounds(unitBox(10, 0, -10)))
}

func TestExtractFrustumNormalizesPlanes(t *testing.T) {
	f := lookDownNegZ(50)
	for _, p := range f.Planes {
		require.InDelta(t, 1, p.Normal.Len(), 1e-5)
	}
	require.InDelta(t, -1, f.Planes[FrustumNear].SignedDistance(mgl32.Vec3{0, 0, 0}), 1e-4)
}

func TestFrustumInfiniteFar(t *testing.T) {
	f := lookDownNegZ(100)
	far := unitBox(0, 0, -500)
	require.Equal(t, Outside, f.TestBounds(far))

	f.InfiniteFar = true
	require.Equal(t, Inside, f.TestBounds(far))
}

func TestFrustumFromBounds(t *testing.T) {
	f := FrustumFromBounds(Bounds{HalfExtents: mgl32.Vec3{10, 10, 10}})

	require.Equal(t, Inside, f.TestBounds(unitBox(0, 0, 0)))
	require.Equal(t, Intersects, f.TestBounds(unitBox(10, 0, 0)))
	require.Equal(t, Outside, f.TestBounds(unitBox(12, 0, 0)))
	require.False(t, f.Empty())
}

func TestFrustumEmpty(t *testing.T) {
	f := FrustumFromBounds(Bounds{HalfExtents: mgl32.Vec3{10, 10, 10}})
	f.Planes[FrustumLeft].Distance = -20
	require.True(t, f.Empty())
	require.Equal(t, Outside, f.TestBounds(unitBox(0, 0, 0)))
}
