package camera

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"
)

func box(x, y, z, h float32) common.Bounds {
	return common.Bounds{Center: mgl32.Vec3{x, y, z}, HalfExtents: mgl32.Vec3{h, h, h}}
}

func TestControllerOrbitPosition(t *testing.T) {
	cc := NewController(WithRadius(10), WithElevation(0), WithAzimuth(0))
	require.True(t, common.NearlyEqualVec3(mgl32.Vec3{0, 0, 10}, cc.Position(), 1e-4))

	cc.Orbit(math32.Pi/2, 0)
	require.True(t, common.NearlyEqualVec3(mgl32.Vec3{10, 0, 0}, cc.Position(), 1e-4))

	cc.Orbit(0, 10)
	require.InDelta(t, math32.Pi/2-0.05, cc.Elevation(), 1e-5)

	cc.SetRadius(0)
	require.Equal(t, float32(1), cc.Radius())
}

func TestControllerPanKeepsOrbit(t *testing.T) {
	cc := NewController(WithRadius(10), WithElevation(0))
	before := cc.Position().Sub(cc.Target())
	cc.Pan(3, 0, 2)
	require.True(t, common.NearlyEqualVec3(mgl32.Vec3{3, 0, -2}, cc.Target(), 1e-4))
	require.True(t, common.NearlyEqualVec3(before, cc.Position().Sub(cc.Target()), 1e-4))
}

func TestCameraViewCulls(t *testing.T) {
	cc := NewController(WithRadius(10), WithElevation(0))
	cam := NewCamera(WithController(cc), WithFov(math32.Pi/2), WithFar(100), WithViewportHeight(1000))

	v := cam.View()
	require.True(t, common.NearlyEqualVec3(mgl32.Vec3{0, 0, 10}, v.Origin, 1e-4))
	require.InDelta(t, 1000/(math32.Pi/2), v.PixelsPerRadian, 1e-3)
	require.True(t, common.NearlyEqualVec3(mgl32.Vec3{0, 0, -1}, v.Forward(), 1e-5))

	require.Equal(t, common.Inside, v.Frustum.TestBounds(box(0, 0, 0, 1)))
	require.Equal(t, common.Outside, v.Frustum.TestBounds(box(0, 0, 20, 1)))
	require.Equal(t, common.Outside, v.Frustum.TestBounds(box(0, 0, -200, 1)))
	infinite := v.WithInfiniteFar()
	require.NotEqual(t, common.Outside, infinite.Frustum.TestBounds(box(0, 0, -200, 1)))

	cc.Orbit(math32.Pi, 0)
	require.Equal(t, v.Origin, cam.View().Origin)
	cam.Update()
	behind := cam.View()
	require.Equal(t, common.Inside, behind.Frustum.TestBounds(box(0, 0, 20, 1)))
	require.Equal(t, common.Outside, behind.Frustum.TestBounds(box(0, 0, -20, 1)))
}

func TestCameraWithoutController(t *testing.T) {
	cam := NewCamera()
	cam.Update()
	require.Nil(t, cam.Controller())
	require.Equal(t, View{}, cam.View())
}

func TestViewLocalMatchesWorld(t *testing.T) {
	v := NewView(mgl32.Vec3{0, 0, 10}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0},
		Lens{Fov: math32.Pi / 2, Aspect: 1, Near: 1, Far: 100, ViewportHeight: 500})

	worldFromLocal := mgl32.Translate3D(30, 0, 0).Mul4(mgl32.HomogRotate3DY(math32.Pi / 2))
	local := v.Local(worldFromLocal)

	inside := box(0, 0, 0, 1)
	// (30,0,0) in local space is the world origin
	require.Equal(t, common.Outside, local.Frustum.TestBounds(inside))
	atOrigin := worldFromLocal.Inv().Mul4x1(mgl32.Vec4{0, 0, 0, 1}).Vec3()
	require.Equal(t, common.Inside, local.Frustum.TestBounds(box(atOrigin[0], atOrigin[1], atOrigin[2], 1)))
	require.True(t, common.NearlyEqualVec3(
		worldFromLocal.Inv().Mul4x1(mgl32.Vec4{0, 0, 10, 1}).Vec3(), local.Origin, 1e-4))
}

func TestViewShifted(t *testing.T) {
	v := NewView(mgl32.Vec3{0, 0, 10}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0},
		Lens{Fov: math32.Pi / 2, Aspect: 1, Near: 1, Far: 100, ViewportHeight: 500})
	s := v.Shifted(mgl32.Vec3{256, 0, 0})
	require.True(t, common.NearlyEqualVec3(mgl32.Vec3{256, 0, 10}, s.Origin, 1e-3))
	require.Equal(t, common.Inside, s.Frustum.TestBounds(box(256, 0, 0, 1)))
	require.Equal(t, common.Outside, s.Frustum.TestBounds(box(0, 0, 0, 1)))
}
