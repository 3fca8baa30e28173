package occlusion

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"
)

func box(x, y, z, h float32) common.Bounds {
	return common.Bounds{Center: mgl32.Vec3{x, y, z}, HalfExtents: mgl32.Vec3{h, h, h}}
}

func TestOccludersWallHidesTarget(t *testing.T) {
	o := NewOccluders()
	wall := o.Add(common.Bounds{Center: mgl32.Vec3{0, 0, -5}, HalfExtents: mgl32.Vec3{10, 10, 0.5}})
	eye := mgl32.Vec3{0, 0, 0}

	require.True(t, o.Occluded(box(0, 0, -20, 1), eye))
	// in front of the wall
	require.False(t, o.Occluded(box(0, 0, -2, 0.5), eye))
	// peeks out past the wall edge
	require.False(t, o.Occluded(box(0, 0, -20, 30), eye))

	o.Remove(wall)
	require.Equal(t, 0, o.Len())
	require.False(t, o.Occluded(box(0, 0, -20, 1), eye))
}

func TestOccludersIgnoreOverlapAndEyeInside(t *testing.T) {
	o := NewOccluders()
	o.Add(box(0, 0, -10, 3))

	// the target overlaps the occluder
	require.False(t, o.Occluded(box(0, 0, -12, 2), mgl32.Vec3{}))
	// the eye is inside the occluder
	require.False(t, o.Occluded(box(0, 0, -30, 1), mgl32.Vec3{0, 0, -10}))
	// the eye is inside the target
	require.False(t, o.Occluded(box(0, 0, 0, 1), mgl32.Vec3{}))
}

func TestOccludersShift(t *testing.T) {
	o := NewOccluders()
	o.Add(common.Bounds{Center: mgl32.Vec3{0, 0, -5}, HalfExtents: mgl32.Vec3{10, 10, 0.5}})
	o.Shift(mgl32.Vec3{100, 0, 0})
	require.False(t, o.Occluded(box(0, 0, -20, 1), mgl32.Vec3{}))
	require.True(t, o.Occluded(box(100, 0, -20, 1), mgl32.Vec3{100, 0, 0}))
}

func TestDeferredProviderLatency(t *testing.T) {
	o := NewOccluders()
	o.Add(common.Bounds{Center: mgl32.Vec3{0, 0, -5}, HalfExtents: mgl32.Vec3{10, 10, 0.5}})
	p := NewDeferredProvider(o, WithLatency(2))

	p.Issue(1, box(0, 0, -20, 1), mgl32.Vec3{}, 10)
	p.Issue(2, box(0, 0, -2, 0.5), mgl32.Vec3{}, 10)
	require.Equal(t, 2, p.Pending())

	_, ready := p.Poll(1, 11)
	require.False(t, ready)

	visible, ready := p.Poll(1, 12)
	require.True(t, ready)
	require.False(t, visible)

	visible, ready = p.Poll(2, 13)
	require.True(t, ready)
	require.True(t, visible)
	require.Equal(t, 0, p.Pending())

	_, ready = p.Poll(2, 14)
	require.False(t, ready)
}

func TestDeferredProviderForget(t *testing.T) {
	p := NewDeferredProvider(NewOccluders(), WithLatency(0))
	p.Issue(7, box(0, 0, 0, 1), mgl32.Vec3{0, 0, 10}, 3)
	p.Forget(7)
	_, ready := p.Poll(7, 3)
	require.False(t, ready)

	p.Issue(7, box(0, 0, 0, 1), mgl32.Vec3{0, 0, 10}, 3)
	visible, ready := p.Poll(7, 3)
	require.True(t, ready)
	require.True(t, visible)
}

func TestDeferredProviderRequiresTester(t *testing.T) {
	require.Panics(t, func() { NewDeferredProvider(nil) })
}
