package camera

import (
	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/go-gl/mathgl/mgl32"
)

// Lens holds the perspective settings of a View.
type Lens struct {
	Fov            float32
	Aspect         float32
	Near           float32
	Far            float32
	ViewportHeight float32
}

// View is an immutable snapshot of the camera for one frame. Partitions cull against a View and
// bridges derive local-space Views from it.
type View struct {
	Origin     mgl32.Vec3
	Target     mgl32.Vec3
	ViewMatrix mgl32.Mat4
	Projection mgl32.Mat4
	ViewProj   mgl32.Mat4
	Frustum    common.Frustum
	Lens       Lens

	// PixelsPerRadian converts angular size to screen pixels.
	PixelsPerRadian float32
}

// NewView builds a View looking from position at target.
//
// Parameters:
//   - position: eye position
//   - target: look-at point
//   - up: up vector
//   - lens: perspective settings
//
// Returns:
//   - View: the snapshot
func NewView(position, target, up mgl32.Vec3, lens Lens) View {
	v := View{
		Origin:     position,
		Target:     target,
		ViewMatrix: mgl32.LookAtV(position, target, up),
		Projection: common.PerspectiveZO(lens.Fov, lens.Aspect, lens.Near, lens.Far),
		Lens:       lens,
	}
	v.ViewProj = v.Projection.Mul4(v.ViewMatrix)
	v.Frustum = common.ExtractFrustum(v.ViewProj)
	if lens.Fov > 0 {
		v.PixelsPerRadian = lens.ViewportHeight / lens.Fov
	}
	return v
}

// Local re-expresses the view in the space of a bridge whose local-to-world transform is given.
// The frustum of the result clips local-space bounds exactly as the original clips their world
// images.
//
// Parameters:
//   - worldFromLocal: the bridge's local-to-world transform
//
// Returns:
//   - View: the local-space view
func (v View) Local(worldFromLocal mgl32.Mat4) View {
	localFromWorld := worldFromLocal.Inv()
	out := v
	out.Origin = localFromWorld.Mul4x1(v.Origin.Vec4(1)).Vec3()
	out.Target = localFromWorld.Mul4x1(v.Target.Vec4(1)).Vec3()
	out.ViewMatrix = v.ViewMatrix.Mul4(worldFromLocal)
	out.ViewProj = v.ViewProj.Mul4(worldFromLocal)
	out.Frustum = common.ExtractFrustum(out.ViewProj)
	out.Frustum.InfiniteFar = v.Frustum.InfiniteFar
	return out
}

// Shifted returns the view translated by offset, matching a region origin shift.
func (v View) Shifted(offset mgl32.Vec3) View {
	return v.Local(mgl32.Translate3D(-offset[0], -offset[1], -offset[2]))
}

// WithInfiniteFar returns the view with its far plane disabled.
func (v View) WithInfiniteFar() View {
	v.Frustum.InfiniteFar = true
	return v
}

// Forward returns the unit viewing direction.
func (v View) Forward() mgl32.Vec3 {
	d := v.Target.Sub(v.Origin)
	if d.Len() == 0 {
		return mgl32.Vec3{0, 0, -1}
	}
	return d.Normalize()
}
