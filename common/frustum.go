package common

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Plane represents a plane in 3D space using the equation: ax + by + cz + d = 0
// where (a, b, c) is the normal and d is the distance from origin.
type Plane struct {
	Normal   mgl32.Vec3
	Distance float32
}

// SignedDistance returns the signed distance from p to the plane. Positive is inside.
func (p Plane) SignedDistance(v mgl32.Vec3) float32 {
	return p.Normal.Dot(v) + p.Distance
}

// Frustum represents the six planes of a view frustum for culling.
// Planes are oriented so that positive half-space is inside the frustum.
type Frustum struct {
	Planes [6]Plane // Left, Right, Bottom, Top, Near, Far

	// InfiniteFar disables the far plane test.
	InfiniteFar bool
}

// FrustumPlane indices for clarity
const (
	FrustumLeft   = 0
	FrustumRight  = 1
	FrustumBottom = 2
	FrustumTop    = 3
	FrustumNear   = 4
	FrustumFar    = 5
)

// Containment classifies a volume against a frustum.
type Containment int

const (
	// Outside means the volume is entirely outside at least one plane.
	Outside Containment = iota
	// Intersects means the volume straddles at least one plane.
	Intersects
	// Inside means the volume is entirely inside all planes.
	Inside
)

// ExtractFrustum extracts frustum planes from a view-projection matrix.
// The matrix should be the combined Projection * View matrix with a zero-to-one clip depth.
// Uses the Gribb/Hartmann method for plane extraction.
//
// Reference: https://www8.cs.umu.se/kurser/5DV051/HT12/lab/plane_extraction.pdf
//
// Parameters:
//   - viewProj: the column-major view-projection matrix
//
// Returns:
//   - Frustum: the extracted frustum with normalized planes
func ExtractFrustum(viewProj mgl32.Mat4) Frustum {
	var f Frustum

	row := func(i int) mgl32.Vec4 { return viewProj.Row(i) }
	r0, r1, r2, r3 := row(0), row(1), row(2), row(3)

	set := func(index int, v mgl32.Vec4) {
		f.Planes[index] = Plane{Normal: v.Vec3(), Distance: v[3]}
	}

	set(FrustumLeft, r3.Add(r0))
	set(FrustumRight, r3.Sub(r0))
	set(FrustumBottom, r3.Add(r1))
	set(FrustumTop, r3.Sub(r1))
	// zero-to-one depth: near is z_clip >= 0
	set(FrustumNear, r2)
	set(FrustumFar, r3.Sub(r2))

	for i := range f.Planes {
		f.normalizePlane(i)
	}

	return f
}

// FrustumFromBounds builds an axis-aligned "frustum" whose six planes are the faces of b.
// Useful for box selection and for tests that need a precise clip volume.
//
// Parameters:
//   - b: the clip box
//
// Returns:
//   - Frustum: planes facing into b
func FrustumFromBounds(b Bounds) Frustum {
	lo, hi := b.Min(), b.Max()
	var f Frustum
	f.Planes[FrustumLeft] = Plane{Normal: mgl32.Vec3{1, 0, 0}, Distance: -lo[0]}
	f.Planes[FrustumRight] = Plane{Normal: mgl32.Vec3{-1, 0, 0}, Distance: hi[0]}
	f.Planes[FrustumBottom] = Plane{Normal: mgl32.Vec3{0, 1, 0}, Distance: -lo[1]}
	f.Planes[FrustumTop] = Plane{Normal: mgl32.Vec3{0, -1, 0}, Distance: hi[1]}
	f.Planes[FrustumNear] = Plane{Normal: mgl32.Vec3{0, 0, 1}, Distance: -lo[2]}
	f.Planes[FrustumFar] = Plane{Normal: mgl32.Vec3{0, 0, -1}, Distance: hi[2]}
	return f
}

// TestBounds classifies b against the frustum using the positive/negative vertex test.
//
// Parameters:
//   - b: the box to classify
//
// Returns:
//   - Containment: Outside, Intersects or Inside
func (f *Frustum) TestBounds(b Bounds) Containment {
	result := Inside
	for i := range f.Planes {
		if i == FrustumFar && f.InfiniteFar {
			continue
		}
		p := f.Planes[i]
		// projected radius of the box onto the plane normal
		r := math32.Abs(p.Normal[0])*b.HalfExtents[0] +
			math32.Abs(p.Normal[1])*b.HalfExtents[1] +
			math32.Abs(p.Normal[2])*b.HalfExtents[2]
		d := p.SignedDistance(b.Center)
		if d+r < 0 {
			return Outside
		}
		if d-r < 0 {
			result = Intersects
		}
	}
	return result
}

// Empty reports whether the frustum cannot contain any point, which happens when two opposing
// planes face away from each other (for example a degenerate camera inside solid geometry).
// An empty frustum still culls correctly; this is only informational.
func (f *Frustum) Empty() bool {
	pairs := [][2]int{{FrustumLeft, FrustumRight}, {FrustumBottom, FrustumTop}}
	if !f.InfiniteFar {
		pairs = append(pairs, [2]int{FrustumNear, FrustumFar})
	}
	for _, pair := range pairs {
		a, b := f.Planes[pair[0]], f.Planes[pair[1]]
		if a.Normal.Dot(b.Normal) < -0.9999 && a.Distance+b.Distance < 0 {
			return true
		}
	}
	return false
}

// normalizePlane normalizes a frustum plane so that the normal has unit length.
func (f *Frustum) normalizePlane(index int) {
	p := &f.Planes[index]
	length := p.Normal.Len()
	if length > 0 {
		invLen := 1.0 / length
		p.Normal = p.Normal.Mul(invLen)
		p.Distance *= invLen
	}
}
