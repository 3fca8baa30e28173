package common

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// BoundsEpsilon is the smallest half-extent a Bounds may carry. Degenerate boxes are
// clamped up to it so that zero-sized objects can still be indexed and picked.
const BoundsEpsilon float32 = 0.001

// Bounds is an axis-aligned box stored as a center and half-extents.
type Bounds struct {
	Center      mgl32.Vec3
	HalfExtents mgl32.Vec3
}

// NewBoundsMinMax creates a Bounds from two opposite corners. The corners may be given in any order.
//
// Parameters:
//   - a, b: opposite corners of the box
//
// Returns:
//   - Bounds: the enclosing box
func NewBoundsMinMax(a, b mgl32.Vec3) Bounds {
	lo := MinVec3(a, b)
	hi := MaxVec3(a, b)
	return Bounds{
		Center:      lo.Add(hi).Mul(0.5),
		HalfExtents: hi.Sub(lo).Mul(0.5),
	}
}

// Min returns the minimum corner.
func (b Bounds) Min() mgl32.Vec3 { return b.Center.Sub(b.HalfExtents) }

// Max returns the maximum corner.
func (b Bounds) Max() mgl32.Vec3 { return b.Center.Add(b.HalfExtents) }

// Radius returns the radius of the sphere circumscribing the box.
func (b Bounds) Radius() float32 { return b.HalfExtents.Len() }

// Size returns the length of the longest edge.
func (b Bounds) Size() float32 {
	return 2 * math32.Max(b.HalfExtents[0], math32.Max(b.HalfExtents[1], b.HalfExtents[2]))
}

// Union returns the smallest box enclosing both b and o.
func (b Bounds) Union(o Bounds) Bounds {
	return NewBoundsMinMax(MinVec3(b.Min(), o.Min()), MaxVec3(b.Max(), o.Max()))
}

// Contains reports whether o lies entirely inside b after growing b by slop times its own half-extents.
// A slop of 0 is a strict containment test.
//
// Parameters:
//   - o: the box to test
//   - slop: fractional tolerance applied to b's half-extents
//
// Returns:
//   - bool: true if o fits
func (b Bounds) Contains(o Bounds, slop float32) bool {
	for i := 0; i < 3; i++ {
		reach := b.HalfExtents[i] * (1 + slop)
		if o.Center[i]-o.HalfExtents[i] < b.Center[i]-reach {
			return false
		}
		if o.Center[i]+o.HalfExtents[i] > b.Center[i]+reach {
			return false
		}
	}
	return true
}

// ContainsPoint reports whether p is inside b (inclusive).
func (b Bounds) ContainsPoint(p mgl32.Vec3) bool {
	for i := 0; i < 3; i++ {
		if math32.Abs(p[i]-b.Center[i]) > b.HalfExtents[i] {
			return false
		}
	}
	return true
}

// Intersects reports whether the two boxes overlap (touching counts).
func (b Bounds) Intersects(o Bounds) bool {
	for i := 0; i < 3; i++ {
		if math32.Abs(b.Center[i]-o.Center[i]) > b.HalfExtents[i]+o.HalfExtents[i] {
			return false
		}
	}
	return true
}

// Shifted returns b translated by offset.
func (b Bounds) Shifted(offset mgl32.Vec3) Bounds {
	return Bounds{Center: b.Center.Add(offset), HalfExtents: b.HalfExtents}
}

// DistanceTo returns the distance from p to the closest point of b, or 0 when p is inside.
func (b Bounds) DistanceTo(p mgl32.Vec3) float32 {
	var sq float32
	for i := 0; i < 3; i++ {
		d := math32.Abs(p[i]-b.Center[i]) - b.HalfExtents[i]
		if d > 0 {
			sq += d * d
		}
	}
	return math32.Sqrt(sq)
}

// Sanitize clamps degenerate boxes: a non-finite center collapses to the origin, and
// non-finite, negative or near-zero half-extents are replaced by BoundsEpsilon.
//
// Returns:
//   - Bounds: the usable box
//   - bool: true if any component had to be clamped
func (b Bounds) Sanitize() (Bounds, bool) {
	clamped := false
	if !FiniteVec3(b.Center) {
		b.Center = mgl32.Vec3{}
		clamped = true
	}
	for i := 0; i < 3; i++ {
		h := b.HalfExtents[i]
		switch {
		case math32.IsNaN(h) || math32.IsInf(h, 0):
			b.HalfExtents[i] = BoundsEpsilon
			clamped = true
		case h < 0:
			b.HalfExtents[i] = math32.Max(-h, BoundsEpsilon)
			clamped = true
		case h < BoundsEpsilon:
			b.HalfExtents[i] = BoundsEpsilon
			clamped = true
		}
	}
	return b, clamped
}

// Transform returns the axis-aligned box enclosing b after transformation by m.
//
// Parameters:
//   - m: an affine column-major transform
//
// Returns:
//   - Bounds: the transformed box
func (b Bounds) Transform(m mgl32.Mat4) Bounds {
	center := m.Mul4x1(b.Center.Vec4(1)).Vec3()
	var half mgl32.Vec3
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			half[row] += math32.Abs(m.At(row, col)) * b.HalfExtents[col]
		}
	}
	return Bounds{Center: center, HalfExtents: half}
}

// Octant returns the bounds of child octant i (bit 0 = +X, bit 1 = +Y, bit 2 = +Z).
func (b Bounds) Octant(i int) Bounds {
	q := b.HalfExtents.Mul(0.5)
	c := b.Center
	for axis := 0; axis < 3; axis++ {
		if i&(1<<axis) != 0 {
			c[axis] += q[axis]
		} else {
			c[axis] -= q[axis]
		}
	}
	return Bounds{Center: c, HalfExtents: q}
}

// OctantOf returns the octant index of b that contains point p.
func (b Bounds) OctantOf(p mgl32.Vec3) int {
	i := 0
	for axis := 0; axis < 3; axis++ {
		if p[axis] >= b.Center[axis] {
			i |= 1 << axis
		}
	}
	return i
}

// IntersectSegment tests the segment start->end against b using the slab method.
//
// Parameters:
//   - start, end: the segment endpoints
//
// Returns:
//   - float32: the entry parameter along the segment in [0, 1]
//   - bool: true if the segment touches the box
func (b Bounds) IntersectSegment(start, end mgl32.Vec3) (float32, bool) {
	dir := end.Sub(start)
	tmin, tmax := float32(0), float32(1)
	lo, hi := b.Min(), b.Max()
	for i := 0; i < 3; i++ {
		if math32.Abs(dir[i]) < 1e-12 {
			if start[i] < lo[i] || start[i] > hi[i] {
				return 0, false
			}
			continue
		}
		inv := 1 / dir[i]
		t0 := (lo[i] - start[i]) * inv
		t1 := (hi[i] - start[i]) * inv
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		tmin = math32.Max(tmin, t0)
		tmax = math32.Min(tmax, t1)
		if tmin > tmax {
			return 0, false
		}
	}
	return tmin, true
}
