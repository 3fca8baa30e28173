package partition

import (
	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/drawable"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Hit is the result of a segment pick.
type Hit struct {
	Drawable common.DrawableID
	Face     int
	Point    mgl32.Vec3
	// T is the parameter of Point along the segment, in [0, 1].
	T float32
}

func (p *partitionImpl) LineSegmentIntersect(start, end mgl32.Vec3, pickTransparent bool) (Hit, bool) {
	id, t, ok := p.tree.Segment(start, end, func(key common.DrawableID, s, e mgl32.Vec3) (float32, bool) {
		d, ok := p.drawables.Get(key)
		if !ok || !d.Alive() {
			return 0, false
		}
		_, t, hit := intersectFaces(d, s, e, pickTransparent)
		return t, hit
	})
	if !ok {
		return Hit{}, false
	}
	d, _ := p.drawables.Get(id)
	face, t, _ := intersectFaces(d, start, end, pickTransparent)
	return Hit{
		Drawable: id,
		Face:     face,
		Point:    start.Add(end.Sub(start).Mul(t)),
		T:        t,
	}, true
}

// intersectFaces returns the face of d nearest to start along the segment.
func intersectFaces(d *drawable.Drawable, start, end mgl32.Vec3, pickTransparent bool) (int, float32, bool) {
	xform := d.Spatial()
	best, bestT, found := -1, float32(2), false
	for fi, f := range d.Faces() {
		if !pickTransparent && f.Blended() {
			continue
		}
		tri := func(a, b, c uint32) {
			if int(a) >= len(f.Vertices) || int(b) >= len(f.Vertices) || int(c) >= len(f.Vertices) {
				return
			}
			v0 := xform.Mul4x1(mgl32.Vec3(f.Vertices[a].Position).Vec4(1)).Vec3()
			v1 := xform.Mul4x1(mgl32.Vec3(f.Vertices[b].Position).Vec4(1)).Vec3()
			v2 := xform.Mul4x1(mgl32.Vec3(f.Vertices[c].Position).Vec4(1)).Vec3()
			if t, ok := segmentTriangle(start, end, v0, v1, v2); ok && t < bestT {
				best, bestT, found = fi, t, true
			}
		}
		if len(f.Indices) == 0 {
			for i := 0; i+2 < len(f.Vertices); i += 3 {
				tri(uint32(i), uint32(i+1), uint32(i+2))
			}
			continue
		}
		for i := 0; i+2 < len(f.Indices); i += 3 {
			tri(f.Indices[i], f.Indices[i+1], f.Indices[i+2])
		}
	}
	return best, bestT, found
}

// segmentTriangle is the Moller-Trumbore test restricted to the segment, double sided.
func segmentTriangle(start, end, v0, v1, v2 mgl32.Vec3) (float32, bool) {
	const eps = 1e-7
	dir := end.Sub(start)
	e1, e2 := v1.Sub(v0), v2.Sub(v0)
	h := dir.Cross(e2)
	a := e1.Dot(h)
	if math32.Abs(a) < eps {
		return 0, false
	}
	f := 1 / a
	s := start.Sub(v0)
	u := f * s.Dot(h)
	if u < 0 || u > 1 {
		return 0, false
	}
	q := s.Cross(e1)
	v := f * dir.Dot(q)
	if v < 0 || u+v > 1 {
		return 0, false
	}
	t := f * e2.Dot(q)
	if t < 0 || t > 1 {
		return 0, false
	}
	return t, true
}
