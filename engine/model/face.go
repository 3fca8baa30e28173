package model

import (
	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/go-gl/mathgl/mgl32"
)

// Face is one renderable surface of a model: a vertex range with a single texture, material and
// render pass. Vertices are in the owning model's local space.
type Face struct {
	Vertices []GPUVertex
	// Indices index into Vertices. An empty slice draws the vertices in order.
	Indices []uint32

	Texture  common.TextureID
	Material common.MaterialID
	Pass     common.RenderPass

	// Alpha marks faces that need blending even when Pass is opaque.
	Alpha bool
}

// IndexCount returns the number of indices the face draws with.
func (f *Face) IndexCount() int {
	if len(f.Indices) == 0 {
		return len(f.Vertices)
	}
	return len(f.Indices)
}

// Blended reports whether the face must be drawn back-to-front.
func (f *Face) Blended() bool {
	return f.Alpha || f.Pass.Blended()
}

// Extents returns the local-space bounds of the face's vertices. A face without vertices yields a
// zero box which callers are expected to sanitize.
func (f *Face) Extents() common.Bounds {
	if len(f.Vertices) == 0 {
		return common.Bounds{}
	}
	lo := mgl32.Vec3(f.Vertices[0].Position)
	hi := lo
	for _, v := range f.Vertices[1:] {
		p := mgl32.Vec3(v.Position)
		lo = common.MinVec3(lo, p)
		hi = common.MaxVec3(hi, p)
	}
	return common.NewBoundsMinMax(lo, hi)
}

// BatchKey groups faces that may share one draw call.
type BatchKey struct {
	Texture  common.TextureID
	Material common.MaterialID
	Pass     common.RenderPass
}

// Key returns the face's batch key.
func (f *Face) Key() BatchKey {
	return BatchKey{Texture: f.Texture, Material: f.Material, Pass: f.Pass}
}

// Compare orders batch keys by pass, then texture, then material.
func (k BatchKey) Compare(o BatchKey) int {
	if k.Pass != o.Pass {
		if k.Pass < o.Pass {
			return -1
		}
		return 1
	}
	if c := k.Texture.Compare(o.Texture); c != 0 {
		return c
	}
	return k.Material.Compare(o.Material)
}

// Quad builds a two-triangle face spanning the XY square of the given half-size centered at the
// origin. It is used by tests and the synthetic scene generator.
//
// Parameters:
//   - half: half the edge length
//   - texture: the texture handle
//   - pass: the render pass
//
// Returns:
//   - Face: the quad
func Quad(half float32, texture common.TextureID, pass common.RenderPass) Face {
	corner := func(x, y, u, v float32) GPUVertex {
		return GPUVertex{
			Position: [3]float32{x * half, y * half, 0},
			Normal:   [3]float32{0, 0, 1},
			TexCoord: [2]float32{u, v},
			Color:    [4]float32{1, 1, 1, 1},
			Tangent:  [4]float32{1, 0, 0, 1},
		}
	}
	return Face{
		Vertices: []GPUVertex{
			corner(-1, -1, 0, 1),
			corner(1, -1, 1, 1),
			corner(1, 1, 1, 0),
			corner(-1, 1, 0, 0),
		},
		Indices: []uint32{0, 1, 2, 0, 2, 3},
		Texture: texture,
		Pass:    pass,
	}
}

// Box builds a closed cube with the given half-size as a single face.
func Box(half float32, texture common.TextureID, pass common.RenderPass) Face {
	var f Face
	f.Texture = texture
	f.Pass = pass
	normals := [6]mgl32.Vec3{{1, 0, 0}, {-1, 0, 0}, {0, 1, 0}, {0, -1, 0}, {0, 0, 1}, {0, 0, -1}}
	for _, n := range normals {
		// two axes spanning the side
		u := mgl32.Vec3{n[1], n[2], n[0]}
		v := n.Cross(u)
		base := uint32(len(f.Vertices))
		for _, c := range [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}} {
			p := n.Add(u.Mul(c[0])).Add(v.Mul(c[1])).Mul(half)
			f.Vertices = append(f.Vertices, GPUVertex{
				Position: p,
				Normal:   n,
				TexCoord: [2]float32{(c[0] + 1) / 2, (c[1] + 1) / 2},
				Color:    [4]float32{1, 1, 1, 1},
				Tangent:  [4]float32{u[0], u[1], u[2], 1},
			})
		}
		f.Indices = append(f.Indices, base, base+1, base+2, base, base+2, base+3)
	}
	return f
}
