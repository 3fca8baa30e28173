package geometry

import (
	"sort"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/group"
	"github.com/Carmen-Shannon/oxy-cull/engine/model"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/go-gl/mathgl/mgl32"
)

// Run is one contiguous range of packed geometry sharing a batch key.
type Run struct {
	Key model.BatchKey
	// Start and End are the smallest and largest vertex index referenced.
	Start, End uint32
	// Offset is the first index, Count the number of indices.
	Offset, Count uint32
	// Center is the centroid of the run's face centers.
	Center mgl32.Vec3
	// Distance is the camera distance of Center, used for back-to-front ordering.
	Distance float32
	Faces    []group.FaceRef
}

// Packed is the CPU-side result of packing a group.
type Packed struct {
	Vertices []model.GPUVertex
	Indices  []uint32
	Runs     []Run
}

// VertexBytes returns the size of the vertex data.
func (p *Packed) VertexBytes() uint64 { return uint64(len(p.Vertices)) * model.VertexStride }

// IndexBytes returns the size of the index data.
func (p *Packed) IndexBytes() uint64 { return uint64(len(p.Indices)) * model.IndexStride }

type faceEntry struct {
	ref      group.FaceRef
	face     *model.Face
	xform    mgl32.Mat4
	key      model.BatchKey
	center   mgl32.Vec3
	distance float32
	blended  bool
}

func (m *manager) GetGeometry(g *group.Group) (*Packed, error) {
	if g.Empty() {
		return nil, errors.New("rebuild of empty group").
			WithType(common.ErrTypeEmptyGroup).
			WithTag("group", uint64(g.ID()))
	}
	packed := &Packed{}
	if m.kind == common.GeometryNone {
		return packed, nil
	}

	entries := m.collect(g)
	m.sortEntries(entries)

	var run *Run
	var centers mgl32.Vec3
	closeRun := func() {
		if run != nil && len(run.Faces) > 0 {
			run.Center = centers.Mul(1 / float32(len(run.Faces)))
			run.Distance = run.Center.Sub(g.Eye()).Len()
		}
		centers = mgl32.Vec3{}
	}
	for i := range entries {
		e := &entries[i]
		n := len(e.face.Vertices)
		if n == 0 {
			continue
		}
		if n > m.maxVertices {
			logs.WithTag("group", uint64(g.ID())).
				WithTag("drawable", uint64(e.ref.Drawable)).
				WithTag("face", e.ref.Face).
				WithTag("vertices", n).
				Warn("face exceeds the batch vertex limit")
		}
		if run == nil || run.Key != e.key || int(run.End-run.Start)+1+n > m.maxVertices {
			closeRun()
			packed.Runs = append(packed.Runs, Run{
				Key:    e.key,
				Start:  uint32(len(packed.Vertices)),
				End:    uint32(len(packed.Vertices)),
				Offset: uint32(len(packed.Indices)),
			})
			run = &packed.Runs[len(packed.Runs)-1]
		}

		base := uint32(len(packed.Vertices))
		for _, v := range e.face.Vertices {
			packed.Vertices = append(packed.Vertices, transformVertex(v, e.xform))
		}
		if len(e.face.Indices) == 0 {
			for k := 0; k < n; k++ {
				packed.Indices = append(packed.Indices, base+uint32(k))
			}
		} else {
			for _, idx := range e.face.Indices {
				packed.Indices = append(packed.Indices, base+idx)
			}
		}
		run.End = uint32(len(packed.Vertices)) - 1
		run.Count = uint32(len(packed.Indices)) - run.Offset
		run.Faces = append(run.Faces, e.ref)
		centers = centers.Add(e.center)
	}
	closeRun()
	return packed, nil
}

// collect gathers the faces of every live occupant at the group's LOD, in occupant order.
func (m *manager) collect(g *group.Group) []faceEntry {
	var entries []faceEntry
	eye := g.Eye()
	for _, id := range g.Occupants() {
		d, ok := m.drawables.Get(id)
		if !ok || !d.Alive() || d.Model() == nil {
			continue
		}
		faces := d.Model().Faces(g.LOD())
		xform := d.Spatial()
		for i := range faces {
			f := &faces[i]
			key := f.Key()
			blended := f.Blended()
			switch {
			case m.kind == common.GeometryTerrain:
				key.Pass = common.RenderPassTerrain
			case blended && !key.Pass.Blended():
				key.Pass = common.RenderPassAlpha
			}
			center := xform.Mul4x1(f.Extents().Center.Vec4(1)).Vec3()
			entries = append(entries, faceEntry{
				ref:      group.FaceRef{Drawable: id, Face: i},
				face:     f,
				xform:    xform,
				key:      key,
				center:   center,
				distance: center.Sub(eye).Len(),
				blended:  key.Pass.Blended(),
			})
		}
	}
	return entries
}

// sortEntries orders faces for batching. Opaque passes are sorted by texture and material so equal
// keys become adjacent; blended passes and particle groups are sorted back to front and only
// adjacent equal keys merge.
func (m *manager) sortEntries(entries []faceEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := &entries[i], &entries[j]
		if a.key.Pass != b.key.Pass {
			return a.key.Pass < b.key.Pass
		}
		if m.kind == common.GeometryParticle || a.blended {
			if a.distance != b.distance {
				return a.distance > b.distance
			}
		}
		return a.key.Compare(b.key) < 0
	})
}

func transformVertex(v model.GPUVertex, m mgl32.Mat4) model.GPUVertex {
	p := m.Mul4x1(mgl32.Vec3(v.Position).Vec4(1)).Vec3()
	n := m.Mul4x1(mgl32.Vec3(v.Normal).Vec4(0)).Vec3()
	if l := n.Len(); l > 0 {
		n = n.Mul(1 / l)
	}
	t := m.Mul4x1(mgl32.Vec4{v.Tangent[0], v.Tangent[1], v.Tangent[2], 0}).Vec3()
	if l := t.Len(); l > 0 {
		t = t.Mul(1 / l)
	}
	v.Position = p
	v.Normal = n
	v.Tangent = [4]float32{t[0], t[1], t[2], v.Tangent[3]}
	return v
}
