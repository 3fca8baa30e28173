// Package group implements spatial groups: the render payload of one octree node. A group tracks
// its occupants' bounds, distance and LOD state, occlusion state, and the draw descriptors its
// geometry was last packed into.
package group

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/gpubuf"
	"github.com/go-gl/mathgl/mgl32"
)

// State is the dirty-state bitmask of a Group. A zero State is clean.
type State uint32

const (
	GeomDirty State = 1 << iota
	AlphaDirty
	MeshDirty
	OcclusionPending
	NewDrawInfo
	Occluded
	InBuildQueue
	Dead

	// Clean is the state with no bit set.
	Clean State = 0
	// Dirty covers every bit that requires a geometry manager pass.
	Dirty = GeomDirty | AlphaDirty | MeshDirty
)

var stateNames = []string{"geom_dirty", "alpha_dirty", "mesh_dirty", "occlusion_pending", "new_draw_info", "occluded", "in_build_queue", "dead"}

func (s State) String() string {
	if s == Clean {
		return "clean"
	}
	var parts []string
	for i, name := range stateNames {
		if s&(1<<i) != 0 {
			parts = append(parts, name)
		}
	}
	return strings.Join(parts, "|")
}

// DrawInfo is a draw descriptor: one GPU draw sub-range of a group's packed buffers. A DrawInfo is
// never modified after the geometry manager publishes it.
type DrawInfo struct {
	Vertices gpubuf.Buffer
	Indices  gpubuf.Buffer

	// Start and End are the smallest and largest vertex index referenced.
	Start, End uint32
	// Offset is the first index in the index buffer, Count the number of indices drawn.
	Offset, Count uint32

	Texture  common.TextureID
	Material common.MaterialID
	Pass     common.RenderPass

	Group common.GroupID
	LOD   int
	// Center is the centroid of the packed faces in partition space.
	Center mgl32.Vec3
	// Distance is the camera distance of Center, refreshed for blended draws each time a cull
	// result is frozen.
	Distance float32

	Faces []FaceRef
}

// FaceRef names one source face packed into a DrawInfo.
type FaceRef struct {
	Drawable common.DrawableID
	Face     int
}

func (d *DrawInfo) String() string {
	return fmt.Sprintf("DrawInfo{group=%d pass=%s tex=%s idx=[%d,+%d) faces=%d}",
		uint64(d.Group), d.Pass, d.Texture, d.Offset, d.Count, len(d.Faces))
}

// Group is the render payload of one octree node. Like a Drawable it has reference identity and
// must not be copied.
type Group struct {
	self *Group

	id    common.GroupID
	node  common.NodeID
	kind  common.PartitionKind
	state State

	occupants map[common.DrawableID]common.Bounds
	bounds    common.Bounds

	distance           float32
	pixelArea          float32
	lastUpdateDistance float32
	eye                mgl32.Vec3
	packedEye          mgl32.Vec3 // eye the blended draws were sorted from
	lod                int
	lodEvaluated       bool

	queryFrame uint64

	drawMap  map[common.RenderPass][]*DrawInfo
	vertices gpubuf.Buffer
	indices  gpubuf.Buffer
	glLost   bool
}

func (g *Group) copyCheck() {
	if g.self != g {
		panic("group: illegal copy of Group")
	}
}

// ID returns the group handle.
func (g *Group) ID() common.GroupID { return g.id }

// Node returns the octree node the group belongs to.
func (g *Group) Node() common.NodeID { return g.node }

// Kind returns the partition kind of the owning partition.
func (g *Group) Kind() common.PartitionKind { return g.kind }

// State returns the dirty-state bitmask.
func (g *Group) State() State { return g.state }

// Is reports whether every bit of s is set.
func (g *Group) Is(s State) bool { return g.state&s == s }

// Any reports whether any bit of s is set.
func (g *Group) Any(s State) bool { return g.state&s != 0 }

// Set sets state bits.
func (g *Group) Set(s State) {
	g.copyCheck()
	g.state |= s
}

// Clear clears state bits.
func (g *Group) Clear(s State) {
	g.copyCheck()
	g.state &^= s
}

// Bounds returns the union of the occupants' bounds.
func (g *Group) Bounds() common.Bounds { return g.bounds }

// Len returns the number of occupants.
func (g *Group) Len() int { return len(g.occupants) }

// Empty reports whether the group has no occupants.
func (g *Group) Empty() bool { return len(g.occupants) == 0 }

// Has reports whether d is an occupant.
func (g *Group) Has(d common.DrawableID) bool {
	_, ok := g.occupants[d]
	return ok
}

// OccupantBounds returns the bounds recorded for occupant d.
func (g *Group) OccupantBounds(d common.DrawableID) (common.Bounds, bool) {
	b, ok := g.occupants[d]
	return b, ok
}

// Occupants returns the occupant handles in ascending order.
func (g *Group) Occupants() []common.DrawableID {
	out := make([]common.DrawableID, 0, len(g.occupants))
	for id := range g.occupants {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// AddObject adds an occupant and grows the group bounds to enclose it.
//
// Parameters:
//   - d: the drawable handle
//   - b: the drawable's bounds in partition space
func (g *Group) AddObject(d common.DrawableID, b common.Bounds) {
	g.copyCheck()
	if len(g.occupants) == 0 {
		g.bounds = b
	} else {
		g.bounds = g.bounds.Union(b)
	}
	g.occupants[d] = b
	g.state |= GeomDirty | MeshDirty
}

// RemoveObject drops an occupant and recomputes the group bounds from the remaining occupants.
//
// Returns:
//   - bool: false if d was not an occupant
func (g *Group) RemoveObject(d common.DrawableID) bool {
	g.copyCheck()
	if _, ok := g.occupants[d]; !ok {
		return false
	}
	delete(g.occupants, d)
	g.recomputeBounds()
	g.state |= GeomDirty | MeshDirty
	return true
}

// UpdateInGroup records new bounds for an occupant without re-insertion.
//
// Returns:
//   - bool: false if d is not an occupant
func (g *Group) UpdateInGroup(d common.DrawableID, b common.Bounds) bool {
	g.copyCheck()
	old, ok := g.occupants[d]
	if !ok {
		return false
	}
	g.occupants[d] = b
	g.state |= GeomDirty
	if g.bounds.Contains(b, 0) && !touchesEdge(g.bounds, old) {
		// the old box did not define the union so it cannot shrink
		return true
	}
	g.recomputeBounds()
	return true
}

// Shift translates the group and all occupant bounds. Packed geometry is region-space, so the
// group is marked for a geometry rebuild.
func (g *Group) Shift(offset mgl32.Vec3) {
	g.copyCheck()
	g.bounds = g.bounds.Shifted(offset)
	for id, b := range g.occupants {
		g.occupants[id] = b.Shifted(offset)
	}
	g.state |= GeomDirty
}

// LOD returns the selected level of detail.
func (g *Group) LOD() int { return g.lod }

// Distance returns the camera distance computed by the last UpdateDistance.
func (g *Group) Distance() float32 { return g.distance }

// Eye returns the camera position passed to the last UpdateDistance.
func (g *Group) Eye() mgl32.Vec3 { return g.eye }

// PixelArea returns the projected pixel area computed by the last UpdateDistance.
func (g *Group) PixelArea() float32 { return g.pixelArea }

// Urgency orders rebuilds: larger on-screen groups first.
func (g *Group) Urgency() float32 { return g.pixelArea }

// BeginOcclusion records that an occlusion query was issued for the group this frame.
func (g *Group) BeginOcclusion(frame uint64) {
	g.copyCheck()
	g.state |= OcclusionPending
	g.queryFrame = frame
}

// QueryFrame returns the frame the pending occlusion query was issued in.
func (g *Group) QueryFrame() uint64 { return g.queryFrame }

// ResolveOcclusion clears the pending state with the query's answer.
func (g *Group) ResolveOcclusion(visible bool) {
	g.copyCheck()
	g.state &^= OcclusionPending
	if visible {
		g.state &^= Occluded
	} else {
		g.state |= Occluded
	}
}

// OcclusionPending reports whether a query is outstanding.
func (g *Group) OcclusionPending() bool { return g.state&OcclusionPending != 0 }

// Occluded reports whether the last resolved query found the group hidden. A pending query never
// makes a group occluded.
func (g *Group) Occluded() bool { return g.state&Occluded != 0 }

// DrawMap returns the draw descriptors of a render pass in dispatch order.
func (g *Group) DrawMap(pass common.RenderPass) []*DrawInfo { return g.drawMap[pass] }

// Passes returns the passes that have draw descriptors, in pass order.
func (g *Group) Passes() []common.RenderPass {
	out := make([]common.RenderPass, 0, len(g.drawMap))
	for p := range g.drawMap {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// DrawCount returns the number of draw descriptors across passes.
func (g *Group) DrawCount() int {
	n := 0
	for _, list := range g.drawMap {
		n += len(list)
	}
	return n
}

// SetDrawMap publishes freshly built draw descriptors, replacing the previous set.
func (g *Group) SetDrawMap(m map[common.RenderPass][]*DrawInfo) {
	g.copyCheck()
	for pass, list := range m {
		if len(list) == 0 {
			delete(m, pass)
		}
	}
	g.drawMap = m
	g.packedEye = g.eye
	g.state |= NewDrawInfo
}

// HasBlended reports whether any current draw descriptor is in a blended pass.
func (g *Group) HasBlended() bool {
	for pass, list := range g.drawMap {
		if pass.Blended() && len(list) > 0 {
			return true
		}
	}
	return false
}

// ClearDrawMap drops every draw descriptor.
func (g *Group) ClearDrawMap() {
	g.copyCheck()
	g.drawMap = make(map[common.RenderPass][]*DrawInfo)
}

// Buffers returns the group's packed vertex and index buffers.
func (g *Group) Buffers() (vertices, indices gpubuf.Buffer) { return g.vertices, g.indices }

// SetBuffers hands the group ownership of new buffers, releasing the previous ones if they differ.
func (g *Group) SetBuffers(vertices, indices gpubuf.Buffer) {
	g.copyCheck()
	if g.vertices != nil && g.vertices != vertices {
		g.vertices.Release()
	}
	if g.indices != nil && g.indices != indices {
		g.indices.Release()
	}
	g.vertices, g.indices = vertices, indices
}

// DestroyGL releases GPU buffers and draw descriptors while keeping occupants, bounds and LOD.
func (g *Group) DestroyGL() {
	g.copyCheck()
	g.SetBuffers(nil, nil)
	g.ClearDrawMap()
	g.glLost = true
}

// RestoreGL schedules the buffers released by DestroyGL to be rebuilt.
func (g *Group) RestoreGL() {
	g.copyCheck()
	if !g.glLost {
		return
	}
	g.glLost = false
	g.state |= GeomDirty | MeshDirty
}

// GLLost reports whether DestroyGL ran without a matching RestoreGL.
func (g *Group) GLLost() bool { return g.glLost }

func (g *Group) recomputeBounds() {
	first := true
	for _, b := range g.occupants {
		if first {
			g.bounds, first = b, false
			continue
		}
		g.bounds = g.bounds.Union(b)
	}
}

// touchesEdge reports whether inner reaches any face of outer.
func touchesEdge(outer, inner common.Bounds) bool {
	lo, hi := outer.Min(), outer.Max()
	ilo, ihi := inner.Min(), inner.Max()
	for i := 0; i < 3; i++ {
		if ilo[i] <= lo[i] || ihi[i] >= hi[i] {
			return true
		}
	}
	return false
}
