// Package cull holds the per-frame visible set. A Result is filled by the partitions during the
// cull traversal, frozen before it is handed to the render pass dispatcher and reset before the
// next frame.
package cull

import (
	"sort"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/arena"
	"github.com/Carmen-Shannon/oxy-cull/engine/drawable"
	"github.com/Carmen-Shannon/oxy-cull/engine/group"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/willf/bitset"
)

// RenderMap holds draw descriptors per render pass, in dispatch order once frozen.
type RenderMap [common.NumRenderPasses][]*group.DrawInfo

// Len returns the number of descriptors across all passes.
func (m *RenderMap) Len() int {
	n := 0
	for _, draws := range m {
		n += len(draws)
	}
	return n
}

// Bridge is one culled bridge: its root drawable and the descriptors of its own contents, which are
// expressed in the bridge's local space.
type Bridge struct {
	Root      *drawable.Drawable
	RenderMap RenderMap
}

// Stats counts the contents of a Result.
type Stats struct {
	Frame           uint64 `json:"frame"`
	VisibleGroups   int    `json:"visible_groups"`
	AlphaGroups     int    `json:"alpha_groups"`
	OcclusionGroups int    `json:"occlusion_groups"`
	Drawables       int    `json:"drawables"`
	Bridges         int    `json:"bridges"`
	DrawInfos       int    `json:"draw_infos"`
}

// Result is the visible set of one frame. It holds references into the drawable and group stores
// that stay valid until the frame's deferred destruction runs.
type Result struct {
	frame  uint64
	frozen bool

	seenGroups    *bitset.BitSet
	seenOcclusion *bitset.BitSet
	seenDrawables *bitset.BitSet
	seenBridges   *bitset.BitSet
	groups        []*group.Group
	groupBridges  []common.DrawableID
	alphaGroups   []*group.Group
	occlusion     []*group.Group
	drawables     []*drawable.Drawable
	bridges       []*Bridge
	bridgeIndex   map[common.DrawableID]int
	world         RenderMap
}

// NewResult creates an empty Result for frame 0.
func NewResult() *Result {
	return &Result{
		seenGroups:    bitset.New(64),
		seenOcclusion: bitset.New(64),
		seenDrawables: bitset.New(64),
		seenBridges:   bitset.New(16),
		bridgeIndex:   make(map[common.DrawableID]int),
	}
}

// Reset discards the contents and readies the Result for a new frame. Backing storage is reused.
func (r *Result) Reset(frame uint64) {
	r.frame = frame
	r.frozen = false
	r.seenGroups.ClearAll()
	r.seenOcclusion.ClearAll()
	r.seenDrawables.ClearAll()
	r.seenBridges.ClearAll()
	r.groups = r.groups[:0]
	r.groupBridges = r.groupBridges[:0]
	r.alphaGroups = r.alphaGroups[:0]
	r.occlusion = r.occlusion[:0]
	r.drawables = r.drawables[:0]
	r.bridges = r.bridges[:0]
	clear(r.bridgeIndex)
	for i := range r.world {
		r.world[i] = r.world[i][:0]
	}
}

// Frame returns the frame the Result belongs to.
func (r *Result) Frame() uint64 { return r.frame }

// Frozen reports whether the Result has been handed off.
func (r *Result) Frozen() bool { return r.frozen }

func (r *Result) writable(what string) bool {
	if r.frozen {
		logs.WithTag("frame", r.frame).
			WithTag("push", what).
			Warn("push into frozen cull result ignored")
		return false
	}
	return true
}

// PushGroup adds a visible group and its draw descriptors. bridge names the bridge the group
// belongs to, or common.NilDrawable for world groups. A group is only added once per frame.
//
// Parameters:
//   - g: the visible group
//   - bridge: the owning bridge root, or common.NilDrawable
//
// Returns:
//   - bool: true if the group was added
func (r *Result) PushGroup(g *group.Group, bridge common.DrawableID) bool {
	if g == nil || !r.writable("group") {
		return false
	}
	slot := arena.Slot(g.ID())
	if r.seenGroups.Test(slot) {
		return false
	}
	r.seenGroups.Set(slot)
	r.groups = append(r.groups, g)
	r.groupBridges = append(r.groupBridges, bridge)
	r.appendDraws(g, bridge)
	return true
}

func (r *Result) appendDraws(g *group.Group, bridge common.DrawableID) {
	target := &r.world
	if bridge != common.NilDrawable {
		if b := r.bridge(bridge); b != nil {
			target = &b.RenderMap
		}
	}
	alpha := false
	for _, pass := range g.Passes() {
		draws := g.DrawMap(pass)
		target[pass] = append(target[pass], draws...)
		if pass.Blended() && len(draws) > 0 {
			alpha = true
		}
	}
	if alpha {
		r.alphaGroups = append(r.alphaGroups, g)
	}
}

// Collect rebuilds the render maps and the alpha list from the visible groups, picking up the
// descriptors of groups rebuilt after they were pushed. Freeze collects implicitly.
func (r *Result) Collect() {
	if r.frozen {
		return
	}
	for i := range r.world {
		r.world[i] = r.world[i][:0]
	}
	for _, b := range r.bridges {
		for i := range b.RenderMap {
			b.RenderMap[i] = b.RenderMap[i][:0]
		}
	}
	r.alphaGroups = r.alphaGroups[:0]
	for i, g := range r.groups {
		r.appendDraws(g, r.groupBridges[i])
	}
}

// PushOcclusionGroup flags a group whose occlusion query is outstanding. The group may also be in
// the visible set.
func (r *Result) PushOcclusionGroup(g *group.Group) bool {
	if g == nil || !r.writable("occlusion") {
		return false
	}
	slot := arena.Slot(g.ID())
	if r.seenOcclusion.Test(slot) {
		return false
	}
	r.seenOcclusion.Set(slot)
	r.occlusion = append(r.occlusion, g)
	return true
}

// PushDrawable adds a visible drawable of a partition that does not render by group.
func (r *Result) PushDrawable(d *drawable.Drawable) bool {
	if d == nil || !d.Alive() || !r.writable("drawable") {
		return false
	}
	slot := arena.Slot(d.ID())
	if r.seenDrawables.Test(slot) {
		return false
	}
	r.seenDrawables.Set(slot)
	r.drawables = append(r.drawables, d)
	return true
}

// PushBridge adds a visible bridge. Groups pushed with its handle land in its own render map.
func (r *Result) PushBridge(root *drawable.Drawable) bool {
	if root == nil || !root.Alive() || !r.writable("bridge") {
		return false
	}
	slot := arena.Slot(root.ID())
	if r.seenBridges.Test(slot) {
		return false
	}
	r.seenBridges.Set(slot)
	r.bridgeIndex[root.ID()] = len(r.bridges)
	r.bridges = append(r.bridges, &Bridge{Root: root})
	return true
}

func (r *Result) bridge(id common.DrawableID) *Bridge {
	i, ok := r.bridgeIndex[id]
	if !ok {
		return nil
	}
	return r.bridges[i]
}

// SortAlpha orders alpha groups and every blended pass back to front. Blended draw distances are
// refreshed from the eye each group was last culled with, so the order follows the current camera
// even when no group was rebuilt.
func (r *Result) SortAlpha() {
	for _, g := range r.alphaGroups {
		eye := g.Eye()
		for _, pass := range g.Passes() {
			if !pass.Blended() {
				continue
			}
			for _, d := range g.DrawMap(pass) {
				d.Distance = d.Center.Sub(eye).Len()
			}
		}
	}
	sort.SliceStable(r.alphaGroups, func(i, j int) bool {
		return r.alphaGroups[i].Distance() > r.alphaGroups[j].Distance()
	})
	sortRenderMap(&r.world)
	for _, b := range r.bridges {
		sortRenderMap(&b.RenderMap)
	}
}

func sortRenderMap(m *RenderMap) {
	for pass := range m {
		draws := m[pass]
		if common.RenderPass(pass).Blended() {
			sort.SliceStable(draws, func(i, j int) bool { return draws[i].Distance > draws[j].Distance })
			continue
		}
		sort.SliceStable(draws, func(i, j int) bool {
			if c := draws[i].Texture.Compare(draws[j].Texture); c != 0 {
				return c < 0
			}
			return draws[i].Material.Compare(draws[j].Material) < 0
		})
	}
}

// Freeze sorts the Result for dispatch and rejects further pushes until the next Reset.
func (r *Result) Freeze() {
	if r.frozen {
		return
	}
	r.Collect()
	r.SortAlpha()
	r.frozen = true
}

// VisibleGroups returns the visible groups in push order, which follows partition priority.
func (r *Result) VisibleGroups() []*group.Group { return r.groups }

// AlphaGroups returns the visible groups with blended draws, back to front once frozen.
func (r *Result) AlphaGroups() []*group.Group { return r.alphaGroups }

// OcclusionGroups returns the groups with an outstanding occlusion query.
func (r *Result) OcclusionGroups() []*group.Group { return r.occlusion }

// Drawables returns the visible drawables of partitions that do not render by group.
func (r *Result) Drawables() []*drawable.Drawable { return r.drawables }

// Bridges returns the visible bridges.
func (r *Result) Bridges() []*Bridge { return r.bridges }

// RenderMap returns the world draw descriptors of one pass.
func (r *Result) RenderMap(pass common.RenderPass) []*group.DrawInfo {
	if !pass.Valid() {
		return nil
	}
	return r.world[pass]
}

// HasGroup reports whether a group is in the visible set.
func (r *Result) HasGroup(id common.GroupID) bool {
	for _, g := range r.groups {
		if g.ID() == id {
			return true
		}
	}
	return false
}

// HasDrawable reports whether a drawable is visible, either directly or as an occupant of a
// visible group.
func (r *Result) HasDrawable(id common.DrawableID) bool {
	for _, d := range r.drawables {
		if d.ID() == id {
			return true
		}
	}
	for _, g := range r.groups {
		if g.Has(id) {
			return true
		}
	}
	return false
}

// VisibleDrawables returns every visible drawable handle: direct pushes first, then group occupants
// in group order. Each handle appears once.
func (r *Result) VisibleDrawables() []common.DrawableID {
	seen := make(map[common.DrawableID]struct{}, len(r.drawables))
	out := make([]common.DrawableID, 0, len(r.drawables))
	add := func(id common.DrawableID) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, d := range r.drawables {
		add(d.ID())
	}
	for _, g := range r.groups {
		for _, id := range g.Occupants() {
			add(id)
		}
	}
	return out
}

// Empty reports whether nothing was found visible.
func (r *Result) Empty() bool {
	return len(r.groups) == 0 && len(r.drawables) == 0 && len(r.bridges) == 0 && len(r.occlusion) == 0
}

// Stats counts the contents of the Result.
func (r *Result) Stats() Stats {
	draws := r.world.Len()
	for _, b := range r.bridges {
		draws += b.RenderMap.Len()
	}
	return Stats{
		Frame:           r.frame,
		VisibleGroups:   len(r.groups),
		AlphaGroups:     len(r.alphaGroups),
		OcclusionGroups: len(r.occlusion),
		Drawables:       len(r.drawables),
		Bridges:         len(r.bridges),
		DrawInfos:       draws,
	}
}
