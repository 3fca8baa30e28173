package partition

import (
	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/camera"
	"github.com/Carmen-Shannon/oxy-cull/engine/cull"
	"github.com/Carmen-Shannon/oxy-cull/engine/frame"
	"github.com/Carmen-Shannon/oxy-cull/engine/group"
	"github.com/Carmen-Shannon/oxy-cull/engine/octree"
	"github.com/go-gl/mathgl/mgl32"
)

// CullStats counts the work of one partition cull.
type CullStats struct {
	NodesVisited  int `json:"nodes_visited"`
	NodesRejected int `json:"nodes_rejected"`
	GroupsVisible int `json:"groups_visible"`
	Occluded      int `json:"occluded"`
	Pending       int `json:"pending"`
	Drawables     int `json:"drawables"`
}

// Add accumulates o into s.
func (s *CullStats) Add(o CullStats) {
	s.NodesVisited += o.NodesVisited
	s.NodesRejected += o.NodesRejected
	s.GroupsVisible += o.GroupsVisible
	s.Occluded += o.Occluded
	s.Pending += o.Pending
	s.Drawables += o.Drawables
}

func (p *partitionImpl) Cull(fc *frame.Context, view camera.View, result *cull.Result) CullStats {
	var stats CullStats
	if p.kind.InfiniteFar() {
		view = view.WithInfiniteFar()
	}
	policy := p.groups.Policy()

	p.tree.Walk(func(id common.NodeID) octree.WalkAction {
		stats.NodesVisited++
		loose, _ := p.tree.LooseRegion(id)
		if view.Frustum.TestBounds(loose) == common.Outside {
			stats.NodesRejected++
			return octree.SkipChildren
		}

		g := p.groupAt(id)
		if g == nil || g.Empty() || view.Frustum.TestBounds(g.Bounds()) == common.Outside {
			return octree.Descend
		}
		if fc.Occlusion && p.occlusion != nil && g.Bounds().Size() >= p.occlusionMinSize {
			if !p.occlusionVisible(fc, g, view.Origin, result, &stats) {
				stats.Occluded++
				return octree.Descend
			}
		}

		g.UpdateDistance(view.Origin, view.PixelsPerRadian, policy)
		if p.kind.RenderByGroup() {
			if result.PushGroup(g, p.bridge) {
				stats.GroupsVisible++
			}
			return octree.Descend
		}
		stats.Drawables += p.pushDrawables(g, view, result)
		return octree.Descend
	})
	return stats
}

// pushDrawables adds the individually visible occupants of a group for partitions that do not
// render by group.
func (p *partitionImpl) pushDrawables(g *group.Group, view camera.View, result *cull.Result) int {
	n := 0
	for _, id := range g.Occupants() {
		d, ok := p.drawables.Get(id)
		if !ok || !d.Alive() {
			continue
		}
		b, _ := g.OccupantBounds(id)
		if view.Frustum.TestBounds(b) == common.Outside {
			continue
		}
		d.SetDistance(b.DistanceTo(view.Origin))
		if d.LOD() != g.LOD() {
			d.SetLOD(g.LOD())
		}
		pushed := false
		if p.kind == common.PartitionBridge && d.IsBridge() {
			pushed = result.PushBridge(d)
		} else {
			pushed = result.PushDrawable(d)
		}
		if pushed {
			n++
		}
	}
	return n
}

// occlusionVisible advances the group's occlusion state machine and decides its visibility for
// this frame. Until a first answer arrives the group counts as visible; while a repeat query is
// outstanding the previous answer stands.
func (p *partitionImpl) occlusionVisible(fc *frame.Context, g *group.Group, eye mgl32.Vec3, result *cull.Result, stats *CullStats) bool {
	if g.Bounds().ContainsPoint(eye) {
		if g.OcclusionPending() {
			p.occlusion.Forget(g.ID())
		}
		g.ResolveOcclusion(true)
		return true
	}
	if g.OcclusionPending() {
		if visible, ready := p.occlusion.Poll(g.ID(), fc.Number); ready {
			g.ResolveOcclusion(visible)
		}
	}
	if !g.OcclusionPending() && (g.QueryFrame() == 0 || fc.Number >= g.QueryFrame()+p.occlusionRetry) {
		p.occlusion.Issue(g.ID(), g.Bounds(), eye, fc.Number)
		g.BeginOcclusion(fc.Number)
	}
	if g.OcclusionPending() {
		result.PushOcclusionGroup(g)
		stats.Pending++
	}
	return !g.Occluded()
}
