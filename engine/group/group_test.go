package group

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/gpubuf"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"
)

func box(x, y, z, h float32) common.Bounds {
	return common.Bounds{Center: mgl32.Vec3{x, y, z}, HalfExtents: mgl32.Vec3{h, h, h}}
}

func newGroup() (*Store, *Group) {
	s := NewStore()
	return s, s.Create(common.NodeID(1), common.PartitionVolume)
}

func requireEncloses(t *testing.T, g *Group) {
	for _, id := range g.Occupants() {
		b, _ := g.OccupantBounds(id)
		require.True(t, g.Bounds().Contains(b, 1e-5), "occupant %d escapes group bounds", id)
	}
}

func TestGroupAddRemoveMaintainsBounds(t *testing.T) {
	_, g := newGroup()
	require.True(t, g.Empty())
	require.Equal(t, Clean, g.State())

	g.AddObject(1, box(0, 0, 0, 1))
	g.AddObject(2, box(10, 0, 0, 1))
	g.AddObject(3, box(0, -6, 0, 1))
	requireEncloses(t, g)
	require.True(t, g.Is(GeomDirty|MeshDirty))
	require.Equal(t, []common.DrawableID{1, 2, 3}, g.Occupants())

	require.True(t, g.RemoveObject(2))
	require.False(t, g.RemoveObject(2))
	requireEncloses(t, g)
	require.Equal(t, mgl32.Vec3{1, 4, 1}, g.Bounds().HalfExtents)
	require.Equal(t, mgl32.Vec3{0, -3, 0}, g.Bounds().Center)
}

func TestGroupUpdateInGroup(t *testing.T) {
	_, g := newGroup()
	g.AddObject(1, box(0, 0, 0, 1))
	g.AddObject(2, box(10, 0, 0, 1))
	g.Clear(Dirty)

	require.True(t, g.UpdateInGroup(2, box(4, 0, 0, 1)))
	require.True(t, g.Any(GeomDirty))
	requireEncloses(t, g)
	require.Equal(t, mgl32.Vec3{2, 0, 0}, g.Bounds().Center)

	require.True(t, g.UpdateInGroup(1, box(0.5, 0, 0, 0.5)))
	requireEncloses(t, g)

	require.True(t, g.UpdateInGroup(1, box(-20, 0, 0, 1)))
	requireEncloses(t, g)
	require.False(t, g.UpdateInGroup(9, box(0, 0, 0, 1)))
}

func TestGroupShiftInverse(t *testing.T) {
	_, g := newGroup()
	g.AddObject(1, box(1, 2, 3, 1))
	g.AddObject(2, box(-4, 0, 8, 2))
	before := g.Bounds()
	b1, _ := g.OccupantBounds(1)

	offset := mgl32.Vec3{256, -256, 0.5}
	g.Shift(offset)
	require.True(t, common.NearlyEqualVec3(before.Center.Add(offset), g.Bounds().Center, 1e-4))
	g.Shift(offset.Mul(-1))

	require.True(t, common.NearlyEqualVec3(before.Center, g.Bounds().Center, 1e-4))
	after1, _ := g.OccupantBounds(1)
	require.True(t, common.NearlyEqualVec3(b1.Center, after1.Center, 1e-4))
	require.True(t, g.Any(GeomDirty))
}

func TestGroupOcclusionState(t *testing.T) {
	_, g := newGroup()
	g.BeginOcclusion(12)
	require.True(t, g.OcclusionPending())
	require.False(t, g.Occluded())
	require.Equal(t, uint64(12), g.QueryFrame())

	g.ResolveOcclusion(false)
	require.False(t, g.OcclusionPending())
	require.True(t, g.Occluded())

	g.BeginOcclusion(13)
	require.True(t, g.Occluded())
	g.ResolveOcclusion(true)
	require.False(t, g.Occluded())
	require.Equal(t, Clean, g.State()&(OcclusionPending|Occluded))
}

func TestGroupStateString(t *testing.T) {
	require.Equal(t, "clean", Clean.String())
	require.Equal(t, "geom_dirty|occlusion_pending", (GeomDirty | OcclusionPending).String())
}

func TestSelectLevelHysteresis(t *testing.T) {
	p := LODPolicy{Thresholds: []float32{1000, 100}, Hysteresis: 0.2}
	require.Equal(t, 3, p.Levels())

	require.Equal(t, 0, p.selectLevel(0, 900))
	require.Equal(t, 1, p.selectLevel(0, 700))
	require.Equal(t, 1, p.selectLevel(1, 1100))
	require.Equal(t, 0, p.selectLevel(1, 1300))
	require.Equal(t, 2, p.selectLevel(0, 10))
	require.Equal(t, 0, p.selectLevel(2, 5000))
	require.Equal(t, 2, p.selectLevel(7, 10))
}

func TestUpdateDistanceLODMonotonic(t *testing.T) {
	for _, slop := range []float32{0, 0.25} {
		_, g := newGroup()
		g.AddObject(1, box(0, 0, 0, 1))
		policy := LODPolicy{Thresholds: []float32{50000, 5000, 500}, Hysteresis: 0.1, SlopRatio: slop}

		last := -1
		changes := 0
		for d := float32(3); d < 5000; d *= 1.05 {
			if g.UpdateDistance(mgl32.Vec3{d, 0, 0}, 1000, policy) {
				changes++
			}
			require.GreaterOrEqual(t, g.LOD(), last, "lod gained detail at distance %f", d)
			last = g.LOD()
		}
		require.Equal(t, 3, g.LOD())
		require.Equal(t, 3, changes)
	}
}

func TestUpdateDistanceSlopGating(t *testing.T) {
	_, g := newGroup()
	g.AddObject(1, box(0, 0, 0, 1))
	g.Clear(Dirty)
	policy := LODPolicy{Thresholds: []float32{1e9}, SlopRatio: 0.25}

	require.True(t, g.UpdateDistance(mgl32.Vec3{100, 0, 0}, 1000, policy))
	require.Equal(t, 1, g.LOD())
	require.True(t, g.Any(GeomDirty))

	// within the slop the level is not re-evaluated even though the area would refine it
	policy.Thresholds = []float32{1}
	require.False(t, g.UpdateDistance(mgl32.Vec3{110, 0, 0}, 1000, policy))
	require.Equal(t, 1, g.LOD())
	require.InDelta(t, 109, g.Distance(), 1e-4)

	require.True(t, g.UpdateDistance(mgl32.Vec3{200, 0, 0}, 1000, policy))
	require.Equal(t, 0, g.LOD())
}

func TestUpdateDistanceRepacksBlendedWhenEyeWanders(t *testing.T) {
	_, g := newGroup()
	g.AddObject(1, box(0, 0, 0, 1))
	policy := LODPolicy{Thresholds: []float32{1}, SlopRatio: 0.25}
	g.UpdateDistance(mgl32.Vec3{0, 0, 20}, 1000, policy)
	g.SetDrawMap(map[common.RenderPass][]*DrawInfo{
		common.RenderPassAlpha: {{Pass: common.RenderPassAlpha, Count: 6}},
	})
	g.Clear(Dirty)
	require.True(t, g.HasBlended())

	// orbiting at a constant distance still moves the eye
	g.UpdateDistance(mgl32.Vec3{2, 0, 20}, 1000, policy)
	require.False(t, g.Any(AlphaDirty))
	g.UpdateDistance(mgl32.Vec3{0, 0, -20}, 1000, policy)
	require.True(t, g.Is(AlphaDirty))

	g.SetDrawMap(map[common.RenderPass][]*DrawInfo{
		common.RenderPassSimple: {{Pass: common.RenderPassSimple, Count: 6}},
	})
	g.Clear(Dirty)
	g.UpdateDistance(mgl32.Vec3{0, 0, 20}, 1000, policy)
	require.False(t, g.Any(AlphaDirty))
}

func TestProjectedArea(t *testing.T) {
	require.Equal(t, float32(3.4028235e38), projectedArea(2, 1, 100))
	near := projectedArea(1, 10, 1000)
	far := projectedArea(1, 100, 1000)
	require.Greater(t, near, far)
	require.InDelta(t, 3.1416*100, far, 1)
}

func TestGroupDrawMapAndGL(t *testing.T) {
	alloc := gpubuf.NewMemoryAllocator(0)
	_, g := newGroup()
	g.AddObject(1, box(0, 0, 0, 1))

	vb, err := alloc.Allocate("v", gpubuf.UsageVertex, 64)
	require.NoError(t, err)
	ib, err := alloc.Allocate("i", gpubuf.UsageIndex, 24)
	require.NoError(t, err)
	g.SetBuffers(vb, ib)
	g.SetDrawMap(map[common.RenderPass][]*DrawInfo{
		common.RenderPassSimple: {{Vertices: vb, Indices: ib, Count: 6, Group: g.ID()}},
		common.RenderPassAlpha:  nil,
	})
	require.True(t, g.Any(NewDrawInfo))
	require.Equal(t, []common.RenderPass{common.RenderPassSimple}, g.Passes())
	require.Equal(t, 1, g.DrawCount())
	g.Clear(Dirty)

	g.DestroyGL()
	require.True(t, g.GLLost())
	require.Equal(t, 0, g.DrawCount())
	require.Equal(t, uint64(0), alloc.InUse())
	require.Equal(t, 1, g.Len())
	require.False(t, g.Any(GeomDirty))

	g.RestoreGL()
	require.False(t, g.GLLost())
	require.True(t, g.Is(GeomDirty|MeshDirty))
}

func TestStoreDeferredDestruction(t *testing.T) {
	alloc := gpubuf.NewMemoryAllocator(0)
	s, g := newGroup()
	vb, _ := alloc.Allocate("v", gpubuf.UsageVertex, 64)
	g.SetBuffers(vb, nil)

	require.True(t, s.MarkDead(g.ID()))
	require.False(t, s.MarkDead(g.ID()))
	got, ok := s.Get(g.ID())
	require.True(t, ok)
	require.True(t, got.Any(Dead))
	require.Equal(t, 1, s.Dead())

	require.Equal(t, 1, s.DrainDead())
	_, ok = s.Get(g.ID())
	require.False(t, ok)
	require.Equal(t, uint64(0), alloc.InUse())
	require.Equal(t, 0, s.Len())
}

func TestCopiedGroupPanics(t *testing.T) {
	_, g := newGroup()
	cp := *g
	require.Panics(t, func() { cp.AddObject(1, box(0, 0, 0, 1)) })
}
