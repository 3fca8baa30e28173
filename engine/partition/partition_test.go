package partition

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/camera"
	"github.com/Carmen-Shannon/oxy-cull/engine/cull"
	"github.com/Carmen-Shannon/oxy-cull/engine/drawable"
	"github.com/Carmen-Shannon/oxy-cull/engine/frame"
	"github.com/Carmen-Shannon/oxy-cull/engine/group"
	"github.com/Carmen-Shannon/oxy-cull/engine/model"
	"github.com/Carmen-Shannon/oxy-cull/engine/occlusion"
	"github.com/Carmen-Shannon/oxy-cull/engine/octree"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	drawables *drawable.Store
	groups    *group.Store
	tex       common.TextureID
}

func newFixture() *fixture {
	return &fixture{
		drawables: drawable.NewStore(),
		groups:    group.NewStore(),
		tex:       common.NewTextureID(),
	}
}

func (f *fixture) partition(kind common.PartitionKind, options ...PartitionBuilderOption) Partition {
	base := []PartitionBuilderOption{
		WithRegion(common.Bounds{HalfExtents: mgl32.Vec3{10, 10, 10}}),
		WithTreeOptions(octree.WithCapacity[common.DrawableID](3)),
	}
	return NewPartition(kind, f.drawables, f.groups, append(base, options...)...)
}

// cube creates a built drawable carrying a unit box at pos.
func (f *fixture) cube(t *testing.T, kind common.PartitionKind, pos mgl32.Vec3, options ...drawable.DrawableBuilderOption) *drawable.Drawable {
	return f.build(t, kind, pos, model.Box(0.5, f.tex, common.RenderPassSimple), options...)
}

func (f *fixture) build(t *testing.T, kind common.PartitionKind, pos mgl32.Vec3, face model.Face, options ...drawable.DrawableBuilderOption) *drawable.Drawable {
	pose := drawable.IdentityPose()
	pose.Position = pos
	options = append([]drawable.DrawableBuilderOption{drawable.WithPose(pose)}, options...)
	d := f.drawables.New(uuid.New(), kind, model.NewModel(model.WithFaces(0, face)), options...)
	_, err := f.drawables.Init(d.ID())
	require.NoError(t, err)
	return d
}

func boxView(b common.Bounds) camera.View {
	return camera.View{
		Origin:          mgl32.Vec3{0, 0, 30},
		Frustum:         common.FrustumFromBounds(b),
		PixelsPerRadian: 500,
	}
}

func everything() camera.View {
	return boxView(common.Bounds{HalfExtents: mgl32.Vec3{100, 100, 100}})
}

func cullOnce(p Partition, n uint64, view camera.View, options ...frame.ContextBuilderOption) (*cull.Result, CullStats) {
	r := cull.NewResult()
	r.Reset(n)
	stats := p.Cull(frame.New(n, view, options...), view, r)
	r.Freeze()
	return r, stats
}

func TestPartitionFourOctants(t *testing.T) {
	f := newFixture()
	p := f.partition(common.PartitionVolume)
	ds := []*drawable.Drawable{
		f.cube(t, common.PartitionVolume, mgl32.Vec3{5, 5, 5}),
		f.cube(t, common.PartitionVolume, mgl32.Vec3{-5, 5, 5}),
		f.cube(t, common.PartitionVolume, mgl32.Vec3{5, -5, 5}),
		f.cube(t, common.PartitionVolume, mgl32.Vec3{-5, -5, -5}),
	}
	for _, d := range ds {
		require.NoError(t, p.Put(d))
	}
	require.Equal(t, 4, p.Len())
	require.NoError(t, p.Validate())

	// one group per occupied child octant, none at the root
	groups := p.Groups()
	require.Len(t, groups, 4)
	for _, d := range ds {
		g, ok := p.GroupOf(d.ID())
		require.True(t, ok)
		require.Equal(t, g.ID(), d.Group())
		require.Equal(t, []common.DrawableID{d.ID()}, g.Occupants())
	}

	// the upper half space excludes the fourth drawable only
	r, stats := cullOnce(p, 1, boxView(common.Bounds{Center: mgl32.Vec3{0, 0, 5}, HalfExtents: mgl32.Vec3{10, 10, 5}}))
	require.ElementsMatch(t, []common.DrawableID{ds[0].ID(), ds[1].ID(), ds[2].ID()}, r.VisibleDrawables())
	require.False(t, r.HasDrawable(ds[3].ID()))
	require.Equal(t, 3, stats.GroupsVisible)
}

func TestPartitionCullDeterministic(t *testing.T) {
	f := newFixture()
	p := f.partition(common.PartitionVolume)
	for i := 0; i < 20; i++ {
		x := float32(i%5)*3 - 6
		z := float32(i/5)*3 - 6
		require.NoError(t, p.Put(f.cube(t, common.PartitionVolume, mgl32.Vec3{x, 0, z})))
	}
	view := boxView(common.Bounds{Center: mgl32.Vec3{-3, 0, 0}, HalfExtents: mgl32.Vec3{4, 4, 10}})

	first, _ := cullOnce(p, 1, view)
	for n := uint64(2); n < 5; n++ {
		again, _ := cullOnce(p, n, view)
		require.ElementsMatch(t, first.VisibleDrawables(), again.VisibleDrawables())
	}
	require.NotEmpty(t, first.VisibleDrawables())
	require.Less(t, len(first.VisibleDrawables()), 20)
}

func TestPartitionEmptyFrustum(t *testing.T) {
	f := newFixture()
	p := f.partition(common.PartitionVolume)
	require.NoError(t, p.Put(f.cube(t, common.PartitionVolume, mgl32.Vec3{})))

	view := everything()
	// left and right planes facing away from each other
	view.Frustum.Planes[common.FrustumLeft] = common.Plane{Normal: mgl32.Vec3{1, 0, 0}, Distance: -50}
	view.Frustum.Planes[common.FrustumRight] = common.Plane{Normal: mgl32.Vec3{-1, 0, 0}, Distance: -50}
	r, _ := cullOnce(p, 1, view)
	require.True(t, r.Empty())
}

func TestPartitionPutRemoveRoundTrip(t *testing.T) {
	f := newFixture()
	p := f.partition(common.PartitionVolume)
	a := f.cube(t, common.PartitionVolume, mgl32.Vec3{1, 1, 1})
	require.NoError(t, p.Put(a))
	before := p.Groups()[0].Bounds()

	b := f.cube(t, common.PartitionVolume, mgl32.Vec3{-3, 2, 0})
	require.NoError(t, p.Put(b))
	require.True(t, p.Remove(b))
	require.False(t, p.Remove(b))
	require.Equal(t, common.NilGroup, b.Group())

	require.Equal(t, 1, p.Len())
	require.Len(t, p.Groups(), 1)
	require.Equal(t, before, p.Groups()[0].Bounds())

	require.True(t, p.Remove(a))
	require.Empty(t, p.Groups())
	require.Equal(t, 1, f.groups.Dead())
	require.NoError(t, p.Validate())
}

func TestPartitionPutDeadDrawable(t *testing.T) {
	f := newFixture()
	p := f.partition(common.PartitionVolume)
	d := f.cube(t, common.PartitionVolume, mgl32.Vec3{})
	f.drawables.MarkDead(d.ID())

	err := p.Put(d)
	require.Error(t, err)
	require.True(t, errors.IsType(err, common.ErrTypeStaleHandle))
	require.Equal(t, 0, p.Len())
}

func TestPartitionMoveWithinSlopUpdatesGroup(t *testing.T) {
	f := newFixture()
	p := f.partition(common.PartitionVolume)
	var ds []*drawable.Drawable
	for _, pos := range []mgl32.Vec3{{5, 5, 5}, {-5, 5, 5}, {5, -5, 5}, {-5, -5, -5}} {
		d := f.cube(t, common.PartitionVolume, pos)
		require.NoError(t, p.Put(d))
		ds = append(ds, d)
	}
	d := ds[0]
	g, _ := p.GroupOf(d.ID())

	pose := d.Pose()
	pose.Position = mgl32.Vec3{5.5, 5, 5}
	require.True(t, f.drawables.MarkMoved(d.ID(), pose, true))
	f.drawables.FlushMoved(func(d *drawable.Drawable) {
		require.False(t, p.Move(d, false))
	})
	same, _ := p.GroupOf(d.ID())
	require.Equal(t, g.ID(), same.ID())
	require.InDelta(t, 5.5, g.Bounds().Center[0], 1e-4)

	// far into an unoccupied octant
	pose.Position = mgl32.Vec3{-5, -5, 5}
	require.True(t, f.drawables.MarkMoved(d.ID(), pose, true))
	f.drawables.FlushMoved(func(d *drawable.Drawable) {
		require.True(t, p.Move(d, false))
	})
	moved, _ := p.GroupOf(d.ID())
	require.NotEqual(t, g.ID(), moved.ID())
	require.Equal(t, moved.ID(), d.Group())
	require.NoError(t, p.Validate())
}

func TestPartitionImmediateMoveReinserts(t *testing.T) {
	f := newFixture()
	p := f.partition(common.PartitionVolume)
	d := f.cube(t, common.PartitionVolume, mgl32.Vec3{1, 1, 1})
	require.True(t, p.Move(d, true), "first move inserts")
	require.Equal(t, 1, p.Len())
	require.False(t, p.Move(d, true))
	require.NoError(t, p.Validate())
}

func TestPartitionApplyRebuild(t *testing.T) {
	f := newFixture()
	p := f.partition(common.PartitionVolume)
	d := f.cube(t, common.PartitionVolume, mgl32.Vec3{})
	require.NoError(t, p.Put(d))
	g, _ := p.GroupOf(d.ID())
	d.ConsumeRebuild()
	g.Clear(group.Dirty)

	d.MarkRebuild(drawable.RebuildColor)
	require.Equal(t, group.AlphaDirty|group.MeshDirty, p.ApplyRebuild(d))
	require.Equal(t, drawable.RebuildFlags(0), d.Rebuild())

	d.MarkRebuild(drawable.RebuildPosition | drawable.RebuildVolume)
	require.Equal(t, group.GeomDirty|group.MeshDirty, p.ApplyRebuild(d))
	require.True(t, g.Is(group.GeomDirty|group.AlphaDirty|group.MeshDirty))
}

func TestPartitionShiftInverse(t *testing.T) {
	f := newFixture()
	p := f.partition(common.PartitionVolume)
	for _, pos := range []mgl32.Vec3{{5, 5, 5}, {-5, 5, 5}, {5, -5, 5}, {-5, -5, -5}} {
		require.NoError(t, p.Put(f.cube(t, common.PartitionVolume, pos)))
	}
	var before []common.Bounds
	for _, g := range p.Groups() {
		before = append(before, g.Bounds())
	}

	offset := mgl32.Vec3{256.25, -3.5, 1024}
	p.Shift(offset)
	for i, g := range p.Groups() {
		require.InDelta(t, before[i].Center[0]+offset[0], g.Bounds().Center[0], 1e-3)
	}
	p.Shift(offset.Mul(-1))
	for i, g := range p.Groups() {
		for axis := 0; axis < 3; axis++ {
			require.InDelta(t, before[i].Center[axis], g.Bounds().Center[axis], 1e-3)
			require.InDelta(t, before[i].HalfExtents[axis], g.Bounds().HalfExtents[axis], 1e-3)
		}
	}
}

func TestPartitionOcclusionPendingThenOccluded(t *testing.T) {
	f := newFixture()
	occluders := occlusion.NewOccluders()
	occluders.Add(common.Bounds{Center: mgl32.Vec3{0, 0, 5}, HalfExtents: mgl32.Vec3{20, 20, 0.5}})
	p := f.partition(common.PartitionVolume,
		WithOcclusion(occlusion.NewDeferredProvider(occluders)),
		WithOcclusionMinSize(0),
	)
	hidden := f.cube(t, common.PartitionVolume, mgl32.Vec3{0, 0, -5})
	require.NoError(t, p.Put(hidden))
	g, _ := p.GroupOf(hidden.ID())
	view := everything()
	view.Origin = mgl32.Vec3{0, 0, 30}

	// the first query has not resolved: visible but flagged
	r, stats := cullOnce(p, 1, view, frame.WithOcclusion(true))
	require.True(t, r.HasGroup(g.ID()))
	require.Len(t, r.OcclusionGroups(), 1)
	require.Equal(t, 1, stats.Pending)

	r, stats = cullOnce(p, 2, view, frame.WithOcclusion(true))
	require.False(t, r.HasGroup(g.ID()))
	require.Equal(t, 1, stats.Occluded)
	require.True(t, g.Occluded())

	// without occlusion the group is visible regardless
	r, _ = cullOnce(p, 3, view)
	require.True(t, r.HasGroup(g.ID()))
}

func TestPartitionOcclusionEyeInsideGroup(t *testing.T) {
	f := newFixture()
	occluders := occlusion.NewOccluders()
	p := f.partition(common.PartitionVolume,
		WithOcclusion(occlusion.NewDeferredProvider(occluders)),
		WithOcclusionMinSize(0),
	)
	d := f.cube(t, common.PartitionVolume, mgl32.Vec3{})
	require.NoError(t, p.Put(d))
	view := everything()
	view.Origin = mgl32.Vec3{}

	r, _ := cullOnce(p, 1, view, frame.WithOcclusion(true))
	require.True(t, r.HasDrawable(d.ID()))
	require.Empty(t, r.OcclusionGroups())
}

func TestPartitionIndividualDrawables(t *testing.T) {
	f := newFixture()
	p := f.partition(common.PartitionTree)
	in := f.cube(t, common.PartitionTree, mgl32.Vec3{2, 0, 0})
	out := f.cube(t, common.PartitionTree, mgl32.Vec3{-2, 0, 0})
	require.NoError(t, p.Put(in))
	require.NoError(t, p.Put(out))

	r, stats := cullOnce(p, 1, boxView(common.Bounds{Center: mgl32.Vec3{5, 0, 0}, HalfExtents: mgl32.Vec3{5, 5, 5}}))
	require.Equal(t, 1, stats.Drawables)
	require.Len(t, r.Drawables(), 1)
	require.Equal(t, in.ID(), r.Drawables()[0].ID())
	require.Empty(t, r.VisibleGroups())
}

func TestPartitionLineSegmentIntersect(t *testing.T) {
	f := newFixture()
	p := f.partition(common.PartitionVolume)
	solid := f.build(t, common.PartitionVolume, mgl32.Vec3{0, 0, -8}, model.Quad(2, f.tex, common.RenderPassSimple))
	glass := model.Quad(2, f.tex, common.RenderPassSimple)
	glass.Alpha = true
	window := f.build(t, common.PartitionVolume, mgl32.Vec3{0, 0, -4}, glass)
	require.NoError(t, p.Put(solid))
	require.NoError(t, p.Put(window))

	start, end := mgl32.Vec3{0.5, 0.5, 0}, mgl32.Vec3{0.5, 0.5, -10}
	hit, ok := p.LineSegmentIntersect(start, end, false)
	require.True(t, ok)
	require.Equal(t, solid.ID(), hit.Drawable)
	require.Equal(t, 0, hit.Face)
	require.InDelta(t, 0.8, hit.T, 1e-4)
	require.InDelta(t, -8, hit.Point[2], 1e-4)

	hit, ok = p.LineSegmentIntersect(start, end, true)
	require.True(t, ok)
	require.Equal(t, window.ID(), hit.Drawable)
	require.InDelta(t, -4, hit.Point[2], 1e-4)

	_, ok = p.LineSegmentIntersect(mgl32.Vec3{5, 5, 0}, mgl32.Vec3{5, 5, -10}, true)
	require.False(t, ok)
}

func TestPartitionClearRetiresGroups(t *testing.T) {
	f := newFixture()
	p := f.partition(common.PartitionVolume)
	for _, pos := range []mgl32.Vec3{{5, 5, 5}, {-5, 5, 5}, {5, -5, 5}, {-5, -5, -5}} {
		require.NoError(t, p.Put(f.cube(t, common.PartitionVolume, pos)))
	}
	p.Clear()
	require.Equal(t, 0, p.Len())
	require.Empty(t, p.Groups())
	// the root group retired when the root split, the rest on clear
	require.Equal(t, 5, f.groups.Dead())
}
