package cull

import (
	"fmt"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/drawable"
	"github.com/Carmen-Shannon/oxy-cull/engine/group"
	"github.com/Carmen-Shannon/oxy-cull/engine/model"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func groupWith(s *group.Store, distance float32, draws map[common.RenderPass][]*group.DrawInfo) *group.Group {
	g := s.Create(common.NodeID(s.Len()+1), common.PartitionVolume)
	g.AddObject(common.DrawableID(1000+s.Len()), common.Bounds{Center: mgl32.Vec3{0, 0, -distance}, HalfExtents: mgl32.Vec3{1, 1, 1}})
	g.UpdateDistance(mgl32.Vec3{}, 500, s.Policy())
	g.SetDrawMap(draws)
	return g
}

func draw(pass common.RenderPass, tex common.TextureID, distance float32) *group.DrawInfo {
	return &group.DrawInfo{Pass: pass, Texture: tex, Center: mgl32.Vec3{0, 0, -distance}, Distance: distance}
}

func TestResultDedupeAndBuckets(t *testing.T) {
	s := group.NewStore()
	tex := common.NewTextureID()
	opaque := groupWith(s, 5, map[common.RenderPass][]*group.DrawInfo{
		common.RenderPassSimple: {draw(common.RenderPassSimple, tex, 0)},
	})
	mixed := groupWith(s, 9, map[common.RenderPass][]*group.DrawInfo{
		common.RenderPassSimple: {draw(common.RenderPassSimple, tex, 0)},
		common.RenderPassAlpha:  {draw(common.RenderPassAlpha, tex, 9)},
	})

	r := NewResult()
	r.Reset(1)
	require.True(t, r.Empty())
	require.True(t, r.PushGroup(opaque, common.NilDrawable))
	require.True(t, r.PushGroup(mixed, common.NilDrawable))
	require.False(t, r.PushGroup(opaque, common.NilDrawable))
	require.True(t, r.PushOcclusionGroup(mixed))
	require.False(t, r.PushOcclusionGroup(mixed))

	require.Equal(t, []*group.Group{opaque, mixed}, r.VisibleGroups())
	require.Equal(t, []*group.Group{mixed}, r.AlphaGroups())
	require.Equal(t, []*group.Group{mixed}, r.OcclusionGroups())
	require.Len(t, r.RenderMap(common.RenderPassSimple), 2)
	require.Len(t, r.RenderMap(common.RenderPassAlpha), 1)
	require.Nil(t, r.RenderMap(common.NumRenderPasses))
	require.True(t, r.HasGroup(mixed.ID()))

	stats := r.Stats()
	require.Equal(t, uint64(1), stats.Frame)
	require.Equal(t, 2, stats.VisibleGroups)
	require.Equal(t, 3, stats.DrawInfos)

	r.Reset(2)
	require.True(t, r.Empty())
	require.Empty(t, r.RenderMap(common.RenderPassSimple))
	require.True(t, r.PushGroup(opaque, common.NilDrawable))
}

func TestResultSortsForDispatch(t *testing.T) {
	s := group.NewStore()
	texA, texB := common.NewTextureID(), common.NewTextureID()
	if texB.Compare(texA) < 0 {
		texA, texB = texB, texA
	}
	near := groupWith(s, 3, map[common.RenderPass][]*group.DrawInfo{
		common.RenderPassAlpha:  {draw(common.RenderPassAlpha, texA, 3)},
		common.RenderPassSimple: {draw(common.RenderPassSimple, texB, 0)},
	})
	far := groupWith(s, 30, map[common.RenderPass][]*group.DrawInfo{
		common.RenderPassAlpha:  {draw(common.RenderPassAlpha, texB, 30)},
		common.RenderPassSimple: {draw(common.RenderPassSimple, texA, 0)},
	})

	r := NewResult()
	r.PushGroup(near, common.NilDrawable)
	r.PushGroup(far, common.NilDrawable)
	r.Freeze()

	require.Equal(t, []*group.Group{far, near}, r.AlphaGroups())
	alpha := r.RenderMap(common.RenderPassAlpha)
	require.Equal(t, float32(30), alpha[0].Distance)
	require.Equal(t, float32(3), alpha[1].Distance)
	simple := r.RenderMap(common.RenderPassSimple)
	require.Equal(t, texA, simple[0].Texture)
	require.Equal(t, texB, simple[1].Texture)
}

func TestResultAlphaFollowsCamera(t *testing.T) {
	s := group.NewStore()
	tex := common.NewTextureID()
	back := &group.DrawInfo{Pass: common.RenderPassAlpha, Texture: tex, Center: mgl32.Vec3{0, 0, -6}}
	front := &group.DrawInfo{Pass: common.RenderPassAlpha, Texture: tex, Center: mgl32.Vec3{0, 0, 6}}
	a := groupWith(s, 6, map[common.RenderPass][]*group.DrawInfo{common.RenderPassAlpha: {back}})
	b := groupWith(s, -6, map[common.RenderPass][]*group.DrawInfo{common.RenderPassAlpha: {front}})

	r := NewResult()
	frame := func(n uint64, eye mgl32.Vec3) []*group.DrawInfo {
		a.UpdateDistance(eye, 500, s.Policy())
		b.UpdateDistance(eye, 500, s.Policy())
		r.Reset(n)
		r.PushGroup(a, common.NilDrawable)
		r.PushGroup(b, common.NilDrawable)
		r.Freeze()
		return r.RenderMap(common.RenderPassAlpha)
	}

	require.Equal(t, []*group.DrawInfo{back, front}, frame(1, mgl32.Vec3{0, 0, 20}))
	require.InDelta(t, 26, back.Distance, 1e-4)
	require.InDelta(t, 14, front.Distance, 1e-4)

	// same draw descriptors, camera on the other side
	require.Equal(t, []*group.DrawInfo{front, back}, frame(2, mgl32.Vec3{0, 0, -20}))
	require.InDelta(t, 26, front.Distance, 1e-4)
	require.InDelta(t, 14, back.Distance, 1e-4)
	require.Equal(t, []*group.Group{b, a}, r.AlphaGroups())
}

func TestResultFrozenRejectsPushes(t *testing.T) {
	var b strings.Builder
	logs.SetInlineEncoder()
	logs.SetLogger(func(e logs.Entry) { fmt.Fprint(&b, e) })

	s := group.NewStore()
	g := groupWith(s, 1, nil)
	r := NewResult()
	r.Reset(4)
	r.Freeze()
	require.True(t, r.Frozen())
	require.False(t, r.PushGroup(g, common.NilDrawable))
	require.True(t, r.Empty())
	require.NotEmpty(t, b.String())

	r.Reset(5)
	require.False(t, r.Frozen())
	require.True(t, r.PushGroup(g, common.NilDrawable))
}

func TestResultDrawablesAndBridges(t *testing.T) {
	ds := drawable.NewStore()
	cube := model.NewModel(model.WithFaces(0, model.Box(1, common.NewTextureID(), common.RenderPassSimple)))
	tree := ds.New(uuid.New(), common.PartitionTree, cube)
	root := ds.New(uuid.New(), common.PartitionBridge, cube, drawable.AsBridge())

	gs := group.NewStore()
	tex := common.NewTextureID()
	attached := groupWith(gs, 2, map[common.RenderPass][]*group.DrawInfo{
		common.RenderPassSimple: {draw(common.RenderPassSimple, tex, 0)},
	})

	r := NewResult()
	require.True(t, r.PushDrawable(tree))
	require.False(t, r.PushDrawable(tree))
	require.True(t, r.PushBridge(root))
	require.False(t, r.PushBridge(root))
	require.True(t, r.PushGroup(attached, root.ID()))

	require.Empty(t, r.RenderMap(common.RenderPassSimple))
	require.Len(t, r.Bridges(), 1)
	require.Same(t, root, r.Bridges()[0].Root)
	require.Len(t, r.Bridges()[0].RenderMap[common.RenderPassSimple], 1)
	require.Equal(t, 1, r.Stats().DrawInfos)

	require.True(t, r.HasDrawable(tree.ID()))
	ids := r.VisibleDrawables()
	require.Equal(t, tree.ID(), ids[0])
	require.Len(t, ids, 2)

	ds.MarkDead(tree.ID())
	r.Reset(1)
	require.False(t, r.PushDrawable(tree))
}

func TestResultCollectPicksUpRebuiltGroups(t *testing.T) {
	s := group.NewStore()
	tex := common.NewTextureID()
	fresh := groupWith(s, 4, nil)

	r := NewResult()
	r.Reset(1)
	require.True(t, r.PushGroup(fresh, common.NilDrawable))
	require.Empty(t, r.RenderMap(common.RenderPassSimple))

	fresh.SetDrawMap(map[common.RenderPass][]*group.DrawInfo{
		common.RenderPassSimple: {draw(common.RenderPassSimple, tex, 0)},
		common.RenderPassAlpha:  {draw(common.RenderPassAlpha, tex, 4)},
	})
	r.Freeze()
	require.Len(t, r.RenderMap(common.RenderPassSimple), 1)
	require.Len(t, r.RenderMap(common.RenderPassAlpha), 1)
	require.Equal(t, []*group.Group{fresh}, r.AlphaGroups())
}
