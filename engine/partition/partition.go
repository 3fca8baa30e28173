// Package partition implements spatial partitions: one octree per kind of scene content, each node
// carrying a spatial group. Partitions insert, move and remove drawables, follow region shifts,
// cull against a frame's view and answer segment picks.
package partition

import (
	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/camera"
	"github.com/Carmen-Shannon/oxy-cull/engine/cull"
	"github.com/Carmen-Shannon/oxy-cull/engine/drawable"
	"github.com/Carmen-Shannon/oxy-cull/engine/frame"
	"github.com/Carmen-Shannon/oxy-cull/engine/geometry"
	"github.com/Carmen-Shannon/oxy-cull/engine/group"
	"github.com/Carmen-Shannon/oxy-cull/engine/occlusion"
	"github.com/Carmen-Shannon/oxy-cull/engine/octree"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	// DefaultOcclusionMinSize is the smallest group edge length worth an occlusion query.
	DefaultOcclusionMinSize float32 = 4
	// DefaultOcclusionRetry is the number of frames between queries of a resolved group.
	DefaultOcclusionRetry = 1
)

// Partition is one octree of scene content of a single kind.
type Partition interface {
	// Kind returns the kind of content the partition holds.
	//
	// Returns:
	//   - common.PartitionKind: the kind
	Kind() common.PartitionKind

	// Bridge returns the bridge root the partition belongs to, or common.NilDrawable for world
	// partitions.
	Bridge() common.DrawableID

	// Len returns the number of drawables in the partition.
	Len() int

	// Put inserts a built drawable at its current bounds and assigns it a group.
	//
	// Parameters:
	//   - d: the drawable
	//
	// Returns:
	//   - error: a stale_handle error if the drawable is dead
	Put(d *drawable.Drawable) error

	// Remove takes a drawable out of the partition and its group.
	//
	// Returns:
	//   - bool: false if the drawable was not in the partition
	Remove(d *drawable.Drawable) bool

	// Move records a drawable's new bounds. The drawable only changes node when its bounds left the
	// node's slop-grown region, or when immediate forces a re-insert.
	//
	// Parameters:
	//   - d: the moved drawable
	//   - immediate: re-insert regardless of the slop tolerance
	//
	// Returns:
	//   - bool: true if the drawable changed node
	Move(d *drawable.Drawable, immediate bool) bool

	// ApplyRebuild consumes a drawable's rebuild reasons and marks its group dirty accordingly.
	//
	// Returns:
	//   - group.State: the bits set on the group
	ApplyRebuild(d *drawable.Drawable) group.State

	// Shift translates every node, entry and group by offset.
	Shift(offset mgl32.Vec3)

	// Cull walks the octree against view and pushes what is visible into result.
	//
	// Parameters:
	//   - fc: the frame context
	//   - view: the view in partition space
	//   - result: the frame's cull result
	//
	// Returns:
	//   - CullStats: traversal counters
	Cull(fc *frame.Context, view camera.View, result *cull.Result) CullStats

	// LineSegmentIntersect finds the nearest face hit by the segment start->end, in partition space.
	//
	// Parameters:
	//   - start, end: segment endpoints
	//   - pickTransparent: also consider blended faces
	//
	// Returns:
	//   - Hit: the nearest hit
	//   - bool: false if nothing was hit
	LineSegmentIntersect(start, end mgl32.Vec3, pickTransparent bool) (Hit, bool)

	// Groups returns the live groups of the partition in traversal order.
	Groups() []*group.Group

	// GroupOf returns the group of a drawable in this partition.
	GroupOf(id common.DrawableID) (*group.Group, bool)

	// DestroyGL releases the GPU buffers of every group.
	DestroyGL()

	// RestoreGL marks every group for a full rebuild after DestroyGL.
	RestoreGL()

	// Clear removes every drawable and retires every group.
	Clear()

	// Validate checks the octree and group containment invariants.
	//
	// Returns:
	//   - error: the first violation found
	Validate() error
}

type partitionImpl struct {
	kind   common.PartitionKind
	bridge common.DrawableID

	tree       *octree.Tree[common.DrawableID]
	drawables  geometry.DrawableSource
	groups     *group.Store
	nodeGroups map[common.NodeID]common.GroupID

	region      common.Bounds
	treeOptions []octree.TreeBuilderOption[common.DrawableID]

	occlusion        occlusion.Provider
	occlusionMinSize float32
	occlusionRetry   uint64
}

var _ Partition = &partitionImpl{}

// NewPartition creates an empty partition.
//
// Parameters:
//   - kind: the kind of content
//   - drawables: resolves drawable handles
//   - groups: the store groups are allocated from
//   - options: functional options to configure the partition
//
// Returns:
//   - Partition: the partition
func NewPartition(kind common.PartitionKind, drawables geometry.DrawableSource, groups *group.Store, options ...PartitionBuilderOption) Partition {
	if drawables == nil {
		panic("partition: drawable source is required")
	}
	if groups == nil {
		panic("partition: group store is required")
	}
	p := &partitionImpl{
		kind:             kind,
		drawables:        drawables,
		groups:           groups,
		nodeGroups:       make(map[common.NodeID]common.GroupID),
		region:           common.Bounds{HalfExtents: mgl32.Vec3{128, 128, 128}},
		occlusionMinSize: DefaultOcclusionMinSize,
		occlusionRetry:   DefaultOcclusionRetry,
	}
	for _, option := range options {
		option(p)
	}
	opts := append([]octree.TreeBuilderOption[common.DrawableID]{}, p.treeOptions...)
	opts = append(opts, octree.WithListener[common.DrawableID](&listener{p: p}))
	p.tree = octree.NewTree(p.region, opts...)
	return p
}

func (p *partitionImpl) Kind() common.PartitionKind { return p.kind }

func (p *partitionImpl) Bridge() common.DrawableID { return p.bridge }

func (p *partitionImpl) Len() int { return p.tree.Len() }

func (p *partitionImpl) Put(d *drawable.Drawable) error {
	if d == nil || !d.Alive() {
		return errors.New("put of dead drawable").
			WithType(common.ErrTypeStaleHandle).
			WithTag("partition", p.kind.String())
	}
	p.tree.Insert(d.ID(), d.Bounds())
	return nil
}

func (p *partitionImpl) Remove(d *drawable.Drawable) bool {
	if d == nil {
		return false
	}
	return p.tree.Remove(d.ID())
}

func (p *partitionImpl) Move(d *drawable.Drawable, immediate bool) bool {
	if d == nil || !d.Alive() {
		return false
	}
	id := d.ID()
	if immediate || !p.tree.Has(id) {
		before, _ := p.tree.Locate(id)
		after := p.tree.Insert(id, d.Bounds())
		return before != after
	}
	if p.tree.Update(id, d.Bounds()) {
		return true
	}
	if g, ok := p.GroupOf(id); ok {
		b, _ := p.tree.EntryBounds(id)
		g.UpdateInGroup(id, b)
	}
	return false
}

func (p *partitionImpl) ApplyRebuild(d *drawable.Drawable) group.State {
	g, ok := p.GroupOf(d.ID())
	if !ok {
		return group.Clean
	}
	flags := d.ConsumeRebuild()
	var bits group.State
	if flags&(drawable.RebuildVolume|drawable.RebuildRigged) != 0 {
		bits |= group.GeomDirty
	}
	if flags&drawable.RebuildColor != 0 {
		// alpha may have toggled, which moves faces between passes
		bits |= group.AlphaDirty | group.MeshDirty
	}
	if flags&(drawable.RebuildPosition|drawable.RebuildTCoord) != 0 {
		bits |= group.MeshDirty
	}
	g.Set(bits)
	return bits
}

func (p *partitionImpl) Shift(offset mgl32.Vec3) {
	p.tree.Shift(offset)
	for _, gid := range p.nodeGroups {
		if g, ok := p.groups.Get(gid); ok {
			g.Shift(offset)
		}
	}
}

func (p *partitionImpl) Groups() []*group.Group {
	var out []*group.Group
	p.tree.Walk(func(id common.NodeID) octree.WalkAction {
		if g := p.groupAt(id); g != nil {
			out = append(out, g)
		}
		return octree.Descend
	})
	return out
}

func (p *partitionImpl) GroupOf(id common.DrawableID) (*group.Group, bool) {
	node, ok := p.tree.Locate(id)
	if !ok {
		return nil, false
	}
	g := p.groupAt(node)
	return g, g != nil
}

func (p *partitionImpl) groupAt(node common.NodeID) *group.Group {
	gid, ok := p.nodeGroups[node]
	if !ok {
		return nil
	}
	g, ok := p.groups.Get(gid)
	if !ok {
		return nil
	}
	return g
}

func (p *partitionImpl) DestroyGL() {
	for _, g := range p.Groups() {
		g.DestroyGL()
	}
}

func (p *partitionImpl) RestoreGL() {
	for _, g := range p.Groups() {
		g.RestoreGL()
	}
}

func (p *partitionImpl) Clear() {
	p.tree.Clear()
}

func (p *partitionImpl) Validate() error {
	if err := p.tree.Validate(); err != nil {
		return err
	}
	for node, gid := range p.nodeGroups {
		g, ok := p.groups.Get(gid)
		if !ok {
			return errors.Newf("node %d has a stale group", uint64(node)).
				WithType(common.ErrTypeStaleHandle)
		}
		for _, id := range g.Occupants() {
			b, _ := g.OccupantBounds(id)
			if !g.Bounds().Contains(b, 1e-4) {
				return errors.Newf("group %d does not enclose drawable %d", uint64(gid), uint64(id)).
					WithType(common.ErrTypeInvalidIndex)
			}
			if at, _ := p.tree.Locate(id); at != node {
				return errors.Newf("drawable %d is grouped under node %d but indexed in node %d", uint64(id), uint64(node), uint64(at)).
					WithType(common.ErrTypeInvalidIndex)
			}
		}
	}
	return nil
}

// retire detaches the group of node and hands it to the store's deferred destruction.
func (p *partitionImpl) retire(node common.NodeID) {
	gid, ok := p.nodeGroups[node]
	if !ok {
		return
	}
	delete(p.nodeGroups, node)
	if p.occlusion != nil {
		p.occlusion.Forget(gid)
	}
	p.groups.MarkDead(gid)
}

// listener keeps exactly one group per occupied octree node.
type listener struct {
	p *partitionImpl
}

func (l *listener) NodeCreated(common.NodeID) {}

func (l *listener) NodeDestroyed(id common.NodeID) {
	l.p.retire(id)
}

func (l *listener) EntryInserted(node common.NodeID, key common.DrawableID) {
	g := l.p.groupAt(node)
	if g == nil {
		g = l.p.groups.Create(node, l.p.kind)
		l.p.nodeGroups[node] = g.ID()
	}
	b, _ := l.p.tree.EntryBounds(key)
	g.AddObject(key, b)
	if d, ok := l.p.drawables.Get(key); ok && d.Alive() {
		d.SetGroup(g.ID())
	}
}

func (l *listener) EntryRemoved(node common.NodeID, key common.DrawableID) {
	if g := l.p.groupAt(node); g != nil {
		g.RemoveObject(key)
		if g.Empty() {
			l.p.retire(node)
		}
	}
	if d, ok := l.p.drawables.Get(key); ok && d.Alive() {
		d.SetGroup(common.NilGroup)
	}
}
