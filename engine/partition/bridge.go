package partition

import (
	"sort"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/camera"
	"github.com/Carmen-Shannon/oxy-cull/engine/cull"
	"github.com/Carmen-Shannon/oxy-cull/engine/drawable"
	"github.com/Carmen-Shannon/oxy-cull/engine/frame"
	"github.com/Carmen-Shannon/oxy-cull/engine/geometry"
	"github.com/Carmen-Shannon/oxy-cull/engine/group"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/go-gl/mathgl/mgl32"
)

// Bridge is the partition capability of a bridge root drawable. Its contents live in the root's
// local space, one partition per content kind, and move with the root without being re-inserted.
type Bridge struct {
	root       common.DrawableID
	drawables  geometry.DrawableSource
	groups     *group.Store
	options    []PartitionBuilderOption
	partitions map[common.PartitionKind]Partition
}

// NewBridge attaches a bridge capability to root.
//
// Parameters:
//   - root: a drawable created with drawable.AsBridge
//   - drawables: resolves drawable handles
//   - groups: the store groups are allocated from
//   - options: options applied to every content partition
//
// Returns:
//   - *Bridge: the bridge
func NewBridge(root *drawable.Drawable, drawables geometry.DrawableSource, groups *group.Store, options ...PartitionBuilderOption) *Bridge {
	if root == nil || !root.IsBridge() {
		panic("partition: bridge root must be a bridge drawable")
	}
	if drawables == nil || groups == nil {
		panic("partition: bridge needs drawable and group stores")
	}
	return &Bridge{
		root:       root.ID(),
		drawables:  drawables,
		groups:     groups,
		options:    options,
		partitions: make(map[common.PartitionKind]Partition),
	}
}

// Root returns the bridge root handle.
func (b *Bridge) Root() common.DrawableID { return b.root }

// Len returns the number of drawables carried by the bridge.
func (b *Bridge) Len() int {
	n := 0
	for _, p := range b.partitions {
		n += p.Len()
	}
	return n
}

// Partition returns the content partition of a kind, creating it when create is set.
func (b *Bridge) Partition(kind common.PartitionKind, create bool) (Partition, bool) {
	if p, ok := b.partitions[kind]; ok {
		return p, true
	}
	if !create {
		return nil, false
	}
	opts := append([]PartitionBuilderOption{}, b.options...)
	opts = append(opts, WithBridge(b.root))
	p := NewPartition(kind, b.drawables, b.groups, opts...)
	b.partitions[kind] = p
	return p, true
}

// Partitions returns the content partitions in cull priority order.
func (b *Bridge) Partitions() []Partition {
	out := make([]Partition, 0, len(b.partitions))
	for _, p := range b.partitions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind().Priority() < out[j].Kind().Priority() })
	return out
}

// Put inserts a drawable carried by the bridge.
//
// Returns:
//   - error: a not_found error if the drawable does not belong to this bridge, or the partition's error
func (b *Bridge) Put(d *drawable.Drawable) error {
	if d == nil || d.Bridge() != b.root {
		return errors.New("drawable is not carried by bridge").
			WithType(common.ErrTypeNotFound).
			WithTag("bridge", uint64(b.root))
	}
	p, _ := b.Partition(d.Kind(), true)
	return p.Put(d)
}

// Remove takes a drawable out of the bridge.
func (b *Bridge) Remove(d *drawable.Drawable) bool {
	if d == nil {
		return false
	}
	p, ok := b.partitions[d.Kind()]
	return ok && p.Remove(d)
}

// Move records a carried drawable's new bridge-space bounds.
func (b *Bridge) Move(d *drawable.Drawable, immediate bool) bool {
	if d == nil {
		return false
	}
	p, ok := b.partitions[d.Kind()]
	return ok && p.Move(d, immediate)
}

// ApplyRebuild forwards a carried drawable's rebuild reasons to its group.
func (b *Bridge) ApplyRebuild(d *drawable.Drawable) group.State {
	if d == nil {
		return group.Clean
	}
	p, ok := b.partitions[d.Kind()]
	if !ok {
		return group.Clean
	}
	return p.ApplyRebuild(d)
}

// Groups returns the live groups of every content partition.
func (b *Bridge) Groups() []*group.Group {
	var out []*group.Group
	for _, p := range b.Partitions() {
		out = append(out, p.Groups()...)
	}
	return out
}

// Cull culls the bridge contents with view transformed into the root's local space. The root must
// already have been pushed into result for the contents to land in the bridge's render map.
//
// Parameters:
//   - fc: the frame context
//   - view: the region-space view
//   - result: the frame's cull result
//
// Returns:
//   - CullStats: traversal counters of all content partitions
func (b *Bridge) Cull(fc *frame.Context, view camera.View, result *cull.Result) CullStats {
	var stats CullStats
	root, ok := b.drawables.Get(b.root)
	if !ok || !root.Alive() {
		return stats
	}
	local := view.Local(root.World())
	for _, p := range b.Partitions() {
		stats.Add(p.Cull(fc, local, result))
	}
	return stats
}

// LineSegmentIntersect picks against the bridge contents. The segment and the hit point are in
// region space.
func (b *Bridge) LineSegmentIntersect(start, end mgl32.Vec3, pickTransparent bool) (Hit, bool) {
	root, ok := b.drawables.Get(b.root)
	if !ok || !root.Alive() {
		return Hit{}, false
	}
	world := root.World()
	inv := world.Inv()
	ls := inv.Mul4x1(start.Vec4(1)).Vec3()
	le := inv.Mul4x1(end.Vec4(1)).Vec3()

	var best Hit
	found := false
	for _, p := range b.Partitions() {
		if h, ok := p.LineSegmentIntersect(ls, le, pickTransparent); ok && (!found || h.T < best.T) {
			best, found = h, true
		}
	}
	if !found {
		return Hit{}, false
	}
	best.Point = world.Mul4x1(best.Point.Vec4(1)).Vec3()
	return best, true
}

// DestroyGL releases the GPU buffers of every content group.
func (b *Bridge) DestroyGL() {
	for _, p := range b.partitions {
		p.DestroyGL()
	}
}

// RestoreGL marks every content group for a full rebuild.
func (b *Bridge) RestoreGL() {
	for _, p := range b.partitions {
		p.RestoreGL()
	}
}

// Clear empties every content partition.
func (b *Bridge) Clear() {
	for _, p := range b.partitions {
		p.Clear()
	}
}

// Validate checks every content partition.
func (b *Bridge) Validate() error {
	for _, p := range b.Partitions() {
		if err := p.Validate(); err != nil {
			return errors.New("bridge content invalid").
				WithTag("bridge", uint64(b.root)).
				WithTag("partition", p.Kind().String()).
				Wrap(err)
		}
	}
	return nil
}
