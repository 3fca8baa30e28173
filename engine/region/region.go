// Package region groups the partitions of one simulator region: a partition per kind of content,
// the bridges attached to its drawables and the origin shift they follow together.
package region

import (
	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/cull"
	"github.com/Carmen-Shannon/oxy-cull/engine/drawable"
	"github.com/Carmen-Shannon/oxy-cull/engine/frame"
	"github.com/Carmen-Shannon/oxy-cull/engine/group"
	"github.com/Carmen-Shannon/oxy-cull/engine/occlusion"
	"github.com/Carmen-Shannon/oxy-cull/engine/partition"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// Region is the set of partitions of one simulator region.
type Region interface {
	// ID returns the region's identifier.
	//
	// Returns:
	//   - uuid.UUID: the region id
	ID() uuid.UUID

	// Origin returns the sum of every shift applied to the region.
	Origin() mgl32.Vec3

	// Partition returns the partition holding a kind of content.
	//
	// Parameters:
	//   - kind: the partition kind
	//
	// Returns:
	//   - partition.Partition: the partition
	//   - bool: false if the region does not hold that kind
	Partition(kind common.PartitionKind) (partition.Partition, bool)

	// Bridge returns the bridge rooted at a drawable.
	Bridge(root common.DrawableID) (*partition.Bridge, bool)

	// Occluders returns the region's CPU occluder set, or nil if it has none.
	Occluders() *occlusion.Occluders

	// Len returns the number of drawables in the region, bridge contents included.
	Len() int

	// Put inserts a built drawable into the partition of its kind, or into its bridge when it is
	// carried by one. Bridge roots also get a bridge capability.
	//
	// Returns:
	//   - error: a not_found error if no partition or bridge can hold the drawable
	Put(d *drawable.Drawable) error

	// Remove takes a drawable out of the region. Removing a bridge root empties its bridge.
	//
	// Returns:
	//   - bool: false if the drawable was not in the region
	Remove(d *drawable.Drawable) bool

	// Unload takes a hidden drawable out of its partition and unloads it. The region keeps the
	// drawable in step with later shifts, and a bridge root keeps its bridge, so a Put after Reload
	// restores both. Bridges whose root is unloaded are neither culled nor picked.
	//
	// Returns:
	//   - bool: false if the drawable was already unloaded or dead
	Unload(d *drawable.Drawable) bool

	// Move forwards a committed move to the drawable's partition.
	//
	// Returns:
	//   - bool: true if the drawable changed node
	Move(d *drawable.Drawable, immediate bool) bool

	// ApplyRebuild forwards a drawable's rebuild reasons to its group.
	ApplyRebuild(d *drawable.Drawable) group.State

	// Shift translates the region's content by offset. Kinds that do not follow the region origin
	// (HUD content) and bridge contents stay put.
	//
	// Parameters:
	//   - offset: the translation
	Shift(offset mgl32.Vec3)

	// Cull culls every partition in priority order into result. Bridges the bridge partition found
	// visible are culled right after it.
	//
	// Parameters:
	//   - fc: the frame context
	//   - result: the frame's cull result
	//
	// Returns:
	//   - partition.CullStats: traversal counters
	Cull(fc *frame.Context, result *cull.Result) partition.CullStats

	// CullKind culls the partition of one kind, followed by the visible bridges when kind is the
	// bridge partition. Culling several regions kind by kind keeps the merged result in priority
	// order.
	//
	// Returns:
	//   - partition.CullStats: traversal counters, zero if the region does not hold that kind
	CullKind(fc *frame.Context, kind common.PartitionKind, result *cull.Result) partition.CullStats

	// LineSegmentIntersect finds the nearest face hit by the segment across all partitions and
	// bridges.
	LineSegmentIntersect(start, end mgl32.Vec3, pickTransparent bool) (partition.Hit, bool)

	// Groups returns every live group of the region.
	Groups() []*group.Group

	// DestroyGL releases the GPU buffers of every group.
	DestroyGL()

	// RestoreGL marks every group for a full rebuild.
	RestoreGL()

	// Clear removes all content.
	Clear()

	// Validate checks every partition.
	Validate() error
}

type regionImpl struct {
	id        uuid.UUID
	origin    mgl32.Vec3
	drawables *drawable.Store
	groups    *group.Store

	kinds             []common.PartitionKind
	partitions        map[common.PartitionKind]partition.Partition
	partitionOptions  []partition.PartitionBuilderOption
	bridgeOptions     []partition.PartitionBuilderOption
	bridges           map[common.DrawableID]*partition.Bridge
	parked            map[common.DrawableID]struct{}
	occluders         *occlusion.Occluders
	occlusionProvider occlusion.Provider
}

var _ Region = &regionImpl{}

// NewRegion creates a region with one empty partition per kind.
//
// Parameters:
//   - drawables: the drawable store shared by every region
//   - groups: the group store shared by every region
//   - options: functional options to configure the region
//
// Returns:
//   - Region: the region
func NewRegion(drawables *drawable.Store, groups *group.Store, options ...RegionBuilderOption) Region {
	if drawables == nil || groups == nil {
		panic("region: drawable and group stores are required")
	}
	r := &regionImpl{
		id:         uuid.New(),
		drawables:  drawables,
		groups:     groups,
		partitions: make(map[common.PartitionKind]partition.Partition),
		bridges:    make(map[common.DrawableID]*partition.Bridge),
		parked:     make(map[common.DrawableID]struct{}),
	}
	for _, option := range options {
		option(r)
	}
	if len(r.kinds) == 0 {
		r.kinds = common.PartitionKindsByPriority()
	}
	if r.occlusionProvider == nil && r.occluders != nil {
		r.occlusionProvider = occlusion.NewDeferredProvider(r.occluders)
	}
	for _, kind := range r.kinds {
		opts := append([]partition.PartitionBuilderOption{}, r.partitionOptions...)
		if r.occlusionProvider != nil && kind.Shifts() {
			opts = append(opts, partition.WithOcclusion(r.occlusionProvider))
		}
		r.partitions[kind] = partition.NewPartition(kind, drawables, groups, opts...)
	}
	return r
}

func (r *regionImpl) ID() uuid.UUID { return r.id }

func (r *regionImpl) Origin() mgl32.Vec3 { return r.origin }

func (r *regionImpl) Partition(kind common.PartitionKind) (partition.Partition, bool) {
	p, ok := r.partitions[kind]
	return p, ok
}

func (r *regionImpl) Bridge(root common.DrawableID) (*partition.Bridge, bool) {
	b, ok := r.bridges[root]
	return b, ok
}

func (r *regionImpl) Occluders() *occlusion.Occluders { return r.occluders }

func (r *regionImpl) Len() int {
	n := 0
	for _, p := range r.partitions {
		n += p.Len()
	}
	for _, b := range r.bridges {
		n += b.Len()
	}
	return n
}

func (r *regionImpl) Put(d *drawable.Drawable) error {
	if d == nil {
		return errors.New("put of nil drawable").WithType(common.ErrTypeNotFound)
	}
	if root := d.Bridge(); root != common.NilDrawable {
		b, ok := r.bridges[root]
		if !ok {
			return errors.New("bridge not found").
				WithType(common.ErrTypeNotFound).
				WithTag("region", r.id).
				WithTag("bridge", uint64(root)).
				WithTag("drawable", uint64(d.ID()))
		}
		return b.Put(d)
	}

	delete(r.parked, d.ID())

	p, ok := r.partitions[d.Kind()]
	if !ok {
		return errors.New("partition not found").
			WithType(common.ErrTypeNotFound).
			WithTag("region", r.id).
			WithTag("partition", d.Kind().String())
	}
	if err := p.Put(d); err != nil {
		return err
	}
	if d.IsBridge() {
		if _, ok := r.bridges[d.ID()]; !ok {
			r.bridges[d.ID()] = partition.NewBridge(d, r.drawables, r.groups, r.bridgeOptions...)
		}
	}
	return nil
}

func (r *regionImpl) Remove(d *drawable.Drawable) bool {
	if d == nil {
		return false
	}
	if root := d.Bridge(); root != common.NilDrawable {
		b, ok := r.bridges[root]
		return ok && b.Remove(d)
	}
	delete(r.parked, d.ID())
	p, ok := r.partitions[d.Kind()]
	if !ok {
		return false
	}
	removed := p.Remove(d)
	if b, ok := r.bridges[d.ID()]; ok {
		b.Clear()
		delete(r.bridges, d.ID())
	}
	return removed
}

func (r *regionImpl) Unload(d *drawable.Drawable) bool {
	if d == nil || !d.Alive() || d.State() == drawable.StateUnloaded {
		return false
	}
	if root := d.Bridge(); root != common.NilDrawable {
		if b, ok := r.bridges[root]; ok {
			b.Remove(d)
		}
		d.Unload()
		return true
	}
	if p, ok := r.partitions[d.Kind()]; ok {
		p.Remove(d)
	}
	if _, ok := r.bridges[d.ID()]; d.IsBridge() && !ok {
		// contents created while the root is hidden still need a home
		r.bridges[d.ID()] = partition.NewBridge(d, r.drawables, r.groups, r.bridgeOptions...)
	}
	d.Unload()
	r.parked[d.ID()] = struct{}{}
	return true
}

// hidden reports whether a bridge's root is unloaded.
func (r *regionImpl) hidden(b *partition.Bridge) bool {
	d, ok := r.drawables.Get(b.Root())
	return !ok || d.State() == drawable.StateUnloaded
}

func (r *regionImpl) Move(d *drawable.Drawable, immediate bool) bool {
	if d == nil {
		return false
	}
	if root := d.Bridge(); root != common.NilDrawable {
		b, ok := r.bridges[root]
		return ok && b.Move(d, immediate)
	}
	p, ok := r.partitions[d.Kind()]
	return ok && p.Move(d, immediate)
}

func (r *regionImpl) ApplyRebuild(d *drawable.Drawable) group.State {
	if d == nil {
		return group.Clean
	}
	if root := d.Bridge(); root != common.NilDrawable {
		if b, ok := r.bridges[root]; ok {
			return b.ApplyRebuild(d)
		}
		return group.Clean
	}
	p, ok := r.partitions[d.Kind()]
	if !ok {
		return group.Clean
	}
	return p.ApplyRebuild(d)
}

func (r *regionImpl) Shift(offset mgl32.Vec3) {
	for id := range r.parked {
		if d, ok := r.drawables.Get(id); !ok || d.State() != drawable.StateUnloaded {
			delete(r.parked, id)
		}
	}
	moved := r.drawables.Shift(offset, func(d *drawable.Drawable) bool {
		if !d.Kind().Shifts() || d.Bridge() != common.NilDrawable {
			return false
		}
		if _, ok := r.parked[d.ID()]; ok {
			return true
		}
		p, ok := r.partitions[d.Kind()]
		if !ok {
			return false
		}
		_, in := p.GroupOf(d.ID())
		return in
	})
	for _, kind := range r.kinds {
		if kind.Shifts() {
			r.partitions[kind].Shift(offset)
		}
	}
	if r.occluders != nil {
		r.occluders.Shift(offset)
	}
	r.origin = r.origin.Add(offset)
	logs.WithTag("region", r.id).
		WithTag("offset", offset).
		WithTag("drawables", moved).
		Debug("region shifted")
}

func (r *regionImpl) Cull(fc *frame.Context, result *cull.Result) partition.CullStats {
	var stats partition.CullStats
	for _, kind := range r.kinds {
		stats.Add(r.CullKind(fc, kind, result))
	}
	return stats
}

func (r *regionImpl) CullKind(fc *frame.Context, kind common.PartitionKind, result *cull.Result) partition.CullStats {
	p, ok := r.partitions[kind]
	if !ok {
		return partition.CullStats{}
	}
	stats := p.Cull(fc, fc.View, result)
	if kind != common.PartitionBridge {
		return stats
	}
	for _, vb := range result.Bridges() {
		if b, ok := r.bridges[vb.Root.ID()]; ok && !r.hidden(b) {
			stats.Add(b.Cull(fc, fc.View, result))
		}
	}
	return stats
}

func (r *regionImpl) LineSegmentIntersect(start, end mgl32.Vec3, pickTransparent bool) (partition.Hit, bool) {
	var best partition.Hit
	found := false
	consider := func(h partition.Hit, ok bool) {
		if ok && (!found || h.T < best.T) {
			best, found = h, true
		}
	}
	for _, kind := range r.kinds {
		consider(r.partitions[kind].LineSegmentIntersect(start, end, pickTransparent))
	}
	for _, b := range r.bridges {
		if !r.hidden(b) {
			consider(b.LineSegmentIntersect(start, end, pickTransparent))
		}
	}
	return best, found
}

func (r *regionImpl) Groups() []*group.Group {
	var out []*group.Group
	for _, kind := range r.kinds {
		out = append(out, r.partitions[kind].Groups()...)
	}
	for _, b := range r.bridges {
		out = append(out, b.Groups()...)
	}
	return out
}

func (r *regionImpl) DestroyGL() {
	for _, p := range r.partitions {
		p.DestroyGL()
	}
	for _, b := range r.bridges {
		b.DestroyGL()
	}
}

func (r *regionImpl) RestoreGL() {
	for _, p := range r.partitions {
		p.RestoreGL()
	}
	for _, b := range r.bridges {
		b.RestoreGL()
	}
}

func (r *regionImpl) Clear() {
	for _, b := range r.bridges {
		b.Clear()
	}
	r.bridges = make(map[common.DrawableID]*partition.Bridge)
	clear(r.parked)
	for _, p := range r.partitions {
		p.Clear()
	}
}

func (r *regionImpl) Validate() error {
	for _, kind := range r.kinds {
		if err := r.partitions[kind].Validate(); err != nil {
			return errors.New("partition invalid").
				WithTag("region", r.id).
				WithTag("partition", kind.String()).
				Wrap(err)
		}
	}
	for _, b := range r.bridges {
		if err := b.Validate(); err != nil {
			return err
		}
	}
	return nil
}
