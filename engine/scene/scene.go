// Package scene drives the culling engine one frame at a time. A Scene owns the drawable and group
// stores, the regions indexing them and one geometry manager per batching variant, and turns the
// property changes its entities report into a frozen cull result handed to a Dispatcher.
package scene

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/camera"
	"github.com/Carmen-Shannon/oxy-cull/engine/config"
	"github.com/Carmen-Shannon/oxy-cull/engine/cull"
	"github.com/Carmen-Shannon/oxy-cull/engine/drawable"
	"github.com/Carmen-Shannon/oxy-cull/engine/entity"
	"github.com/Carmen-Shannon/oxy-cull/engine/frame"
	"github.com/Carmen-Shannon/oxy-cull/engine/geometry"
	"github.com/Carmen-Shannon/oxy-cull/engine/gpubuf"
	"github.com/Carmen-Shannon/oxy-cull/engine/group"
	"github.com/Carmen-Shannon/oxy-cull/engine/occlusion"
	"github.com/Carmen-Shannon/oxy-cull/engine/partition"
	"github.com/Carmen-Shannon/oxy-cull/engine/profiler"
	"github.com/Carmen-Shannon/oxy-cull/engine/region"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// Dispatcher consumes the frozen cull result of a frame. The result and everything it references
// stay valid until the dispatcher returns.
type Dispatcher interface {
	Dispatch(fc *frame.Context, result *cull.Result)
}

// DispatchFunc adapts a function to a Dispatcher.
type DispatchFunc func(fc *frame.Context, result *cull.Result)

// Dispatch calls f(fc, result).
func (f DispatchFunc) Dispatch(fc *frame.Context, result *cull.Result) { f(fc, result) }

// Scene manages the regions of a world view and runs its frames.
// Entities attached with Add report changes through Notify from any goroutine; everything else
// happens inside Frame on the caller's goroutine.
type Scene interface {
	entity.Sink

	// Name returns the scene's identifier.
	Name() string

	// Active returns whether the engine runs frames for this scene.
	Active() bool

	// SetActive sets whether the engine runs frames for this scene.
	SetActive(active bool)

	// Camera returns the scene's camera.
	Camera() camera.Camera

	// SetCamera replaces the scene's camera.
	//
	// Parameters:
	//   - cam: the new camera
	SetCamera(cam camera.Camera)

	// Config returns the configuration the scene was built with.
	Config() config.Config

	// Drawables returns the drawable store shared by every region.
	Drawables() *drawable.Store

	// Groups returns the group store shared by every region.
	Groups() *group.Store

	// AddRegion creates a region configured from the scene's config.
	//
	// Parameters:
	//   - options: extra region options, applied after the config-derived ones
	//
	// Returns:
	//   - region.Region: the new region
	AddRegion(options ...region.RegionBuilderOption) region.Region

	// Region returns a region by id.
	Region(id uuid.UUID) (region.Region, bool)

	// Regions returns every region in creation order.
	Regions() []region.Region

	// RemoveRegion tears a region down. Its drawables are marked dead and destroyed at the end of
	// the next frame.
	//
	// Returns:
	//   - bool: false if the region is unknown
	RemoveRegion(id uuid.UUID) bool

	// ShiftRegion translates a region's origin.
	//
	// Returns:
	//   - error: a not_found error if the region is unknown
	ShiftRegion(id uuid.UUID, offset mgl32.Vec3) error

	// Add attaches an entity to the scene. Its drawable is created in the given region when the
	// next frame applies the resulting created notification.
	//
	// Parameters:
	//   - e: the entity
	//   - regionID: the region to index the entity's drawable in
	//
	// Returns:
	//   - error: a not_found error if the region is unknown
	Add(e entity.Entity, regionID uuid.UUID) error

	// Remove detaches an entity. Its drawable dies when the next frame applies the notification.
	Remove(e entity.Entity)

	// Drawable returns the live drawable of an entity.
	Drawable(id uuid.UUID) (*drawable.Drawable, bool)

	// Pending returns the number of notifications waiting for the next frame.
	Pending() int

	// Frame runs one frame: notifications are applied, queued moves flushed into the partitions,
	// the regions culled, visible dirty groups rebuilt within the budget, the result frozen and
	// dispatched, and dead drawables and groups destroyed.
	//
	// Parameters:
	//   - ctx: cancels the remaining rebuild work
	//
	// Returns:
	//   - profiler.FrameStats: what the frame did
	Frame(ctx context.Context) profiler.FrameStats

	// FrameNumber returns the number of the last frame run, 0 before the first.
	FrameNumber() uint64

	// Result returns the frozen result of the last frame. It is reset by the next frame.
	Result() *cull.Result

	// VisibleDrawables returns the drawables the last frame found visible.
	VisibleDrawables() []common.DrawableID

	// LineSegmentIntersect finds the nearest face hit by a world-space segment across every region.
	//
	// Parameters:
	//   - start, end: the segment
	//   - pickTransparent: whether blended faces can be hit
	//
	// Returns:
	//   - partition.Hit: the nearest hit
	//   - bool: false if nothing was hit
	LineSegmentIntersect(start, end mgl32.Vec3, pickTransparent bool) (partition.Hit, bool)

	// DestroyGL releases every group buffer, as after a lost device.
	DestroyGL()

	// RestoreGL schedules every group for a full rebuild.
	RestoreGL()

	// Close stops the rebuild worker pool.
	Close()
}

type scene struct {
	mu       *sync.RWMutex
	notifyMu *sync.Mutex

	name   string
	active bool
	cam    camera.Camera
	conf   config.Config
	debug  frame.DebugFlags

	drawables  *drawable.Store
	groups     *group.Store
	alloc      gpubuf.Allocator
	managers   map[common.GeometryKind]geometry.Manager
	dispatcher Dispatcher

	regions      map[uuid.UUID]region.Region
	regionOrder  []uuid.UUID
	regionOf     map[common.DrawableID]region.Region
	entityRegion map[uuid.UUID]uuid.UUID

	pending []entity.Notification
	touched []*drawable.Drawable

	frameNumber uint64
	result      *cull.Result

	computeWorkers int
	computePool    worker.DynamicWorkerPool
}

var _ Scene = &scene{}

// NewScene creates a new Scene viewed through cam.
// Panics if cam is nil.
//
// Parameters:
//   - name: the scene's identifier
//   - cam: the camera frames are culled against
//   - options: functional options to configure the scene
//
// Returns:
//   - Scene: the newly created scene
func NewScene(name string, cam camera.Camera, options ...SceneBuilderOption) Scene {
	if cam == nil {
		panic("scene: NewScene requires a non-nil Camera")
	}

	s := &scene{
		mu:             &sync.RWMutex{},
		notifyMu:       &sync.Mutex{},
		name:           name,
		active:         true,
		cam:            cam,
		conf:           config.Default(),
		regions:        make(map[uuid.UUID]region.Region),
		regionOf:       make(map[common.DrawableID]region.Region),
		entityRegion:   make(map[uuid.UUID]uuid.UUID),
		managers:       make(map[common.GeometryKind]geometry.Manager),
		result:         cull.NewResult(),
		computeWorkers: max(runtime.NumCPU()-1, 1),
	}
	for _, option := range options {
		option(s)
	}
	if s.conf.Rebuild.Workers > 0 {
		s.computeWorkers = s.conf.Rebuild.Workers
	}

	s.drawables = drawable.NewStore(
		drawable.WithDamping(s.conf.Movement.DampDistance, s.conf.Movement.DampAngle),
		drawable.WithDeathHook(s.detach),
	)
	s.groups = group.NewStore(group.WithLODPolicy(s.conf.LODPolicy()))
	if s.alloc == nil {
		s.alloc = gpubuf.NewMemoryAllocator(s.conf.Rebuild.BufferBudget)
	}

	// One pool serves every manager; packing batches never overlap across managers.
	s.computePool = worker.NewDynamicWorkerPool(s.computeWorkers, 256, 1*time.Second)
	for _, kind := range []common.GeometryKind{common.GeometryTerrain, common.GeometryVolume, common.GeometryParticle} {
		s.managers[kind] = geometry.NewManager(kind, s.drawables, s.alloc,
			geometry.WithBatchSize(s.conf.Rebuild.BatchSize),
			geometry.WithMaxBatchVertices(s.conf.Rebuild.MaxBatchVertices),
			geometry.WithWorkerPool(s.computePool),
		)
	}
	return s
}

func (s *scene) Name() string {
	return s.name
}

func (s *scene) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *scene) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = active
}

func (s *scene) Camera() camera.Camera {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cam
}

func (s *scene) SetCamera(cam camera.Camera) {
	if cam == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cam = cam
}

func (s *scene) Config() config.Config { return s.conf }

func (s *scene) Drawables() *drawable.Store { return s.drawables }

func (s *scene) Groups() *group.Store { return s.groups }

func (s *scene) AddRegion(options ...region.RegionBuilderOption) region.Region {
	s.mu.Lock()
	defer s.mu.Unlock()

	half := s.conf.Octree.RegionHalfExtent
	opts := []region.RegionBuilderOption{
		region.WithPartitionOptions(
			partition.WithRegion(common.Bounds{HalfExtents: mgl32.Vec3{half, half, half}}),
			partition.WithTreeOptions(s.conf.TreeOptions()...),
			partition.WithOcclusionMinSize(s.conf.Occlusion.MinSize),
			partition.WithOcclusionRetry(s.conf.Occlusion.Retry),
		),
		region.WithBridgeOptions(partition.WithTreeOptions(s.conf.TreeOptions()...)),
	}
	if len(s.conf.Partitions) > 0 {
		opts = append(opts, region.WithKinds(s.conf.Partitions...))
	}
	if s.conf.Occlusion.Enabled {
		occluders := occlusion.NewOccluders()
		opts = append(opts,
			region.WithOccluders(occluders),
			region.WithOcclusionProvider(occlusion.NewDeferredProvider(occluders,
				occlusion.WithLatency(s.conf.Occlusion.Latency))),
		)
	}
	r := region.NewRegion(s.drawables, s.groups, append(opts, options...)...)
	if _, ok := s.regions[r.ID()]; !ok {
		s.regionOrder = append(s.regionOrder, r.ID())
	}
	s.regions[r.ID()] = r
	logs.WithTag("scene", s.name).
		WithTag("region", r.ID()).
		Debug("region added")
	return r
}

func (s *scene) Region(id uuid.UUID) (region.Region, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.regions[id]
	return r, ok
}

func (s *scene) Regions() []region.Region {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]region.Region, 0, len(s.regionOrder))
	for _, id := range s.regionOrder {
		out = append(out, s.regions[id])
	}
	return out
}

func (s *scene) RemoveRegion(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.regions[id]
	if !ok {
		return false
	}
	var doomed []common.DrawableID
	for did, owner := range s.regionOf {
		if owner == r {
			doomed = append(doomed, did)
		}
	}
	for _, did := range doomed {
		s.drawables.MarkDead(did)
	}
	r.Clear()
	delete(s.regions, id)
	for i, rid := range s.regionOrder {
		if rid == id {
			s.regionOrder = append(s.regionOrder[:i], s.regionOrder[i+1:]...)
			break
		}
	}
	for eid, rid := range s.entityRegion {
		if rid == id {
			delete(s.entityRegion, eid)
		}
	}
	logs.WithTag("scene", s.name).
		WithTag("region", id).
		WithTag("drawables", len(doomed)).
		Debug("region removed")
	return true
}

func (s *scene) ShiftRegion(id uuid.UUID, offset mgl32.Vec3) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.regions[id]
	if !ok {
		return errors.New("region not found").
			WithType(common.ErrTypeNotFound).
			WithTag("region", id)
	}
	r.Shift(offset)
	return nil
}

func (s *scene) Add(e entity.Entity, regionID uuid.UUID) error {
	if e == nil {
		panic("scene: Add requires a non-nil Entity")
	}
	s.mu.Lock()
	if _, ok := s.regions[regionID]; !ok {
		s.mu.Unlock()
		return errors.New("region not found").
			WithType(common.ErrTypeNotFound).
			WithTag("region", regionID).
			WithTag("entity", e.ID())
	}
	s.entityRegion[e.ID()] = regionID
	s.mu.Unlock()

	e.Attach(s)
	return nil
}

func (s *scene) Remove(e entity.Entity) {
	if e != nil {
		e.Detach()
	}
}

func (s *scene) Notify(n entity.Notification) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.pending = append(s.pending, n)
}

func (s *scene) Pending() int {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	return len(s.pending)
}

func (s *scene) Drawable(id uuid.UUID) (*drawable.Drawable, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.drawables.ByEntity(id)
}

func (s *scene) FrameNumber() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frameNumber
}

func (s *scene) Result() *cull.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result
}

func (s *scene) VisibleDrawables() []common.DrawableID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result.VisibleDrawables()
}

func (s *scene) LineSegmentIntersect(start, end mgl32.Vec3, pickTransparent bool) (partition.Hit, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best partition.Hit
	found := false
	for _, id := range s.regionOrder {
		if h, ok := s.regions[id].LineSegmentIntersect(start, end, pickTransparent); ok && (!found || h.T < best.T) {
			best, found = h, true
		}
	}
	return best, found
}

func (s *scene) DestroyGL() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.regionOrder {
		s.regions[id].DestroyGL()
	}
}

func (s *scene) RestoreGL() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.regionOrder {
		s.regions[id].RestoreGL()
	}
}

func (s *scene) Close() {
	s.computePool.Stop()
}

// detach is the drawable store's death hook. It runs inside MarkDead, under the scene lock.
func (s *scene) detach(d *drawable.Drawable) {
	r, ok := s.regionOf[d.ID()]
	if !ok {
		return
	}
	r.Remove(d)
	delete(s.regionOf, d.ID())
}
