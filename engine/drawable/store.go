package drawable

import (
	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/arena"
	"github.com/Carmen-Shannon/oxy-cull/engine/model"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

const (
	// DefaultDampDistance is the translation below which a damped move is ignored.
	DefaultDampDistance float32 = 0.01
	// DefaultDampAngle is the rotation in radians below which a damped move is ignored.
	DefaultDampAngle float32 = 0.005
	// maxParentDepth bounds parent chains; deeper chains indicate a cycle.
	maxParentDepth = 64
)

// Store owns every Drawable and the per-frame queues that mutate them: the moved list and the
// zombie list. Drawables are addressed by handle; pointers obtained from the store stay valid until
// the drawable is drained.
type Store struct {
	drawables *arena.Arena[common.DrawableID, *Drawable]
	byEntity  map[uuid.UUID]common.DrawableID
	children  map[common.DrawableID][]common.DrawableID

	moved   []common.DrawableID
	zombies []common.DrawableID

	dampDistance float32
	dampAngle    float32
	onDeath      func(d *Drawable)
}

// NewStore creates an empty drawable store.
//
// Parameters:
//   - options: functional options to configure the store
//
// Returns:
//   - *Store: the new store
func NewStore(options ...StoreBuilderOption) *Store {
	s := &Store{
		drawables:    arena.New[common.DrawableID, *Drawable](256),
		byEntity:     make(map[uuid.UUID]common.DrawableID),
		children:     make(map[common.DrawableID][]common.DrawableID),
		dampDistance: DefaultDampDistance,
		dampAngle:    DefaultDampAngle,
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// New creates a drawable in StateNew for the given entity. It is not indexed until Init.
//
// Parameters:
//   - entity: the id of the source entity
//   - kind: the partition kind the drawable belongs in
//   - m: the mesh data
//   - options: functional options to configure the drawable
//
// Returns:
//   - *Drawable: the new drawable
func (s *Store) New(entity uuid.UUID, kind common.PartitionKind, m model.Model, options ...DrawableBuilderOption) *Drawable {
	d := &Drawable{
		entity:  entity,
		kind:    kind,
		state:   StateNew,
		model:   m,
		pose:    IdentityPose(),
		world:   mgl32.Ident4(),
		spatial: mgl32.Ident4(),
		rebuild: RebuildAll,
	}
	d.self = d
	for _, option := range options {
		option(d)
	}
	d.id = s.drawables.Insert(d)
	if entity != uuid.Nil {
		s.byEntity[entity] = d.id
	}
	if d.parent != common.NilDrawable {
		s.children[d.parent] = append(s.children[d.parent], d.id)
	}
	return d
}

// Get resolves a handle.
func (s *Store) Get(id common.DrawableID) (*Drawable, bool) {
	return s.drawables.Lookup(id)
}

// ByEntity resolves the live drawable of an entity.
func (s *Store) ByEntity(entity uuid.UUID) (*Drawable, bool) {
	id, ok := s.byEntity[entity]
	if !ok {
		return nil, false
	}
	return s.Get(id)
}

// Len returns the number of drawables, zombies included.
func (s *Store) Len() int { return s.drawables.Len() }

// Each calls fn for every drawable in handle order until fn returns false.
func (s *Store) Each(fn func(d *Drawable) bool) {
	s.drawables.Each(func(_ common.DrawableID, d **Drawable) bool {
		return fn(*d)
	})
}

// Children returns the direct children of a drawable.
func (s *Store) Children(id common.DrawableID) []common.DrawableID {
	return s.children[id]
}

// Init establishes the initial transform and bounds and moves the drawable to StateBuilt.
//
// Parameters:
//   - id: the drawable handle
//
// Returns:
//   - *Drawable: the initialized drawable
//   - error: a stale_handle error if id does not resolve
func (s *Store) Init(id common.DrawableID) (*Drawable, error) {
	d, ok := s.Get(id)
	if !ok || d.state == StateDead {
		return nil, errors.New("drawable not found").
			WithType(common.ErrTypeStaleHandle).
			WithTag("drawable", uint64(id))
	}
	d.copyCheck()
	s.refresh(d)
	s.commit(d)
	if d.state == StateNew {
		d.state = StateBuilt
	}
	return d, nil
}

// UpdateXform recomputes the drawable's transforms from its parent chain. When the pose drifted
// past the damping thresholds since the last committed move (or the move is undamped) the
// drawable is queued on the moved list.
//
// Parameters:
//   - id: the drawable handle
//
// Returns:
//   - bool: true if the drawable is queued for a move
func (s *Store) UpdateXform(id common.DrawableID) bool {
	d, ok := s.Get(id)
	if !ok || d.state == StateDead || d.state == StateNew {
		return false
	}
	d.copyCheck()
	s.refresh(d)
	if !d.movedBeyond(s.dampDistance, s.dampAngle) {
		return d.onMove
	}
	s.enqueue(d)
	return true
}

// MarkMoved sets a new pose and runs UpdateXform. A static drawable that moves becomes active until
// its move is flushed.
//
// Parameters:
//   - id: the drawable handle
//   - pose: the new local pose
//   - undamped: bypass the damping thresholds
//
// Returns:
//   - bool: true if the drawable is queued for a move
func (s *Store) MarkMoved(id common.DrawableID, pose Pose, undamped bool) bool {
	d, ok := s.Get(id)
	if !ok || d.state == StateDead {
		return false
	}
	d.copyCheck()
	d.pose = pose
	d.undamped = d.undamped || undamped
	if d.state == StateStatic {
		d.state = StateActive
		d.autoActive = true
	}
	return s.UpdateXform(id)
}

// Moved returns the number of queued moves.
func (s *Store) Moved() int { return len(s.moved) }

// FlushMoved commits every queued move in queue order and calls apply with each drawable after its
// bounds were recomputed. Children of a moved drawable whose partition-space transform depends on
// it are queued in turn and flushed in the same call. Drawables that became active only because of
// the move return to static.
//
// Parameters:
//   - apply: receives each committed drawable, typically to move it inside its partition
//
// Returns:
//   - int: the number of moves committed
func (s *Store) FlushMoved(apply func(d *Drawable)) int {
	count := 0
	for i := 0; i < len(s.moved); i++ {
		d, ok := s.Get(s.moved[i])
		if !ok || d.state == StateDead || !d.onMove {
			continue
		}
		s.refresh(d)
		s.commit(d)
		d.onMove = false
		d.undamped = false
		d.rebuild |= RebuildPosition
		if d.autoActive {
			d.state = StateStatic
			d.autoActive = false
		}
		count++
		if apply != nil {
			apply(d)
		}
		for _, cid := range s.children[d.id] {
			c, ok := s.Get(cid)
			if !ok || c.state == StateDead {
				continue
			}
			if c.bridge == d.id {
				// bridge contents are indexed relative to the bridge root
				s.refresh(c)
				s.refreshTree(cid, 1)
				continue
			}
			s.refresh(c)
			c.undamped = true
			s.enqueue(c)
		}
	}
	s.moved = s.moved[:0]
	return count
}

// MarkDead detaches the drawable (and its descendants) from rendering: the death hook removes it
// from its partition, its face list is cleared and it is queued for destruction at the next
// DrainZombies. The handle stays resolvable until then so in-flight cull results remain valid.
//
// Parameters:
//   - id: the drawable handle
//
// Returns:
//   - bool: false if id was already dead or unknown
func (s *Store) MarkDead(id common.DrawableID) bool {
	d, ok := s.Get(id)
	if !ok || d.state == StateDead {
		return false
	}
	d.copyCheck()
	for _, cid := range s.children[id] {
		s.MarkDead(cid)
	}
	if s.onDeath != nil {
		s.onDeath(d)
	}
	d.state = StateDead
	d.model = nil
	d.group = common.NilGroup
	d.rebuild = 0
	d.onMove = false
	if cur, ok := s.byEntity[d.entity]; ok && cur == id {
		delete(s.byEntity, d.entity)
	}
	s.zombies = append(s.zombies, id)
	return true
}

// Zombies returns the number of drawables awaiting destruction.
func (s *Store) Zombies() int { return len(s.zombies) }

// DrainZombies destroys every drawable marked dead since the last drain. It must only run at a
// frame boundary, after the frame's cull result has been dispatched.
//
// Returns:
//   - int: the number of drawables destroyed
func (s *Store) DrainZombies() int {
	n := 0
	for _, id := range s.zombies {
		d, ok := s.Get(id)
		if !ok {
			continue
		}
		if d.parent != common.NilDrawable {
			s.unlinkChild(d.parent, id)
		}
		delete(s.children, id)
		s.drawables.Remove(id)
		n++
	}
	if n > 0 {
		logs.WithTag("freed", n).Debug("drained zombie drawables")
	}
	s.zombies = s.zombies[:0]
	return n
}

// Shift translates the drawables that follow a region origin change. Only root drawables move; their
// descendants are refreshed through the parent chain, and bridge contents keep their bridge-space
// bounds.
//
// Parameters:
//   - offset: the translation
//   - follows: selects the root drawables to shift, typically by partition kind
//
// Returns:
//   - int: the number of root drawables shifted
func (s *Store) Shift(offset mgl32.Vec3, follows func(d *Drawable) bool) int {
	var roots []*Drawable
	s.Each(func(d *Drawable) bool {
		if d.state != StateDead && d.parent == common.NilDrawable && (follows == nil || follows(d)) {
			roots = append(roots, d)
		}
		return true
	})
	for _, d := range roots {
		d.copyCheck()
		d.pose.Position = d.pose.Position.Add(offset)
		d.committed.Position = d.committed.Position.Add(offset)
		s.refresh(d)
		d.bounds = d.localBounds().Transform(d.spatial)
		s.shiftTree(d.id, 1)
	}
	return len(roots)
}

func (s *Store) shiftTree(id common.DrawableID, depth int) {
	if depth >= maxParentDepth {
		panic("drawable: parent chain too deep")
	}
	for _, cid := range s.children[id] {
		c, ok := s.Get(cid)
		if !ok || c.state == StateDead {
			continue
		}
		s.refresh(c)
		if c.bridge == common.NilDrawable {
			c.bounds = c.localBounds().Transform(c.spatial)
		}
		s.shiftTree(cid, depth+1)
	}
}

func (s *Store) enqueue(d *Drawable) {
	if d.onMove {
		return
	}
	d.onMove = true
	s.moved = append(s.moved, d.id)
}

func (s *Store) commit(d *Drawable) {
	d.committed = d.pose
	d.bounds = d.localBounds().Transform(d.spatial)
}

// refresh recomputes the world transform from the parent chain. The spatial transform stops
// accumulating at the bridge root so bridge contents stay in bridge space.
func (s *Store) refresh(d *Drawable) {
	world := d.pose.Matrix()
	spatial := world
	accumulate := true
	for pid, depth := d.parent, 0; pid != common.NilDrawable; depth++ {
		if depth >= maxParentDepth {
			panic("drawable: parent chain too deep")
		}
		p, ok := s.Get(pid)
		if !ok {
			break
		}
		if pid == d.bridge {
			accumulate = false
		}
		local := p.pose.Matrix()
		world = local.Mul4(world)
		if accumulate {
			spatial = local.Mul4(spatial)
		}
		pid = p.parent
	}
	d.world = world
	d.spatial = spatial
}

// refreshTree updates render transforms below id without queuing moves.
func (s *Store) refreshTree(id common.DrawableID, depth int) {
	if depth >= maxParentDepth {
		panic("drawable: parent chain too deep")
	}
	for _, cid := range s.children[id] {
		if c, ok := s.Get(cid); ok && c.state != StateDead {
			s.refresh(c)
			s.refreshTree(cid, depth+1)
		}
	}
}

func (s *Store) unlinkChild(parent, child common.DrawableID) {
	list := s.children[parent]
	for i, c := range list {
		if c == child {
			s.children[parent] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(s.children[parent]) == 0 {
		delete(s.children, parent)
	}
}
