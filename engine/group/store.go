package group

import (
	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/arena"
	"github.com/aukilabs/go-tooling/pkg/logs"
)

// Store owns every Group. Groups whose node disappears are marked dead and only destroyed by
// DrainDead, after the frame that may still reference them has been dispatched.
type Store struct {
	groups *arena.Arena[common.GroupID, *Group]
	dead   []common.GroupID
	policy LODPolicy
}

// NewStore creates an empty group store.
//
// Parameters:
//   - options: functional options to configure the store
//
// Returns:
//   - *Store: the new store
func NewStore(options ...StoreBuilderOption) *Store {
	s := &Store{
		groups: arena.New[common.GroupID, *Group](128),
		policy: DefaultLODPolicy(),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// Policy returns the LOD policy groups are evaluated with.
func (s *Store) Policy() LODPolicy { return s.policy }

// Create makes a clean, empty group for an octree node.
//
// Parameters:
//   - node: the owning octree node
//   - kind: the owning partition's kind
//
// Returns:
//   - *Group: the new group
func (s *Store) Create(node common.NodeID, kind common.PartitionKind) *Group {
	g := &Group{
		node:      node,
		kind:      kind,
		occupants: make(map[common.DrawableID]common.Bounds),
		drawMap:   make(map[common.RenderPass][]*DrawInfo),
	}
	g.self = g
	g.id = s.groups.Insert(g)
	return g
}

// Get resolves a handle. Dead groups still resolve until drained.
func (s *Store) Get(id common.GroupID) (*Group, bool) {
	return s.groups.Lookup(id)
}

// Len returns the number of groups, dead ones included.
func (s *Store) Len() int { return s.groups.Len() }

// Each calls fn for every group until fn returns false.
func (s *Store) Each(fn func(g *Group) bool) {
	s.groups.Each(func(_ common.GroupID, g **Group) bool {
		return fn(*g)
	})
}

// MarkDead retires a group whose node was removed. It keeps resolving for the rest of the frame.
//
// Returns:
//   - bool: false if the group was unknown or already dead
func (s *Store) MarkDead(id common.GroupID) bool {
	g, ok := s.Get(id)
	if !ok || g.state&Dead != 0 {
		return false
	}
	g.state |= Dead
	s.dead = append(s.dead, id)
	return true
}

// Dead returns the number of groups awaiting destruction.
func (s *Store) Dead() int { return len(s.dead) }

// DrainDead destroys every group marked dead, releasing its GPU buffers.
//
// Returns:
//   - int: the number of groups destroyed
func (s *Store) DrainDead() int {
	n := 0
	for _, id := range s.dead {
		g, ok := s.Get(id)
		if !ok {
			continue
		}
		g.SetBuffers(nil, nil)
		s.groups.Remove(id)
		n++
	}
	if n > 0 {
		logs.WithTag("freed", n).Debug("drained dead groups")
	}
	s.dead = s.dead[:0]
	return n
}
