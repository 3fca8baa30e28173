// Package octree implements the spatial index underneath every spatial partition. Nodes live in an
// arena and are addressed by handle; entries are caller-defined keys with their own bounds.
package octree

import (
	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/arena"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	// DefaultCapacity is the number of entries a leaf holds before it subdivides.
	DefaultCapacity = 32
	// DefaultMinNodeSize is the smallest edge length a node may be split down to.
	DefaultMinNodeSize float32 = 1
	// DefaultSlop is the fractional tolerance used before a moved entry is relocated.
	DefaultSlop float32 = 0.25
	// DefaultMaxDepth bounds the height of the tree.
	DefaultMaxDepth = 16
)

// Listener receives structural notifications. A spatial partition uses it to keep exactly one
// spatial group per node.
type Listener[K comparable] interface {
	NodeCreated(id common.NodeID)
	NodeDestroyed(id common.NodeID)
	EntryInserted(node common.NodeID, key K)
	EntryRemoved(node common.NodeID, key K)
}

// WalkAction tells Walk how to continue after visiting a node.
type WalkAction int

const (
	// Descend visits the node's children.
	Descend WalkAction = iota
	// SkipChildren continues with the node's siblings.
	SkipChildren
	// Stop ends the walk.
	Stop
)

type node[K comparable] struct {
	region   common.Bounds
	parent   common.NodeID
	children [8]common.NodeID
	depth    int
	split    bool
	keys     []K
	total    int // entries in this subtree
}

type entry struct {
	node   common.NodeID
	index  int
	bounds common.Bounds
}

// Tree is an octree over keys of type K.
type Tree[K comparable] struct {
	nodes   *arena.Arena[common.NodeID, *node[K]]
	entries map[K]*entry
	root    common.NodeID
	home    common.Bounds // root region before any growth

	capacity    int
	minNodeSize float32
	slop        float32
	maxDepth    int
	listener    Listener[K]
}

// NewTree creates an octree whose root covers region.
//
// Parameters:
//   - region: the initial root region; the root grows if an entry falls outside it
//   - options: functional options to configure the tree
//
// Returns:
//   - *Tree[K]: the new tree
func NewTree[K comparable](region common.Bounds, options ...TreeBuilderOption[K]) *Tree[K] {
	t := &Tree[K]{
		nodes:       arena.New[common.NodeID, *node[K]](64),
		entries:     make(map[K]*entry),
		capacity:    DefaultCapacity,
		minNodeSize: DefaultMinNodeSize,
		slop:        DefaultSlop,
		maxDepth:    DefaultMaxDepth,
	}
	for _, option := range options {
		option(t)
	}
	region, _ = region.Sanitize()
	t.home = region
	t.root = t.newNode(region, common.NilNode, 0)
	return t
}

// Root returns the root node handle.
func (t *Tree[K]) Root() common.NodeID { return t.root }

// Len returns the number of entries.
func (t *Tree[K]) Len() int { return len(t.entries) }

// NodeCount returns the number of live nodes.
func (t *Tree[K]) NodeCount() int { return t.nodes.Len() }

// Capacity returns the split threshold.
func (t *Tree[K]) Capacity() int { return t.capacity }

// Slop returns the relocation tolerance.
func (t *Tree[K]) Slop() float32 { return t.slop }

// Has reports whether key is indexed.
func (t *Tree[K]) Has(key K) bool {
	_, ok := t.entries[key]
	return ok
}

// Locate returns the node currently holding key.
func (t *Tree[K]) Locate(key K) (common.NodeID, bool) {
	e, ok := t.entries[key]
	if !ok {
		return common.NilNode, false
	}
	return e.node, true
}

// EntryBounds returns the bounds key was last indexed with.
func (t *Tree[K]) EntryBounds(key K) (common.Bounds, bool) {
	e, ok := t.entries[key]
	if !ok {
		return common.Bounds{}, false
	}
	return e.bounds, true
}

// Region returns the region of node id.
func (t *Tree[K]) Region(id common.NodeID) (common.Bounds, bool) {
	n, ok := t.nodes.Lookup(id)
	if !ok {
		return common.Bounds{}, false
	}
	return n.region, true
}

// LooseRegion returns the region of node id grown by the slop tolerance. Every entry stored in the
// node lies inside it.
func (t *Tree[K]) LooseRegion(id common.NodeID) (common.Bounds, bool) {
	n, ok := t.nodes.Lookup(id)
	if !ok {
		return common.Bounds{}, false
	}
	return common.Bounds{Center: n.region.Center, HalfExtents: n.region.HalfExtents.Mul(1 + t.slop)}, true
}

// Keys returns the entries stored directly in node id. The slice must not be modified.
func (t *Tree[K]) Keys(id common.NodeID) []K {
	n, ok := t.nodes.Lookup(id)
	if !ok {
		return nil
	}
	return n.keys
}

// Parent returns the parent of node id, or NilNode for the root.
func (t *Tree[K]) Parent(id common.NodeID) common.NodeID {
	n, ok := t.nodes.Lookup(id)
	if !ok {
		return common.NilNode
	}
	return n.parent
}

// Depth returns the depth of node id (root is 0).
func (t *Tree[K]) Depth(id common.NodeID) int {
	n, ok := t.nodes.Lookup(id)
	if !ok {
		return -1
	}
	return n.depth
}

// Children returns the materialized children of node id in octant order.
func (t *Tree[K]) Children(id common.NodeID) []common.NodeID {
	n, ok := t.nodes.Lookup(id)
	if !ok {
		return nil
	}
	var out []common.NodeID
	for _, c := range n.children {
		if c != common.NilNode {
			out = append(out, c)
		}
	}
	return out
}

// ChildAt returns the child of node id in the given octant. An octant outside [0, 8) is an invalid
// index: it is logged and reported as an error, never a panic.
//
// Parameters:
//   - id: the parent node
//   - octant: the octant index
//
// Returns:
//   - common.NodeID: the child, or NilNode if that octant is not materialized
//   - error: invalid_index or stale_handle errors
func (t *Tree[K]) ChildAt(id common.NodeID, octant int) (common.NodeID, error) {
	n, ok := t.nodes.Lookup(id)
	if !ok {
		return common.NilNode, errors.New("octree node not found").
			WithType(common.ErrTypeStaleHandle).
			WithTag("node", uint64(id))
	}
	if octant < 0 || octant >= 8 {
		err := errors.New("octant out of range").
			WithType(common.ErrTypeInvalidIndex).
			WithTag("node", uint64(id)).
			WithTag("octant", octant)
		logs.Warn(err)
		return common.NilNode, err
	}
	return n.children[octant], nil
}

// Insert indexes key with bounds. Degenerate bounds are clamped to an epsilon box. Inserting a key
// that is already present relocates it.
//
// Parameters:
//   - key: the entry key
//   - bounds: the entry's bounds in tree space
//
// Returns:
//   - common.NodeID: the node that now holds key
func (t *Tree[K]) Insert(key K, bounds common.Bounds) common.NodeID {
	if _, ok := t.entries[key]; ok {
		t.Remove(key)
	}
	bounds = t.sanitize(bounds)
	t.growRoot(bounds)

	id := t.descend(t.root, bounds)
	t.attach(id, key, bounds)
	t.maybeSplit(id)
	return t.entries[key].node
}

// Remove drops key from the tree, collapsing nodes whose subtree no longer exceeds capacity and
// pruning empty nodes.
//
// Returns:
//   - bool: false if key was not present
func (t *Tree[K]) Remove(key K) bool {
	e, ok := t.entries[key]
	if !ok {
		return false
	}
	id := e.node
	t.detach(key)
	t.rebalance(id)
	return true
}

// Update records new bounds for key. If the bounds still fit the current node's region (within the
// slop tolerance) the entry stays where it is; otherwise it is re-inserted.
//
// Returns:
//   - bool: true if the entry changed node
func (t *Tree[K]) Update(key K, bounds common.Bounds) bool {
	e, ok := t.entries[key]
	if !ok {
		t.Insert(key, bounds)
		return true
	}
	bounds = t.sanitize(bounds)
	n, _ := t.nodes.Lookup(e.node)
	slop := t.slop
	if e.node == t.root {
		slop = 0
	}
	if n.region.Contains(bounds, slop) {
		e.bounds = bounds
		return false
	}
	before := e.node
	t.Insert(key, bounds)
	return t.entries[key].node != before
}

// Shift translates every node region and entry by offset.
func (t *Tree[K]) Shift(offset mgl32.Vec3) {
	t.home = t.home.Shifted(offset)
	t.nodes.Each(func(_ common.NodeID, n **node[K]) bool {
		(*n).region = (*n).region.Shifted(offset)
		return true
	})
	for _, e := range t.entries {
		e.bounds = e.bounds.Shifted(offset)
	}
}

// Walk visits nodes depth-first, children in octant order, starting at the root.
//
// Parameters:
//   - fn: called for each node; its return value controls the traversal
func (t *Tree[K]) Walk(fn func(id common.NodeID) WalkAction) {
	t.walk(t.root, fn)
}

func (t *Tree[K]) walk(id common.NodeID, fn func(id common.NodeID) WalkAction) bool {
	n, ok := t.nodes.Lookup(id)
	if !ok {
		return true
	}
	switch fn(id) {
	case Stop:
		return false
	case SkipChildren:
		return true
	}
	for _, c := range n.children {
		if c == common.NilNode {
			continue
		}
		if !t.walk(c, fn) {
			return false
		}
	}
	return true
}

// Clear removes every entry and node except a fresh root over the initial root region.
func (t *Tree[K]) Clear() {
	t.destroySubtree(t.root)
	t.entries = make(map[K]*entry)
	t.root = t.newNode(t.home, common.NilNode, 0)
}

func (t *Tree[K]) sanitize(b common.Bounds) common.Bounds {
	clean, clamped := b.Sanitize()
	if clamped {
		logs.WithTag("center", clean.Center).
			WithTag("half_extents", clean.HalfExtents).
			Debug("clamped degenerate bounds")
	}
	return clean
}

func (t *Tree[K]) newNode(region common.Bounds, parent common.NodeID, depth int) common.NodeID {
	id := t.nodes.Insert(&node[K]{region: region, parent: parent, depth: depth})
	if t.listener != nil {
		t.listener.NodeCreated(id)
	}
	return id
}

func (t *Tree[K]) destroyNode(id common.NodeID) {
	n, ok := t.nodes.Lookup(id)
	if !ok {
		return
	}
	if p, ok := t.nodes.Lookup(n.parent); ok {
		for i, c := range p.children {
			if c == id {
				p.children[i] = common.NilNode
			}
		}
	}
	if t.listener != nil {
		t.listener.NodeDestroyed(id)
	}
	t.nodes.Remove(id)
}

func (t *Tree[K]) destroySubtree(id common.NodeID) {
	n, ok := t.nodes.Lookup(id)
	if !ok {
		return
	}
	for _, c := range n.children {
		if c != common.NilNode {
			t.destroySubtree(c)
		}
	}
	for _, k := range n.keys {
		if t.listener != nil {
			t.listener.EntryRemoved(id, k)
		}
	}
	t.destroyNode(id)
}

// growRoot enlarges the root until it contains b. The old root becomes one octant of the new root
// so no entry has to move.
func (t *Tree[K]) growRoot(b common.Bounds) {
	for {
		root, _ := t.nodes.Lookup(t.root)
		if root.region.Contains(b, 0) {
			return
		}
		old := root.region
		var center mgl32.Vec3
		octant := 0
		for axis := 0; axis < 3; axis++ {
			if b.Center[axis] >= old.Center[axis] {
				center[axis] = old.Center[axis] + old.HalfExtents[axis]
			} else {
				center[axis] = old.Center[axis] - old.HalfExtents[axis]
				octant |= 1 << axis
			}
		}
		region := common.Bounds{Center: center, HalfExtents: old.HalfExtents.Mul(2)}
		if !common.FiniteVec3(region.HalfExtents) {
			logs.Warn(errors.New("octree root cannot grow further").
				WithTag("center", b.Center))
			return
		}

		id := t.newNode(region, common.NilNode, 0)
		parent, _ := t.nodes.Lookup(id)
		parent.children[octant] = t.root
		parent.split = true
		parent.total = root.total
		root.parent = id
		t.root = id
		t.nodes.Each(func(nid common.NodeID, n **node[K]) bool {
			if nid != id {
				(*n).depth++
			}
			return true
		})
		logs.WithTag("half_extents", region.HalfExtents).Debug("octree root grown")
	}
}

// descend finds the deepest existing-or-creatable node whose region strictly contains b.
func (t *Tree[K]) descend(from common.NodeID, b common.Bounds) common.NodeID {
	id := from
	for {
		n, _ := t.nodes.Lookup(id)
		if !n.split {
			return id
		}
		child, ok := t.childFor(id, n, b)
		if !ok {
			return id
		}
		id = child
	}
}

// childFor returns (creating if needed) the child of n that strictly contains b.
func (t *Tree[K]) childFor(id common.NodeID, n *node[K], b common.Bounds) (common.NodeID, bool) {
	octant := n.region.OctantOf(b.Center)
	region := n.region.Octant(octant)
	if !region.Contains(b, 0) || region.Size() < t.minNodeSize || n.depth+1 > t.maxDepth {
		return common.NilNode, false
	}
	if n.children[octant] == common.NilNode {
		child := t.newNode(region, id, n.depth+1)
		n.children[octant] = child
		return child, true
	}
	return n.children[octant], true
}

func (t *Tree[K]) attach(id common.NodeID, key K, b common.Bounds) {
	n, _ := t.nodes.Lookup(id)
	t.entries[key] = &entry{node: id, index: len(n.keys), bounds: b}
	n.keys = append(n.keys, key)
	for p := id; p != common.NilNode; {
		pn, _ := t.nodes.Lookup(p)
		pn.total++
		p = pn.parent
	}
	if t.listener != nil {
		t.listener.EntryInserted(id, key)
	}
}

func (t *Tree[K]) detach(key K) {
	e := t.entries[key]
	n, _ := t.nodes.Lookup(e.node)
	last := len(n.keys) - 1
	if e.index != last {
		moved := n.keys[last]
		n.keys[e.index] = moved
		t.entries[moved].index = e.index
	}
	var zero K
	n.keys[last] = zero
	n.keys = n.keys[:last]
	for p := e.node; p != common.NilNode; {
		pn, _ := t.nodes.Lookup(p)
		pn.total--
		p = pn.parent
	}
	delete(t.entries, key)
	if t.listener != nil {
		t.listener.EntryRemoved(e.node, key)
	}
}

func (t *Tree[K]) maybeSplit(id common.NodeID) {
	n, _ := t.nodes.Lookup(id)
	if n.split || len(n.keys) <= t.capacity {
		return
	}
	if n.region.Size()/2 < t.minNodeSize || n.depth >= t.maxDepth {
		return
	}
	n.split = true

	keys := append([]K(nil), n.keys...)
	touched := map[common.NodeID]struct{}{}
	for _, k := range keys {
		e := t.entries[k]
		pn, _ := t.nodes.Lookup(id)
		child, ok := t.childFor(id, pn, e.bounds)
		if !ok {
			continue
		}
		b := e.bounds
		t.detach(k)
		t.attach(child, k, b)
		touched[child] = struct{}{}
	}
	for child := range touched {
		t.maybeSplit(child)
	}
}

// rebalance collapses the highest ancestor of id whose subtree fits in one node, then prunes empty
// nodes upward and gives back root growth that is no longer needed. Nodes above the initial root
// never collapse, so the initial root's subtree survives the shrink unchanged.
func (t *Tree[K]) rebalance(id common.NodeID) {
	collapse := common.NilNode
	for p := id; p != common.NilNode; {
		pn, _ := t.nodes.Lookup(p)
		if pn.split && pn.total <= t.capacity && !t.grown(pn) {
			collapse = p
		}
		p = pn.parent
	}
	if collapse != common.NilNode {
		t.collapse(collapse)
		id = collapse
	}
	t.prune(id)
	t.shrinkRoot()
}

// grown reports whether n is larger than the initial root, which only roots added by growRoot are.
func (t *Tree[K]) grown(n *node[K]) bool {
	return n.region.HalfExtents.X() > t.home.HalfExtents.X()*(1+1e-4)
}

// shrinkRoot undoes growRoot while the root holds no entries of its own. A single child covering
// the initial region becomes the root; an empty root is replaced by a fresh one over that region.
func (t *Tree[K]) shrinkRoot() {
	for {
		root, _ := t.nodes.Lookup(t.root)
		if !t.grown(root) || len(root.keys) > 0 {
			return
		}
		var only common.NodeID
		count := 0
		for _, c := range root.children {
			if c != common.NilNode {
				only = c
				count++
			}
		}
		switch {
		case count == 0:
			old := t.root
			t.root = t.newNode(t.home, common.NilNode, 0)
			t.destroyNode(old)
		case count == 1:
			child, _ := t.nodes.Lookup(only)
			if !child.region.Contains(t.home, 1e-4) {
				return
			}
			old := t.root
			root.children = [8]common.NodeID{}
			child.parent = common.NilNode
			t.root = only
			t.destroyNode(old)
			t.nodes.Each(func(_ common.NodeID, n **node[K]) bool {
				(*n).depth--
				return true
			})
		default:
			return
		}
		logs.WithTag("half_extents", t.rootRegion().HalfExtents).Debug("octree root shrunk")
	}
}

func (t *Tree[K]) rootRegion() common.Bounds {
	root, _ := t.nodes.Lookup(t.root)
	return root.region
}

func (t *Tree[K]) collapse(id common.NodeID) {
	n, _ := t.nodes.Lookup(id)
	for _, c := range n.children {
		if c == common.NilNode {
			continue
		}
		t.pullUp(c, id)
	}
	n, _ = t.nodes.Lookup(id)
	n.split = false
}

// pullUp moves every entry under src into dst and destroys src's subtree.
func (t *Tree[K]) pullUp(src, dst common.NodeID) {
	n, _ := t.nodes.Lookup(src)
	for _, c := range n.children {
		if c != common.NilNode {
			t.pullUp(c, dst)
		}
	}
	n, _ = t.nodes.Lookup(src)
	for len(n.keys) > 0 {
		k := n.keys[len(n.keys)-1]
		b := t.entries[k].bounds
		t.detach(k)
		t.attach(dst, k, b)
	}
	t.destroyNode(src)
}

func (t *Tree[K]) prune(id common.NodeID) {
	for id != t.root && id != common.NilNode {
		n, ok := t.nodes.Lookup(id)
		if !ok {
			return
		}
		if len(n.keys) > 0 || t.hasChildren(n) {
			return
		}
		parent := n.parent
		t.destroyNode(id)
		if p, ok := t.nodes.Lookup(parent); ok && !t.hasChildren(p) {
			p.split = p.split && p.total > t.capacity
		}
		id = parent
	}
}

func (t *Tree[K]) hasChildren(n *node[K]) bool {
	for _, c := range n.children {
		if c != common.NilNode {
			return true
		}
	}
	return false
}
