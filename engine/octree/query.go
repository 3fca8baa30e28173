package octree

import (
	"sort"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/go-gl/mathgl/mgl32"
)

// HitFunc refines a candidate entry whose bounds the segment touches. It returns the parameter along
// the segment of the precise hit, or false if the entry is not actually hit.
type HitFunc[K comparable] func(key K, start, end mgl32.Vec3) (float32, bool)

// Segment finds the entry nearest to start that the segment start->end hits. Nodes and entries whose
// bounds begin farther than the best hit so far are skipped.
//
// Parameters:
//   - start, end: the segment endpoints in tree space
//   - hit: precise test for candidate entries; nil accepts the bounds hit
//
// Returns:
//   - K: the nearest hit entry
//   - float32: its parameter along the segment in [0, 1]
//   - bool: false if nothing was hit
func (t *Tree[K]) Segment(start, end mgl32.Vec3, hit HitFunc[K]) (K, float32, bool) {
	var (
		best  K
		bestT float32 = 2
		found bool
	)

	type candidate struct {
		id common.NodeID
		t  float32
	}

	var visit func(id common.NodeID)
	visit = func(id common.NodeID) {
		n, ok := t.nodes.Lookup(id)
		if !ok {
			return
		}
		for _, k := range n.keys {
			e := t.entries[k]
			enter, ok := e.bounds.IntersectSegment(start, end)
			if !ok || enter > bestT {
				continue
			}
			at := enter
			if hit != nil {
				if at, ok = hit(k, start, end); !ok {
					continue
				}
			}
			if at < bestT {
				best, bestT, found = k, at, true
			}
		}

		var next []candidate
		for _, c := range n.children {
			if c == common.NilNode {
				continue
			}
			loose, _ := t.LooseRegion(c)
			enter, ok := loose.IntersectSegment(start, end)
			if ok {
				next = append(next, candidate{id: c, t: enter})
			}
		}
		sort.Slice(next, func(i, j int) bool { return next[i].t < next[j].t })
		for _, c := range next {
			if c.t > bestT {
				break
			}
			visit(c.id)
		}
	}

	root, _ := t.LooseRegion(t.root)
	if _, ok := root.IntersectSegment(start, end); ok {
		visit(t.root)
	}
	return best, bestT, found
}

// Query calls fn for every entry whose bounds intersect b.
func (t *Tree[K]) Query(b common.Bounds, fn func(key K, bounds common.Bounds) bool) {
	t.Walk(func(id common.NodeID) WalkAction {
		loose, _ := t.LooseRegion(id)
		if !loose.Intersects(b) {
			return SkipChildren
		}
		for _, k := range t.Keys(id) {
			e := t.entries[k]
			if e.bounds.Intersects(b) && !fn(k, e.bounds) {
				return Stop
			}
		}
		return Descend
	})
}

// Validate checks the structural invariants: every child region lies inside its parent, every entry
// lies inside its node's loose region, and subtree counts add up.
//
// Returns:
//   - error: the first violation found, or nil
func (t *Tree[K]) Validate() error {
	var err error
	var check func(id common.NodeID) int
	check = func(id common.NodeID) int {
		n, _ := t.nodes.Lookup(id)
		loose, _ := t.LooseRegion(id)
		count := len(n.keys)
		for i, k := range n.keys {
			e, ok := t.entries[k]
			if !ok || e.node != id || e.index != i {
				err = errors.New("entry index out of sync").WithTag("node", uint64(id))
				return count
			}
			if !loose.Contains(e.bounds, 0) {
				err = errors.New("entry outside node region").
					WithTag("node", uint64(id)).
					WithTag("center", e.bounds.Center)
				return count
			}
		}
		for _, c := range n.children {
			if c == common.NilNode {
				continue
			}
			cn, ok := t.nodes.Lookup(c)
			if !ok || cn.parent != id {
				err = errors.New("child link broken").WithTag("node", uint64(id))
				return count
			}
			if !n.region.Contains(cn.region, 1e-4) {
				err = errors.New("child region outside parent").WithTag("node", uint64(c))
				return count
			}
			count += check(c)
			if err != nil {
				return count
			}
		}
		if count != n.total {
			err = errors.Newf("subtree count mismatch: have %d, recorded %d", count, n.total).
				WithTag("node", uint64(id))
		}
		return count
	}
	total := check(t.root)
	if err == nil && total != len(t.entries) {
		err = errors.Newf("tree holds %d entries, index holds %d", total, len(t.entries))
	}
	return err
}
