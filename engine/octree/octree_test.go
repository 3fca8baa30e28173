package octree

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	created   map[common.NodeID]bool
	inserted  map[int]common.NodeID
	destroyed int
}

func newRecorder() *recorder {
	return &recorder{created: map[common.NodeID]bool{}, inserted: map[int]common.NodeID{}}
}

func (r *recorder) NodeCreated(id common.NodeID) { r.created[id] = true }
func (r *recorder) NodeDestroyed(id common.NodeID) {
	delete(r.created, id)
	r.destroyed++
}
func (r *recorder) EntryInserted(node common.NodeID, key int) { r.inserted[key] = node }
func (r *recorder) EntryRemoved(node common.NodeID, key int) {
	if r.inserted[key] == node {
		delete(r.inserted, key)
	}
}

func box(x, y, z, h float32) common.Bounds {
	return common.Bounds{Center: mgl32.Vec3{x, y, z}, HalfExtents: mgl32.Vec3{h, h, h}}
}

func region() common.Bounds {
	return box(0, 0, 0, 10)
}

func fourOctants(t *testing.T, options ...TreeBuilderOption[int]) *Tree[int] {
	tree := NewTree[int](region(), append([]TreeBuilderOption[int]{WithCapacity[int](3)}, options...)...)
	tree.Insert(1, box(5, 5, 5, 1))
	tree.Insert(2, box(-5, 5, 5, 1))
	tree.Insert(3, box(5, -5, 5, 1))
	tree.Insert(4, box(-5, -5, -5, 1))
	require.NoError(t, tree.Validate())
	return tree
}

func TestTreeSplitsIntoOccupiedOctants(t *testing.T) {
	tree := fourOctants(t)

	children := tree.Children(tree.Root())
	require.Len(t, children, 4)
	require.Empty(t, tree.Keys(tree.Root()))

	octants := map[int]int{
		1: 0b111,
		2: 0b110,
		3: 0b101,
		4: 0b000,
	}
	for key, octant := range octants {
		node, ok := tree.Locate(key)
		require.True(t, ok)
		child, err := tree.ChildAt(tree.Root(), octant)
		require.NoError(t, err)
		require.Equal(t, child, node, "key %d", key)
	}
}

func TestTreeBelowCapacityStaysLeaf(t *testing.T) {
	tree := NewTree[int](region(), WithCapacity[int](3))
	tree.Insert(1, box(5, 5, 5, 1))
	tree.Insert(2, box(-5, 5, 5, 1))

	require.Empty(t, tree.Children(tree.Root()))
	require.Len(t, tree.Keys(tree.Root()), 2)
	require.Equal(t, 1, tree.NodeCount())
}

func TestTreeStraddlingEntryStaysInParent(t *testing.T) {
	tree := fourOctants(t)
	tree.Insert(5, box(0, 0, 0, 2))

	node, ok := tree.Locate(5)
	require.True(t, ok)
	require.Equal(t, tree.Root(), node)
	require.NoError(t, tree.Validate())
}

func TestTreeListenerTracksNodes(t *testing.T) {
	rec := newRecorder()
	tree := fourOctants(t, WithListener[int](rec))

	require.Len(t, rec.created, tree.NodeCount())
	for key := 1; key <= 4; key++ {
		node, _ := tree.Locate(key)
		require.Equal(t, node, rec.inserted[key])
	}

	tree.Remove(4)
	require.Len(t, rec.created, tree.NodeCount())
	require.Len(t, rec.inserted, 3)
	for key := 1; key <= 3; key++ {
		node, _ := tree.Locate(key)
		require.Equal(t, node, rec.inserted[key])
	}
}

func TestTreeInsertRemoveRoundTrip(t *testing.T) {
	tree := NewTree[int](region(), WithCapacity[int](3))
	tree.Insert(1, box(5, 5, 5, 1))
	tree.Insert(2, box(-5, 5, 5, 1))
	tree.Insert(3, box(5, -5, 5, 1))
	before := snapshot(tree)

	tree.Insert(4, box(-5, -5, -5, 1))
	require.Len(t, tree.Children(tree.Root()), 4)

	require.True(t, tree.Remove(4))
	require.Equal(t, before, snapshot(tree))
	require.NoError(t, tree.Validate())
	require.False(t, tree.Remove(4))
}

func TestTreeRandomInsertRemoveRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	tree := NewTree[int](box(0, 0, 0, 64), WithCapacity[int](4))
	for i := 0; i < 200; i++ {
		tree.Insert(i, randomBox(rng, 60))
	}
	require.NoError(t, tree.Validate())
	before := snapshot(tree)

	for i := 200; i < 210; i++ {
		tree.Insert(i, randomBox(rng, 60))
		require.NoError(t, tree.Validate())
		tree.Remove(i)
		require.Equal(t, before, snapshot(tree))
	}
}

func TestTreeRemoveAllPrunesToRoot(t *testing.T) {
	tree := fourOctants(t)
	for key := 1; key <= 4; key++ {
		require.True(t, tree.Remove(key))
	}
	require.Equal(t, 0, tree.Len())
	require.Equal(t, 1, tree.NodeCount())
	require.NoError(t, tree.Validate())
}

func TestTreeUpdateWithinSlopStays(t *testing.T) {
	tree := fourOctants(t)
	node, _ := tree.Locate(1)

	moved := tree.Update(1, box(5.5, 5, 5, 1))
	require.False(t, moved)
	after, _ := tree.Locate(1)
	require.Equal(t, node, after)

	b, _ := tree.EntryBounds(1)
	require.Equal(t, float32(5.5), b.Center.X())
	require.NoError(t, tree.Validate())
}

func TestTreeUpdateOutsideSlopRelocates(t *testing.T) {
	tree := fourOctants(t)

	moved := tree.Update(1, box(-5, -5, 5, 1))
	require.True(t, moved)
	node, _ := tree.Locate(1)
	child, err := tree.ChildAt(tree.Root(), 0b100)
	require.NoError(t, err)
	require.Equal(t, child, node)
	require.NoError(t, tree.Validate())
}

func TestTreeGrowsRootForOutOfRangeEntries(t *testing.T) {
	tree := fourOctants(t)
	oldRoot := tree.Root()

	tree.Insert(9, box(25, 0, 0, 1))
	require.NotEqual(t, oldRoot, tree.Root())
	r, _ := tree.Region(tree.Root())
	b, _ := tree.EntryBounds(9)
	require.True(t, r.Contains(b, 0))
	require.Equal(t, tree.Root(), tree.Parent(oldRoot))
	require.Equal(t, 1, tree.Depth(oldRoot))
	require.NoError(t, tree.Validate())
}

func TestTreeGrowShrinkRoundTrip(t *testing.T) {
	tree := fourOctants(t)
	oldRoot := tree.Root()
	before := snapshot(tree)

	tree.Insert(9, box(500, 0, 0, 1))
	require.NotEqual(t, oldRoot, tree.Root())
	require.NoError(t, tree.Validate())

	require.True(t, tree.Remove(9))
	require.Equal(t, oldRoot, tree.Root())
	r, _ := tree.Region(tree.Root())
	require.Equal(t, region(), r)
	require.Equal(t, before, snapshot(tree))
	require.NoError(t, tree.Validate())

	empty := NewTree[int](region())
	empty.Insert(1, box(-300, 40, 0, 1))
	empty.Remove(1)
	r, _ = empty.Region(empty.Root())
	require.Equal(t, region(), r)
	require.Equal(t, 1, empty.NodeCount())
}

func TestTreeDegenerateBoundsAreClamped(t *testing.T) {
	tree := NewTree[int](region())
	tree.Insert(1, common.Bounds{Center: mgl32.Vec3{1, 1, 1}})

	b, ok := tree.EntryBounds(1)
	require.True(t, ok)
	require.Equal(t, common.BoundsEpsilon, b.HalfExtents.X())
}

func TestTreeChildAtInvalidOctant(t *testing.T) {
	var out strings.Builder
	logs.SetInlineEncoder()
	logs.SetLogger(func(e logs.Entry) {
		fmt.Fprint(&out, e)
	})

	tree := fourOctants(t)
	child, err := tree.ChildAt(tree.Root(), 8)
	require.Error(t, err)
	require.True(t, errors.IsType(err, common.ErrTypeInvalidIndex))
	require.Equal(t, common.NilNode, child)
	require.NotEmpty(t, out.String())

	_, err = tree.ChildAt(tree.Root(), -1)
	require.True(t, errors.IsType(err, common.ErrTypeInvalidIndex))
}

func TestTreeShiftInverse(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	tree := NewTree[int](box(0, 0, 0, 64), WithCapacity[int](4))
	for i := 0; i < 50; i++ {
		tree.Insert(i, randomBox(rng, 60))
	}
	before := snapshot(tree)

	offset := mgl32.Vec3{12.5, -3, 100}
	tree.Shift(offset)
	b, _ := tree.EntryBounds(0)
	require.NoError(t, tree.Validate())

	tree.Shift(offset.Mul(-1))
	after := snapshot(tree)
	require.Equal(t, len(before), len(after))
	for i := range before {
		require.Equal(t, before[i].depth, after[i].depth)
		require.Equal(t, before[i].keys, after[i].keys)
		require.True(t, common.NearlyEqualVec3(before[i].center, after[i].center, 1e-3))
	}
	require.NotEqual(t, b.Center, mustBounds(t, tree, 0).Center)
}

func TestTreeSegmentFindsNearest(t *testing.T) {
	tree := fourOctants(t)
	tree.Insert(5, box(-8, 5, 5, 0.5))

	key, at, ok := tree.Segment(mgl32.Vec3{-20, 5, 5}, mgl32.Vec3{20, 5, 5}, nil)
	require.True(t, ok)
	require.Equal(t, 5, key)
	require.InDelta(t, 11.5/40.0, at, 1e-4)

	_, _, ok = tree.Segment(mgl32.Vec3{-20, -9, 9}, mgl32.Vec3{20, -9, 9}, nil)
	require.False(t, ok)
}

func TestTreeSegmentHonorsHitFunc(t *testing.T) {
	tree := fourOctants(t)
	tree.Insert(5, box(-8, 5, 5, 0.5))

	key, _, ok := tree.Segment(mgl32.Vec3{-20, 5, 5}, mgl32.Vec3{20, 5, 5},
		func(key int, start, end mgl32.Vec3) (float32, bool) {
			if key == 5 {
				return 0, false
			}
			b := mustBounds(t, tree, key)
			return b.IntersectSegment(start, end)
		})
	require.True(t, ok)
	require.Equal(t, 2, key)
}

func TestTreeQuery(t *testing.T) {
	tree := fourOctants(t)
	var keys []int
	tree.Query(box(5, 0, 5, 6), func(key int, _ common.Bounds) bool {
		keys = append(keys, key)
		return true
	})
	sort.Ints(keys)
	require.Equal(t, []int{1, 3}, keys)
}

func TestTreeWalkSkipAndStop(t *testing.T) {
	tree := fourOctants(t)

	visited := 0
	tree.Walk(func(id common.NodeID) WalkAction {
		visited++
		return SkipChildren
	})
	require.Equal(t, 1, visited)

	visited = 0
	tree.Walk(func(id common.NodeID) WalkAction {
		visited++
		if visited == 2 {
			return Stop
		}
		return Descend
	})
	require.Equal(t, 2, visited)
}

func TestTreeClear(t *testing.T) {
	rec := newRecorder()
	tree := fourOctants(t, WithListener[int](rec))
	tree.Clear()
	require.Equal(t, 0, tree.Len())
	require.Equal(t, 1, tree.NodeCount())
	require.Len(t, rec.created, 1)
	require.Empty(t, rec.inserted)
}

type nodeShape struct {
	depth  int
	center mgl32.Vec3
	keys   []int
}

// snapshot describes the tree by occupancy and regions, independent of node handles.
func snapshot(tree *Tree[int]) []nodeShape {
	var out []nodeShape
	tree.Walk(func(id common.NodeID) WalkAction {
		r, _ := tree.Region(id)
		keys := append([]int(nil), tree.Keys(id)...)
		sort.Ints(keys)
		out = append(out, nodeShape{depth: tree.Depth(id), center: r.Center, keys: keys})
		return Descend
	})
	return out
}

func randomBox(rng *rand.Rand, extent float32) common.Bounds {
	c := mgl32.Vec3{
		(rng.Float32()*2 - 1) * extent * 0.9,
		(rng.Float32()*2 - 1) * extent * 0.9,
		(rng.Float32()*2 - 1) * extent * 0.9,
	}
	return common.Bounds{Center: c, HalfExtents: mgl32.Vec3{0.5, 0.5, 0.5}.Mul(rng.Float32() + 0.1)}
}

func mustBounds(t *testing.T, tree *Tree[int], key int) common.Bounds {
	b, ok := tree.EntryBounds(key)
	require.True(t, ok)
	return b
}
