package arena

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type testID uint64

func TestArenaInsertGetRemove(t *testing.T) {
	a := New[testID, string](4)

	id := a.Insert("a")
	require.NotZero(t, id)

	v, ok := a.Get(id)
	require.True(t, ok)
	require.Equal(t, "a", *v)
	require.Equal(t, 1, a.Len())

	require.True(t, a.Remove(id))
	require.False(t, a.Remove(id))
	require.Equal(t, 0, a.Len())

	_, ok = a.Get(id)
	require.False(t, ok)
}

func TestArenaStaleHandleAfterReuse(t *testing.T) {
	a := New[testID, int](0)

	old := a.Insert(1)
	a.Remove(old)
	reused := a.Insert(2)

	require.NotEqual(t, old, reused)
	require.False(t, a.Contains(old))

	v, ok := a.Get(reused)
	require.True(t, ok)
	require.Equal(t, 2, *v)
}

func TestArenaNilHandle(t *testing.T) {
	a := New[testID, int](0)
	a.Insert(7)

	_, ok := a.Get(0)
	require.False(t, ok)
}

func TestArenaEachAndClear(t *testing.T) {
	a := New[testID, int](0)
	for i := 0; i < 5; i++ {
		a.Insert(i)
	}

	sum := 0
	a.Each(func(_ testID, v *int) bool {
		sum += *v
		return true
	})
	require.Equal(t, 10, sum)

	a.Clear()
	require.Equal(t, 0, a.Len())
}

func TestArenaLookupPointerValues(t *testing.T) {
	type item struct{ n int }
	a := New[testID, *item](0)

	p := &item{n: 3}
	id := a.Insert(p)
	for i := 0; i < 100; i++ {
		a.Insert(&item{n: i})
	}

	got, ok := a.Lookup(id)
	require.True(t, ok)
	require.Same(t, p, got)
}

func TestArenaSlot(t *testing.T) {
	a := New[testID, int](0)
	first := a.Insert(1)
	second := a.Insert(2)
	require.Equal(t, uint(0), Slot(first))
	require.Equal(t, uint(1), Slot(second))

	a.Remove(first)
	reused := a.Insert(3)
	require.NotEqual(t, first, reused)
	require.Equal(t, Slot(first), Slot(reused))
	require.Equal(t, uint(0), Slot(testID(0)))
}
