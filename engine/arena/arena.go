// Package arena provides generational slot storage addressed by integer handles.
// Entities that reference each other (drawables, spatial groups, octree nodes) hold
// handles instead of pointers, so a freed slot can never be reached through a stale reference.
package arena

// Arena stores values of T in reusable slots. A handle packs the slot index in the low 32 bits
// (offset by one so that 0 stays the nil handle) and the slot generation in the high 32 bits.
type Arena[ID ~uint64, T any] struct {
	slots []slot[T]
	free  []uint32
	count int
}

type slot[T any] struct {
	value T
	gen   uint32
	live  bool
}

// New creates an arena with room for capacity values before growing.
func New[ID ~uint64, T any](capacity int) *Arena[ID, T] {
	return &Arena[ID, T]{slots: make([]slot[T], 0, capacity)}
}

func makeID[ID ~uint64](index, gen uint32) ID {
	return ID(uint64(gen)<<32 | uint64(index+1))
}

func split[ID ~uint64](id ID) (index, gen uint32, ok bool) {
	lo := uint32(uint64(id) & 0xffffffff)
	if lo == 0 {
		return 0, 0, false
	}
	return lo - 1, uint32(uint64(id) >> 32), true
}

// Insert stores v and returns its handle.
func (a *Arena[ID, T]) Insert(v T) ID {
	var index uint32
	if n := len(a.free); n > 0 {
		index = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		if len(a.slots) == 1<<32-1 {
			panic("arena: slot space exhausted")
		}
		a.slots = append(a.slots, slot[T]{})
		index = uint32(len(a.slots) - 1)
	}
	s := &a.slots[index]
	s.value = v
	s.live = true
	a.count++
	return makeID[ID](index, s.gen)
}

// Get returns a pointer to the value behind id. The pointer is valid until the next Insert or Remove.
func (a *Arena[ID, T]) Get(id ID) (*T, bool) {
	index, gen, ok := split(id)
	if !ok || int(index) >= len(a.slots) {
		return nil, false
	}
	s := &a.slots[index]
	if !s.live || s.gen != gen {
		return nil, false
	}
	return &s.value, true
}

// Lookup returns a copy of the value behind id. Stores that hand out long-lived references
// keep pointer values in the arena and use Lookup, since Get's pointer does not survive slot growth.
func (a *Arena[ID, T]) Lookup(id ID) (T, bool) {
	if p, ok := a.Get(id); ok {
		return *p, true
	}
	var zero T
	return zero, false
}

// Contains reports whether id refers to a live slot.
func (a *Arena[ID, T]) Contains(id ID) bool {
	_, ok := a.Get(id)
	return ok
}

// Remove frees the slot behind id. Removing a stale handle is a no-op that returns false.
func (a *Arena[ID, T]) Remove(id ID) bool {
	index, gen, ok := split(id)
	if !ok || int(index) >= len(a.slots) {
		return false
	}
	s := &a.slots[index]
	if !s.live || s.gen != gen {
		return false
	}
	var zero T
	s.value = zero
	s.live = false
	s.gen++
	a.free = append(a.free, index)
	a.count--
	return true
}

// Len returns the number of live values.
func (a *Arena[ID, T]) Len() int { return a.count }

// Each calls fn for every live value in slot order until fn returns false.
func (a *Arena[ID, T]) Each(fn func(id ID, v *T) bool) {
	for i := range a.slots {
		s := &a.slots[i]
		if !s.live {
			continue
		}
		if !fn(makeID[ID](uint32(i), s.gen), &s.value) {
			return
		}
	}
}

// Clear frees every slot. Outstanding handles become stale.
func (a *Arena[ID, T]) Clear() {
	a.Each(func(id ID, _ *T) bool {
		a.Remove(id)
		return true
	})
}

// Slot returns the dense slot index of a handle, suitable for indexing bitsets. Two live handles
// never share a slot; a stale handle shares its slot with whatever reused it.
func Slot[ID ~uint64](id ID) uint {
	index, _, ok := split(id)
	if !ok {
		return 0
	}
	return uint(index)
}
