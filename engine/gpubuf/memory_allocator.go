package gpubuf

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/aukilabs/go-tooling/pkg/errors"
)

// MemoryAllocator serves buffers from host memory. It stands in for a GPU device in headless runs
// and tests, and enforces a byte budget so exhaustion paths can be exercised.
type MemoryAllocator struct {
	mu     *sync.Mutex
	budget uint64
	inUse  uint64
	count  int
}

// NewMemoryAllocator creates an allocator limited to budget bytes; 0 means unlimited.
func NewMemoryAllocator(budget uint64) *MemoryAllocator {
	return &MemoryAllocator{mu: &sync.Mutex{}, budget: budget}
}

var _ Allocator = &MemoryAllocator{}

func (a *MemoryAllocator) Allocate(label string, usage Usage, size uint64) (Buffer, error) {
	size = align(size)

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.budget > 0 && a.inUse+size > a.budget {
		return nil, errors.New("buffer budget exhausted").
			WithType(common.ErrTypeAllocFailed).
			WithTag("label", label).
			WithTag("requested", size).
			WithTag("in_use", a.inUse).
			WithTag("budget", a.budget)
	}
	a.inUse += size
	a.count++
	return &memoryBuffer{
		owner: a,
		label: label,
		usage: usage,
		data:  make([]byte, size),
	}, nil
}

func (a *MemoryAllocator) InUse() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inUse
}

// Count returns the number of live buffers.
func (a *MemoryAllocator) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count
}

// SetBudget changes the byte budget; 0 means unlimited.
func (a *MemoryAllocator) SetBudget(budget uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.budget = budget
}

func (a *MemoryAllocator) release(size uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.inUse -= size
	a.count--
}

type memoryBuffer struct {
	owner    *MemoryAllocator
	label    string
	usage    Usage
	data     []byte
	released bool
}

func (b *memoryBuffer) Label() string { return b.label }
func (b *memoryBuffer) Usage() Usage  { return b.usage }
func (b *memoryBuffer) Size() uint64  { return uint64(len(b.data)) }

func (b *memoryBuffer) Write(offset uint64, data []byte) error {
	if b.released {
		return errors.New("write to released buffer").
			WithType(common.ErrTypeStaleHandle).
			WithTag("label", b.label)
	}
	if offset+uint64(len(data)) > uint64(len(b.data)) {
		return errors.Newf("write of %d bytes at %d overflows buffer of %d", len(data), offset, len(b.data)).
			WithType(common.ErrTypeInvalidIndex).
			WithTag("label", b.label)
	}
	copy(b.data[offset:], data)
	return nil
}

func (b *memoryBuffer) Release() {
	if b.released {
		return
	}
	b.released = true
	b.owner.release(uint64(len(b.data)))
	b.data = nil
}

// Bytes returns the contents of a buffer created by a MemoryAllocator, or nil for other buffers.
func Bytes(b Buffer) []byte {
	if mb, ok := b.(*memoryBuffer); ok {
		return mb.data
	}
	return nil
}
