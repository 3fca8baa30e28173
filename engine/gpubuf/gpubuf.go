// Package gpubuf allocates the vertex and index buffers spatial groups pack their geometry into.
package gpubuf

import (
	"fmt"
)

// Usage says what a buffer is bound as.
type Usage int

const (
	UsageVertex Usage = iota
	UsageIndex
)

func (u Usage) String() string {
	switch u {
	case UsageVertex:
		return "vertex"
	case UsageIndex:
		return "index"
	}
	return fmt.Sprintf("Usage(%d)", int(u))
}

// Buffer is a GPU buffer exclusively owned by one spatial group.
type Buffer interface {
	// Label returns the debug label the buffer was created with.
	Label() string

	// Usage returns what the buffer is bound as.
	Usage() Usage

	// Size returns the capacity in bytes.
	Size() uint64

	// Write uploads data at offset. Writes past the capacity fail.
	//
	// Parameters:
	//   - offset: byte offset into the buffer
	//   - data: the bytes to upload
	//
	// Returns:
	//   - error: an error if the write does not fit
	Write(offset uint64, data []byte) error

	// Release frees the buffer. Releasing twice is a no-op.
	Release()
}

// Allocator creates buffers.
type Allocator interface {
	// Allocate creates a buffer of at least size bytes.
	//
	// Parameters:
	//   - label: debug label
	//   - usage: vertex or index
	//   - size: requested capacity in bytes
	//
	// Returns:
	//   - Buffer: the new buffer
	//   - error: an alloc_failed error when the allocation cannot be served
	Allocate(label string, usage Usage, size uint64) (Buffer, error)

	// InUse returns the number of bytes currently allocated.
	InUse() uint64
}

// align rounds size up to the 4-byte copy alignment GPU queues require.
func align(size uint64) uint64 {
	return (size + 3) &^ 3
}
