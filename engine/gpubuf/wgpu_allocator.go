package gpubuf

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/cogentcore/webgpu/wgpu"
)

// WGPUAllocator creates buffers on a WebGPU device and uploads through its queue.
type WGPUAllocator struct {
	mu     *sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue
	inUse  uint64
}

// NewWGPUAllocator creates an allocator bound to a device and queue.
//
// Parameters:
//   - device: the WebGPU device buffers are created on
//   - queue: the queue writes are submitted to
//
// Returns:
//   - *WGPUAllocator: the allocator
func NewWGPUAllocator(device *wgpu.Device, queue *wgpu.Queue) *WGPUAllocator {
	if device == nil || queue == nil {
		panic("gpubuf: device and queue are required")
	}
	return &WGPUAllocator{mu: &sync.Mutex{}, device: device, queue: queue}
}

var _ Allocator = &WGPUAllocator{}

func (a *WGPUAllocator) Allocate(label string, usage Usage, size uint64) (Buffer, error) {
	size = align(size)
	flags := wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst
	if usage == UsageIndex {
		flags = wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	buf, err := a.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            label,
		Size:             size,
		Usage:            flags,
		MappedAtCreation: false,
	})
	if err != nil {
		return nil, errors.New("create buffer failed").
			WithType(common.ErrTypeAllocFailed).
			WithTag("label", label).
			WithTag("size", size).
			Wrap(err)
	}
	a.inUse += size
	return &wgpuBuffer{owner: a, buf: buf, label: label, usage: usage, size: size}, nil
}

func (a *WGPUAllocator) InUse() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inUse
}

type wgpuBuffer struct {
	owner *WGPUAllocator
	buf   *wgpu.Buffer
	label string
	usage Usage
	size  uint64
}

// Raw returns the underlying WebGPU buffer for a render pass dispatcher to bind, or nil for
// buffers from other allocators.
func Raw(b Buffer) *wgpu.Buffer {
	if wb, ok := b.(*wgpuBuffer); ok {
		return wb.buf
	}
	return nil
}

func (b *wgpuBuffer) Label() string { return b.label }
func (b *wgpuBuffer) Usage() Usage  { return b.usage }
func (b *wgpuBuffer) Size() uint64  { return b.size }

func (b *wgpuBuffer) Write(offset uint64, data []byte) error {
	if b.buf == nil {
		return errors.New("write to released buffer").
			WithType(common.ErrTypeStaleHandle).
			WithTag("label", b.label)
	}
	if offset+uint64(len(data)) > b.size {
		return errors.Newf("write of %d bytes at %d overflows buffer of %d", len(data), offset, b.size).
			WithType(common.ErrTypeInvalidIndex).
			WithTag("label", b.label)
	}
	if len(data)%4 != 0 {
		padded := make([]byte, align(uint64(len(data))))
		copy(padded, data)
		data = padded
	}

	b.owner.mu.Lock()
	defer b.owner.mu.Unlock()
	b.owner.queue.WriteBuffer(b.buf, offset, data)
	return nil
}

func (b *wgpuBuffer) Release() {
	if b.buf == nil {
		return
	}
	b.owner.mu.Lock()
	defer b.owner.mu.Unlock()
	b.buf.Release()
	b.buf = nil
	b.owner.inUse -= b.size
}
