//go:build !nogpu

package gpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Buffer errors.
var (
	// ErrInvalidBufferSize is returned when a buffer size is zero.
	ErrInvalidBufferSize = errors.New("gpu: invalid buffer size")
)

// copyBufferAlignment is the required alignment for buffer copy sizes.
const copyBufferAlignment uint64 = 4

// alignBufferSize rounds size up to the copy alignment.
func alignBufferSize(size uint64) uint64 {
	return (size + copyBufferAlignment - 1) &^ (copyBufferAlignment - 1)
}

// createBuffer creates a GPU buffer with a copy-aligned size.
func createBuffer(device hal.Device, label string, size uint64, usage gputypes.BufferUsage) (hal.Buffer, error) {
	if size == 0 {
		return nil, fmt.Errorf("%w: size is 0 (%s)", ErrInvalidBufferSize, label)
	}
	buf, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  alignBufferSize(size),
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", label, err)
	}
	return buf, nil
}

// createAndUploadBuffer creates a GPU buffer and uploads data through the
// queue's staging path.
func createAndUploadBuffer(device hal.Device, queue hal.Queue, label string, data []byte, usage gputypes.BufferUsage) (hal.Buffer, error) {
	buf, err := createBuffer(device, label, uint64(len(data)), usage)
	if err != nil {
		return nil, err
	}
	queue.WriteBuffer(buf, 0, data)
	return buf, nil
}

// bufferProps identifies a pool bucket: buffers are interchangeable when
// their rounded size and usage flags match.
type bufferProps struct {
	size  uint64
	usage gputypes.BufferUsage
}

// poolSizeClass rounds a byte size up to the pool's bucket granularity:
// powers of two, with a floor that keeps tiny per-frame buffers from
// fragmenting into many buckets.
func poolSizeClass(size uint64) uint64 {
	const minClass = 1 << 10
	if size <= minClass {
		return minClass
	}
	c := uint64(minClass)
	for c < size {
		c <<= 1
	}
	return c
}

// bufferPool recycles per-frame GPU buffers between frames in flight.
// Buffers are handed out by size class and returned once the fence guarding
// their last read has signaled, so steady-state frames allocate nothing.
//
// The pool is not safe for concurrent use; the renderer serializes access.
type bufferPool struct {
	free map[bufferProps][]hal.Buffer
}

func newBufferPool() *bufferPool {
	return &bufferPool{free: make(map[bufferProps][]hal.Buffer)}
}

// get returns a pooled buffer of at least size bytes, creating one when the
// bucket is empty. The returned props identify the bucket for put.
func (p *bufferPool) get(device hal.Device, label string, size uint64, usage gputypes.BufferUsage) (hal.Buffer, bufferProps, error) {
	props := bufferProps{size: poolSizeClass(size), usage: usage}
	if list := p.free[props]; len(list) > 0 {
		buf := list[len(list)-1]
		p.free[props] = list[:len(list)-1]
		return buf, props, nil
	}
	buf, err := createBuffer(device, label, props.size, usage)
	if err != nil {
		return nil, bufferProps{}, err
	}
	return buf, props, nil
}

// put returns a buffer to its bucket. Call only after the GPU is done
// reading it.
func (p *bufferPool) put(props bufferProps, buf hal.Buffer) {
	if buf == nil {
		return
	}
	p.free[props] = append(p.free[props], buf)
}

// destroy releases every pooled buffer.
func (p *bufferPool) destroy(device hal.Device) {
	for props, list := range p.free {
		for _, buf := range list {
			device.DestroyBuffer(buf)
		}
		delete(p.free, props)
	}
}
