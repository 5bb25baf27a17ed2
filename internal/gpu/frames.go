//go:build !nogpu

package gpu

import (
	"time"

	"github.com/gogpu/wgpu/hal"
)

// fenceWaitTimeout bounds how long a frame slot waits for the GPU before
// giving up on the frame.
const fenceWaitTimeout = 5 * time.Second

// retainedBuffer is a pooled buffer held by an in-flight frame until its
// fence signals.
type retainedBuffer struct {
	props bufferProps
	buf   hal.Buffer
}

// frameSlot holds everything the GPU may still be reading for one submitted
// frame. Slots are reused round robin; reuse first waits on the slot's fence,
// returns pooled buffers, and reclaims quarantined atlas layers.
type frameSlot struct {
	pending bool

	fence      hal.Fence
	fenceValue uint64

	cmdBuf     hal.CommandBuffer
	bindGroups []hal.BindGroup
	buffers    []retainedBuffer

	// atlasSeq is the atlas frame sequence this slot rendered; completing
	// the fence makes layers released up to this sequence reusable.
	atlasSeq uint64
}

// wait blocks until the slot's work has completed on the GPU, then releases
// the retained resources back to the device and pool. A non-pending slot
// returns immediately.
func (s *frameSlot) wait(device hal.Device, pool *bufferPool) (uint64, error) {
	if !s.pending {
		return 0, nil
	}

	ok, err := device.Wait(s.fence, s.fenceValue, fenceWaitTimeout)
	if err == nil && !ok {
		err = ErrFrameTimeout
	}

	for _, rb := range s.buffers {
		pool.put(rb.props, rb.buf)
	}
	s.buffers = s.buffers[:0]
	for _, bg := range s.bindGroups {
		device.DestroyBindGroup(bg)
	}
	s.bindGroups = s.bindGroups[:0]
	if s.cmdBuf != nil {
		device.FreeCommandBuffer(s.cmdBuf)
		s.cmdBuf = nil
	}
	if s.fence != nil {
		device.DestroyFence(s.fence)
		s.fence = nil
	}
	s.pending = false

	completed := s.atlasSeq
	s.atlasSeq = 0
	return completed, err
}
