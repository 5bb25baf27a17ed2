//go:build !nogpu

package gpu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/uibatch"
)

// Renderer errors.
var (
	// ErrRendererClosed is returned when submitting to a closed renderer.
	ErrRendererClosed = errors.New("gpu: renderer is closed")

	// ErrFrameTimeout is returned when a frame's fence does not signal
	// within the wait timeout.
	ErrFrameTimeout = errors.New("gpu: timed out waiting for frame fence")

	// ErrNilTarget is returned when Submit is given a nil target view.
	ErrNilTarget = errors.New("gpu: target view is nil")
)

// indirectArgsStride is the byte size of one indexed indirect argument
// record (five 32-bit values).
const indirectArgsStride = 20

// RendererConfig holds configuration for the indirect renderer.
type RendererConfig struct {
	// FramesInFlight is the number of frames that may be on the GPU at
	// once before Submit blocks. Default: 2
	FramesInFlight int

	// TargetFormat is the color format of render targets passed to
	// Submit. Default: RGBA8Unorm
	TargetFormat gputypes.TextureFormat

	// ClearColor fills the target before the frame's draws.
	ClearColor gputypes.Color
}

// DefaultRendererConfig returns default configuration.
func DefaultRendererConfig() RendererConfig {
	return RendererConfig{
		FramesInFlight: 2,
		TargetFormat:   gputypes.TextureFormatRGBA8Unorm,
	}
}

// Renderer draws built frames with a single queue submission each. All of a
// submission's draws go through one indirect pass: geometry lives in the
// merged vertex/index buffers, per-draw parameters in a storage array the
// vertex stage indexes by instance_index, and the indexed draw arguments in
// an indirect buffer consumed at a fixed stride.
//
// Per-frame GPU buffers come from a size-classed pool and return to it once
// the frame's fence signals, so steady-state frames allocate nothing.
type Renderer struct {
	mu sync.Mutex

	device hal.Device
	queue  hal.Queue
	atlas  *Atlas

	cfg      RendererConfig
	pipeline *batchPipeline
	pool     *bufferPool

	slots []frameSlot
	next  int

	closed bool
}

// NewRenderer creates a renderer on the backend's device. Zero-valued config
// fields are replaced with defaults.
func NewRenderer(backend *Backend, atlas *Atlas, cfg RendererConfig) (*Renderer, error) {
	if backend == nil || !backend.IsInitialized() {
		return nil, ErrNotInitialized
	}
	if atlas == nil {
		return nil, fmt.Errorf("gpu: atlas is nil")
	}
	def := DefaultRendererConfig()
	if cfg.FramesInFlight <= 0 {
		cfg.FramesInFlight = def.FramesInFlight
	}
	if cfg.TargetFormat == 0 {
		cfg.TargetFormat = def.TargetFormat
	}

	pipeline, err := newBatchPipeline(backend.Device(), cfg.TargetFormat)
	if err != nil {
		return nil, err
	}

	return &Renderer{
		device:   backend.Device(),
		queue:    backend.Queue(),
		atlas:    atlas,
		cfg:      cfg,
		pipeline: pipeline,
		pool:     newBufferPool(),
		slots:    make([]frameSlot, cfg.FramesInFlight),
	}, nil
}

// Submit encodes and submits the frame's submissions to target in one queue
// submission. It blocks only when all frame slots are still in flight.
//
// An empty frame (zero draws) still clears the target but issues no draw
// calls.
func (r *Renderer) Submit(target hal.TextureView, frames []*uibatch.Frame) error {
	if target == nil {
		return ErrNilTarget
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRendererClosed
	}

	slot := &r.slots[r.next]
	r.next = (r.next + 1) % len(r.slots)

	completedSeq, err := slot.wait(r.device, r.pool)
	if err != nil {
		return err
	}
	if completedSeq > 0 {
		r.atlas.Reclaim(completedSeq)
	}
	slot.atlasSeq = r.atlas.AdvanceFrame()

	if err := r.encodeAndSubmit(slot, target, frames); err != nil {
		// Failed frames retain nothing; hand back what was staged.
		for _, rb := range slot.buffers {
			r.pool.put(rb.props, rb.buf)
		}
		slot.buffers = slot.buffers[:0]
		for _, bg := range slot.bindGroups {
			r.device.DestroyBindGroup(bg)
		}
		slot.bindGroups = slot.bindGroups[:0]
		return err
	}
	return nil
}

// submissionResources holds the per-submission buffers bound during the
// indirect pass.
type submissionResources struct {
	vertexBuf   hal.Buffer
	indexBuf    hal.Buffer
	indirectBuf hal.Buffer
	bindGroup   hal.BindGroup
	drawCount   int
}

func (r *Renderer) encodeAndSubmit(slot *frameSlot, target hal.TextureView, frames []*uibatch.Frame) error {
	resources := make([]submissionResources, 0, len(frames))
	for _, frame := range frames {
		res, err := r.buildSubmission(slot, frame)
		if err != nil {
			return err
		}
		resources = append(resources, res)
	}

	encoder, err := r.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "uibatch_encoder",
	})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("uibatch_frame"); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}

	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "uibatch_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       target,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: r.cfg.ClearColor,
		}},
	})
	for _, res := range resources {
		if res.drawCount == 0 {
			continue
		}
		rp.SetPipeline(r.pipeline.pipeline)
		rp.SetBindGroup(0, res.bindGroup, nil)
		rp.SetVertexBuffer(0, res.vertexBuf, 0)
		rp.SetIndexBuffer(res.indexBuf, gputypes.IndexFormatUint32, 0)
		for i := 0; i < res.drawCount; i++ {
			rp.DrawIndexedIndirect(res.indirectBuf, uint64(i)*indirectArgsStride)
		}
	}
	rp.End()

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}

	fence, err := r.device.CreateFence()
	if err != nil {
		r.device.FreeCommandBuffer(cmdBuf)
		return fmt.Errorf("create fence: %w", err)
	}

	if err := r.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		r.device.FreeCommandBuffer(cmdBuf)
		r.device.DestroyFence(fence)
		return fmt.Errorf("submit: %w", err)
	}

	slot.cmdBuf = cmdBuf
	slot.fence = fence
	slot.fenceValue = 1
	slot.pending = true

	slogger().Debug("gpu: frame submitted",
		"submissions", len(resources), "draws", totalDraws(frames))
	return nil
}

// buildSubmission uploads one submission's buffers and creates its bind
// group. Buffers are staged on the slot so they return to the pool when the
// frame completes.
func (r *Renderer) buildSubmission(slot *frameSlot, frame *uibatch.Frame) (submissionResources, error) {
	res := submissionResources{drawCount: frame.DrawCount()}
	if res.drawCount == 0 {
		return res, nil
	}

	globalsBuf, err := r.stageBuffer(slot, "uibatch_globals",
		encodeGlobals(frame.SurfaceWidth, frame.SurfaceHeight),
		gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst)
	if err != nil {
		return res, err
	}
	res.vertexBuf, err = r.stageBuffer(slot, "uibatch_vertices", frame.VertexBytes(),
		gputypes.BufferUsageVertex|gputypes.BufferUsageCopyDst)
	if err != nil {
		return res, err
	}
	res.indexBuf, err = r.stageBuffer(slot, "uibatch_indices", frame.IndexBytes(),
		gputypes.BufferUsageIndex|gputypes.BufferUsageCopyDst)
	if err != nil {
		return res, err
	}
	commandBytes := frame.CommandBytes()
	drawsBuf, err := r.stageBuffer(slot, "uibatch_draws", commandBytes,
		gputypes.BufferUsageStorage|gputypes.BufferUsageCopyDst)
	if err != nil {
		return res, err
	}
	res.indirectBuf, err = r.stageBuffer(slot, "uibatch_indirect", encodeIndirectArgs(frame.Commands),
		gputypes.BufferUsageIndirect|gputypes.BufferUsageCopyDst)
	if err != nil {
		return res, err
	}

	res.bindGroup, err = r.pipeline.createBindGroup(globalsBuf, drawsBuf, uint64(len(commandBytes)), r.atlas.View())
	if err != nil {
		return res, err
	}
	slot.bindGroups = append(slot.bindGroups, res.bindGroup)
	return res, nil
}

// stageBuffer takes a pooled buffer, uploads data into it, and records it on
// the slot for release after the frame completes.
func (r *Renderer) stageBuffer(slot *frameSlot, label string, data []byte, usage gputypes.BufferUsage) (hal.Buffer, error) {
	buf, props, err := r.pool.get(r.device, label, uint64(len(data)), usage)
	if err != nil {
		return nil, err
	}
	slot.buffers = append(slot.buffers, retainedBuffer{props: props, buf: buf})
	r.queue.WriteBuffer(buf, 0, data)
	return buf, nil
}

// Flush waits for every in-flight frame and reclaims released atlas layers.
func (r *Renderer) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushLocked()
}

func (r *Renderer) flushLocked() error {
	var firstErr error
	for i := range r.slots {
		completedSeq, err := r.slots[i].wait(r.device, r.pool)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		if completedSeq > 0 {
			r.atlas.Reclaim(completedSeq)
		}
	}
	return firstErr
}

// Close waits for in-flight frames and releases renderer resources. Safe to
// call multiple times.
func (r *Renderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true

	_ = r.flushLocked()
	r.pool.destroy(r.device)
	r.pipeline.destroy()
}

// encodeGlobals packs the Globals uniform block: surface size as two f32
// plus padding to 16 bytes.
func encodeGlobals(width, height uint32) []byte {
	buf := make([]byte, globalsUniformSize)
	binary.LittleEndian.PutUint32(buf[0:], math.Float32bits(float32(width)))
	binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(float32(height)))
	return buf
}

// encodeIndirectArgs packs one indexed indirect argument record per draw.
// FirstInstance carries the draw's index so instance_index addresses the
// matching parameter record in the storage array.
func encodeIndirectArgs(commands []uibatch.DrawCommand) []byte {
	buf := make([]byte, len(commands)*indirectArgsStride)
	for i, cmd := range commands {
		off := i * indirectArgsStride
		binary.LittleEndian.PutUint32(buf[off+0:], cmd.Count)
		binary.LittleEndian.PutUint32(buf[off+4:], cmd.InstanceCount)
		binary.LittleEndian.PutUint32(buf[off+8:], cmd.FirstIndex)
		binary.LittleEndian.PutUint32(buf[off+12:], uint32(cmd.BaseVertex))
		binary.LittleEndian.PutUint32(buf[off+16:], uint32(i))
	}
	return buf
}

func totalDraws(frames []*uibatch.Frame) int {
	n := 0
	for _, f := range frames {
		n += f.DrawCount()
	}
	return n
}
