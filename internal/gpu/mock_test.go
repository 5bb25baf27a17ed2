//go:build !nogpu

package gpu

import (
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Test doubles for the hal device and queue. The hal interfaces are embedded
// so only the methods a test exercises need overriding; calling anything
// else panics and fails the test loudly.

type mockTexture struct {
	hal.Texture
	destroyed bool
}

func (t *mockTexture) Destroy() { t.destroyed = true }

type mockTextureView struct {
	hal.TextureView
	label string
}

func (v *mockTextureView) Destroy() {}

func (v *mockTextureView) NativeHandle() uintptr { return 0 }

type mockBuffer struct {
	hal.Buffer
	size uint64
}

func (b *mockBuffer) Destroy() {}

func (b *mockBuffer) NativeHandle() uintptr { return 0 }

type mockSampler struct {
	hal.Sampler
}

func (s *mockSampler) NativeHandle() uintptr { return 0 }

type mockBindGroup struct {
	hal.BindGroup
}

type mockCommandBuffer struct {
	hal.CommandBuffer
}

type mockDevice struct {
	hal.Device

	buffersCreated    int
	buffersDestroyed  int
	texturesCreated   int
	viewsCreated      int
	fenceWaits        int
	bindGroupsCreated int

	encoders []*mockEncoder
}

func (d *mockDevice) CreateTexture(desc *hal.TextureDescriptor) (hal.Texture, error) {
	d.texturesCreated++
	return &mockTexture{}, nil
}

func (d *mockDevice) DestroyTexture(texture hal.Texture) {
	if t, ok := texture.(*mockTexture); ok {
		t.destroyed = true
	}
}

func (d *mockDevice) CreateTextureView(_ hal.Texture, desc *hal.TextureViewDescriptor) (hal.TextureView, error) {
	d.viewsCreated++
	return &mockTextureView{label: desc.Label}, nil
}

func (d *mockDevice) DestroyTextureView(_ hal.TextureView) {}

func (d *mockDevice) CreateBuffer(desc *hal.BufferDescriptor) (hal.Buffer, error) {
	d.buffersCreated++
	return &mockBuffer{size: desc.Size}, nil
}

func (d *mockDevice) DestroyBuffer(_ hal.Buffer) {
	d.buffersDestroyed++
}

type mockFence struct {
	hal.Fence
}

func (d *mockDevice) Wait(_ hal.Fence, _ uint64, _ time.Duration) (bool, error) {
	d.fenceWaits++
	return true, nil
}

func (d *mockDevice) DestroyFence(_ hal.Fence) {}

func (d *mockDevice) FreeCommandBuffer(_ hal.CommandBuffer) {}

func (d *mockDevice) CreateBindGroup(_ *hal.BindGroupDescriptor) (hal.BindGroup, error) {
	d.bindGroupsCreated++
	return &mockBindGroup{}, nil
}

func (d *mockDevice) DestroyBindGroup(_ hal.BindGroup) {}

func (d *mockDevice) CreateFence() (hal.Fence, error) { return &mockFence{}, nil }

func (d *mockDevice) CreateCommandEncoder(_ *hal.CommandEncoderDescriptor) (hal.CommandEncoder, error) {
	enc := &mockEncoder{pass: &mockRenderPass{}}
	d.encoders = append(d.encoders, enc)
	return enc, nil
}

// mockRenderPass records the draw stream of one render pass.
type mockRenderPass struct {
	hal.RenderPassEncoder

	pipelineSets  int
	bindGroupSets int
	vertexSets    int
	indexSets     int

	// indirectOffsets holds the byte offset of every indirect draw, in
	// recorded order.
	indirectOffsets []uint64

	ended bool
}

func (p *mockRenderPass) SetPipeline(_ hal.RenderPipeline) { p.pipelineSets++ }

func (p *mockRenderPass) SetBindGroup(_ uint32, _ hal.BindGroup, _ []uint32) { p.bindGroupSets++ }

func (p *mockRenderPass) SetVertexBuffer(_ uint32, _ hal.Buffer, _ uint64) { p.vertexSets++ }

func (p *mockRenderPass) SetIndexBuffer(_ hal.Buffer, _ gputypes.IndexFormat, _ uint64) {
	p.indexSets++
}

func (p *mockRenderPass) DrawIndexedIndirect(_ hal.Buffer, offset uint64) {
	p.indirectOffsets = append(p.indirectOffsets, offset)
}

func (p *mockRenderPass) End() { p.ended = true }

type mockEncoder struct {
	hal.CommandEncoder

	pass   *mockRenderPass
	passes int
}

func (e *mockEncoder) BeginEncoding(_ string) error { return nil }

func (e *mockEncoder) BeginRenderPass(_ *hal.RenderPassDescriptor) hal.RenderPassEncoder {
	e.passes++
	return e.pass
}

func (e *mockEncoder) EndEncoding() (hal.CommandBuffer, error) {
	return &mockCommandBuffer{}, nil
}

// textureWrite records one WriteTexture call.
type textureWrite struct {
	layer    uint32
	numBytes int
	width    uint32
	height   uint32
}

type mockQueue struct {
	hal.Queue

	textureWrites []textureWrite
	bufferWrites  int

	submits          int
	submittedBuffers int
}

func (q *mockQueue) WriteTexture(copy *hal.ImageCopyTexture, data []byte, _ *hal.ImageDataLayout, size *hal.Extent3D) error {
	q.textureWrites = append(q.textureWrites, textureWrite{
		layer:    copy.Origin.Z,
		numBytes: len(data),
		width:    size.Width,
		height:   size.Height,
	})
	return nil
}

func (q *mockQueue) WriteBuffer(_ hal.Buffer, _ uint64, _ []byte) error {
	q.bufferWrites++
	return nil
}

func (q *mockQueue) Submit(buffers []hal.CommandBuffer, _ hal.Fence, _ uint64) error {
	q.submits++
	q.submittedBuffers += len(buffers)
	return nil
}
