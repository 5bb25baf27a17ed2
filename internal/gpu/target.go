//go:build !nogpu

package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// RenderTarget is an offscreen color texture frames are composited into. It
// doubles as a copy source so the result can be read back for verification
// and headless use.
type RenderTarget struct {
	device hal.Device
	queue  hal.Queue

	texture hal.Texture
	view    hal.TextureView

	width  uint32
	height uint32
	format gputypes.TextureFormat
}

// NewRenderTarget creates a single-sample color target of the given size.
func NewRenderTarget(backend *Backend, width, height uint32, format gputypes.TextureFormat) (*RenderTarget, error) {
	if backend == nil || !backend.IsInitialized() {
		return nil, ErrNotInitialized
	}
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("gpu: invalid target size %dx%d", width, height)
	}
	if format == 0 {
		format = gputypes.TextureFormatRGBA8Unorm
	}
	device := backend.Device()

	texture, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         "uibatch_target",
		Size:          hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("create target texture: %w", err)
	}
	view, err := device.CreateTextureView(texture, &hal.TextureViewDescriptor{
		Label: "uibatch_target_view",
	})
	if err != nil {
		device.DestroyTexture(texture)
		return nil, fmt.Errorf("create target view: %w", err)
	}

	return &RenderTarget{
		device:  device,
		queue:   backend.Queue(),
		texture: texture,
		view:    view,
		width:   width,
		height:  height,
		format:  format,
	}, nil
}

// View returns the color attachment view.
func (t *RenderTarget) View() hal.TextureView { return t.view }

// Width returns the target width in pixels.
func (t *RenderTarget) Width() uint32 { return t.width }

// Height returns the target height in pixels.
func (t *RenderTarget) Height() uint32 { return t.height }

// Format returns the target's color format.
func (t *RenderTarget) Format() gputypes.TextureFormat { return t.format }

// ReadPixels copies the target into CPU memory and returns tightly packed
// pixels, 4 bytes per pixel in the target's format. It submits its own copy
// commands and waits for them; call only after the frames drawing into the
// target have completed.
func (t *RenderTarget) ReadPixels() ([]byte, error) {
	// Copy pitch must be 256-byte aligned; strip the padding after readback.
	const copyPitchAlignment = 256
	bytesPerRow := t.width * 4
	alignedBytesPerRow := (bytesPerRow + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
	stagingSize := uint64(alignedBytesPerRow) * uint64(t.height)

	stagingBuf, err := t.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "uibatch_target_staging",
		Size:  stagingSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create staging buffer: %w", err)
	}
	defer t.device.DestroyBuffer(stagingBuf)

	encoder, err := t.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "uibatch_readback_encoder",
	})
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("uibatch_readback"); err != nil {
		return nil, fmt.Errorf("begin encoding: %w", err)
	}

	// The render pass leaves the texture in attachment layout; the copy
	// needs transfer source. Transition there and back.
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: t.texture,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageRenderAttachment,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})
	encoder.CopyTextureToBuffer(t.texture, stagingBuf, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: alignedBytesPerRow, RowsPerImage: t.height},
		TextureBase:  hal.ImageCopyTexture{Texture: t.texture, MipLevel: 0},
		Size:         hal.Extent3D{Width: t.width, Height: t.height, DepthOrArrayLayers: 1},
	}})
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: t.texture,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopySrc,
			NewUsage: gputypes.TextureUsageRenderAttachment,
		},
	}})

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("end encoding: %w", err)
	}
	defer t.device.FreeCommandBuffer(cmdBuf)

	fence, err := t.device.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("create fence: %w", err)
	}
	defer t.device.DestroyFence(fence)

	if err := t.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}
	ok, err := t.device.Wait(fence, 1, fenceWaitTimeout)
	if err != nil {
		return nil, fmt.Errorf("wait for GPU: %w", err)
	}
	if !ok {
		return nil, ErrFrameTimeout
	}

	readback := make([]byte, stagingSize)
	if err := t.queue.ReadBuffer(stagingBuf, 0, readback); err != nil {
		return nil, fmt.Errorf("readback: %w", err)
	}

	pixels := make([]byte, int(bytesPerRow)*int(t.height))
	for row := uint32(0); row < t.height; row++ {
		src := readback[row*alignedBytesPerRow : row*alignedBytesPerRow+bytesPerRow]
		copy(pixels[row*bytesPerRow:], src)
	}
	return pixels, nil
}

// Close releases the target's GPU resources. Safe to call multiple times.
func (t *RenderTarget) Close() {
	if t.view != nil {
		t.device.DestroyTextureView(t.view)
		t.view = nil
	}
	if t.texture != nil {
		t.device.DestroyTexture(t.texture)
		t.texture = nil
	}
}
