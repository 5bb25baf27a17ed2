//go:build !nogpu

package gpu

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	xdraw "golang.org/x/image/draw"

	"github.com/gogpu/uibatch"
)

// Atlas errors.
var (
	// ErrAtlasClosed is returned when operating on a closed atlas.
	ErrAtlasClosed = errors.New("gpu: atlas is closed")

	// ErrTextureTooLarge is returned at registration when a texture's
	// native size exceeds the atlas's fixed layer size. The check never
	// happens mid-frame.
	ErrTextureTooLarge = errors.New("gpu: texture exceeds atlas layer size")

	// ErrAtlasFull is returned when no free layer remains.
	ErrAtlasFull = errors.New("gpu: no atlas layer available")

	// ErrTextureExists is returned when allocating an id twice.
	ErrTextureExists = errors.New("gpu: texture id already allocated")

	// ErrUnknownTexture is returned when an id has no atlas slot.
	ErrUnknownTexture = errors.New("gpu: unknown texture id")

	// ErrPixelSizeMismatch is returned when uploaded pixel data does not
	// match the texture's registered native size.
	ErrPixelSizeMismatch = errors.New("gpu: pixel data size mismatch")
)

// atlasBytesPerPixel is fixed by the RGBA8 layer format.
const atlasBytesPerPixel = 4

// AtlasConfig holds configuration for the texture-array atlas. Capacity is
// fixed at construction: texture sizes must be known upfront, oversized
// textures are a registration-time error, never a runtime discovery.
type AtlasConfig struct {
	// MaxWidth is the layer width in pixels. Default: 2048
	MaxWidth uint32

	// MaxHeight is the layer height in pixels. Default: 2048
	MaxHeight uint32

	// Layers is the number of array layers. Default: 16
	Layers uint32
}

// DefaultAtlasConfig returns default configuration.
func DefaultAtlasConfig() AtlasConfig {
	return AtlasConfig{
		MaxWidth:  2048,
		MaxHeight: 2048,
		Layers:    16,
	}
}

// atlasSlot records where a live texture sits and its native size.
type atlasSlot struct {
	layer  uint32
	width  uint32
	height uint32
}

// Atlas owns a fixed-size RGBA8 array texture and maps texture identifiers
// to its layers, one live texture per layer. A texture smaller than the
// layer occupies its top-left corner; the UV scale returned by ResolveLayer
// keeps sampling inside that region.
//
// Released layers go through a quarantine keyed by frame sequence so a layer
// is never reassigned while a draw referencing it may still be in flight on
// the GPU; Reclaim returns quarantined layers to the free list once their
// frame's fence has signaled.
//
// Atlas is safe for concurrent use.
type Atlas struct {
	mu sync.Mutex

	cfg    AtlasConfig
	device hal.Device
	queue  hal.Queue

	texture hal.Texture
	view    hal.TextureView

	slots      map[uibatch.TextureID]atlasSlot
	freeLayers []uint32
	quarantine []quarantinedLayer

	frameSeq uint64
	closed   bool
}

// quarantinedLayer is a released layer waiting for the frame that last
// referenced it to complete.
type quarantinedLayer struct {
	layer uint32
	seq   uint64
}

// NewAtlas creates the array texture and its sampled view. Zero-valued
// config fields are replaced with defaults.
func NewAtlas(device hal.Device, queue hal.Queue, cfg AtlasConfig) (*Atlas, error) {
	if device == nil {
		return nil, ErrNilHALDevice
	}
	def := DefaultAtlasConfig()
	if cfg.MaxWidth == 0 {
		cfg.MaxWidth = def.MaxWidth
	}
	if cfg.MaxHeight == 0 {
		cfg.MaxHeight = def.MaxHeight
	}
	if cfg.Layers == 0 {
		cfg.Layers = def.Layers
	}

	texture, err := device.CreateTexture(&hal.TextureDescriptor{
		Label: "uibatch_atlas",
		Size: hal.Extent3D{
			Width:              cfg.MaxWidth,
			Height:             cfg.MaxHeight,
			DepthOrArrayLayers: cfg.Layers,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create atlas texture: %w", err)
	}

	view, err := device.CreateTextureView(texture, &hal.TextureViewDescriptor{
		Label:           "uibatch_atlas_view",
		Format:          gputypes.TextureFormatRGBA8Unorm,
		Dimension:       gputypes.TextureViewDimension2DArray,
		Aspect:          gputypes.TextureAspectAll,
		MipLevelCount:   1,
		ArrayLayerCount: cfg.Layers,
	})
	if err != nil {
		device.DestroyTexture(texture)
		return nil, fmt.Errorf("create atlas view: %w", err)
	}

	free := make([]uint32, 0, cfg.Layers)
	for layer := uint32(0); layer < cfg.Layers; layer++ {
		free = append(free, layer)
	}

	return &Atlas{
		cfg:        cfg,
		device:     device,
		queue:      queue,
		texture:    texture,
		view:       view,
		slots:      make(map[uibatch.TextureID]atlasSlot),
		freeLayers: free,
	}, nil
}

// Config returns the atlas configuration.
func (a *Atlas) Config() AtlasConfig { return a.cfg }

// View returns the sampled array-texture view bound by the pipelines.
func (a *Atlas) View() hal.TextureView { return a.view }

// Allocate assigns a free layer to id. The texture's native size must fit
// the fixed layer size or the call fails with ErrTextureTooLarge; when no
// layer is free it fails with ErrAtlasFull and the caller may release an
// unused texture or fail the frame. The atlas is never left partially
// updated.
func (a *Atlas) Allocate(id uibatch.TextureID, width, height uint32) (uint32, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return 0, ErrAtlasClosed
	}
	if width == 0 || height == 0 {
		return 0, fmt.Errorf("%w: %dx%d", ErrPixelSizeMismatch, width, height)
	}
	if width > a.cfg.MaxWidth || height > a.cfg.MaxHeight {
		return 0, fmt.Errorf("%w: %dx%d exceeds %dx%d",
			ErrTextureTooLarge, width, height, a.cfg.MaxWidth, a.cfg.MaxHeight)
	}
	if _, exists := a.slots[id]; exists {
		return 0, fmt.Errorf("%w: id %d", ErrTextureExists, id)
	}
	if len(a.freeLayers) == 0 {
		return 0, fmt.Errorf("%w: all %d layers live", ErrAtlasFull, a.cfg.Layers)
	}

	layer := a.freeLayers[len(a.freeLayers)-1]
	a.freeLayers = a.freeLayers[:len(a.freeLayers)-1]
	a.slots[id] = atlasSlot{layer: layer, width: width, height: height}

	slogger().Debug("gpu: atlas layer allocated",
		"id", uint64(id), "layer", layer, "size", fmt.Sprintf("%dx%d", width, height))
	return layer, nil
}

// Upload replaces the contents of id's layer region with RGBA pixels at the
// texture's native size (tightly packed, 4 bytes per pixel).
func (a *Atlas) Upload(id uibatch.TextureID, pixels []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrAtlasClosed
	}
	slot, ok := a.slots[id]
	if !ok {
		return fmt.Errorf("%w: id %d", ErrUnknownTexture, id)
	}
	want := int(slot.width) * int(slot.height) * atlasBytesPerPixel
	if len(pixels) != want {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrPixelSizeMismatch, len(pixels), want)
	}

	a.queue.WriteTexture(
		&hal.ImageCopyTexture{
			Texture:  a.texture,
			MipLevel: 0,
			Origin:   hal.Origin3D{X: 0, Y: 0, Z: slot.layer},
		},
		pixels,
		&hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  slot.width * atlasBytesPerPixel,
			RowsPerImage: slot.height,
		},
		&hal.Extent3D{Width: slot.width, Height: slot.height, DepthOrArrayLayers: 1},
	)
	return nil
}

// UploadImage converts img to tightly packed RGBA and uploads it. The image
// bounds must match the texture's registered native size.
func (a *Atlas) UploadImage(id uibatch.TextureID, img image.Image) error {
	a.mu.Lock()
	slot, ok := a.slots[id]
	closed := a.closed
	a.mu.Unlock()
	if closed {
		return ErrAtlasClosed
	}
	if !ok {
		return fmt.Errorf("%w: id %d", ErrUnknownTexture, id)
	}

	bounds := img.Bounds()
	if bounds.Dx() != int(slot.width) || bounds.Dy() != int(slot.height) {
		return fmt.Errorf("%w: image %dx%d, texture %dx%d",
			ErrPixelSizeMismatch, bounds.Dx(), bounds.Dy(), slot.width, slot.height)
	}

	rgba, isRGBA := img.(*image.RGBA)
	if !isRGBA || rgba.Stride != int(slot.width)*atlasBytesPerPixel {
		converted := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		xdraw.Draw(converted, converted.Bounds(), img, bounds.Min, xdraw.Src)
		rgba = converted
	}
	return a.Upload(id, rgba.Pix)
}

// ResolveLayer implements uibatch.LayerResolver: it returns the layer and
// the UV scale mapping the texture's native size onto the layer size.
func (a *Atlas) ResolveLayer(id uibatch.TextureID) (uibatch.TextureSlot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return uibatch.TextureSlot{}, ErrAtlasClosed
	}
	slot, ok := a.slots[id]
	if !ok {
		return uibatch.TextureSlot{}, fmt.Errorf("%w: id %d", ErrUnknownTexture, id)
	}
	return uibatch.TextureSlot{
		Layer:    slot.layer,
		UVScaleX: float32(slot.width) / float32(a.cfg.MaxWidth),
		UVScaleY: float32(slot.height) / float32(a.cfg.MaxHeight),
	}, nil
}

// Release frees id's slot. The layer is quarantined against the current
// frame sequence and returns to the free list only via Reclaim, so frames
// still in flight keep a stable layer assignment.
func (a *Atlas) Release(id uibatch.TextureID) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrAtlasClosed
	}
	slot, ok := a.slots[id]
	if !ok {
		return fmt.Errorf("%w: id %d", ErrUnknownTexture, id)
	}
	delete(a.slots, id)
	a.quarantine = append(a.quarantine, quarantinedLayer{layer: slot.layer, seq: a.frameSeq})
	return nil
}

// AdvanceFrame marks the start of a new frame and returns its sequence
// number. Layers released from now on stay quarantined until this frame
// completes on the GPU.
func (a *Atlas) AdvanceFrame() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.frameSeq++
	return a.frameSeq
}

// Reclaim returns quarantined layers whose release frame is at or before
// completedSeq to the free list.
func (a *Atlas) Reclaim(completedSeq uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	kept := a.quarantine[:0]
	for _, q := range a.quarantine {
		if q.seq <= completedSeq {
			a.freeLayers = append(a.freeLayers, q.layer)
		} else {
			kept = append(kept, q)
		}
	}
	a.quarantine = kept
}

// LiveCount returns the number of live texture slots.
func (a *Atlas) LiveCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.slots)
}

// FreeLayers returns the number of immediately allocatable layers.
func (a *Atlas) FreeLayers() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.freeLayers)
}

// Close releases the atlas GPU resources. Safe to call multiple times.
func (a *Atlas) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return
	}
	a.closed = true

	if a.view != nil {
		a.device.DestroyTextureView(a.view)
		a.view = nil
	}
	if a.texture != nil {
		a.device.DestroyTexture(a.texture)
		a.texture = nil
	}
	a.slots = nil
	a.freeLayers = nil
	a.quarantine = nil
}
