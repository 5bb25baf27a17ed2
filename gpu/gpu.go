//go:build !nogpu

// Package gpu is the high-level entry point of the compositor: it owns the
// GPU backend, the texture atlas, the frame batcher, and the indirect
// renderer, and exposes them behind a small Compositor API.
//
// Headless use brings up a device through the Vulkan backend:
//
//	c, err := gpu.New(gpu.Config{})
//	defer c.Close()
//
// Hosts that already own a GPU device share it instead:
//
//	c, err := gpu.NewWithDevice(provider, gpu.Config{})
package gpu

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/uibatch"
	gpuimpl "github.com/gogpu/uibatch/internal/gpu"
	"github.com/gogpu/uibatch/render"
)

// ErrCompositorClosed is returned when using a closed compositor.
var ErrCompositorClosed = errors.New("gpu: compositor is closed")

// Config holds compositor configuration. Zero-valued fields are replaced
// with defaults.
type Config struct {
	// MaxTextureWidth and MaxTextureHeight fix the atlas layer size; no
	// registered texture may exceed them. Default: 2048x2048
	MaxTextureWidth  uint32
	MaxTextureHeight uint32

	// TextureLayers is the number of atlas layers, bounding how many
	// textures may be live at once. Default: 16
	TextureLayers uint32

	// FramesInFlight is how many frames may be on the GPU before
	// RenderFrame blocks. Default: 2
	FramesInFlight int

	// MaxDrawsPerSubmission splits frames that exceed it into multiple
	// ordered submissions. Zero means unlimited.
	MaxDrawsPerSubmission int

	// ClearColor fills the target before each frame.
	ClearColor gputypes.Color

	// TargetFormat is the render target color format.
	// Default: RGBA8Unorm
	TargetFormat gputypes.TextureFormat
}

// Compositor batches UI paint jobs into merged buffers and draws each frame
// with one queue submission. Methods are safe for concurrent use, though
// frame building itself is serialized.
type Compositor struct {
	mu sync.Mutex

	backend  *gpuimpl.Backend
	atlas    *gpuimpl.Atlas
	batch    *uibatch.Batch
	renderer *gpuimpl.Renderer

	target *gpuimpl.RenderTarget

	cfg    Config
	closed bool
}

// New creates a compositor with its own GPU device.
func New(cfg Config) (*Compositor, error) {
	backend := gpuimpl.NewBackend()
	if err := backend.Init(); err != nil {
		return nil, err
	}
	c, err := newCompositor(backend, cfg)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return c, nil
}

// NewWithDevice creates a compositor on a device shared by the host
// application. The provider must expose the underlying HAL device and queue
// (see render.HALFromProvider). Shared devices are never destroyed on Close.
func NewWithDevice(provider any, cfg Config) (*Compositor, error) {
	device, queue, err := render.HALFromProvider(provider)
	if err != nil {
		return nil, err
	}
	backend, err := gpuimpl.NewBackendWithDevice(device, queue)
	if err != nil {
		return nil, err
	}
	c, err := newCompositor(backend, cfg)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return c, nil
}

func newCompositor(backend *gpuimpl.Backend, cfg Config) (*Compositor, error) {
	atlas, err := gpuimpl.NewAtlas(backend.Device(), backend.Queue(), gpuimpl.AtlasConfig{
		MaxWidth:  cfg.MaxTextureWidth,
		MaxHeight: cfg.MaxTextureHeight,
		Layers:    cfg.TextureLayers,
	})
	if err != nil {
		return nil, err
	}

	batch, err := uibatch.NewBatch(atlas, uibatch.BatchConfig{
		MaxDrawsPerSubmission: cfg.MaxDrawsPerSubmission,
	})
	if err != nil {
		atlas.Close()
		return nil, err
	}

	renderer, err := gpuimpl.NewRenderer(backend, atlas, gpuimpl.RendererConfig{
		FramesInFlight: cfg.FramesInFlight,
		TargetFormat:   cfg.TargetFormat,
		ClearColor:     cfg.ClearColor,
	})
	if err != nil {
		atlas.Close()
		return nil, err
	}

	return &Compositor{
		backend:  backend,
		atlas:    atlas,
		batch:    batch,
		renderer: renderer,
		cfg:      cfg,
	}, nil
}

// AdapterName returns the GPU adapter's name, or "" for shared devices.
func (c *Compositor) AdapterName() string {
	return c.backend.AdapterName()
}

// RegisterTexture allocates an atlas layer for id and uploads its RGBA
// pixels (tightly packed, 4 bytes per pixel). Oversized textures fail here,
// never mid-frame.
func (c *Compositor) RegisterTexture(id uibatch.TextureID, width, height uint32, pixels []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrCompositorClosed
	}
	if _, err := c.atlas.Allocate(id, width, height); err != nil {
		return err
	}
	if pixels == nil {
		return nil
	}
	if err := c.atlas.Upload(id, pixels); err != nil {
		// Keep registration atomic: a failed upload leaves no slot behind.
		_ = c.atlas.Release(id)
		return err
	}
	return nil
}

// RegisterImage registers img under id, converting to RGBA as needed.
func (c *Compositor) RegisterImage(id uibatch.TextureID, img image.Image) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrCompositorClosed
	}
	bounds := img.Bounds()
	if _, err := c.atlas.Allocate(id, uint32(bounds.Dx()), uint32(bounds.Dy())); err != nil {
		return err
	}
	if err := c.atlas.UploadImage(id, img); err != nil {
		_ = c.atlas.Release(id)
		return err
	}
	return nil
}

// UpdateTexture replaces the pixel contents of an already registered
// texture at its native size.
func (c *Compositor) UpdateTexture(id uibatch.TextureID, pixels []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrCompositorClosed
	}
	return c.atlas.Upload(id, pixels)
}

// ReleaseTexture frees id's atlas layer. The layer becomes reusable only
// once every frame that may reference it has completed on the GPU.
func (c *Compositor) ReleaseTexture(id uibatch.TextureID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrCompositorClosed
	}
	return c.atlas.Release(id)
}

// TestPattern selects a generated debug texture.
type TestPattern int

const (
	// PatternCheckerboard is a magenta/black checkerboard, the stand-in
	// for missing textures.
	PatternCheckerboard TestPattern = iota

	// PatternXOR is the grayscale x^y gradient.
	PatternXOR

	// PatternRGB ramps red along X and green along Y.
	PatternRGB
)

// RegisterTestPattern registers a size x size generated debug texture.
func (c *Compositor) RegisterTestPattern(id uibatch.TextureID, pattern TestPattern, size uint32) error {
	pixels, err := patternPixels(pattern, size)
	if err != nil {
		return err
	}
	return c.RegisterTexture(id, size, size, pixels)
}

func patternPixels(pattern TestPattern, size uint32) ([]byte, error) {
	switch pattern {
	case PatternCheckerboard:
		return gpuimpl.CheckerboardPixels(int(size), 3), nil
	case PatternXOR:
		return gpuimpl.XorPixels(int(size)), nil
	case PatternRGB:
		return gpuimpl.RGBSlicePixels(int(size)), nil
	default:
		return nil, fmt.Errorf("gpu: unknown test pattern %d", pattern)
	}
}

// RenderFrame batches jobs in order and draws them to the compositor's
// offscreen target in a single queue submission (one per split when a
// submission cap is configured).
func (c *Compositor) RenderFrame(jobs []uibatch.PaintJob, width, height uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrCompositorClosed
	}

	if err := c.ensureTarget(width, height); err != nil {
		return err
	}
	frames, err := c.buildFrames(jobs, width, height)
	if err != nil {
		return err
	}
	return c.renderer.Submit(c.target.View(), frames)
}

// RenderToImage renders jobs and reads the finished frame back into a new
// RGBA image. It waits for the GPU, so it is meant for verification and
// headless capture rather than per-frame use.
func (c *Compositor) RenderToImage(jobs []uibatch.PaintJob, width, height uint32) (*image.RGBA, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrCompositorClosed
	}

	if err := c.ensureTarget(width, height); err != nil {
		return nil, err
	}
	frames, err := c.buildFrames(jobs, width, height)
	if err != nil {
		return nil, err
	}
	if err := c.renderer.Submit(c.target.View(), frames); err != nil {
		return nil, err
	}
	if err := c.renderer.Flush(); err != nil {
		return nil, err
	}

	pixels, err := c.target.ReadPixels()
	if err != nil {
		return nil, err
	}
	target := render.NewPixmapTarget(int(width), int(height))
	target.SetPixels(pixels)
	return target.Image(), nil
}

func (c *Compositor) buildFrames(jobs []uibatch.PaintJob, width, height uint32) ([]*uibatch.Frame, error) {
	if err := c.batch.Begin(width, height); err != nil {
		return nil, err
	}
	for _, job := range jobs {
		if err := c.batch.Append(job); err != nil {
			// Abandon the half-built frame so the next Begin succeeds.
			_, _ = c.batch.End()
			return nil, err
		}
	}
	return c.batch.End()
}

// ensureTarget lazily (re)creates the offscreen target at the frame size.
func (c *Compositor) ensureTarget(width, height uint32) error {
	if c.target != nil && c.target.Width() == width && c.target.Height() == height {
		return nil
	}
	if c.target != nil {
		// The old target may still be referenced by in-flight frames.
		if err := c.renderer.Flush(); err != nil {
			return err
		}
		c.target.Close()
		c.target = nil
	}
	target, err := gpuimpl.NewRenderTarget(c.backend, width, height, c.cfg.TargetFormat)
	if err != nil {
		return err
	}
	c.target = target
	return nil
}

// Flush waits for every in-flight frame.
func (c *Compositor) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrCompositorClosed
	}
	return c.renderer.Flush()
}

// Close waits for the GPU and releases all compositor resources. Safe to
// call multiple times.
func (c *Compositor) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true

	c.renderer.Close()
	if c.target != nil {
		c.target.Close()
		c.target = nil
	}
	c.atlas.Close()
	c.backend.Close()
}
