// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package render

import (
	"image"
	"image/color"

	"github.com/gogpu/gputypes"
)

// PixmapTarget is a CPU-backed destination for composited frames, wrapping
// an *image.RGBA. Readback paths fill it with the GPU result; pure CPU
// consumers use it directly.
//
// Example:
//
//	target := render.NewPixmapTarget(800, 600)
//	target.SetPixels(pixels)
//	img := target.Image()
type PixmapTarget struct {
	img *image.RGBA
}

// NewPixmapTarget creates a new CPU-backed target.
func NewPixmapTarget(width, height int) *PixmapTarget {
	return &PixmapTarget{
		img: image.NewRGBA(image.Rect(0, 0, width, height)),
	}
}

// NewPixmapTargetFromImage wraps an existing *image.RGBA as a target.
// The image is used directly without copying.
func NewPixmapTargetFromImage(img *image.RGBA) *PixmapTarget {
	return &PixmapTarget{img: img}
}

// Width returns the target width in pixels.
func (t *PixmapTarget) Width() int {
	return t.img.Bounds().Dx()
}

// Height returns the target height in pixels.
func (t *PixmapTarget) Height() int {
	return t.img.Bounds().Dy()
}

// Format returns the pixel format (RGBA8).
func (t *PixmapTarget) Format() gputypes.TextureFormat {
	return gputypes.TextureFormatRGBA8Unorm
}

// Pixels returns direct access to the pixel data.
func (t *PixmapTarget) Pixels() []byte {
	return t.img.Pix
}

// Stride returns the number of bytes per row.
func (t *PixmapTarget) Stride() int {
	return t.img.Stride
}

// Image returns the underlying *image.RGBA.
// The returned image shares memory with the target.
func (t *PixmapTarget) Image() *image.RGBA {
	return t.img
}

// SetPixels copies tightly packed RGBA pixels into the target. Short input
// fills only the leading rows.
func (t *PixmapTarget) SetPixels(pixels []byte) {
	copy(t.img.Pix, pixels)
}

// Clear fills the entire target with the given color.
func (t *PixmapTarget) Clear(c color.Color) {
	r, g, b, a := c.RGBA()
	rgba := color.RGBA{
		R: uint8(r >> 8),
		G: uint8(g >> 8),
		B: uint8(b >> 8),
		A: uint8(a >> 8),
	}
	for y := t.img.Bounds().Min.Y; y < t.img.Bounds().Max.Y; y++ {
		for x := t.img.Bounds().Min.X; x < t.img.Bounds().Max.X; x++ {
			t.img.SetRGBA(x, y, rgba)
		}
	}
}
