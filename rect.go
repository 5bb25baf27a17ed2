package uibatch

import "math"

// Rect is an axis-aligned rectangle in surface pixels, origin top-left.
type Rect struct {
	X, Y, W, H float32
}

// MaxX returns the right edge.
func (r Rect) MaxX() float32 { return r.X + r.W }

// MaxY returns the bottom edge.
func (r Rect) MaxY() float32 { return r.Y + r.H }

// Empty reports whether the rectangle covers no area.
func (r Rect) Empty() bool { return r.W <= 0 || r.H <= 0 }

// clampScissor converts a clip rectangle into the scissor record stored in a
// DrawCommand. Edges are rounded to whole pixels and clamped to the surface,
// and the Y origin is flipped to the bottom-left convention the fragment
// stage tests against. The max edges clamp against the already-clamped min
// edges so a fully off-surface clip degenerates to a zero-area scissor
// rather than a negative one.
func clampScissor(clip Rect, surfaceW, surfaceH uint32) (x, y, w, h float32) {
	fw := float32(surfaceW)
	fh := float32(surfaceH)

	minX := clampF(roundF(clip.X), 0, fw)
	minY := clampF(roundF(clip.Y), 0, fh)
	maxX := clampF(roundF(clip.MaxX()), minX, fw)
	maxY := clampF(roundF(clip.MaxY()), minY, fh)

	return minX, fh - maxY, maxX - minX, maxY - minY
}

func roundF(v float32) float32 {
	return float32(math.Round(float64(v)))
}

func clampF(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
