//go:build !nogpu

package gpu

// Debug texture generators. These fill atlas layers with recognizable
// patterns: the checkerboard stands in for missing textures, the XOR and
// RGB-slice patterns make UV scaling and layer selection mistakes visible
// at a glance.

// CheckerboardPixels returns size x size RGBA pixels alternating magenta
// and black in cells of 1<<cellSizeExp pixels.
func CheckerboardPixels(size int, cellSizeExp uint) []byte {
	cell := 1 << cellSizeExp
	pixels := make([]byte, size*size*atlasBytesPerPixel)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			off := (y*size + x) * atlasBytesPerPixel
			if (x&cell)^(y&cell) == 0 {
				pixels[off+0] = 0xff // magenta
				pixels[off+2] = 0xff
			}
			pixels[off+3] = 0xff
		}
	}
	return pixels
}

// XorPixels returns size x size grayscale RGBA pixels where each channel is
// x XOR y.
func XorPixels(size int) []byte {
	pixels := make([]byte, size*size*atlasBytesPerPixel)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			off := (y*size + x) * atlasBytesPerPixel
			v := byte(x ^ y)
			pixels[off+0] = v
			pixels[off+1] = v
			pixels[off+2] = v
			pixels[off+3] = 0xff
		}
	}
	return pixels
}

// RGBSlicePixels returns size x size RGBA pixels with red increasing along
// X, green along Y, and constant half blue.
func RGBSlicePixels(size int) []byte {
	pixels := make([]byte, size*size*atlasBytesPerPixel)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			off := (y*size + x) * atlasBytesPerPixel
			pixels[off+0] = byte(x)
			pixels[off+1] = byte(y)
			pixels[off+2] = 128
			pixels[off+3] = 0xff
		}
	}
	return pixels
}
