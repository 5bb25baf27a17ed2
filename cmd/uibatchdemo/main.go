// Command uibatchdemo renders a grid of textured, clipped quads through the
// batched compositor and writes the result to a PNG.
package main

import (
	"flag"
	"image/png"
	"log"
	"os"

	"github.com/gogpu/uibatch"
	"github.com/gogpu/uibatch/gpu"
)

const (
	texCheckerboard uibatch.TextureID = iota + 1
	texXOR
	texRGB
)

func main() {
	var (
		width  = flag.Uint("width", 800, "image width")
		height = flag.Uint("height", 600, "image height")
		output = flag.String("output", "uibatch.png", "output file")
	)
	flag.Parse()

	c, err := gpu.New(gpu.Config{})
	if err != nil {
		log.Fatalf("Failed to create compositor: %v", err)
	}
	defer c.Close()
	log.Printf("Rendering on %s", c.AdapterName())

	for id, pattern := range map[uibatch.TextureID]gpu.TestPattern{
		texCheckerboard: gpu.PatternCheckerboard,
		texXOR:          gpu.PatternXOR,
		texRGB:          gpu.PatternRGB,
	} {
		if err := c.RegisterTestPattern(id, pattern, 256); err != nil {
			log.Fatalf("Failed to register texture %d: %v", id, err)
		}
	}

	jobs := buildJobs(float32(*width), float32(*height))
	img, err := c.RenderToImage(jobs, uint32(*width), uint32(*height))
	if err != nil {
		log.Fatalf("Failed to render: %v", err)
	}

	f, err := os.Create(*output)
	if err != nil {
		log.Fatalf("Failed to create %s: %v", *output, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		log.Fatalf("Failed to encode PNG: %v", err)
	}
	log.Printf("Demo saved to %s (%dx%d, %d draws)", *output, *width, *height, len(jobs))
}

// buildJobs lays the three test textures out in a row, then adds a fourth
// quad whose clip rect cuts it in half to show per-draw clipping.
func buildJobs(w, h float32) []uibatch.PaintJob {
	full := uibatch.Rect{X: 0, Y: 0, W: w, H: h}
	jobs := []uibatch.PaintJob{
		{Mesh: quad(40, 40, 200), Texture: texCheckerboard, Clip: full},
		{Mesh: quad(300, 40, 200), Texture: texXOR, Clip: full},
		{Mesh: quad(560, 40, 200), Texture: texRGB, Clip: full},
	}

	clipped := quad(300, 320, 200)
	jobs = append(jobs, uibatch.PaintJob{
		Mesh:    clipped,
		Texture: texCheckerboard,
		Clip:    uibatch.Rect{X: 300, Y: 320, W: 100, H: 200},
	})
	return jobs
}

// quad returns a size x size textured quad at (x, y) with full UV range and
// opaque white vertex color.
func quad(x, y, size float32) uibatch.Mesh {
	v := func(px, py, u, vv float32) uibatch.Vertex {
		return uibatch.Vertex{X: px, Y: py, U: u, V: vv, R: 255, G: 255, B: 255, A: 255}
	}
	return uibatch.Mesh{
		Vertices: []uibatch.Vertex{
			v(x, y, 0, 0),
			v(x+size, y, 1, 0),
			v(x+size, y+size, 1, 1),
			v(x, y+size, 0, 1),
		},
		Indices: []uint32{0, 1, 2, 0, 2, 3},
	}
}
