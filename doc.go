// Package uibatch merges a frame of immediate-mode GUI draw primitives into
// shared GPU buffers so the whole frame renders with a single indirect
// multi-draw submission.
//
// # Overview
//
// Immediate-mode UI libraries emit many small textured-triangle meshes per
// frame, each with its own texture and clip rectangle. Issuing one draw call
// per mesh wastes CPU on per-draw state changes; batching them into one call
// requires resolving the per-draw state (texture, UV scaling, scissor) inside
// the shading stages instead, because fixed-function state cannot vary within
// a single draw call.
//
// uibatch does exactly that:
//
//   - textures live in layers of a fixed-size array texture
//   - each frame's meshes are packed into one vertex buffer and one index
//     buffer, addressed per draw via base-vertex/first-index offsets
//   - a GPU-resident command buffer carries one fixed-layout record per
//     mesh: draw parameters plus texture layer, UV scale, and clip rectangle
//   - the vertex stage fetches the current draw's record by draw index and
//     the fragment stage discards pixels outside the clip rectangle,
//     replacing the hardware scissor test
//
// # Quick Start
//
//	import (
//	    "github.com/gogpu/uibatch"
//	    ubgpu "github.com/gogpu/uibatch/gpu"
//	)
//
//	comp, err := ubgpu.New(ubgpu.Config{})
//	if err != nil { ... }
//	defer comp.Close()
//
//	const tex uibatch.TextureID = 1
//	err = comp.RegisterImage(tex, img) // assigns an atlas layer
//	jobs := []uibatch.PaintJob{{Mesh: quad, Texture: tex, Clip: clip}}
//	err = comp.RenderFrame(jobs, 800, 600)
//
// # Architecture
//
// The library is organized into:
//   - Public API: PaintJob, Mesh, Vertex, Rect, DrawCommand, Batch
//   - internal/gpu: atlas, pipelines, indirect renderer over gogpu/wgpu
//   - gpu: the Compositor facade tying the pieces together
//   - render: device-sharing integration with gpucontext hosts
//
// # Coordinate System
//
// Vertex positions and clip rectangles are in surface pixels, origin at the
// top-left, X right, Y down. The vertex stage maps positions to normalized
// device coordinates.
package uibatch

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0
)
