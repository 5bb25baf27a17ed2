package uibatch

import (
	"encoding/binary"
	"math"
)

// VertexStride is the byte stride per vertex in the merged vertex buffer.
// Layout per vertex, matching VertexInput in the batch shader:
//
//	position (vec2<f32>)        = 8 bytes  (location 0)
//	uv       (vec2<f32>)        = 8 bytes  (location 1)
//	color    (4 x u8, unorm)    = 4 bytes  (location 2)
//
// Total = 20 bytes per vertex.
const VertexStride = 20

// Vertex is a single GUI mesh vertex. Position and UV are in the units the
// producing UI library uses (surface pixels and [0,1] texture coordinates);
// color is premultiplied RGBA with 0-255 channels, matching the pipeline's
// premultiplied blend state. The unorm vertex format normalizes the channels
// to [0, 1] at fetch.
type Vertex struct {
	// Position in surface pixels, origin top-left.
	X, Y float32

	// UV coordinates relative to the texture's native size, [0, 1].
	U, V float32

	// Color channels, 0-255.
	R, G, B, A uint8
}

// encode writes the vertex into buf in GPU wire layout.
// buf must hold at least VertexStride bytes.
func (v Vertex) encode(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(v.X))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(v.Y))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(v.U))
	binary.LittleEndian.PutUint32(buf[12:16], math.Float32bits(v.V))
	buf[16] = v.R
	buf[17] = v.G
	buf[18] = v.B
	buf[19] = v.A
}

// EncodeVertices serializes vertices into raw bytes for GPU upload.
func EncodeVertices(vertices []Vertex) []byte {
	if len(vertices) == 0 {
		return nil
	}
	data := make([]byte, len(vertices)*VertexStride)
	off := 0
	for _, v := range vertices {
		v.encode(data[off:])
		off += VertexStride
	}
	return data
}

// EncodeIndices serializes u32 indices into raw bytes for GPU upload.
func EncodeIndices(indices []uint32) []byte {
	if len(indices) == 0 {
		return nil
	}
	data := make([]byte, len(indices)*4)
	for i, idx := range indices {
		binary.LittleEndian.PutUint32(data[i*4:], idx)
	}
	return data
}
