package uibatch

import (
	"encoding/binary"
	"math"
)

// DrawCommandSize is the byte size of one DrawCommand record: 11 fields of
// 4 bytes each. The command buffer is a tightly packed array with this
// stride, read both by the indirect draw machinery and by the vertex stage
// as a storage buffer.
const DrawCommandSize = 44

// DrawCommand is the per-draw record uploaded to the GPU, one per paint job
// in paint order. Must match DrawCommand in uibatch.wgsl byte for byte:
// every field is 4-byte aligned and the order is fixed. The first four
// fields are the indexed-draw parameters; the rest is per-draw metadata the
// shading stages fetch by draw index.
type DrawCommand struct {
	// Count is the number of indices to draw.
	Count uint32

	// InstanceCount is always 1; GUI meshes are never instanced.
	InstanceCount uint32

	// FirstIndex is the offset of the job's first index in the merged
	// index buffer.
	FirstIndex uint32

	// BaseVertex is added to every index, addressing the job's vertices
	// inside the merged vertex buffer.
	BaseVertex int32

	// TextureLayer selects the atlas array layer to sample.
	TextureLayer uint32

	// UVScaleX and UVScaleY map the job's [0,1] UVs onto the portion of
	// the layer its texture actually occupies (native size / layer size).
	UVScaleX float32
	UVScaleY float32

	// Scissor rectangle in surface pixels, bottom-left origin. Fragments
	// outside it are discarded.
	ScissorX float32
	ScissorY float32
	ScissorW float32
	ScissorH float32
}

// encode writes the command into buf in GPU wire layout.
// buf must hold at least DrawCommandSize bytes.
func (c DrawCommand) encode(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], c.Count)
	binary.LittleEndian.PutUint32(buf[4:8], c.InstanceCount)
	binary.LittleEndian.PutUint32(buf[8:12], c.FirstIndex)
	binary.LittleEndian.PutUint32(buf[12:16], uint32(c.BaseVertex)) //nolint:gosec // two's complement wire encoding
	binary.LittleEndian.PutUint32(buf[16:20], c.TextureLayer)
	binary.LittleEndian.PutUint32(buf[20:24], math.Float32bits(c.UVScaleX))
	binary.LittleEndian.PutUint32(buf[24:28], math.Float32bits(c.UVScaleY))
	binary.LittleEndian.PutUint32(buf[28:32], math.Float32bits(c.ScissorX))
	binary.LittleEndian.PutUint32(buf[32:36], math.Float32bits(c.ScissorY))
	binary.LittleEndian.PutUint32(buf[36:40], math.Float32bits(c.ScissorW))
	binary.LittleEndian.PutUint32(buf[40:44], math.Float32bits(c.ScissorH))
}

// EncodeCommands serializes commands into raw bytes for GPU upload.
// The result is a packed array with stride DrawCommandSize.
func EncodeCommands(commands []DrawCommand) []byte {
	if len(commands) == 0 {
		return nil
	}
	data := make([]byte, len(commands)*DrawCommandSize)
	off := 0
	for _, c := range commands {
		c.encode(data[off:])
		off += DrawCommandSize
	}
	return data
}
