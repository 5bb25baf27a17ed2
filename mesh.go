package uibatch

import (
	"errors"
	"fmt"
)

// Mesh validation errors.
var (
	// ErrIndexOutOfRange is returned when a mesh index references a vertex
	// beyond the mesh's vertex list.
	ErrIndexOutOfRange = errors.New("uibatch: mesh index out of range")

	// ErrIndexCountNotTriangles is returned when a mesh's index count is not
	// a multiple of three.
	ErrIndexCountNotTriangles = errors.New("uibatch: mesh index count is not a multiple of 3")
)

// TextureID is an opaque identifier for a texture registered with the atlas.
// IDs are assigned by the atlas at registration and stay valid until the
// texture is released.
type TextureID uint64

// Mesh is a list of vertices plus a triangle-list index array referencing
// them. Indices are local to the mesh; the batch builder addresses the mesh
// inside the merged buffers via base-vertex/first-index offsets, so indices
// are never rewritten on the CPU.
type Mesh struct {
	Vertices []Vertex
	Indices  []uint32
}

// Validate checks that the mesh forms whole triangles and that every index
// references an existing vertex.
func (m *Mesh) Validate() error {
	if len(m.Indices)%3 != 0 {
		return fmt.Errorf("%w: %d indices", ErrIndexCountNotTriangles, len(m.Indices))
	}
	n := uint32(len(m.Vertices)) //nolint:gosec // vertex counts are far below uint32 range
	for _, idx := range m.Indices {
		if idx >= n {
			return fmt.Errorf("%w: index %d, %d vertices", ErrIndexOutOfRange, idx, n)
		}
	}
	return nil
}

// PaintJob is one ordered unit of GUI output: a mesh, the texture it samples,
// and an axis-aligned clip rectangle in surface pixels. The position of a job
// in the frame's list is its paint order; blending correctness depends on
// jobs drawing in exactly that order.
type PaintJob struct {
	Mesh    Mesh
	Texture TextureID
	Clip    Rect
}
