package uibatch

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestVertexEncode(t *testing.T) {
	v := Vertex{X: 1.5, Y: -2, U: 0.25, V: 0.75, R: 255, G: 128, B: 0, A: 64}
	buf := make([]byte, VertexStride)
	v.encode(buf)

	f32 := func(off int) float32 {
		return math.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))
	}
	if f32(0) != 1.5 || f32(4) != -2 {
		t.Errorf("position = (%v, %v), want (1.5, -2)", f32(0), f32(4))
	}
	if f32(8) != 0.25 || f32(12) != 0.75 {
		t.Errorf("uv = (%v, %v), want (0.25, 0.75)", f32(8), f32(12))
	}
	if buf[16] != 255 || buf[17] != 128 || buf[18] != 0 || buf[19] != 64 {
		t.Errorf("color bytes = %v, want [255 128 0 64]", buf[16:20])
	}
}

func TestEncodeVerticesLength(t *testing.T) {
	data := EncodeVertices(make([]Vertex, 7))
	if len(data) != 7*VertexStride {
		t.Errorf("len = %d, want %d", len(data), 7*VertexStride)
	}
	if EncodeVertices(nil) != nil {
		t.Error("EncodeVertices(nil) should return nil")
	}
}

func TestEncodeIndices(t *testing.T) {
	data := EncodeIndices([]uint32{0, 1, 0xFFFF0001})
	if len(data) != 12 {
		t.Fatalf("len = %d, want 12", len(data))
	}
	if got := binary.LittleEndian.Uint32(data[8:]); got != 0xFFFF0001 {
		t.Errorf("third index = %#x, want 0xFFFF0001", got)
	}
}

func TestMeshValidate(t *testing.T) {
	quad := Mesh{
		Vertices: make([]Vertex, 4),
		Indices:  []uint32{0, 1, 2, 2, 3, 0},
	}
	if err := quad.Validate(); err != nil {
		t.Errorf("valid quad: %v", err)
	}

	bad := Mesh{Vertices: make([]Vertex, 3), Indices: []uint32{0, 1, 3}}
	if err := bad.Validate(); err == nil {
		t.Error("out-of-range index not rejected")
	}

	odd := Mesh{Vertices: make([]Vertex, 3), Indices: []uint32{0, 1}}
	if err := odd.Validate(); err == nil {
		t.Error("non-triangle index count not rejected")
	}
}
