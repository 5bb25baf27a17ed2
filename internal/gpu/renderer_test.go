//go:build !nogpu

package gpu

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/gogpu/uibatch"
)

func TestEncodeGlobals(t *testing.T) {
	buf := encodeGlobals(800, 600)
	if len(buf) != globalsUniformSize {
		t.Fatalf("len = %d, want %d", len(buf), globalsUniformSize)
	}
	w := math.Float32frombits(binary.LittleEndian.Uint32(buf[0:]))
	h := math.Float32frombits(binary.LittleEndian.Uint32(buf[4:]))
	if w != 800 || h != 600 {
		t.Errorf("surface size = (%v, %v), want (800, 600)", w, h)
	}
}

func TestEncodeIndirectArgs(t *testing.T) {
	commands := []uibatch.DrawCommand{
		{Count: 6, InstanceCount: 1, FirstIndex: 0, BaseVertex: 0},
		{Count: 9, InstanceCount: 1, FirstIndex: 6, BaseVertex: -4},
	}
	buf := encodeIndirectArgs(commands)
	if len(buf) != 2*indirectArgsStride {
		t.Fatalf("len = %d, want %d", len(buf), 2*indirectArgsStride)
	}

	// Second record starts at one stride.
	off := indirectArgsStride
	if got := binary.LittleEndian.Uint32(buf[off+0:]); got != 9 {
		t.Errorf("indexCount = %d, want 9", got)
	}
	if got := binary.LittleEndian.Uint32(buf[off+4:]); got != 1 {
		t.Errorf("instanceCount = %d, want 1", got)
	}
	if got := binary.LittleEndian.Uint32(buf[off+8:]); got != 6 {
		t.Errorf("firstIndex = %d, want 6", got)
	}
	if got := int32(binary.LittleEndian.Uint32(buf[off+12:])); got != -4 {
		t.Errorf("baseVertex = %d, want -4", got)
	}
	// firstInstance carries the draw index for instance_index addressing.
	if got := binary.LittleEndian.Uint32(buf[off+16:]); got != 1 {
		t.Errorf("firstInstance = %d, want 1", got)
	}
	if got := binary.LittleEndian.Uint32(buf[16:]); got != 0 {
		t.Errorf("first record firstInstance = %d, want 0", got)
	}
}

func TestEncodeMeshParams(t *testing.T) {
	buf := encodeMeshParams(uibatch.DrawCommand{UVScaleX: 0.5, UVScaleY: 0.25, TextureLayer: 7})
	if len(buf) != meshParamsSize {
		t.Fatalf("len = %d, want %d", len(buf), meshParamsSize)
	}
	if got := math.Float32frombits(binary.LittleEndian.Uint32(buf[0:])); got != 0.5 {
		t.Errorf("uvScaleX = %v, want 0.5", got)
	}
	if got := math.Float32frombits(binary.LittleEndian.Uint32(buf[4:])); got != 0.25 {
		t.Errorf("uvScaleY = %v, want 0.25", got)
	}
	if got := binary.LittleEndian.Uint32(buf[8:]); got != 7 {
		t.Errorf("layer = %d, want 7", got)
	}
}

func TestScissorTopLeft(t *testing.T) {
	// A rect 10 px tall whose bottom edge sits 530 px above the bottom of a
	// 600 px surface starts 60 px from the top.
	cmd := uibatch.DrawCommand{ScissorX: 20, ScissorY: 530, ScissorW: 100, ScissorH: 10}
	x, y, w, h := scissorTopLeft(cmd, 600)
	if x != 20 || y != 60 || w != 100 || h != 10 {
		t.Errorf("scissor = (%d, %d, %d, %d), want (20, 60, 100, 10)", x, y, w, h)
	}

	// Full-surface scissor maps to the full surface.
	cmd = uibatch.DrawCommand{ScissorX: 0, ScissorY: 0, ScissorW: 800, ScissorH: 600}
	x, y, w, h = scissorTopLeft(cmd, 600)
	if x != 0 || y != 0 || w != 800 || h != 600 {
		t.Errorf("scissor = (%d, %d, %d, %d), want (0, 0, 800, 600)", x, y, w, h)
	}
}

// newSubmitRenderer wires a renderer onto recording mocks, bypassing shader
// compilation: the pipeline only needs a device and sampler handle for bind
// group creation.
func newSubmitRenderer(t *testing.T) (*Renderer, *mockDevice, *mockQueue) {
	t.Helper()
	device := &mockDevice{}
	queue := &mockQueue{}
	atlas, err := NewAtlas(device, queue, AtlasConfig{MaxWidth: 64, MaxHeight: 64, Layers: 2})
	if err != nil {
		t.Fatalf("NewAtlas: %v", err)
	}
	t.Cleanup(atlas.Close)

	r := &Renderer{
		device:   device,
		queue:    queue,
		atlas:    atlas,
		cfg:      DefaultRendererConfig(),
		pipeline: &batchPipeline{device: device, sampler: &mockSampler{}},
		pool:     newBufferPool(),
		slots:    make([]frameSlot, 2),
	}
	return r, device, queue
}

// submitFrame builds a frame with the given number of quads worth of draws.
func submitFrame(draws int) *uibatch.Frame {
	f := &uibatch.Frame{SurfaceWidth: 800, SurfaceHeight: 600}
	for i := 0; i < draws; i++ {
		f.Commands = append(f.Commands, uibatch.DrawCommand{
			Count:         6,
			InstanceCount: 1,
			FirstIndex:    uint32(i * 6),
			BaseVertex:    int32(i * 4),
			ScissorW:      800,
			ScissorH:      600,
		})
		for v := 0; v < 4; v++ {
			f.Vertices = append(f.Vertices, uibatch.Vertex{A: 255})
		}
		f.Indices = append(f.Indices, 0, 1, 2, 2, 3, 0)
	}
	return f
}

func TestRendererSubmitOneQueueSubmission(t *testing.T) {
	r, device, queue := newSubmitRenderer(t)

	err := r.Submit(&mockTextureView{}, []*uibatch.Frame{submitFrame(3)})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if queue.submits != 1 {
		t.Fatalf("queue submissions = %d, want 1", queue.submits)
	}
	if queue.submittedBuffers != 1 {
		t.Errorf("submitted command buffers = %d, want 1", queue.submittedBuffers)
	}
	if len(device.encoders) != 1 {
		t.Fatalf("encoders created = %d, want 1", len(device.encoders))
	}

	pass := device.encoders[0].pass
	if !pass.ended {
		t.Error("render pass not ended")
	}
	if len(pass.indirectOffsets) != 3 {
		t.Fatalf("indirect draws = %d, want 3", len(pass.indirectOffsets))
	}
	for i, off := range pass.indirectOffsets {
		if want := uint64(i) * indirectArgsStride; off != want {
			t.Errorf("draw %d offset = %d, want %d", i, off, want)
		}
	}
	if pass.pipelineSets == 0 || pass.vertexSets != 1 || pass.indexSets != 1 {
		t.Errorf("binds = (%d pipeline, %d vertex, %d index), want one vertex/index bind",
			pass.pipelineSets, pass.vertexSets, pass.indexSets)
	}
	// globals, vertices, indices, draw params, indirect args.
	if queue.bufferWrites != 5 {
		t.Errorf("buffer uploads = %d, want 5", queue.bufferWrites)
	}
}

func TestRendererSubmitEmptyFrame(t *testing.T) {
	r, device, queue := newSubmitRenderer(t)

	err := r.Submit(&mockTextureView{}, []*uibatch.Frame{submitFrame(0)})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// The target is still cleared by one submitted pass, with no draws.
	if queue.submits != 1 {
		t.Errorf("queue submissions = %d, want 1", queue.submits)
	}
	pass := device.encoders[0].pass
	if !pass.ended {
		t.Error("render pass not ended")
	}
	if len(pass.indirectOffsets) != 0 {
		t.Errorf("indirect draws = %d, want 0", len(pass.indirectOffsets))
	}
	if queue.bufferWrites != 0 {
		t.Errorf("buffer uploads = %d, want 0", queue.bufferWrites)
	}
}

func TestRendererSubmitSplitFramesShareSubmission(t *testing.T) {
	r, device, queue := newSubmitRenderer(t)

	frames := []*uibatch.Frame{submitFrame(2), submitFrame(1)}
	if err := r.Submit(&mockTextureView{}, frames); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if queue.submits != 1 {
		t.Fatalf("queue submissions = %d, want 1", queue.submits)
	}
	pass := device.encoders[0].pass
	want := []uint64{0, indirectArgsStride, 0}
	if len(pass.indirectOffsets) != len(want) {
		t.Fatalf("indirect draws = %d, want %d", len(pass.indirectOffsets), len(want))
	}
	for i, off := range pass.indirectOffsets {
		if off != want[i] {
			t.Errorf("draw %d offset = %d, want %d", i, off, want[i])
		}
	}
	// Each split rebinds its own buffers.
	if pass.vertexSets != 2 || pass.bindGroupSets != 2 {
		t.Errorf("binds = (%d vertex, %d group), want 2/2", pass.vertexSets, pass.bindGroupSets)
	}
}

func TestRendererSubmitNilTarget(t *testing.T) {
	r, _, _ := newSubmitRenderer(t)
	if err := r.Submit(nil, nil); err != ErrNilTarget {
		t.Errorf("err = %v, want ErrNilTarget", err)
	}
}

func TestDefaultRendererConfig(t *testing.T) {
	cfg := DefaultRendererConfig()
	if cfg.FramesInFlight != 2 {
		t.Errorf("FramesInFlight = %d, want 2", cfg.FramesInFlight)
	}
}
