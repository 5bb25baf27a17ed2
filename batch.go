package uibatch

import (
	"errors"
	"fmt"
)

// Batch state errors.
var (
	// ErrBatchNotBegun is returned when Append or End is called outside a
	// Begin/End pair.
	ErrBatchNotBegun = errors.New("uibatch: batch frame not begun")

	// ErrBatchActive is returned when Begin is called twice without End.
	ErrBatchActive = errors.New("uibatch: batch frame already active")

	// ErrNilResolver is returned when a batch is created without a layer
	// resolver.
	ErrNilResolver = errors.New("uibatch: layer resolver is nil")
)

// TextureSlot describes where a registered texture lives in the atlas: its
// array layer plus the UV scale mapping the texture's native size onto the
// fixed layer size. At any instant no two live textures share a layer.
type TextureSlot struct {
	Layer    uint32
	UVScaleX float32
	UVScaleY float32
}

// LayerResolver resolves a texture identifier to its atlas slot. The atlas
// in internal/gpu implements it; tests substitute a table.
type LayerResolver interface {
	ResolveLayer(id TextureID) (TextureSlot, error)
}

// BatchConfig holds configuration for a Batch.
type BatchConfig struct {
	// InitialVertexCapacity is the vertex slice capacity preallocated per
	// frame. Default: 4096
	InitialVertexCapacity int

	// InitialIndexCapacity is the index slice capacity preallocated per
	// frame. Default: 8192
	InitialIndexCapacity int

	// MaxDrawsPerSubmission caps the number of draw commands per emitted
	// frame. When a frame exceeds it, the batch is split into multiple
	// ordered submissions instead of dropping or reordering jobs.
	// 0 means unlimited: buffers grow and the frame stays one submission.
	// Default: 0
	MaxDrawsPerSubmission int
}

// DefaultBatchConfig returns default configuration.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		InitialVertexCapacity: 4096,
		InitialIndexCapacity:  8192,
	}
}

// Frame is one completed submission: the merged buffers for a run of paint
// jobs plus the surface size they were built against. Frames are rebuilt
// every UI frame; once returned by End they are detached from the builder
// and stay valid until dropped.
type Frame struct {
	SurfaceWidth  uint32
	SurfaceHeight uint32

	Vertices []Vertex
	Indices  []uint32
	Commands []DrawCommand
}

// DrawCount returns the number of draw commands in the frame. A count of
// zero means the frame issues no GPU draw work.
func (f *Frame) DrawCount() int { return len(f.Commands) }

// VertexBytes serializes the merged vertex buffer for GPU upload.
func (f *Frame) VertexBytes() []byte { return EncodeVertices(f.Vertices) }

// IndexBytes serializes the merged index buffer for GPU upload.
func (f *Frame) IndexBytes() []byte { return EncodeIndices(f.Indices) }

// CommandBytes serializes the command buffer for GPU upload.
func (f *Frame) CommandBytes() []byte { return EncodeCommands(f.Commands) }

// Batch packs a frame's paint jobs into merged vertex/index buffers and a
// per-draw command array, preserving submission order: draw index i in the
// command buffer addresses exactly paint job i's geometry and metadata.
//
// Usage per UI frame:
//
//	b.Begin(surfaceW, surfaceH)
//	for _, job := range jobs { b.Append(job) }
//	frames, err := b.End()
//
// Batch is not safe for concurrent use; frame building is single-threaded.
type Batch struct {
	cfg      BatchConfig
	resolver LayerResolver

	active   bool
	surfaceW uint32
	surfaceH uint32

	frames   []*Frame
	vertices []Vertex
	indices  []uint32
	commands []DrawCommand
}

// NewBatch creates a batch builder that resolves texture layers through
// resolver. Zero-valued config fields are replaced with defaults.
func NewBatch(resolver LayerResolver, cfg BatchConfig) (*Batch, error) {
	if resolver == nil {
		return nil, ErrNilResolver
	}
	def := DefaultBatchConfig()
	if cfg.InitialVertexCapacity <= 0 {
		cfg.InitialVertexCapacity = def.InitialVertexCapacity
	}
	if cfg.InitialIndexCapacity <= 0 {
		cfg.InitialIndexCapacity = def.InitialIndexCapacity
	}
	if cfg.MaxDrawsPerSubmission < 0 {
		cfg.MaxDrawsPerSubmission = 0
	}

	return &Batch{
		cfg:      cfg,
		resolver: resolver,
		vertices: make([]Vertex, 0, cfg.InitialVertexCapacity),
		indices:  make([]uint32, 0, cfg.InitialIndexCapacity),
	}, nil
}

// Begin starts a new frame against the given surface size. Slices from the
// previous frame are reused at their grown capacity.
func (b *Batch) Begin(surfaceWidth, surfaceHeight uint32) error {
	if b.active {
		return ErrBatchActive
	}
	b.active = true
	b.surfaceW = surfaceWidth
	b.surfaceH = surfaceHeight
	b.frames = b.frames[:0]
	b.vertices = b.vertices[:0]
	b.indices = b.indices[:0]
	b.commands = b.commands[:0]
	return nil
}

// Append adds one paint job to the frame. The job's vertices and indices are
// copied into the merged buffers; indices are not rewritten, the emitted
// command addresses them through base-vertex/first-index offsets instead.
// Jobs with no indices are skipped without emitting a command.
//
// When MaxDrawsPerSubmission is configured and reached, the current run is
// sealed as a completed submission and a new one starts; paint order is
// preserved across the split.
func (b *Batch) Append(job PaintJob) error {
	if !b.active {
		return ErrBatchNotBegun
	}
	if len(job.Mesh.Indices) == 0 {
		return nil
	}
	if err := job.Mesh.Validate(); err != nil {
		return err
	}

	slot, err := b.resolver.ResolveLayer(job.Texture)
	if err != nil {
		return fmt.Errorf("resolve texture %d: %w", job.Texture, err)
	}

	if b.cfg.MaxDrawsPerSubmission > 0 && len(b.commands) >= b.cfg.MaxDrawsPerSubmission {
		b.seal()
	}

	sx, sy, sw, sh := clampScissor(job.Clip, b.surfaceW, b.surfaceH)

	// The command captures the running totals before this job's geometry
	// is appended; that makes its base-vertex/first-index the cumulative
	// counts of all prior jobs in this submission.
	cmd := DrawCommand{
		Count:         uint32(len(job.Mesh.Indices)), //nolint:gosec // bounded by mesh size
		InstanceCount: 1,
		FirstIndex:    uint32(len(b.indices)),  //nolint:gosec // bounded by buffer growth
		BaseVertex:    int32(len(b.vertices)),  //nolint:gosec // bounded by buffer growth
		TextureLayer:  slot.Layer,
		UVScaleX:      slot.UVScaleX,
		UVScaleY:      slot.UVScaleY,
		ScissorX:      sx,
		ScissorY:      sy,
		ScissorW:      sw,
		ScissorH:      sh,
	}

	b.commands = append(b.commands, cmd)
	b.vertices = append(b.vertices, job.Mesh.Vertices...)
	b.indices = append(b.indices, job.Mesh.Indices...)
	return nil
}

// End finishes the frame and returns its submissions in order. A frame with
// no appended jobs yields a single empty submission with a draw count of 0.
// Returned frames own their slices and stay valid across later Begin calls.
func (b *Batch) End() ([]*Frame, error) {
	if !b.active {
		return nil, ErrBatchNotBegun
	}
	b.seal()
	b.active = false

	// Ownership of the slice moves to the caller; the next Begin must not
	// reuse its backing array.
	frames := b.frames
	b.frames = nil
	Logger().Debug("uibatch: frame ended",
		"submissions", len(frames),
		"draws", totalDraws(frames))
	return frames, nil
}

// seal closes the current run into a completed Frame and resets the working
// slices. Sealing an empty run with prior submissions is a no-op.
func (b *Batch) seal() {
	if len(b.commands) == 0 && len(b.frames) > 0 {
		return
	}
	f := &Frame{
		SurfaceWidth:  b.surfaceW,
		SurfaceHeight: b.surfaceH,
		Vertices:      b.vertices,
		Indices:       b.indices,
		Commands:      b.commands,
	}
	b.frames = append(b.frames, f)
	// Splits are rare; fresh slices keep sealed frames stable.
	b.vertices = make([]Vertex, 0, b.cfg.InitialVertexCapacity)
	b.indices = make([]uint32, 0, b.cfg.InitialIndexCapacity)
	b.commands = nil
}

func totalDraws(frames []*Frame) int {
	n := 0
	for _, f := range frames {
		n += f.DrawCount()
	}
	return n
}
