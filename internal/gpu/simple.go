//go:build !nogpu

package gpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/uibatch"
)

// meshParamsSize is the byte size of the per-draw MeshParams uniform block.
const meshParamsSize = 16

// SimpleRenderer draws a built frame one draw call at a time, with a uniform
// rebind per mesh and the hardware scissor doing the clipping. It renders
// the same merged buffers the batched path renders, which makes it the
// reference to diff the indirect output against.
//
// Each Render waits for the GPU synchronously, so the simple path needs no
// frame slots or buffer pooling.
type SimpleRenderer struct {
	device hal.Device
	queue  hal.Queue
	atlas  *Atlas

	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	sampler    hal.Sampler
	pipeline   hal.RenderPipeline
}

// NewSimpleRenderer compiles the per-mesh shader and builds its pipeline.
func NewSimpleRenderer(backend *Backend, atlas *Atlas, targetFormat gputypes.TextureFormat) (*SimpleRenderer, error) {
	if backend == nil || !backend.IsInitialized() {
		return nil, ErrNotInitialized
	}
	if atlas == nil {
		return nil, fmt.Errorf("gpu: atlas is nil")
	}
	if targetFormat == 0 {
		targetFormat = gputypes.TextureFormatRGBA8Unorm
	}

	r := &SimpleRenderer{
		device: backend.Device(),
		queue:  backend.Queue(),
		atlas:  atlas,
	}

	shader, err := createShaderModule(r.device, "uisimple", simpleShaderSource)
	if err != nil {
		return nil, err
	}
	r.shader = shader

	bindLayout, err := r.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "uisimple_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
			{
				Binding:    2,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2DArray,
				},
			},
			{
				Binding:    3,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		r.destroyPipeline()
		return nil, fmt.Errorf("create uisimple bind layout: %w", err)
	}
	r.bindLayout = bindLayout

	pipeLayout, err := r.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "uisimple_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{r.bindLayout},
	})
	if err != nil {
		r.destroyPipeline()
		return nil, fmt.Errorf("create uisimple pipeline layout: %w", err)
	}
	r.pipeLayout = pipeLayout

	sampler, err := r.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "uisimple_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeNearest,
		MinFilter:    gputypes.FilterModeNearest,
		MipmapFilter: gputypes.FilterModeNearest,
	})
	if err != nil {
		r.destroyPipeline()
		return nil, fmt.Errorf("create uisimple sampler: %w", err)
	}
	r.sampler = sampler

	premulBlend := gputypes.BlendStatePremultiplied()
	pipeline, err := r.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "uisimple_pipeline",
		Layout: r.pipeLayout,
		Vertex: hal.VertexState{
			Module:     r.shader,
			EntryPoint: "vs_main",
			Buffers:    batchVertexLayout(),
		},
		Fragment: &hal.FragmentState{
			Module:     r.shader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{
					Format:    targetFormat,
					Blend:     &premulBlend,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		r.destroyPipeline()
		return nil, fmt.Errorf("create uisimple pipeline: %w", err)
	}
	r.pipeline = pipeline

	return r, nil
}

// Render draws the frame to target and waits for completion. All per-draw
// resources are transient.
func (r *SimpleRenderer) Render(target hal.TextureView, frame *uibatch.Frame, clearColor gputypes.Color) error {
	if target == nil {
		return ErrNilTarget
	}

	var cleanup []func()
	defer func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}()

	globalsBuf, err := createAndUploadBuffer(r.device, r.queue, "uisimple_globals",
		encodeGlobals(frame.SurfaceWidth, frame.SurfaceHeight),
		gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst)
	if err != nil {
		return err
	}
	cleanup = append(cleanup, func() { r.device.DestroyBuffer(globalsBuf) })

	var vertexBuf, indexBuf hal.Buffer
	bindGroups := make([]hal.BindGroup, 0, frame.DrawCount())
	if frame.DrawCount() > 0 {
		vertexBuf, err = createAndUploadBuffer(r.device, r.queue, "uisimple_vertices",
			frame.VertexBytes(), gputypes.BufferUsageVertex|gputypes.BufferUsageCopyDst)
		if err != nil {
			return err
		}
		cleanup = append(cleanup, func() { r.device.DestroyBuffer(vertexBuf) })

		indexBuf, err = createAndUploadBuffer(r.device, r.queue, "uisimple_indices",
			frame.IndexBytes(), gputypes.BufferUsageIndex|gputypes.BufferUsageCopyDst)
		if err != nil {
			return err
		}
		cleanup = append(cleanup, func() { r.device.DestroyBuffer(indexBuf) })

		for _, cmd := range frame.Commands {
			paramsBuf, err := createAndUploadBuffer(r.device, r.queue, "uisimple_params",
				encodeMeshParams(cmd), gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst)
			if err != nil {
				return err
			}
			buf := paramsBuf
			cleanup = append(cleanup, func() { r.device.DestroyBuffer(buf) })

			bg, err := r.device.CreateBindGroup(&hal.BindGroupDescriptor{
				Label:  "uisimple_bind",
				Layout: r.bindLayout,
				Entries: []gputypes.BindGroupEntry{
					{Binding: 0, Resource: gputypes.BufferBinding{
						Buffer: globalsBuf.NativeHandle(), Offset: 0, Size: globalsUniformSize,
					}},
					{Binding: 1, Resource: gputypes.BufferBinding{
						Buffer: paramsBuf.NativeHandle(), Offset: 0, Size: meshParamsSize,
					}},
					{Binding: 2, Resource: gputypes.TextureViewBinding{
						TextureView: r.atlas.View().NativeHandle(),
					}},
					{Binding: 3, Resource: gputypes.SamplerBinding{
						Sampler: r.sampler.NativeHandle(),
					}},
				},
			})
			if err != nil {
				return fmt.Errorf("create uisimple bind group: %w", err)
			}
			bindGroups = append(bindGroups, bg)
			group := bg
			cleanup = append(cleanup, func() { r.device.DestroyBindGroup(group) })
		}
	}

	encoder, err := r.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "uisimple_encoder",
	})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("uisimple_frame"); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}

	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "uisimple_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       target,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: clearColor,
		}},
	})
	if frame.DrawCount() > 0 {
		rp.SetPipeline(r.pipeline)
		rp.SetVertexBuffer(0, vertexBuf, 0)
		rp.SetIndexBuffer(indexBuf, gputypes.IndexFormatUint32, 0)
		for i, cmd := range frame.Commands {
			rp.SetBindGroup(0, bindGroups[i], nil)
			x, y, w, h := scissorTopLeft(cmd, frame.SurfaceHeight)
			rp.SetScissorRect(x, y, w, h)
			rp.DrawIndexed(cmd.Count, cmd.InstanceCount, cmd.FirstIndex, cmd.BaseVertex, 0)
		}
	}
	rp.End()

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer r.device.FreeCommandBuffer(cmdBuf)

	fence, err := r.device.CreateFence()
	if err != nil {
		return fmt.Errorf("create fence: %w", err)
	}
	defer r.device.DestroyFence(fence)

	if err := r.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	ok, err := r.device.Wait(fence, 1, fenceWaitTimeout)
	if err != nil {
		return fmt.Errorf("wait for GPU: %w", err)
	}
	if !ok {
		return ErrFrameTimeout
	}
	return nil
}

// Close releases pipeline resources. Safe to call multiple times.
func (r *SimpleRenderer) Close() {
	r.destroyPipeline()
}

func (r *SimpleRenderer) destroyPipeline() {
	if r.device == nil {
		return
	}
	if r.pipeline != nil {
		r.device.DestroyRenderPipeline(r.pipeline)
		r.pipeline = nil
	}
	if r.sampler != nil {
		r.device.DestroySampler(r.sampler)
		r.sampler = nil
	}
	if r.pipeLayout != nil {
		r.device.DestroyPipelineLayout(r.pipeLayout)
		r.pipeLayout = nil
	}
	if r.bindLayout != nil {
		r.device.DestroyBindGroupLayout(r.bindLayout)
		r.bindLayout = nil
	}
	if r.shader != nil {
		r.device.DestroyShaderModule(r.shader)
		r.shader = nil
	}
}

// encodeMeshParams packs the MeshParams uniform block: UV scale as two f32,
// texture layer, and padding to 16 bytes.
func encodeMeshParams(cmd uibatch.DrawCommand) []byte {
	buf := make([]byte, meshParamsSize)
	binary.LittleEndian.PutUint32(buf[0:], math.Float32bits(cmd.UVScaleX))
	binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(cmd.UVScaleY))
	binary.LittleEndian.PutUint32(buf[8:], cmd.TextureLayer)
	return buf
}

// scissorTopLeft converts a command's bottom-left-origin scissor rect to the
// top-left origin the hardware scissor expects.
func scissorTopLeft(cmd uibatch.DrawCommand, surfaceHeight uint32) (x, y, w, h uint32) {
	x = uint32(cmd.ScissorX)
	w = uint32(cmd.ScissorW)
	h = uint32(cmd.ScissorH)
	top := float32(surfaceHeight) - cmd.ScissorY - cmd.ScissorH
	if top < 0 {
		top = 0
	}
	y = uint32(top)
	return x, y, w, h
}
