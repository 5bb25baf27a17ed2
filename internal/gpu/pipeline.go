//go:build !nogpu

package gpu

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/uibatch"
)

// Embedded WGSL shader sources, compiled through naga at pipeline creation.

//go:embed shaders/uibatch.wgsl
var batchShaderSource string

//go:embed shaders/uisimple.wgsl
var simpleShaderSource string

// globalsUniformSize is the byte size of the Globals uniform block
// (surface size vec2 plus padding to 16 bytes).
const globalsUniformSize = 16

// batchPipeline owns the render pipeline for the batched indirect path.
//
// Bind group layout:
//
//	binding 0: Globals uniform (vertex + fragment)
//	binding 1: per-draw parameter array, read-only storage (vertex)
//	binding 2: atlas array texture (fragment)
//	binding 3: nearest sampler (fragment)
type batchPipeline struct {
	device hal.Device

	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	sampler    hal.Sampler
	pipeline   hal.RenderPipeline
}

// newBatchPipeline compiles the batch shader and builds the pipeline for the
// given color target format.
func newBatchPipeline(device hal.Device, targetFormat gputypes.TextureFormat) (*batchPipeline, error) {
	if device == nil {
		return nil, ErrNilHALDevice
	}
	p := &batchPipeline{device: device}

	shader, err := createShaderModule(device, "uibatch", batchShaderSource)
	if err != nil {
		return nil, err
	}
	p.shader = shader

	bindLayout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "uibatch_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageVertex,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage},
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
		p.destroy()
		return nil, fmt.Errorf("create uibatch bind layout: %w", err)
	}
	p.bindLayout = bindLayout

	pipeLayout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "uibatch_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.bindLayout},
	})
	if err != nil {
		p.destroy()
		return nil, fmt.Errorf("create uibatch pipeline layout: %w", err)
	}
	p.pipeLayout = pipeLayout

	// Nearest filtering with clamp to edge: UI textures are drawn at native
	// size and the UV scale already keeps sampling inside the used region.
	sampler, err := device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "uibatch_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeNearest,
		MinFilter:    gputypes.FilterModeNearest,
		MipmapFilter: gputypes.FilterModeNearest,
	})
	if err != nil {
		p.destroy()
		return nil, fmt.Errorf("create uibatch sampler: %w", err)
	}
	p.sampler = sampler

	premulBlend := gputypes.BlendStatePremultiplied()
	pipeline, err := device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "uibatch_pipeline",
		Layout: p.pipeLayout,
		Vertex: hal.VertexState{
			Module:     p.shader,
			EntryPoint: "vs_main",
			Buffers:    batchVertexLayout(),
		},
		Fragment: &hal.FragmentState{
			Module:     p.shader,
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
		p.destroy()
		return nil, fmt.Errorf("create uibatch pipeline: %w", err)
	}
	p.pipeline = pipeline

	return p, nil
}

// createBindGroup binds the per-frame buffers and the atlas view.
func (p *batchPipeline) createBindGroup(globalsBuf, drawsBuf hal.Buffer, drawsSize uint64, atlasView hal.TextureView) (hal.BindGroup, error) {
	bg, err := p.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "uibatch_bind",
		Layout: p.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{
				Buffer: globalsBuf.NativeHandle(), Offset: 0, Size: globalsUniformSize,
			}},
			{Binding: 1, Resource: gputypes.BufferBinding{
				Buffer: drawsBuf.NativeHandle(), Offset: 0, Size: drawsSize,
			}},
			{Binding: 2, Resource: gputypes.TextureViewBinding{
				TextureView: atlasView.NativeHandle(),
			}},
			{Binding: 3, Resource: gputypes.SamplerBinding{
				Sampler: p.sampler.NativeHandle(),
			}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create uibatch bind group: %w", err)
	}
	return bg, nil
}

// destroy releases pipeline resources in reverse creation order.
func (p *batchPipeline) destroy() {
	if p.device == nil {
		return
	}
	if p.pipeline != nil {
		p.device.DestroyRenderPipeline(p.pipeline)
		p.pipeline = nil
	}
	if p.sampler != nil {
		p.device.DestroySampler(p.sampler)
		p.sampler = nil
	}
	if p.pipeLayout != nil {
		p.device.DestroyPipelineLayout(p.pipeLayout)
		p.pipeLayout = nil
	}
	if p.bindLayout != nil {
		p.device.DestroyBindGroupLayout(p.bindLayout)
		p.bindLayout = nil
	}
	if p.shader != nil {
		p.device.DestroyShaderModule(p.shader)
		p.shader = nil
	}
}

// batchVertexLayout returns the vertex buffer layout shared by the batched
// and per-mesh pipelines. Matches VertexInput in the shaders:
//
//	location 0: position (vec2<f32>)
//	location 1: uv (vec2<f32>)
//	location 2: color (unorm8x4)
func batchVertexLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{
		{
			ArrayStride: uibatch.VertexStride,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
				{Format: gputypes.VertexFormatFloat32x2, Offset: 8, ShaderLocation: 1},
				{Format: gputypes.VertexFormatUnorm8x4, Offset: 16, ShaderLocation: 2},
			},
		},
	}
}
