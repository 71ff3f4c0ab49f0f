package wgpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/teoAlivanoglou/teo-media/gfx"
)

// vertexStride is the byte stride per quad vertex: 2 x float32.
const vertexStride = 8

// premulBlend composites pass output with premultiplied alpha.
var premulBlend = gputypes.BlendStatePremultiplied()

type program struct {
	layout *gfx.UniformLayout
	inputs int

	vertModule hal.ShaderModule
	fragModule hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.RenderPipeline
	uniformBuf hal.Buffer
}

func (p *program) Layout() *gfx.UniformLayout { return p.layout }
func (p *program) InputCount() int            { return p.inputs }

// compileStage compiles WGSL to a SPIR-V shader module. naga validates
// the source, so bad WGSL surfaces here rather than at pipeline creation.
func (d *Device) compileStage(label, stage, source string) (hal.ShaderModule, error) {
	if source == "" {
		return nil, &gfx.ShaderCompileError{Stage: stage, Message: "empty source"}
	}
	spirvBytes, err := naga.Compile(source)
	if err != nil {
		return nil, &gfx.ShaderCompileError{Stage: stage, Message: err.Error()}
	}
	// SPIR-V is little-endian 32-bit words.
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	module, err := d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label + "_" + stage,
		Source: hal.ShaderSource{SPIRV: words},
	})
	if err != nil {
		return nil, &gfx.ShaderCompileError{Stage: stage, Message: err.Error()}
	}
	return module, nil
}

// CompileProgram compiles both stages and links them into a render
// pipeline. Bindings follow a fixed convention shared with the WGSL
// sources: the uniform block at binding 0, then texture/sampler pairs
// at bindings 1+2i and 2+2i per input i.
func (d *Device) CompileProgram(desc gfx.ProgramDescriptor) (gfx.Program, error) {
	p := &program{
		layout: gfx.NewUniformLayout(desc.Uniforms),
		inputs: desc.Inputs,
	}

	vert, err := d.compileStage(desc.Label, "vertex", desc.VertexSource)
	if err != nil {
		return nil, err
	}
	p.vertModule = vert

	frag, err := d.compileStage(desc.Label, "fragment", desc.FragmentSource)
	if err != nil {
		d.destroyProgram(p)
		return nil, err
	}
	p.fragModule = frag

	var entries []gputypes.BindGroupLayoutEntry
	if p.layout.Size() > 0 {
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    0,
			Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
		})
	}
	for i := 0; i < desc.Inputs; i++ {
		entries = append(entries,
			gputypes.BindGroupLayoutEntry{
				Binding:    uint32(1 + 2*i),
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			gputypes.BindGroupLayoutEntry{
				Binding:    uint32(2 + 2*i),
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		)
	}

	bindLayout, err := d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   desc.Label + "_bind_layout",
		Entries: entries,
	})
	if err != nil {
		d.destroyProgram(p)
		return nil, &gfx.ProgramLinkError{Message: fmt.Sprintf("create bind group layout: %v", err)}
	}
	p.bindLayout = bindLayout

	pipeLayout, err := d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            desc.Label + "_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{bindLayout},
	})
	if err != nil {
		d.destroyProgram(p)
		return nil, &gfx.ProgramLinkError{Message: fmt.Sprintf("create pipeline layout: %v", err)}
	}
	p.pipeLayout = pipeLayout

	pipeline, err := d.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  desc.Label + "_pipeline",
		Layout: pipeLayout,
		Vertex: hal.VertexState{
			Module:     p.vertModule,
			EntryPoint: "vs_main",
			Buffers: []gputypes.VertexBufferLayout{{
				ArrayStride: vertexStride,
				StepMode:    gputypes.VertexStepModeVertex,
				Attributes: []gputypes.VertexAttribute{{
					Format:         gputypes.VertexFormatFloat32x2,
					Offset:         0,
					ShaderLocation: 0,
				}},
			}},
		},
		Fragment: &hal.FragmentState{
			Module:     p.fragModule,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{{
				Format:    gputypes.TextureFormatRGBA8Unorm,
				Blend:     &premulBlend,
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		},
		Multisample: gputypes.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
	})
	if err != nil {
		d.destroyProgram(p)
		return nil, &gfx.ProgramLinkError{Message: fmt.Sprintf("create render pipeline: %v", err)}
	}
	p.pipeline = pipeline

	if size := p.layout.Size(); size > 0 {
		uniformBuf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
			Label: desc.Label + "_uniforms",
			Size:  uint64(size),
			Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			d.destroyProgram(p)
			return nil, &gfx.ProgramLinkError{Message: fmt.Sprintf("create uniform buffer: %v", err)}
		}
		p.uniformBuf = uniformBuf
	}

	return p, nil
}

func (d *Device) DestroyProgram(pr gfx.Program) {
	if p, ok := pr.(*program); ok {
		d.destroyProgram(p)
	}
}

// destroyProgram releases program resources in reverse creation order.
// Safe on partially constructed programs.
func (d *Device) destroyProgram(p *program) {
	if p.uniformBuf != nil {
		d.device.DestroyBuffer(p.uniformBuf)
		p.uniformBuf = nil
	}
	if p.pipeline != nil {
		d.device.DestroyRenderPipeline(p.pipeline)
		p.pipeline = nil
	}
	if p.pipeLayout != nil {
		d.device.DestroyPipelineLayout(p.pipeLayout)
		p.pipeLayout = nil
	}
	if p.bindLayout != nil {
		d.device.DestroyBindGroupLayout(p.bindLayout)
		p.bindLayout = nil
	}
	if p.fragModule != nil {
		d.device.DestroyShaderModule(p.fragModule)
		p.fragModule = nil
	}
	if p.vertModule != nil {
		d.device.DestroyShaderModule(p.vertModule)
		p.vertModule = nil
	}
}
