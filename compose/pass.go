package compose

import (
	"fmt"

	"github.com/teoAlivanoglou/teo-media/gfx"
)

// SourceKind selects where a pass input texture comes from.
type SourceKind int

const (
	// SourceSlot binds the texture currently resident in a pipeline slot.
	SourceSlot SourceKind = iota
	// SourceChained binds the previous pass's output texture.
	SourceChained
)

// String returns the kind name.
func (k SourceKind) String() string {
	switch k {
	case SourceSlot:
		return "slot"
	case SourceChained:
		return "chained"
	default:
		return "unknown"
	}
}

// Source declares one pass input.
type Source struct {
	Kind SourceKind
	Slot int // used when Kind == SourceSlot
}

// RenderPass draws one program over a full-screen quad into either an
// offscreen target or the surface. Passes are chained by the pipeline:
// a SourceChained input receives the preceding pass's output.
type RenderPass struct {
	label   string
	program *ShaderProgram
	binding *UniformBinding
	sources []Source
	target  *RenderTarget // nil draws to the surface
}

// NewRenderPass assembles a pass. The number of sources must match the
// program's declared input count.
func NewRenderPass(label string, program *ShaderProgram, sources []Source, target *RenderTarget) (*RenderPass, error) {
	if got, want := len(sources), program.Handle().InputCount(); got != want {
		return nil, fmt.Errorf("compose: pass %q: %d sources for %d program inputs", label, got, want)
	}
	return &RenderPass{
		label:   label,
		program: program,
		binding: program.NewBinding(),
		sources: sources,
		target:  target,
	}, nil
}

// Label returns the pass label.
func (p *RenderPass) Label() string { return p.label }

// Binding returns the pass's uniform binding.
func (p *RenderPass) Binding() *UniformBinding { return p.binding }

// Target returns the pass's offscreen target, or nil for the surface.
func (p *RenderPass) Target() *RenderTarget { return p.target }

// OutputTexture returns the texture the pass renders into, or nil when
// the pass draws to the surface.
func (p *RenderPass) OutputTexture() gfx.Texture {
	if p.target == nil {
		return nil
	}
	return p.target.Texture()
}

// Draw executes the pass. chained is the previous pass's output (nil
// for the first pass); slotTexture resolves SourceSlot inputs.
func (p *RenderPass) Draw(device gfx.Device, chained gfx.Texture, slotTexture func(int) gfx.Texture) error {
	inputs := make([]gfx.Texture, len(p.sources))
	for i, s := range p.sources {
		switch s.Kind {
		case SourceChained:
			inputs[i] = chained
		case SourceSlot:
			inputs[i] = slotTexture(s.Slot)
		}
	}

	var target gfx.Framebuffer
	var w, h int
	if p.target != nil {
		target = p.target.Framebuffer()
		w, h = p.target.Size()
	} else {
		w, h = device.SurfaceSize()
	}

	return device.Draw(gfx.DrawOp{
		Program:  p.program.Handle(),
		Inputs:   inputs,
		Uniforms: p.binding.Block(),
		Target:   target,
		Width:    w,
		Height:   h,
		Clear:    true,
	})
}

// Destroy releases the pass's program and target. Idempotent.
func (p *RenderPass) Destroy() {
	p.program.Destroy()
	if p.target != nil {
		p.target.Destroy()
	}
}
