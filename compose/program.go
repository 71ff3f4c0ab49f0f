package compose

import (
	"encoding/binary"
	"math"

	"github.com/teoAlivanoglou/teo-media/gfx"
)

// ShaderProgram pairs a compiled device program with its uniform layout.
// Compile errors surface as *gfx.ShaderCompileError or *gfx.ProgramLinkError
// from the device.
type ShaderProgram struct {
	device gfx.Device
	prog   gfx.Program
	label  string

	destroyed bool
}

// NewShaderProgram compiles the given sources on device.
func NewShaderProgram(device gfx.Device, desc gfx.ProgramDescriptor) (*ShaderProgram, error) {
	prog, err := device.CompileProgram(desc)
	if err != nil {
		return nil, err
	}
	slogger().Debug("compiled program", "label", desc.Label, "uniforms", len(desc.Uniforms), "inputs", desc.Inputs)
	return &ShaderProgram{device: device, prog: prog, label: desc.Label}, nil
}

// Label returns the program's label.
func (p *ShaderProgram) Label() string { return p.label }

// Handle returns the underlying device program.
func (p *ShaderProgram) Handle() gfx.Program { return p.prog }

// Layout returns the program's uniform layout.
func (p *ShaderProgram) Layout() *gfx.UniformLayout { return p.prog.Layout() }

// NewBinding creates a zeroed uniform binding sized for this program.
func (p *ShaderProgram) NewBinding() *UniformBinding {
	return &UniformBinding{
		layout: p.prog.Layout(),
		block:  make([]byte, p.prog.Layout().Size()),
		label:  p.label,
	}
}

// Destroy releases the device program. Idempotent.
func (p *ShaderProgram) Destroy() {
	if p.destroyed {
		return
	}
	p.destroyed = true
	p.device.DestroyProgram(p.prog)
}

// UniformBinding holds a packed uniform block for one program. Lookups
// go through the layout's offset table; a name the program does not
// declare is ignored, logged once at debug level.
//
// Set methods report whether the stored value actually changed, so
// callers can skip redundant frame requests.
type UniformBinding struct {
	layout *gfx.UniformLayout
	block  []byte
	label  string

	warned map[string]struct{}
}

// Has reports whether the program declares the named uniform.
func (b *UniformBinding) Has(name string) bool {
	_, ok := b.layout.Offset(name)
	return ok
}

// Block returns the packed uniform block. Callers must not retain it
// across Set calls.
func (b *UniformBinding) Block() []byte { return b.block }

// SetFloat stores a float uniform. Returns true if the value changed.
func (b *UniformBinding) SetFloat(name string, v float32) bool {
	off, ok := b.layout.Offset(name)
	if !ok {
		b.warnUnknown(name)
		return false
	}
	bits := math.Float32bits(v)
	if binary.LittleEndian.Uint32(b.block[off:]) == bits {
		return false
	}
	binary.LittleEndian.PutUint32(b.block[off:], bits)
	return true
}

// SetVec2 stores a vec2 uniform. Returns true if the value changed.
func (b *UniformBinding) SetVec2(name string, x, y float32) bool {
	off, ok := b.layout.Offset(name)
	if !ok {
		b.warnUnknown(name)
		return false
	}
	xb, yb := math.Float32bits(x), math.Float32bits(y)
	if binary.LittleEndian.Uint32(b.block[off:]) == xb &&
		binary.LittleEndian.Uint32(b.block[off+4:]) == yb {
		return false
	}
	binary.LittleEndian.PutUint32(b.block[off:], xb)
	binary.LittleEndian.PutUint32(b.block[off+4:], yb)
	return true
}

// SetInt stores an int uniform. Returns true if the value changed.
func (b *UniformBinding) SetInt(name string, v int32) bool {
	off, ok := b.layout.Offset(name)
	if !ok {
		b.warnUnknown(name)
		return false
	}
	if binary.LittleEndian.Uint32(b.block[off:]) == uint32(v) {
		return false
	}
	binary.LittleEndian.PutUint32(b.block[off:], uint32(v))
	return true
}

func (b *UniformBinding) warnUnknown(name string) {
	if b.warned == nil {
		b.warned = make(map[string]struct{})
	}
	if _, seen := b.warned[name]; seen {
		return
	}
	b.warned[name] = struct{}{}
	slogger().Debug("uniform not declared by program", "program", b.label, "name", name)
}
