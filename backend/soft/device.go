// Package soft implements gfx.Device on the CPU. It executes the same
// full-screen-quad draws as the GPU backend with per-pixel kernels
// selected by program label, which makes pipeline output verifiable in
// plain unit tests and lets the demo run headless.
package soft

import (
	"fmt"
	"image"

	"github.com/teoAlivanoglou/teo-media/gfx"
)

type texture struct {
	label string
	w, h  int
	pix   []byte // RGBA, w*h*4
}

func (t *texture) Width() int  { return t.w }
func (t *texture) Height() int { return t.h }

type framebuffer struct {
	tex *texture
}

func (f *framebuffer) ColorTexture() gfx.Texture { return f.tex }

type program struct {
	label  string
	layout *gfx.UniformLayout
	inputs int
}

func (p *program) Layout() *gfx.UniformLayout { return p.layout }
func (p *program) InputCount() int            { return p.inputs }

// Device is a software gfx.Device. Draw results land in texture pixel
// buffers or the emulated surface, readable via ReadSurface.
//
// The zero value is not usable; construct with New.
type Device struct {
	surfaceW, surfaceH int
	surface            []byte

	textures     map[*texture]struct{}
	framebuffers map[*framebuffer]struct{}
	programs     map[*program]struct{}

	// DrawCount counts completed Draw calls, for tests asserting
	// render coalescing.
	DrawCount int

	destroyed bool
}

var _ gfx.Device = (*Device)(nil)

// New creates a software device with the given surface size.
func New(width, height int) *Device {
	return &Device{
		surfaceW:     width,
		surfaceH:     height,
		surface:      make([]byte, width*height*4),
		textures:     make(map[*texture]struct{}),
		framebuffers: make(map[*framebuffer]struct{}),
		programs:     make(map[*program]struct{}),
	}
}

// CompileProgram validates sources and records the program's kernel
// selector (its label). Both stages must be non-empty.
func (d *Device) CompileProgram(desc gfx.ProgramDescriptor) (gfx.Program, error) {
	if desc.VertexSource == "" {
		return nil, &gfx.ShaderCompileError{Stage: "vertex", Message: "empty source"}
	}
	if desc.FragmentSource == "" {
		return nil, &gfx.ShaderCompileError{Stage: "fragment", Message: "empty source"}
	}
	p := &program{
		label:  desc.Label,
		layout: gfx.NewUniformLayout(desc.Uniforms),
		inputs: desc.Inputs,
	}
	d.programs[p] = struct{}{}
	return p, nil
}

func (d *Device) DestroyProgram(p gfx.Program) {
	if sp, ok := p.(*program); ok {
		delete(d.programs, sp)
	}
}

func (d *Device) CreateTexture(desc gfx.TextureDescriptor) (gfx.Texture, error) {
	if desc.Width < 1 || desc.Height < 1 {
		return nil, fmt.Errorf("soft: invalid texture size %dx%d", desc.Width, desc.Height)
	}
	t := &texture{
		label: desc.Label,
		w:     desc.Width,
		h:     desc.Height,
		pix:   make([]byte, desc.Width*desc.Height*4),
	}
	d.textures[t] = struct{}{}
	return t, nil
}

func (d *Device) UploadTexture(t gfx.Texture, pixels []byte) error {
	st, ok := t.(*texture)
	if !ok {
		return fmt.Errorf("soft: foreign texture")
	}
	if len(pixels) != len(st.pix) {
		return fmt.Errorf("soft: upload size %d, want %d", len(pixels), len(st.pix))
	}
	copy(st.pix, pixels)
	return nil
}

func (d *Device) DestroyTexture(t gfx.Texture) {
	if st, ok := t.(*texture); ok {
		delete(d.textures, st)
	}
}

func (d *Device) CreateFramebuffer(color gfx.Texture) (gfx.Framebuffer, error) {
	st, ok := color.(*texture)
	if !ok || st.w < 1 || st.h < 1 {
		w, h := 0, 0
		if color != nil {
			w, h = color.Width(), color.Height()
		}
		return nil, &gfx.FramebufferIncompleteError{Width: w, Height: h, Reason: "unattachable color texture"}
	}
	fb := &framebuffer{tex: st}
	d.framebuffers[fb] = struct{}{}
	return fb, nil
}

func (d *Device) DestroyFramebuffer(fb gfx.Framebuffer) {
	if sfb, ok := fb.(*framebuffer); ok {
		delete(d.framebuffers, sfb)
	}
}

func (d *Device) SurfaceSize() (int, int) { return d.surfaceW, d.surfaceH }

// Destroy drops all resources. Idempotent.
func (d *Device) Destroy() {
	if d.destroyed {
		return
	}
	d.destroyed = true
	d.textures = make(map[*texture]struct{})
	d.framebuffers = make(map[*framebuffer]struct{})
	d.programs = make(map[*program]struct{})
}

// TextureCount reports live textures, for leak assertions in tests.
func (d *Device) TextureCount() int { return len(d.textures) }

// FramebufferCount reports live framebuffers.
func (d *Device) FramebufferCount() int { return len(d.framebuffers) }

// ReadSurface returns a copy of the emulated presentation surface.
func (d *Device) ReadSurface() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, d.surfaceW, d.surfaceH))
	copy(img.Pix, d.surface)
	return img
}

// Draw runs the program's kernel over the destination.
func (d *Device) Draw(op gfx.DrawOp) error {
	p, ok := op.Program.(*program)
	if !ok {
		return fmt.Errorf("soft: foreign program")
	}

	var dst []byte
	dstW, dstH := op.Width, op.Height
	if op.Target == nil {
		dst = d.surface
		dstW, dstH = d.surfaceW, d.surfaceH
	} else {
		fb, ok := op.Target.(*framebuffer)
		if !ok {
			return fmt.Errorf("soft: foreign framebuffer")
		}
		dst = fb.tex.pix
		dstW, dstH = fb.tex.w, fb.tex.h
	}

	if op.Clear {
		clear4(dst, op.ClearColor)
	}

	switch p.label {
	case "background":
		d.kernelAspectFill(p, op, dst, dstW, dstH)
	case "composite":
		d.kernelMix(p, op, dst, dstW, dstH)
	default:
		d.kernelBlit(op, dst, dstW, dstH)
	}
	d.DrawCount++
	return nil
}

func clear4(dst []byte, c [4]float32) {
	var px [4]byte
	for i, v := range c {
		px[i] = clampByte(v)
	}
	for i := 0; i < len(dst); i += 4 {
		dst[i+0] = px[0]
		dst[i+1] = px[1]
		dst[i+2] = px[2]
		dst[i+3] = px[3]
	}
}

func clampByte(v float32) byte {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return byte(v*255 + 0.5)
}

func input(op gfx.DrawOp, i int) *texture {
	if i >= len(op.Inputs) || op.Inputs[i] == nil {
		return nil
	}
	t, _ := op.Inputs[i].(*texture)
	return t
}

// sampleNearest samples t at normalized (u, v), clamped to edges.
func sampleNearest(t *texture, u, v float64) (r, g, b, a byte) {
	x := int(u * float64(t.w))
	y := int(v * float64(t.h))
	if x < 0 {
		x = 0
	}
	if x >= t.w {
		x = t.w - 1
	}
	if y < 0 {
		y = 0
	}
	if y >= t.h {
		y = t.h - 1
	}
	i := (y*t.w + x) * 4
	return t.pix[i], t.pix[i+1], t.pix[i+2], t.pix[i+3]
}

// kernelBlit stretches input 0 over the destination.
func (d *Device) kernelBlit(op gfx.DrawOp, dst []byte, dstW, dstH int) {
	src := input(op, 0)
	if src == nil {
		return
	}
	for y := 0; y < dstH; y++ {
		v := (float64(y) + 0.5) / float64(dstH)
		for x := 0; x < dstW; x++ {
			u := (float64(x) + 0.5) / float64(dstW)
			r, g, b, a := sampleNearest(src, u, v)
			i := (y*dstW + x) * 4
			dst[i+0], dst[i+1], dst[i+2], dst[i+3] = r, g, b, a
		}
	}
}

// kernelAspectFill scales input 0 to cover the destination, cropping the
// overflowing axis symmetrically.
func (d *Device) kernelAspectFill(p *program, op gfx.DrawOp, dst []byte, dstW, dstH int) {
	src := input(op, 0)
	if src == nil {
		return
	}
	// Uniforms mirror the GPU path; the CPU kernel derives the crop
	// from actual sizes so stale uniform state cannot skew tests.
	scaleX := float64(dstW) / float64(src.w)
	scaleY := float64(dstH) / float64(src.h)
	scale := scaleX
	if scaleY > scale {
		scale = scaleY
	}
	visW := float64(dstW) / (scale * float64(src.w))
	visH := float64(dstH) / (scale * float64(src.h))
	offU := (1 - visW) / 2
	offV := (1 - visH) / 2
	for y := 0; y < dstH; y++ {
		v := offV + (float64(y)+0.5)/float64(dstH)*visH
		for x := 0; x < dstW; x++ {
			u := offU + (float64(x)+0.5)/float64(dstW)*visW
			r, g, b, a := sampleNearest(src, u, v)
			i := (y*dstW + x) * 4
			dst[i+0], dst[i+1], dst[i+2], dst[i+3] = r, g, b, a
		}
	}
}

// kernelMix blends input 1 over input 0 by the u_mix uniform.
func (d *Device) kernelMix(p *program, op gfx.DrawOp, dst []byte, dstW, dstH int) {
	base := input(op, 0)
	blend := input(op, 1)
	mix, _ := p.layout.Float(op.Uniforms, "u_mix")
	m := float64(mix)
	if m < 0 {
		m = 0
	}
	if m > 1 {
		m = 1
	}
	for y := 0; y < dstH; y++ {
		v := (float64(y) + 0.5) / float64(dstH)
		for x := 0; x < dstW; x++ {
			u := (float64(x) + 0.5) / float64(dstW)
			var br, bg, bb, ba float64
			if base != nil {
				r, g, b, a := sampleNearest(base, u, v)
				br, bg, bb, ba = float64(r), float64(g), float64(b), float64(a)
			}
			var fr, fg, fb, fa float64
			if blend != nil {
				r, g, b, a := sampleNearest(blend, u, v)
				fr, fg, fb, fa = float64(r), float64(g), float64(b), float64(a)
			}
			i := (y*dstW + x) * 4
			dst[i+0] = byte(br + (fr-br)*m + 0.5)
			dst[i+1] = byte(bg + (fg-bg)*m + 0.5)
			dst[i+2] = byte(bb + (fb-bb)*m + 0.5)
			dst[i+3] = byte(ba + (fa-ba)*m + 0.5)
		}
	}
}
