package wgpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/teoAlivanoglou/teo-media/gfx"
)

// ErrNoSurface is returned by surface draws before SetSurfaceTarget.
var ErrNoSurface = errors.New("wgpu: no surface target set")

// Draw records and submits one full-screen-quad pass, then waits for
// the device to drain. One submit per draw keeps pass outputs valid as
// inputs of the next pass without manual barriers.
func (d *Device) Draw(op gfx.DrawOp) error {
	p, ok := op.Program.(*program)
	if !ok {
		return fmt.Errorf("wgpu: foreign program")
	}

	var view hal.TextureView
	if op.Target != nil {
		fb, ok := op.Target.(*framebuffer)
		if !ok {
			return fmt.Errorf("wgpu: foreign framebuffer")
		}
		view = fb.tex.view
	} else {
		if d.surfaceView == nil {
			return ErrNoSurface
		}
		view = d.surfaceView
	}

	if p.uniformBuf != nil && len(op.Uniforms) > 0 {
		d.queue.WriteBuffer(p.uniformBuf, 0, op.Uniforms)
	}

	bindGroup, err := d.createDrawBindGroup(p, op.Inputs)
	if err != nil {
		return err
	}
	defer d.device.DestroyBindGroup(bindGroup)

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "compose_encoder"})
	if err != nil {
		return fmt.Errorf("wgpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("compose_draw"); err != nil {
		return fmt.Errorf("wgpu: begin encoding: %w", err)
	}

	loadOp := gputypes.LoadOpLoad
	if op.Clear {
		loadOp = gputypes.LoadOpClear
	}
	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "compose_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:    view,
			LoadOp:  loadOp,
			StoreOp: gputypes.StoreOpStore,
			ClearValue: gputypes.Color{
				R: float64(op.ClearColor[0]),
				G: float64(op.ClearColor[1]),
				B: float64(op.ClearColor[2]),
				A: float64(op.ClearColor[3]),
			},
		}},
	})
	rp.SetPipeline(p.pipeline)
	rp.SetBindGroup(0, bindGroup, nil)
	rp.SetVertexBuffer(0, d.quadBuf, 0)
	rp.Draw(6, 1, 0, 0)
	rp.End()

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		encoder.DiscardEncoding()
		return fmt.Errorf("wgpu: end encoding: %w", err)
	}
	defer d.device.FreeCommandBuffer(cmdBuf)

	if _, err := d.queue.Submit([]hal.CommandBuffer{cmdBuf}); err != nil {
		return fmt.Errorf("wgpu: submit: %w", err)
	}
	d.device.WaitIdle()
	return nil
}

// createDrawBindGroup binds the program's uniform buffer and its
// texture/sampler pairs. Nil inputs fall back to the device's 1x1
// opaque black texture so the layout stays satisfied.
func (d *Device) createDrawBindGroup(p *program, inputs []gfx.Texture) (hal.BindGroup, error) {
	var entries []gputypes.BindGroupEntry
	if p.uniformBuf != nil {
		entries = append(entries, gputypes.BindGroupEntry{
			Binding: 0,
			Resource: gputypes.BufferBinding{
				Buffer: p.uniformBuf.NativeHandle(),
				Offset: 0,
				Size:   uint64(p.layout.Size()),
			},
		})
	}
	for i := 0; i < p.inputs; i++ {
		tex := d.fallback
		if i < len(inputs) && inputs[i] != nil {
			wt, ok := inputs[i].(*texture)
			if !ok {
				return nil, fmt.Errorf("wgpu: foreign input texture at %d", i)
			}
			tex = wt
		}
		entries = append(entries,
			gputypes.BindGroupEntry{
				Binding:  uint32(1 + 2*i),
				Resource: gputypes.TextureViewBinding{TextureView: tex.view.NativeHandle()},
			},
			gputypes.BindGroupEntry{
				Binding:  uint32(2 + 2*i),
				Resource: gputypes.SamplerBinding{Sampler: d.sampler.NativeHandle()},
			},
		)
	}
	bindGroup, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   "compose_bind",
		Layout:  p.bindLayout,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create bind group: %w", err)
	}
	return bindGroup, nil
}
