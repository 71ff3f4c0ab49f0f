// Package wgpu implements gfx.Device on the wgpu hardware abstraction
// layer. Shaders are WGSL, compiled to SPIR-V through naga at program
// creation time so invalid sources fail fast with a compile error
// instead of a dead pipeline.
package wgpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/teoAlivanoglou/teo-media/gfx"
)

type texture struct {
	tex  hal.Texture
	view hal.TextureView
	w, h int
}

func (t *texture) Width() int  { return t.w }
func (t *texture) Height() int { return t.h }

type framebuffer struct {
	tex *texture
}

func (f *framebuffer) ColorTexture() gfx.Texture { return f.tex }

// Device renders through a hal.Device and hal.Queue it does not own;
// the provider that created them destroys them. All draws target
// RGBA8Unorm color.
type Device struct {
	device hal.Device
	queue  hal.Queue

	sampler  hal.Sampler
	quadBuf  hal.Buffer
	fallback *texture // bound for nil draw inputs

	surfaceView hal.TextureView
	surfaceW    int
	surfaceH    int

	destroyed bool
}

var _ gfx.Device = (*Device)(nil)

// NewFromContext builds a Device from a gpucontext device provider,
// the handle windowing hosts hand out. The provider's concrete type
// must expose the HAL escape hatch (HalDevice/HalQueue); abstract
// providers without it cannot drive this backend.
func NewFromContext(provider gpucontext.DeviceProvider) (*Device, error) {
	if provider == nil {
		return nil, &gfx.ContextCreationError{Reason: "nil device provider"}
	}
	return New(provider)
}

// New builds a Device from a shared GPU context provider. The provider
// must expose HalDevice() any and HalQueue() any returning hal.Device
// and hal.Queue, the convention gpucontext-based hosts follow.
func New(provider any) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, &gfx.ContextCreationError{Reason: "provider does not expose HAL types"}
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, &gfx.ContextCreationError{Reason: "provider HalDevice is not hal.Device"}
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, &gfx.ContextCreationError{Reason: "provider HalQueue is not hal.Queue"}
	}
	return NewFromHAL(device, queue)
}

// NewFromHAL builds a Device directly on a hal device and queue.
func NewFromHAL(device hal.Device, queue hal.Queue) (*Device, error) {
	if device == nil || queue == nil {
		return nil, &gfx.ContextCreationError{Reason: "nil hal device or queue"}
	}
	d := &Device{device: device, queue: queue}

	sampler, err := device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "compose_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
	})
	if err != nil {
		return nil, &gfx.ContextCreationError{Reason: fmt.Sprintf("create sampler: %v", err)}
	}
	d.sampler = sampler

	quadBuf, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: "compose_quad",
		Size:  uint64(len(quadVertices)),
		Usage: gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		d.Destroy()
		return nil, &gfx.ContextCreationError{Reason: fmt.Sprintf("create quad buffer: %v", err)}
	}
	d.quadBuf = quadBuf
	queue.WriteBuffer(quadBuf, 0, quadVertices)

	fallbackTex, err := d.CreateTexture(gfx.TextureDescriptor{Label: "compose_fallback", Width: 1, Height: 1})
	if err != nil {
		d.Destroy()
		return nil, &gfx.ContextCreationError{Reason: fmt.Sprintf("create fallback texture: %v", err)}
	}
	if err := d.UploadTexture(fallbackTex, []byte{0, 0, 0, 255}); err != nil {
		d.Destroy()
		return nil, &gfx.ContextCreationError{Reason: fmt.Sprintf("upload fallback texture: %v", err)}
	}
	d.fallback = fallbackTex.(*texture)
	return d, nil
}

// quadVertices is a full-screen quad as two triangles, float32x2
// positions in clip space.
var quadVertices = func() []byte {
	coords := []float32{
		-1, -1, 1, -1, -1, 1,
		-1, 1, 1, -1, 1, 1,
	}
	buf := make([]byte, len(coords)*4)
	for i, v := range coords {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}()

// SetSurfaceTarget installs the view that draws with a nil target
// render into, typically the swapchain's current frame view.
func (d *Device) SetSurfaceTarget(view hal.TextureView, width, height int) {
	d.surfaceView = view
	d.surfaceW = width
	d.surfaceH = height
}

// SurfaceSize reports the size registered via SetSurfaceTarget.
func (d *Device) SurfaceSize() (int, int) { return d.surfaceW, d.surfaceH }

// CreateTexture allocates a sampleable RGBA8 texture and its default view.
func (d *Device) CreateTexture(desc gfx.TextureDescriptor) (gfx.Texture, error) {
	if desc.Width < 1 || desc.Height < 1 {
		return nil, fmt.Errorf("wgpu: invalid texture size %dx%d", desc.Width, desc.Height)
	}
	usage := gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst
	if desc.RenderTarget {
		usage |= gputypes.TextureUsageRenderAttachment
	}
	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         desc.Label,
		Size:          hal.Extent3D{Width: uint32(desc.Width), Height: uint32(desc.Height), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage:         usage,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create texture: %w", err)
	}
	view, err := d.device.CreateTextureView(tex, &hal.TextureViewDescriptor{Label: desc.Label + "_view"})
	if err != nil {
		d.device.DestroyTexture(tex)
		return nil, fmt.Errorf("wgpu: create texture view: %w", err)
	}
	return &texture{tex: tex, view: view, w: desc.Width, h: desc.Height}, nil
}

// UploadTexture writes tightly packed RGBA8 pixels into t.
func (d *Device) UploadTexture(t gfx.Texture, pixels []byte) error {
	wt, ok := t.(*texture)
	if !ok {
		return fmt.Errorf("wgpu: foreign texture")
	}
	if want := wt.w * wt.h * 4; len(pixels) != want {
		return fmt.Errorf("wgpu: upload size %d, want %d", len(pixels), want)
	}
	d.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: wt.tex, MipLevel: 0},
		pixels,
		&hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(wt.w * 4),
			RowsPerImage: uint32(wt.h),
		},
		&hal.Extent3D{Width: uint32(wt.w), Height: uint32(wt.h), DepthOrArrayLayers: 1},
	)
	return nil
}

func (d *Device) DestroyTexture(t gfx.Texture) {
	wt, ok := t.(*texture)
	if !ok {
		return
	}
	if wt.view != nil {
		d.device.DestroyTextureView(wt.view)
		wt.view = nil
	}
	if wt.tex != nil {
		d.device.DestroyTexture(wt.tex)
		wt.tex = nil
	}
}

// CreateFramebuffer wraps a render-target texture as a draw destination.
func (d *Device) CreateFramebuffer(color gfx.Texture) (gfx.Framebuffer, error) {
	wt, ok := color.(*texture)
	if !ok {
		w, h := 0, 0
		if color != nil {
			w, h = color.Width(), color.Height()
		}
		return nil, &gfx.FramebufferIncompleteError{Width: w, Height: h, Reason: "unattachable color texture"}
	}
	return &framebuffer{tex: wt}, nil
}

func (d *Device) DestroyFramebuffer(gfx.Framebuffer) {
	// The framebuffer is a view over its texture; nothing extra to free.
}

// Destroy releases device-owned helper resources. The hal device and
// queue stay alive for their owner. Idempotent.
func (d *Device) Destroy() {
	if d.destroyed {
		return
	}
	d.destroyed = true
	if d.fallback != nil {
		d.DestroyTexture(d.fallback)
		d.fallback = nil
	}
	if d.quadBuf != nil {
		d.device.DestroyBuffer(d.quadBuf)
		d.quadBuf = nil
	}
	if d.sampler != nil {
		d.device.DestroySampler(d.sampler)
		d.sampler = nil
	}
	d.surfaceView = nil
}
