package compose

import (
	"errors"

	"github.com/teoAlivanoglou/teo-media/gfx"
)

// ErrTargetDestroyed is returned when a destroyed RenderTarget is used.
var ErrTargetDestroyed = errors.New("compose: render target destroyed")

// RenderTarget owns an offscreen color texture and its framebuffer.
// The target identity is stable across Resize; only the underlying
// device resources are replaced.
type RenderTarget struct {
	device gfx.Device
	label  string

	tex    gfx.Texture
	fb     gfx.Framebuffer
	width  int
	height int

	destroyed bool
}

// NewRenderTarget allocates a width x height offscreen target.
// Non-positive dimensions fail with *gfx.FramebufferIncompleteError
// before any device resource is created.
func NewRenderTarget(device gfx.Device, label string, width, height int) (*RenderTarget, error) {
	if width < 1 || height < 1 {
		return nil, &gfx.FramebufferIncompleteError{Width: width, Height: height, Reason: "non-positive dimensions"}
	}
	t := &RenderTarget{device: device, label: label}
	if err := t.allocate(width, height); err != nil {
		return nil, err
	}
	return t, nil
}

// Texture returns the color texture. Valid as a sampling input once a
// draw into the target completed.
func (t *RenderTarget) Texture() gfx.Texture { return t.tex }

// Framebuffer returns the draw destination.
func (t *RenderTarget) Framebuffer() gfx.Framebuffer { return t.fb }

// Size returns the current dimensions.
func (t *RenderTarget) Size() (int, int) { return t.width, t.height }

// Resize reallocates the target at the new size. The old resources are
// destroyed only after the new ones exist, so a failed resize leaves
// the target usable at its previous size. Resizing to the current size
// is a no-op.
func (t *RenderTarget) Resize(width, height int) error {
	if t.destroyed {
		return ErrTargetDestroyed
	}
	if width < 1 || height < 1 {
		return &gfx.FramebufferIncompleteError{Width: width, Height: height, Reason: "non-positive dimensions"}
	}
	if width == t.width && height == t.height {
		return nil
	}
	oldTex, oldFB := t.tex, t.fb
	if err := t.allocate(width, height); err != nil {
		t.tex, t.fb = oldTex, oldFB
		return err
	}
	t.device.DestroyFramebuffer(oldFB)
	t.device.DestroyTexture(oldTex)
	slogger().Debug("resized render target", "label", t.label, "width", width, "height", height)
	return nil
}

// Destroy releases the texture and framebuffer. Idempotent.
func (t *RenderTarget) Destroy() {
	if t.destroyed {
		return
	}
	t.destroyed = true
	t.device.DestroyFramebuffer(t.fb)
	t.device.DestroyTexture(t.tex)
	t.fb = nil
	t.tex = nil
}

func (t *RenderTarget) allocate(width, height int) error {
	tex, err := t.device.CreateTexture(gfx.TextureDescriptor{
		Label:        t.label,
		Width:        width,
		Height:       height,
		RenderTarget: true,
	})
	if err != nil {
		return err
	}
	fb, err := t.device.CreateFramebuffer(tex)
	if err != nil {
		t.device.DestroyTexture(tex)
		return err
	}
	t.tex = tex
	t.fb = fb
	t.width = width
	t.height = height
	return nil
}
