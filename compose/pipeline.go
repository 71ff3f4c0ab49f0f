// Package compose builds shader-pass compositing pipelines: a chain of
// full-screen-quad render passes that blend cached textures into a
// final frame. The canonical chain renders a background image
// aspect-filled into an offscreen target, then crossfades a foreground
// layer over it by a mix ratio.
package compose

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"sync"

	"github.com/teoAlivanoglou/teo-media/gfx"
	"github.com/teoAlivanoglou/teo-media/texcache"
)

// State is the pipeline lifecycle phase.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateRendering
	StateDisposed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateRendering:
		return "rendering"
	case StateDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// ErrNotReady is returned when an operation requires an initialized,
// non-disposed pipeline.
var ErrNotReady = errors.New("compose: pipeline not ready")

// Texture slot indices of the canonical chain.
const (
	SlotBackground = 0
	SlotForeground = 1
)

const slotCount = 2

// Placeholder fills shown before real content loads.
var (
	placeholderBackground = color.RGBA{R: 16, G: 16, B: 20, A: 255}
	placeholderForeground = color.RGBA{R: 52, G: 54, B: 60, A: 255}
)

// Config configures a Pipeline.
type Config struct {
	// Width and Height set the composition size. Zero means follow the
	// device surface size. When the composition size differs from the
	// surface, a final blit pass stretches the result.
	Width  int
	Height int

	// CacheBudget is the texture cache byte budget. Zero means
	// texcache.DefaultBudget.
	CacheBudget int64

	// Decoder loads slot images. Defaults to a file decoder.
	Decoder texcache.Decoder

	// Scheduler coalesces frame requests. Required for RequestFrame;
	// RenderNow works without one.
	Scheduler FrameScheduler
}

// Pipeline owns the pass chain, the texture cache and the slot table,
// and coalesces redundant frame requests behind a dirty flag: any
// number of state changes between two scheduler ticks produce exactly
// one render.
//
// All exported methods are safe for concurrent use.
type Pipeline struct {
	mu  sync.Mutex
	cfg Config

	state  State
	device gfx.Device
	cache  *texcache.Cache
	slots  *slotSet
	passes []*RenderPass

	mix       float32
	dirty     bool
	scheduled bool

	framesRendered uint64
}

// New creates an uninitialized pipeline. Call Init with a device before
// rendering.
func New(cfg Config) *Pipeline {
	return &Pipeline{cfg: cfg, state: StateUninitialized}
}

// State returns the current lifecycle state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// FramesRendered reports how many frames have been drawn.
func (p *Pipeline) FramesRendered() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.framesRendered
}

// Cache exposes the pipeline's texture cache.
func (p *Pipeline) Cache() *texcache.Cache {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cache
}

// MixValue returns the current crossfade ratio.
func (p *Pipeline) MixValue() float32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mix
}

// Init builds the pass chain on device: background (aspect-fill into an
// offscreen target), composite (crossfade over the background) and,
// when the composition size differs from the surface, a final blit.
// Both slots start with solid placeholder textures so the first frame
// can render before any image loads.
//
// A failed Init releases everything it created and leaves the pipeline
// disposed; it cannot be retried on the same instance.
func (p *Pipeline) Init(device gfx.Device) error {
	if device == nil {
		return &gfx.ContextCreationError{Reason: "nil device"}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateUninitialized {
		return fmt.Errorf("compose: init in state %s: %w", p.state, ErrNotReady)
	}
	p.state = StateInitializing
	p.device = device

	if err := p.buildLocked(); err != nil {
		p.disposeLocked()
		return err
	}

	p.state = StateReady
	p.dirty = true
	slogger().Info("pipeline initialized", "passes", len(p.passes), "mix", p.mix)
	return nil
}

func (p *Pipeline) buildLocked() error {
	surfW, surfH := p.device.SurfaceSize()
	compW, compH := p.cfg.Width, p.cfg.Height
	if compW < 1 || compH < 1 {
		compW, compH = surfW, surfH
	}
	if compW < 1 || compH < 1 {
		return &gfx.FramebufferIncompleteError{Width: compW, Height: compH, Reason: "no composition size"}
	}

	p.cache = texcache.New(p.device, texcache.Options{
		Budget:  p.cfg.CacheBudget,
		Decoder: p.cfg.Decoder,
	})
	p.slots = newSlotSet(slotCount)

	bgTex, err := p.cache.Placeholder("placeholder/background", 1, 1, placeholderBackground)
	if err != nil {
		return err
	}
	fgTex, err := p.cache.Placeholder("placeholder/foreground", 1, 1, placeholderForeground)
	if err != nil {
		return err
	}
	p.slots.set(SlotBackground, "placeholder/background", bgTex)
	p.slots.set(SlotForeground, "placeholder/foreground", fgTex)

	// Background pass: slot 0 aspect-filled into an offscreen target.
	bgProgram, err := NewShaderProgram(p.device, gfx.ProgramDescriptor{
		Label:          "background",
		VertexSource:   fullscreenVertexWGSL,
		FragmentSource: backgroundFragmentWGSL,
		Uniforms: []gfx.UniformSpec{
			{Name: "u_res", Kind: gfx.UniformVec2},
			{Name: "u_texRes", Kind: gfx.UniformVec2},
		},
		Inputs: 1,
	})
	if err != nil {
		return err
	}
	bgTarget, err := NewRenderTarget(p.device, "background", compW, compH)
	if err != nil {
		bgProgram.Destroy()
		return err
	}
	bgPass, err := NewRenderPass("background", bgProgram, []Source{{Kind: SourceSlot, Slot: SlotBackground}}, bgTarget)
	if err != nil {
		bgProgram.Destroy()
		bgTarget.Destroy()
		return err
	}
	p.passes = append(p.passes, bgPass)

	// Composite pass: foreground crossfaded over the chained background.
	needBlit := compW != surfW || compH != surfH
	var compositeTarget *RenderTarget
	if needBlit {
		compositeTarget, err = NewRenderTarget(p.device, "composite", compW, compH)
		if err != nil {
			return err
		}
	}
	compositeProgram, err := NewShaderProgram(p.device, gfx.ProgramDescriptor{
		Label:          "composite",
		VertexSource:   fullscreenVertexWGSL,
		FragmentSource: compositeFragmentWGSL,
		Uniforms:       []gfx.UniformSpec{{Name: "u_mix", Kind: gfx.UniformFloat}},
		Inputs:         2,
	})
	if err != nil {
		if compositeTarget != nil {
			compositeTarget.Destroy()
		}
		return err
	}
	compositePass, err := NewRenderPass("composite", compositeProgram, []Source{
		{Kind: SourceChained},
		{Kind: SourceSlot, Slot: SlotForeground},
	}, compositeTarget)
	if err != nil {
		compositeProgram.Destroy()
		if compositeTarget != nil {
			compositeTarget.Destroy()
		}
		return err
	}
	p.passes = append(p.passes, compositePass)

	if needBlit {
		blitProgram, err := NewShaderProgram(p.device, gfx.ProgramDescriptor{
			Label:          "blit",
			VertexSource:   fullscreenVertexWGSL,
			FragmentSource: blitFragmentWGSL,
			Inputs:         1,
		})
		if err != nil {
			return err
		}
		blitPass, err := NewRenderPass("blit", blitProgram, []Source{{Kind: SourceChained}}, nil)
		if err != nil {
			blitProgram.Destroy()
			return err
		}
		p.passes = append(p.passes, blitPass)
	}

	compositePass.Binding().SetFloat("u_mix", p.mix)
	return nil
}

// SetMixValue sets the crossfade ratio, clamped to [0, 1]. Setting the
// current value again does not dirty the pipeline.
func (p *Pipeline) SetMixValue(v float32) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.mix = v
	if p.state == StateDisposed || p.state == StateUninitialized {
		return
	}
	changed := false
	for _, pass := range p.passes {
		if pass.Binding().Has("u_mix") && pass.Binding().SetFloat("u_mix", v) {
			changed = true
		}
	}
	if changed {
		p.markDirtyLocked()
	}
}

// UpdateTexture loads key into the given slot through the cache. The
// slot is validated synchronously; the decode runs without the pipeline
// lock. If a newer update for the same slot starts before this one
// finishes, the stale result is discarded and the newer one wins.
func (p *Pipeline) UpdateTexture(ctx context.Context, slotIdx int, key string) error {
	p.mu.Lock()
	if p.state != StateReady && p.state != StateRendering {
		p.mu.Unlock()
		return ErrNotReady
	}
	if !p.slots.valid(slotIdx) {
		p.mu.Unlock()
		return &gfx.InvalidSlotError{Slot: slotIdx, Count: p.slots.count()}
	}
	gen := p.slots.begin(slotIdx)
	cache := p.cache
	p.mu.Unlock()

	tex, err := cache.GetOrLoad(ctx, key)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateDisposed {
		return ErrNotReady
	}
	if !p.slots.complete(slotIdx, gen, key, tex) {
		slogger().Debug("discarded stale texture load", "slot", slotIdx, "key", key)
		return nil
	}
	p.markDirtyLocked()
	return nil
}

// RequestFrame marks the pipeline dirty and schedules one render. Any
// number of requests before the scheduler fires collapse into a single
// frame.
func (p *Pipeline) RequestFrame() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateReady && p.state != StateRendering {
		return
	}
	p.dirty = true
	p.scheduleLocked()
}

// RenderNow renders a frame immediately, regardless of the dirty flag,
// and clears it.
func (p *Pipeline) RenderNow() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateReady {
		return ErrNotReady
	}
	return p.renderLocked()
}

// Resize changes the composition size, reallocating offscreen targets.
func (p *Pipeline) Resize(width, height int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateReady {
		return ErrNotReady
	}
	for _, pass := range p.passes {
		if pass.Target() == nil {
			continue
		}
		if err := pass.Target().Resize(width, height); err != nil {
			return err
		}
	}
	p.cfg.Width, p.cfg.Height = width, height
	p.markDirtyLocked()
	return nil
}

// CreatePlaceholder installs a solid-color texture in a slot,
// replacing whatever is bound there. Any in-flight load for the slot
// lands stale afterward.
func (p *Pipeline) CreatePlaceholder(slotIdx, width, height int, fill color.RGBA) error {
	p.mu.Lock()
	if p.state != StateReady && p.state != StateRendering {
		p.mu.Unlock()
		return ErrNotReady
	}
	if !p.slots.valid(slotIdx) {
		p.mu.Unlock()
		return &gfx.InvalidSlotError{Slot: slotIdx, Count: p.slots.count()}
	}
	cache := p.cache
	p.mu.Unlock()

	key := fmt.Sprintf("placeholder/slot%d/%02x%02x%02x%02x", slotIdx, fill.R, fill.G, fill.B, fill.A)
	tex, err := cache.Placeholder(key, width, height, fill)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateDisposed {
		return ErrNotReady
	}
	p.slots.set(slotIdx, key, tex)
	p.markDirtyLocked()
	return nil
}

// Destroy tears down passes, cache and slots. Idempotent; the pipeline
// cannot be reused afterward.
func (p *Pipeline) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateDisposed {
		return
	}
	p.disposeLocked()
}

func (p *Pipeline) disposeLocked() {
	for _, pass := range p.passes {
		pass.Destroy()
	}
	p.passes = nil
	if p.cache != nil {
		p.cache.Close()
		p.cache = nil
	}
	p.slots = nil
	p.state = StateDisposed
	slogger().Info("pipeline disposed", "frames", p.framesRendered)
}

func (p *Pipeline) markDirtyLocked() {
	p.dirty = true
	p.scheduleLocked()
}

// scheduleLocked hands the render callback to the scheduler at most
// once per dirty period.
func (p *Pipeline) scheduleLocked() {
	if p.scheduled || p.cfg.Scheduler == nil {
		return
	}
	p.scheduled = true
	p.cfg.Scheduler.ScheduleOnce(p.renderScheduled)
}

func (p *Pipeline) renderScheduled() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scheduled = false
	if p.state != StateReady || !p.dirty {
		return
	}
	if err := p.renderLocked(); err != nil {
		slogger().Error("scheduled render failed", "error", err)
	}
}

func (p *Pipeline) renderLocked() error {
	p.state = StateRendering

	// Per-frame uniforms for the background aspect-fill.
	bg := p.passes[0]
	bgW, bgH := bg.Target().Size()
	bg.Binding().SetVec2("u_res", float32(bgW), float32(bgH))
	if tex := p.slots.texture(SlotBackground); tex != nil {
		bg.Binding().SetVec2("u_texRes", float32(tex.Width()), float32(tex.Height()))
	}

	var chained gfx.Texture
	for _, pass := range p.passes {
		if err := pass.Draw(p.device, chained, p.slots.texture); err != nil {
			p.state = StateReady
			return fmt.Errorf("compose: pass %q: %w", pass.Label(), err)
		}
		chained = pass.OutputTexture()
	}

	p.framesRendered++
	p.dirty = false
	p.state = StateReady
	return nil
}
