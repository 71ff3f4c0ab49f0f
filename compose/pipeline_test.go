package compose

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/teoAlivanoglou/teo-media/backend/soft"
	"github.com/teoAlivanoglou/teo-media/gfx"
	"github.com/teoAlivanoglou/teo-media/texcache"
)

func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i+0], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

var testImages = map[string]*image.RGBA{
	"red":   solidImage(4, 4, color.RGBA{R: 255, A: 255}),
	"blue":  solidImage(4, 4, color.RGBA{B: 255, A: 255}),
	"green": solidImage(4, 4, color.RGBA{G: 255, A: 255}),
}

func testDecoder() texcache.Decoder {
	return texcache.DecoderFunc(func(_ context.Context, key string) (*image.RGBA, error) {
		img, ok := testImages[key]
		if !ok {
			return nil, fmt.Errorf("no such image %q", key)
		}
		return img, nil
	})
}

func newTestPipeline(t *testing.T, dev *soft.Device) (*Pipeline, *ManualScheduler) {
	t.Helper()
	sched := &ManualScheduler{}
	p := New(Config{Decoder: testDecoder(), Scheduler: sched})
	if err := p.Init(dev); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(p.Destroy)
	return p, sched
}

func TestInitNilDevice(t *testing.T) {
	p := New(Config{})
	err := p.Init(nil)
	var ce *gfx.ContextCreationError
	if !errors.As(err, &ce) {
		t.Fatalf("Init(nil) = %v, want ContextCreationError", err)
	}
	if p.State() != StateUninitialized {
		t.Fatalf("state = %s, want uninitialized", p.State())
	}
}

func TestInitTwice(t *testing.T) {
	dev := soft.New(4, 4)
	p, _ := newTestPipeline(t, dev)
	if err := p.Init(dev); err == nil {
		t.Fatal("second Init should fail")
	}
}

func TestInitRendersFromPlaceholders(t *testing.T) {
	dev := soft.New(4, 4)
	p, _ := newTestPipeline(t, dev)

	if p.State() != StateReady {
		t.Fatalf("state = %s, want ready", p.State())
	}
	if err := p.RenderNow(); err != nil {
		t.Fatalf("RenderNow: %v", err)
	}
	if p.FramesRendered() != 1 {
		t.Fatalf("FramesRendered = %d, want 1", p.FramesRendered())
	}
	// Mix starts at 0, so the surface shows the background placeholder.
	img := dev.ReadSurface()
	want := placeholderBackground
	if img.Pix[0] != want.R || img.Pix[1] != want.G || img.Pix[2] != want.B {
		t.Fatalf("surface pixel = %v, want placeholder %v", img.Pix[0:4], want)
	}
}

func TestRequestFrameCoalesces(t *testing.T) {
	dev := soft.New(4, 4)
	p, sched := newTestPipeline(t, dev)

	for i := 0; i < 5; i++ {
		p.RequestFrame()
	}
	if sched.Pending() != 1 {
		t.Fatalf("Pending = %d, want 1 scheduled render for 5 requests", sched.Pending())
	}

	sched.Tick()
	if p.FramesRendered() != 1 {
		t.Fatalf("FramesRendered = %d, want 1", p.FramesRendered())
	}

	// Nothing dirty, nothing scheduled.
	sched.Tick()
	if p.FramesRendered() != 1 {
		t.Fatal("clean pipeline must not render again")
	}

	// A new request after the frame schedules again.
	p.RequestFrame()
	if sched.Pending() != 1 {
		t.Fatalf("Pending = %d, want 1", sched.Pending())
	}
}

func TestRenderNowClearsDirty(t *testing.T) {
	dev := soft.New(4, 4)
	p, sched := newTestPipeline(t, dev)

	p.RequestFrame()
	p.RequestFrame()
	if err := p.RenderNow(); err != nil {
		t.Fatalf("RenderNow: %v", err)
	}

	// The queued callback still runs but finds nothing dirty.
	sched.Tick()
	if p.FramesRendered() != 1 {
		t.Fatalf("FramesRendered = %d, want 1", p.FramesRendered())
	}
}

func TestSetMixValueIdempotent(t *testing.T) {
	dev := soft.New(4, 4)
	p, sched := newTestPipeline(t, dev)

	p.SetMixValue(0.3)
	if sched.Pending() != 1 {
		t.Fatalf("Pending = %d, want 1 after first change", sched.Pending())
	}
	sched.Tick()

	p.SetMixValue(0.3)
	if sched.Pending() != 0 {
		t.Fatal("setting the same mix value must not schedule a frame")
	}

	p.SetMixValue(0.4)
	if sched.Pending() != 1 {
		t.Fatal("a different mix value must schedule a frame")
	}
}

func TestSetMixValueClamps(t *testing.T) {
	dev := soft.New(4, 4)
	p, _ := newTestPipeline(t, dev)

	p.SetMixValue(2.5)
	if got := p.MixValue(); got != 1 {
		t.Fatalf("MixValue = %v, want clamped to 1", got)
	}
	p.SetMixValue(-3)
	if got := p.MixValue(); got != 0 {
		t.Fatalf("MixValue = %v, want clamped to 0", got)
	}
}

func TestUpdateTextureInvalidSlot(t *testing.T) {
	dev := soft.New(4, 4)
	p, _ := newTestPipeline(t, dev)

	err := p.UpdateTexture(context.Background(), 7, "red")
	var se *gfx.InvalidSlotError
	if !errors.As(err, &se) || se.Slot != 7 || se.Count != slotCount {
		t.Fatalf("UpdateTexture(7) = %v, want InvalidSlotError{7, %d}", err, slotCount)
	}
}

func TestUpdateTextureFailureKeepsSlot(t *testing.T) {
	dev := soft.New(4, 4)
	p, sched := newTestPipeline(t, dev)

	err := p.UpdateTexture(context.Background(), SlotBackground, "missing")
	var le *gfx.TextureLoadError
	if !errors.As(err, &le) {
		t.Fatalf("want TextureLoadError, got %v", err)
	}
	if sched.Pending() != 0 {
		t.Fatal("failed load must not schedule a frame")
	}

	// Placeholder still renders.
	if err := p.RenderNow(); err != nil {
		t.Fatalf("RenderNow: %v", err)
	}
}

func TestMixRoundTrip(t *testing.T) {
	dev := soft.New(4, 4)
	p, sched := newTestPipeline(t, dev)
	ctx := context.Background()

	if err := p.UpdateTexture(ctx, SlotBackground, "red"); err != nil {
		t.Fatalf("UpdateTexture(background): %v", err)
	}
	if err := p.UpdateTexture(ctx, SlotForeground, "blue"); err != nil {
		t.Fatalf("UpdateTexture(foreground): %v", err)
	}
	p.SetMixValue(0.5)
	sched.Tick()

	img := dev.ReadSurface()
	got := img.Pix[0:4]
	want := []byte{128, 0, 128, 255}
	for i := range want {
		d := int(got[i]) - int(want[i])
		if d < -1 || d > 1 {
			t.Fatalf("surface pixel = %v, want ~%v", got, want)
		}
	}
}

func TestStaleTextureLoadDiscarded(t *testing.T) {
	dev := soft.New(4, 4)
	release := make(chan struct{})
	dec := texcache.DecoderFunc(func(_ context.Context, key string) (*image.RGBA, error) {
		if key == "slow-green" {
			<-release
			return testImages["green"], nil
		}
		img, ok := testImages[key]
		if !ok {
			return nil, fmt.Errorf("no such image %q", key)
		}
		return img, nil
	})

	sched := &ManualScheduler{}
	p := New(Config{Decoder: dec, Scheduler: sched})
	if err := p.Init(dev); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(p.Destroy)

	done := make(chan error, 1)
	go func() {
		done <- p.UpdateTexture(context.Background(), SlotBackground, "slow-green")
	}()

	// The newer load wins the slot before the slow one finishes.
	// Wait until the slow load holds a generation ticket.
	waitFor(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.slots.slots[SlotBackground].gen >= 2
	})
	if err := p.UpdateTexture(context.Background(), SlotBackground, "red"); err != nil {
		t.Fatalf("UpdateTexture(red): %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("slow UpdateTexture: %v", err)
	}

	p.mu.Lock()
	key := p.slots.keyOf(SlotBackground)
	p.mu.Unlock()
	if key != "red" {
		t.Fatalf("slot key = %q, want the newer load to win", key)
	}
}

func TestBlitPassWhenCompositionDiffersFromSurface(t *testing.T) {
	dev := soft.New(8, 8)
	sched := &ManualScheduler{}
	p := New(Config{Width: 4, Height: 4, Decoder: testDecoder(), Scheduler: sched})
	if err := p.Init(dev); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(p.Destroy)

	if len(p.passes) != 3 {
		t.Fatalf("pass count = %d, want background+composite+blit", len(p.passes))
	}
	if err := p.UpdateTexture(context.Background(), SlotBackground, "red"); err != nil {
		t.Fatalf("UpdateTexture: %v", err)
	}
	if err := p.RenderNow(); err != nil {
		t.Fatalf("RenderNow: %v", err)
	}
	img := dev.ReadSurface()
	if img.Pix[0] != 255 || img.Pix[2] != 0 {
		t.Fatalf("surface pixel = %v, want red through the blit", img.Pix[0:4])
	}
}

func TestResizeDirtiesPipeline(t *testing.T) {
	dev := soft.New(8, 8)
	sched := &ManualScheduler{}
	p := New(Config{Width: 4, Height: 4, Decoder: testDecoder(), Scheduler: sched})
	if err := p.Init(dev); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(p.Destroy)

	if err := p.Resize(6, 6); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if sched.Pending() != 1 {
		t.Fatal("Resize should schedule a frame")
	}
	bgW, bgH := p.passes[0].Target().Size()
	if bgW != 6 || bgH != 6 {
		t.Fatalf("background target = %dx%d, want 6x6", bgW, bgH)
	}
}

func TestCreatePlaceholderRebindsSlot(t *testing.T) {
	dev := soft.New(4, 4)
	p, sched := newTestPipeline(t, dev)

	err := p.CreatePlaceholder(SlotBackground, 1, 1, color.RGBA{R: 200, G: 10, B: 10, A: 255})
	if err != nil {
		t.Fatalf("CreatePlaceholder: %v", err)
	}
	if sched.Pending() != 1 {
		t.Fatal("placeholder rebind should schedule a frame")
	}
	sched.Tick()

	img := dev.ReadSurface()
	if img.Pix[0] != 200 || img.Pix[1] != 10 {
		t.Fatalf("surface pixel = %v, want the new placeholder color", img.Pix[0:4])
	}

	var se *gfx.InvalidSlotError
	if err := p.CreatePlaceholder(9, 1, 1, color.RGBA{}); !errors.As(err, &se) {
		t.Fatalf("CreatePlaceholder(9) = %v, want InvalidSlotError", err)
	}
}

// flakyDevice fails draws on demand to exercise render error paths.
type flakyDevice struct {
	*soft.Device
	fail bool
}

func (d *flakyDevice) Draw(op gfx.DrawOp) error {
	if d.fail {
		return errors.New("device lost")
	}
	return d.Device.Draw(op)
}

func TestRenderFailureKeepsDirty(t *testing.T) {
	dev := &flakyDevice{Device: soft.New(4, 4)}
	sched := &ManualScheduler{}
	p := New(Config{Decoder: testDecoder(), Scheduler: sched})
	if err := p.Init(dev); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(p.Destroy)

	dev.fail = true
	if err := p.RenderNow(); err == nil {
		t.Fatal("RenderNow should surface the draw error")
	}
	if p.State() != StateReady {
		t.Fatalf("state = %s, want ready after a failed render", p.State())
	}

	// The frame stayed pending, so the next request renders it.
	dev.fail = false
	p.RequestFrame()
	sched.Tick()
	if p.FramesRendered() != 1 {
		t.Fatalf("FramesRendered = %d, want 1 after retry", p.FramesRendered())
	}
}

func TestDestroyReleasesEverything(t *testing.T) {
	dev := soft.New(4, 4)
	p, _ := newTestPipeline(t, dev)
	if err := p.UpdateTexture(context.Background(), SlotBackground, "red"); err != nil {
		t.Fatalf("UpdateTexture: %v", err)
	}

	p.Destroy()
	p.Destroy() // idempotent

	if p.State() != StateDisposed {
		t.Fatalf("state = %s, want disposed", p.State())
	}
	if dev.TextureCount() != 0 || dev.FramebufferCount() != 0 {
		t.Fatalf("leaked resources: %d textures, %d framebuffers", dev.TextureCount(), dev.FramebufferCount())
	}
	if err := p.RenderNow(); !errors.Is(err, ErrNotReady) {
		t.Fatalf("RenderNow after Destroy = %v, want ErrNotReady", err)
	}
	if err := p.UpdateTexture(context.Background(), 0, "red"); !errors.Is(err, ErrNotReady) {
		t.Fatalf("UpdateTexture after Destroy = %v, want ErrNotReady", err)
	}
}

func TestStateString(t *testing.T) {
	states := map[State]string{
		StateUninitialized: "uninitialized",
		StateInitializing:  "initializing",
		StateReady:         "ready",
		StateRendering:     "rendering",
		StateDisposed:      "disposed",
		State(99):          "unknown",
	}
	for s, want := range states {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	for i := 0; i < 1000; i++ {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition never became true")
}
