// Package texcache keeps decoded images resident as GPU textures under a
// byte budget, evicting the least recently used entries when the budget
// is exceeded. Recency is tracked with a monotonic logical clock rather
// than wall time, so access order is exact and testable.
package texcache

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/teoAlivanoglou/teo-media/gfx"
)

// DefaultBudget is the texture byte budget used when Options.Budget is zero.
const DefaultBudget = 256 << 20 // 256 MiB

// entryOverhead approximates per-entry bookkeeping cost beyond raw pixels.
const entryOverhead = 256

// ErrClosed is returned by operations on a closed cache.
var ErrClosed = errors.New("texcache: cache closed")

// ErrNotFound is returned when a key is not resident.
var ErrNotFound = errors.New("texcache: key not found")

// Options configures a Cache.
type Options struct {
	// Budget is the maximum resident texture bytes. Placeholders are
	// exempt. Zero means DefaultBudget.
	Budget int64

	// Decoder turns keys into pixels. Defaults to a FileDecoder.
	Decoder Decoder
}

// Stats is a point-in-time snapshot of cache state.
type Stats struct {
	Count       int   // resident entries, placeholders included
	ApproxBytes int64 // budgeted bytes (placeholders excluded)
	Budget      int64
	Hits        uint64
	Misses      uint64
	Evictions   uint64
}

type entry struct {
	key         string
	tex         gfx.Texture
	bytes       int64
	node        *lruNode[string]
	atime       uint64
	accesses    uint64
	pins        int
	placeholder bool
}

// Cache is a byte-budget LRU of GPU textures keyed by string.
// All methods are safe for concurrent use. Decoding happens outside the
// cache lock; concurrent loads of the same key may decode twice, with
// the loser's texture destroyed on insert.
type Cache struct {
	mu      sync.Mutex
	device  gfx.Device
	decoder Decoder

	entries map[string]*entry
	lru     *lruList[string]
	budget  int64
	used    int64
	tick    uint64
	closed  bool

	hits      uint64
	misses    uint64
	evictions uint64
}

// New creates a cache over the given device.
func New(device gfx.Device, opts Options) *Cache {
	if opts.Budget <= 0 {
		opts.Budget = DefaultBudget
	}
	if opts.Decoder == nil {
		opts.Decoder = &FileDecoder{}
	}
	return &Cache{
		device:  device,
		decoder: opts.Decoder,
		entries: make(map[string]*entry),
		lru:     newLRUList[string](),
		budget:  opts.Budget,
	}
}

// GetOrLoad returns the resident texture for key, decoding and uploading
// it on a miss. The load runs outside the cache lock. Failures are
// reported as *gfx.TextureLoadError.
func (c *Cache) GetOrLoad(ctx context.Context, key string) (gfx.Texture, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if e, ok := c.entries[key]; ok {
		c.touchLocked(e)
		c.hits++
		c.mu.Unlock()
		return e.tex, nil
	}
	c.misses++
	c.mu.Unlock()

	img, err := c.decoder.Decode(ctx, key)
	if err != nil {
		return nil, &gfx.TextureLoadError{Key: key, Cause: err}
	}
	tex, err := c.uploadImage(key, img)
	if err != nil {
		return nil, &gfx.TextureLoadError{Key: key, Cause: err}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		c.device.DestroyTexture(tex)
		return nil, ErrClosed
	}
	if e, ok := c.entries[key]; ok {
		// Lost a concurrent load of the same key. Keep the resident
		// texture so existing bindings stay valid.
		c.device.DestroyTexture(tex)
		c.touchLocked(e)
		return e.tex, nil
	}
	e := c.insertLocked(key, tex, false)
	c.evictLocked(e)
	return tex, nil
}

// Preload loads every key, decoding concurrently. All keys are attempted;
// failures are joined into the returned error.
func (c *Cache) Preload(ctx context.Context, keys []string) error {
	errs := make([]error, len(keys))
	var wg sync.WaitGroup
	for i, key := range keys {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = c.GetOrLoad(ctx, key)
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Placeholder installs a solid-color texture under key. Placeholders are
// exempt from the budget and are never evicted; they exist so the
// pipeline can render before real content arrives.
func (c *Cache) Placeholder(key string, width, height int, fill color.RGBA) (gfx.Texture, error) {
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("texcache: placeholder %q: invalid size %dx%d", key, width, height)
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i+0] = fill.R
		img.Pix[i+1] = fill.G
		img.Pix[i+2] = fill.B
		img.Pix[i+3] = fill.A
	}
	tex, err := c.uploadImage(key, img)
	if err != nil {
		return nil, &gfx.TextureLoadError{Key: key, Cause: err}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		c.device.DestroyTexture(tex)
		return nil, ErrClosed
	}
	if e, ok := c.entries[key]; ok {
		c.device.DestroyTexture(tex)
		return e.tex, nil
	}
	c.insertLocked(key, tex, true)
	return tex, nil
}

// Pin marks key as non-evictable until a matching Unpin.
func (c *Cache) Pin(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return fmt.Errorf("texcache: pin %q: %w", key, ErrNotFound)
	}
	e.pins++
	return nil
}

// Unpin releases one pin on key. Unpinning below zero is a no-op.
func (c *Cache) Unpin(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok && e.pins > 0 {
		e.pins--
	}
}

// Release drops key immediately, destroying its texture. Releasing an
// absent key is a no-op.
func (c *Cache) Release(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		c.removeLocked(e)
	}
}

// SetBudget changes the byte budget and evicts immediately if the new
// budget is exceeded.
func (c *Cache) SetBudget(budget int64) {
	if budget <= 0 {
		budget = DefaultBudget
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.budget = budget
	c.evictLocked(nil)
}

// Stats returns a snapshot of cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Count:       len(c.entries),
		ApproxBytes: c.used,
		Budget:      c.budget,
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evictions,
	}
}

// Close destroys all resident textures. Idempotent.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for _, e := range c.entries {
		c.device.DestroyTexture(e.tex)
	}
	c.entries = make(map[string]*entry)
	c.lru.Clear()
	c.used = 0
}

func (c *Cache) uploadImage(key string, img *image.RGBA) (gfx.Texture, error) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	tex, err := c.device.CreateTexture(gfx.TextureDescriptor{
		Label:  key,
		Width:  w,
		Height: h,
	})
	if err != nil {
		return nil, err
	}
	pix := img.Pix
	if img.Stride != w*4 {
		packed := make([]byte, w*h*4)
		for y := 0; y < h; y++ {
			copy(packed[y*w*4:(y+1)*w*4], img.Pix[y*img.Stride:y*img.Stride+w*4])
		}
		pix = packed
	}
	if err := c.device.UploadTexture(tex, pix); err != nil {
		c.device.DestroyTexture(tex)
		return nil, err
	}
	return tex, nil
}

func (c *Cache) touchLocked(e *entry) {
	c.tick++
	e.atime = c.tick
	e.accesses++
	c.lru.MoveToFront(e.node)
}

func (c *Cache) insertLocked(key string, tex gfx.Texture, placeholder bool) *entry {
	c.tick++
	e := &entry{
		key:         key,
		tex:         tex,
		atime:       c.tick,
		placeholder: placeholder,
	}
	if !placeholder {
		e.bytes = int64(tex.Width())*int64(tex.Height())*4 + entryOverhead
		c.used += e.bytes
	}
	e.node = c.lru.PushFront(key)
	c.entries[key] = e
	return e
}

// evictLocked removes least recently used entries until used bytes fit
// the budget. keep, when non-nil, is the entry that triggered eviction
// and is never evicted in the same pass.
func (c *Cache) evictLocked(keep *entry) {
	if c.used <= c.budget {
		return
	}
	var victims []*entry
	projected := c.used
	c.lru.Walk(func(key string) bool {
		e := c.entries[key]
		if e == keep || e.placeholder || e.pins > 0 {
			return true
		}
		victims = append(victims, e)
		projected -= e.bytes
		return projected > c.budget
	})
	for _, e := range victims {
		c.removeLocked(e)
		c.evictions++
		slogger().Debug("evicted texture", "key", e.key, "bytes", e.bytes, "accesses", e.accesses)
	}
}

func (c *Cache) removeLocked(e *entry) {
	c.lru.Remove(e.node)
	delete(c.entries, e.key)
	if !e.placeholder {
		c.used -= e.bytes
	}
	c.device.DestroyTexture(e.tex)
}
