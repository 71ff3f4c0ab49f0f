package compose

import "github.com/teoAlivanoglou/teo-media/gfx"

// slot tracks the texture bound to one pipeline input position along
// with a generation counter. Loads run outside the pipeline lock; the
// generation lets a finished load detect that a newer request for the
// same slot started meanwhile, so only the latest request wins.
type slot struct {
	key string
	tex gfx.Texture
	gen uint64
}

type slotSet struct {
	slots []slot
}

func newSlotSet(n int) *slotSet {
	return &slotSet{slots: make([]slot, n)}
}

func (s *slotSet) count() int { return len(s.slots) }

func (s *slotSet) valid(i int) bool { return i >= 0 && i < len(s.slots) }

// begin records the start of a load for slot i and returns the
// generation the load must present on completion.
func (s *slotSet) begin(i int) uint64 {
	s.slots[i].gen++
	return s.slots[i].gen
}

// complete installs tex in slot i if gen is still current. A stale
// generation means a newer load superseded this one; the texture is
// not installed and false is returned.
func (s *slotSet) complete(i int, gen uint64, key string, tex gfx.Texture) bool {
	if s.slots[i].gen != gen {
		return false
	}
	s.slots[i].key = key
	s.slots[i].tex = tex
	return true
}

// set installs tex unconditionally, bumping the generation so any
// in-flight load for the slot lands stale.
func (s *slotSet) set(i int, key string, tex gfx.Texture) {
	s.slots[i].gen++
	s.slots[i].key = key
	s.slots[i].tex = tex
}

func (s *slotSet) texture(i int) gfx.Texture {
	if !s.valid(i) {
		return nil
	}
	return s.slots[i].tex
}

func (s *slotSet) keyOf(i int) string { return s.slots[i].key }
