package gfx

import (
	"encoding/binary"
	"math"
)

// UniformKind enumerates the scalar kinds a uniform block member may have.
type UniformKind int

const (
	UniformFloat UniformKind = iota // 32-bit float, 4-byte aligned
	UniformVec2                     // two 32-bit floats, 8-byte aligned
	UniformInt                      // 32-bit signed int, 4-byte aligned
)

// String returns the kind name.
func (k UniformKind) String() string {
	switch k {
	case UniformFloat:
		return "float"
	case UniformVec2:
		return "vec2"
	case UniformInt:
		return "int"
	default:
		return "unknown"
	}
}

func (k UniformKind) size() int {
	if k == UniformVec2 {
		return 8
	}
	return 4
}

func (k UniformKind) align() int {
	if k == UniformVec2 {
		return 8
	}
	return 4
}

// UniformSpec declares one uniform block member.
type UniformSpec struct {
	Name string
	Kind UniformKind
}

type uniformField struct {
	kind   UniformKind
	offset int
}

// UniformLayout assigns a byte offset to every declared uniform using
// std140-style alignment: floats and ints on 4 bytes, vec2 on 8 bytes,
// with the total size padded to a 16-byte multiple. Offsets are stable
// for a given declaration order, so a packed block written against one
// layout instance matches any other built from the same specs.
type UniformLayout struct {
	fields map[string]uniformField
	size   int
}

// NewUniformLayout packs specs in declaration order.
func NewUniformLayout(specs []UniformSpec) *UniformLayout {
	l := &UniformLayout{fields: make(map[string]uniformField, len(specs))}
	off := 0
	for _, s := range specs {
		a := s.Kind.align()
		off = (off + a - 1) &^ (a - 1)
		l.fields[s.Name] = uniformField{kind: s.Kind, offset: off}
		off += s.Kind.size()
	}
	l.size = (off + 15) &^ 15
	return l
}

// Size returns the padded byte size of the block. Zero when no uniforms
// are declared.
func (l *UniformLayout) Size() int {
	if l == nil || len(l.fields) == 0 {
		return 0
	}
	return l.size
}

// Offset returns the byte offset of the named uniform and whether it exists.
func (l *UniformLayout) Offset(name string) (int, bool) {
	if l == nil {
		return 0, false
	}
	f, ok := l.fields[name]
	return f.offset, ok
}

// Kind returns the kind of the named uniform and whether it exists.
func (l *UniformLayout) Kind(name string) (UniformKind, bool) {
	if l == nil {
		return 0, false
	}
	f, ok := l.fields[name]
	return f.kind, ok
}

// PutFloat writes a float32 at the named member's offset in block.
func (l *UniformLayout) PutFloat(block []byte, name string, v float32) bool {
	off, ok := l.Offset(name)
	if !ok {
		return false
	}
	binary.LittleEndian.PutUint32(block[off:], math.Float32bits(v))
	return true
}

// PutVec2 writes two float32s at the named member's offset in block.
func (l *UniformLayout) PutVec2(block []byte, name string, x, y float32) bool {
	off, ok := l.Offset(name)
	if !ok {
		return false
	}
	binary.LittleEndian.PutUint32(block[off:], math.Float32bits(x))
	binary.LittleEndian.PutUint32(block[off+4:], math.Float32bits(y))
	return true
}

// PutInt writes an int32 at the named member's offset in block.
func (l *UniformLayout) PutInt(block []byte, name string, v int32) bool {
	off, ok := l.Offset(name)
	if !ok {
		return false
	}
	binary.LittleEndian.PutUint32(block[off:], uint32(v))
	return true
}

// Float reads the named float32 member from block.
func (l *UniformLayout) Float(block []byte, name string) (float32, bool) {
	off, ok := l.Offset(name)
	if !ok || off+4 > len(block) {
		return 0, false
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(block[off:])), true
}

// Vec2 reads the named vec2 member from block.
func (l *UniformLayout) Vec2(block []byte, name string) (x, y float32, ok bool) {
	off, found := l.Offset(name)
	if !found || off+8 > len(block) {
		return 0, 0, false
	}
	x = math.Float32frombits(binary.LittleEndian.Uint32(block[off:]))
	y = math.Float32frombits(binary.LittleEndian.Uint32(block[off+4:]))
	return x, y, true
}
