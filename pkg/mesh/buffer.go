package mesh

import (
	"encoding/binary"
	"fmt"

	"github.com/chewxy/math32"

	"github.com/Faultbox/meshforge/pkg/math"
)

// ComponentType is the scalar type of a buffer element component.
type ComponentType uint8

const (
	ComponentFloat32 ComponentType = iota
	ComponentInt32
	ComponentUint32
	ComponentInt16
	ComponentUint16
	ComponentUint8
)

// Size returns the component size in bytes.
func (c ComponentType) Size() int {
	switch c {
	case ComponentInt16, ComponentUint16:
		return 2
	case ComponentUint8:
		return 1
	default:
		return 4
	}
}

// String returns the component type name.
func (c ComponentType) String() string {
	switch c {
	case ComponentFloat32:
		return "float32"
	case ComponentInt32:
		return "int32"
	case ComponentUint32:
		return "uint32"
	case ComponentInt16:
		return "int16"
	case ComponentUint16:
		return "uint16"
	case ComponentUint8:
		return "uint8"
	}
	return fmt.Sprintf("component(%d)", c)
}

// BufferTarget says how the graphics layer binds a buffer.
type BufferTarget uint8

const (
	TargetVertex BufferTarget = iota
	TargetIndex
	TargetStorage
)

// Buffer is a packed, GPU-bound byte buffer of Count elements of Stride bytes.
type Buffer struct {
	Name       string
	Target     BufferTarget
	Component  ComponentType
	Components int
	Count      int
	Stride     int
	Normalize  bool
	Integral   bool
	Data       []byte

	// GPUPayload holds opaque block-compressed contents. It is handed to the graphics
	// layer as is and never decoded; Data is nil when only the payload is available.
	GPUPayload []byte
}

// NewBuffer allocates a tightly packed buffer.
func NewBuffer(name string, target BufferTarget, comp ComponentType, components, count int) *Buffer {
	stride := comp.Size() * components
	return &Buffer{
		Name:       name,
		Target:     target,
		Component:  comp,
		Components: components,
		Count:      count,
		Stride:     stride,
		Integral:   comp != ComponentFloat32,
		Data:       make([]byte, stride*count),
	}
}

// Size returns the logical size in bytes.
func (b *Buffer) Size() int {
	return b.Stride * b.Count
}

// Padded reports whether elements carry bytes beyond their components.
func (b *Buffer) Padded() bool {
	return b.Stride != b.Component.Size()*b.Components
}

// Clone returns a deep copy.
func (b *Buffer) Clone() *Buffer {
	if b == nil {
		return nil
	}
	out := *b
	if b.Data != nil {
		out.Data = append([]byte(nil), b.Data...)
	}
	if b.GPUPayload != nil {
		out.GPUPayload = append([]byte(nil), b.GPUPayload...)
	}
	return &out
}

// View returns a typed view at byteOffset inside every element.
func (b *Buffer) View(byteOffset int) View {
	return View{buf: b, offset: byteOffset}
}

// View reads and writes typed values at a fixed offset inside each element.
// Every access goes through a slice expression, so out-of-range writes panic instead
// of corrupting neighbouring memory.
type View struct {
	buf    *Buffer
	offset int
}

func (v View) at(i, size int) []byte {
	start := i*v.buf.Stride + v.offset
	return v.buf.Data[start : start+size : start+size]
}

func (v View) SetFloat32(i int, f float32) {
	binary.LittleEndian.PutUint32(v.at(i, 4), math32.Float32bits(f))
}

func (v View) Float32(i int) float32 {
	return math32.Float32frombits(binary.LittleEndian.Uint32(v.at(i, 4)))
}

func (v View) SetVec2(i int, x math.Vec2) {
	p := v.at(i, 8)
	binary.LittleEndian.PutUint32(p[0:], math32.Float32bits(x.X))
	binary.LittleEndian.PutUint32(p[4:], math32.Float32bits(x.Y))
}

func (v View) Vec2(i int) math.Vec2 {
	p := v.at(i, 8)
	return math.Vec2{
		X: math32.Float32frombits(binary.LittleEndian.Uint32(p[0:])),
		Y: math32.Float32frombits(binary.LittleEndian.Uint32(p[4:])),
	}
}

func (v View) SetVec3(i int, x math.Vec3) {
	p := v.at(i, 12)
	binary.LittleEndian.PutUint32(p[0:], math32.Float32bits(x.X))
	binary.LittleEndian.PutUint32(p[4:], math32.Float32bits(x.Y))
	binary.LittleEndian.PutUint32(p[8:], math32.Float32bits(x.Z))
}

func (v View) Vec3(i int) math.Vec3 {
	p := v.at(i, 12)
	return math.Vec3{
		X: math32.Float32frombits(binary.LittleEndian.Uint32(p[0:])),
		Y: math32.Float32frombits(binary.LittleEndian.Uint32(p[4:])),
		Z: math32.Float32frombits(binary.LittleEndian.Uint32(p[8:])),
	}
}

func (v View) SetVec4(i int, x math.Vec4) {
	p := v.at(i, 16)
	for c := 0; c < 4; c++ {
		binary.LittleEndian.PutUint32(p[c*4:], math32.Float32bits(x[c]))
	}
}

func (v View) Vec4(i int) math.Vec4 {
	p := v.at(i, 16)
	var out math.Vec4
	for c := 0; c < 4; c++ {
		out[c] = math32.Float32frombits(binary.LittleEndian.Uint32(p[c*4:]))
	}
	return out
}

// SetInt32 writes component c of element i.
func (v View) SetInt32(i, c int, x int32) {
	binary.LittleEndian.PutUint32(v.at(i, 4*(c+1))[4*c:], uint32(x))
}

// Int32 reads component c of element i.
func (v View) Int32(i, c int) int32 {
	return int32(binary.LittleEndian.Uint32(v.at(i, 4*(c+1))[4*c:]))
}

// SetFloat32At writes float component c of element i.
func (v View) SetFloat32At(i, c int, f float32) {
	binary.LittleEndian.PutUint32(v.at(i, 4*(c+1))[4*c:], math32.Float32bits(f))
}

// Float32At reads float component c of element i.
func (v View) Float32At(i, c int) float32 {
	return math32.Float32frombits(binary.LittleEndian.Uint32(v.at(i, 4*(c+1))[4*c:]))
}

// Buffers is a named buffer collection that remembers insertion order.
type Buffers struct {
	order  []string
	byName map[string]*Buffer
}

// NewBuffers creates an empty collection.
func NewBuffers() *Buffers {
	return &Buffers{byName: make(map[string]*Buffer)}
}

// Set adds or replaces a buffer under its name.
func (c *Buffers) Set(b *Buffer) {
	if _, ok := c.byName[b.Name]; !ok {
		c.order = append(c.order, b.Name)
	}
	c.byName[b.Name] = b
}

// Get returns the buffer registered under name.
func (c *Buffers) Get(name string) (*Buffer, bool) {
	b, ok := c.byName[name]
	return b, ok
}

// Remove drops the buffer registered under name.
func (c *Buffers) Remove(name string) {
	if _, ok := c.byName[name]; !ok {
		return
	}
	delete(c.byName, name)
	for i, n := range c.order {
		if n == name {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Clear drops every buffer.
func (c *Buffers) Clear() {
	c.order = nil
	c.byName = make(map[string]*Buffer)
}

// Names returns buffer names in insertion order.
func (c *Buffers) Names() []string {
	return append([]string(nil), c.order...)
}

// Len returns the number of buffers.
func (c *Buffers) Len() int {
	return len(c.order)
}

// Clone deep-copies every buffer.
func (c *Buffers) Clone() *Buffers {
	out := NewBuffers()
	for _, n := range c.order {
		out.Set(c.byName[n].Clone())
	}
	return out
}
