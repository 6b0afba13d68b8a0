package mesh

import "fmt"

// InterleavedBufferName is the buffer holding all attributes in interleaved mode.
const InterleavedBufferName = "Interleaved"

// Layout describes where each attribute lives.
//
// In interleaved mode every attribute is packed into one buffer at its offset and Stride is
// the per-vertex size. In planar mode each attribute has its own tightly packed buffer and
// the offsets are unused.
type Layout struct {
	Interleaved bool
	Stride      uint32
	Attributes  AttributeSet

	PositionOffset  uint32
	NormalOffset    uint32
	TangentOffset   uint32
	ColorOffsets    []uint32
	TexCoordOffsets []uint32
}

// PlanLayout computes offsets in the fixed order position, normal, tangent, colors, texcoords.
func PlanLayout(set AttributeSet, interleaved bool) Layout {
	l := Layout{Interleaved: interleaved, Attributes: set}
	if !interleaved {
		return l
	}

	var off uint32
	for _, a := range set.List() {
		switch a.Kind {
		case AttrPosition:
			l.PositionOffset = off
		case AttrNormal:
			l.NormalOffset = off
		case AttrTangent:
			l.TangentOffset = off
		case AttrColor:
			l.ColorOffsets = append(l.ColorOffsets, off)
		case AttrTexCoord:
			l.TexCoordOffsets = append(l.TexCoordOffsets, off)
		}
		off += uint32(a.Size())
	}
	l.Stride = off
	return l
}

// Offset returns the byte offset of a inside an interleaved vertex.
func (l Layout) Offset(a Attribute) (uint32, bool) {
	if !l.Interleaved {
		return 0, false
	}
	switch a.Kind {
	case AttrPosition:
		return l.PositionOffset, true
	case AttrNormal:
		return l.NormalOffset, l.Attributes.HasNormals
	case AttrTangent:
		return l.TangentOffset, l.Attributes.HasTangents
	case AttrColor:
		if a.Channel < len(l.ColorOffsets) {
			return l.ColorOffsets[a.Channel], true
		}
	case AttrTexCoord:
		if a.Channel < len(l.TexCoordOffsets) {
			return l.TexCoordOffsets[a.Channel], true
		}
	}
	return 0, false
}

// Equal compares two layouts field by field.
func (l Layout) Equal(o Layout) bool {
	if l.Interleaved != o.Interleaved || l.Stride != o.Stride || l.Attributes != o.Attributes ||
		l.PositionOffset != o.PositionOffset || l.NormalOffset != o.NormalOffset ||
		l.TangentOffset != o.TangentOffset ||
		len(l.ColorOffsets) != len(o.ColorOffsets) || len(l.TexCoordOffsets) != len(o.TexCoordOffsets) {
		return false
	}
	for i := range l.ColorOffsets {
		if l.ColorOffsets[i] != o.ColorOffsets[i] {
			return false
		}
	}
	for i := range l.TexCoordOffsets {
		if l.TexCoordOffsets[i] != o.TexCoordOffsets[i] {
			return false
		}
	}
	return true
}

// VertexBufferNames lists the vertex buffers a layout allocates, in stream order.
func (l Layout) VertexBufferNames() []string {
	if l.Interleaved {
		return []string{InterleavedBufferName}
	}
	attrs := l.Attributes.List()
	names := make([]string, len(attrs))
	for i, a := range attrs {
		names[i] = a.Name()
	}
	return names
}

// InitMeshBuffers plans the vertex layout using the mesh's configured interleaving and
// allocates its buffers for VertexCount vertices. Previously allocated vertex buffers are
// dropped first, so the call can be repeated. Cached acceleration data is invalidated.
func (m *Mesh) InitMeshBuffers(hasNormals, hasTangents bool, colorCount, texCoordCount int) error {
	if m == nil {
		return ErrNilMesh
	}
	return m.initBuffers(AttributeSet{
		HasNormals:  hasNormals,
		HasTangents: hasTangents,
		Colors:      colorCount,
		TexCoords:   texCoordCount,
	}, m.opts.Interleaved)
}

func (m *Mesh) initBuffers(set AttributeSet, interleaved bool) error {
	if set.Colors < 0 || set.TexCoords < 0 {
		return fmt.Errorf("%w: negative channel count (colors %d, texcoords %d)",
			ErrLayoutMismatch, set.Colors, set.TexCoords)
	}

	for _, name := range m.layout.VertexBufferNames() {
		m.buffers.Remove(name)
	}

	l := PlanLayout(set, interleaved)
	if interleaved {
		m.buffers.Set(&Buffer{
			Name:       InterleavedBufferName,
			Target:     TargetVertex,
			Component:  ComponentFloat32,
			Components: int(l.Stride / 4),
			Count:      m.vertexCount,
			Stride:     int(l.Stride),
			Data:       make([]byte, int(l.Stride)*m.vertexCount),
		})
	} else {
		for _, a := range set.List() {
			m.buffers.Set(NewBuffer(a.Name(), TargetVertex, ComponentFloat32, a.Components(), m.vertexCount))
		}
	}
	m.layout = l
	m.ClearAccelerationCaches()
	return nil
}

// attributeView returns the view that reads or writes attribute a.
func (m *Mesh) attributeView(a Attribute) (View, error) {
	if m.layout.Interleaved {
		off, ok := m.layout.Offset(a)
		if !ok {
			return View{}, fmt.Errorf("%w: attribute %s not in layout", ErrLayoutMismatch, a.Name())
		}
		b, ok := m.buffers.Get(InterleavedBufferName)
		if !ok || b.Data == nil {
			return View{}, fmt.Errorf("%w: %s", ErrMissingBuffer, InterleavedBufferName)
		}
		return b.View(int(off)), nil
	}
	b, ok := m.buffers.Get(a.Name())
	if !ok || b.Data == nil {
		return View{}, fmt.Errorf("%w: %s", ErrMissingBuffer, a.Name())
	}
	return b.View(0), nil
}
