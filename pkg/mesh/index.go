package mesh

import (
	"encoding/binary"
	"sync"
)

type indexCache struct {
	mu      sync.Mutex
	buffers map[PrimitiveType]*Buffer
}

func (c *indexCache) clear() {
	c.mu.Lock()
	c.buffers = nil
	c.mu.Unlock()
}

// IndexComponent returns the smallest index type that can address vertexCount vertices.
func IndexComponent(vertexCount int) ComponentType {
	switch {
	case vertexCount <= 1<<8:
		return ComponentUint8
	case vertexCount <= 1<<16:
		return ComponentUint16
	default:
		return ComponentUint32
	}
}

// IndexBuffer returns the flattened index buffer for the mesh's primitives, building it on
// first use. The buffer is shared between callers and must be treated as read-only.
// It returns false when the mesh has no primitives of type t.
func (m *Mesh) IndexBuffer(t PrimitiveType) (*Buffer, bool) {
	if t != m.primType || t == PrimitiveNone {
		return nil, false
	}

	m.indices.mu.Lock()
	defer m.indices.mu.Unlock()
	if b, ok := m.indices.buffers[t]; ok {
		return b, true
	}

	var flat []int32
	switch t {
	case PrimitiveTriangles:
		flat = make([]int32, 0, 3*len(m.triangles))
		for _, tri := range m.triangles {
			flat = append(flat, tri[0], tri[1], tri[2])
		}
	case PrimitiveLines:
		flat = make([]int32, 0, 2*len(m.lines))
		for _, l := range m.lines {
			flat = append(flat, l[0], l[1])
		}
	case PrimitivePoints:
		flat = m.points
	}

	comp := IndexComponent(m.vertexCount)
	b := NewBuffer("Index"+t.String(), TargetIndex, comp, 1, len(flat))
	size := comp.Size()
	for i, idx := range flat {
		p := b.Data[i*size:]
		switch comp {
		case ComponentUint8:
			p[0] = uint8(idx)
		case ComponentUint16:
			binary.LittleEndian.PutUint16(p, uint16(idx))
		default:
			binary.LittleEndian.PutUint32(p, uint32(idx))
		}
	}

	if m.indices.buffers == nil {
		m.indices.buffers = make(map[PrimitiveType]*Buffer)
	}
	m.indices.buffers[t] = b
	return b, true
}
