package mesh

import (
	"fmt"

	"github.com/Faultbox/meshforge/pkg/math"
)

// Parts is a decoded mesh, as read back from cooked form.
type Parts struct {
	VertexCount int
	Bounds      math.AABB
	Layout      Layout
	Topology    Topology
	// Vertex holds the vertex buffers named by Layout.VertexBufferNames.
	Vertex      []*Buffer
	Skinning    *Skinning
	Blendshapes *Blendshapes
}

// Restore reassembles a mesh from decoded parts without re-running dedup or population.
// The layout must match what PlanLayout produces for its attribute set, and every buffer
// must hold exactly VertexCount elements. Bone and blendshape indices are range checked so
// a restored mesh never reads outside its own buffers.
func Restore(p Parts, opts Options) (*Mesh, error) {
	opts.Interleaved = p.Layout.Interleaved
	m, err := New(p.VertexCount, p.Topology, opts)
	if err != nil {
		return nil, err
	}

	want := PlanLayout(p.Layout.Attributes, p.Layout.Interleaved)
	if !want.Equal(p.Layout) {
		return nil, fmt.Errorf("%w: stored layout disagrees with planned layout", ErrLayoutMismatch)
	}

	byName := make(map[string]*Buffer, len(p.Vertex))
	for _, b := range p.Vertex {
		if b != nil {
			byName[b.Name] = b
		}
	}
	for _, name := range want.VertexBufferNames() {
		b, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingBuffer, name)
		}
		if err := checkElements(b, p.VertexCount); err != nil {
			return nil, err
		}
		if want.Interleaved && b.Stride != int(want.Stride) {
			return nil, fmt.Errorf("%w: %s stride %d, layout stride %d", ErrLayoutMismatch, name, b.Stride, want.Stride)
		}
		m.buffers.Set(b)
	}
	m.layout = want
	m.bounds = p.Bounds

	if s := p.Skinning; s != nil {
		if err := checkSkinning(s, p.VertexCount); err != nil {
			return nil, err
		}
		m.skinning = s
	}
	if bs := p.Blendshapes; bs != nil {
		if err := checkBlendshapes(bs, p.VertexCount); err != nil {
			return nil, err
		}
		m.blendshapes = bs
	}
	return m, nil
}

func checkElements(b *Buffer, count int) error {
	if b == nil {
		return fmt.Errorf("%w: nil buffer", ErrMissingBuffer)
	}
	if b.Count != count {
		return fmt.Errorf("%w: %s has %d elements, want %d", ErrLayoutMismatch, b.Name, b.Count, count)
	}
	if b.GPUPayload == nil && len(b.Data) != b.Size() {
		return fmt.Errorf("%w: %s holds %d bytes, want %d", ErrLayoutMismatch, b.Name, len(b.Data), b.Size())
	}
	return nil
}

// checkShape requires decoded data of the given component type, at least components wide.
func checkShape(b *Buffer, comp ComponentType, components int) error {
	if b == nil {
		return fmt.Errorf("%w: nil buffer", ErrMissingBuffer)
	}
	if b.Component != comp || b.Components < components || b.Stride < comp.Size()*b.Components {
		return fmt.Errorf("%w: %s is %s x%d stride %d", ErrLayoutMismatch, b.Name, b.Component, b.Components, b.Stride)
	}
	if b.GPUPayload != nil || len(b.Data) != b.Size() {
		return fmt.Errorf("%w: %s holds %d bytes, want %d", ErrLayoutMismatch, b.Name, len(b.Data), b.Size())
	}
	return nil
}

// checkRange validates per-vertex (offset, count) pairs against a pool of total elements.
func checkRange(b *Buffer, offsetComp, countComp, total int) error {
	view := b.View(0)
	for v := 0; v < b.Count; v++ {
		off, n := int64(view.Int32(v, offsetComp)), int64(view.Int32(v, countComp))
		if off < 0 || n < 0 || off+n > int64(total) {
			return fmt.Errorf("%w: %s vertex %d spans [%d, %d) of %d",
				ErrIndexOutOfRange, b.Name, v, off, off+n, total)
		}
	}
	return nil
}

func checkSkinning(s *Skinning, vertexCount int) error {
	bones := int32(len(s.Bones))
	switch s.Mode {
	case SkinningFixed:
		if err := checkElements(s.Indices, vertexCount); err != nil {
			return err
		}
		if err := checkElements(s.Weights, vertexCount); err != nil {
			return err
		}
		if err := checkShape(s.Indices, ComponentInt32, 1); err != nil {
			return err
		}
		if err := checkShape(s.Weights, ComponentFloat32, s.Indices.Components); err != nil {
			return err
		}
		idx := s.Indices.View(0)
		for v := 0; v < vertexCount; v++ {
			for c := 0; c < s.Indices.Components; c++ {
				if i := idx.Int32(v, c); i < 0 || i > bones {
					return fmt.Errorf("%w: vertex %d slot %d references bone %d of %d",
						ErrIndexOutOfRange, v, c, i, bones)
				}
			}
		}
	case SkinningIndirect:
		if err := checkElements(s.Offsets, vertexCount); err != nil {
			return err
		}
		if err := checkElements(s.Counts, vertexCount); err != nil {
			return err
		}
		for _, b := range []*Buffer{s.Offsets, s.Counts, s.Indices} {
			if err := checkShape(b, ComponentInt32, 1); err != nil {
				return err
			}
		}
		if err := checkShape(s.Weights, ComponentFloat32, 1); err != nil {
			return err
		}
		total := s.Indices.Count
		if s.Weights.Count != total {
			return fmt.Errorf("%w: %d bone indices, %d weights", ErrLayoutMismatch, total, s.Weights.Count)
		}
		offs, cnts := s.Offsets.View(0), s.Counts.View(0)
		for v := 0; v < vertexCount; v++ {
			off, n := int64(offs.Int32(v, 0)), int64(cnts.Int32(v, 0))
			if off < 0 || n < 0 || off+n > int64(total) {
				return fmt.Errorf("%w: vertex %d influences [%d, %d) of %d",
					ErrIndexOutOfRange, v, off, off+n, total)
			}
		}
		idx := s.Indices.View(0)
		for k := 0; k < total; k++ {
			if i := idx.Int32(k, 0); i < 1 || i > bones {
				return fmt.Errorf("%w: influence %d references bone %d of %d", ErrIndexOutOfRange, k, i, bones)
			}
		}
	default:
		return fmt.Errorf("%w: skinning mode %d", ErrLayoutMismatch, s.Mode)
	}
	return nil
}

func checkBlendshapes(bs *Blendshapes, vertexCount int) error {
	if err := checkElements(bs.Counts, vertexCount); err != nil {
		return err
	}
	if err := checkShape(bs.Counts, ComponentInt32, 2); err != nil {
		return err
	}
	if err := checkShape(bs.Indices, ComponentInt32, 4); err != nil {
		return err
	}
	if err := checkShape(bs.Deltas, ComponentFloat32, 3); err != nil {
		return err
	}
	if err := checkRange(bs.Counts, 0, 1, bs.Indices.Count); err != nil {
		return err
	}
	idx := bs.Indices.View(0)
	for k := 0; k < bs.Indices.Count; k++ {
		if ch := idx.Int32(k, 0); ch < 0 || int(ch) >= len(bs.Names) {
			return fmt.Errorf("%w: contribution %d channel %d of %d", ErrIndexOutOfRange, k, ch, len(bs.Names))
		}
		for c := 1; c < 4; c++ {
			if d := idx.Int32(k, c); d < 0 || int(d) >= bs.Deltas.Count {
				return fmt.Errorf("%w: contribution %d delta %d of %d", ErrIndexOutOfRange, k, d, bs.Deltas.Count)
			}
		}
	}
	return nil
}
