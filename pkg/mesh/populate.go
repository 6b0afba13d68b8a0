package mesh

import (
	"fmt"

	"github.com/Faultbox/meshforge/internal/parallel"
	"github.com/Faultbox/meshforge/pkg/math"
)

type attributeWriter struct {
	attr Attribute
	view View
}

// Populate writes every planned attribute of every output vertex into m's buffers.
//
// Output vertex i reads src[firstAppearance[i]], or src[i] when firstAppearance is nil.
// xf, when non-nil, transforms positions directly and normals and tangents through its
// normal matrix. Both schedules produce identical bytes: each output index is written by
// exactly one task. Bounds are reset and rebuilt from the written positions.
func Populate(m *Mesh, src []Vertex, firstAppearance []int32, xf *math.Mat4, sched Schedule) error {
	if m == nil {
		return ErrNilMesh
	}
	n := len(src)
	if firstAppearance != nil {
		n = len(firstAppearance)
	}
	if n != m.vertexCount {
		return fmt.Errorf("%w: populating %d vertices into mesh of %d", ErrLayoutMismatch, n, m.vertexCount)
	}
	for _, idx := range firstAppearance {
		if idx < 0 || int(idx) >= len(src) {
			return fmt.Errorf("%w: first-appearance index %d (have %d vertices)", ErrIndexOutOfRange, idx, len(src))
		}
	}

	attrs := m.layout.Attributes.List()
	writers := make([]attributeWriter, len(attrs))
	for i, a := range attrs {
		v, err := m.attributeView(a)
		if err != nil {
			return err
		}
		writers[i] = attributeWriter{attr: a, view: v}
	}

	var normalXf *math.Mat4
	if xf != nil {
		nm := xf.NormalMatrix()
		normalXf = &nm
	}

	m.resetBounds()
	workers := 1
	if sched == ScheduleParallel {
		workers = m.opts.Workers
	}

	err := parallel.For(n, workers, func(lo, hi int) error {
		local := math.EmptyAABB()
		for i := lo; i < hi; i++ {
			v := &src[i]
			if firstAppearance != nil {
				v = &src[firstAppearance[i]]
			}
			for _, w := range writers {
				switch w.attr.Kind {
				case AttrPosition:
					p := v.Position
					if xf != nil {
						p = xf.TransformPoint(p)
					}
					w.view.SetVec3(i, p)
					local = local.Expand(p)
				case AttrNormal:
					w.view.SetVec3(i, transformDirection(v.Normal, normalXf))
				case AttrTangent:
					w.view.SetVec3(i, transformDirection(v.Tangent, normalXf))
				case AttrColor:
					var c math.Vec4
					if w.attr.Channel < len(v.Colors) {
						c = v.Colors[w.attr.Channel]
					}
					w.view.SetVec4(i, c)
				case AttrTexCoord:
					var t math.Vec2
					if w.attr.Channel < len(v.TexCoords) {
						t = v.TexCoords[w.attr.Channel]
					}
					w.view.SetVec2(i, t)
				}
			}
		}
		m.expandBounds(local)
		return nil
	})
	if err != nil {
		return err
	}
	m.ClearAccelerationCaches()
	return nil
}

func transformDirection(d *math.Vec3, normalXf *math.Mat4) math.Vec3 {
	if d == nil {
		return math.Vec3{}
	}
	if normalXf == nil {
		return *d
	}
	return normalXf.TransformDirection(*d).Normalize()
}

// RebuildBounds recomputes bounds from the position data currently in the buffers and
// invalidates the spatial index. Use it after editing positions in place.
func (m *Mesh) RebuildBounds() error {
	if m == nil {
		return ErrNilMesh
	}
	view, err := m.attributeView(Attribute{Kind: AttrPosition})
	if err != nil {
		return err
	}
	b := math.EmptyAABB()
	for i := 0; i < m.vertexCount; i++ {
		b = b.Expand(view.Vec3(i))
	}
	m.boundsMu.Lock()
	m.bounds = b
	m.boundsMu.Unlock()
	m.ClearAccelerationCaches()
	return nil
}

// Positions copies the position of every vertex out of the buffers.
func (m *Mesh) Positions() ([]math.Vec3, error) {
	return m.readVec3(Attribute{Kind: AttrPosition})
}

// Normals copies the normal of every vertex. It fails when the mesh has no normals.
func (m *Mesh) Normals() ([]math.Vec3, error) {
	return m.readVec3(Attribute{Kind: AttrNormal})
}

// Tangents copies the tangent of every vertex.
func (m *Mesh) Tangents() ([]math.Vec3, error) {
	return m.readVec3(Attribute{Kind: AttrTangent})
}

// TexCoords copies texture coordinate set channel.
func (m *Mesh) TexCoords(channel int) ([]math.Vec2, error) {
	if channel < 0 || channel >= m.layout.Attributes.TexCoords {
		return nil, fmt.Errorf("%w: texcoord channel %d of %d", ErrLayoutMismatch, channel, m.layout.Attributes.TexCoords)
	}
	view, err := m.attributeView(Attribute{Kind: AttrTexCoord, Channel: channel})
	if err != nil {
		return nil, err
	}
	out := make([]math.Vec2, m.vertexCount)
	for i := range out {
		out[i] = view.Vec2(i)
	}
	return out, nil
}

// Colors copies vertex color set channel.
func (m *Mesh) Colors(channel int) ([]math.Vec4, error) {
	if channel < 0 || channel >= m.layout.Attributes.Colors {
		return nil, fmt.Errorf("%w: color channel %d of %d", ErrLayoutMismatch, channel, m.layout.Attributes.Colors)
	}
	view, err := m.attributeView(Attribute{Kind: AttrColor, Channel: channel})
	if err != nil {
		return nil, err
	}
	out := make([]math.Vec4, m.vertexCount)
	for i := range out {
		out[i] = view.Vec4(i)
	}
	return out, nil
}

func (m *Mesh) readVec3(a Attribute) ([]math.Vec3, error) {
	view, err := m.attributeView(a)
	if err != nil {
		return nil, err
	}
	out := make([]math.Vec3, m.vertexCount)
	for i := range out {
		out[i] = view.Vec3(i)
	}
	return out, nil
}
