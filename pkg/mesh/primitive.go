package mesh

import (
	"fmt"

	"go.uber.org/zap"
)

// PrimitiveType is the kind of primitive a mesh draws. Values are stable on disk.
type PrimitiveType int32

const (
	PrimitiveNone PrimitiveType = iota
	PrimitivePoints
	PrimitiveLines
	PrimitiveTriangles
)

// String returns the primitive name.
func (p PrimitiveType) String() string {
	switch p {
	case PrimitiveNone:
		return "none"
	case PrimitivePoints:
		return "points"
	case PrimitiveLines:
		return "lines"
	case PrimitiveTriangles:
		return "triangles"
	}
	return fmt.Sprintf("primitive(%d)", int32(p))
}

// Type picks the most numerous primitive kind. Ties prefer triangles, then lines.
func (t Topology) Type() PrimitiveType {
	nt, nl, np := len(t.Triangles), len(t.Lines), len(t.Points)
	switch {
	case nt == 0 && nl == 0 && np == 0:
		return PrimitiveNone
	case nt >= nl && nt >= np:
		return PrimitiveTriangles
	case nl >= np:
		return PrimitiveLines
	default:
		return PrimitivePoints
	}
}

// Type returns the mesh's primitive kind.
func (m *Mesh) Type() PrimitiveType { return m.primType }

// Triangles returns the triangle list; nil unless Type is PrimitiveTriangles.
func (m *Mesh) Triangles() [][3]int32 { return m.triangles }

// Lines returns the line list; nil unless Type is PrimitiveLines.
func (m *Mesh) Lines() [][2]int32 { return m.lines }

// Points returns the point list; nil unless Type is PrimitivePoints.
func (m *Mesh) Points() []int32 { return m.points }

// PrimitiveCount returns the number of primitives of the mesh's type.
func (m *Mesh) PrimitiveCount() int {
	switch m.primType {
	case PrimitiveTriangles:
		return len(m.triangles)
	case PrimitiveLines:
		return len(m.lines)
	case PrimitivePoints:
		return len(m.points)
	}
	return 0
}

// SetTopology replaces the primitives. Indices must be below VertexCount.
// The spatial index and index buffer cache are invalidated.
func (m *Mesh) SetTopology(topo Topology) error {
	if m == nil {
		return ErrNilMesh
	}
	if err := m.setTopology(topo); err != nil {
		return err
	}
	m.ClearAccelerationCaches()
	return nil
}

func (m *Mesh) setTopology(topo Topology) error {
	typ := topo.Type()
	n := int32(m.vertexCount)
	check := func(i int32) error {
		if i < 0 || i >= n {
			return fmt.Errorf("%w: index %d (vertex count %d)", ErrIndexOutOfRange, i, n)
		}
		return nil
	}

	var dropped int
	switch typ {
	case PrimitiveTriangles:
		for _, tri := range topo.Triangles {
			for _, i := range tri {
				if err := check(i); err != nil {
					return err
				}
			}
		}
		dropped = len(topo.Lines) + len(topo.Points)
	case PrimitiveLines:
		for _, l := range topo.Lines {
			for _, i := range l {
				if err := check(i); err != nil {
					return err
				}
			}
		}
		dropped = len(topo.Triangles) + len(topo.Points)
	case PrimitivePoints:
		for _, i := range topo.Points {
			if err := check(i); err != nil {
				return err
			}
		}
		dropped = len(topo.Triangles) + len(topo.Lines)
	}

	m.primType = typ
	m.triangles, m.lines, m.points = nil, nil, nil
	switch typ {
	case PrimitiveTriangles:
		m.triangles = topo.Triangles
	case PrimitiveLines:
		m.lines = topo.Lines
	case PrimitivePoints:
		m.points = topo.Points
	}
	if dropped > 0 {
		m.log.Debug("dropped minority primitives",
			zap.Stringer("kept", typ), zap.Int("dropped", dropped))
	}
	return nil
}
