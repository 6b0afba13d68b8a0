package mesh

import (
	"fmt"

	"github.com/chewxy/math32"

	"github.com/Faultbox/meshforge/pkg/math"
)

// NewFromTriangles builds a triangle mesh from raw positions.
func NewFromTriangles(positions []math.Vec3, tris [][3]int32, opts Options) (*Mesh, error) {
	return Build(positionVertices(positions), Topology{Triangles: tris}, opts)
}

// NewFromLines builds a line mesh from segments, two vertices per segment before dedup.
func NewFromLines(segments []math.Segment, opts Options) (*Mesh, error) {
	positions := make([]math.Vec3, 0, 2*len(segments))
	lines := make([][2]int32, len(segments))
	for i, s := range segments {
		positions = append(positions, s.Start, s.End)
		lines[i] = [2]int32{int32(2 * i), int32(2*i + 1)}
	}
	return Build(positionVertices(positions), Topology{Lines: lines}, opts)
}

// NewFromPoints builds a point mesh with one point per position.
func NewFromPoints(positions []math.Vec3, opts Options) (*Mesh, error) {
	points := make([]int32, len(positions))
	for i := range points {
		points[i] = int32(i)
	}
	return Build(positionVertices(positions), Topology{Points: points}, opts)
}

func positionVertices(positions []math.Vec3) []Vertex {
	out := make([]Vertex, len(positions))
	for i, p := range positions {
		out[i] = Vertex{Position: p}
	}
	return out
}

// NewBox builds an axis-aligned box centered on the origin with per-face normals,
// tangents and one texcoord set.
func NewBox(size math.Vec3, opts Options) (*Mesh, error) {
	h := size.Scale(0.5)
	faces := []struct {
		normal, tangent, bitangent math.Vec3
	}{
		{math.Vec3{X: 1}, math.Vec3{Z: -1}, math.Vec3{Y: 1}},
		{math.Vec3{X: -1}, math.Vec3{Z: 1}, math.Vec3{Y: 1}},
		{math.Vec3{Y: 1}, math.Vec3{X: 1}, math.Vec3{Z: -1}},
		{math.Vec3{Y: -1}, math.Vec3{X: 1}, math.Vec3{Z: 1}},
		{math.Vec3{Z: 1}, math.Vec3{X: 1}, math.Vec3{Y: 1}},
		{math.Vec3{Z: -1}, math.Vec3{X: -1}, math.Vec3{Y: 1}},
	}
	corners := [4]math.Vec2{{X: -1, Y: -1}, {X: 1, Y: -1}, {X: 1, Y: 1}, {X: -1, Y: 1}}
	uvs := [4]math.Vec2{{X: 0, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 0}, {X: 0, Y: 0}}

	var vertices []Vertex
	var tris [][3]int32
	for _, f := range faces {
		base := int32(len(vertices))
		for c, k := range corners {
			p := f.normal.Add(f.tangent.Scale(k.X)).Add(f.bitangent.Scale(k.Y))
			p = math.Vec3{X: p.X * h.X, Y: p.Y * h.Y, Z: p.Z * h.Z}
			n, t := f.normal, f.tangent
			vertices = append(vertices, Vertex{
				Position:  p,
				Normal:    &n,
				Tangent:   &t,
				TexCoords: []math.Vec2{uvs[c]},
			})
		}
		tris = append(tris, [3]int32{base, base + 1, base + 2}, [3]int32{base, base + 2, base + 3})
	}
	return Build(vertices, Topology{Triangles: tris}, opts)
}

// NewPlane builds a subdivided plane in the XZ plane facing +Y, centered on the origin.
func NewPlane(width, depth float32, segments int, opts Options) (*Mesh, error) {
	if segments < 1 {
		return nil, fmt.Errorf("%w: plane needs at least one segment, got %d", ErrIndexOutOfRange, segments)
	}
	normal := math.Vec3{Y: 1}
	tangent := math.Vec3{X: 1}
	row := segments + 1

	vertices := make([]Vertex, 0, row*row)
	for z := 0; z <= segments; z++ {
		for x := 0; x <= segments; x++ {
			u := float32(x) / float32(segments)
			v := float32(z) / float32(segments)
			n, t := normal, tangent
			vertices = append(vertices, Vertex{
				Position:  math.Vec3{X: (u - 0.5) * width, Z: (v - 0.5) * depth},
				Normal:    &n,
				Tangent:   &t,
				TexCoords: []math.Vec2{{X: u, Y: v}},
			})
		}
	}

	tris := make([][3]int32, 0, 2*segments*segments)
	for z := 0; z < segments; z++ {
		for x := 0; x < segments; x++ {
			i := int32(z*row + x)
			r := int32(row)
			tris = append(tris, [3]int32{i, i + r, i + 1}, [3]int32{i + 1, i + r, i + r + 1})
		}
	}
	return Build(vertices, Topology{Triangles: tris}, opts)
}

// NewUVSphere builds a latitude/longitude sphere. The seam column is duplicated so
// texcoords wrap; pole rows collapse to single positions but keep distinct texcoords.
func NewUVSphere(radius float32, rings, sectors int, opts Options) (*Mesh, error) {
	if rings < 2 || sectors < 3 {
		return nil, fmt.Errorf("%w: sphere needs rings >= 2 and sectors >= 3, got %d and %d",
			ErrIndexOutOfRange, rings, sectors)
	}
	cols := sectors + 1
	vertices := make([]Vertex, 0, (rings+1)*cols)
	for r := 0; r <= rings; r++ {
		v := float32(r) / float32(rings)
		theta := v * math32.Pi
		sinT, cosT := math32.Sincos(theta)
		for s := 0; s <= sectors; s++ {
			u := float32(s) / float32(sectors)
			phi := u * 2 * math32.Pi
			sinP, cosP := math32.Sincos(phi)
			n := math.Vec3{X: sinT * cosP, Y: cosT, Z: sinT * sinP}
			t := math.Vec3{X: -sinP, Z: cosP}
			vertices = append(vertices, Vertex{
				Position:  n.Scale(radius),
				Normal:    &n,
				Tangent:   &t,
				TexCoords: []math.Vec2{{X: u, Y: v}},
			})
		}
	}

	tris := make([][3]int32, 0, 2*rings*sectors)
	for r := 0; r < rings; r++ {
		for s := 0; s < sectors; s++ {
			a := int32(r*cols + s)
			b := a + int32(cols)
			if r != 0 {
				tris = append(tris, [3]int32{a, a + 1, b})
			}
			if r != rings-1 {
				tris = append(tris, [3]int32{a + 1, b + 1, b})
			}
		}
	}
	return Build(vertices, Topology{Triangles: tris}, opts)
}
