package cooked

import (
	"bytes"
	"fmt"
	"io"

	"github.com/Faultbox/meshforge/internal/parallel"
	"github.com/Faultbox/meshforge/pkg/math"
	"github.com/Faultbox/meshforge/pkg/mesh"
)

// Unmarshal decodes a cooked mesh from data.
func Unmarshal(data []byte, opts Options, meshOpts mesh.Options) (*mesh.Mesh, error) {
	return Read(bytes.NewReader(data), opts, meshOpts)
}

// Read decodes a cooked mesh from r. meshOpts configures the restored mesh (logger,
// diagnostics, schedule); its layout settings are taken from the stream.
func Read(r io.Reader, opts Options, meshOpts mesh.Options) (*mesh.Mesh, error) {
	br := &reader{r: r}

	magic := make([]byte, len(Magic))
	if !br.fill(magic) {
		return nil, br.err
	}
	if string(magic) != Magic {
		return nil, ErrInvalidMagic
	}
	if v := br.u16(); br.err == nil && v != Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}

	var parts mesh.Parts
	parts.VertexCount, parts.Layout, parts.Bounds = readMetadata(br)
	parts.Topology = readTopology(br)
	if br.err != nil {
		return nil, fmt.Errorf("reading header: %w", br.err)
	}
	if err := checkLayout(parts.Layout, parts.VertexCount); err != nil {
		return nil, err
	}

	var pending []*pendingStream
	for _, name := range parts.Layout.VertexBufferNames() {
		p := readDescriptor(br, name)
		p.buf = vertexBufferShape(parts.Layout, name, parts.VertexCount)
		pending = append(pending, p)
		parts.Vertex = append(parts.Vertex, p.buf)
	}

	if br.boolean() {
		s := &mesh.Skinning{}
		n := br.count("bone")
		s.Bones = make([]mesh.BoneInfo, 0, prealloc(n))
		for i := 0; i < n && br.err == nil; i++ {
			var b mesh.BoneInfo
			b.ID = br.id()
			b.Name = br.str()
			b.Parent = br.i32()
			b.Bind = br.mat4()
			b.InverseBind = br.mat4()
			s.Bones = append(s.Bones, b)
		}
		s.MaxWeightCount = int(br.i32())
		s.Mode = mesh.SkinningMode(br.u8())
		streams := make([]*pendingStream, 4)
		for i, key := range []string{mesh.BufferBoneOffsets, mesh.BufferBoneCounts, mesh.BufferBoneIndices, mesh.BufferBoneWeights} {
			streams[i] = readDescriptor(br, key)
		}
		s.Offsets, s.Counts, s.Indices, s.Weights = streams[0].buf, streams[1].buf, streams[2].buf, streams[3].buf
		pending = append(pending, streams...)
		parts.Skinning = s
	}

	if br.boolean() {
		bs := &mesh.Blendshapes{}
		n := br.count("blendshape name")
		bs.Names = make([]string, 0, prealloc(n))
		for i := 0; i < n && br.err == nil; i++ {
			bs.Names = append(bs.Names, br.str())
		}
		streams := make([]*pendingStream, 3)
		for i, key := range []string{mesh.BufferBlendshapeCounts, mesh.BufferBlendshapeIndices, mesh.BufferBlendshapeDeltas} {
			streams[i] = readDescriptor(br, key)
			if br.err == nil && streams[i].buf == nil {
				br.fail(fmt.Errorf("%w: blendshape stream %s has no shape", ErrCorrupt, key))
			}
		}
		bs.Counts, bs.Indices, bs.Deltas = streams[0].buf, streams[1].buf, streams[2].buf
		pending = append(pending, streams...)
		parts.Blendshapes = bs
	}
	if br.err != nil {
		return nil, br.err
	}

	err := parallel.For(len(pending), opts.Workers, func(lo, hi int) error {
		for _, p := range pending[lo:hi] {
			if err := p.decode(opts); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m, err := mesh.Restore(parts, meshOpts)
	if err != nil {
		return nil, fmt.Errorf("restoring mesh: %w", err)
	}
	return m, nil
}

func readMetadata(r *reader) (int, mesh.Layout, math.AABB) {
	var l mesh.Layout
	vertexCount := r.count("vertex")
	r.i32() // primitive type, implied by topology
	bounds := math.AABB{Min: r.vec3(), Max: r.vec3()}
	l.Interleaved = r.boolean()
	l.Stride = r.u32()
	l.PositionOffset = r.u32()

	optional := func() (uint32, bool) {
		if r.boolean() {
			return r.u32(), true
		}
		return 0, false
	}
	l.NormalOffset, _ = optional()
	l.TangentOffset, _ = optional()
	for i, n := 0, r.count("color offset"); i < n && r.err == nil; i++ {
		if off, ok := optional(); ok {
			l.ColorOffsets = append(l.ColorOffsets, off)
		}
	}
	for i, n := 0, r.count("texcoord offset"); i < n && r.err == nil; i++ {
		if off, ok := optional(); ok {
			l.TexCoordOffsets = append(l.TexCoordOffsets, off)
		}
	}

	l.Attributes.HasNormals = r.boolean()
	l.Attributes.HasTangents = r.boolean()
	l.Attributes.Colors = r.count("color channel")
	l.Attributes.TexCoords = r.count("texcoord channel")
	return vertexCount, l, bounds
}

func readTopology(r *reader) mesh.Topology {
	var t mesh.Topology
	if n := r.count("triangle"); n > 0 {
		t.Triangles = make([][3]int32, 0, prealloc(n))
		for i := 0; i < n && r.err == nil; i++ {
			t.Triangles = append(t.Triangles, [3]int32{r.i32(), r.i32(), r.i32()})
		}
	}
	if n := r.count("line"); n > 0 {
		t.Lines = make([][2]int32, 0, prealloc(n))
		for i := 0; i < n && r.err == nil; i++ {
			t.Lines = append(t.Lines, [2]int32{r.i32(), r.i32()})
		}
	}
	if n := r.count("point"); n > 0 {
		t.Points = make([]int32, 0, prealloc(n))
		for i := 0; i < n && r.err == nil; i++ {
			t.Points = append(t.Points, r.i32())
		}
	}
	return t
}

// checkLayout rejects a stored layout that PlanLayout would not produce, or whose vertex
// streams could not fit in a payload, before any stream is sized from it.
func checkLayout(l mesh.Layout, vertexCount int) error {
	set := l.Attributes
	if set.Colors > maxChannels || set.TexCoords > maxChannels {
		return fmt.Errorf("%w: %d color and %d texcoord channels", ErrCorrupt, set.Colors, set.TexCoords)
	}
	if !mesh.PlanLayout(set, l.Interleaved).Equal(l) {
		return fmt.Errorf("%w: stored layout (stride %d) disagrees with its attribute set", ErrCorrupt, l.Stride)
	}
	elem := uint64(l.Stride)
	if !l.Interleaved {
		elem = 0
		for _, a := range set.List() {
			elem = max(elem, uint64(a.Size()))
		}
	}
	if uint64(vertexCount)*elem > maxPayload {
		return fmt.Errorf("%w: %d vertices of %d bytes", ErrCorrupt, vertexCount, elem)
	}
	return nil
}

// vertexBufferShape rebuilds the shape of a vertex stream from mesh metadata.
func vertexBufferShape(l mesh.Layout, name string, count int) *mesh.Buffer {
	if l.Interleaved {
		return &mesh.Buffer{
			Name:       name,
			Target:     mesh.TargetVertex,
			Component:  mesh.ComponentFloat32,
			Components: int(l.Stride / 4),
			Count:      count,
			Stride:     int(l.Stride),
		}
	}
	components := 3
	for _, a := range l.Attributes.List() {
		if a.Name() == name {
			components = a.Components()
		}
	}
	return &mesh.Buffer{
		Name:       name,
		Target:     mesh.TargetVertex,
		Component:  mesh.ComponentFloat32,
		Components: components,
		Count:      count,
		Stride:     components * 4,
	}
}
