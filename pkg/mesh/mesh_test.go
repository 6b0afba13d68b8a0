package mesh

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/Faultbox/meshforge/pkg/diag"
	"github.com/Faultbox/meshforge/pkg/math"
)

func TestBuildRemapsTopology(t *testing.T) {
	a := Vertex{Position: math.Vec3{X: 0}}
	b := Vertex{Position: math.Vec3{X: 1}}
	c := Vertex{Position: math.Vec3{Y: 1}}
	d := Vertex{Position: math.Vec3{X: 1, Y: 1}}
	// Two triangles sharing an edge, authored with duplicated vertices.
	verts := []Vertex{a, b, c, b, d, c}
	topo := Topology{Triangles: [][3]int32{{0, 1, 2}, {3, 4, 5}}}

	m, err := Build(verts, topo, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 4, m.VertexCount())
	assert.Equal(t, PrimitiveTriangles, m.Type())
	assert.Equal(t, [][3]int32{{0, 1, 2}, {1, 3, 2}}, m.Triangles())
	assert.Equal(t, math.AABB{Max: math.Vec3{X: 1, Y: 1}}, m.Bounds())

	noDedup := DefaultOptions()
	noDedup.Deduplicate = false
	m, err = Build(verts, topo, noDedup)
	require.NoError(t, err)
	assert.Equal(t, 6, m.VertexCount())
}

func TestBuildRejectsBadIndices(t *testing.T) {
	verts := []Vertex{{}, {Position: math.Vec3{X: 1}}}
	_, err := Build(verts, Topology{Lines: [][2]int32{{0, 2}}}, DefaultOptions())
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestTopologyMajority(t *testing.T) {
	tests := []struct {
		name string
		topo Topology
		want PrimitiveType
	}{
		{"empty", Topology{}, PrimitiveNone},
		{"triangles", Topology{Triangles: make([][3]int32, 2), Lines: make([][2]int32, 1)}, PrimitiveTriangles},
		{"lines win", Topology{Triangles: make([][3]int32, 1), Lines: make([][2]int32, 3)}, PrimitiveLines},
		{"points win", Topology{Points: make([]int32, 5), Lines: make([][2]int32, 3)}, PrimitivePoints},
		{"tie prefers triangles", Topology{Triangles: make([][3]int32, 2), Points: make([]int32, 2)}, PrimitiveTriangles},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.topo.Type())
		})
	}
}

func TestBuildKeepsOnlyMajority(t *testing.T) {
	verts := []Vertex{{}, {Position: math.Vec3{X: 1}}, {Position: math.Vec3{Y: 1}}}
	m, err := Build(verts, Topology{
		Lines:  [][2]int32{{0, 1}, {1, 2}},
		Points: []int32{0},
	}, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, PrimitiveLines, m.Type())
	assert.Nil(t, m.Points())
	assert.Equal(t, 2, m.PrimitiveCount())
}

func TestIndexBuffer(t *testing.T) {
	m, err := NewPlane(1, 1, 1, DefaultOptions())
	require.NoError(t, err)

	b, ok := m.IndexBuffer(PrimitiveTriangles)
	require.True(t, ok)
	assert.Equal(t, ComponentUint8, b.Component)
	assert.Equal(t, TargetIndex, b.Target)
	assert.Equal(t, []byte{0, 2, 1, 1, 2, 3}, b.Data)

	again, _ := m.IndexBuffer(PrimitiveTriangles)
	assert.Same(t, b, again)

	_, ok = m.IndexBuffer(PrimitiveLines)
	assert.False(t, ok)

	require.NoError(t, m.SetTopology(Topology{Triangles: [][3]int32{{0, 1, 2}}}))
	fresh, _ := m.IndexBuffer(PrimitiveTriangles)
	assert.NotSame(t, b, fresh)
	assert.Equal(t, 3, fresh.Count)
}

func TestIndexComponent(t *testing.T) {
	assert.Equal(t, ComponentUint8, IndexComponent(256))
	assert.Equal(t, ComponentUint16, IndexComponent(257))
	assert.Equal(t, ComponentUint16, IndexComponent(65536))
	assert.Equal(t, ComponentUint32, IndexComponent(65537))
}

func TestEncodingOverrides(t *testing.T) {
	m, err := NewBox(math.Vec3{X: 1, Y: 1, Z: 1}, DefaultOptions())
	require.NoError(t, err)

	m.SetEncoding("Normal", EncodingRaw)
	m.SetEncoding("Position", EncodingCompressed)
	assert.Equal(t, []string{"Normal", "Position"}, m.EncodingOverrides())

	e, ok := m.Encoding("Position")
	assert.True(t, ok)
	assert.Equal(t, EncodingCompressed, e)

	m.ClearEncoding("Position")
	_, ok = m.Encoding("Position")
	assert.False(t, ok)
}

func TestCloneIsIndependent(t *testing.T) {
	opts := DefaultOptions()
	opts.BlendshapeNames = []string{"smile", "blink"}
	m, err := Build(morphVertices(), Topology{Triangles: [][3]int32{{0, 1, 2}}}, opts)
	require.NoError(t, err)
	m.SetEncoding("Position", EncodingCompressed)

	c := m.Clone()
	assert.Equal(t, m.VertexCount(), c.VertexCount())
	assert.Equal(t, m.Bounds(), c.Bounds())
	assert.Equal(t, m.Triangles(), c.Triangles())
	assert.Equal(t, m.EncodingOverrides(), c.EncodingOverrides())

	orig, _ := m.Buffers().Get("Position")
	cp, _ := c.Buffers().Get("Position")
	require.True(t, bytes.Equal(orig.Data, cp.Data))
	cp.Data[0] ^= 0xff
	assert.False(t, bytes.Equal(orig.Data, cp.Data))

	c.Triangles()[0][0] = 2
	assert.Equal(t, int32(0), m.Triangles()[0][0])

	c.Blendshapes().Deltas.Data[0] = 1
	assert.Equal(t, byte(0), m.Blendshapes().Deltas.Data[0])

	c.ClearEncoding("Position")
	_, ok := m.Encoding("Position")
	assert.True(t, ok)
}

func TestRelayout(t *testing.T) {
	opts := DefaultOptions()
	opts.RetainSource = true
	m, err := NewBox(math.Vec3{X: 1, Y: 2, Z: 3}, opts)
	require.NoError(t, err)
	before, err := m.Positions()
	require.NoError(t, err)

	require.NoError(t, m.Relayout(true))
	assert.True(t, m.Layout().Interleaved)
	assert.Equal(t, []string{InterleavedBufferName}, m.Buffers().Names())
	after, err := m.Positions()
	require.NoError(t, err)
	assert.Equal(t, before, after)

	plain, err := NewBox(math.Vec3{X: 1, Y: 1, Z: 1}, DefaultOptions())
	require.NoError(t, err)
	assert.ErrorIs(t, plain.Relayout(true), ErrMissingBuffer)
}

func TestProcedural(t *testing.T) {
	box, err := NewBox(math.Vec3{X: 2, Y: 4, Z: 6}, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 24, box.VertexCount())
	assert.Len(t, box.Triangles(), 12)
	assert.True(t, box.Bounds().ApproxEqual(math.AABB{
		Min: math.Vec3{X: -1, Y: -2, Z: -3},
		Max: math.Vec3{X: 1, Y: 2, Z: 3},
	}, 1e-6))
	assert.True(t, box.Layout().Attributes.HasNormals)
	assert.Equal(t, 1, box.Layout().Attributes.TexCoords)

	plane, err := NewPlane(2, 2, 4, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 25, plane.VertexCount())
	assert.Len(t, plane.Triangles(), 32)

	sphere, err := NewUVSphere(1, 8, 12, DefaultOptions())
	require.NoError(t, err)
	assert.Len(t, sphere.Triangles(), 2*8*12-2*12)
	assert.True(t, sphere.Bounds().ApproxEqual(math.AABB{
		Min: math.Vec3{X: -1, Y: -1, Z: -1},
		Max: math.Vec3{X: 1, Y: 1, Z: 1},
	}, 1e-3))

	_, err = NewUVSphere(1, 1, 2, DefaultOptions())
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = NewPlane(1, 1, 0, DefaultOptions())
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	lines, err := NewFromLines([]math.Segment{
		{Start: math.Vec3{}, End: math.Vec3{X: 1}},
		{Start: math.Vec3{X: 1}, End: math.Vec3{Y: 1}},
	}, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, PrimitiveLines, lines.Type())
	// The shared endpoint is merged.
	assert.Equal(t, 3, lines.VertexCount())
}

func TestImport(t *testing.T) {
	sink := diag.NewSink(nil)
	opts := DefaultOptions()
	opts.Diagnostics = sink

	data := &ImportData{
		Name:      "quad",
		Positions: []math.Vec3{{}, {X: 1}, {X: 1, Y: 1}, {Y: 1}},
		Normals:   []math.Vec3{{Z: 1}, {Z: 1}, {Z: 1}, {Z: 1}},
		Faces:     [][]int32{{0, 1, 2, 3}},
		Bones: []ImportBone{
			{Name: "Root", Offset: math.Identity(), Weights: []VertexWeight{{0, 1}, {1, 1}}},
			{Name: "Ghost", Offset: math.Identity(), Weights: []VertexWeight{{2, 1}}},
			{Name: "Arm\x00", Offset: math.Identity(), Weights: []VertexWeight{{2, 1}, {3, 1}}},
		},
		Morphs: []ImportMorph{{
			Name:      "Lift",
			Positions: []math.Vec3{{Z: 1}, {X: 1}, {X: 1, Y: 1}, {Y: 1}},
		}},
	}
	rootID := uuid.NewSHA1(uuid.NameSpaceOID, []byte("root"))
	nodes := NodeMap{
		"Root": {ID: rootID, Name: "Root", World: math.Identity()},
		"Arm":  {Name: "Arm", Parent: "Root", World: math.Translate(0, 1, 0)},
	}

	m, err := Import(data, nodes, math.Translate(10, 0, 0), opts)
	require.NoError(t, err)

	assert.Equal(t, 4, m.VertexCount())
	assert.Equal(t, [][3]int32{{0, 1, 2}, {0, 2, 3}}, m.Triangles())
	assert.InDelta(t, 10, m.Bounds().Min.X, 1e-6)

	s := m.Skinning()
	require.NotNil(t, s)
	require.Len(t, s.Bones, 2)
	assert.Equal(t, rootID, s.Bones[0].ID)
	assert.Equal(t, "Arm", s.Bones[1].Name)
	assert.Equal(t, int32(0), s.Bones[1].Parent)
	assert.NotEqual(t, uuid.Nil, s.Bones[1].ID)

	warnings := multierr.Errors(m.ImportWarnings())
	require.Len(t, warnings, 1)
	assert.True(t, errors.Is(warnings[0], ErrMissingNode))
	_, ok := sink.Lookup("mesh.import.missing-bone.Ghost")
	assert.True(t, ok)

	bs := m.Blendshapes()
	require.NotNil(t, bs)
	assert.Equal(t, []string{"Lift"}, bs.Names)
	assert.Equal(t, int32(1), bs.Counts.View(0).Int32(0, 1))
	assert.Equal(t, int32(0), bs.Counts.View(0).Int32(1, 1))
}

func TestImportErrors(t *testing.T) {
	_, err := Import(nil, NodeMap{}, math.Identity(), DefaultOptions())
	assert.ErrorIs(t, err, ErrNilInput)

	_, err = Import(&ImportData{
		Positions: []math.Vec3{{}},
		Bones:     []ImportBone{{Name: "a"}},
	}, nil, math.Identity(), DefaultOptions())
	assert.ErrorIs(t, err, ErrNilInput)

	_, err = Import(&ImportData{
		Positions: []math.Vec3{{}, {}},
		Normals:   []math.Vec3{{}},
	}, NodeMap{}, math.Identity(), DefaultOptions())
	assert.ErrorIs(t, err, ErrLayoutMismatch)
}

func TestRestore(t *testing.T) {
	src, err := NewBox(math.Vec3{X: 1, Y: 1, Z: 1}, DefaultOptions())
	require.NoError(t, err)

	var vertex []*Buffer
	for _, name := range src.Layout().VertexBufferNames() {
		b, _ := src.Buffers().Get(name)
		vertex = append(vertex, b.Clone())
	}
	parts := Parts{
		VertexCount: src.VertexCount(),
		Bounds:      src.Bounds(),
		Layout:      src.Layout(),
		Topology:    Topology{Triangles: src.Triangles()},
		Vertex:      vertex,
	}
	m, err := Restore(parts, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, src.VertexCount(), m.VertexCount())
	assert.Equal(t, src.Bounds(), m.Bounds())

	bad := parts
	bad.Vertex = vertex[:1]
	_, err = Restore(bad, DefaultOptions())
	assert.ErrorIs(t, err, ErrMissingBuffer)

	bad = parts
	bad.Layout.Stride = 99
	_, err = Restore(bad, DefaultOptions())
	assert.ErrorIs(t, err, ErrLayoutMismatch)

	bad = parts
	bad.VertexCount = 3
	_, err = Restore(bad, DefaultOptions())
	assert.Error(t, err)
}

func TestRestoreRejectsBadIndices(t *testing.T) {
	hip := uuid.NewSHA1(uuid.NameSpaceOID, []byte("hip"))
	verts := morphVertices()
	for i := range verts {
		verts[i].Weights = map[BoneID]BoneWeight{hip: {Weight: 1, InverseBind: math.Identity()}}
	}
	opts := DefaultOptions()
	opts.BlendshapeNames = []string{"smile", "blink"}
	src, err := Build(verts, Topology{Triangles: [][3]int32{{0, 1, 2}}}, opts)
	require.NoError(t, err)

	parts := func() Parts {
		var vertex []*Buffer
		for _, name := range src.Layout().VertexBufferNames() {
			b, _ := src.Buffers().Get(name)
			vertex = append(vertex, b.Clone())
		}
		return Parts{
			VertexCount: src.VertexCount(),
			Bounds:      src.Bounds(),
			Layout:      src.Layout(),
			Topology:    Topology{Triangles: src.Triangles()},
			Vertex:      vertex,
			Skinning:    src.Skinning().Clone(),
			Blendshapes: src.Blendshapes().Clone(),
		}
	}
	indirect := func(p *Parts) {
		s, err := AggregateSkinning([]BoneInput{bone("hip", -1, VertexWeight{0, 1}, VertexWeight{1, 1})},
			identityRemap(p.VertexCount), p.VertexCount, SkinningOptions{Mode: SkinningIndirect})
		require.NoError(t, err)
		p.Skinning = s
	}

	for _, edit := range []func(*Parts){nil, indirect} {
		p := parts()
		if edit != nil {
			edit(&p)
		}
		_, err := Restore(p, DefaultOptions())
		require.NoError(t, err)
	}

	cases := map[string]func(p *Parts){
		"bone index past list": func(p *Parts) {
			p.Skinning.Indices.View(0).SetInt32(0, 0, int32(len(p.Skinning.Bones)+1))
		},
		"negative bone index": func(p *Parts) {
			p.Skinning.Indices.View(0).SetInt32(1, 2, -1)
		},
		"indirect span past indices": func(p *Parts) {
			indirect(p)
			p.Skinning.Counts.View(0).SetInt32(0, 0, int32(p.Skinning.Indices.Count+1))
		},
		"indirect empty bone slot": func(p *Parts) {
			indirect(p)
			p.Skinning.Indices.View(0).SetInt32(0, 0, 0)
		},
		"delta past pool": func(p *Parts) {
			p.Blendshapes.Indices.View(0).SetInt32(0, 1, int32(p.Blendshapes.Deltas.Count))
		},
		"contribution span past indices": func(p *Parts) {
			p.Blendshapes.Counts.View(0).SetInt32(0, 1, int32(p.Blendshapes.Indices.Count+1))
		},
		"unknown channel": func(p *Parts) {
			p.Blendshapes.Indices.View(0).SetInt32(0, 0, int32(len(p.Blendshapes.Names)))
		},
	}
	for name, corrupt := range cases {
		t.Run(name, func(t *testing.T) {
			p := parts()
			corrupt(&p)
			_, err := Restore(p, DefaultOptions())
			assert.ErrorIs(t, err, ErrIndexOutOfRange)
		})
	}

	t.Run("undersized weights", func(t *testing.T) {
		p := parts()
		p.Skinning.Weights = NewBuffer(BufferBoneWeights, TargetVertex, ComponentFloat32, 1, p.VertexCount)
		_, err := Restore(p, DefaultOptions())
		assert.ErrorIs(t, err, ErrLayoutMismatch)
	})
}
