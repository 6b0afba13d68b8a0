package main

import (
	"testing"

	"github.com/qmuntal/gltf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/meshforge/pkg/math"
	"github.com/Faultbox/meshforge/pkg/mesh"
)

func TestExportGLTFBox(t *testing.T) {
	m, err := mesh.NewBox(math.Vec3{X: 1, Y: 1, Z: 1}, mesh.DefaultOptions())
	require.NoError(t, err)

	doc, err := exportGLTF(m)
	require.NoError(t, err)
	require.Len(t, doc.Meshes, 1)
	prim := doc.Meshes[0].Primitives[0]
	for _, attr := range []string{gltf.POSITION, gltf.NORMAL, gltf.TANGENT, "TEXCOORD_0"} {
		assert.Contains(t, prim.Attributes, attr)
	}
	assert.Equal(t, gltf.PrimitiveTriangles, prim.Mode)
	require.NotNil(t, prim.Indices)
	assert.Equal(t, uint32(36), doc.Accessors[*prim.Indices].Count)
	assert.Equal(t, uint32(24), doc.Accessors[prim.Attributes[gltf.POSITION]].Count)
}

func TestExportGLTFLines(t *testing.T) {
	m, err := mesh.NewFromLines([]math.Segment{{End: math.Vec3{X: 1}}}, mesh.DefaultOptions())
	require.NoError(t, err)

	doc, err := exportGLTF(m)
	require.NoError(t, err)
	prim := doc.Meshes[0].Primitives[0]
	assert.Equal(t, gltf.PrimitiveLines, prim.Mode)
	assert.NotContains(t, prim.Attributes, gltf.NORMAL)
}

func TestExportGLTFColors(t *testing.T) {
	red := math.Vec4{1, 0, 0, 1}
	verts := []mesh.Vertex{
		{Position: math.Vec3{}, Colors: []math.Vec4{red}},
		{Position: math.Vec3{X: 1}, Colors: []math.Vec4{red}},
		{Position: math.Vec3{Y: 1}, Colors: []math.Vec4{{0, 0, 1, 0.5}}},
	}
	m, err := mesh.Build(verts, mesh.Topology{Triangles: [][3]int32{{0, 1, 2}}}, mesh.DefaultOptions())
	require.NoError(t, err)

	doc, err := exportGLTF(m)
	require.NoError(t, err)
	prim := doc.Meshes[0].Primitives[0]
	require.Contains(t, prim.Attributes, "COLOR_0")
	assert.Equal(t, uint32(3), doc.Accessors[prim.Attributes["COLOR_0"]].Count)
}
