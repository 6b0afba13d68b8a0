package main

import (
	"fmt"
	"os"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"go.uber.org/zap"

	"github.com/Faultbox/meshforge/internal/logger"
	"github.com/Faultbox/meshforge/pkg/mesh"
)

func (t *tool) cmdExport(args []string) error {
	fs := newFlagSet("export")
	fs.Parse(args)
	if fs.NArg() < 2 {
		return fmt.Errorf("usage: meshtool export <file.xrm> <out.glb>")
	}

	m, err := t.load(fs.Arg(0))
	if err != nil {
		return err
	}
	doc, err := exportGLTF(m)
	if err != nil {
		return err
	}

	f, err := os.Create(fs.Arg(1))
	if err != nil {
		return err
	}
	enc := gltf.NewEncoder(f)
	enc.AsBinary = true
	if err := enc.Encode(doc); err != nil {
		f.Close()
		return fmt.Errorf("encoding glTF: %w", err)
	}
	logger.Info("glTF exported", zap.String("path", fs.Arg(1)), zap.Int("vertices", m.VertexCount()))
	return f.Close()
}

// exportGLTF converts m into a single-node glTF document. Skinning and blendshapes
// are not exported.
func exportGLTF(m *mesh.Mesh) (*gltf.Document, error) {
	doc := gltf.NewDocument()
	doc.Asset.Generator = "meshforge meshtool"

	positions, err := m.Positions()
	if err != nil {
		return nil, err
	}
	pos := make([][3]float32, len(positions))
	for i, p := range positions {
		pos[i] = [3]float32{p.X, p.Y, p.Z}
	}
	attributes := map[string]uint32{
		gltf.POSITION: modeler.WritePosition(doc, pos),
	}

	l := m.Layout().Attributes
	if l.HasNormals {
		normals, err := m.Normals()
		if err != nil {
			return nil, err
		}
		out := make([][3]float32, len(normals))
		for i, n := range normals {
			out[i] = [3]float32{n.X, n.Y, n.Z}
		}
		attributes[gltf.NORMAL] = modeler.WriteNormal(doc, out)
	}
	if l.HasTangents {
		tangents, err := m.Tangents()
		if err != nil {
			return nil, err
		}
		out := make([][4]float32, len(tangents))
		for i, v := range tangents {
			out[i] = [4]float32{v.X, v.Y, v.Z, 1}
		}
		attributes[gltf.TANGENT] = modeler.WriteTangent(doc, out)
	}
	for c := 0; c < l.TexCoords; c++ {
		uvs, err := m.TexCoords(c)
		if err != nil {
			return nil, err
		}
		out := make([][2]float32, len(uvs))
		for i, uv := range uvs {
			out[i] = [2]float32{uv.X, uv.Y}
		}
		attributes[fmt.Sprintf("TEXCOORD_%d", c)] = modeler.WriteTextureCoord(doc, out)
	}
	for c := 0; c < l.Colors; c++ {
		colors, err := m.Colors(c)
		if err != nil {
			return nil, err
		}
		out := make([][4]float32, len(colors))
		for i, col := range colors {
			out[i] = [4]float32(col)
		}
		attributes[fmt.Sprintf("COLOR_%d", c)] = modeler.WriteColor(doc, out)
	}

	prim := &gltf.Primitive{Attributes: attributes}
	var indices []uint32
	switch m.Type() {
	case mesh.PrimitiveTriangles:
		prim.Mode = gltf.PrimitiveTriangles
		for _, tri := range m.Triangles() {
			indices = append(indices, uint32(tri[0]), uint32(tri[1]), uint32(tri[2]))
		}
	case mesh.PrimitiveLines:
		prim.Mode = gltf.PrimitiveLines
		for _, line := range m.Lines() {
			indices = append(indices, uint32(line[0]), uint32(line[1]))
		}
	case mesh.PrimitivePoints:
		prim.Mode = gltf.PrimitivePoints
		for _, p := range m.Points() {
			indices = append(indices, uint32(p))
		}
	}
	if len(indices) > 0 {
		prim.Indices = gltf.Index(modeler.WriteIndices(doc, indices))
	}

	doc.Meshes = []*gltf.Mesh{{Name: "mesh", Primitives: []*gltf.Primitive{prim}}}
	doc.Nodes = []*gltf.Node{{Name: "mesh", Mesh: gltf.Index(0)}}
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, 0)
	return doc, nil
}
