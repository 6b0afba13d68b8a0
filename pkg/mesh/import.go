package mesh

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/meshforge/pkg/diag"
	"github.com/Faultbox/meshforge/pkg/encoding"
	"github.com/Faultbox/meshforge/pkg/math"
)

// ImportBone is a parsed bone: its node name, inverse bind matrix and vertex weights.
type ImportBone struct {
	Name    string
	Offset  math.Mat4
	Weights []VertexWeight
}

// ImportMorph is a parsed morph target. Arrays are indexed like ImportData.Positions;
// Normals and Tangents may be empty.
type ImportMorph struct {
	Name      string
	Positions []math.Vec3
	Normals   []math.Vec3
	Tangents  []math.Vec3
}

// ImportData is one parsed mesh as handed over by a scene importer. Optional per-vertex
// arrays are either empty or as long as Positions. Faces with 1, 2 or 3 indices become
// points, lines or triangles; larger polygons are fan-triangulated.
type ImportData struct {
	Name      string
	Positions []math.Vec3
	Normals   []math.Vec3
	Tangents  []math.Vec3
	Colors    [][]math.Vec4
	TexCoords [][]math.Vec2
	Faces     [][]int32
	Bones     []ImportBone
	Morphs    []ImportMorph
}

// Node is the scene-graph information needed for one bone.
type Node struct {
	ID     BoneID
	Name   string
	Parent string
	World  math.Mat4
}

// NodeLookup resolves bone names to scene nodes.
type NodeLookup interface {
	LookupNode(name string) (Node, bool)
}

// NodeMap is a NodeLookup backed by a map keyed by node name.
type NodeMap map[string]Node

// LookupNode implements NodeLookup.
func (m NodeMap) LookupNode(name string) (Node, bool) {
	n, ok := m[name]
	return n, ok
}

// boneNamespace derives stable ids for nodes that carry none.
var boneNamespace = uuid.MustParse("6f1c1a52-3c57-4f1e-9a51-5f0d8b0e7a31")

// Import builds a mesh from importer output. world maps the data into mesh space.
//
// Bones whose node cannot be found are skipped and reported; the returned mesh then carries
// the collected problems in ImportWarnings. Structural problems abort the import.
func Import(data *ImportData, nodes NodeLookup, world math.Mat4, opts Options) (*Mesh, error) {
	if data == nil {
		return nil, fmt.Errorf("%w: import data", ErrNilInput)
	}
	if len(data.Bones) > 0 && nodes == nil {
		return nil, fmt.Errorf("%w: node lookup required for %d bones", ErrNilInput, len(data.Bones))
	}
	log := opts.logger().With(zap.String("mesh", data.Name))

	vertices, names, err := importVertices(data)
	if err != nil {
		return nil, fmt.Errorf("import %q: %w", data.Name, err)
	}
	topo := importTopology(data.Faces)

	bones, report := resolveBones(data.Bones, nodes, opts.Diagnostics)
	if report != nil {
		log.Warn("skipped bones during import",
			zap.Int("skipped", len(multierr.Errors(report))),
			zap.Error(report))
	}

	if !world.IsIdentity() {
		opts.Transform = &world
	}
	if len(names) > 0 {
		opts.BlendshapeNames = names
	}
	opts.Logger = log

	m, err := build(vertices, topo, bones, opts)
	if err != nil {
		return nil, fmt.Errorf("import %q: %w", data.Name, err)
	}
	m.importErr = report
	return m, nil
}

func importVertices(data *ImportData) ([]Vertex, []string, error) {
	n := len(data.Positions)
	check := func(what string, got int) error {
		if got != 0 && got != n {
			return fmt.Errorf("%w: %s has %d entries for %d positions", ErrLayoutMismatch, what, got, n)
		}
		return nil
	}
	if err := multierr.Combine(check("normals", len(data.Normals)), check("tangents", len(data.Tangents))); err != nil {
		return nil, nil, err
	}
	for c, set := range data.Colors {
		if err := check(fmt.Sprintf("color set %d", c), len(set)); err != nil {
			return nil, nil, err
		}
	}
	for c, set := range data.TexCoords {
		if err := check(fmt.Sprintf("texcoord set %d", c), len(set)); err != nil {
			return nil, nil, err
		}
	}
	names := make([]string, len(data.Morphs))
	for k, morph := range data.Morphs {
		if len(morph.Positions) != n {
			return nil, nil, fmt.Errorf("%w: morph %q has %d positions for %d", ErrLayoutMismatch, morph.Name, len(morph.Positions), n)
		}
		if err := multierr.Combine(check("morph normals", len(morph.Normals)), check("morph tangents", len(morph.Tangents))); err != nil {
			return nil, nil, err
		}
		names[k] = encoding.NormalizeName(morph.Name)
	}

	vertices := make([]Vertex, n)
	for i := range vertices {
		v := Vertex{Position: data.Positions[i]}
		if len(data.Normals) > 0 {
			v.Normal = &data.Normals[i]
		}
		if len(data.Tangents) > 0 {
			v.Tangent = &data.Tangents[i]
		}
		for _, set := range data.Colors {
			if len(set) > 0 {
				v.Colors = append(v.Colors, set[i])
			}
		}
		for _, set := range data.TexCoords {
			if len(set) > 0 {
				v.TexCoords = append(v.TexCoords, set[i])
			}
		}
		for k, morph := range data.Morphs {
			t := MorphTarget{Channel: k, Position: morph.Positions[i]}
			if len(morph.Normals) > 0 {
				t.Normal = &morph.Normals[i]
			}
			if len(morph.Tangents) > 0 {
				t.Tangent = &morph.Tangents[i]
			}
			v.Morphs = append(v.Morphs, t)
		}
		vertices[i] = v
	}
	return vertices, names, nil
}

func importTopology(faces [][]int32) Topology {
	var t Topology
	for _, f := range faces {
		switch len(f) {
		case 0:
		case 1:
			t.Points = append(t.Points, f[0])
		case 2:
			t.Lines = append(t.Lines, [2]int32{f[0], f[1]})
		default:
			for i := 1; i+1 < len(f); i++ {
				t.Triangles = append(t.Triangles, [3]int32{f[0], f[i], f[i+1]})
			}
		}
	}
	return t
}

// resolveBones maps import bones onto scene nodes. Missing nodes are collected into the
// returned error and reported to sink; they never fail the import.
func resolveBones(in []ImportBone, nodes NodeLookup, sink *diag.Sink) ([]BoneInput, error) {
	if len(in) == 0 {
		return nil, nil
	}
	var report error
	out := make([]BoneInput, 0, len(in))
	parents := make([]string, 0, len(in))
	index := make(map[string]int32, len(in))
	for _, b := range in {
		name := encoding.NormalizeName(b.Name)
		node, ok := nodes.LookupNode(name)
		if !ok {
			err := fmt.Errorf("bone %q: %w", name, ErrMissingNode)
			report = multierr.Append(report, err)
			sink.Report(diag.LevelWarning, "mesh.import.missing-bone."+name, err.Error())
			continue
		}
		id := node.ID
		if id == uuid.Nil {
			id = uuid.NewSHA1(boneNamespace, []byte(name))
		}
		index[name] = int32(len(out))
		parents = append(parents, encoding.NormalizeName(node.Parent))
		out = append(out, BoneInput{
			Bone: BoneInfo{
				ID:          id,
				Name:        name,
				Parent:      -1,
				Bind:        node.World,
				InverseBind: b.Offset,
			},
			Weights: b.Weights,
		})
	}
	for i, p := range parents {
		if j, ok := index[p]; ok && p != "" {
			out[i].Bone.Parent = j
		}
	}
	return out, report
}
