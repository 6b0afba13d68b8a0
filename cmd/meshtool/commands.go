package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/davecgh/go-spew/spew"

	"github.com/Faultbox/meshforge/pkg/cooked"
	"github.com/Faultbox/meshforge/pkg/math"
	"github.com/Faultbox/meshforge/pkg/mesh"
)

func newFlagSet(name string) *flag.FlagSet {
	return flag.NewFlagSet(name, flag.ExitOnError)
}

func (t *tool) cmdGen(args []string) error {
	fs := newFlagSet("gen")
	out := fs.String("o", "", "Output file")
	size := fs.Float64("size", 1, "Box edge, plane width or sphere radius")
	segments := fs.Int("segments", 8, "Plane subdivisions")
	rings := fs.Int("rings", 12, "Sphere rings")
	sectors := fs.Int("sectors", 24, "Sphere sectors")
	if len(args) < 1 {
		return fmt.Errorf("usage: meshtool gen <box|plane|sphere> -o <out.xrm>")
	}
	shape := args[0]
	fs.Parse(args[1:])
	if *out == "" {
		return fmt.Errorf("gen: missing -o output path")
	}

	s := float32(*size)
	var m *mesh.Mesh
	var err error
	switch shape {
	case "box":
		m, err = mesh.NewBox(math.Vec3{X: s, Y: s, Z: s}, t.meshOpts)
	case "plane":
		m, err = mesh.NewPlane(s, s, *segments, t.meshOpts)
	case "sphere":
		m, err = mesh.NewUVSphere(s, *rings, *sectors, t.meshOpts)
	default:
		return fmt.Errorf("gen: unknown shape %q", shape)
	}
	if err != nil {
		return err
	}
	return t.save(*out, m)
}

func (t *tool) cmdInfo(args []string) error {
	fs := newFlagSet("info")
	dump := fs.Bool("dump", false, "Dump skinning and blendshape structures")
	fs.Parse(args)
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: meshtool info [-dump] <file.xrm>")
	}

	m, err := t.load(fs.Arg(0))
	if err != nil {
		return err
	}
	plan, err := cooked.NewPlan(m, t.cookOpts)
	if err != nil {
		return err
	}

	l := m.Layout()
	b := m.Bounds()
	fmt.Printf("File:        %s\n", fs.Arg(0))
	fmt.Printf("Vertices:    %d\n", m.VertexCount())
	fmt.Printf("Primitives:  %d %s\n", m.PrimitiveCount(), m.Type())
	fmt.Printf("Bounds:      (%.3f, %.3f, %.3f) - (%.3f, %.3f, %.3f)\n",
		b.Min.X, b.Min.Y, b.Min.Z, b.Max.X, b.Max.Y, b.Max.Z)
	fmt.Printf("Interleaved: %v (stride %d)\n", l.Interleaved, l.Stride)
	fmt.Printf("Attributes:  normals=%v tangents=%v colors=%d texcoords=%d\n",
		l.Attributes.HasNormals, l.Attributes.HasTangents, l.Attributes.Colors, l.Attributes.TexCoords)
	fmt.Printf("Cooked size: %d bytes\n", plan.Size())
	fmt.Println()
	fmt.Println("Streams:")
	encs := plan.Encodings()
	for _, name := range m.Buffers().Names() {
		buf, _ := m.Buffers().Get(name)
		fmt.Printf("  %-20s %-8s x%d  %6d elements  %-14s\n",
			name, buf.Component, buf.Components, buf.Count, encs[name])
	}

	if s := m.Skinning(); s != nil {
		fmt.Println()
		fmt.Printf("Skinning:    %s, %d bones, max %d weights per vertex\n", s.Mode, len(s.Bones), s.MaxWeightCount)
		for i, bone := range s.Bones {
			fmt.Printf("  %3d %-24s parent %d\n", i+1, bone.Name, bone.Parent)
		}
	}
	if bs := m.Blendshapes(); bs != nil {
		fmt.Println()
		fmt.Printf("Blendshapes: %d channels, %d pooled deltas\n", len(bs.Names), bs.Deltas.Count)
		for i, name := range bs.Names {
			fmt.Printf("  %3d %s\n", i, name)
		}
	}

	if *dump {
		cfg := spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, DisableCapacities: true, MaxDepth: 4}
		fmt.Println()
		cfg.Dump(m.Layout())
		if s := m.Skinning(); s != nil {
			cfg.Dump(s.Bones)
		}
		if bs := m.Blendshapes(); bs != nil {
			for v := 0; v < m.VertexCount(); v++ {
				if c := bs.Contributions(v); len(c) > 0 {
					fmt.Printf("vertex %d: ", v)
					cfg.Dump(c)
				}
			}
		}
	}
	return nil
}

func (t *tool) cmdRaycast(args []string) error {
	if len(args) < 7 {
		return fmt.Errorf("usage: meshtool raycast <file.xrm> ox oy oz ex ey ez")
	}
	var coords [6]float32
	for i := range coords {
		f, err := strconv.ParseFloat(args[i+1], 32)
		if err != nil {
			return fmt.Errorf("raycast: coordinate %q: %w", args[i+1], err)
		}
		coords[i] = float32(f)
	}

	m, err := t.load(args[0])
	if err != nil {
		return err
	}
	if _, err := m.BuildSpatialIndex(); err != nil {
		return err
	}
	seg := math.Segment{
		Start: math.Vec3{X: coords[0], Y: coords[1], Z: coords[2]},
		End:   math.Vec3{X: coords[3], Y: coords[4], Z: coords[5]},
	}
	hit, ok := m.IntersectSegment(seg)
	if !ok {
		fmt.Println("no hit")
		return nil
	}
	fmt.Printf("hit triangle %d at t=%.5f distance=%.5f point=(%.4f, %.4f, %.4f)\n",
		hit.Triangle, hit.T, hit.Distance, hit.Point.X, hit.Point.Y, hit.Point.Z)
	return nil
}

func (t *tool) cmdBVH(args []string) error {
	fs := newFlagSet("bvh")
	depth := fs.Int("depth", 4, "Deepest tree level to draw")
	out := fs.String("o", "", "Output line mesh")
	fs.Parse(args)
	if fs.NArg() < 1 || *out == "" {
		return fmt.Errorf("usage: meshtool bvh [-depth N] -o <out.xrm> <file.xrm>")
	}

	m, err := t.load(fs.Arg(0))
	if err != nil {
		return err
	}
	tree, err := m.BuildSpatialIndex()
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "BVH: %d nodes over %d triangles\n", tree.NodeCount(), tree.TriangleCount())

	lines, err := mesh.NewFromLines(tree.Wireframe(*depth), t.meshOpts)
	if err != nil {
		return err
	}
	return t.save(*out, lines)
}
