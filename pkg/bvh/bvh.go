// Package bvh builds a bounding-volume hierarchy over triangles and answers
// closest-hit segment queries against it.
package bvh

import (
	"errors"
	"fmt"
	"sort"

	"github.com/chewxy/math32"

	"github.com/Faultbox/meshforge/pkg/math"
)

// LeafSize is the maximum number of triangles stored in a leaf.
const LeafSize = 4

// ErrInvalidBounds is returned when a triangle has a non-finite coordinate.
var ErrInvalidBounds = errors.New("bvh: non-finite triangle bounds")

// Triangle is a triangle with the caller's identifier for it.
type Triangle struct {
	A, B, C math.Vec3
	Index   int32
}

func (t Triangle) bounds() math.AABB {
	return math.NewAABB(t.A, t.B).Expand(t.C)
}

// Node is one tree node. Leaves have Left == -1 and hold Count triangles starting at First.
type Node struct {
	Bounds math.AABB
	Left   int32
	Right  int32
	First  int32
	Count  int32
}

// IsLeaf reports whether n holds triangles.
func (n *Node) IsLeaf() bool {
	return n.Left < 0
}

// Tree is an immutable BVH. It is safe for concurrent queries.
type Tree struct {
	nodes []Node
	tris  []Triangle
}

type buildItem struct {
	tri      Triangle
	bounds   math.AABB
	centroid math.Vec3
}

// Build constructs a tree with median splits along the longest centroid axis.
// The input slice is not modified.
func Build(tris []Triangle) (*Tree, error) {
	items := make([]buildItem, len(tris))
	for i, t := range tris {
		b := t.bounds()
		if !finite(b.Min) || !finite(b.Max) {
			return nil, fmt.Errorf("%w: triangle %d", ErrInvalidBounds, t.Index)
		}
		items[i] = buildItem{tri: t, bounds: b, centroid: b.Center()}
	}

	t := &Tree{
		nodes: make([]Node, 0, 2*len(items)/LeafSize+1),
		tris:  make([]Triangle, 0, len(items)),
	}
	if len(items) > 0 {
		t.build(items)
	}
	return t, nil
}

func (t *Tree) build(items []buildItem) int32 {
	idx := int32(len(t.nodes))
	t.nodes = append(t.nodes, Node{Left: -1, Right: -1})

	bounds := math.EmptyAABB()
	centroids := math.EmptyAABB()
	for i := range items {
		bounds = bounds.Union(items[i].bounds)
		centroids = centroids.Expand(items[i].centroid)
	}
	t.nodes[idx].Bounds = bounds

	axis := centroids.LongestAxis()
	extent := centroids.Size().Axis(axis)
	if len(items) <= LeafSize || extent == 0 {
		t.nodes[idx].First = int32(len(t.tris))
		t.nodes[idx].Count = int32(len(items))
		for i := range items {
			t.tris = append(t.tris, items[i].tri)
		}
		return idx
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].centroid.Axis(axis) < items[j].centroid.Axis(axis)
	})
	mid := len(items) / 2
	left := t.build(items[:mid])
	right := t.build(items[mid:])
	t.nodes[idx].Left = left
	t.nodes[idx].Right = right
	return idx
}

func finite(v math.Vec3) bool {
	return !math32.IsNaN(v.X) && !math32.IsNaN(v.Y) && !math32.IsNaN(v.Z) &&
		!math32.IsInf(v.X, 0) && !math32.IsInf(v.Y, 0) && !math32.IsInf(v.Z, 0)
}

// NodeCount returns the number of nodes.
func (t *Tree) NodeCount() int {
	return len(t.nodes)
}

// TriangleCount returns the number of triangles.
func (t *Tree) TriangleCount() int {
	return len(t.tris)
}

// Bounds returns the root bounds, or an empty box for an empty tree.
func (t *Tree) Bounds() math.AABB {
	if len(t.nodes) == 0 {
		return math.EmptyAABB()
	}
	return t.nodes[0].Bounds
}

// Nodes exposes the node array; index 0 is the root.
func (t *Tree) Nodes() []Node {
	return t.nodes
}

// Hit is the closest intersection along a segment.
type Hit struct {
	// T is the parametric position on the segment in [0,1].
	T float32
	// Distance is T times the segment length.
	Distance float32
	Triangle int32
	Point    math.Vec3
}

// IntersectSegment returns the closest triangle hit along seg.
func (t *Tree) IntersectSegment(seg math.Segment) (Hit, bool) {
	if len(t.nodes) == 0 {
		return Hit{}, false
	}

	best := Hit{T: 2}
	found := false
	stack := make([]int32, 0, 64)
	stack = append(stack, 0)
	for len(stack) > 0 {
		n := &t.nodes[stack[len(stack)-1]]
		stack = stack[:len(stack)-1]

		entry, ok := seg.IntersectAABB(n.Bounds)
		if !ok || entry > best.T {
			continue
		}
		if n.IsLeaf() {
			for _, tri := range t.tris[n.First : n.First+n.Count] {
				if th, hit := seg.IntersectTriangle(tri.A, tri.B, tri.C); hit && th < best.T {
					best = Hit{T: th, Triangle: tri.Index}
					found = true
				}
			}
			continue
		}
		stack = append(stack, n.Left, n.Right)
	}
	if !found {
		return Hit{}, false
	}
	best.Point = seg.PointAt(best.T)
	best.Distance = best.T * seg.Length()
	return best, true
}

// Wireframe returns the 12 box edges of every node down to maxDepth (root is depth 0).
// A negative maxDepth walks the whole tree.
func (t *Tree) Wireframe(maxDepth int) []math.Segment {
	if len(t.nodes) == 0 {
		return nil
	}
	type entry struct {
		node  int32
		depth int
	}
	var out []math.Segment
	stack := []entry{{0, 0}}
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := &t.nodes[e.node]
		out = append(out, BoxEdges(n.Bounds)...)
		if n.IsLeaf() || (maxDepth >= 0 && e.depth >= maxDepth) {
			continue
		}
		stack = append(stack, entry{n.Right, e.depth + 1}, entry{n.Left, e.depth + 1})
	}
	return out
}

// BoxEdges returns the 12 edges of b: bottom face, top face, then verticals.
func BoxEdges(b math.AABB) []math.Segment {
	lo, hi := b.Min, b.Max
	c := [8]math.Vec3{
		{X: lo.X, Y: lo.Y, Z: lo.Z}, {X: hi.X, Y: lo.Y, Z: lo.Z},
		{X: hi.X, Y: lo.Y, Z: hi.Z}, {X: lo.X, Y: lo.Y, Z: hi.Z},
		{X: lo.X, Y: hi.Y, Z: lo.Z}, {X: hi.X, Y: hi.Y, Z: lo.Z},
		{X: hi.X, Y: hi.Y, Z: hi.Z}, {X: lo.X, Y: hi.Y, Z: hi.Z},
	}
	edges := [12][2]int{
		{0, 1}, {1, 2}, {2, 3}, {3, 0},
		{4, 5}, {5, 6}, {6, 7}, {7, 4},
		{0, 4}, {1, 5}, {2, 6}, {3, 7},
	}
	out := make([]math.Segment, len(edges))
	for i, e := range edges {
		out[i] = math.Segment{Start: c[e[0]], End: c[e[1]]}
	}
	return out
}
