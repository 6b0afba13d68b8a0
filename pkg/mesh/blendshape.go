package mesh

import (
	"fmt"

	"github.com/chewxy/math32"

	"github.com/Faultbox/meshforge/internal/parallel"
	"github.com/Faultbox/meshforge/pkg/math"
)

// Blendshape buffer names.
const (
	BufferBlendshapeCounts  = "BlendshapeCount"
	BufferBlendshapeIndices = "BlendshapeIndices"
	BufferBlendshapeDeltas  = "BlendshapeDeltas"
)

// BlendshapeOptions configures EncodeBlendshapes.
type BlendshapeOptions struct {
	// DeduplicateDeltas merges identical deltas across the whole pool.
	DeduplicateDeltas bool
	// Transform maps base and target poses into mesh space before differencing.
	Transform *math.Mat4
	Workers   int
}

// Blendshapes holds encoded morph target deltas.
//
// Counts has one (offset, count) pair per vertex into Indices. Each Indices element is
// (channel, position delta, normal delta, tangent delta), the last three indexing Deltas.
// Deltas[0] is always the zero vector and stands for an unchanged component.
type Blendshapes struct {
	Names   []string
	Counts  *Buffer
	Indices *Buffer
	Deltas  *Buffer
}

// Clone returns a deep copy.
func (b *Blendshapes) Clone() *Blendshapes {
	if b == nil {
		return nil
	}
	return &Blendshapes{
		Names:   append([]string(nil), b.Names...),
		Counts:  b.Counts.Clone(),
		Indices: b.Indices.Clone(),
		Deltas:  b.Deltas.Clone(),
	}
}

// Contribution is one decoded (vertex, channel) entry.
type Contribution struct {
	Channel  int
	Position math.Vec3
	Normal   math.Vec3
	Tangent  math.Vec3
}

// Contributions decodes the deltas stored for vertex v.
func (b *Blendshapes) Contributions(v int) []Contribution {
	counts := b.Counts.View(0)
	off, n := int(counts.Int32(v, 0)), int(counts.Int32(v, 1))
	idx, pool := b.Indices.View(0), b.Deltas.View(0)
	out := make([]Contribution, n)
	for k := 0; k < n; k++ {
		out[k] = Contribution{
			Channel:  int(idx.Int32(off+k, 0)),
			Position: pool.Vec3(int(idx.Int32(off+k, 1))),
			Normal:   pool.Vec3(int(idx.Int32(off+k, 2))),
			Tangent:  pool.Vec3(int(idx.Int32(off+k, 3))),
		}
	}
	return out
}

type pendingDelta struct {
	channel int32
	deltas  [3]math.Vec3
}

// EncodeBlendshapes computes per-vertex morph deltas against base and packs them.
//
// A component whose delta is exactly zero points at the sentinel; a target identical to
// the base pose contributes nothing. Deltas are computed in parallel, then pool indices are
// assigned in a single serial pass so the output is stable across runs.
func EncodeBlendshapes(names []string, base []Vertex, opts BlendshapeOptions) (*Blendshapes, error) {
	var normalXf *math.Mat4
	if opts.Transform != nil {
		nm := opts.Transform.NormalMatrix()
		normalXf = &nm
	}

	pending := make([][]pendingDelta, len(base))
	err := parallel.For(len(base), opts.Workers, func(lo, hi int) error {
		for v := lo; v < hi; v++ {
			bv := &base[v]
			var out []pendingDelta
			for _, t := range bv.Morphs {
				if t.Channel < 0 || t.Channel >= len(names) {
					return fmt.Errorf("%w: vertex %d morph channel %d (have %d names)",
						ErrIndexOutOfRange, v, t.Channel, len(names))
				}
				d := pendingDelta{channel: int32(t.Channel)}
				d.deltas[0] = positionDelta(bv.Position, t.Position, opts.Transform)
				d.deltas[1] = directionDelta(bv.Normal, t.Normal, normalXf)
				d.deltas[2] = directionDelta(bv.Tangent, t.Tangent, normalXf)
				if d.deltas[0].IsZero() && d.deltas[1].IsZero() && d.deltas[2].IsZero() {
					continue
				}
				out = append(out, d)
			}
			pending[v] = out
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Serial index assignment.
	pool := []math.Vec3{{}}
	type contribution struct {
		channel int32
		index   [3]int32
	}
	var contribs []contribution
	counts := NewBuffer(BufferBlendshapeCounts, TargetStorage, ComponentInt32, 2, len(base))
	cv := counts.View(0)
	for v, list := range pending {
		cv.SetInt32(v, 0, int32(len(contribs)))
		cv.SetInt32(v, 1, int32(len(list)))
		for _, d := range list {
			c := contribution{channel: d.channel}
			for k, delta := range d.deltas {
				if delta.IsZero() {
					continue
				}
				c.index[k] = int32(len(pool))
				pool = append(pool, delta)
			}
			contribs = append(contribs, c)
		}
	}

	if opts.DeduplicateDeltas {
		remap, unique := dedupDeltas(pool)
		for i := range contribs {
			for k := range contribs[i].index {
				contribs[i].index[k] = remap[contribs[i].index[k]]
			}
		}
		pool = unique
	}

	indices := NewBuffer(BufferBlendshapeIndices, TargetStorage, ComponentInt32, 4, len(contribs))
	iv := indices.View(0)
	for i, c := range contribs {
		iv.SetInt32(i, 0, c.channel)
		for k, idx := range c.index {
			iv.SetInt32(i, k+1, idx)
		}
	}
	deltas := NewBuffer(BufferBlendshapeDeltas, TargetStorage, ComponentFloat32, 3, len(pool))
	dv := deltas.View(0)
	for i, d := range pool {
		dv.SetVec3(i, d)
	}

	return &Blendshapes{
		Names:   append([]string(nil), names...),
		Counts:  counts,
		Indices: indices,
		Deltas:  deltas,
	}, nil
}

// dedupDeltas merges bit-identical pool entries. Slot 0 stays the zero sentinel.
func dedupDeltas(pool []math.Vec3) ([]int32, []math.Vec3) {
	type key [3]uint32
	seen := make(map[key]int32, len(pool))
	remap := make([]int32, len(pool))
	unique := make([]math.Vec3, 0, len(pool))
	for i, d := range pool {
		k := key{math32.Float32bits(d.X), math32.Float32bits(d.Y), math32.Float32bits(d.Z)}
		if j, ok := seen[k]; ok {
			remap[i] = j
			continue
		}
		j := int32(len(unique))
		seen[k] = j
		remap[i] = j
		unique = append(unique, d)
	}
	return remap, unique
}

func positionDelta(base, target math.Vec3, xf *math.Mat4) math.Vec3 {
	if xf != nil {
		base, target = xf.TransformPoint(base), xf.TransformPoint(target)
	}
	return target.Sub(base)
}

func directionDelta(base, target *math.Vec3, normalXf *math.Mat4) math.Vec3 {
	if target == nil {
		return math.Vec3{}
	}
	b := transformDirection(base, normalXf)
	t := transformDirection(target, normalXf)
	return t.Sub(b)
}
