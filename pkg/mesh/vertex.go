package mesh

import (
	"bytes"
	"encoding/binary"
	"sort"

	"github.com/chewxy/math32"
	"github.com/google/uuid"

	"github.com/Faultbox/meshforge/pkg/math"
)

// BoneID identifies a bone independently of its position in any skeleton list.
type BoneID = uuid.UUID

// BoneWeight is one bone's influence on a vertex.
type BoneWeight struct {
	Weight      float32
	InverseBind math.Mat4
}

// MorphTarget is the full pose of a vertex under one blendshape channel.
// Channel indexes the blendshape name list; deltas are derived against the base vertex.
type MorphTarget struct {
	Channel  int
	Position math.Vec3
	Normal   *math.Vec3
	Tangent  *math.Vec3
}

// Vertex holds every attribute of one input vertex.
//
// Two vertices are equal when all populated attributes match bit for bit. Float fields are
// compared on their IEEE-754 bit patterns, so -0 and +0 differ and identical NaN payloads
// compare equal.
type Vertex struct {
	Position  math.Vec3
	Normal    *math.Vec3
	Tangent   *math.Vec3
	Colors    []math.Vec4
	TexCoords []math.Vec2
	Weights   map[BoneID]BoneWeight
	Morphs    []MorphTarget
}

// Equal reports whether a and b are the same vertex under bit-exact comparison.
func (v *Vertex) Equal(o *Vertex) bool {
	return bytes.Equal(v.appendKey(nil), o.appendKey(nil))
}

// Clone returns a deep copy.
func (v Vertex) Clone() Vertex {
	out := v
	if v.Normal != nil {
		n := *v.Normal
		out.Normal = &n
	}
	if v.Tangent != nil {
		t := *v.Tangent
		out.Tangent = &t
	}
	out.Colors = append([]math.Vec4(nil), v.Colors...)
	out.TexCoords = append([]math.Vec2(nil), v.TexCoords...)
	if v.Weights != nil {
		out.Weights = make(map[BoneID]BoneWeight, len(v.Weights))
		for id, w := range v.Weights {
			out.Weights[id] = w
		}
	}
	if v.Morphs != nil {
		out.Morphs = make([]MorphTarget, len(v.Morphs))
		for i, m := range v.Morphs {
			out.Morphs[i] = m
			if m.Normal != nil {
				n := *m.Normal
				out.Morphs[i].Normal = &n
			}
			if m.Tangent != nil {
				t := *m.Tangent
				out.Morphs[i].Tangent = &t
			}
		}
	}
	return out
}

// appendKey appends a canonical byte encoding of v to dst. Equal vertices produce equal keys.
func (v *Vertex) appendKey(dst []byte) []byte {
	dst = appendVec3(dst, v.Position)
	dst = appendOptVec3(dst, v.Normal)
	dst = appendOptVec3(dst, v.Tangent)

	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(v.Colors)))
	for _, c := range v.Colors {
		for _, f := range c {
			dst = appendFloat(dst, f)
		}
	}
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(v.TexCoords)))
	for _, t := range v.TexCoords {
		dst = appendFloat(dst, t.X)
		dst = appendFloat(dst, t.Y)
	}

	// Map iteration order is random; sort bones for a stable key.
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(v.Weights)))
	if len(v.Weights) > 0 {
		ids := make([]BoneID, 0, len(v.Weights))
		for id := range v.Weights {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })
		for _, id := range ids {
			w := v.Weights[id]
			dst = append(dst, id[:]...)
			dst = appendFloat(dst, w.Weight)
			for _, f := range w.InverseBind {
				dst = appendFloat(dst, f)
			}
		}
	}

	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(v.Morphs)))
	for _, m := range v.Morphs {
		dst = binary.LittleEndian.AppendUint32(dst, uint32(m.Channel))
		dst = appendVec3(dst, m.Position)
		dst = appendOptVec3(dst, m.Normal)
		dst = appendOptVec3(dst, m.Tangent)
	}
	return dst
}

func appendFloat(dst []byte, f float32) []byte {
	return binary.LittleEndian.AppendUint32(dst, math32.Float32bits(f))
}

func appendVec3(dst []byte, v math.Vec3) []byte {
	dst = appendFloat(dst, v.X)
	dst = appendFloat(dst, v.Y)
	return appendFloat(dst, v.Z)
}

func appendOptVec3(dst []byte, v *math.Vec3) []byte {
	if v == nil {
		return append(dst, 0)
	}
	return appendVec3(append(dst, 1), *v)
}
