package mesh

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/Faultbox/meshforge/internal/parallel"
	"github.com/Faultbox/meshforge/pkg/math"
)

// DefaultMaxInfluences is the fixed-width slot count.
const DefaultMaxInfluences = 4

// Skinning buffer names.
const (
	BufferBoneOffsets = "BoneMatrixOffset"
	BufferBoneCounts  = "BoneMatrixCount"
	BufferBoneIndices = "BoneMatrixIndices"
	BufferBoneWeights = "BoneMatrixWeights"
)

// SkinningMode selects the per-vertex influence encoding.
type SkinningMode uint8

const (
	// SkinningFixed stores MaxInfluences (index, weight) pairs per vertex.
	SkinningFixed SkinningMode = iota
	// SkinningIndirect stores per-vertex (offset, count) into flattened index and weight arrays.
	SkinningIndirect
)

// String returns the mode name.
func (m SkinningMode) String() string {
	if m == SkinningIndirect {
		return "indirect"
	}
	return "fixed"
}

// SkinningOptions configures AggregateSkinning.
type SkinningOptions struct {
	Mode SkinningMode
	// MaxInfluences caps influences per vertex, keeping the heaviest. Fixed mode uses it as
	// the slot count (DefaultMaxInfluences when <= 0); indirect mode treats <= 0 as no cap.
	MaxInfluences int
	// Normalize rescales each vertex's weights to sum to 1. Truncated vertices are always rescaled.
	Normalize bool
	Workers   int
}

// BoneInfo describes one utilized bone.
type BoneInfo struct {
	ID          BoneID
	Name        string
	Parent      int32
	Bind        math.Mat4
	InverseBind math.Mat4
}

// VertexWeight is one bone's weight on an input (pre-dedup) vertex.
type VertexWeight struct {
	Vertex int32
	Weight float32
}

// BoneInput is one bone and the vertices it influences. Parent indexes the input bone list.
type BoneInput struct {
	Bone    BoneInfo
	Weights []VertexWeight
}

// Skinning holds the emitted bone buffers.
//
// Stored bone indices are offset by one into Bones; 0 means no bone. In fixed mode Indices
// and Weights hold MaxInfluences components per vertex and Offsets/Counts are nil. In
// indirect mode Offsets and Counts have one element per vertex and Indices and Weights are
// flattened, sized to the sum of counts.
type Skinning struct {
	Mode           SkinningMode
	Bones          []BoneInfo
	MaxWeightCount int

	Offsets *Buffer
	Counts  *Buffer
	Indices *Buffer
	Weights *Buffer
}

// Clone returns a deep copy.
func (s *Skinning) Clone() *Skinning {
	if s == nil {
		return nil
	}
	out := *s
	out.Bones = append([]BoneInfo(nil), s.Bones...)
	out.Offsets = s.Offsets.Clone()
	out.Counts = s.Counts.Clone()
	out.Indices = s.Indices.Clone()
	out.Weights = s.Weights.Clone()
	return &out
}

// Influences returns the (bone index into Bones, weight) pairs stored for vertex v.
func (s *Skinning) Influences(v int) []Influence {
	var out []Influence
	switch s.Mode {
	case SkinningFixed:
		idx, wts := s.Indices.View(0), s.Weights.View(0)
		for c := 0; c < s.Indices.Components; c++ {
			if i := idx.Int32(v, c); i > 0 {
				out = append(out, Influence{Bone: int(i - 1), Weight: wts.Float32At(v, c)})
			}
		}
	case SkinningIndirect:
		off := int(s.Offsets.View(0).Int32(v, 0))
		n := int(s.Counts.View(0).Int32(v, 0))
		idx, wts := s.Indices.View(0), s.Weights.View(0)
		for k := off; k < off+n; k++ {
			out = append(out, Influence{Bone: int(idx.Int32(k, 0) - 1), Weight: wts.Float32(k)})
		}
	}
	return out
}

// Influence is one decoded bone influence.
type Influence struct {
	Bone   int
	Weight float32
}

type slotEntry struct {
	bone   int32
	weight float32
}

type skinSlot struct {
	mu      sync.Mutex
	entries []slotEntry
}

// AggregateSkinning collects bone weights onto unique vertex slots and emits skinning buffers.
//
// Weights reference input vertices and are moved onto slots through remap. When two input
// vertices merged into one slot carry the same bone, their weights are averaged. Inverse
// bind matrices are per bone; bones derived from vertex weight maps take the first one
// seen. Bones left without any nonzero aggregated weight are dropped, and emitted indices
// reference the filtered list in input order. A bone cut from every vertex by
// MaxInfluences still counts as utilized.
func AggregateSkinning(bones []BoneInput, remap []int32, uniqueCount int, opts SkinningOptions) (*Skinning, error) {
	if remap == nil && len(bones) > 0 {
		return nil, fmt.Errorf("%w: remap table", ErrNilInput)
	}
	for _, r := range remap {
		if r < 0 || int(r) >= uniqueCount {
			return nil, fmt.Errorf("%w: remap slot %d (unique count %d)", ErrIndexOutOfRange, r, uniqueCount)
		}
	}

	slots := make([]skinSlot, uniqueCount)
	err := parallel.For(len(bones), opts.Workers, func(lo, hi int) error {
		for b := lo; b < hi; b++ {
			bone := &bones[b]
			for _, w := range bone.Weights {
				if w.Vertex < 0 || int(w.Vertex) >= len(remap) {
					return fmt.Errorf("%w: bone %q weights vertex %d (have %d)",
						ErrIndexOutOfRange, bone.Bone.Name, w.Vertex, len(remap))
				}
				if w.Weight == 0 {
					continue
				}
				slots[remap[w.Vertex]].add(int32(b), w.Weight)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return emitSkinning(bones, slots, opts)
}

func (s *skinSlot) add(bone int32, weight float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].bone == bone {
			s.entries[i].weight = (s.entries[i].weight + weight) / 2
			return
		}
	}
	s.entries = append(s.entries, slotEntry{bone: bone, weight: weight})
}

func emitSkinning(bones []BoneInput, slots []skinSlot, opts SkinningOptions) (*Skinning, error) {
	limit := opts.MaxInfluences
	if opts.Mode == SkinningFixed && limit <= 0 {
		limit = DefaultMaxInfluences
	}

	// Phase 1: mark utilized bones, then order, cap and normalize every slot. Slots are
	// partitioned across tasks.
	var maxCount atomic.Int32
	used := make([]atomic.Bool, len(bones))
	err := parallel.For(len(slots), opts.Workers, func(lo, hi int) error {
		for v := lo; v < hi; v++ {
			e := slots[v].entries
			for _, x := range e {
				if x.weight != 0 {
					used[x.bone].Store(true)
				}
			}
			sort.Slice(e, func(i, j int) bool {
				if e[i].weight != e[j].weight {
					return e[i].weight > e[j].weight
				}
				return e[i].bone < e[j].bone
			})
			truncated := limit > 0 && len(e) > limit
			if truncated {
				e = e[:limit]
			}
			if opts.Normalize || truncated {
				var sum float32
				for _, x := range e {
					sum += x.weight
				}
				if sum > 0 {
					for i := range e {
						e[i].weight /= sum
					}
				}
			}
			slots[v].entries = e
			atomicMax(&maxCount, int32(len(e)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Utilized bones keep input order; newIndex maps input bone to its 1-based output index.
	newIndex := make([]int32, len(bones))
	out := &Skinning{Mode: opts.Mode, MaxWeightCount: int(maxCount.Load())}
	for b := range bones {
		if !used[b].Load() {
			continue
		}
		out.Bones = append(out.Bones, bones[b].Bone)
		newIndex[b] = int32(len(out.Bones))
	}
	for i := range out.Bones {
		out.Bones[i].Parent = utilizedParent(bones, newIndex, out.Bones[i].Parent)
	}

	n := len(slots)
	if opts.Mode == SkinningFixed {
		out.Indices = NewBuffer(BufferBoneIndices, TargetVertex, ComponentInt32, limit, n)
		out.Weights = NewBuffer(BufferBoneWeights, TargetVertex, ComponentFloat32, limit, n)
		idx, wts := out.Indices.View(0), out.Weights.View(0)
		err = parallel.For(n, opts.Workers, func(lo, hi int) error {
			for v := lo; v < hi; v++ {
				for c, x := range slots[v].entries {
					idx.SetInt32(v, c, newIndex[x.bone])
					wts.SetFloat32At(v, c, x.weight)
				}
			}
			return nil
		})
		return out, err
	}

	// Indirect: offsets are a prefix sum, then each vertex fills its own range.
	out.Offsets = NewBuffer(BufferBoneOffsets, TargetStorage, ComponentInt32, 1, n)
	out.Counts = NewBuffer(BufferBoneCounts, TargetStorage, ComponentInt32, 1, n)
	offs, cnts := out.Offsets.View(0), out.Counts.View(0)
	total := 0
	for v := range slots {
		offs.SetInt32(v, 0, int32(total))
		cnts.SetInt32(v, 0, int32(len(slots[v].entries)))
		total += len(slots[v].entries)
	}
	out.Indices = NewBuffer(BufferBoneIndices, TargetStorage, ComponentInt32, 1, total)
	out.Weights = NewBuffer(BufferBoneWeights, TargetStorage, ComponentFloat32, 1, total)
	idx, wts := out.Indices.View(0), out.Weights.View(0)
	err = parallel.For(n, opts.Workers, func(lo, hi int) error {
		for v := lo; v < hi; v++ {
			base := int(offs.Int32(v, 0))
			for k, x := range slots[v].entries {
				idx.SetInt32(base+k, 0, newIndex[x.bone])
				wts.SetFloat32(base+k, x.weight)
			}
		}
		return nil
	})
	return out, err
}

// utilizedParent walks up the input hierarchy to the nearest utilized ancestor.
func utilizedParent(bones []BoneInput, newIndex []int32, parent int32) int32 {
	for steps := 0; parent >= 0 && int(parent) < len(bones) && steps < len(bones); steps++ {
		if newIndex[parent] > 0 {
			return newIndex[parent] - 1
		}
		parent = bones[parent].Bone.Parent
	}
	return -1
}

func atomicMax(v *atomic.Int32, x int32) {
	for {
		cur := v.Load()
		if x <= cur || v.CompareAndSwap(cur, x) {
			return
		}
	}
}

// bonesFromVertices groups per-vertex weight maps into per-bone weight lists. Bones are
// ordered by first appearance; each bone's inverse bind comes from its first vertex.
func bonesFromVertices(vertices []Vertex) []BoneInput {
	index := make(map[BoneID]int)
	var bones []BoneInput
	for vi := range vertices {
		w := vertices[vi].Weights
		if len(w) == 0 {
			continue
		}
		ids := make([]BoneID, 0, len(w))
		for id := range w {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })
		for _, id := range ids {
			bw := w[id]
			b, ok := index[id]
			if !ok {
				b = len(bones)
				index[id] = b
				bones = append(bones, BoneInput{Bone: BoneInfo{
					ID:          id,
					Name:        id.String(),
					Parent:      -1,
					Bind:        bw.InverseBind.Inverse(),
					InverseBind: bw.InverseBind,
				}})
			}
			bones[b].Weights = append(bones[b].Weights, VertexWeight{Vertex: int32(vi), Weight: bw.Weight})
		}
	}
	return bones
}
