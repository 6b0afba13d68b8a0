package cooked

import (
	"bytes"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/Faultbox/meshforge/internal/parallel"
	"github.com/Faultbox/meshforge/pkg/mesh"
)

// Plan is a frozen write plan: every stream's encoding and encoded payload are decided
// up front, so Size is exact before anything is written.
type Plan struct {
	mesh   *mesh.Mesh
	vertex []*stream
	skin   []*stream
	blend  []*stream
	size   int64
}

// NewPlan resolves encodings and encodes every stream payload of m.
func NewPlan(m *mesh.Mesh, opts Options) (*Plan, error) {
	if m == nil {
		return nil, mesh.ErrNilMesh
	}
	p := &Plan{mesh: m}

	for _, name := range m.Layout().VertexBufferNames() {
		b, ok := m.Buffers().Get(name)
		if !ok {
			return nil, fmt.Errorf("%w: vertex buffer %s", ErrMissingStream, name)
		}
		p.vertex = append(p.vertex, &stream{key: name, buf: b})
	}
	if s := m.Skinning(); s != nil {
		p.skin = []*stream{
			{key: mesh.BufferBoneOffsets, buf: s.Offsets, meta: true},
			{key: mesh.BufferBoneCounts, buf: s.Counts, meta: true},
			{key: mesh.BufferBoneIndices, buf: s.Indices, meta: true},
			{key: mesh.BufferBoneWeights, buf: s.Weights, meta: true},
		}
	}
	if bs := m.Blendshapes(); bs != nil {
		p.blend = []*stream{
			{key: mesh.BufferBlendshapeCounts, buf: bs.Counts, meta: true},
			{key: mesh.BufferBlendshapeIndices, buf: bs.Indices, meta: true},
			{key: mesh.BufferBlendshapeDeltas, buf: bs.Deltas, meta: true},
		}
	}

	all := p.streams()
	err := parallel.For(len(all), opts.Workers, func(lo, hi int) error {
		for _, s := range all[lo:hi] {
			if err := s.encode(m, opts); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log := opts.logger()
	for _, s := range all {
		if s.buf == nil {
			continue
		}
		log.Debug("stream planned",
			zap.String("key", s.key),
			zap.Stringer("encoding", s.enc),
			zap.Uint64("decoded", s.decoded),
			zap.Int("encoded", len(s.payload)))
	}

	cw := &writer{w: io.Discard}
	p.write(cw)
	if cw.err != nil {
		return nil, cw.err
	}
	p.size = cw.n
	return p, nil
}

func (p *Plan) streams() []*stream {
	out := make([]*stream, 0, len(p.vertex)+len(p.skin)+len(p.blend))
	out = append(out, p.vertex...)
	out = append(out, p.skin...)
	return append(out, p.blend...)
}

// Size returns the exact number of bytes WriteTo will produce.
func (p *Plan) Size() int64 {
	return p.size
}

// Encodings reports the chosen encoding per stream key.
func (p *Plan) Encodings() map[string]mesh.Encoding {
	out := make(map[string]mesh.Encoding)
	for _, s := range p.streams() {
		if s.buf != nil {
			out[s.key] = s.enc
		}
	}
	return out
}

// WriteTo writes the planned bytes to w.
func (p *Plan) WriteTo(w io.Writer) (int64, error) {
	bw := &writer{w: w}
	p.write(bw)
	if bw.err != nil {
		return bw.n, bw.err
	}
	if bw.n != p.size {
		return bw.n, fmt.Errorf("%w: wrote %d, planned %d", ErrSizeMismatch, bw.n, p.size)
	}
	return bw.n, nil
}

func (p *Plan) write(w *writer) {
	m := p.mesh

	w.bytes([]byte(Magic))
	w.u16(Version)

	writeMetadata(w, m)
	writeTopology(w, m)
	for _, s := range p.vertex {
		s.writeDescriptor(w)
	}

	skin := m.Skinning()
	w.boolean(skin != nil)
	if skin != nil {
		w.i32(int32(len(skin.Bones)))
		for _, b := range skin.Bones {
			w.id(b.ID)
			w.str(b.Name)
			w.i32(b.Parent)
			w.mat4(b.Bind)
			w.mat4(b.InverseBind)
		}
		w.i32(int32(skin.MaxWeightCount))
		w.u8(uint8(skin.Mode))
		for _, s := range p.skin {
			s.writeDescriptor(w)
		}
	}

	bs := m.Blendshapes()
	w.boolean(bs != nil)
	if bs != nil {
		w.i32(int32(len(bs.Names)))
		for _, n := range bs.Names {
			w.str(n)
		}
		for _, s := range p.blend {
			s.writeDescriptor(w)
		}
	}
}

func writeMetadata(w *writer, m *mesh.Mesh) {
	l := m.Layout()
	b := m.Bounds()
	w.i32(int32(m.VertexCount()))
	w.i32(int32(m.Type()))
	w.vec3(b.Min)
	w.vec3(b.Max)
	w.boolean(l.Interleaved)
	w.u32(l.Stride)
	w.u32(l.PositionOffset)

	optional := func(present bool, off uint32) {
		w.boolean(present)
		if present {
			w.u32(off)
		}
	}
	optional(l.Interleaved && l.Attributes.HasNormals, l.NormalOffset)
	optional(l.Interleaved && l.Attributes.HasTangents, l.TangentOffset)
	w.i32(int32(len(l.ColorOffsets)))
	for _, off := range l.ColorOffsets {
		optional(true, off)
	}
	w.i32(int32(len(l.TexCoordOffsets)))
	for _, off := range l.TexCoordOffsets {
		optional(true, off)
	}

	w.boolean(l.Attributes.HasNormals)
	w.boolean(l.Attributes.HasTangents)
	w.i32(int32(l.Attributes.Colors))
	w.i32(int32(l.Attributes.TexCoords))
}

func writeTopology(w *writer, m *mesh.Mesh) {
	w.i32(int32(len(m.Triangles())))
	for _, t := range m.Triangles() {
		w.i32(t[0])
		w.i32(t[1])
		w.i32(t[2])
	}
	w.i32(int32(len(m.Lines())))
	for _, l := range m.Lines() {
		w.i32(l[0])
		w.i32(l[1])
	}
	w.i32(int32(len(m.Points())))
	for _, p := range m.Points() {
		w.i32(p)
	}
}

// Marshal plans and writes m into a byte slice of exactly Plan.Size bytes.
func Marshal(m *mesh.Mesh, opts Options) ([]byte, error) {
	p, err := NewPlan(m, opts)
	if err != nil {
		return nil, err
	}
	buf := bytes.NewBuffer(make([]byte, 0, p.Size()))
	if _, err := p.WriteTo(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
