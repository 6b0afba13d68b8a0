package mesh

// Clone returns a fully independent deep copy: topology, buffers, skinning, blendshapes,
// retained source and encoding overrides. Acceleration caches are rebuilt on demand.
func (m *Mesh) Clone() *Mesh {
	if m == nil {
		return nil
	}
	out := &Mesh{
		opts:        m.opts,
		log:         m.log,
		primType:    m.primType,
		vertexCount: m.vertexCount,
		layout:      m.layout,
		buffers:     m.buffers.Clone(),
		bounds:      m.Bounds(),
		skinning:    m.skinning.Clone(),
		blendshapes: m.blendshapes.Clone(),
		importErr:   m.importErr,
		encodings:   make(map[string]Encoding),
	}
	out.opts.BlendshapeNames = append([]string(nil), m.opts.BlendshapeNames...)
	if m.opts.Transform != nil {
		xf := *m.opts.Transform
		out.opts.Transform = &xf
	}
	out.layout.ColorOffsets = append([]uint32(nil), m.layout.ColorOffsets...)
	out.layout.TexCoordOffsets = append([]uint32(nil), m.layout.TexCoordOffsets...)

	if m.triangles != nil {
		out.triangles = append([][3]int32(nil), m.triangles...)
	}
	if m.lines != nil {
		out.lines = append([][2]int32(nil), m.lines...)
	}
	if m.points != nil {
		out.points = append([]int32(nil), m.points...)
	}
	if m.source != nil {
		out.source = make([]Vertex, len(m.source))
		for i := range m.source {
			out.source[i] = m.source[i].Clone()
		}
	}

	m.encMu.RLock()
	for k, e := range m.encodings {
		out.encodings[k] = e
	}
	m.encMu.RUnlock()
	return out
}
