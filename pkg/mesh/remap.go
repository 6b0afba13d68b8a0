package mesh

// RemapTable maps input vertices onto deduplicated slots.
type RemapTable struct {
	// Remap has one entry per input vertex: the unique slot it was merged into.
	Remap []int32
	// Impl has one entry per unique slot: the input index that first produced it.
	Impl []int32
}

// UniqueCount returns the number of unique slots.
func (t RemapTable) UniqueCount() int {
	return len(t.Impl)
}

// Remap deduplicates vertices in a single hashed pass. Slots are numbered in
// first-appearance order. With dedup disabled every vertex is its own slot.
func Remap(vertices []Vertex, dedup bool) RemapTable {
	n := len(vertices)
	t := RemapTable{
		Remap: make([]int32, n),
		Impl:  make([]int32, 0, n),
	}
	if !dedup {
		for i := range vertices {
			t.Remap[i] = int32(i)
			t.Impl = append(t.Impl, int32(i))
		}
		return t
	}

	seen := make(map[string]int32, n)
	var key []byte
	for i := range vertices {
		key = vertices[i].appendKey(key[:0])
		if slot, ok := seen[string(key)]; ok {
			t.Remap[i] = slot
			continue
		}
		slot := int32(len(t.Impl))
		seen[string(key)] = slot
		t.Remap[i] = slot
		t.Impl = append(t.Impl, int32(i))
	}
	return t
}

// Unique returns the representative vertex of every slot.
func (t RemapTable) Unique(vertices []Vertex) []Vertex {
	out := make([]Vertex, len(t.Impl))
	for slot, src := range t.Impl {
		out[slot] = vertices[src]
	}
	return out
}
