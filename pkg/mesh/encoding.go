package mesh

import (
	"fmt"
	"sort"
)

// Encoding selects how a buffer stream is stored in cooked form. Values are stable on disk.
type Encoding uint8

const (
	EncodingRaw Encoding = iota
	EncodingSnorm16
	EncodingCompressed
	EncodingGPUCompressed
)

// String returns the encoding name.
func (e Encoding) String() string {
	switch e {
	case EncodingRaw:
		return "raw"
	case EncodingSnorm16:
		return "snorm16"
	case EncodingCompressed:
		return "compressed"
	case EncodingGPUCompressed:
		return "gpu-compressed"
	}
	return fmt.Sprintf("encoding(%d)", uint8(e))
}

// Valid reports whether e is a known encoding.
func (e Encoding) Valid() bool {
	return e <= EncodingGPUCompressed
}

// SetEncoding forces the cooked encoding of the stream with the given key.
func (m *Mesh) SetEncoding(key string, e Encoding) {
	m.encMu.Lock()
	m.encodings[key] = e
	m.encMu.Unlock()
}

// ClearEncoding removes an override set with SetEncoding.
func (m *Mesh) ClearEncoding(key string) {
	m.encMu.Lock()
	delete(m.encodings, key)
	m.encMu.Unlock()
}

// Encoding returns the override for key, if any.
func (m *Mesh) Encoding(key string) (Encoding, bool) {
	m.encMu.RLock()
	defer m.encMu.RUnlock()
	e, ok := m.encodings[key]
	return e, ok
}

// EncodingOverrides returns the override keys in sorted order.
func (m *Mesh) EncodingOverrides() []string {
	m.encMu.RLock()
	keys := make([]string, 0, len(m.encodings))
	for k := range m.encodings {
		keys = append(keys, k)
	}
	m.encMu.RUnlock()
	sort.Strings(keys)
	return keys
}
